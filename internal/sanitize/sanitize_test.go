package sanitize

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestSanitize(t *testing.T) {
	tests := []struct {
		name string
		in   string
		want string
	}{
		{
			name: "function declaration",
			in:   "function helper(a) { if (a) { return 1; } }\ndoGravity(x, y, i);",
			want: "\ndoGravity(x, y, i);",
		},
		{
			name: "bound function expression",
			in:   "const f = function() { grid[i] = FIRE; };doRise(x, y, i);",
			want: "doRise(x, y, i);",
		},
		{
			name: "arrow with block body",
			in:   "let go = (a, b) => { return a + b; }\ndoRise(x, y, i);",
			want: "\ndoRise(x, y, i);",
		},
		{
			name: "arrow with expression body",
			in:   "var sq = n => n * n; doRise(x, y, i);",
			want: " doRise(x, y, i);",
		},
		{
			name: "for loop",
			in:   "for (let k = 0; k < 10; k++) { doGravity(x, y, i); }",
			want: "if (true) { doGravity(x, y, i); }",
		},
		{
			name: "while loop",
			in:   "while (true) { doGravity(x, y, i); }",
			want: "if (true) { doGravity(x, y, i); }",
		},
		{
			name: "do while",
			in:   "do { doGravity(x, y, i); } while (random() < 0.5);",
			want: "{ doGravity(x, y, i); } if (random() < 0.5);",
		},
		{
			name: "dynamic code and timers",
			in:   `eval("x"); setTimeout(f, 10); new Function("return 1")(); requestAnimationFrame(step);`,
			want: `console.log("x"); console.log(f, 10); console.log("return 1")(); console.log(step);`,
		},
		{
			name: "host objects",
			in:   `window.alert(1); document["cookie"]; globalThis.x = 1; process.exit(0);`,
			want: `inert.alert(1); inert["cookie"]; inert.x = 1; inert.exit(0);`,
		},
		{
			name: "identifiers containing host names are kept",
			in:   `let topmost = 1; let myself = 2; doGravity(x, y, i);`,
			want: `let topmost = 1; let myself = 2; doGravity(x, y, i);`,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, Sanitize(tt.in))
		})
	}
}

func TestSanitizeIsIdempotent(t *testing.T) {
	inputs := []string{
		"",
		"doGravity(x, y, i);",
		"function a() { function b() { while (1) {} } } for (;;) { eval(1); }",
		"do { window.location.href = 'x'; } while (true);",
		"const boom = () => { setInterval(boom, 1); };\nif (isTouching(x, y, i, FIRE)) { grid[i] = FIRE; }",
		"for (let k = 0; k < (3",
		"self.postMessage(1); top[0]; parent.frames[1];",
		"do\n  do { doGravity(x, y, i); } while (random() < 0.5);\nwhile (true);",
	}
	for _, in := range inputs {
		once := Sanitize(in)
		assert.Equal(t, once, Sanitize(once), "input: %q", in)
	}
}

func TestReport(t *testing.T) {
	in := "function f() {} while (true) { eval(1); window.x; } for (;;) {}"

	out, f := Report(in)

	assert.Equal(t, Sanitize(in), out)
	assert.Equal(t, Findings{Functions: 1, Loops: 2, DynamicCode: 1, HostAccess: 1}, f)
	assert.Equal(t, 5, f.Total())

	_, clean := Report("doGravity(x, y, i);")
	assert.Zero(t, clean.Total())
}
