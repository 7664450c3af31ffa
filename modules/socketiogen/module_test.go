package socketiogen

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/specialistvlad/sandforge/internal/generator"
	"github.com/specialistvlad/sandforge/internal/particle"
)

// fakeConn plays a server: connecting fires "connect", and emitting the
// request triggers the scripted reply.
type fakeConn struct {
	mu       sync.Mutex
	handlers map[string]func(...any)
	refuse   error
	reply    func(c *fakeConn, args ...any)
	emitted  []any
	closed   bool
}

func (c *fakeConn) on(event string, fn func(...any)) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.handlers[event] = fn
}

func (c *fakeConn) fire(event string, args ...any) {
	c.mu.Lock()
	fn := c.handlers[event]
	c.mu.Unlock()
	if fn != nil {
		fn(args...)
	}
}

func (c *fakeConn) emit(event string, args ...any) {
	c.mu.Lock()
	c.emitted = append(c.emitted, event)
	c.emitted = append(c.emitted, args...)
	c.mu.Unlock()
	if c.reply != nil {
		go c.reply(c, args...)
	}
}

func (c *fakeConn) connect() {
	go func() {
		if c.refuse != nil {
			c.fire("connect_error", c.refuse)
			return
		}
		c.fire("connect")
	}()
}

func (c *fakeConn) disconnect() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.closed = true
}

func newClient(t *testing.T, fc *fakeConn) *Client {
	t.Helper()
	c, err := New(generator.Options{URL: "http://localhost:3000/socket.io/", Timeout: 200 * time.Millisecond})
	require.NoError(t, err)
	fc.handlers = make(map[string]func(...any))
	c.dial = func() conn { return fc }
	return c
}

func TestGenerate(t *testing.T) {
	t.Parallel()
	fc := &fakeConn{reply: func(c *fakeConn, args ...any) {
		req := args[0].(map[string]any)
		c.fire(EventParticle, map[string]any{
			"name":        req["name"],
			"color":       []any{float64(10), float64(200), float64(120)},
			"action_code": "doGravity(x, y, i);",
		})
	}}
	c := newClient(t, fc)

	d, err := c.Generate(context.Background(), "glitter")
	require.NoError(t, err)
	assert.Equal(t, "GLITTER", d.Name)
	assert.Equal(t, particle.Color{10, 200, 120}, d.Color)

	fc.mu.Lock()
	defer fc.mu.Unlock()
	assert.Equal(t, EventGenerate, fc.emitted[0])
	assert.Equal(t, map[string]any{"name": "glitter"}, fc.emitted[1])
	assert.True(t, fc.closed)
}

func TestGenerateFailures(t *testing.T) {
	t.Parallel()

	cases := map[string]struct {
		conn *fakeConn
		op   string
		msg  string
	}{
		"connection refused": {
			conn: &fakeConn{refuse: errors.New("dial tcp: refused")},
			op:   "connect", msg: "refused",
		},
		"server error event": {
			conn: &fakeConn{reply: func(c *fakeConn, _ ...any) {
				c.fire(EventError, map[string]any{"message": "model overloaded"})
			}},
			op: "response", msg: "model overloaded",
		},
		"malformed payload": {
			conn: &fakeConn{reply: func(c *fakeConn, _ ...any) {
				c.fire(EventParticle, map[string]any{"name": "X", "color": "red", "action_code": "a"})
			}},
			op: "decode", msg: "malformed color",
		},
		"no reply": {
			conn: &fakeConn{},
			op:   "request", msg: "waiting for event 'particle'",
		},
	}
	for name, tc := range cases {
		t.Run(name, func(t *testing.T) {
			c := newClient(t, tc.conn)
			_, err := c.Generate(context.Background(), "X")
			var genErr *particle.GenerationError
			require.ErrorAs(t, err, &genErr)
			assert.Equal(t, tc.op, genErr.Op)
			assert.ErrorContains(t, err, tc.msg)
		})
	}
}

func TestNewValidatesURL(t *testing.T) {
	for _, u := range []string{"", "localhost", "://bad"} {
		_, err := New(generator.Options{URL: u})
		assert.Error(t, err, "url %q", u)
	}
	b := generator.NewBackends().Install(Module{})
	_, err := b.New(context.Background(), Kind, generator.Options{URL: "ws://localhost:3000"})
	assert.NoError(t, err)
}

func TestArgError(t *testing.T) {
	assert.EqualError(t, argError(nil), "no details")
	assert.EqualError(t, argError([]any{"boom"}), "boom")
	assert.EqualError(t, argError([]any{42}), "42")
}
