package fragment

import (
	"regexp"
	"strings"
)

var (
	strictEq    = regexp.MustCompile(`===`)
	strictNe    = regexp.MustCompile(`!==`)
	mathPI      = regexp.MustCompile(`\bMath\s*\.\s*PI\b`)
	mathCall    = regexp.MustCompile(`\bMath\s*\.\s*([A-Za-z_]\w*)\s*\(`)
	consoleCall = regexp.MustCompile(`\bconsole\s*\.\s*(?:log|warn|error|info|debug)\s*\(`)
	inertCall   = regexp.MustCompile(`\binert\s*\.\s*[A-Za-z_$][\w$]*\s*\(`)
	gridLength  = regexp.MustCompile(`\bgrid\s*\.\s*length\b`)
	undefinedID = regexp.MustCompile(`\bundefined\b`)
	gridIndex   = regexp.MustCompile(`\bgrid\s*\[`)
	// HCL identifiers may contain dashes, so "i-1" would be one name.
	tightMinus = regexp.MustCompile(`([\w\)\]])-([\w(.])`)
	// 1e-3 is one literal, not a subtraction.
	negExponent = regexp.MustCompile(`\b(\d+\.?\d*[eE])-(\d)`)
)

// exponentMark stands in for the minus of a negative exponent while
// tightMinus runs.
const exponentMark = "\x00"

// translate rewrites a JavaScript-flavored expression into HCL expression
// syntax. It does not validate; the HCL parser does that.
func translate(expr string) string {
	expr = singleToDoubleQuotes(expr)
	expr = strictEq.ReplaceAllString(expr, "==")
	expr = strictNe.ReplaceAllString(expr, "!=")
	expr = mathPI.ReplaceAllString(expr, "3.141592653589793")
	expr = mathCall.ReplaceAllString(expr, "$1(")
	expr = consoleCall.ReplaceAllString(expr, "log(")
	expr = inertCall.ReplaceAllString(expr, "inert(")
	expr = gridLength.ReplaceAllString(expr, "(width * height)")
	expr = undefinedID.ReplaceAllString(expr, "null")
	expr = gridReads(expr)
	expr = negExponent.ReplaceAllString(expr, "${1}"+exponentMark+"$2")
	// Applied twice because matches cannot overlap ("a-b-c").
	expr = tightMinus.ReplaceAllString(expr, "$1 - $2")
	expr = tightMinus.ReplaceAllString(expr, "$1 - $2")
	return strings.ReplaceAll(expr, exponentMark, "-")
}

// gridReads turns every grid[e] into cell(e), innermost first.
func gridReads(expr string) string {
	for {
		loc := gridIndex.FindStringIndex(expr)
		if loc == nil {
			return expr
		}
		open := loc[1] - 1
		closing := matchBracket(expr, open, '[', ']')
		if closing < 0 {
			return expr
		}
		inner := gridReads(expr[open+1 : closing])
		expr = expr[:loc[0]] + "cell(" + inner + ")" + expr[closing+1:]
	}
}

func matchBracket(s string, open int, lb, rb byte) int {
	depth := 0
	var quote byte
	for k := open; k < len(s); k++ {
		c := s[k]
		if quote != 0 {
			if c == '\\' {
				k++
			} else if c == quote {
				quote = 0
			}
			continue
		}
		switch c {
		case '"', '\'':
			quote = c
		case lb:
			depth++
		case rb:
			depth--
			if depth == 0 {
				return k
			}
		}
	}
	return -1
}

// singleToDoubleQuotes converts 'text' literals to "text" when the text has
// no double quote of its own.
func singleToDoubleQuotes(expr string) string {
	if !strings.ContainsRune(expr, '\'') {
		return expr
	}
	var b strings.Builder
	for k := 0; k < len(expr); k++ {
		c := expr[k]
		switch c {
		case '"':
			end := skipString(expr, k, '"')
			b.WriteString(expr[k:end])
			k = end - 1
		case '\'':
			end := skipString(expr, k, '\'')
			body := expr[k+1 : max(k+1, end-1)]
			if end <= len(expr) && end-1 > k && expr[end-1] == '\'' && !strings.ContainsRune(body, '"') {
				b.WriteByte('"')
				b.WriteString(body)
				b.WriteByte('"')
			} else {
				b.WriteString(expr[k:end])
			}
			k = end - 1
		default:
			b.WriteByte(c)
		}
	}
	return b.String()
}

// skipString returns the index just past the string literal starting at
// start, or len(s) when it is not closed.
func skipString(s string, start int, quote byte) int {
	for k := start + 1; k < len(s); k++ {
		switch s[k] {
		case '\\':
			k++
		case quote:
			return k + 1
		}
	}
	return len(s)
}
