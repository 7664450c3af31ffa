package fragment

import (
	"fmt"
	"strings"

	"github.com/hashicorp/hcl/v2"
	"github.com/hashicorp/hcl/v2/hclsyntax"
)

type stmt interface{ isStmt() }

type blockStmt struct{ body []stmt }

type ifStmt struct {
	cond hcl.Expression
	then stmt
	els  stmt
}

type declStmt struct {
	name  string
	value hcl.Expression // nil for a bare declaration
}

type storeStmt struct {
	index hcl.Expression
	value hcl.Expression
}

type assignStmt struct {
	name  string
	op    string // "=", "+=", "-="
	value hcl.Expression
}

type returnStmt struct{ value hcl.Expression }

type exprStmt struct{ expr hcl.Expression }

func (blockStmt) isStmt()  {}
func (ifStmt) isStmt()     {}
func (declStmt) isStmt()   {}
func (storeStmt) isStmt()  {}
func (assignStmt) isStmt() {}
func (returnStmt) isStmt() {}
func (exprStmt) isStmt()   {}

// SyntaxError reports where a fragment stopped making sense.
type SyntaxError struct {
	Offset int
	Msg    string
}

func (e *SyntaxError) Error() string {
	return fmt.Sprintf("syntax error at offset %d: %s", e.Offset, e.Msg)
}

type parser struct {
	src   string
	pos   int
	exprs []hcl.Expression
	decls map[string]struct{}
}

func parse(src string) (*parser, []stmt, error) {
	p := &parser{src: src, decls: make(map[string]struct{})}
	var body []stmt
	for {
		p.skipSpace()
		if p.eof() {
			return p, body, nil
		}
		s, err := p.statement()
		if err != nil {
			return nil, nil, err
		}
		if s != nil {
			body = append(body, s)
		}
	}
}

func (p *parser) errorf(format string, args ...any) error {
	return &SyntaxError{Offset: p.pos, Msg: fmt.Sprintf(format, args...)}
}

func (p *parser) eof() bool { return p.pos >= len(p.src) }

func (p *parser) peek() byte {
	if p.eof() {
		return 0
	}
	return p.src[p.pos]
}

func (p *parser) peekAt(off int) byte {
	if p.pos+off >= len(p.src) {
		return 0
	}
	return p.src[p.pos+off]
}

func (p *parser) skipSpace() {
	for !p.eof() {
		c := p.src[p.pos]
		switch {
		case c == ' ' || c == '\t' || c == '\n' || c == '\r':
			p.pos++
		case c == '/' && p.peekAt(1) == '/':
			if nl := strings.IndexByte(p.src[p.pos:], '\n'); nl >= 0 {
				p.pos += nl + 1
			} else {
				p.pos = len(p.src)
			}
		case c == '/' && p.peekAt(1) == '*':
			if end := strings.Index(p.src[p.pos+2:], "*/"); end >= 0 {
				p.pos += end + 4
			} else {
				p.pos = len(p.src)
			}
		default:
			return
		}
	}
}

func isIdentStart(c byte) bool {
	return c == '_' || c == '$' || (c >= 'a' && c <= 'z') || (c >= 'A' && c <= 'Z')
}

func isIdentPart(c byte) bool {
	return isIdentStart(c) || (c >= '0' && c <= '9')
}

// word returns the identifier at the cursor without consuming it.
func (p *parser) word() string {
	if p.eof() || !isIdentStart(p.src[p.pos]) {
		return ""
	}
	end := p.pos + 1
	for end < len(p.src) && isIdentPart(p.src[end]) {
		end++
	}
	return p.src[p.pos:end]
}

func (p *parser) expect(c byte) error {
	p.skipSpace()
	if p.peek() != c {
		if p.eof() {
			return p.errorf("expected %q, got end of fragment", c)
		}
		return p.errorf("expected %q, got %q", c, p.peek())
	}
	p.pos++
	return nil
}

func (p *parser) statement() (stmt, error) {
	p.skipSpace()
	switch p.peek() {
	case ';':
		p.pos++
		return nil, nil
	case '{':
		return p.block()
	}

	switch w := p.word(); w {
	case "if":
		return p.ifStatement()
	case "let", "const", "var":
		p.pos += len(w)
		return p.declaration()
	case "return":
		p.pos += len(w)
		return p.returnStatement()
	case "else":
		return nil, p.errorf("else without if")
	case "":
	default:
		if s, ok, err := p.tryStoreOrAssign(w); ok || err != nil {
			return s, err
		}
	}

	expr, err := p.expression(";}", true)
	if err != nil {
		return nil, err
	}
	p.endStatement()
	return exprStmt{expr: expr}, nil
}

func (p *parser) block() (stmt, error) {
	start := p.pos
	p.pos++ // {
	var body []stmt
	for {
		p.skipSpace()
		if p.eof() {
			p.pos = start
			return nil, p.errorf("unclosed block")
		}
		if p.peek() == '}' {
			p.pos++
			return blockStmt{body: body}, nil
		}
		s, err := p.statement()
		if err != nil {
			return nil, err
		}
		if s != nil {
			body = append(body, s)
		}
	}
}

func (p *parser) ifStatement() (stmt, error) {
	p.pos += len("if")
	p.skipSpace()
	if p.peek() != '(' {
		return nil, p.errorf("expected ( after if")
	}
	closing := matchBracket(p.src, p.pos, '(', ')')
	if closing < 0 {
		return nil, p.errorf("unclosed if condition")
	}
	cond, err := p.compile(p.src[p.pos+1 : closing])
	if err != nil {
		return nil, err
	}
	p.pos = closing + 1

	then, err := p.statement()
	if err != nil {
		return nil, err
	}
	s := ifStmt{cond: cond, then: then}

	save := p.pos
	p.skipSpace()
	if p.word() == "else" {
		p.pos += len("else")
		if s.els, err = p.statement(); err != nil {
			return nil, err
		}
	} else {
		p.pos = save
	}
	return s, nil
}

func (p *parser) declaration() (stmt, error) {
	p.skipSpace()
	name := p.word()
	if name == "" {
		return nil, p.errorf("expected a variable name")
	}
	p.pos += len(name)
	p.decls[name] = struct{}{}
	p.skipSpace()

	if p.peek() == ';' {
		p.pos++
		return declStmt{name: name}, nil
	}
	if p.peek() != '=' || p.peekAt(1) == '=' {
		return nil, p.errorf("expected = in declaration of %s", name)
	}
	p.pos++
	value, err := p.expression(";}", true)
	if err != nil {
		return nil, err
	}
	p.endStatement()
	return declStmt{name: name, value: value}, nil
}

func (p *parser) returnStatement() (stmt, error) {
	p.skipSpace()
	if p.peek() == ';' || p.peek() == '}' || p.eof() {
		p.endStatement()
		return returnStmt{}, nil
	}
	value, err := p.expression(";}", true)
	if err != nil {
		return nil, err
	}
	p.endStatement()
	return returnStmt{value: value}, nil
}

// tryStoreOrAssign handles grid[e] = v; and name op v; statements. It
// rewinds and reports false when the statement is something else.
func (p *parser) tryStoreOrAssign(w string) (stmt, bool, error) {
	save := p.pos
	p.pos += len(w)
	p.skipSpace()

	if w == "grid" && p.peek() == '[' {
		closing := matchBracket(p.src, p.pos, '[', ']')
		if closing < 0 {
			return nil, false, p.errorf("unclosed grid index")
		}
		indexSrc := p.src[p.pos+1 : closing]
		p.pos = closing + 1
		p.skipSpace()
		if p.peek() == '=' && p.peekAt(1) != '=' {
			p.pos++
			index, err := p.compile(indexSrc)
			if err != nil {
				return nil, true, err
			}
			value, err := p.expression(";}", true)
			if err != nil {
				return nil, true, err
			}
			p.endStatement()
			return storeStmt{index: index, value: value}, true, nil
		}
		p.pos = save
		return nil, false, nil
	}

	var op string
	switch {
	case p.peek() == '=' && p.peekAt(1) != '=':
		op = "="
	case p.peekAt(1) == '=' && (p.peek() == '+' || p.peek() == '-'):
		op = p.src[p.pos : p.pos+2]
	case (p.peek() == '+' && p.peekAt(1) == '+') || (p.peek() == '-' && p.peekAt(1) == '-'):
		op = p.src[p.pos:p.pos+1] + "="
		p.pos += 2
		p.endStatement()
		one, err := p.compile("1")
		if err != nil {
			return nil, true, err
		}
		return assignStmt{name: w, op: op, value: one}, true, nil
	default:
		p.pos = save
		return nil, false, nil
	}
	p.pos += len(op)
	value, err := p.expression(";}", true)
	if err != nil {
		return nil, true, err
	}
	p.endStatement()
	return assignStmt{name: w, op: op, value: value}, true, nil
}

// endStatement consumes an optional semicolon.
func (p *parser) endStatement() {
	p.skipSpace()
	if p.peek() == ';' {
		p.pos++
	}
}

// expression scans to the first terminator outside brackets and strings and
// compiles the text in between. With newlineEnds, a line break ends the
// expression when neither side of it continues an operator.
func (p *parser) expression(terminators string, newlineEnds bool) (hcl.Expression, error) {
	start := p.pos
	depth := 0
	k := p.pos
scan:
	for ; k < len(p.src); k++ {
		c := p.src[k]
		switch {
		case c == '"' || c == '\'':
			k = skipString(p.src, k, c) - 1
		case c == '/' && k+1 < len(p.src) && p.src[k+1] == '/':
			break scan
		case c == '/' && k+1 < len(p.src) && p.src[k+1] == '*':
			if end := strings.Index(p.src[k+2:], "*/"); end >= 0 {
				k += end + 3
			} else {
				k = len(p.src) - 1
			}
		case c == '(' || c == '[':
			depth++
		case c == ')' || c == ']':
			if depth == 0 {
				break scan
			}
			depth--
		case depth == 0 && strings.IndexByte(terminators, c) >= 0:
			break scan
		case depth == 0 && newlineEnds && c == '\n' && lineEnds(p.src[start:k], p.src[k:]):
			break scan
		}
	}
	text := strings.TrimSpace(p.src[start:k])
	p.pos = k
	if text == "" {
		return nil, p.errorf("expected an expression")
	}
	return p.compile(text)
}

const continuation = "+-*/%&|=<>!?:,.("

func lineEnds(before, after string) bool {
	b := strings.TrimRight(before, " \t\r")
	for strings.HasSuffix(b, "*/") {
		open := strings.LastIndex(b, "/*")
		if open < 0 {
			break
		}
		b = strings.TrimRight(b[:open], " \t\r")
	}
	a := skipLeadingComments(after)
	if a == "" {
		return true
	}
	// Nothing scanned yet: the expression starts on a later line.
	if b == "" {
		return false
	}
	return !strings.ContainsRune(continuation, rune(b[len(b)-1])) &&
		!strings.ContainsRune(continuation, rune(a[0]))
}

func skipLeadingComments(s string) string {
	for {
		s = strings.TrimLeft(s, " \t\r\n")
		switch {
		case strings.HasPrefix(s, "//"):
			nl := strings.IndexByte(s, '\n')
			if nl < 0 {
				return ""
			}
			s = s[nl:]
		case strings.HasPrefix(s, "/*"):
			end := strings.Index(s, "*/")
			if end < 0 {
				return ""
			}
			s = s[end+2:]
		default:
			return s
		}
	}
}

func (p *parser) compile(src string) (hcl.Expression, error) {
	text := translate(strings.TrimSpace(src))
	if text == "" {
		return nil, p.errorf("empty expression")
	}
	expr, diags := hclsyntax.ParseExpression([]byte(text), "fragment", hcl.Pos{Line: 1, Column: 1, Byte: 0})
	if diags.HasErrors() {
		return nil, p.errorf("invalid expression %q: %s", strings.TrimSpace(src), diags.Error())
	}
	p.exprs = append(p.exprs, expr)
	return expr, nil
}
