// Package sanitize neutralizes the constructs in a generated fragment that
// are known to break the simulation: nested callable definitions, unbounded
// loops, dynamic code evaluation, timers, and host object access.
//
// It is a denylist text filter. Every step is idempotent, so sanitizing an
// already sanitized fragment returns it unchanged.
package sanitize

import (
	"regexp"
	"strings"
)

// Findings counts what Sanitize neutralized, by class.
type Findings struct {
	Functions   int
	Loops       int
	DynamicCode int
	HostAccess  int
}

// Total is the number of neutralized constructs.
func (f Findings) Total() int {
	return f.Functions + f.Loops + f.DynamicCode + f.HostAccess
}

var (
	funcDecl  = regexp.MustCompile(`\bfunction\b\s*[A-Za-z_$]?[\w$]*\s*\(`)
	funcBind  = regexp.MustCompile(`\b(?:const|let|var)\s+[A-Za-z_$][\w$]*\s*=\s*(?:async\s+)?function\b`)
	arrowBind = regexp.MustCompile(`\b(?:const|let|var)\s+[A-Za-z_$][\w$]*\s*=\s*(?:async\s+)?(?:\([^()]*\)|[A-Za-z_$][\w$]*)\s*=>\s*`)

	forHead   = regexp.MustCompile(`\bfor\s*\(`)
	whileHead = regexp.MustCompile(`\bwhile\s*\(`)
	doHead    = regexp.MustCompile(`\bdo\b\s*(?:do\b\s*)*\{`)

	dynamicCall = regexp.MustCompile(`(?:\bnew\s+Function|\bFunction|\beval|\bsetTimeout|\bsetInterval|\bsetImmediate|\brequestAnimationFrame)\s*\(`)

	hostAccess = regexp.MustCompile(`\b(?:window|document|globalThis|global|self|process|navigator|localStorage|sessionStorage|parent|top|frames|location)\s*([.\[])`)
)

// Sanitize returns text with every dangerous construct neutralized.
func Sanitize(text string) string {
	out, _ := run(text)
	return out
}

// Report sanitizes text and also returns what was neutralized.
func Report(text string) (string, Findings) {
	return run(text)
}

func run(text string) (string, Findings) {
	var f Findings
	text = removeDefinitions(text, &f)
	text = flattenLoops(text, &f)
	text = neutralizeDynamic(text, &f)
	text = neutralizeHost(text, &f)
	return text, f
}

// removeDefinitions cuts named or bound functions and arrow functions,
// including their bodies.
func removeDefinitions(text string, f *Findings) string {
	for {
		start, end, ok := nextDefinition(text)
		if !ok {
			return text
		}
		f.Functions++
		text = text[:start] + text[end:]
	}
}

func nextDefinition(text string) (int, int, bool) {
	best := -1
	var end int

	consider := func(start, stop int) {
		if best == -1 || start < best {
			best, end = start, stop
		}
	}

	// Bindings are checked first so the leading "const f =" goes with them.
	if loc := funcBind.FindStringIndex(text); loc != nil {
		consider(loc[0], bodyEnd(text, loc[1]))
	}
	if loc := arrowBind.FindStringIndex(text); loc != nil {
		consider(loc[0], arrowEnd(text, loc[1]))
	}
	if loc := funcDecl.FindStringIndex(text); loc != nil {
		consider(loc[0], bodyEnd(text, loc[0]))
	}
	if best == -1 {
		return 0, 0, false
	}
	return best, end, true
}

// bodyEnd returns the index just past the brace block that follows from, or
// the end of text when the block is not closed.
func bodyEnd(text string, from int) int {
	open := strings.IndexByte(text[from:], '{')
	if open < 0 {
		return lineEnd(text, from)
	}
	closing := matchBrace(text, from+open)
	if closing < 0 {
		return len(text)
	}
	end := closing + 1
	if end < len(text) && text[end] == ';' {
		end++
	}
	return end
}

func arrowEnd(text string, from int) int {
	rest := strings.TrimLeft(text[from:], " \t")
	if strings.HasPrefix(rest, "{") {
		return bodyEnd(text, from)
	}
	if semi := strings.IndexByte(text[from:], ';'); semi >= 0 {
		return from + semi + 1
	}
	return lineEnd(text, from)
}

func lineEnd(text string, from int) int {
	if nl := strings.IndexByte(text[from:], '\n'); nl >= 0 {
		return from + nl
	}
	return len(text)
}

func matchBrace(text string, open int) int {
	depth := 0
	for k := open; k < len(text); k++ {
		switch text[k] {
		case '{':
			depth++
		case '}':
			depth--
			if depth == 0 {
				return k
			}
		}
	}
	return -1
}

func matchParen(text string, open int) int {
	depth := 0
	for k := open; k < len(text); k++ {
		switch text[k] {
		case '(':
			depth++
		case ')':
			depth--
			if depth == 0 {
				return k
			}
		}
	}
	return -1
}

// flattenLoops turns every loop into a conditional that runs at most once.
func flattenLoops(text string, f *Findings) string {
	for {
		loc := forHead.FindStringIndex(text)
		if loc == nil {
			break
		}
		f.Loops++
		closing := matchParen(text, loc[1]-1)
		if closing < 0 {
			text = text[:loc[0]] + "if (true)"
			break
		}
		text = text[:loc[0]] + "if (true)" + text[closing+1:]
	}

	f.Loops += len(whileHead.FindAllStringIndex(text, -1))
	text = whileHead.ReplaceAllString(text, "if (")

	f.Loops += len(doHead.FindAllStringIndex(text, -1))
	return doHead.ReplaceAllString(text, "{")
}

func neutralizeDynamic(text string, f *Findings) string {
	f.DynamicCode += len(dynamicCall.FindAllStringIndex(text, -1))
	return dynamicCall.ReplaceAllString(text, "console.log(")
}

func neutralizeHost(text string, f *Findings) string {
	f.HostAccess += len(hostAccess.FindAllStringIndex(text, -1))
	return hostAccess.ReplaceAllString(text, "inert$1")
}
