// Package rewrite patches a sanitized fragment so that it only references
// what the simulation actually provides for a particle with a given name and
// id.
package rewrite

import (
	"fmt"
	"regexp"
	"strconv"

	"github.com/specialistvlad/sandforge/internal/rules"
)

// SelfPlaceholder stands for the particle's own id in templates and
// fragments.
const SelfPlaceholder = "SELF"

var (
	// fireCheck matches a test for fire: an adjacency predicate against FIRE
	// or a comparison with FIRE. Writing FIRE does not count.
	fireCheck = regexp.MustCompile(`\b(?:horizontallyAdjacent|belowAdjacent|aboveAdjacent|isTouching)\s*\([^()]*\bFIRE\s*\)|[=!]==?\s*FIRE\b|\bFIRE\s*[=!]==?`)
	selfWord = regexp.MustCompile(`\b` + SelfPlaceholder + `\b`)

	touchingFire = regexp.MustCompile(`isTouching\s*\(\s*([^,()]+?)\s*,\s*([^,()]+?)\s*,(?:\s*[^,()]+?\s*,)?\s*FIRE\s*\)`)

	neighborWrite = regexp.MustCompile(`grid\s*\[\s*([^\]]+?)\s*\]\s*=\s*([A-Za-z_$][\w$]*)\s*;`)
	localDecl     = regexp.MustCompile(`\b(?:let|const|var)\s+([A-Za-z_$][\w$]*)`)
)

// Rewriter applies the patches in a fixed order.
type Rewriter struct {
	rules    *rules.Rules
	builtins map[string]uint32
}

// New returns a rewriter. builtins maps every built-in element identifier
// that fragments may reference to its id.
func New(r *rules.Rules, builtins map[string]uint32) *Rewriter {
	return &Rewriter{rules: r, builtins: builtins}
}

// Rewrite returns the patched fragment for the particle name with id.
func (rw *Rewriter) Rewrite(text, name string, id uint32) string {
	out, _ := rw.Explain(text, name, id)
	return out
}

// Explain is Rewrite that also lists the patches it applied.
func (rw *Rewriter) Explain(text, name string, id uint32) (string, []string) {
	var applied []string
	idText := strconv.FormatUint(uint64(id), 10)

	if rw.trivial(text) {
		tmpl, choice := rw.rules.TrivialTemplate(name)
		text = tmpl
		applied = append(applied, "template:"+choice)
	}

	if out := rw.resolveSelf(text, name, idText); out != text {
		text = out
		applied = append(applied, "self-reference")
	}

	if out := expandTouching(text); out != text {
		text = out
		applied = append(applied, "touching")
	}

	var notes []string
	text, notes = rw.checkNeighborWrites(text, idText)
	applied = append(applied, notes...)

	if rw.rules.InCategory("explosive", name) && !fireCheck.MatchString(text) {
		text = expandTouching(rw.rules.Explosion(text))
		applied = append(applied, "explosion")
	}
	return text, applied
}

func (rw *Rewriter) trivial(text string) bool {
	return len(rules.StripSpace(text)) < rw.rules.Thresholds.MinFragmentLength || rw.rules.IsDegenerate(text)
}

// resolveSelf replaces SELF and the particle's own name with its id. The name
// is left alone when it is a built-in identifier, which keeps references to
// that built-in intact.
func (rw *Rewriter) resolveSelf(text, name, idText string) string {
	text = selfWord.ReplaceAllLiteralString(text, idText)
	if name == "" {
		return text
	}
	if _, builtin := rw.builtins[name]; builtin {
		return text
	}
	own := regexp.MustCompile(`\b` + regexp.QuoteMeta(name) + `\b`)
	return own.ReplaceAllLiteralString(text, idText)
}

func expandTouching(text string) string {
	return touchingFire.ReplaceAllString(text,
		"(horizontallyAdjacent($1, $2, FIRE) || belowAdjacent($1, $2, FIRE) || aboveAdjacent($1, $2, FIRE))")
}

// checkNeighborWrites classifies identifiers written into cells other than
// the particle's own. Unknown identifiers become FIRE.
func (rw *Rewriter) checkNeighborWrites(text, idText string) (string, []string) {
	locals := make(map[string]struct{})
	for _, m := range localDecl.FindAllStringSubmatch(text, -1) {
		locals[m[1]] = struct{}{}
	}

	var notes []string
	out := neighborWrite.ReplaceAllStringFunc(text, func(stmt string) string {
		m := neighborWrite.FindStringSubmatch(stmt)
		idx, ident := m[1], m[2]
		if idx == "i" {
			return stmt
		}
		switch ident {
		case "FIRE", "BACKGROUND":
			return stmt
		case SelfPlaceholder:
			return fmt.Sprintf("grid[%s] = %s;", idx, idText)
		}
		if _, ok := rw.builtins[ident]; ok {
			return stmt
		}
		if _, ok := locals[ident]; ok {
			return stmt
		}
		notes = append(notes, "neighbor-write:"+ident+"->FIRE")
		return fmt.Sprintf("grid[%s] = FIRE;", idx)
	})
	return out, notes
}
