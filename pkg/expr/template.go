package expr

import (
	"fmt"
	"strings"

	"github.com/relq/relq/pkg/value"
)

// Template is the builder→compiler wire contract of spec.md §6.1/§9: either
// a plain source fragment (Fragments has length 1, Subs empty) or an
// ordered array of fragments interleaved with substitution values
// (len(Fragments) == len(Subs)+1).
type Template struct {
	Fragments []string
	Subs      []value.Value
}

// Plain builds a Template from a single fragment with no substitutions.
func Plain(src string) Template { return Template{Fragments: []string{src}} }

// Tagged builds a Template from fragments interleaved with substitutions,
// mirroring a tagged-template call fragments[0] + subs[0] + fragments[1] +
// subs[1] + ... (spec.md §9's "template fragments as expressions").
func Tagged(fragments []string, subs []value.Value) Template {
	return Template{Fragments: fragments, Subs: subs}
}

// stitch concatenates the template's fragments, replacing each
// substitution slot with a "$$subs[i]" reference numbered from
// baseOffset, per spec.md §4.1(1). compileCore always passes 0: each
// compiled Expression keeps its own substitution slice rather than
// indexing into a table shared across TermGroups.
func (t Template) stitch(baseOffset int) (string, error) {
	if len(t.Fragments) == 0 {
		return "", fmt.Errorf("expr: empty template")
	}
	if len(t.Fragments) != len(t.Subs)+1 {
		return "", fmt.Errorf("expr: template has %d fragments but %d substitutions (want %d fragments)",
			len(t.Fragments), len(t.Subs), len(t.Subs)+1)
	}
	var sb strings.Builder
	sb.WriteString(t.Fragments[0])
	for i := range t.Subs {
		fmt.Fprintf(&sb, "$$subs[%d]", baseOffset+i)
		sb.WriteString(t.Fragments[i+1])
	}
	return sb.String(), nil
}
