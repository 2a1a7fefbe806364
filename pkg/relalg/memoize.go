package relalg

import "fmt"

// Memoize marks Child's output stream for single-materialization replay:
// the first consumer to pull from it drives the underlying Child stream to
// completion while every tuple is recorded, and every subsequent consumer
// (or a rewind of the same consumer) replays the recording instead of
// re-running Child. Key identifies this Memoize node for the executor's
// replay cache — spec.md §4.8's CompositeUnion/shared-subplan reuse
// relies on this to avoid re-scanning a source referenced from more than
// one place in the same query.
type Memoize struct {
	Child Node
	Key   string
}

func (m Memoize) Schema() []string           { return m.Child.Schema() }
func (m Memoize) Children() []Node           { return []Node{m.Child} }
func (m Memoize) WithChildren(c []Node) Node { return Memoize{Child: c[0], Key: m.Key} }
func (m Memoize) Explain() string            { return fmt.Sprintf("Memoize(%s)", m.Key) }
