package relalg

import "fmt"

// WriteMode names the mutation Write applies to each tuple it consumes
// from Child.
type WriteMode int

const (
	WriteInsert WriteMode = iota
	WriteUpdate
	WriteDelete
	WriteUpsert
)

func (m WriteMode) String() string {
	switch m {
	case WriteInsert:
		return "insert"
	case WriteUpdate:
		return "update"
	case WriteDelete:
		return "delete"
	case WriteUpsert:
		return "upsert"
	default:
		return "unknown"
	}
}

// Write applies Mode to Target for every tuple Child produces, yielding
// one tuple per record as the target store returned it (including any
// store-assigned key), bound under Target (so a write can sit inside a larger plan,
// e.g. as the child of a Select projecting the written rows back to the
// caller) — spec.md §4.6's mutation operations, threaded through the same
// tuple-stream executor as read-only queries.
type Write struct {
	Child  Node
	Target string
	Mode   WriteMode
}

func (w Write) Schema() []string           { return w.Child.Schema() }
func (w Write) Children() []Node           { return []Node{w.Child} }
func (w Write) WithChildren(c []Node) Node { return Write{Child: c[0], Target: w.Target, Mode: w.Mode} }
func (w Write) Explain() string            { return fmt.Sprintf("Write(%s %s)", w.Mode, w.Target) }
