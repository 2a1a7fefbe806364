package relalg

import "fmt"

// TransactionMode is the read/read-write mode spec.md §4.4's
// TransactionEnvelope carries — read-write whenever the wrapped subtree
// contains a Write node, read otherwise.
type TransactionMode int

const (
	ReadOnly TransactionMode = iota
	ReadWrite
)

func (m TransactionMode) String() string {
	if m == ReadWrite {
		return "read-write"
	}
	return "read"
}

// TransactionEnvelope wraps Child so its execution happens inside one
// transaction scope. StoreHandle names the single persistent store any
// NamedSource beneath Child resolves to (prepareTransaction errors out if
// more than one distinct store is touched); Stores lists the source names
// that store backs. Whether the executor settles this transaction via
// auto-commit or leaves it open for an explicit caller-driven commit is a
// runtime decision (spec.md §4.7/§4.8), not a property recorded on the
// plan node itself.
type TransactionEnvelope struct {
	Child       Node
	StoreHandle string
	Stores      []string
	Mode        TransactionMode
}

func (t TransactionEnvelope) Schema() []string { return t.Child.Schema() }
func (t TransactionEnvelope) Children() []Node { return []Node{t.Child} }
func (t TransactionEnvelope) WithChildren(c []Node) Node {
	return TransactionEnvelope{Child: c[0], StoreHandle: t.StoreHandle, Stores: t.Stores, Mode: t.Mode}
}
func (t TransactionEnvelope) Explain() string {
	return fmt.Sprintf("TransactionEnvelope(%s, store=%s, sources=%v)", t.Mode, t.StoreHandle, t.Stores)
}
