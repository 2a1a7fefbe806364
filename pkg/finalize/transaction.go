package finalize

import (
	"fmt"

	"github.com/relq/relq/pkg/relalg"
)

// prepareTransaction implements sub-pass 2: collect the single persistent
// store backing the tree (erroring if more than one distinct store is
// touched), the source names it backs, and whether any Write node is
// present, then wrap the tree in a TransactionEnvelope. A tree with no
// persistent NamedSource is returned unwrapped.
func prepareTransaction(n relalg.Node, persistentStores map[string]string) (relalg.Node, error) {
	var handle string
	sourcesSeen := map[string]struct{}{}
	var sources []string
	hasWrite := false
	conflict := false

	relalg.Walk(n, func(node relalg.Node) {
		switch v := node.(type) {
		case relalg.NamedSource:
			h, ok := persistentStores[v.Name]
			if !ok {
				return
			}
			if handle == "" {
				handle = h
			} else if handle != h {
				conflict = true
			}
			if _, seen := sourcesSeen[v.Name]; !seen {
				sourcesSeen[v.Name] = struct{}{}
				sources = append(sources, v.Name)
			}
		case relalg.Write:
			hasWrite = true
		}
	})

	if handle == "" {
		return n, nil
	}
	if conflict {
		return nil, fmt.Errorf("finalize: query touches more than one persistent store")
	}

	mode := relalg.ReadOnly
	if hasWrite {
		mode = relalg.ReadWrite
	}
	return relalg.TransactionEnvelope{
		Child:       n,
		StoreHandle: handle,
		Stores:      sources,
		Mode:        mode,
	}, nil
}
