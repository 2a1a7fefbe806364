package relalg

import (
	"fmt"
	"strings"
)

// Explain returns a tree-like visualization of the plan rooted at n.
//
// Grounded on utkarsh5026-StoreMy/pkg/plan's PlanVisualizer.
func Explain(n Node) string {
	return explainNode(n, "", true, true)
}

func explainNode(n Node, prefix string, isLast, isRoot bool) string {
	var sb strings.Builder
	switch {
	case isRoot:
		// root node: no connector
	case isLast:
		sb.WriteString(prefix + "└── ")
	default:
		sb.WriteString(prefix + "├── ")
	}
	sb.WriteString(fmt.Sprintf("%s\n", n.Explain()))

	children := n.Children()
	for i, c := range children {
		childPrefix := prefix
		switch {
		case isRoot:
			childPrefix = ""
		case isLast:
			childPrefix += "    "
		default:
			childPrefix += "│   "
		}
		sb.WriteString(explainNode(c, childPrefix, i == len(children)-1, false))
	}
	return sb.String()
}
