package relalg

import "testing"

func TestSchemaPropagation(t *testing.T) {
	join := InnerJoin{Left: NamedSource{Name: "thing"}, Right: NamedSource{Name: "type"}}
	got := join.Schema()
	want := []string{"thing", "type"}
	if len(got) != len(want) || got[0] != want[0] || got[1] != want[1] {
		t.Fatalf("InnerJoin.Schema() = %v, want %v", got, want)
	}

	anti := AntiJoin{Left: NamedSource{Name: "thing"}, Right: NamedSource{Name: "type"}}
	if got := anti.Schema(); len(got) != 1 || got[0] != "thing" {
		t.Fatalf("AntiJoin.Schema() = %v, want [thing]", got)
	}

	sel := Select{Child: NamedSource{Name: "thing"}}
	if got := sel.Schema(); len(got) != 1 || got[0] != RowName {
		t.Fatalf("Select.Schema() = %v, want [%s]", got, RowName)
	}
}

func TestRewriteReplacesMatchingNodes(t *testing.T) {
	tree := Where{
		Child: InnerJoin{
			Left:  NamedSource{Name: "thing"},
			Right: NamedSource{Name: "type"},
		},
	}
	out := Rewrite(Node(tree), func(n Node) Node {
		if src, ok := n.(NamedSource); ok && src.Name == "type" {
			return NamedSource{Name: "renamed"}
		}
		return n
	})
	w, ok := out.(Where)
	if !ok {
		t.Fatalf("expected Where at root, got %T", out)
	}
	join, ok := w.Child.(InnerJoin)
	if !ok {
		t.Fatalf("expected InnerJoin child, got %T", w.Child)
	}
	if join.Right.(NamedSource).Name != "renamed" {
		t.Fatalf("expected Rewrite to replace the nested NamedSource, got %v", join.Right)
	}
	if join.Left.(NamedSource).Name != "thing" {
		t.Fatalf("expected untouched sibling to remain %q, got %v", "thing", join.Left)
	}
}

func TestWalkVisitsEveryNode(t *testing.T) {
	tree := SetOperation{
		Left:  NamedSource{Name: "a"},
		Right: NamedSource{Name: "b"},
	}
	var seen []string
	Walk(tree, func(n Node) {
		if src, ok := n.(NamedSource); ok {
			seen = append(seen, src.Name)
		}
	})
	if len(seen) != 2 || seen[0] != "a" || seen[1] != "b" {
		t.Fatalf("Walk visited %v, want [a b]", seen)
	}
}

func TestExplainProducesTreeShape(t *testing.T) {
	tree := Where{Child: NamedSource{Name: "thing"}}
	out := Explain(tree)
	if !contains(out, "Where") || !contains(out, "└── NamedSource(thing, predicates=0, ranges=0)") {
		t.Fatalf("Explain output missing expected node labels: %q", out)
	}
}

func contains(s, sub string) bool {
	for i := 0; i+len(sub) <= len(s); i++ {
		if s[i:i+len(sub)] == sub {
			return true
		}
	}
	return false
}
