// Package expr implements the query language's expression compiler:
// lexing, recursive-descent parsing, and the compilation passes of
// spec.md §4.1(3) that turn a parsed tree into one or more Terms, each
// carrying a compiled, per-tuple-evaluable Expression, a dependency set,
// and any KeyRanges extractable from its shape.
//
// Grounded on dianpeng-sql2awk/sql (lexer/parser structure) and
// utkarsh5026-StoreMy/pkg/planner (rewrite-pass style: small, ordered,
// independently testable tree transforms).
package expr

import "fmt"

func exprErrorf(format string, args ...any) error {
	return fmt.Errorf("expr: "+format, args...)
}
