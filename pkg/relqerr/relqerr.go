// Package relqerr implements the four-kind error taxonomy of spec.md §7:
// build-time, plan-time, runtime-recoverable, and runtime-fatal. Every
// constructor wraps the underlying error with github.com/pkg/errors.Wrap
// so errors.Cause and "%+v" stack traces stay available in logs without
// changing the surfaced error's Is/As behavior (errors.Unwrap still
// reaches the original cause through pkg/errors's causer interface).
package relqerr

import (
	"github.com/pkg/errors"
)

// Kind is one of the four error-taxonomy rows of spec.md §7.
type Kind int

const (
	// Build is raised synchronously by the builder/compiler — unknown
	// alias, reserved $$-name misuse, duplicate Join alias, calling
	// aggregates without AllowAggregates, select/into/groupBy called more
	// than once, modification after finalize. The query is unusable.
	Build Kind = iota
	// Plan is raised by Finalize — unassigned terms after hoisting,
	// multi-store query, schema-incompatible set-operation children. The
	// query is unusable.
	Plan
	// Recoverable is emitted as an error on the tuple stream — a
	// duplicate key on insert, a cursor-level store error. The ambient
	// transaction aborts; downstream operators surface the error.
	Recoverable
	// Fatal is the same surfacing as Recoverable but no retry is ever
	// attempted — an evaluation exception inside a predicate/selector,
	// corrupt group state, executing on an already-settled transaction.
	Fatal
)

func (k Kind) String() string {
	switch k {
	case Build:
		return "build"
	case Plan:
		return "plan"
	case Recoverable:
		return "recoverable"
	case Fatal:
		return "fatal"
	default:
		return "unknown"
	}
}

// Error is the concrete type every relqerr constructor returns. Kind lets
// callers branch on the taxonomy row (e.g. the executor decides whether an
// ambient transaction should abort) without string-matching messages.
type Error struct {
	kind Kind
	err  error
}

func (e *Error) Error() string { return e.err.Error() }

// Unwrap exposes the wrapped cause to errors.Is/errors.As, and to
// pkg/errors.Cause via its own causer interface further down the chain.
func (e *Error) Unwrap() error { return e.err }

// Kind returns the taxonomy row this error belongs to.
func (e *Error) Kind() Kind { return e.kind }

func wrap(kind Kind, err error, msg string) error {
	if err == nil {
		return nil
	}
	return &Error{kind: kind, err: errors.Wrap(err, msg)}
}

func newf(kind Kind, format string, args ...any) error {
	return &Error{kind: kind, err: errors.Errorf(format, args...)}
}

// BuildError wraps err as a build-time error.
func BuildError(err error, msg string) error { return wrap(Build, err, msg) }

// PlanError wraps err as a plan-time error.
func PlanError(err error, msg string) error { return wrap(Plan, err, msg) }

// RecoverableError wraps err as a runtime-recoverable error.
func RecoverableError(err error, msg string) error { return wrap(Recoverable, err, msg) }

// FatalError wraps err as a runtime-fatal error.
func FatalError(err error, msg string) error { return wrap(Fatal, err, msg) }

// Buildf, Planf, Recoverablef, and Fatalf format a new error of the given
// kind directly from a message, for call sites with no underlying error
// to wrap (e.g. the builder's own validation checks).
func Buildf(format string, args ...any) error       { return newf(Build, format, args...) }
func Planf(format string, args ...any) error        { return newf(Plan, format, args...) }
func Recoverablef(format string, args ...any) error { return newf(Recoverable, format, args...) }
func Fatalf(format string, args ...any) error       { return newf(Fatal, format, args...) }

// KindOf reports the taxonomy row of err, walking Unwrap chains to find
// the nearest *Error, and false if err was never tagged by this package
// (e.g. a bare error from a Source implementation that never called one
// of the wrap constructors).
func KindOf(err error) (Kind, bool) {
	for err != nil {
		if e, ok := err.(*Error); ok {
			return e.kind, true
		}
		u, ok := err.(interface{ Unwrap() error })
		if !ok {
			return 0, false
		}
		err = u.Unwrap()
	}
	return 0, false
}
