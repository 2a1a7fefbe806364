// Package relqlog is the structured-logging seam every ambient component
// (pkg/txn, pkg/exec, pkg/finalize, cmd/relq) accepts through a functional
// option, defaulting to a no-op logger so the engine is silent unless a
// caller opts in — grounded on go.uber.org/zap (the dependency-stack
// donor is dolthub-dolt's go.mod; the teacher's own pkg/logging wraps
// log/slog behind a similar Init/GetLogger seam, generalized here to a
// per-component option instead of one process-wide global).
package relqlog

import "go.uber.org/zap"

// Logger is the handle every component logs through.
type Logger = *zap.Logger

// Nop returns a logger that discards everything, the default every
// component falls back to absent a WithLogger option.
func Nop() Logger { return zap.NewNop() }

// Options accumulates the functional options passed to a component
// constructor.
type Options struct {
	logger Logger
}

// Option configures a component's logger.
type Option func(*Options)

// WithLogger installs l as the component's logger, overriding the no-op
// default.
func WithLogger(l Logger) Option {
	return func(o *Options) { o.logger = l }
}

// Resolve applies opts over the no-op default and returns the logger a
// component should use.
func Resolve(opts ...Option) Logger {
	o := &Options{logger: Nop()}
	for _, opt := range opts {
		opt(o)
	}
	return o.logger
}
