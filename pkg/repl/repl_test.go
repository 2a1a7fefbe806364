package repl

import (
	"strings"
	"testing"

	"github.com/relq/relq/pkg/engine"
	"github.com/relq/relq/pkg/store"
	"github.com/relq/relq/pkg/store/memstore"
)

func newTestEngine() *engine.Engine {
	e := engine.New()
	st := memstore.New(map[string]store.SourceSpec{
		"users": {KeyPath: store.KeyPath{"id"}},
	})
	e.Register("main", st)
	return e
}

func TestRunPutThenScanRoundTrips(t *testing.T) {
	e := newTestEngine()
	in := strings.NewReader("put users id=1,name=ada\nscan users\nquit\n")
	var out strings.Builder
	Run(e, in, &out)

	got := out.String()
	if !strings.Contains(got, "ok") {
		t.Fatalf("expected put to report ok, got %q", got)
	}
	if !strings.Contains(got, "ada") {
		t.Fatalf("expected the scanned row to include ada, got %q", got)
	}
}

func TestRunUnknownCommandReportsUsage(t *testing.T) {
	e := newTestEngine()
	in := strings.NewReader("bogus\nquit\n")
	var out strings.Builder
	Run(e, in, &out)

	if !strings.Contains(out.String(), "unrecognized command") {
		t.Fatalf("expected an unrecognized-command message, got %q", out.String())
	}
}

func TestRunPutUnknownSourceReportsError(t *testing.T) {
	e := newTestEngine()
	in := strings.NewReader("put ghosts id=1\nquit\n")
	var out strings.Builder
	Run(e, in, &out)

	if !strings.Contains(out.String(), "not a registered source") {
		t.Fatalf("expected a not-registered-source error, got %q", out.String())
	}
}
