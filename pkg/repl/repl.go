// Package repl is the line-oriented command loop shared by the module's
// two entrypoints (root main.go and cmd/relq/main.go): both bootstrap a
// pkg/engine.Engine from a config file and hand it to Run, so neither
// entrypoint carries its own copy of the scan/where/put grammar.
//
// It replaces the teacher's bubbletea/lipgloss terminal UI with a plain
// stdin loop, since composable query trees over pluggable stores (THE
// CORE's own domain) have nothing to do with terminal rendering —
// grounded on the teacher's flag.Parse/log.Fatalf bootstrapping shape,
// not its UI layer.
package repl

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/relq/relq/pkg/engine"
	"github.com/relq/relq/pkg/exec"
	"github.com/relq/relq/pkg/expr"
	"github.com/relq/relq/pkg/query"
	"github.com/relq/relq/pkg/rangeset"
	"github.com/relq/relq/pkg/relalg"
	"github.com/relq/relq/pkg/stream"
	"github.com/relq/relq/pkg/value"
)

// Run reads commands from in, one per line, until in is exhausted or a
// `quit`/`exit` line is read, writing results and errors to out.
func Run(e *engine.Engine, in io.Reader, out io.Writer) {
	scanner := bufio.NewScanner(in)
	for {
		fmt.Fprint(out, "relq> ")
		if !scanner.Scan() {
			return
		}
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}
		fields := strings.SplitN(line, " ", 3)
		switch fields[0] {
		case "quit", "exit":
			return
		case "help":
			printHelp(out)
		case "scan":
			runScan(e, out, fields)
		case "where":
			runWhere(e, out, fields)
		case "put":
			runPut(e, out, fields)
		default:
			fmt.Fprintf(out, "unrecognized command %q — try `help`\n", fields[0])
		}
	}
}

func printHelp(out io.Writer) {
	fmt.Fprintln(out, "  scan <source>                      print every tuple in <source>")
	fmt.Fprintln(out, "  where <source> <expr>               print tuples matching <expr>, e.g. where users users.id == 2")
	fmt.Fprintln(out, "  put <source> k=v,k=v                insert one record into <source>")
	fmt.Fprintln(out, "  quit                                 exit")
}

func runScan(e *engine.Engine, out io.Writer, fields []string) {
	if len(fields) < 2 {
		fmt.Fprintln(out, "usage: scan <source>")
		return
	}
	tree, err := query.From(fields[1]).Build()
	if err != nil {
		fmt.Fprintln(out, "error:", err)
		return
	}
	printResults(e, out, tree)
}

func runWhere(e *engine.Engine, out io.Writer, fields []string) {
	if len(fields) < 3 {
		fmt.Fprintln(out, "usage: where <source> <expr>")
		return
	}
	tree, err := query.From(fields[1]).Where(expr.Plain(fields[2])).Build()
	if err != nil {
		fmt.Fprintln(out, "error:", err)
		return
	}
	printResults(e, out, tree)
}

func runPut(e *engine.Engine, out io.Writer, fields []string) {
	if len(fields) < 3 {
		fmt.Fprintln(out, "usage: put <source> k=v,k=v,...")
		return
	}
	source := fields[1]
	record, err := parseRecord(fields[2])
	if err != nil {
		fmt.Fprintln(out, "error:", err)
		return
	}
	built, err := query.From("_input").Insert(source).Build()
	if err != nil {
		fmt.Fprintln(out, "error:", err)
		return
	}
	// Insert's child ("_input") is a literal, not the persistent source
	// named by Target, so prepareTransaction's NamedSource walk (which
	// only ever looks at NamedSource nodes, never Write.Target) can't
	// detect that this tree touches source — the envelope has to be
	// built by hand instead of relying on Finalize's auto-wrap.
	handle, ok := e.PersistentStores()[source]
	if !ok {
		fmt.Fprintf(out, "error: %q is not a registered source\n", source)
		return
	}
	tree := relalg.TransactionEnvelope{
		Child:       built,
		StoreHandle: handle,
		Stores:      []string{source},
		Mode:        relalg.ReadWrite,
	}
	literals := map[string]exec.Source{
		"_input": singleRowSource{row: value.RecordValue(record)},
	}
	s, err := e.Run(context.Background(), tree, nil, literals)
	if err != nil {
		fmt.Fprintln(out, "error:", err)
		return
	}
	if _, err := drainAll(out, s); err != nil {
		fmt.Fprintln(out, "error:", err)
		return
	}
	fmt.Fprintln(out, "ok")
}

// parseRecord turns "k=v,k=v" into a value.Record, treating a value
// parseable as a float64 as value.Number and everything else as
// value.String — the REPL has no schema to consult, unlike expr.Compile
// which always type-checks against one.
func parseRecord(s string) (value.Record, error) {
	out := value.Record{}
	for _, pair := range strings.Split(s, ",") {
		kv := strings.SplitN(pair, "=", 2)
		if len(kv) != 2 {
			return nil, fmt.Errorf("malformed field %q, want k=v", pair)
		}
		key := strings.TrimSpace(kv[0])
		raw := strings.TrimSpace(kv[1])
		if n, err := strconv.ParseFloat(raw, 64); err == nil {
			out[key] = value.Number(n)
		} else {
			out[key] = value.String(raw)
		}
	}
	return out, nil
}

func printResults(e *engine.Engine, out io.Writer, tree relalg.Node) {
	s, err := e.Run(context.Background(), tree, nil, nil)
	if err != nil {
		fmt.Fprintln(out, "error:", err)
		return
	}
	if _, err := drainAll(out, s); err != nil {
		fmt.Fprintln(out, "error:", err)
	}
}

func drainAll(out io.Writer, s stream.Stream) ([]value.Tuple, error) {
	if err := s.Open(context.Background()); err != nil {
		return nil, err
	}
	defer s.Close()
	var tuples []value.Tuple
	for {
		ok, err := s.HasNext()
		if err != nil {
			return nil, err
		}
		if !ok {
			return tuples, nil
		}
		tup, err := s.Next()
		if err != nil {
			return nil, err
		}
		tuples = append(tuples, tup)
		fmt.Fprintln(out, tup.AsValue().String())
	}
}

// singleRowSource is an exec.Source over exactly one literal row, enough
// for `put` to feed Write's Child without a store behind it — the same
// "literal binding bypasses the store registry" seam pkg/engine's Run
// documents for its literals parameter.
type singleRowSource struct{ row value.Value }

func (s singleRowSource) Scan(ctx context.Context, ranges map[string]rangeset.KeyRange, evalCtx rangeset.EvalContext) (exec.RecordStream, error) {
	return &singleRowStream{row: s.row}, nil
}

type singleRowStream struct {
	row   value.Value
	taken bool
	open  bool
}

func (s *singleRowStream) Open(ctx context.Context) error { s.open = true; s.taken = false; return nil }
func (s *singleRowStream) HasNext() (bool, error)         { return s.open && !s.taken, nil }
func (s *singleRowStream) Close() error                   { s.open = false; return nil }
func (s *singleRowStream) Next() (value.Value, error) {
	s.taken = true
	return s.row, nil
}
