// Command relq (root entrypoint) bootstraps a pkg/engine.Engine either
// from a YAML config file (-config) or, with -demo, from an in-memory
// store pre-seeded with sample users/products/orders sources, then hands
// the engine to pkg/repl — the same stdin command loop cmd/relq/main.go
// runs, kept here too since the teacher's own root main.go (flag.Parse,
// -demo, log.Fatalf on setup failure) is this project's entrypoint, not
// a cmd/ subdirectory.
package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"os"

	"github.com/relq/relq/pkg/engine"
	"github.com/relq/relq/pkg/relqlog"
	"github.com/relq/relq/pkg/repl"
	"github.com/relq/relq/pkg/store"
	"github.com/relq/relq/pkg/store/memstore"
	"github.com/relq/relq/pkg/value"
)

func main() {
	configPath := flag.String("config", "", "YAML file declaring stores and their sources")
	demo := flag.Bool("demo", false, "seed an in-memory demo store with sample users/products/orders data")
	flag.Parse()

	e := engine.New(relqlog.WithLogger(relqlog.Resolve()))

	switch {
	case *configPath != "":
		cfg, err := engine.LoadConfig(*configPath)
		if err != nil {
			log.Fatalf("relq: %v", err)
		}
		if err := engine.RegisterAll(e, cfg); err != nil {
			log.Fatalf("relq: %v", err)
		}
	case *demo:
		if err := seedDemoStore(e); err != nil {
			log.Fatalf("relq: demo setup failed: %v", err)
		}
	default:
		log.Fatalf("relq: pass -config <file> or -demo")
	}

	fmt.Println("relq — type `help` for commands, `quit` to exit")
	repl.Run(e, os.Stdin, os.Stdout)
}

// seedDemoStore registers a memstore holding the same three sample
// tables the teacher's own -demo flag created with CREATE TABLE/INSERT
// statements, here built directly as records since THE CORE has no SQL
// front end.
func seedDemoStore(e *engine.Engine) error {
	specs := map[string]store.SourceSpec{
		"users":    {KeyPath: store.KeyPath{"id"}},
		"products": {KeyPath: store.KeyPath{"id"}},
		"orders":   {KeyPath: store.KeyPath{"id"}},
	}
	st := memstore.New(specs)
	e.Register("demo", st)

	seed := map[string][]value.Record{
		"users": {
			{"id": value.Number(1), "name": value.String("ada"), "email": value.String("ada@example.com")},
			{"id": value.Number(2), "name": value.String("bea"), "email": value.String("bea@example.com")},
		},
		"products": {
			{"id": value.Number(1), "name": value.String("widget"), "price": value.Number(9.99)},
			{"id": value.Number(2), "name": value.String("gadget"), "price": value.Number(19.99)},
		},
		"orders": {
			{"id": value.Number(1), "user_id": value.Number(1), "product_id": value.Number(1)},
		},
	}

	ctx := context.Background()
	names := []string{"users", "products", "orders"}
	txn, err := st.Transaction(ctx, names, store.ReadWrite)
	if err != nil {
		return err
	}
	for _, name := range names {
		src, err := txn.Source(name)
		if err != nil {
			return err
		}
		for _, rec := range seed[name] {
			if _, err := src.Put(ctx, value.RecordValue(rec), nil); err != nil {
				return err
			}
		}
	}
	return txn.Commit()
}
