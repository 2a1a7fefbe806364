package engine

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/relq/relq/pkg/query"
	"github.com/relq/relq/pkg/store"
)

func writeConfig(t *testing.T, yaml string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "relq.yaml")
	if err := os.WriteFile(path, []byte(yaml), 0600); err != nil {
		t.Fatalf("WriteFile: %v", err)
	}
	return path
}

func TestLoadConfigParsesStoresAndSources(t *testing.T) {
	path := writeConfig(t, `
stores:
  main:
    backend: memory
    sources:
      users:
        keyPath: [id]
        indexes:
          - name: by_name
            keyPath: [name]
`)
	cfg, err := LoadConfig(path)
	if err != nil {
		t.Fatalf("LoadConfig: %v", err)
	}
	sc, ok := cfg.Stores["main"]
	if !ok {
		t.Fatalf("expected a main store, got %v", cfg.Stores)
	}
	if sc.Backend != "memory" {
		t.Fatalf("expected memory backend, got %q", sc.Backend)
	}
	us, ok := sc.Sources["users"]
	if !ok || len(us.KeyPath) != 1 || us.KeyPath[0] != "id" {
		t.Fatalf("unexpected users source config: %+v", us)
	}
	if len(us.Indexes) != 1 || us.Indexes[0].Name != "by_name" {
		t.Fatalf("unexpected indexes: %+v", us.Indexes)
	}
}

func TestStoreConfigOpenDefaultsToMemory(t *testing.T) {
	sc := StoreConfig{Sources: map[string]SourceConfig{"users": {KeyPath: []string{"id"}}}}
	st, err := sc.Open()
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	specs := st.Sources()
	if _, ok := specs["users"]; !ok {
		t.Fatalf("expected a users source, got %v", specs)
	}
}

func TestStoreConfigOpenRejectsUnknownBackend(t *testing.T) {
	sc := StoreConfig{Backend: "magic"}
	if _, err := sc.Open(); err == nil {
		t.Fatalf("expected an error for an unknown backend")
	}
}

func TestRegisterAllWiresEveryConfiguredStore(t *testing.T) {
	path := writeConfig(t, `
stores:
  main:
    backend: memory
    sources:
      users:
        keyPath: [id]
`)
	cfg, err := LoadConfig(path)
	if err != nil {
		t.Fatalf("LoadConfig: %v", err)
	}
	e := New()
	if err := RegisterAll(e, cfg); err != nil {
		t.Fatalf("RegisterAll: %v", err)
	}
	if handle, ok := e.PersistentStores()["users"]; !ok || handle != "main" {
		t.Fatalf("expected users bound to handle main, got %q, ok=%v", handle, ok)
	}

	txn, err := e.stores["main"].Transaction(context.Background(), []string{"users"}, store.ReadWrite)
	if err != nil {
		t.Fatalf("Transaction: %v", err)
	}
	if err := txn.Commit(); err != nil {
		t.Fatalf("Commit: %v", err)
	}

	tree, err := query.From("users").Build()
	if err != nil {
		t.Fatalf("Build: %v", err)
	}
	if _, err := e.Run(context.Background(), tree, nil, nil); err != nil {
		t.Fatalf("Run: %v", err)
	}
}
