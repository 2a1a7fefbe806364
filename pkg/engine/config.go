package engine

import (
	"fmt"
	"os"

	"go.etcd.io/bbolt"
	"gopkg.in/yaml.v3"

	"github.com/relq/relq/pkg/relqerr"
	"github.com/relq/relq/pkg/store"
	"github.com/relq/relq/pkg/store/boltstore"
	"github.com/relq/relq/pkg/store/memstore"
)

// IndexConfig is one secondary index declaration in a StoreConfig's
// YAML, mapping directly onto store.IndexSpec.
type IndexConfig struct {
	Name       string   `yaml:"name"`
	KeyPath    []string `yaml:"keyPath"`
	MultiEntry bool     `yaml:"multiEntry"`
	Unique     bool     `yaml:"unique"`
}

// SourceConfig is one named source's static shape, the YAML counterpart
// of store.SourceSpec.
type SourceConfig struct {
	KeyPath       []string      `yaml:"keyPath"`
	AutoIncrement bool          `yaml:"autoIncrement"`
	Indexes       []IndexConfig `yaml:"indexes"`
}

// StoreConfig describes a single store to register on an Engine: either
// an in-memory store (Backend == "memory", the zero value) or a bbolt
// file (Backend == "bbolt", Path naming the database file).
type StoreConfig struct {
	Backend string                  `yaml:"backend"`
	Path    string                  `yaml:"path"`
	Sources map[string]SourceConfig `yaml:"sources"`
}

// Config is cmd/relq's top-level YAML shape: one or more named stores,
// keyed by the handle Engine.Register binds them under.
type Config struct {
	Stores map[string]StoreConfig `yaml:"stores"`
}

// LoadConfig reads and parses a Config from path.
func LoadConfig(path string) (*Config, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, relqerr.RecoverableError(err, "engine: read config")
	}
	var cfg Config
	if err := yaml.Unmarshal(raw, &cfg); err != nil {
		return nil, relqerr.BuildError(err, "engine: parse config")
	}
	return &cfg, nil
}

func (c StoreConfig) specs() map[string]store.SourceSpec {
	out := make(map[string]store.SourceSpec, len(c.Sources))
	for name, sc := range c.Sources {
		indexes := make([]store.IndexSpec, len(sc.Indexes))
		for i, ix := range sc.Indexes {
			indexes[i] = store.IndexSpec{
				Name:       ix.Name,
				KeyPath:    store.KeyPath(ix.KeyPath),
				MultiEntry: ix.MultiEntry,
				Unique:     ix.Unique,
			}
		}
		out[name] = store.SourceSpec{
			KeyPath:       store.KeyPath(sc.KeyPath),
			AutoIncrement: sc.AutoIncrement,
			Indexes:       indexes,
		}
	}
	return out
}

// Open constructs the store.Store c describes: memstore.New for
// Backend == "memory" (or unset), boltstore.New against a freshly opened
// bbolt.DB file for Backend == "bbolt".
func (c StoreConfig) Open() (store.Store, error) {
	switch c.Backend {
	case "", "memory":
		return memstore.New(c.specs()), nil
	case "bbolt":
		if c.Path == "" {
			return nil, relqerr.Buildf("engine: bbolt store requires a path")
		}
		db, err := bbolt.Open(c.Path, 0600, nil)
		if err != nil {
			return nil, relqerr.RecoverableError(err, "engine: open bbolt file")
		}
		st, err := boltstore.New(db, c.specs())
		if err != nil {
			db.Close()
			return nil, err
		}
		return st, nil
	default:
		return nil, relqerr.Buildf("engine: unknown store backend %q", c.Backend)
	}
}

// RegisterAll opens every store cfg declares and registers it on e under
// its configured handle. It ranges over the cfg.Stores map, so the order
// stores are opened in is not defined; each handle is independent, so
// correctness does not depend on it.
func RegisterAll(e *Engine, cfg *Config) error {
	for handle, sc := range cfg.Stores {
		st, err := sc.Open()
		if err != nil {
			return fmt.Errorf("engine: open store %q: %w", handle, err)
		}
		e.Register(handle, st)
	}
	return nil
}
