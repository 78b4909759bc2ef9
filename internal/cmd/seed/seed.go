// Package seed loads a YAML fixture of positioned entities into the
// placement store.
package seed

import (
	"context"
	"embed"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/louisbranch/soimap/internal/platform/config"
	"github.com/louisbranch/soimap/internal/services/placement/domain/grid"
	placementsqlite "github.com/louisbranch/soimap/internal/services/placement/storage/sqlite"
	"github.com/louisbranch/soimap/internal/services/placement/zones"
	"gopkg.in/yaml.v3"
)

//go:embed fixtures/*.yaml
var fixtureFS embed.FS

const defaultFixture = "fixtures/demo.yaml"

// Config holds seed command configuration.
type Config struct {
	DBPath      string `env:"SOIMAP_PLACEMENT_DB_PATH"`
	ZoneCatalog string `env:"SOIMAP_ZONE_CATALOG"`
	// Fixture is a path on disk. Empty uses the embedded demo fixture.
	Fixture string
	List    bool
	DryRun  bool
	Verbose bool
}

// ParseConfig parses the environment seen through lookup, then flags, into
// a Config.
func ParseConfig(fs *flag.FlagSet, args []string, lookup config.Lookup) (Config, error) {
	var cfg Config
	if err := config.ParseEnvLookup(&cfg, lookup); err != nil {
		return Config{}, err
	}
	cfg.DBPath = strings.TrimSpace(cfg.DBPath)
	if cfg.DBPath == "" {
		cfg.DBPath = filepath.Join("data", "placement.db")
	}
	cfg.ZoneCatalog = strings.TrimSpace(cfg.ZoneCatalog)

	fs.StringVar(&cfg.DBPath, "db", cfg.DBPath, "placement SQLite database path")
	fs.StringVar(&cfg.ZoneCatalog, "zones", cfg.ZoneCatalog, "zone catalog YAML (default: embedded)")
	fs.StringVar(&cfg.Fixture, "fixture", "", "entity fixture YAML (default: embedded demo)")
	fs.BoolVar(&cfg.List, "list", false, "list available zones")
	fs.BoolVar(&cfg.DryRun, "dry-run", false, "validate the fixture without writing")
	fs.BoolVar(&cfg.Verbose, "v", false, "verbose output")
	if err := fs.Parse(args); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// Fixture is the on-disk fixture document.
type Fixture struct {
	Entities []FixtureEntity `yaml:"entities"`
}

// FixtureEntity is one entity row in a fixture.
type FixtureEntity struct {
	ID   string `yaml:"id"`
	Zone string `yaml:"zone"`
	Row  int    `yaml:"row"`
	Col  int    `yaml:"col"`
	Kind string `yaml:"kind"`
}

// Run executes the seed command.
func Run(ctx context.Context, cfg Config, out io.Writer, errOut io.Writer) error {
	if out == nil {
		out = io.Discard
	}
	if errOut == nil {
		errOut = io.Discard
	}

	catalog, err := zones.Load(cfg.ZoneCatalog)
	if err != nil {
		return err
	}
	if cfg.List {
		fmt.Fprintln(out, "Available zones:")
		for _, name := range catalog.Names() {
			zone, _ := catalog.Zone(name)
			fmt.Fprintf(out, "  %-12s %dx%d\n", name, zone.MaxRows, zone.MaxCols)
		}
		return nil
	}

	data, err := readFixture(cfg.Fixture)
	if err != nil {
		return err
	}
	entities, err := ParseFixture(data, catalog)
	if err != nil {
		return err
	}
	if cfg.DryRun {
		fmt.Fprintf(out, "fixture ok: %d entities\n", len(entities))
		return nil
	}

	if dir := filepath.Dir(cfg.DBPath); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create storage dir: %w", err)
		}
	}
	store, err := placementsqlite.Open(cfg.DBPath)
	if err != nil {
		return fmt.Errorf("open placement store: %w", err)
	}
	defer func() {
		if err := store.Close(); err != nil {
			fmt.Fprintf(errOut, "close placement store: %v\n", err)
		}
	}()

	for _, entity := range entities {
		if err := store.PutEntity(ctx, entity); err != nil {
			return fmt.Errorf("seed %s: %w", entity.ID, err)
		}
		if cfg.Verbose {
			fmt.Fprintf(out, "  %s %s %s %s\n", entity.Zone, entity.Cell, entity.Kind, entity.ID)
		}
	}
	fmt.Fprintf(out, "seeded %d entities into %s\n", len(entities), cfg.DBPath)
	return nil
}

// ParseFixture decodes a fixture and checks every entity against catalog.
func ParseFixture(data []byte, catalog *zones.Catalog) ([]grid.Entity, error) {
	var fixture Fixture
	if err := yaml.Unmarshal(data, &fixture); err != nil {
		return nil, fmt.Errorf("parse fixture: %w", err)
	}
	if len(fixture.Entities) == 0 {
		return nil, errors.New("fixture has no entities")
	}

	seen := make(map[string]struct{}, len(fixture.Entities))
	out := make([]grid.Entity, 0, len(fixture.Entities))
	for i, item := range fixture.Entities {
		id := strings.TrimSpace(item.ID)
		if id == "" {
			return nil, fmt.Errorf("entity %d: id is required", i)
		}
		key := item.Zone + "/" + id
		if _, dup := seen[key]; dup {
			return nil, fmt.Errorf("entity %s: duplicate in zone %s", id, item.Zone)
		}
		seen[key] = struct{}{}

		kind, err := grid.ParseKind(item.Kind)
		if err != nil {
			return nil, fmt.Errorf("entity %s: %w", id, err)
		}
		zone, err := catalog.Zone(item.Zone)
		if err != nil {
			return nil, fmt.Errorf("entity %s: %w", id, err)
		}
		cell := grid.Cell{Row: item.Row, Col: item.Col}
		if err := zone.CheckCell(cell); err != nil {
			return nil, fmt.Errorf("entity %s: %w", id, err)
		}
		out = append(out, grid.Entity{ID: id, Zone: zone.Name, Cell: cell, Kind: kind})
	}
	return out, nil
}

func readFixture(path string) ([]byte, error) {
	if strings.TrimSpace(path) == "" {
		return fixtureFS.ReadFile(defaultFixture)
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read fixture: %w", err)
	}
	return data, nil
}
