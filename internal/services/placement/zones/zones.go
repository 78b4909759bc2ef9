// Package zones loads the zone configuration catalog.
//
// The catalog ships embedded in the binary; deployments may point at an
// on-disk YAML file with the same shape to replace it wholesale.
package zones

import (
	_ "embed"
	"errors"
	"fmt"
	"os"
	"sort"
	"strings"

	"github.com/louisbranch/soimap/internal/services/placement/domain/grid"
	"gopkg.in/yaml.v3"
)

// ErrUnknownZone indicates a zone name absent from the catalog.
var ErrUnknownZone = errors.New("unknown zone")

//go:embed zones.yaml
var embeddedCatalog []byte

type catalogFile struct {
	Zones []zoneEntry `yaml:"zones"`
}

type zoneEntry struct {
	Name    string  `yaml:"name"`
	MaxRows int     `yaml:"max_rows"`
	MaxCols int     `yaml:"max_cols"`
	StartX  float64 `yaml:"start_x"`
	EndX    float64 `yaml:"end_x"`
	StartY  float64 `yaml:"start_y"`
	EndY    float64 `yaml:"end_y"`
}

// Catalog is an immutable set of validated zones keyed by name.
type Catalog struct {
	zones map[string]grid.Zone
}

// Embedded parses the catalog compiled into the binary.
func Embedded() (*Catalog, error) {
	return Parse(embeddedCatalog)
}

// Load reads path when set, otherwise returns the embedded catalog.
func Load(path string) (*Catalog, error) {
	path = strings.TrimSpace(path)
	if path == "" {
		return Embedded()
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read zone catalog: %w", err)
	}
	catalog, err := Parse(data)
	if err != nil {
		return nil, fmt.Errorf("zone catalog %s: %w", path, err)
	}
	return catalog, nil
}

// Parse decodes and validates a YAML zone catalog.
func Parse(data []byte) (*Catalog, error) {
	var file catalogFile
	if err := yaml.Unmarshal(data, &file); err != nil {
		return nil, fmt.Errorf("parse zone catalog: %w", err)
	}
	if len(file.Zones) == 0 {
		return nil, fmt.Errorf("zone catalog defines no zones")
	}
	catalog := &Catalog{zones: make(map[string]grid.Zone, len(file.Zones))}
	for _, entry := range file.Zones {
		zone := grid.Zone{
			Name:    strings.TrimSpace(entry.Name),
			MaxRows: entry.MaxRows,
			MaxCols: entry.MaxCols,
			StartX:  entry.StartX,
			EndX:    entry.EndX,
			StartY:  entry.StartY,
			EndY:    entry.EndY,
		}
		if err := zone.Validate(); err != nil {
			return nil, err
		}
		if _, exists := catalog.zones[zone.Name]; exists {
			return nil, fmt.Errorf("%w: duplicate zone %q", grid.ErrInvalidZone, zone.Name)
		}
		catalog.zones[zone.Name] = zone
	}
	return catalog, nil
}

// Zone returns the configuration for name.
func (c *Catalog) Zone(name string) (grid.Zone, error) {
	if c != nil {
		if zone, ok := c.zones[strings.TrimSpace(name)]; ok {
			return zone, nil
		}
	}
	return grid.Zone{}, fmt.Errorf("%w: %q", ErrUnknownZone, name)
}

// Names lists zone names in lexical order.
func (c *Catalog) Names() []string {
	if c == nil {
		return nil
	}
	names := make([]string, 0, len(c.zones))
	for name := range c.zones {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
