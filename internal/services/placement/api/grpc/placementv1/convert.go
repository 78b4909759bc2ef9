package placementv1

import (
	"fmt"

	"github.com/louisbranch/soimap/internal/services/placement/domain/grid"
)

// FromEntity converts a domain entity to its wire form.
func FromEntity(entity grid.Entity) Entity {
	return Entity{
		ID:   entity.ID,
		Zone: entity.Zone,
		Row:  entity.Cell.Row,
		Col:  entity.Cell.Col,
		Kind: string(entity.Kind),
	}
}

// FromEntities converts a slice of domain entities.
func FromEntities(entities []grid.Entity) []Entity {
	out := make([]Entity, 0, len(entities))
	for _, entity := range entities {
		out = append(out, FromEntity(entity))
	}
	return out
}

// Domain validates the wire entity and converts it.
func (e Entity) Domain() (grid.Entity, error) {
	if e.ID == "" {
		return grid.Entity{}, fmt.Errorf("entity id is required")
	}
	kind, err := grid.ParseKind(e.Kind)
	if err != nil {
		return grid.Entity{}, fmt.Errorf("entity %s: %w", e.ID, err)
	}
	return grid.Entity{
		ID:   e.ID,
		Zone: e.Zone,
		Cell: grid.Cell{Row: e.Row, Col: e.Col},
		Kind: kind,
	}, nil
}

// FromZone converts a domain zone to its wire form.
func FromZone(zone grid.Zone) Zone {
	return Zone{
		Name:    zone.Name,
		MaxRows: zone.MaxRows,
		MaxCols: zone.MaxCols,
		StartX:  zone.StartX,
		EndX:    zone.EndX,
		StartY:  zone.StartY,
		EndY:    zone.EndY,
	}
}

// Domain validates the wire zone and converts it.
func (z Zone) Domain() (grid.Zone, error) {
	zone := grid.Zone{
		Name:    z.Name,
		MaxRows: z.MaxRows,
		MaxCols: z.MaxCols,
		StartX:  z.StartX,
		EndX:    z.EndX,
		StartY:  z.StartY,
		EndY:    z.EndY,
	}
	if err := zone.Validate(); err != nil {
		return grid.Zone{}, err
	}
	return zone, nil
}
