package position

import (
	"sort"

	"github.com/louisbranch/soimap/internal/services/placement/domain/grid"
)

// View answers position queries for one zone.
type View interface {
	// Entity returns the entity with its current cell.
	Entity(id string) (grid.Entity, bool)
	// Occupant returns the entity currently shown on cell.
	Occupant(cell grid.Cell) (grid.Entity, bool)
	// Entities returns every entity with its current cell, ordered by id.
	Entities() []grid.Entity
}

// Speculative supplies positions that take precedence over the index.
type Speculative interface {
	Lookup(entityID string) (grid.Cell, bool)
	Entries() map[string]grid.Cell
}

// Merge returns a view that consults spec before idx.
func Merge(idx *Index, spec Speculative) View {
	return merged{idx: idx, spec: spec}
}

type merged struct {
	idx  *Index
	spec Speculative
}

func (m merged) lookup(id string) (grid.Cell, bool) {
	if m.spec == nil {
		return grid.Cell{}, false
	}
	return m.spec.Lookup(id)
}

func (m merged) Entity(id string) (grid.Entity, bool) {
	entity, ok := m.idx.Entity(id)
	if !ok {
		return grid.Entity{}, false
	}
	if cell, ok := m.lookup(id); ok {
		entity.Cell = cell
	}
	return entity, true
}

func (m merged) Occupant(cell grid.Cell) (grid.Entity, bool) {
	if m.spec != nil {
		var ids []string
		for id, speculative := range m.spec.Entries() {
			if speculative == cell {
				ids = append(ids, id)
			}
		}
		sort.Strings(ids)
		for _, id := range ids {
			if entity, ok := m.Entity(id); ok {
				return entity, true
			}
		}
	}
	for _, entity := range m.idx.At(cell) {
		// An entity with a speculative position has left its authoritative cell.
		if _, moved := m.lookup(entity.ID); moved {
			continue
		}
		return entity, true
	}
	return grid.Entity{}, false
}

func (m merged) Entities() []grid.Entity {
	entities := m.idx.Entities()
	for i := range entities {
		if cell, ok := m.lookup(entities[i].ID); ok {
			entities[i].Cell = cell
		}
	}
	return entities
}
