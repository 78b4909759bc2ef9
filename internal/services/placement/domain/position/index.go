// Package position provides read views over entity positions.
//
// Index is an immutable snapshot of the authoritative entity list for one
// zone. Merge layers speculative positions (the optimistic overlay) over an
// Index so that every read sees just-committed moves before the
// authoritative store reflects them.
package position

import (
	"sort"
	"strings"

	"github.com/louisbranch/soimap/internal/services/placement/domain/grid"
)

// Index is a read-only snapshot of one zone's authoritative positions.
type Index struct {
	zone     string
	entities []grid.Entity
	byID     map[string]grid.Entity
	byCell   map[grid.Cell][]string
}

// Duplicate reports a confirmed cell held by more than one fixed entity.
type Duplicate struct {
	Cell      grid.Cell
	EntityIDs []string
}

// NewIndex builds an index over entities that belong to zone. Entities from
// other zones and entries without an id are ignored.
func NewIndex(zone string, entities []grid.Entity) *Index {
	idx := &Index{
		zone:   strings.TrimSpace(zone),
		byID:   make(map[string]grid.Entity, len(entities)),
		byCell: make(map[grid.Cell][]string, len(entities)),
	}
	for _, entity := range entities {
		if entity.ID == "" || entity.Zone != idx.zone {
			continue
		}
		if _, seen := idx.byID[entity.ID]; seen {
			continue
		}
		idx.byID[entity.ID] = entity
		idx.entities = append(idx.entities, entity)
	}
	sort.Slice(idx.entities, func(i, j int) bool {
		return idx.entities[i].ID < idx.entities[j].ID
	})
	for _, entity := range idx.entities {
		idx.byCell[entity.Cell] = append(idx.byCell[entity.Cell], entity.ID)
	}
	return idx
}

// Zone returns the zone this index covers.
func (idx *Index) Zone() string {
	if idx == nil {
		return ""
	}
	return idx.zone
}

// Len returns the number of indexed entities.
func (idx *Index) Len() int {
	if idx == nil {
		return 0
	}
	return len(idx.entities)
}

// Entity returns the authoritative record for id.
func (idx *Index) Entity(id string) (grid.Entity, bool) {
	if idx == nil {
		return grid.Entity{}, false
	}
	entity, ok := idx.byID[id]
	return entity, ok
}

// At returns the entities whose authoritative cell is cell, ordered by id.
func (idx *Index) At(cell grid.Cell) []grid.Entity {
	if idx == nil {
		return nil
	}
	ids := idx.byCell[cell]
	out := make([]grid.Entity, 0, len(ids))
	for _, id := range ids {
		out = append(out, idx.byID[id])
	}
	return out
}

// Entities returns every indexed entity ordered by id.
func (idx *Index) Entities() []grid.Entity {
	if idx == nil {
		return nil
	}
	out := make([]grid.Entity, len(idx.entities))
	copy(out, idx.entities)
	return out
}

// Duplicates lists cells that hold more than one fixed entity. The result
// is advisory: callers surface it, nothing here resolves it.
func (idx *Index) Duplicates() []Duplicate {
	if idx == nil {
		return nil
	}
	var out []Duplicate
	for cell, ids := range idx.byCell {
		var fixed []string
		for _, id := range ids {
			if idx.byID[id].Kind == grid.KindFixed {
				fixed = append(fixed, id)
			}
		}
		if len(fixed) > 1 {
			out = append(out, Duplicate{Cell: cell, EntityIDs: fixed})
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Cell.Row != out[j].Cell.Row {
			return out[i].Cell.Row < out[j].Cell.Row
		}
		return out[i].Cell.Col < out[j].Cell.Col
	})
	return out
}
