// Package overlay holds speculative entity positions applied at drop time,
// before the remote store confirms them.
//
// An Overlay is not safe for concurrent use. The drag session that owns it
// serializes every access.
package overlay

import (
	"errors"
	"fmt"
	"sort"
	"strings"

	"github.com/louisbranch/soimap/internal/services/placement/domain/grid"
)

// ErrInvalidEntry indicates an entry batch that cannot be applied.
var ErrInvalidEntry = errors.New("invalid overlay entry")

// Entry places one entity on one cell.
type Entry struct {
	EntityID string
	Cell     grid.Cell
}

// Prior is the entry an entity held before a batch was applied. Present is
// false when the entity had no speculative cell.
type Prior struct {
	EntityID string
	Cell     grid.Cell
	Present  bool
}

// Overlay maps entity ids to speculative cells.
type Overlay struct {
	entries map[string]grid.Cell
}

// New returns an empty overlay.
func New() *Overlay {
	return &Overlay{entries: map[string]grid.Cell{}}
}

// Apply records entries as one unit: either all are recorded or none.
func (o *Overlay) Apply(entries ...Entry) error {
	if o == nil {
		return fmt.Errorf("%w: overlay is nil", ErrInvalidEntry)
	}
	if len(entries) == 0 {
		return fmt.Errorf("%w: no entries", ErrInvalidEntry)
	}
	seen := make(map[string]struct{}, len(entries))
	for _, entry := range entries {
		id := strings.TrimSpace(entry.EntityID)
		if id == "" {
			return fmt.Errorf("%w: entity id is required", ErrInvalidEntry)
		}
		if _, dup := seen[id]; dup {
			return fmt.Errorf("%w: entity %s listed twice", ErrInvalidEntry, id)
		}
		seen[id] = struct{}{}
	}
	if o.entries == nil {
		o.entries = map[string]grid.Cell{}
	}
	for _, entry := range entries {
		o.entries[strings.TrimSpace(entry.EntityID)] = entry.Cell
	}
	return nil
}

// Snapshot records the current entry, or its absence, for each id.
func (o *Overlay) Snapshot(ids ...string) []Prior {
	out := make([]Prior, 0, len(ids))
	for _, id := range ids {
		id = strings.TrimSpace(id)
		cell, ok := o.Lookup(id)
		out = append(out, Prior{EntityID: id, Cell: cell, Present: ok})
	}
	return out
}

// Restore puts back the entries captured by Snapshot: present entries are
// rewritten and absent ones removed.
func (o *Overlay) Restore(prior ...Prior) {
	if o == nil {
		return
	}
	if o.entries == nil {
		o.entries = map[string]grid.Cell{}
	}
	for _, p := range prior {
		if p.Present {
			o.entries[p.EntityID] = p.Cell
			continue
		}
		delete(o.entries, p.EntityID)
	}
}

// Rollback removes the entries for ids, restoring the authoritative
// position of each.
func (o *Overlay) Rollback(ids ...string) {
	if o == nil {
		return
	}
	for _, id := range ids {
		delete(o.entries, strings.TrimSpace(id))
	}
}

// Lookup returns the speculative cell for id.
func (o *Overlay) Lookup(id string) (grid.Cell, bool) {
	if o == nil {
		return grid.Cell{}, false
	}
	cell, ok := o.entries[id]
	return cell, ok
}

// Entries returns a copy of every entry.
func (o *Overlay) Entries() map[string]grid.Cell {
	out := make(map[string]grid.Cell)
	if o == nil {
		return out
	}
	for id, cell := range o.entries {
		out[id] = cell
	}
	return out
}

// Len returns the number of entries.
func (o *Overlay) Len() int {
	if o == nil {
		return 0
	}
	return len(o.entries)
}

// Reconcile drops every entry the authoritative source already reflects and
// returns the dropped ids in order.
func (o *Overlay) Reconcile(authoritative func(id string) (grid.Cell, bool)) []string {
	if o == nil || authoritative == nil {
		return nil
	}
	var dropped []string
	for id, cell := range o.entries {
		if confirmed, ok := authoritative(id); ok && confirmed == cell {
			dropped = append(dropped, id)
		}
	}
	sort.Strings(dropped)
	o.Rollback(dropped...)
	return dropped
}

// Clear removes every entry and returns the removed ids in order.
func (o *Overlay) Clear() []string {
	if o == nil {
		return nil
	}
	ids := make([]string, 0, len(o.entries))
	for id := range o.entries {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	o.entries = map[string]grid.Cell{}
	return ids
}
