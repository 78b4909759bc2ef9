// Package conflict classifies a candidate drop as a move, a swap, or blocked.
package conflict

import (
	"fmt"

	"github.com/louisbranch/soimap/internal/services/placement/domain/grid"
	"github.com/louisbranch/soimap/internal/services/placement/domain/position"
)

// Classification is the outcome of classifying a drop.
type Classification int

const (
	// Blocked drops never reach the remote store.
	Blocked Classification = iota
	// Move relocates the dragged entity to an empty cell.
	Move
	// Swap exchanges the dragged entity with a same-kind occupant.
	Swap
)

func (c Classification) String() string {
	switch c {
	case Move:
		return "move"
	case Swap:
		return "swap"
	default:
		return "blocked"
	}
}

// Reason explains why a drop is blocked.
type Reason string

const (
	// ReasonNone accompanies every decision that is not Blocked.
	ReasonNone Reason = ""
	// ReasonNoCell means the pointer resolved to no cell, such as over the
	// road or outside the frame.
	ReasonNoCell Reason = "no_cell"
	// ReasonOutOfBounds means the cell lies outside the zone's grid.
	ReasonOutOfBounds Reason = "out_of_bounds"
	// ReasonSameCell means the drop would leave the entity where it is.
	ReasonSameCell Reason = "same_cell"
	// ReasonCrossKind means the target holds an entity of the other kind.
	ReasonCrossKind Reason = "cross_kind"
	// ReasonUnknownEntity means the dragged entity is not in the merged view.
	ReasonUnknownEntity Reason = "unknown_entity"
)

// ValidationError reports a candidate that is not a usable cell: the pointer
// was in the dead-zone or outside the grid, or the cell is out of bounds.
type ValidationError struct {
	Reason Reason
	Cell   *grid.Cell
}

func (e *ValidationError) Error() string {
	if e.Cell != nil {
		return fmt.Sprintf("invalid drop target %s: %s", *e.Cell, e.Reason)
	}
	return fmt.Sprintf("invalid drop target: %s", e.Reason)
}

// ConflictError reports an occupied cell whose occupant cannot be swapped
// with the dragged entity.
type ConflictError struct {
	EntityID     string
	OccupantID   string
	EntityKind   grid.Kind
	OccupantKind grid.Kind
	Cell         grid.Cell
}

func (e *ConflictError) Error() string {
	return fmt.Sprintf("cannot swap %s entity %s with %s entity %s at %s",
		e.EntityKind, e.EntityID, e.OccupantKind, e.OccupantID, e.Cell)
}

// Decision is the classification of one candidate drop.
type Decision struct {
	Classification Classification
	Reason         Reason
	Target         grid.Cell
	// Partner is the swap partner when Classification is Swap.
	Partner *grid.Entity
	// Err carries a ValidationError or ConflictError for blocked drops
	// that the operator should be told about. A drop onto the entity's own
	// cell is blocked without an error.
	Err error
}

// Blocked reports whether the drop must not be committed.
func (d Decision) Blocked() bool {
	return d.Classification == Blocked
}

// Resolver classifies drops within one zone.
type Resolver struct {
	Zone grid.Zone
}

// Classify decides what dropping dragged on candidate means under view.
// A nil candidate is a pointer that mapped to no cell.
func (r Resolver) Classify(dragged grid.Entity, candidate *grid.Cell, view position.View) Decision {
	if candidate == nil {
		return Decision{
			Classification: Blocked,
			Reason:         ReasonNoCell,
			Err:            &ValidationError{Reason: ReasonNoCell},
		}
	}
	target := *candidate
	if !r.Zone.Contains(target) {
		return Decision{
			Classification: Blocked,
			Reason:         ReasonOutOfBounds,
			Target:         target,
			Err:            &ValidationError{Reason: ReasonOutOfBounds, Cell: &target},
		}
	}
	current, ok := view.Entity(dragged.ID)
	if !ok {
		return Decision{
			Classification: Blocked,
			Reason:         ReasonUnknownEntity,
			Target:         target,
			Err:            &ValidationError{Reason: ReasonUnknownEntity, Cell: &target},
		}
	}

	occupant, occupied := view.Occupant(target)
	if !occupied {
		if current.Cell == target {
			return Decision{Classification: Blocked, Reason: ReasonSameCell, Target: target}
		}
		return Decision{Classification: Move, Target: target}
	}
	if occupant.ID == current.ID || current.Cell == target {
		return Decision{Classification: Blocked, Reason: ReasonSameCell, Target: target}
	}
	if occupant.Kind == current.Kind {
		partner := occupant
		return Decision{Classification: Swap, Target: target, Partner: &partner}
	}
	return Decision{
		Classification: Blocked,
		Reason:         ReasonCrossKind,
		Target:         target,
		Err: &ConflictError{
			EntityID:     current.ID,
			OccupantID:   occupant.ID,
			EntityKind:   current.Kind,
			OccupantKind: occupant.Kind,
			Cell:         target,
		},
	}
}
