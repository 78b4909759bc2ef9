// Package storage defines persistence contracts for the authoritative
// position store.
package storage

import (
	"context"
	"errors"
	"time"

	"github.com/louisbranch/soimap/internal/services/placement/domain/grid"
)

var (
	// ErrNotFound indicates a requested entity record is missing.
	ErrNotFound = errors.New("record not found")
	// ErrOccupied indicates the target cell holds a same-kind entity.
	ErrOccupied = errors.New("target cell is occupied")
	// ErrStalePosition indicates a swap partner is no longer on the target cell.
	ErrStalePosition = errors.New("swap partner has moved")
	// ErrConstraintViolation indicates a move that breaks a placement rule,
	// such as a cross-kind occupant or swap partner.
	ErrConstraintViolation = errors.New("placement constraint violated")
)

// MoveCommand relocates one entity, optionally swapping it with the
// entity currently on the target cell.
type MoveCommand struct {
	// ID identifies the journal entry written for an accepted move.
	ID         string
	EntityID   string
	Zone       string
	Target     grid.Cell
	SwapWithID string
	MovedAt    time.Time
}

// Move is one accepted move journal entry.
type Move struct {
	Seq        int64
	ID         string
	EntityID   string
	Zone       string
	From       grid.Cell
	To         grid.Cell
	SwapWithID string
	MovedAt    time.Time
}

// MovePage stores one page of journal entries, newest first.
type MovePage struct {
	Moves      []Move
	NextCursor int64
}

// MoveFilter narrows a journal listing with a SQL condition over the
// move columns. The zero value matches every move.
type MoveFilter struct {
	Clause string
	Params []any
}

// PositionStore persists entity positions and the move journal.
type PositionStore interface {
	// ListEntities returns every entity in zone ordered by row, column, id.
	ListEntities(ctx context.Context, zone string) ([]grid.Entity, error)
	GetEntity(ctx context.Context, zone string, entityID string) (grid.Entity, error)
	// PutEntity creates or replaces an entity record. It is administrative
	// and bypasses the placement rules.
	PutEntity(ctx context.Context, entity grid.Entity) error
	// MoveEntity applies cmd atomically and returns the updated participants.
	MoveEntity(ctx context.Context, cmd MoveCommand) ([]grid.Entity, error)
	// ListMoves returns journal entries matching where that are older than
	// beforeSeq, or the newest entries when beforeSeq is zero.
	ListMoves(ctx context.Context, zone string, pageSize int, beforeSeq int64, where MoveFilter) (MovePage, error)
}
