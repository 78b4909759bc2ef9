// Package sqlite provides a SQLite-backed position storage implementation.
package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"path/filepath"
	"strings"
	"time"

	sqlitemigrate "github.com/louisbranch/soimap/internal/platform/storage/sqlitemigrate"
	"github.com/louisbranch/soimap/internal/services/placement/domain/grid"
	"github.com/louisbranch/soimap/internal/services/placement/storage"
	"github.com/louisbranch/soimap/internal/services/placement/storage/sqlite/migrations"
	msqlite "modernc.org/sqlite"
	sqlite3lib "modernc.org/sqlite/lib"
)

// Store persists positions in SQLite.
type Store struct {
	sqlDB *sql.DB
	clock func() time.Time
}

func toMillis(value time.Time) int64 {
	return value.UTC().UnixMilli()
}

func fromMillis(value int64) time.Time {
	return time.UnixMilli(value).UTC()
}

// Open opens a SQLite position store and applies embedded migrations.
func Open(path string) (*Store, error) {
	if strings.TrimSpace(path) == "" {
		return nil, fmt.Errorf("storage path is required")
	}
	cleanPath := filepath.Clean(path)
	dsn := cleanPath + "?_journal_mode=WAL&_foreign_keys=ON&_busy_timeout=5000&_synchronous=NORMAL"
	sqlDB, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("open sqlite db: %w", err)
	}
	if err := sqlDB.Ping(); err != nil {
		_ = sqlDB.Close()
		return nil, fmt.Errorf("ping sqlite db: %w", err)
	}
	if err := sqlitemigrate.ApplyMigrations(context.Background(), sqlDB, migrations.FS, ""); err != nil {
		_ = sqlDB.Close()
		return nil, fmt.Errorf("run migrations: %w", err)
	}
	return &Store{sqlDB: sqlDB, clock: time.Now}, nil
}

// Close closes the SQLite handle.
func (s *Store) Close() error {
	if s == nil || s.sqlDB == nil {
		return nil
	}
	return s.sqlDB.Close()
}

func (s *Store) now() time.Time {
	if s.clock == nil {
		return time.Now().UTC()
	}
	return s.clock().UTC()
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanEntity(row rowScanner) (grid.Entity, error) {
	var entity grid.Entity
	var kind string
	if err := row.Scan(&entity.ID, &entity.Zone, &entity.Cell.Row, &entity.Cell.Col, &kind); err != nil {
		return grid.Entity{}, err
	}
	entity.Kind = grid.Kind(kind)
	return entity, nil
}

// ListEntities returns every entity in zone ordered by row, column, id.
func (s *Store) ListEntities(ctx context.Context, zone string) ([]grid.Entity, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if s == nil || s.sqlDB == nil {
		return nil, fmt.Errorf("storage is not configured")
	}
	zone = strings.TrimSpace(zone)
	if zone == "" {
		return nil, fmt.Errorf("zone is required")
	}

	rows, err := s.sqlDB.QueryContext(
		ctx,
		`SELECT id, zone, row_index, col_index, kind
		   FROM positioned_entities
		  WHERE zone = ?
		  ORDER BY row_index ASC, col_index ASC, id ASC`,
		zone,
	)
	if err != nil {
		return nil, fmt.Errorf("list entities: %w", err)
	}
	defer rows.Close()

	entities := []grid.Entity{}
	for rows.Next() {
		entity, err := scanEntity(rows)
		if err != nil {
			return nil, fmt.Errorf("list entities: %w", err)
		}
		entities = append(entities, entity)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("list entities: %w", err)
	}
	return entities, nil
}

// GetEntity returns one entity by id within zone.
func (s *Store) GetEntity(ctx context.Context, zone string, entityID string) (grid.Entity, error) {
	if err := ctx.Err(); err != nil {
		return grid.Entity{}, err
	}
	if s == nil || s.sqlDB == nil {
		return grid.Entity{}, fmt.Errorf("storage is not configured")
	}
	return getEntity(ctx, s.sqlDB, strings.TrimSpace(zone), strings.TrimSpace(entityID))
}

type queryRower interface {
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

func getEntity(ctx context.Context, q queryRower, zone string, entityID string) (grid.Entity, error) {
	if zone == "" || entityID == "" {
		return grid.Entity{}, fmt.Errorf("zone and entity id are required")
	}
	row := q.QueryRowContext(
		ctx,
		`SELECT id, zone, row_index, col_index, kind
		   FROM positioned_entities
		  WHERE id = ? AND zone = ?`,
		entityID,
		zone,
	)
	entity, err := scanEntity(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return grid.Entity{}, storage.ErrNotFound
		}
		return grid.Entity{}, fmt.Errorf("get entity: %w", err)
	}
	return entity, nil
}

// PutEntity creates or replaces one entity record.
func (s *Store) PutEntity(ctx context.Context, entity grid.Entity) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if s == nil || s.sqlDB == nil {
		return fmt.Errorf("storage is not configured")
	}
	entity.ID = strings.TrimSpace(entity.ID)
	entity.Zone = strings.TrimSpace(entity.Zone)
	if entity.ID == "" {
		return fmt.Errorf("entity id is required")
	}
	if entity.Zone == "" {
		return fmt.Errorf("zone is required")
	}
	if entity.Cell.Row < 1 || entity.Cell.Col < 1 {
		return fmt.Errorf("%w: %s", grid.ErrCellOutOfBounds, entity.Cell)
	}
	if !entity.Kind.Valid() {
		return fmt.Errorf("%w: %q", grid.ErrInvalidKind, entity.Kind)
	}

	_, err := s.sqlDB.ExecContext(
		ctx,
		`INSERT INTO positioned_entities (id, zone, row_index, col_index, kind, updated_at)
		 VALUES (?, ?, ?, ?, ?, ?)
		 ON CONFLICT(id) DO UPDATE SET
		   zone = excluded.zone,
		   row_index = excluded.row_index,
		   col_index = excluded.col_index,
		   kind = excluded.kind,
		   updated_at = excluded.updated_at`,
		entity.ID,
		entity.Zone,
		entity.Cell.Row,
		entity.Cell.Col,
		string(entity.Kind),
		toMillis(s.now()),
	)
	if err != nil {
		return fmt.Errorf("put entity: %w", err)
	}
	return nil
}

// MoveEntity applies one move or swap inside a single transaction.
func (s *Store) MoveEntity(ctx context.Context, cmd storage.MoveCommand) ([]grid.Entity, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if s == nil || s.sqlDB == nil {
		return nil, fmt.Errorf("storage is not configured")
	}
	cmd.EntityID = strings.TrimSpace(cmd.EntityID)
	cmd.Zone = strings.TrimSpace(cmd.Zone)
	cmd.SwapWithID = strings.TrimSpace(cmd.SwapWithID)
	if strings.TrimSpace(cmd.ID) == "" {
		return nil, fmt.Errorf("move id is required")
	}
	if cmd.SwapWithID != "" && cmd.SwapWithID == cmd.EntityID {
		return nil, fmt.Errorf("%w: entity cannot swap with itself", storage.ErrConstraintViolation)
	}
	movedAt := cmd.MovedAt.UTC()
	if movedAt.IsZero() {
		movedAt = s.now()
	}

	tx, err := s.sqlDB.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("begin move: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	entity, err := getEntity(ctx, tx, cmd.Zone, cmd.EntityID)
	if err != nil {
		return nil, err
	}
	if entity.Cell == cmd.Target && cmd.SwapWithID == "" {
		return []grid.Entity{entity}, nil
	}

	var updated []grid.Entity
	if cmd.SwapWithID == "" {
		occupants, err := occupantsAt(ctx, tx, cmd.Zone, cmd.Target, entity.ID)
		if err != nil {
			return nil, err
		}
		for _, occupant := range occupants {
			if occupant.Kind == entity.Kind {
				return nil, fmt.Errorf("%w: %s holds %s", storage.ErrOccupied, occupant.ID, cmd.Target)
			}
		}
		if len(occupants) > 0 {
			return nil, fmt.Errorf("%w: %s entity %s holds %s", storage.ErrConstraintViolation, occupants[0].Kind, occupants[0].ID, cmd.Target)
		}
		moved := entity
		moved.Cell = cmd.Target
		if err := setCell(ctx, tx, moved, movedAt); err != nil {
			return nil, err
		}
		updated = []grid.Entity{moved}
	} else {
		partner, err := getEntity(ctx, tx, cmd.Zone, cmd.SwapWithID)
		if err != nil {
			return nil, err
		}
		if partner.Cell != cmd.Target {
			return nil, fmt.Errorf("%w: %s is at %s, not %s", storage.ErrStalePosition, partner.ID, partner.Cell, cmd.Target)
		}
		if partner.Kind != entity.Kind {
			return nil, fmt.Errorf("%w: cannot swap %s with %s", storage.ErrConstraintViolation, entity.Kind, partner.Kind)
		}
		moved := entity
		moved.Cell = partner.Cell
		partner.Cell = entity.Cell
		if err := setCell(ctx, tx, moved, movedAt); err != nil {
			return nil, err
		}
		if err := setCell(ctx, tx, partner, movedAt); err != nil {
			return nil, err
		}
		updated = []grid.Entity{moved, partner}
	}

	if _, err := tx.ExecContext(
		ctx,
		`INSERT INTO position_moves (
		   id, entity_id, zone, from_row, from_col, to_row, to_col, swap_with_id, moved_at
		 ) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		cmd.ID,
		entity.ID,
		cmd.Zone,
		entity.Cell.Row,
		entity.Cell.Col,
		cmd.Target.Row,
		cmd.Target.Col,
		cmd.SwapWithID,
		toMillis(movedAt),
	); err != nil {
		if isUniqueViolation(err) {
			return nil, fmt.Errorf("move %s already recorded: %w", cmd.ID, err)
		}
		return nil, fmt.Errorf("record move: %w", err)
	}
	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("commit move: %w", err)
	}
	return updated, nil
}

func occupantsAt(ctx context.Context, tx *sql.Tx, zone string, cell grid.Cell, excludeID string) ([]grid.Entity, error) {
	rows, err := tx.QueryContext(
		ctx,
		`SELECT id, zone, row_index, col_index, kind
		   FROM positioned_entities
		  WHERE zone = ? AND row_index = ? AND col_index = ? AND id <> ?
		  ORDER BY id ASC`,
		zone,
		cell.Row,
		cell.Col,
		excludeID,
	)
	if err != nil {
		return nil, fmt.Errorf("load occupants: %w", err)
	}
	defer rows.Close()

	var out []grid.Entity
	for rows.Next() {
		entity, err := scanEntity(rows)
		if err != nil {
			return nil, fmt.Errorf("load occupants: %w", err)
		}
		out = append(out, entity)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("load occupants: %w", err)
	}
	return out, nil
}

func setCell(ctx context.Context, tx *sql.Tx, entity grid.Entity, at time.Time) error {
	result, err := tx.ExecContext(
		ctx,
		`UPDATE positioned_entities
		    SET row_index = ?, col_index = ?, updated_at = ?
		  WHERE id = ? AND zone = ?`,
		entity.Cell.Row,
		entity.Cell.Col,
		toMillis(at),
		entity.ID,
		entity.Zone,
	)
	if err != nil {
		return fmt.Errorf("update entity %s: %w", entity.ID, err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("update entity %s: %w", entity.ID, err)
	}
	if affected == 0 {
		return storage.ErrNotFound
	}
	return nil
}

// ListMoves returns one page of journal entries for zone, newest first.
func (s *Store) ListMoves(ctx context.Context, zone string, pageSize int, beforeSeq int64, where storage.MoveFilter) (storage.MovePage, error) {
	if err := ctx.Err(); err != nil {
		return storage.MovePage{}, err
	}
	if s == nil || s.sqlDB == nil {
		return storage.MovePage{}, fmt.Errorf("storage is not configured")
	}
	if pageSize <= 0 {
		return storage.MovePage{}, fmt.Errorf("page size must be greater than zero")
	}

	query := `SELECT seq, id, entity_id, zone, from_row, from_col, to_row, to_col, swap_with_id, moved_at
		FROM position_moves
		WHERE zone = ?`
	params := []any{strings.TrimSpace(zone)}
	if beforeSeq > 0 {
		query += " AND seq < ?"
		params = append(params, beforeSeq)
	}
	if clause := strings.TrimSpace(where.Clause); clause != "" {
		query += " AND (" + clause + ")"
		params = append(params, where.Params...)
	}
	query += " ORDER BY seq DESC LIMIT ?"
	params = append(params, pageSize+1)

	rows, err := s.sqlDB.QueryContext(ctx, query, params...)
	if err != nil {
		return storage.MovePage{}, fmt.Errorf("list moves: %w", err)
	}
	defer rows.Close()

	page := storage.MovePage{Moves: make([]storage.Move, 0, pageSize)}
	for rows.Next() {
		var move storage.Move
		var movedAt int64
		if err := rows.Scan(
			&move.Seq,
			&move.ID,
			&move.EntityID,
			&move.Zone,
			&move.From.Row,
			&move.From.Col,
			&move.To.Row,
			&move.To.Col,
			&move.SwapWithID,
			&movedAt,
		); err != nil {
			return storage.MovePage{}, fmt.Errorf("list moves: %w", err)
		}
		move.MovedAt = fromMillis(movedAt)
		page.Moves = append(page.Moves, move)
	}
	if err := rows.Err(); err != nil {
		return storage.MovePage{}, fmt.Errorf("list moves: %w", err)
	}
	if len(page.Moves) > pageSize {
		page.NextCursor = page.Moves[pageSize-1].Seq
		page.Moves = page.Moves[:pageSize]
	}
	return page, nil
}

func isUniqueViolation(err error) bool {
	if err == nil {
		return false
	}
	var sqliteErr *msqlite.Error
	if errors.As(err, &sqliteErr) {
		switch sqliteErr.Code() {
		case sqlite3lib.SQLITE_CONSTRAINT_PRIMARYKEY, sqlite3lib.SQLITE_CONSTRAINT_UNIQUE:
			return true
		}
	}
	return strings.Contains(strings.ToLower(err.Error()), "unique constraint failed")
}

var _ storage.PositionStore = (*Store)(nil)
