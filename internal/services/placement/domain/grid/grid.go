// Package grid defines the placement vocabulary shared by every layer:
// positioned entities, their kinds, zone configuration, and grid cells.
//
// Cells are 1-based. A zone with MaxRows=2 and MaxCols=20 accepts rows 1..2
// and columns 1..20; anything else is out of bounds.
package grid

import (
	"errors"
	"fmt"
	"strings"
)

var (
	// ErrCellOutOfBounds indicates a cell outside the zone's row/col range.
	ErrCellOutOfBounds = errors.New("cell is outside zone bounds")
	// ErrInvalidZone indicates a zone configuration that cannot be laid out.
	ErrInvalidZone = errors.New("invalid zone configuration")
	// ErrInvalidKind indicates an unknown entity kind.
	ErrInvalidKind = errors.New("invalid entity kind")
)

// Kind separates entities that may swap with each other.
type Kind string

const (
	// KindFixed is a venue whose position is tied to administrative records.
	KindFixed Kind = "fixed"
	// KindIndependent is a freelance worker with a zone-restricted position.
	KindIndependent Kind = "independent"
)

// Valid reports whether k is a known kind.
func (k Kind) Valid() bool {
	return k == KindFixed || k == KindIndependent
}

// ParseKind normalizes a kind label.
func ParseKind(value string) (Kind, error) {
	kind := Kind(strings.ToLower(strings.TrimSpace(value)))
	if !kind.Valid() {
		return "", fmt.Errorf("%w: %q", ErrInvalidKind, value)
	}
	return kind, nil
}

// Cell addresses one slot of a zone grid.
type Cell struct {
	Row int
	Col int
}

// String renders the cell as (row,col).
func (c Cell) String() string {
	return fmt.Sprintf("(%d,%d)", c.Row, c.Col)
}

// Entity is one positioned entity as reported by the authoritative store.
type Entity struct {
	ID   string
	Zone string
	Cell Cell
	Kind Kind
}

// Zone describes the grid bounds and the usable rendering rectangle of one
// zone. Start/End values are percentages of the container along each axis.
type Zone struct {
	Name    string
	MaxRows int
	MaxCols int
	StartX  float64
	EndX    float64
	StartY  float64
	EndY    float64
}

// Validate checks bounds and rectangle percentages.
func (z Zone) Validate() error {
	if strings.TrimSpace(z.Name) == "" {
		return fmt.Errorf("%w: name is required", ErrInvalidZone)
	}
	if z.MaxRows < 1 || z.MaxCols < 1 {
		return fmt.Errorf("%w: %s needs at least one row and one column", ErrInvalidZone, z.Name)
	}
	if !percentRange(z.StartX, z.EndX) {
		return fmt.Errorf("%w: %s x range %.2f..%.2f", ErrInvalidZone, z.Name, z.StartX, z.EndX)
	}
	if !percentRange(z.StartY, z.EndY) {
		return fmt.Errorf("%w: %s y range %.2f..%.2f", ErrInvalidZone, z.Name, z.StartY, z.EndY)
	}
	return nil
}

// Contains reports whether c lies within the zone grid.
func (z Zone) Contains(c Cell) bool {
	return c.Row >= 1 && c.Row <= z.MaxRows && c.Col >= 1 && c.Col <= z.MaxCols
}

// CheckCell returns ErrCellOutOfBounds when c is outside the zone grid.
func (z Zone) CheckCell(c Cell) error {
	if !z.Contains(c) {
		return fmt.Errorf("%w: %s in %s (%dx%d)", ErrCellOutOfBounds, c, z.Name, z.MaxRows, z.MaxCols)
	}
	return nil
}

// Cells lists every cell of the zone in row-major order.
func (z Zone) Cells() []Cell {
	if z.MaxRows < 1 || z.MaxCols < 1 {
		return nil
	}
	cells := make([]Cell, 0, z.MaxRows*z.MaxCols)
	for row := 1; row <= z.MaxRows; row++ {
		for col := 1; col <= z.MaxCols; col++ {
			cells = append(cells, Cell{Row: row, Col: col})
		}
	}
	return cells
}

func percentRange(start, end float64) bool {
	return start >= 0 && end <= 100 && start < end
}
