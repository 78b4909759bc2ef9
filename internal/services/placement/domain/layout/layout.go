// Package layout translates between grid cells and pixel geometry.
//
// A zone grid is drawn along two axes. The "along" axis carries columns,
// evenly spaced across the zone's usable fraction of the container. The
// "across" axis carries rows as fixed lines on either side of a central road.
// Desktop draws columns left to right with rows stacked vertically; mobile
// rotates the whole drawing 90 degrees so columns run top to bottom and rows
// sit left and right of a vertical road. The zone's StartX/EndX percentages
// always apply to the along axis and StartY/EndY to the across axis, so the
// usable rectangle rotates with the layout.
//
// Both directions are pure functions of (cell or pointer, mode, container,
// zone): relayout after a resize never accumulates drift.
//
// The road band between the middle rows, widened by the safety margin, is a
// dead zone. In short containers markers shrink to keep clear of it. Only
// when the container is so short that the row lines sit inside the band is
// the band narrowed, to one marker radius short of each line, so every cell
// stays reachable.
package layout

import (
	"errors"
	"fmt"
	"strings"

	"github.com/louisbranch/soimap/internal/services/placement/domain/grid"
)

// MobileBreakpoint is the container width below which the mobile layout is used.
const MobileBreakpoint = 768.0

var (
	// ErrEmptyContainer indicates a container rectangle without area.
	ErrEmptyContainer = errors.New("container has no area")
	// ErrUnknownMode indicates a device mode with no registered strategy.
	ErrUnknownMode = errors.New("unknown layout mode")
)

// Mode selects the layout strategy for a device class.
type Mode string

const (
	// ModeDesktop lays columns out horizontally.
	ModeDesktop Mode = "desktop"
	// ModeMobile lays columns out vertically.
	ModeMobile Mode = "mobile"
)

// ParseMode normalizes a mode label.
func ParseMode(value string) (Mode, error) {
	switch mode := Mode(strings.ToLower(strings.TrimSpace(value))); mode {
	case ModeDesktop, ModeMobile:
		return mode, nil
	default:
		return "", fmt.Errorf("%w: %q", ErrUnknownMode, value)
	}
}

// ModeForWidth picks the layout mode for a container width.
func ModeForWidth(width float64) Mode {
	if width < MobileBreakpoint {
		return ModeMobile
	}
	return ModeDesktop
}

// Point is a position in client (viewport) pixels.
type Point struct {
	X float64
	Y float64
}

// Rect is the container's bounding box in client pixels.
type Rect struct {
	Left   float64
	Top    float64
	Width  float64
	Height float64
}

// Empty reports whether the rectangle has no area.
func (r Rect) Empty() bool {
	return r.Width <= 0 || r.Height <= 0
}

// Contains reports whether p lies inside or on the edge of r.
func (r Rect) Contains(p Point) bool {
	return p.X >= r.Left && p.X <= r.Left+r.Width &&
		p.Y >= r.Top && p.Y <= r.Top+r.Height
}

// Placement is the rendered position of one cell: its center in client
// pixels and the side length of its marker.
type Placement struct {
	X        float64
	Y        float64
	CellSize float64
}

// Center returns the placement center.
func (p Placement) Center() Point {
	return Point{X: p.X, Y: p.Y}
}

// Geometry tunes a strategy's marker sizing and road dead-zone.
type Geometry struct {
	// MinCellSize and MaxCellSize clamp the marker size in pixels.
	MinCellSize float64
	MaxCellSize float64
	// CellFill is the share of the column pitch a marker occupies.
	CellFill float64
	// RoadHalfWidth is half the drawn road band, in pixels.
	RoadHalfWidth float64
	// SafetyMargin widens the dead-zone beyond the drawn road.
	SafetyMargin float64
}

// DesktopGeometry is the default geometry for the horizontal layout.
var DesktopGeometry = Geometry{
	MinCellSize:   24,
	MaxCellSize:   56,
	CellFill:      0.8,
	RoadHalfWidth: 24,
	SafetyMargin:  8,
}

// MobileGeometry is the default geometry for the vertical layout.
var MobileGeometry = Geometry{
	MinCellSize:   20,
	MaxCellSize:   44,
	CellFill:      0.8,
	RoadHalfWidth: 16,
	SafetyMargin:  6,
}

// Strategy orients a zone grid inside a container. The unexported methods
// keep the set of strategies closed to this package.
type Strategy interface {
	Mode() Mode
	Geometry() Geometry
	axes(rect Rect) (along, across span)
	point(along, across float64) Point
	coords(p Point) (along, across float64)
}

type span struct {
	origin float64
	length float64
}

func (s span) at(percent float64) float64 {
	return s.origin + s.length*(percent/100)
}

// Horizontal is the desktop strategy: columns along X, rows along Y.
type Horizontal struct {
	Geom Geometry
}

// Mode implements Strategy.
func (Horizontal) Mode() Mode { return ModeDesktop }

// Geometry implements Strategy.
func (h Horizontal) Geometry() Geometry { return h.Geom }

func (Horizontal) axes(r Rect) (span, span) {
	return span{origin: r.Left, length: r.Width}, span{origin: r.Top, length: r.Height}
}

func (Horizontal) point(along, across float64) Point { return Point{X: along, Y: across} }

func (Horizontal) coords(p Point) (float64, float64) { return p.X, p.Y }

// Vertical is the mobile strategy: columns along Y, rows along X.
type Vertical struct {
	Geom Geometry
}

// Mode implements Strategy.
func (Vertical) Mode() Mode { return ModeMobile }

// Geometry implements Strategy.
func (v Vertical) Geometry() Geometry { return v.Geom }

func (Vertical) axes(r Rect) (span, span) {
	return span{origin: r.Top, length: r.Height}, span{origin: r.Left, length: r.Width}
}

func (Vertical) point(along, across float64) Point { return Point{X: across, Y: along} }

func (Vertical) coords(p Point) (float64, float64) { return p.Y, p.X }

// Mapper converts between cells and pixels for both device modes.
type Mapper struct {
	Desktop Strategy
	Mobile  Strategy
}

// DefaultMapper returns a mapper with the default desktop and mobile geometry.
func DefaultMapper() Mapper {
	return Mapper{
		Desktop: Horizontal{Geom: DesktopGeometry},
		Mobile:  Vertical{Geom: MobileGeometry},
	}
}

// Strategy returns the strategy registered for mode.
func (m Mapper) Strategy(mode Mode) (Strategy, error) {
	var strategy Strategy
	switch mode {
	case ModeDesktop:
		strategy = m.Desktop
	case ModeMobile:
		strategy = m.Mobile
	}
	if strategy == nil {
		return nil, fmt.Errorf("%w: %q", ErrUnknownMode, mode)
	}
	return strategy, nil
}

// GridToPixel returns the rendered placement of cell.
func (m Mapper) GridToPixel(cell grid.Cell, mode Mode, rect Rect, zone grid.Zone) (Placement, error) {
	strategy, err := m.Strategy(mode)
	if err != nil {
		return Placement{}, err
	}
	f, err := newFrame(strategy, rect, zone)
	if err != nil {
		return Placement{}, err
	}
	if err := zone.CheckCell(cell); err != nil {
		return Placement{}, err
	}
	along, across := f.center(cell)
	p := strategy.point(along, across)
	return Placement{X: p.X, Y: p.Y, CellSize: f.cellSize}, nil
}

// PixelToGrid returns the cell under pointer, or false when the pointer is
// outside the container, outside the zone grid, or inside the road dead-zone.
func (m Mapper) PixelToGrid(pointer Point, mode Mode, rect Rect, zone grid.Zone) (grid.Cell, bool) {
	strategy, err := m.Strategy(mode)
	if err != nil {
		return grid.Cell{}, false
	}
	if !rect.Contains(pointer) {
		return grid.Cell{}, false
	}
	f, err := newFrame(strategy, rect, zone)
	if err != nil {
		return grid.Cell{}, false
	}
	along, across := strategy.coords(pointer)
	if f.inRoad(across) || !f.inBounds(along, across) {
		return grid.Cell{}, false
	}
	if cell, ok := f.directHit(along, across); ok {
		return cell, true
	}
	return f.nearest(along, across), true
}

// InDeadZone reports whether pointer falls inside the road dead-zone.
func (m Mapper) InDeadZone(pointer Point, mode Mode, rect Rect, zone grid.Zone) bool {
	strategy, err := m.Strategy(mode)
	if err != nil {
		return false
	}
	f, err := newFrame(strategy, rect, zone)
	if err != nil {
		return false
	}
	_, across := strategy.coords(pointer)
	return f.inRoad(across)
}
