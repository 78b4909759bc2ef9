package layout

import (
	"errors"
	"fmt"
	"math"
	"testing"

	"github.com/louisbranch/soimap/internal/services/placement/domain/grid"
)

var soi6 = grid.Zone{Name: "soi6", MaxRows: 2, MaxCols: 20, StartX: 5, EndX: 95, StartY: 30, EndY: 70}

func TestGridToPixelDesktop(t *testing.T) {
	t.Parallel()

	mapper := DefaultMapper()
	rect := Rect{Width: 1000, Height: 400}

	got, err := mapper.GridToPixel(grid.Cell{Row: 1, Col: 5}, ModeDesktop, rect, soi6)
	if err != nil {
		t.Fatalf("grid to pixel: %v", err)
	}
	// pitch = 900/20 = 45, x = 50 + 4.5*45, row 1 sits on the 30% line.
	if !near(got.X, 252.5) || !near(got.Y, 120) {
		t.Fatalf("center = (%v,%v), want (252.5,120)", got.X, got.Y)
	}
	if !near(got.CellSize, 36) {
		t.Fatalf("cell size = %v, want 36", got.CellSize)
	}

	bottom, err := mapper.GridToPixel(grid.Cell{Row: 2, Col: 5}, ModeDesktop, rect, soi6)
	if err != nil {
		t.Fatalf("grid to pixel: %v", err)
	}
	if !near(bottom.X, got.X) || !near(bottom.Y, 280) {
		t.Fatalf("bottom center = (%v,%v), want (252.5,280)", bottom.X, bottom.Y)
	}
}

func TestGridToPixelMobileRotates(t *testing.T) {
	t.Parallel()

	mapper := DefaultMapper()
	rect := Rect{Left: 10, Top: 20, Width: 400, Height: 800}

	got, err := mapper.GridToPixel(grid.Cell{Row: 2, Col: 1}, ModeMobile, rect, soi6)
	if err != nil {
		t.Fatalf("grid to pixel: %v", err)
	}
	// Columns run down the height: pitch = 720/20 = 36, first center at 40+18.
	// Row 2 sits on the 70% line of the width, right of the road.
	if !near(got.Y, 20+58) || !near(got.X, 10+280) {
		t.Fatalf("center = (%v,%v), want (290,78)", got.X, got.Y)
	}
	if !near(got.CellSize, 28.8) {
		t.Fatalf("cell size = %v, want 28.8", got.CellSize)
	}
}

func TestGridToPixelClampsCellSize(t *testing.T) {
	t.Parallel()

	mapper := DefaultMapper()
	small, err := mapper.GridToPixel(grid.Cell{Row: 1, Col: 1}, ModeDesktop, Rect{Width: 200, Height: 300}, soi6)
	if err != nil {
		t.Fatalf("grid to pixel: %v", err)
	}
	if small.CellSize != DesktopGeometry.MinCellSize {
		t.Fatalf("small cell size = %v, want %v", small.CellSize, DesktopGeometry.MinCellSize)
	}
	large, err := mapper.GridToPixel(grid.Cell{Row: 1, Col: 1}, ModeDesktop, Rect{Width: 5000, Height: 300}, soi6)
	if err != nil {
		t.Fatalf("grid to pixel: %v", err)
	}
	if large.CellSize != DesktopGeometry.MaxCellSize {
		t.Fatalf("large cell size = %v, want %v", large.CellSize, DesktopGeometry.MaxCellSize)
	}
}

func TestGridToPixelRejectsInvalidInput(t *testing.T) {
	t.Parallel()

	mapper := DefaultMapper()
	if _, err := mapper.GridToPixel(grid.Cell{Row: 3, Col: 1}, ModeDesktop, Rect{Width: 100, Height: 100}, soi6); !errors.Is(err, grid.ErrCellOutOfBounds) {
		t.Fatalf("out of bounds error = %v, want %v", err, grid.ErrCellOutOfBounds)
	}
	if _, err := mapper.GridToPixel(grid.Cell{Row: 1, Col: 1}, ModeDesktop, Rect{}, soi6); !errors.Is(err, ErrEmptyContainer) {
		t.Fatalf("empty container error = %v, want %v", err, ErrEmptyContainer)
	}
	if _, err := mapper.GridToPixel(grid.Cell{Row: 1, Col: 1}, Mode("watch"), Rect{Width: 100, Height: 100}, soi6); !errors.Is(err, ErrUnknownMode) {
		t.Fatalf("unknown mode error = %v, want %v", err, ErrUnknownMode)
	}
}

func TestRoundTripAllCells(t *testing.T) {
	t.Parallel()

	zones := []grid.Zone{
		soi6,
		{Name: "single", MaxRows: 1, MaxCols: 8, StartX: 0, EndX: 100, StartY: 40, EndY: 60},
		{Name: "triple", MaxRows: 3, MaxCols: 12, StartX: 10, EndX: 90, StartY: 10, EndY: 90},
		{Name: "quad", MaxRows: 4, MaxCols: 30, StartX: 0, EndX: 100, StartY: 0, EndY: 100},
	}
	rects := []Rect{
		{Width: 1280, Height: 480},
		{Left: 33, Top: 71, Width: 375, Height: 812},
		{Width: 180, Height: 160},
	}
	mapper := DefaultMapper()
	for _, zone := range zones {
		for _, rect := range rects {
			for _, mode := range []Mode{ModeDesktop, ModeMobile} {
				name := fmt.Sprintf("%s/%s/%vx%v", zone.Name, mode, rect.Width, rect.Height)
				t.Run(name, func(t *testing.T) {
					for _, cell := range zone.Cells() {
						placement, err := mapper.GridToPixel(cell, mode, rect, zone)
						if err != nil {
							t.Fatalf("grid to pixel %s: %v", cell, err)
						}
						got, ok := mapper.PixelToGrid(placement.Center(), mode, rect, zone)
						if !ok {
							t.Fatalf("pixel to grid %s: no cell", cell)
						}
						if got != cell {
							t.Fatalf("round trip %s = %s", cell, got)
						}
					}
				})
			}
		}
	}
}

func TestPixelToGridDeadZoneIsBlocked(t *testing.T) {
	t.Parallel()

	mapper := DefaultMapper()
	rect := Rect{Width: 1000, Height: 400}
	// Road centre is the 50% line; the band reaches 24+8 px either side.
	for x := 40.0; x <= 960; x += 7 {
		for _, y := range []float64{169, 185, 200, 215, 231} {
			p := Point{X: x, Y: y}
			if !mapper.InDeadZone(p, ModeDesktop, rect, soi6) {
				t.Fatalf("expected %v in dead zone", p)
			}
			if cell, ok := mapper.PixelToGrid(p, ModeDesktop, rect, soi6); ok {
				t.Fatalf("pixel to grid %v = %s, want none", p, cell)
			}
		}
	}

	mobile := Rect{Width: 400, Height: 800}
	if cell, ok := mapper.PixelToGrid(Point{X: 200, Y: 300}, ModeMobile, mobile, soi6); ok {
		t.Fatalf("mobile road pixel mapped to %s", cell)
	}
}

func TestShortContainerKeepsWholeRoadDead(t *testing.T) {
	t.Parallel()

	mapper := DefaultMapper()
	// Rows sit on y=60 and y=140. The band reaches 24+8 px either side of
	// y=100, leaving 8 px of room, so markers shrink to 16 px.
	rect := Rect{Width: 1000, Height: 200}
	placement, err := mapper.GridToPixel(grid.Cell{Row: 1, Col: 5}, ModeDesktop, rect, soi6)
	if err != nil {
		t.Fatalf("grid to pixel: %v", err)
	}
	if !near(placement.CellSize, 16) {
		t.Fatalf("cell size = %v, want 16", placement.CellSize)
	}
	for _, y := range []float64{69, 76, 100, 124, 131} {
		p := Point{X: 252.5, Y: y}
		if !mapper.InDeadZone(p, ModeDesktop, rect, soi6) {
			t.Fatalf("expected %v in dead zone", p)
		}
		if cell, ok := mapper.PixelToGrid(p, ModeDesktop, rect, soi6); ok {
			t.Fatalf("pixel to grid %v = %s, want none", p, cell)
		}
	}
	for _, cell := range soi6.Cells() {
		placement, err := mapper.GridToPixel(cell, ModeDesktop, rect, soi6)
		if err != nil {
			t.Fatalf("grid to pixel %s: %v", cell, err)
		}
		if got, ok := mapper.PixelToGrid(placement.Center(), ModeDesktop, rect, soi6); !ok || got != cell {
			t.Fatalf("round trip %s = %s, %v", cell, got, ok)
		}
	}
}

func TestPixelToGridFallsBackToNearestSlot(t *testing.T) {
	t.Parallel()

	mapper := DefaultMapper()
	rect := Rect{Width: 1000, Height: 400}

	// Between the row-2 line and the road band, off the marker radius.
	got, ok := mapper.PixelToGrid(Point{X: 252.5, Y: 240}, ModeDesktop, rect, soi6)
	if !ok {
		t.Fatal("expected a cell")
	}
	if got != (grid.Cell{Row: 2, Col: 5}) {
		t.Fatalf("cell = %s, want (2,5)", got)
	}

	// Column edge between markers resolves by pitch.
	got, ok = mapper.PixelToGrid(Point{X: 94, Y: 105}, ModeDesktop, rect, soi6)
	if !ok {
		t.Fatal("expected a cell")
	}
	if got != (grid.Cell{Row: 1, Col: 1}) {
		t.Fatalf("cell = %s, want (1,1)", got)
	}
}

func TestPixelToGridOutsideBounds(t *testing.T) {
	t.Parallel()

	mapper := DefaultMapper()
	rect := Rect{Left: 100, Top: 100, Width: 1000, Height: 400}
	testCases := []Point{
		{X: 50, Y: 220},    // outside container
		{X: 120, Y: 220},   // left of the zone
		{X: 1090, Y: 220},  // right of the zone
		{X: 400, Y: 150},   // above row 1
		{X: 400, Y: 450},   // below row 2
		{X: 1200, Y: 1200}, // far away
	}
	for _, p := range testCases {
		if cell, ok := mapper.PixelToGrid(p, ModeDesktop, rect, soi6); ok {
			t.Fatalf("pixel to grid %v = %s, want none", p, cell)
		}
	}
}

func TestResizeRelayoutIsDeterministic(t *testing.T) {
	t.Parallel()

	mapper := DefaultMapper()
	cell := grid.Cell{Row: 2, Col: 17}
	first, err := mapper.GridToPixel(cell, ModeDesktop, Rect{Width: 1200, Height: 500}, soi6)
	if err != nil {
		t.Fatalf("grid to pixel: %v", err)
	}
	for _, width := range []float64{800, 1600, 900, 1200} {
		if _, err := mapper.GridToPixel(cell, ModeDesktop, Rect{Width: width, Height: 500}, soi6); err != nil {
			t.Fatalf("grid to pixel: %v", err)
		}
	}
	again, err := mapper.GridToPixel(cell, ModeDesktop, Rect{Width: 1200, Height: 500}, soi6)
	if err != nil {
		t.Fatalf("grid to pixel: %v", err)
	}
	if first != again {
		t.Fatalf("placement drifted: %+v then %+v", first, again)
	}
}

func TestModeSelection(t *testing.T) {
	t.Parallel()

	if got := ModeForWidth(375); got != ModeMobile {
		t.Fatalf("mode for 375 = %s, want %s", got, ModeMobile)
	}
	if got := ModeForWidth(1024); got != ModeDesktop {
		t.Fatalf("mode for 1024 = %s, want %s", got, ModeDesktop)
	}
	mode, err := ParseMode(" Mobile ")
	if err != nil || mode != ModeMobile {
		t.Fatalf("parse mode = %q, %v", mode, err)
	}
	if _, err := ParseMode("tablet"); !errors.Is(err, ErrUnknownMode) {
		t.Fatalf("parse mode error = %v, want %v", err, ErrUnknownMode)
	}
}

func near(a, b float64) bool {
	return math.Abs(a-b) < 1e-9
}
