package layout

import (
	"math"

	"github.com/louisbranch/soimap/internal/services/placement/domain/grid"
)

// frame is the resolved geometry of one zone inside one container, in
// along/across coordinates.
type frame struct {
	zone       grid.Zone
	alongStart float64
	alongEnd   float64
	pitch      float64
	lines      []float64
	cellSize   float64
	road       road
}

// road is the dead-zone band on the across axis.
type road struct {
	ok     bool
	center float64
	half   float64
}

func newFrame(strategy Strategy, rect Rect, zone grid.Zone) (frame, error) {
	if rect.Empty() {
		return frame{}, ErrEmptyContainer
	}
	if err := zone.Validate(); err != nil {
		return frame{}, err
	}
	along, across := strategy.axes(rect)
	geom := strategy.Geometry()

	f := frame{
		zone:       zone,
		alongStart: along.at(zone.StartX),
		alongEnd:   along.at(zone.EndX),
	}
	f.pitch = (f.alongEnd - f.alongStart) / float64(zone.MaxCols)
	f.cellSize = clampSize(f.pitch*fill(geom.CellFill), geom.MinCellSize, geom.MaxCellSize)

	acrossStart := across.at(zone.StartY)
	acrossEnd := across.at(zone.EndY)
	f.lines = make([]float64, zone.MaxRows)
	if zone.MaxRows == 1 {
		f.lines[0] = (acrossStart + acrossEnd) / 2
	} else {
		step := (acrossEnd - acrossStart) / float64(zone.MaxRows-1)
		for i := range f.lines {
			f.lines[i] = acrossStart + float64(i)*step
		}
	}

	// The road runs between the two middle row lines. The whole drawn road
	// plus its safety margin stays dead; markers shrink, below MinCellSize
	// if needed, so they never reach into it. When the row lines themselves
	// fall inside that band the band stops one marker radius short of them.
	if zone.MaxRows >= 2 {
		k := (zone.MaxRows + 1) / 2
		lo, hi := f.lines[k-1], f.lines[k]
		gap := (hi - lo) / 2
		half := geom.RoadHalfWidth + geom.SafetyMargin
		if room := gap - half; room > 0 {
			f.cellSize = math.Min(f.cellSize, 2*room)
		} else {
			half = gap - f.radius()
		}
		if half > 0 {
			f.road = road{ok: true, center: (lo + hi) / 2, half: half}
		}
	}
	return f, nil
}

func (f frame) radius() float64 {
	return f.cellSize / 2
}

func (f frame) center(cell grid.Cell) (float64, float64) {
	return f.alongStart + (float64(cell.Col)-0.5)*f.pitch, f.lines[cell.Row-1]
}

func (f frame) inRoad(across float64) bool {
	return f.road.ok && math.Abs(across-f.road.center) < f.road.half
}

func (f frame) inBounds(along, across float64) bool {
	r := f.radius()
	if along < f.alongStart-r || along > f.alongEnd+r {
		return false
	}
	return across >= f.lines[0]-r && across <= f.lines[len(f.lines)-1]+r
}

// directHit returns the closest cell whose marker contains the point.
func (f frame) directHit(along, across float64) (grid.Cell, bool) {
	r := f.radius()
	best := grid.Cell{}
	bestDist := math.Inf(1)
	for row := 1; row <= f.zone.MaxRows; row++ {
		for col := 1; col <= f.zone.MaxCols; col++ {
			cell := grid.Cell{Row: row, Col: col}
			ca, cc := f.center(cell)
			dist := math.Hypot(along-ca, across-cc)
			if dist <= r && dist < bestDist {
				best, bestDist = cell, dist
			}
		}
	}
	return best, !math.IsInf(bestDist, 1)
}

// nearest maps a point between markers to the slot that contains it by
// formula: column by pitch, row by closest line.
func (f frame) nearest(along, across float64) grid.Cell {
	col := int(math.Floor((along-f.alongStart)/f.pitch)) + 1
	col = max(1, min(col, f.zone.MaxCols))

	row := 1
	bestDist := math.Abs(across - f.lines[0])
	for i := 1; i < len(f.lines); i++ {
		if dist := math.Abs(across - f.lines[i]); dist < bestDist {
			row, bestDist = i+1, dist
		}
	}
	return grid.Cell{Row: row, Col: col}
}

func fill(ratio float64) float64 {
	if ratio <= 0 {
		return 1
	}
	return ratio
}

func clampSize(value, lo, hi float64) float64 {
	if lo > 0 && value < lo {
		value = lo
	}
	if hi > 0 && value > hi {
		value = hi
	}
	return value
}
