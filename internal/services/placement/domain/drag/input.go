package drag

import (
	"errors"

	"github.com/louisbranch/soimap/internal/services/placement/domain/layout"
)

// ErrNoCoordinates indicates a gesture event that carries no pointer position.
var ErrNoCoordinates = errors.New("gesture has no coordinates")

// Gesture is one pointer or touch event. The set of implementations is
// closed: PointerEvent and TouchEvent.
type Gesture interface {
	clientPoint() (layout.Point, bool)
}

// PointerEvent is a mouse or pen event in client coordinates.
type PointerEvent struct {
	ClientX float64
	ClientY float64
}

func (e PointerEvent) clientPoint() (layout.Point, bool) {
	return layout.Point{X: e.ClientX, Y: e.ClientY}, true
}

// Touch is one contact point of a touch event.
type Touch struct {
	ClientX float64
	ClientY float64
}

// TouchEvent is a touch start, move, or end event. End events usually carry
// the lifted contact in ChangedTouches only.
type TouchEvent struct {
	Touches        []Touch
	ChangedTouches []Touch
}

func (e TouchEvent) clientPoint() (layout.Point, bool) {
	if len(e.Touches) > 0 {
		return layout.Point{X: e.Touches[0].ClientX, Y: e.Touches[0].ClientY}, true
	}
	if len(e.ChangedTouches) > 0 {
		return layout.Point{X: e.ChangedTouches[0].ClientX, Y: e.ChangedTouches[0].ClientY}, true
	}
	return layout.Point{}, false
}

// Extract returns the client coordinates of g.
func Extract(g Gesture) (layout.Point, error) {
	if g == nil {
		return layout.Point{}, ErrNoCoordinates
	}
	point, ok := g.clientPoint()
	if !ok {
		return layout.Point{}, ErrNoCoordinates
	}
	return point, nil
}
