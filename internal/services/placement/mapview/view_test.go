package mapview

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/louisbranch/soimap/internal/services/placement/domain/conflict"
	"github.com/louisbranch/soimap/internal/services/placement/domain/drag"
	"github.com/louisbranch/soimap/internal/services/placement/domain/grid"
	"github.com/louisbranch/soimap/internal/services/placement/domain/layout"
	"github.com/louisbranch/soimap/internal/services/placement/syncclient"
)

var soi6 = grid.Zone{Name: "soi6", MaxRows: 2, MaxCols: 20, StartX: 5, EndX: 95, StartY: 30, EndY: 70}

func seedEntities() []grid.Entity {
	return []grid.Entity{
		{ID: "bar-a", Zone: "soi6", Cell: grid.Cell{Row: 1, Col: 5}, Kind: grid.KindFixed},
		{ID: "bar-b", Zone: "soi6", Cell: grid.Cell{Row: 1, Col: 8}, Kind: grid.KindFixed},
		{ID: "free-c", Zone: "soi6", Cell: grid.Cell{Row: 2, Col: 3}, Kind: grid.KindIndependent},
	}
}

type syncClock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *syncClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *syncClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

type fakeRemote struct {
	mu      sync.Mutex
	calls   []syncclient.Request
	results chan error
}

func newFakeRemote() *fakeRemote {
	return &fakeRemote{results: make(chan error, 4)}
}

func (r *fakeRemote) Move(ctx context.Context, req syncclient.Request) ([]grid.Entity, error) {
	r.mu.Lock()
	r.calls = append(r.calls, req)
	r.mu.Unlock()
	return nil, <-r.results
}

func (r *fakeRemote) Calls() []syncclient.Request {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]syncclient.Request(nil), r.calls...)
}

type fakeSource struct {
	entities []grid.Entity
	err      error
}

func (s fakeSource) Entities(context.Context, string) ([]grid.Entity, error) {
	return s.entities, s.err
}

type fakeZones struct {
	zone grid.Zone
	err  error
}

func (z fakeZones) Zone(context.Context, string) (grid.Zone, error) {
	return z.zone, z.err
}

type recorder struct {
	notes chan Notification
}

func newRecorder() *recorder {
	return &recorder{notes: make(chan Notification, 16)}
}

func (r *recorder) Notify(n Notification) {
	r.notes <- n
}

func (r *recorder) next(t *testing.T) Notification {
	t.Helper()
	select {
	case n := <-r.notes:
		return n
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for notification")
		return Notification{}
	}
}

func (r *recorder) none(t *testing.T) {
	t.Helper()
	select {
	case n := <-r.notes:
		t.Fatalf("unexpected notification %+v", n)
	case <-time.After(20 * time.Millisecond):
	}
}

type harness struct {
	view   *View
	remote *fakeRemote
	notes  *recorder
	clock  *syncClock
}

func newHarness(t *testing.T, mutate func(*Config)) harness {
	t.Helper()

	h := harness{
		remote: newFakeRemote(),
		notes:  newRecorder(),
		clock:  &syncClock{now: time.Date(2026, 3, 4, 5, 6, 7, 0, time.UTC)},
	}
	cfg := Config{
		Zone:     "soi6",
		Remote:   h.remote,
		Source:   fakeSource{entities: seedEntities()},
		Zones:    fakeZones{zone: soi6},
		Rect:     layout.Rect{Width: 1000, Height: 400},
		Mode:     layout.ModeDesktop,
		Locale:   "en-US",
		Throttle: -1,
		Clock:    h.clock.Now,
		Notifier: h.notes,
		Logf:     t.Logf,
	}
	if mutate != nil {
		mutate(&cfg)
	}
	view, err := New(cfg)
	if err != nil {
		t.Fatalf("new view: %v", err)
	}
	t.Cleanup(func() {
		view.Close()
		close(h.remote.results)
	})
	if err := view.Load(context.Background()); err != nil {
		t.Fatalf("load: %v", err)
	}
	view.SetEditMode(true)
	h.view = view
	return h
}

func (h harness) pointer(t *testing.T, row, col int) drag.PointerEvent {
	t.Helper()
	center, err := h.view.CellCenter(grid.Cell{Row: row, Col: col})
	if err != nil {
		t.Fatalf("cell center: %v", err)
	}
	return drag.PointerEvent{ClientX: center.X, ClientY: center.Y}
}

func (h harness) drop(t *testing.T, id string, from, to grid.Cell) drag.Release {
	t.Helper()
	if err := h.view.Begin(id, h.pointer(t, from.Row, from.Col)); err != nil {
		t.Fatalf("begin: %v", err)
	}
	if _, _, err := h.view.Move(h.pointer(t, to.Row, to.Col)); err != nil {
		t.Fatalf("move: %v", err)
	}
	release, err := h.view.Release(h.pointer(t, to.Row, to.Col))
	if err != nil {
		t.Fatalf("release: %v", err)
	}
	return release
}

func (h harness) await(t *testing.T) drag.Resolution {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	res, err := h.view.Await(ctx)
	if err != nil {
		t.Fatalf("await: %v", err)
	}
	return res
}

func TestViewMoveCommitsAndKeepsOverlay(t *testing.T) {
	t.Parallel()

	h := newHarness(t, nil)
	release := h.drop(t, "bar-a", grid.Cell{Row: 1, Col: 5}, grid.Cell{Row: 2, Col: 5})
	if release.Outcome != drag.OutcomeCommitting {
		t.Fatalf("outcome = %s, want committing", release.Outcome)
	}
	if got := h.view.Overlay()["bar-a"]; got != (grid.Cell{Row: 2, Col: 5}) {
		t.Fatalf("overlay before resolve = %v", got)
	}
	if h.view.Phase() != drag.PhaseCommitting || !h.view.Locked() {
		t.Fatalf("phase = %s locked = %v", h.view.Phase(), h.view.Locked())
	}

	h.remote.results <- nil
	res := h.await(t)
	if !res.Succeeded() {
		t.Fatalf("resolution = %+v", res)
	}
	note := h.notes.next(t)
	if note.Kind != NoticeSaved || note.Message != "Moved bar-a to row 2, column 5." {
		t.Fatalf("notification = %+v", note)
	}
	calls := h.remote.Calls()
	if len(calls) != 1 || calls[0].EntityID != "bar-a" || calls[0].Target != (grid.Cell{Row: 2, Col: 5}) || calls[0].SwapWithID != "" {
		t.Fatalf("calls = %+v", calls)
	}
	if !h.view.Locked() {
		t.Fatal("expected grace window lock after success")
	}
	if err := h.view.Begin("bar-b", h.pointer(t, 1, 8)); !errors.Is(err, drag.ErrLocked) {
		t.Fatalf("begin during grace window = %v, want ErrLocked", err)
	}

	h.clock.Advance(time.Second)
	if h.view.Locked() {
		t.Fatal("lock should clear after the grace window")
	}
	if got := h.view.Overlay()["bar-a"]; got != (grid.Cell{Row: 2, Col: 5}) {
		t.Fatalf("overlay after success = %v, want kept until refresh", got)
	}
}

func TestViewSwapRejectedRollsBack(t *testing.T) {
	t.Parallel()

	h := newHarness(t, nil)
	release := h.drop(t, "bar-a", grid.Cell{Row: 1, Col: 5}, grid.Cell{Row: 1, Col: 8})
	if release.Commit == nil || release.Commit.Classification != conflict.Swap {
		t.Fatalf("release = %+v", release)
	}
	overlay := h.view.Overlay()
	if overlay["bar-a"] != (grid.Cell{Row: 1, Col: 8}) || overlay["bar-b"] != (grid.Cell{Row: 1, Col: 5}) {
		t.Fatalf("overlay = %v", overlay)
	}

	h.remote.results <- &syncclient.RemoteRejection{Reason: syncclient.ReasonOccupied, Message: "Cell 1,8 in soi6 is already occupied."}
	res := h.await(t)
	if res.Succeeded() || len(res.RolledBack) != 2 {
		t.Fatalf("resolution = %+v", res)
	}
	if len(h.view.Overlay()) != 0 {
		t.Fatalf("overlay after rejection = %v", h.view.Overlay())
	}
	if h.view.Locked() {
		t.Fatal("a rejected commit must not hold the lock")
	}

	note := h.notes.next(t)
	if note.Kind != NoticeRejected || note.Reason != syncclient.ReasonOccupied {
		t.Fatalf("notification = %+v", note)
	}
	if note.Message != "Could not move bar-a: that spot was taken by someone else. Positions were restored." {
		t.Fatalf("message = %q", note.Message)
	}
	if note.Detail != "Cell 1,8 in soi6 is already occupied." {
		t.Fatalf("detail = %q", note.Detail)
	}

	entities := h.view.Entities()
	for _, entity := range entities {
		if entity.ID == "bar-a" && entity.Cell != (grid.Cell{Row: 1, Col: 5}) {
			t.Fatalf("bar-a = %v, want restored", entity.Cell)
		}
	}
}

func TestViewCommitTimeoutExpires(t *testing.T) {
	t.Parallel()

	h := newHarness(t, func(cfg *Config) {
		cfg.CommitTimeout = 30 * time.Millisecond
	})
	h.drop(t, "bar-a", grid.Cell{Row: 1, Col: 5}, grid.Cell{Row: 2, Col: 5})

	res := h.await(t)
	if !errors.Is(res.Err, drag.ErrCommitTimeout) {
		t.Fatalf("resolution err = %v, want ErrCommitTimeout", res.Err)
	}
	if h.view.Phase() != drag.PhaseIdle || len(h.view.Overlay()) != 0 {
		t.Fatalf("phase = %s overlay = %v", h.view.Phase(), h.view.Overlay())
	}
	note := h.notes.next(t)
	if !note.Timeout || note.Reason != syncclient.ReasonNetworkError {
		t.Fatalf("notification = %+v", note)
	}
	if note.Message != "Could not move bar-a: the server did not answer in time. Positions were restored." {
		t.Fatalf("message = %q", note.Message)
	}

	// The late answer is ignored.
	h.remote.results <- nil
	h.notes.none(t)
	if len(h.view.Overlay()) != 0 {
		t.Fatalf("late success reapplied overlay: %v", h.view.Overlay())
	}
}

func TestViewBlockedDropNotifiesWithoutCommit(t *testing.T) {
	t.Parallel()

	h := newHarness(t, nil)
	release := h.drop(t, "bar-a", grid.Cell{Row: 1, Col: 5}, grid.Cell{Row: 2, Col: 3})
	if release.Outcome != drag.OutcomeBlocked {
		t.Fatalf("outcome = %s, want blocked", release.Outcome)
	}
	note := h.notes.next(t)
	if note.Kind != NoticeBlocked || note.Block != conflict.ReasonCrossKind {
		t.Fatalf("notification = %+v", note)
	}
	if note.Message != "A venue and an independent worker cannot swap places." {
		t.Fatalf("message = %q", note.Message)
	}
	if len(h.remote.Calls()) != 0 {
		t.Fatalf("remote calls = %d, want 0", len(h.remote.Calls()))
	}
	if h.view.Phase() != drag.PhaseIdle || len(h.view.Overlay()) != 0 {
		t.Fatalf("phase = %s overlay = %v", h.view.Phase(), h.view.Overlay())
	}
}

func TestViewSameCellDropIsSilent(t *testing.T) {
	t.Parallel()

	h := newHarness(t, nil)
	release := h.drop(t, "bar-a", grid.Cell{Row: 1, Col: 5}, grid.Cell{Row: 1, Col: 5})
	if release.Outcome != drag.OutcomeNoChange {
		t.Fatalf("outcome = %s, want no change", release.Outcome)
	}
	h.notes.none(t)
	if len(h.remote.Calls()) != 0 {
		t.Fatal("same-cell drop must not reach the service")
	}
}

func TestViewReleaseOutsideContainerCancels(t *testing.T) {
	t.Parallel()

	h := newHarness(t, nil)
	if err := h.view.Begin("bar-a", h.pointer(t, 1, 5)); err != nil {
		t.Fatalf("begin: %v", err)
	}
	release, err := h.view.Release(drag.PointerEvent{ClientX: 1200, ClientY: 50})
	if err != nil {
		t.Fatalf("release: %v", err)
	}
	if release.Outcome != drag.OutcomeCancelled {
		t.Fatalf("outcome = %s, want cancelled", release.Outcome)
	}
	h.notes.none(t)
}

func TestViewRefusesSecondDragWhileCommitting(t *testing.T) {
	t.Parallel()

	h := newHarness(t, nil)
	h.drop(t, "bar-a", grid.Cell{Row: 1, Col: 5}, grid.Cell{Row: 2, Col: 5})
	if err := h.view.Begin("bar-b", h.pointer(t, 1, 8)); !errors.Is(err, drag.ErrCommitInFlight) {
		t.Fatalf("begin = %v, want ErrCommitInFlight", err)
	}
	h.remote.results <- nil
	h.await(t)
}

func TestViewDropsIdleDrag(t *testing.T) {
	t.Parallel()

	h := newHarness(t, func(cfg *Config) { cfg.IdleTimeout = 5 * time.Second })
	if err := h.view.Begin("bar-a", h.pointer(t, 1, 5)); err != nil {
		t.Fatalf("begin: %v", err)
	}
	h.clock.Advance(4 * time.Second)
	if h.view.Phase() != drag.PhaseDragging {
		t.Fatalf("phase = %s, want dragging before the idle timeout", h.view.Phase())
	}

	h.clock.Advance(time.Second)
	if h.view.Phase() != drag.PhaseIdle {
		t.Fatalf("phase = %s, want idle after the idle timeout", h.view.Phase())
	}
	if err := h.view.Begin("bar-b", h.pointer(t, 1, 8)); err != nil {
		t.Fatalf("begin after idle drop: %v", err)
	}
	if len(h.remote.Calls()) != 0 {
		t.Fatalf("remote calls = %d, want none", len(h.remote.Calls()))
	}
	h.notes.none(t)
}

func TestViewEditModeGatesGestures(t *testing.T) {
	t.Parallel()

	h := newHarness(t, nil)
	if err := h.view.Begin("bar-a", h.pointer(t, 1, 5)); err != nil {
		t.Fatalf("begin: %v", err)
	}
	h.view.SetEditMode(false)
	if h.view.Phase() != drag.PhaseIdle {
		t.Fatalf("phase = %s, want idle after edit mode off", h.view.Phase())
	}
	if err := h.view.Begin("bar-a", h.pointer(t, 1, 5)); !errors.Is(err, drag.ErrEditModeOff) {
		t.Fatalf("begin = %v, want ErrEditModeOff", err)
	}
}

func TestViewApplySnapshotSupersedesOverlay(t *testing.T) {
	t.Parallel()

	h := newHarness(t, nil)
	h.drop(t, "bar-a", grid.Cell{Row: 1, Col: 5}, grid.Cell{Row: 2, Col: 5})
	h.remote.results <- nil
	h.await(t)
	h.notes.next(t)

	// Still inside the grace window: a stale snapshot must not undo the move.
	if err := h.view.ApplySnapshot(seedEntities()); err != nil {
		t.Fatalf("apply stale snapshot: %v", err)
	}
	if got := h.view.Overlay()["bar-a"]; got != (grid.Cell{Row: 2, Col: 5}) {
		t.Fatalf("overlay = %v, want kept inside grace window", got)
	}

	updated := seedEntities()
	updated[0].Cell = grid.Cell{Row: 2, Col: 5}
	if err := h.view.ApplySnapshot(updated); err != nil {
		t.Fatalf("apply snapshot: %v", err)
	}
	if len(h.view.Overlay()) != 0 {
		t.Fatalf("overlay = %v, want reconciled", h.view.Overlay())
	}
	for _, entity := range h.view.Entities() {
		if entity.ID == "bar-a" && entity.Cell != (grid.Cell{Row: 2, Col: 5}) {
			t.Fatalf("bar-a = %v", entity.Cell)
		}
	}
}

func TestViewLoadReportsDuplicates(t *testing.T) {
	t.Parallel()

	notes := newRecorder()
	entities := append(seedEntities(), grid.Entity{ID: "bar-z", Zone: "soi6", Cell: grid.Cell{Row: 1, Col: 5}, Kind: grid.KindFixed})
	view, err := New(Config{
		Zone:     "soi6",
		Remote:   newFakeRemote(),
		Source:   fakeSource{entities: entities},
		Zones:    fakeZones{zone: soi6},
		Rect:     layout.Rect{Width: 1000, Height: 400},
		Notifier: notes,
		Logf:     t.Logf,
	})
	if err != nil {
		t.Fatalf("new: %v", err)
	}
	defer view.Close()
	if err := view.Load(context.Background()); err != nil {
		t.Fatalf("load: %v", err)
	}

	note := notes.next(t)
	if note.Kind != NoticeDuplicates || note.Message != "1 spots hold more than one venue." {
		t.Fatalf("notification = %+v", note)
	}
	dups := view.Duplicates()
	if len(dups) != 1 || len(dups[0].EntityIDs) != 2 {
		t.Fatalf("duplicates = %+v", dups)
	}
}

func TestViewLoadFailures(t *testing.T) {
	t.Parallel()

	boom := errors.New("boom")
	tests := []struct {
		name   string
		source fakeSource
		zones  fakeZones
	}{
		{name: "entities", source: fakeSource{err: boom}, zones: fakeZones{zone: soi6}},
		{name: "zone", source: fakeSource{}, zones: fakeZones{err: boom}},
		{name: "invalid zone", source: fakeSource{}, zones: fakeZones{zone: grid.Zone{Name: "soi6"}}},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			view, err := New(Config{Zone: "soi6", Remote: newFakeRemote(), Source: tc.source, Zones: tc.zones, Logf: t.Logf})
			if err != nil {
				t.Fatalf("new: %v", err)
			}
			if err := view.Load(context.Background()); err == nil {
				t.Fatal("expected load error")
			}
			if err := view.Begin("bar-a", drag.PointerEvent{}); !errors.Is(err, ErrNotLoaded) {
				t.Fatalf("begin = %v, want ErrNotLoaded", err)
			}
			if _, err := view.Placements(); !errors.Is(err, ErrNotLoaded) {
				t.Fatalf("placements = %v, want ErrNotLoaded", err)
			}
		})
	}
}

func TestViewCloseAbandonsPendingCommit(t *testing.T) {
	t.Parallel()

	h := newHarness(t, nil)
	h.drop(t, "bar-a", grid.Cell{Row: 1, Col: 5}, grid.Cell{Row: 2, Col: 5})
	h.view.Close()

	res := h.await(t)
	if !errors.Is(res.Err, ErrClosed) {
		t.Fatalf("resolution err = %v, want ErrClosed", res.Err)
	}
	if len(h.view.Overlay()) != 0 {
		t.Fatalf("overlay = %v", h.view.Overlay())
	}
	if err := h.view.Begin("bar-b", drag.PointerEvent{}); !errors.Is(err, ErrClosed) {
		t.Fatalf("begin = %v, want ErrClosed", err)
	}
	h.remote.results <- nil
	h.notes.none(t)
}

func TestViewPlacementsMarkSpeculativeEntities(t *testing.T) {
	t.Parallel()

	h := newHarness(t, nil)
	h.drop(t, "bar-a", grid.Cell{Row: 1, Col: 5}, grid.Cell{Row: 2, Col: 5})

	placements, err := h.view.Placements()
	if err != nil {
		t.Fatalf("placements: %v", err)
	}
	if len(placements) != 3 {
		t.Fatalf("placements = %d, want 3", len(placements))
	}
	want, _ := h.view.CellCenter(grid.Cell{Row: 2, Col: 5})
	for _, p := range placements {
		switch p.Entity.ID {
		case "bar-a":
			if !p.Speculative || p.Pixel.Center() != want {
				t.Fatalf("bar-a placement = %+v", p)
			}
		default:
			if p.Speculative {
				t.Fatalf("%s should not be speculative", p.Entity.ID)
			}
		}
	}
	h.remote.results <- nil
	h.await(t)
}

func TestViewResizeFollowsWidthInAutoMode(t *testing.T) {
	t.Parallel()

	h := newHarness(t, func(cfg *Config) { cfg.Mode = "" })
	if h.view.Mode() != layout.ModeDesktop {
		t.Fatalf("mode = %s, want desktop", h.view.Mode())
	}
	h.view.Resize(layout.Rect{Width: 360, Height: 800})
	if h.view.Mode() != layout.ModeMobile {
		t.Fatalf("mode = %s, want mobile", h.view.Mode())
	}
	if err := h.view.SetMode(layout.ModeDesktop); err != nil {
		t.Fatalf("set mode: %v", err)
	}
	h.view.Resize(layout.Rect{Width: 320, Height: 800})
	if h.view.Mode() != layout.ModeDesktop {
		t.Fatalf("pinned mode = %s, want desktop", h.view.Mode())
	}
	if err := h.view.SetMode("tablet"); !errors.Is(err, layout.ErrUnknownMode) {
		t.Fatalf("set mode = %v, want ErrUnknownMode", err)
	}
}

func TestViewLocalizesNotifications(t *testing.T) {
	t.Parallel()

	h := newHarness(t, func(cfg *Config) { cfg.Locale = "th-TH" })
	h.drop(t, "bar-a", grid.Cell{Row: 1, Col: 5}, grid.Cell{Row: 2, Col: 5})
	h.remote.results <- nil
	h.await(t)

	note := h.notes.next(t)
	if note.Message != "ย้าย bar-a ไปแถว 2 คอลัมน์ 5 แล้ว" {
		t.Fatalf("message = %q", note.Message)
	}
}

func TestNewRequiresCollaborators(t *testing.T) {
	t.Parallel()

	if _, err := New(Config{Remote: newFakeRemote(), Source: fakeSource{}, Zones: fakeZones{}}); err == nil {
		t.Fatal("expected zone error")
	}
	if _, err := New(Config{Zone: "soi6"}); err == nil {
		t.Fatal("expected collaborator error")
	}
	if _, err := New(Config{Zone: "soi6", Remote: newFakeRemote(), Source: fakeSource{}, Zones: fakeZones{}, Mode: "tablet"}); err == nil {
		t.Fatal("expected mode error")
	}
}
