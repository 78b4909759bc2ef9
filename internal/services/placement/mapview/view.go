// Package mapview is the editing session of one zone map.
//
// A View owns the drag machine (and with it the optimistic overlay and the
// operation lock) for a single zone, keeps the authoritative snapshot, and
// runs remote commits in the background. All methods are safe for
// concurrent use; gesture handlers and the commit goroutine are serialized
// on one mutex so the machine never sees concurrent calls.
package mapview

import (
	"context"
	"errors"
	"fmt"
	"log"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/louisbranch/soimap/internal/platform/i18n/catalog"
	platformotel "github.com/louisbranch/soimap/internal/platform/otel"
	"github.com/louisbranch/soimap/internal/platform/timeouts"
	"github.com/louisbranch/soimap/internal/services/placement/domain/conflict"
	"github.com/louisbranch/soimap/internal/services/placement/domain/drag"
	"github.com/louisbranch/soimap/internal/services/placement/domain/grid"
	"github.com/louisbranch/soimap/internal/services/placement/domain/layout"
	"github.com/louisbranch/soimap/internal/services/placement/domain/position"
	"github.com/louisbranch/soimap/internal/services/placement/syncclient"
	"go.opentelemetry.io/otel/attribute"
	otelcodes "go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/trace"
	"golang.org/x/sync/errgroup"
	"golang.org/x/text/message"
)

var (
	// ErrNotLoaded rejects gestures before Load has succeeded.
	ErrNotLoaded = errors.New("map view is not loaded")
	// ErrClosed rejects calls after Close.
	ErrClosed = errors.New("map view is closed")
)

// Remote executes move and swap requests.
type Remote interface {
	Move(ctx context.Context, req syncclient.Request) ([]grid.Entity, error)
}

// Source returns the authoritative entity list of a zone.
type Source interface {
	Entities(ctx context.Context, zone string) ([]grid.Entity, error)
}

// ZoneProvider returns zone configuration by name.
type ZoneProvider interface {
	Zone(ctx context.Context, name string) (grid.Zone, error)
}

// Config wires a View.
type Config struct {
	Zone   string
	Remote Remote
	Source Source
	Zones  ZoneProvider

	// Rect is the container. Mode, when empty, follows the container width.
	Rect   layout.Rect
	Mode   layout.Mode
	Mapper layout.Mapper
	Locale string

	Throttle      time.Duration
	GraceWindow   time.Duration
	CommitTimeout time.Duration
	IdleTimeout   time.Duration
	Clock         func() time.Time

	Notifier Notifier
	Logf     func(string, ...any)
}

// Placement is where one entity renders.
type Placement struct {
	Entity grid.Entity
	Pixel  layout.Placement
	// Speculative marks a position not yet confirmed by the service.
	Speculative bool
}

// View is the editing session of one zone map.
type View struct {
	mu sync.Mutex

	zoneName string
	remote   Remote
	source   Source
	zones    ZoneProvider
	mapper   layout.Mapper
	timeout  time.Duration
	notifier Notifier
	logf     func(string, ...any)
	printer  *message.Printer
	tracer   trace.Tracer
	commits  metric.Int64Counter

	machine  *drag.Machine
	zone     grid.Zone
	index    *position.Index
	loaded   bool
	closed   bool
	rect     layout.Rect
	mode     layout.Mode
	autoMode bool

	pending *pendingCommit
	done    chan struct{}
	last    drag.Resolution
}

type pendingCommit struct {
	token  uint64
	cancel context.CancelFunc
	timer  *time.Timer
	span   trace.Span
}

// New builds a view with edit mode off. Call Load before any gesture.
func New(cfg Config) (*View, error) {
	zoneName := strings.TrimSpace(cfg.Zone)
	if zoneName == "" {
		return nil, fmt.Errorf("zone is required")
	}
	if cfg.Remote == nil || cfg.Source == nil || cfg.Zones == nil {
		return nil, fmt.Errorf("remote, source, and zone provider are required")
	}
	if cfg.Mapper.Desktop == nil || cfg.Mapper.Mobile == nil {
		cfg.Mapper = layout.DefaultMapper()
	}
	if cfg.Throttle == 0 {
		cfg.Throttle = timeouts.MoveThrottle
	}
	if cfg.GraceWindow <= 0 {
		cfg.GraceWindow = timeouts.GraceWindow
	}
	if cfg.CommitTimeout <= 0 {
		cfg.CommitTimeout = timeouts.Commit
	}
	if cfg.IdleTimeout == 0 {
		cfg.IdleTimeout = timeouts.DragIdle
	}
	if cfg.Logf == nil {
		cfg.Logf = log.Printf
	}

	mode := cfg.Mode
	autoMode := mode == ""
	if autoMode {
		mode = layout.ModeForWidth(cfg.Rect.Width)
	} else if _, err := layout.ParseMode(string(mode)); err != nil {
		return nil, err
	}

	commits, err := platformotel.Meter().Int64Counter(
		"placement.commits",
		metric.WithDescription("Resolved move and swap commits by outcome."),
	)
	if err != nil {
		cfg.Logf("placement commit counter unavailable: %v", err)
	}

	done := make(chan struct{})
	close(done)
	return &View{
		zoneName: zoneName,
		remote:   cfg.Remote,
		source:   cfg.Source,
		zones:    cfg.Zones,
		mapper:   cfg.Mapper,
		timeout:  cfg.CommitTimeout,
		notifier: cfg.Notifier,
		logf:     cfg.Logf,
		printer:  catalog.Default().Printer(cfg.Locale),
		tracer:   platformotel.Tracer(),
		commits:  commits,
		machine: drag.NewMachine(drag.Config{
			Mapper:      cfg.Mapper,
			Throttle:    cfg.Throttle,
			GraceWindow: cfg.GraceWindow,
			IdleTimeout: cfg.IdleTimeout,
			Clock:       cfg.Clock,
		}),
		rect:     cfg.Rect,
		mode:     mode,
		autoMode: autoMode,
		done:     done,
	}, nil
}

// Load fetches the zone configuration and the entity list concurrently.
func (v *View) Load(ctx context.Context) error {
	var (
		zone     grid.Zone
		entities []grid.Entity
	)
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		loaded, err := v.zones.Zone(gctx, v.zoneName)
		if err != nil {
			return fmt.Errorf("load zone %s: %w", v.zoneName, err)
		}
		zone = loaded
		return nil
	})
	g.Go(func() error {
		loaded, err := v.source.Entities(gctx, v.zoneName)
		if err != nil {
			return fmt.Errorf("load entities for %s: %w", v.zoneName, err)
		}
		entities = loaded
		return nil
	})
	if err := g.Wait(); err != nil {
		return err
	}
	if err := zone.Validate(); err != nil {
		return err
	}

	v.mu.Lock()
	if v.closed {
		v.mu.Unlock()
		return ErrClosed
	}
	v.zone = zone
	v.loaded = true
	notice, warn := v.applySnapshotLocked(entities)
	v.mu.Unlock()

	if warn {
		v.notify(notice)
	}
	return nil
}

// Refresh refetches the entity list and applies it as the new snapshot.
func (v *View) Refresh(ctx context.Context) error {
	entities, err := v.source.Entities(ctx, v.zoneName)
	if err != nil {
		return fmt.Errorf("refresh entities for %s: %w", v.zoneName, err)
	}
	return v.ApplySnapshot(entities)
}

// ApplySnapshot replaces the authoritative positions. Overlay entries the
// snapshot already reflects are dropped; once no commit is pending and the
// grace window has passed, any remaining entries are dropped too.
func (v *View) ApplySnapshot(entities []grid.Entity) error {
	v.mu.Lock()
	if v.closed {
		v.mu.Unlock()
		return ErrClosed
	}
	if !v.loaded {
		v.mu.Unlock()
		return ErrNotLoaded
	}
	notice, warn := v.applySnapshotLocked(entities)
	v.mu.Unlock()

	if warn {
		v.notify(notice)
	}
	return nil
}

func (v *View) applySnapshotLocked(entities []grid.Entity) (Notification, bool) {
	v.index = position.NewIndex(v.zoneName, entities)
	if dropped := v.machine.Supersede(v.index); len(dropped) > 0 {
		v.logf("overlay superseded for %s: %s", v.zoneName, strings.Join(dropped, ","))
	}
	duplicates := v.index.Duplicates()
	if len(duplicates) == 0 {
		return Notification{}, false
	}
	for _, dup := range duplicates {
		v.logf("duplicate fixed position in %s at %s: %s", v.zoneName, dup.Cell, strings.Join(dup.EntityIDs, ","))
	}
	return Notification{
		Kind:    NoticeDuplicates,
		Message: v.printer.Sprintf(msgDuplicates, len(duplicates)),
	}, true
}

// Duplicates lists confirmed cells shared by more than one fixed entity.
func (v *View) Duplicates() []position.Duplicate {
	v.mu.Lock()
	defer v.mu.Unlock()
	return v.index.Duplicates()
}

// SetEditMode toggles editing. Turning it off cancels a drag that has not
// started committing; a pending commit still resolves.
func (v *View) SetEditMode(on bool) {
	v.mu.Lock()
	defer v.mu.Unlock()
	if v.closed {
		return
	}
	if v.machine.SetEditing(on) {
		v.logf("drag cancelled: edit mode off")
	}
}

// Editing reports whether edit mode is on.
func (v *View) Editing() bool {
	v.mu.Lock()
	defer v.mu.Unlock()
	return v.machine.Editing()
}

// Resize changes the container. In automatic mode the layout follows the
// new width.
func (v *View) Resize(rect layout.Rect) {
	v.mu.Lock()
	defer v.mu.Unlock()
	v.rect = rect
	if v.autoMode {
		v.mode = layout.ModeForWidth(rect.Width)
	}
}

// SetMode pins the layout mode. An empty mode restores automatic selection.
func (v *View) SetMode(mode layout.Mode) error {
	v.mu.Lock()
	defer v.mu.Unlock()
	if mode == "" {
		v.autoMode = true
		v.mode = layout.ModeForWidth(v.rect.Width)
		return nil
	}
	if _, err := layout.ParseMode(string(mode)); err != nil {
		return err
	}
	v.autoMode = false
	v.mode = mode
	return nil
}

// Mode returns the active layout mode.
func (v *View) Mode() layout.Mode {
	v.mu.Lock()
	defer v.mu.Unlock()
	return v.mode
}

// Zone returns the loaded zone configuration.
func (v *View) Zone() grid.Zone {
	v.mu.Lock()
	defer v.mu.Unlock()
	return v.zone
}

// Phase returns the drag phase. A drag left idle past the idle timeout is
// dropped first.
func (v *View) Phase() drag.Phase {
	v.mu.Lock()
	defer v.mu.Unlock()
	if v.machine.DropIdle() {
		v.logf("drag abandoned after idle timeout")
	}
	return v.machine.Phase()
}

// Locked reports whether a new drag would be refused.
func (v *View) Locked() bool {
	v.mu.Lock()
	defer v.mu.Unlock()
	return v.machine.Locked()
}

// Overlay returns a copy of the speculative positions.
func (v *View) Overlay() map[string]grid.Cell {
	v.mu.Lock()
	defer v.mu.Unlock()
	return v.machine.Overlay()
}

// Entities returns the merged positions, sorted by id.
func (v *View) Entities() []grid.Entity {
	v.mu.Lock()
	defer v.mu.Unlock()
	return v.machine.View(v.index).Entities()
}

// Placements lays out every entity at its merged position.
func (v *View) Placements() ([]Placement, error) {
	v.mu.Lock()
	defer v.mu.Unlock()
	if !v.loaded {
		return nil, ErrNotLoaded
	}
	speculative := v.machine.Overlay()
	entities := v.machine.View(v.index).Entities()
	out := make([]Placement, 0, len(entities))
	for _, entity := range entities {
		pixel, err := v.mapper.GridToPixel(entity.Cell, v.mode, v.rect, v.zone)
		if err != nil {
			return nil, fmt.Errorf("layout %s: %w", entity.ID, err)
		}
		_, spec := speculative[entity.ID]
		out = append(out, Placement{Entity: entity, Pixel: pixel, Speculative: spec})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Entity.ID < out[j].Entity.ID })
	return out, nil
}

// CellCenter returns the pixel center of cell in the current layout.
func (v *View) CellCenter(cell grid.Cell) (layout.Point, error) {
	v.mu.Lock()
	defer v.mu.Unlock()
	if !v.loaded {
		return layout.Point{}, ErrNotLoaded
	}
	pixel, err := v.mapper.GridToPixel(cell, v.mode, v.rect, v.zone)
	if err != nil {
		return layout.Point{}, err
	}
	return pixel.Center(), nil
}

// Begin starts dragging entityID.
func (v *View) Begin(entityID string, g drag.Gesture) error {
	v.mu.Lock()
	defer v.mu.Unlock()
	if err := v.readyLocked(); err != nil {
		return err
	}
	return v.machine.Begin(entityID, g, v.surfaceLocked())
}

// Move tracks the pointer during a drag.
func (v *View) Move(g drag.Gesture) (drag.Evaluation, bool, error) {
	v.mu.Lock()
	defer v.mu.Unlock()
	if err := v.readyLocked(); err != nil {
		return drag.Evaluation{}, false, err
	}
	return v.machine.Move(g, v.surfaceLocked())
}

// Release ends the gesture. A valid drop is applied to the overlay at once
// and committed in the background; use Await to wait for the outcome.
func (v *View) Release(g drag.Gesture) (drag.Release, error) {
	v.mu.Lock()
	if err := v.readyLocked(); err != nil {
		v.mu.Unlock()
		return drag.Release{}, err
	}
	entityID := ""
	if session, ok := v.machine.Session(); ok {
		entityID = session.EntityID
	}
	release, err := v.machine.Release(g, v.surfaceLocked())
	if err != nil || release.Outcome != drag.OutcomeCommitting {
		v.mu.Unlock()
		if err == nil && release.Outcome == drag.OutcomeBlocked {
			if notice, ok := blockedNotice(v.printer, entityID, release.Evaluation.Decision); ok {
				v.notify(notice)
			}
		}
		return release, err
	}
	v.startCommitLocked(*release.Commit)
	v.mu.Unlock()
	return release, nil
}

// Cancel abandons a drag that has not started committing.
func (v *View) Cancel() bool {
	v.mu.Lock()
	defer v.mu.Unlock()
	return v.machine.Cancel()
}

// Await blocks until the latest commit resolves and returns its resolution.
// Without a pending commit it returns the previous resolution at once.
func (v *View) Await(ctx context.Context) (drag.Resolution, error) {
	v.mu.Lock()
	done := v.done
	v.mu.Unlock()

	select {
	case <-done:
		v.mu.Lock()
		defer v.mu.Unlock()
		return v.last, nil
	case <-ctx.Done():
		return drag.Resolution{}, ctx.Err()
	}
}

// Close tears the session down. A pending commit is abandoned and its
// overlay entries discarded.
func (v *View) Close() {
	v.mu.Lock()
	defer v.mu.Unlock()
	if v.closed {
		return
	}
	v.closed = true
	if v.pending != nil {
		inflight, _ := v.machine.InFlight()
		v.finishLocked(drag.Resolution{Commit: inflight, Err: ErrClosed}, "closed")
	}
	v.machine.Reset()
}

func (v *View) readyLocked() error {
	if v.closed {
		return ErrClosed
	}
	if !v.loaded {
		return ErrNotLoaded
	}
	return nil
}

func (v *View) surfaceLocked() drag.Surface {
	return drag.Surface{Mode: v.mode, Rect: v.rect, Zone: v.zone, Index: v.index}
}

func (v *View) startCommitLocked(commit drag.Commit) {
	ctx, cancel := context.WithTimeout(context.Background(), v.timeout)
	ctx, span := v.tracer.Start(ctx, "placement.commit", trace.WithAttributes(
		attribute.String("placement.entity_id", commit.EntityID),
		attribute.String("placement.zone", commit.Zone),
		attribute.String("placement.classification", commit.Classification.String()),
		attribute.Int("placement.target_row", commit.Target.Row),
		attribute.Int("placement.target_col", commit.Target.Col),
	))

	token := commit.Token
	v.pending = &pendingCommit{
		token:  token,
		cancel: cancel,
		span:   span,
		timer: time.AfterFunc(v.timeout, func() {
			v.expire(token)
		}),
	}
	v.done = make(chan struct{})
	v.logf("commit %d started: %s %s to %s", token, commit.Classification, commit.EntityID, commit.Target)

	req := syncclient.Request{
		EntityID:   commit.EntityID,
		Zone:       commit.Zone,
		Target:     commit.Target,
		SwapWithID: commit.SwapWithID,
	}
	go func() {
		_, err := v.remote.Move(ctx, req)
		v.resolve(token, err)
	}()
}

func (v *View) resolve(token uint64, err error) {
	v.mu.Lock()
	if v.pending == nil || v.pending.token != token {
		v.mu.Unlock()
		return
	}
	res, ok := v.machine.Resolve(token, err)
	if !ok {
		v.mu.Unlock()
		return
	}
	notice := resolutionNotice(v.printer, res)
	v.finishLocked(res, outcomeLabel(res))
	v.mu.Unlock()

	v.notify(notice)
}

func (v *View) expire(token uint64) {
	v.mu.Lock()
	if v.pending == nil || v.pending.token != token {
		v.mu.Unlock()
		return
	}
	res, ok := v.machine.Expire(token)
	if !ok {
		v.mu.Unlock()
		return
	}
	v.logf("commit %d expired after %s", token, v.timeout)
	notice := resolutionNotice(v.printer, res)
	v.finishLocked(res, outcomeLabel(res))
	v.mu.Unlock()

	v.notify(notice)
}

// finishLocked releases the pending commit's resources and wakes Await.
func (v *View) finishLocked(res drag.Resolution, outcome string) {
	pending := v.pending
	v.pending = nil
	pending.timer.Stop()
	pending.cancel()
	if res.Err != nil {
		pending.span.RecordError(res.Err)
		pending.span.SetStatus(otelcodes.Error, outcome)
	}
	pending.span.SetAttributes(attribute.String("placement.outcome", outcome))
	pending.span.End()
	if v.commits != nil {
		v.commits.Add(context.Background(), 1, metric.WithAttributes(attribute.String("outcome", outcome)))
	}

	if res.Err == nil {
		v.logf("commit %d saved: %s at %s", pending.token, res.Commit.EntityID, res.Commit.Target)
	} else {
		v.logf("commit %d failed (%s): %v; rolled back %s", pending.token, outcome, res.Err, strings.Join(res.RolledBack, ","))
	}
	v.last = res
	close(v.done)
}

func outcomeLabel(res drag.Resolution) string {
	if res.Succeeded() {
		if res.Commit.Classification == conflict.Swap {
			return "swapped"
		}
		return "moved"
	}
	reason, timeout := failure(res.Err)
	if timeout {
		return "timeout"
	}
	return string(reason)
}

func (v *View) notify(n Notification) {
	if v.notifier == nil {
		return
	}
	v.notifier.Notify(n)
}
