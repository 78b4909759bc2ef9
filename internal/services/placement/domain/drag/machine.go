// Package drag implements the drag session state machine for one map view.
//
// A Machine owns the single drag session, the optimistic overlay, and the
// operation lock of its view. It is synchronous: the remote commit happens
// outside, and its outcome is reported back through Resolve or Expire using
// the token issued when the commit started. A Machine is not safe for
// concurrent use.
package drag

import (
	"errors"
	"fmt"
	"time"

	"github.com/louisbranch/soimap/internal/services/placement/domain/conflict"
	"github.com/louisbranch/soimap/internal/services/placement/domain/grid"
	"github.com/louisbranch/soimap/internal/services/placement/domain/layout"
	"github.com/louisbranch/soimap/internal/services/placement/domain/oplock"
	"github.com/louisbranch/soimap/internal/services/placement/domain/overlay"
	"github.com/louisbranch/soimap/internal/services/placement/domain/position"
)

const (
	// DefaultThrottle bounds how often move events are evaluated.
	DefaultThrottle = 16 * time.Millisecond
	// DefaultGraceWindow is how long the lock is held after a successful commit.
	DefaultGraceWindow = 500 * time.Millisecond
	// DefaultIdleTimeout is how long a drag may go without pointer events
	// before it is torn down.
	DefaultIdleTimeout = 30 * time.Second
)

var (
	// ErrEditModeOff rejects a drag while the view is read-only.
	ErrEditModeOff = errors.New("edit mode is off")
	// ErrCommitInFlight rejects a drag while a commit is pending.
	ErrCommitInFlight = errors.New("a commit is in flight")
	// ErrLocked rejects a drag inside the post-commit grace window.
	ErrLocked = errors.New("operation lock is held")
	// ErrSessionActive rejects a second drag while one is in progress.
	ErrSessionActive = errors.New("a drag session is already active")
	// ErrNoSession indicates a move or release without a drag in progress.
	ErrNoSession = errors.New("no drag session")
	// ErrUnknownEntity rejects a drag of an entity outside the view.
	ErrUnknownEntity = errors.New("entity is not in this view")
	// ErrCommitTimeout is reported when a commit never resolved.
	ErrCommitTimeout = errors.New("commit timed out")
)

// Phase is the lifecycle phase of the drag session.
type Phase int

const (
	// PhaseIdle means no drag is in progress.
	PhaseIdle Phase = iota
	// PhaseDragging means a drag started but has no candidate cell.
	PhaseDragging
	// PhaseEvaluating means the pointer maps to a candidate cell.
	PhaseEvaluating
	// PhaseCommitting means a drop is waiting on the remote store.
	PhaseCommitting
)

func (p Phase) String() string {
	switch p {
	case PhaseDragging:
		return "dragging"
	case PhaseEvaluating:
		return "evaluating"
	case PhaseCommitting:
		return "committing"
	default:
		return "idle"
	}
}

// Surface is what the view currently renders: its layout and the
// authoritative positions.
type Surface struct {
	Mode  layout.Mode
	Rect  layout.Rect
	Zone  grid.Zone
	Index *position.Index
}

// Config tunes a Machine.
type Config struct {
	Mapper      layout.Mapper
	Throttle    time.Duration
	GraceWindow time.Duration
	// IdleTimeout tears down a drag that received no pointer event for this
	// long. Zero means DefaultIdleTimeout; negative disables it.
	IdleTimeout time.Duration
	Clock       func() time.Time
}

// Session is a snapshot of the drag in progress.
type Session struct {
	EntityID  string
	Phase     Phase
	Pointer   layout.Point
	Candidate *grid.Cell
	Decision  conflict.Decision
}

// Evaluation is the result of mapping one pointer position.
type Evaluation struct {
	Pointer   layout.Point
	Candidate *grid.Cell
	Decision  conflict.Decision
}

// Commit describes a drop that must be confirmed by the remote store.
type Commit struct {
	Token          uint64
	EntityID       string
	Zone           string
	From           grid.Cell
	Target         grid.Cell
	SwapWithID     string
	Classification conflict.Classification
	Entries        []overlay.Entry
	// Prior holds the overlay state of every touched entity before the drop.
	Prior     []overlay.Prior
	StartedAt time.Time
}

// EntityIDs returns every entity the commit touches.
func (c Commit) EntityIDs() []string {
	ids := make([]string, 0, len(c.Entries))
	for _, entry := range c.Entries {
		ids = append(ids, entry.EntityID)
	}
	return ids
}

// Outcome is what a release did.
type Outcome int

const (
	// OutcomeCancelled means the release happened outside the container.
	OutcomeCancelled Outcome = iota
	// OutcomeBlocked means the drop target was rejected locally.
	OutcomeBlocked
	// OutcomeNoChange means the entity was dropped on its own cell.
	OutcomeNoChange
	// OutcomeCommitting means the overlay was applied and a commit started.
	OutcomeCommitting
)

func (o Outcome) String() string {
	switch o {
	case OutcomeBlocked:
		return "blocked"
	case OutcomeNoChange:
		return "no_change"
	case OutcomeCommitting:
		return "committing"
	default:
		return "cancelled"
	}
}

// Release is the result of ending a gesture.
type Release struct {
	Outcome    Outcome
	Evaluation Evaluation
	Commit     *Commit
}

// Resolution is the end of a commit.
type Resolution struct {
	Commit     Commit
	Err        error
	RolledBack []string
}

// Succeeded reports whether the remote store accepted the commit.
func (r Resolution) Succeeded() bool {
	return r.Err == nil
}

// Machine is the drag session state machine.
type Machine struct {
	cfg     Config
	overlay *overlay.Overlay
	lock    *oplock.Lock

	editing      bool
	phase        Phase
	session      Session
	lastEval     time.Time
	lastActivity time.Time
	token        uint64
	inflight     *Commit
}

// NewMachine returns an idle machine with edit mode off.
func NewMachine(cfg Config) *Machine {
	if cfg.Clock == nil {
		cfg.Clock = time.Now
	}
	if cfg.Throttle < 0 {
		cfg.Throttle = 0
	}
	if cfg.GraceWindow <= 0 {
		cfg.GraceWindow = DefaultGraceWindow
	}
	if cfg.IdleTimeout == 0 {
		cfg.IdleTimeout = DefaultIdleTimeout
	}
	if cfg.Mapper.Desktop == nil || cfg.Mapper.Mobile == nil {
		cfg.Mapper = layout.DefaultMapper()
	}
	return &Machine{
		cfg:     cfg,
		overlay: overlay.New(),
		lock:    oplock.New(cfg.Clock),
	}
}

// Phase returns the current phase.
func (m *Machine) Phase() Phase {
	return m.phase
}

// Session returns the drag in progress, if any.
func (m *Machine) Session() (Session, bool) {
	if m.phase == PhaseIdle || m.phase == PhaseCommitting {
		return Session{}, false
	}
	session := m.session
	session.Phase = m.phase
	return session, true
}

// Editing reports whether edit mode is on.
func (m *Machine) Editing() bool {
	return m.editing
}

// Locked reports whether a new drag would be refused because of a pending
// commit or the grace window.
func (m *Machine) Locked() bool {
	return m.phase == PhaseCommitting || m.lock.IsLocked()
}

// LockUntil returns the end of the grace window.
func (m *Machine) LockUntil() time.Time {
	return m.lock.Until()
}

// InFlight returns the pending commit.
func (m *Machine) InFlight() (Commit, bool) {
	if m.inflight == nil {
		return Commit{}, false
	}
	return *m.inflight, true
}

// Overlay returns a copy of the speculative positions.
func (m *Machine) Overlay() map[string]grid.Cell {
	return m.overlay.Entries()
}

// View merges the overlay over idx.
func (m *Machine) View(idx *position.Index) position.View {
	return position.Merge(idx, m.overlay)
}

// SetEditing toggles edit mode. Turning it off cancels a drag that has not
// started committing.
func (m *Machine) SetEditing(on bool) bool {
	m.editing = on
	if on {
		return false
	}
	return m.Cancel()
}

// Begin starts dragging entityID from the position carried by g. A drag
// left idle past the idle timeout is dropped first.
func (m *Machine) Begin(entityID string, g Gesture, s Surface) error {
	m.dropIdle()
	switch {
	case !m.editing:
		return ErrEditModeOff
	case m.phase == PhaseCommitting:
		return ErrCommitInFlight
	case m.lock.IsLocked():
		return ErrLocked
	case m.phase != PhaseIdle:
		return ErrSessionActive
	}
	pointer, err := Extract(g)
	if err != nil {
		return err
	}
	if _, ok := m.View(s.Index).Entity(entityID); !ok {
		return fmt.Errorf("%w: %s", ErrUnknownEntity, entityID)
	}
	m.phase = PhaseDragging
	m.session = Session{EntityID: entityID, Pointer: pointer}
	m.lastEval = time.Time{}
	m.lastActivity = m.cfg.Clock()
	return nil
}

// DropIdle tears down a drag that has been idle past the idle timeout and
// reports whether it did. Nothing is committed or rolled back.
func (m *Machine) DropIdle() bool {
	return m.dropIdle()
}

func (m *Machine) dropIdle() bool {
	if m.phase != PhaseDragging && m.phase != PhaseEvaluating {
		return false
	}
	if m.cfg.IdleTimeout < 0 || m.cfg.Clock().Sub(m.lastActivity) < m.cfg.IdleTimeout {
		return false
	}
	m.reset()
	return true
}

// Move tracks the pointer. It evaluates at most once per throttle interval
// and reports whether this event was evaluated.
func (m *Machine) Move(g Gesture, s Surface) (Evaluation, bool, error) {
	m.dropIdle()
	if m.phase != PhaseDragging && m.phase != PhaseEvaluating {
		return Evaluation{}, false, ErrNoSession
	}
	pointer, err := Extract(g)
	if err != nil {
		return Evaluation{}, false, err
	}
	m.session.Pointer = pointer
	now := m.cfg.Clock()
	m.lastActivity = now
	if !m.lastEval.IsZero() && now.Sub(m.lastEval) < m.cfg.Throttle {
		return Evaluation{}, false, nil
	}
	m.lastEval = now
	eval := m.evaluate(pointer, s)
	if eval.Candidate != nil {
		m.phase = PhaseEvaluating
	} else {
		m.phase = PhaseDragging
	}
	return eval, true, nil
}

// Release ends the gesture. A valid drop applies the overlay and returns the
// commit to send; anything else returns the machine to idle without side
// effects.
func (m *Machine) Release(g Gesture, s Surface) (Release, error) {
	m.dropIdle()
	if m.phase != PhaseDragging && m.phase != PhaseEvaluating {
		return Release{}, ErrNoSession
	}
	pointer, err := Extract(g)
	if err != nil {
		m.reset()
		return Release{Outcome: OutcomeCancelled}, err
	}
	if !s.Rect.Contains(pointer) {
		m.reset()
		return Release{Outcome: OutcomeCancelled, Evaluation: Evaluation{Pointer: pointer}}, nil
	}

	eval := m.evaluate(pointer, s)
	decision := eval.Decision
	if decision.Blocked() {
		m.reset()
		outcome := OutcomeBlocked
		if decision.Reason == conflict.ReasonSameCell {
			outcome = OutcomeNoChange
		}
		return Release{Outcome: outcome, Evaluation: eval}, nil
	}

	dragged, ok := m.View(s.Index).Entity(m.session.EntityID)
	if !ok {
		m.reset()
		return Release{Outcome: OutcomeCancelled, Evaluation: eval}, fmt.Errorf("%w: %s", ErrUnknownEntity, m.session.EntityID)
	}
	commit := Commit{
		EntityID:       dragged.ID,
		Zone:           s.Zone.Name,
		From:           dragged.Cell,
		Target:         decision.Target,
		Classification: decision.Classification,
		Entries:        []overlay.Entry{{EntityID: dragged.ID, Cell: decision.Target}},
		StartedAt:      m.cfg.Clock(),
	}
	if decision.Classification == conflict.Swap {
		commit.SwapWithID = decision.Partner.ID
		commit.Entries = append(commit.Entries, overlay.Entry{EntityID: decision.Partner.ID, Cell: dragged.Cell})
	}
	commit.Prior = m.overlay.Snapshot(commit.EntityIDs()...)
	if err := m.overlay.Apply(commit.Entries...); err != nil {
		m.reset()
		return Release{Outcome: OutcomeBlocked, Evaluation: eval}, fmt.Errorf("apply overlay: %w", err)
	}
	m.token++
	commit.Token = m.token
	m.inflight = &commit
	m.phase = PhaseCommitting
	m.session = Session{}
	out := commit
	return Release{Outcome: OutcomeCommitting, Evaluation: eval, Commit: &out}, nil
}

// Cancel abandons a drag that has not started committing. It reports
// whether a session was cancelled.
func (m *Machine) Cancel() bool {
	if m.phase != PhaseDragging && m.phase != PhaseEvaluating {
		return false
	}
	m.reset()
	return true
}

// Resolve finishes the commit identified by token. A nil err keeps the
// overlay and holds the lock for the grace window; any other err puts every
// touched entity back to its pre-drop overlay state. Stale tokens are ignored.
func (m *Machine) Resolve(token uint64, err error) (Resolution, bool) {
	if m.inflight == nil || m.inflight.Token != token {
		return Resolution{}, false
	}
	commit := *m.inflight
	m.inflight = nil
	m.phase = PhaseIdle
	if err == nil {
		m.lock.Hold(m.cfg.GraceWindow)
		return Resolution{Commit: commit}, true
	}
	ids := commit.EntityIDs()
	m.overlay.Restore(commit.Prior...)
	return Resolution{Commit: commit, Err: err, RolledBack: ids}, true
}

// Expire force-resets a commit that never resolved.
func (m *Machine) Expire(token uint64) (Resolution, bool) {
	return m.Resolve(token, ErrCommitTimeout)
}

// Supersede reconciles the overlay with a new authoritative index. Entries
// the index already reflects are dropped. Once no commit is pending and the
// grace window has passed, the remaining entries are dropped as well.
func (m *Machine) Supersede(idx *position.Index) []string {
	dropped := m.overlay.Reconcile(func(id string) (grid.Cell, bool) {
		entity, ok := idx.Entity(id)
		return entity.Cell, ok
	})
	if m.inflight == nil && !m.lock.IsLocked() {
		dropped = append(dropped, m.overlay.Clear()...)
	}
	return dropped
}

// Reset tears the session down. A pending commit is forgotten: its later
// resolution is ignored.
func (m *Machine) Reset() {
	m.reset()
	m.inflight = nil
	m.token++
	m.overlay.Clear()
}

func (m *Machine) reset() {
	m.phase = PhaseIdle
	m.session = Session{}
	m.lastEval = time.Time{}
	m.lastActivity = time.Time{}
}

func (m *Machine) evaluate(pointer layout.Point, s Surface) Evaluation {
	eval := Evaluation{Pointer: pointer}
	view := m.View(s.Index)
	dragged, _ := view.Entity(m.session.EntityID)
	if dragged.ID == "" {
		dragged.ID = m.session.EntityID
	}
	if cell, ok := m.cfg.Mapper.PixelToGrid(pointer, s.Mode, s.Rect, s.Zone); ok {
		eval.Candidate = &cell
	}
	eval.Decision = conflict.Resolver{Zone: s.Zone}.Classify(dragged, eval.Candidate, view)
	m.session.Candidate = eval.Candidate
	m.session.Decision = eval.Decision
	return eval
}
