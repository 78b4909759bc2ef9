package mapview

import (
	"errors"

	"github.com/louisbranch/soimap/internal/services/placement/domain/conflict"
	"github.com/louisbranch/soimap/internal/services/placement/domain/drag"
	"github.com/louisbranch/soimap/internal/services/placement/syncclient"
	"golang.org/x/text/message"
)

// NoticeKind groups notifications by what triggered them.
type NoticeKind int

const (
	// NoticeSaved follows a commit the service accepted.
	NoticeSaved NoticeKind = iota
	// NoticeRejected follows a commit that failed and was rolled back.
	NoticeRejected
	// NoticeBlocked follows a drop refused before any network call.
	NoticeBlocked
	// NoticeDuplicates follows a refresh that found shared fixed cells.
	NoticeDuplicates
)

func (k NoticeKind) String() string {
	switch k {
	case NoticeRejected:
		return "rejected"
	case NoticeBlocked:
		return "blocked"
	case NoticeDuplicates:
		return "duplicates"
	default:
		return "saved"
	}
}

// Notification is one user-facing message.
type Notification struct {
	Kind     NoticeKind
	EntityID string
	// Reason is set for NoticeRejected.
	Reason syncclient.Reason
	// Timeout marks a rejection caused by the commit deadline.
	Timeout bool
	// Block is set for NoticeBlocked.
	Block conflict.Reason
	// Message is localized for the view's locale.
	Message string
	// Detail is the service's own explanation, when it sent one.
	Detail string
}

// Notifier receives notifications. Notify is called without the view's
// lock held, from whichever goroutine finished the operation.
type Notifier interface {
	Notify(Notification)
}

// NotifierFunc adapts a function to Notifier.
type NotifierFunc func(Notification)

func (f NotifierFunc) Notify(n Notification) { f(n) }

const (
	msgSaved               = "placement.commit.saved"
	msgSwapped             = "placement.commit.swapped"
	msgOccupied            = "placement.commit.occupied"
	msgOutOfBounds         = "placement.commit.out_of_bounds"
	msgConstraintViolation = "placement.commit.constraint_violation"
	msgServerError         = "placement.commit.server_error"
	msgNetworkError        = "placement.commit.network_error"
	msgTimeout             = "placement.commit.timeout"
	msgDropCrossKind       = "placement.drop.cross_kind"
	msgDropInvalid         = "placement.drop.invalid"
	msgDuplicates          = "placement.duplicates"
)

var rejectionMessages = map[syncclient.Reason]string{
	syncclient.ReasonOccupied:            msgOccupied,
	syncclient.ReasonOutOfBounds:         msgOutOfBounds,
	syncclient.ReasonConstraintViolation: msgConstraintViolation,
	syncclient.ReasonServerError:         msgServerError,
	syncclient.ReasonNetworkError:        msgNetworkError,
}

// failure classifies a commit error. A forced expiry counts as a network
// timeout.
func failure(err error) (syncclient.Reason, bool) {
	if errors.Is(err, drag.ErrCommitTimeout) {
		return syncclient.ReasonNetworkError, true
	}
	return syncclient.ReasonOf(err), syncclient.IsTimeout(err)
}

func resolutionNotice(p *message.Printer, res drag.Resolution) Notification {
	commit := res.Commit
	if res.Succeeded() {
		n := Notification{Kind: NoticeSaved, EntityID: commit.EntityID}
		if commit.Classification == conflict.Swap {
			n.Message = p.Sprintf(msgSwapped, commit.EntityID, commit.SwapWithID)
		} else {
			n.Message = p.Sprintf(msgSaved, commit.EntityID, commit.Target.Row, commit.Target.Col)
		}
		return n
	}

	reason, timeout := failure(res.Err)
	key := rejectionMessages[reason]
	if timeout {
		key = msgTimeout
	}
	if key == "" {
		key = msgServerError
	}
	n := Notification{
		Kind:     NoticeRejected,
		EntityID: commit.EntityID,
		Reason:   reason,
		Timeout:  timeout,
		Message:  p.Sprintf(key, commit.EntityID),
	}
	var rejection *syncclient.RemoteRejection
	if errors.As(res.Err, &rejection) {
		n.Detail = rejection.Message
	}
	return n
}

// blockedNotice returns the notice for a locally refused drop. Dropping an
// entity back on its own cell is silent.
func blockedNotice(p *message.Printer, entityID string, decision conflict.Decision) (Notification, bool) {
	n := Notification{Kind: NoticeBlocked, EntityID: entityID, Block: decision.Reason}
	switch decision.Reason {
	case conflict.ReasonSameCell, conflict.ReasonNone:
		return Notification{}, false
	case conflict.ReasonCrossKind:
		n.Message = p.Sprintf(msgDropCrossKind)
	default:
		n.Message = p.Sprintf(msgDropInvalid)
	}
	if decision.Err != nil {
		n.Detail = decision.Err.Error()
	}
	return n, true
}
