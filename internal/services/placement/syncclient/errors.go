package syncclient

import (
	"context"
	"errors"
	"fmt"

	platerrors "github.com/louisbranch/soimap/internal/platform/errors"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
)

// Reason classifies why a commit failed.
type Reason string

const (
	// ReasonOccupied means another writer took the target cell first.
	ReasonOccupied Reason = "occupied"
	// ReasonOutOfBounds means the service judged the target outside the zone.
	ReasonOutOfBounds Reason = "outOfBounds"
	// ReasonConstraintViolation covers unknown entities and zones and any
	// other placement rule the service enforces.
	ReasonConstraintViolation Reason = "constraintViolation"
	// ReasonServerError is an internal failure on the service side.
	ReasonServerError Reason = "serverError"
	// ReasonNetworkError means the call never got an answer, including
	// timeouts and unavailable peers.
	ReasonNetworkError Reason = "networkError"
)

// RemoteRejection reports a move the service refused.
type RemoteRejection struct {
	Reason Reason
	// Code is the service's machine-readable reason, when it sent one.
	Code platerrors.Code
	// Message is the user-facing message, localized by the service when
	// it attached one.
	Message string
	Err     error
}

func (e *RemoteRejection) Error() string {
	if e.Message != "" {
		return fmt.Sprintf("move rejected (%s): %s", e.Reason, e.Message)
	}
	return fmt.Sprintf("move rejected (%s)", e.Reason)
}

func (e *RemoteRejection) Unwrap() error { return e.Err }

// NetworkFailure reports a request that never produced a service verdict.
type NetworkFailure struct {
	Timeout bool
	Err     error
}

func (e *NetworkFailure) Error() string {
	if e.Timeout {
		return fmt.Sprintf("move timed out: %v", e.Err)
	}
	return fmt.Sprintf("move failed: %v", e.Err)
}

func (e *NetworkFailure) Unwrap() error { return e.Err }

// ReasonOf returns the failure classification for err. Errors that are
// neither rejections nor network failures count as server errors.
func ReasonOf(err error) Reason {
	if err == nil {
		return ""
	}
	var rejection *RemoteRejection
	if errors.As(err, &rejection) {
		return rejection.Reason
	}
	var network *NetworkFailure
	if errors.As(err, &network) {
		return ReasonNetworkError
	}
	if errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled) {
		return ReasonNetworkError
	}
	return ReasonServerError
}

// IsTimeout reports whether err is a network failure caused by a deadline.
func IsTimeout(err error) bool {
	var network *NetworkFailure
	if errors.As(err, &network) {
		return network.Timeout
	}
	return errors.Is(err, context.DeadlineExceeded)
}

var reasonByCode = map[platerrors.Code]Reason{
	platerrors.CodePlacementOccupied:            ReasonOccupied,
	platerrors.CodePlacementOutOfBounds:         ReasonOutOfBounds,
	platerrors.CodePlacementConstraintViolation: ReasonConstraintViolation,
	platerrors.CodePlacementEntityNotFound:      ReasonConstraintViolation,
	platerrors.CodePlacementZoneNotFound:        ReasonConstraintViolation,
}

// Classify converts a transport error into a RemoteRejection or a
// NetworkFailure. The structured reason attached by the service wins over
// the bare status code.
func Classify(err error) error {
	if err == nil {
		return nil
	}
	var rejection *RemoteRejection
	var network *NetworkFailure
	if errors.As(err, &rejection) || errors.As(err, &network) {
		return err
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return &NetworkFailure{Timeout: true, Err: err}
	}
	if errors.Is(err, context.Canceled) {
		return &NetworkFailure{Err: err}
	}
	st, ok := status.FromError(err)
	if !ok {
		return &NetworkFailure{Err: err}
	}

	message := st.Message()
	if localized, ok := platerrors.LocalizedMessageOf(err); ok {
		message = localized
	}
	code, hasCode := platerrors.ReasonOf(err)
	if hasCode {
		if reason, ok := reasonByCode[code]; ok {
			return &RemoteRejection{Reason: reason, Code: code, Message: message, Err: err}
		}
	}

	switch st.Code() {
	case codes.AlreadyExists:
		return &RemoteRejection{Reason: ReasonOccupied, Code: code, Message: message, Err: err}
	case codes.OutOfRange, codes.InvalidArgument:
		return &RemoteRejection{Reason: ReasonOutOfBounds, Code: code, Message: message, Err: err}
	case codes.FailedPrecondition, codes.NotFound:
		return &RemoteRejection{Reason: ReasonConstraintViolation, Code: code, Message: message, Err: err}
	case codes.DeadlineExceeded:
		return &NetworkFailure{Timeout: true, Err: err}
	case codes.Unavailable, codes.Canceled:
		return &NetworkFailure{Err: err}
	default:
		return &RemoteRejection{Reason: ReasonServerError, Code: code, Message: message, Err: err}
	}
}
