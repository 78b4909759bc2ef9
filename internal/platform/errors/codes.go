// Package errors provides structured error handling with i18n support.
package errors

import "google.golang.org/grpc/codes"

// Code is a machine-readable error code.
type Code string

const (
	// CodeUnknown represents an unknown error.
	CodeUnknown Code = "UNKNOWN"

	// Placement errors
	CodePlacementOccupied            Code = "PLACEMENT_OCCUPIED"
	CodePlacementOutOfBounds         Code = "PLACEMENT_OUT_OF_BOUNDS"
	CodePlacementConstraintViolation Code = "PLACEMENT_CONSTRAINT_VIOLATION"
	CodePlacementEntityNotFound      Code = "PLACEMENT_ENTITY_NOT_FOUND"
	CodePlacementZoneNotFound        Code = "PLACEMENT_ZONE_NOT_FOUND"
	CodePlacementInvalidRequest      Code = "PLACEMENT_INVALID_REQUEST"

	// Storage errors
	CodeNotFound Code = "NOT_FOUND"
)

// GRPCCode maps domain codes to gRPC status codes.
func (c Code) GRPCCode() codes.Code {
	switch c {
	// InvalidArgument - validation failures, bad input
	case CodePlacementInvalidRequest:
		return codes.InvalidArgument

	// OutOfRange - target cell outside the zone grid
	case CodePlacementOutOfBounds:
		return codes.OutOfRange

	// FailedPrecondition - state doesn't allow operation
	case CodePlacementConstraintViolation:
		return codes.FailedPrecondition

	// NotFound - resource doesn't exist
	case CodeNotFound,
		CodePlacementEntityNotFound,
		CodePlacementZoneNotFound:
		return codes.NotFound

	// AlreadyExists - target cell already taken
	case CodePlacementOccupied:
		return codes.AlreadyExists

	default:
		return codes.Internal
	}
}
