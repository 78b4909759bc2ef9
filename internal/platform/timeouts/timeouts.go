// Package timeouts defines shared timeout constants used across services.
// Centralizing these values prevents drift between service boundaries and
// makes the durations discoverable.
package timeouts

import "time"

// GRPCDial caps the wait time when dialing a gRPC peer.
const GRPCDial = 2 * time.Second

// GRPCRequest caps the time allowed for a single read request to the
// placement service.
const GRPCRequest = 2 * time.Second

// HealthPollStart and HealthPollMax bound the retry delay while a client
// waits for the placement service to report SERVING.
const (
	HealthPollStart = 200 * time.Millisecond
	HealthPollMax   = time.Second
)

// Commit caps how long a move or swap may stay unresolved before the map
// view forces a rollback.
const Commit = 10 * time.Second

// GraceWindow is how long new drags are refused after a successful commit,
// so a refresh that predates the write cannot reintroduce old positions.
const GraceWindow = 500 * time.Millisecond

// DragIdle tears down a drag that stopped receiving pointer events, such as
// after a lost touchend.
const DragIdle = 30 * time.Second

// MoveThrottle bounds how often drag move events are evaluated.
const MoveThrottle = 16 * time.Millisecond

// Shutdown limits how long a server waits for in-flight requests during
// graceful shutdown.
const Shutdown = 5 * time.Second
