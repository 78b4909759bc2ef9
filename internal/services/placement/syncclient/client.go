// Package syncclient talks to the authoritative position service: it sends
// move and swap requests and reads zone configuration and entity lists.
package syncclient

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/louisbranch/soimap/internal/platform/requestctx"
	"github.com/louisbranch/soimap/internal/services/placement/api/grpc/placementv1"
	"github.com/louisbranch/soimap/internal/services/placement/domain/grid"
	"google.golang.org/grpc"
)

// ErrInvalidRequest indicates a move request missing required fields.
var ErrInvalidRequest = errors.New("invalid move request")

// Request asks the service to place EntityID on Target. SwapWithID names
// the same-kind entity expected on Target when the move is a swap.
type Request struct {
	EntityID   string
	Zone       string
	Target     grid.Cell
	SwapWithID string
}

// Validate checks the fields every request needs.
func (r Request) Validate() error {
	if strings.TrimSpace(r.EntityID) == "" {
		return fmt.Errorf("%w: entity id is required", ErrInvalidRequest)
	}
	if strings.TrimSpace(r.Zone) == "" {
		return fmt.Errorf("%w: zone is required", ErrInvalidRequest)
	}
	if r.Target.Row < 1 || r.Target.Col < 1 {
		return fmt.Errorf("%w: target %s", ErrInvalidRequest, r.Target)
	}
	if r.SwapWithID != "" && r.SwapWithID == r.EntityID {
		return fmt.Errorf("%w: entity cannot swap with itself", ErrInvalidRequest)
	}
	return nil
}

// MovePage is one page of the zone's move journal.
type MovePage struct {
	Moves         []placementv1.Move
	NextPageToken string
}

// GRPCClient implements the remote endpoint, the entity source, and the
// zone provider over one placement service connection.
type GRPCClient struct {
	client *placementv1.PlacementServiceClient
	locale string
}

// NewGRPCClient wraps conn. locale is sent with every call so rejection
// messages come back in the operator's language.
func NewGRPCClient(conn grpc.ClientConnInterface, locale string) *GRPCClient {
	return &GRPCClient{
		client: placementv1.NewPlacementServiceClient(conn),
		locale: strings.TrimSpace(locale),
	}
}

// Move submits req. Failures are RemoteRejection or NetworkFailure values.
func (c *GRPCClient) Move(ctx context.Context, req Request) ([]grid.Entity, error) {
	if err := req.Validate(); err != nil {
		return nil, &RemoteRejection{Reason: ReasonServerError, Message: err.Error(), Err: err}
	}
	resp, err := c.client.MoveEntity(c.outgoing(ctx), &placementv1.MoveEntityRequest{
		EntityID:   req.EntityID,
		Zone:       req.Zone,
		TargetRow:  req.Target.Row,
		TargetCol:  req.Target.Col,
		SwapWithID: req.SwapWithID,
	})
	if err != nil {
		return nil, Classify(err)
	}
	return toEntities(resp.Entities)
}

// Entities returns the authoritative entity list for zone.
func (c *GRPCClient) Entities(ctx context.Context, zone string) ([]grid.Entity, error) {
	resp, err := c.client.ListEntities(c.outgoing(ctx), &placementv1.ListEntitiesRequest{Zone: zone})
	if err != nil {
		return nil, fmt.Errorf("list entities: %w", err)
	}
	return toEntities(resp.Entities)
}

// Zone returns the configuration for name.
func (c *GRPCClient) Zone(ctx context.Context, name string) (grid.Zone, error) {
	resp, err := c.client.GetZone(c.outgoing(ctx), &placementv1.GetZoneRequest{Zone: name})
	if err != nil {
		return grid.Zone{}, fmt.Errorf("get zone: %w", err)
	}
	zone, err := resp.Zone.Domain()
	if err != nil {
		return grid.Zone{}, fmt.Errorf("get zone: %w", err)
	}
	return zone, nil
}

// Moves returns one page of the zone's move journal, newest first. filter
// is an optional AIP-160 expression such as `entity_id = "bar-a"`.
func (c *GRPCClient) Moves(ctx context.Context, zone, filter string, pageSize int, pageToken string) (MovePage, error) {
	resp, err := c.client.ListMoves(c.outgoing(ctx), &placementv1.ListMovesRequest{
		Zone:      zone,
		PageSize:  pageSize,
		PageToken: pageToken,
		Filter:    filter,
	})
	if err != nil {
		return MovePage{}, fmt.Errorf("list moves: %w", err)
	}
	return MovePage{Moves: resp.Moves, NextPageToken: resp.NextPageToken}, nil
}

func (c *GRPCClient) outgoing(ctx context.Context) context.Context {
	return requestctx.WithOutgoingLocale(ctx, c.locale)
}

func toEntities(wire []placementv1.Entity) ([]grid.Entity, error) {
	out := make([]grid.Entity, 0, len(wire))
	for _, item := range wire {
		entity, err := item.Domain()
		if err != nil {
			return nil, fmt.Errorf("decode entity: %w", err)
		}
		out = append(out, entity)
	}
	return out, nil
}
