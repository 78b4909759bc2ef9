package placement

import (
	"context"
	"errors"
	"strconv"
	"strings"
	"time"

	platerrors "github.com/louisbranch/soimap/internal/platform/errors"
	errori18n "github.com/louisbranch/soimap/internal/platform/errors/i18n"
	"github.com/louisbranch/soimap/internal/platform/grpc/pagination"
	"github.com/louisbranch/soimap/internal/platform/id"
	"github.com/louisbranch/soimap/internal/platform/requestctx"
	"github.com/louisbranch/soimap/internal/services/placement/api/grpc/placementv1"
	"github.com/louisbranch/soimap/internal/services/placement/domain/grid"
	"github.com/louisbranch/soimap/internal/services/placement/filter"
	"github.com/louisbranch/soimap/internal/services/placement/storage"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
)

const (
	defaultListMovesPageSize = 20
	maxListMovesPageSize     = 100
)

// ZoneSource resolves zone configuration by name.
type ZoneSource interface {
	Zone(name string) (grid.Zone, error)
}

// Service exposes placement.v1 gRPC operations.
type Service struct {
	store       storage.PositionStore
	zones       ZoneSource
	clock       func() time.Time
	idGenerator func() (string, error)
}

// NewService creates a placement service backed by position storage.
func NewService(store storage.PositionStore, zones ZoneSource) *Service {
	return &Service{
		store:       store,
		zones:       zones,
		clock:       time.Now,
		idGenerator: id.NewMoveID,
	}
}

// ListEntities returns every entity in a zone.
func (s *Service) ListEntities(ctx context.Context, in *placementv1.ListEntitiesRequest) (*placementv1.ListEntitiesResponse, error) {
	if in == nil {
		return nil, status.Error(codes.InvalidArgument, "list entities request is required")
	}
	if s == nil || s.store == nil {
		return nil, status.Error(codes.Internal, "position store is not configured")
	}
	zone, err := s.resolveZone(ctx, in.Zone)
	if err != nil {
		return nil, err
	}

	entities, err := s.store.ListEntities(ctx, zone.Name)
	if err != nil {
		return nil, status.Errorf(codes.Internal, "list entities: %v", err)
	}
	return &placementv1.ListEntitiesResponse{Entities: placementv1.FromEntities(entities)}, nil
}

// GetZone returns one zone configuration.
func (s *Service) GetZone(ctx context.Context, in *placementv1.GetZoneRequest) (*placementv1.GetZoneResponse, error) {
	if in == nil {
		return nil, status.Error(codes.InvalidArgument, "get zone request is required")
	}
	zone, err := s.resolveZone(ctx, in.Zone)
	if err != nil {
		return nil, err
	}
	return &placementv1.GetZoneResponse{Zone: placementv1.FromZone(zone)}, nil
}

// MoveEntity applies one move or swap against the authoritative store.
func (s *Service) MoveEntity(ctx context.Context, in *placementv1.MoveEntityRequest) (*placementv1.MoveEntityResponse, error) {
	if in == nil {
		return nil, status.Error(codes.InvalidArgument, "move entity request is required")
	}
	if s == nil || s.store == nil {
		return nil, status.Error(codes.Internal, "position store is not configured")
	}
	entityID := strings.TrimSpace(in.EntityID)
	if entityID == "" {
		return nil, invalidRequest(ctx, "entity id is required")
	}
	zone, err := s.resolveZone(ctx, in.Zone)
	if err != nil {
		return nil, err
	}
	target := grid.Cell{Row: in.TargetRow, Col: in.TargetCol}
	if !zone.Contains(target) {
		meta := cellMetadata(zone.Name, target)
		return nil, localized(ctx, platerrors.WithMetadata(platerrors.CodePlacementOutOfBounds, "target cell is outside zone bounds", meta))
	}

	moveID, err := s.idGenerator()
	if err != nil {
		return nil, status.Errorf(codes.Internal, "generate move id: %v", err)
	}
	now := time.Now().UTC()
	if s.clock != nil {
		now = s.clock().UTC()
	}

	updated, err := s.store.MoveEntity(ctx, storage.MoveCommand{
		ID:         moveID,
		EntityID:   entityID,
		Zone:       zone.Name,
		Target:     target,
		SwapWithID: strings.TrimSpace(in.SwapWithID),
		MovedAt:    now,
	})
	if err != nil {
		return nil, moveError(ctx, err, entityID, zone.Name, target)
	}
	return &placementv1.MoveEntityResponse{Entities: placementv1.FromEntities(updated)}, nil
}

// ListMoves returns a page of the zone's move journal, newest first.
func (s *Service) ListMoves(ctx context.Context, in *placementv1.ListMovesRequest) (*placementv1.ListMovesResponse, error) {
	if in == nil {
		return nil, status.Error(codes.InvalidArgument, "list moves request is required")
	}
	if s == nil || s.store == nil {
		return nil, status.Error(codes.Internal, "position store is not configured")
	}
	zone, err := s.resolveZone(ctx, in.Zone)
	if err != nil {
		return nil, err
	}
	beforeSeq, err := pagination.DecodeCursor(in.PageToken)
	if err != nil {
		return nil, invalidRequest(ctx, err.Error())
	}
	cond, err := filter.ParseMoveFilter(in.Filter)
	if err != nil {
		return nil, invalidRequest(ctx, "invalid filter: "+err.Error())
	}

	pageSize := pagination.ClampPageSize(int32(in.PageSize), pagination.PageSizeConfig{
		Default: defaultListMovesPageSize,
		Max:     maxListMovesPageSize,
	})
	page, err := s.store.ListMoves(ctx, zone.Name, pageSize, beforeSeq, storage.MoveFilter{
		Clause: cond.Clause,
		Params: cond.Params,
	})
	if err != nil {
		return nil, status.Errorf(codes.Internal, "list moves: %v", err)
	}

	resp := &placementv1.ListMovesResponse{
		Moves:         make([]placementv1.Move, 0, len(page.Moves)),
		NextPageToken: pagination.EncodeCursor(page.NextCursor),
	}
	for _, move := range page.Moves {
		resp.Moves = append(resp.Moves, moveToWire(move))
	}
	return resp, nil
}

func (s *Service) resolveZone(ctx context.Context, name string) (grid.Zone, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return grid.Zone{}, invalidRequest(ctx, "zone is required")
	}
	if s == nil || s.zones == nil {
		return grid.Zone{}, status.Error(codes.Internal, "zone catalog is not configured")
	}
	zone, err := s.zones.Zone(name)
	if err != nil {
		return grid.Zone{}, localized(ctx, platerrors.WrapWithMetadata(
			platerrors.CodePlacementZoneNotFound,
			"zone not found",
			map[string]string{"Zone": name},
			err,
		))
	}
	return zone, nil
}

func moveError(ctx context.Context, err error, entityID string, zone string, target grid.Cell) error {
	meta := cellMetadata(zone, target)
	meta["EntityID"] = entityID
	switch {
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		return status.FromContextError(err).Err()
	case errors.Is(err, storage.ErrNotFound):
		return localized(ctx, platerrors.WrapWithMetadata(platerrors.CodePlacementEntityNotFound, err.Error(), meta, err))
	case errors.Is(err, storage.ErrOccupied), errors.Is(err, storage.ErrStalePosition):
		return localized(ctx, platerrors.WrapWithMetadata(platerrors.CodePlacementOccupied, err.Error(), meta, err))
	case errors.Is(err, storage.ErrConstraintViolation):
		meta["Detail"] = constraintDetail(err)
		return localized(ctx, platerrors.WrapWithMetadata(platerrors.CodePlacementConstraintViolation, err.Error(), meta, err))
	default:
		return status.Errorf(codes.Internal, "move entity: %v", err)
	}
}

// constraintDetail strips the sentinel prefix so the user message carries
// only the specific rule that failed.
func constraintDetail(err error) string {
	detail := strings.TrimPrefix(err.Error(), storage.ErrConstraintViolation.Error())
	detail = strings.TrimSpace(strings.TrimPrefix(detail, ":"))
	if detail == "" {
		return storage.ErrConstraintViolation.Error()
	}
	return detail
}

func invalidRequest(ctx context.Context, detail string) error {
	return localized(ctx, platerrors.WithMetadata(
		platerrors.CodePlacementInvalidRequest,
		detail,
		map[string]string{"Detail": detail},
	))
}

// localized renders the user-facing message in the caller's locale and
// converts err to a gRPC status.
func localized(ctx context.Context, err *platerrors.Error) error {
	catalog := errori18n.GetCatalog(requestctx.LocaleFromContext(ctx))
	return err.ToGRPCStatus(catalog.Locale(), catalog.Format(string(err.Code), err.Metadata))
}

func cellMetadata(zone string, cell grid.Cell) map[string]string {
	return map[string]string{
		"Zone": zone,
		"Row":  strconv.Itoa(cell.Row),
		"Col":  strconv.Itoa(cell.Col),
	}
}

func moveToWire(move storage.Move) placementv1.Move {
	return placementv1.Move{
		ID:         move.ID,
		EntityID:   move.EntityID,
		Zone:       move.Zone,
		FromRow:    move.From.Row,
		FromCol:    move.From.Col,
		ToRow:      move.To.Row,
		ToCol:      move.To.Col,
		SwapWithID: move.SwapWithID,
		MovedAt:    move.MovedAt.UTC().Format(time.RFC3339Nano),
	}
}

var _ placementv1.PlacementServiceServer = (*Service)(nil)
