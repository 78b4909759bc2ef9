package placementv1

import (
	"context"

	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
	"google.golang.org/protobuf/types/known/structpb"
)

// ServiceName is the fully qualified placement service name.
const ServiceName = "placement.v1.PlacementService"

const (
	ListEntitiesFullMethodName = "/" + ServiceName + "/ListEntities"
	GetZoneFullMethodName      = "/" + ServiceName + "/GetZone"
	MoveEntityFullMethodName   = "/" + ServiceName + "/MoveEntity"
	ListMovesFullMethodName    = "/" + ServiceName + "/ListMoves"
)

// PlacementServiceServer is the server API for the placement service.
type PlacementServiceServer interface {
	ListEntities(context.Context, *ListEntitiesRequest) (*ListEntitiesResponse, error)
	GetZone(context.Context, *GetZoneRequest) (*GetZoneResponse, error)
	MoveEntity(context.Context, *MoveEntityRequest) (*MoveEntityResponse, error)
	ListMoves(context.Context, *ListMovesRequest) (*ListMovesResponse, error)
}

// RegisterPlacementServiceServer registers srv on registrar.
func RegisterPlacementServiceServer(registrar grpc.ServiceRegistrar, srv PlacementServiceServer) {
	registrar.RegisterService(&PlacementService_ServiceDesc, srv)
}

// PlacementService_ServiceDesc describes the placement service for grpc.
var PlacementService_ServiceDesc = grpc.ServiceDesc{
	ServiceName: ServiceName,
	HandlerType: (*PlacementServiceServer)(nil),
	Methods: []grpc.MethodDesc{
		{
			MethodName: "ListEntities",
			Handler: unaryHandler(ListEntitiesFullMethodName, func(srv PlacementServiceServer, ctx context.Context, req *ListEntitiesRequest) (any, error) {
				return srv.ListEntities(ctx, req)
			}),
		},
		{
			MethodName: "GetZone",
			Handler: unaryHandler(GetZoneFullMethodName, func(srv PlacementServiceServer, ctx context.Context, req *GetZoneRequest) (any, error) {
				return srv.GetZone(ctx, req)
			}),
		},
		{
			MethodName: "MoveEntity",
			Handler: unaryHandler(MoveEntityFullMethodName, func(srv PlacementServiceServer, ctx context.Context, req *MoveEntityRequest) (any, error) {
				return srv.MoveEntity(ctx, req)
			}),
		},
		{
			MethodName: "ListMoves",
			Handler: unaryHandler(ListMovesFullMethodName, func(srv PlacementServiceServer, ctx context.Context, req *ListMovesRequest) (any, error) {
				return srv.ListMoves(ctx, req)
			}),
		},
	},
	Streams:  []grpc.StreamDesc{},
	Metadata: "placement/v1/placement.proto",
}

type methodHandler = func(srv any, ctx context.Context, dec func(any) error, interceptor grpc.UnaryServerInterceptor) (any, error)

// unaryHandler adapts a typed method to the Struct-based wire format.
func unaryHandler[Req any](fullMethod string, call func(PlacementServiceServer, context.Context, *Req) (any, error)) methodHandler {
	return func(srv any, ctx context.Context, dec func(any) error, interceptor grpc.UnaryServerInterceptor) (any, error) {
		in := new(structpb.Struct)
		if err := dec(in); err != nil {
			return nil, err
		}
		invoke := func(ctx context.Context, raw any) (any, error) {
			req := new(Req)
			if err := FromStruct(raw.(*structpb.Struct), req); err != nil {
				return nil, status.Error(codes.InvalidArgument, err.Error())
			}
			resp, err := call(srv.(PlacementServiceServer), ctx, req)
			if err != nil {
				return nil, err
			}
			out, err := ToStruct(resp)
			if err != nil {
				return nil, status.Error(codes.Internal, err.Error())
			}
			return out, nil
		}
		if interceptor == nil {
			return invoke(ctx, in)
		}
		info := &grpc.UnaryServerInfo{Server: srv, FullMethod: fullMethod}
		return interceptor(ctx, in, info, invoke)
	}
}

// PlacementServiceClient calls the placement service over a client conn.
type PlacementServiceClient struct {
	cc grpc.ClientConnInterface
}

// NewPlacementServiceClient wraps cc.
func NewPlacementServiceClient(cc grpc.ClientConnInterface) *PlacementServiceClient {
	return &PlacementServiceClient{cc: cc}
}

func (c *PlacementServiceClient) ListEntities(ctx context.Context, in *ListEntitiesRequest, opts ...grpc.CallOption) (*ListEntitiesResponse, error) {
	out := new(ListEntitiesResponse)
	if err := invoke(ctx, c.cc, ListEntitiesFullMethodName, in, out, opts...); err != nil {
		return nil, err
	}
	return out, nil
}

func (c *PlacementServiceClient) GetZone(ctx context.Context, in *GetZoneRequest, opts ...grpc.CallOption) (*GetZoneResponse, error) {
	out := new(GetZoneResponse)
	if err := invoke(ctx, c.cc, GetZoneFullMethodName, in, out, opts...); err != nil {
		return nil, err
	}
	return out, nil
}

func (c *PlacementServiceClient) MoveEntity(ctx context.Context, in *MoveEntityRequest, opts ...grpc.CallOption) (*MoveEntityResponse, error) {
	out := new(MoveEntityResponse)
	if err := invoke(ctx, c.cc, MoveEntityFullMethodName, in, out, opts...); err != nil {
		return nil, err
	}
	return out, nil
}

func (c *PlacementServiceClient) ListMoves(ctx context.Context, in *ListMovesRequest, opts ...grpc.CallOption) (*ListMovesResponse, error) {
	out := new(ListMovesResponse)
	if err := invoke(ctx, c.cc, ListMovesFullMethodName, in, out, opts...); err != nil {
		return nil, err
	}
	return out, nil
}

func invoke(ctx context.Context, cc grpc.ClientConnInterface, method string, in any, out any, opts ...grpc.CallOption) error {
	req, err := ToStruct(in)
	if err != nil {
		return status.Error(codes.InvalidArgument, err.Error())
	}
	resp := new(structpb.Struct)
	if err := cc.Invoke(ctx, method, req, resp, opts...); err != nil {
		return err
	}
	if err := FromStruct(resp, out); err != nil {
		return status.Error(codes.Internal, err.Error())
	}
	return nil
}
