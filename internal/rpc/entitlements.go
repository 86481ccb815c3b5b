// Package rpc exposes entitlement checks over gRPC so services that serve
// media can enforce access without going through the public HTTP API.
//
// Messages are google.protobuf.Struct values, so no generated code is
// needed on either side:
//
//	Check: {purchaserId, contentItemId} -> {unlocked, lifetime}
//	List:  {purchaserId}                -> {lifetime, contentItemIds}
package rpc

import (
	"context"
	"log/slog"
	"time"

	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/health"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"
	"google.golang.org/grpc/status"
	"google.golang.org/protobuf/types/known/structpb"

	"github.com/nyashahama/gallery-paywall-backend/internal/entitlement"
)

// ServiceName is the fully-qualified gRPC service name.
const ServiceName = "gallery.v1.Entitlements"

const (
	checkMethod = "/" + ServiceName + "/Check"
	listMethod  = "/" + ServiceName + "/List"
)

// Snapshotter reads a purchaser's entitlements. *entitlement.Service
// satisfies it.
type Snapshotter interface {
	Snapshot(ctx context.Context, purchaserID string) (entitlement.Snapshot, error)
}

// EntitlementsServer is the handler interface registered on the ServiceDesc.
type EntitlementsServer interface {
	Check(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error)
	List(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error)
}

type entitlementsServer struct {
	entitlements Snapshotter
}

// NewEntitlementsServer adapts a Snapshotter to EntitlementsServer.
func NewEntitlementsServer(s Snapshotter) EntitlementsServer {
	return &entitlementsServer{entitlements: s}
}

func (s *entitlementsServer) Check(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error) {
	purchaserID := stringField(req, "purchaserId")
	itemID := stringField(req, "contentItemId")
	if itemID == "" {
		return nil, status.Error(codes.InvalidArgument, "contentItemId is required")
	}

	snap, err := s.entitlements.Snapshot(ctx, purchaserID)
	if err != nil {
		return nil, status.Errorf(codes.Internal, "load entitlements: %v", err)
	}
	return structpb.NewStruct(map[string]any{
		"unlocked": snap.Unlocked(itemID),
		"lifetime": snap.Lifetime,
	})
}

func (s *entitlementsServer) List(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error) {
	purchaserID := stringField(req, "purchaserId")
	if purchaserID == "" {
		return nil, status.Error(codes.InvalidArgument, "purchaserId is required")
	}

	snap, err := s.entitlements.Snapshot(ctx, purchaserID)
	if err != nil {
		return nil, status.Errorf(codes.Internal, "load entitlements: %v", err)
	}
	ids := make([]any, len(snap.ContentItemIDs))
	for i, id := range snap.ContentItemIDs {
		ids[i] = id
	}
	return structpb.NewStruct(map[string]any{
		"lifetime":       snap.Lifetime,
		"contentItemIds": ids,
	})
}

func stringField(s *structpb.Struct, key string) string {
	return s.GetFields()[key].GetStringValue()
}

// ─── SERVICE DESCRIPTOR ──────────────────────────────────────────────────────

func checkHandler(srv any, ctx context.Context, dec func(any) error, interceptor grpc.UnaryServerInterceptor) (any, error) {
	in := new(structpb.Struct)
	if err := dec(in); err != nil {
		return nil, err
	}
	if interceptor == nil {
		return srv.(EntitlementsServer).Check(ctx, in)
	}
	info := &grpc.UnaryServerInfo{Server: srv, FullMethod: checkMethod}
	handler := func(ctx context.Context, req any) (any, error) {
		return srv.(EntitlementsServer).Check(ctx, req.(*structpb.Struct))
	}
	return interceptor(ctx, in, info, handler)
}

func listHandler(srv any, ctx context.Context, dec func(any) error, interceptor grpc.UnaryServerInterceptor) (any, error) {
	in := new(structpb.Struct)
	if err := dec(in); err != nil {
		return nil, err
	}
	if interceptor == nil {
		return srv.(EntitlementsServer).List(ctx, in)
	}
	info := &grpc.UnaryServerInfo{Server: srv, FullMethod: listMethod}
	handler := func(ctx context.Context, req any) (any, error) {
		return srv.(EntitlementsServer).List(ctx, req.(*structpb.Struct))
	}
	return interceptor(ctx, in, info, handler)
}

var entitlementsServiceDesc = grpc.ServiceDesc{
	ServiceName: ServiceName,
	HandlerType: (*EntitlementsServer)(nil),
	Methods: []grpc.MethodDesc{
		{MethodName: "Check", Handler: checkHandler},
		{MethodName: "List", Handler: listHandler},
	},
	Streams:  []grpc.StreamDesc{},
	Metadata: "gallery/v1/entitlements.proto",
}

// ─── SERVER ──────────────────────────────────────────────────────────────────

// NewServer returns a gRPC server with the Entitlements and health services
// registered and every unary call logged.
func NewServer(entitlements Snapshotter, logger *slog.Logger) *grpc.Server {
	srv := grpc.NewServer(grpc.UnaryInterceptor(loggingInterceptor(logger)))
	srv.RegisterService(&entitlementsServiceDesc, NewEntitlementsServer(entitlements))

	hs := health.NewServer()
	hs.SetServingStatus(ServiceName, healthpb.HealthCheckResponse_SERVING)
	healthpb.RegisterHealthServer(srv, hs)
	return srv
}

func loggingInterceptor(logger *slog.Logger) grpc.UnaryServerInterceptor {
	return func(ctx context.Context, req any, info *grpc.UnaryServerInfo, handler grpc.UnaryHandler) (any, error) {
		start := time.Now()
		resp, err := handler(ctx, req)
		level := slog.LevelInfo
		if err != nil {
			level = slog.LevelWarn
		}
		logger.Log(ctx, level, "grpc",
			"method", info.FullMethod,
			"code", status.Code(err).String(),
			"duration_ms", time.Since(start).Milliseconds(),
		)
		return resp, err
	}
}

// ─── CLIENT ──────────────────────────────────────────────────────────────────

// Client calls the Entitlements service over an existing connection.
type Client struct {
	cc grpc.ClientConnInterface
}

// NewClient wraps cc.
func NewClient(cc grpc.ClientConnInterface) *Client {
	return &Client{cc: cc}
}

// Check reports whether purchaserID may view contentItemID.
func (c *Client) Check(ctx context.Context, purchaserID, contentItemID string) (bool, error) {
	req, err := structpb.NewStruct(map[string]any{
		"purchaserId":   purchaserID,
		"contentItemId": contentItemID,
	})
	if err != nil {
		return false, err
	}
	out := new(structpb.Struct)
	if err := c.cc.Invoke(ctx, checkMethod, req, out); err != nil {
		return false, err
	}
	return out.GetFields()["unlocked"].GetBoolValue(), nil
}

// List returns the purchaser's entitlement snapshot.
func (c *Client) List(ctx context.Context, purchaserID string) (entitlement.Snapshot, error) {
	req, err := structpb.NewStruct(map[string]any{"purchaserId": purchaserID})
	if err != nil {
		return entitlement.Snapshot{}, err
	}
	out := new(structpb.Struct)
	if err := c.cc.Invoke(ctx, listMethod, req, out); err != nil {
		return entitlement.Snapshot{}, err
	}

	snap := entitlement.Snapshot{
		PurchaserID:    purchaserID,
		Lifetime:       out.GetFields()["lifetime"].GetBoolValue(),
		ContentItemIDs: []string{},
	}
	for _, v := range out.GetFields()["contentItemIds"].GetListValue().GetValues() {
		snap.ContentItemIDs = append(snap.ContentItemIDs, v.GetStringValue())
	}
	return snap, nil
}
