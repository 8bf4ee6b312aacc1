package grpc

import (
	"context"
	"time"

	"google.golang.org/grpc"
)

const (
	serviceName = "trainbook.admin.Diagnostics"

	pingMethod         = "/" + serviceName + "/Ping"
	listSessionsMethod = "/" + serviceName + "/ListSessions"
)

type PingRequest struct{}

type PingResponse struct {
	Status string `json:"status"`
}

type ListSessionsRequest struct{}

type SessionInfo struct {
	ID            uint64    `json:"id"`
	Remote        string    `json:"remote"`
	Username      string    `json:"username,omitempty"`
	Authenticated bool      `json:"authenticated"`
	ConnectedAt   time.Time `json:"connected_at"`
}

type ListSessionsResponse struct {
	Sessions []SessionInfo `json:"sessions"`
	Total    int           `json:"total"`
}

// DiagnosticsServer is the admin API served next to the train protocol.
type DiagnosticsServer interface {
	Ping(ctx context.Context, req *PingRequest) (*PingResponse, error)
	ListSessions(ctx context.Context, req *ListSessionsRequest) (*ListSessionsResponse, error)
}

var diagnosticsServiceDesc = grpc.ServiceDesc{
	ServiceName: serviceName,
	HandlerType: (*DiagnosticsServer)(nil),
	Methods: []grpc.MethodDesc{
		{MethodName: "Ping", Handler: pingHandler},
		{MethodName: "ListSessions", Handler: listSessionsHandler},
	},
	Streams:  []grpc.StreamDesc{},
	Metadata: "trainbook/admin",
}

func pingHandler(srv any, ctx context.Context, dec func(any) error, interceptor grpc.UnaryServerInterceptor) (any, error) {
	in := new(PingRequest)
	if err := dec(in); err != nil {
		return nil, err
	}
	if interceptor == nil {
		return srv.(DiagnosticsServer).Ping(ctx, in)
	}
	info := &grpc.UnaryServerInfo{Server: srv, FullMethod: pingMethod}
	handler := func(ctx context.Context, req any) (any, error) {
		return srv.(DiagnosticsServer).Ping(ctx, req.(*PingRequest))
	}
	return interceptor(ctx, in, info, handler)
}

func listSessionsHandler(srv any, ctx context.Context, dec func(any) error, interceptor grpc.UnaryServerInterceptor) (any, error) {
	in := new(ListSessionsRequest)
	if err := dec(in); err != nil {
		return nil, err
	}
	if interceptor == nil {
		return srv.(DiagnosticsServer).ListSessions(ctx, in)
	}
	info := &grpc.UnaryServerInfo{Server: srv, FullMethod: listSessionsMethod}
	handler := func(ctx context.Context, req any) (any, error) {
		return srv.(DiagnosticsServer).ListSessions(ctx, req.(*ListSessionsRequest))
	}
	return interceptor(ctx, in, info, handler)
}
