package grpc

import (
	"context"
)

func (s *GRPCServer) Ping(ctx context.Context, req *PingRequest) (*PingResponse, error) {
	return &PingResponse{Status: "OK"}, nil
}

func (s *GRPCServer) ListSessions(ctx context.Context, req *ListSessionsRequest) (*ListSessionsResponse, error) {
	snap := s.sessions.Snapshot()

	resp := &ListSessionsResponse{Sessions: make([]SessionInfo, 0, len(snap)), Total: len(snap)}
	for _, sess := range snap {
		resp.Sessions = append(resp.Sessions, SessionInfo{
			ID:            sess.ID,
			Remote:        sess.RemoteAddr,
			Username:      sess.Username(),
			Authenticated: sess.Authenticated(),
			ConnectedAt:   sess.ConnectedAt,
		})
	}

	s.logger.Info(ctx, "Sessions listed", "operator", operatorFromContext(ctx), "total", resp.Total)
	return resp, nil
}
