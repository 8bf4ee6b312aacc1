package grpc

import (
	"context"
	"testing"
	"time"

	"github.com/dmitrijs2005/trainbook/internal/common"
	"github.com/dmitrijs2005/trainbook/internal/logging"
	"github.com/dmitrijs2005/trainbook/internal/server/auth"
	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/metadata"
	"google.golang.org/grpc/status"
)

// helper to build server
func newTestServer(secret string) *GRPCServer {
	return &GRPCServer{
		logger:    logging.Nop(),
		jwtSecret: []byte(secret),
	}
}

func TestInterceptor_OpenMethodsWithoutToken(t *testing.T) {
	s := newTestServer("secret")

	for _, method := range []string{pingMethod, "/grpc.health.v1.Health/Check", "/pkg.Service/OtherMethod"} {
		handlerCalled := false
		h := func(ctx context.Context, req any) (any, error) {
			handlerCalled = true
			return "ok", nil
		}

		resp, err := s.accessTokenInterceptor(context.Background(), nil, &grpc.UnaryServerInfo{FullMethod: method}, h)
		if err != nil {
			t.Fatalf("%s: unexpected error: %v", method, err)
		}
		if !handlerCalled || resp != "ok" {
			t.Fatalf("%s: handler not called or bad resp %v", method, resp)
		}
	}
}

func TestInterceptor_MissingToken(t *testing.T) {
	s := newTestServer("secret")
	info := &grpc.UnaryServerInfo{FullMethod: listSessionsMethod}

	h := func(ctx context.Context, req any) (any, error) {
		t.Fatal("handler should not be called when token missing")
		return nil, nil
	}

	_, err := s.accessTokenInterceptor(context.Background(), nil, info, h)
	if status.Code(err) != codes.Unauthenticated {
		t.Fatalf("expected Unauthenticated, got %v", err)
	}
}

func TestInterceptor_ExpiredToken(t *testing.T) {
	s := newTestServer("secret")
	info := &grpc.UnaryServerInfo{FullMethod: listSessionsMethod}

	tok, err := auth.GenerateToken("ops", []byte("secret"), -time.Minute)
	if err != nil {
		t.Fatalf("GenerateToken error: %v", err)
	}
	ctx := metadata.NewIncomingContext(context.Background(), metadata.Pairs(common.AccessTokenHeaderName, tok))

	_, err = s.accessTokenInterceptor(ctx, nil, info, func(ctx context.Context, req any) (any, error) {
		t.Fatal("handler should not be called for expired token")
		return nil, nil
	})
	st, _ := status.FromError(err)
	if st.Code() != codes.Unauthenticated || st.Message() != common.ErrTokenExpired.Error() {
		t.Fatalf("expected expired-token status, got %v", err)
	}
}

func TestInterceptor_ValidTokenPutsOperatorIntoContext(t *testing.T) {
	s := newTestServer("secret")
	info := &grpc.UnaryServerInfo{FullMethod: listSessionsMethod}

	tok, err := auth.GenerateToken("ops", []byte("secret"), time.Minute)
	if err != nil {
		t.Fatalf("GenerateToken error: %v", err)
	}
	ctx := metadata.NewIncomingContext(context.Background(), metadata.Pairs(common.AccessTokenHeaderName, tok))

	var got string
	_, err = s.accessTokenInterceptor(ctx, nil, info, func(ctx context.Context, req any) (any, error) {
		got = operatorFromContext(ctx)
		return nil, nil
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got != "ops" {
		t.Fatalf("operator mismatch: %q", got)
	}
}
