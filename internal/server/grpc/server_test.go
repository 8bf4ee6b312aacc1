package grpc

import (
	"context"
	"net"
	"testing"
	"time"

	"github.com/dmitrijs2005/trainbook/internal/logging"
	"github.com/dmitrijs2005/trainbook/internal/models"
	"github.com/dmitrijs2005/trainbook/internal/protocol"
	"github.com/dmitrijs2005/trainbook/internal/server/auth"
	"github.com/dmitrijs2005/trainbook/internal/server/session"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"
	"google.golang.org/grpc/status"
	"google.golang.org/grpc/test/bufconn"
)

type stubConn struct{ addr string }

func (c stubConn) Send(protocol.Message) error        { return nil }
func (c stubConn) Receive() (protocol.Message, error) { return protocol.Message{}, nil }
func (c stubConn) Close() error                       { return nil }
func (c stubConn) RemoteAddr() string                 { return c.addr }

func newRegistry(t *testing.T) *session.Registry {
	t.Helper()
	reg := session.NewRegistry()
	s1, err := reg.Register(stubConn{addr: "10.0.0.1:4000"})
	require.NoError(t, err)
	s1.Bind(&models.User{Username: "bob"})
	_, err = reg.Register(stubConn{addr: "10.0.0.2:4000"})
	require.NoError(t, err)
	return reg
}

// startBufServer serves s over an in-memory listener and returns a client
// connection to it.
func startBufServer(t *testing.T, s *GRPCServer) (*grpc.ClientConn, context.CancelFunc, <-chan error) {
	t.Helper()
	lis := bufconn.Listen(1 << 20)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- s.Serve(ctx, lis) }()

	cc, err := Dial("passthrough:///bufnet", grpc.WithContextDialer(func(ctx context.Context, _ string) (net.Conn, error) {
		return lis.DialContext(ctx)
	}))
	require.NoError(t, err)

	t.Cleanup(func() {
		cancel()
		_ = cc.Close()
	})
	return cc, cancel, done
}

func TestDiagnostics_EndToEnd(t *testing.T) {
	s := NewGRPCServer("", logging.Nop(), newRegistry(t), "secret")
	cc, _, _ := startBufServer(t, s)
	client := NewDiagnosticsClient(cc)

	ctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
	defer cancel()

	pong, err := client.Ping(ctx)
	require.NoError(t, err)
	assert.Equal(t, "OK", pong.Status)

	_, err = client.ListSessions(ctx, "")
	assert.Equal(t, codes.Unauthenticated, status.Code(err))

	token, err := auth.GenerateToken("ops", []byte("secret"), time.Minute)
	require.NoError(t, err)

	resp, err := client.ListSessions(ctx, token)
	require.NoError(t, err)
	assert.Equal(t, 2, resp.Total)
	require.Len(t, resp.Sessions, 2)
	assert.Equal(t, uint64(1), resp.Sessions[0].ID)
	assert.Equal(t, "bob", resp.Sessions[0].Username)
	assert.True(t, resp.Sessions[0].Authenticated)
	assert.Equal(t, "10.0.0.2:4000", resp.Sessions[1].Remote)
	assert.False(t, resp.Sessions[1].Authenticated)
	assert.False(t, resp.Sessions[0].ConnectedAt.IsZero())
}

func TestHealth_FlipsOnShutdown(t *testing.T) {
	s := NewGRPCServer("", logging.Nop(), session.NewRegistry(), "secret")
	cc, cancel, done := startBufServer(t, s)

	hc := healthpb.NewHealthClient(cc)
	ctx, stop := context.WithTimeout(context.Background(), 3*time.Second)
	defer stop()

	resp, err := hc.Check(ctx, &healthpb.HealthCheckRequest{Service: serviceName})
	require.NoError(t, err)
	assert.Equal(t, healthpb.HealthCheckResponse_SERVING, resp.Status)

	cancel()

	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(2 * time.Second):
		t.Fatal("server did not stop within timeout after context cancel")
	}

	check, err := s.health.Check(context.Background(), &healthpb.HealthCheckRequest{Service: serviceName})
	require.NoError(t, err)
	assert.Equal(t, healthpb.HealthCheckResponse_NOT_SERVING, check.Status)
}

func TestRun_StopsOnContextCancel(t *testing.T) {
	t.Parallel()

	srv := NewGRPCServer("127.0.0.1:0", logging.Nop(), session.NewRegistry(), "secret")

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	done := make(chan error, 1)
	go func() {
		done <- srv.Run(ctx)
	}()

	select {
	case err := <-done:
		t.Fatalf("server exited too early: %v", err)
	case <-time.After(150 * time.Millisecond):
	}

	cancel()

	select {
	case err := <-done:
		if err != nil {
			t.Fatalf("Run returned error on graceful stop: %v", err)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("server did not stop within timeout after context cancel")
	}
}

func TestRun_ReturnsErrorOnBadAddress(t *testing.T) {
	t.Parallel()

	srv := NewGRPCServer("127.0.0.1:99999", logging.Nop(), session.NewRegistry(), "secret")

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	if err := srv.Run(ctx); err == nil {
		t.Fatal("expected error from Run on bad address, got nil")
	}
}
