package server

import (
	"context"
	"net"
	"testing"
	"time"

	"github.com/dmitrijs2005/trainbook/internal/common"
	"github.com/dmitrijs2005/trainbook/internal/logging"
	"github.com/dmitrijs2005/trainbook/internal/models"
	"github.com/dmitrijs2005/trainbook/internal/protocol"
	"github.com/dmitrijs2005/trainbook/internal/server/directory"
	"github.com/dmitrijs2005/trainbook/internal/server/services"
	"github.com/dmitrijs2005/trainbook/internal/server/session"
	"github.com/dmitrijs2005/trainbook/internal/server/trains"
	"github.com/dmitrijs2005/trainbook/internal/transport"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func startServer(t *testing.T) (*Server, *session.Registry, string, context.CancelFunc, <-chan error) {
	t.Helper()

	dir, err := directory.New([]*models.User{{Username: "bob", Password: "halibut"}})
	require.NoError(t, err)
	store := trains.NewStore([]models.Train{{ID: "t1", Number: "IC 101"}})
	reg := session.NewRegistry()
	svc := services.NewSessionService(dir, store, logging.Nop())
	srv := NewServer("127.0.0.1:0", reg, svc, logging.Nop())

	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- srv.Serve(ctx, ln) }()
	t.Cleanup(cancel)

	return srv, reg, ln.Addr().String(), cancel, done
}

func dial(t *testing.T, addr string) *transport.StreamConn {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	c, err := transport.Dial(ctx, addr)
	require.NoError(t, err)
	t.Cleanup(func() { _ = c.Close() })
	return c
}

func waitLen(t *testing.T, reg *session.Registry, n int) {
	t.Helper()
	require.Eventually(t, func() bool { return reg.Len() == n }, 2*time.Second, 10*time.Millisecond)
}

func TestServer_LoginFetchLogout(t *testing.T) {
	_, reg, addr, _, _ := startServer(t)
	c := dial(t, addr)

	require.NoError(t, c.Send(protocol.Credentials("bob", "halibut")))
	m, err := c.Receive()
	require.NoError(t, err)
	require.True(t, m.Ack)
	m, err = c.Receive()
	require.NoError(t, err)
	assert.Equal(t, "bob", m.User.Username)
	waitLen(t, reg, 1)

	require.NoError(t, c.Send(protocol.FetchTrains()))
	m, err = c.Receive()
	require.NoError(t, err)
	assert.Equal(t, []models.Train{{ID: "t1", Number: "IC 101"}}, m.Trains)

	require.NoError(t, c.Send(protocol.Logout()))
	waitLen(t, reg, 0)

	_, err = c.Receive()
	assert.ErrorIs(t, err, common.ErrTransport)
}

func TestServer_IDsIncreaseAcrossConnections(t *testing.T) {
	_, reg, addr, _, _ := startServer(t)

	c1 := dial(t, addr)
	waitLen(t, reg, 1)
	c2 := dial(t, addr)
	waitLen(t, reg, 2)

	snap := reg.Snapshot()
	assert.Less(t, snap[0].ID, snap[1].ID)

	require.NoError(t, c1.Send(protocol.Logout()))
	require.NoError(t, c2.Send(protocol.Logout()))
	waitLen(t, reg, 0)
}

func TestServer_ShutdownClosesSessions(t *testing.T) {
	srv, reg, addr, cancel, done := startServer(t)

	c := dial(t, addr)
	require.NoError(t, c.Send(protocol.Credentials("bob", "halibut")))
	_, err := c.Receive()
	require.NoError(t, err)
	_, err = c.Receive()
	require.NoError(t, err)

	idle := dial(t, addr)
	waitLen(t, reg, 2)

	cancel()

	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(3 * time.Second):
		t.Fatal("Serve did not return after cancel")
	}
	assert.Equal(t, 0, reg.Len())

	_, err = c.Receive()
	assert.ErrorIs(t, err, common.ErrTransport)
	_, err = idle.Receive()
	assert.ErrorIs(t, err, common.ErrTransport)

	late := &closeRecorder{}
	srv.ServeConn(context.Background(), late)
	assert.True(t, late.closed)
}

type closeRecorder struct{ closed bool }

func (c *closeRecorder) Send(protocol.Message) error        { return nil }
func (c *closeRecorder) Receive() (protocol.Message, error) { return protocol.Message{}, nil }
func (c *closeRecorder) Close() error                       { c.closed = true; return nil }
func (c *closeRecorder) RemoteAddr() string                 { return "late" }
