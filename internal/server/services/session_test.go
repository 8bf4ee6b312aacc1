package services

import (
	"context"
	"net"
	"sync"
	"testing"
	"time"

	"github.com/dmitrijs2005/trainbook/internal/common"
	"github.com/dmitrijs2005/trainbook/internal/logging"
	"github.com/dmitrijs2005/trainbook/internal/models"
	"github.com/dmitrijs2005/trainbook/internal/protocol"
	"github.com/dmitrijs2005/trainbook/internal/server/directory"
	"github.com/dmitrijs2005/trainbook/internal/server/session"
	"github.com/dmitrijs2005/trainbook/internal/transport"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// --- helpers ---

type fakeTrains struct {
	mu     sync.Mutex
	trains []models.Train
	calls  int
}

func (f *fakeTrains) Snapshot() []models.Train {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls++
	return append([]models.Train(nil), f.trains...)
}

func (f *fakeTrains) set(trains []models.Train) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.trains = trains
}

type harness struct {
	dir    *directory.Directory
	trains *fakeTrains
	reg    *session.Registry
	svc    *SessionService
}

func newHarness(t *testing.T) *harness {
	t.Helper()
	dir, err := directory.New([]*models.User{
		{Username: "admin", Password: "admin"},
		{Username: "bob", Password: "halibut"},
	})
	require.NoError(t, err)

	trains := &fakeTrains{trains: []models.Train{
		{ID: "t1", Number: "IC 101", From: "Riga", To: "Tallinn", SeatsFree: 4},
	}}

	return &harness{
		dir:    dir,
		trains: trains,
		reg:    session.NewRegistry(),
		svc:    NewSessionService(dir, trains, logging.Nop()),
	}
}

type peer struct {
	conn *transport.StreamConn
	sess *session.Session
	done chan error
}

// connect wires a client conn to a served session the way the accept loop
// does: register, serve, deregister, close.
func (h *harness) connect(t *testing.T) *peer {
	t.Helper()
	a, b := net.Pipe()
	server := transport.NewStreamConn(a)
	client := transport.NewStreamConn(b)

	sess, err := h.reg.Register(server)
	require.NoError(t, err)

	done := make(chan error, 1)
	go func() {
		err := h.svc.Serve(context.Background(), sess)
		h.reg.Deregister(sess.ID)
		_ = server.Close()
		done <- err
	}()

	t.Cleanup(func() {
		_ = client.Close()
		_ = server.Close()
	})
	return &peer{conn: client, sess: sess, done: done}
}

func (p *peer) wait(t *testing.T) error {
	t.Helper()
	select {
	case err := <-p.done:
		return err
	case <-time.After(2 * time.Second):
		t.Fatal("session did not terminate")
		return nil
	}
}

func (p *peer) expectAck(t *testing.T) bool {
	t.Helper()
	m, err := p.conn.Receive()
	require.NoError(t, err)
	require.Equal(t, protocol.KindAck, m.Kind)
	return m.Ack
}

func (p *peer) expectUser(t *testing.T) *models.User {
	t.Helper()
	m, err := p.conn.Receive()
	require.NoError(t, err)
	require.Equal(t, protocol.KindUser, m.Kind)
	return m.User
}

func (p *peer) login(t *testing.T, username, password string) (*models.User, bool) {
	t.Helper()
	require.NoError(t, p.conn.Send(protocol.Credentials(username, password)))
	if !p.expectAck(t) {
		return nil, false
	}
	return p.expectUser(t), true
}

func (p *peer) register(t *testing.T, username, password string) (*models.User, bool) {
	t.Helper()
	require.NoError(t, p.conn.Send(protocol.NewUser(username, password)))
	if !p.expectAck(t) {
		return nil, false
	}
	return p.expectUser(t), true
}

func (p *peer) logout(t *testing.T) {
	t.Helper()
	require.NoError(t, p.conn.Send(protocol.Logout()))
	assert.NoError(t, p.wait(t))
}

// --- authentication ---

func TestServe_LoginAccepts(t *testing.T) {
	h := newHarness(t)
	p := h.connect(t)

	u, ok := p.login(t, "bob", "halibut")
	require.True(t, ok)
	assert.Equal(t, "bob", u.Username)
	assert.NotEmpty(t, u.ID)

	canonical, _ := h.dir.Authenticate("bob", "halibut")
	assert.Same(t, canonical, p.sess.User())

	p.logout(t)
	assert.Equal(t, 0, h.reg.Len())
}

func TestServe_LoginRejectThenRetry(t *testing.T) {
	h := newHarness(t)
	p := h.connect(t)
	before := h.dir.Users()

	_, ok := p.login(t, "bob", "wrong")
	assert.False(t, ok)
	_, ok = p.login(t, "nobody", "halibut")
	assert.False(t, ok)
	assert.False(t, p.sess.Authenticated())
	assert.Equal(t, before, h.dir.Users())

	_, ok = p.login(t, "bob", "halibut")
	assert.True(t, ok)

	p.logout(t)
}

func TestServe_UserShapedLogin(t *testing.T) {
	h := newHarness(t)
	p := h.connect(t)

	msg := protocol.Message{Kind: protocol.KindUser, User: &models.User{Username: "admin", Password: "admin"}}
	require.NoError(t, p.conn.Send(msg))
	assert.True(t, p.expectAck(t))
	assert.Equal(t, "admin", p.expectUser(t).Username)

	p.logout(t)
}

func TestServe_Register(t *testing.T) {
	h := newHarness(t)
	p := h.connect(t)

	_, ok := p.register(t, "admin", "anything")
	assert.False(t, ok)
	assert.Equal(t, 2, h.dir.Len())

	u, ok := p.register(t, "carol", "x")
	require.True(t, ok)
	assert.Equal(t, "carol", u.Username)
	assert.Equal(t, 3, h.dir.Len())
	assert.True(t, h.dir.ContainsByIdentity("carol", "x"))

	canonical, _ := h.dir.Authenticate("carol", "x")
	assert.Same(t, canonical, p.sess.User())

	p.logout(t)

	q := h.connect(t)
	_, ok = q.register(t, "carol", "y")
	assert.False(t, ok)
	assert.Equal(t, 3, h.dir.Len())
	q.logout(t)
}

func TestServe_LogoutBeforeAuthentication(t *testing.T) {
	h := newHarness(t)
	p := h.connect(t)
	require.Equal(t, 1, h.reg.Len())

	p.logout(t)

	assert.Equal(t, 0, h.reg.Len())
	assert.False(t, h.reg.Deregister(p.sess.ID))
}

func TestServe_IgnoresCommandsBeforeAuthentication(t *testing.T) {
	h := newHarness(t)
	p := h.connect(t)

	require.NoError(t, p.conn.Send(protocol.ProfileUpdate(&models.User{Username: "bob", Profile: models.Profile{"x": "y"}})))
	require.NoError(t, p.conn.Send(protocol.FetchTrains()))
	require.NoError(t, p.conn.Send(protocol.Message{Kind: "ping"}))

	_, ok := p.login(t, "bob", "halibut")
	require.True(t, ok)

	v, _ := h.dir.View("bob")
	assert.Empty(t, v.Profile)
	assert.Equal(t, 0, h.trains.calls)

	p.logout(t)
}

func TestServe_SameUserSharesCanonicalRecord(t *testing.T) {
	h := newHarness(t)
	p := h.connect(t)
	q := h.connect(t)

	_, ok := p.login(t, "bob", "halibut")
	require.True(t, ok)
	_, ok = q.login(t, "bob", "halibut")
	require.True(t, ok)

	assert.Same(t, p.sess.User(), q.sess.User())

	p.logout(t)
	q.logout(t)
}

// --- command loop ---

func TestServe_FetchTrainsReadsCurrentSnapshot(t *testing.T) {
	h := newHarness(t)
	p := h.connect(t)
	_, ok := p.login(t, "bob", "halibut")
	require.True(t, ok)

	require.NoError(t, p.conn.Send(protocol.FetchTrains()))
	m, err := p.conn.Receive()
	require.NoError(t, err)
	require.Equal(t, protocol.KindTrains, m.Kind)
	assert.Len(t, m.Trains, 1)

	h.trains.set(nil)
	require.NoError(t, p.conn.Send(protocol.FetchTrains()))
	m, err = p.conn.Receive()
	require.NoError(t, err)
	assert.Empty(t, m.Trains)
	assert.Equal(t, 2, h.trains.calls)

	p.logout(t)
}

func TestServe_ProfileUpdatePropagates(t *testing.T) {
	h := newHarness(t)
	p := h.connect(t)
	u, ok := p.login(t, "bob", "halibut")
	require.True(t, ok)

	// Identity fields in the update are ignored.
	u.Username = "mallory"
	u.Password = "changed"
	u.Profile = models.Profile{"city": "Tallinn"}
	require.NoError(t, p.conn.Send(protocol.ProfileUpdate(u)))
	assert.True(t, p.expectAck(t))

	v, ok := h.dir.View("bob")
	require.True(t, ok)
	assert.Equal(t, models.Profile{"city": "Tallinn"}, v.Profile)
	assert.Equal(t, "halibut", v.Password)
	assert.False(t, h.dir.ContainsByName("mallory"))

	q := h.connect(t)
	other, ok := q.login(t, "bob", "halibut")
	require.True(t, ok)
	assert.Equal(t, "Tallinn", other.Profile["city"])

	p.logout(t)
	q.logout(t)
}

func TestServe_IgnoresUnknownCommands(t *testing.T) {
	h := newHarness(t)
	p := h.connect(t)
	_, ok := p.login(t, "bob", "halibut")
	require.True(t, ok)

	require.NoError(t, p.conn.Send(protocol.Command("reboot")))
	require.NoError(t, p.conn.Send(protocol.Message{Kind: "ping"}))
	require.NoError(t, p.conn.Send(protocol.Credentials("admin", "admin")))
	require.NoError(t, p.conn.Send(protocol.FetchTrains()))

	m, err := p.conn.Receive()
	require.NoError(t, err)
	assert.Equal(t, protocol.KindTrains, m.Kind)
	assert.Equal(t, "bob", p.sess.Username())

	p.logout(t)
}

// --- failures ---

func TestServe_PeerDisconnect(t *testing.T) {
	h := newHarness(t)
	p := h.connect(t)
	_, ok := p.login(t, "bob", "halibut")
	require.True(t, ok)

	require.NoError(t, p.conn.Close())

	err := p.wait(t)
	assert.ErrorIs(t, err, common.ErrTransport)
	assert.Equal(t, 0, h.reg.Len())
}

func TestServe_GarbageEndsConnection(t *testing.T) {
	h := newHarness(t)
	a, b := net.Pipe()
	t.Cleanup(func() { _ = b.Close() })

	server := transport.NewStreamConn(a)
	sess, err := h.reg.Register(server)
	require.NoError(t, err)

	done := make(chan error, 1)
	go func() { done <- h.svc.Serve(context.Background(), sess) }()

	_, err = b.Write([]byte{0x03, 0xff, 0xff, 0xff})
	require.NoError(t, err)

	select {
	case err := <-done:
		assert.ErrorIs(t, err, common.ErrDecode)
	case <-time.After(2 * time.Second):
		t.Fatal("session did not terminate")
	}
}

func TestServe_ShutdownUnblocksReceive(t *testing.T) {
	h := newHarness(t)
	p := h.connect(t)
	q := h.connect(t)
	_, ok := p.login(t, "bob", "halibut")
	require.True(t, ok)

	assert.Equal(t, 2, h.reg.CloseAll())

	assert.ErrorIs(t, p.wait(t), common.ErrConnClosed)
	assert.ErrorIs(t, q.wait(t), common.ErrConnClosed)
	assert.Equal(t, 0, h.reg.Len())
}

// --- concurrency ---

func TestServe_ConcurrentRegistration(t *testing.T) {
	tests := []struct {
		name      string
		usernames [2]string
		wantWins  int
	}{
		{name: "same name", usernames: [2]string{"carol", "carol"}, wantWins: 1},
		{name: "distinct names", usernames: [2]string{"carol", "dave"}, wantWins: 2},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h := newHarness(t)
			peers := [2]*peer{h.connect(t), h.connect(t)}

			var wg sync.WaitGroup
			results := make([]bool, 2)
			for i := range peers {
				wg.Add(1)
				go func(i int) {
					defer wg.Done()
					if err := peers[i].conn.Send(protocol.NewUser(tt.usernames[i], "pw")); err != nil {
						return
					}
					m, err := peers[i].conn.Receive()
					if err != nil || !m.Ack {
						return
					}
					if m, err := peers[i].conn.Receive(); err == nil && m.Kind == protocol.KindUser {
						results[i] = true
					}
				}(i)
			}
			wg.Wait()

			wins := 0
			for _, ok := range results {
				if ok {
					wins++
				}
			}
			assert.Equal(t, tt.wantWins, wins)
			assert.Equal(t, 2+tt.wantWins, h.dir.Len())

			for _, p := range peers {
				p.logout(t)
			}
		})
	}
}

// Directory contents {admin/admin, bob/halibut} driven end to end.
func TestServe_Scenario(t *testing.T) {
	h := newHarness(t)
	p := h.connect(t)

	u, ok := p.login(t, "bob", "halibut")
	require.True(t, ok)
	assert.Equal(t, "bob", u.Username)
	p.logout(t)

	q := h.connect(t)
	_, ok = q.login(t, "bob", "wrong")
	assert.False(t, ok)
	assert.Equal(t, 2, h.dir.Len())

	_, ok = q.register(t, "admin", "anything")
	assert.False(t, ok)

	_, ok = q.register(t, "carol", "x")
	assert.True(t, ok)
	assert.Equal(t, 3, h.dir.Len())
	q.logout(t)

	r := h.connect(t)
	_, ok = r.register(t, "carol", "y")
	assert.False(t, ok)
	r.logout(t)
}

func TestState_String(t *testing.T) {
	assert.Equal(t, "awaiting_first_message", StateAwaitingFirstMessage.String())
	assert.Equal(t, "authenticated", StateAuthenticated.String())
	assert.Equal(t, "terminated", StateTerminated.String())
	assert.Equal(t, "unknown", State(42).String())
}
