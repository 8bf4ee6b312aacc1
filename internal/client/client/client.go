// Package client drives the trainbook protocol from the user's side: one
// authentication attempt at a time, then fetch and profile commands, then
// logout.
//
// A Client is safe for concurrent use; exchanges are serialized. Every
// exchange honours its context: cancelling it closes the connection, since
// the stream position is unknown afterwards, and the call returns ctx.Err().
//
// Failures of the connection are reported as ErrUnavailable and drop the
// connection; a negative acknowledgment is reported as ErrRejected.
package client

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/dmitrijs2005/trainbook/internal/common"
	"github.com/dmitrijs2005/trainbook/internal/logging"
	"github.com/dmitrijs2005/trainbook/internal/models"
	"github.com/dmitrijs2005/trainbook/internal/protocol"
	"github.com/dmitrijs2005/trainbook/internal/transport"
)

// TrainSaver receives every train list the client fetches.
type TrainSaver interface {
	Save(ctx context.Context, trains []models.Train) error
}

// Options tune a Client. The zero value is usable.
type Options struct {
	// UpdateMaxAttempts bounds UpdateProfile; 0 retries until acknowledged.
	UpdateMaxAttempts int
	// UpdateRetryInterval is the pause between profile update attempts.
	UpdateRetryInterval time.Duration
	// Cache, when set, gets a copy of each fetched train list.
	Cache  TrainSaver
	Logger logging.Logger
}

type Client struct {
	dial Dialer
	opts Options
	log  logging.Logger

	mu     sync.Mutex
	conn   transport.Conn
	user   *models.User
	trains []models.Train
}

func New(dial Dialer, opts Options) *Client {
	log := opts.Logger
	if log == nil {
		log = logging.Nop()
	}
	return &Client{dial: dial, opts: opts, log: log}
}

// Connect dials the server unless a connection is already open.
func (c *Client) Connect(ctx context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.connectLocked(ctx)
}

func (c *Client) connectLocked(ctx context.Context) error {
	if c.conn != nil {
		return nil
	}
	conn, err := c.dial(ctx)
	if err != nil {
		return fmt.Errorf("%w: %w", ErrUnavailable, err)
	}
	c.log.Debug(ctx, "connected", "remote", conn.RemoteAddr())
	c.conn = conn
	return nil
}

// Connected reports whether a connection is open.
func (c *Client) Connected() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.conn != nil
}

// Authenticate logs in with an existing account and returns a copy of the
// server's record for it.
func (c *Client) Authenticate(ctx context.Context, username, password string) (*models.User, error) {
	return c.authenticate(ctx, protocol.Credentials(username, password))
}

// CreateUser registers a new account and logs in as it.
func (c *Client) CreateUser(ctx context.Context, username, password string) (*models.User, error) {
	return c.authenticate(ctx, protocol.NewUser(username, password))
}

func (c *Client) authenticate(ctx context.Context, req protocol.Message) (*models.User, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.user != nil {
		return nil, ErrAlreadyAuthenticated
	}
	if err := c.connectLocked(ctx); err != nil {
		return nil, err
	}

	var user *models.User
	err := c.exchange(ctx, func(conn transport.Conn) error {
		if err := conn.Send(req); err != nil {
			return err
		}
		ack, err := c.await(ctx, conn, protocol.KindAck)
		if err != nil {
			return err
		}
		if !ack.Ack {
			return ErrRejected
		}
		rec, err := c.await(ctx, conn, protocol.KindUser)
		if err != nil {
			return err
		}
		user = rec.User
		return nil
	})
	if err != nil {
		return nil, err
	}

	c.user = user
	c.log.Info(ctx, "authenticated", "username", user.Username)
	return user.Clone(), nil
}

// FetchTrains asks for the current train list, keeps it as the client's last
// known list and hands it to the cache. A cache failure is logged only.
func (c *Client) FetchTrains(ctx context.Context) ([]models.Train, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.user == nil {
		return nil, ErrUnauthorized
	}

	var trains []models.Train
	err := c.exchange(ctx, func(conn transport.Conn) error {
		if err := conn.Send(protocol.FetchTrains()); err != nil {
			return err
		}
		m, err := c.await(ctx, conn, protocol.KindTrains)
		if err != nil {
			return err
		}
		trains = m.Trains
		return nil
	})
	if err != nil {
		return nil, err
	}

	c.trains = trains
	if c.opts.Cache != nil {
		if err := c.opts.Cache.Save(ctx, trains); err != nil {
			c.log.Warn(ctx, "failed to cache trains", "error", err)
		}
	}
	return append([]models.Train(nil), trains...), nil
}

// Trains returns the last list received by FetchTrains, or nil.
func (c *Client) Trains() []models.Train {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.trains == nil {
		return nil
	}
	return append([]models.Train(nil), c.trains...)
}

// UpdateProfile sends profile as the user's new profile and repeats the
// request until the server acknowledges it. Attempts are spaced by
// UpdateRetryInterval and bounded by UpdateMaxAttempts when it is positive;
// running out of attempts yields ErrRejected. A connection failure ends the
// retry at once.
func (c *Client) UpdateProfile(ctx context.Context, profile models.Profile) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.user == nil {
		return ErrUnauthorized
	}
	return c.updateProfileLocked(ctx, profile)
}

func (c *Client) updateProfileLocked(ctx context.Context, profile models.Profile) error {
	next := c.user.Clone()
	next.Profile = profile.Clone()

	attempts := 0
	err := c.exchange(ctx, func(conn transport.Conn) error {
		operation := func() error {
			attempts++
			if err := conn.Send(protocol.ProfileUpdate(next)); err != nil {
				return backoff.Permanent(err)
			}
			ack, err := c.await(ctx, conn, protocol.KindAck)
			if err != nil {
				return backoff.Permanent(err)
			}
			if !ack.Ack {
				c.log.Debug(ctx, "profile update not acknowledged", "attempt", attempts)
				return common.ErrNotAcknowledged
			}
			return nil
		}
		return backoff.Retry(operation, c.retryPolicy(ctx))
	})
	if errors.Is(err, common.ErrNotAcknowledged) {
		return fmt.Errorf("%w: profile update after %d attempts: %w", ErrRejected, attempts, err)
	}
	if err != nil {
		return err
	}

	c.user = next
	return nil
}

func (c *Client) retryPolicy(ctx context.Context) backoff.BackOffContext {
	var b backoff.BackOff = backoff.NewConstantBackOff(c.opts.UpdateRetryInterval)
	if c.opts.UpdateMaxAttempts > 0 {
		b = backoff.WithMaxRetries(b, uint64(c.opts.UpdateMaxAttempts-1))
	}
	return backoff.WithContext(b, ctx)
}

// Logout ends the session. An authenticated client first pushes its current
// profile with the UpdateProfile exchange. The connection is closed
// afterwards in either case; logging out while disconnected is a no-op.
func (c *Client) Logout(ctx context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.conn == nil {
		c.user = nil
		return nil
	}

	// A profile the server keeps refusing does not keep the session open.
	var flushErr error
	if c.user != nil {
		if err := c.updateProfileLocked(ctx, c.user.Profile); err != nil {
			if !errors.Is(err, ErrRejected) {
				return err
			}
			flushErr = err
		}
	}

	err := c.exchange(ctx, func(conn transport.Conn) error {
		return conn.Send(protocol.Logout())
	})
	if c.conn != nil {
		_ = c.conn.Close()
		c.conn = nil
	}
	c.user = nil
	if err != nil {
		return errors.Join(flushErr, err)
	}
	if flushErr != nil {
		c.log.Warn(ctx, "logged out without saving profile", "error", flushErr)
		return flushErr
	}
	c.log.Info(ctx, "logged out")
	return nil
}

// User returns a copy of the authenticated user, or nil.
func (c *Client) User() *models.User {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.user.Clone()
}

// Close drops the connection without logging out.
func (c *Client) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.user = nil
	if c.conn == nil {
		return nil
	}
	err := c.conn.Close()
	c.conn = nil
	return err
}

// exchange runs fn against the open connection with ctx bound to it.
// Transport and decode failures drop the connection.
func (c *Client) exchange(ctx context.Context, fn func(conn transport.Conn) error) error {
	if c.conn == nil {
		return fmt.Errorf("%w: %w", ErrUnavailable, common.ErrConnClosed)
	}
	if err := ctx.Err(); err != nil {
		return err
	}

	conn := c.conn
	stop := context.AfterFunc(ctx, func() { _ = conn.Close() })
	err := fn(conn)
	cancelled := !stop()

	switch {
	case cancelled:
		c.drop()
		return ctx.Err()
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		c.drop()
		return err
	case errors.Is(err, common.ErrTransport), errors.Is(err, common.ErrDecode):
		c.log.Warn(ctx, "connection lost", "error", err)
		c.drop()
		return fmt.Errorf("%w: %w", ErrUnavailable, err)
	}
	return err
}

func (c *Client) drop() {
	if c.conn != nil {
		_ = c.conn.Close()
	}
	c.conn = nil
	c.user = nil
}

// await reads until a message of kind want arrives. Other kinds are skipped.
func (c *Client) await(ctx context.Context, conn transport.Conn, want protocol.Kind) (protocol.Message, error) {
	for {
		m, err := conn.Receive()
		if err != nil {
			return protocol.Message{}, err
		}
		if m.Kind == want {
			return m, nil
		}
		c.log.Debug(ctx, "skipping message", "kind", string(m.Kind), "want", string(want))
	}
}
