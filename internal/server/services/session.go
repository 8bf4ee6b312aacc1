// Package services contains the server-side protocol logic. SessionService
// drives one connection through authentication and then the command loop.
package services

import (
	"context"
	"errors"

	"github.com/dmitrijs2005/trainbook/internal/common"
	"github.com/dmitrijs2005/trainbook/internal/logging"
	"github.com/dmitrijs2005/trainbook/internal/models"
	"github.com/dmitrijs2005/trainbook/internal/server/session"
)

// UserDirectory is the subset of the shared user directory used by sessions.
type UserDirectory interface {
	ContainsByName(username string) bool
	InsertIfAbsent(u *models.User) (*models.User, bool)
	Authenticate(username, password string) (*models.User, bool)
	UpdateFields(username string, profile models.Profile) bool
	View(username string) (*models.User, bool)
}

// TrainSource provides the current train snapshot.
type TrainSource interface {
	Snapshot() []models.Train
}

// State is the position of a connection in the authentication state machine.
type State int

const (
	StateAwaitingFirstMessage State = iota
	StateRegistering
	StateLoggingIn
	StateAuthenticated
	StateTerminated
)

func (s State) String() string {
	switch s {
	case StateAwaitingFirstMessage:
		return "awaiting_first_message"
	case StateRegistering:
		return "registering"
	case StateLoggingIn:
		return "logging_in"
	case StateAuthenticated:
		return "authenticated"
	case StateTerminated:
		return "terminated"
	}
	return "unknown"
}

type SessionService struct {
	users  UserDirectory
	trains TrainSource
	logger logging.Logger
}

func NewSessionService(users UserDirectory, trains TrainSource, logger logging.Logger) *SessionService {
	if logger == nil {
		logger = logging.Nop()
	}
	return &SessionService{users: users, trains: trains, logger: logger}
}

// Serve runs the session until the peer logs out or the connection fails.
// It returns nil after a Logout and the transport or decode error otherwise.
// Closing the connection and deregistering the session is left to the caller.
func (s *SessionService) Serve(ctx context.Context, sess *session.Session) error {
	log := s.logger.With("conn_id", sess.ID, "remote", sess.RemoteAddr)

	state, err := s.authenticate(ctx, sess, log)
	if err != nil {
		return s.disconnected(ctx, log, state, err)
	}
	if state == StateTerminated {
		log.Info(ctx, "logout before authentication")
		return nil
	}

	log = log.With("username", sess.Username())
	if err := s.commandLoop(ctx, sess, log); err != nil {
		return s.disconnected(ctx, log, StateAuthenticated, err)
	}
	log.Info(ctx, "logout")
	return nil
}

func (s *SessionService) disconnected(ctx context.Context, log logging.Logger, state State, err error) error {
	if errors.Is(err, common.ErrConnClosed) {
		log.Info(ctx, "connection closed", "state", state.String())
	} else {
		log.Warn(ctx, "connection failure", "state", state.String(), "error", err)
	}
	return err
}
