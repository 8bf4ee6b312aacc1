package services

import (
	"context"

	"github.com/dmitrijs2005/trainbook/internal/logging"
	"github.com/dmitrijs2005/trainbook/internal/models"
	"github.com/dmitrijs2005/trainbook/internal/protocol"
	"github.com/dmitrijs2005/trainbook/internal/server/session"
)

// authenticate loops until one login or registration succeeds, the peer
// logs out, or the connection fails. Rejections keep the loop going. It
// returns StateAuthenticated with the session bound, or StateTerminated.
func (s *SessionService) authenticate(ctx context.Context, sess *session.Session, log logging.Logger) (State, error) {
	state := StateAwaitingFirstMessage

	for {
		msg, err := sess.Conn.Receive()
		if err != nil {
			return state, err
		}

		switch msg.Kind {
		case protocol.KindNewUser:
			state = StateRegistering
			u, err := s.register(ctx, sess, msg.User, log)
			if err != nil {
				return state, err
			}
			if u != nil {
				return StateAuthenticated, nil
			}

		case protocol.KindCredentials, protocol.KindUser:
			state = StateLoggingIn
			u, err := s.login(ctx, sess, msg.User, log)
			if err != nil {
				return state, err
			}
			if u != nil {
				return StateAuthenticated, nil
			}

		case protocol.KindLogout:
			return StateTerminated, nil

		default:
			// Anything else before authentication is dropped.
			log.Debug(ctx, "ignoring message before authentication", "kind", string(msg.Kind))
		}

		state = StateAwaitingFirstMessage
	}
}

// register returns the canonical user on success and nil after a reject.
func (s *SessionService) register(ctx context.Context, sess *session.Session, req *models.User, log logging.Logger) (*models.User, error) {
	if req == nil {
		return nil, sess.Conn.Send(protocol.Ack(false))
	}

	if s.users.ContainsByName(req.Username) {
		log.Warn(ctx, "registration rejected: username taken", "username", req.Username)
		return nil, sess.Conn.Send(protocol.Ack(false))
	}

	canonical, ok := s.users.InsertIfAbsent(&models.User{
		Username: req.Username,
		Password: req.Password,
		Profile:  req.Profile,
	})
	if !ok {
		log.Warn(ctx, "registration rejected: username taken", "username", req.Username)
		return nil, sess.Conn.Send(protocol.Ack(false))
	}

	log.Info(ctx, "user registered", "username", canonical.Username, "user_id", canonical.ID)
	return canonical, s.accept(sess, canonical)
}

// login returns the canonical user on success and nil after a reject.
func (s *SessionService) login(ctx context.Context, sess *session.Session, req *models.User, log logging.Logger) (*models.User, error) {
	if req == nil {
		return nil, sess.Conn.Send(protocol.Ack(false))
	}

	log.Info(ctx, "login attempt", "username", req.Username)

	canonical, ok := s.users.Authenticate(req.Username, req.Password)
	if !ok {
		log.Warn(ctx, "login failed", "username", req.Username)
		return nil, sess.Conn.Send(protocol.Ack(false))
	}

	log.Info(ctx, "login succeeded", "username", canonical.Username)
	return canonical, s.accept(sess, canonical)
}

// accept binds the session to the canonical record, then sends the positive
// acknowledgment followed by a copy of that record.
func (s *SessionService) accept(sess *session.Session, canonical *models.User) error {
	sess.Bind(canonical)

	if err := sess.Conn.Send(protocol.Ack(true)); err != nil {
		return err
	}

	view, ok := s.users.View(canonical.Username)
	if !ok {
		view = canonical
	}
	return sess.Conn.Send(protocol.UserRecord(view))
}
