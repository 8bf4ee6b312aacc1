package services

import (
	"context"

	"github.com/dmitrijs2005/trainbook/internal/common"
	"github.com/dmitrijs2005/trainbook/internal/logging"
	"github.com/dmitrijs2005/trainbook/internal/protocol"
	"github.com/dmitrijs2005/trainbook/internal/server/session"
)

// commandLoop serves an authenticated session. It returns nil on Logout.
func (s *SessionService) commandLoop(ctx context.Context, sess *session.Session, log logging.Logger) error {
	username := sess.Username()

	for {
		msg, err := sess.Conn.Receive()
		if err != nil {
			return err
		}

		switch msg.Kind {
		case protocol.KindLogout:
			return nil

		case protocol.KindProfileUpdate:
			var ok bool
			if msg.User != nil {
				ok = s.users.UpdateFields(username, msg.User.Profile)
			}
			log.Info(ctx, "profile update", "ok", ok)
			if err := sess.Conn.Send(protocol.Ack(ok)); err != nil {
				return err
			}

		case protocol.KindCommand:
			if msg.Command != common.FetchTrainsToken {
				log.Debug(ctx, "ignoring unknown command", "command", msg.Command)
				continue
			}
			trains := s.trains.Snapshot()
			log.Debug(ctx, "trains requested", "count", len(trains))
			if err := sess.Conn.Send(protocol.Trains(trains)); err != nil {
				return err
			}

		default:
			log.Debug(ctx, "ignoring message", "kind", string(msg.Kind))
		}
	}
}
