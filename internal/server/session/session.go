// Package session tracks the connections a server is currently serving.
package session

import (
	"sync"
	"time"

	"github.com/dmitrijs2005/trainbook/internal/models"
	"github.com/dmitrijs2005/trainbook/internal/transport"
)

// Session binds one connection to at most one authenticated user.
type Session struct {
	ID          uint64
	Conn        transport.Conn
	RemoteAddr  string
	ConnectedAt time.Time

	mu   sync.RWMutex
	user *models.User
}

// Bind records the authenticated user. Only the first call has an effect;
// it reports whether the binding happened.
func (s *Session) Bind(u *models.User) bool {
	if u == nil {
		return false
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.user != nil {
		return false
	}
	s.user = u
	return true
}

// User returns the bound canonical user, or nil before authentication.
func (s *Session) User() *models.User {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.user
}

func (s *Session) Authenticated() bool {
	return s.User() != nil
}

// Username is the bound user's name, empty before authentication.
func (s *Session) Username() string {
	if u := s.User(); u != nil {
		return u.Username
	}
	return ""
}
