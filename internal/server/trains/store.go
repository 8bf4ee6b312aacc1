// Package trains owns the server's train list. The protocol layer only reads
// snapshots from a Store; loaders and the file watcher replace its contents.
package trains

import (
	"sync"

	"github.com/dmitrijs2005/trainbook/internal/models"
)

type Store struct {
	mu     sync.RWMutex
	trains []models.Train
}

func NewStore(initial []models.Train) *Store {
	s := &Store{}
	s.Replace(initial)
	return s
}

// Snapshot returns a copy of the current list.
func (s *Store) Snapshot() []models.Train {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]models.Train, len(s.trains))
	copy(out, s.trains)
	return out
}

// Replace swaps in a copy of trains.
func (s *Store) Replace(trains []models.Train) {
	c := make([]models.Train, len(trains))
	copy(c, trains)

	s.mu.Lock()
	s.trains = c
	s.mu.Unlock()
}

func (s *Store) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.trains)
}
