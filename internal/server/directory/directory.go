// Package directory holds the server-wide set of known users.
//
// Every operation runs under the directory lock, so the check-then-insert of
// registration and the in-place profile update are atomic with respect to
// each other. The *models.User pointers handed out by Authenticate and
// InsertIfAbsent are the canonical records: callers may compare them by
// identity, but must read their mutable fields through View.
package directory

import (
	"fmt"
	"sort"
	"sync"

	"github.com/dmitrijs2005/trainbook/internal/models"
	"github.com/google/uuid"
)

type Directory struct {
	mu    sync.RWMutex
	users map[string]*models.User
}

// New seeds a directory with users. Users without an ID get a fresh UUID.
// Duplicate usernames are rejected.
func New(users []*models.User) (*Directory, error) {
	d := &Directory{users: make(map[string]*models.User, len(users))}
	for _, u := range users {
		if u == nil {
			continue
		}
		if _, ok := d.users[u.Username]; ok {
			return nil, fmt.Errorf("duplicate username %q", u.Username)
		}
		c := u.Clone()
		if c.ID == "" {
			c.ID = uuid.NewString()
		}
		d.users[c.Username] = c
	}
	return d, nil
}

// ContainsByIdentity reports whether a user with exactly this
// (username, password) pair exists.
func (d *Directory) ContainsByIdentity(username, password string) bool {
	_, ok := d.Authenticate(username, password)
	return ok
}

// ContainsByName reports whether username is taken.
func (d *Directory) ContainsByName(username string) bool {
	d.mu.RLock()
	defer d.mu.RUnlock()
	_, ok := d.users[username]
	return ok
}

// Authenticate returns the canonical record matching the credentials.
func (d *Directory) Authenticate(username, password string) (*models.User, bool) {
	d.mu.RLock()
	defer d.mu.RUnlock()

	u, ok := d.users[username]
	if !ok || !u.Matches(username, password) {
		return nil, false
	}
	return u, true
}

// InsertIfAbsent stores a copy of u unless its username is already taken.
// On success it returns the canonical record that now lives in the directory.
func (d *Directory) InsertIfAbsent(u *models.User) (*models.User, bool) {
	if u == nil {
		return nil, false
	}

	d.mu.Lock()
	defer d.mu.Unlock()

	if _, ok := d.users[u.Username]; ok {
		return nil, false
	}
	c := u.Clone()
	if c.ID == "" {
		c.ID = uuid.NewString()
	}
	d.users[c.Username] = c
	return c, true
}

// UpdateFields replaces the profile of the named user in place. It is a no-op
// returning false when the user does not exist.
func (d *Directory) UpdateFields(username string, profile models.Profile) bool {
	d.mu.Lock()
	defer d.mu.Unlock()

	u, ok := d.users[username]
	if !ok {
		return false
	}
	u.Profile = profile.Clone()
	return true
}

// View returns a copy of the named user taken under the lock.
func (d *Directory) View(username string) (*models.User, bool) {
	d.mu.RLock()
	defer d.mu.RUnlock()

	u, ok := d.users[username]
	if !ok {
		return nil, false
	}
	return u.Clone(), true
}

func (d *Directory) Len() int {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return len(d.users)
}

// Users returns copies of all records ordered by username.
func (d *Directory) Users() []*models.User {
	d.mu.RLock()
	out := make([]*models.User, 0, len(d.users))
	for _, u := range d.users {
		out = append(out, u.Clone())
	}
	d.mu.RUnlock()

	sort.Slice(out, func(i, j int) bool { return out[i].Username < out[j].Username })
	return out
}
