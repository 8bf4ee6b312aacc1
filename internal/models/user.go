// Package models defines the data shared by client and server: users with
// their mutable profile, and the train records served as an opaque list.
package models

import "crypto/subtle"

// Profile holds the user's mutable profile fields. Keys are free-form.
type Profile map[string]string

// Clone returns an independent copy of p. A nil Profile clones to nil.
func (p Profile) Clone() Profile {
	if p == nil {
		return nil
	}
	c := make(Profile, len(p))
	for k, v := range p {
		c[k] = v
	}
	return c
}

// User is a registered account. Username is the identity and never changes
// after creation; Profile is the only mutable part.
type User struct {
	ID       string  `json:"id,omitempty"`
	Username string  `json:"username"`
	Password string  `json:"password"`
	Profile  Profile `json:"profile,omitempty"`
}

// Clone returns a deep copy of u.
func (u *User) Clone() *User {
	if u == nil {
		return nil
	}
	c := *u
	c.Profile = u.Profile.Clone()
	return &c
}

// Matches reports whether (username, password) equals the user's identity
// pair. Passwords are compared in constant time.
func (u *User) Matches(username, password string) bool {
	if u == nil || u.Username != username {
		return false
	}
	return subtle.ConstantTimeCompare([]byte(u.Password), []byte(password)) == 1
}
