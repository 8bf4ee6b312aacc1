// Package protocol defines the message envelope exchanged between client and
// server and its wire encoding.
//
// Every message carries an explicit Kind discriminant. Receivers switch on
// Kind; kinds they do not understand decode to a Message whose Kind is kept
// verbatim so the receiver can deliberately ignore it.
package protocol

import (
	"github.com/dmitrijs2005/trainbook/internal/common"
	"github.com/dmitrijs2005/trainbook/internal/models"
)

// Kind discriminates the variants of Message.
type Kind string

const (
	// Client to server.
	KindCredentials   Kind = "credentials"
	KindNewUser       Kind = "new_user"
	KindLogout        Kind = "logout"
	KindProfileUpdate Kind = "profile_update"
	KindCommand       Kind = "command"

	// Server to client.
	KindAck    Kind = "ack"
	KindUser   Kind = "user"
	KindTrains Kind = "trains"
)

// Known reports whether k is one of the kinds defined above.
func (k Kind) Known() bool {
	switch k {
	case KindCredentials, KindNewUser, KindLogout, KindProfileUpdate, KindCommand,
		KindAck, KindUser, KindTrains:
		return true
	}
	return false
}

// Message is the tagged union sent over a connection. Only the fields that
// belong to Kind are meaningful:
//
//	credentials, new_user, profile_update, user  -> User
//	command                                      -> Command
//	ack                                          -> Ack
//	trains                                       -> Trains
//	logout                                       -> (none)
type Message struct {
	Kind    Kind
	User    *models.User
	Command string
	Ack     bool
	Trains  []models.Train
}

func Credentials(username, password string) Message {
	return Message{Kind: KindCredentials, User: &models.User{Username: username, Password: password}}
}

func NewUser(username, password string) Message {
	return Message{Kind: KindNewUser, User: &models.User{Username: username, Password: password}}
}

func Logout() Message {
	return Message{Kind: KindLogout}
}

// ProfileUpdate carries the full user record; the server only applies its
// profile fields.
func ProfileUpdate(u *models.User) Message {
	return Message{Kind: KindProfileUpdate, User: u.Clone()}
}

func Command(token string) Message {
	return Message{Kind: KindCommand, Command: token}
}

// FetchTrains is the request for the current train snapshot.
func FetchTrains() Message {
	return Command(common.FetchTrainsToken)
}

func Ack(ok bool) Message {
	return Message{Kind: KindAck, Ack: ok}
}

func UserRecord(u *models.User) Message {
	return Message{Kind: KindUser, User: u.Clone()}
}

func Trains(trains []models.Train) Message {
	if trains == nil {
		trains = []models.Train{}
	}
	return Message{Kind: KindTrains, Trains: trains}
}
