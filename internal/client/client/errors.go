package client

import "errors"

var (
	ErrUnavailable          = errors.New("server unavailable")
	ErrRejected             = errors.New("rejected by server")
	ErrUnauthorized         = errors.New("unauthorized")
	ErrAlreadyAuthenticated = errors.New("already authenticated")
)
