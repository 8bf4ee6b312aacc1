// Package users persists the user directory between server runs. The
// directory is loaded once at startup and written back at shutdown.
package users

import (
	"context"

	"github.com/dmitrijs2005/trainbook/internal/models"
)

type Repository interface {
	LoadAll(ctx context.Context) ([]*models.User, error)
	SaveAll(ctx context.Context, users []*models.User) error
}
