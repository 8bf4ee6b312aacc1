package cli

import (
	"context"
	"errors"
	"fmt"

	"github.com/dmitrijs2005/trainbook/internal/client/client"
	"github.com/dmitrijs2005/trainbook/internal/common"
	"github.com/dmitrijs2005/trainbook/internal/models"
)

// getSimpleText and getPassword are indirections used to facilitate testing.
// They point to interactive input helpers and can be swapped in tests.
var getSimpleText = GetSimpleText
var getPassword = GetPassword

// Register prompts for a username and password and creates the account.
// A taken username is reported as a rejection and the user stays logged out.
func (a *App) Register(ctx context.Context) error {
	return a.authenticate(ctx, "Registration", a.client.CreateUser)
}

// Login prompts for credentials and authenticates.
func (a *App) Login(ctx context.Context) error {
	return a.authenticate(ctx, "Login", a.client.Authenticate)
}

func (a *App) authenticate(ctx context.Context, what string, call func(ctx context.Context, username, password string) (*models.User, error)) error {
	userName, err := getSimpleText(a.reader, "Enter username", a.out)
	if err != nil {
		return err
	}

	password, err := getPassword(a.out)
	if err != nil {
		return err
	}
	defer common.WipeByteArray(password)

	u, err := call(ctx, userName, string(password))
	switch {
	case errors.Is(err, client.ErrRejected):
		fmt.Fprintf(a.out, "%s failed\n", what)
		return err
	case errors.Is(err, client.ErrUnavailable):
		fmt.Fprintln(a.out, "Server unavailable")
		a.logger.Warn(ctx, "server unavailable", "error", err)
		return err
	case err != nil:
		fmt.Fprintln(a.out, err.Error())
		return err
	}

	fmt.Fprintf(a.out, "%s successful, welcome %s\n", what, u.Username)
	return nil
}

// Logout pushes the current profile and ends the session.
func (a *App) Logout(ctx context.Context) error {
	wasLoggedIn := a.isLoggedIn()

	if err := a.client.Logout(ctx); err != nil {
		if !errors.Is(err, client.ErrRejected) || a.isLoggedIn() {
			fmt.Fprintln(a.out, "Logout failed:", err.Error())
			return err
		}
		fmt.Fprintln(a.out, "Profile not saved:", err.Error())
	}
	if wasLoggedIn {
		fmt.Fprintln(a.out, "Logged out")
	}
	return nil
}
