package cli

import (
	"context"
	"fmt"
	"maps"
	"slices"

	"github.com/dmitrijs2005/trainbook/internal/client/client"
	"github.com/dmitrijs2005/trainbook/internal/models"
)

// Profile prints the logged-in user's name and profile fields.
func (a *App) Profile(ctx context.Context) error {
	u := a.client.User()
	if u == nil {
		fmt.Fprintln(a.out, "Not logged in")
		return client.ErrUnauthorized
	}

	fmt.Fprintf(a.out, "username: %s\n", u.Username)
	for _, k := range slices.Sorted(maps.Keys(u.Profile)) {
		fmt.Fprintf(a.out, "%s: %s\n", k, u.Profile[k])
	}
	return nil
}

// Set changes one profile field and sends the new profile to the server.
func (a *App) Set(ctx context.Context, key, value string) error {
	u := a.client.User()
	if u == nil {
		fmt.Fprintln(a.out, "Not logged in")
		return client.ErrUnauthorized
	}

	profile := u.Profile.Clone()
	if profile == nil {
		profile = models.Profile{}
	}
	profile[key] = value

	if err := a.client.UpdateProfile(ctx, profile); err != nil {
		fmt.Fprintln(a.out, "Profile update failed:", err.Error())
		a.logger.Warn(ctx, "profile update failed", "key", key, "error", err)
		return err
	}
	fmt.Fprintln(a.out, "Profile updated")
	return nil
}
