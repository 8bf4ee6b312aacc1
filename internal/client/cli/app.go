// Package cli implements the interactive trainbook client: a REPL that logs
// in or registers, lists trains, edits the user's profile and logs out.
package cli

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/dmitrijs2005/trainbook/internal/client/cache"
	"github.com/dmitrijs2005/trainbook/internal/client/client"
	"github.com/dmitrijs2005/trainbook/internal/client/config"
	"github.com/dmitrijs2005/trainbook/internal/logging"
	"github.com/dmitrijs2005/trainbook/internal/models"
)

// protocolClient is the part of *client.Client the commands use.
type protocolClient interface {
	Authenticate(ctx context.Context, username, password string) (*models.User, error)
	CreateUser(ctx context.Context, username, password string) (*models.User, error)
	FetchTrains(ctx context.Context) ([]models.Train, error)
	UpdateProfile(ctx context.Context, profile models.Profile) error
	Logout(ctx context.Context) error
	Close() error
	User() *models.User
}

// trainCache is the offline copy of the last fetched train list.
type trainCache interface {
	Load(ctx context.Context) ([]models.Train, time.Time, error)
}

type App struct {
	config *config.Config
	client protocolClient
	cache  trainCache
	logger logging.Logger
	reader *bufio.Reader
	out    io.Writer
	closer func() error
}

func NewApp(ctx context.Context, c *config.Config) (*App, error) {
	logger := logging.New(os.Stderr, logging.ParseLevel(c.LogLevel), "text")

	tc, err := cache.Open(ctx, c.CacheDSN)
	if err != nil {
		return nil, fmt.Errorf("open train cache: %w", err)
	}

	dial := client.TCPDialer(c.ServerAddr)
	if c.Transport == config.TransportWS {
		dial = client.WSDialer(c.ServerAddr)
	}

	cl := client.New(dial, client.Options{
		UpdateMaxAttempts:   c.UpdateMaxAttempts,
		UpdateRetryInterval: c.UpdateRetryInterval,
		Cache:               tc,
		Logger:              logger,
	})

	return &App{
		config: c,
		client: cl,
		cache:  tc,
		logger: logger,
		reader: bufio.NewReader(os.Stdin),
		out:    os.Stdout,
		closer: tc.Close,
	}, nil
}

// Run drives the REPL until the user leaves or stdin ends.
func (a *App) Run(ctx context.Context) {
	defer a.close(ctx)

	fmt.Fprintln(a.out, "Welcome to trainbook (type 'help' for commands)")
	runREPL(ctx, a, a.getStatus, a.reader)
}

func (a *App) close(ctx context.Context) {
	if err := a.client.Close(); err != nil {
		a.logger.Debug(ctx, "close client", "error", err)
	}
	if a.closer != nil {
		if err := a.closer(); err != nil {
			a.logger.Warn(ctx, "close train cache", "error", err)
		}
	}
}

func (a *App) isLoggedIn() bool {
	return a.client.User() != nil
}

func (a *App) getStatus() string {
	if u := a.client.User(); u != nil {
		return fmt.Sprintf(" (%s)", u.Username)
	}
	return ""
}
