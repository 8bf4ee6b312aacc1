// Package server wires the trainbook server together: user store, train
// source, the protocol listeners and the admin API. It also owns the accept
// loop that turns connections into sessions.
package server

import (
	"context"
	"database/sql"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/dmitrijs2005/trainbook/internal/logging"
	"github.com/dmitrijs2005/trainbook/internal/server/config"
	"github.com/dmitrijs2005/trainbook/internal/server/directory"
	"github.com/dmitrijs2005/trainbook/internal/server/repositories/users"
	"github.com/dmitrijs2005/trainbook/internal/server/services"
	"github.com/dmitrijs2005/trainbook/internal/server/session"
	"github.com/dmitrijs2005/trainbook/internal/server/trains"
	"github.com/dmitrijs2005/trainbook/internal/server/ws"

	gs "github.com/dmitrijs2005/trainbook/internal/server/grpc"
)

const saveTimeout = 10 * time.Second

var logOutput io.Writer = os.Stderr

type App struct {
	config      *config.Config
	logger      logging.Logger
	db          *sql.DB
	usersRepo   users.Repository
	directory   *directory.Directory
	trains      *trains.Store
	trainLoader trains.Loader
	registry    *session.Registry
	server      *Server
}

// NewApp loads the user directory and the initial train list. Nothing is
// listening until Run.
func NewApp(ctx context.Context, c *config.Config) (*App, error) {
	logger := logging.New(os.Stdout, logging.ParseLevel(c.LogLevel), "json")
	return newApp(ctx, c, logger)
}

func newApp(ctx context.Context, c *config.Config, logger logging.Logger) (*App, error) {
	app := &App{config: c, logger: logger}

	if c.DatabaseDSN != "" {
		db, err := users.OpenPostgres(ctx, c.DatabaseDSN)
		if err != nil {
			return nil, fmt.Errorf("db init error: %w", err)
		}
		app.db = db
		app.usersRepo = users.NewPostgresRepository(db)
	} else {
		app.usersRepo = users.NewFileRepository(c.UsersFile)
	}

	loaded, err := app.usersRepo.LoadAll(ctx)
	if err != nil {
		app.closeDB()
		return nil, fmt.Errorf("load users: %w", err)
	}
	app.directory, err = directory.New(loaded)
	if err != nil {
		app.closeDB()
		return nil, fmt.Errorf("build user directory: %w", err)
	}
	logger.Info(ctx, "Users loaded", "count", app.directory.Len())

	if c.S3Bucket != "" {
		app.trainLoader, err = trains.NewS3Loader(ctx, trains.S3Options{
			Bucket:       c.S3Bucket,
			Key:          c.S3Key,
			Region:       c.S3Region,
			BaseEndpoint: c.S3BaseEndpoint,
			User:         c.S3RootUser,
			Password:     c.S3RootPassword,
		})
		if err != nil {
			app.closeDB()
			return nil, fmt.Errorf("trains loader: %w", err)
		}
	} else {
		app.trainLoader = trains.NewFileLoader(c.TrainsFile)
	}

	app.trains = trains.NewStore(nil)
	n, err := trains.Reload(ctx, app.trainLoader, app.trains)
	if err != nil {
		app.closeDB()
		return nil, fmt.Errorf("load trains: %w", err)
	}
	logger.Info(ctx, "Trains loaded", "count", n)

	app.registry = session.NewRegistry()
	sessions := services.NewSessionService(app.directory, app.trains, logger.With("module", "sessions"))
	app.server = NewServer(c.ListenAddr, app.registry, sessions, logger)

	return app, nil
}

func (app *App) initSignalHandler(cancelFunc context.CancelFunc) {
	// Channel to catch OS signals.
	sigs := make(chan os.Signal, 1)
	signal.Notify(sigs, syscall.SIGINT, syscall.SIGTERM, syscall.SIGQUIT)

	go func() {
		<-sigs
		cancelFunc()
	}()
}

// runComponent runs fn and cancels the whole app if it fails.
func (app *App) runComponent(ctx context.Context, cancelFunc context.CancelFunc, name string, fn func(context.Context) error) {
	if err := fn(ctx); err != nil {
		app.logger.Error(ctx, "component failed", "component", name, "error", err)
		cancelFunc()
	}
}

// Run serves until ctx is cancelled or a signal arrives, then closes every
// session and writes the user directory back to its store.
func (app *App) Run(ctx context.Context) {

	ctx, cancelFunc := context.WithCancel(ctx)
	defer cancelFunc()

	app.logger.Info(ctx, "Starting app...")

	app.initSignalHandler(cancelFunc)

	var wg sync.WaitGroup
	start := func(name string, fn func(context.Context) error) {
		wg.Add(1)
		go func() {
			defer wg.Done()
			app.runComponent(ctx, cancelFunc, name, fn)
		}()
	}

	start("server", app.server.Run)

	if app.config.WSAddr != "" {
		start("ws", ws.NewServer(app.config.WSAddr, app.server, app.logger).Run)
	}

	if app.config.AdminAddr != "" {
		start("admin", gs.NewGRPCServer(app.config.AdminAddr, app.logger, app.registry, app.config.SecretKey).Run)
	}

	if fl, ok := app.trainLoader.(*trains.FileLoader); ok && app.config.WatchTrains {
		w, err := trains.NewWatcher(fl, app.trains, app.logger)
		if err != nil {
			app.logger.Warn(ctx, "trains watcher disabled", "error", err)
		} else {
			start("trains_watcher", w.Run)
		}
	}

	wg.Wait()

	app.saveUsers()
	app.closeDB()

	app.logger.Info(context.Background(), "App stopped")
}

func (app *App) saveUsers() {
	ctx, cancel := context.WithTimeout(context.Background(), saveTimeout)
	defer cancel()

	all := app.directory.Users()
	if err := app.usersRepo.SaveAll(ctx, all); err != nil {
		app.logger.Error(ctx, "saving users failed", "error", err)
		return
	}
	app.logger.Info(ctx, "Users saved", "count", len(all))
}

func (app *App) closeDB() {
	if app.db != nil {
		_ = app.db.Close()
		app.db = nil
	}
}

// DefaultLogger is the logger used before configuration is available, such
// as when NewApp itself fails.
func DefaultLogger() logging.Logger {
	return logging.NewSlogLogger(slog.New(slog.NewJSONHandler(logOutput, nil)))
}
