// Package ws accepts protocol connections over WebSocket and hands them to
// the same session pipeline as TCP connections.
package ws

import (
	"context"
	"errors"
	"net"
	"net/http"
	"time"

	"github.com/dmitrijs2005/trainbook/internal/logging"
	"github.com/dmitrijs2005/trainbook/internal/transport"
	"github.com/gorilla/websocket"
	"github.com/julienschmidt/httprouter"
)

const shutdownTimeout = 5 * time.Second

// ConnServer runs one session per connection and blocks until it ends.
type ConnServer interface {
	ServeConn(ctx context.Context, conn transport.Conn)
}

type Server struct {
	address  string
	sessions ConnServer
	logger   logging.Logger
	router   *httprouter.Router
	upgrader websocket.Upgrader
}

func NewServer(address string, sessions ConnServer, logger logging.Logger) *Server {
	s := &Server{
		address:  address,
		sessions: sessions,
		logger:   logger.With("module", "ws_server"),
		router:   httprouter.New(),
		upgrader: websocket.Upgrader{
			ReadBufferSize:  4096,
			WriteBufferSize: 4096,
			CheckOrigin:     func(*http.Request) bool { return true },
		},
	}

	s.setupRoutes()
	return s
}

func (s *Server) setupRoutes() {
	s.router.GET("/ws", s.handleWS)
	s.router.GET("/healthz", s.handleHealth)
}

// Handler exposes the router, mainly for tests.
func (s *Server) Handler() http.Handler {
	return s.router
}

func (s *Server) Run(ctx context.Context) error {
	ln, err := net.Listen("tcp", s.address)
	if err != nil {
		return err
	}
	return s.Serve(ctx, ln)
}

// Serve serves HTTP on ln until ctx is done. Upgraded connections are not
// tracked by the HTTP server; they end when the session pipeline closes them.
func (s *Server) Serve(ctx context.Context, ln net.Listener) error {
	srv := &http.Server{
		Handler:           s.router,
		ReadHeaderTimeout: 10 * time.Second,
		BaseContext:       func(net.Listener) context.Context { return ctx },
	}

	go func() {
		<-ctx.Done()
		s.logger.Info(ctx, "Stopping WebSocket server...")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		_ = srv.Shutdown(shutdownCtx)
	}()

	s.logger.Info(ctx, "Starting WebSocket server", "address", ln.Addr().String())

	if err := srv.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

func (s *Server) handleWS(w http.ResponseWriter, r *http.Request, _ httprouter.Params) {
	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.logger.Warn(r.Context(), "websocket upgrade failed", "remote", r.RemoteAddr, "error", err)
		return
	}

	s.sessions.ServeConn(r.Context(), transport.NewWSConn(conn))
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request, _ httprouter.Params) {
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("ok"))
}
