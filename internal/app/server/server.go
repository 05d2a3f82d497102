package server

import (
	"context"
	"errors"
	"livesync/internal/app/server/handlers"
	"livesync/pkg/middleware"
	"log/slog"
	"net/http"
	"time"
)

type Server struct {
	mux           *http.ServeMux
	addr          string
	log           *slog.Logger
	serviceName   string
	issueTokens   bool
	authHandler   *handlers.AuthHandler
	wsHandler     *handlers.WSHandler
	roomHandler   *handlers.RoomHandler
	healthHandler *handlers.HealthHandler
	tokens        middleware.TokenValidator
	http          *http.Server
}

// Deps are the handlers and auth pieces the server routes to.
type Deps struct {
	Auth        *handlers.AuthHandler // nil disables POST /auth/token
	WS          *handlers.WSHandler
	Rooms       *handlers.RoomHandler
	Health      *handlers.HealthHandler
	Tokens      middleware.TokenValidator
	ServiceName string
}

func NewServer(addr string, log *slog.Logger, deps Deps) *Server {
	s := &Server{
		mux:           http.NewServeMux(),
		addr:          addr,
		log:           log,
		serviceName:   deps.ServiceName,
		issueTokens:   deps.Auth != nil,
		authHandler:   deps.Auth,
		wsHandler:     deps.WS,
		roomHandler:   deps.Rooms,
		healthHandler: deps.Health,
		tokens:        deps.Tokens,
	}
	s.routes()
	s.http = &http.Server{
		Addr:              addr,
		Handler:           s.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
		IdleTimeout:       60 * time.Second,
	}
	return s
}

func (s *Server) routes() {
	// 1. Initialize Middleware
	auth := middleware.AuthMiddleware(s.tokens)

	// 2. Public Routes
	s.mux.HandleFunc("GET /healthz", s.healthHandler.Healthz)
	if s.issueTokens {
		s.mux.HandleFunc("POST /auth/token", s.authHandler.IssueToken)
	}

	// 3. Protected Routes
	s.mux.Handle("GET /ws", auth(http.HandlerFunc(s.wsHandler.Handler)))
	s.mux.Handle("GET /rooms/{room}/messages", auth(http.HandlerFunc(s.roomHandler.History)))
	s.mux.Handle("GET /rooms/{room}/presence", auth(http.HandlerFunc(s.roomHandler.Presence)))
}

// Handler is the full middleware chain around the routes.
func (s *Server) Handler() http.Handler {
	return middleware.TracerMiddleware(s.serviceName)(middleware.RequestLogger(s.log)(s.mux))
}

// Start blocks serving until Shutdown is called.
func (s *Server) Start() error {
	s.log.Info("server - start - listening", "addr", s.addr)
	if err := s.http.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

func (s *Server) Shutdown(ctx context.Context) error {
	return s.http.Shutdown(ctx)
}
