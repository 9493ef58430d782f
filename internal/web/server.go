package web

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/tmarkou/agora/internal/config"
	"github.com/tmarkou/agora/internal/runs"
	"github.com/tmarkou/agora/internal/schema"
	"github.com/tmarkou/agora/internal/secrets"
	"github.com/tmarkou/agora/internal/store"
)

type Server struct {
	store       *store.Store
	manager     *runs.Manager
	resolver    *secrets.Resolver
	hub         *Hub
	cfg         config.WebConfig
	defaultUser string
	version     string
	startedAt   time.Time
}

func NewServer(s *store.Store, m *runs.Manager, r *secrets.Resolver, cfg config.WebConfig, defaultUser, version string) *Server {
	srv := &Server{
		store:       s,
		manager:     m,
		resolver:    r,
		hub:         NewHub(),
		cfg:         cfg,
		defaultUser: defaultUser,
		version:     version,
		startedAt:   time.Now(),
	}
	m.SetNotifier(srv.hub.Broadcast)
	return srv
}

func (s *Server) Start(ctx context.Context) error {
	go s.hub.Run(ctx)

	mux := http.NewServeMux()
	s.registerAPI(mux)
	mux.HandleFunc("GET /api/runs/{id}/ws", s.handleRunSocket)

	handler := s.withMiddleware(mux)
	addr := fmt.Sprintf(":%d", s.cfg.Port)
	server := &http.Server{Addr: addr, Handler: handler}

	go func() {
		<-ctx.Done()
		server.Close()
	}()

	slog.Info("web server listening", "addr", addr)
	if err := server.ListenAndServe(); err != http.ErrServerClosed {
		return err
	}
	return nil
}

func (s *Server) withMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		// CORS
		w.Header().Set("Access-Control-Allow-Origin", "*")
		w.Header().Set("Access-Control-Allow-Methods", "GET, POST, PUT, DELETE, OPTIONS")
		w.Header().Set("Access-Control-Allow-Headers", "Content-Type, Authorization")
		if r.Method == "OPTIONS" {
			w.WriteHeader(http.StatusOK)
			return
		}

		if strings.HasPrefix(r.URL.Path, "/api/") && s.cfg.Auth != "" {
			if _, pass, ok := r.BasicAuth(); !ok || pass != s.cfg.Auth {
				http.Error(w, "Unauthorized", http.StatusUnauthorized)
				return
			}
		}

		next.ServeHTTP(w, r)
	})
}

// userID resolves the acting user from the request, falling back to the
// configured default user.
func (s *Server) userID(r *http.Request) string {
	if u := r.Header.Get("X-User-Id"); u != "" {
		return u
	}
	return s.defaultUser
}

// schemaStatus maps validation failures to 422 and everything else the
// schema layer produces to 400, so clients can tell malformed requests
// from structurally invalid configurations.
func schemaStatus(err error) int {
	switch err.(type) {
	case *schema.SchemaError, *schema.DepthExceededError, *schema.ReferentialError:
		return http.StatusUnprocessableEntity
	case *schema.UnknownVariantError, *schema.MissingDiscriminantError:
		return http.StatusUnprocessableEntity
	case *schema.InvalidTransitionError:
		return http.StatusConflict
	}
	return http.StatusBadRequest
}
