// Package server exposes the stored bundle over HTTP and pushes every change
// to websocket clients.
package server

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/gorilla/mux"
	"github.com/sirupsen/logrus"

	"github.com/denysvitali/carshare-anon/anonapi"
	"github.com/denysvitali/carshare-anon/store"
)

// Store is the part of *store.Store the server needs.
type Store interface {
	Snapshot() (*store.Snapshot, error)
	Nearest(n int) ([]anonapi.AvailableVehicle, error)
	Within(radiusMeters float64) ([]anonapi.AvailableVehicle, error)
	Position() anonapi.Position
	SetPosition(pos anonapi.Position) error
	Update(pos anonapi.Position) error
	Subscribe(fn func())
}

type Config struct {
	Host string
	Port int
}

func (c Config) Addr() string {
	return fmt.Sprintf("%s:%d", c.Host, c.Port)
}

type Server struct {
	httpServer *http.Server
	store      Store
	hub        *hub
	logger     *logrus.Logger
}

func New(cfg Config, st Store, logger *logrus.Logger) *Server {
	if logger == nil {
		logger = logrus.StandardLogger()
	}
	s := &Server{
		store:  st,
		hub:    newHub(logger),
		logger: logger,
	}
	s.httpServer = &http.Server{
		Addr:         cfg.Addr(),
		Handler:      s.Handler(),
		ReadTimeout:  5 * time.Second,
		WriteTimeout: 10 * time.Second,
		IdleTimeout:  15 * time.Second,
	}
	st.Subscribe(s.broadcast)
	return s
}

// Handler returns the router serving the API and the websocket feed.
func (s *Server) Handler() http.Handler {
	router := mux.NewRouter()
	router.Use(s.withLogging)

	api := router.PathPrefix("/api").Subrouter()
	api.HandleFunc("/health", s.handleHealth).Methods(http.MethodGet)
	api.HandleFunc("/bundle", s.handleBundle).Methods(http.MethodGet)
	api.HandleFunc("/vehicles/nearest", s.handleNearest).Methods(http.MethodGet)
	api.HandleFunc("/vehicles/within", s.handleWithin).Methods(http.MethodGet)
	api.HandleFunc("/position", s.handlePosition).Methods(http.MethodPut)

	router.HandleFunc("/ws", s.handleWebSocket).Methods(http.MethodGet)
	return router
}

func (s *Server) withLogging(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		s.logger.Debugf("%s %s", r.Method, r.URL.Path)
		next.ServeHTTP(w, r)
	})
}

// Start blocks until the server is stopped.
func (s *Server) Start() error {
	s.logger.Infof("Starting server on %s", s.httpServer.Addr)
	if err := s.httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return fmt.Errorf("failed to start server: %w", err)
	}
	return nil
}

// Stop disconnects websocket clients and gracefully shuts down the server.
func (s *Server) Stop(ctx context.Context) error {
	s.logger.Info("Shutting down server")
	s.hub.closeAll()
	return s.httpServer.Shutdown(ctx)
}

// Refresh re-aggregates around the current position. Clients are notified
// through the store subscription.
func (s *Server) Refresh() error {
	return s.store.Update(s.store.Position())
}

func (s *Server) broadcast() {
	snap, err := s.store.Snapshot()
	if err != nil {
		s.logger.Warnf("unable to read snapshot: %v", err)
		return
	}
	s.hub.broadcast(snap)
}
