package relay

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/PolarWolf314/keysync/internal/cloud"
	"github.com/PolarWolf314/keysync/internal/keystore"
	logger "github.com/PolarWolf314/keysync/internal/logging"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
)

const (
	defaultMaxBodyBytes = 1 << 20
	shutdownTimeout     = 5 * time.Second
)

// Server exposes a Backend over HTTP.
type Server struct {
	backend cloud.Backend
	metrics *Metrics
	log     logger.Logger
	maxBody int64
}

type Option func(*Server)

func WithLogger(log logger.Logger) Option {
	return func(s *Server) {
		s.log = log
	}
}

// WithMaxBodyBytes caps request bodies. Larger requests get 413.
func WithMaxBodyBytes(n int64) Option {
	return func(s *Server) {
		s.maxBody = n
	}
}

func NewServer(backend cloud.Backend, opts ...Option) *Server {
	s := &Server{
		backend: backend,
		metrics: NewMetrics(),
		maxBody: defaultMaxBodyBytes,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Routes returns the relay's router.
func (s *Server) Routes() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.Recoverer)
	r.Use(s.metrics.Middleware)

	r.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, map[string]string{"status": "ok", "service": "keysync-relay"})
	})
	r.Method(http.MethodGet, "/metrics", s.metrics.Handler())

	r.Route("/v1/accounts/{account}", func(r chi.Router) {
		r.Get("/status", s.getStatus)
		r.Put("/status", s.putStatus)
		r.Post("/changes", s.postChanges)
		r.Get("/snapshot", s.getSnapshot)
	})
	return r
}

// ListenAndServe serves on addr until ctx is cancelled, then shuts down.
func (s *Server) ListenAndServe(ctx context.Context, addr string) error {
	server := &http.Server{
		Addr:              addr,
		Handler:           s.Routes(),
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       15 * time.Second,
		WriteTimeout:      30 * time.Second,
		IdleTimeout:       120 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		s.log.Infof("Relay listening on %s", addr)
		errCh <- server.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	s.log.Infof("Shutting down relay")
	if err := server.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("shutting down relay: %w", err)
	}
	return nil
}

func (s *Server) getStatus(w http.ResponseWriter, r *http.Request) {
	account := chi.URLParam(r, "account")
	status, err := s.backend.AccountStatus(r.Context(), account)
	if err != nil {
		s.backendError(w, "reading account status", err)
		return
	}
	if status == cloud.StatusNoAccount {
		writeError(w, http.StatusNotFound, "no such account")
		return
	}
	writeJSON(w, http.StatusOK, cloud.StatusDocument{Status: status})
}

func (s *Server) putStatus(w http.ResponseWriter, r *http.Request) {
	account := chi.URLParam(r, "account")
	var doc cloud.StatusDocument
	if !s.decode(w, r, &doc) {
		return
	}
	if err := s.backend.SetAccountStatus(r.Context(), account, doc.Status); err != nil {
		s.backendError(w, "writing account status", err)
		return
	}
	s.log.Infof("Account %s is now %s", account, doc.Status)
	writeJSON(w, http.StatusOK, doc)
}

func (s *Server) postChanges(w http.ResponseWriter, r *http.Request) {
	account := chi.URLParam(r, "account")
	var set cloud.ChangeSet
	if !s.decode(w, r, &set) {
		return
	}
	if err := validateChanges(set.Changes); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	if err := s.backend.Push(r.Context(), account, set.Changes); err != nil {
		s.backendError(w, "applying changes", err)
		return
	}
	for _, c := range set.Changes {
		s.metrics.countChange(string(c.Op))
	}
	s.log.Debugf("Applied %d change(s) for account %s", len(set.Changes), account)
	writeJSON(w, http.StatusOK, map[string]int{"applied": len(set.Changes)})
}

func (s *Server) getSnapshot(w http.ResponseWriter, r *http.Request) {
	account := chi.URLParam(r, "account")
	snap, err := s.backend.Pull(r.Context(), account)
	if err != nil {
		s.backendError(w, "reading snapshot", err)
		return
	}
	if snap.Records == nil {
		snap.Records = []keystore.Record{}
	}
	if snap.Deleted == nil {
		snap.Deleted = []string{}
	}
	writeJSON(w, http.StatusOK, snap)
}

func (s *Server) decode(w http.ResponseWriter, r *http.Request, v any) bool {
	r.Body = http.MaxBytesReader(w, r.Body, s.maxBody)
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			writeError(w, http.StatusRequestEntityTooLarge, "request body too large")
			return false
		}
		writeError(w, http.StatusBadRequest, "invalid json: "+err.Error())
		return false
	}
	return true
}

func (s *Server) backendError(w http.ResponseWriter, action string, err error) {
	s.log.Warnf("Backend failed %s: %v", action, err)
	writeError(w, http.StatusServiceUnavailable, "backend unavailable")
}

func validateChanges(changes []keystore.Change) error {
	for i, c := range changes {
		if c.Record.ID == "" {
			return fmt.Errorf("change %d has no record id", i)
		}
		switch c.Op {
		case keystore.OpDelete:
		case keystore.OpPut:
			if len(c.Record.KeyData) == 0 {
				return fmt.Errorf("change %d puts a record without key data", i)
			}
		default:
			return fmt.Errorf("change %d has unknown op %q", i, c.Op)
		}
	}
	return nil
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}
