package server

import (
	"context"
	"crypto/subtle"
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"strings"
	"time"

	"skyfeed/internal/ingest"
	"skyfeed/internal/model"
	"skyfeed/internal/store"
	"skyfeed/internal/worker"

	"github.com/gorilla/mux"
	"go.uber.org/zap"
)

// IngestRunner runs one fetch cycle.
type IngestRunner interface {
	Run(ctx context.Context) (ingest.Report, error)
}

// DrainRunner drains up to maxBatch pending entries.
type DrainRunner interface {
	Drain(ctx context.Context, maxBatch int) (worker.Result, error)
}

// DraftPublisher promotes a draft to an article.
type DraftPublisher interface {
	Publish(ctx context.Context, draftID string) (*model.Article, error)
}

// Server exposes the trigger endpoints for the external scheduler and
// the operator actions. Every state-changing route sits behind the
// shared-secret middleware.
type Server struct {
	store        store.Store
	ingestor     IngestRunner
	drainer      DrainRunner
	publisher    DraftPublisher
	secret       string
	defaultBatch int
	logger       *zap.Logger
	router       *mux.Router
	server       *http.Server
}

func NewServer(st store.Store, ing IngestRunner, dr DrainRunner, pub DraftPublisher, secret string, defaultBatch int, logger *zap.Logger) *Server {
	s := &Server{
		store:        st,
		ingestor:     ing,
		drainer:      dr,
		publisher:    pub,
		secret:       secret,
		defaultBatch: defaultBatch,
		logger:       logger,
		router:       mux.NewRouter(),
	}
	s.routes()
	return s
}

func (s *Server) routes() {
	s.router.HandleFunc("/healthz", s.handleHealth).Methods("GET")

	api := s.router.NewRoute().Subrouter()
	api.Use(s.requireSecret)
	api.HandleFunc("/jobs/fetch", s.handleFetch).Methods("POST")
	api.HandleFunc("/jobs/drain", s.handleDrain).Methods("POST")
	api.HandleFunc("/drafts/{id}/publish", s.handlePublish).Methods("POST")
	api.HandleFunc("/drafts/{id}", s.handleGetDraft).Methods("GET")
	api.HandleFunc("/queue/{key}/requeue", s.handleRequeue).Methods("POST")
	api.HandleFunc("/queue", s.handleListQueue).Methods("GET")
}

// Handler exposes the routed handler for tests.
func (s *Server) Handler() http.Handler {
	return s.router
}

// Start launches the HTTP server
func (s *Server) Start(addr string) error {
	s.server = &http.Server{
		Addr:         addr,
		Handler:      s.router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 120 * time.Second,
	}

	s.logger.Info("Trigger API listening", zap.String("addr", addr))
	return s.server.ListenAndServe()
}

// Stop gracefully shuts down
func (s *Server) Stop(ctx context.Context) error {
	return s.server.Shutdown(ctx)
}

// requireSecret rejects requests lacking the shared trigger secret
// before any work begins. The secret rides in a bearer header or a
// token query parameter, compared in constant time.
func (s *Server) requireSecret(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		supplied := r.URL.Query().Get("token")
		if auth := r.Header.Get("Authorization"); strings.HasPrefix(auth, "Bearer ") {
			supplied = strings.TrimPrefix(auth, "Bearer ")
		}

		if s.secret == "" || subtle.ConstantTimeCompare([]byte(supplied), []byte(s.secret)) != 1 {
			s.writeError(w, http.StatusUnauthorized, "invalid or missing trigger secret")
			return
		}

		next.ServeHTTP(w, r)
	})
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	s.writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) handleFetch(w http.ResponseWriter, r *http.Request) {
	report, err := s.ingestor.Run(r.Context())
	if err != nil {
		s.logger.Error("Fetch cycle failed", zap.Error(err))
		s.writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	s.writeJSON(w, http.StatusOK, report)
}

func (s *Server) handleDrain(w http.ResponseWriter, r *http.Request) {
	maxBatch := s.defaultBatch
	if v := r.URL.Query().Get("max"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 1 {
			s.writeError(w, http.StatusBadRequest, "max must be a positive integer")
			return
		}
		maxBatch = n
	}

	result, err := s.drainer.Drain(r.Context(), maxBatch)
	if err != nil {
		s.logger.Error("Drain failed", zap.Error(err))
		s.writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	s.writeJSON(w, http.StatusOK, result)
}

func (s *Server) handlePublish(w http.ResponseWriter, r *http.Request) {
	draftID := mux.Vars(r)["id"]

	article, err := s.publisher.Publish(r.Context(), draftID)
	switch {
	case err == nil:
	case errors.Is(err, store.ErrNotFound):
		s.writeError(w, http.StatusNotFound, "draft not found")
		return
	case errors.Is(err, store.ErrAlreadyPublished):
		s.writeError(w, http.StatusConflict, "draft already published")
		return
	default:
		s.logger.Error("Publish failed", zap.String("draft_id", draftID), zap.Error(err))
		s.writeError(w, http.StatusInternalServerError, err.Error())
		return
	}

	s.writeJSON(w, http.StatusOK, map[string]string{
		"articleId": article.ID,
		"slug":      article.Slug,
	})
}

func (s *Server) handleGetDraft(w http.ResponseWriter, r *http.Request) {
	draft, err := s.store.GetDraft(r.Context(), mux.Vars(r)["id"])
	if err == store.ErrNotFound {
		s.writeError(w, http.StatusNotFound, "draft not found")
		return
	}
	if err != nil {
		s.writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	s.writeJSON(w, http.StatusOK, draft)
}

func (s *Server) handleRequeue(w http.ResponseWriter, r *http.Request) {
	key := mux.Vars(r)["key"]

	err := s.store.RequeueEntry(r.Context(), key)
	switch err {
	case nil:
	case store.ErrNotFound:
		s.writeError(w, http.StatusNotFound, "entry not found")
		return
	case store.ErrBadTransition:
		s.writeError(w, http.StatusConflict, "only errored entries can be requeued")
		return
	default:
		s.writeError(w, http.StatusInternalServerError, err.Error())
		return
	}

	s.writeJSON(w, http.StatusOK, map[string]string{"key": key, "status": string(model.StatusPending)})
}

func (s *Server) handleListQueue(w http.ResponseWriter, r *http.Request) {
	entries, err := s.store.ListEntries(r.Context(), 50)
	if err != nil {
		s.writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	s.writeJSON(w, http.StatusOK, map[string]any{"entries": entries})
}

func (s *Server) writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		s.logger.Error("Failed to encode response", zap.Error(err))
	}
}

func (s *Server) writeError(w http.ResponseWriter, status int, msg string) {
	s.writeJSON(w, status, map[string]string{"error": msg})
}
