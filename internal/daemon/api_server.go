package daemon

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"

	"postflow/internal/api"
	"postflow/internal/config"
	"postflow/internal/logging"
	"postflow/internal/posts"
	"postflow/internal/services"
)

const maxRequestBody = 1 << 20

type apiServer struct {
	bind     string
	token    string
	logger   *slog.Logger
	daemon   *Daemon
	service  *api.PostService
	verifier ClientVerifier

	handler  http.Handler
	listener net.Listener
	server   *http.Server
}

func newAPIServer(cfg *config.Config, d *Daemon, logger *slog.Logger) *apiServer {
	if cfg == nil || d == nil {
		return nil
	}
	bind := strings.TrimSpace(cfg.Paths.APIBind)
	if bind == "" {
		return nil
	}

	srv := &apiServer{
		bind:    bind,
		token:   strings.TrimSpace(cfg.Paths.APIToken),
		logger:  logger,
		daemon:  d,
		service: d.service,
	}
	if d.issuer != nil {
		srv.verifier = d.issuer
	}
	srv.handler = srv.routes()
	srv.server = &http.Server{
		Handler:           srv.handler,
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       15 * time.Second,
		WriteTimeout:      30 * time.Second,
		IdleTimeout:       60 * time.Second,
	}
	return srv
}

func (s *apiServer) routes() http.Handler {
	mux := http.NewServeMux()
	admin := func(next http.HandlerFunc) http.HandlerFunc { return authMiddleware(s.token, next) }
	client := func(next http.HandlerFunc) http.HandlerFunc { return clientMiddleware(s.verifier, next) }

	mux.HandleFunc("GET /api/status", admin(s.handleStatus))
	mux.HandleFunc("POST /api/publish", admin(s.handlePublish))
	mux.HandleFunc("POST /api/notifications/test", admin(s.handleTestNotification))
	mux.HandleFunc("GET /api/report", admin(s.handleReport))

	mux.HandleFunc("GET /api/clients", admin(s.handleListClients))
	mux.HandleFunc("POST /api/clients", admin(s.handleCreateClient))
	mux.HandleFunc("GET /api/clients/{id}", admin(s.handleGetClient))
	mux.HandleFunc("POST /api/clients/{id}/token", admin(s.handleIssueToken))

	mux.HandleFunc("GET /api/posts", admin(s.handleListPosts))
	mux.HandleFunc("POST /api/posts", admin(s.handleSchedule))
	mux.HandleFunc("GET /api/posts/{id}", admin(s.handleDescribe))
	mux.HandleFunc("PATCH /api/posts/{id}", admin(s.handleEdit))
	mux.HandleFunc("POST /api/posts/{id}/approve", admin(s.handleReview(posts.StatusApproved)))
	mux.HandleFunc("POST /api/posts/{id}/reject", admin(s.handleReview(posts.StatusRejected)))
	mux.HandleFunc("GET /api/posts/{id}/attempts", admin(s.handleAttempts))

	mux.HandleFunc("GET /api/client/posts", client(s.handleClientPosts))
	mux.HandleFunc("GET /api/client/posts/{id}", client(s.handleClientPost))
	mux.HandleFunc("POST /api/client/posts/{id}/approve", client(s.handleReview(posts.StatusApproved)))
	mux.HandleFunc("POST /api/client/posts/{id}/reject", client(s.handleReview(posts.StatusRejected)))

	mux.Handle("GET /metrics", s.daemon.metrics.Handler())
	return s.withRequestID(mux)
}

func (s *apiServer) start(ctx context.Context) error {
	if s == nil {
		return nil
	}
	listener, err := net.Listen("tcp", s.bind)
	if err != nil {
		return fmt.Errorf("api listen: %w", err)
	}
	s.listener = listener

	go func() {
		if err := s.server.Serve(listener); err != nil && !errors.Is(err, http.ErrServerClosed) {
			s.log().Error("api server error", logging.Error(err))
		}
	}()

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = s.server.Shutdown(shutdownCtx)
	}()

	if s.token == "" {
		logging.WarnWithContext(s.log(), "admin api has no token", "api_token_missing",
			logging.String(logging.FieldImpact, "any local process can manage posts"),
			logging.String(logging.FieldErrorHint, "set paths.api_token or POSTFLOW_API_TOKEN"),
		)
	}
	s.log().Info("api server listening", logging.String("address", listener.Addr().String()))
	return nil
}

func (s *apiServer) stop() {
	if s == nil {
		return
	}
	if s.server != nil {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = s.server.Shutdown(shutdownCtx)
	}
	if s.listener != nil {
		_ = s.listener.Close()
		s.listener = nil
	}
}

// addr reports the bound listener address, empty before start.
func (s *apiServer) addr() string {
	if s == nil || s.listener == nil {
		return ""
	}
	return s.listener.Addr().String()
}

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(status int) {
	r.status = status
	r.ResponseWriter.WriteHeader(status)
}

func (s *apiServer) withRequestID(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		id := strings.TrimSpace(r.Header.Get("X-Request-ID"))
		if id == "" {
			id = uuid.NewString()
		}
		w.Header().Set("X-Request-ID", id)
		ctx := services.WithRequestID(r.Context(), id)
		start := time.Now()
		rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(rec, r.WithContext(ctx))
		logging.WithContext(ctx, s.log()).Debug("api request",
			logging.String("method", r.Method),
			logging.String("path", r.URL.Path),
			logging.Int("status", rec.status),
			logging.Duration("elapsed", time.Since(start)),
		)
	})
}

func (s *apiServer) decode(w http.ResponseWriter, r *http.Request, dst any) bool {
	body := http.MaxBytesReader(w, r.Body, maxRequestBody)
	decoder := json.NewDecoder(body)
	decoder.DisallowUnknownFields()
	if err := decoder.Decode(dst); err != nil {
		s.writeError(w, http.StatusBadRequest, "invalid request body: "+err.Error())
		return false
	}
	return true
}

// writeServiceError maps store and service sentinels onto HTTP statuses.
func (s *apiServer) writeServiceError(w http.ResponseWriter, r *http.Request, err error) {
	status := statusFor(err)
	if status >= http.StatusInternalServerError && status != http.StatusServiceUnavailable {
		details := services.Details(err)
		logging.ErrorWithContext(logging.WithContext(r.Context(), s.log()), "api request failed", "api_request_failed",
			logging.String("path", r.URL.Path),
			logging.String(logging.FieldErrorKind, string(details.Kind)),
			logging.Error(err),
		)
	}
	s.writeError(w, status, err.Error())
}

func statusFor(err error) int {
	switch {
	case errors.Is(err, posts.ErrValidation):
		return http.StatusBadRequest
	case errors.Is(err, posts.ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, posts.ErrInvalidTransition):
		return http.StatusConflict
	case errors.Is(err, api.ErrForbidden):
		return http.StatusForbidden
	case errors.Is(err, api.ErrUnavailable):
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}

func (s *apiServer) writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if payload == nil {
		return
	}
	if err := json.NewEncoder(w).Encode(payload); err != nil {
		s.log().Error("failed to encode response", logging.Error(err))
	}
}

func (s *apiServer) writeError(w http.ResponseWriter, status int, message string) {
	s.writeJSON(w, status, api.ErrorResponse{Error: message})
}

func (s *apiServer) log() *slog.Logger {
	if s.logger != nil {
		return s.logger.With(logging.String("component", "api-server"))
	}
	return logging.NewNop()
}
