package daemon

import (
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"

	"postflow/internal/api"
	"postflow/internal/posts"
	"postflow/internal/report"
)

func (s *apiServer) handleStatus(w http.ResponseWriter, r *http.Request) {
	s.writeJSON(w, http.StatusOK, s.daemon.Status(r.Context()))
}

func (s *apiServer) handlePublish(w http.ResponseWriter, r *http.Request) {
	summary, err := s.daemon.RunCycle(r.Context())
	if err != nil {
		s.writeServiceError(w, r, err)
		return
	}
	s.writeJSON(w, http.StatusOK, summary)
}

func (s *apiServer) handleTestNotification(w http.ResponseWriter, r *http.Request) {
	sent, message, err := s.daemon.TestNotification(r.Context())
	if err != nil {
		s.writeError(w, http.StatusBadGateway, fmt.Sprintf("%s: %v", message, err))
		return
	}
	s.writeJSON(w, http.StatusOK, map[string]any{"sent": sent, "message": message})
}

func (s *apiServer) handleReport(w http.ResponseWriter, r *http.Request) {
	if s.daemon.reports == nil {
		s.writeError(w, http.StatusServiceUnavailable, "reports unavailable")
		return
	}
	query := r.URL.Query()
	opts := report.Options{Engagement: query.Get("engagement") == "true"}
	if raw := query.Get("client"); raw != "" {
		id, err := parseID(raw)
		if err != nil {
			s.writeError(w, http.StatusBadRequest, "invalid client id")
			return
		}
		opts.ClientID = id
	}
	if raw := query.Get("days"); raw != "" {
		days, err := strconv.Atoi(raw)
		if err != nil || days <= 0 {
			s.writeError(w, http.StatusBadRequest, "days must be a positive integer")
			return
		}
		opts.Window = time.Duration(days) * 24 * time.Hour
	}
	rep, err := s.daemon.reports.Build(r.Context(), opts)
	if err != nil {
		s.writeServiceError(w, r, err)
		return
	}
	s.writeJSON(w, http.StatusOK, rep)
}

func (s *apiServer) handleListClients(w http.ResponseWriter, r *http.Request) {
	clients, err := s.service.ListClients(r.Context())
	if err != nil {
		s.writeServiceError(w, r, err)
		return
	}
	s.writeJSON(w, http.StatusOK, clients)
}

func (s *apiServer) handleCreateClient(w http.ResponseWriter, r *http.Request) {
	var req api.CreateClientRequest
	if !s.decode(w, r, &req) {
		return
	}
	client, err := s.service.CreateClient(r.Context(), req)
	if err != nil {
		s.writeServiceError(w, r, err)
		return
	}
	s.writeJSON(w, http.StatusCreated, client)
}

func (s *apiServer) handleGetClient(w http.ResponseWriter, r *http.Request) {
	id, ok := s.pathID(w, r)
	if !ok {
		return
	}
	client, err := s.service.GetClient(r.Context(), id)
	if err != nil {
		s.writeServiceError(w, r, err)
		return
	}
	s.writeJSON(w, http.StatusOK, client)
}

func (s *apiServer) handleIssueToken(w http.ResponseWriter, r *http.Request) {
	id, ok := s.pathID(w, r)
	if !ok {
		return
	}
	token, err := s.service.IssueToken(r.Context(), id)
	if err != nil {
		s.writeServiceError(w, r, err)
		return
	}
	s.writeJSON(w, http.StatusCreated, token)
}

func (s *apiServer) handleListPosts(w http.ResponseWriter, r *http.Request) {
	query := r.URL.Query()
	list := api.ListQuery{Statuses: query["status"], Newest: query.Get("newest") == "true"}
	if raw := query.Get("client"); raw != "" {
		id, err := parseID(raw)
		if err != nil {
			s.writeError(w, http.StatusBadRequest, "invalid client id")
			return
		}
		list.ClientID = id
	}
	if raw := query.Get("limit"); raw != "" {
		limit, err := strconv.Atoi(raw)
		if err != nil || limit < 0 {
			s.writeError(w, http.StatusBadRequest, "limit must be a non-negative integer")
			return
		}
		list.Limit = limit
	}
	items, err := s.service.List(r.Context(), list)
	if err != nil {
		s.writeServiceError(w, r, err)
		return
	}
	s.writeJSON(w, http.StatusOK, items)
}

func (s *apiServer) handleSchedule(w http.ResponseWriter, r *http.Request) {
	var req api.ScheduleRequest
	if !s.decode(w, r, &req) {
		return
	}
	result, err := s.service.Schedule(r.Context(), req)
	if err != nil {
		s.writeServiceError(w, r, err)
		return
	}
	s.writeJSON(w, http.StatusCreated, result)
}

func (s *apiServer) handleDescribe(w http.ResponseWriter, r *http.Request) {
	id, ok := s.pathID(w, r)
	if !ok {
		return
	}
	detail, err := s.service.Describe(r.Context(), id)
	if err != nil {
		s.writeServiceError(w, r, err)
		return
	}
	s.writeJSON(w, http.StatusOK, detail)
}

func (s *apiServer) handleEdit(w http.ResponseWriter, r *http.Request) {
	id, ok := s.pathID(w, r)
	if !ok {
		return
	}
	var req api.EditRequest
	if !s.decode(w, r, &req) {
		return
	}
	post, err := s.service.Edit(r.Context(), id, req)
	if err != nil {
		s.writeServiceError(w, r, err)
		return
	}
	s.writeJSON(w, http.StatusOK, post)
}

func (s *apiServer) handleAttempts(w http.ResponseWriter, r *http.Request) {
	id, ok := s.pathID(w, r)
	if !ok {
		return
	}
	attempts, err := s.service.Attempts(r.Context(), id)
	if err != nil {
		s.writeServiceError(w, r, err)
		return
	}
	s.writeJSON(w, http.StatusOK, attempts)
}

// handleReview serves both the admin and client review routes. Client routes
// carry the token's client id on the context, which scopes the decision to
// that client's own posts.
func (s *apiServer) handleReview(to posts.Status) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, ok := s.pathID(w, r)
		if !ok {
			return
		}
		var req api.ReviewRequest
		if r.ContentLength != 0 && !s.decode(w, r, &req) {
			return
		}
		var actor api.Actor
		if clientID, ok := clientFromContext(r.Context()); ok {
			actor.ClientID = clientID
		}
		review := s.service.Approve
		if to == posts.StatusRejected {
			review = s.service.Reject
		}
		post, err := review(r.Context(), actor, id, req)
		if err != nil {
			s.writeServiceError(w, r, err)
			return
		}
		s.writeJSON(w, http.StatusOK, post)
	}
}

func (s *apiServer) handleClientPosts(w http.ResponseWriter, r *http.Request) {
	clientID, _ := clientFromContext(r.Context())
	items, err := s.service.PendingFor(r.Context(), clientID)
	if err != nil {
		s.writeServiceError(w, r, err)
		return
	}
	s.writeJSON(w, http.StatusOK, items)
}

func (s *apiServer) handleClientPost(w http.ResponseWriter, r *http.Request) {
	id, ok := s.pathID(w, r)
	if !ok {
		return
	}
	clientID, _ := clientFromContext(r.Context())
	post, err := s.service.GetForClient(r.Context(), clientID, id)
	if err != nil {
		s.writeServiceError(w, r, err)
		return
	}
	s.writeJSON(w, http.StatusOK, post)
}

func (s *apiServer) pathID(w http.ResponseWriter, r *http.Request) (int64, bool) {
	id, err := parseID(r.PathValue("id"))
	if err != nil {
		s.writeError(w, http.StatusBadRequest, "invalid id")
		return 0, false
	}
	return id, true
}

func parseID(raw string) (int64, error) {
	id, err := strconv.ParseInt(strings.TrimSpace(raw), 10, 64)
	if err != nil || id <= 0 {
		return 0, fmt.Errorf("invalid id %q", raw)
	}
	return id, nil
}
