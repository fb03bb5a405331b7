package daemon

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"

	"postflow/internal/api"
	"postflow/internal/auth"
	"postflow/internal/config"
	"postflow/internal/logging"
	"postflow/internal/media"
	"postflow/internal/metrics"
	"postflow/internal/posts"
	"postflow/internal/publisher"
	"postflow/internal/report"
	"postflow/internal/testsupport"
)

const adminToken = "admin-token"

type recordingPlatform struct {
	mu       sync.Mutex
	captions []string
}

func (p *recordingPlatform) Publish(_ context.Context, _ media.Asset, caption string) (string, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.captions = append(p.captions, caption)
	return fmt.Sprintf("ext-%d", len(p.captions)), nil
}

func (p *recordingPlatform) calls() []string {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]string(nil), p.captions...)
}

type urlResolver struct{}

func (urlResolver) Resolve(_ context.Context, ref string) (media.Asset, error) {
	return media.Asset{Ref: ref, Kind: media.KindOf(ref), URL: "https://cdn.example.com/" + ref}, nil
}

type apiFixture struct {
	cfg      *config.Config
	store    *posts.Store
	issuer   *auth.Issuer
	platform *recordingPlatform
	handler  http.Handler
}

func newAPIFixture(t *testing.T) *apiFixture {
	t.Helper()
	cfg := testsupport.NewConfig(t, testsupport.WithAPIToken(adminToken))
	store := testsupport.MustOpenStore(t, cfg)
	testsupport.WriteMedia(t, cfg.Paths.MediaDir, "photo.jpg")

	library, err := media.NewLibrary(cfg)
	if err != nil {
		t.Fatalf("media.NewLibrary: %v", err)
	}
	issuer, err := auth.NewIssuer(cfg)
	if err != nil {
		t.Fatalf("auth.NewIssuer: %v", err)
	}
	logger := logging.NewNop()
	m := metrics.New("postflow")
	platform := &recordingPlatform{}
	worker := publisher.NewWorker(cfg, store, urlResolver{}, platform, logger, publisher.WithMetrics(m))
	service := api.NewPostService(store, library,
		api.WithLogger(logger),
		api.WithMetrics(m),
		api.WithTokenIssuer(issuer),
	)
	d, err := New(cfg, logger, Dependencies{
		Store:   store,
		Worker:  worker,
		Service: service,
		Reports: report.NewBuilder(store, nil, logger),
		Issuer:  issuer,
		Metrics: m,
	})
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	if d.api == nil {
		t.Fatal("expected api server for configured bind")
	}
	return &apiFixture{cfg: cfg, store: store, issuer: issuer, platform: platform, handler: d.api.handler}
}

func (f *apiFixture) do(t *testing.T, method, path, token string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var payload bytes.Buffer
	if body != nil {
		if err := json.NewEncoder(&payload).Encode(body); err != nil {
			t.Fatalf("encode body: %v", err)
		}
	}
	req := httptest.NewRequest(method, path, &payload)
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	w := httptest.NewRecorder()
	f.handler.ServeHTTP(w, req)
	return w
}

func decodeBody[T any](t *testing.T, w *httptest.ResponseRecorder) T {
	t.Helper()
	var out T
	if err := json.Unmarshal(w.Body.Bytes(), &out); err != nil {
		t.Fatalf("decode response %q: %v", w.Body.String(), err)
	}
	return out
}

func expectStatus(t *testing.T, w *httptest.ResponseRecorder, want int) {
	t.Helper()
	if w.Code != want {
		t.Fatalf("expected %d, got %d: %s", want, w.Code, w.Body.String())
	}
}

func (f *apiFixture) createClient(t *testing.T, name string) api.Client {
	t.Helper()
	email := strings.ToLower(name) + "@example.com"
	w := f.do(t, http.MethodPost, "/api/clients", adminToken, api.CreateClientRequest{Name: name, Email: email})
	expectStatus(t, w, http.StatusCreated)
	return decodeBody[api.Client](t, w)
}

func (f *apiFixture) schedule(t *testing.T, clientID int64, caption string) api.Post {
	t.Helper()
	w := f.do(t, http.MethodPost, "/api/posts", adminToken, api.ScheduleRequest{
		ClientID: clientID,
		MediaRef: "photo.jpg",
		Caption:  caption,
	})
	expectStatus(t, w, http.StatusCreated)
	return decodeBody[api.ScheduleResult](t, w).Post
}

func (f *apiFixture) clientToken(t *testing.T, clientID int64) string {
	t.Helper()
	w := f.do(t, http.MethodPost, fmt.Sprintf("/api/clients/%d/token", clientID), adminToken, nil)
	expectStatus(t, w, http.StatusCreated)
	return decodeBody[api.TokenResponse](t, w).Token
}

func TestAPIAdminRoutesRequireToken(t *testing.T) {
	f := newAPIFixture(t)

	w := f.do(t, http.MethodGet, "/api/posts", "", nil)
	expectStatus(t, w, http.StatusUnauthorized)

	w = f.do(t, http.MethodGet, "/api/posts", "wrong", nil)
	expectStatus(t, w, http.StatusUnauthorized)

	w = f.do(t, http.MethodGet, "/api/posts", adminToken, nil)
	expectStatus(t, w, http.StatusOK)
	if got := w.Header().Get("X-Request-ID"); got == "" {
		t.Fatal("expected request id header")
	}
}

func TestAPIClientApprovalFlowPublishesOnlyApproved(t *testing.T) {
	f := newAPIFixture(t)
	client := f.createClient(t, "Acme")
	p1 := f.schedule(t, client.ID, "Spring launch")
	p2 := f.schedule(t, client.ID, "Winter clearance")
	if p1.Status != "pending" || p2.Status != "pending" {
		t.Fatalf("expected pending posts, got %q and %q", p1.Status, p2.Status)
	}

	token := f.clientToken(t, client.ID)
	w := f.do(t, http.MethodGet, "/api/client/posts", token, nil)
	expectStatus(t, w, http.StatusOK)
	if pending := decodeBody[[]api.Post](t, w); len(pending) != 2 {
		t.Fatalf("expected 2 pending posts, got %d", len(pending))
	}

	w = f.do(t, http.MethodPost, fmt.Sprintf("/api/client/posts/%d/approve", p1.ID), token, api.ReviewRequest{Feedback: "looks great"})
	expectStatus(t, w, http.StatusOK)
	w = f.do(t, http.MethodPost, fmt.Sprintf("/api/client/posts/%d/reject", p2.ID), token, api.ReviewRequest{Feedback: "wrong season"})
	expectStatus(t, w, http.StatusOK)
	if rejected := decodeBody[api.Post](t, w); rejected.Feedback != "wrong season" {
		t.Fatalf("expected feedback recorded, got %q", rejected.Feedback)
	}

	w = f.do(t, http.MethodPost, "/api/publish", adminToken, nil)
	expectStatus(t, w, http.StatusOK)
	summary := decodeBody[api.CycleSummary](t, w)
	if summary.Candidates != 1 || summary.Published != 1 {
		t.Fatalf("unexpected cycle summary %+v", summary)
	}

	w = f.do(t, http.MethodGet, fmt.Sprintf("/api/posts/%d", p1.ID), adminToken, nil)
	expectStatus(t, w, http.StatusOK)
	detail := decodeBody[api.PostDetail](t, w)
	if detail.Post.Status != "published" || detail.Post.ExternalID != "ext-1" {
		t.Fatalf("expected P1 published with ext-1, got %+v", detail.Post)
	}
	if detail.Post.Feedback != "looks great" {
		t.Fatalf("expected approval feedback kept, got %q", detail.Post.Feedback)
	}
	if len(detail.Attempts) != 1 || !detail.Attempts[0].Succeeded {
		t.Fatalf("expected one successful attempt, got %+v", detail.Attempts)
	}

	w = f.do(t, http.MethodGet, fmt.Sprintf("/api/posts/%d", p2.ID), adminToken, nil)
	expectStatus(t, w, http.StatusOK)
	if got := decodeBody[api.PostDetail](t, w).Post.Status; got != "rejected" {
		t.Fatalf("expected P2 rejected, got %q", got)
	}
	if calls := f.platform.calls(); len(calls) != 1 || calls[0] != "Spring launch" {
		t.Fatalf("expected only P1 published, got %v", calls)
	}

	w = f.do(t, http.MethodPost, fmt.Sprintf("/api/client/posts/%d/approve", p2.ID), token, nil)
	expectStatus(t, w, http.StatusConflict)
}

func TestAPIClientScopedToOwnPosts(t *testing.T) {
	f := newAPIFixture(t)
	acme := f.createClient(t, "Acme")
	globex := f.createClient(t, "Globex")
	post := f.schedule(t, globex.ID, "Globex only")
	token := f.clientToken(t, acme.ID)

	w := f.do(t, http.MethodPost, fmt.Sprintf("/api/client/posts/%d/approve", post.ID), token, nil)
	expectStatus(t, w, http.StatusForbidden)

	w = f.do(t, http.MethodGet, fmt.Sprintf("/api/client/posts/%d", post.ID), token, nil)
	expectStatus(t, w, http.StatusForbidden)

	w = f.do(t, http.MethodGet, "/api/client/posts", token, nil)
	expectStatus(t, w, http.StatusOK)
	if pending := decodeBody[[]api.Post](t, w); len(pending) != 0 {
		t.Fatalf("expected no pending posts for acme, got %d", len(pending))
	}

	w = f.do(t, http.MethodGet, "/api/client/posts", adminToken, nil)
	expectStatus(t, w, http.StatusUnauthorized)

	stored, err := f.store.Get(context.Background(), post.ID)
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if stored.Status != posts.StatusPending {
		t.Fatalf("expected post untouched, got %s", stored.Status)
	}
}

func TestAPIErrorMapping(t *testing.T) {
	f := newAPIFixture(t)
	client := f.createClient(t, "Acme")

	w := f.do(t, http.MethodPost, "/api/posts", adminToken, api.ScheduleRequest{ClientID: client.ID})
	expectStatus(t, w, http.StatusBadRequest)

	w = f.do(t, http.MethodPost, "/api/posts", adminToken, api.ScheduleRequest{ClientID: client.ID, MediaRef: "missing.jpg"})
	expectStatus(t, w, http.StatusBadRequest)

	w = f.do(t, http.MethodGet, "/api/posts?status=archived", adminToken, nil)
	expectStatus(t, w, http.StatusBadRequest)

	w = f.do(t, http.MethodGet, "/api/posts/999", adminToken, nil)
	expectStatus(t, w, http.StatusNotFound)

	w = f.do(t, http.MethodGet, "/api/posts/abc", adminToken, nil)
	expectStatus(t, w, http.StatusBadRequest)

	w = f.do(t, http.MethodPost, "/api/posts", adminToken, map[string]any{"clientId": client.ID, "bogus": true})
	expectStatus(t, w, http.StatusBadRequest)
	if resp := decodeBody[api.ErrorResponse](t, w); !strings.Contains(resp.Error, "invalid request body") {
		t.Fatalf("unexpected error message %q", resp.Error)
	}
}

func TestAPIEditOnlyWhilePending(t *testing.T) {
	f := newAPIFixture(t)
	client := f.createClient(t, "Acme")
	post := f.schedule(t, client.ID, "Draft caption")

	w := f.do(t, http.MethodPatch, fmt.Sprintf("/api/posts/%d", post.ID), adminToken, api.EditRequest{Caption: "Final caption", Hashtags: "#launch"})
	expectStatus(t, w, http.StatusOK)
	if edited := decodeBody[api.Post](t, w); edited.Caption != "Final caption" {
		t.Fatalf("expected edited caption, got %q", edited.Caption)
	}

	w = f.do(t, http.MethodPost, fmt.Sprintf("/api/posts/%d/approve", post.ID), adminToken, nil)
	expectStatus(t, w, http.StatusOK)

	w = f.do(t, http.MethodPatch, fmt.Sprintf("/api/posts/%d", post.ID), adminToken, api.EditRequest{Caption: "Too late"})
	expectStatus(t, w, http.StatusConflict)
}

func TestAPIStatusReportAndMetrics(t *testing.T) {
	f := newAPIFixture(t)
	client := f.createClient(t, "Acme")
	f.schedule(t, client.ID, "Counted")

	w := f.do(t, http.MethodGet, "/api/status", adminToken, nil)
	expectStatus(t, w, http.StatusOK)
	status := decodeBody[api.DaemonStatus](t, w)
	if status.Running {
		t.Fatal("expected daemon not running before Start")
	}
	if status.Worker.Counts["pending"] != 1 {
		t.Fatalf("expected one pending post, got %v", status.Worker.Counts)
	}

	w = f.do(t, http.MethodGet, fmt.Sprintf("/api/report?client=%d&days=3", client.ID), adminToken, nil)
	expectStatus(t, w, http.StatusOK)
	rep := decodeBody[report.Report](t, w)
	if rep.Client == nil || rep.Client.Name != "Acme" || rep.Counts["pending"] != 1 {
		t.Fatalf("unexpected report %+v", rep)
	}

	w = f.do(t, http.MethodGet, "/api/report?days=-1", adminToken, nil)
	expectStatus(t, w, http.StatusBadRequest)

	w = f.do(t, http.MethodGet, "/metrics", "", nil)
	expectStatus(t, w, http.StatusOK)
	if !strings.Contains(w.Body.String(), `postflow_post_transitions_total{to="pending"} 1`) {
		t.Fatalf("expected transition counter in metrics output:\n%s", w.Body.String())
	}
}

func TestClientMiddlewareWithoutVerifier(t *testing.T) {
	called := false
	handler := clientMiddleware(nil, func(http.ResponseWriter, *http.Request) { called = true })
	w := httptest.NewRecorder()
	handler(w, httptest.NewRequest(http.MethodGet, "/api/client/posts", nil))
	if w.Code != http.StatusServiceUnavailable || called {
		t.Fatalf("expected 503 without verifier, got %d (called=%v)", w.Code, called)
	}
}

func TestStatusFor(t *testing.T) {
	cases := map[error]int{
		posts.ErrValidation:        http.StatusBadRequest,
		posts.ErrNotFound:          http.StatusNotFound,
		posts.ErrInvalidTransition: http.StatusConflict,
		api.ErrForbidden:           http.StatusForbidden,
		api.ErrUnavailable:         http.StatusServiceUnavailable,
		fmt.Errorf("boom"):         http.StatusInternalServerError,
	}
	for err, want := range cases {
		if got := statusFor(fmt.Errorf("wrapped: %w", err)); got != want {
			t.Errorf("statusFor(%v) = %d, want %d", err, got, want)
		}
	}
}
