package api_test

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	"postflow/internal/api"
	"postflow/internal/auth"
	"postflow/internal/events"
	"postflow/internal/media"
	"postflow/internal/notifications"
	"postflow/internal/posts"
	"postflow/internal/testsupport"
)

type recordingNotifier struct {
	mu       sync.Mutex
	events   []notifications.Event
	payloads []notifications.Payload
}

func (r *recordingNotifier) Publish(_ context.Context, event notifications.Event, payload notifications.Payload) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, event)
	r.payloads = append(r.payloads, payload)
	return nil
}

type recordingSink struct {
	mu     sync.Mutex
	events []events.Event
	err    error
}

func (r *recordingSink) Emit(_ context.Context, event events.Event) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, event)
	return r.err
}

func (r *recordingSink) Close() error { return nil }

type fixture struct {
	svc      *api.PostService
	store    *posts.Store
	notifier *recordingNotifier
	sink     *recordingSink
	client   *posts.Client
	mediaDir string
}

func newFixture(t *testing.T) fixture {
	t.Helper()
	cfg := testsupport.NewConfig(t)
	store := testsupport.MustOpenStore(t, cfg)
	lib, err := media.NewLibrary(cfg)
	if err != nil {
		t.Fatalf("NewLibrary: %v", err)
	}
	issuer, err := auth.NewIssuer(cfg)
	if err != nil {
		t.Fatalf("NewIssuer: %v", err)
	}
	testsupport.WriteMedia(t, cfg.Paths.MediaDir, "launch.jpg")
	notifier := &recordingNotifier{}
	sink := &recordingSink{}
	svc := api.NewPostService(store, lib,
		api.WithNotifier(notifier),
		api.WithEvents(sink),
		api.WithTokenIssuer(issuer),
	)
	return fixture{
		svc:      svc,
		store:    store,
		notifier: notifier,
		sink:     sink,
		client:   testsupport.MustCreateClient(t, store, "Acme"),
		mediaDir: cfg.Paths.MediaDir,
	}
}

func TestScheduleNormalizesContent(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	result, err := f.svc.Schedule(ctx, api.ScheduleRequest{
		ClientID: f.client.ID,
		MediaRef: " launch.jpg ",
		Caption:  "Spring launch   \n\n\n\nComing soon",
		Hashtags: "spring, #Launch #launch",
	})
	if err != nil {
		t.Fatalf("Schedule: %v", err)
	}
	if result.Post.Status != "pending" {
		t.Fatalf("expected pending, got %s", result.Post.Status)
	}
	if result.Post.Caption != "Spring launch\n\nComing soon" {
		t.Fatalf("unexpected caption %q", result.Post.Caption)
	}
	if result.Post.Hashtags != "#spring #Launch" {
		t.Fatalf("unexpected hashtags %q", result.Post.Hashtags)
	}
	if result.Post.MediaRef != "launch.jpg" {
		t.Fatalf("unexpected media ref %q", result.Post.MediaRef)
	}
	if len(result.Warnings) != 0 {
		t.Fatalf("unexpected warnings %v", result.Warnings)
	}
	if len(f.sink.events) != 1 || f.sink.events[0].Type != events.TypePostCreated {
		t.Fatalf("expected post.created event, got %+v", f.sink.events)
	}
}

func TestScheduleValidation(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	tooMany := make([]string, 31)
	for i := range tooMany {
		tooMany[i] = "#tag" + string(rune('a'+i%26)) + string(rune('a'+i/26))
	}

	cases := []struct {
		name string
		req  api.ScheduleRequest
	}{
		{"missing client", api.ScheduleRequest{MediaRef: "launch.jpg"}},
		{"unknown client", api.ScheduleRequest{ClientID: 999, MediaRef: "launch.jpg"}},
		{"missing media", api.ScheduleRequest{ClientID: f.client.ID}},
		{"media not on disk", api.ScheduleRequest{ClientID: f.client.ID, MediaRef: "absent.jpg"}},
		{"unsupported type", api.ScheduleRequest{ClientID: f.client.ID, MediaRef: "notes.txt"}},
		{"escaping path", api.ScheduleRequest{ClientID: f.client.ID, MediaRef: "../launch.jpg"}},
		{"too many hashtags", api.ScheduleRequest{ClientID: f.client.ID, MediaRef: "launch.jpg", Hashtags: strings.Join(tooMany, " ")}},
		{"caption too long", api.ScheduleRequest{ClientID: f.client.ID, MediaRef: "launch.jpg", Caption: strings.Repeat("a", 2190), Hashtags: "#abcdefghijk"}},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := f.svc.Schedule(ctx, tc.req)
			if !errors.Is(err, posts.ErrValidation) {
				t.Fatalf("expected ErrValidation, got %v", err)
			}
		})
	}
	list, err := f.store.List(ctx, posts.Filter{})
	if err != nil {
		t.Fatalf("List: %v", err)
	}
	if len(list) != 0 {
		t.Fatalf("expected no posts created, got %d", len(list))
	}
}

func TestScheduleWarnsOnDuplicatesAndPastSchedule(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	caption := "Our brand new espresso blend arrives in stores this Friday morning"
	if _, err := f.svc.Schedule(ctx, api.ScheduleRequest{ClientID: f.client.ID, MediaRef: "launch.jpg", Caption: caption}); err != nil {
		t.Fatalf("first Schedule: %v", err)
	}
	past := time.Now().Add(-time.Hour)
	result, err := f.svc.Schedule(ctx, api.ScheduleRequest{
		ClientID:      f.client.ID,
		MediaRef:      "launch.jpg",
		Caption:       caption + "!",
		ScheduledTime: &past,
	})
	if err != nil {
		t.Fatalf("second Schedule: %v", err)
	}
	if len(result.Warnings) != 2 {
		t.Fatalf("expected past-schedule and duplicate warnings, got %v", result.Warnings)
	}
	if !strings.Contains(result.Warnings[1], "similar to post #1") {
		t.Fatalf("unexpected duplicate warning %q", result.Warnings[1])
	}
}

func TestReviewOwnershipAndSideEffects(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	other := testsupport.MustCreateClient(t, f.store, "Globex")
	post := testsupport.MustCreatePost(t, f.store, f.client.ID, "Spring launch")

	if _, err := f.svc.Approve(ctx, api.Actor{ClientID: other.ID}, post.ID, api.ReviewRequest{}); !errors.Is(err, api.ErrForbidden) {
		t.Fatalf("expected ErrForbidden for foreign client, got %v", err)
	}

	rejected, err := f.svc.Reject(ctx, api.Actor{ClientID: f.client.ID}, post.ID, api.ReviewRequest{Feedback: "  wrong logo "})
	if err != nil {
		t.Fatalf("Reject: %v", err)
	}
	if rejected.Status != "rejected" || rejected.Feedback != "wrong logo" {
		t.Fatalf("unexpected rejected post %+v", rejected)
	}

	if _, err := f.svc.Approve(ctx, api.Actor{}, post.ID, api.ReviewRequest{}); !errors.Is(err, posts.ErrInvalidTransition) {
		t.Fatalf("expected ErrInvalidTransition after reject, got %v", err)
	}

	if len(f.notifier.events) != 1 || f.notifier.events[0] != notifications.EventPostReviewed {
		t.Fatalf("expected one review notification, got %v", f.notifier.events)
	}
	if f.notifier.payloads[0]["client"] != "Acme" || f.notifier.payloads[0]["decision"] != "rejected" {
		t.Fatalf("unexpected payload %v", f.notifier.payloads[0])
	}
	if len(f.sink.events) != 1 || f.sink.events[0].Type != events.TypePostRejected {
		t.Fatalf("expected post.rejected event, got %+v", f.sink.events)
	}
}

func TestReviewSurvivesEventFailure(t *testing.T) {
	f := newFixture(t)
	f.sink.err = errors.New("broker down")
	post := testsupport.MustCreatePost(t, f.store, f.client.ID, "Spring launch")

	approved, err := f.svc.Approve(context.Background(), api.Actor{}, post.ID, api.ReviewRequest{Feedback: "ok"})
	if err != nil {
		t.Fatalf("Approve: %v", err)
	}
	if approved.Status != "approved" {
		t.Fatalf("expected approved, got %s", approved.Status)
	}
}

func TestEditOnlyWhilePending(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	post := testsupport.MustCreatePost(t, f.store, f.client.ID, "draft")

	edited, err := f.svc.Edit(ctx, post.ID, api.EditRequest{Caption: "final copy", Hashtags: "coffee"})
	if err != nil {
		t.Fatalf("Edit: %v", err)
	}
	if edited.Caption != "final copy" || edited.Hashtags != "#coffee" {
		t.Fatalf("unexpected edit result %+v", edited)
	}

	if _, err := f.svc.Approve(ctx, api.Actor{}, post.ID, api.ReviewRequest{}); err != nil {
		t.Fatalf("Approve: %v", err)
	}
	if _, err := f.svc.Edit(ctx, post.ID, api.EditRequest{Caption: "late change"}); !errors.Is(err, posts.ErrInvalidTransition) {
		t.Fatalf("expected ErrInvalidTransition editing approved post, got %v", err)
	}
}

func TestListAndPendingFor(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	other := testsupport.MustCreateClient(t, f.store, "Globex")
	first := testsupport.MustCreatePost(t, f.store, f.client.ID, "one")
	testsupport.MustApprovePost(t, f.store, f.client.ID, "two")
	testsupport.MustCreatePost(t, f.store, other.ID, "three")

	pending, err := f.svc.PendingFor(ctx, f.client.ID)
	if err != nil {
		t.Fatalf("PendingFor: %v", err)
	}
	if len(pending) != 1 || pending[0].ID != first.ID {
		t.Fatalf("unexpected pending list %+v", pending)
	}

	all, err := f.svc.List(ctx, api.ListQuery{Statuses: []string{"pending,approved"}})
	if err != nil {
		t.Fatalf("List: %v", err)
	}
	if len(all) != 3 {
		t.Fatalf("expected 3 posts, got %d", len(all))
	}

	if _, err := f.svc.List(ctx, api.ListQuery{Statuses: []string{"draft"}}); !errors.Is(err, posts.ErrValidation) {
		t.Fatalf("expected ErrValidation for unknown status, got %v", err)
	}

	stats, err := f.svc.Stats(ctx, f.client.ID)
	if err != nil {
		t.Fatalf("Stats: %v", err)
	}
	if stats["pending"] != 1 || stats["approved"] != 1 || stats["published"] != 0 {
		t.Fatalf("unexpected stats %v", stats)
	}

	if _, err := f.svc.GetForClient(ctx, other.ID, first.ID); !errors.Is(err, api.ErrForbidden) {
		t.Fatalf("expected ErrForbidden, got %v", err)
	}
}

func TestClientsAndTokens(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	created, err := f.svc.CreateClient(ctx, api.CreateClientRequest{Name: "Initech", Email: "ops@initech.example"})
	if err != nil {
		t.Fatalf("CreateClient: %v", err)
	}
	if _, err := f.svc.CreateClient(ctx, api.CreateClientRequest{Name: "Bad", Email: "not-an-email"}); !errors.Is(err, posts.ErrValidation) {
		t.Fatalf("expected ErrValidation for bad email, got %v", err)
	}

	token, err := f.svc.IssueToken(ctx, created.ID)
	if err != nil {
		t.Fatalf("IssueToken: %v", err)
	}
	if token.Token == "" || token.ClientID != created.ID {
		t.Fatalf("unexpected token response %+v", token)
	}
	if _, err := f.svc.IssueToken(ctx, 9999); !errors.Is(err, posts.ErrNotFound) {
		t.Fatalf("expected ErrNotFound for unknown client, got %v", err)
	}

	plain := api.NewPostService(f.store, nil)
	if _, err := plain.IssueToken(ctx, created.ID); !errors.Is(err, api.ErrUnavailable) {
		t.Fatalf("expected ErrUnavailable without issuer, got %v", err)
	}
}
