package posts_test

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"postflow/internal/posts"
	"postflow/internal/testsupport"
)

func TestCreateStartsPending(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	store := testsupport.MustOpenStore(t, cfg)
	client := testsupport.MustCreateClient(t, store, "Acme")

	ctx := context.Background()
	when := time.Date(2026, 3, 1, 9, 30, 0, 0, time.UTC)
	post, err := store.Create(ctx, posts.NewPost{
		ClientID:      client.ID,
		MediaRef:      " launch.jpg ",
		Caption:       "Launch day",
		Hashtags:      "#launch",
		ScheduledTime: &when,
	})
	if err != nil {
		t.Fatalf("Create failed: %v", err)
	}
	if post.ID == 0 {
		t.Fatal("expected post ID to be assigned")
	}
	if post.Status != posts.StatusPending {
		t.Fatalf("expected pending, got %s", post.Status)
	}
	if post.MediaRef != "launch.jpg" {
		t.Fatalf("expected trimmed media ref, got %q", post.MediaRef)
	}
	if post.ScheduledTime == nil || !post.ScheduledTime.Equal(when) {
		t.Fatalf("unexpected scheduled time: %v", post.ScheduledTime)
	}
	if post.CreatedAt.IsZero() || post.UpdatedAt.IsZero() {
		t.Fatal("expected timestamps to be set")
	}

	fetched, err := store.Get(ctx, post.ID)
	if err != nil {
		t.Fatalf("Get failed: %v", err)
	}
	if fetched.Caption != "Launch day" || fetched.ClientID != client.ID {
		t.Fatalf("unexpected fetched post: %#v", fetched)
	}
}

func TestCreateValidation(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	store := testsupport.MustOpenStore(t, cfg)
	client := testsupport.MustCreateClient(t, store, "Acme")
	ctx := context.Background()

	cases := []struct {
		name string
		in   posts.NewPost
	}{
		{"empty media", posts.NewPost{ClientID: client.ID, MediaRef: "  "}},
		{"missing client", posts.NewPost{MediaRef: "a.jpg"}},
		{"unknown client", posts.NewPost{ClientID: client.ID + 100, MediaRef: "a.jpg"}},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if _, err := store.Create(ctx, tc.in); !errors.Is(err, posts.ErrValidation) {
				t.Fatalf("expected ErrValidation, got %v", err)
			}
		})
	}
	all, err := store.List(ctx, posts.Filter{})
	if err != nil {
		t.Fatalf("List failed: %v", err)
	}
	if len(all) != 0 {
		t.Fatalf("expected no posts after rejected creates, got %d", len(all))
	}
}

func TestGetUnknownPost(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	store := testsupport.MustOpenStore(t, cfg)

	if _, err := store.Get(context.Background(), 42); !errors.Is(err, posts.ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
	if _, err := store.Transition(context.Background(), 42, posts.StatusApproved, ""); !errors.Is(err, posts.ErrNotFound) {
		t.Fatalf("expected ErrNotFound from Transition, got %v", err)
	}
}

func TestTransitionEdges(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	store := testsupport.MustOpenStore(t, cfg)
	client := testsupport.MustCreateClient(t, store, "Acme")
	ctx := context.Background()

	// Moves a fresh post into the requested status through allowed edges.
	seed := func(t *testing.T, status posts.Status) *posts.Post {
		t.Helper()
		post := testsupport.MustCreatePost(t, store, client.ID, "edge")
		path := map[posts.Status][]posts.Status{
			posts.StatusPending:   nil,
			posts.StatusApproved:  {posts.StatusApproved},
			posts.StatusRejected:  {posts.StatusRejected},
			posts.StatusPublished: {posts.StatusApproved, posts.StatusPublished},
		}[status]
		for _, step := range path {
			var err error
			if post, err = store.Transition(ctx, post.ID, step, "seed"); err != nil {
				t.Fatalf("seed transition to %s: %v", step, err)
			}
		}
		return post
	}

	for _, from := range posts.AllStatuses() {
		for _, to := range posts.AllStatuses() {
			t.Run(fmt.Sprintf("%s_to_%s", from, to), func(t *testing.T) {
				post := seed(t, from)
				updated, err := store.Transition(ctx, post.ID, to, "next")
				if posts.CanTransition(from, to) {
					if err != nil {
						t.Fatalf("expected allowed edge, got %v", err)
					}
					if updated.Status != to {
						t.Fatalf("expected status %s, got %s", to, updated.Status)
					}
					return
				}
				if !errors.Is(err, posts.ErrInvalidTransition) {
					t.Fatalf("expected ErrInvalidTransition, got %v", err)
				}
				current, err := store.Get(ctx, post.ID)
				if err != nil {
					t.Fatalf("Get failed: %v", err)
				}
				if current.Status != from || current.Feedback != post.Feedback {
					t.Fatalf("refused transition changed post: %#v", current)
				}
			})
		}
	}

	allowed := 0
	for _, from := range posts.AllStatuses() {
		for _, to := range posts.AllStatuses() {
			if posts.CanTransition(from, to) {
				allowed++
			}
		}
	}
	if allowed != 3 {
		t.Fatalf("expected exactly 3 allowed edges, got %d", allowed)
	}
}

func TestTransitionFeedbackSemantics(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	store := testsupport.MustOpenStore(t, cfg)
	client := testsupport.MustCreateClient(t, store, "Acme")
	ctx := context.Background()

	post := testsupport.MustCreatePost(t, store, client.ID, "P1")
	approved, err := store.Transition(ctx, post.ID, posts.StatusApproved, "looks good")
	if err != nil {
		t.Fatalf("approve: %v", err)
	}
	if approved.Feedback != "looks good" {
		t.Fatalf("expected feedback stored, got %q", approved.Feedback)
	}

	published, err := store.MarkPublished(ctx, post.ID, "1789")
	if err != nil {
		t.Fatalf("MarkPublished: %v", err)
	}
	if published.Status != posts.StatusPublished {
		t.Fatalf("expected published, got %s", published.Status)
	}
	if published.Feedback != "looks good" {
		t.Fatalf("expected feedback untouched by publish, got %q", published.Feedback)
	}
	if published.ExternalID != "1789" || published.PublishedAt == nil {
		t.Fatalf("expected external id and publish time, got %#v", published)
	}

	// A second publish is refused and leaves the record alone.
	if _, err := store.Transition(ctx, post.ID, posts.StatusPublished, "again"); !errors.Is(err, posts.ErrInvalidTransition) {
		t.Fatalf("expected ErrInvalidTransition, got %v", err)
	}
	again, err := store.Get(ctx, post.ID)
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if again.Status != posts.StatusPublished || again.Feedback != "looks good" || again.ExternalID != "1789" {
		t.Fatalf("second publish altered post: %#v", again)
	}
}

func TestListByStatusCreationOrder(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	store := testsupport.MustOpenStore(t, cfg)
	client := testsupport.MustCreateClient(t, store, "Acme")
	ctx := context.Background()

	var want []int64
	for i := 0; i < 5; i++ {
		post := testsupport.MustCreatePost(t, store, client.ID, fmt.Sprintf("post %d", i))
		if i%2 == 0 {
			if _, err := store.Transition(ctx, post.ID, posts.StatusApproved, ""); err != nil {
				t.Fatalf("approve: %v", err)
			}
			want = append(want, post.ID)
		}
	}

	for round := 0; round < 2; round++ {
		approved, err := store.ListByStatus(ctx, posts.StatusApproved)
		if err != nil {
			t.Fatalf("ListByStatus: %v", err)
		}
		if len(approved) != len(want) {
			t.Fatalf("expected %d approved posts, got %d", len(want), len(approved))
		}
		for i, post := range approved {
			if post.ID != want[i] {
				t.Fatalf("round %d: position %d expected id %d, got %d", round, i, want[i], post.ID)
			}
		}
	}

	if _, err := store.ListByStatus(ctx, posts.Status("archived")); !errors.Is(err, posts.ErrValidation) {
		t.Fatalf("expected ErrValidation for unknown status, got %v", err)
	}
}

func TestListFilter(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	store := testsupport.MustOpenStore(t, cfg)
	acme := testsupport.MustCreateClient(t, store, "Acme")
	globex := testsupport.MustCreateClient(t, store, "Globex")
	ctx := context.Background()

	testsupport.MustCreatePost(t, store, acme.ID, "a1")
	testsupport.MustApprovePost(t, store, acme.ID, "a2")
	testsupport.MustCreatePost(t, store, globex.ID, "g1")
	last := testsupport.MustCreatePost(t, store, acme.ID, "a3")

	list, err := store.List(ctx, posts.Filter{ClientID: acme.ID, Statuses: []posts.Status{posts.StatusPending}})
	if err != nil {
		t.Fatalf("List: %v", err)
	}
	if len(list) != 2 || list[0].Caption != "a1" || list[1].Caption != "a3" {
		t.Fatalf("unexpected filtered list: %#v", list)
	}

	newest, err := store.List(ctx, posts.Filter{Newest: true, Limit: 1})
	if err != nil {
		t.Fatalf("List newest: %v", err)
	}
	if len(newest) != 1 || newest[0].ID != last.ID {
		t.Fatalf("expected newest post %d, got %#v", last.ID, newest)
	}

	stats, err := store.Stats(ctx, acme.ID)
	if err != nil {
		t.Fatalf("Stats: %v", err)
	}
	if stats[posts.StatusPending] != 2 || stats[posts.StatusApproved] != 1 || stats[posts.StatusPublished] != 0 {
		t.Fatalf("unexpected stats: %#v", stats)
	}
	global, err := store.Stats(ctx, 0)
	if err != nil {
		t.Fatalf("Stats global: %v", err)
	}
	if global[posts.StatusPending] != 3 {
		t.Fatalf("expected 3 pending overall, got %d", global[posts.StatusPending])
	}
}

func TestUpdateContentOnlyWhilePending(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	store := testsupport.MustOpenStore(t, cfg)
	client := testsupport.MustCreateClient(t, store, "Acme")
	ctx := context.Background()

	post := testsupport.MustCreatePost(t, store, client.ID, "draft")
	updated, err := store.UpdateContent(ctx, post.ID, "final", "#final")
	if err != nil {
		t.Fatalf("UpdateContent: %v", err)
	}
	if updated.Caption != "final" || updated.Hashtags != "#final" {
		t.Fatalf("unexpected content: %#v", updated)
	}

	if _, err := store.Transition(ctx, post.ID, posts.StatusApproved, ""); err != nil {
		t.Fatalf("approve: %v", err)
	}
	if _, err := store.UpdateContent(ctx, post.ID, "late edit", ""); !errors.Is(err, posts.ErrInvalidTransition) {
		t.Fatalf("expected ErrInvalidTransition, got %v", err)
	}
	if _, err := store.UpdateContent(ctx, post.ID+99, "x", ""); !errors.Is(err, posts.ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestConcurrentTransitionsYieldOneWinner(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	store := testsupport.MustOpenStore(t, cfg)
	client := testsupport.MustCreateClient(t, store, "Acme")
	ctx := context.Background()

	post := testsupport.MustCreatePost(t, store, client.ID, "contested")

	var wg sync.WaitGroup
	results := make(chan error, 2)
	for _, to := range []posts.Status{posts.StatusApproved, posts.StatusRejected} {
		wg.Add(1)
		go func(to posts.Status) {
			defer wg.Done()
			_, err := store.Transition(ctx, post.ID, to, string(to))
			results <- err
		}(to)
	}
	wg.Wait()
	close(results)

	var okCount, refused int
	for err := range results {
		switch {
		case err == nil:
			okCount++
		case errors.Is(err, posts.ErrInvalidTransition):
			refused++
		default:
			t.Fatalf("unexpected error: %v", err)
		}
	}
	if okCount != 1 || refused != 1 {
		t.Fatalf("expected one winner and one refusal, got ok=%d refused=%d", okCount, refused)
	}

	final, err := store.Get(ctx, post.ID)
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if string(final.Status) != final.Feedback {
		t.Fatalf("torn record: status %s with feedback %q", final.Status, final.Feedback)
	}
}

func TestClients(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	store := testsupport.MustOpenStore(t, cfg)
	ctx := context.Background()

	first, err := store.CreateClient(ctx, "Sam's Bakery", "Owner@Bakery.example")
	if err != nil {
		t.Fatalf("CreateClient: %v", err)
	}
	if first.Email != "owner@bakery.example" {
		t.Fatalf("expected lowercased email, got %q", first.Email)
	}
	// Two clients may share a display name; lookups are by id.
	second, err := store.CreateClient(ctx, "Sam's Bakery", "branch@bakery.example")
	if err != nil {
		t.Fatalf("CreateClient duplicate name: %v", err)
	}
	if second.ID == first.ID {
		t.Fatal("expected distinct ids")
	}

	if _, err := store.CreateClient(ctx, "Other", "OWNER@bakery.example"); !errors.Is(err, posts.ErrValidation) {
		t.Fatalf("expected ErrValidation for duplicate email, got %v", err)
	}
	if _, err := store.CreateClient(ctx, "", "x@example.com"); !errors.Is(err, posts.ErrValidation) {
		t.Fatalf("expected ErrValidation for empty name, got %v", err)
	}
	if _, err := store.CreateClient(ctx, "Bad", "not-an-email"); !errors.Is(err, posts.ErrValidation) {
		t.Fatalf("expected ErrValidation for bad email, got %v", err)
	}

	byEmail, err := store.ClientByEmail(ctx, " branch@BAKERY.example")
	if err != nil {
		t.Fatalf("ClientByEmail: %v", err)
	}
	if byEmail.ID != second.ID {
		t.Fatalf("expected client %d, got %d", second.ID, byEmail.ID)
	}
	if _, err := store.GetClient(ctx, 999); !errors.Is(err, posts.ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
	clients, err := store.ListClients(ctx)
	if err != nil {
		t.Fatalf("ListClients: %v", err)
	}
	if len(clients) != 2 {
		t.Fatalf("expected 2 clients, got %d", len(clients))
	}
}

func TestPublishAttempts(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	store := testsupport.MustOpenStore(t, cfg)
	client := testsupport.MustCreateClient(t, store, "Acme")
	ctx := context.Background()

	post := testsupport.MustApprovePost(t, store, client.ID, "attempted")
	old := time.Now().Add(-48 * time.Hour)
	if _, err := store.RecordAttempt(ctx, posts.PublishAttempt{PostID: post.ID, AttemptedAt: old, Error: "stale"}); err != nil {
		t.Fatalf("RecordAttempt old: %v", err)
	}
	failed, err := store.RecordAttempt(ctx, posts.PublishAttempt{PostID: post.ID, Error: "platform 500", Duration: 1500 * time.Millisecond})
	if err != nil {
		t.Fatalf("RecordAttempt failed: %v", err)
	}
	if failed.ID == 0 {
		t.Fatal("expected attempt id")
	}
	if _, err := store.RecordAttempt(ctx, posts.PublishAttempt{PostID: post.ID, Succeeded: true, ExternalID: "1789"}); err != nil {
		t.Fatalf("RecordAttempt success: %v", err)
	}

	history, err := store.Attempts(ctx, post.ID)
	if err != nil {
		t.Fatalf("Attempts: %v", err)
	}
	if len(history) != 3 {
		t.Fatalf("expected 3 attempts, got %d", len(history))
	}
	if history[1].Duration != 1500*time.Millisecond || history[1].ClientID != client.ID {
		t.Fatalf("unexpected attempt: %#v", history[1])
	}
	if !history[2].Succeeded || history[2].ExternalID != "1789" {
		t.Fatalf("expected successful attempt last, got %#v", history[2])
	}

	recent, err := store.FailedAttemptsSince(ctx, time.Now().Add(-time.Hour))
	if err != nil {
		t.Fatalf("FailedAttemptsSince: %v", err)
	}
	if len(recent) != 1 || recent[0].Error != "platform 500" {
		t.Fatalf("expected one recent failure, got %#v", recent)
	}

	if _, err := store.RecordAttempt(ctx, posts.PublishAttempt{}); !errors.Is(err, posts.ErrValidation) {
		t.Fatalf("expected ErrValidation, got %v", err)
	}
}

func TestCheckHealthAndSchemaVersion(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	store := testsupport.MustOpenStore(t, cfg)
	client := testsupport.MustCreateClient(t, store, "Acme")
	testsupport.MustCreatePost(t, store, client.ID, "one")

	health, err := store.CheckHealth(context.Background())
	if err != nil {
		t.Fatalf("CheckHealth: %v", err)
	}
	if !health.DatabaseExists || !health.DatabaseReadable || !health.IntegrityCheck {
		t.Fatalf("unexpected health: %#v", health)
	}
	if len(health.MissingTables) != 0 || health.TotalPosts != 1 || health.TotalClients != 1 {
		t.Fatalf("unexpected counts: %#v", health)
	}
	if health.SchemaVersion != 1 {
		t.Fatalf("expected schema version 1, got %d", health.SchemaVersion)
	}

	// Reopening an initialized database keeps existing rows.
	if err := store.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}
	reopened, err := posts.Open(cfg)
	if err != nil {
		t.Fatalf("reopen: %v", err)
	}
	defer reopened.Close()
	list, err := reopened.List(context.Background(), posts.Filter{})
	if err != nil {
		t.Fatalf("List after reopen: %v", err)
	}
	if len(list) != 1 {
		t.Fatalf("expected 1 post after reopen, got %d", len(list))
	}
}
