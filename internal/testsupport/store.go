package testsupport

import (
	"context"
	"fmt"
	"testing"

	"postflow/internal/config"
	"postflow/internal/posts"
	"postflow/internal/textutil"
)

// MustOpenStore opens a posts.Store for tests and registers cleanup.
func MustOpenStore(t testing.TB, cfg *config.Config) *posts.Store {
	t.Helper()

	store, err := posts.Open(cfg)
	if err != nil {
		t.Fatalf("posts.Open: %v", err)
	}
	t.Cleanup(func() {
		store.Close()
	})
	return store
}

// MustCreateClient registers a client with a unique email derived from name.
func MustCreateClient(t testing.TB, store *posts.Store, name string) *posts.Client {
	t.Helper()

	client, err := store.CreateClient(context.Background(), name, fmt.Sprintf("%s@example.com", textutil.Slug(name)))
	if err != nil {
		t.Fatalf("store.CreateClient: %v", err)
	}
	return client
}

// MustCreatePost schedules a pending post for client with the given caption.
func MustCreatePost(t testing.TB, store *posts.Store, clientID int64, caption string) *posts.Post {
	t.Helper()

	post, err := store.Create(context.Background(), posts.NewPost{
		ClientID: clientID,
		MediaRef: "photo.jpg",
		Caption:  caption,
	})
	if err != nil {
		t.Fatalf("store.Create: %v", err)
	}
	return post
}

// MustApprovePost creates a post and moves it to approved.
func MustApprovePost(t testing.TB, store *posts.Store, clientID int64, caption string) *posts.Post {
	t.Helper()

	post := MustCreatePost(t, store, clientID, caption)
	approved, err := store.Transition(context.Background(), post.ID, posts.StatusApproved, "ok")
	if err != nil {
		t.Fatalf("store.Transition: %v", err)
	}
	return approved
}
