package auth

import (
	"errors"
	"testing"
	"time"

	"postflow/internal/config"
)

func newTestIssuer(t *testing.T) *Issuer {
	t.Helper()
	cfg := config.Default()
	cfg.Auth.JWTSecret = "test-secret-0123456789abcdef"
	issuer, err := NewIssuer(&cfg)
	if err != nil {
		t.Fatalf("NewIssuer: %v", err)
	}
	return issuer
}

func TestIssueAndVerify(t *testing.T) {
	issuer := newTestIssuer(t)
	token, expires, err := issuer.Issue(12)
	if err != nil {
		t.Fatalf("Issue: %v", err)
	}
	if time.Until(expires) < 24*time.Hour {
		t.Fatalf("unexpected expiry %v", expires)
	}
	id, err := issuer.Verify("Bearer " + token)
	if err != nil {
		t.Fatalf("Verify: %v", err)
	}
	if id != 12 {
		t.Fatalf("expected client 12, got %d", id)
	}
}

func TestVerifyRejects(t *testing.T) {
	issuer := newTestIssuer(t)
	token, _, err := issuer.Issue(3)
	if err != nil {
		t.Fatalf("Issue: %v", err)
	}

	other := newTestIssuer(t)
	other.secret = []byte("another-secret-0123456789abcdef")

	expired := newTestIssuer(t)
	expired.now = func() time.Time { return time.Now().Add(-1000 * time.Hour) }
	oldToken, _, err := expired.Issue(3)
	if err != nil {
		t.Fatalf("Issue expired: %v", err)
	}

	foreign := newTestIssuer(t)
	foreign.issuer = "someone-else"
	foreignToken, _, err := foreign.Issue(3)
	if err != nil {
		t.Fatalf("Issue foreign: %v", err)
	}

	cases := []struct {
		name   string
		issuer *Issuer
		token  string
	}{
		{"empty", issuer, ""},
		{"garbage", issuer, "not-a-jwt"},
		{"wrong secret", other, token},
		{"expired", issuer, oldToken},
		{"wrong issuer", issuer, foreignToken},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if _, err := tc.issuer.Verify(tc.token); !errors.Is(err, ErrInvalidToken) {
				t.Fatalf("expected ErrInvalidToken, got %v", err)
			}
		})
	}
}

func TestNewIssuerRequiresSecret(t *testing.T) {
	cfg := config.Default()
	cfg.Auth.JWTSecret = ""
	if _, err := NewIssuer(&cfg); !errors.Is(err, ErrDisabled) {
		t.Fatalf("expected ErrDisabled, got %v", err)
	}
}
