package session

import (
	"context"
	"errors"
	"os"
	"testing"
	"time"

	"github.com/nerrad567/givehub-core/internal/infrastructure/config"
)

func TestNew_GeneratesDistinctSecrets(t *testing.T) {
	a, err := New("usr-1", time.Hour)
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	b, err := New("usr-1", time.Hour)
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}

	if a.ID == b.ID {
		t.Error("two sessions should not share an ID")
	}
	if a.CSRFToken == b.CSRFToken {
		t.Error("two sessions should not share a CSRF token")
	}
	if len(a.ID) != 2*idBytes {
		t.Errorf("ID length = %d, want %d", len(a.ID), 2*idBytes)
	}
	if !a.Authenticated() {
		t.Error("session with a user should be authenticated")
	}
}

func TestNew_Anonymous(t *testing.T) {
	s, err := New("", time.Hour)
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	if s.Authenticated() {
		t.Error("anonymous session should not be authenticated")
	}
	if s.CSRFToken == "" {
		t.Error("anonymous session should still carry a CSRF token")
	}
}

func TestVerifyCSRF(t *testing.T) {
	s := &Session{CSRFToken: "abc123"}

	tests := []struct {
		name  string
		token string
		want  bool
	}{
		{"match", "abc123", true},
		{"mismatch", "abc124", false},
		{"empty", "", false},
		{"prefix", "abc", false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := s.VerifyCSRF(tt.token); got != tt.want {
				t.Errorf("VerifyCSRF(%q) = %v, want %v", tt.token, got, tt.want)
			}
		})
	}

	empty := &Session{}
	if empty.VerifyCSRF("") {
		t.Error("empty token should never verify, even against an empty session token")
	}
}

func TestMemoryStore_SaveGetDelete(t *testing.T) {
	store := NewMemoryStore()
	ctx := context.Background()

	s, _ := New("usr-1", time.Hour)
	if err := store.Save(ctx, s); err != nil {
		t.Fatalf("Save() error = %v", err)
	}

	got, err := store.Get(ctx, s.ID)
	if err != nil {
		t.Fatalf("Get() error = %v", err)
	}
	if got.UserID != "usr-1" || got.CSRFToken != s.CSRFToken {
		t.Errorf("Get() = %+v, want %+v", got, s)
	}

	if err := store.Delete(ctx, s.ID); err != nil {
		t.Fatalf("Delete() error = %v", err)
	}
	if _, err := store.Get(ctx, s.ID); !errors.Is(err, ErrNotFound) {
		t.Errorf("Get() after Delete error = %v, want ErrNotFound", err)
	}

	// Deleting again is not an error
	if err := store.Delete(ctx, s.ID); err != nil {
		t.Errorf("second Delete() error = %v", err)
	}
}

func TestMemoryStore_ReturnsCopies(t *testing.T) {
	store := NewMemoryStore()
	ctx := context.Background()

	s, _ := New("usr-1", time.Hour)
	store.Save(ctx, s) //nolint:errcheck // test setup
	s.UserID = "tampered"

	got, _ := store.Get(ctx, s.ID)
	if got.UserID != "usr-1" {
		t.Errorf("stored UserID = %q, mutation of the saved pointer leaked", got.UserID)
	}
}

func TestMemoryStore_Expiry(t *testing.T) {
	store := NewMemoryStore()
	ctx := context.Background()
	now := time.Now()
	store.now = func() time.Time { return now }

	s, _ := New("usr-1", time.Minute)
	store.Save(ctx, s) //nolint:errcheck // test setup

	store.now = func() time.Time { return now.Add(2 * time.Minute) }
	if _, err := store.Get(ctx, s.ID); !errors.Is(err, ErrNotFound) {
		t.Errorf("Get() of expired session error = %v, want ErrNotFound", err)
	}
	if store.Len() != 0 {
		t.Errorf("Len() = %d, expired session should be dropped on access", store.Len())
	}
}

func TestMemoryStore_Sweep(t *testing.T) {
	store := NewMemoryStore()
	ctx := context.Background()

	live, _ := New("usr-1", time.Hour)
	dead, _ := New("usr-2", -time.Minute)
	store.Save(ctx, live) //nolint:errcheck // test setup
	store.Save(ctx, dead) //nolint:errcheck // test setup

	n, err := store.Sweep(ctx)
	if err != nil {
		t.Fatalf("Sweep() error = %v", err)
	}
	if n != 1 {
		t.Errorf("Sweep() removed %d, want 1", n)
	}
	if store.Len() != 1 {
		t.Errorf("Len() = %d, want 1", store.Len())
	}
}

// TestRedisStore_RoundTrip runs against a real Redis when GIVEHUB_TEST_REDIS_ADDR is set.
func TestRedisStore_RoundTrip(t *testing.T) {
	addr := os.Getenv("GIVEHUB_TEST_REDIS_ADDR")
	if addr == "" {
		t.Skip("GIVEHUB_TEST_REDIS_ADDR not set")
	}
	ctx := context.Background()

	store, err := OpenRedis(ctx, config.RedisConfig{Addr: addr, KeyPrefix: "givehub:test:session:"})
	if err != nil {
		t.Fatalf("OpenRedis() error = %v", err)
	}
	t.Cleanup(func() { store.Close() })

	s, _ := New("usr-1", time.Minute)
	if err := store.Save(ctx, s); err != nil {
		t.Fatalf("Save() error = %v", err)
	}
	t.Cleanup(func() { store.Delete(ctx, s.ID) }) //nolint:errcheck // cleanup

	got, err := store.Get(ctx, s.ID)
	if err != nil {
		t.Fatalf("Get() error = %v", err)
	}
	if got.UserID != s.UserID || got.CSRFToken != s.CSRFToken {
		t.Errorf("Get() = %+v, want %+v", got, s)
	}

	if err := store.Delete(ctx, s.ID); err != nil {
		t.Fatalf("Delete() error = %v", err)
	}
	if _, err := store.Get(ctx, s.ID); !errors.Is(err, ErrNotFound) {
		t.Errorf("Get() after Delete error = %v, want ErrNotFound", err)
	}

	if err := store.HealthCheck(ctx); err != nil {
		t.Errorf("HealthCheck() error = %v", err)
	}
}
