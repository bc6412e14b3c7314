package auth

import (
	"context"
	"database/sql"
	"log/slog"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/nerrad567/givehub-core/internal/infrastructure/database"
	"github.com/nerrad567/givehub-core/internal/session"
	"github.com/nerrad567/givehub-core/migrations"
)

const testPassword = "test-password"

// testDB creates a temporary SQLite database with the real schema applied.
// The database file is cleaned up when the test completes.
func testDB(t testing.TB) *sql.DB {
	t.Helper()

	// Use a file so WAL mode works (in-memory doesn't support it)
	dbPath := filepath.Join(t.TempDir(), "auth-test.db")

	db, err := database.Open(context.Background(), database.Config{
		Path:        dbPath,
		WALMode:     true,
		BusyTimeout: 5,
	})
	if err != nil {
		t.Fatalf("opening test db: %v", err)
	}
	t.Cleanup(func() { db.Close() })

	if err := db.Migrate(context.Background(), migrations.FS); err != nil {
		t.Fatalf("applying migrations: %v", err)
	}
	return db.DB
}

// testHasher is deliberately cheap so tests stay fast.
func testHasher() *Hasher {
	return NewHasher(PasswordParams{Time: 1, Memory: 1024, Threads: 1})
}

func testLogger() *slog.Logger {
	return slog.New(slog.DiscardHandler)
}

// seedTestUser inserts an active user holding role and returns it.
func seedTestUser(t testing.TB, db *sql.DB, email string, role Role) *User {
	t.Helper()

	creds := NewCredentialStore(NewUserRepository(db), testHasher(), 0)
	user, err := creds.Create(t.Context(), RegisterInput{
		Name:                 "Test " + email,
		Email:                email,
		Password:             testPassword,
		PasswordConfirmation: testPassword,
	})
	if err != nil {
		t.Fatalf("creating test user %s: %v", email, err)
	}
	if err := NewRoleRepository(db).Assign(t.Context(), user.ID, role); err != nil {
		t.Fatalf("assigning %s to %s: %v", role, email, err)
	}
	return user
}

// recordingNotifier captures password reset notices.
type recordingNotifier struct {
	mu      sync.Mutex
	notices []PasswordResetNotice
}

func (n *recordingNotifier) SendPasswordReset(_ context.Context, notice PasswordResetNotice) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.notices = append(n.notices, notice)
	return nil
}

func (n *recordingNotifier) all() []PasswordResetNotice {
	n.mu.Lock()
	defer n.mu.Unlock()
	return append([]PasswordResetNotice(nil), n.notices...)
}

// recordingSink captures auth events.
type recordingSink struct {
	mu     sync.Mutex
	events []Event
}

func (s *recordingSink) Record(_ context.Context, ev Event) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.events = append(s.events, ev)
}

func (s *recordingSink) types() []EventType {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]EventType, 0, len(s.events))
	for _, ev := range s.events {
		out = append(out, ev.Type)
	}
	return out
}

// testEnv wires a complete Gateway over a temp database and memory sessions.
type testEnv struct {
	db       *sql.DB
	creds    *CredentialStore
	resolver *Resolver
	web      *SessionAuthenticator
	mobile   *TokenAuthenticator
	resets   *PasswordResets
	tokens   *SQLiteTokenRepository
	sessions *session.MemoryStore
	notifier *recordingNotifier
	events   *recordingSink
	gw       *Gateway
}

const testServiceSecret = "test-service-secret-32-bytes-xxxx"

func newTestEnv(t testing.TB) *testEnv {
	t.Helper()

	db := testDB(t)
	env := &testEnv{
		db:       db,
		creds:    NewCredentialStore(NewUserRepository(db), testHasher(), 0),
		resolver: NewResolver(NewRoleRepository(db)),
		tokens:   NewTokenRepository(db),
		sessions: session.NewMemoryStore(),
		notifier: &recordingNotifier{},
		events:   &recordingSink{},
	}
	env.web = NewSessionAuthenticator(env.creds, env.sessions, time.Hour, testLogger())
	env.mobile = NewTokenAuthenticator(env.creds, env.tokens, TokenOptions{
		Service: NewServiceTokens(testServiceSecret, "givehub"),
		Logger:  testLogger(),
	})
	env.resets = NewPasswordResets(NewResetTokenRepository(db), ResetLinkConfig{
		Mode:   ResetModeWeb,
		WebURL: "https://app.givehub.test/reset-password",
		TTL:    time.Hour,
	}, env.notifier, testLogger())

	gw, err := NewGateway(GatewayDeps{
		Credentials: env.creds,
		Resolver:    env.resolver,
		Web:         env.web,
		Mobile:      env.mobile,
		Resets:      env.resets,
		Events:      env.events,
		Logger:      testLogger(),
	})
	if err != nil {
		t.Fatalf("NewGateway() error = %v", err)
	}
	env.gw = gw
	return env
}

func registerInput(name, email string) RegisterInput {
	return RegisterInput{
		Name:                 name,
		Email:                email,
		Password:             "secret123",
		PasswordConfirmation: "secret123",
	}
}

func countTokens(t *testing.T, db *sql.DB, userID string) int {
	t.Helper()
	var n int
	if err := db.QueryRow("SELECT COUNT(*) FROM access_tokens WHERE user_id = ?", userID).Scan(&n); err != nil {
		t.Fatalf("counting tokens: %v", err)
	}
	return n
}
