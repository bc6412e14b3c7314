package api

import (
	"bytes"
	"context"
	"database/sql"
	"encoding/json"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/nerrad567/givehub-core/internal/auth"
	"github.com/nerrad567/givehub-core/internal/infrastructure/config"
	"github.com/nerrad567/givehub-core/internal/infrastructure/database"
	"github.com/nerrad567/givehub-core/internal/infrastructure/logging"
	"github.com/nerrad567/givehub-core/internal/session"
	"github.com/nerrad567/givehub-core/internal/telemetry"
	"github.com/nerrad567/givehub-core/migrations"
)

// capturingNotifier keeps the last password reset notice.
type capturingNotifier struct {
	mu      sync.Mutex
	notices []auth.PasswordResetNotice
}

func (n *capturingNotifier) SendPasswordReset(_ context.Context, notice auth.PasswordResetNotice) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.notices = append(n.notices, notice)
	return nil
}

func (n *capturingNotifier) count() int {
	n.mu.Lock()
	defer n.mu.Unlock()
	return len(n.notices)
}

// testApp is a Server over a temp database and memory sessions.
type testApp struct {
	db       *sql.DB
	creds    *auth.CredentialStore
	sessions *session.MemoryStore
	notifier *capturingNotifier
	metrics  *telemetry.Metrics
	srv      *Server
	handler  http.Handler
}

// fakeChecker is a HealthChecker with a fixed result.
type fakeChecker struct{ err error }

func (f fakeChecker) HealthCheck(context.Context) error { return f.err }

func newTestApp(t *testing.T, health map[string]HealthChecker) *testApp {
	t.Helper()

	db, err := database.Open(context.Background(), database.Config{
		Path:        filepath.Join(t.TempDir(), "api-test.db"),
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

	quiet := slog.New(slog.DiscardHandler)
	hasher := auth.NewHasher(auth.PasswordParams{Time: 1, Memory: 1024, Threads: 1})
	creds := auth.NewCredentialStore(auth.NewUserRepository(db.DB), hasher, 0)
	sessions := session.NewMemoryStore()
	notifier := &capturingNotifier{}
	metrics := telemetry.NewMetrics()

	gw, err := auth.NewGateway(auth.GatewayDeps{
		Credentials: creds,
		Resolver:    auth.NewResolver(auth.NewRoleRepository(db.DB)),
		Web:         auth.NewSessionAuthenticator(creds, sessions, time.Hour, quiet),
		Mobile:      auth.NewTokenAuthenticator(creds, auth.NewTokenRepository(db.DB), auth.TokenOptions{Logger: quiet}),
		Resets: auth.NewPasswordResets(auth.NewResetTokenRepository(db.DB), auth.ResetLinkConfig{
			Mode:   auth.ResetModeWeb,
			WebURL: "https://app.givehub.test/reset-password",
		}, notifier, quiet),
		Events: metrics,
		Logger: quiet,
	})
	if err != nil {
		t.Fatalf("NewGateway() error = %v", err)
	}

	srv, err := New(Deps{
		Config: config.APIConfig{
			Host:     "127.0.0.1",
			Timeouts: config.APITimeoutConfig{Read: 5, Write: 5, Idle: 5},
		},
		Session: config.SessionConfig{CookieName: "givehub_session"},
		Logger:  logging.Discard(),
		Gateway: gw,
		Metrics: metrics,
		Health:  health,
		Version: "test",
	})
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}

	return &testApp{
		db:       db.DB,
		creds:    creds,
		sessions: sessions,
		notifier: notifier,
		metrics:  metrics,
		srv:      srv,
		handler:  srv.Handler(),
	}
}

// request describes one call against the test app.
type request struct {
	method  string
	path    string
	body    any
	bearer  string
	cookies []*http.Cookie
	headers map[string]string
}

func (a *testApp) do(t *testing.T, req request) *httptest.ResponseRecorder {
	t.Helper()

	var body bytes.Buffer
	if req.body != nil {
		if err := json.NewEncoder(&body).Encode(req.body); err != nil {
			t.Fatalf("encoding body: %v", err)
		}
	}
	r := httptest.NewRequest(req.method, req.path, &body)
	r.Header.Set("Content-Type", "application/json")
	if req.bearer != "" {
		r.Header.Set("Authorization", "Bearer "+req.bearer)
	}
	for k, v := range req.headers {
		r.Header.Set(k, v)
	}
	for _, c := range req.cookies {
		r.AddCookie(c)
	}

	w := httptest.NewRecorder()
	a.handler.ServeHTTP(w, r)
	return w
}

// envelope is the decoded response body.
type envelope struct {
	Success bool                `json:"success"`
	Data    json.RawMessage     `json:"data"`
	Message string              `json:"message"`
	Errors  map[string][]string `json:"errors"`
}

func decodeEnvelope(t *testing.T, w *httptest.ResponseRecorder) envelope {
	t.Helper()
	var env envelope
	if err := json.Unmarshal(w.Body.Bytes(), &env); err != nil {
		t.Fatalf("decoding envelope %q: %v", w.Body.String(), err)
	}
	return env
}

// userData mirrors the user payload.
type userData struct {
	User struct {
		ID    string `json:"id"`
		Email string `json:"email"`
		Roles []struct {
			Name  string `json:"name"`
			Guard string `json:"guard_name"`
		} `json:"roles"`
		Permissions []string `json:"permissions"`
		Password    *string  `json:"password_hash"`
	} `json:"user"`
	Token string `json:"token"`
}

func decodeUser(t *testing.T, env envelope) userData {
	t.Helper()
	var d userData
	if err := json.Unmarshal(env.Data, &d); err != nil {
		t.Fatalf("decoding user data %s: %v", env.Data, err)
	}
	return d
}

func registerBody(email string) map[string]string {
	return map[string]string{
		"name":                  "A",
		"email":                 email,
		"password":              "secret123",
		"password_confirmation": "secret123",
		"device_name":           "iPhone",
	}
}

// mobileRegister registers a donor over the mobile channel and returns its token.
func (a *testApp) mobileRegister(t *testing.T, email string) userData {
	t.Helper()
	w := a.do(t, request{method: http.MethodPost, path: "/v1/mobile/auth/register", body: registerBody(email)})
	if w.Code != http.StatusCreated {
		t.Fatalf("register status = %d, body = %s", w.Code, w.Body.String())
	}
	return decodeUser(t, decodeEnvelope(t, w))
}

// mobileLogin signs in on a named device and returns the token.
func (a *testApp) mobileLogin(t *testing.T, email, device string) string {
	t.Helper()
	w := a.do(t, request{method: http.MethodPost, path: "/v1/mobile/auth/login", body: map[string]string{
		"email":       email,
		"password":    "secret123",
		"device_name": device,
	}})
	if w.Code != http.StatusOK {
		t.Fatalf("login status = %d, body = %s", w.Code, w.Body.String())
	}
	return decodeUser(t, decodeEnvelope(t, w)).Token
}

func (a *testApp) countTokens(t *testing.T) int {
	t.Helper()
	var n int
	if err := a.db.QueryRow("SELECT COUNT(*) FROM access_tokens").Scan(&n); err != nil {
		t.Fatalf("counting tokens: %v", err)
	}
	return n
}

func cookieNamed(cookies []*http.Cookie, name string) *http.Cookie {
	for _, c := range cookies {
		if c.Name == name {
			return c
		}
	}
	return nil
}
