package api

import (
	"context"
	"encoding/json"
	"net/http"
	"testing"

	"github.com/nerrad567/givehub-core/internal/auth"
)

func TestMobileRegister_DefaultsToDonor(t *testing.T) {
	app := newTestApp(t, nil)

	w := app.do(t, request{method: http.MethodPost, path: "/v1/mobile/auth/register", body: registerBody("a@x.com")})
	if w.Code != http.StatusCreated {
		t.Fatalf("status = %d, want %d; body = %s", w.Code, http.StatusCreated, w.Body.String())
	}

	env := decodeEnvelope(t, w)
	if !env.Success {
		t.Error("success = false, want true")
	}
	data := decodeUser(t, env)
	if len(data.User.Roles) != 1 || data.User.Roles[0].Name != "donor" {
		t.Errorf("roles = %+v, want [{name: donor}]", data.User.Roles)
	}
	if data.User.Roles[0].Guard != auth.GuardWeb {
		t.Errorf("guard_name = %q, want %q", data.User.Roles[0].Guard, auth.GuardWeb)
	}
	if len(data.User.Permissions) == 0 {
		t.Error("user payload must include permissions")
	}
	if data.Token == "" {
		t.Error("token must be a non-empty string")
	}
	if data.User.Password != nil {
		t.Error("password hash must never be serialised")
	}
	if n := app.countTokens(t); n != 1 {
		t.Errorf("access tokens = %d, want exactly 1", n)
	}
}

func TestMobileRegister_ValidationEnvelope(t *testing.T) {
	app := newTestApp(t, nil)

	w := app.do(t, request{method: http.MethodPost, path: "/v1/mobile/auth/register", body: map[string]string{
		"email":    "not-an-email",
		"password": "short",
	}})
	if w.Code != http.StatusUnprocessableEntity {
		t.Fatalf("status = %d, want 422", w.Code)
	}

	env := decodeEnvelope(t, w)
	if env.Success || env.Message != auth.ValidationMessage {
		t.Errorf("envelope = %+v", env)
	}
	for _, field := range []string{"name", "email", "password", "device_name"} {
		if len(env.Errors[field]) == 0 {
			t.Errorf("errors[%q] missing in %v", field, env.Errors)
		}
	}
}

func TestMobileRegister_DuplicateEmail(t *testing.T) {
	app := newTestApp(t, nil)
	app.mobileRegister(t, "dup@example.com")

	w := app.do(t, request{method: http.MethodPost, path: "/v1/mobile/auth/register", body: registerBody("dup@example.com")})
	if w.Code != http.StatusUnprocessableEntity {
		t.Fatalf("status = %d, want 422", w.Code)
	}
	if env := decodeEnvelope(t, w); len(env.Errors["email"]) == 0 {
		t.Errorf("errors = %v, want an email error", env.Errors)
	}
}

func TestMobileRegister_InvalidJSON(t *testing.T) {
	app := newTestApp(t, nil)

	w := app.do(t, request{method: http.MethodPost, path: "/v1/mobile/auth/register", body: "not an object"})
	if w.Code != http.StatusBadRequest {
		t.Errorf("status = %d, want 400", w.Code)
	}
}

func TestMobileLogin_InvalidCredentialsIndistinguishable(t *testing.T) {
	app := newTestApp(t, nil)
	app.mobileRegister(t, "known@example.com")

	wrongPassword := app.do(t, request{method: http.MethodPost, path: "/v1/mobile/auth/login", body: map[string]string{
		"email": "known@example.com", "password": "wrong-pass", "device_name": "Pixel",
	}})
	unknownEmail := app.do(t, request{method: http.MethodPost, path: "/v1/mobile/auth/login", body: map[string]string{
		"email": "ghost@example.com", "password": "wrong-pass", "device_name": "Pixel",
	}})

	if wrongPassword.Code != http.StatusUnauthorized || unknownEmail.Code != http.StatusUnauthorized {
		t.Fatalf("statuses = %d, %d; want 401, 401", wrongPassword.Code, unknownEmail.Code)
	}
	if wrongPassword.Body.String() != unknownEmail.Body.String() {
		t.Errorf("bodies differ:\n%s\n%s", wrongPassword.Body.String(), unknownEmail.Body.String())
	}
}

func TestMobileLogin_PendingAccountIsGated(t *testing.T) {
	app := newTestApp(t, nil)
	data := app.mobileRegister(t, "pending@example.com")
	if err := app.creds.SetStatus(context.Background(), data.User.ID, auth.StatusPending); err != nil {
		t.Fatalf("SetStatus() error = %v", err)
	}
	before := app.countTokens(t)

	w := app.do(t, request{method: http.MethodPost, path: "/v1/mobile/auth/login", body: map[string]string{
		"email": "pending@example.com", "password": "secret123", "device_name": "iPad",
	}})

	if w.Code != http.StatusForbidden {
		t.Fatalf("status = %d, want 403", w.Code)
	}
	env := decodeEnvelope(t, w)
	if env.Success || env.Message != "Your account is suspended or pending approval" {
		t.Errorf("envelope = %+v", env)
	}
	if len(env.Data) != 0 {
		t.Errorf("gated login must not return data, got %s", env.Data)
	}
	if after := app.countTokens(t); after != before {
		t.Errorf("tokens = %d, want %d (no token created)", after, before)
	}
}

func TestMobileMe(t *testing.T) {
	app := newTestApp(t, nil)
	data := app.mobileRegister(t, "me@example.com")

	w := app.do(t, request{method: http.MethodGet, path: "/v1/mobile/auth/me", bearer: data.Token})
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, body = %s", w.Code, w.Body.String())
	}
	me := decodeUser(t, decodeEnvelope(t, w))
	if me.User.ID != data.User.ID || me.User.Email != "me@example.com" {
		t.Errorf("me = %+v", me.User)
	}
	if len(me.User.Roles) == 0 || len(me.User.Permissions) == 0 {
		t.Error("me must include roles and permissions")
	}
}

func TestMobileMe_RequiresBearer(t *testing.T) {
	app := newTestApp(t, nil)

	tests := []struct {
		name   string
		header string
	}{
		{"missing", ""},
		{"wrong scheme", "Basic abc"},
		{"garbage token", "Bearer tok-0000000000000000|nope"},
		{"no separator", "Bearer just-a-string"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			headers := map[string]string{}
			if tt.header != "" {
				headers["Authorization"] = tt.header
			}
			w := app.do(t, request{method: http.MethodGet, path: "/v1/mobile/auth/me", headers: headers})
			if w.Code != http.StatusUnauthorized {
				t.Errorf("status = %d, want 401", w.Code)
			}
			if env := decodeEnvelope(t, w); env.Message != msgUnauthenticated {
				t.Errorf("message = %q, want %q", env.Message, msgUnauthenticated)
			}
		})
	}
}

func TestMobileLogout_OnlyCurrentToken(t *testing.T) {
	app := newTestApp(t, nil)
	data := app.mobileRegister(t, "logout@example.com")
	second := app.mobileLogin(t, "logout@example.com", "Tablet")

	w := app.do(t, request{method: http.MethodPost, path: "/v1/mobile/auth/logout", bearer: data.Token})
	if w.Code != http.StatusOK {
		t.Fatalf("logout status = %d", w.Code)
	}

	if w := app.do(t, request{method: http.MethodGet, path: "/v1/mobile/auth/me", bearer: data.Token}); w.Code != http.StatusUnauthorized {
		t.Errorf("logged out token: status = %d, want 401", w.Code)
	}
	if w := app.do(t, request{method: http.MethodGet, path: "/v1/mobile/auth/me", bearer: second}); w.Code != http.StatusOK {
		t.Errorf("other device token: status = %d, want 200", w.Code)
	}
}

func TestMobileLogoutAll_RevokesEveryDevice(t *testing.T) {
	app := newTestApp(t, nil)
	tokens := []string{
		app.mobileRegister(t, "three@example.com").Token,
		app.mobileLogin(t, "three@example.com", "iPad"),
		app.mobileLogin(t, "three@example.com", "Watch"),
	}

	w := app.do(t, request{method: http.MethodGet, path: "/v1/mobile/auth/devices", bearer: tokens[0]})
	var devices []auth.Device
	if err := json.Unmarshal(decodeEnvelope(t, w).Data, &devices); err != nil {
		t.Fatalf("decoding devices: %v", err)
	}
	if len(devices) != 3 {
		t.Fatalf("devices = %d, want 3", len(devices))
	}

	w = app.do(t, request{method: http.MethodPost, path: "/v1/mobile/auth/logout-all", bearer: tokens[1]})
	if w.Code != http.StatusOK {
		t.Fatalf("logout-all status = %d", w.Code)
	}
	var revoked struct {
		Revoked int `json:"revoked"`
	}
	json.Unmarshal(decodeEnvelope(t, w).Data, &revoked) //nolint:errcheck // checked below
	if revoked.Revoked != 3 {
		t.Errorf("revoked = %d, want 3", revoked.Revoked)
	}

	for i, tok := range tokens {
		if w := app.do(t, request{method: http.MethodGet, path: "/v1/mobile/auth/me", bearer: tok}); w.Code != http.StatusUnauthorized {
			t.Errorf("token %d after logout-all: status = %d, want 401", i, w.Code)
		}
	}
	if n := app.countTokens(t); n != 0 {
		t.Errorf("access tokens = %d, want 0", n)
	}
}

func TestMobileRevokeDevice(t *testing.T) {
	app := newTestApp(t, nil)
	owner := app.mobileRegister(t, "owner@example.com")
	phone := app.mobileLogin(t, "owner@example.com", "Old phone")

	w := app.do(t, request{method: http.MethodGet, path: "/v1/mobile/auth/devices", bearer: owner.Token})
	var devices []auth.Device
	json.Unmarshal(decodeEnvelope(t, w).Data, &devices) //nolint:errcheck // length checked below
	if len(devices) != 2 || devices[0].Name != "Old phone" {
		t.Fatalf("devices = %+v, want newest first", devices)
	}

	w = app.do(t, request{method: http.MethodDelete, path: "/v1/mobile/auth/devices/" + devices[0].ID, bearer: owner.Token})
	if w.Code != http.StatusOK {
		t.Fatalf("revoke status = %d, body = %s", w.Code, w.Body.String())
	}
	if w := app.do(t, request{method: http.MethodGet, path: "/v1/mobile/auth/me", bearer: phone}); w.Code != http.StatusUnauthorized {
		t.Errorf("revoked token: status = %d, want 401", w.Code)
	}

	w = app.do(t, request{method: http.MethodDelete, path: "/v1/mobile/auth/devices/tok-doesnotexist00", bearer: owner.Token})
	if w.Code != http.StatusNotFound {
		t.Errorf("unknown device: status = %d, want 404", w.Code)
	}
}

func TestMobileRevokeDevice_OtherUserIsNotFound(t *testing.T) {
	app := newTestApp(t, nil)
	alice := app.mobileRegister(t, "alice@example.com")
	bob := app.mobileRegister(t, "bob@example.com")

	w := app.do(t, request{method: http.MethodGet, path: "/v1/mobile/auth/devices", bearer: bob.Token})
	var devices []auth.Device
	json.Unmarshal(decodeEnvelope(t, w).Data, &devices) //nolint:errcheck // length checked below
	if len(devices) != 1 {
		t.Fatalf("bob devices = %d, want 1", len(devices))
	}

	w = app.do(t, request{method: http.MethodDelete, path: "/v1/mobile/auth/devices/" + devices[0].ID, bearer: alice.Token})
	if w.Code != http.StatusNotFound {
		t.Errorf("cross-user revoke: status = %d, want 404 (never 403)", w.Code)
	}
	if w := app.do(t, request{method: http.MethodGet, path: "/v1/mobile/auth/me", bearer: bob.Token}); w.Code != http.StatusOK {
		t.Errorf("bob's token must survive: status = %d", w.Code)
	}
}

func TestMobileDevices_FreshLoginAfterLogoutAll(t *testing.T) {
	app := newTestApp(t, nil)
	data := app.mobileRegister(t, "solo@example.com")
	app.do(t, request{method: http.MethodPost, path: "/v1/mobile/auth/logout-all", bearer: data.Token})

	fresh := app.mobileLogin(t, "solo@example.com", "New phone")
	w := app.do(t, request{method: http.MethodGet, path: "/v1/mobile/auth/devices", bearer: fresh})
	var devices []auth.Device
	json.Unmarshal(decodeEnvelope(t, w).Data, &devices) //nolint:errcheck // length checked below
	if len(devices) != 1 || devices[0].Name != "New phone" {
		t.Errorf("devices = %+v, want only the new login", devices)
	}
}

func TestPasswordReset_OverHTTP(t *testing.T) {
	app := newTestApp(t, nil)
	data := app.mobileRegister(t, "forgot@example.com")

	known := app.do(t, request{method: http.MethodPost, path: "/v1/mobile/auth/forgot-password", body: map[string]string{"email": "forgot@example.com"}})
	unknown := app.do(t, request{method: http.MethodPost, path: "/v1/mobile/auth/forgot-password", body: map[string]string{"email": "nobody@example.com"}})

	if known.Code != http.StatusOK || unknown.Code != http.StatusOK {
		t.Fatalf("statuses = %d, %d; want 200, 200", known.Code, unknown.Code)
	}
	if known.Body.String() != unknown.Body.String() {
		t.Error("forgot-password must answer identically for unknown emails")
	}
	if app.notifier.count() != 1 {
		t.Fatalf("notices = %d, want 1", app.notifier.count())
	}

	w := app.do(t, request{method: http.MethodPost, path: "/v1/mobile/auth/reset-password", body: map[string]string{
		"email":                 "forgot@example.com",
		"token":                 "not-the-token",
		"password":              "new-secret-1",
		"password_confirmation": "new-secret-1",
	}})
	if w.Code != http.StatusUnprocessableEntity {
		t.Errorf("wrong token: status = %d, want 422", w.Code)
	}
	if w := app.do(t, request{method: http.MethodGet, path: "/v1/mobile/auth/me", bearer: data.Token}); w.Code != http.StatusOK {
		t.Errorf("failed reset must not revoke tokens: status = %d", w.Code)
	}
}

func TestForgotPassword_Validation(t *testing.T) {
	app := newTestApp(t, nil)

	w := app.do(t, request{method: http.MethodPost, path: "/v1/mobile/auth/forgot-password", body: map[string]string{}})
	if w.Code != http.StatusUnprocessableEntity {
		t.Errorf("status = %d, want 422", w.Code)
	}
}
