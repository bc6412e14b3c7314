package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/nerrad567/givehub-core/internal/auth"
)

// userPayload is a user as returned to clients: the account plus its
// resolved roles and permissions.
type userPayload struct {
	*auth.User
	Roles       []auth.RoleRef    `json:"roles"`
	Permissions []auth.Permission `json:"permissions"`
}

func newUserPayload(u *auth.User, ac *auth.AuthContext) userPayload {
	p := userPayload{User: u, Roles: []auth.RoleRef{}, Permissions: []auth.Permission{}}
	if ac != nil {
		if ac.Roles != nil {
			p.Roles = ac.Roles
		}
		if ac.Permissions != nil {
			p.Permissions = ac.Permissions
		}
	}
	return p
}

// tokenResponse is the data of a successful mobile register or login.
type tokenResponse struct {
	User  userPayload `json:"user"`
	Token string      `json:"token"`
}

// userResponse is the data of web register, login and me.
type userResponse struct {
	User userPayload `json:"user"`
}

// ─── Mobile channel ────────────────────────────────────────────────

func (s *Server) handleMobileRegister(w http.ResponseWriter, r *http.Request) {
	var in auth.RegisterInput
	if err := decodeJSON(r, &in); err != nil {
		writeFailure(w, http.StatusBadRequest, msgInvalidJSON)
		return
	}

	grant, err := s.gateway.Register(r.Context(), auth.ChannelMobile, in)
	if err != nil {
		s.writeAuthError(w, r, err)
		return
	}
	writeSuccess(w, http.StatusCreated, "Registration successful.", tokenResponse{
		User:  newUserPayload(grant.User, grant.Auth),
		Token: grant.Token,
	})
}

func (s *Server) handleMobileLogin(w http.ResponseWriter, r *http.Request) {
	var in auth.LoginInput
	if err := decodeJSON(r, &in); err != nil {
		writeFailure(w, http.StatusBadRequest, msgInvalidJSON)
		return
	}

	grant, err := s.gateway.Login(r.Context(), auth.ChannelMobile, in)
	if err != nil {
		s.writeAuthError(w, r, err)
		return
	}
	writeSuccess(w, http.StatusOK, "Login successful.", tokenResponse{
		User:  newUserPayload(grant.User, grant.Auth),
		Token: grant.Token,
	})
}

func (s *Server) handleMobileLogout(w http.ResponseWriter, r *http.Request) {
	id, _ := identityFrom(r.Context())
	if _, err := s.gateway.Logout(r.Context(), id); err != nil {
		s.writeAuthError(w, r, err)
		return
	}
	writeSuccess(w, http.StatusOK, "Logged out successfully.", nil)
}

func (s *Server) handleLogoutAll(w http.ResponseWriter, r *http.Request) {
	id, _ := identityFrom(r.Context())
	n, err := s.gateway.LogoutAll(r.Context(), id)
	if err != nil {
		s.writeAuthError(w, r, err)
		return
	}
	writeSuccess(w, http.StatusOK, "Logged out from all devices.", map[string]int64{"revoked": n})
}

func (s *Server) handleListDevices(w http.ResponseWriter, r *http.Request) {
	id, _ := identityFrom(r.Context())
	devices, err := s.gateway.Devices(r.Context(), id)
	if err != nil {
		s.writeAuthError(w, r, err)
		return
	}
	if devices == nil {
		devices = []auth.Device{}
	}
	writeSuccess(w, http.StatusOK, "Devices retrieved.", devices)
}

func (s *Server) handleRevokeDevice(w http.ResponseWriter, r *http.Request) {
	id, _ := identityFrom(r.Context())
	if err := s.gateway.RevokeDevice(r.Context(), id, chi.URLParam(r, "id")); err != nil {
		s.writeAuthError(w, r, err)
		return
	}
	writeSuccess(w, http.StatusOK, "Device revoked.", nil)
}

// ─── Web channel ───────────────────────────────────────────────────

// handleCSRFCookie starts an anonymous session, or refreshes the cookies
// of the current one, so the console holds a valid XSRF-TOKEN.
func (s *Server) handleCSRFCookie(w http.ResponseWriter, r *http.Request) {
	sess, err := s.gateway.Session(r.Context(), s.cookies.sessionID(r))
	if err != nil {
		sess, err = s.gateway.StartSession(r.Context())
		if err != nil {
			s.writeAuthError(w, r, err)
			return
		}
	}
	s.cookies.set(w, sess)
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleWebRegister(w http.ResponseWriter, r *http.Request) {
	var in auth.RegisterInput
	if err := decodeJSON(r, &in); err != nil {
		writeFailure(w, http.StatusBadRequest, msgInvalidJSON)
		return
	}
	in.PreviousSession = s.cookies.sessionID(r)

	grant, err := s.gateway.Register(r.Context(), auth.ChannelWeb, in)
	if err != nil {
		s.writeAuthError(w, r, err)
		return
	}
	s.cookies.set(w, grant.Session)
	writeSuccess(w, http.StatusCreated, "Registration successful.", userResponse{
		User: newUserPayload(grant.User, grant.Auth),
	})
}

func (s *Server) handleWebLogin(w http.ResponseWriter, r *http.Request) {
	var in auth.LoginInput
	if err := decodeJSON(r, &in); err != nil {
		writeFailure(w, http.StatusBadRequest, msgInvalidJSON)
		return
	}
	in.PreviousSession = s.cookies.sessionID(r)

	grant, err := s.gateway.Login(r.Context(), auth.ChannelWeb, in)
	if err != nil {
		s.writeAuthError(w, r, err)
		return
	}
	s.cookies.set(w, grant.Session)
	writeSuccess(w, http.StatusOK, "Login successful.", userResponse{
		User: newUserPayload(grant.User, grant.Auth),
	})
}

func (s *Server) handleWebLogout(w http.ResponseWriter, r *http.Request) {
	id, _ := identityFrom(r.Context())
	grant, err := s.gateway.Logout(r.Context(), id)
	if err != nil {
		s.writeAuthError(w, r, err)
		return
	}
	if grant != nil && grant.Session != nil {
		s.cookies.set(w, grant.Session)
	}
	writeSuccess(w, http.StatusOK, "Logged out successfully.", nil)
}

// ─── Shared ────────────────────────────────────────────────────────

func (s *Server) handleMe(w http.ResponseWriter, r *http.Request) {
	id, _ := identityFrom(r.Context())
	user, ac, err := s.gateway.Me(r.Context(), id)
	if err != nil {
		s.writeAuthError(w, r, err)
		return
	}
	writeSuccess(w, http.StatusOK, "User retrieved.", userResponse{User: newUserPayload(user, ac)})
}

// handleForgotPassword answers the same way whether or not the email
// belongs to an account.
func (s *Server) handleForgotPassword(w http.ResponseWriter, r *http.Request) {
	var in auth.ForgotPasswordInput
	if err := decodeJSON(r, &in); err != nil {
		writeFailure(w, http.StatusBadRequest, msgInvalidJSON)
		return
	}

	if err := s.gateway.ForgotPassword(r.Context(), in); err != nil {
		s.writeAuthError(w, r, err)
		return
	}
	writeSuccess(w, http.StatusOK, "If that email is registered, a password reset link has been sent.", nil)
}

func (s *Server) handleResetPassword(w http.ResponseWriter, r *http.Request) {
	var in auth.ResetPasswordInput
	if err := decodeJSON(r, &in); err != nil {
		writeFailure(w, http.StatusBadRequest, msgInvalidJSON)
		return
	}

	if err := s.gateway.ResetPassword(r.Context(), in); err != nil {
		s.writeAuthError(w, r, err)
		return
	}
	writeSuccess(w, http.StatusOK, "Your password has been reset.", nil)
}
