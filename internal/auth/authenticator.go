package auth

import (
	"context"

	"github.com/nerrad567/givehub-core/internal/session"
)

// Authenticator is one client channel's way of proving identity.
type Authenticator interface {
	// Channel returns the channel this authenticator serves.
	Channel() Channel

	// Login verifies credentials, applies the status gate and issues an artifact.
	Login(ctx context.Context, in LoginInput) (*Grant, error)

	// Issue creates an artifact for a user whose credentials were already
	// established, e.g. straight after registration.
	Issue(ctx context.Context, user *User, in LoginInput) (*Grant, error)

	// Logout destroys what the artifact names.
	Logout(ctx context.Context, artifact Artifact) (*Grant, error)

	// CurrentUser resolves the credential presented with a request.
	// Anything that does not identify an active user is ErrUnauthenticated.
	CurrentUser(ctx context.Context, credential string) (*Identity, error)
}

// Grant is the outcome of register, login or logout.
type Grant struct {
	User *User
	Auth *AuthContext

	// Token is the plaintext mobile access token, returned exactly once.
	Token string

	// Session is the web session to hand back as cookies.
	Session *session.Session

	Artifact Artifact
}

// Identity is the authenticated principal of a request.
type Identity struct {
	User     *User
	Artifact Artifact
	Channel  Channel

	// Session is set for web requests.
	Session *session.Session

	// Auth is preloaded for identities without stored roles, such as service tokens.
	Auth *AuthContext
}

// IsService reports whether the identity came from a service token.
func (id *Identity) IsService() bool {
	return id.Artifact.Kind() == ArtifactEphemeral
}
