package auth

// ArtifactKind says what an authenticated request was proven with.
type ArtifactKind int

const (
	// ArtifactEphemeral has nothing stored server-side, e.g. a service JWT.
	// The zero Artifact is ephemeral, so an unset artifact never deletes anything.
	ArtifactEphemeral ArtifactKind = iota

	// ArtifactPersistedToken is a stored mobile access token.
	ArtifactPersistedToken

	// ArtifactSession is a web session.
	ArtifactSession
)

func (k ArtifactKind) String() string {
	switch k {
	case ArtifactPersistedToken:
		return "persisted_token"
	case ArtifactSession:
		return "session"
	default:
		return "ephemeral"
	}
}

// Artifact identifies the credential behind an authenticated request.
// Logout only ever deletes what the artifact names.
type Artifact struct {
	kind ArtifactKind
	id   string
}

// Persisted names a stored access token.
func Persisted(tokenID string) Artifact {
	return Artifact{kind: ArtifactPersistedToken, id: tokenID}
}

// SessionRef names a web session.
func SessionRef(sessionID string) Artifact {
	return Artifact{kind: ArtifactSession, id: sessionID}
}

// Ephemeral is an artifact with no server-side state.
func Ephemeral() Artifact {
	return Artifact{}
}

// Kind returns the artifact's variant.
func (a Artifact) Kind() ArtifactKind {
	return a.kind
}

// TokenID returns the access token ID for a persisted token artifact.
func (a Artifact) TokenID() (string, bool) {
	if a.kind != ArtifactPersistedToken {
		return "", false
	}
	return a.id, true
}

// SessionID returns the session ID for a session artifact.
func (a Artifact) SessionID() (string, bool) {
	if a.kind != ArtifactSession {
		return "", false
	}
	return a.id, true
}
