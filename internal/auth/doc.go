// Package auth provides authentication and authorisation for Givehub Core.
//
// Two client channels share one account store:
//   - web: server-side sessions in an HttpOnly cookie plus an anti-forgery
//     token (SessionAuthenticator)
//   - mobile: one opaque bearer token per device, "<id>|<secret>", stored
//     as a SHA-256 hash (TokenAuthenticator)
//
// Both implement Authenticator and are reached through the Gateway, which
// validates input, applies the account status gate and attaches the
// caller's roles and permissions to every result.
//
// Passwords are hashed with Argon2id (OWASP 2025 recommendation). Unknown
// emails and wrong passwords are indistinguishable, in both the error and
// the time taken.
//
// Authorisation is role based with no hierarchy: effective permissions
// are the union of each assigned role's static permissions and any
// direct per-user grants (Resolver).
package auth
