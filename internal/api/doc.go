// Package api provides the HTTP API for Givehub Core.
//
// It exposes the auth gateway to the two client channels (the mobile app
// with bearer tokens and the web console with cookie sessions) plus the
// operational /health and /metrics endpoints.
//
// The server follows the same lifecycle pattern as other infrastructure components:
//
//	server, err := api.New(deps)
//	server.Start(ctx)
//	defer server.Close()
//
// Thread Safety: All methods are safe for concurrent use from multiple goroutines.
//
// # Routes
//
// Mobile clients authenticate with "Authorization: Bearer <id>|<secret>"
// tokens minted at register or login, one per device:
//
//	POST   /v1/mobile/auth/register
//	POST   /v1/mobile/auth/login
//	GET    /v1/mobile/auth/me
//	POST   /v1/mobile/auth/logout
//	POST   /v1/mobile/auth/logout-all
//	GET    /v1/mobile/auth/devices
//	DELETE /v1/mobile/auth/devices/{id}
//	POST   /v1/mobile/auth/forgot-password
//	POST   /v1/mobile/auth/reset-password
//
// The web console first calls GET /v1/web/auth/csrf-cookie, which sets an
// HttpOnly session cookie and a script-readable XSRF-TOKEN cookie. Every
// state-changing request that carries the session cookie must echo the
// token in X-XSRF-TOKEN, otherwise it is answered with 419.
//
// # Responses
//
// Every JSON body is an envelope:
//
//	{"success": true, "data": {...}, "message": "..."}
//	{"success": false, "message": "The given data was invalid.", "errors": {"email": ["..."]}}
//
// Authenticated user payloads always carry "roles" and "permissions".
package api
