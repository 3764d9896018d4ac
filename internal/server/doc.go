// Package server provides HTTP routing, middleware and the handlers behind `vinyl login` and
// `vinyl serve`.
//
// # Router Infrastructure
//
// [BasicRouter] implements [Router] over [http.ServeMux] with per-route method filtering.
// [Middleware] registered with Use wraps every handler added afterwards; the first one added
// is outermost. [Logging] tags each request with a uuid request id and [Recover] turns panics
// into 500s.
//
// # OAuth Callback Handler
//
// [OAuthHandler] serves the path of the configured redirect URI. It hands the query to a
// [CallbackCompleter], which validates state and exchanges the code, and publishes one
// [OAuthResult]. Only the first callback is processed.
//
// # JSON API
//
// [SessionHandler] exposes the session facade:
//
//	GET  /login               302 to the provider
//	POST /logout
//	GET  /api/status
//	GET  /api/playlists
//	POST /api/player/init
//	POST /api/play/{id}
//	POST /api/toggle | /api/next | /api/previous
//	POST /api/volume?value=0.5
//	POST /api/mute
//	GET  /api/state
//
// Failures answer with {"error", "kind"} and a status chosen by [StatusFor].
package server
