// Package server provides HTTP routing, middleware, OAuth handling and the JSON API.
//
// # Router Infrastructure
//
// The [Router] interface defines HTTP routing with middleware support.
//
// [Middleware] wraps handlers in reverse order (last added executes first), following the standard Go pattern.
//
// The [BasicRouter] implementation uses [http.ServeMux] internally with method-qualified patterns.
//
// # OAuth Callback Handler
//
// OAuthHandler implements the OAuth2 authorization code callback flow.
//
// The handler validates the state parameter (CSRF protection), exchanges the authorization code for tokens,
// fetches the catalog profile, upserts the user record, opens a session and sends the result through a channel.
//
// It only processes one callback to prevent replay attacks.
//
// During CLI authentication a temporary HTTP server starts on the configured address, handles the callback,
// and shuts down after receiving the OAuth token. The serve command keeps the same handlers running
// alongside the JSON API.
//
// # API Handlers
//
// [AnalysisHandler] starts analysis runs and exposes progress, the library summary and taste clusters.
// [RecommendationHandler] generates recommendation batches, records feedback and reports the remaining quota.
// [ProfileHandler] exposes the user profile and accepts the date of birth used for nostalgia recommendations.
//
// API requests authenticate with the session id issued by the OAuth callback, passed as a bearer token;
// [SessionAuth] middleware resolves it to the session and user for downstream handlers.
//
// # Handler Interface
//
// Custom handlers implement the [Handler] interface, which wraps the stdlib handler interface and adds routes,
// allowing handlers to register multiple routes to encapsulate route definitions within the implementation.
package server
