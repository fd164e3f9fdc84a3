package shared

import "fmt"

var (
	ErrNotImplemented = fmt.Errorf("not implemented")

	// Configuration errors
	ErrMissingConfig      = fmt.Errorf("configuration not found")
	ErrInvalidConfig      = fmt.Errorf("invalid configuration")
	ErrMissingCredentials = fmt.Errorf("missing credentials")
	ErrInvalidCredentials = fmt.Errorf("invalid credentials")

	// Authentication errors
	ErrAuthFailed       = fmt.Errorf("authentication failed")
	ErrNotAuthenticated = fmt.Errorf("not authenticated")
	ErrTokenExpired     = fmt.Errorf("access token expired")
	ErrRefreshFailed    = fmt.Errorf("token refresh failed")
	ErrNoRefreshToken   = fmt.Errorf("no refresh token available")

	// Catalog and service errors
	ErrCatalogRequest     = fmt.Errorf("catalog request failed")
	ErrServiceUnavailable = fmt.Errorf("service unavailable")
	ErrTrackNotFound      = fmt.Errorf("track not found")
	ErrUserNotFound       = fmt.Errorf("user not found")
	ErrSessionNotFound    = fmt.Errorf("session not found")

	// Analysis errors
	ErrEmptyLibrary       = fmt.Errorf("no tracks found in library")
	ErrInsufficientData   = fmt.Errorf("not enough usable tracks for clustering")
	ErrAnalysisInProgress = fmt.Errorf("analysis already running")

	// Recommendation errors
	ErrRateLimited       = fmt.Errorf("recommendation rate limit exceeded")
	ErrNoClusters        = fmt.Errorf("no clusters available")
	ErrMissingBirthDate  = fmt.Errorf("date of birth required")
	ErrLibraryNotStudied = fmt.Errorf("library has not been analyzed")

	// Input validation errors
	ErrInvalidInput    = fmt.Errorf("invalid input")
	ErrMissingArgument = fmt.Errorf("missing required argument")
	ErrInvalidArgument = fmt.Errorf("invalid argument")
	ErrInvalidFlag     = fmt.Errorf("invalid flag value")
)
