package server

import (
	"fmt"
	"net/http"
	"sync"

	"github.com/toquothty/spotify-nostalgic-recommend/internal/models"
	"github.com/toquothty/spotify-nostalgic-recommend/internal/repositories"
	"github.com/toquothty/spotify-nostalgic-recommend/internal/services"
)

// OAuthResult contains the result of an OAuth authorization flow.
type OAuthResult struct {
	UserID    string
	SessionID string
	Token     *services.TokenPair
	err       error
}

func (o *OAuthResult) Error() error {
	return o.err
}

// OAuthHandler handles OAuth2 callback requests for authorization code flow.
//
// Beyond the token exchange it fetches the catalog profile, upserts the user
// record and opens a session, so the result carries everything the caller
// needs to make authenticated API requests.
// Implements the Handler interface for registration with a Router.
type OAuthHandler struct {
	catalog     services.Catalog
	users       *repositories.UserRepository
	sessions    *repositories.SessionRepository
	state       string
	resultChan  chan OAuthResult
	once        sync.Once
	callbackHit bool
	mu          sync.Mutex
}

// NewOAuthHandler creates a new OAuth handler with the given catalog, repositories and state token.
// The state token should be cryptographically random for CSRF protection.
func NewOAuthHandler(catalog services.Catalog, users *repositories.UserRepository, sessions *repositories.SessionRepository, state string) *OAuthHandler {
	return &OAuthHandler{
		catalog:    catalog,
		users:      users,
		sessions:   sessions,
		state:      state,
		resultChan: make(chan OAuthResult, 1),
	}
}

// Routes returns the HTTP routes this handler serves.
func (h *OAuthHandler) Routes() []string {
	return []string{"/callback"}
}

// ServeHTTP handles the OAuth callback request.
//
// Validates the state parameter, exchanges the authorization code for tokens,
// persists the user and session, and sends the result through the result channel.
func (h *OAuthHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	// Only handle callback once
	h.mu.Lock()
	if h.callbackHit {
		h.mu.Unlock()
		http.Error(w, "Callback already processed", http.StatusBadRequest)
		return
	}
	h.callbackHit = true
	h.mu.Unlock()

	state := r.URL.Query().Get("state")
	if state != h.state {
		err := fmt.Errorf("invalid state parameter")
		h.Send(OAuthResult{err: err})
		http.Error(w, "Invalid state parameter", http.StatusBadRequest)
		return
	}

	code := r.URL.Query().Get("code")
	if code == "" {
		errParam := r.URL.Query().Get("error")
		errDesc := r.URL.Query().Get("error_description")
		err := fmt.Errorf("authorization failed: %s - %s", errParam, errDesc)
		h.Send(OAuthResult{err: err})
		http.Error(w, "Authorization failed", http.StatusBadRequest)
		return
	}

	token, err := h.catalog.Exchange(r.Context(), code)
	if err != nil {
		h.Send(OAuthResult{err: fmt.Errorf("token exchange failed: %w", err)})
		http.Error(w, "Token exchange failed", http.StatusInternalServerError)
		return
	}

	user, session, err := h.openSession(r, token)
	if err != nil {
		h.Send(OAuthResult{err: err})
		http.Error(w, "Failed to create session", http.StatusInternalServerError)
		return
	}

	h.Send(OAuthResult{UserID: user.ID(), SessionID: session.ID(), Token: token})

	w.Header().Set("Content-Type", "text/html")
	w.WriteHeader(http.StatusOK)
	fmt.Fprintf(w, `
<!DOCTYPE html>
<html>
<head>
    <title>Authorization Successful</title>
    <style>
        body { font-family: -apple-system, BlinkMacSystemFont, "Segoe UI", Roboto, sans-serif;
               display: flex; align-items: center; justify-content: center; height: 100vh;
               margin: 0; background: #f5f5f5; }
        .container { text-align: center; background: white; padding: 2rem;
                     border-radius: 8px; box-shadow: 0 2px 4px rgba(0,0,0,0.1); }
        h1 { color: #1DB954; margin: 0 0 1rem 0; }
        p { color: #666; margin: 0; }
    </style>
</head>
<body>
    <div class="container">
        <h1>✓ Authorization Successful</h1>
        <p>You can close this window and return to the terminal.</p>
    </div>
</body>
</html>
`)
}

// openSession fetches the catalog profile, upserts the user record and creates a session.
func (h *OAuthHandler) openSession(r *http.Request, token *services.TokenPair) (*models.User, *models.Session, error) {
	bound := h.catalog.WithAccessToken(token.AccessToken)
	profile, err := bound.Profile(r.Context())
	if err != nil {
		return nil, nil, fmt.Errorf("failed to fetch profile: %w", err)
	}

	user, err := h.users.GetBySpotifyID(profile.SpotifyID)
	if err != nil {
		user = models.NewUser(0, profile.SpotifyID, profile.DisplayName, profile.Email, profile.Country)
		if err := h.users.Create(user); err != nil {
			return nil, nil, fmt.Errorf("failed to create user: %w", err)
		}
	} else {
		user.SetDisplayName(profile.DisplayName)
		if err := h.users.Update(user); err != nil {
			return nil, nil, fmt.Errorf("failed to update user: %w", err)
		}
	}

	session := models.NewSession(0, user.ID(), token.AccessToken, token.RefreshToken, token.ExpiresAt)
	if err := h.sessions.Create(session); err != nil {
		return nil, nil, fmt.Errorf("failed to create session: %w", err)
	}

	return user, session, nil
}

// Send sends the OAuth result through the channel (only once).
func (h *OAuthHandler) Send(result OAuthResult) {
	h.once.Do(func() {
		h.resultChan <- result
		close(h.resultChan)
	})
}

// Result returns the result channel for receiving OAuth flow completion.
//
// Channel will receive exactly one result and then be closed.
func (h *OAuthHandler) Result() <-chan OAuthResult {
	return h.resultChan
}
