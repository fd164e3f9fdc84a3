package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"time"

	"github.com/toquothty/spotify-nostalgic-recommend/internal/server"
	"github.com/toquothty/spotify-nostalgic-recommend/internal/services"
	"github.com/toquothty/spotify-nostalgic-recommend/internal/shared"
	"github.com/urfave/cli/v3"
)

// Auth performs the OAuth2 authorization flow for Spotify.
//
// Starts a local HTTP server, opens the browser for user authorization, and
// persists the resulting user and session. The session ID is remembered next
// to the database so later commands act on behalf of the signed-in user.
func (r *Runner) Auth(ctx context.Context, cmd *cli.Command) error {
	configPath := cmd.String("config")

	config := r.config
	if config == nil {
		var err error
		if _, statErr := os.Stat(configPath); statErr == nil {
			config, err = shared.LoadConfig(configPath)
			if err != nil {
				r.logger.Warnf("failed to load config, using defaults %v", err)
				config = shared.DefaultConfig()
			}
		} else {
			config = shared.DefaultConfig()
		}
		r.config = config
	}

	if config.Credentials.Spotify.ClientID == "" || config.Credentials.Spotify.ClientSecret == "" {
		return fmt.Errorf("%w: Spotify client_id and client_secret must be set in config.toml", shared.ErrInvalidArgument)
	}

	if r.catalog == nil {
		catalog, err := services.NewSpotifyService(map[string]string{
			"client_id":     config.Credentials.Spotify.ClientID,
			"client_secret": config.Credentials.Spotify.ClientSecret,
			"redirect_uri":  config.Credentials.Spotify.RedirectURI,
		})
		if err != nil {
			return fmt.Errorf("failed to create Spotify service: %w", err)
		}
		r.catalog = catalog
	}

	s, err := r.openStack()
	if err != nil {
		return err
	}
	defer s.Close()

	result, err := r.doOAuth(s)
	if err != nil {
		return err
	}

	if err := r.saveSessionID(result.SessionID); err != nil {
		return err
	}

	user, err := s.users.Get(result.UserID)
	if err != nil {
		return fmt.Errorf("%w: %v", shared.ErrUserNotFound, err)
	}

	r.writePlainln("✓ Authorization successful")
	r.writePlain("✓ Signed in as %s\n\n", user.DisplayName())
	r.writePlain("You can now use: nostalgic library analyze\n")

	return nil
}

// doOAuth executes the OAuth2 authorization flow with a local HTTP server.
func (r *Runner) doOAuth(s *stack) (server.OAuthResult, error) {
	var result server.OAuthResult

	state, err := shared.GenerateState()
	if err != nil {
		return result, fmt.Errorf("failed to generate state token: %w", err)
	}

	authURL := r.catalog.AuthURL(state)
	oauthHandler := server.NewOAuthHandler(r.catalog, s.users, s.sessions, state)
	router := server.NewBasicRouter()
	router.Handler(oauthHandler)

	serverAddr := fmt.Sprintf("%s:%d", r.config.Server.Host, r.config.Server.Port)
	httpServer := &http.Server{
		Addr:    serverAddr,
		Handler: router,
	}

	serverErrors := make(chan error, 1)
	go func() {
		r.logger.Infof("starting OAuth server at %v", serverAddr)
		if err := httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			serverErrors <- err
		}
	}()

	time.Sleep(100 * time.Millisecond)

	r.writePlain("→ Opening browser for Spotify authorization...\n")
	if err := shared.OpenBrowser(authURL); err != nil {
		r.logger.Warnf("failed to open browser automatically %v", err)
		r.writePlainln("⚠ Could not open browser automatically.")
		r.writePlain("Please open this URL in your browser:\n%s\n\n", authURL)
	}

	r.writePlain("→ Waiting for authorization (2 minute timeout)...\n")

	timeout := time.NewTimer(2 * time.Minute)
	defer timeout.Stop()

	select {
	case result = <-oauthHandler.Result():
		// Got result from callback
	case err := <-serverErrors:
		return result, fmt.Errorf("server error: %w", err)
	case <-timeout.C:
		return result, fmt.Errorf("authorization timed out after 2 minutes")
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		r.logger.Warn("error shutting down server", "error", err)
	}

	if result.Error() != nil {
		return result, fmt.Errorf("authorization failed: %w", result.Error())
	}

	if result.SessionID == "" {
		return result, fmt.Errorf("no session received")
	}

	return result, nil
}
