package main

import (
	"context"
	"fmt"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/toquothty/spotify-nostalgic-recommend/internal/server"
	"github.com/toquothty/spotify-nostalgic-recommend/internal/shared"
	"github.com/urfave/cli/v3"
)

// Serve runs the recommendation HTTP API until interrupted.
//
// The health endpoint is public; every other route requires a session token
// issued by the OAuth callback, presented as a bearer token or X-Session-ID
// header.
func (r *Runner) Serve(ctx context.Context, cmd *cli.Command) error {
	if r.catalog == nil {
		return fmt.Errorf("%w: Spotify credentials not configured", shared.ErrServiceUnavailable)
	}

	host := r.config.Server.Host
	if cmd.String("host") != "" {
		host = cmd.String("host")
	}
	port := r.config.Server.Port
	if cmd.Int("port") != 0 {
		port = cmd.Int("port")
	}

	s, err := r.openStack()
	if err != nil {
		return err
	}
	defer s.Close()

	router := server.NewBasicRouter()
	router.Use(server.Recover(r.logger), server.RequestLogger(r.logger))

	// Health stays public; auth middleware applies to routes registered after it.
	router.Handler(server.NewHealthHandler(r.catalog))

	router.Use(server.SessionAuth(s.sessions, s.users))
	router.Handler(server.NewAnalysisHandler(s.engine, s.store, s.clusters))
	router.Handler(server.NewRecommendationHandler(s.generator, r.catalog, s.sessions))
	router.Handler(server.NewProfileHandler(s.users))

	addr := fmt.Sprintf("%s:%d", host, port)
	httpServer := &http.Server{
		Addr:    addr,
		Handler: router,
	}

	ctx, stop := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	serverErrors := make(chan error, 1)
	go func() {
		r.logger.Info("serving recommendation API", "addr", addr)
		r.writePlain("→ Listening on http://%s\n", addr)
		if err := httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			serverErrors <- err
		}
	}()

	select {
	case err := <-serverErrors:
		return fmt.Errorf("server error: %w", err)
	case <-ctx.Done():
	}

	r.logger.Info("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("failed to shut down server: %w", err)
	}

	return nil
}
