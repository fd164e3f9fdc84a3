package main

import (
	"context"
	"fmt"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/toquothty/spotify-nostalgic-recommend/internal/shared"
	"github.com/toquothty/spotify-nostalgic-recommend/internal/ui"
	"github.com/urfave/cli/v3"
)

// TUI launches the interactive terminal UI.
func (r *Runner) TUI(ctx context.Context, cmd *cli.Command) error {
	if r.catalog == nil {
		return fmt.Errorf("%w: Spotify credentials not configured", shared.ErrServiceUnavailable)
	}

	// Redirect logs to file to avoid interfering with TUI rendering
	fileLogger, err := shared.NewFileLogger("./tmp/nostalgic-tui.log")
	if err != nil {
		return fmt.Errorf("failed to create file logger: %w", err)
	}
	r.SetLogger(fileLogger)

	s, err := r.openStack()
	if err != nil {
		return err
	}
	defer s.Close()

	user, session, err := r.currentSession(s)
	if err != nil {
		return err
	}

	catalog, err := r.boundCatalog(ctx, s, session)
	if err != nil {
		return err
	}

	model := ui.NewModel(ctx, catalog, s.engine, s.store, s.generator, s.clusters, user, session)
	p := tea.NewProgram(model)

	if _, err := p.Run(); err != nil {
		return fmt.Errorf("error running TUI: %w", err)
	}

	return nil
}
