package main

import (
	"context"
	"fmt"
	"time"

	"github.com/toquothty/spotify-nostalgic-recommend/internal/formatter"
	"github.com/toquothty/spotify-nostalgic-recommend/internal/models"
	"github.com/toquothty/spotify-nostalgic-recommend/internal/shared"
	"github.com/urfave/cli/v3"
)

// LibraryAnalyze starts a library analysis run and optionally follows it.
func (r *Runner) LibraryAnalyze(ctx context.Context, cmd *cli.Command) error {
	trackLimit := cmd.Int("tracks")
	watch := cmd.Bool("watch")

	if r.catalog == nil {
		return fmt.Errorf("%w: Spotify credentials not configured", shared.ErrServiceUnavailable)
	}

	s, err := r.openStack()
	if err != nil {
		return err
	}
	defer s.Close()

	user, _, err := r.currentSession(s)
	if err != nil {
		return err
	}

	if err := s.engine.Start(user.ID(), trackLimit); err != nil {
		return fmt.Errorf("failed to start analysis: %w", err)
	}

	r.writePlain("→ Analysis started\n")

	if !watch {
		r.writePlain("Check progress with: nostalgic library progress\n")
		return nil
	}

	var lastStep string
	var lastPct int

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(500 * time.Millisecond):
		}

		snapshot, err := s.store.Get(user.ID())
		if err != nil {
			return fmt.Errorf("failed to read progress: %w", err)
		}

		if snapshot.CurrentStep != lastStep || snapshot.ProgressPercentage != lastPct {
			lastStep = snapshot.CurrentStep
			lastPct = snapshot.ProgressPercentage
			r.writePlain("  %-20s %3d%% (%d/%d tracks)\n",
				snapshot.CurrentStep, snapshot.ProgressPercentage,
				snapshot.TracksProcessed, snapshot.TotalTracks)
		}

		if !snapshot.Status.Terminal() {
			continue
		}

		if snapshot.Status == models.StatusFailed {
			message := "analysis failed"
			if snapshot.ErrorMessage != nil {
				message = *snapshot.ErrorMessage
			}
			return fmt.Errorf("analysis failed: %s", message)
		}

		summary, err := s.engine.Summary(user.ID())
		if err != nil {
			return fmt.Errorf("failed to read summary: %w", err)
		}

		r.writePlainln("✓ Analysis complete")
		r.writePlain("  Tracks:   %d\n", summary.TrackCount)
		r.writePlain("  Clusters: %d\n", summary.ClusterCount)
		return nil
	}
}

// LibraryProgress shows the current analysis progress snapshot.
func (r *Runner) LibraryProgress(ctx context.Context, cmd *cli.Command) error {
	useJSON := cmd.Bool("json")

	s, err := r.openStack()
	if err != nil {
		return err
	}
	defer s.Close()

	user, _, err := r.currentSession(s)
	if err != nil {
		return err
	}

	snapshot, err := s.store.Get(user.ID())
	if err != nil {
		return fmt.Errorf("failed to read progress: %w", err)
	}

	if useJSON {
		return r.writeJSON(snapshot, true)
	}

	r.writePlain("Status:   %s\n", snapshot.Status)
	r.writePlain("Step:     %s\n", snapshot.CurrentStep)
	r.writePlain("Progress: %d%% (%d/%d tracks)\n",
		snapshot.ProgressPercentage, snapshot.TracksProcessed, snapshot.TotalTracks)
	if snapshot.ErrorMessage != nil {
		r.writePlain("Error:    %s\n", *snapshot.ErrorMessage)
	}

	return nil
}

// LibraryClearError drops the failed-run snapshot so analysis can be retried.
func (r *Runner) LibraryClearError(ctx context.Context, cmd *cli.Command) error {
	s, err := r.openStack()
	if err != nil {
		return err
	}
	defer s.Close()

	user, _, err := r.currentSession(s)
	if err != nil {
		return err
	}

	if err := s.engine.ClearError(user.ID()); err != nil {
		return fmt.Errorf("failed to clear analysis error: %w", err)
	}

	r.writePlain("✓ Analysis error cleared\n")
	return nil
}

// LibrarySummary shows library size and analysis state.
func (r *Runner) LibrarySummary(ctx context.Context, cmd *cli.Command) error {
	useJSON := cmd.Bool("json")

	s, err := r.openStack()
	if err != nil {
		return err
	}
	defer s.Close()

	user, _, err := r.currentSession(s)
	if err != nil {
		return err
	}

	summary, err := s.engine.Summary(user.ID())
	if err != nil {
		return fmt.Errorf("failed to read summary: %w", err)
	}

	if useJSON {
		return r.writeJSON(summary, true)
	}

	r.writePlainHeader("Library Summary")
	r.writePlain("Tracks:          %d\n", summary.TrackCount)
	r.writePlain("Clusters:        %d\n", summary.ClusterCount)
	r.writePlain("Recommendations: %d\n", summary.RecommendationCount)
	if summary.Analyzed {
		r.writePlain("Analyzed: yes")
		if summary.LastAnalyzedAt != nil {
			r.writePlain(" (%s)", summary.LastAnalyzedAt.Format(time.RFC3339))
		}
		r.writePlain("\n")
	} else {
		r.writePlain("Analyzed: no (run 'nostalgic library analyze')\n")
	}
	if summary.NeedsBirthdate {
		r.writePlain("Birthdate not set (nostalgia recommendations need 'nostalgic profile birthdate')\n")
	}

	return nil
}

// LibraryClusters shows the taste clusters from the last analysis.
func (r *Runner) LibraryClusters(ctx context.Context, cmd *cli.Command) error {
	useJSON := cmd.Bool("json")
	useMarkdown := cmd.Bool("markdown")

	s, err := r.openStack()
	if err != nil {
		return err
	}
	defer s.Close()

	user, _, err := r.currentSession(s)
	if err != nil {
		return err
	}

	clusters, err := s.clusters.ListByUser(user.ID())
	if err != nil {
		return fmt.Errorf("failed to list clusters: %w", err)
	}

	if len(clusters) == 0 {
		return fmt.Errorf("%w: run 'nostalgic library analyze' first", shared.ErrLibraryNotStudied)
	}

	var data []byte
	switch {
	case useJSON:
		data, err = formatter.ClustersToJSON(clusters)
	case useMarkdown:
		data, err = formatter.ClustersToMarkdown(clusters)
	default:
		data, err = formatter.ClustersToText(clusters)
	}
	if err != nil {
		return fmt.Errorf("failed to format clusters: %w", err)
	}

	return r.writePlain("%s", data)
}
