package main

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/toquothty/spotify-nostalgic-recommend/internal/formatter"
	"github.com/toquothty/spotify-nostalgic-recommend/internal/models"
	"github.com/toquothty/spotify-nostalgic-recommend/internal/shared"
	"github.com/urfave/cli/v3"
)

// RecommendNew generates a new recommendation batch.
func (r *Runner) RecommendNew(ctx context.Context, cmd *cli.Command) error {
	kindValue := cmd.String("kind")
	limit := cmd.Int("limit")
	format := strings.ToLower(cmd.String("format"))
	outputPath := cmd.String("output")
	pretty := cmd.Bool("pretty")

	kind := models.RecommendationKind(kindValue)
	if !kind.Valid() {
		return fmt.Errorf("%w: unknown kind %q (use cluster, nostalgia, or forgotten)", shared.ErrInvalidFlag, kindValue)
	}

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

	r.logger.Info("generating recommendations", "kind", kind, "limit", limit)

	recs, err := s.generator.Generate(ctx, catalog, user, session, kind, limit)
	if err != nil {
		return fmt.Errorf("failed to generate recommendations: %w", err)
	}

	switch format {
	case "json":
		return r.writeJSON(formatter.RecommendationViews(recs), pretty)
	case "csv":
		if outputPath == "" {
			outputPath = "recommendations"
		}
		result, err := formatter.WriteCSVExport(recs, outputPath)
		if err != nil {
			return fmt.Errorf("failed to write CSV export: %w", err)
		}
		r.writePlain("✓ Exported %d recommendations\n", len(recs))
		r.writePlain("  Tracks: %s\n", result.TracksFile)
		r.writePlain("  JSON:   %s\n", result.JSONFile)
		return nil
	case "markdown":
		if outputPath == "" {
			outputPath = "recommendations"
		}
		title := fmt.Sprintf("%s recommendations", kind)
		result, err := formatter.WriteMarkdownExport(recs, outputPath, title, "")
		if err != nil {
			return fmt.Errorf("failed to write Markdown export: %w", err)
		}
		r.writePlain("✓ Exported %d recommendations to %s\n", len(recs), result.Directory)
		return nil
	case "text", "":
		data, err := formatter.RecommendationsToText(recs)
		if err != nil {
			return fmt.Errorf("failed to format recommendations: %w", err)
		}
		return r.writePlain("%s", data)
	default:
		return fmt.Errorf("%w: unknown format %q", shared.ErrInvalidFlag, format)
	}
}

// RecommendHistory shows previously issued recommendations, newest first.
func (r *Runner) RecommendHistory(ctx context.Context, cmd *cli.Command) error {
	limit := cmd.Int("limit")
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

	recs, err := s.generator.History(user.ID(), limit)
	if err != nil {
		return fmt.Errorf("failed to load history: %w", err)
	}

	if useJSON {
		return r.writeJSON(formatter.RecommendationViews(recs), true)
	}

	if len(recs) == 0 {
		r.writePlain("No recommendations yet. Run: nostalgic recommend new\n")
		return nil
	}

	r.writePlain("History: %d recommendations\n\n", len(recs))
	for i, rec := range recs {
		r.writePlain("%d. %s - %s [%s]\n", i+1, rec.ArtistName(), rec.TrackName(), rec.Kind())
		r.writePlain("   ID: %s\n", rec.ID())
		if rec.Liked() != nil {
			if *rec.Liked() {
				r.writePlain("   Feedback: liked\n")
			} else {
				r.writePlain("   Feedback: disliked\n")
			}
		}
	}

	return nil
}

// RecommendFeedback records feedback on a recommendation.
func (r *Runner) RecommendFeedback(ctx context.Context, cmd *cli.Command) error {
	id := cmd.String("id")
	likedFlag := cmd.Bool("liked")
	dislikedFlag := cmd.Bool("disliked")
	knewFlag := cmd.Bool("knew")

	if likedFlag && dislikedFlag {
		return fmt.Errorf("%w: cannot set both --liked and --disliked", shared.ErrInvalidFlag)
	}

	var liked *bool
	if likedFlag || dislikedFlag {
		value := likedFlag
		liked = &value
	}

	var knew *bool
	if knewFlag {
		value := true
		knew = &value
	}

	if liked == nil && knew == nil {
		return fmt.Errorf("%w: provide --liked, --disliked, or --knew", shared.ErrMissingArgument)
	}

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

	rec, err := s.generator.SubmitFeedback(ctx, catalog, user.ID(), id, liked, knew)
	if err != nil {
		return fmt.Errorf("failed to submit feedback: %w", err)
	}

	r.writePlain("✓ Feedback recorded for %s - %s\n", rec.ArtistName(), rec.TrackName())
	if rec.Liked() != nil && *rec.Liked() {
		r.writePlain("✓ Track saved to your Spotify library\n")
	}

	return nil
}

// RecommendQuota shows how many recommendation batches remain today.
func (r *Runner) RecommendQuota(ctx context.Context, cmd *cli.Command) error {
	s, err := r.openStack()
	if err != nil {
		return err
	}
	defer s.Close()

	_, session, err := r.currentSession(s)
	if err != nil {
		return err
	}

	remaining := s.generator.Gate().Remaining(session, time.Now())
	r.writePlain("Batches remaining today: %d of %d\n", remaining, r.config.Limits.DailyCap)

	return nil
}
