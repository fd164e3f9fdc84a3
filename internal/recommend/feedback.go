package recommend

import (
	"context"
	"fmt"
	"time"

	"github.com/toquothty/spotify-nostalgic-recommend/internal/models"
	"github.com/toquothty/spotify-nostalgic-recommend/internal/services"
	"github.com/toquothty/spotify-nostalgic-recommend/internal/shared"
)

// SubmitFeedback records the user's reaction to a recommendation.
//
// Either answer may be omitted (nil); an omitted answer stays unset rather
// than being overwritten. A liked track is also saved to the user's catalog
// library, best effort: a catalog failure is logged but does not fail the
// submission, since the feedback itself is already durable.
func (g *Generator) SubmitFeedback(ctx context.Context, catalog services.Catalog, userID, recommendationID string, liked, alreadyKnew *bool) (*models.Recommendation, error) {
	if liked == nil && alreadyKnew == nil {
		return nil, fmt.Errorf("%w: feedback requires at least one answer", shared.ErrInvalidInput)
	}

	rec, err := g.recs.Get(recommendationID)
	if err != nil {
		return nil, err
	}
	if rec.UserID() != userID {
		// Do not leak that the id exists for another user.
		return nil, fmt.Errorf("recommendation not found: %s", recommendationID)
	}

	rec.SetFeedback(liked, alreadyKnew, time.Now())
	if err := g.recs.Update(rec); err != nil {
		return nil, fmt.Errorf("failed to store feedback: %w", err)
	}

	if liked != nil && *liked && catalog != nil {
		if err := catalog.AddToLibrary(ctx, []string{rec.SpotifyTrackID()}); err != nil {
			if g.logger != nil {
				g.logger.Warn("failed to save liked track to library", "spotify_id", rec.SpotifyTrackID(), "error", err)
			}
		} else if g.logger != nil {
			g.logger.Info("saved liked track to library", "spotify_id", rec.SpotifyTrackID())
		}
	}

	return rec, nil
}

// History returns the user's recommendation history, newest first.
// A zero limit returns everything.
func (g *Generator) History(userID string, limit int) ([]*models.Recommendation, error) {
	return g.recs.ListByUser(userID, limit)
}
