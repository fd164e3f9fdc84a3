// Package recommend generates track recommendations from a user's taste
// clusters, formative years, and neglected library corners.
//
// Issuance is rate limited per user: a daily cap plus a cooldown between
// batches, both configurable. Quota is only consumed when a batch actually
// returns tracks, so a dry run never costs the user anything.
package recommend

import (
	"fmt"
	"time"

	"github.com/toquothty/spotify-nostalgic-recommend/internal/models"
	"github.com/toquothty/spotify-nostalgic-recommend/internal/shared"
)

// Gate enforces the per-user recommendation rate limit carried on the session.
type Gate struct {
	limits shared.LimitsConfig
}

// NewGate creates a Gate with the given limits.
func NewGate(limits shared.LimitsConfig) *Gate {
	return &Gate{limits: limits}
}

// Check returns ErrRateLimited when the session may not receive a batch now.
// The daily counter resets on calendar day rollover in local time.
func (g *Gate) Check(session *models.Session, now time.Time) error {
	last := session.LastRecommendationAt()
	if last == nil {
		return nil
	}

	count := session.RecommendationCountToday()
	if !sameDay(*last, now) {
		count = 0
	}

	if count >= g.limits.DailyCap {
		return fmt.Errorf("%w: daily cap of %d reached", shared.ErrRateLimited, g.limits.DailyCap)
	}

	cooldown := g.limits.CooldownDuration()
	if elapsed := now.Sub(*last); elapsed < cooldown {
		return fmt.Errorf("%w: next batch available in %s", shared.ErrRateLimited, (cooldown - elapsed).Round(time.Minute))
	}

	return nil
}

// Consume records one issued batch on the session. Callers must persist the
// session afterwards.
func (g *Gate) Consume(session *models.Session, now time.Time) {
	count := session.RecommendationCountToday()
	if last := session.LastRecommendationAt(); last == nil || !sameDay(*last, now) {
		count = 0
	}

	issued := now
	session.SetRateLimitState(&issued, count+1)
}

// Remaining reports how many batches the session may still receive today.
func (g *Gate) Remaining(session *models.Session, now time.Time) int {
	count := session.RecommendationCountToday()
	if last := session.LastRecommendationAt(); last == nil || !sameDay(*last, now) {
		count = 0
	}

	remaining := g.limits.DailyCap - count
	if remaining < 0 {
		return 0
	}
	return remaining
}

func sameDay(a, b time.Time) bool {
	ay, am, ad := a.Date()
	by, bm, bd := b.Date()
	return ay == by && am == bm && ad == bd
}
