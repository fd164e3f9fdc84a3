package models

import (
	"fmt"
	"time"
)

// Session holds a user's catalog credentials plus recommendation rate-limit state.
//
// The session id doubles as the client-facing bearer token; rate-limit fields
// are mutated only by the recommendation gate.
type Session struct {
	id                       string
	sequence                 int
	userID                   string
	accessToken              string
	refreshToken             string
	tokenExpiresAt           time.Time
	lastRecommendationAt     *time.Time
	recommendationCountToday int
	createdAt                time.Time
	updatedAt                time.Time
}

// NewSession creates a new Session for the given user and token pair.
func NewSession(sequence int, userID, accessToken, refreshToken string, expiresAt time.Time) *Session {
	now := time.Now()
	return &Session{
		sequence:       sequence,
		userID:         userID,
		accessToken:    accessToken,
		refreshToken:   refreshToken,
		tokenExpiresAt: expiresAt,
		createdAt:      now,
		updatedAt:      now,
	}
}

func (s *Session) ID() string                      { return s.id }
func (s *Session) SetID(id string)                 { s.id = id }
func (s *Session) Sequence() int                   { return s.sequence }
func (s *Session) SetSequence(sequence int)        { s.sequence = sequence }
func (s *Session) UserID() string                  { return s.userID }
func (s *Session) AccessToken() string             { return s.accessToken }
func (s *Session) RefreshToken() string            { return s.refreshToken }
func (s *Session) TokenExpiresAt() time.Time       { return s.tokenExpiresAt }
func (s *Session) LastRecommendationAt() *time.Time { return s.lastRecommendationAt }
func (s *Session) RecommendationCountToday() int   { return s.recommendationCountToday }
func (s *Session) CreatedAt() time.Time            { return s.createdAt }
func (s *Session) UpdatedAt() time.Time            { return s.updatedAt }
func (s *Session) SetCreatedAt(t time.Time)        { s.createdAt = t }
func (s *Session) SetUpdatedAt(t time.Time)        { s.updatedAt = t }

// TokenExpired reports whether the access token has passed its expiry.
func (s *Session) TokenExpired() bool {
	return time.Now().After(s.tokenExpiresAt)
}

// SetTokens replaces the credential pair after a refresh.
func (s *Session) SetTokens(accessToken, refreshToken string, expiresAt time.Time) {
	s.accessToken = accessToken
	if refreshToken != "" {
		s.refreshToken = refreshToken
	}
	s.tokenExpiresAt = expiresAt
}

// SetRateLimitState replaces the issuance timestamp and same-day counter.
func (s *Session) SetRateLimitState(last *time.Time, countToday int) {
	s.lastRecommendationAt = last
	s.recommendationCountToday = countToday
}

// Validate checks if the session's data is valid
func (s *Session) Validate() error {
	if s.userID == "" {
		return fmt.Errorf("user id is required")
	}
	if s.accessToken == "" {
		return fmt.Errorf("access token is required")
	}
	if s.refreshToken == "" {
		return fmt.Errorf("refresh token is required")
	}
	return nil
}
