package models

import (
	"fmt"
	"time"
)

// RecommendationKind distinguishes the three recommendation strategies.
type RecommendationKind string

const (
	KindCluster   RecommendationKind = "cluster"
	KindNostalgia RecommendationKind = "nostalgia"
	KindForgotten RecommendationKind = "forgotten"
)

// Valid reports whether the kind is one of the supported strategies.
func (k RecommendationKind) Valid() bool {
	switch k {
	case KindCluster, KindNostalgia, KindForgotten:
		return true
	}
	return false
}

// Recommendation is a generated candidate track for a user.
//
// Rows are append-only; only the feedback fields are mutated, once, by an
// explicit user submission. liked and alreadyKnew are tri-state: nil means
// the user has not answered.
type Recommendation struct {
	id                 string
	sequence           int
	userID             string
	spotifyTrackID     string
	trackName          string
	artistName         string
	albumName          string
	previewURL         string
	externalURL        string
	imageURL           string
	kind               RecommendationKind
	sourceClusterIndex *int
	confidence         float64
	liked              *bool
	alreadyKnew        *bool
	feedbackAt         *time.Time
	createdAt          time.Time
}

// NewRecommendation creates a new Recommendation from catalog track data.
func NewRecommendation(sequence int, userID string, info TrackInfo, kind RecommendationKind, sourceCluster *int, confidence float64) *Recommendation {
	return &Recommendation{
		sequence:           sequence,
		userID:             userID,
		spotifyTrackID:     info.SpotifyID,
		trackName:          info.Name,
		artistName:         info.ArtistName,
		albumName:          info.AlbumName,
		previewURL:         info.PreviewURL,
		externalURL:        info.ExternalURL,
		imageURL:           info.ImageURL,
		kind:               kind,
		sourceClusterIndex: sourceCluster,
		confidence:         confidence,
		createdAt:          time.Now(),
	}
}

func (r *Recommendation) ID() string                   { return r.id }
func (r *Recommendation) SetID(id string)              { r.id = id }
func (r *Recommendation) Sequence() int                { return r.sequence }
func (r *Recommendation) SetSequence(sequence int)     { r.sequence = sequence }
func (r *Recommendation) UserID() string               { return r.userID }
func (r *Recommendation) SpotifyTrackID() string       { return r.spotifyTrackID }
func (r *Recommendation) TrackName() string            { return r.trackName }
func (r *Recommendation) ArtistName() string           { return r.artistName }
func (r *Recommendation) AlbumName() string            { return r.albumName }
func (r *Recommendation) PreviewURL() string           { return r.previewURL }
func (r *Recommendation) ExternalURL() string          { return r.externalURL }
func (r *Recommendation) ImageURL() string             { return r.imageURL }
func (r *Recommendation) Kind() RecommendationKind     { return r.kind }
func (r *Recommendation) SourceClusterIndex() *int     { return r.sourceClusterIndex }
func (r *Recommendation) Confidence() float64          { return r.confidence }
func (r *Recommendation) Liked() *bool                 { return r.liked }
func (r *Recommendation) AlreadyKnew() *bool           { return r.alreadyKnew }
func (r *Recommendation) FeedbackAt() *time.Time       { return r.feedbackAt }
func (r *Recommendation) CreatedAt() time.Time         { return r.createdAt }
func (r *Recommendation) UpdatedAt() time.Time         { return r.createdAt }
func (r *Recommendation) SetCreatedAt(ts time.Time)    { r.createdAt = ts }

// SetFeedback records the user's answers. A nil value leaves the
// corresponding answer unset.
func (r *Recommendation) SetFeedback(liked, alreadyKnew *bool, at time.Time) {
	if liked != nil {
		r.liked = liked
	}
	if alreadyKnew != nil {
		r.alreadyKnew = alreadyKnew
	}
	r.feedbackAt = &at
}

// SetStoredFeedback restores feedback state when scanning from the database.
func (r *Recommendation) SetStoredFeedback(liked, alreadyKnew *bool, at *time.Time) {
	r.liked = liked
	r.alreadyKnew = alreadyKnew
	r.feedbackAt = at
}

// Validate checks if the recommendation's data is valid
func (r *Recommendation) Validate() error {
	if r.userID == "" {
		return fmt.Errorf("user id is required")
	}
	if r.spotifyTrackID == "" {
		return fmt.Errorf("spotify track id is required")
	}
	if r.trackName == "" {
		return fmt.Errorf("track name is required")
	}
	if !r.kind.Valid() {
		return fmt.Errorf("invalid recommendation kind: %s", r.kind)
	}
	if r.confidence < 0 || r.confidence > 1 {
		return fmt.Errorf("confidence must be within [0,1]: %f", r.confidence)
	}
	return nil
}
