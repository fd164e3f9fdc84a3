package models

import (
	"fmt"
	"time"
)

// TrackInfo carries track metadata and audio features as fetched from the catalog.
type TrackInfo struct {
	SpotifyID         string
	Name              string
	ArtistName        string
	AlbumName         string
	DurationMS        int
	Popularity        int
	Explicit          bool
	PreviewURL        string
	ExternalURL       string
	ImageURL          string
	AddedAt           *time.Time
	ReleaseDate       string
	Features          *FeatureVector
	FeaturesDefaulted bool // true when Features carries the neutral fallback vector
}

// LibraryTrack is a saved track owned by exactly one user.
//
// Created during ingestion; the cluster index is assigned by the clustering
// engine and cleared on re-analysis.
type LibraryTrack struct {
	id           string
	sequence     int
	userID       string
	info         TrackInfo
	clusterIndex *int
	createdAt    time.Time
	updatedAt    time.Time
}

// NewLibraryTrack creates a new LibraryTrack from catalog data.
func NewLibraryTrack(sequence int, userID string, info TrackInfo) *LibraryTrack {
	now := time.Now()
	return &LibraryTrack{
		sequence:  sequence,
		userID:    userID,
		info:      info,
		createdAt: now,
		updatedAt: now,
	}
}

func (t *LibraryTrack) ID() string               { return t.id }
func (t *LibraryTrack) SetID(id string)          { t.id = id }
func (t *LibraryTrack) Sequence() int            { return t.sequence }
func (t *LibraryTrack) SetSequence(sequence int) { t.sequence = sequence }
func (t *LibraryTrack) UserID() string           { return t.userID }
func (t *LibraryTrack) Info() TrackInfo          { return t.info }
func (t *LibraryTrack) ClusterIndex() *int       { return t.clusterIndex }
func (t *LibraryTrack) CreatedAt() time.Time     { return t.createdAt }
func (t *LibraryTrack) UpdatedAt() time.Time     { return t.updatedAt }
func (t *LibraryTrack) SetCreatedAt(ts time.Time) { t.createdAt = ts }
func (t *LibraryTrack) SetUpdatedAt(ts time.Time) { t.updatedAt = ts }

// SetClusterIndex assigns (or clears, with nil) the track's cluster.
func (t *LibraryTrack) SetClusterIndex(idx *int) { t.clusterIndex = idx }

// HasCompleteFeatures reports whether the track carries a real feature vector,
// as opposed to none at all or the neutral fallback.
func (t *LibraryTrack) HasCompleteFeatures() bool {
	return t.info.Features != nil && !t.info.FeaturesDefaulted
}

// AgeInLibrary returns how long ago the track was added, relative to now.
// Returns 0 when the added timestamp is unknown.
func (t *LibraryTrack) AgeInLibrary(now time.Time) time.Duration {
	if t.info.AddedAt == nil {
		return 0
	}
	return now.Sub(*t.info.AddedAt)
}

// Validate checks if the track's data is valid
func (t *LibraryTrack) Validate() error {
	if t.userID == "" {
		return fmt.Errorf("user id is required")
	}
	if t.info.SpotifyID == "" {
		return fmt.Errorf("spotify id is required")
	}
	if t.info.Name == "" {
		return fmt.Errorf("track name is required")
	}
	if t.info.ArtistName == "" {
		return fmt.Errorf("artist name is required")
	}
	return nil
}
