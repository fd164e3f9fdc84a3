package models

import (
	"fmt"
	"time"
)

// Fixed semantic slots used by the metadata clustering strategy.
// Numeric clustering uses dense indices 0..k-1 instead.
const (
	SlotTopArtists = iota
	SlotRecent
	SlotNostalgic
	SlotHighEnergy
	SlotChill
)

// TasteCluster is one taste cluster owned by a user.
//
// The centroid is stored in original (non-standardized) feature units for
// interpretability. Clusters are recreated wholesale on each re-analysis.
type TasteCluster struct {
	id          string
	sequence    int
	userID      string
	index       int
	label       string
	description string
	trackCount  int
	centroid    FeatureVector
	createdAt   time.Time
}

// NewTasteCluster creates a new TasteCluster.
func NewTasteCluster(sequence int, userID string, index int, label string, centroid FeatureVector, trackCount int) *TasteCluster {
	return &TasteCluster{
		sequence:   sequence,
		userID:     userID,
		index:      index,
		label:      label,
		centroid:   centroid,
		trackCount: trackCount,
		createdAt:  time.Now(),
	}
}

func (c *TasteCluster) ID() string                { return c.id }
func (c *TasteCluster) SetID(id string)           { c.id = id }
func (c *TasteCluster) Sequence() int             { return c.sequence }
func (c *TasteCluster) SetSequence(sequence int)  { c.sequence = sequence }
func (c *TasteCluster) UserID() string            { return c.userID }
func (c *TasteCluster) Index() int                { return c.index }
func (c *TasteCluster) Label() string             { return c.label }
func (c *TasteCluster) Description() string       { return c.description }
func (c *TasteCluster) SetDescription(d string)   { c.description = d }
func (c *TasteCluster) TrackCount() int           { return c.trackCount }
func (c *TasteCluster) Centroid() FeatureVector   { return c.centroid }
func (c *TasteCluster) CreatedAt() time.Time      { return c.createdAt }
func (c *TasteCluster) UpdatedAt() time.Time      { return c.createdAt }
func (c *TasteCluster) SetCreatedAt(ts time.Time) { c.createdAt = ts }

// Validate checks if the cluster's data is valid
func (c *TasteCluster) Validate() error {
	if c.userID == "" {
		return fmt.Errorf("user id is required")
	}
	if c.index < 0 {
		return fmt.Errorf("cluster index must be non-negative")
	}
	if c.label == "" {
		return fmt.Errorf("cluster label is required")
	}
	if c.trackCount < 1 {
		return fmt.Errorf("cluster must have at least one track")
	}
	return nil
}
