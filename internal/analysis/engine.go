// Package analysis groups a user's library into taste clusters.
//
// Two strategies exist. The numeric strategy runs k-means over the nine
// audio feature dimensions and needs a critical mass of tracks with real
// feature vectors. The metadata strategy falls back to heuristic buckets
// built from track metadata alone, for libraries where the catalog could
// not supply features.
package analysis

import (
	"fmt"

	"github.com/charmbracelet/log"
	"github.com/toquothty/spotify-nostalgic-recommend/internal/models"
	"github.com/toquothty/spotify-nostalgic-recommend/internal/shared"
)

// Strategy identifies which clustering path produced a result.
type Strategy string

const (
	StrategyNumeric  Strategy = "numeric"
	StrategyMetadata Strategy = "metadata"
)

// Result is the output of one clustering run.
type Result struct {
	Clusters    []*models.TasteCluster
	Assignments map[string]int // track id -> cluster index
	Strategy    Strategy
	Cohesion    float64 // mean distance to assigned centroid, standardized units; diagnostic only
}

// Engine selects and runs a clustering strategy over a user's library.
type Engine struct {
	config shared.AnalysisConfig
	logger *log.Logger
}

// NewEngine creates an Engine with the given tuning parameters.
func NewEngine(config shared.AnalysisConfig, logger *log.Logger) *Engine {
	return &Engine{config: config, logger: logger}
}

// Cluster groups the tracks into taste clusters.
//
// The cluster count is reduced to max(2, n/2) for libraries smaller than the
// configured k, with n the full library size. Tracks carrying real feature
// vectors drive the numeric strategy whenever at least k of them exist;
// otherwise the metadata strategy buckets the whole library instead. An
// empty library is an error.
func (e *Engine) Cluster(userID string, tracks []*models.LibraryTrack) (*Result, error) {
	if len(tracks) == 0 {
		return nil, shared.ErrEmptyLibrary
	}

	var complete []*models.LibraryTrack
	for _, track := range tracks {
		if track.HasCompleteFeatures() {
			complete = append(complete, track)
		}
	}

	k := e.config.ClusterCount
	if k < 2 {
		k = 2
	}
	if len(tracks) < k {
		k = len(tracks) / 2
		if k < 2 {
			k = 2
		}
	}

	if len(complete) >= k {
		if e.logger != nil {
			e.logger.Info("clustering with audio features", "user_id", userID, "tracks", len(complete), "k", k)
		}
		result, err := e.clusterNumeric(userID, complete, k)
		if err != nil {
			return nil, err
		}
		if e.logger != nil {
			e.logger.Info("clustering finished", "user_id", userID, "clusters", len(result.Clusters), "cohesion", fmt.Sprintf("%.3f", result.Cohesion))
		}
		return result, nil
	}

	if e.logger != nil {
		e.logger.Info("clustering from metadata", "user_id", userID, "tracks", len(tracks), "with_features", len(complete))
	}
	return e.clusterMetadata(userID, tracks)
}
