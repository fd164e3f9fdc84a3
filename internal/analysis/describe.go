package analysis

import (
	"strings"

	"github.com/toquothty/spotify-nostalgic-recommend/internal/models"
)

// featureTrait maps a feature dimension to the phrases used when a cluster
// sits notably above or below the library average on it.
type featureTrait struct {
	dim   int
	high  string
	low   string
	scale float64 // deviation threshold in the dimension's own units
}

var traits = []featureTrait{
	{dim: 2, high: "high-energy", low: "low-key", scale: 0.15},       // energy
	{dim: 8, high: "upbeat", low: "melancholic", scale: 0.15},        // valence
	{dim: 0, high: "acoustic", low: "electronic", scale: 0.2},        // acousticness
	{dim: 1, high: "danceable", low: "free-form", scale: 0.15},       // danceability
	{dim: 7, high: "fast", low: "slow", scale: 20},                   // tempo
	{dim: 3, high: "instrumental", low: "vocal-driven", scale: 0.25}, // instrumentalness
	{dim: 6, high: "wordy", low: "", scale: 0.15},                    // speechiness
	{dim: 4, high: "live-sounding", low: "", scale: 0.15},            // liveness
}

// describeCentroid names the traits where the centroid deviates most from
// the library mean, in trait priority order.
func describeCentroid(centroid, libraryMean models.FeatureVector) string {
	cDims := centroid.Dims()
	mDims := libraryMean.Dims()

	var phrases []string
	for _, trait := range traits {
		delta := cDims[trait.dim] - mDims[trait.dim]
		switch {
		case delta > trait.scale && trait.high != "":
			phrases = append(phrases, trait.high)
		case delta < -trait.scale && trait.low != "":
			phrases = append(phrases, trait.low)
		}
		if len(phrases) == 3 {
			break
		}
	}

	if len(phrases) == 0 {
		return "Tracks close to your library's overall sound"
	}

	return "Mostly " + strings.Join(phrases, ", ") + " tracks"
}
