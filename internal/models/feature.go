package models

// FeatureNames lists the nine audio feature dimensions in their canonical order.
// Clustering, centroid storage, and catalog targeting all rely on this ordering.
var FeatureNames = [9]string{
	"acousticness",
	"danceability",
	"energy",
	"instrumentalness",
	"liveness",
	"loudness",
	"speechiness",
	"tempo",
	"valence",
}

// FeatureVector is the fixed-schema audio descriptor for a track.
//
// The first nine fields form the numeric feature space used for clustering;
// Key, Mode, and TimeSignature are carried for display but never clustered on.
type FeatureVector struct {
	Acousticness     float64 `json:"acousticness"`
	Danceability     float64 `json:"danceability"`
	Energy           float64 `json:"energy"`
	Instrumentalness float64 `json:"instrumentalness"`
	Liveness         float64 `json:"liveness"`
	Loudness         float64 `json:"loudness"`
	Speechiness      float64 `json:"speechiness"`
	Tempo            float64 `json:"tempo"`
	Valence          float64 `json:"valence"`
	Key              int     `json:"key"`
	Mode             int     `json:"mode"`
	TimeSignature    int     `json:"time_signature"`
}

// Dims returns the nine numeric dimensions in [FeatureNames] order.
func (f FeatureVector) Dims() [9]float64 {
	return [9]float64{
		f.Acousticness,
		f.Danceability,
		f.Energy,
		f.Instrumentalness,
		f.Liveness,
		f.Loudness,
		f.Speechiness,
		f.Tempo,
		f.Valence,
	}
}

// VectorFromDims builds a FeatureVector from nine dimensions in [FeatureNames] order.
// Key, Mode, and TimeSignature are left zero; centroids have no meaningful values for them.
func VectorFromDims(dims [9]float64) FeatureVector {
	return FeatureVector{
		Acousticness:     dims[0],
		Danceability:     dims[1],
		Energy:           dims[2],
		Instrumentalness: dims[3],
		Liveness:         dims[4],
		Loudness:         dims[5],
		Speechiness:      dims[6],
		Tempo:            dims[7],
		Valence:          dims[8],
	}
}

// DefaultFeatureVector returns the neutral vector substituted when the catalog
// cannot provide audio features. Values sit at the midpoint of each dimension's
// typical range so downstream math stays well behaved.
func DefaultFeatureVector() FeatureVector {
	return FeatureVector{
		Acousticness:     0.5,
		Danceability:     0.5,
		Energy:           0.5,
		Instrumentalness: 0.5,
		Liveness:         0.5,
		Loudness:         -10.0,
		Speechiness:      0.5,
		Tempo:            120.0,
		Valence:          0.5,
		Key:              0,
		Mode:             1,
		TimeSignature:    4,
	}
}
