package analysis

import (
	"fmt"
	"math"
	"sort"

	"github.com/toquothty/spotify-nostalgic-recommend/internal/models"
	"github.com/toquothty/spotify-nostalgic-recommend/internal/shared"
)

// clusterNumeric runs k-means with the given k over the standardized
// feature space. The caller guarantees k <= len(tracks).
//
// Initialization is deterministic: points are sorted by their standardized
// magnitude and centroids seeded at evenly spaced ranks, so re-analyzing an
// unchanged library yields the same clusters.
func (e *Engine) clusterNumeric(userID string, tracks []*models.LibraryTrack, k int) (*Result, error) {
	n := len(tracks)
	if k > n {
		return nil, fmt.Errorf("%w: %d tracks for k=%d", shared.ErrInsufficientData, n, k)
	}

	points := make([][9]float64, n)
	for i, track := range tracks {
		points[i] = track.Info().Features.Dims()
	}

	means, stds := standardStats(points)
	standardized := make([][9]float64, n)
	for i, p := range points {
		for d := 0; d < 9; d++ {
			standardized[i][d] = (p[d] - means[d]) / stds[d]
		}
	}

	centroids := seedCentroids(standardized, k)

	maxIterations := e.config.MaxIterations
	if maxIterations < 1 {
		maxIterations = 100
	}

	assignments := make([]int, n)
	for iter := 0; iter < maxIterations; iter++ {
		changed := false
		for i, p := range standardized {
			best := nearestCentroid(p, centroids)
			if best != assignments[i] {
				assignments[i] = best
				changed = true
			}
		}
		if !changed && iter > 0 {
			break
		}

		// Recompute centroids; empty clusters keep their previous position.
		sums := make([][9]float64, k)
		counts := make([]int, k)
		for i, p := range standardized {
			c := assignments[i]
			counts[c]++
			for d := 0; d < 9; d++ {
				sums[c][d] += p[d]
			}
		}
		for c := 0; c < k; c++ {
			if counts[c] == 0 {
				continue
			}
			for d := 0; d < 9; d++ {
				centroids[c][d] = sums[c][d] / float64(counts[c])
			}
		}
	}

	// Drop empty clusters and compact indices to 0..m-1.
	counts := make([]int, k)
	for _, c := range assignments {
		counts[c]++
	}
	remap := make([]int, k)
	next := 0
	for c := 0; c < k; c++ {
		if counts[c] > 0 {
			remap[c] = next
			next++
		} else {
			remap[c] = -1
		}
	}

	cohesion := 0.0
	memberDims := make(map[int][][9]float64)
	trackAssignments := make(map[string]int, n)
	for i, track := range tracks {
		dense := remap[assignments[i]]
		trackAssignments[track.ID()] = dense
		memberDims[dense] = append(memberDims[dense], points[i])
		cohesion += distance(standardized[i], centroids[assignments[i]])
	}
	cohesion /= float64(n)

	globalMean := models.VectorFromDims(means)

	clusters := make([]*models.TasteCluster, 0, next)
	for index := 0; index < next; index++ {
		members := memberDims[index]
		centroid := models.VectorFromDims(meanDims(members))

		label := fmt.Sprintf("Cluster %d", index+1)
		cluster := models.NewTasteCluster(0, userID, index, label, centroid, len(members))
		cluster.SetDescription(describeCentroid(centroid, globalMean))
		clusters = append(clusters, cluster)
	}

	return &Result{
		Clusters:    clusters,
		Assignments: trackAssignments,
		Strategy:    StrategyNumeric,
		Cohesion:    cohesion,
	}, nil
}

// standardStats returns per-dimension mean and standard deviation.
// Constant dimensions get a std of 1 so standardization is a no-op for them.
func standardStats(points [][9]float64) (means, stds [9]float64) {
	n := float64(len(points))
	for _, p := range points {
		for d := 0; d < 9; d++ {
			means[d] += p[d]
		}
	}
	for d := 0; d < 9; d++ {
		means[d] /= n
	}

	for _, p := range points {
		for d := 0; d < 9; d++ {
			diff := p[d] - means[d]
			stds[d] += diff * diff
		}
	}
	for d := 0; d < 9; d++ {
		stds[d] = math.Sqrt(stds[d] / n)
		if stds[d] == 0 {
			stds[d] = 1
		}
	}
	return means, stds
}

// seedCentroids picks k starting centroids at evenly spaced ranks of the
// points sorted by distance from the origin of the standardized space.
func seedCentroids(points [][9]float64, k int) [][9]float64 {
	order := make([]int, len(points))
	for i := range order {
		order[i] = i
	}
	sort.SliceStable(order, func(a, b int) bool {
		return magnitude(points[order[a]]) < magnitude(points[order[b]])
	})

	centroids := make([][9]float64, k)
	step := float64(len(points)-1) / float64(k)
	for c := 0; c < k; c++ {
		rank := int(step*float64(c) + step/2)
		centroids[c] = points[order[rank]]
	}
	return centroids
}

func nearestCentroid(p [9]float64, centroids [][9]float64) int {
	best := 0
	bestDist := math.MaxFloat64
	for c, centroid := range centroids {
		if d := distance(p, centroid); d < bestDist {
			best = c
			bestDist = d
		}
	}
	return best
}

func distance(a, b [9]float64) float64 {
	sum := 0.0
	for d := 0; d < 9; d++ {
		diff := a[d] - b[d]
		sum += diff * diff
	}
	return math.Sqrt(sum)
}

func magnitude(p [9]float64) float64 {
	sum := 0.0
	for d := 0; d < 9; d++ {
		sum += p[d] * p[d]
	}
	return math.Sqrt(sum)
}

func meanDims(points [][9]float64) [9]float64 {
	var mean [9]float64
	if len(points) == 0 {
		return mean
	}
	for _, p := range points {
		for d := 0; d < 9; d++ {
			mean[d] += p[d]
		}
	}
	for d := 0; d < 9; d++ {
		mean[d] /= float64(len(points))
	}
	return mean
}
