package analysis

import (
	"sort"
	"strings"
	"time"

	"github.com/toquothty/spotify-nostalgic-recommend/internal/models"
)

// topArtistCount caps how many of a library's most-saved artists feed the
// top-artists bucket.
const topArtistCount = 5

var highEnergyKeywords = []string{
	"remix", "party", "dance", "club", "pump", "power", "hype", "anthem", "hard", "rock",
}

var chillKeywords = []string{
	"acoustic", "chill", "slow", "ballad", "ambient", "calm", "quiet", "sleep", "unplugged", "piano",
}

// Hand-tuned centroid profiles for the metadata buckets. Without real
// feature vectors these stand in so cluster-seeded recommendation targeting
// still has something to aim at.
var slotProfiles = map[int]models.FeatureVector{
	models.SlotTopArtists: {Acousticness: 0.3, Danceability: 0.6, Energy: 0.65, Instrumentalness: 0.05, Liveness: 0.2, Loudness: -7, Speechiness: 0.08, Tempo: 120, Valence: 0.6},
	models.SlotRecent:     {Acousticness: 0.35, Danceability: 0.6, Energy: 0.6, Instrumentalness: 0.05, Liveness: 0.2, Loudness: -8, Speechiness: 0.08, Tempo: 118, Valence: 0.55},
	models.SlotNostalgic:  {Acousticness: 0.4, Danceability: 0.55, Energy: 0.55, Instrumentalness: 0.05, Liveness: 0.2, Loudness: -9, Speechiness: 0.06, Tempo: 115, Valence: 0.6},
	models.SlotHighEnergy: {Acousticness: 0.1, Danceability: 0.7, Energy: 0.9, Instrumentalness: 0.05, Liveness: 0.25, Loudness: -4, Speechiness: 0.1, Tempo: 135, Valence: 0.7},
	models.SlotChill:      {Acousticness: 0.75, Danceability: 0.4, Energy: 0.25, Instrumentalness: 0.2, Liveness: 0.12, Loudness: -14, Speechiness: 0.04, Tempo: 95, Valence: 0.4},
}

var slotLabels = map[int]string{
	models.SlotTopArtists: "Your Top Artists",
	models.SlotRecent:     "Recent Favorites",
	models.SlotNostalgic:  "Long-Time Favorites",
	models.SlotHighEnergy: "High Energy",
	models.SlotChill:      "Chill & Mellow",
}

var slotDescriptions = map[int]string{
	models.SlotTopArtists: "Tracks from the artists you save most often",
	models.SlotRecent:     "Tracks added to your library recently",
	models.SlotNostalgic:  "Tracks that have lived in your library the longest",
	models.SlotHighEnergy: "Loud, fast tracks for when you need a push",
	models.SlotChill:      "Soft, slow tracks for winding down",
}

// clusterMetadata buckets tracks by library metadata when audio features are
// unavailable. Every track lands in exactly one bucket; empty buckets are
// dropped, and each survivor keeps its semantic slot constant as its cluster
// index so a bucket means the same thing across libraries.
func (e *Engine) clusterMetadata(userID string, tracks []*models.LibraryTrack) (*Result, error) {
	now := time.Now()
	recentCutoff := now.AddDate(0, 0, -e.config.RecentWindowDays)
	nostalgicCutoff := now.AddDate(0, 0, -e.config.NostalgicAfterDays)
	topArtists := frequentArtists(tracks)

	slotMembers := make(map[int][]*models.LibraryTrack)
	for _, track := range tracks {
		slot := classifyTrack(track, topArtists, recentCutoff, nostalgicCutoff)
		slotMembers[slot] = append(slotMembers[slot], track)
	}

	// Stable slot order regardless of map iteration.
	slots := make([]int, 0, len(slotMembers))
	for slot := range slotMembers {
		slots = append(slots, slot)
	}
	sort.Ints(slots)

	clusters := make([]*models.TasteCluster, 0, len(slots))
	assignments := make(map[string]int, len(tracks))
	for _, slot := range slots {
		members := slotMembers[slot]
		for _, track := range members {
			assignments[track.ID()] = slot
		}

		cluster := models.NewTasteCluster(0, userID, slot, slotLabels[slot], slotProfiles[slot], len(members))
		cluster.SetDescription(slotDescriptions[slot])
		clusters = append(clusters, cluster)
	}

	return &Result{
		Clusters:    clusters,
		Assignments: assignments,
		Strategy:    StrategyMetadata,
	}, nil
}

// classifyTrack picks a bucket in priority order: title keywords first, then
// the artist and recency signals.
func classifyTrack(track *models.LibraryTrack, topArtists map[string]bool, recentCutoff, nostalgicCutoff time.Time) int {
	info := track.Info()
	title := strings.ToLower(info.Name)

	for _, keyword := range highEnergyKeywords {
		if strings.Contains(title, keyword) {
			return models.SlotHighEnergy
		}
	}
	for _, keyword := range chillKeywords {
		if strings.Contains(title, keyword) {
			return models.SlotChill
		}
	}

	if topArtists[strings.ToLower(info.ArtistName)] {
		return models.SlotTopArtists
	}

	if info.AddedAt != nil {
		if info.AddedAt.After(recentCutoff) {
			return models.SlotRecent
		}
		if info.AddedAt.Before(nostalgicCutoff) {
			return models.SlotNostalgic
		}
	}

	return models.SlotRecent
}

// frequentArtists returns the top five artists by saved-track count.
func frequentArtists(tracks []*models.LibraryTrack) map[string]bool {
	counts := make(map[string]int)
	for _, track := range tracks {
		counts[strings.ToLower(track.Info().ArtistName)]++
	}

	artists := make([]string, 0, len(counts))
	for artist := range counts {
		artists = append(artists, artist)
	}
	sort.Slice(artists, func(a, b int) bool {
		if counts[artists[a]] != counts[artists[b]] {
			return counts[artists[a]] > counts[artists[b]]
		}
		return artists[a] < artists[b]
	})

	if len(artists) > topArtistCount {
		artists = artists[:topArtistCount]
	}

	top := make(map[string]bool, len(artists))
	for _, artist := range artists {
		// Single-save artists say nothing about preference.
		if counts[artist] > 1 {
			top[artist] = true
		}
	}
	return top
}
