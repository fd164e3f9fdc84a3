package recommend

import (
	"context"
	"fmt"
	"math/rand/v2"
	"sort"
	"time"

	"github.com/charmbracelet/log"
	"github.com/toquothty/spotify-nostalgic-recommend/internal/models"
	"github.com/toquothty/spotify-nostalgic-recommend/internal/repositories"
	"github.com/toquothty/spotify-nostalgic-recommend/internal/services"
	"github.com/toquothty/spotify-nostalgic-recommend/internal/shared"
)

const (
	// defaultBatchSize is how many recommendations one request yields.
	defaultBatchSize = 10

	// confidenceBase lifts catalog popularity into a usable confidence range.
	confidenceBase = 0.3

	// seedTracksPerCluster caps how many member tracks seed each cluster request.
	seedTracksPerCluster = 3
)

// Generator produces recommendation batches and persists them.
type Generator struct {
	tracks   *repositories.TrackRepository
	clusters *repositories.ClusterRepository
	recs     *repositories.RecommendationRepository
	sessions *repositories.SessionRepository
	gate     *Gate
	limits   shared.LimitsConfig
	logger   *log.Logger
}

// NewGenerator creates a Generator over the given repositories.
func NewGenerator(
	tracks *repositories.TrackRepository,
	clusters *repositories.ClusterRepository,
	recs *repositories.RecommendationRepository,
	sessions *repositories.SessionRepository,
	limits shared.LimitsConfig,
	logger *log.Logger,
) *Generator {
	return &Generator{
		tracks:   tracks,
		clusters: clusters,
		recs:     recs,
		sessions: sessions,
		gate:     NewGate(limits),
		limits:   limits,
		logger:   logger,
	}
}

// Gate exposes the rate gate for status reporting.
func (g *Generator) Gate() *Gate {
	return g.gate
}

// Generate issues one recommendation batch of the given kind.
//
// The rate gate is checked up front but quota is consumed only when at least
// one recommendation survives filtering; an exhausted candidate pool costs
// nothing. Every returned track is persisted so it can never be recommended
// to this user again.
func (g *Generator) Generate(ctx context.Context, catalog services.Catalog, user *models.User, session *models.Session, kind models.RecommendationKind, limit int) ([]*models.Recommendation, error) {
	if !kind.Valid() {
		return nil, fmt.Errorf("%w: unknown recommendation kind %q", shared.ErrInvalidArgument, kind)
	}
	if limit <= 0 {
		limit = defaultBatchSize
	}

	now := time.Now()
	if err := g.gate.Check(session, now); err != nil {
		return nil, err
	}

	library, err := g.tracks.ListByUser(user.ID())
	if err != nil {
		return nil, fmt.Errorf("failed to load library: %w", err)
	}

	seen, err := g.recs.RecommendedTrackIDs(user.ID())
	if err != nil {
		return nil, fmt.Errorf("failed to load recommendation history: %w", err)
	}

	libraryIDs := make(map[string]bool, len(library))
	libraryKeys := make(map[string]bool, len(library))
	for _, track := range library {
		libraryIDs[track.Info().SpotifyID] = true
		libraryKeys[shared.NormalizeTrackKey(track.Info().Name, track.Info().ArtistName)] = true
	}

	var candidates []candidate
	switch kind {
	case models.KindCluster:
		candidates, err = g.clusterCandidates(ctx, catalog, user, limit)
	case models.KindNostalgia:
		candidates, err = g.nostalgiaCandidates(ctx, catalog, user, limit)
	case models.KindForgotten:
		candidates, err = g.forgottenCandidates(library, now)
	}
	if err != nil {
		return nil, err
	}

	var issued []*models.Recommendation
	for _, cand := range candidates {
		if len(issued) >= limit {
			break
		}

		info := cand.info
		if info.SpotifyID == "" || seen[info.SpotifyID] {
			continue
		}
		// Forgotten picks come from the library on purpose; the other two
		// kinds must surface tracks the user does not already have.
		if kind != models.KindForgotten {
			if libraryIDs[info.SpotifyID] || libraryKeys[shared.NormalizeTrackKey(info.Name, info.ArtistName)] {
				continue
			}
		}

		rec := models.NewRecommendation(0, user.ID(), info, kind, cand.sourceCluster, confidence(info.Popularity))
		if err := g.recs.Create(rec); err != nil {
			// A concurrent batch may have claimed the same track.
			if g.logger != nil {
				g.logger.Debug("skipping track, persist failed", "spotify_id", info.SpotifyID, "error", err)
			}
			continue
		}

		seen[info.SpotifyID] = true
		issued = append(issued, rec)
	}

	if len(issued) > 0 {
		g.gate.Consume(session, now)
		if err := g.sessions.Update(session); err != nil {
			return nil, fmt.Errorf("failed to persist rate limit state: %w", err)
		}
	}

	if g.logger != nil {
		g.logger.Info("recommendation batch issued", "user_id", user.ID(), "kind", kind, "count", len(issued), "remaining_today", g.gate.Remaining(session, now))
	}

	return issued, nil
}

// candidate pairs a catalog track with its originating cluster, if any.
type candidate struct {
	info          models.TrackInfo
	sourceCluster *int
}

// clusterCandidates asks the catalog for tracks similar to each taste
// cluster, seeding with the cluster's member tracks and targeting its
// centroid. The pooled results are shuffled before selection.
func (g *Generator) clusterCandidates(ctx context.Context, catalog services.Catalog, user *models.User, limit int) ([]candidate, error) {
	clusters, err := g.clusters.ListByUser(user.ID())
	if err != nil {
		return nil, fmt.Errorf("failed to load clusters: %w", err)
	}
	if len(clusters) == 0 {
		return nil, shared.ErrLibraryNotStudied
	}

	ordered := make([]*models.TasteCluster, len(clusters))
	copy(ordered, clusters)
	sort.SliceStable(ordered, func(a, b int) bool {
		return ordered[a].TrackCount() > ordered[b].TrackCount()
	})

	perCluster := limit/len(ordered) + 1

	var candidates []candidate
	for _, cluster := range ordered {
		members, err := g.tracks.ListByCluster(user.ID(), cluster.Index())
		if err != nil {
			return nil, fmt.Errorf("failed to load cluster members: %w", err)
		}
		if len(members) == 0 {
			continue
		}

		seeds := services.Seeds{}
		for _, member := range members {
			if len(seeds.TrackIDs) == seedTracksPerCluster {
				break
			}
			seeds.TrackIDs = append(seeds.TrackIDs, member.Info().SpotifyID)
		}

		centroid := cluster.Centroid()
		found, err := catalog.Recommendations(ctx, seeds, &centroid, perCluster*2)
		if err != nil {
			// One cluster failing should not sink the batch.
			if g.logger != nil {
				g.logger.Warn("cluster recommendation request failed", "cluster", cluster.Index(), "error", err)
			}
		}
		if len(found) == 0 {
			found = g.artistCandidates(ctx, catalog, members, perCluster*2)
		}
		if len(found) == 0 {
			continue
		}

		index := cluster.Index()
		for _, info := range found {
			candidates = append(candidates, candidate{info: info, sourceCluster: &index})
		}
	}

	if len(candidates) == 0 {
		return nil, fmt.Errorf("%w: no catalog results for any cluster", shared.ErrCatalogRequest)
	}

	// Sample the pool with equal probability so large clusters cannot crowd
	// the whole batch.
	rand.Shuffle(len(candidates), func(a, b int) {
		candidates[a], candidates[b] = candidates[b], candidates[a]
	})

	return candidates, nil
}

// artistCandidates approximates cluster similarity through artist lookups
// when the seeded recommendation request yields nothing: the cluster's
// dominant artist anchors a related-artist walk and each artist in the walk
// contributes its top tracks. This is the path metadata-bucket clusters
// usually take, since their hand-authored centroids seed poorly.
func (g *Generator) artistCandidates(ctx context.Context, catalog services.Catalog, members []*models.LibraryTrack, want int) []models.TrackInfo {
	counts := make(map[string]int, len(members))
	for _, member := range members {
		counts[member.Info().ArtistName]++
	}

	var dominant string
	for artist, n := range counts {
		if artist == "" {
			continue
		}
		if dominant == "" || n > counts[dominant] || (n == counts[dominant] && artist < dominant) {
			dominant = artist
		}
	}
	if dominant == "" {
		return nil
	}

	matches, err := catalog.SearchArtists(ctx, dominant, 1)
	if err != nil || len(matches) == 0 {
		return nil
	}

	pool := []services.Artist{matches[0]}
	if related, err := catalog.RelatedArtists(ctx, matches[0].ID); err == nil {
		pool = append(pool, related...)
	}

	var found []models.TrackInfo
	for _, artist := range pool {
		if len(found) >= want {
			break
		}
		tracks, err := catalog.ArtistTopTracks(ctx, artist.ID)
		if err != nil {
			continue
		}
		found = append(found, tracks...)
	}
	return found
}

// nostalgiaCandidates searches the catalog for popular tracks released
// during the user's formative years (ages 12 through 18).
func (g *Generator) nostalgiaCandidates(ctx context.Context, catalog services.Catalog, user *models.User, limit int) ([]candidate, error) {
	start, end, ok := user.FormativeWindow()
	if !ok {
		return nil, shared.ErrMissingBirthDate
	}

	var candidates []candidate
	for year := start; year <= end; year++ {
		found, err := catalog.Search(ctx, fmt.Sprintf("year:%d", year), limit)
		if err != nil {
			if g.logger != nil {
				g.logger.Warn("year search failed", "year", year, "error", err)
			}
			continue
		}

		for _, info := range found {
			if info.Popularity < g.limits.PopularityFloor {
				continue
			}
			candidates = append(candidates, candidate{info: info})
		}
	}

	if len(candidates) == 0 {
		return nil, fmt.Errorf("%w: no catalog results for years %d-%d", shared.ErrCatalogRequest, start, end)
	}

	// Most recent formative years first, most popular first within a year.
	sort.SliceStable(candidates, func(a, b int) bool {
		ra, rb := releaseYear(candidates[a].info), releaseYear(candidates[b].info)
		if ra != rb {
			return ra > rb
		}
		return candidates[a].info.Popularity > candidates[b].info.Popularity
	})

	return candidates, nil
}

// forgottenCandidates surfaces a uniformly random sample of the user's own
// long-neglected saved tracks. No catalog round trip is needed.
func (g *Generator) forgottenCandidates(library []*models.LibraryTrack, now time.Time) ([]candidate, error) {
	if len(library) == 0 {
		return nil, shared.ErrEmptyLibrary
	}

	threshold := time.Duration(g.limits.ForgottenAfterDays) * 24 * time.Hour

	var old []*models.LibraryTrack
	for _, track := range library {
		if age := track.AgeInLibrary(now); age >= threshold && age > 0 {
			old = append(old, track)
		}
	}

	if len(old) == 0 {
		return nil, fmt.Errorf("%w: no tracks older than %d days", shared.ErrInsufficientData, g.limits.ForgottenAfterDays)
	}

	rand.Shuffle(len(old), func(a, b int) {
		old[a], old[b] = old[b], old[a]
	})

	candidates := make([]candidate, 0, len(old))
	for _, track := range old {
		candidates = append(candidates, candidate{info: track.Info()})
	}
	return candidates, nil
}

// confidence derives a score from catalog popularity, floored so even
// obscure tracks carry some weight.
func confidence(popularity int) float64 {
	score := float64(popularity)/100 + confidenceBase
	if score > 1.0 {
		return 1.0
	}
	return score
}

// releaseYear extracts the year prefix of a release date. Tracks with no
// usable date sort behind every dated candidate.
func releaseYear(info models.TrackInfo) string {
	if len(info.ReleaseDate) >= 4 {
		return info.ReleaseDate[:4]
	}
	return "0000"
}
