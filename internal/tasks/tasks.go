// package tasks implements the library analysis pipeline.
//
// The core abstraction is AnalysisEngine, which orchestrates the full run:
// credential refresh, saved-track ingestion, audio feature enrichment,
// clustering, and persistence. Runs execute in a background goroutine and
// report through the progress store, so callers fire-and-forget and poll.
package tasks

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/charmbracelet/log"
	"github.com/toquothty/spotify-nostalgic-recommend/internal/analysis"
	"github.com/toquothty/spotify-nostalgic-recommend/internal/models"
	"github.com/toquothty/spotify-nostalgic-recommend/internal/progress"
	"github.com/toquothty/spotify-nostalgic-recommend/internal/repositories"
	"github.com/toquothty/spotify-nostalgic-recommend/internal/services"
	"github.com/toquothty/spotify-nostalgic-recommend/internal/shared"
)

// audioFeatureBatch is how many tracks are enriched per catalog request.
const audioFeatureBatch = 100

// LibrarySummary describes the analyzed state of a user's library.
type LibrarySummary struct {
	TrackCount          int        `json:"track_count"`
	ClusterCount        int        `json:"cluster_count"`
	RecommendationCount int        `json:"recommendation_count"`
	Analyzed            bool       `json:"analyzed"`
	CanGenerate         bool       `json:"can_generate"`
	NeedsBirthdate      bool       `json:"needs_birthdate"`
	LastAnalyzedAt      *time.Time `json:"last_analyzed_at,omitempty"`
}

// AnalysisEngine runs library analysis end to end.
type AnalysisEngine struct {
	catalog  services.Catalog
	users    *repositories.UserRepository
	sessions *repositories.SessionRepository
	tracks   *repositories.TrackRepository
	clusters *repositories.ClusterRepository
	recs     *repositories.RecommendationRepository
	store    *progress.Store
	engine   *analysis.Engine
	config   shared.AnalysisConfig
	logger   *log.Logger

	mu      sync.Mutex
	running map[string]bool
}

// NewAnalysisEngine creates an AnalysisEngine with the provided dependencies.
// catalog must be the unbound client; each run binds it to the session's
// current access token.
func NewAnalysisEngine(
	catalog services.Catalog,
	users *repositories.UserRepository,
	sessions *repositories.SessionRepository,
	tracks *repositories.TrackRepository,
	clusters *repositories.ClusterRepository,
	recs *repositories.RecommendationRepository,
	store *progress.Store,
	config shared.AnalysisConfig,
	logger *log.Logger,
) *AnalysisEngine {
	return &AnalysisEngine{
		catalog:  catalog,
		users:    users,
		sessions: sessions,
		tracks:   tracks,
		clusters: clusters,
		recs:     recs,
		store:    store,
		engine:   analysis.NewEngine(config, logger),
		config:   config,
		logger:   logger,
		running:  make(map[string]bool),
	}
}

// Start launches an analysis run for the user in the background.
//
// Returns ErrAnalysisInProgress when a run is already in flight; a finished
// or failed run can always be restarted. The run detaches from the caller's
// context since it outlives the request that triggered it.
func (e *AnalysisEngine) Start(userID string, trackLimit int) error {
	e.mu.Lock()
	if e.running[userID] {
		e.mu.Unlock()
		return shared.ErrAnalysisInProgress
	}
	if e.store.Active(userID) {
		e.mu.Unlock()
		return shared.ErrAnalysisInProgress
	}
	e.running[userID] = true
	e.mu.Unlock()

	if trackLimit <= 0 {
		trackLimit = e.config.TrackLimit
	}

	e.store.Start(userID)

	go func() {
		defer func() {
			e.mu.Lock()
			delete(e.running, userID)
			e.mu.Unlock()
		}()

		if err := e.run(context.Background(), userID, trackLimit); err != nil {
			if e.logger != nil {
				e.logger.Error("analysis run failed", "user_id", userID, "error", err)
			}
			e.store.SetError(userID, err)
		}
	}()

	return nil
}

// Running reports whether a run is currently in flight for the user.
func (e *AnalysisEngine) Running(userID string) bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.running[userID]
}

// run executes the full pipeline synchronously.
func (e *AnalysisEngine) run(ctx context.Context, userID string, trackLimit int) error {
	catalog, err := e.boundCatalog(ctx, userID)
	if err != nil {
		return err
	}

	// Total first, so percentages mean something while paging.
	e.store.Update(userID, models.StatusFetchingTracks, "Counting saved tracks", 0, 0)
	total, err := catalog.SavedTrackCount(ctx)
	if err != nil {
		return fmt.Errorf("failed to count saved tracks: %w", err)
	}
	if total == 0 {
		return shared.ErrEmptyLibrary
	}
	if total > trackLimit {
		total = trackLimit
	}

	e.store.Update(userID, models.StatusFetchingTracks, "Fetching saved tracks", 0, total)
	infos, err := catalog.SavedTracks(ctx, trackLimit)
	if err != nil {
		return fmt.Errorf("failed to fetch saved tracks: %w", err)
	}
	if len(infos) == 0 {
		return shared.ErrEmptyLibrary
	}

	// The feature stage reports counts against the same total, so no
	// full-count post here; the percentage must never move backwards
	// within a run.
	enriched, defaulted := e.enrich(ctx, catalog, userID, infos)
	if e.logger != nil && defaulted > 0 {
		e.logger.Warn("tracks missing audio features, using neutral values", "user_id", userID, "count", defaulted)
	}

	library := make([]*models.LibraryTrack, 0, len(enriched))
	for _, info := range enriched {
		library = append(library, models.NewLibraryTrack(0, userID, info))
	}
	if err := e.tracks.ReplaceLibrary(userID, library); err != nil {
		return fmt.Errorf("failed to store library: %w", err)
	}

	e.store.Update(userID, models.StatusClustering, "Clustering your library", len(library), len(library))
	result, err := e.engine.Cluster(userID, library)
	if err != nil {
		return err
	}

	if err := e.clusters.ReplaceAll(userID, result.Clusters); err != nil {
		return fmt.Errorf("failed to store clusters: %w", err)
	}
	if err := e.tracks.AssignClusters(userID, result.Assignments); err != nil {
		return fmt.Errorf("failed to store cluster assignments: %w", err)
	}

	e.store.Complete(userID, fmt.Sprintf("Found %d taste clusters", len(result.Clusters)), len(library), len(library))
	return nil
}

// enrich attaches audio features to each track, batching catalog requests.
// Tracks the catalog has no analysis for get the neutral default vector and
// are flagged so clustering can discount them.
func (e *AnalysisEngine) enrich(ctx context.Context, catalog services.Catalog, userID string, infos []models.TrackInfo) ([]models.TrackInfo, int) {
	total := len(infos)
	defaulted := 0

	for start := 0; start < total; start += audioFeatureBatch {
		end := start + audioFeatureBatch
		if end > total {
			end = total
		}

		e.store.Update(userID, models.StatusGettingFeatures, "Fetching audio features", start, total)

		ids := make([]string, 0, end-start)
		for _, info := range infos[start:end] {
			ids = append(ids, info.SpotifyID)
		}

		features, err := catalog.AudioFeatures(ctx, ids)
		if err != nil {
			// Feature enrichment is best effort; the metadata strategy
			// covers libraries the catalog cannot analyze.
			if e.logger != nil {
				e.logger.Warn("audio features batch failed", "user_id", userID, "batch_start", start, "error", err)
			}
			features = nil
		}

		for i := start; i < end; i++ {
			if vector, ok := features[infos[i].SpotifyID]; ok {
				v := vector
				infos[i].Features = &v
				continue
			}
			fallback := models.DefaultFeatureVector()
			infos[i].Features = &fallback
			infos[i].FeaturesDefaulted = true
			defaulted++
		}
	}

	e.store.Update(userID, models.StatusGettingFeatures, "Fetched audio features", total, total)
	return infos, defaulted
}

// boundCatalog loads the user's session, refreshing the access token when
// expired, and returns a catalog client bound to it.
func (e *AnalysisEngine) boundCatalog(ctx context.Context, userID string) (services.Catalog, error) {
	session, err := e.sessions.GetByUser(userID)
	if err != nil {
		return nil, err
	}

	if session.TokenExpired() {
		pair, err := e.catalog.Refresh(ctx, session.RefreshToken())
		if err != nil {
			return nil, fmt.Errorf("failed to refresh credentials: %w", err)
		}
		session.SetTokens(pair.AccessToken, pair.RefreshToken, pair.ExpiresAt)
		if err := e.sessions.Update(session); err != nil {
			return nil, fmt.Errorf("failed to persist refreshed credentials: %w", err)
		}
	}

	return e.catalog.WithAccessToken(session.AccessToken()), nil
}

// Summary reports the analyzed state of the user's library.
func (e *AnalysisEngine) Summary(userID string) (*LibrarySummary, error) {
	count, err := e.tracks.CountByUser(userID)
	if err != nil {
		return nil, err
	}

	clusters, err := e.clusters.ListByUser(userID)
	if err != nil {
		return nil, err
	}

	recCount, err := e.recs.CountByUser(userID)
	if err != nil {
		return nil, err
	}

	user, err := e.users.Get(userID)
	if err != nil {
		return nil, err
	}

	summary := &LibrarySummary{
		TrackCount:          count,
		ClusterCount:        len(clusters),
		RecommendationCount: recCount,
		Analyzed:            len(clusters) > 0,
		CanGenerate:         len(clusters) > 0,
		NeedsBirthdate:      user.DateOfBirth() == nil,
	}
	if len(clusters) > 0 {
		at := clusters[0].CreatedAt()
		summary.LastAnalyzedAt = &at
	}
	return summary, nil
}

// ClearError drops the cached snapshot of a finished or failed run so the
// user can retry. The durable record stays until the next run overwrites it.
// Clearing an active run is refused.
func (e *AnalysisEngine) ClearError(userID string) error {
	snapshot, err := e.store.Get(userID)
	if err != nil {
		return err
	}
	if snapshot.Status.Active() {
		return shared.ErrAnalysisInProgress
	}
	e.store.Clear(userID)
	return nil
}
