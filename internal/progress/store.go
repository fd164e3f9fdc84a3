// Package progress tracks library analysis runs through their lifecycle.
//
// The [Store] keeps an in-memory snapshot per user for cheap polling and
// mirrors every write to a durable repository so progress survives restarts.
// Status moves not_started -> starting -> fetching_tracks -> getting_features
// -> clustering -> completed | failed; terminal states are only left by a
// fresh Start.
package progress

import (
	"fmt"
	"sync"
	"time"

	"github.com/charmbracelet/log"
	"github.com/toquothty/spotify-nostalgic-recommend/internal/models"
)

// Repository is the durable mirror behind the in-memory cache.
type Repository interface {
	Upsert(progress *models.AnalysisProgress) error
	GetByUser(userID string) (*models.AnalysisProgress, error)
}

// Store is a concurrency-safe progress tracker.
type Store struct {
	mu     sync.RWMutex
	cache  map[string]*models.AnalysisProgress
	repo   Repository
	logger *log.Logger
}

// NewStore creates a Store backed by the given durable repository.
func NewStore(repo Repository, logger *log.Logger) *Store {
	return &Store{
		cache:  make(map[string]*models.AnalysisProgress),
		repo:   repo,
		logger: logger,
	}
}

// Start resets the user's progress to a fresh starting snapshot.
func (s *Store) Start(userID string) *models.AnalysisProgress {
	now := time.Now().UTC()
	snapshot := &models.AnalysisProgress{
		UserID:      userID,
		Status:      models.StatusStarting,
		CurrentStep: "Starting analysis",
		StartedAt:   &now,
		UpdatedAt:   now,
	}

	s.put(snapshot)
	return snapshot.Clone()
}

// Update records a step transition with counts. The percentage is derived
// from processed/total; a zero total leaves it at the previous floor for the
// status rather than dividing by zero.
func (s *Store) Update(userID string, status models.AnalysisStatus, step string, processed, total int) *models.AnalysisProgress {
	s.mu.Lock()
	current, ok := s.cache[userID]
	s.mu.Unlock()

	now := time.Now().UTC()
	snapshot := &models.AnalysisProgress{
		UserID:          userID,
		Status:          status,
		CurrentStep:     step,
		TracksProcessed: processed,
		TotalTracks:     total,
		UpdatedAt:       now,
	}
	if ok {
		snapshot.StartedAt = current.StartedAt
	}

	if total > 0 {
		snapshot.ProgressPercentage = processed * 100 / total
	} else if ok {
		snapshot.ProgressPercentage = current.ProgressPercentage
	}
	if snapshot.ProgressPercentage > 100 {
		snapshot.ProgressPercentage = 100
	}

	s.put(snapshot)
	return snapshot.Clone()
}

// Complete marks the run finished at 100 percent.
func (s *Store) Complete(userID string, step string, processed, total int) *models.AnalysisProgress {
	s.mu.Lock()
	current, ok := s.cache[userID]
	s.mu.Unlock()

	now := time.Now().UTC()
	snapshot := &models.AnalysisProgress{
		UserID:             userID,
		Status:             models.StatusCompleted,
		CurrentStep:        step,
		ProgressPercentage: 100,
		TracksProcessed:    processed,
		TotalTracks:        total,
		CompletedAt:        &now,
		UpdatedAt:          now,
	}
	if ok {
		snapshot.StartedAt = current.StartedAt
	}

	s.put(snapshot)
	return snapshot.Clone()
}

// SetError transitions the run to the failed terminal state.
func (s *Store) SetError(userID string, cause error) *models.AnalysisProgress {
	s.mu.Lock()
	current, ok := s.cache[userID]
	s.mu.Unlock()

	now := time.Now().UTC()
	msg := cause.Error()
	snapshot := &models.AnalysisProgress{
		UserID:       userID,
		Status:       models.StatusFailed,
		CurrentStep:  "Analysis failed",
		ErrorMessage: &msg,
		CompletedAt:  &now,
		UpdatedAt:    now,
	}
	if ok {
		snapshot.StartedAt = current.StartedAt
		snapshot.ProgressPercentage = current.ProgressPercentage
		snapshot.TracksProcessed = current.TracksProcessed
		snapshot.TotalTracks = current.TotalTracks
	}

	s.put(snapshot)
	return snapshot.Clone()
}

// Get returns the user's current snapshot. Cache misses fall back to the
// durable mirror and repopulate the cache; users with no history at all get
// the not-started sentinel, never an error.
func (s *Store) Get(userID string) (*models.AnalysisProgress, error) {
	s.mu.RLock()
	cached, ok := s.cache[userID]
	s.mu.RUnlock()
	if ok {
		return cached.Clone(), nil
	}

	stored, err := s.repo.GetByUser(userID)
	if err != nil {
		return nil, fmt.Errorf("failed to load progress: %w", err)
	}
	if stored == nil {
		return models.NotStartedProgress(userID), nil
	}

	s.mu.Lock()
	s.cache[userID] = stored.Clone()
	s.mu.Unlock()

	return stored.Clone(), nil
}

// Clear drops the user's cached snapshot. Idempotent; the durable record
// is untouched and persists until the next run overwrites it.
func (s *Store) Clear(userID string) {
	s.mu.Lock()
	delete(s.cache, userID)
	s.mu.Unlock()
}

// Active reports whether the user has an in-flight run.
func (s *Store) Active(userID string) bool {
	snapshot, err := s.Get(userID)
	if err != nil {
		return false
	}
	return snapshot.Status.Active()
}

// ListActive returns snapshots for every user with an in-flight run.
func (s *Store) ListActive() []*models.AnalysisProgress {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var active []*models.AnalysisProgress
	for _, snapshot := range s.cache {
		if snapshot.Status.Active() {
			active = append(active, snapshot.Clone())
		}
	}
	return active
}

// put stores the snapshot in the cache and mirrors it durably. Mirror
// failures are logged, not returned; polling reads must keep working even
// when the database write fails mid-run.
func (s *Store) put(snapshot *models.AnalysisProgress) {
	s.mu.Lock()
	s.cache[snapshot.UserID] = snapshot.Clone()
	s.mu.Unlock()

	if err := s.repo.Upsert(snapshot); err != nil && s.logger != nil {
		s.logger.Warn("failed to persist progress snapshot", "user_id", snapshot.UserID, "status", snapshot.Status, "error", err)
	}
}
