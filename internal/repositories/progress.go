package repositories

import (
	"database/sql"
	"fmt"
	"time"

	"github.com/toquothty/spotify-nostalgic-recommend/internal/models"
)

// ProgressRepository persists analysis progress snapshots, one row per user.
//
// Unlike the entity repositories this is keyed by user id with upsert
// semantics; there is no generated id or sequence.
type ProgressRepository struct {
	db *sql.DB
}

// NewProgressRepository creates a new ProgressRepository with the given database connection
func NewProgressRepository(db *sql.DB) *ProgressRepository {
	return &ProgressRepository{db: db}
}

// Upsert inserts or replaces the user's progress snapshot.
func (r *ProgressRepository) Upsert(progress *models.AnalysisProgress) error {
	query := `
		INSERT INTO analysis_progress (user_id, status, current_step, progress_percentage, tracks_processed, total_tracks, error_message, started_at, completed_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(user_id) DO UPDATE SET
			status = excluded.status,
			current_step = excluded.current_step,
			progress_percentage = excluded.progress_percentage,
			tracks_processed = excluded.tracks_processed,
			total_tracks = excluded.total_tracks,
			error_message = excluded.error_message,
			started_at = excluded.started_at,
			completed_at = excluded.completed_at,
			updated_at = excluded.updated_at
	`

	_, err := r.db.Exec(query,
		progress.UserID,
		string(progress.Status),
		progress.CurrentStep,
		progress.ProgressPercentage,
		progress.TracksProcessed,
		progress.TotalTracks,
		progress.ErrorMessage,
		progress.StartedAt,
		progress.CompletedAt,
		progress.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to upsert progress: %w", err)
	}

	return nil
}

// GetByUser retrieves the user's progress snapshot, or nil when none exists.
func (r *ProgressRepository) GetByUser(userID string) (*models.AnalysisProgress, error) {
	query := `
		SELECT user_id, status, current_step, progress_percentage, tracks_processed, total_tracks, error_message, started_at, completed_at, updated_at
		FROM analysis_progress
		WHERE user_id = ?
	`

	var (
		id           string
		status       string
		currentStep  sql.NullString
		percentage   int
		processed    int
		total        int
		errorMessage sql.NullString
		startedAt    sql.NullTime
		completedAt  sql.NullTime
		updatedAt    time.Time
	)

	err := r.db.QueryRow(query, userID).Scan(&id, &status, &currentStep, &percentage, &processed, &total, &errorMessage, &startedAt, &completedAt, &updatedAt)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to query progress: %w", err)
	}

	progress := &models.AnalysisProgress{
		UserID:             id,
		Status:             models.AnalysisStatus(status),
		CurrentStep:        currentStep.String,
		ProgressPercentage: percentage,
		TracksProcessed:    processed,
		TotalTracks:        total,
		UpdatedAt:          updatedAt,
	}
	if errorMessage.Valid {
		progress.ErrorMessage = &errorMessage.String
	}
	if startedAt.Valid {
		progress.StartedAt = &startedAt.Time
	}
	if completedAt.Valid {
		progress.CompletedAt = &completedAt.Time
	}

	return progress, nil
}
