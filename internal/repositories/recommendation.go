package repositories

import (
	"database/sql"
	"fmt"
	"time"

	"github.com/toquothty/spotify-nostalgic-recommend/internal/models"
	"github.com/toquothty/spotify-nostalgic-recommend/internal/shared"
)

const recommendationColumns = `id, sequence, user_id, spotify_track_id, track_name, artist_name, album_name,
		preview_url, external_url, image_url, kind, source_cluster_index, confidence,
		user_liked, user_already_knew, user_feedback_at, created_at`

// RecommendationRepository implements models.Repository[*models.Recommendation].
//
// Rows are append-only apart from feedback, which is written once through
// SetFeedback. The (user_id, spotify_track_id) unique constraint backs the
// never-recommend-twice rule.
type RecommendationRepository struct {
	db *sql.DB
}

// NewRecommendationRepository creates a new RecommendationRepository with the given database connection
func NewRecommendationRepository(db *sql.DB) *RecommendationRepository {
	return &RecommendationRepository{db: db}
}

// Create inserts a new [models.Recommendation] into the database with generated ID and sequence
func (r *RecommendationRepository) Create(rec *models.Recommendation) error {
	sequence, err := NextSequence(r.db, "recommendations")
	if err != nil {
		return fmt.Errorf("failed to generate sequence: %w", err)
	}

	id := shared.GenerateID()
	rec.SetID(id)
	rec.SetSequence(sequence)

	if err := rec.Validate(); err != nil {
		return fmt.Errorf("validation failed: %w", err)
	}

	query := fmt.Sprintf(`
		INSERT INTO recommendations (%s)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`, recommendationColumns)

	_, err = r.db.Exec(query,
		id,
		sequence,
		rec.UserID(),
		rec.SpotifyTrackID(),
		rec.TrackName(),
		rec.ArtistName(),
		rec.AlbumName(),
		rec.PreviewURL(),
		rec.ExternalURL(),
		rec.ImageURL(),
		string(rec.Kind()),
		rec.SourceClusterIndex(),
		rec.Confidence(),
		rec.Liked(),
		rec.AlreadyKnew(),
		rec.FeedbackAt(),
		rec.CreatedAt(),
	)
	if err != nil {
		return fmt.Errorf("failed to insert recommendation: %w", err)
	}

	return nil
}

// Get retrieves a recommendation by ID
func (r *RecommendationRepository) Get(id string) (*models.Recommendation, error) {
	query := fmt.Sprintf("SELECT %s FROM recommendations WHERE id = ?", recommendationColumns)

	rec, err := scanRecommendationFrom(r.db.QueryRow(query, id).Scan)
	if err == sql.ErrNoRows {
		return nil, fmt.Errorf("recommendation not found: %s", id)
	}
	return rec, err
}

// Exists reports whether the track was ever recommended to the user.
func (r *RecommendationRepository) Exists(userID, spotifyTrackID string) (bool, error) {
	var count int
	err := r.db.QueryRow(
		"SELECT COUNT(*) FROM recommendations WHERE user_id = ? AND spotify_track_id = ?",
		userID, spotifyTrackID,
	).Scan(&count)
	if err != nil {
		return false, fmt.Errorf("failed to check recommendation existence: %w", err)
	}
	return count > 0, nil
}

// CountByUser returns the number of stored recommendations for a user
func (r *RecommendationRepository) CountByUser(userID string) (int, error) {
	var count int
	err := r.db.QueryRow("SELECT COUNT(*) FROM recommendations WHERE user_id = ?", userID).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("failed to count recommendations: %w", err)
	}
	return count, nil
}

// RecommendedTrackIDs returns every track id ever recommended to the user.
func (r *RecommendationRepository) RecommendedTrackIDs(userID string) (map[string]bool, error) {
	rows, err := r.db.Query("SELECT spotify_track_id FROM recommendations WHERE user_id = ?", userID)
	if err != nil {
		return nil, fmt.Errorf("failed to query recommended tracks: %w", err)
	}
	defer rows.Close()

	ids := make(map[string]bool)
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("failed to scan track id: %w", err)
		}
		ids[id] = true
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("row iteration error: %w", err)
	}

	return ids, nil
}

// ListByUser retrieves a user's recommendation history, newest first.
// A zero limit returns the full history.
func (r *RecommendationRepository) ListByUser(userID string, limit int) ([]*models.Recommendation, error) {
	query := fmt.Sprintf("SELECT %s FROM recommendations WHERE user_id = ? ORDER BY sequence DESC", recommendationColumns)
	args := []any{userID}

	if limit > 0 {
		query += " LIMIT ?"
		args = append(args, limit)
	}

	return r.queryMany(query, args...)
}

// Update writes back feedback fields for an existing recommendation.
func (r *RecommendationRepository) Update(rec *models.Recommendation) error {
	if err := rec.Validate(); err != nil {
		return fmt.Errorf("validation failed: %w", err)
	}

	query := `
		UPDATE recommendations
		SET user_liked = ?, user_already_knew = ?, user_feedback_at = ?
		WHERE id = ?
	`

	result, err := r.db.Exec(query, rec.Liked(), rec.AlreadyKnew(), rec.FeedbackAt(), rec.ID())
	if err != nil {
		return fmt.Errorf("failed to update recommendation: %w", err)
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get affected rows: %w", err)
	}
	if rows == 0 {
		return fmt.Errorf("recommendation not found: %s", rec.ID())
	}

	return nil
}

// Delete removes a recommendation by ID
func (r *RecommendationRepository) Delete(id string) error {
	result, err := r.db.Exec("DELETE FROM recommendations WHERE id = ?", id)
	if err != nil {
		return fmt.Errorf("failed to delete recommendation: %w", err)
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get affected rows: %w", err)
	}
	if rows == 0 {
		return fmt.Errorf("recommendation not found: %s", id)
	}

	return nil
}

// List retrieves all recommendations matching the given criteria
func (r *RecommendationRepository) List(criteria map[string]any) ([]*models.Recommendation, error) {
	query := fmt.Sprintf("SELECT %s FROM recommendations WHERE 1=1", recommendationColumns)

	args := []any{}

	if userID, ok := criteria["user_id"].(string); ok && userID != "" {
		query += " AND user_id = ?"
		args = append(args, userID)
	}

	if kind, ok := criteria["kind"].(string); ok && kind != "" {
		query += " AND kind = ?"
		args = append(args, kind)
	}

	query += " ORDER BY sequence ASC"

	return r.queryMany(query, args...)
}

func (r *RecommendationRepository) queryMany(query string, args ...any) ([]*models.Recommendation, error) {
	rows, err := r.db.Query(query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query recommendations: %w", err)
	}
	defer rows.Close()

	var recs []*models.Recommendation
	for rows.Next() {
		rec, err := scanRecommendationFrom(rows.Scan)
		if err != nil {
			return nil, err
		}
		recs = append(recs, rec)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("row iteration error: %w", err)
	}

	return recs, nil
}

func scanRecommendationFrom(scan func(dest ...any) error) (*models.Recommendation, error) {
	var (
		id            string
		sequence      int
		userID        string
		trackID       string
		trackName     string
		artistName    string
		albumName     sql.NullString
		previewURL    sql.NullString
		externalURL   sql.NullString
		imageURL      sql.NullString
		kind          string
		sourceCluster sql.NullInt64
		confidence    float64
		liked         sql.NullBool
		alreadyKnew   sql.NullBool
		feedbackAt    sql.NullTime
		createdAt     time.Time
	)

	err := scan(
		&id, &sequence, &userID, &trackID, &trackName, &artistName, &albumName,
		&previewURL, &externalURL, &imageURL, &kind, &sourceCluster, &confidence,
		&liked, &alreadyKnew, &feedbackAt, &createdAt,
	)
	if err == sql.ErrNoRows {
		return nil, err
	}
	if err != nil {
		return nil, fmt.Errorf("failed to scan recommendation: %w", err)
	}

	info := models.TrackInfo{
		SpotifyID:   trackID,
		Name:        trackName,
		ArtistName:  artistName,
		AlbumName:   albumName.String,
		PreviewURL:  previewURL.String,
		ExternalURL: externalURL.String,
		ImageURL:    imageURL.String,
	}

	var source *int
	if sourceCluster.Valid {
		idx := int(sourceCluster.Int64)
		source = &idx
	}

	rec := models.NewRecommendation(sequence, userID, info, models.RecommendationKind(kind), source, confidence)
	rec.SetID(id)
	rec.SetCreatedAt(createdAt)

	var likedPtr, knewPtr *bool
	if liked.Valid {
		likedPtr = &liked.Bool
	}
	if alreadyKnew.Valid {
		knewPtr = &alreadyKnew.Bool
	}
	var feedbackPtr *time.Time
	if feedbackAt.Valid {
		feedbackPtr = &feedbackAt.Time
	}
	rec.SetStoredFeedback(likedPtr, knewPtr, feedbackPtr)

	return rec, nil
}
