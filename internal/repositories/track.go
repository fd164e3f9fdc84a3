package repositories

import (
	"database/sql"
	"fmt"
	"time"

	"github.com/toquothty/spotify-nostalgic-recommend/internal/models"
	"github.com/toquothty/spotify-nostalgic-recommend/internal/shared"
)

const trackColumns = `id, sequence, user_id, spotify_id, name, artist_name, album_name, duration_ms, popularity, explicit,
		preview_url, external_url, image_url, added_at, release_date,
		acousticness, danceability, energy, instrumentalness, liveness, loudness, speechiness, tempo, valence,
		musical_key, mode, time_signature, features_defaulted, cluster_index, created_at, updated_at`

// TrackRepository implements models.Repository[*models.LibraryTrack] for saved library tracks.
//
// Library ingestion replaces a user's rows wholesale; cluster assignment
// updates only the cluster_index column.
type TrackRepository struct {
	db *sql.DB
}

// NewTrackRepository creates a new TrackRepository with the given database connection
func NewTrackRepository(db *sql.DB) *TrackRepository {
	return &TrackRepository{db: db}
}

// Create inserts a new [models.LibraryTrack] into the database with generated ID and sequence
func (r *TrackRepository) Create(track *models.LibraryTrack) error {
	sequence, err := NextSequence(r.db, "tracks")
	if err != nil {
		return fmt.Errorf("failed to generate sequence: %w", err)
	}

	id := shared.GenerateID()
	track.SetID(id)
	track.SetSequence(sequence)

	if err := track.Validate(); err != nil {
		return fmt.Errorf("validation failed: %w", err)
	}

	if _, err := r.insert(r.db, track); err != nil {
		return fmt.Errorf("failed to insert track: %w", err)
	}

	return nil
}

// ReplaceLibrary replaces all of a user's library tracks in a single transaction.
//
// A fresh analysis run always ingests the full library, so stale rows from the
// previous run are deleted first.
func (r *TrackRepository) ReplaceLibrary(userID string, tracks []*models.LibraryTrack) error {
	tx, err := r.db.Begin()
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.Exec("DELETE FROM tracks WHERE user_id = ?", userID); err != nil {
		return fmt.Errorf("failed to clear library: %w", err)
	}

	for _, track := range tracks {
		sequence, err := nextSequenceTx(tx, "tracks")
		if err != nil {
			return fmt.Errorf("failed to generate sequence: %w", err)
		}

		track.SetID(shared.GenerateID())
		track.SetSequence(sequence)

		if err := track.Validate(); err != nil {
			return fmt.Errorf("validation failed: %w", err)
		}

		if _, err := r.insert(tx, track); err != nil {
			return fmt.Errorf("failed to insert track %s: %w", track.Info().SpotifyID, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit library replacement: %w", err)
	}

	return nil
}

// Get retrieves a track by ID
func (r *TrackRepository) Get(id string) (*models.LibraryTrack, error) {
	query := fmt.Sprintf("SELECT %s FROM tracks WHERE id = ?", trackColumns)
	return scanTrack(r.db.QueryRow(query, id))
}

// ListByUser retrieves all of a user's library tracks ordered by insertion
func (r *TrackRepository) ListByUser(userID string) ([]*models.LibraryTrack, error) {
	return r.List(map[string]any{"user_id": userID})
}

// ListByCluster retrieves a user's tracks assigned to the given cluster
func (r *TrackRepository) ListByCluster(userID string, clusterIndex int) ([]*models.LibraryTrack, error) {
	return r.List(map[string]any{"user_id": userID, "cluster_index": clusterIndex})
}

// CountByUser returns the number of stored library tracks for a user
func (r *TrackRepository) CountByUser(userID string) (int, error) {
	var count int
	err := r.db.QueryRow("SELECT COUNT(*) FROM tracks WHERE user_id = ?", userID).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("failed to count tracks: %w", err)
	}
	return count, nil
}

// AssignClusters stores cluster membership for a user's tracks in one transaction.
//
// Assignments map track id to cluster index; tracks absent from the map have
// their cluster_index cleared.
func (r *TrackRepository) AssignClusters(userID string, assignments map[string]int) error {
	tx, err := r.db.Begin()
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.Exec("UPDATE tracks SET cluster_index = NULL WHERE user_id = ?", userID); err != nil {
		return fmt.Errorf("failed to clear cluster assignments: %w", err)
	}

	for trackID, clusterIndex := range assignments {
		_, err := tx.Exec("UPDATE tracks SET cluster_index = ? WHERE id = ? AND user_id = ?", clusterIndex, trackID, userID)
		if err != nil {
			return fmt.Errorf("failed to assign cluster for track %s: %w", trackID, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit cluster assignments: %w", err)
	}

	return nil
}

// Update modifies an existing track in the database
func (r *TrackRepository) Update(track *models.LibraryTrack) error {
	if err := track.Validate(); err != nil {
		return fmt.Errorf("validation failed: %w", err)
	}

	now := time.Now()
	track.SetUpdatedAt(now)

	info := track.Info()
	features := featureColumns(info)

	query := `
		UPDATE tracks
		SET name = ?, artist_name = ?, album_name = ?, popularity = ?,
			acousticness = ?, danceability = ?, energy = ?, instrumentalness = ?, liveness = ?,
			loudness = ?, speechiness = ?, tempo = ?, valence = ?,
			musical_key = ?, mode = ?, time_signature = ?, features_defaulted = ?,
			cluster_index = ?, updated_at = ?
		WHERE id = ?
	`

	args := []any{info.Name, info.ArtistName, info.AlbumName, info.Popularity}
	args = append(args, features...)
	args = append(args, info.FeaturesDefaulted, track.ClusterIndex(), now, track.ID())

	result, err := r.db.Exec(query, args...)
	if err != nil {
		return fmt.Errorf("failed to update track: %w", err)
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get affected rows: %w", err)
	}
	if rows == 0 {
		return fmt.Errorf("%w: %s", shared.ErrTrackNotFound, track.ID())
	}

	return nil
}

// Delete removes a track by ID
func (r *TrackRepository) Delete(id string) error {
	result, err := r.db.Exec("DELETE FROM tracks WHERE id = ?", id)
	if err != nil {
		return fmt.Errorf("failed to delete track: %w", err)
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get affected rows: %w", err)
	}
	if rows == 0 {
		return fmt.Errorf("%w: %s", shared.ErrTrackNotFound, id)
	}

	return nil
}

// List retrieves all tracks matching the given criteria
func (r *TrackRepository) List(criteria map[string]any) ([]*models.LibraryTrack, error) {
	query := fmt.Sprintf("SELECT %s FROM tracks WHERE 1=1", trackColumns)

	args := []any{}

	if userID, ok := criteria["user_id"].(string); ok && userID != "" {
		query += " AND user_id = ?"
		args = append(args, userID)
	}

	if clusterIndex, ok := criteria["cluster_index"].(int); ok {
		query += " AND cluster_index = ?"
		args = append(args, clusterIndex)
	}

	query += " ORDER BY sequence ASC"

	rows, err := r.db.Query(query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query tracks: %w", err)
	}
	defer rows.Close()

	var tracks []*models.LibraryTrack
	for rows.Next() {
		track, err := scanTrackRow(rows)
		if err != nil {
			return nil, err
		}
		tracks = append(tracks, track)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("row iteration error: %w", err)
	}

	return tracks, nil
}

// insert writes one track row through either the pool or a transaction.
func (r *TrackRepository) insert(execer interface {
	Exec(query string, args ...any) (sql.Result, error)
}, track *models.LibraryTrack) (sql.Result, error) {
	info := track.Info()
	features := featureColumns(info)

	query := fmt.Sprintf(`
		INSERT INTO tracks (%s)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`, trackColumns)

	args := []any{
		track.ID(),
		track.Sequence(),
		track.UserID(),
		info.SpotifyID,
		info.Name,
		info.ArtistName,
		info.AlbumName,
		info.DurationMS,
		info.Popularity,
		info.Explicit,
		info.PreviewURL,
		info.ExternalURL,
		info.ImageURL,
		info.AddedAt,
		info.ReleaseDate,
	}
	args = append(args, features...)
	args = append(args, info.FeaturesDefaulted, track.ClusterIndex(), track.CreatedAt(), track.UpdatedAt())

	return execer.Exec(query, args...)
}

// featureColumns returns the twelve feature column values, NULL when absent.
func featureColumns(info models.TrackInfo) []any {
	if info.Features == nil {
		return []any{nil, nil, nil, nil, nil, nil, nil, nil, nil, nil, nil, nil}
	}

	f := info.Features
	return []any{
		f.Acousticness, f.Danceability, f.Energy, f.Instrumentalness, f.Liveness,
		f.Loudness, f.Speechiness, f.Tempo, f.Valence,
		f.Key, f.Mode, f.TimeSignature,
	}
}

// scanTrack scans a single [sql.Row] into a [models.LibraryTrack]
func scanTrack(row *sql.Row) (*models.LibraryTrack, error) {
	track, err := scanTrackFrom(row.Scan)
	if err == sql.ErrNoRows {
		return nil, shared.ErrTrackNotFound
	}
	return track, err
}

// scanTrackRow scans a row from [sql.Rows] into a [models.LibraryTrack]
func scanTrackRow(rows *sql.Rows) (*models.LibraryTrack, error) {
	return scanTrackFrom(rows.Scan)
}

func scanTrackFrom(scan func(dest ...any) error) (*models.LibraryTrack, error) {
	var (
		id           string
		sequence     int
		userID       string
		spotifyID    string
		name         string
		artistName   string
		albumName    sql.NullString
		durationMS   sql.NullInt64
		popularity   sql.NullInt64
		explicit     bool
		previewURL   sql.NullString
		externalURL  sql.NullString
		imageURL     sql.NullString
		addedAt      sql.NullTime
		releaseDate  sql.NullString
		dims         [9]sql.NullFloat64
		musicalKey   sql.NullInt64
		mode         sql.NullInt64
		timeSig      sql.NullInt64
		defaulted    bool
		clusterIndex sql.NullInt64
		createdAt    time.Time
		updatedAt    time.Time
	)

	err := scan(
		&id, &sequence, &userID, &spotifyID, &name, &artistName, &albumName, &durationMS, &popularity, &explicit,
		&previewURL, &externalURL, &imageURL, &addedAt, &releaseDate,
		&dims[0], &dims[1], &dims[2], &dims[3], &dims[4], &dims[5], &dims[6], &dims[7], &dims[8],
		&musicalKey, &mode, &timeSig, &defaulted, &clusterIndex, &createdAt, &updatedAt,
	)
	if err == sql.ErrNoRows {
		return nil, err
	}
	if err != nil {
		return nil, fmt.Errorf("failed to scan track: %w", err)
	}

	info := models.TrackInfo{
		SpotifyID:         spotifyID,
		Name:              name,
		ArtistName:        artistName,
		AlbumName:         albumName.String,
		DurationMS:        int(durationMS.Int64),
		Popularity:        int(popularity.Int64),
		Explicit:          explicit,
		PreviewURL:        previewURL.String,
		ExternalURL:       externalURL.String,
		ImageURL:          imageURL.String,
		ReleaseDate:       releaseDate.String,
		FeaturesDefaulted: defaulted,
	}
	if addedAt.Valid {
		info.AddedAt = &addedAt.Time
	}

	// Feature columns are all-or-nothing; acousticness stands in for the set.
	if dims[0].Valid {
		var values [9]float64
		for i := range dims {
			values[i] = dims[i].Float64
		}
		vector := models.VectorFromDims(values)
		vector.Key = int(musicalKey.Int64)
		vector.Mode = int(mode.Int64)
		vector.TimeSignature = int(timeSig.Int64)
		info.Features = &vector
	}

	track := models.NewLibraryTrack(sequence, userID, info)
	track.SetID(id)
	track.SetCreatedAt(createdAt)
	track.SetUpdatedAt(updatedAt)
	if clusterIndex.Valid {
		idx := int(clusterIndex.Int64)
		track.SetClusterIndex(&idx)
	}

	return track, nil
}
