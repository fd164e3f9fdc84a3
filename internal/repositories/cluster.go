package repositories

import (
	"database/sql"
	"fmt"
	"time"

	"github.com/toquothty/spotify-nostalgic-recommend/internal/models"
	"github.com/toquothty/spotify-nostalgic-recommend/internal/shared"
)

// ClusterRepository implements models.Repository[*models.TasteCluster].
//
// Clusters for a user are recreated wholesale on each analysis run via
// ReplaceAll; individual rows are never updated after creation.
type ClusterRepository struct {
	db *sql.DB
}

// NewClusterRepository creates a new ClusterRepository with the given database connection
func NewClusterRepository(db *sql.DB) *ClusterRepository {
	return &ClusterRepository{db: db}
}

// Create inserts a new [models.TasteCluster] into the database with generated ID and sequence
func (r *ClusterRepository) Create(cluster *models.TasteCluster) error {
	sequence, err := NextSequence(r.db, "clusters")
	if err != nil {
		return fmt.Errorf("failed to generate sequence: %w", err)
	}

	id := shared.GenerateID()
	cluster.SetID(id)
	cluster.SetSequence(sequence)

	if err := cluster.Validate(); err != nil {
		return fmt.Errorf("validation failed: %w", err)
	}

	if _, err := r.insert(r.db, cluster); err != nil {
		return fmt.Errorf("failed to insert cluster: %w", err)
	}

	return nil
}

// ReplaceAll atomically swaps a user's cluster set for a new one.
func (r *ClusterRepository) ReplaceAll(userID string, clusters []*models.TasteCluster) error {
	tx, err := r.db.Begin()
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.Exec("DELETE FROM clusters WHERE user_id = ?", userID); err != nil {
		return fmt.Errorf("failed to clear clusters: %w", err)
	}

	for _, cluster := range clusters {
		sequence, err := nextSequenceTx(tx, "clusters")
		if err != nil {
			return fmt.Errorf("failed to generate sequence: %w", err)
		}

		cluster.SetID(shared.GenerateID())
		cluster.SetSequence(sequence)

		if err := cluster.Validate(); err != nil {
			return fmt.Errorf("validation failed: %w", err)
		}

		if _, err := r.insert(tx, cluster); err != nil {
			return fmt.Errorf("failed to insert cluster %d: %w", cluster.Index(), err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit cluster replacement: %w", err)
	}

	return nil
}

// Get retrieves a cluster by ID
func (r *ClusterRepository) Get(id string) (*models.TasteCluster, error) {
	query := `
		SELECT id, sequence, user_id, cluster_index, label, description, track_count,
			acousticness, danceability, energy, instrumentalness, liveness, loudness, speechiness, tempo, valence,
			created_at
		FROM clusters
		WHERE id = ?
	`

	return scanCluster(r.db.QueryRow(query, id))
}

// ListByUser retrieves a user's clusters ordered by cluster index
func (r *ClusterRepository) ListByUser(userID string) ([]*models.TasteCluster, error) {
	return r.List(map[string]any{"user_id": userID})
}

// Update is unsupported; clusters are replaced wholesale on re-analysis.
func (r *ClusterRepository) Update(cluster *models.TasteCluster) error {
	return fmt.Errorf("%w: clusters are recreated, not updated", shared.ErrNotImplemented)
}

// Delete removes a cluster by ID
func (r *ClusterRepository) Delete(id string) error {
	result, err := r.db.Exec("DELETE FROM clusters WHERE id = ?", id)
	if err != nil {
		return fmt.Errorf("failed to delete cluster: %w", err)
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get affected rows: %w", err)
	}
	if rows == 0 {
		return fmt.Errorf("cluster not found: %s", id)
	}

	return nil
}

// List retrieves all clusters matching the given criteria
func (r *ClusterRepository) List(criteria map[string]any) ([]*models.TasteCluster, error) {
	query := `
		SELECT id, sequence, user_id, cluster_index, label, description, track_count,
			acousticness, danceability, energy, instrumentalness, liveness, loudness, speechiness, tempo, valence,
			created_at
		FROM clusters
		WHERE 1=1
	`

	args := []any{}

	if userID, ok := criteria["user_id"].(string); ok && userID != "" {
		query += " AND user_id = ?"
		args = append(args, userID)
	}

	query += " ORDER BY cluster_index ASC"

	rows, err := r.db.Query(query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query clusters: %w", err)
	}
	defer rows.Close()

	var clusters []*models.TasteCluster
	for rows.Next() {
		cluster, err := scanClusterRow(rows)
		if err != nil {
			return nil, err
		}
		clusters = append(clusters, cluster)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("row iteration error: %w", err)
	}

	return clusters, nil
}

func (r *ClusterRepository) insert(execer interface {
	Exec(query string, args ...any) (sql.Result, error)
}, cluster *models.TasteCluster) (sql.Result, error) {
	centroid := cluster.Centroid()

	query := `
		INSERT INTO clusters (id, sequence, user_id, cluster_index, label, description, track_count,
			acousticness, danceability, energy, instrumentalness, liveness, loudness, speechiness, tempo, valence,
			created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`

	return execer.Exec(query,
		cluster.ID(),
		cluster.Sequence(),
		cluster.UserID(),
		cluster.Index(),
		cluster.Label(),
		cluster.Description(),
		cluster.TrackCount(),
		centroid.Acousticness,
		centroid.Danceability,
		centroid.Energy,
		centroid.Instrumentalness,
		centroid.Liveness,
		centroid.Loudness,
		centroid.Speechiness,
		centroid.Tempo,
		centroid.Valence,
		cluster.CreatedAt(),
	)
}

// scanCluster scans a single [sql.Row] into a [models.TasteCluster]
func scanCluster(row *sql.Row) (*models.TasteCluster, error) {
	cluster, err := scanClusterFrom(row.Scan)
	if err == sql.ErrNoRows {
		return nil, fmt.Errorf("cluster not found")
	}
	return cluster, err
}

// scanClusterRow scans a row from [sql.Rows] into a [models.TasteCluster]
func scanClusterRow(rows *sql.Rows) (*models.TasteCluster, error) {
	return scanClusterFrom(rows.Scan)
}

func scanClusterFrom(scan func(dest ...any) error) (*models.TasteCluster, error) {
	var (
		id           string
		sequence     int
		userID       string
		clusterIndex int
		label        string
		description  sql.NullString
		trackCount   int
		dims         [9]float64
		createdAt    time.Time
	)

	err := scan(
		&id, &sequence, &userID, &clusterIndex, &label, &description, &trackCount,
		&dims[0], &dims[1], &dims[2], &dims[3], &dims[4], &dims[5], &dims[6], &dims[7], &dims[8],
		&createdAt,
	)
	if err == sql.ErrNoRows {
		return nil, err
	}
	if err != nil {
		return nil, fmt.Errorf("failed to scan cluster: %w", err)
	}

	centroid := models.VectorFromDims(dims)
	cluster := models.NewTasteCluster(sequence, userID, clusterIndex, label, centroid, trackCount)
	cluster.SetID(id)
	cluster.SetDescription(description.String)
	cluster.SetCreatedAt(createdAt)

	return cluster, nil
}
