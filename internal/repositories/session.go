package repositories

import (
	"database/sql"
	"fmt"
	"time"

	"github.com/toquothty/spotify-nostalgic-recommend/internal/models"
	"github.com/toquothty/spotify-nostalgic-recommend/internal/shared"
)

// SessionRepository implements [models.Repository] for [models.Session] persistence.
//
// The session id doubles as the client-facing bearer token, so lookups go
// through Get rather than a separate token column.
type SessionRepository struct {
	db *sql.DB
}

// NewSessionRepository creates a new [SessionRepository] with the given database connection
func NewSessionRepository(db *sql.DB) *SessionRepository {
	return &SessionRepository{db: db}
}

// Create inserts a new session into the database with generated ID and sequence
func (r *SessionRepository) Create(session *models.Session) error {
	sequence, err := NextSequence(r.db, "sessions")
	if err != nil {
		return fmt.Errorf("failed to generate sequence: %w", err)
	}

	id := shared.GenerateID()
	session.SetID(id)
	session.SetSequence(sequence)

	if err := session.Validate(); err != nil {
		return fmt.Errorf("validation failed: %w", err)
	}

	query := `
		INSERT INTO sessions (id, sequence, user_id, access_token, refresh_token, token_expires_at, last_recommendation_at, recommendation_count_today, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`

	_, err = r.db.Exec(query,
		id,
		sequence,
		session.UserID(),
		session.AccessToken(),
		session.RefreshToken(),
		session.TokenExpiresAt(),
		session.LastRecommendationAt(),
		session.RecommendationCountToday(),
		session.CreatedAt(),
		session.UpdatedAt(),
	)
	if err != nil {
		return fmt.Errorf("failed to insert session: %w", err)
	}

	return nil
}

// Get retrieves a session by ID
func (r *SessionRepository) Get(id string) (*models.Session, error) {
	query := `
		SELECT id, sequence, user_id, access_token, refresh_token, token_expires_at, last_recommendation_at, recommendation_count_today, created_at, updated_at
		FROM sessions
		WHERE id = ?
	`

	return r.scanOne(r.db.QueryRow(query, id))
}

// GetByUser retrieves the most recent session for a user
func (r *SessionRepository) GetByUser(userID string) (*models.Session, error) {
	query := `
		SELECT id, sequence, user_id, access_token, refresh_token, token_expires_at, last_recommendation_at, recommendation_count_today, created_at, updated_at
		FROM sessions
		WHERE user_id = ?
		ORDER BY sequence DESC
		LIMIT 1
	`

	return r.scanOne(r.db.QueryRow(query, userID))
}

// Update modifies an existing session in the database
func (r *SessionRepository) Update(session *models.Session) error {
	if err := session.Validate(); err != nil {
		return fmt.Errorf("validation failed: %w", err)
	}

	now := time.Now()
	session.SetUpdatedAt(now)

	query := `
		UPDATE sessions
		SET access_token = ?, refresh_token = ?, token_expires_at = ?, last_recommendation_at = ?, recommendation_count_today = ?, updated_at = ?
		WHERE id = ?
	`

	result, err := r.db.Exec(query,
		session.AccessToken(),
		session.RefreshToken(),
		session.TokenExpiresAt(),
		session.LastRecommendationAt(),
		session.RecommendationCountToday(),
		now,
		session.ID(),
	)
	if err != nil {
		return fmt.Errorf("failed to update session: %w", err)
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get affected rows: %w", err)
	}
	if rows == 0 {
		return fmt.Errorf("%w: %s", shared.ErrSessionNotFound, session.ID())
	}

	return nil
}

// Delete removes a session by ID
func (r *SessionRepository) Delete(id string) error {
	result, err := r.db.Exec("DELETE FROM sessions WHERE id = ?", id)
	if err != nil {
		return fmt.Errorf("failed to delete session: %w", err)
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get affected rows: %w", err)
	}
	if rows == 0 {
		return fmt.Errorf("%w: %s", shared.ErrSessionNotFound, id)
	}

	return nil
}

// List retrieves all sessions matching the given criteria
func (r *SessionRepository) List(criteria map[string]any) ([]*models.Session, error) {
	query := `
		SELECT id, sequence, user_id, access_token, refresh_token, token_expires_at, last_recommendation_at, recommendation_count_today, created_at, updated_at
		FROM sessions
	`

	args := []any{}

	if userID, ok := criteria["user_id"].(string); ok && userID != "" {
		query += " WHERE user_id = ?"
		args = append(args, userID)
	}

	query += " ORDER BY sequence ASC"

	rows, err := r.db.Query(query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query sessions: %w", err)
	}
	defer rows.Close()

	var sessions []*models.Session
	for rows.Next() {
		session, err := r.scanRow(rows)
		if err != nil {
			return nil, err
		}
		sessions = append(sessions, session)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("row iteration error: %w", err)
	}

	return sessions, nil
}

// scanOne scans a single [sql.Row] into a [models.Session]
func (r *SessionRepository) scanOne(row *sql.Row) (*models.Session, error) {
	var (
		id             string
		sequence       int
		userID         string
		accessToken    string
		refreshToken   string
		tokenExpiresAt time.Time
		lastRecAt      sql.NullTime
		countToday     int
		createdAt      time.Time
		updatedAt      time.Time
	)

	err := row.Scan(&id, &sequence, &userID, &accessToken, &refreshToken, &tokenExpiresAt, &lastRecAt, &countToday, &createdAt, &updatedAt)
	if err == sql.ErrNoRows {
		return nil, shared.ErrSessionNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to scan session: %w", err)
	}

	return buildSession(id, sequence, userID, accessToken, refreshToken, tokenExpiresAt, lastRecAt, countToday, createdAt, updatedAt), nil
}

// scanRow scans a row from [sql.Rows] into a [models.Session]
func (r *SessionRepository) scanRow(rows *sql.Rows) (*models.Session, error) {
	var (
		id             string
		sequence       int
		userID         string
		accessToken    string
		refreshToken   string
		tokenExpiresAt time.Time
		lastRecAt      sql.NullTime
		countToday     int
		createdAt      time.Time
		updatedAt      time.Time
	)

	err := rows.Scan(&id, &sequence, &userID, &accessToken, &refreshToken, &tokenExpiresAt, &lastRecAt, &countToday, &createdAt, &updatedAt)
	if err != nil {
		return nil, fmt.Errorf("failed to scan session: %w", err)
	}

	return buildSession(id, sequence, userID, accessToken, refreshToken, tokenExpiresAt, lastRecAt, countToday, createdAt, updatedAt), nil
}

func buildSession(id string, sequence int, userID, accessToken, refreshToken string, tokenExpiresAt time.Time, lastRecAt sql.NullTime, countToday int, createdAt, updatedAt time.Time) *models.Session {
	session := models.NewSession(sequence, userID, accessToken, refreshToken, tokenExpiresAt)
	session.SetID(id)
	session.SetCreatedAt(createdAt)
	session.SetUpdatedAt(updatedAt)

	var last *time.Time
	if lastRecAt.Valid {
		last = &lastRecAt.Time
	}
	session.SetRateLimitState(last, countToday)

	return session
}
