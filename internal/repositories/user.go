package repositories

import (
	"database/sql"
	"fmt"
	"time"

	"github.com/toquothty/spotify-nostalgic-recommend/internal/models"
	"github.com/toquothty/spotify-nostalgic-recommend/internal/shared"
)

// UserRepository implements [models.Repository] for [models.User] persistence.
type UserRepository struct {
	db *sql.DB
}

// NewUserRepository creates a new [UserRepository] with the given database connection
func NewUserRepository(db *sql.DB) *UserRepository {
	return &UserRepository{db: db}
}

// Create inserts a new user into the database with generated ID and sequence
func (r *UserRepository) Create(user *models.User) error {
	sequence, err := NextSequence(r.db, "users")
	if err != nil {
		return fmt.Errorf("failed to generate sequence: %w", err)
	}

	id := shared.GenerateID()
	user.SetID(id)
	user.SetSequence(sequence)

	if err := user.Validate(); err != nil {
		return fmt.Errorf("validation failed: %w", err)
	}

	query := `
		INSERT INTO users (id, sequence, spotify_id, display_name, email, country, date_of_birth, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
	`

	_, err = r.db.Exec(query,
		id,
		sequence,
		user.SpotifyID(),
		user.DisplayName(),
		user.Email(),
		user.Country(),
		user.DateOfBirth(),
		user.CreatedAt(),
		user.UpdatedAt(),
	)
	if err != nil {
		return fmt.Errorf("failed to insert user: %w", err)
	}

	return nil
}

// Get retrieves a user by ID, excluding soft-deleted users
func (r *UserRepository) Get(id string) (*models.User, error) {
	query := `
		SELECT id, sequence, spotify_id, display_name, email, country, date_of_birth, created_at, updated_at, deleted_at
		FROM users
		WHERE id = ? AND deleted_at IS NULL
	`

	return r.scanOne(r.db.QueryRow(query, id))
}

// GetBySpotifyID retrieves a user by catalog profile id
func (r *UserRepository) GetBySpotifyID(spotifyID string) (*models.User, error) {
	query := `
		SELECT id, sequence, spotify_id, display_name, email, country, date_of_birth, created_at, updated_at, deleted_at
		FROM users
		WHERE spotify_id = ? AND deleted_at IS NULL
	`

	return r.scanOne(r.db.QueryRow(query, spotifyID))
}

// Update modifies an existing user in the database
func (r *UserRepository) Update(user *models.User) error {
	if err := user.Validate(); err != nil {
		return fmt.Errorf("validation failed: %w", err)
	}

	now := time.Now()
	user.SetUpdatedAt(now)

	query := `
		UPDATE users
		SET display_name = ?, email = ?, country = ?, date_of_birth = ?, updated_at = ?
		WHERE id = ? AND deleted_at IS NULL
	`

	result, err := r.db.Exec(query,
		user.DisplayName(),
		user.Email(),
		user.Country(),
		user.DateOfBirth(),
		now,
		user.ID(),
	)
	if err != nil {
		return fmt.Errorf("failed to update user: %w", err)
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get affected rows: %w", err)
	}
	if rows == 0 {
		return fmt.Errorf("%w: %s", shared.ErrUserNotFound, user.ID())
	}

	return nil
}

// Delete soft-deletes a user by ID
func (r *UserRepository) Delete(id string) error {
	now := time.Now()

	query := `
		UPDATE users
		SET deleted_at = ?
		WHERE id = ? AND deleted_at IS NULL
	`

	result, err := r.db.Exec(query, now, id)
	if err != nil {
		return fmt.Errorf("failed to delete user: %w", err)
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get affected rows: %w", err)
	}
	if rows == 0 {
		return fmt.Errorf("%w: %s", shared.ErrUserNotFound, id)
	}

	return nil
}

// List retrieves all users matching the given criteria, excluding soft-deleted users
func (r *UserRepository) List(criteria map[string]any) ([]*models.User, error) {
	query := `
		SELECT id, sequence, spotify_id, display_name, email, country, date_of_birth, created_at, updated_at, deleted_at
		FROM users
		WHERE deleted_at IS NULL
	`

	args := []any{}

	if email, ok := criteria["email"].(string); ok && email != "" {
		query += " AND email = ?"
		args = append(args, email)
	}

	query += " ORDER BY sequence ASC"

	rows, err := r.db.Query(query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query users: %w", err)
	}
	defer rows.Close()

	var users []*models.User
	for rows.Next() {
		var (
			userID      string
			sequence    int
			spotifyID   string
			displayName sql.NullString
			email       sql.NullString
			country     sql.NullString
			dateOfBirth sql.NullTime
			createdAt   time.Time
			updatedAt   time.Time
			deletedAt   sql.NullTime
		)

		err := rows.Scan(&userID, &sequence, &spotifyID, &displayName, &email, &country, &dateOfBirth, &createdAt, &updatedAt, &deletedAt)
		if err != nil {
			return nil, fmt.Errorf("failed to scan user: %w", err)
		}

		users = append(users, buildUser(userID, sequence, spotifyID, displayName, email, country, dateOfBirth, createdAt, updatedAt, deletedAt))
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("row iteration error: %w", err)
	}

	return users, nil
}

// scanOne scans a single [sql.Row] into a [models.User]
func (r *UserRepository) scanOne(row *sql.Row) (*models.User, error) {
	var (
		userID      string
		sequence    int
		spotifyID   string
		displayName sql.NullString
		email       sql.NullString
		country     sql.NullString
		dateOfBirth sql.NullTime
		createdAt   time.Time
		updatedAt   time.Time
		deletedAt   sql.NullTime
	)

	err := row.Scan(&userID, &sequence, &spotifyID, &displayName, &email, &country, &dateOfBirth, &createdAt, &updatedAt, &deletedAt)
	if err == sql.ErrNoRows {
		return nil, shared.ErrUserNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to scan user: %w", err)
	}

	return buildUser(userID, sequence, spotifyID, displayName, email, country, dateOfBirth, createdAt, updatedAt, deletedAt), nil
}

func buildUser(id string, sequence int, spotifyID string, displayName, email, country sql.NullString, dateOfBirth sql.NullTime, createdAt, updatedAt time.Time, deletedAt sql.NullTime) *models.User {
	user := models.NewUser(sequence, spotifyID, displayName.String, email.String, country.String)
	user.SetID(id)
	user.SetCreatedAt(createdAt)
	user.SetUpdatedAt(updatedAt)
	if dateOfBirth.Valid {
		user.SetDateOfBirth(&dateOfBirth.Time)
	}
	if deletedAt.Valid {
		user.SetDeletedAt(&deletedAt.Time)
	}

	return user
}
