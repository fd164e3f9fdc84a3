package models

import (
	"fmt"
	"time"
)

// formative years span ages 12 through 18 inclusive
const (
	formativeStartAge = 12
	formativeEndAge   = 18
)

// User represents a listener account tied to a catalog profile.
type User struct {
	id          string
	sequence    int
	spotifyID   string
	displayName string
	email       string
	country     string
	dateOfBirth *time.Time
	createdAt   time.Time
	updatedAt   time.Time
	deletedAt   *time.Time
}

// NewUser creates a new User with the given catalog profile data.
func NewUser(sequence int, spotifyID, displayName, email, country string) *User {
	now := time.Now()
	return &User{
		sequence:    sequence,
		spotifyID:   spotifyID,
		displayName: displayName,
		email:       email,
		country:     country,
		createdAt:   now,
		updatedAt:   now,
	}
}

func (u *User) ID() string            { return u.id }
func (u *User) SetID(id string)       { u.id = id }
func (u *User) Sequence() int         { return u.sequence }
func (u *User) SpotifyID() string     { return u.spotifyID }
func (u *User) DisplayName() string   { return u.displayName }
func (u *User) Email() string         { return u.email }
func (u *User) Country() string       { return u.country }
func (u *User) CreatedAt() time.Time  { return u.createdAt }
func (u *User) UpdatedAt() time.Time  { return u.updatedAt }
func (u *User) DeletedAt() *time.Time { return u.deletedAt }

func (u *User) SetSequence(sequence int)       { u.sequence = sequence }
func (u *User) SetDisplayName(name string)     { u.displayName = name }
func (u *User) SetCreatedAt(t time.Time)       { u.createdAt = t }
func (u *User) SetUpdatedAt(t time.Time)       { u.updatedAt = t }
func (u *User) SetDeletedAt(t *time.Time)      { u.deletedAt = t }
func (u *User) SetDateOfBirth(dob *time.Time)  { u.dateOfBirth = dob }
func (u *User) DateOfBirth() *time.Time        { return u.dateOfBirth }

// FormativeWindow returns the inclusive year range covering the user's
// formative listening years (ages 12 through 18). ok is false when no
// birth date has been recorded.
func (u *User) FormativeWindow() (start, end int, ok bool) {
	if u.dateOfBirth == nil {
		return 0, 0, false
	}
	year := u.dateOfBirth.Year()
	return year + formativeStartAge, year + formativeEndAge, true
}

// Validate checks if the user's data is valid
func (u *User) Validate() error {
	if u.spotifyID == "" {
		return fmt.Errorf("spotify id is required")
	}
	return nil
}
