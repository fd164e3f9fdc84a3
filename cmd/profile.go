package main

import (
	"context"
	"fmt"
	"time"

	"github.com/toquothty/spotify-nostalgic-recommend/internal/shared"
	"github.com/urfave/cli/v3"
)

// ProfileShow shows the authenticated profile.
func (r *Runner) ProfileShow(ctx context.Context, cmd *cli.Command) error {
	useJSON := cmd.Bool("json")

	s, err := r.openStack()
	if err != nil {
		return err
	}
	defer s.Close()

	user, _, err := r.currentSession(s)
	if err != nil {
		return err
	}

	if useJSON {
		view := map[string]any{
			"id":           user.ID(),
			"spotify_id":   user.SpotifyID(),
			"display_name": user.DisplayName(),
		}
		if user.Email() != "" {
			view["email"] = user.Email()
		}
		if user.Country() != "" {
			view["country"] = user.Country()
		}
		if dob := user.DateOfBirth(); dob != nil {
			view["date_of_birth"] = dob.Format("2006-01-02")
		}
		return r.writeJSON(view, true)
	}

	r.writePlainHeader("Profile")
	r.writePlain("Name:       %s\n", user.DisplayName())
	r.writePlain("Spotify ID: %s\n", user.SpotifyID())
	if user.Email() != "" {
		r.writePlain("Email:      %s\n", user.Email())
	}
	if user.Country() != "" {
		r.writePlain("Country:    %s\n", user.Country())
	}
	if dob := user.DateOfBirth(); dob != nil {
		r.writePlain("Birthdate:  %s\n", dob.Format("2006-01-02"))
	} else {
		r.writePlain("Birthdate:  not set (required for nostalgia recommendations)\n")
	}

	return nil
}

// ProfileBirthdate sets the user's date of birth.
func (r *Runner) ProfileBirthdate(ctx context.Context, cmd *cli.Command) error {
	value := cmd.StringArg("date")
	if value == "" {
		return fmt.Errorf("%w: date argument is required (YYYY-MM-DD)", shared.ErrMissingArgument)
	}

	dob, err := time.Parse("2006-01-02", value)
	if err != nil {
		return fmt.Errorf("%w: date must be YYYY-MM-DD: %v", shared.ErrInvalidInput, err)
	}
	if dob.After(time.Now()) {
		return fmt.Errorf("%w: date of birth cannot be in the future", shared.ErrInvalidInput)
	}

	s, err := r.openStack()
	if err != nil {
		return err
	}
	defer s.Close()

	user, _, err := r.currentSession(s)
	if err != nil {
		return err
	}

	user.SetDateOfBirth(&dob)
	if err := s.users.Update(user); err != nil {
		return fmt.Errorf("failed to update profile: %w", err)
	}

	r.writePlain("✓ Date of birth set to %s\n", dob.Format("2006-01-02"))
	return nil
}
