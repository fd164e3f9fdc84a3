package main

import (
	"bytes"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/toquothty/spotify-nostalgic-recommend/internal/models"
	"github.com/toquothty/spotify-nostalgic-recommend/internal/repositories"
	"github.com/toquothty/spotify-nostalgic-recommend/internal/shared"
	tu "github.com/toquothty/spotify-nostalgic-recommend/internal/testing"
)

func TestRunner(t *testing.T) {
	t.Run("NewRunner", func(t *testing.T) {
		t.Run("with all dependencies provided", func(t *testing.T) {
			config := shared.DefaultConfig()
			logger := shared.NewLogger(nil)
			output := &bytes.Buffer{}
			catalog := tu.NewMockCatalog()

			runner := NewRunner(RunnerOpts{
				Config:     config,
				ConfigPath: "config.toml",
				Catalog:    catalog,
				Logger:     logger,
				Output:     output,
			})

			if runner.config != config {
				t.Error("expected config to be set")
			}
			if runner.configPath != "config.toml" {
				t.Error("expected configPath to be set")
			}
			if runner.catalog != catalog {
				t.Error("expected catalog to be set")
			}
			if runner.logger != logger {
				t.Error("expected logger to be set")
			}
			if runner.output != output {
				t.Error("expected output to be set")
			}
		})

		t.Run("with nil config uses defaults", func(t *testing.T) {
			runner := NewRunner(RunnerOpts{
				Config: nil,
			})

			if runner.config == nil {
				t.Error("expected default config to be set")
			}
		})

		t.Run("with nil logger uses default", func(t *testing.T) {
			runner := NewRunner(RunnerOpts{
				Logger: nil,
			})

			if runner.logger == nil {
				t.Error("expected default logger to be set")
			}
		})

		t.Run("with nil output uses stdout", func(t *testing.T) {
			runner := NewRunner(RunnerOpts{
				Output: nil,
			})

			if runner.output != os.Stdout {
				t.Error("expected output to default to os.Stdout")
			}
		})
	})

	t.Run("writeJSON", func(t *testing.T) {
		t.Run("writes formatted JSON successfully", func(t *testing.T) {
			output := &bytes.Buffer{}
			runner := NewRunner(RunnerOpts{Output: output})

			data := map[string]string{"key": "value"}
			err := runner.writeJSON(data, true)

			if err != nil {
				t.Fatalf("expected no error, got %v", err)
			}

			result := output.String()
			if !strings.Contains(result, `"key": "value"`) {
				t.Errorf("expected formatted JSON, got %s", result)
			}
			if !strings.HasSuffix(result, "\n") {
				t.Error("expected output to end with newline")
			}
		})

		t.Run("writes compact JSON successfully", func(t *testing.T) {
			output := &bytes.Buffer{}
			runner := NewRunner(RunnerOpts{Output: output})

			data := map[string]string{"key": "value"}
			err := runner.writeJSON(data, false)

			if err != nil {
				t.Fatalf("expected no error, got %v", err)
			}

			result := output.String()
			expected := `{"key":"value"}` + "\n"
			if result != expected {
				t.Errorf("expected %q, got %q", expected, result)
			}
		})

		t.Run("handles marshal error with non-serializable data", func(t *testing.T) {
			output := &bytes.Buffer{}
			runner := NewRunner(RunnerOpts{Output: output})

			// channels cannot be marshaled to JSON
			data := make(chan int)
			err := runner.writeJSON(data, false)

			if err == nil {
				t.Fatal("expected error for non-serializable data")
			}
			if !strings.Contains(err.Error(), "failed to marshal JSON") {
				t.Errorf("expected marshal error, got %v", err)
			}
		})

		t.Run("handles write failure", func(t *testing.T) {
			failing := &tu.FWriter{}
			runner := NewRunner(RunnerOpts{Output: failing})

			data := map[string]string{"key": "value"}
			err := runner.writeJSON(data, false)

			if err == nil {
				t.Fatal("expected error from failing writer")
			}
			if !strings.Contains(err.Error(), "failed to write output") {
				t.Errorf("expected write error, got %v", err)
			}
		})

		t.Run("handles newline write failure", func(t *testing.T) {
			data := map[string]string{"key": "value"}
			limitedWriter := tu.NewLimitedWriter(1, 0, &bytes.Buffer{})
			runner := NewRunner(RunnerOpts{Output: &limitedWriter})

			err := runner.writeJSON(data, false)

			if err == nil {
				t.Fatal("expected error writing newline")
			}
			if !strings.Contains(err.Error(), "failed to write newline") {
				t.Errorf("expected newline write error, got %v", err)
			}
		})
	})

	t.Run("writePlain", func(t *testing.T) {
		t.Run("writes plain text successfully", func(t *testing.T) {
			output := &bytes.Buffer{}
			runner := NewRunner(RunnerOpts{Output: output})

			err := runner.writePlain("hello %s", "world")

			if err != nil {
				t.Fatalf("expected no error, got %v", err)
			}

			result := output.String()
			if result != "hello world" {
				t.Errorf("expected 'hello world', got %q", result)
			}
		})

		t.Run("handles write failure", func(t *testing.T) {
			failing := &tu.FWriter{}
			runner := NewRunner(RunnerOpts{Output: failing})

			err := runner.writePlain("test")

			if err == nil {
				t.Fatal("expected error from failing writer")
			}
			if !strings.Contains(err.Error(), "failed to write output") {
				t.Errorf("expected write error, got %v", err)
			}
		})
	})

	t.Run("register", func(t *testing.T) {
		runner := NewRunner(RunnerOpts{})
		commands := runner.register()

		if len(commands) == 0 {
			t.Error("expected at least one command to be registered")
		}

		for i, cmd := range commands {
			if cmd == nil {
				t.Errorf("command at index %d is nil", i)
			}
		}
	})

	t.Run("session file", func(t *testing.T) {
		newTestRunner := func(t *testing.T) *Runner {
			t.Helper()
			config := shared.DefaultConfig()
			config.Database.Path = filepath.Join(t.TempDir(), "test.db")
			return NewRunner(RunnerOpts{
				Config:  config,
				Catalog: tu.NewMockCatalog(),
				Output:  &bytes.Buffer{},
			})
		}

		t.Run("currentSession without saved session", func(t *testing.T) {
			runner := newTestRunner(t)

			s, err := runner.openStack()
			if err != nil {
				t.Fatalf("failed to open stack: %v", err)
			}
			defer s.Close()

			_, _, err = runner.currentSession(s)
			if !errors.Is(err, shared.ErrNotAuthenticated) {
				t.Errorf("expected ErrNotAuthenticated, got %v", err)
			}
		})

		t.Run("currentSession with stale session ID", func(t *testing.T) {
			runner := newTestRunner(t)

			s, err := runner.openStack()
			if err != nil {
				t.Fatalf("failed to open stack: %v", err)
			}
			defer s.Close()

			if err := runner.saveSessionID("no-such-session"); err != nil {
				t.Fatalf("failed to save session ID: %v", err)
			}

			_, _, err = runner.currentSession(s)
			if !errors.Is(err, shared.ErrNotAuthenticated) {
				t.Errorf("expected ErrNotAuthenticated, got %v", err)
			}
		})

		t.Run("round trip resolves user and session", func(t *testing.T) {
			runner := newTestRunner(t)

			s, err := runner.openStack()
			if err != nil {
				t.Fatalf("failed to open stack: %v", err)
			}
			defer s.Close()

			userSeq, err := repositories.NextSequence(s.db, "users")
			if err != nil {
				t.Fatalf("failed to get user sequence: %v", err)
			}
			user := models.NewUser(userSeq, "spotify-user", "Test User", "", "")
			if err := s.users.Create(user); err != nil {
				t.Fatalf("failed to create user: %v", err)
			}

			sessionSeq, err := repositories.NextSequence(s.db, "sessions")
			if err != nil {
				t.Fatalf("failed to get session sequence: %v", err)
			}
			session := models.NewSession(sessionSeq, user.ID(), "access", "refresh", time.Now().Add(time.Hour))
			if err := s.sessions.Create(session); err != nil {
				t.Fatalf("failed to create session: %v", err)
			}

			if err := runner.saveSessionID(session.ID()); err != nil {
				t.Fatalf("failed to save session ID: %v", err)
			}

			gotUser, gotSession, err := runner.currentSession(s)
			if err != nil {
				t.Fatalf("expected no error, got %v", err)
			}
			if gotUser.ID() != user.ID() {
				t.Errorf("expected user %s, got %s", user.ID(), gotUser.ID())
			}
			if gotSession.ID() != session.ID() {
				t.Errorf("expected session %s, got %s", session.ID(), gotSession.ID())
			}
		})
	})
}
