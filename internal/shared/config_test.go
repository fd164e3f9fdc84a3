package shared

import (
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestConfig(t *testing.T) {
	t.Run("DefaultConfig", func(t *testing.T) {
		config := DefaultConfig()

		if config.Database.Path != "./recommender.db" {
			t.Errorf("expected database path ./recommender.db, got %s", config.Database.Path)
		}

		if config.Server.Port != 3000 {
			t.Errorf("expected server port 3000, got %d", config.Server.Port)
		}

		if config.Credentials.Spotify.ClientID != "your_spotify_client_id" {
			t.Errorf("expected spotify client_id your_spotify_client_id, got %s", config.Credentials.Spotify.ClientID)
		}

		if config.Analysis.ClusterCount != 10 {
			t.Errorf("expected cluster count 10, got %d", config.Analysis.ClusterCount)
		}

		if config.Limits.DailyCap != 4 {
			t.Errorf("expected daily cap 4, got %d", config.Limits.DailyCap)
		}

		if config.Limits.CooldownDuration() != 4*time.Hour {
			t.Errorf("expected 4h cooldown, got %v", config.Limits.CooldownDuration())
		}
	})

	t.Run("CreateConfigFile", func(t *testing.T) {
		tmpDir := t.TempDir()
		configPath := filepath.Join(tmpDir, "config.toml")

		if err := CreateConfigFile(configPath); err != nil {
			t.Fatalf("failed to create config file: %v", err)
		}

		if _, err := os.Stat(configPath); err != nil {
			t.Fatalf("config file should exist: %v", err)
		}

		config, err := LoadConfig(configPath)
		if err != nil {
			t.Fatalf("failed to load created config: %v", err)
		}

		defaultConfig := DefaultConfig()
		if config.Database.Path != defaultConfig.Database.Path {
			t.Errorf("created config database path doesn't match default")
		}

		if err := CreateConfigFile(configPath); err == nil {
			t.Error("creating config file again should fail")
		}
	})

	t.Run("LoadConfig", func(t *testing.T) {
		tmpDir := t.TempDir()
		configPath := filepath.Join(tmpDir, "config.toml")

		testConfig := `[database]
path = "/custom/path.db"
max_open_conns = 20
max_idle_conns = 10

[server]
host = "0.0.0.0"
port = 8080

[credentials.spotify]
client_id = "test_client_id"
client_secret = "test_secret"
redirect_uri = "http://localhost:3000/callback"

[analysis]
cluster_count = 6
track_limit = 500
max_iterations = 50
recent_window_days = 30
nostalgic_after_days = 400

[limits]
daily_cap = 2
cooldown = "30m"
popularity_floor = 40
forgotten_after_days = 90
`
		if err := os.WriteFile(configPath, []byte(testConfig), 0644); err != nil {
			t.Fatalf("failed to write test config: %v", err)
		}

		config, err := LoadConfig(configPath)
		if err != nil {
			t.Fatalf("failed to load config: %v", err)
		}

		if config.Database.Path != "/custom/path.db" {
			t.Errorf("expected database path /custom/path.db, got %s", config.Database.Path)
		}

		if config.Server.Port != 8080 {
			t.Errorf("expected server port 8080, got %d", config.Server.Port)
		}

		if config.Credentials.Spotify.ClientID != "test_client_id" {
			t.Errorf("expected spotify client_id test_client_id, got %s", config.Credentials.Spotify.ClientID)
		}

		if config.Analysis.ClusterCount != 6 {
			t.Errorf("expected cluster count 6, got %d", config.Analysis.ClusterCount)
		}

		if config.Limits.CooldownDuration() != 30*time.Minute {
			t.Errorf("expected 30m cooldown, got %v", config.Limits.CooldownDuration())
		}

		if config.Limits.ForgottenAfterDays != 90 {
			t.Errorf("expected forgotten_after_days 90, got %d", config.Limits.ForgottenAfterDays)
		}
	})

	t.Run("Duration", func(t *testing.T) {
		t.Run("parses duration strings", func(t *testing.T) {
			var d Duration
			if err := d.UnmarshalText([]byte("4h")); err != nil {
				t.Fatalf("expected no error, got %v", err)
			}
			if time.Duration(d) != 4*time.Hour {
				t.Errorf("expected 4h, got %v", time.Duration(d))
			}
		})

		t.Run("rejects invalid values", func(t *testing.T) {
			var d Duration
			err := d.UnmarshalText([]byte("not-a-duration"))
			if err == nil {
				t.Fatal("expected error for invalid duration")
			}
			if !errors.Is(err, ErrInvalidConfig) {
				t.Errorf("expected ErrInvalidConfig, got %v", err)
			}
		})
	})
}
