package shared

import (
	"strings"
	"testing"
)

func TestNormalizeTrackKey(t *testing.T) {
	tc := []struct {
		name   string
		title  string
		artist string
		want   string
	}{
		{
			name:   "basic normalization",
			title:  "Song Title",
			artist: "Artist Name",
			want:   "song title|artist name",
		},
		{
			name:   "extra whitespace",
			title:  "  Song   Title  ",
			artist: "  Artist   Name  ",
			want:   "song title|artist name",
		},
		{
			name:   "mixed case",
			title:  "SoNg TiTlE",
			artist: "ArTiSt NaMe",
			want:   "song title|artist name",
		},
	}

	for _, tt := range tc {
		t.Run(tt.name, func(t *testing.T) {
			got := NormalizeTrackKey(tt.title, tt.artist)
			if got != tt.want {
				t.Errorf("NormalizeTrackKey() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestGenerateState(t *testing.T) {
	first, err := GenerateState()
	if err != nil {
		t.Fatalf("failed to generate state: %v", err)
	}

	if len(first) != 64 {
		t.Errorf("expected 64 hex characters, got %d", len(first))
	}

	second, err := GenerateState()
	if err != nil {
		t.Fatalf("failed to generate second state: %v", err)
	}

	if first == second {
		t.Error("expected distinct state tokens")
	}
}

func TestGenerateID(t *testing.T) {
	first := GenerateID()
	second := GenerateID()

	if first == "" {
		t.Error("expected non-empty ID")
	}
	if first == second {
		t.Error("expected distinct IDs")
	}
}

func TestMarshalJSON(t *testing.T) {
	data := map[string]string{"key": "value"}

	t.Run("pretty", func(t *testing.T) {
		out, err := MarshalJSON(data, true)
		if err != nil {
			t.Fatalf("expected no error, got %v", err)
		}
		if !strings.Contains(string(out), `"key": "value"`) {
			t.Errorf("expected indented JSON, got %s", out)
		}
	})

	t.Run("compact", func(t *testing.T) {
		out, err := MarshalJSON(data, false)
		if err != nil {
			t.Fatalf("expected no error, got %v", err)
		}
		if string(out) != `{"key":"value"}` {
			t.Errorf("expected compact JSON, got %s", out)
		}
	})
}

func TestLauncher(t *testing.T) {
	cases := []struct {
		os   string
		name string
	}{
		{"darwin", "open"},
		{"linux", "xdg-open"},
		{"windows", "cmd"},
		{"plan9", ""},
	}

	for _, tc := range cases {
		t.Run(tc.os, func(t *testing.T) {
			name, args := launcher(tc.os, "https://accounts.spotify.com/authorize")
			if name != tc.name {
				t.Errorf("expected command %q, got %q", tc.name, name)
			}
			if tc.name != "" && args[len(args)-1] != "https://accounts.spotify.com/authorize" {
				t.Errorf("expected url as final argument, got %v", args)
			}
		})
	}
}
