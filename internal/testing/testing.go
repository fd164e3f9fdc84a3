// package testing contains shared testing utilities
package testing

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"testing"
	"time"

	"github.com/toquothty/spotify-nostalgic-recommend/internal/models"
	"github.com/toquothty/spotify-nostalgic-recommend/internal/services"
)

// MockCatalog is a configurable test double for [services.Catalog].
//
// Each behavior hook defaults to a benign no-op; tests override only the
// hooks they exercise. Call counters let tests assert on interactions.
type MockCatalog struct {
	RecommendationsFunc func(seeds services.Seeds, target *models.FeatureVector, limit int) ([]models.TrackInfo, error)
	SearchFunc          func(query string, limit int) ([]models.TrackInfo, error)
	SearchArtistsFunc   func(name string, limit int) ([]services.Artist, error)
	RelatedArtistsFunc  func(artistID string) ([]services.Artist, error)
	ArtistTopTracksFunc func(artistID string) ([]models.TrackInfo, error)
	SavedTracksFunc     func(limit int) ([]models.TrackInfo, error)
	AudioFeaturesFunc   func(ids []string) (map[string]models.FeatureVector, error)
	ProfileFunc         func() (*services.Profile, error)
	RefreshFunc         func(refreshToken string) (*services.TokenPair, error)

	AddedToLibrary [][]string
	SearchQueries  []string
}

func NewMockCatalog() *MockCatalog {
	return &MockCatalog{}
}

func (m *MockCatalog) Name() string { return "mock" }

func (m *MockCatalog) AuthURL(state string) string { return "https://mock.example/auth?state=" + state }

func (m *MockCatalog) Exchange(ctx context.Context, code string) (*services.TokenPair, error) {
	return &services.TokenPair{AccessToken: "mock-access", RefreshToken: "mock-refresh", ExpiresAt: time.Now().Add(time.Hour)}, nil
}

func (m *MockCatalog) Refresh(ctx context.Context, refreshToken string) (*services.TokenPair, error) {
	if m.RefreshFunc != nil {
		return m.RefreshFunc(refreshToken)
	}
	return &services.TokenPair{AccessToken: "mock-access-refreshed", RefreshToken: refreshToken, ExpiresAt: time.Now().Add(time.Hour)}, nil
}

func (m *MockCatalog) WithAccessToken(token string) services.Catalog { return m }

func (m *MockCatalog) Profile(ctx context.Context) (*services.Profile, error) {
	if m.ProfileFunc != nil {
		return m.ProfileFunc()
	}
	return &services.Profile{SpotifyID: "mock-user", DisplayName: "Mock User"}, nil
}

func (m *MockCatalog) SavedTracks(ctx context.Context, limit int) ([]models.TrackInfo, error) {
	if m.SavedTracksFunc != nil {
		return m.SavedTracksFunc(limit)
	}
	return nil, nil
}

func (m *MockCatalog) SavedTrackCount(ctx context.Context) (int, error) {
	tracks, err := m.SavedTracks(ctx, 1<<30)
	if err != nil {
		return 0, err
	}
	return len(tracks), nil
}

func (m *MockCatalog) AudioFeatures(ctx context.Context, ids []string) (map[string]models.FeatureVector, error) {
	if m.AudioFeaturesFunc != nil {
		return m.AudioFeaturesFunc(ids)
	}
	return map[string]models.FeatureVector{}, nil
}

func (m *MockCatalog) Recommendations(ctx context.Context, seeds services.Seeds, target *models.FeatureVector, limit int) ([]models.TrackInfo, error) {
	if m.RecommendationsFunc != nil {
		return m.RecommendationsFunc(seeds, target, limit)
	}
	return nil, nil
}

func (m *MockCatalog) Search(ctx context.Context, query string, limit int) ([]models.TrackInfo, error) {
	m.SearchQueries = append(m.SearchQueries, query)
	if m.SearchFunc != nil {
		return m.SearchFunc(query, limit)
	}
	return nil, nil
}

func (m *MockCatalog) SearchArtists(ctx context.Context, name string, limit int) ([]services.Artist, error) {
	if m.SearchArtistsFunc != nil {
		return m.SearchArtistsFunc(name, limit)
	}
	return nil, nil
}

func (m *MockCatalog) RelatedArtists(ctx context.Context, artistID string) ([]services.Artist, error) {
	if m.RelatedArtistsFunc != nil {
		return m.RelatedArtistsFunc(artistID)
	}
	return nil, nil
}

func (m *MockCatalog) ArtistTopTracks(ctx context.Context, artistID string) ([]models.TrackInfo, error) {
	if m.ArtistTopTracksFunc != nil {
		return m.ArtistTopTracksFunc(artistID)
	}
	return nil, nil
}

func (m *MockCatalog) AddToLibrary(ctx context.Context, ids []string) error {
	m.AddedToLibrary = append(m.AddedToLibrary, ids)
	return nil
}

// CatalogTracks builds n distinct catalog tracks with ids offset from base.
func CatalogTracks(base, n, popularity int) []models.TrackInfo {
	tracks := make([]models.TrackInfo, 0, n)
	for i := 0; i < n; i++ {
		tracks = append(tracks, models.TrackInfo{
			SpotifyID:   fmt.Sprintf("catalog-%d", base+i),
			Name:        fmt.Sprintf("Catalog Track %d", base+i),
			ArtistName:  fmt.Sprintf("Catalog Artist %d", (base+i)%5),
			Popularity:  popularity,
			ReleaseDate: "2004-01-01",
		})
	}
	return tracks
}

// FWriter always returns an error on Write
type FWriter struct{}

func (f *FWriter) Write(p []byte) (n int, err error) {
	return 0, errors.New("write failed")
}

// LimitedWriter fails after a certain number of writes
type LimitedWriter struct {
	maxWrites int
	written   int
	target    io.Writer
}

func (l *LimitedWriter) Write(p []byte) (n int, err error) {
	if l.written >= l.maxWrites {
		return 0, errors.New("write limit exceeded")
	}
	l.written++
	return l.target.Write(p)
}

func NewLimitedWriter(maxWrites, written int, target io.Writer) LimitedWriter {
	return LimitedWriter{maxWrites: maxWrites, written: written, target: target}
}

// MockRoundTripper allows custom HTTP responses for testing
type MockRoundTripper struct {
	response *http.Response
	err      error
}

func NewMockRoundTripper(r *http.Response, e error) *MockRoundTripper {
	return &MockRoundTripper{response: r, err: e}
}

func (m *MockRoundTripper) RoundTrip(*http.Request) (*http.Response, error) {
	return m.response, m.err
}

func MustGetwd(t *testing.T) string {
	t.Helper()
	wd, err := os.Getwd()
	if err != nil {
		t.Fatalf("Failed to get working directory: %v", err)
	}
	return wd
}

func MustChdir(t *testing.T, dir string) {
	t.Helper()
	if err := os.Chdir(dir); err != nil {
		t.Fatalf("Failed to change directory to %s: %v", dir, err)
	}
}

func AssertFileExists(t *testing.T, path string) {
	t.Helper()
	if _, err := os.Stat(path); os.IsNotExist(err) {
		t.Errorf("File does not exist: %s", path)
	}
}

func MustReadFile(t *testing.T, path string) string {
	t.Helper()
	content, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("Failed to read file %s: %v", path, err)
	}
	return string(content)
}
