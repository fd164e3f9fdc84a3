// package services defines interface Catalog for interacting with the remote music catalog
//
// Spotify is the only production implementation; tests use mocks.
package services

import (
	"context"
	"time"

	"github.com/toquothty/spotify-nostalgic-recommend/internal/models"
)

// Catalog defines the outbound contract with the remote music catalog.
//
// Every call is a single attempt; failures are wrapped in
// [shared.ErrCatalogRequest] and never retried at this layer.
type Catalog interface {
	// Name returns the name of the catalog provider (e.g., "Spotify")
	Name() string

	// AuthURL returns the OAuth2 authorization URL for user login.
	AuthURL(state string) string

	// Exchange trades an authorization code for a token pair.
	Exchange(ctx context.Context, code string) (*TokenPair, error)

	// Refresh obtains a fresh token pair from a refresh token.
	Refresh(ctx context.Context, refreshToken string) (*TokenPair, error)

	// WithAccessToken returns a catalog bound to the given access token.
	// The receiver is not modified, so one client can serve many sessions.
	WithAccessToken(token string) Catalog

	// Profile fetches the authenticated user's catalog profile.
	Profile(ctx context.Context) (*Profile, error)

	// SavedTracks fetches up to limit saved library items, paging internally.
	SavedTracks(ctx context.Context, limit int) ([]models.TrackInfo, error)

	// SavedTrackCount returns the total number of saved tracks.
	SavedTrackCount(ctx context.Context) (int, error)

	// AudioFeatures fetches feature vectors for the given track ids, batching
	// by the catalog's per-request maximum. Tracks the catalog has no feature
	// entry for are absent from the returned map.
	AudioFeatures(ctx context.Context, ids []string) (map[string]models.FeatureVector, error)

	// Recommendations requests catalog-side similar tracks for the given
	// seeds, optionally targeted toward a feature vector.
	Recommendations(ctx context.Context, seeds Seeds, target *models.FeatureVector, limit int) ([]models.TrackInfo, error)

	// Search performs a track search with the catalog's query syntax.
	Search(ctx context.Context, query string, limit int) ([]models.TrackInfo, error)

	// SearchArtists finds artists by name.
	SearchArtists(ctx context.Context, name string, limit int) ([]Artist, error)

	// RelatedArtists returns artists similar to the given artist.
	RelatedArtists(ctx context.Context, artistID string) ([]Artist, error)

	// ArtistTopTracks returns the given artist's most popular tracks.
	ArtistTopTracks(ctx context.Context, artistID string) ([]models.TrackInfo, error)

	// AddToLibrary saves the given tracks to the user's library.
	AddToLibrary(ctx context.Context, ids []string) error
}

// TokenPair is the result of an OAuth exchange or refresh.
type TokenPair struct {
	AccessToken  string
	RefreshToken string
	ExpiresAt    time.Time
}

// Profile represents a catalog user profile.
type Profile struct {
	SpotifyID   string
	DisplayName string
	Email       string
	Country     string
}

// Artist represents a catalog artist reference.
type Artist struct {
	ID   string
	Name string
}

// Seeds carries the seed material for a catalog recommendation request.
type Seeds struct {
	TrackIDs  []string
	ArtistIDs []string
	Genres    []string
}
