// Spotify API implementation of [Catalog]
//
// Spotify API response types based on https://developer.spotify.com/documentation/web-api/reference/
package services

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/toquothty/spotify-nostalgic-recommend/internal/models"
	"github.com/toquothty/spotify-nostalgic-recommend/internal/shared"
	"golang.org/x/oauth2"
	"golang.org/x/time/rate"
)

const (
	spotifyAuthURL  = "https://accounts.spotify.com/authorize"
	spotifyTokenURL = "https://accounts.spotify.com/api/token"
	spotifyBaseURL  = "https://api.spotify.com/v1"

	savedTracksPageSize    = 50  // Spotify's per-request maximum for /me/tracks
	audioFeaturesMaxIDs    = 100 // Spotify's per-request maximum for /audio-features
	libraryAddMaxIDs       = 50  // Spotify's per-request maximum for PUT /me/tracks
	maxRecommendationSeeds = 5
)

// SpotifyImage represents an image resource.
type SpotifyImage struct {
	URL    string `json:"url"`
	Height int    `json:"height"`
	Width  int    `json:"width"`
}

// SpotifyUser represents a Spotify user profile.
type SpotifyUser struct {
	ID          string         `json:"id"`
	DisplayName string         `json:"display_name"`
	Email       string         `json:"email"`
	Country     string         `json:"country"`
	Images      []SpotifyImage `json:"images"`
}

type externalURLs struct {
	Spotify string `json:"spotify"`
}

// SpotifyArtist represents a Spotify artist.
type SpotifyArtist struct {
	ID     string   `json:"id"`
	Name   string   `json:"name"`
	Genres []string `json:"genres"`
	URI    string   `json:"uri"`
}

// SpotifyAlbum represents a Spotify album.
type SpotifyAlbum struct {
	ID          string         `json:"id"`
	Name        string         `json:"name"`
	ReleaseDate string         `json:"release_date"`
	Images      []SpotifyImage `json:"images"`
	URI         string         `json:"uri"`
}

// SpotifyTrack represents a Spotify track.
type SpotifyTrack struct {
	ID           string          `json:"id"`
	Name         string          `json:"name"`
	Artists      []SpotifyArtist `json:"artists"`
	Album        SpotifyAlbum    `json:"album"`
	DurationMS   int             `json:"duration_ms"`
	Explicit     bool            `json:"explicit"`
	Popularity   int             `json:"popularity"`
	PreviewURL   string          `json:"preview_url"`
	ExternalURLs externalURLs    `json:"external_urls"`
	URI          string          `json:"uri"`
}

// SpotifySavedTrack represents a track saved in the user's library.
type SpotifySavedTrack struct {
	AddedAt string       `json:"added_at"`
	Track   SpotifyTrack `json:"track"`
}

// SpotifyPaginatedTracks represents a paginated response of saved tracks.
type SpotifyPaginatedTracks struct {
	Items    []SpotifySavedTrack `json:"items"`
	Total    int                 `json:"total"`
	Limit    int                 `json:"limit"`
	Offset   int                 `json:"offset"`
	Next     *string             `json:"next"`
	Previous *string             `json:"previous"`
}

// SpotifyAudioFeatures represents the audio analysis summary for one track.
type SpotifyAudioFeatures struct {
	ID               string  `json:"id"`
	Acousticness     float64 `json:"acousticness"`
	Danceability     float64 `json:"danceability"`
	Energy           float64 `json:"energy"`
	Instrumentalness float64 `json:"instrumentalness"`
	Liveness         float64 `json:"liveness"`
	Loudness         float64 `json:"loudness"`
	Speechiness      float64 `json:"speechiness"`
	Tempo            float64 `json:"tempo"`
	Valence          float64 `json:"valence"`
	Key              int     `json:"key"`
	Mode             int     `json:"mode"`
	TimeSignature    int     `json:"time_signature"`
}

type audioFeaturesResponse struct {
	AudioFeatures []*SpotifyAudioFeatures `json:"audio_features"`
}

type recommendationsResponse struct {
	Tracks []SpotifyTrack `json:"tracks"`
}

type searchResponse struct {
	Tracks struct {
		Items []SpotifyTrack `json:"items"`
	} `json:"tracks"`
	Artists struct {
		Items []SpotifyArtist `json:"items"`
	} `json:"artists"`
}

type artistsResponse struct {
	Artists []SpotifyArtist `json:"artists"`
}

type topTracksResponse struct {
	Tracks []SpotifyTrack `json:"tracks"`
}

// SpotifyService implements the Catalog interface for Spotify API interactions.
// Uses [oauth2] for authentication and [rate.Limiter] to pace outbound calls.
type SpotifyService struct {
	config     *oauth2.Config
	token      *oauth2.Token
	httpClient *http.Client
	limiter    *rate.Limiter
}

// NewSpotifyService creates a new Spotify catalog client with the given OAuth2 credentials.
func NewSpotifyService(credentials map[string]string) (*SpotifyService, error) {
	clientID, ok := credentials["client_id"]
	if !ok || clientID == "" {
		return nil, fmt.Errorf("%w: missing client_id", shared.ErrMissingCredentials)
	}

	clientSecret, ok := credentials["client_secret"]
	if !ok || clientSecret == "" {
		return nil, fmt.Errorf("%w: missing client_secret", shared.ErrMissingCredentials)
	}

	redirectURI, ok := credentials["redirect_uri"]
	if !ok || redirectURI == "" {
		redirectURI = "http://localhost:3000/callback"
	}

	config := &oauth2.Config{
		ClientID:     clientID,
		ClientSecret: clientSecret,
		RedirectURL:  redirectURI,
		Scopes: []string{
			"user-read-private",
			"user-read-email",
			"user-library-read",
			"user-library-modify",
		},
		Endpoint: oauth2.Endpoint{
			AuthURL:  spotifyAuthURL,
			TokenURL: spotifyTokenURL,
		},
	}

	return &SpotifyService{
		config:     config,
		httpClient: http.DefaultClient,
		limiter:    rate.NewLimiter(rate.Limit(10), 5),
	}, nil
}

func (s *SpotifyService) Name() string {
	return "Spotify"
}

// AuthURL returns the OAuth2 authorization URL for user login.
func (s *SpotifyService) AuthURL(state string) string {
	return s.config.AuthCodeURL(state, oauth2.AccessTypeOffline)
}

// Exchange trades an authorization code for a token pair.
func (s *SpotifyService) Exchange(ctx context.Context, code string) (*TokenPair, error) {
	token, err := s.config.Exchange(ctx, code)
	if err != nil {
		return nil, fmt.Errorf("%w: code exchange: %v", shared.ErrAuthFailed, err)
	}
	return tokenPairFromOAuth(token), nil
}

// Refresh obtains a fresh token pair from a refresh token.
func (s *SpotifyService) Refresh(ctx context.Context, refreshToken string) (*TokenPair, error) {
	if refreshToken == "" {
		return nil, shared.ErrNoRefreshToken
	}

	source := s.config.TokenSource(ctx, &oauth2.Token{RefreshToken: refreshToken})
	token, err := source.Token()
	if err != nil {
		return nil, fmt.Errorf("%w: %v", shared.ErrRefreshFailed, err)
	}

	pair := tokenPairFromOAuth(token)
	if pair.RefreshToken == "" {
		// Spotify may omit the refresh token on renewal; keep the old one.
		pair.RefreshToken = refreshToken
	}
	return pair, nil
}

// WithAccessToken returns a catalog client bound to the given access token.
func (s *SpotifyService) WithAccessToken(token string) Catalog {
	bound := *s
	bound.token = &oauth2.Token{AccessToken: token, TokenType: "Bearer"}
	return &bound
}

// Profile fetches the authenticated user's Spotify profile.
func (s *SpotifyService) Profile(ctx context.Context) (*Profile, error) {
	var user SpotifyUser
	if err := s.doRequest(ctx, http.MethodGet, "/me", nil, &user); err != nil {
		return nil, err
	}

	return &Profile{
		SpotifyID:   user.ID,
		DisplayName: user.DisplayName,
		Email:       user.Email,
		Country:     user.Country,
	}, nil
}

// SavedTracks fetches up to limit saved library items, paging by Spotify's batch size.
func (s *SpotifyService) SavedTracks(ctx context.Context, limit int) ([]models.TrackInfo, error) {
	var tracks []models.TrackInfo

	offset := 0
	for len(tracks) < limit {
		pageSize := savedTracksPageSize
		if remaining := limit - len(tracks); remaining < pageSize {
			pageSize = remaining
		}

		endpoint := fmt.Sprintf("/me/tracks?limit=%d&offset=%d", pageSize, offset)
		var page SpotifyPaginatedTracks
		if err := s.doRequest(ctx, http.MethodGet, endpoint, nil, &page); err != nil {
			return nil, err
		}

		if len(page.Items) == 0 {
			break
		}

		for _, item := range page.Items {
			if item.Track.ID == "" {
				continue
			}
			tracks = append(tracks, trackInfoFromSpotify(item.Track, item.AddedAt))
		}
		offset += len(page.Items)

		if len(page.Items) < pageSize {
			break
		}
	}

	return tracks, nil
}

// SavedTrackCount returns the total number of saved tracks.
func (s *SpotifyService) SavedTrackCount(ctx context.Context) (int, error) {
	var page SpotifyPaginatedTracks
	if err := s.doRequest(ctx, http.MethodGet, "/me/tracks?limit=1&offset=0", nil, &page); err != nil {
		return 0, err
	}
	return page.Total, nil
}

// AudioFeatures fetches feature vectors for the given ids in batches of 100.
// IDs with no feature entry are absent from the result.
func (s *SpotifyService) AudioFeatures(ctx context.Context, ids []string) (map[string]models.FeatureVector, error) {
	features := make(map[string]models.FeatureVector, len(ids))

	for start := 0; start < len(ids); start += audioFeaturesMaxIDs {
		end := start + audioFeaturesMaxIDs
		if end > len(ids) {
			end = len(ids)
		}

		endpoint := "/audio-features?ids=" + url.QueryEscape(strings.Join(ids[start:end], ","))
		var resp audioFeaturesResponse
		if err := s.doRequest(ctx, http.MethodGet, endpoint, nil, &resp); err != nil {
			return nil, err
		}

		for _, f := range resp.AudioFeatures {
			if f == nil || f.ID == "" {
				continue
			}
			features[f.ID] = models.FeatureVector{
				Acousticness:     f.Acousticness,
				Danceability:     f.Danceability,
				Energy:           f.Energy,
				Instrumentalness: f.Instrumentalness,
				Liveness:         f.Liveness,
				Loudness:         f.Loudness,
				Speechiness:      f.Speechiness,
				Tempo:            f.Tempo,
				Valence:          f.Valence,
				Key:              f.Key,
				Mode:             f.Mode,
				TimeSignature:    f.TimeSignature,
			}
		}
	}

	return features, nil
}

// Recommendations requests similar tracks for the given seeds, targeted toward
// the centroid feature values when provided.
func (s *SpotifyService) Recommendations(ctx context.Context, seeds Seeds, target *models.FeatureVector, limit int) ([]models.TrackInfo, error) {
	params := url.Values{}
	params.Set("limit", strconv.Itoa(limit))

	if len(seeds.TrackIDs) > 0 {
		params.Set("seed_tracks", strings.Join(capSeeds(seeds.TrackIDs), ","))
	}
	if len(seeds.ArtistIDs) > 0 {
		params.Set("seed_artists", strings.Join(capSeeds(seeds.ArtistIDs), ","))
	}
	if len(seeds.Genres) > 0 {
		params.Set("seed_genres", strings.Join(capSeeds(seeds.Genres), ","))
	}

	if target != nil {
		dims := target.Dims()
		for i, name := range models.FeatureNames {
			params.Set("target_"+name, strconv.FormatFloat(dims[i], 'f', 4, 64))
		}
	}

	var resp recommendationsResponse
	if err := s.doRequest(ctx, http.MethodGet, "/recommendations?"+params.Encode(), nil, &resp); err != nil {
		return nil, err
	}

	tracks := make([]models.TrackInfo, 0, len(resp.Tracks))
	for _, t := range resp.Tracks {
		tracks = append(tracks, trackInfoFromSpotify(t, ""))
	}
	return tracks, nil
}

// Search performs a track search. Spotify query syntax (e.g. "year:2004") is
// passed through verbatim.
func (s *SpotifyService) Search(ctx context.Context, query string, limit int) ([]models.TrackInfo, error) {
	endpoint := fmt.Sprintf("/search?q=%s&type=track&limit=%d", url.QueryEscape(query), limit)

	var resp searchResponse
	if err := s.doRequest(ctx, http.MethodGet, endpoint, nil, &resp); err != nil {
		return nil, err
	}

	tracks := make([]models.TrackInfo, 0, len(resp.Tracks.Items))
	for _, t := range resp.Tracks.Items {
		tracks = append(tracks, trackInfoFromSpotify(t, ""))
	}
	return tracks, nil
}

// SearchArtists finds artists by name.
func (s *SpotifyService) SearchArtists(ctx context.Context, name string, limit int) ([]Artist, error) {
	endpoint := fmt.Sprintf("/search?q=%s&type=artist&limit=%d", url.QueryEscape(name), limit)

	var resp searchResponse
	if err := s.doRequest(ctx, http.MethodGet, endpoint, nil, &resp); err != nil {
		return nil, err
	}

	artists := make([]Artist, 0, len(resp.Artists.Items))
	for _, a := range resp.Artists.Items {
		artists = append(artists, Artist{ID: a.ID, Name: a.Name})
	}
	return artists, nil
}

// RelatedArtists returns artists similar to the given artist.
func (s *SpotifyService) RelatedArtists(ctx context.Context, artistID string) ([]Artist, error) {
	var resp artistsResponse
	if err := s.doRequest(ctx, http.MethodGet, "/artists/"+url.PathEscape(artistID)+"/related-artists", nil, &resp); err != nil {
		return nil, err
	}

	artists := make([]Artist, 0, len(resp.Artists))
	for _, a := range resp.Artists {
		artists = append(artists, Artist{ID: a.ID, Name: a.Name})
	}
	return artists, nil
}

// ArtistTopTracks returns the given artist's most popular tracks.
func (s *SpotifyService) ArtistTopTracks(ctx context.Context, artistID string) ([]models.TrackInfo, error) {
	endpoint := "/artists/" + url.PathEscape(artistID) + "/top-tracks?market=from_token"

	var resp topTracksResponse
	if err := s.doRequest(ctx, http.MethodGet, endpoint, nil, &resp); err != nil {
		return nil, err
	}

	tracks := make([]models.TrackInfo, 0, len(resp.Tracks))
	for _, t := range resp.Tracks {
		tracks = append(tracks, trackInfoFromSpotify(t, ""))
	}
	return tracks, nil
}

// AddToLibrary saves the given tracks to the user's library in batches of 50.
func (s *SpotifyService) AddToLibrary(ctx context.Context, ids []string) error {
	for start := 0; start < len(ids); start += libraryAddMaxIDs {
		end := start + libraryAddMaxIDs
		if end > len(ids) {
			end = len(ids)
		}

		body := map[string][]string{"ids": ids[start:end]}
		if err := s.doRequest(ctx, http.MethodPut, "/me/tracks", body, nil); err != nil {
			return err
		}
	}
	return nil
}

// doRequest performs an authenticated, rate-limited HTTP request to the Spotify API.
func (s *SpotifyService) doRequest(ctx context.Context, method, endpoint string, body any, result any) error {
	if s.token == nil {
		return fmt.Errorf("%w: no access token bound", shared.ErrNotAuthenticated)
	}

	if err := s.limiter.Wait(ctx); err != nil {
		return fmt.Errorf("%w: %v", shared.ErrCatalogRequest, err)
	}

	apiURL := spotifyBaseURL + endpoint

	var reader io.Reader
	if body != nil {
		encoded, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("failed to encode request body: %w", err)
		}
		reader = bytes.NewReader(encoded)
	}

	req, err := http.NewRequestWithContext(ctx, method, apiURL, reader)
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}

	req.Header.Set("Authorization", "Bearer "+s.token.AccessToken)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := s.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("%w: %v", shared.ErrCatalogRequest, err)
	}
	defer resp.Body.Close()

	payload, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("%w: reading response: %v", shared.ErrCatalogRequest, err)
	}

	if resp.StatusCode == http.StatusUnauthorized {
		return fmt.Errorf("%w: %s", shared.ErrTokenExpired, strings.TrimSpace(string(payload)))
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return fmt.Errorf("%w: %s %s: status %d: %s", shared.ErrCatalogRequest, method, endpoint, resp.StatusCode, strings.TrimSpace(string(payload)))
	}

	if result != nil && len(payload) > 0 {
		if err := json.Unmarshal(payload, result); err != nil {
			return fmt.Errorf("%w: decoding response: %v", shared.ErrCatalogRequest, err)
		}
	}

	return nil
}

// SetHTTPClient overrides the HTTP client, primarily for tests.
func (s *SpotifyService) SetHTTPClient(client *http.Client) {
	if client != nil {
		s.httpClient = client
	}
}

func tokenPairFromOAuth(token *oauth2.Token) *TokenPair {
	return &TokenPair{
		AccessToken:  token.AccessToken,
		RefreshToken: token.RefreshToken,
		ExpiresAt:    token.Expiry,
	}
}

func capSeeds(seeds []string) []string {
	if len(seeds) > maxRecommendationSeeds {
		return seeds[:maxRecommendationSeeds]
	}
	return seeds
}

func trackInfoFromSpotify(track SpotifyTrack, addedAt string) models.TrackInfo {
	artistNames := make([]string, 0, len(track.Artists))
	for _, artist := range track.Artists {
		artistNames = append(artistNames, artist.Name)
	}

	info := models.TrackInfo{
		SpotifyID:   track.ID,
		Name:        track.Name,
		ArtistName:  strings.Join(artistNames, ", "),
		AlbumName:   track.Album.Name,
		DurationMS:  track.DurationMS,
		Popularity:  track.Popularity,
		Explicit:    track.Explicit,
		PreviewURL:  track.PreviewURL,
		ExternalURL: track.ExternalURLs.Spotify,
		ReleaseDate: track.Album.ReleaseDate,
	}

	if len(track.Album.Images) > 0 {
		info.ImageURL = track.Album.Images[0].URL
	}

	if addedAt != "" {
		if ts, err := time.Parse(time.RFC3339, addedAt); err == nil {
			info.AddedAt = &ts
		}
	}

	return info
}
