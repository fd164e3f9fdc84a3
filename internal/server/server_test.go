package server

import (
	"database/sql"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/toquothty/spotify-nostalgic-recommend/internal/models"
	"github.com/toquothty/spotify-nostalgic-recommend/internal/progress"
	"github.com/toquothty/spotify-nostalgic-recommend/internal/recommend"
	"github.com/toquothty/spotify-nostalgic-recommend/internal/repositories"
	"github.com/toquothty/spotify-nostalgic-recommend/internal/services"
	"github.com/toquothty/spotify-nostalgic-recommend/internal/shared"
	internaltesting "github.com/toquothty/spotify-nostalgic-recommend/internal/testing"
	"github.com/toquothty/spotify-nostalgic-recommend/internal/tasks"
)

type apiFixture struct {
	db       *sql.DB
	router   *BasicRouter
	catalog  *internaltesting.MockCatalog
	store    *progress.Store
	user     *models.User
	session  *models.Session
	users    *repositories.UserRepository
	sessions *repositories.SessionRepository
	tracks   *repositories.TrackRepository
	clusters *repositories.ClusterRepository
}

func setupAPI(t *testing.T) *apiFixture {
	t.Helper()

	db, err := shared.NewDatabase(":memory:")
	if err != nil {
		t.Fatalf("failed to create test database: %v", err)
	}
	t.Cleanup(func() { db.Close() })

	if err := shared.RunMigrations(db); err != nil {
		t.Fatalf("failed to run migrations: %v", err)
	}

	users := repositories.NewUserRepository(db)
	user := models.NewUser(0, "spotify-user-1", "Test User", "test@example.com", "US")
	dob := time.Date(1990, 5, 15, 0, 0, 0, 0, time.UTC)
	user.SetDateOfBirth(&dob)
	if err := users.Create(user); err != nil {
		t.Fatalf("failed to create user: %v", err)
	}

	sessions := repositories.NewSessionRepository(db)
	session := models.NewSession(0, user.ID(), "access", "refresh", time.Now().Add(time.Hour))
	if err := sessions.Create(session); err != nil {
		t.Fatalf("failed to create session: %v", err)
	}

	tracks := repositories.NewTrackRepository(db)
	clusters := repositories.NewClusterRepository(db)
	recs := repositories.NewRecommendationRepository(db)

	catalog := internaltesting.NewMockCatalog()
	store := progress.NewStore(repositories.NewProgressRepository(db), nil)

	analysisConfig := shared.AnalysisConfig{
		ClusterCount:       10,
		TrackLimit:         1000,
		MaxIterations:      100,
		RecentWindowDays:   90,
		NostalgicAfterDays: 365,
	}
	limits := shared.LimitsConfig{
		DailyCap:           4,
		Cooldown:           shared.Duration(4 * time.Hour),
		PopularityFloor:    30,
		ForgottenAfterDays: 180,
	}

	engine := tasks.NewAnalysisEngine(catalog, users, sessions, tracks, clusters, recs, store, analysisConfig, nil)
	generator := recommend.NewGenerator(tracks, clusters, recs, sessions, limits, nil)

	router := NewBasicRouter()
	router.Use(Recover(nil))
	router.Handler(NewHealthHandler(catalog))

	router.Use(SessionAuth(sessions, users))
	router.Handler(NewAnalysisHandler(engine, store, clusters))
	router.Handler(NewRecommendationHandler(generator, catalog, sessions))
	router.Handler(NewProfileHandler(users))

	return &apiFixture{
		db:       db,
		router:   router,
		catalog:  catalog,
		store:    store,
		user:     user,
		session:  session,
		users:    users,
		sessions: sessions,
		tracks:   tracks,
		clusters: clusters,
	}
}

func (f *apiFixture) do(t *testing.T, method, path, body, token string) *httptest.ResponseRecorder {
	t.Helper()

	var reader *strings.Reader
	if body == "" {
		reader = strings.NewReader("")
	} else {
		reader = strings.NewReader(body)
	}

	req := httptest.NewRequest(method, path, reader)
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}

	recorder := httptest.NewRecorder()
	f.router.ServeHTTP(recorder, req)
	return recorder
}

// seedAnalyzedLibrary stores tracks with features and a single cluster, as a
// completed analysis would.
func (f *apiFixture) seedAnalyzedLibrary(t *testing.T, n int) {
	t.Helper()

	library := make([]*models.LibraryTrack, 0, n)
	for i := 0; i < n; i++ {
		added := time.Now().AddDate(0, 0, -30-i)
		library = append(library, models.NewLibraryTrack(0, f.user.ID(), models.TrackInfo{
			SpotifyID:  fmt.Sprintf("lib%d", i),
			Name:       fmt.Sprintf("Library Track %d", i),
			ArtistName: fmt.Sprintf("Library Artist %d", i%3),
			Popularity: 50,
			AddedAt:    &added,
			Features: &models.FeatureVector{
				Acousticness: 0.3, Danceability: 0.6, Energy: 0.7, Instrumentalness: 0.1,
				Liveness: 0.2, Loudness: -7, Speechiness: 0.05, Tempo: 120, Valence: 0.5,
			},
		}))
	}

	if err := f.tracks.ReplaceLibrary(f.user.ID(), library); err != nil {
		t.Fatalf("failed to seed library: %v", err)
	}

	stored, err := f.tracks.ListByUser(f.user.ID())
	if err != nil {
		t.Fatalf("failed to list library: %v", err)
	}
	assignments := make(map[string]int, len(stored))
	for _, track := range stored {
		assignments[track.ID()] = 0
	}
	if err := f.tracks.AssignClusters(f.user.ID(), assignments); err != nil {
		t.Fatalf("failed to assign clusters: %v", err)
	}

	cluster := models.NewTasteCluster(0, f.user.ID(), 0, "Cluster 1", models.FeatureVector{
		Acousticness: 0.3, Danceability: 0.6, Energy: 0.7, Tempo: 120, Valence: 0.5, Loudness: -7,
	}, n)
	if err := f.clusters.ReplaceAll(f.user.ID(), []*models.TasteCluster{cluster}); err != nil {
		t.Fatalf("failed to seed cluster: %v", err)
	}
}

func TestHealthEndpoint(t *testing.T) {
	f := setupAPI(t)

	resp := f.do(t, http.MethodGet, "/api/health", "", "")
	if resp.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", resp.Code)
	}

	var body map[string]string
	if err := json.Unmarshal(resp.Body.Bytes(), &body); err != nil {
		t.Fatalf("failed to decode response: %v", err)
	}
	if body["status"] != "ok" || body["catalog"] != "mock" {
		t.Errorf("unexpected health body: %v", body)
	}
}

func TestSessionAuth(t *testing.T) {
	f := setupAPI(t)

	t.Run("MissingToken", func(t *testing.T) {
		resp := f.do(t, http.MethodGet, "/api/profile", "", "")
		if resp.Code != http.StatusUnauthorized {
			t.Errorf("expected 401, got %d", resp.Code)
		}
	})

	t.Run("UnknownToken", func(t *testing.T) {
		resp := f.do(t, http.MethodGet, "/api/profile", "", "no-such-session")
		if resp.Code != http.StatusUnauthorized {
			t.Errorf("expected 401, got %d", resp.Code)
		}
	})

	t.Run("XSessionIDHeader", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodGet, "/api/profile", nil)
		req.Header.Set("X-Session-ID", f.session.ID())
		recorder := httptest.NewRecorder()
		f.router.ServeHTTP(recorder, req)
		if recorder.Code != http.StatusOK {
			t.Errorf("expected 200, got %d", recorder.Code)
		}
	})
}

func TestAnalysisEndpoints(t *testing.T) {
	f := setupAPI(t)

	saved := make([]models.TrackInfo, 0, 24)
	features := make(map[string]models.FeatureVector, 24)
	for i := 0; i < 24; i++ {
		added := time.Now().AddDate(0, 0, -i)
		id := fmt.Sprintf("saved%d", i)
		saved = append(saved, models.TrackInfo{
			SpotifyID: id, Name: fmt.Sprintf("Track %d", i), ArtistName: "Artist",
			Popularity: 50, AddedAt: &added,
		})
		features[id] = models.FeatureVector{
			Acousticness: 0.1 + float64(i%2)*0.7, Danceability: 0.5, Energy: 0.9 - float64(i%2)*0.6,
			Instrumentalness: 0.05, Liveness: 0.2, Loudness: -6, Speechiness: 0.05,
			Tempo: 130 - float64(i%2)*40, Valence: 0.6,
		}
	}
	f.catalog.SavedTracksFunc = func(limit int) ([]models.TrackInfo, error) { return saved, nil }
	f.catalog.AudioFeaturesFunc = func(ids []string) (map[string]models.FeatureVector, error) { return features, nil }

	token := f.session.ID()

	resp := f.do(t, http.MethodPost, "/api/analysis/start", `{}`, token)
	if resp.Code != http.StatusAccepted {
		t.Fatalf("expected 202, got %d: %s", resp.Code, resp.Body.String())
	}

	deadline := time.Now().Add(10 * time.Second)
	var snapshot models.AnalysisProgress
	for {
		if time.Now().After(deadline) {
			t.Fatalf("analysis did not finish, last status %s", snapshot.Status)
		}
		resp := f.do(t, http.MethodGet, "/api/analysis/progress", "", token)
		if resp.Code != http.StatusOK {
			t.Fatalf("expected 200 from progress, got %d", resp.Code)
		}
		if err := json.Unmarshal(resp.Body.Bytes(), &snapshot); err != nil {
			t.Fatalf("failed to decode progress: %v", err)
		}
		if snapshot.Status.Terminal() {
			break
		}
		time.Sleep(5 * time.Millisecond)
	}

	if snapshot.Status != models.StatusCompleted {
		t.Fatalf("expected completed analysis, got %s", snapshot.Status)
	}
	if snapshot.ProgressPercentage != 100 {
		t.Errorf("expected 100 percent, got %d", snapshot.ProgressPercentage)
	}

	t.Run("ActiveAfterCompletion", func(t *testing.T) {
		resp := f.do(t, http.MethodGet, "/api/analysis/active", "", token)
		if resp.Code != http.StatusOK {
			t.Fatalf("expected 200, got %d", resp.Code)
		}
		var body struct {
			Active bool                       `json:"active"`
			Runs   map[string]json.RawMessage `json:"runs"`
		}
		if err := json.Unmarshal(resp.Body.Bytes(), &body); err != nil {
			t.Fatalf("failed to decode active response: %v", err)
		}
		if body.Active {
			t.Error("expected no active run after completion")
		}
		if len(body.Runs) != 0 {
			t.Errorf("expected empty run map, got %d entries", len(body.Runs))
		}
	})

	t.Run("Summary", func(t *testing.T) {
		resp := f.do(t, http.MethodGet, "/api/library/summary", "", token)
		if resp.Code != http.StatusOK {
			t.Fatalf("expected 200, got %d", resp.Code)
		}

		var summary tasks.LibrarySummary
		if err := json.Unmarshal(resp.Body.Bytes(), &summary); err != nil {
			t.Fatalf("failed to decode summary: %v", err)
		}
		if !summary.Analyzed || summary.TrackCount != 24 {
			t.Errorf("unexpected summary: %+v", summary)
		}
		if summary.NeedsBirthdate {
			t.Error("did not expect needs_birthdate for a user with a date of birth")
		}
	})

	t.Run("Clusters", func(t *testing.T) {
		resp := f.do(t, http.MethodGet, "/api/library/clusters", "", token)
		if resp.Code != http.StatusOK {
			t.Fatalf("expected 200, got %d", resp.Code)
		}

		var clusters []map[string]any
		if err := json.Unmarshal(resp.Body.Bytes(), &clusters); err != nil {
			t.Fatalf("failed to decode clusters: %v", err)
		}
		if len(clusters) < 2 {
			t.Errorf("expected at least 2 clusters, got %d", len(clusters))
		}
	})
}

func TestClearErrorEndpoint(t *testing.T) {
	f := setupAPI(t)
	token := f.session.ID()

	// Default mock has an empty library, so the run fails.
	resp := f.do(t, http.MethodPost, "/api/analysis/start", `{}`, token)
	if resp.Code != http.StatusAccepted {
		t.Fatalf("expected 202, got %d", resp.Code)
	}

	deadline := time.Now().Add(10 * time.Second)
	for {
		if time.Now().After(deadline) {
			t.Fatal("analysis did not fail in time")
		}
		snapshot, err := f.store.Get(f.user.ID())
		if err != nil {
			t.Fatalf("failed to read progress: %v", err)
		}
		if snapshot.Status.Terminal() {
			if snapshot.Status != models.StatusFailed {
				t.Fatalf("expected failed run, got %s", snapshot.Status)
			}
			break
		}
		time.Sleep(5 * time.Millisecond)
	}

	resp = f.do(t, http.MethodPost, "/api/analysis/clear-error", "", token)
	if resp.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", resp.Code, resp.Body.String())
	}

	// Clearing drops the cached snapshot; polling falls back to the durable
	// record, which keeps the failed run visible until the next run.
	resp = f.do(t, http.MethodGet, "/api/analysis/progress", "", token)
	var snapshot models.AnalysisProgress
	if err := json.Unmarshal(resp.Body.Bytes(), &snapshot); err != nil {
		t.Fatalf("failed to decode progress: %v", err)
	}
	if snapshot.Status != models.StatusFailed {
		t.Errorf("expected durable failed record after clear, got %s", snapshot.Status)
	}
}

func TestRecommendationEndpoints(t *testing.T) {
	f := setupAPI(t)
	f.seedAnalyzedLibrary(t, 6)
	token := f.session.ID()

	f.catalog.RecommendationsFunc = func(seeds services.Seeds, target *models.FeatureVector, limit int) ([]models.TrackInfo, error) {
		return internaltesting.CatalogTracks(0, 12, 60), nil
	}

	resp := f.do(t, http.MethodPost, "/api/recommendations", `{"kind":"cluster","limit":5}`, token)
	if resp.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", resp.Code, resp.Body.String())
	}

	var batch []map[string]any
	if err := json.Unmarshal(resp.Body.Bytes(), &batch); err != nil {
		t.Fatalf("failed to decode batch: %v", err)
	}
	if len(batch) != 5 {
		t.Fatalf("expected 5 recommendations, got %d", len(batch))
	}
	if batch[0]["kind"] != "cluster" {
		t.Errorf("expected cluster kind, got %v", batch[0]["kind"])
	}

	t.Run("QuotaConsumed", func(t *testing.T) {
		resp := f.do(t, http.MethodGet, "/api/recommendations/quota", "", token)
		if resp.Code != http.StatusOK {
			t.Fatalf("expected 200, got %d", resp.Code)
		}

		var quota map[string]int
		if err := json.Unmarshal(resp.Body.Bytes(), &quota); err != nil {
			t.Fatalf("failed to decode quota: %v", err)
		}
		if quota["remaining"] != 3 {
			t.Errorf("expected 3 remaining, got %d", quota["remaining"])
		}
	})

	t.Run("CooldownBlocksNextBatch", func(t *testing.T) {
		resp := f.do(t, http.MethodPost, "/api/recommendations", `{"kind":"cluster","limit":5}`, token)
		if resp.Code != http.StatusTooManyRequests {
			t.Errorf("expected 429, got %d", resp.Code)
		}
	})

	t.Run("History", func(t *testing.T) {
		resp := f.do(t, http.MethodGet, "/api/recommendations/history?limit=3", "", token)
		if resp.Code != http.StatusOK {
			t.Fatalf("expected 200, got %d", resp.Code)
		}

		var history []map[string]any
		if err := json.Unmarshal(resp.Body.Bytes(), &history); err != nil {
			t.Fatalf("failed to decode history: %v", err)
		}
		if len(history) != 3 {
			t.Errorf("expected 3 history entries, got %d", len(history))
		}
	})

	t.Run("HistoryRejectsBadLimit", func(t *testing.T) {
		resp := f.do(t, http.MethodGet, "/api/recommendations/history?limit=nope", "", token)
		if resp.Code != http.StatusBadRequest {
			t.Errorf("expected 400, got %d", resp.Code)
		}
	})

	t.Run("Feedback", func(t *testing.T) {
		recID := batch[0]["id"].(string)
		body := fmt.Sprintf(`{"recommendation_id":%q,"liked":true}`, recID)

		resp := f.do(t, http.MethodPost, "/api/recommendations/feedback", body, token)
		if resp.Code != http.StatusOK {
			t.Fatalf("expected 200, got %d: %s", resp.Code, resp.Body.String())
		}

		var view map[string]any
		if err := json.Unmarshal(resp.Body.Bytes(), &view); err != nil {
			t.Fatalf("failed to decode feedback response: %v", err)
		}
		if view["liked"] != true {
			t.Errorf("expected liked=true, got %v", view["liked"])
		}

		if len(f.catalog.AddedToLibrary) != 1 {
			t.Errorf("expected liked track saved to library, got %v", f.catalog.AddedToLibrary)
		}
	})

	t.Run("FeedbackUnknownRecommendation", func(t *testing.T) {
		resp := f.do(t, http.MethodPost, "/api/recommendations/feedback", `{"recommendation_id":"nope","liked":true}`, token)
		if resp.Code != http.StatusNotFound {
			t.Errorf("expected 404, got %d: %s", resp.Code, resp.Body.String())
		}
	})

	t.Run("InvalidKind", func(t *testing.T) {
		resp := f.do(t, http.MethodPost, "/api/recommendations", `{"kind":"surprise","limit":5}`, token)
		if resp.Code != http.StatusBadRequest {
			t.Errorf("expected 400, got %d", resp.Code)
		}
	})
}

func TestGenerateRequiresAnalysis(t *testing.T) {
	f := setupAPI(t)
	token := f.session.ID()

	// Library seeded, but no clusters stored.
	track := models.NewLibraryTrack(0, f.user.ID(), models.TrackInfo{SpotifyID: "lib0", Name: "Track", ArtistName: "Artist"})
	if err := f.tracks.ReplaceLibrary(f.user.ID(), []*models.LibraryTrack{track}); err != nil {
		t.Fatalf("failed to seed library: %v", err)
	}

	resp := f.do(t, http.MethodPost, "/api/recommendations", `{"kind":"cluster","limit":5}`, token)
	if resp.Code != http.StatusBadRequest {
		t.Errorf("expected 400, got %d: %s", resp.Code, resp.Body.String())
	}
}

func TestProfileEndpoints(t *testing.T) {
	f := setupAPI(t)
	token := f.session.ID()

	t.Run("Get", func(t *testing.T) {
		resp := f.do(t, http.MethodGet, "/api/profile", "", token)
		if resp.Code != http.StatusOK {
			t.Fatalf("expected 200, got %d", resp.Code)
		}

		var view map[string]any
		if err := json.Unmarshal(resp.Body.Bytes(), &view); err != nil {
			t.Fatalf("failed to decode profile: %v", err)
		}
		if view["spotify_id"] != "spotify-user-1" {
			t.Errorf("unexpected spotify id %v", view["spotify_id"])
		}
		if view["date_of_birth"] != "1990-05-15" {
			t.Errorf("unexpected date of birth %v", view["date_of_birth"])
		}
	})

	t.Run("SetBirthdate", func(t *testing.T) {
		resp := f.do(t, http.MethodPut, "/api/profile/birthdate", `{"date_of_birth":"1988-03-02"}`, token)
		if resp.Code != http.StatusOK {
			t.Fatalf("expected 200, got %d: %s", resp.Code, resp.Body.String())
		}

		stored, err := f.users.Get(f.user.ID())
		if err != nil {
			t.Fatalf("failed to get user: %v", err)
		}
		if stored.DateOfBirth() == nil || stored.DateOfBirth().Format("2006-01-02") != "1988-03-02" {
			t.Errorf("birthdate not persisted, got %v", stored.DateOfBirth())
		}
	})

	t.Run("RejectsBadFormat", func(t *testing.T) {
		resp := f.do(t, http.MethodPut, "/api/profile/birthdate", `{"date_of_birth":"02/03/1988"}`, token)
		if resp.Code != http.StatusBadRequest {
			t.Errorf("expected 400, got %d", resp.Code)
		}
	})

	t.Run("RejectsFutureDate", func(t *testing.T) {
		future := time.Now().AddDate(1, 0, 0).Format("2006-01-02")
		resp := f.do(t, http.MethodPut, "/api/profile/birthdate", fmt.Sprintf(`{"date_of_birth":%q}`, future), token)
		if resp.Code != http.StatusBadRequest {
			t.Errorf("expected 400, got %d", resp.Code)
		}
	})
}

func TestOAuthCallback(t *testing.T) {
	f := setupAPI(t)

	handler := NewOAuthHandler(f.catalog, f.users, f.sessions, "expected-state")
	router := NewBasicRouter()
	router.Handler(handler)

	t.Run("InvalidState", func(t *testing.T) {
		h := NewOAuthHandler(f.catalog, f.users, f.sessions, "expected-state")
		r := NewBasicRouter()
		r.Handler(h)

		req := httptest.NewRequest(http.MethodGet, "/callback?state=wrong&code=abc", nil)
		recorder := httptest.NewRecorder()
		r.ServeHTTP(recorder, req)

		if recorder.Code != http.StatusBadRequest {
			t.Errorf("expected 400, got %d", recorder.Code)
		}
		result := <-h.Result()
		if result.Error() == nil {
			t.Error("expected state validation error")
		}
	})

	t.Run("SuccessCreatesUserAndSession", func(t *testing.T) {
		f.catalog.ProfileFunc = func() (*services.Profile, error) {
			return &services.Profile{SpotifyID: "fresh-user", DisplayName: "Fresh User", Email: "fresh@example.com", Country: "US"}, nil
		}

		req := httptest.NewRequest(http.MethodGet, "/callback?state=expected-state&code=abc", nil)
		recorder := httptest.NewRecorder()
		router.ServeHTTP(recorder, req)

		if recorder.Code != http.StatusOK {
			t.Fatalf("expected 200, got %d: %s", recorder.Code, recorder.Body.String())
		}

		result := <-handler.Result()
		if result.Error() != nil {
			t.Fatalf("unexpected error: %v", result.Error())
		}
		if result.UserID == "" || result.SessionID == "" {
			t.Fatalf("expected user and session ids, got %+v", result)
		}

		user, err := f.users.GetBySpotifyID("fresh-user")
		if err != nil {
			t.Fatalf("user not persisted: %v", err)
		}
		session, err := f.sessions.Get(result.SessionID)
		if err != nil {
			t.Fatalf("session not persisted: %v", err)
		}
		if session.UserID() != user.ID() {
			t.Errorf("session bound to wrong user")
		}
		if session.AccessToken() != "mock-access" {
			t.Errorf("unexpected access token %s", session.AccessToken())
		}
	})

	t.Run("SecondCallbackRejected", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodGet, "/callback?state=expected-state&code=abc", nil)
		recorder := httptest.NewRecorder()
		router.ServeHTTP(recorder, req)

		if recorder.Code != http.StatusBadRequest {
			t.Errorf("expected 400 for replayed callback, got %d", recorder.Code)
		}
	})
}
