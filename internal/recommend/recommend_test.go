package recommend

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/toquothty/spotify-nostalgic-recommend/internal/models"
	"github.com/toquothty/spotify-nostalgic-recommend/internal/repositories"
	"github.com/toquothty/spotify-nostalgic-recommend/internal/services"
	"github.com/toquothty/spotify-nostalgic-recommend/internal/shared"
	internaltesting "github.com/toquothty/spotify-nostalgic-recommend/internal/testing"
)

func testLimits() shared.LimitsConfig {
	return shared.LimitsConfig{
		DailyCap:           4,
		Cooldown:           shared.Duration(4 * time.Hour),
		PopularityFloor:    30,
		ForgottenAfterDays: 180,
	}
}

type fixture struct {
	db      *sql.DB
	gen     *Generator
	catalog *internaltesting.MockCatalog
	user    *models.User
	session *models.Session
}

func setup(t *testing.T) *fixture {
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

	gen := NewGenerator(
		repositories.NewTrackRepository(db),
		repositories.NewClusterRepository(db),
		repositories.NewRecommendationRepository(db),
		sessions,
		testLimits(),
		nil,
	)

	return &fixture{
		db:      db,
		gen:     gen,
		catalog: internaltesting.NewMockCatalog(),
		user:    user,
		session: session,
	}
}

// seedLibrary stores n tracks, clustered into one cluster when withCluster is set.
func (f *fixture) seedLibrary(t *testing.T, n int, withCluster bool) []*models.LibraryTrack {
	t.Helper()

	repo := repositories.NewTrackRepository(f.db)
	var tracks []*models.LibraryTrack
	for i := 0; i < n; i++ {
		added := time.Now().AddDate(0, 0, -30)
		tracks = append(tracks, models.NewLibraryTrack(0, f.user.ID(), models.TrackInfo{
			SpotifyID:  fmt.Sprintf("lib%d", i),
			Name:       fmt.Sprintf("Library Track %d", i),
			ArtistName: "Library Artist",
			Popularity: 50,
			AddedAt:    &added,
		}))
	}
	if err := repo.ReplaceLibrary(f.user.ID(), tracks); err != nil {
		t.Fatalf("failed to seed library: %v", err)
	}

	if withCluster {
		clusters := repositories.NewClusterRepository(f.db)
		cluster := models.NewTasteCluster(0, f.user.ID(), 0, "Cluster 1", models.DefaultFeatureVector(), n)
		if err := clusters.ReplaceAll(f.user.ID(), []*models.TasteCluster{cluster}); err != nil {
			t.Fatalf("failed to seed cluster: %v", err)
		}

		assignments := make(map[string]int, n)
		for _, track := range tracks {
			assignments[track.ID()] = 0
		}
		if err := repo.AssignClusters(f.user.ID(), assignments); err != nil {
			t.Fatalf("failed to assign clusters: %v", err)
		}
	}

	return tracks
}

func TestGateBehavior(t *testing.T) {
	gate := NewGate(testLimits())

	t.Run("FreshSessionPasses", func(t *testing.T) {
		session := models.NewSession(0, "u", "a", "r", time.Now())
		if err := gate.Check(session, time.Now()); err != nil {
			t.Errorf("expected fresh session to pass, got %v", err)
		}
	})

	t.Run("CooldownBlocks", func(t *testing.T) {
		session := models.NewSession(0, "u", "a", "r", time.Now())
		now := time.Now()
		gate.Consume(session, now)

		err := gate.Check(session, now.Add(time.Hour))
		if !errors.Is(err, shared.ErrRateLimited) {
			t.Errorf("expected ErrRateLimited during cooldown, got %v", err)
		}

		if err := gate.Check(session, now.Add(5*time.Hour)); err != nil {
			t.Errorf("expected pass after cooldown, got %v", err)
		}
	})

	t.Run("DailyCapBlocks", func(t *testing.T) {
		session := models.NewSession(0, "u", "a", "r", time.Now())
		now := time.Date(2026, 8, 29, 0, 0, 0, 0, time.UTC)
		for i := 0; i < 4; i++ {
			gate.Consume(session, now.Add(time.Duration(i)*5*time.Hour))
		}

		err := gate.Check(session, now.Add(23*time.Hour))
		if !errors.Is(err, shared.ErrRateLimited) {
			t.Errorf("expected ErrRateLimited at daily cap, got %v", err)
		}
	})

	t.Run("DayRolloverResets", func(t *testing.T) {
		session := models.NewSession(0, "u", "a", "r", time.Now())
		yesterday := time.Date(2026, 8, 28, 10, 0, 0, 0, time.UTC)
		last := yesterday
		session.SetRateLimitState(&last, 4)

		today := time.Date(2026, 8, 29, 10, 0, 0, 0, time.UTC)
		if err := gate.Check(session, today); err != nil {
			t.Errorf("expected pass after day rollover, got %v", err)
		}
		if remaining := gate.Remaining(session, today); remaining != 4 {
			t.Errorf("expected full quota after rollover, got %d", remaining)
		}
	})
}

func TestGenerateClusterKind(t *testing.T) {
	f := setup(t)
	f.seedLibrary(t, 5, true)
	f.catalog.RecommendationsFunc = func(seeds services.Seeds, target *models.FeatureVector, limit int) ([]models.TrackInfo, error) {
		if len(seeds.TrackIDs) == 0 {
			t.Error("expected seed tracks from cluster members")
		}
		if target == nil {
			t.Error("expected centroid target")
		}
		return internaltesting.CatalogTracks(0, 20, 60), nil
	}

	recs, err := f.gen.Generate(context.Background(), f.catalog, f.user, f.session, models.KindCluster, 10)
	if err != nil {
		t.Fatalf("generate failed: %v", err)
	}

	if len(recs) != 10 {
		t.Fatalf("expected 10 recommendations, got %d", len(recs))
	}
	for _, rec := range recs {
		if rec.Kind() != models.KindCluster {
			t.Errorf("expected cluster kind, got %s", rec.Kind())
		}
		if rec.SourceClusterIndex() == nil || *rec.SourceClusterIndex() != 0 {
			t.Error("expected source cluster index 0")
		}
		if rec.Confidence() != 0.9 {
			t.Errorf("expected confidence 0.9 for popularity 60, got %f", rec.Confidence())
		}
	}

	t.Run("QuotaConsumed", func(t *testing.T) {
		if f.session.RecommendationCountToday() != 1 {
			t.Errorf("expected count 1, got %d", f.session.RecommendationCountToday())
		}
		if f.session.LastRecommendationAt() == nil {
			t.Error("expected issuance timestamp")
		}
	})

	t.Run("SecondBatchRateLimited", func(t *testing.T) {
		_, err := f.gen.Generate(context.Background(), f.catalog, f.user, f.session, models.KindCluster, 10)
		if !errors.Is(err, shared.ErrRateLimited) {
			t.Errorf("expected ErrRateLimited within cooldown, got %v", err)
		}
	})
}

func TestGenerateClusterArtistFallback(t *testing.T) {
	f := setup(t)
	f.seedLibrary(t, 5, true)

	// Seeded recommendations yield nothing; the generator should walk the
	// cluster's dominant artist instead.
	f.catalog.RecommendationsFunc = func(seeds services.Seeds, target *models.FeatureVector, limit int) ([]models.TrackInfo, error) {
		return nil, nil
	}
	f.catalog.SearchArtistsFunc = func(name string, limit int) ([]services.Artist, error) {
		if name != "Library Artist" {
			t.Errorf("expected dominant artist search, got %q", name)
		}
		return []services.Artist{{ID: "artist-1", Name: name}}, nil
	}
	f.catalog.RelatedArtistsFunc = func(artistID string) ([]services.Artist, error) {
		if artistID != "artist-1" {
			t.Errorf("expected related lookup for artist-1, got %q", artistID)
		}
		return []services.Artist{{ID: "artist-2", Name: "Related Artist"}}, nil
	}
	f.catalog.ArtistTopTracksFunc = func(artistID string) ([]models.TrackInfo, error) {
		if artistID == "artist-1" {
			return internaltesting.CatalogTracks(0, 3, 70), nil
		}
		return internaltesting.CatalogTracks(100, 3, 70), nil
	}

	recs, err := f.gen.Generate(context.Background(), f.catalog, f.user, f.session, models.KindCluster, 10)
	if err != nil {
		t.Fatalf("generate failed: %v", err)
	}
	if len(recs) != 6 {
		t.Fatalf("expected 6 recommendations from the artist walk, got %d", len(recs))
	}
	for _, rec := range recs {
		if rec.Kind() != models.KindCluster {
			t.Errorf("expected cluster kind, got %s", rec.Kind())
		}
	}
}

func TestGenerateNeverRepeatsTracks(t *testing.T) {
	f := setup(t)
	f.seedLibrary(t, 5, true)

	// The catalog keeps returning the same 12 tracks.
	f.catalog.RecommendationsFunc = func(seeds services.Seeds, target *models.FeatureVector, limit int) ([]models.TrackInfo, error) {
		return internaltesting.CatalogTracks(0, 12, 60), nil
	}

	first, err := f.gen.Generate(context.Background(), f.catalog, f.user, f.session, models.KindCluster, 10)
	if err != nil {
		t.Fatalf("generate failed: %v", err)
	}
	if len(first) != 10 {
		t.Fatalf("expected 10 recommendations, got %d", len(first))
	}

	// Reset the gate so only the dedup filter is in play.
	f.session.SetRateLimitState(nil, 0)

	second, err := f.gen.Generate(context.Background(), f.catalog, f.user, f.session, models.KindCluster, 10)
	if err != nil {
		t.Fatalf("generate failed: %v", err)
	}
	if len(second) != 2 {
		t.Fatalf("expected only 2 unseen tracks, got %d", len(second))
	}

	seen := make(map[string]bool)
	for _, rec := range first {
		seen[rec.SpotifyTrackID()] = true
	}
	for _, rec := range second {
		if seen[rec.SpotifyTrackID()] {
			t.Errorf("track %s recommended twice", rec.SpotifyTrackID())
		}
	}
}

func TestGenerateFiltersLibraryTracks(t *testing.T) {
	f := setup(t)
	tracks := f.seedLibrary(t, 5, true)

	f.catalog.RecommendationsFunc = func(seeds services.Seeds, target *models.FeatureVector, limit int) ([]models.TrackInfo, error) {
		// First result is already in the library by id, second by
		// normalized title/artist, rest are new.
		results := internaltesting.CatalogTracks(0, 5, 60)
		results[0].SpotifyID = tracks[0].Info().SpotifyID
		results[1].Name = "  library TRACK 1 "
		results[1].ArtistName = "Library Artist"
		return results, nil
	}

	recs, err := f.gen.Generate(context.Background(), f.catalog, f.user, f.session, models.KindCluster, 10)
	if err != nil {
		t.Fatalf("generate failed: %v", err)
	}

	if len(recs) != 3 {
		t.Fatalf("expected 3 recommendations after library filtering, got %d", len(recs))
	}
	for _, rec := range recs {
		if rec.SpotifyTrackID() == tracks[0].Info().SpotifyID {
			t.Error("recommended a track already in the library")
		}
	}
}

func TestGenerateEmptyBatchCostsNothing(t *testing.T) {
	f := setup(t)
	f.seedLibrary(t, 5, true)

	f.catalog.RecommendationsFunc = func(seeds services.Seeds, target *models.FeatureVector, limit int) ([]models.TrackInfo, error) {
		// Everything the catalog returns is already in the library.
		return []models.TrackInfo{{SpotifyID: "lib0", Name: "Library Track 0", ArtistName: "Library Artist"}}, nil
	}

	recs, err := f.gen.Generate(context.Background(), f.catalog, f.user, f.session, models.KindCluster, 10)
	if err != nil {
		t.Fatalf("generate failed: %v", err)
	}
	if len(recs) != 0 {
		t.Fatalf("expected empty batch, got %d", len(recs))
	}
	if f.session.RecommendationCountToday() != 0 {
		t.Errorf("expected no quota consumed for empty batch, got %d", f.session.RecommendationCountToday())
	}
}

func TestGenerateClusterRequiresAnalysis(t *testing.T) {
	f := setup(t)
	f.seedLibrary(t, 5, false)

	_, err := f.gen.Generate(context.Background(), f.catalog, f.user, f.session, models.KindCluster, 10)
	if !errors.Is(err, shared.ErrLibraryNotStudied) {
		t.Errorf("expected ErrLibraryNotStudied, got %v", err)
	}
}

func TestGenerateNostalgiaKind(t *testing.T) {
	f := setup(t)
	f.seedLibrary(t, 3, false)

	f.catalog.SearchFunc = func(query string, limit int) ([]models.TrackInfo, error) {
		tracks := internaltesting.CatalogTracks(len(f.catalog.SearchQueries)*100, 2, 55)
		// One result below the popularity floor per year.
		low := internaltesting.CatalogTracks(len(f.catalog.SearchQueries)*100+50, 1, 10)
		return append(tracks, low...), nil
	}

	recs, err := f.gen.Generate(context.Background(), f.catalog, f.user, f.session, models.KindNostalgia, 10)
	if err != nil {
		t.Fatalf("generate failed: %v", err)
	}

	t.Run("SearchesFormativeYears", func(t *testing.T) {
		// Born 1990: formative years 2002 through 2008.
		if len(f.catalog.SearchQueries) != 7 {
			t.Fatalf("expected 7 year searches, got %d", len(f.catalog.SearchQueries))
		}
		if f.catalog.SearchQueries[0] != "year:2002" || f.catalog.SearchQueries[6] != "year:2008" {
			t.Errorf("unexpected query range: %v", f.catalog.SearchQueries)
		}
	})

	t.Run("PopularityFloorApplied", func(t *testing.T) {
		// 7 years x 2 qualifying tracks = 14 candidates, capped at 10.
		if len(recs) != 10 {
			t.Fatalf("expected 10 recommendations, got %d", len(recs))
		}
		for _, rec := range recs {
			if rec.Kind() != models.KindNostalgia {
				t.Errorf("expected nostalgia kind, got %s", rec.Kind())
			}
		}
	})
}

func TestNostalgiaUndatedTracksSortLast(t *testing.T) {
	f := setup(t)

	f.catalog.SearchFunc = func(query string, limit int) ([]models.TrackInfo, error) {
		if query != "year:2002" {
			return nil, nil
		}
		return []models.TrackInfo{
			{SpotifyID: "undated", Name: "Mystery Single", ArtistName: "Lost Tapes", Popularity: 90},
			{SpotifyID: "dated-old", Name: "Early Hit", ArtistName: "Lost Tapes", Popularity: 40, ReleaseDate: "2002-03-01"},
			{SpotifyID: "dated-new", Name: "Late Hit", ArtistName: "Lost Tapes", Popularity: 40, ReleaseDate: "2004-06-01"},
		}, nil
	}

	candidates, err := f.gen.nostalgiaCandidates(context.Background(), f.catalog, f.user, 10)
	if err != nil {
		t.Fatalf("nostalgia candidates failed: %v", err)
	}
	if len(candidates) != 3 {
		t.Fatalf("expected 3 candidates, got %d", len(candidates))
	}
	// Year-descending ordering; a missing release date never outranks a
	// dated track, whatever its popularity.
	if got := candidates[0].info.SpotifyID; got != "dated-new" {
		t.Errorf("expected the latest dated track first, got %s", got)
	}
	if got := candidates[2].info.SpotifyID; got != "undated" {
		t.Errorf("expected the undated track last, got %s", got)
	}
}

func TestGenerateNostalgiaRequiresBirthDate(t *testing.T) {
	f := setup(t)
	f.user.SetDateOfBirth(nil)

	_, err := f.gen.Generate(context.Background(), f.catalog, f.user, f.session, models.KindNostalgia, 10)
	if !errors.Is(err, shared.ErrMissingBirthDate) {
		t.Errorf("expected ErrMissingBirthDate, got %v", err)
	}
}

func TestGenerateForgottenKind(t *testing.T) {
	f := setup(t)

	repo := repositories.NewTrackRepository(f.db)
	oldAdded := time.Now().AddDate(-2, 0, 0)
	midAdded := time.Now().AddDate(-1, 0, 0)
	freshAdded := time.Now().AddDate(0, 0, -5)
	tracks := []*models.LibraryTrack{
		models.NewLibraryTrack(0, f.user.ID(), models.TrackInfo{SpotifyID: "old1", Name: "Oldest", ArtistName: "A", AddedAt: &oldAdded, Popularity: 40}),
		models.NewLibraryTrack(0, f.user.ID(), models.TrackInfo{SpotifyID: "mid1", Name: "Middle", ArtistName: "A", AddedAt: &midAdded, Popularity: 40}),
		models.NewLibraryTrack(0, f.user.ID(), models.TrackInfo{SpotifyID: "new1", Name: "Fresh", ArtistName: "A", AddedAt: &freshAdded, Popularity: 40}),
	}
	if err := repo.ReplaceLibrary(f.user.ID(), tracks); err != nil {
		t.Fatalf("failed to seed library: %v", err)
	}

	recs, err := f.gen.Generate(context.Background(), f.catalog, f.user, f.session, models.KindForgotten, 10)
	if err != nil {
		t.Fatalf("generate failed: %v", err)
	}

	if len(recs) != 2 {
		t.Fatalf("expected 2 forgotten tracks, got %d", len(recs))
	}
	seen := map[string]bool{}
	for _, rec := range recs {
		if rec.SpotifyTrackID() == "new1" {
			t.Error("recently added track should not be forgotten")
		}
		seen[rec.SpotifyTrackID()] = true
	}
	if !seen["old1"] || !seen["mid1"] {
		t.Errorf("expected both stale tracks in the sample, got %v", seen)
	}
}

func TestGenerateInvalidKind(t *testing.T) {
	f := setup(t)

	_, err := f.gen.Generate(context.Background(), f.catalog, f.user, f.session, models.RecommendationKind("bogus"), 10)
	if !errors.Is(err, shared.ErrInvalidArgument) {
		t.Errorf("expected ErrInvalidArgument, got %v", err)
	}
}

func TestSubmitFeedback(t *testing.T) {
	t.Run("LikedSavesToLibrary", func(t *testing.T) {
		f := setup(t)
		f.seedLibrary(t, 5, true)
		f.catalog.RecommendationsFunc = func(seeds services.Seeds, target *models.FeatureVector, limit int) ([]models.TrackInfo, error) {
			return internaltesting.CatalogTracks(0, 3, 60), nil
		}

		recs, err := f.gen.Generate(context.Background(), f.catalog, f.user, f.session, models.KindCluster, 3)
		if err != nil {
			t.Fatalf("generate failed: %v", err)
		}

		liked := true
		updated, err := f.gen.SubmitFeedback(context.Background(), f.catalog, f.user.ID(), recs[0].ID(), &liked, nil)
		if err != nil {
			t.Fatalf("feedback failed: %v", err)
		}

		if updated.Liked() == nil || !*updated.Liked() {
			t.Error("expected liked to be recorded")
		}
		if updated.AlreadyKnew() != nil {
			t.Error("expected already-knew to stay unset")
		}
		if len(f.catalog.AddedToLibrary) != 1 || f.catalog.AddedToLibrary[0][0] != recs[0].SpotifyTrackID() {
			t.Errorf("expected liked track saved to library, got %v", f.catalog.AddedToLibrary)
		}
	})

	t.Run("DislikedDoesNotSave", func(t *testing.T) {
		f := setup(t)
		f.seedLibrary(t, 5, true)
		f.catalog.RecommendationsFunc = func(seeds services.Seeds, target *models.FeatureVector, limit int) ([]models.TrackInfo, error) {
			return internaltesting.CatalogTracks(0, 3, 60), nil
		}

		recs, err := f.gen.Generate(context.Background(), f.catalog, f.user, f.session, models.KindCluster, 3)
		if err != nil {
			t.Fatalf("generate failed: %v", err)
		}

		liked := false
		knew := true
		if _, err := f.gen.SubmitFeedback(context.Background(), f.catalog, f.user.ID(), recs[0].ID(), &liked, &knew); err != nil {
			t.Fatalf("feedback failed: %v", err)
		}
		if len(f.catalog.AddedToLibrary) != 0 {
			t.Errorf("disliked track should not be saved, got %v", f.catalog.AddedToLibrary)
		}
	})

	t.Run("RejectsEmptyFeedback", func(t *testing.T) {
		f := setup(t)
		_, err := f.gen.SubmitFeedback(context.Background(), f.catalog, f.user.ID(), "some-id", nil, nil)
		if !errors.Is(err, shared.ErrInvalidInput) {
			t.Errorf("expected ErrInvalidInput, got %v", err)
		}
	})

	t.Run("RejectsForeignRecommendation", func(t *testing.T) {
		f := setup(t)
		f.seedLibrary(t, 5, true)
		f.catalog.RecommendationsFunc = func(seeds services.Seeds, target *models.FeatureVector, limit int) ([]models.TrackInfo, error) {
			return internaltesting.CatalogTracks(0, 3, 60), nil
		}

		recs, err := f.gen.Generate(context.Background(), f.catalog, f.user, f.session, models.KindCluster, 3)
		if err != nil {
			t.Fatalf("generate failed: %v", err)
		}

		liked := true
		if _, err := f.gen.SubmitFeedback(context.Background(), f.catalog, "other-user", recs[0].ID(), &liked, nil); err == nil {
			t.Error("expected error for another user's recommendation")
		}
	})
}

func TestHistory(t *testing.T) {
	f := setup(t)
	f.seedLibrary(t, 5, true)
	f.catalog.RecommendationsFunc = func(seeds services.Seeds, target *models.FeatureVector, limit int) ([]models.TrackInfo, error) {
		return internaltesting.CatalogTracks(0, 6, 60), nil
	}

	if _, err := f.gen.Generate(context.Background(), f.catalog, f.user, f.session, models.KindCluster, 6); err != nil {
		t.Fatalf("generate failed: %v", err)
	}

	history, err := f.gen.History(f.user.ID(), 4)
	if err != nil {
		t.Fatalf("history failed: %v", err)
	}
	if len(history) != 4 {
		t.Errorf("expected 4 history entries, got %d", len(history))
	}
}

func TestConfidence(t *testing.T) {
	cases := []struct {
		popularity int
		want       float64
	}{
		{0, 0.3},
		{50, 0.8},
		{70, 1.0},
		{100, 1.0},
	}
	for _, tc := range cases {
		if got := confidence(tc.popularity); got != tc.want {
			t.Errorf("confidence(%d) = %f, want %f", tc.popularity, got, tc.want)
		}
	}
}
