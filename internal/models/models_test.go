package models

import (
	"testing"
	"time"
)

func TestUserFormativeWindow(t *testing.T) {
	t.Run("with birth date", func(t *testing.T) {
		user := NewUser(1, "spotify123", "Test User", "test@example.com", "US")
		dob := time.Date(1990, 5, 15, 0, 0, 0, 0, time.UTC)
		user.SetDateOfBirth(&dob)

		start, end, ok := user.FormativeWindow()
		if !ok {
			t.Fatal("expected formative window to be available")
		}
		if start != 2002 {
			t.Errorf("expected window start 2002, got %d", start)
		}
		if end != 2008 {
			t.Errorf("expected window end 2008, got %d", end)
		}
	})

	t.Run("without birth date", func(t *testing.T) {
		user := NewUser(1, "spotify123", "Test User", "test@example.com", "US")

		if _, _, ok := user.FormativeWindow(); ok {
			t.Error("expected no formative window without a birth date")
		}
	})
}

func TestRecommendationKind(t *testing.T) {
	for _, kind := range []RecommendationKind{KindCluster, KindNostalgia, KindForgotten} {
		if !kind.Valid() {
			t.Errorf("expected kind %s to be valid", kind)
		}
	}

	if RecommendationKind("radio").Valid() {
		t.Error("expected unknown kind to be invalid")
	}
}

func TestAnalysisStatus(t *testing.T) {
	terminal := []AnalysisStatus{StatusCompleted, StatusFailed}
	for _, s := range terminal {
		if !s.Terminal() {
			t.Errorf("expected %s to be terminal", s)
		}
		if s.Active() {
			t.Errorf("expected %s to not be active", s)
		}
	}

	active := []AnalysisStatus{StatusStarting, StatusFetchingTracks, StatusGettingFeatures, StatusClustering}
	for _, s := range active {
		if !s.Active() {
			t.Errorf("expected %s to be active", s)
		}
		if s.Terminal() {
			t.Errorf("expected %s to not be terminal", s)
		}
	}

	if StatusNotStarted.Active() || StatusNotStarted.Terminal() {
		t.Error("not_started should be neither active nor terminal")
	}
}

func TestFeatureVectorDims(t *testing.T) {
	vec := FeatureVector{
		Acousticness:     0.1,
		Danceability:     0.2,
		Energy:           0.3,
		Instrumentalness: 0.4,
		Liveness:         0.5,
		Loudness:         -6.0,
		Speechiness:      0.6,
		Tempo:            128.0,
		Valence:          0.7,
	}

	dims := vec.Dims()
	roundTripped := VectorFromDims(dims)

	if roundTripped.Dims() != dims {
		t.Error("dims round trip should preserve all nine dimensions")
	}
	if dims[5] != -6.0 {
		t.Errorf("expected loudness at index 5, got %f", dims[5])
	}
}

func TestRecommendationValidate(t *testing.T) {
	rec := NewRecommendation(1, "user1", TrackInfo{
		SpotifyID:  "track1",
		Name:       "Track One",
		ArtistName: "Artist One",
	}, KindCluster, nil, 0.75)

	if err := rec.Validate(); err != nil {
		t.Fatalf("expected valid recommendation, got %v", err)
	}

	rec2 := NewRecommendation(1, "user1", TrackInfo{
		SpotifyID:  "track1",
		Name:       "Track One",
		ArtistName: "Artist One",
	}, KindCluster, nil, 1.5)
	if err := rec2.Validate(); err == nil {
		t.Error("expected out-of-range confidence to fail validation")
	}
}

func TestLibraryTrackFeatures(t *testing.T) {
	info := TrackInfo{SpotifyID: "t1", Name: "N", ArtistName: "A"}
	track := NewLibraryTrack(1, "user1", info)

	if track.HasCompleteFeatures() {
		t.Error("track without features should not be complete")
	}

	vec := DefaultFeatureVector()
	info.Features = &vec
	info.FeaturesDefaulted = true
	track = NewLibraryTrack(1, "user1", info)
	if track.HasCompleteFeatures() {
		t.Error("defaulted features should not count as complete")
	}

	info.FeaturesDefaulted = false
	track = NewLibraryTrack(1, "user1", info)
	if !track.HasCompleteFeatures() {
		t.Error("real features should count as complete")
	}
}
