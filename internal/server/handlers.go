package server

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/toquothty/spotify-nostalgic-recommend/internal/formatter"
	"github.com/toquothty/spotify-nostalgic-recommend/internal/models"
	"github.com/toquothty/spotify-nostalgic-recommend/internal/progress"
	"github.com/toquothty/spotify-nostalgic-recommend/internal/recommend"
	"github.com/toquothty/spotify-nostalgic-recommend/internal/repositories"
	"github.com/toquothty/spotify-nostalgic-recommend/internal/services"
	"github.com/toquothty/spotify-nostalgic-recommend/internal/shared"
	"github.com/toquothty/spotify-nostalgic-recommend/internal/tasks"
)

// writeJSON writes v as a JSON response with the given status.
func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if v != nil {
		_ = json.NewEncoder(w).Encode(v)
	}
}

// writeError maps service errors to HTTP status codes and writes a JSON error body.
func writeError(w http.ResponseWriter, err error) {
	writeJSON(w, statusForError(err), map[string]string{"error": err.Error()})
}

func statusForError(err error) int {
	switch {
	case errors.Is(err, shared.ErrRateLimited):
		return http.StatusTooManyRequests
	case errors.Is(err, shared.ErrAnalysisInProgress):
		return http.StatusConflict
	case errors.Is(err, shared.ErrUserNotFound),
		errors.Is(err, shared.ErrSessionNotFound),
		errors.Is(err, shared.ErrTrackNotFound):
		return http.StatusNotFound
	case errors.Is(err, shared.ErrNotAuthenticated),
		errors.Is(err, shared.ErrTokenExpired),
		errors.Is(err, shared.ErrRefreshFailed):
		return http.StatusUnauthorized
	case errors.Is(err, shared.ErrInvalidInput),
		errors.Is(err, shared.ErrInvalidArgument),
		errors.Is(err, shared.ErrMissingArgument),
		errors.Is(err, shared.ErrMissingBirthDate),
		errors.Is(err, shared.ErrEmptyLibrary),
		errors.Is(err, shared.ErrInsufficientData),
		errors.Is(err, shared.ErrLibraryNotStudied):
		return http.StatusBadRequest
	case strings.Contains(err.Error(), "not found"):
		return http.StatusNotFound
	}
	return http.StatusInternalServerError
}

// HealthHandler reports service liveness and the configured catalog provider.
type HealthHandler struct {
	catalog services.Catalog
}

func NewHealthHandler(catalog services.Catalog) *HealthHandler {
	return &HealthHandler{catalog: catalog}
}

func (h *HealthHandler) Routes() []string {
	return []string{"GET /api/health"}
}

func (h *HealthHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{
		"status":  "ok",
		"catalog": h.catalog.Name(),
	})
}

// AnalysisHandler serves library analysis endpoints: starting a run, polling
// its progress, clearing a failed run and reading the analysis results.
type AnalysisHandler struct {
	engine   *tasks.AnalysisEngine
	store    *progress.Store
	clusters *repositories.ClusterRepository
}

func NewAnalysisHandler(engine *tasks.AnalysisEngine, store *progress.Store, clusters *repositories.ClusterRepository) *AnalysisHandler {
	return &AnalysisHandler{engine: engine, store: store, clusters: clusters}
}

func (h *AnalysisHandler) Routes() []string {
	return []string{
		"POST /api/analysis/start",
		"GET /api/analysis/progress",
		"GET /api/analysis/active",
		"POST /api/analysis/clear-error",
		"GET /api/library/summary",
		"GET /api/library/clusters",
	}
}

func (h *AnalysisHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	user, ok := UserFrom(r.Context())
	if !ok {
		writeError(w, shared.ErrNotAuthenticated)
		return
	}

	switch {
	case r.Method == http.MethodPost && r.URL.Path == "/api/analysis/start":
		h.start(w, r, user)
	case r.Method == http.MethodGet && r.URL.Path == "/api/analysis/progress":
		h.progress(w, user)
	case r.Method == http.MethodGet && r.URL.Path == "/api/analysis/active":
		h.active(w, user)
	case r.Method == http.MethodPost && r.URL.Path == "/api/analysis/clear-error":
		h.clearError(w, user)
	case r.Method == http.MethodGet && r.URL.Path == "/api/library/summary":
		h.summary(w, user)
	case r.Method == http.MethodGet && r.URL.Path == "/api/library/clusters":
		h.listClusters(w, user)
	default:
		http.NotFound(w, r)
	}
}

func (h *AnalysisHandler) start(w http.ResponseWriter, r *http.Request, user *models.User) {
	var req struct {
		TrackLimit int `json:"track_limit"`
	}
	if r.Body != nil && r.ContentLength != 0 {
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			writeError(w, fmt.Errorf("%w: %v", shared.ErrInvalidInput, err))
			return
		}
	}

	if err := h.engine.Start(user.ID(), req.TrackLimit); err != nil {
		writeError(w, err)
		return
	}

	writeJSON(w, http.StatusAccepted, map[string]string{"status": string(models.StatusStarting)})
}

func (h *AnalysisHandler) progress(w http.ResponseWriter, user *models.User) {
	snapshot, err := h.store.Get(user.ID())
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, snapshot)
}

// active reports every in-flight run keyed by user, plus whether the caller
// has one.
func (h *AnalysisHandler) active(w http.ResponseWriter, user *models.User) {
	runs := make(map[string]*models.AnalysisProgress)
	for _, snapshot := range h.store.ListActive() {
		runs[snapshot.UserID] = snapshot
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"active": h.store.Active(user.ID()),
		"runs":   runs,
	})
}

func (h *AnalysisHandler) clearError(w http.ResponseWriter, user *models.User) {
	if err := h.engine.ClearError(user.ID()); err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "cleared"})
}

func (h *AnalysisHandler) summary(w http.ResponseWriter, user *models.User) {
	summary, err := h.engine.Summary(user.ID())
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, summary)
}

func (h *AnalysisHandler) listClusters(w http.ResponseWriter, user *models.User) {
	clusters, err := h.clusters.ListByUser(user.ID())
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, formatter.ClusterViews(clusters))
}

// RecommendationHandler serves recommendation generation, history, feedback
// and quota endpoints.
type RecommendationHandler struct {
	generator *recommend.Generator
	catalog   services.Catalog
	sessions  *repositories.SessionRepository
}

func NewRecommendationHandler(generator *recommend.Generator, catalog services.Catalog, sessions *repositories.SessionRepository) *RecommendationHandler {
	return &RecommendationHandler{generator: generator, catalog: catalog, sessions: sessions}
}

func (h *RecommendationHandler) Routes() []string {
	return []string{
		"POST /api/recommendations",
		"GET /api/recommendations/history",
		"POST /api/recommendations/feedback",
		"GET /api/recommendations/quota",
	}
}

func (h *RecommendationHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	user, ok := UserFrom(r.Context())
	if !ok {
		writeError(w, shared.ErrNotAuthenticated)
		return
	}
	session, ok := SessionFrom(r.Context())
	if !ok {
		writeError(w, shared.ErrNotAuthenticated)
		return
	}

	switch {
	case r.Method == http.MethodPost && r.URL.Path == "/api/recommendations":
		h.generate(w, r, user, session)
	case r.Method == http.MethodGet && r.URL.Path == "/api/recommendations/history":
		h.history(w, r, user)
	case r.Method == http.MethodPost && r.URL.Path == "/api/recommendations/feedback":
		h.feedback(w, r, user, session)
	case r.Method == http.MethodGet && r.URL.Path == "/api/recommendations/quota":
		h.quota(w, session)
	default:
		http.NotFound(w, r)
	}
}

func (h *RecommendationHandler) generate(w http.ResponseWriter, r *http.Request, user *models.User, session *models.Session) {
	var req struct {
		Kind  string `json:"kind"`
		Limit int    `json:"limit"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, fmt.Errorf("%w: %v", shared.ErrInvalidInput, err))
		return
	}

	catalog, err := h.boundCatalog(r, session)
	if err != nil {
		writeError(w, err)
		return
	}

	recs, err := h.generator.Generate(r.Context(), catalog, user, session, models.RecommendationKind(req.Kind), req.Limit)
	if err != nil {
		writeError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, formatter.RecommendationViews(recs))
}

func (h *RecommendationHandler) history(w http.ResponseWriter, r *http.Request, user *models.User) {
	limit := 0
	if raw := r.URL.Query().Get("limit"); raw != "" {
		parsed, err := strconv.Atoi(raw)
		if err != nil || parsed < 0 {
			writeError(w, fmt.Errorf("%w: limit must be a non-negative integer", shared.ErrInvalidInput))
			return
		}
		limit = parsed
	}

	recs, err := h.generator.History(user.ID(), limit)
	if err != nil {
		writeError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, formatter.RecommendationViews(recs))
}

func (h *RecommendationHandler) feedback(w http.ResponseWriter, r *http.Request, user *models.User, session *models.Session) {
	var req struct {
		RecommendationID string `json:"recommendation_id"`
		Liked            *bool  `json:"liked"`
		AlreadyKnew      *bool  `json:"already_knew"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, fmt.Errorf("%w: %v", shared.ErrInvalidInput, err))
		return
	}
	if req.RecommendationID == "" {
		writeError(w, fmt.Errorf("%w: recommendation_id is required", shared.ErrInvalidInput))
		return
	}

	catalog, err := h.boundCatalog(r, session)
	if err != nil {
		writeError(w, err)
		return
	}

	rec, err := h.generator.SubmitFeedback(r.Context(), catalog, user.ID(), req.RecommendationID, req.Liked, req.AlreadyKnew)
	if err != nil {
		writeError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, formatter.NewRecommendationView(rec))
}

func (h *RecommendationHandler) quota(w http.ResponseWriter, session *models.Session) {
	writeJSON(w, http.StatusOK, map[string]int{
		"remaining": h.generator.Gate().Remaining(session, time.Now()),
	})
}

// boundCatalog binds the catalog to the session's access token, refreshing it first when expired.
func (h *RecommendationHandler) boundCatalog(r *http.Request, session *models.Session) (services.Catalog, error) {
	if session.TokenExpired() {
		pair, err := h.catalog.Refresh(r.Context(), session.RefreshToken())
		if err != nil {
			return nil, fmt.Errorf("%w: %v", shared.ErrRefreshFailed, err)
		}
		session.SetTokens(pair.AccessToken, pair.RefreshToken, pair.ExpiresAt)
		if err := h.sessions.Update(session); err != nil {
			return nil, fmt.Errorf("failed to persist refreshed tokens: %w", err)
		}
	}
	return h.catalog.WithAccessToken(session.AccessToken()), nil
}

// ProfileHandler serves the authenticated user's profile, including the date
// of birth that unlocks nostalgia recommendations.
type ProfileHandler struct {
	users *repositories.UserRepository
}

func NewProfileHandler(users *repositories.UserRepository) *ProfileHandler {
	return &ProfileHandler{users: users}
}

func (h *ProfileHandler) Routes() []string {
	return []string{
		"GET /api/profile",
		"PUT /api/profile/birthdate",
	}
}

// profileView is the serializable projection of a [models.User].
type profileView struct {
	ID          string  `json:"id"`
	SpotifyID   string  `json:"spotify_id"`
	DisplayName string  `json:"display_name"`
	Email       string  `json:"email,omitempty"`
	Country     string  `json:"country,omitempty"`
	DateOfBirth *string `json:"date_of_birth,omitempty"`
}

func newProfileView(user *models.User) profileView {
	view := profileView{
		ID:          user.ID(),
		SpotifyID:   user.SpotifyID(),
		DisplayName: user.DisplayName(),
		Email:       user.Email(),
		Country:     user.Country(),
	}
	if dob := user.DateOfBirth(); dob != nil {
		formatted := dob.Format("2006-01-02")
		view.DateOfBirth = &formatted
	}
	return view
}

func (h *ProfileHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	user, ok := UserFrom(r.Context())
	if !ok {
		writeError(w, shared.ErrNotAuthenticated)
		return
	}

	switch {
	case r.Method == http.MethodGet && r.URL.Path == "/api/profile":
		writeJSON(w, http.StatusOK, newProfileView(user))
	case r.Method == http.MethodPut && r.URL.Path == "/api/profile/birthdate":
		h.setBirthdate(w, r, user)
	default:
		http.NotFound(w, r)
	}
}

func (h *ProfileHandler) setBirthdate(w http.ResponseWriter, r *http.Request, user *models.User) {
	var req struct {
		DateOfBirth string `json:"date_of_birth"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, fmt.Errorf("%w: %v", shared.ErrInvalidInput, err))
		return
	}

	dob, err := time.Parse("2006-01-02", req.DateOfBirth)
	if err != nil {
		writeError(w, fmt.Errorf("%w: date_of_birth must be YYYY-MM-DD", shared.ErrInvalidInput))
		return
	}
	if dob.After(time.Now()) {
		writeError(w, fmt.Errorf("%w: date_of_birth must be in the past", shared.ErrInvalidInput))
		return
	}

	user.SetDateOfBirth(&dob)
	if err := h.users.Update(user); err != nil {
		writeError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, newProfileView(user))
}
