package models

import "time"

// AnalysisStatus is the state of a library analysis run.
type AnalysisStatus string

const (
	StatusNotStarted      AnalysisStatus = "not_started"
	StatusStarting        AnalysisStatus = "starting"
	StatusFetchingTracks  AnalysisStatus = "fetching_tracks"
	StatusGettingFeatures AnalysisStatus = "getting_features"
	StatusClustering      AnalysisStatus = "clustering"
	StatusCompleted       AnalysisStatus = "completed"
	StatusFailed          AnalysisStatus = "failed"
)

// Terminal reports whether the status can only be left by a fresh start.
func (s AnalysisStatus) Terminal() bool {
	return s == StatusCompleted || s == StatusFailed
}

// Active reports whether the status describes an in-flight run.
func (s AnalysisStatus) Active() bool {
	switch s {
	case StatusStarting, StatusFetchingTracks, StatusGettingFeatures, StatusClustering:
		return true
	}
	return false
}

// AnalysisProgress is a snapshot of one user's library analysis.
//
// One record exists per user with upsert semantics. The zero value is not
// meaningful; use [NotStartedProgress] for the "no record" sentinel.
type AnalysisProgress struct {
	UserID             string         `json:"-"`
	Status             AnalysisStatus `json:"status"`
	CurrentStep        string         `json:"current_step"`
	ProgressPercentage int            `json:"progress_percentage"`
	TracksProcessed    int            `json:"tracks_processed"`
	TotalTracks        int            `json:"total_tracks"`
	ErrorMessage       *string        `json:"error_message"`
	StartedAt          *time.Time     `json:"started_at"`
	CompletedAt        *time.Time     `json:"completed_at"`
	UpdatedAt          time.Time      `json:"updated_at"`
}

// NotStartedProgress returns the sentinel snapshot reported when no analysis
// has ever run for the user. Callers receive this instead of an error.
func NotStartedProgress(userID string) *AnalysisProgress {
	return &AnalysisProgress{
		UserID:      userID,
		Status:      StatusNotStarted,
		CurrentStep: "Analysis not started",
	}
}

// Clone returns a copy safe to hand to concurrent readers.
func (p *AnalysisProgress) Clone() *AnalysisProgress {
	clone := *p
	if p.ErrorMessage != nil {
		msg := *p.ErrorMessage
		clone.ErrorMessage = &msg
	}
	if p.StartedAt != nil {
		t := *p.StartedAt
		clone.StartedAt = &t
	}
	if p.CompletedAt != nil {
		t := *p.CompletedAt
		clone.CompletedAt = &t
	}
	return &clone
}
