package decay

import (
	"time"

	"github.com/google/uuid"
)

// AnalyzeRequest is the body of POST /memory/analysis/decay-scores.
type AnalyzeRequest struct {
	Limit      int `json:"limit"`
	MinAgeDays int `json:"min_age_days"`
}

// AnalyzeResponse buckets the sampled episodes into decay-score bands.
type AnalyzeResponse struct {
	Success    bool           `json:"success"`
	Analyzed   int            `json:"analyzed"`
	MinAgeDays int            `json:"min_age_days"`
	Bands      map[string]int `json:"bands"`
	VeryLow    int            `json:"very_low"`
	VeryHigh   int            `json:"very_high"`
}

// PreviewRequest is the body of POST /memory/pruning/preview. Pointer
// fields distinguish an explicit zero from an omitted value.
type PreviewRequest struct {
	MinScoreThreshold *float64 `json:"min_score_threshold"`
	MinAgeDays        *int     `json:"min_age_days"`
	MaxPruneCount     *int     `json:"max_prune_count"`
}

// PruneCandidate is one low-scored episode with its protection verdict.
type PruneCandidate struct {
	EpisodeID        uuid.UUID `json:"episode_id"`
	ContentPreview   string    `json:"content_preview"`
	DecayScore       float64   `json:"decay_score"`
	ImportanceScore  float64   `json:"importance_score"`
	AgeDays          int       `json:"age_days"`
	Tags             []string  `json:"tags"`
	CreatedAt        time.Time `json:"created_at"`
	IsProtected      bool      `json:"is_protected"`
	ProtectionReason string    `json:"protection_reason,omitempty"`
}

// PreviewResponse lists pruning candidates ordered worst-first.
type PreviewResponse struct {
	Success         bool              `json:"success"`
	Threshold       float64           `json:"threshold"`
	MinAgeDays      int               `json:"min_age_days"`
	TotalCandidates int               `json:"total_candidates"`
	ProtectedCount  int               `json:"protected_count"`
	PrunableCount   int               `json:"prunable_count"`
	Candidates      []*PruneCandidate `json:"candidates"`
}

// ExecuteRequest is the body of POST /memory/pruning/execute. DryRun
// defaults to true; the deletion path is reserved.
type ExecuteRequest struct {
	MinScoreThreshold *float64 `json:"min_score_threshold"`
	MinAgeDays        *int     `json:"min_age_days"`
	MaxPruneCount     *int     `json:"max_prune_count"`
	DryRun            *bool    `json:"dry_run"`
}

// ExecuteResponse reports a dry run. No writes ever happen here.
type ExecuteResponse struct {
	Success        bool   `json:"success"`
	DryRun         bool   `json:"dry_run"`
	WouldPrune     int    `json:"would_prune"`
	ProtectedCount int    `json:"protected_count"`
	Message        string `json:"message"`
}
