package consolidation

import (
	"github.com/google/uuid"
)

// RunRequest triggers a consolidation run. An empty target date means
// the previous day.
type RunRequest struct {
	TargetDate string `json:"target_date"`
}

// TopBreakthrough is one entry of a report's highlight list.
type TopBreakthrough struct {
	EpisodeID      uuid.UUID `json:"episode_id"`
	ContentPreview string    `json:"content_preview"`
	Score          float64   `json:"score"`
}

// Report summarizes one consolidation run.
type Report struct {
	Date                  string            `json:"date"`
	EpisodesProcessed     int               `json:"episodes_processed"`
	BreakthroughsDetected int               `json:"breakthroughs_detected"`
	ChainsTraced          int               `json:"chains_traced"`
	EpisodesBoosted       int               `json:"episodes_boosted"`
	AvgBoost              float64           `json:"avg_boost"`
	MaxBoost              float64           `json:"max_boost"`
	ReplayedEpisodes      int               `json:"replayed_episodes"`
	TracesCreated         int               `json:"traces_created"`
	DurationMs            int64             `json:"duration_ms"`
	TopBreakthroughs      []TopBreakthrough `json:"top_breakthroughs"`
}
