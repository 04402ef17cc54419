package search

import (
	"time"

	"github.com/google/uuid"
)

// Prefer values steer hybrid answering.
const (
	PreferFact      = "fact"
	PreferNarrative = "narrative"
	PreferAuto      = "auto"
)

// Source values label where a hybrid answer came from.
const (
	SourceFact      = "fact"
	SourceNarrative = "narrative"
	SourceNone      = "none"
)

// SearchRequest is the body of POST /memory/search. MinSimilarity is a
// pointer so an explicit 0.0 floor survives decoding.
type SearchRequest struct {
	Query         string   `json:"query"`
	Limit         int      `json:"limit"`
	MinSimilarity *float64 `json:"min_similarity"`
}

// SearchResult is one semantic hit.
type SearchResult struct {
	EpisodeID       uuid.UUID `json:"episode_id"`
	Content         string    `json:"content"`
	Similarity      float64   `json:"similarity"`
	ImportanceScore float64   `json:"importance_score"`
	Tags            []string  `json:"tags"`
	CreatedAt       time.Time `json:"created_at"`
}

// SearchResponse is the body of POST /memory/search responses.
type SearchResponse struct {
	Success bool            `json:"success"`
	Count   int             `json:"count"`
	Results []*SearchResult `json:"results"`
}

// HybridRequest is the body of POST /memory/hybrid.
type HybridRequest struct {
	Query  string   `json:"query"`
	Prefer string   `json:"prefer"`
	Tags   []string `json:"tags"`
	Limit  int      `json:"limit"`
}

// HybridResponse carries one answer with its provenance. Source is
// "fact" or "narrative" on success and "none" when nothing matched.
type HybridResponse struct {
	Success     bool       `json:"success"`
	Answer      any        `json:"answer"`
	Source      string     `json:"source"`
	EpisodeID   *uuid.UUID `json:"episode_id"`
	Confidence  float64    `json:"confidence"`
	QueryTimeMs float64    `json:"query_time_ms"`
}

// toResult converts a scanned row to its wire form.
func (r *SemanticRow) toResult() *SearchResult {
	tags := r.Tags
	if tags == nil {
		tags = []string{}
	}
	return &SearchResult{
		EpisodeID:       r.ID,
		Content:         r.Content,
		Similarity:      r.Similarity,
		ImportanceScore: r.ImportanceScore,
		Tags:            tags,
		CreatedAt:       r.CreatedAt,
	}
}
