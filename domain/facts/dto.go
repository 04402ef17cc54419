package facts

import (
	"time"

	"github.com/google/uuid"
)

// QueryRequest is the body of POST /memory/facts.
type QueryRequest struct {
	FactType   string     `json:"fact_type"`
	FilterTags []string   `json:"filter_tags"`
	After      *time.Time `json:"after"`
	Before     *time.Time `json:"before"`
	Limit      int        `json:"limit"`
	Order      string     `json:"order"`
}

// QueryResponse carries the canonical value of one fact.
type QueryResponse struct {
	Success           bool           `json:"success"`
	FactType          string         `json:"fact_type"`
	Value             any            `json:"value"`
	SourceEpisodeID   *uuid.UUID     `json:"source_episode_id"`
	Confidence        float64        `json:"confidence"`
	Timestamp         *time.Time     `json:"timestamp"`
	AdditionalContext map[string]any `json:"additional_context,omitempty"`
}

// BackfillRequest is the body of POST /memory/facts/backfill.
type BackfillRequest struct {
	BatchSize int  `json:"batch_size"`
	DryRun    bool `json:"dry_run"`
}

// BackfillResponse reports a backfill run.
type BackfillResponse struct {
	Success        bool `json:"success"`
	DryRun         bool `json:"dry_run"`
	Processed      int  `json:"processed"`
	FactsExtracted int  `json:"facts_extracted"`
	Failed         int  `json:"failed"`
}
