package episodes

import (
	"time"

	"github.com/google/uuid"
)

// IngestRequest is the body of POST /memory/action.
type IngestRequest struct {
	ActionType    string         `json:"action_type"`
	ActionDetails map[string]any `json:"action_details"`
	ContextState  map[string]any `json:"context_state"`
	Tags          []string       `json:"tags"`
}

// IngestResponse acknowledges a stored action.
type IngestResponse struct {
	Success   bool      `json:"success"`
	EpisodeID uuid.UUID `json:"episode_id"`
	Timestamp time.Time `json:"timestamp"`
	Message   string    `json:"message"`
}

// EpisodeDTO is the list representation of an episode.
type EpisodeDTO struct {
	EpisodeID       uuid.UUID `json:"episode_id"`
	Content         string    `json:"content"`
	ImportanceScore float64   `json:"importance_score"`
	Tags            []string  `json:"tags"`
	CreatedAt       time.Time `json:"created_at"`
	HasEmbedding    bool      `json:"has_embedding"`
}

// RecentResponse is the body of GET /memory/episodic/recent.
type RecentResponse struct {
	Success  bool          `json:"success"`
	Count    int           `json:"count"`
	Episodes []*EpisodeDTO `json:"episodes"`
}

// ToDTO converts a scanned row to its wire form.
func (r *EpisodeRow) ToDTO() *EpisodeDTO {
	tags := r.Tags
	if tags == nil {
		tags = []string{}
	}
	return &EpisodeDTO{
		EpisodeID:       r.ID,
		Content:         r.Content,
		ImportanceScore: r.ImportanceScore,
		Tags:            tags,
		CreatedAt:       r.CreatedAt,
		HasEmbedding:    r.HasEmbedding,
	}
}
