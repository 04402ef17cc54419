package temporal

import (
	"time"

	"github.com/google/uuid"

	"github.com/nexus-mind/nexus-memory/domain/episodes"
)

// WindowRequest bounds a created_at scan. before and after read
// Timestamp; range reads Start and End.
type WindowRequest struct {
	Timestamp *time.Time `json:"timestamp"`
	Start     *time.Time `json:"start"`
	End       *time.Time `json:"end"`
	Limit     int        `json:"limit"`
	Tags      []string   `json:"tags"`
}

// WindowResponse lists the episodes inside the requested bound.
type WindowResponse struct {
	Success  bool                   `json:"success"`
	Count    int                    `json:"count"`
	Episodes []*episodes.EpisodeDTO `json:"episodes"`
}

// RelatedRequest asks for the episodes a source episode links to,
// optionally narrowed to one relationship.
type RelatedRequest struct {
	EpisodeID        uuid.UUID `json:"episode_id"`
	RelationshipType string    `json:"relationship_type"`
}

// RelatedResponse lists linked episodes, newest first.
type RelatedResponse struct {
	Success  bool                   `json:"success"`
	Count    int                    `json:"count"`
	Episodes []*episodes.EpisodeDTO `json:"episodes"`
}

// LinkRequest appends one directed temporal edge from source to target.
type LinkRequest struct {
	SourceID     uuid.UUID `json:"source_id"`
	TargetID     uuid.UUID `json:"target_id"`
	Relationship string    `json:"relationship"`
}

// LinkResponse acknowledges a stored edge.
type LinkResponse struct {
	Success      bool      `json:"success"`
	SourceID     uuid.UUID `json:"source_id"`
	TargetID     uuid.UUID `json:"target_id"`
	Relationship string    `json:"relationship"`
}

// ConsciousnessRequest is the body of POST /memory/consciousness/update.
// StateData is the opaque numeric vector produced upstream; Importance
// defaults to the ingest default when omitted.
type ConsciousnessRequest struct {
	StateType        string         `json:"state_type"`
	StateData        map[string]any `json:"state_data"`
	Importance       *float64       `json:"importance"`
	AutoLinkPrevious *bool          `json:"auto_link_previous"`
}

// ConsciousnessResponse reports the stored sample and its position in
// the per-type chain.
type ConsciousnessResponse struct {
	Success             bool       `json:"success"`
	EpisodeID           uuid.UUID  `json:"episode_id"`
	StateType           string     `json:"state_type"`
	LinkedToPrevious    *uuid.UUID `json:"linked_to_previous"`
	TemporalChainLength int        `json:"temporal_chain_length"`
	Timestamp           time.Time  `json:"timestamp"`
}
