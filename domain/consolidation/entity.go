package consolidation

import (
	"time"

	"github.com/google/uuid"
	"github.com/uptrace/bun"
)

// Trace types for edges between consecutive chain members.
const (
	TraceInitiator   = "initiator"
	TraceProgression = "progression"
	TraceConclusion  = "conclusion"
)

// Trace is a row in memory.memory_traces: one directed edge of a
// consolidated narrative chain, from the earlier episode to the later
// one. Edges of the same chain share a narrative_id.
type Trace struct {
	bun.BaseModel `bun:"table:memory.memory_traces,alias:t"`

	ID              uuid.UUID `bun:"id,pk,type:uuid,default:gen_random_uuid()" json:"id"`
	SourceEpisodeID uuid.UUID `bun:"source_episode_id,notnull,type:uuid" json:"source_episode_id"`
	TargetEpisodeID uuid.UUID `bun:"target_episode_id,notnull,type:uuid" json:"target_episode_id"`
	TraceType       string    `bun:"trace_type,notnull" json:"trace_type"`
	Strength        float64   `bun:"strength,notnull" json:"strength"`
	NarrativeID     string    `bun:"narrative_id" json:"narrative_id"`
	CreatedAt       time.Time `bun:"created_at,notnull,default:now()" json:"created_at"`
}

// Episode is the consolidation view of one stored episode: the scoring
// inputs unpacked from metadata plus the mutable consolidation state.
// The engine mutates these in place; the repository persists the ones
// marked Boosted.
type Episode struct {
	ID         uuid.UUID
	Content    string
	CreatedAt  time.Time
	SessionID  string
	Tags       []string
	Importance float64
	Salience   float64
	Emotional  map[string]float64
	Valence    float64
	Embedding  []float32

	BreakthroughScore    float64
	ConsolidatedSalience float64
	Boosted              bool
}
