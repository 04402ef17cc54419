package episodes

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
	"github.com/uptrace/bun"
)

// Episode is a row in memory.episodes, the single episodic store.
// The embedding column is written by the worker pool and excluded from
// normal selects; has_embedding is projected instead where callers need it.
type Episode struct {
	bun.BaseModel `bun:"table:memory.episodes,alias:e"`

	ID               uuid.UUID `bun:"id,pk,type:uuid,default:gen_random_uuid()" json:"episode_id"`
	Content          string    `bun:"content,notnull" json:"content"`
	Embedding        *string   `bun:"embedding" json:"-"`
	EmbeddingVersion *string   `bun:"embedding_version" json:"-"`
	ImportanceScore  float64   `bun:"importance_score,notnull" json:"importance_score"`
	Tags             []string  `bun:"tags,array,notnull" json:"tags"`
	Metadata         Metadata  `bun:"metadata,type:jsonb,notnull" json:"metadata"`
	CreatedAt        time.Time `bun:"created_at,notnull,default:now()" json:"created_at"`
	UpdatedAt        time.Time `bun:"updated_at,notnull,default:now()" json:"updated_at"`
}

// EpisodeRow is an Episode plus projections computed in SQL.
type EpisodeRow struct {
	Episode
	HasEmbedding bool `bun:"has_embedding,scanonly"`
}

// Metadata is the free-form jsonb document attached to every episode.
// Known keys go through the typed accessors below; everything else is
// preserved untouched so older writers stay readable.
type Metadata map[string]any

// Metadata keys written by the ingestion path and the consolidation engine.
const (
	MetaActionType           = "action_type"
	MetaActionDetails        = "action_details"
	MetaContextState         = "context_state"
	MetaFacts                = "facts"
	MetaAccessTracking       = "access_tracking"
	MetaTemporalRefs         = "temporal_refs"
	MetaSessionID            = "session_id"
	MetaSalienceScore        = "salience_score"
	MetaEmotional8D          = "emotional_8d"
	MetaSomatic7D            = "somatic_7d"
	MetaChainLength          = "temporal_chain_length"
	MetaConsolidatedSalience = "consolidated_salience_score"
	MetaBreakthroughScore    = "breakthrough_score"
	MetaLastConsolidatedAt   = "last_consolidated_at"
)

// TemporalRef is one entry of metadata.temporal_refs, as appended by the
// add_temporal_ref procedure.
type TemporalRef struct {
	EpisodeID    uuid.UUID `json:"episode_id"`
	Relationship string    `json:"relationship"`
	CreatedAt    time.Time `json:"created_at"`
}

// AccessTracking mirrors metadata.access_tracking maintained by the
// update_access_tracking procedure.
type AccessTracking struct {
	LastAccessed time.Time `json:"last_accessed"`
	AccessCount  int       `json:"access_count"`
}

func (m Metadata) str(key string) (string, bool) {
	v, ok := m[key].(string)
	return v, ok
}

func (m Metadata) num(key string) (float64, bool) {
	v, ok := m[key].(float64)
	return v, ok
}

// ActionType returns metadata.action_type, empty when absent.
func (m Metadata) ActionType() string {
	v, _ := m.str(MetaActionType)
	return v
}

// SessionID returns metadata.session_id, empty when absent.
func (m Metadata) SessionID() string {
	v, _ := m.str(MetaSessionID)
	return v
}

// SalienceScore returns metadata.salience_score, defaulting to the
// neutral 0.5 when the episode carries none.
func (m Metadata) SalienceScore() float64 {
	if v, ok := m.num(MetaSalienceScore); ok {
		return v
	}
	return 0.5
}

// Facts returns metadata.facts or nil.
func (m Metadata) Facts() map[string]any {
	v, _ := m[MetaFacts].(map[string]any)
	return v
}

// ChainLength returns the consciousness chain position recorded on a
// sample, zero for episodes outside any chain.
func (m Metadata) ChainLength() int {
	v, _ := m.num(MetaChainLength)
	return int(v)
}

// ConsolidatedSalience returns the post-consolidation salience when a
// run has boosted this episode, otherwise the raw salience score.
func (m Metadata) ConsolidatedSalience() float64 {
	if v, ok := m.num(MetaConsolidatedSalience); ok {
		return v
	}
	return m.SalienceScore()
}

// Emotional8D returns the 8-dimension emotional state. Episodes without
// one fall back to the neutral baseline; episodes with a partial state
// report absent dimensions as zero.
func (m Metadata) Emotional8D() map[string]float64 {
	raw, ok := m[MetaEmotional8D].(map[string]any)
	if !ok {
		return map[string]float64{
			"joy": 0.5, "trust": 0.5, "fear": 0, "surprise": 0.5,
			"sadness": 0, "disgust": 0, "anger": 0, "anticipation": 0.5,
		}
	}
	out := make(map[string]float64, len(raw))
	for k, v := range raw {
		if f, ok := v.(float64); ok {
			out[k] = f
		}
	}
	return out
}

// Valence returns somatic_7d.valence, zero when absent or non-numeric.
// The somatic vector may carry non-numeric markers (e.g. a body_state
// label); only valence feeds scoring.
func (m Metadata) Valence() float64 {
	raw, ok := m[MetaSomatic7D].(map[string]any)
	if !ok {
		return 0
	}
	v, _ := raw["valence"].(float64)
	return v
}

// Access returns the recorded access tracking, zero-valued when the
// episode has never been read back.
func (m Metadata) Access() AccessTracking {
	raw, ok := m[MetaAccessTracking].(map[string]any)
	if !ok {
		return AccessTracking{}
	}
	var at AccessTracking
	if c, ok := raw["access_count"].(float64); ok {
		at.AccessCount = int(c)
	}
	if s, ok := raw["last_accessed"].(string); ok {
		if t, err := time.Parse(time.RFC3339Nano, s); err == nil {
			at.LastAccessed = t
		}
	}
	return at
}

// TemporalRefs decodes metadata.temporal_refs. Malformed entries are
// dropped rather than failing the episode.
func (m Metadata) TemporalRefs() []TemporalRef {
	raw, ok := m[MetaTemporalRefs]
	if !ok {
		return nil
	}
	data, err := json.Marshal(raw)
	if err != nil {
		return nil
	}
	var refs []TemporalRef
	if err := json.Unmarshal(data, &refs); err != nil {
		return nil
	}
	return refs
}
