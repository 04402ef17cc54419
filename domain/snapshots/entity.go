package snapshots

import (
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/uptrace/bun"
)

// Snapshot lifecycle states.
const (
	StatusCreating = "creating"
	StatusReady    = "ready"
	StatusFailed   = "failed"
)

// Snapshot is a row in memory.snapshots: the catalog entry for one
// archive export.
type Snapshot struct {
	bun.BaseModel `bun:"table:memory.snapshots,alias:s"`

	ID           uuid.UUID  `bun:"id,pk,type:uuid" json:"snapshot_id"`
	Status       string     `bun:"status,notnull" json:"status"`
	EpisodeCount int64      `bun:"episode_count,notnull" json:"episode_count"`
	TraceCount   int64      `bun:"trace_count,notnull" json:"trace_count"`
	SizeBytes    int64      `bun:"size_bytes,notnull" json:"size_bytes"`
	StorageKey   *string    `bun:"storage_key" json:"storage_key,omitempty"`
	Error        *string    `bun:"error" json:"error,omitempty"`
	CreatedAt    time.Time  `bun:"created_at,notnull,default:now()" json:"created_at"`
	CompletedAt  *time.Time `bun:"completed_at" json:"completed_at,omitempty"`
}

// StorageKey returns the object key a snapshot archive is stored under.
func StorageKey(id uuid.UUID) string {
	return fmt.Sprintf("snapshots/%s/memory.zip", id)
}

// Manifest represents the manifest.json file inside a snapshot ZIP
type Manifest struct {
	Version       string    `json:"version"`
	ServerVersion string    `json:"serverVersion"`
	SnapshotID    string    `json:"snapshotId"`
	CreatedAt     time.Time `json:"createdAt"`
	EpisodeCount  int       `json:"episodeCount"`
	TraceCount    int       `json:"traceCount"`
	Files         []string  `json:"files"`
}
