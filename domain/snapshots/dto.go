package snapshots

import "github.com/google/uuid"

// CreateResponse acknowledges an accepted snapshot request. The
// archive itself is built in the background.
type CreateResponse struct {
	Success    bool      `json:"success"`
	SnapshotID uuid.UUID `json:"snapshot_id"`
	Status     string    `json:"status"`
	Message    string    `json:"message"`
}

// ListResponse is the body of GET /memory/snapshots.
type ListResponse struct {
	Success   bool        `json:"success"`
	Count     int         `json:"count"`
	Snapshots []*Snapshot `json:"snapshots"`
}
