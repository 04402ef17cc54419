package decay

import (
	"math"
	"time"

	"github.com/nexus-mind/nexus-memory/domain/episodes"
	"github.com/nexus-mind/nexus-memory/internal/config"
	"github.com/nexus-mind/nexus-memory/pkg/mathutil"
)

// Model is the Go mirror of memory.calculate_decay_score. The stored
// procedure carries the built-in parameters; the mirror reads the
// tuning file, so operators can retune previews without a migration.
type Model struct {
	ImportanceWeight    float64
	RecencyWeight       float64
	AccessWeight        float64
	RecencyHalfLifeDays float64
	AccessHalfLifeDays  float64
}

// NewModel builds a model from the loaded tuning parameters.
func NewModel(t config.DecayTuning) Model {
	return Model{
		ImportanceWeight:    t.ImportanceWeight,
		RecencyWeight:       t.RecencyWeight,
		AccessWeight:        t.AccessWeight,
		RecencyHalfLifeDays: t.RecencyHalfLifeDays,
		AccessHalfLifeDays:  t.AccessHalfLifeDays,
	}
}

// Score combines importance, age recency and access telemetry into a
// retention score in [0,1]. Holding importance and access fixed, the
// score is non-increasing in age.
func (m Model) Score(importance float64, createdAt time.Time, access episodes.AccessTracking, now time.Time) float64 {
	ageDays := math.Max(0, now.Sub(createdAt).Hours()/24)
	recency := math.Pow(0.5, ageDays/m.RecencyHalfLifeDays)

	score := m.ImportanceWeight*importance +
		m.RecencyWeight*recency +
		m.AccessWeight*m.accessFactor(createdAt, access, now)

	return mathutil.Clamp(score, 0, 1)
}

// accessFactor is zero for episodes never read back; otherwise a
// bounded blend of the log-scaled read count and the recency of the
// last read. ln(101) normalizes so 100 reads saturate the count term.
func (m Model) accessFactor(createdAt time.Time, access episodes.AccessTracking, now time.Time) float64 {
	if access.AccessCount <= 0 {
		return 0
	}

	last := access.LastAccessed
	if last.IsZero() {
		last = createdAt
	}
	daysSince := math.Max(0, now.Sub(last).Hours()/24)

	countTerm := math.Log(1+float64(access.AccessCount)) / math.Log(101)
	recencyTerm := math.Pow(0.5, daysSince/m.AccessHalfLifeDays)

	return math.Min(1, 0.6*countTerm+0.4*recencyTerm)
}
