package consolidation

import (
	"fmt"
	"math"
	"sort"
	"time"

	"github.com/nexus-mind/nexus-memory/internal/config"
	"github.com/nexus-mind/nexus-memory/pkg/mathutil"
)

const (
	// minBreakthroughSample is the smallest day for which a percentile
	// cut is meaningful. Below it no breakthroughs are detected.
	minBreakthroughSample = 5

	// boostScale converts the positional boost product into a salience
	// delta before the cap is applied.
	boostScale = 0.25

	// traceStrengthScaleHours controls how fast trace strength falls
	// off with the gap between two consecutive chain members.
	traceStrengthScaleHours = 3.0
)

// Emotional dimensions that feed the breakthrough score.
var breakthroughEmotions = [...]string{"joy", "trust", "anticipation", "surprise"}

// Engine runs the consolidation pipeline over one day of episodes:
// breakthrough detection, backward chain tracing, salience boosting and
// trace construction. It is pure computation; fetching and persistence
// live in the repository.
type Engine struct {
	tuning config.ConsolidationTuning
}

// NewEngine creates an engine with the given tuning parameters
func NewEngine(tuning config.ConsolidationTuning) *Engine {
	return &Engine{tuning: tuning}
}

// DetectBreakthroughs scores every episode in place and returns the
// ones at or above the configured percentile, best first. Days with
// fewer than five episodes yield none; a percentile over a handful of
// points flags nearly everything.
func (e *Engine) DetectBreakthroughs(eps []*Episode) []*Episode {
	scores := make([]float64, len(eps))
	for i, ep := range eps {
		ep.BreakthroughScore = breakthroughScore(ep)
		scores[i] = ep.BreakthroughScore
	}

	if len(eps) < minBreakthroughSample {
		return nil
	}

	threshold := mathutil.Percentile(scores, e.tuning.BreakthroughPercentile)

	var breakthroughs []*Episode
	for _, ep := range eps {
		if ep.BreakthroughScore >= threshold {
			breakthroughs = append(breakthroughs, ep)
		}
	}
	sort.SliceStable(breakthroughs, func(i, j int) bool {
		return breakthroughs[i].BreakthroughScore > breakthroughs[j].BreakthroughScore
	})
	return breakthroughs
}

// breakthroughScore blends salience, the approach-oriented emotional
// dimensions, positive somatic valence and stored importance.
func breakthroughScore(ep *Episode) float64 {
	var emotional float64
	for _, dim := range breakthroughEmotions {
		emotional += ep.Emotional[dim]
	}
	emotional /= float64(len(breakthroughEmotions))

	return 0.40*ep.Salience +
		0.25*emotional +
		0.15*math.Max(0, ep.Valence) +
		0.20*ep.Importance
}

// TraceChains walks backward from each breakthrough and returns the
// chains that picked up at least one earlier member. The breakthrough
// is always the final member of its chain; members are chronological.
func (e *Engine) TraceChains(breakthroughs, all []*Episode) [][]*Episode {
	var chains [][]*Episode
	for _, b := range breakthroughs {
		if chain := e.traceChain(b, all); len(chain) >= 2 {
			chains = append(chains, chain)
		}
	}
	return chains
}

// traceChain scans the window before b most-recent-first, accepting
// related episodes. The proximity horizon starts at the breakthrough
// and advances to each accepted member, so a string of episodes an
// hour apart chains even when only the newest touches the breakthrough.
func (e *Engine) traceChain(b *Episode, all []*Episode) []*Episode {
	windowStart := b.CreatedAt.Add(-e.hours(e.tuning.ChainWindowHours))

	var candidates []*Episode
	for _, ep := range all {
		if !ep.CreatedAt.Before(windowStart) && ep.CreatedAt.Before(b.CreatedAt) {
			candidates = append(candidates, ep)
		}
	}
	sort.SliceStable(candidates, func(i, j int) bool {
		return candidates[i].CreatedAt.After(candidates[j].CreatedAt)
	})

	horizon := b.CreatedAt
	var accepted []*Episode
	for _, c := range candidates {
		if !e.related(c, b, horizon) {
			continue
		}
		accepted = append(accepted, c)
		horizon = c.CreatedAt
	}

	chain := make([]*Episode, 0, len(accepted)+1)
	for i := len(accepted) - 1; i >= 0; i-- {
		chain = append(chain, accepted[i])
	}
	return append(chain, b)
}

// related decides whether candidate c belongs in b's chain. The first
// three signals compare against the breakthrough itself; proximity
// compares against the advancing horizon.
func (e *Engine) related(c, b *Episode, horizon time.Time) bool {
	if c.SessionID != "" && c.SessionID == b.SessionID {
		return true
	}
	if len(c.Embedding) > 0 && len(b.Embedding) > 0 &&
		mathutil.CosineSimilarity(c.Embedding, b.Embedding) > e.tuning.ChainSimilarityThreshold {
		return true
	}
	if sharedTags(c.Tags, b.Tags) >= e.tuning.ChainSharedTagMinimum {
		return true
	}
	return horizon.Sub(c.CreatedAt) < e.hours(e.tuning.ChainProximityHours)
}

func sharedTags(a, b []string) int {
	if len(a) == 0 || len(b) == 0 {
		return 0
	}
	set := make(map[string]struct{}, len(a))
	for _, t := range a {
		set[t] = struct{}{}
	}
	shared := 0
	for _, t := range b {
		if _, ok := set[t]; ok {
			shared++
			delete(set, t)
		}
	}
	return shared
}

// Consolidate boosts every member of every chain in place. The boost
// shrinks with position (early members gain most) and with temporal
// distance from the breakthrough, and is capped; both the consolidated
// salience and the importance stay within [0, 1].
func (e *Engine) Consolidate(chains [][]*Episode) {
	for _, chain := range chains {
		e.boostChain(chain)
	}
}

func (e *Engine) boostChain(chain []*Episode) {
	if len(chain) < 2 {
		return
	}
	b := chain[len(chain)-1]
	length := float64(len(chain))

	for i, ep := range chain {
		position := 1 - float64(i)/length
		gapHours := b.CreatedAt.Sub(ep.CreatedAt).Hours()
		decay := math.Exp(-gapHours / e.tuning.BoostDecayHours)
		boost := math.Min(e.tuning.BoostCap, b.BreakthroughScore*position*decay*boostScale)

		ep.ConsolidatedSalience = math.Min(1, ep.Salience+boost)
		ep.Importance = math.Min(1, ep.Importance*(1+boost))
		ep.Boosted = true
	}
}

// BuildTraces emits one directed edge per consecutive chain pair. The
// first edge of a chain is the initiator, the last the conclusion and
// the rest progressions; a two-member chain's single edge counts as
// the initiator. Edges of chain i share narrative_id chain_<date>_<i>.
func (e *Engine) BuildTraces(chains [][]*Episode, runDate time.Time) []*Trace {
	stamp := runDate.Format("20060102")

	var traces []*Trace
	for idx, chain := range chains {
		narrativeID := fmt.Sprintf("chain_%s_%d", stamp, idx)
		for i := 0; i+1 < len(chain); i++ {
			source, target := chain[i], chain[i+1]

			traceType := TraceProgression
			switch {
			case i == 0:
				traceType = TraceInitiator
			case i == len(chain)-2:
				traceType = TraceConclusion
			}

			gapHours := target.CreatedAt.Sub(source.CreatedAt).Hours()
			traces = append(traces, &Trace{
				SourceEpisodeID: source.ID,
				TargetEpisodeID: target.ID,
				TraceType:       traceType,
				Strength:        1 / (1 + gapHours/traceStrengthScaleHours),
				NarrativeID:     narrativeID,
			})
		}
	}
	return traces
}

// ReplayParams sizes and bounds the interleaved replay sample for a
// run that traced the given number of chains.
func (e *Engine) ReplayParams(chains int) ReplayParams {
	return ReplayParams{
		SalienceFloor: e.tuning.ReplaySalienceFloor,
		MinAgeDays:    e.tuning.ReplayMinAgeDays,
		MaxAgeDays:    e.tuning.ReplayMaxAgeDays,
		Limit:         int(float64(chains) * e.tuning.ReplayRatio),
	}
}

func (e *Engine) hours(h float64) time.Duration {
	return time.Duration(h * float64(time.Hour))
}
