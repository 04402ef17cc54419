package config

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// Tuning holds the decay and consolidation parameters. Defaults match
// the stored procedures; a tuning file overrides individual fields.
type Tuning struct {
	Decay         DecayTuning         `yaml:"decay"`
	Consolidation ConsolidationTuning `yaml:"consolidation"`
}

// DecayTuning parameterizes the decay score model
type DecayTuning struct {
	// ImportanceWeight, RecencyWeight and AccessWeight combine the
	// three decay signals. They should sum to 1.
	ImportanceWeight float64 `yaml:"importance_weight"`
	RecencyWeight    float64 `yaml:"recency_weight"`
	AccessWeight     float64 `yaml:"access_weight"`

	// RecencyHalfLifeDays halves the recency signal per period
	RecencyHalfLifeDays float64 `yaml:"recency_half_life_days"`

	// AccessHalfLifeDays halves the last-access signal per period
	AccessHalfLifeDays float64 `yaml:"access_half_life_days"`
}

// ConsolidationTuning parameterizes the nightly consolidation engine
type ConsolidationTuning struct {
	// BreakthroughPercentile selects the top slice of breakthrough
	// scores (80 keeps the top 20%)
	BreakthroughPercentile float64 `yaml:"breakthrough_percentile"`

	// ChainWindowHours bounds the backward search from a breakthrough
	ChainWindowHours float64 `yaml:"chain_window_hours"`

	// ChainSimilarityThreshold is the cosine similarity above which
	// two episodes are considered related
	ChainSimilarityThreshold float64 `yaml:"chain_similarity_threshold"`

	// ChainSharedTagMinimum is the tag overlap that links two episodes
	ChainSharedTagMinimum int `yaml:"chain_shared_tag_minimum"`

	// ChainProximityHours links an episode within this distance of an
	// accepted chain member
	ChainProximityHours float64 `yaml:"chain_proximity_hours"`

	// BoostCap limits the salience boost applied to a chain member
	BoostCap float64 `yaml:"boost_cap"`

	// BoostDecayHours scales the exponential falloff of the boost
	// with distance from the breakthrough
	BoostDecayHours float64 `yaml:"boost_decay_hours"`

	// ReplayRatio sizes the replay sample relative to the chain count
	ReplayRatio float64 `yaml:"replay_ratio"`

	// ReplaySalienceFloor is the minimum consolidated salience for a
	// replay candidate
	ReplaySalienceFloor float64 `yaml:"replay_salience_floor"`

	// ReplayMinAgeDays and ReplayMaxAgeDays bound replay candidate age
	ReplayMinAgeDays int `yaml:"replay_min_age_days"`
	ReplayMaxAgeDays int `yaml:"replay_max_age_days"`
}

// DefaultTuning returns the built-in parameter set
func DefaultTuning() *Tuning {
	return &Tuning{
		Decay: DecayTuning{
			ImportanceWeight:    0.5,
			RecencyWeight:       0.3,
			AccessWeight:        0.2,
			RecencyHalfLifeDays: 30,
			AccessHalfLifeDays:  7,
		},
		Consolidation: ConsolidationTuning{
			BreakthroughPercentile:   80,
			ChainWindowHours:         12,
			ChainSimilarityThreshold: 0.65,
			ChainSharedTagMinimum:    2,
			ChainProximityHours:      1,
			BoostCap:                 0.20,
			BoostDecayHours:          6,
			ReplayRatio:              0.3 / 0.7,
			ReplaySalienceFloor:      0.70,
			ReplayMinAgeDays:         7,
			ReplayMaxAgeDays:         90,
		},
	}
}

// LoadTuning returns the defaults merged with the YAML file at path.
// An empty path returns the defaults unchanged.
func LoadTuning(path string) (*Tuning, error) {
	tuning := DefaultTuning()
	if path == "" {
		return tuning, nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read tuning file %s: %w", path, err)
	}
	if err := yaml.Unmarshal(data, tuning); err != nil {
		return nil, fmt.Errorf("failed to parse tuning file %s: %w", path, err)
	}
	return tuning, nil
}
