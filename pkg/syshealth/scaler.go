package syshealth

import (
	"math"
	"sync"
	"time"
)

// ConcurrencyScaler adjusts worker concurrency based on system health.
// Scaling down is fast (1 minute cooldown, none at all when critical);
// scaling back up is deliberately slow (5 minute cooldown, at most +50%
// per step) so a recovering system is not immediately re-saturated.
type ConcurrencyScaler struct {
	monitor        Monitor
	workerType     string
	enabled        bool
	minConcurrency int
	maxConcurrency int

	mu                 sync.Mutex
	currentConcurrency int
	lastAdjustment     time.Time
}

// NewConcurrencyScaler creates a new ConcurrencyScaler. min is floored at 1
// and max at min; concurrency starts at max and scales down under pressure.
func NewConcurrencyScaler(monitor Monitor, workerType string, enabled bool, min, max int) *ConcurrencyScaler {
	if min < 1 {
		min = 1
	}
	if max < min {
		max = min
	}

	return &ConcurrencyScaler{
		monitor:            monitor,
		workerType:         workerType,
		enabled:            enabled,
		minConcurrency:     min,
		maxConcurrency:     max,
		currentConcurrency: max,
		lastAdjustment:     time.Now(),
	}
}

// GetConcurrency returns the currently allowed concurrency based on health.
// When scaling is disabled the caller's static value passes through.
func (s *ConcurrencyScaler) GetConcurrency(staticValue int) int {
	if !s.enabled {
		return staticValue
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	health := s.monitor.GetHealth()
	now := time.Now()
	timeSinceLastAdj := now.Sub(s.lastAdjustment)

	// Stale health data is treated as a warning signal
	zone := health.Zone
	if health.Stale {
		zone = HealthZoneWarning
	}

	targetConcurrency := s.currentConcurrency

	switch zone {
	case HealthZoneCritical:
		targetConcurrency = s.minConcurrency
	case HealthZoneWarning:
		targetConcurrency = int(math.Max(float64(s.minConcurrency), float64(s.maxConcurrency)*0.5))
	case HealthZoneSafe:
		targetConcurrency = s.maxConcurrency
	}

	if targetConcurrency < s.currentConcurrency {
		// Decreasing: 1 minute cooldown, none when critical
		if zone == HealthZoneCritical {
			s.adjust(targetConcurrency, now, "down", string(zone))
			JobsThrottled.WithLabelValues(s.workerType).Inc()
		} else if timeSinceLastAdj >= 1*time.Minute {
			s.adjust(targetConcurrency, now, "down", string(zone))
		}
	} else if targetConcurrency > s.currentConcurrency {
		// Increasing: 5 minute cooldown, at most +50% per step
		if timeSinceLastAdj >= 5*time.Minute {
			maxIncrease := int(math.Max(1.0, float64(s.currentConcurrency)*0.5))
			next := int(math.Min(float64(targetConcurrency), float64(s.currentConcurrency+maxIncrease)))
			s.adjust(next, now, "up", string(zone))
		}
	}

	if s.currentConcurrency < s.minConcurrency {
		s.currentConcurrency = s.minConcurrency
	}
	if s.currentConcurrency > s.maxConcurrency {
		s.currentConcurrency = s.maxConcurrency
	}

	return s.currentConcurrency
}

// UpdateConfig replaces the scaler bounds at runtime. The current level is
// clamped into the new range; cooldowns are unchanged.
func (s *ConcurrencyScaler) UpdateConfig(enabled bool, min, max int) {
	if min < 1 {
		min = 1
	}
	if max < min {
		max = min
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	s.enabled = enabled
	s.minConcurrency = min
	s.maxConcurrency = max

	if s.currentConcurrency < min {
		s.currentConcurrency = min
	}
	if s.currentConcurrency > max {
		s.currentConcurrency = max
	}
}

// adjust applies a concurrency change and publishes it. Callers hold s.mu.
func (s *ConcurrencyScaler) adjust(target int, now time.Time, direction, reason string) {
	s.currentConcurrency = target
	s.lastAdjustment = now

	WorkerConcurrency.WithLabelValues(s.workerType).Set(float64(target))
	WorkerAdjustments.WithLabelValues(s.workerType, direction, reason).Inc()
}
