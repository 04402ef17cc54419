package facts

// KnownFactTypes is the closed fact vocabulary: every field the regex
// pipeline can emit plus the curated fields writers may attach by hand.
// Queries for anything outside this set are rejected before touching
// storage.
var KnownFactTypes = map[string]struct{}{
	// Versioning
	"nexus_version": {},
	"api_version":   {},

	// Metrics
	"accuracy_percent": {},
	"latency_ms":       {},
	"success_rate":     {},

	// Counts
	"episode_count": {},
	"query_count":   {},
	"test_count":    {},

	// Status & progress
	"status":             {},
	"phase_number":       {},
	"session_number":     {},
	"completion_percent": {},

	// Implementation
	"feature_name":              {},
	"implementation_time_hours": {},
	"lines_of_code":             {},
	"files_created":             {},
	"files_modified":            {},

	// Memory system
	"decay_score":         {},
	"importance_override": {},

	// Benchmarks
	"benchmark_name":  {},
	"benchmark_score": {},
	"baseline_score":  {},

	// Issues
	"bug_count":   {},
	"error_count": {},

	// Time tracking
	"duration_hours": {},
	"start_date":     {},
	"end_date":       {},

	// Source control
	"commit_hash":         {},
	"pull_request_number": {},
}

// IsKnownFactType reports whether fact queries accept the given type.
func IsKnownFactType(factType string) bool {
	_, ok := KnownFactTypes[factType]
	return ok
}
