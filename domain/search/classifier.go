package search

import "strings"

// classificationRule maps query phrasings onto one fact type.
type classificationRule struct {
	factType string
	keywords []string
}

// classificationRules is ordered: the first rule with a matching keyword
// wins, mirroring the first-match-wins fact extraction pipeline. More
// specific phrasings sit above the generic ones they contain ("api
// version" above "version").
var classificationRules = []classificationRule{
	{factType: "api_version", keywords: []string{"api version"}},
	{factType: "nexus_version", keywords: []string{"version"}},
	{factType: "success_rate", keywords: []string{"success rate"}},
	{factType: "accuracy_percent", keywords: []string{"accuracy", "how accurate"}},
	{factType: "latency_ms", keywords: []string{"latency", "response time", "how fast"}},
	{factType: "episode_count", keywords: []string{"how many episodes", "episode count", "number of episodes"}},
	{factType: "query_count", keywords: []string{"how many queries", "query count", "number of queries"}},
	{factType: "test_count", keywords: []string{"how many tests", "test count", "number of tests"}},
	{factType: "bug_count", keywords: []string{"how many bugs", "bug count"}},
	{factType: "error_count", keywords: []string{"how many errors", "error count"}},
	{factType: "lines_of_code", keywords: []string{"lines of code"}},
	{factType: "completion_percent", keywords: []string{"completion percent", "how complete", "percent complete"}},
	{factType: "benchmark_score", keywords: []string{"benchmark score", "benchmark result"}},
	{factType: "commit_hash", keywords: []string{"commit hash", "which commit"}},
	{factType: "phase_number", keywords: []string{"phase"}},
	{factType: "session_number", keywords: []string{"session"}},
	{factType: "status", keywords: []string{"status"}},
}

// ClassifyQuery maps a natural-language query onto a fact type when it
// clearly asks for a canonical scalar: version, accuracy, latency,
// counts, status, phase or session. Everything else returns ok=false
// and takes the narrative path.
func ClassifyQuery(query string) (string, bool) {
	q := strings.ToLower(query)
	for _, rule := range classificationRules {
		for _, kw := range rule.keywords {
			if strings.Contains(q, kw) {
				return rule.factType, true
			}
		}
	}
	return "", false
}
