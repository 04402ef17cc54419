package facts

import (
	"math"
	"regexp"
	"strconv"
	"strings"
	"time"
)

// ExtractionMethod tags every fact map produced by this pipeline so the
// origin of a stored fact stays auditable across re-extractions.
const ExtractionMethod = "regex_pipeline_v1"

// Telemetry keys attached alongside extracted fields.
const (
	KeyExtractionMethod     = "extraction_method"
	KeyExtractionConfidence = "extraction_confidence"
	KeyLastUpdated          = "last_updated"
)

type fieldKind int

const (
	kindText fieldKind = iota
	kindNumber
	kindInteger
	kindStatus
	kindFeature
)

type fieldSpec struct {
	name     string
	kind     fieldKind
	patterns []*regexp.Regexp
}

func compile(patterns ...string) []*regexp.Regexp {
	out := make([]*regexp.Regexp, len(patterns))
	for i, p := range patterns {
		out[i] = regexp.MustCompile("(?i)" + p)
	}
	return out
}

// fieldSpecs drives extraction. Patterns within a field are ordered:
// the first match wins and the rest are not tried.
var fieldSpecs = []fieldSpec{
	{"nexus_version", kindText, compile(
		`(?:NEXUS|version|v)[\s:v]*(\d+\.\d+\.\d+)`,
		`V(\d+\.\d+\.\d+)`,
	)},
	{"accuracy_percent", kindNumber, compile(
		`(\d+(?:\.\d+)?)\s*%\s*(?:accuracy|correct|success)`,
		`(?:accuracy|correct|success)[:\s]+(\d+(?:\.\d+)?)\s*%`,
	)},
	{"latency_ms", kindNumber, compile(
		`(\d+(?:\.\d+)?)\s*ms\s*(?:latency|avg|average)`,
		`(?:latency|avg|average)[:\s]+(\d+(?:\.\d+)?)\s*ms`,
	)},
	{"episode_count", kindInteger, compile(
		`(\d+)\s+(?:total\s+)?episodes`,
		`(?:total\s+)?episodes:\s*(\d+)`,
		`episodes.*?(\d+)`,
	)},
	{"query_count", kindInteger, compile(
		`(\d+)\s+queries`,
		`queries:\s*(\d+)`,
	)},
	{"test_count", kindInteger, compile(
		`(\d+)\s+tests?`,
		`tests?:\s*(\d+)`,
	)},
	{"status", kindStatus, compile(
		`(?:Status|STATE):\s*(\w+)`,
		`(\w+)\s+COMPLETE`,
		`Implementation:\s*(\w+)`,
	)},
	{"phase_number", kindInteger, compile(
		`phase[:\s]\s*(\d+)`,
		`P(\d+):`,
	)},
	{"session_number", kindInteger, compile(
		`session[:\s]\s*(\d+)`,
		`S(\d+):`,
	)},
	{"feature_name", kindFeature, compile(
		`Feature:\s*([^\n]+)`,
		`Implementing:\s*([^\n]+)`,
		`([A-Z][a-z]+\s+[A-Z][a-z]+)(?:\s+Feature|\s+Implementation)`,
	)},
	{"implementation_time_hours", kindNumber, compile(
		`(\d+(?:\.\d+)?)\s+hours?`,
		`Duration:\s+(\d+(?:\.\d+)?)\s+hours?`,
		`Time:\s+(\d+(?:\.\d+)?)\s*h`,
	)},
	{"lines_of_code", kindInteger, compile(
		`(\d+)\s+lines?(?:\s+of\s+code)?`,
		`LOC:\s*(\d+)`,
		`(\d+)\s+LOC`,
	)},
	{"benchmark_name", kindText, compile(
		`([A-Z]+)\s+Benchmark`,
		`Benchmark:\s*([^\n]+)`,
	)},
	{"benchmark_score", kindNumber, compile(
		`Benchmark.*?(\d+(?:\.\d+)?)\s*%`,
		`Score:\s+(\d+(?:\.\d+)?)`,
	)},
	{"baseline_score", kindNumber, compile(
		`(?:Baseline|SOTA|Target).*?(\d+(?:\.\d+)?)\s*%`,
		`vs\.?\s+(\d+(?:\.\d+)?)\s*%`,
	)},
	{"bug_count", kindInteger, compile(
		`(\d+)\s+bugs?`,
		`bugs?.*?(\d+)`,
	)},
	{"error_count", kindInteger, compile(
		`(\d+)\s+errors?`,
		`errors?.*?(\d+)`,
	)},
	{"commit_hash", kindText, compile(
		`commit:\s*([a-f0-9]{7,40})`,
		`([a-f0-9]{40})`,
	)},
	{"decay_score", kindNumber, compile(
		`decay[_\s]score:\s*(\d+\.\d+)`,
		`decay:\s*(\d+\.\d+)`,
	)},
}

var structureMarkers = []string{"###", "##", "**", "---", "===", "```"}

var explicitMarkers = []string{":", "=", "version", "accuracy", "status"}

// Extract runs the regex pipeline over episode content and returns the
// fact map with extraction telemetry attached, or nil when nothing
// matched.
func Extract(content string) map[string]any {
	facts := map[string]any{}

	for _, spec := range fieldSpecs {
		raw, ok := firstMatch(content, spec.patterns)
		if !ok {
			continue
		}
		switch spec.kind {
		case kindText:
			facts[spec.name] = raw
		case kindNumber:
			if f, ok := parseNumber(raw); ok {
				facts[spec.name] = f
			}
		case kindInteger:
			if n, ok := parseInteger(raw); ok {
				facts[spec.name] = n
			}
		case kindStatus:
			facts[spec.name] = NormalizeStatus(raw)
		case kindFeature:
			facts[spec.name] = strings.TrimRight(raw, ".:,;")
		}
	}

	if len(facts) == 0 {
		return nil
	}

	facts[KeyExtractionMethod] = ExtractionMethod
	facts[KeyExtractionConfidence] = Confidence(len(facts)-1, content)
	facts[KeyLastUpdated] = time.Now().UTC().Format(time.RFC3339Nano)
	return facts
}

// firstMatch returns the first capture group of the first pattern that
// matches, trimmed.
func firstMatch(content string, patterns []*regexp.Regexp) (string, bool) {
	for _, re := range patterns {
		if m := re.FindStringSubmatch(content); m != nil {
			return strings.TrimSpace(m[1]), true
		}
	}
	return "", false
}

// parseNumber converts a captured value to a float, tolerating thousands
// separators.
func parseNumber(raw string) (float64, bool) {
	f, err := strconv.ParseFloat(strings.ReplaceAll(raw, ",", ""), 64)
	if err != nil {
		return 0, false
	}
	return f, true
}

// parseInteger converts a captured value to an int through float parsing
// so values like "539.0" still land as integers.
func parseInteger(raw string) (int, bool) {
	f, ok := parseNumber(raw)
	if !ok {
		return 0, false
	}
	return int(f), true
}

// NormalizeStatus folds free-form status words onto the closed
// vocabulary COMPLETE / IN_PROGRESS / PENDING / FAILED. Unrecognized
// statuses pass through uppercased.
func NormalizeStatus(status string) string {
	upper := strings.ToUpper(status)

	for _, x := range []string{"COMPLETE", "DONE", "FINISHED", "SUCCESS"} {
		if strings.Contains(upper, x) {
			return "COMPLETE"
		}
	}
	for _, x := range []string{"PROGRESS", "ONGOING", "ACTIVE", "WORKING"} {
		if strings.Contains(upper, x) {
			return "IN_PROGRESS"
		}
	}
	for _, x := range []string{"PENDING", "PLANNED", "TODO", "UPCOMING"} {
		if strings.Contains(upper, x) {
			return "PENDING"
		}
	}
	for _, x := range []string{"FAILED", "ERROR", "BROKEN"} {
		if strings.Contains(upper, x) {
			return "FAILED"
		}
	}
	return upper
}

// Confidence scores an extraction from the number of extracted fields
// and the shape of the source content. Structured content (headings,
// rulers, code fences) and explicit fact markers each add a boost.
func Confidence(factCount int, content string) float64 {
	if factCount == 0 {
		return 0
	}

	score := math.Min(float64(factCount)/10.0, 0.8)

	for _, marker := range structureMarkers {
		if strings.Contains(content, marker) {
			score += 0.1
			break
		}
	}

	lower := strings.ToLower(content)
	for _, marker := range explicitMarkers {
		if strings.Contains(lower, marker) {
			score += 0.1
			break
		}
	}

	return math.Round(math.Min(score, 1.0)*100) / 100
}
