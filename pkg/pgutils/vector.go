// Package pgutils provides PostgreSQL helpers for vector literals and
// error classification.
package pgutils

import (
	"fmt"
	"strconv"
	"strings"
)

// FormatVector converts a float32 slice to PostgreSQL vector literal format.
// Example: []float32{0.1, 0.2, 0.3} -> "[0.1,0.2,0.3]"
func FormatVector(v []float32) string {
	if len(v) == 0 {
		return "[]"
	}

	var buf strings.Builder
	buf.Grow(len(v)*12 + 2) // Pre-allocate buffer for efficiency
	buf.WriteByte('[')

	for i, f := range v {
		if i > 0 {
			buf.WriteByte(',')
		}
		buf.WriteString(strconv.FormatFloat(float64(f), 'f', -1, 32))
	}

	buf.WriteByte(']')
	return buf.String()
}

// ParseVector parses a PostgreSQL vector literal back into a float32 slice.
// Accepts the same "[0.1,0.2,0.3]" form FormatVector produces (pgvector's
// text output). Returns nil for an empty literal.
func ParseVector(s string) ([]float32, error) {
	s = strings.TrimSpace(s)
	if len(s) < 2 || s[0] != '[' || s[len(s)-1] != ']' {
		return nil, fmt.Errorf("pgutils: malformed vector literal %q", s)
	}

	inner := s[1 : len(s)-1]
	if strings.TrimSpace(inner) == "" {
		return nil, nil
	}

	parts := strings.Split(inner, ",")
	out := make([]float32, 0, len(parts))
	for _, p := range parts {
		f, err := strconv.ParseFloat(strings.TrimSpace(p), 32)
		if err != nil {
			return nil, fmt.Errorf("pgutils: malformed vector element %q: %w", p, err)
		}
		out = append(out, float32(f))
	}
	return out, nil
}
