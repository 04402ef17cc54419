package encoder

import (
	"context"
	"hash/fnv"
	"math"
	"strings"
	"unicode"
)

// stopwords are excluded from hashed features so that function words
// do not dominate similarity between short texts.
var stopwords = map[string]struct{}{
	"a": {}, "an": {}, "and": {}, "are": {}, "as": {}, "at": {},
	"be": {}, "been": {}, "but": {}, "by": {}, "for": {}, "from": {},
	"had": {}, "has": {}, "have": {}, "he": {}, "her": {}, "his": {},
	"i": {}, "in": {}, "into": {}, "is": {}, "it": {}, "its": {},
	"of": {}, "on": {}, "or": {}, "our": {}, "she": {}, "that": {},
	"the": {}, "their": {}, "them": {}, "they": {}, "this": {}, "to": {},
	"was": {}, "we": {}, "were": {}, "will": {}, "with": {}, "you": {},
}

// LocalClient is a deterministic, dependency-free encoder based on
// feature hashing of content tokens. The same text always produces the
// same unit-length vector, so re-embedding an episode is idempotent and
// texts sharing vocabulary land close in the vector space. It stands in
// for a trained sentence encoder when no remote endpoint is configured.
type LocalClient struct {
	dimension int
}

// NewLocalClient creates a deterministic local encoder. A non-positive
// dimension falls back to the package default.
func NewLocalClient(dimension int) *LocalClient {
	if dimension <= 0 {
		dimension = Dimension
	}
	return &LocalClient{dimension: dimension}
}

// Encode hashes content tokens into a unit-length vector. Text with no
// usable tokens produces the zero vector.
func (c *LocalClient) Encode(ctx context.Context, text string) ([]float32, error) {
	vec := make([]float32, c.dimension)

	for _, token := range tokenize(text) {
		h := fnv.New64a()
		_, _ = h.Write([]byte(token))
		vec[h.Sum64()%uint64(c.dimension)] += 1.0
	}

	normalize(vec)
	return vec, nil
}

// EncodeBatch encodes each text independently
func (c *LocalClient) EncodeBatch(ctx context.Context, texts []string) ([][]float32, error) {
	out := make([][]float32, len(texts))
	for i, text := range texts {
		vec, err := c.Encode(ctx, text)
		if err != nil {
			return nil, err
		}
		out[i] = vec
	}
	return out, nil
}

// tokenize lowercases, splits on non-alphanumeric runes, drops
// stopwords and strips a plural -s so that close phrasings share
// features.
func tokenize(text string) []string {
	fields := strings.FieldsFunc(strings.ToLower(text), func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsDigit(r)
	})

	tokens := make([]string, 0, len(fields))
	for _, f := range fields {
		if _, skip := stopwords[f]; skip {
			continue
		}
		if len(f) > 3 && strings.HasSuffix(f, "s") && !strings.HasSuffix(f, "ss") {
			f = f[:len(f)-1]
		}
		tokens = append(tokens, f)
	}
	return tokens
}

func normalize(vec []float32) {
	var sum float64
	for _, v := range vec {
		sum += float64(v) * float64(v)
	}
	if sum == 0 {
		return
	}
	norm := math.Sqrt(sum)
	for i := range vec {
		vec[i] = float32(float64(vec[i]) / norm)
	}
}
