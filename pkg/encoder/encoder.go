// Package encoder provides embedding vector generation.
package encoder

import (
	"context"
)

// Dimension is the default embedding dimension
const Dimension = 384

// Client produces embedding vectors for text
type Client interface {
	// Encode generates an embedding vector for a single text
	Encode(ctx context.Context, text string) ([]float32, error)

	// EncodeBatch generates embedding vectors for multiple texts
	EncodeBatch(ctx context.Context, texts []string) ([][]float32, error)
}
