// Package embeddings defines the embedding provider abstraction and its
// concrete implementations.
package embeddings

import "context"

// Provider generates a dense vector for the given text. Best-effort: callers
// must tolerate failure and proceed without a vector.
type Provider interface {
	Embed(ctx context.Context, text string) ([]float32, error)
}
