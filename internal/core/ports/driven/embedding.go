package driven

import (
	"context"

	"github.com/alazoor/Mimachat/internal/core/domain"
)

// EmbeddingProvider converts a normalised Sequence into a fixed-dimension vector.
//
// Providers have a lifecycle (Unloaded -> Loading -> Ready | Failed) and must
// tolerate concurrent callers. Execution may be serialised on a single model
// instance, so callers should expect queuing latency rather than parallel throughput.
type EmbeddingProvider interface {
	// Embed generates the vector for seq.
	// Fails fast with domain.ErrModelNotReady when State() != Ready and with
	// domain.ErrInference on numeric failure. A sequence with no content tokens
	// maps to the zero vector.
	Embed(ctx context.Context, seq domain.Sequence) ([]float32, error)

	// State returns the current lifecycle state.
	State() domain.ModelState

	// Dimensions returns D.
	Dimensions() int

	// ModelName returns the name of the model being served.
	ModelName() string
}

// Inferencer is the opaque runtime behind an EmbeddingProvider.
// It receives exactly the normaliser's output shape.
type Inferencer interface {
	// Infer runs the model on one sequence.
	Infer(ctx context.Context, seq domain.Sequence) ([]float32, error)

	// Dimensions returns the output vector size.
	Dimensions() int

	// Close releases resources.
	Close() error
}
