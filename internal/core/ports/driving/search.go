package driving

import (
	"context"

	"github.com/alazoor/Mimachat/internal/core/domain"
)

// SearchService provides semantic retrieval to external actors.
type SearchService interface {
	// Search ranks stored documents by similarity to queryText.
	// Expected empty outcomes are reported through SearchResponse.Reason;
	// err is reserved for invalid arguments and internal failures.
	Search(ctx context.Context, queryText string, k int, minSimilarity float64) (domain.SearchResponse, error)

	// Ask answers a question using the configured answer limit and threshold.
	Ask(ctx context.Context, question string) (domain.Answer, error)
}

// ModelService exposes the embedding model lifecycle.
type ModelService interface {
	// State returns the current lifecycle state.
	State() domain.ModelState

	// Wait blocks until the current load attempt resolves or ctx ends.
	Wait(ctx context.Context) (domain.ModelState, error)
}
