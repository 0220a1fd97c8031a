package driving

import (
	"context"

	"github.com/alazoor/Mimachat/internal/core/domain"
)

// IngestionService accepts extracted text and drives it through
// normalise -> embed -> persist -> index.
type IngestionService interface {
	// Submit persists a new document synchronously and schedules its
	// embedding. Returns the store-assigned id. Empty text is rejected with
	// domain.ErrValidation before anything is persisted.
	Submit(ctx context.Context, text, sourceLocator, sourceReference string) (string, error)

	// Wait blocks until the document reaches a terminal pipeline state.
	Wait(ctx context.Context, documentID string) (domain.IngestEvent, error)

	// Subscribe returns a channel of pipeline transitions and a function
	// that ends the subscription.
	Subscribe() (<-chan domain.IngestEvent, func())

	// Backfill retries the embedding of pending documents.
	Backfill(ctx context.Context) (domain.BackfillReport, error)

	// Delete removes a document, its embedding, and its index entry.
	Delete(ctx context.Context, documentID string) error
}
