package driving

import (
	"context"

	"github.com/alazoor/Mimachat/internal/core/domain"
)

// DocumentService gives read access to stored documents.
type DocumentService interface {
	// Get retrieves a document and its embedding state by id.
	Get(ctx context.Context, documentID string) (*domain.Entry, error)

	// List returns every stored document in insertion order.
	List(ctx context.Context) ([]domain.Entry, error)

	// Pending returns documents still waiting for an embedding.
	Pending(ctx context.Context) ([]domain.Document, error)

	// Stats returns store counts and the live index size.
	Stats(ctx context.Context) (*DocumentStats, error)

	// Delete removes a document through the ingestion writer path.
	Delete(ctx context.Context, documentID string) error
}

// DocumentStats combines store counts with the searchable snapshot.
type DocumentStats struct {
	domain.StoreStats

	// Indexed is the number of entries in the current snapshot.
	Indexed int

	// SnapshotVersion identifies the current snapshot.
	SnapshotVersion uint64
}
