package driven

import (
	"context"
	"iter"

	"github.com/alazoor/Mimachat/internal/core/domain"
)

// VectorStore is the durable source of truth mapping documents to their
// text and optional embedding.
//
// Document insertion is durable independently of embedding success.
// Embedding updates are atomic: full replace or no change.
type VectorStore interface {
	// Put inserts a new document and, optionally, its embedding in one
	// transaction. The store assigns and returns the document id; any ID
	// already set on doc is ignored.
	Put(ctx context.Context, doc domain.Document, rec *domain.EmbeddingRecord) (string, error)

	// Get retrieves a document and its embedding (nil if pending).
	// Returns domain.ErrNotFound for unknown ids.
	Get(ctx context.Context, id string) (domain.Entry, error)

	// ListAll lazily yields every document in insertion order.
	ListAll(ctx context.Context) iter.Seq2[domain.Entry, error]

	// ListPendingEmbeddings returns documents without an EmbeddingRecord,
	// oldest first.
	ListPendingEmbeddings(ctx context.Context) ([]domain.Document, error)

	// UpdateEmbedding atomically sets or replaces the record for its document.
	// Returns domain.ErrNotFound if the document does not exist.
	UpdateEmbedding(ctx context.Context, rec domain.EmbeddingRecord) error

	// Delete removes a document and cascades to its embedding.
	// Returns domain.ErrNotFound for unknown ids.
	Delete(ctx context.Context, id string) error

	// Stats returns document and embedding counts.
	Stats(ctx context.Context) (domain.StoreStats, error)

	// Close releases resources.
	Close() error
}
