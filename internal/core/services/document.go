package services

import (
	"context"
	"fmt"

	"github.com/alazoor/Mimachat/internal/core/domain"
	"github.com/alazoor/Mimachat/internal/core/ports/driven"
	"github.com/alazoor/Mimachat/internal/core/ports/driving"
	"github.com/alazoor/Mimachat/internal/index"
)

// Ensure DocumentService implements the interface.
var _ driving.DocumentService = (*DocumentService)(nil)

// DocumentService reads stored documents. Deletion is delegated to the
// ingestion service so it goes through the single writer.
type DocumentService struct {
	store  driven.VectorStore
	index  *index.Index
	ingest driving.IngestionService
}

// NewDocumentService creates a new document service.
func NewDocumentService(store driven.VectorStore, ix *index.Index, ingest driving.IngestionService) *DocumentService {
	return &DocumentService{
		store:  store,
		index:  ix,
		ingest: ingest,
	}
}

// Get retrieves a document and its embedding, if any.
func (s *DocumentService) Get(ctx context.Context, documentID string) (*domain.Entry, error) {
	entry, err := s.store.Get(ctx, documentID)
	if err != nil {
		return nil, err
	}
	return &entry, nil
}

// List returns every stored document in insertion order.
func (s *DocumentService) List(ctx context.Context) ([]domain.Entry, error) {
	var entries []domain.Entry
	for entry, err := range s.store.ListAll(ctx) {
		if err != nil {
			return nil, fmt.Errorf("listing documents: %w", err)
		}
		entries = append(entries, entry)
	}
	return entries, nil
}

// Pending returns documents without a usable embedding.
func (s *DocumentService) Pending(ctx context.Context) ([]domain.Document, error) {
	return s.store.ListPendingEmbeddings(ctx)
}

// Stats combines store counts with the state of the published snapshot.
func (s *DocumentService) Stats(ctx context.Context) (*driving.DocumentStats, error) {
	stats, err := s.store.Stats(ctx)
	if err != nil {
		return nil, err
	}

	snap := s.index.Snapshot()
	return &driving.DocumentStats{
		StoreStats:      stats,
		Indexed:         snap.Len(),
		SnapshotVersion: snap.Version(),
	}, nil
}

// Delete removes a document, its embedding and its index entry.
func (s *DocumentService) Delete(ctx context.Context, documentID string) error {
	return s.ingest.Delete(ctx, documentID)
}
