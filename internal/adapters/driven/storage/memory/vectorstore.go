package memory

import (
	"context"
	"fmt"
	"iter"
	"slices"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/alazoor/Mimachat/internal/core/domain"
	"github.com/alazoor/Mimachat/internal/core/ports/driven"
)

// Ensure VectorStore implements the interface.
var _ driven.VectorStore = (*VectorStore)(nil)

// VectorStore is an in-memory implementation of driven.VectorStore.
// Vectors are copied on the way in and out.
type VectorStore struct {
	mu         sync.RWMutex
	dimensions int
	order      []string
	documents  map[string]domain.Document
	embeddings map[string]domain.EmbeddingRecord
}

// NewVectorStore creates an empty store for vectors of the given dimension.
func NewVectorStore(dimensions int) *VectorStore {
	return &VectorStore{
		dimensions: dimensions,
		documents:  make(map[string]domain.Document),
		embeddings: make(map[string]domain.EmbeddingRecord),
	}
}

// Put inserts doc under a new id, together with rec when it is non-nil.
func (s *VectorStore) Put(_ context.Context, doc domain.Document, rec *domain.EmbeddingRecord) (string, error) {
	if strings.TrimSpace(doc.TextContent) == "" {
		return "", fmt.Errorf("%w: document text is empty", domain.ErrValidation)
	}

	doc.ID = uuid.New().String()
	if doc.CreatedAt.IsZero() {
		doc.CreatedAt = time.Now().UTC()
	}

	var embedding domain.EmbeddingRecord
	if rec != nil {
		embedding = copyRecord(*rec)
		embedding.DocumentID = doc.ID
		if embedding.GeneratedAt.IsZero() {
			embedding.GeneratedAt = time.Now().UTC()
		}
		if err := embedding.Validate(s.dimensions); err != nil {
			return "", err
		}
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	s.documents[doc.ID] = doc
	s.order = append(s.order, doc.ID)
	if rec != nil {
		s.embeddings[doc.ID] = embedding
	}
	return doc.ID, nil
}

// Get retrieves a document and its embedding by ID.
func (s *VectorStore) Get(_ context.Context, id string) (domain.Entry, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	entry, ok := s.entryLocked(id)
	if !ok {
		return domain.Entry{}, fmt.Errorf("document %s: %w", id, domain.ErrNotFound)
	}
	return entry, nil
}

// ListAll yields a point-in-time copy of every entry in insertion order.
func (s *VectorStore) ListAll(_ context.Context) iter.Seq2[domain.Entry, error] {
	s.mu.RLock()
	entries := make([]domain.Entry, 0, len(s.order))
	for _, id := range s.order {
		entry, _ := s.entryLocked(id)
		entries = append(entries, entry)
	}
	s.mu.RUnlock()

	return func(yield func(domain.Entry, error) bool) {
		for _, entry := range entries {
			if !yield(entry, nil) {
				return
			}
		}
	}
}

// ListPendingEmbeddings returns documents without an embedding, oldest first.
func (s *VectorStore) ListPendingEmbeddings(_ context.Context) ([]domain.Document, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var docs []domain.Document
	for _, id := range s.order {
		if _, ok := s.embeddings[id]; !ok {
			docs = append(docs, s.documents[id])
		}
	}
	return docs, nil
}

// UpdateEmbedding replaces the embedding of an existing document.
func (s *VectorStore) UpdateEmbedding(_ context.Context, rec domain.EmbeddingRecord) error {
	rec = copyRecord(rec)
	if rec.GeneratedAt.IsZero() {
		rec.GeneratedAt = time.Now().UTC()
	}
	if err := rec.Validate(s.dimensions); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.documents[rec.DocumentID]; !ok {
		return fmt.Errorf("document %s: %w", rec.DocumentID, domain.ErrNotFound)
	}
	s.embeddings[rec.DocumentID] = rec
	return nil
}

// Delete removes a document and its embedding.
func (s *VectorStore) Delete(_ context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.documents[id]; !ok {
		return fmt.Errorf("document %s: %w", id, domain.ErrNotFound)
	}
	delete(s.documents, id)
	delete(s.embeddings, id)
	s.order = slices.DeleteFunc(s.order, func(v string) bool { return v == id })
	return nil
}

// Stats counts documents and embeddings.
func (s *VectorStore) Stats(_ context.Context) (domain.StoreStats, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return domain.StoreStats{Documents: len(s.documents), Embedded: len(s.embeddings)}, nil
}

// Close is a no-op.
func (s *VectorStore) Close() error {
	return nil
}

func (s *VectorStore) entryLocked(id string) (domain.Entry, bool) {
	doc, ok := s.documents[id]
	if !ok {
		return domain.Entry{}, false
	}
	entry := domain.Entry{Document: doc}
	if rec, ok := s.embeddings[id]; ok {
		cp := copyRecord(rec)
		entry.Embedding = &cp
	}
	return entry, true
}

func copyRecord(rec domain.EmbeddingRecord) domain.EmbeddingRecord {
	rec.Vector = slices.Clone(rec.Vector)
	return rec
}
