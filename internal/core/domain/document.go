package domain

import (
	"fmt"
	"math"
	"time"
)

// Document is a unit of extracted text.
// It is created once per ingestion and never mutated afterwards.
type Document struct {
	// ID is assigned by the VectorStore on insertion. Opaque and unique.
	ID string

	// TextContent is the extracted text.
	TextContent string

	// SourceLocator references the origin of the text (e.g. an image path).
	SourceLocator string

	// SourceReference is a human-readable label for the origin.
	SourceReference string

	// CreatedAt is when the document was ingested.
	CreatedAt time.Time
}

// EmbeddingRecord holds the vector generated for a Document.
// There is at most one record per document and it is always replaced whole.
type EmbeddingRecord struct {
	// DocumentID links to the Document this vector represents.
	DocumentID string

	// Vector has exactly the configured number of dimensions.
	Vector []float32

	// GeneratedAt is when the vector was produced.
	GeneratedAt time.Time
}

// Validate checks the record against the deployment dimension.
// A dims value <= 0 skips the length check.
func (r EmbeddingRecord) Validate(dims int) error {
	if r.DocumentID == "" {
		return fmt.Errorf("%w: embedding record without document id", ErrValidation)
	}
	if len(r.Vector) == 0 {
		return fmt.Errorf("%w: empty vector for %s", ErrValidation, r.DocumentID)
	}
	if dims > 0 && len(r.Vector) != dims {
		return fmt.Errorf("%w: got %d, want %d", ErrDimensionMismatch, len(r.Vector), dims)
	}
	for i, v := range r.Vector {
		f := float64(v)
		if math.IsNaN(f) || math.IsInf(f, 0) {
			return fmt.Errorf("%w: non-finite component at %d", ErrValidation, i)
		}
	}
	return nil
}

// Entry pairs a Document with its EmbeddingRecord.
// Embedding is nil while the document is pending.
type Entry struct {
	Document  Document
	Embedding *EmbeddingRecord
}

// Pending reports whether the document still lacks an embedding.
func (e Entry) Pending() bool {
	return e.Embedding == nil
}

// Sequence is the fixed-length model input produced by the normaliser.
// All three slices have the same length.
type Sequence struct {
	// TokenIDs is [BEGIN] content... [END] [PAD]...
	TokenIDs []int32

	// AttentionMask is 1 for real tokens and 0 for padding.
	AttentionMask []int32

	// SegmentIDs is all zeroes (single-segment model).
	SegmentIDs []int32
}

// Len returns the sequence length.
func (s Sequence) Len() int {
	return len(s.TokenIDs)
}

// ContentLen returns the number of attended tokens excluding the two sentinels.
func (s Sequence) ContentLen() int {
	n := 0
	for _, m := range s.AttentionMask {
		if m != 0 {
			n++
		}
	}
	if n < 2 {
		return 0
	}
	return n - 2
}

// StoreStats summarises the contents of a VectorStore.
type StoreStats struct {
	// Documents is the total number of stored documents.
	Documents int

	// Embedded is the number of documents with an EmbeddingRecord.
	Embedded int
}

// Pending returns the number of documents awaiting an embedding.
func (s StoreStats) Pending() int {
	return s.Documents - s.Embedded
}
