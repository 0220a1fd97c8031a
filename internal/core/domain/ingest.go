package domain

import "time"

// IngestState is the position of a document in the ingestion pipeline.
type IngestState string

// Pipeline states. EmbeddingFailed, PersistFailed and IndexFailed are
// failure states.
const (
	IngestReceived    IngestState = "received"
	IngestNormalizing IngestState = "normalizing"
	IngestEmbedding   IngestState = "embedding"
	IngestPersisting  IngestState = "persisting"
	IngestIndexed     IngestState = "indexed"

	// IngestEmbeddingFailed means the document is stored without a vector
	// and is queued for backfill.
	IngestEmbeddingFailed IngestState = "embedding_failed"

	// IngestPersistFailed means nothing was committed for this attempt.
	IngestPersistFailed IngestState = "persist_failed"

	// IngestIndexFailed means the embedding was stored but the current
	// snapshot rejected it. The store is authoritative; a refresh re-derives
	// the snapshot from it.
	IngestIndexFailed IngestState = "index_failed"
)

// IsTerminal returns true if no further transition follows this state.
func (s IngestState) IsTerminal() bool {
	switch s {
	case IngestIndexed, IngestEmbeddingFailed, IngestPersistFailed, IngestIndexFailed:
		return true
	default:
		return false
	}
}

// IsFailure returns true for the failure states.
func (s IngestState) IsFailure() bool {
	return s == IngestEmbeddingFailed || s == IngestPersistFailed || s == IngestIndexFailed
}

// String returns the string representation.
func (s IngestState) String() string {
	return string(s)
}

// IngestEvent is published on every pipeline transition.
type IngestEvent struct {
	// DocumentID is empty only for PersistFailed on the initial insert.
	DocumentID string

	// State is the state just entered.
	State IngestState

	// Err is set for failure states.
	Err error

	// At is when the transition happened.
	At time.Time
}

// BackfillReport summarises one backfill pass over pending documents.
type BackfillReport struct {
	// Pending is the number of pending documents found.
	Pending int

	// Attempted is the number of documents sent through the embed stage.
	Attempted int

	// Indexed is the number that now have an embedding.
	Indexed int

	// Failed is the number that are still pending.
	Failed int

	// Skipped counts documents already in flight or marked as poisoned.
	Skipped int
}
