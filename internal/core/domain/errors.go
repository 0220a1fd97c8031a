package domain

import (
	"errors"
	"fmt"
)

// Domain errors represent business logic failures.
// These are distinct from infrastructure errors.
var (
	// ErrNotFound indicates a requested entity does not exist.
	ErrNotFound = errors.New("not found")

	// ErrValidation indicates malformed input. Such input is rejected
	// synchronously and never persisted.
	ErrValidation = errors.New("validation error")

	// ErrDimensionMismatch indicates a vector whose length differs from the
	// deployment dimension.
	ErrDimensionMismatch = fmt.Errorf("%w: dimension mismatch", ErrValidation)

	// ErrModelNotReady indicates the embedding model is not loaded.
	// Ingestion degrades to EmbeddingFailed; queries return an empty result.
	ErrModelNotReady = errors.New("model not ready")

	// ErrInference indicates the embedding model failed to produce a usable vector.
	ErrInference = errors.New("inference error")

	// ErrPersistence indicates the store could not complete a write or read.
	ErrPersistence = errors.New("persistence error")

	// ErrNormaliser indicates the normaliser broke its output contract.
	// This is a logic error and is never retried.
	ErrNormaliser = errors.New("normaliser contract violation")

	// ErrClosed indicates the service has been shut down.
	ErrClosed = errors.New("service closed")
)

// IngestError reports the pipeline stage at which an ingestion failed.
type IngestError struct {
	// Stage is the failure state reached by the pipeline.
	Stage IngestState

	// DocumentID is set when the document was persisted before the failure.
	DocumentID string

	// Err is the underlying cause.
	Err error
}

func (e *IngestError) Error() string {
	if e.DocumentID != "" {
		return fmt.Sprintf("ingest %s (%s): %v", e.DocumentID, e.Stage, e.Err)
	}
	return fmt.Sprintf("ingest (%s): %v", e.Stage, e.Err)
}

func (e *IngestError) Unwrap() error {
	return e.Err
}
