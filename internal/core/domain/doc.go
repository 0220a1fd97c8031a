// Package domain defines the core entities of the mima retrieval engine.
//
// This package is part of the hexagonal architecture's innermost layer.
// It has NO external dependencies and defines the fundamental types:
//
//   - Document: OCR text with its origin, immutable once stored
//   - EmbeddingRecord: The vector generated for a Document (1:1, may be pending)
//   - Entry: A Document paired with its optional EmbeddingRecord
//   - Sequence: The fixed-length token framing fed to the inference model
//   - QueryResult / SearchResponse: Ranked retrieval output
//
// # Architectural Position
//
// Domain is at the centre of the hexagon. It may only import
// the Go standard library. All other packages depend on domain,
// never the reverse.
//
// # Import Rules
//
//   - Can Import: Standard library only
//   - Cannot Import: Any internal/ package, any external dependency
package domain
