// Package driven defines the interfaces that core calls OUT to infrastructure.
//
// These are the "driven" or "secondary" ports in hexagonal architecture.
// Core services depend on these interfaces, and infrastructure adapters
// implement them.
//
// # Required Interfaces
//
//   - Vocabulary: Maps normalised text to subword token ids
//   - Normaliser: Frames token ids into fixed-length model input
//   - EmbeddingProvider: Turns a Sequence into a vector (lifecycle-aware)
//   - Inferencer: The opaque inference runtime behind a provider
//   - VectorStore: Durable source of truth for documents and embeddings
//   - ConfigStore: Application configuration
//
// # Import Rules
//
//   - Can Import: domain package only
//   - Cannot Import: Any adapter or normaliser package
package driven
