package domain

import (
	"fmt"
	"os"
	"path/filepath"
	"time"
)

const unknownDescription = "Unknown"

// Deployment defaults. These match a MiniLM-style sentence encoder.
const (
	DefaultDimensions     = 384
	DefaultSequenceLength = 128
)

// ModelBackend identifies the inference runtime behind the embedding provider.
type ModelBackend string

// Available model backends.
const (
	// ModelBackendHashing is the built-in deterministic feature-hashing encoder.
	ModelBackendHashing ModelBackend = "hashing"

	// ModelBackendTFServing is a TensorFlow Serving compatible REST endpoint.
	ModelBackendTFServing ModelBackend = "tfserving"
)

// IsValid returns true if the backend is recognised.
func (b ModelBackend) IsValid() bool {
	switch b {
	case ModelBackendHashing, ModelBackendTFServing:
		return true
	default:
		return false
	}
}

// IsLocal returns true if the backend runs in-process.
func (b ModelBackend) IsLocal() bool {
	return b == ModelBackendHashing
}

// String returns the string representation.
func (b ModelBackend) String() string {
	return string(b)
}

// Description returns a human-readable description of the backend.
func (b ModelBackend) Description() string {
	switch b {
	case ModelBackendHashing:
		return "Hashing (built-in, offline)"
	case ModelBackendTFServing:
		return "TensorFlow Serving (REST)"
	default:
		return unknownDescription
	}
}

// ModelSettings configures the normaliser and embedding provider.
type ModelSettings struct {
	// Backend selects the inference runtime.
	Backend ModelBackend

	// Name is the model name (used in the TF Serving URL).
	Name string

	// BaseURL is the inference endpoint (TF Serving only).
	BaseURL string

	// VocabPath points at a WordPiece vocab.txt. Empty selects the hashing vocabulary.
	VocabPath string

	// Dimensions is the embedding size D.
	Dimensions int

	// SequenceLength is the normalised sequence length L.
	SequenceLength int

	// Timeout bounds a single inference request.
	Timeout time.Duration

	// RatePerSecond throttles inference calls. Zero disables throttling.
	RatePerSecond float64
}

// SearchSettings holds query behaviour configuration.
type SearchSettings struct {
	// Limit is the default k.
	Limit int

	// MinSimilarity is the default similarity threshold.
	MinSimilarity float64

	// MinQueryRunes is the shortest accepted query, in runes after trimming.
	MinQueryRunes int

	// AnswerLimit is the number of results folded into an answer.
	AnswerLimit int
}

// IngestSettings holds pipeline configuration.
type IngestSettings struct {
	// QueueSize bounds the asynchronous embedding queue.
	QueueSize int

	// BackfillInterval is the period of the background backfill loop.
	// Zero disables the loop.
	BackfillInterval time.Duration

	// BackfillBatch caps the number of documents handled per backfill pass.
	BackfillBatch int
}

// StorageSettings holds persistence configuration.
type StorageSettings struct {
	// DataDir is where the SQLite database lives.
	DataDir string
}

// AppSettings holds all application settings.
type AppSettings struct {
	Model   ModelSettings
	Search  SearchSettings
	Ingest  IngestSettings
	Storage StorageSettings
}

// DefaultDataDir is ~/.mima/data, or .mima/data under the working
// directory when the home directory cannot be resolved.
func DefaultDataDir() string {
	home, err := os.UserHomeDir()
	if err != nil {
		home = "."
	}
	return filepath.Join(home, ".mima", "data")
}

// DefaultAppSettings returns settings with sensible defaults.
// The thresholds suit short OCR captures.
func DefaultAppSettings() AppSettings {
	return AppSettings{
		Model: ModelSettings{
			Backend:        ModelBackendHashing,
			Name:           "minilm-l6-v2-ar",
			Dimensions:     DefaultDimensions,
			SequenceLength: DefaultSequenceLength,
			Timeout:        30 * time.Second,
		},
		Search: SearchSettings{
			Limit:         5,
			MinSimilarity: 0.65,
			MinQueryRunes: 2,
			AnswerLimit:   3,
		},
		Ingest: IngestSettings{
			QueueSize:        64,
			BackfillInterval: 30 * time.Second,
			BackfillBatch:    32,
		},
		Storage: StorageSettings{
			DataDir: DefaultDataDir(),
		},
	}
}

// Validate checks that the settings can drive a working deployment.
func (s AppSettings) Validate() error {
	if !s.Model.Backend.IsValid() {
		return fmt.Errorf("%w: unknown model backend %q", ErrValidation, s.Model.Backend)
	}
	if s.Model.Backend == ModelBackendTFServing && s.Model.BaseURL == "" {
		return fmt.Errorf("%w: tfserving backend requires model.base_url", ErrValidation)
	}
	if s.Model.Dimensions <= 0 {
		return fmt.Errorf("%w: model.dimensions must be positive", ErrValidation)
	}
	if s.Model.SequenceLength < 2 {
		return fmt.Errorf("%w: model.sequence_length must be at least 2", ErrValidation)
	}
	if s.Search.Limit <= 0 {
		return fmt.Errorf("%w: search.limit must be positive", ErrValidation)
	}
	if s.Search.MinSimilarity < -1 || s.Search.MinSimilarity > 1 {
		return fmt.Errorf("%w: search.min_similarity must be within [-1, 1]", ErrValidation)
	}
	return nil
}

// AllModelBackends returns all available model backends.
func AllModelBackends() []ModelBackend {
	return []ModelBackend{
		ModelBackendHashing,
		ModelBackendTFServing,
	}
}
