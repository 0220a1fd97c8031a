package driven

// ConfigStore is a flat key/value view of the settings file.
// Keys use dot notation ("search.min_similarity").
type ConfigStore interface {
	// Get returns the raw value and whether the key is set.
	Get(key string) (any, bool)

	// GetString returns "" for unset or non-string values.
	GetString(key string) string

	// GetInt returns 0 for unset or non-numeric values.
	GetInt(key string) int

	// GetFloat widens integers. Returns 0 for unset or non-numeric values.
	GetFloat(key string) float64

	// Set stores a value and persists it.
	Set(key string, value any) error

	// Save writes every value to storage.
	Save() error

	// Load replaces the in-memory values with what storage holds.
	Load() error

	// Path identifies the backing file.
	Path() string
}
