package domain

// ModelState is the lifecycle state of the embedding model.
type ModelState string

// Model lifecycle: Unloaded -> Loading -> Ready | Failed, and back to
// Unloaded on explicit teardown.
const (
	ModelUnloaded ModelState = "unloaded"
	ModelLoading  ModelState = "loading"
	ModelReady    ModelState = "ready"
	ModelFailed   ModelState = "failed"
)

// IsResolved returns true once a load attempt has finished.
func (s ModelState) IsResolved() bool {
	return s == ModelReady || s == ModelFailed
}

// String returns the string representation.
func (s ModelState) String() string {
	return string(s)
}

// Description returns a human-readable description of the state.
func (s ModelState) Description() string {
	switch s {
	case ModelUnloaded:
		return "Unloaded"
	case ModelLoading:
		return "Loading model..."
	case ModelReady:
		return "Ready"
	case ModelFailed:
		return "Failed to load"
	default:
		return unknownDescription
	}
}
