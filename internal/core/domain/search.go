package domain

// QueryResult is one ranked hit from the retrieval engine.
type QueryResult struct {
	// DocumentID is the matched document.
	DocumentID string

	// Similarity is the cosine similarity in [-1, 1]. Never NaN.
	Similarity float64

	// Rank is the 1-based position in the result list.
	Rank int
}

// Reason explains why a search response has the shape it has.
type Reason string

// Query response reasons. Everything except ReasonOK comes with no results.
const (
	ReasonOK            Reason = "ok"
	ReasonModelNotReady Reason = "model_not_ready"
	ReasonNoMatches     Reason = "no_matches"
	ReasonQueryTooShort Reason = "query_too_short"
)

// String returns the string representation.
func (r Reason) String() string {
	return string(r)
}

// Description returns a human-readable description of the reason.
func (r Reason) Description() string {
	switch r {
	case ReasonOK:
		return "Results found"
	case ReasonModelNotReady:
		return "The embedding model is not ready yet"
	case ReasonNoMatches:
		return "No stored text is similar enough to the query"
	case ReasonQueryTooShort:
		return "The query is too short"
	default:
		return unknownDescription
	}
}

// SearchResult is a QueryResult hydrated with its document fields.
type SearchResult struct {
	DocumentID      string  `json:"document_id"`
	TextContent     string  `json:"text_content"`
	SourceReference string  `json:"source_reference"`
	SourceLocator   string  `json:"source_locator"`
	Similarity      float64 `json:"similarity"`
	Rank            int     `json:"rank"`
}

// SearchResponse is the outcome of a query.
type SearchResponse struct {
	// Results are ordered by descending similarity.
	Results []SearchResult `json:"results"`

	// Reason is ReasonOK whenever Results is non-empty.
	Reason Reason `json:"reason"`

	// SnapshotVersion identifies the index snapshot the query ran against.
	SnapshotVersion uint64 `json:"snapshot_version"`
}

// Answer is a formatted reply to a natural-language question.
type Answer struct {
	// Text is the reply body.
	Text string

	// PrimaryReference names the most similar source.
	PrimaryReference string

	// PrimaryLocator points at the most similar source (e.g. the image path).
	PrimaryLocator string

	// Response is the underlying search response.
	Response SearchResponse
}

// Found returns true if the answer is backed by at least one result.
func (a Answer) Found() bool {
	return len(a.Response.Results) > 0
}
