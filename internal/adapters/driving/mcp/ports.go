// Package mcp exposes search, ask and submit to assistants over the Model
// Context Protocol, along with read-only document resources.
package mcp

import (
	"errors"

	"github.com/alazoor/Mimachat/internal/core/ports/driving"
)

var (
	ErrMissingSearchService = errors.New("mcp: no search service")
	// ErrSubmitUnavailable is the submit tool's error when Ingest is nil.
	ErrSubmitUnavailable = errors.New("mcp: submit is not available")
)

// Ports wires the server to the core. Ingest and Document may be nil; the
// submit tool and the document resources then report themselves unavailable.
type Ports struct {
	Search   driving.SearchService
	Ingest   driving.IngestionService
	Document driving.DocumentService
}

func (p *Ports) Validate() error {
	if p.Search == nil {
		return ErrMissingSearchService
	}
	return nil
}
