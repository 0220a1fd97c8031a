// Package tui is the terminal chat front end: ask questions against the
// indexed captures and browse or delete stored documents.
package tui

import (
	"errors"

	"github.com/alazoor/Mimachat/internal/core/ports/driving"
)

var (
	ErrMissingSearchService = errors.New("tui: no search service")
	ErrInvalidPorts         = errors.New("tui: ports not provided")
)

// Ports are the services the app talks to. Only Search is required;
// without Model the status bar never leaves its initial state, and without
// Document the documents view is empty.
type Ports struct {
	Search   driving.SearchService
	Model    driving.ModelService
	Document driving.DocumentService
}

func NewPorts(search driving.SearchService, model driving.ModelService, document driving.DocumentService) *Ports {
	return &Ports{Search: search, Model: model, Document: document}
}

func (p *Ports) Validate() error {
	if p.Search == nil {
		return ErrMissingSearchService
	}
	return nil
}
