package mcp

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/modelcontextprotocol/go-sdk/mcp"
)

const (
	documentsURI   = "mima://documents"
	statsURI       = "mima://stats"
	documentPrefix = documentsURI + "/"

	mimeJSON = "application/json"
	mimeText = "text/plain"
)

type documentSummary struct {
	ID        string `json:"id"`
	Reference string `json:"source_reference"`
	Locator   string `json:"source_locator"`
	Pending   bool   `json:"pending"`
}

type statsPayload struct {
	Documents       int    `json:"documents"`
	Embedded        int    `json:"embedded"`
	Pending         int    `json:"pending"`
	Indexed         int    `json:"indexed"`
	SnapshotVersion uint64 `json:"snapshot_version"`
}

func (s *Server) registerResources() {
	s.server.AddResource(&mcp.Resource{
		URI:         documentsURI,
		Name:        "documents",
		Description: "Stored captures and whether each is still waiting for an embedding",
		MIMEType:    mimeJSON,
	}, s.readDocuments)
	s.server.AddResource(&mcp.Resource{
		URI:         statsURI,
		Name:        "stats",
		Description: "Store and index counts",
		MIMEType:    mimeJSON,
	}, s.readStats)
	s.server.AddResourceTemplate(&mcp.ResourceTemplate{
		URITemplate: documentPrefix + "{documentId}",
		Name:        "document-content",
		Description: "Full text of one capture",
		MIMEType:    mimeText,
	}, s.readDocument)
}

// readDocuments lists summaries. Without a document service the list is empty.
func (s *Server) readDocuments(ctx context.Context, req *mcp.ReadResourceRequest) (*mcp.ReadResourceResult, error) {
	summaries := []documentSummary{}
	if s.ports.Document != nil {
		entries, err := s.ports.Document.List(ctx)
		if err != nil {
			return nil, fmt.Errorf("listing documents: %w", err)
		}
		for _, e := range entries {
			summaries = append(summaries, documentSummary{
				ID:        e.Document.ID,
				Reference: e.Document.SourceReference,
				Locator:   e.Document.SourceLocator,
				Pending:   e.Pending(),
			})
		}
	}
	return encodeJSON(req.Params.URI, summaries)
}

func (s *Server) readStats(ctx context.Context, req *mcp.ReadResourceRequest) (*mcp.ReadResourceResult, error) {
	if s.ports.Document == nil {
		return nil, mcp.ResourceNotFoundError(req.Params.URI)
	}
	st, err := s.ports.Document.Stats(ctx)
	if err != nil {
		return nil, fmt.Errorf("reading stats: %w", err)
	}
	return encodeJSON(req.Params.URI, statsPayload{
		Documents:       st.Documents,
		Embedded:        st.Embedded,
		Pending:         st.Pending(),
		Indexed:         st.Indexed,
		SnapshotVersion: st.SnapshotVersion,
	})
}

func (s *Server) readDocument(ctx context.Context, req *mcp.ReadResourceRequest) (*mcp.ReadResourceResult, error) {
	id := documentIDFromURI(req.Params.URI)
	if s.ports.Document == nil || id == "" {
		return nil, mcp.ResourceNotFoundError(req.Params.URI)
	}
	entry, err := s.ports.Document.Get(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("reading document %s: %w", id, err)
	}
	return single(req.Params.URI, mimeText, entry.Document.TextContent), nil
}

func encodeJSON(uri string, v any) (*mcp.ReadResourceResult, error) {
	body, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("encoding %s: %w", uri, err)
	}
	return single(uri, mimeJSON, string(body)), nil
}

func single(uri, mime, text string) *mcp.ReadResourceResult {
	return &mcp.ReadResourceResult{
		Contents: []*mcp.ResourceContents{{URI: uri, MIMEType: mime, Text: text}},
	}
}

// documentIDFromURI returns "" unless uri is mima://documents/<id>.
func documentIDFromURI(uri string) string {
	id, ok := strings.CutPrefix(uri, documentPrefix)
	if !ok || strings.Contains(id, "/") {
		return ""
	}
	return id
}
