package mcp

import (
	"context"

	"github.com/modelcontextprotocol/go-sdk/mcp"
)

// SearchInput is the input schema for the search tool.
type SearchInput struct {
	Query         string   `json:"query" jsonschema:"the text to find similar documents for"`
	Limit         int      `json:"limit,omitempty" jsonschema:"maximum number of results to return (default from settings)"`
	MinSimilarity *float64 `json:"min_similarity,omitempty" jsonschema:"cosine similarity threshold in [-1, 1] (default 0.5)"`
}

// SearchOutput is the output schema for the search tool.
type SearchOutput struct {
	Results []SearchResultOutput `json:"results"`
	Count   int                  `json:"count"`
	Reason  string               `json:"reason"`
}

// SearchResultOutput represents a single search result.
type SearchResultOutput struct {
	DocumentID      string  `json:"document_id"`
	Text            string  `json:"text"`
	SourceReference string  `json:"source_reference,omitempty"`
	SourceLocator   string  `json:"source_locator,omitempty"`
	Similarity      float64 `json:"similarity"`
	Rank            int     `json:"rank"`
}

// AskInput is the input schema for the ask tool.
type AskInput struct {
	Question string `json:"question" jsonschema:"a natural-language question about the stored captures"`
}

// AskOutput is the output schema for the ask tool.
type AskOutput struct {
	Answer           string `json:"answer"`
	Found            bool   `json:"found"`
	PrimaryReference string `json:"primary_reference,omitempty"`
	PrimaryLocator   string `json:"primary_locator,omitempty"`
}

// SubmitInput is the input schema for the submit tool.
type SubmitInput struct {
	Text            string `json:"text" jsonschema:"text extracted from the capture"`
	SourceLocator   string `json:"source_locator,omitempty" jsonschema:"where the capture lives, e.g. an image path"`
	SourceReference string `json:"source_reference,omitempty" jsonschema:"human-readable name of the capture"`
	Wait            bool   `json:"wait,omitempty" jsonschema:"wait until the document is searchable"`
}

// SubmitOutput is the output schema for the submit tool.
type SubmitOutput struct {
	DocumentID string `json:"document_id"`
	State      string `json:"state"`
}

// defaultMinSimilarity is used when the caller gives no threshold.
const defaultMinSimilarity = 0.5

// registerTools registers all tool handlers with the MCP server.
func (s *Server) registerTools() {
	mcp.AddTool(s.server, &mcp.Tool{
		Name:        "search",
		Description: "Find stored OCR text semantically similar to a query",
	}, s.handleSearch)

	mcp.AddTool(s.server, &mcp.Tool{
		Name:        "ask",
		Description: "Answer a question from the stored OCR text, naming the primary source",
	}, s.handleAsk)

	mcp.AddTool(s.server, &mcp.Tool{
		Name:        "submit",
		Description: "Store OCR text so it becomes searchable",
	}, s.handleSubmit)
}

// handleSearch handles the search tool invocation.
func (s *Server) handleSearch(
	ctx context.Context,
	_ *mcp.CallToolRequest,
	input SearchInput,
) (*mcp.CallToolResult, SearchOutput, error) {
	limit := max(input.Limit, 0)
	threshold := defaultMinSimilarity
	if input.MinSimilarity != nil {
		threshold = *input.MinSimilarity
	}

	resp, err := s.ports.Search.Search(ctx, input.Query, limit, threshold)
	if err != nil {
		return nil, SearchOutput{}, err
	}

	output := SearchOutput{
		Results: make([]SearchResultOutput, len(resp.Results)),
		Count:   len(resp.Results),
		Reason:  resp.Reason.String(),
	}

	for i, r := range resp.Results {
		output.Results[i] = SearchResultOutput{
			DocumentID:      r.DocumentID,
			Text:            r.TextContent,
			SourceReference: r.SourceReference,
			SourceLocator:   r.SourceLocator,
			Similarity:      r.Similarity,
			Rank:            r.Rank,
		}
	}

	return nil, output, nil
}

// handleAsk handles the ask tool invocation.
func (s *Server) handleAsk(
	ctx context.Context,
	_ *mcp.CallToolRequest,
	input AskInput,
) (*mcp.CallToolResult, AskOutput, error) {
	answer, err := s.ports.Search.Ask(ctx, input.Question)
	if err != nil {
		return nil, AskOutput{}, err
	}

	return nil, AskOutput{
		Answer:           answer.Text,
		Found:            answer.Found(),
		PrimaryReference: answer.PrimaryReference,
		PrimaryLocator:   answer.PrimaryLocator,
	}, nil
}

// handleSubmit handles the submit tool invocation.
func (s *Server) handleSubmit(
	ctx context.Context,
	_ *mcp.CallToolRequest,
	input SubmitInput,
) (*mcp.CallToolResult, SubmitOutput, error) {
	if s.ports.Ingest == nil {
		return nil, SubmitOutput{}, ErrSubmitUnavailable
	}

	id, err := s.ports.Ingest.Submit(ctx, input.Text, input.SourceLocator, input.SourceReference)
	if err != nil {
		return nil, SubmitOutput{}, err
	}

	output := SubmitOutput{DocumentID: id, State: "received"}
	if input.Wait {
		ev, err := s.ports.Ingest.Wait(ctx, id)
		if err != nil {
			return nil, SubmitOutput{}, err
		}
		output.State = ev.State.String()
	}

	return nil, output, nil
}
