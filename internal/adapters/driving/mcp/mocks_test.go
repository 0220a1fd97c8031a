package mcp

import (
	"context"

	"github.com/alazoor/Mimachat/internal/core/domain"
	"github.com/alazoor/Mimachat/internal/core/ports/driving"
)

// mockSearchService is a mock implementation of driving.SearchService.
type mockSearchService struct {
	response  domain.SearchResponse
	answer    domain.Answer
	err       error
	gotQuery  string
	gotK      int
	gotMinSim float64
}

func (m *mockSearchService) Search(
	_ context.Context,
	query string,
	k int,
	minSimilarity float64,
) (domain.SearchResponse, error) {
	m.gotQuery, m.gotK, m.gotMinSim = query, k, minSimilarity
	return m.response, m.err
}

func (m *mockSearchService) Ask(_ context.Context, question string) (domain.Answer, error) {
	m.gotQuery = question
	return m.answer, m.err
}

// mockIngestionService is a mock implementation of driving.IngestionService.
type mockIngestionService struct {
	id        string
	event     domain.IngestEvent
	err       error
	submitted []string
}

func (m *mockIngestionService) Submit(_ context.Context, text, _, _ string) (string, error) {
	if m.err != nil {
		return "", m.err
	}
	m.submitted = append(m.submitted, text)
	return m.id, nil
}

func (m *mockIngestionService) Wait(_ context.Context, _ string) (domain.IngestEvent, error) {
	return m.event, nil
}

func (m *mockIngestionService) Subscribe() (<-chan domain.IngestEvent, func()) {
	return make(chan domain.IngestEvent), func() {}
}

func (m *mockIngestionService) Backfill(_ context.Context) (domain.BackfillReport, error) {
	return domain.BackfillReport{}, m.err
}

func (m *mockIngestionService) Delete(_ context.Context, _ string) error {
	return m.err
}

// mockDocumentService is a mock implementation of driving.DocumentService.
type mockDocumentService struct {
	entries []domain.Entry
	entry   *domain.Entry
	stats   *driving.DocumentStats
	err     error
}

func (m *mockDocumentService) Get(_ context.Context, _ string) (*domain.Entry, error) {
	return m.entry, m.err
}

func (m *mockDocumentService) List(_ context.Context) ([]domain.Entry, error) {
	return m.entries, m.err
}

func (m *mockDocumentService) Pending(_ context.Context) ([]domain.Document, error) {
	return nil, m.err
}

func (m *mockDocumentService) Stats(_ context.Context) (*driving.DocumentStats, error) {
	return m.stats, m.err
}

func (m *mockDocumentService) Delete(_ context.Context, _ string) error {
	return m.err
}
