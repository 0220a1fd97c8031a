package tui

import (
	"context"
	"sync"

	"github.com/alazoor/Mimachat/internal/core/domain"
	"github.com/alazoor/Mimachat/internal/core/ports/driving"
)

type mockSearch struct {
	answer domain.Answer
	err    error
	asked  []string
}

func (m *mockSearch) Search(_ context.Context, _ string, _ int, _ float64) (domain.SearchResponse, error) {
	return m.answer.Response, m.err
}

func (m *mockSearch) Ask(_ context.Context, question string) (domain.Answer, error) {
	m.asked = append(m.asked, question)
	return m.answer, m.err
}

type mockModel struct {
	state     domain.ModelState
	waitState domain.ModelState
	waitErr   error
}

func (m *mockModel) State() domain.ModelState { return m.state }

func (m *mockModel) Wait(ctx context.Context) (domain.ModelState, error) {
	if err := ctx.Err(); err != nil {
		return m.state, err
	}
	return m.waitState, m.waitErr
}

type mockDocuments struct {
	mu      sync.Mutex
	entries []domain.Entry
	stats   *driving.DocumentStats
	err     error
	deleted []string
}

func (m *mockDocuments) Get(_ context.Context, id string) (*domain.Entry, error) {
	for i := range m.entries {
		if m.entries[i].Document.ID == id {
			return &m.entries[i], nil
		}
	}
	return nil, domain.ErrNotFound
}

func (m *mockDocuments) List(_ context.Context) ([]domain.Entry, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]domain.Entry(nil), m.entries...), m.err
}

func (m *mockDocuments) Pending(_ context.Context) ([]domain.Document, error) {
	return nil, m.err
}

func (m *mockDocuments) Stats(_ context.Context) (*driving.DocumentStats, error) {
	if m.err != nil {
		return nil, m.err
	}
	if m.stats == nil {
		return &driving.DocumentStats{}, nil
	}
	return m.stats, nil
}

func (m *mockDocuments) Delete(_ context.Context, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.deleted = append(m.deleted, id)
	return m.err
}
