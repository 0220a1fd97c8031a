package services

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/alazoor/Mimachat/internal/adapters/driven/storage/memory"
	"github.com/alazoor/Mimachat/internal/core/domain"
	"github.com/alazoor/Mimachat/internal/core/ports/driven"
	"github.com/alazoor/Mimachat/internal/index"
)

const testDims = 3

// Compile-time checks.
var (
	_ driven.Normaliser        = (*mockModel)(nil)
	_ driven.EmbeddingProvider = (*mockModel)(nil)
	_ driven.VectorStore       = (*failingStore)(nil)
)

// mockModel normalises each distinct text to one token and embeds it with
// the vector registered for that text.
type mockModel struct {
	mu            sync.Mutex
	state         domain.ModelState
	texts         []string
	vectors       map[string][]float32
	embedErr      map[string]error
	normaliseFail map[string]bool
	gate          chan struct{}
	calls         int
}

func newMockModel() *mockModel {
	return &mockModel{
		state:         domain.ModelReady,
		vectors:       make(map[string][]float32),
		embedErr:      make(map[string]error),
		normaliseFail: make(map[string]bool),
	}
}

func (m *mockModel) setVector(text string, vec ...float32) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.vectors[text] = vec
}

func (m *mockModel) setState(s domain.ModelState) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.state = s
}

func (m *mockModel) failEmbed(text string, err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err == nil {
		delete(m.embedErr, text)
		return
	}
	m.embedErr[text] = err
}

func (m *mockModel) failNormalise(text string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.normaliseFail[text] = true
}

// block makes Embed wait until the returned release func is called.
func (m *mockModel) block() func() {
	m.mu.Lock()
	defer m.mu.Unlock()
	gate := make(chan struct{})
	m.gate = gate
	var once sync.Once
	return func() { once.Do(func() { close(gate) }) }
}

func (m *mockModel) embedCalls() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.calls
}

func (m *mockModel) Normalise(text string) (domain.Sequence, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.normaliseFail[text] {
		return domain.Sequence{}, fmt.Errorf("%w: token out of range", domain.ErrNormaliser)
	}

	id := -1
	for i, t := range m.texts {
		if t == text {
			id = i
			break
		}
	}
	if id < 0 {
		id = len(m.texts)
		m.texts = append(m.texts, text)
	}

	return domain.Sequence{
		TokenIDs:      []int32{101, int32(1000 + id), 102},
		AttentionMask: []int32{1, 1, 1},
		SegmentIDs:    []int32{0, 0, 0},
	}, nil
}

func (m *mockModel) SequenceLength() int { return 3 }

func (m *mockModel) Embed(ctx context.Context, seq domain.Sequence) ([]float32, error) {
	m.mu.Lock()
	m.calls++
	gate := m.gate
	state := m.state
	m.mu.Unlock()

	if state != domain.ModelReady {
		return nil, domain.ErrModelNotReady
	}

	if gate != nil {
		select {
		case <-gate:
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	text := m.texts[seq.TokenIDs[1]-1000]
	if err := m.embedErr[text]; err != nil {
		return nil, err
	}
	if vec, ok := m.vectors[text]; ok {
		return append([]float32(nil), vec...), nil
	}
	return []float32{1, 0, 0}, nil
}

func (m *mockModel) State() domain.ModelState {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.state
}

func (m *mockModel) Dimensions() int { return testDims }

func (m *mockModel) ModelName() string { return "mock" }

// failingStore wraps a memory store and fails selected operations.
type failingStore struct {
	*memory.VectorStore
	putErr    error
	updateErr error
}

var errDiskFull = errors.New("disk full")

func (s *failingStore) Put(ctx context.Context, doc domain.Document, rec *domain.EmbeddingRecord) (string, error) {
	if s.putErr != nil {
		return "", fmt.Errorf("%w: %w", domain.ErrPersistence, s.putErr)
	}
	return s.VectorStore.Put(ctx, doc, rec)
}

func (s *failingStore) UpdateEmbedding(ctx context.Context, rec domain.EmbeddingRecord) error {
	if s.updateErr != nil {
		return fmt.Errorf("%w: %w", domain.ErrPersistence, s.updateErr)
	}
	return s.VectorStore.UpdateEmbedding(ctx, rec)
}

// fixture wires the services over a memory store.
type fixture struct {
	store  *failingStore
	model  *mockModel
	index  *index.Index
	ingest *IngestionService
	search *SearchService
	docs   *DocumentService
}

func newFixture(settings ...domain.IngestSettings) *fixture {
	cfg := domain.IngestSettings{QueueSize: 8, BackfillBatch: 100}
	if len(settings) > 0 {
		cfg = settings[0]
	}

	store := &failingStore{VectorStore: memory.NewVectorStore(testDims)}
	model := newMockModel()
	ix := index.New(store, testDims)
	ingest := NewIngestionService(store, model, model, ix, cfg)

	return &fixture{
		store:  store,
		model:  model,
		index:  ix,
		ingest: ingest,
		search: NewSearchService(model, model, ix, domain.DefaultAppSettings().Search),
		docs:   NewDocumentService(store, ix, ingest),
	}
}

func (f *fixture) close() {
	_ = f.ingest.Close()
}

// waitCtx bounds how long a test waits for the pipeline.
func waitCtx() (context.Context, context.CancelFunc) {
	return context.WithTimeout(context.Background(), 5*time.Second)
}
