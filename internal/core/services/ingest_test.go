package services

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/sync/errgroup"

	"github.com/alazoor/Mimachat/internal/adapters/driven/storage/memory"
	"github.com/alazoor/Mimachat/internal/core/domain"
	"github.com/alazoor/Mimachat/internal/index"
)

func TestIngestionService_Submit_Indexes(t *testing.T) {
	f := newFixture()
	defer f.close()
	f.model.setVector("مرحبا", 0, 1, 0)

	ctx, cancel := waitCtx()
	defer cancel()

	id, err := f.ingest.Submit(ctx, "مرحبا", "/shots/1.png", "1.png")
	require.NoError(t, err)
	require.NotEmpty(t, id)

	ev, err := f.ingest.Wait(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, domain.IngestIndexed, ev.State)

	entry, err := f.store.Get(ctx, id)
	require.NoError(t, err)
	require.False(t, entry.Pending())
	assert.Equal(t, []float32{0, 1, 0}, entry.Embedding.Vector)
	assert.Equal(t, "/shots/1.png", entry.Document.SourceLocator)

	pos, ok := f.index.Snapshot().Find(id)
	require.True(t, ok)
	assert.Equal(t, []float32{0, 1, 0}, f.index.Snapshot().At(pos).Vector)
}

func TestIngestionService_Submit_EmptyText(t *testing.T) {
	f := newFixture()
	defer f.close()

	for _, text := range []string{"", "   ", "\n\t"} {
		_, err := f.ingest.Submit(context.Background(), text, "loc", "ref")
		assert.True(t, errors.Is(err, domain.ErrValidation), "text %q: %v", text, err)
	}

	stats, err := f.store.Stats(context.Background())
	require.NoError(t, err)
	assert.Zero(t, stats.Documents)
}

func TestIngestionService_Submit_SameTextTwice(t *testing.T) {
	f := newFixture()
	defer f.close()

	ctx, cancel := waitCtx()
	defer cancel()

	a, err := f.ingest.Submit(ctx, "نص", "", "")
	require.NoError(t, err)
	b, err := f.ingest.Submit(ctx, "نص", "", "")
	require.NoError(t, err)

	assert.NotEqual(t, a, b)
	for _, id := range []string{a, b} {
		ev, err := f.ingest.Wait(ctx, id)
		require.NoError(t, err)
		assert.Equal(t, domain.IngestIndexed, ev.State)
	}
	assert.Equal(t, 2, f.index.Snapshot().Len())
}

func TestIngestionService_Submit_PersistFailed(t *testing.T) {
	f := newFixture()
	defer f.close()
	f.store.putErr = errDiskFull

	events, unsubscribe := f.ingest.Subscribe()
	defer unsubscribe()

	_, err := f.ingest.Submit(context.Background(), "text", "", "")

	var ingestErr *domain.IngestError
	require.True(t, errors.As(err, &ingestErr))
	assert.Equal(t, domain.IngestPersistFailed, ingestErr.Stage)
	assert.True(t, errors.Is(err, domain.ErrPersistence))

	ev := <-events
	assert.Equal(t, domain.IngestPersistFailed, ev.State)

	stats, err := f.store.Stats(context.Background())
	require.NoError(t, err)
	assert.Zero(t, stats.Documents)
}

func TestIngestionService_EmbeddingFailed_StaysPending(t *testing.T) {
	f := newFixture()
	defer f.close()
	f.model.setState(domain.ModelLoading)

	ctx, cancel := waitCtx()
	defer cancel()

	id, err := f.ingest.Submit(ctx, "مستند", "loc", "ref")
	require.NoError(t, err)

	ev, err := f.ingest.Wait(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, domain.IngestEmbeddingFailed, ev.State)
	assert.True(t, errors.Is(ev.Err, domain.ErrModelNotReady))

	entry, err := f.store.Get(ctx, id)
	require.NoError(t, err)
	assert.True(t, entry.Pending())
	assert.Equal(t, "مستند", entry.Document.TextContent)

	pending, err := f.store.ListPendingEmbeddings(ctx)
	require.NoError(t, err)
	require.Len(t, pending, 1)
	assert.Equal(t, id, pending[0].ID)

	_, found := f.index.Snapshot().Find(id)
	assert.False(t, found, "pending documents are never searched")
}

func TestIngestionService_PersistFailedOnUpdate(t *testing.T) {
	f := newFixture()
	defer f.close()
	f.store.updateErr = errDiskFull

	ctx, cancel := waitCtx()
	defer cancel()

	id, err := f.ingest.Submit(ctx, "text", "", "")
	require.NoError(t, err)

	ev, err := f.ingest.Wait(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, domain.IngestPersistFailed, ev.State)
	assert.True(t, errors.Is(ev.Err, errDiskFull))

	_, found := f.index.Snapshot().Find(id)
	assert.False(t, found)
}

func TestIngestionService_Backfill(t *testing.T) {
	f := newFixture()
	defer f.close()
	f.model.setState(domain.ModelUnloaded)

	ctx, cancel := waitCtx()
	defer cancel()

	var ids []string
	for _, text := range []string{"أ", "ب", "ج"} {
		id, err := f.ingest.Submit(ctx, text, "", "")
		require.NoError(t, err)
		_, err = f.ingest.Wait(ctx, id)
		require.NoError(t, err)
		ids = append(ids, id)
	}

	f.model.setState(domain.ModelReady)

	report, err := f.ingest.Backfill(ctx)
	require.NoError(t, err)
	assert.Equal(t, domain.BackfillReport{Pending: 3, Attempted: 3, Indexed: 3}, report)

	for _, id := range ids {
		ev, err := f.ingest.Wait(ctx, id)
		require.NoError(t, err)
		assert.Equal(t, domain.IngestIndexed, ev.State)
	}
	assert.Equal(t, 3, f.index.Snapshot().Len())

	report, err = f.ingest.Backfill(ctx)
	require.NoError(t, err)
	assert.Zero(t, report.Pending)
}

func TestIngestionService_Backfill_BatchLimit(t *testing.T) {
	f := newFixture(domain.IngestSettings{QueueSize: 8, BackfillBatch: 2})
	defer f.close()
	f.model.setState(domain.ModelFailed)

	ctx, cancel := waitCtx()
	defer cancel()

	for _, text := range []string{"a", "b", "c"} {
		id, err := f.ingest.Submit(ctx, text, "", "")
		require.NoError(t, err)
		_, err = f.ingest.Wait(ctx, id)
		require.NoError(t, err)
	}
	f.model.setState(domain.ModelReady)

	report, err := f.ingest.Backfill(ctx)
	require.NoError(t, err)
	assert.Equal(t, 3, report.Pending)
	assert.Equal(t, 2, report.Attempted)
	assert.Equal(t, 2, report.Indexed)
}

func TestIngestionService_Backfill_CountsFailures(t *testing.T) {
	f := newFixture()
	defer f.close()
	f.model.failEmbed("broken", domain.ErrInference)

	ctx, cancel := waitCtx()
	defer cancel()

	id, err := f.ingest.Submit(ctx, "broken", "", "")
	require.NoError(t, err)
	_, err = f.ingest.Wait(ctx, id)
	require.NoError(t, err)

	report, err := f.ingest.Backfill(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, report.Failed)

	f.model.failEmbed("broken", nil)
	report, err = f.ingest.Backfill(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, report.Indexed)
}

func TestIngestionService_NormaliserFailure_NotRetried(t *testing.T) {
	f := newFixture()
	defer f.close()
	f.model.failNormalise("bad")

	ctx, cancel := waitCtx()
	defer cancel()

	id, err := f.ingest.Submit(ctx, "bad", "", "")
	require.NoError(t, err)

	ev, err := f.ingest.Wait(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, domain.IngestEmbeddingFailed, ev.State)
	assert.True(t, errors.Is(ev.Err, domain.ErrNormaliser))

	report, err := f.ingest.Backfill(ctx)
	require.NoError(t, err)
	assert.Equal(t, domain.BackfillReport{Pending: 1, Skipped: 1}, report)
	assert.Zero(t, f.model.embedCalls())
}

func TestIngestionService_QueueFull(t *testing.T) {
	f := newFixture(domain.IngestSettings{QueueSize: 1, BackfillBatch: 10})
	defer f.close()
	release := f.model.block()
	defer release()

	ctx, cancel := waitCtx()
	defer cancel()

	first, err := f.ingest.Submit(ctx, "one", "", "")
	require.NoError(t, err)
	require.Eventually(t, func() bool { return f.model.embedCalls() == 1 },
		time.Second, 5*time.Millisecond)

	second, err := f.ingest.Submit(ctx, "two", "", "")
	require.NoError(t, err)
	third, err := f.ingest.Submit(ctx, "three", "", "")
	require.NoError(t, err)

	ev, err := f.ingest.Wait(ctx, third)
	require.NoError(t, err)
	assert.Equal(t, domain.IngestEmbeddingFailed, ev.State)
	assert.True(t, errors.Is(ev.Err, errQueueFull))

	release()
	for _, id := range []string{first, second} {
		ev, err := f.ingest.Wait(ctx, id)
		require.NoError(t, err)
		assert.Equal(t, domain.IngestIndexed, ev.State)
	}

	report, err := f.ingest.Backfill(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, report.Indexed)
}

func TestIngestionService_Subscribe_StateOrder(t *testing.T) {
	f := newFixture()
	defer f.close()

	events, unsubscribe := f.ingest.Subscribe()
	defer unsubscribe()

	ctx, cancel := waitCtx()
	defer cancel()

	id, err := f.ingest.Submit(ctx, "text", "", "")
	require.NoError(t, err)

	var states []domain.IngestState
	for ev := range events {
		require.Equal(t, id, ev.DocumentID)
		states = append(states, ev.State)
		if ev.State.IsTerminal() {
			break
		}
	}

	assert.Equal(t, []domain.IngestState{
		domain.IngestReceived,
		domain.IngestNormalizing,
		domain.IngestEmbedding,
		domain.IngestPersisting,
		domain.IngestIndexed,
	}, states)
}

func TestIngestionService_Subscribe_Unsubscribe(t *testing.T) {
	f := newFixture()
	defer f.close()

	events, unsubscribe := f.ingest.Subscribe()
	unsubscribe()
	unsubscribe()

	_, open := <-events
	assert.False(t, open)
}

func TestIngestionService_Wait(t *testing.T) {
	ctx := context.Background()

	t.Run("unknown id", func(t *testing.T) {
		f := newFixture()
		defer f.close()

		_, err := f.ingest.Wait(ctx, "missing")
		assert.True(t, errors.Is(err, domain.ErrNotFound))
	})

	t.Run("stored before this process", func(t *testing.T) {
		f := newFixture()
		defer f.close()

		embedded, err := f.store.Put(ctx, domain.Document{TextContent: "a"},
			&domain.EmbeddingRecord{Vector: []float32{1, 0, 0}})
		require.NoError(t, err)
		pending, err := f.store.Put(ctx, domain.Document{TextContent: "b"}, nil)
		require.NoError(t, err)

		ev, err := f.ingest.Wait(ctx, embedded)
		require.NoError(t, err)
		assert.Equal(t, domain.IngestIndexed, ev.State)

		ev, err = f.ingest.Wait(ctx, pending)
		require.NoError(t, err)
		assert.Equal(t, domain.IngestEmbeddingFailed, ev.State)
	})

	t.Run("context cancelled while embedding", func(t *testing.T) {
		f := newFixture()
		defer f.close()
		release := f.model.block()
		defer release()

		id, err := f.ingest.Submit(ctx, "slow", "", "")
		require.NoError(t, err)

		short, cancel := context.WithTimeout(ctx, 20*time.Millisecond)
		defer cancel()

		_, err = f.ingest.Wait(short, id)
		assert.True(t, errors.Is(err, context.DeadlineExceeded))
	})
}

func TestIngestionService_Delete(t *testing.T) {
	f := newFixture()
	defer f.close()

	ctx, cancel := waitCtx()
	defer cancel()

	id, err := f.ingest.Submit(ctx, "text", "", "")
	require.NoError(t, err)
	_, err = f.ingest.Wait(ctx, id)
	require.NoError(t, err)

	require.NoError(t, f.ingest.Delete(ctx, id))

	_, err = f.store.Get(ctx, id)
	assert.True(t, errors.Is(err, domain.ErrNotFound))
	_, found := f.index.Snapshot().Find(id)
	assert.False(t, found)

	_, err = f.ingest.Wait(ctx, id)
	assert.True(t, errors.Is(err, domain.ErrNotFound))

	assert.True(t, errors.Is(f.ingest.Delete(ctx, id), domain.ErrNotFound))
}

func TestIngestionService_ConcurrentSubmits(t *testing.T) {
	f := newFixture(domain.IngestSettings{QueueSize: 64, BackfillBatch: 64})
	defer f.close()

	ctx, cancel := waitCtx()
	defer cancel()

	ids := make([]string, 32)
	g, gctx := errgroup.WithContext(ctx)
	for i := range ids {
		g.Go(func() error {
			id, err := f.ingest.Submit(gctx, "concurrent", "", "")
			ids[i] = id
			return err
		})
	}
	require.NoError(t, g.Wait())

	for _, id := range ids {
		ev, err := f.ingest.Wait(ctx, id)
		require.NoError(t, err)
		assert.Equal(t, domain.IngestIndexed, ev.State)
	}
	assert.Equal(t, len(ids), f.index.Snapshot().Len())
}

func TestIngestionService_Close(t *testing.T) {
	f := newFixture()

	events, _ := f.ingest.Subscribe()
	require.NoError(t, f.ingest.Close())
	require.NoError(t, f.ingest.Close())

	_, err := f.ingest.Submit(context.Background(), "late", "", "")
	assert.True(t, errors.Is(err, domain.ErrClosed))
	assert.True(t, errors.Is(f.ingest.Delete(context.Background(), "x"), domain.ErrClosed))

	_, open := <-events
	assert.False(t, open)
}

func TestIngestionService_BackfillLoop(t *testing.T) {
	f := newFixture(domain.IngestSettings{
		QueueSize:        8,
		BackfillBatch:    8,
		BackfillInterval: 10 * time.Millisecond,
	})
	defer f.close()
	f.model.setState(domain.ModelLoading)

	ctx, cancel := waitCtx()
	defer cancel()

	id, err := f.ingest.Submit(ctx, "later", "", "")
	require.NoError(t, err)
	ev, err := f.ingest.Wait(ctx, id)
	require.NoError(t, err)
	require.Equal(t, domain.IngestEmbeddingFailed, ev.State)

	f.model.setState(domain.ModelReady)

	assert.Eventually(t, func() bool {
		_, found := f.index.Snapshot().Find(id)
		return found
	}, 2*time.Second, 10*time.Millisecond)
}

func TestIngestionService_IndexFailedAfterCommit(t *testing.T) {
	store := memory.NewVectorStore(testDims)
	model := newMockModel()
	// The snapshot expects one more dimension than the store and model use,
	// so the stored vector cannot be appended.
	ix := index.New(store, testDims+1)
	ingest := NewIngestionService(store, model, model, ix, domain.IngestSettings{QueueSize: 4, BackfillBatch: 10})
	defer func() { _ = ingest.Close() }()

	ctx, cancel := waitCtx()
	defer cancel()

	id, err := ingest.Submit(ctx, "نص", "", "")
	require.NoError(t, err)

	ev, err := ingest.Wait(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, domain.IngestIndexFailed, ev.State)
	assert.True(t, ev.State.IsFailure())
	assert.True(t, errors.Is(ev.Err, domain.ErrDimensionMismatch))

	entry, err := store.Get(ctx, id)
	require.NoError(t, err)
	assert.False(t, entry.Pending(), "the embedding was committed")
}

func TestIngestionService_FailureStatusIsBounded(t *testing.T) {
	f := newFixture()
	defer f.close()
	f.ingest.mu.Lock()
	f.ingest.retainFailures = 2
	f.ingest.mu.Unlock()
	f.model.setState(domain.ModelLoading)

	ctx, cancel := waitCtx()
	defer cancel()

	ids := make([]string, 5)
	for i := range ids {
		id, err := f.ingest.Submit(ctx, fmt.Sprintf("مستند %d", i), "", "")
		require.NoError(t, err)
		ev, err := f.ingest.Wait(ctx, id)
		require.NoError(t, err)
		require.Equal(t, domain.IngestEmbeddingFailed, ev.State)
		ids[i] = id
	}

	f.ingest.mu.Lock()
	tracked := len(f.ingest.status)
	f.ingest.mu.Unlock()
	assert.LessOrEqual(t, tracked, 2)

	// The newest failure keeps its cause.
	ev, err := f.ingest.Wait(ctx, ids[4])
	require.NoError(t, err)
	assert.True(t, errors.Is(ev.Err, domain.ErrModelNotReady))

	// Evicted ones are answered from the store.
	ev, err = f.ingest.Wait(ctx, ids[0])
	require.NoError(t, err)
	assert.Equal(t, domain.IngestEmbeddingFailed, ev.State)
	assert.Equal(t, ids[0], ev.DocumentID)
}
