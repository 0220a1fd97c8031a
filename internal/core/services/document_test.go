package services

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/alazoor/Mimachat/internal/core/domain"
)

func TestDocumentService(t *testing.T) {
	f := newFixture()
	defer f.close()
	ctx := context.Background()

	ids := f.seed(t,
		seedDoc{text: "one", vector: []float32{1, 0, 0}},
		seedDoc{text: "two", vector: []float32{0, 1, 0}},
	)
	pendingID, err := f.store.Put(ctx, domain.Document{TextContent: "three"}, nil)
	require.NoError(t, err)

	t.Run("get", func(t *testing.T) {
		entry, err := f.docs.Get(ctx, ids[0])
		require.NoError(t, err)
		assert.Equal(t, "one", entry.Document.TextContent)
		assert.False(t, entry.Pending())

		_, err = f.docs.Get(ctx, "missing")
		assert.True(t, errors.Is(err, domain.ErrNotFound))
	})

	t.Run("list in insertion order", func(t *testing.T) {
		entries, err := f.docs.List(ctx)
		require.NoError(t, err)
		require.Len(t, entries, 3)
		assert.Equal(t, ids[0], entries[0].Document.ID)
		assert.Equal(t, pendingID, entries[2].Document.ID)
		assert.True(t, entries[2].Pending())
	})

	t.Run("pending", func(t *testing.T) {
		pending, err := f.docs.Pending(ctx)
		require.NoError(t, err)
		require.Len(t, pending, 1)
		assert.Equal(t, pendingID, pending[0].ID)
	})

	t.Run("stats", func(t *testing.T) {
		stats, err := f.docs.Stats(ctx)
		require.NoError(t, err)
		assert.Equal(t, 3, stats.Documents)
		assert.Equal(t, 2, stats.Embedded)
		assert.Equal(t, 1, stats.Pending())
		assert.Equal(t, 2, stats.Indexed)
		assert.Equal(t, f.index.Snapshot().Version(), stats.SnapshotVersion)
	})

	t.Run("delete", func(t *testing.T) {
		require.NoError(t, f.docs.Delete(ctx, ids[1]))

		_, err := f.docs.Get(ctx, ids[1])
		assert.True(t, errors.Is(err, domain.ErrNotFound))
		assert.Equal(t, 1, f.index.Snapshot().Len())

		assert.True(t, errors.Is(f.docs.Delete(ctx, ids[1]), domain.ErrNotFound))
	})
}
