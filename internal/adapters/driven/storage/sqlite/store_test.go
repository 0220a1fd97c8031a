package sqlite

import (
	"context"
	"database/sql"
	"math"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/alazoor/Mimachat/internal/core/domain"
)

const testDims = 4

// setupTestStore creates a temporary SQLite store for testing.
func setupTestStore(t *testing.T) *Store {
	t.Helper()

	store, err := NewStore(t.TempDir(), testDims)
	require.NoError(t, err)
	require.NotNil(t, store)

	t.Cleanup(func() {
		assert.NoError(t, store.Close())
	})
	return store
}

func testDocument(text string) domain.Document {
	return domain.Document{
		TextContent:     text,
		SourceLocator:   "/images/" + text + ".jpg",
		SourceReference: text,
	}
}

func testRecord(values ...float32) *domain.EmbeddingRecord {
	return &domain.EmbeddingRecord{Vector: values}
}

func collect(t *testing.T, store *Store) []domain.Entry {
	t.Helper()
	var entries []domain.Entry
	for entry, err := range store.ListAll(context.Background()) {
		require.NoError(t, err)
		entries = append(entries, entry)
	}
	return entries
}

func TestNewStore(t *testing.T) {
	dir := t.TempDir()
	store, err := NewStore(dir, testDims)
	require.NoError(t, err)
	defer store.Close()

	assert.Equal(t, filepath.Join(dir, dbFile), store.Path())
	assert.Equal(t, testDims, store.Dimensions())
}

func TestNewStore_InvalidDimensions(t *testing.T) {
	_, err := NewStore(t.TempDir(), 0)
	assert.ErrorIs(t, err, domain.ErrValidation)
}

func TestNewStore_MigrationsAreRecorded(t *testing.T) {
	dir := t.TempDir()

	store, err := NewStore(dir, testDims)
	require.NoError(t, err)
	_, err = store.Put(context.Background(), testDocument("persisted"), nil)
	require.NoError(t, err)
	require.NoError(t, store.Close())

	// Reopening must not re-run or fail on applied migrations.
	store, err = NewStore(dir, testDims)
	require.NoError(t, err)
	defer store.Close()

	var version int
	require.NoError(t, store.db.QueryRow("SELECT MAX(version) FROM schema_migrations").Scan(&version))
	assert.Equal(t, 1, version)

	stats, err := store.Stats(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, stats.Documents)
}

func TestPut_AssignsID(t *testing.T) {
	store := setupTestStore(t)
	ctx := context.Background()

	doc := testDocument("hello")
	doc.ID = "ignored"

	id1, err := store.Put(ctx, doc, nil)
	require.NoError(t, err)
	id2, err := store.Put(ctx, doc, nil)
	require.NoError(t, err)

	assert.NotEqual(t, "ignored", id1)
	assert.NotEqual(t, id1, id2)
	assert.Len(t, id1, 36)
}

func TestPut_EmptyText(t *testing.T) {
	store := setupTestStore(t)

	_, err := store.Put(context.Background(), testDocument("  "), nil)
	assert.ErrorIs(t, err, domain.ErrValidation)

	stats, err := store.Stats(context.Background())
	require.NoError(t, err)
	assert.Zero(t, stats.Documents)
}

func TestPut_WithEmbedding(t *testing.T) {
	store := setupTestStore(t)
	ctx := context.Background()

	id, err := store.Put(ctx, testDocument("hello"), testRecord(0.1, -0.2, 0.3, 1))
	require.NoError(t, err)

	entry, err := store.Get(ctx, id)
	require.NoError(t, err)

	assert.Equal(t, id, entry.Document.ID)
	assert.Equal(t, "hello", entry.Document.TextContent)
	assert.Equal(t, "/images/hello.jpg", entry.Document.SourceLocator)
	assert.Equal(t, "hello", entry.Document.SourceReference)
	assert.False(t, entry.Document.CreatedAt.IsZero())

	require.NotNil(t, entry.Embedding)
	assert.Equal(t, id, entry.Embedding.DocumentID)
	assert.Equal(t, []float32{0.1, -0.2, 0.3, 1}, entry.Embedding.Vector)
	assert.False(t, entry.Embedding.GeneratedAt.IsZero())
}

func TestPut_DimensionMismatchCommitsNothing(t *testing.T) {
	store := setupTestStore(t)
	ctx := context.Background()

	_, err := store.Put(ctx, testDocument("hello"), testRecord(1, 2))
	assert.ErrorIs(t, err, domain.ErrDimensionMismatch)

	stats, err := store.Stats(ctx)
	require.NoError(t, err)
	assert.Zero(t, stats.Documents)
}

func TestPut_PreservesCreatedAt(t *testing.T) {
	store := setupTestStore(t)
	ctx := context.Background()

	created := time.Date(2024, 3, 1, 12, 30, 0, 0, time.UTC)
	doc := testDocument("dated")
	doc.CreatedAt = created

	id, err := store.Put(ctx, doc, nil)
	require.NoError(t, err)

	entry, err := store.Get(ctx, id)
	require.NoError(t, err)
	assert.True(t, created.Equal(entry.Document.CreatedAt), "got %v", entry.Document.CreatedAt)
}

func TestGet_NotFound(t *testing.T) {
	store := setupTestStore(t)

	_, err := store.Get(context.Background(), "missing")
	assert.ErrorIs(t, err, domain.ErrNotFound)
}

func TestPending_ThenUpdateEmbedding(t *testing.T) {
	store := setupTestStore(t)
	ctx := context.Background()

	id, err := store.Put(ctx, testDocument("pending"), nil)
	require.NoError(t, err)

	entry, err := store.Get(ctx, id)
	require.NoError(t, err)
	assert.True(t, entry.Pending())

	pending, err := store.ListPendingEmbeddings(ctx)
	require.NoError(t, err)
	require.Len(t, pending, 1)
	assert.Equal(t, id, pending[0].ID)

	require.NoError(t, store.UpdateEmbedding(ctx, domain.EmbeddingRecord{
		DocumentID: id,
		Vector:     []float32{1, 0, 0, 0},
	}))

	pending, err = store.ListPendingEmbeddings(ctx)
	require.NoError(t, err)
	assert.Empty(t, pending)

	// Replacement is whole.
	require.NoError(t, store.UpdateEmbedding(ctx, domain.EmbeddingRecord{
		DocumentID: id,
		Vector:     []float32{0, 0, 0, 1},
	}))
	entry, err = store.Get(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, []float32{0, 0, 0, 1}, entry.Embedding.Vector)
}

func TestUpdateEmbedding_Errors(t *testing.T) {
	store := setupTestStore(t)
	ctx := context.Background()

	err := store.UpdateEmbedding(ctx, domain.EmbeddingRecord{DocumentID: "missing", Vector: []float32{1, 0, 0, 0}})
	assert.ErrorIs(t, err, domain.ErrNotFound)

	id, err := store.Put(ctx, testDocument("doc"), nil)
	require.NoError(t, err)

	err = store.UpdateEmbedding(ctx, domain.EmbeddingRecord{DocumentID: id, Vector: []float32{1}})
	assert.ErrorIs(t, err, domain.ErrDimensionMismatch)

	nan := float32(math.NaN())
	err = store.UpdateEmbedding(ctx, domain.EmbeddingRecord{DocumentID: id, Vector: []float32{nan, 0, 0, 0}})
	assert.ErrorIs(t, err, domain.ErrValidation)
}

func TestListAll_InsertionOrder(t *testing.T) {
	store := setupTestStore(t)
	ctx := context.Background()

	var ids []string
	for i, text := range []string{"first", "second", "third"} {
		var rec *domain.EmbeddingRecord
		if i != 1 {
			rec = testRecord(float32(i), 1, 0, 0)
		}
		id, err := store.Put(ctx, testDocument(text), rec)
		require.NoError(t, err)
		ids = append(ids, id)
	}

	entries := collect(t, store)
	require.Len(t, entries, 3)
	for i, entry := range entries {
		assert.Equal(t, ids[i], entry.Document.ID)
	}
	assert.False(t, entries[0].Pending())
	assert.True(t, entries[1].Pending())
	assert.False(t, entries[2].Pending())
}

func TestListAll_StopEarly(t *testing.T) {
	store := setupTestStore(t)
	ctx := context.Background()

	for _, text := range []string{"a", "b", "c"} {
		_, err := store.Put(ctx, testDocument(text), nil)
		require.NoError(t, err)
	}

	n := 0
	for range store.ListAll(ctx) {
		n++
		break
	}
	assert.Equal(t, 1, n)

	// The connection is released, so writes still succeed.
	_, err := store.Put(ctx, testDocument("d"), nil)
	require.NoError(t, err)
}

func TestDelete_Cascades(t *testing.T) {
	store := setupTestStore(t)
	ctx := context.Background()

	id, err := store.Put(ctx, testDocument("gone"), testRecord(1, 1, 1, 1))
	require.NoError(t, err)

	require.NoError(t, store.Delete(ctx, id))

	_, err = store.Get(ctx, id)
	assert.ErrorIs(t, err, domain.ErrNotFound)

	var count int
	require.NoError(t, store.db.QueryRow("SELECT COUNT(*) FROM embeddings").Scan(&count))
	assert.Zero(t, count)

	err = store.Delete(ctx, id)
	assert.ErrorIs(t, err, domain.ErrNotFound)
}

func TestStats(t *testing.T) {
	store := setupTestStore(t)
	ctx := context.Background()

	_, err := store.Put(ctx, testDocument("a"), testRecord(1, 0, 0, 0))
	require.NoError(t, err)
	_, err = store.Put(ctx, testDocument("b"), nil)
	require.NoError(t, err)

	stats, err := store.Stats(ctx)
	require.NoError(t, err)
	assert.Equal(t, 2, stats.Documents)
	assert.Equal(t, 1, stats.Embedded)
	assert.Equal(t, 1, stats.Pending())
}

func TestOtherDimensionReadsAsPending(t *testing.T) {
	dir := t.TempDir()
	ctx := context.Background()

	old, err := NewStore(dir, 2)
	require.NoError(t, err)
	id, err := old.Put(ctx, testDocument("old model"), testRecord(1, 0))
	require.NoError(t, err)
	require.NoError(t, old.Close())

	store, err := NewStore(dir, testDims)
	require.NoError(t, err)
	defer store.Close()

	entry, err := store.Get(ctx, id)
	require.NoError(t, err)
	assert.True(t, entry.Pending())

	pending, err := store.ListPendingEmbeddings(ctx)
	require.NoError(t, err)
	require.Len(t, pending, 1)
	assert.Equal(t, id, pending[0].ID)

	stats, err := store.Stats(ctx)
	require.NoError(t, err)
	assert.Equal(t, 0, stats.Embedded)

	require.NoError(t, store.UpdateEmbedding(ctx, domain.EmbeddingRecord{DocumentID: id, Vector: []float32{1, 0, 0, 0}}))
	entry, err = store.Get(ctx, id)
	require.NoError(t, err)
	assert.False(t, entry.Pending())
}

func TestVectorEncoding(t *testing.T) {
	in := []float32{0, 1, -1, 0.5, float32(math.SmallestNonzeroFloat32), math.MaxFloat32}
	buf := float32SliceToBytes(in)

	require.Len(t, buf, len(in)*4)
	assert.Equal(t, []byte{0, 0, 0x80, 0x3f}, buf[4:8], "1.0 little-endian")
	assert.Equal(t, in, bytesToFloat32Slice(buf))

	assert.Nil(t, float32SliceToBytes(nil))
	assert.Nil(t, bytesToFloat32Slice(nil))
}

func TestCorruptVectorIsPersistenceError(t *testing.T) {
	store := setupTestStore(t)
	ctx := context.Background()

	id, err := store.Put(ctx, testDocument("corrupt"), testRecord(1, 0, 0, 0))
	require.NoError(t, err)

	_, err = store.db.Exec("UPDATE embeddings SET vector = ? WHERE document_id = ?", []byte{1, 2, 3}, id)
	require.NoError(t, err)

	_, err = store.Get(ctx, id)
	assert.ErrorIs(t, err, domain.ErrPersistence)
	assert.NotErrorIs(t, err, sql.ErrNoRows)
}
