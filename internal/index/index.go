package index

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"

	"golang.org/x/sync/singleflight"

	"github.com/alazoor/Mimachat/internal/core/domain"
	"github.com/alazoor/Mimachat/internal/core/ports/driven"
	"github.com/alazoor/Mimachat/internal/logger"
)

var log = logger.For("index")

// op is a mutation applied while a refresh was loading.
type op struct {
	remove bool
	id     string
	entry  Entry
}

// Index publishes snapshots of the embedded documents held by a VectorStore.
//
// Append and Remove apply to the current snapshot immediately. Mutations
// made while Refresh is reading the store are replayed on top of the
// refreshed snapshot, so a refresh never loses them.
type Index struct {
	store driven.VectorStore
	dims  int

	current atomic.Pointer[Snapshot]
	group   singleflight.Group

	mu         sync.Mutex
	version    uint64
	refreshing bool
	backlog    []op
}

// New creates an index over store with an empty initial snapshot.
func New(store driven.VectorStore, dims int) *Index {
	ix := &Index{store: store, dims: dims}
	ix.current.Store(&Snapshot{dims: dims})
	return ix
}

// Snapshot returns the current snapshot. It never returns nil.
func (ix *Index) Snapshot() *Snapshot {
	return ix.current.Load()
}

// Dimensions returns the vector dimension of the index.
func (ix *Index) Dimensions() int {
	return ix.dims
}

// Refresh rebuilds the snapshot from the store, skipping pending documents.
// Concurrent calls share one rebuild.
func (ix *Index) Refresh(ctx context.Context) error {
	_, err, _ := ix.group.Do("refresh", func() (any, error) {
		return nil, ix.refresh(ctx)
	})
	return err
}

func (ix *Index) refresh(ctx context.Context) error {
	ix.mu.Lock()
	ix.refreshing = true
	ix.backlog = nil
	ix.mu.Unlock()

	entries, err := ix.load(ctx)

	ix.mu.Lock()
	defer ix.mu.Unlock()

	backlog := ix.backlog
	ix.refreshing = false
	ix.backlog = nil

	if err != nil {
		return err
	}

	ix.version++
	snap := &Snapshot{version: ix.version, dims: ix.dims, entries: entries}
	for _, o := range backlog {
		snap = apply(snap, ix.version, o)
	}
	ix.current.Store(snap)

	log.Debug("refreshed snapshot v%d with %d entries (%d replayed)", snap.version, snap.Len(), len(backlog))
	return nil
}

func (ix *Index) load(ctx context.Context) ([]Entry, error) {
	var entries []Entry
	for entry, err := range ix.store.ListAll(ctx) {
		if err != nil {
			return nil, fmt.Errorf("loading snapshot: %w", err)
		}
		if entry.Embedding == nil {
			continue
		}
		if len(entry.Embedding.Vector) != ix.dims {
			// Stores only surface vectors of their own dimension.
			log.Warn("skipping %s: %d dimensions, want %d", entry.Document.ID, len(entry.Embedding.Vector), ix.dims)
			continue
		}
		entries = append(entries, newEntry(entry.Document, entry.Embedding.Vector))
	}
	return entries, nil
}

// Append adds a document to the current snapshot, replacing the vector
// when the document is already present.
func (ix *Index) Append(doc domain.Document, rec domain.EmbeddingRecord) error {
	if err := rec.Validate(ix.dims); err != nil {
		return err
	}
	if rec.DocumentID != doc.ID {
		return fmt.Errorf("%w: record for %s attached to %s", domain.ErrValidation, rec.DocumentID, doc.ID)
	}

	ix.publish(op{id: doc.ID, entry: newEntry(doc, rec.Vector)})
	return nil
}

// Remove drops a document from the current snapshot.
// It reports whether the document was present.
func (ix *Index) Remove(id string) bool {
	return ix.publish(op{remove: true, id: id})
}

// publish applies o to the current snapshot and reports whether the
// document was present before.
func (ix *Index) publish(o op) bool {
	ix.mu.Lock()
	defer ix.mu.Unlock()

	if ix.refreshing {
		ix.backlog = append(ix.backlog, o)
	}

	cur := ix.current.Load()
	_, found := cur.Find(o.id)
	if o.remove && !found {
		return false
	}
	ix.version++
	ix.current.Store(apply(cur, ix.version, o))
	return found
}

func apply(s *Snapshot, version uint64, o op) *Snapshot {
	pos, found := s.Find(o.id)
	if o.remove {
		if !found {
			return s
		}
		return s.without(version, pos)
	}
	return s.withUpsert(version, pos, o.entry)
}
