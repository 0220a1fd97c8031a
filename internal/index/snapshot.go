// Package index keeps the searchable in-memory view of embedded documents.
//
// Readers take a *Snapshot and scan it without locks. Writers publish new
// snapshots by atomic pointer swap; a published snapshot is never mutated.
package index

import (
	"math"

	"github.com/alazoor/Mimachat/internal/core/domain"
)

// Entry is one embedded document inside a snapshot.
type Entry struct {
	Document domain.Document
	Vector   []float32

	// Norm is the L2 norm of Vector, computed once at insertion.
	Norm float64
}

func newEntry(doc domain.Document, vec []float32) Entry {
	var sum float64
	for _, v := range vec {
		f := float64(v)
		sum += f * f
	}
	return Entry{
		Document: doc,
		Vector:   append([]float32(nil), vec...),
		Norm:     math.Sqrt(sum),
	}
}

// Snapshot is an immutable ordered sequence of embedded documents.
// Order is insertion order and decides ties during ranking.
type Snapshot struct {
	version uint64
	dims    int
	entries []Entry
}

// Version increases with every publication.
func (s *Snapshot) Version() uint64 {
	return s.version
}

// Dimensions returns the vector dimension shared by all entries.
func (s *Snapshot) Dimensions() int {
	return s.dims
}

// Len returns the number of entries.
func (s *Snapshot) Len() int {
	return len(s.entries)
}

// At returns the entry at position i. The entry must not be modified.
func (s *Snapshot) At(i int) *Entry {
	return &s.entries[i]
}

// Find returns the position of the document with the given id.
func (s *Snapshot) Find(id string) (int, bool) {
	for i := range s.entries {
		if s.entries[i].Document.ID == id {
			return i, true
		}
	}
	return -1, false
}

// withUpsert returns a snapshot with e appended, or replacing the entry at
// pos when pos >= 0. Appends reuse spare capacity of the backing array:
// positions past len are invisible to every published snapshot.
func (s *Snapshot) withUpsert(version uint64, pos int, e Entry) *Snapshot {
	next := &Snapshot{version: version, dims: s.dims}
	if pos < 0 {
		next.entries = append(s.entries, e)
		return next
	}
	next.entries = make([]Entry, len(s.entries))
	copy(next.entries, s.entries)
	next.entries[pos] = e
	return next
}

// without returns a snapshot lacking the entry at pos.
func (s *Snapshot) without(version uint64, pos int) *Snapshot {
	entries := make([]Entry, 0, len(s.entries))
	entries = append(entries, s.entries[:pos]...)
	entries = append(entries, s.entries[pos+1:]...)
	return &Snapshot{version: version, dims: s.dims, entries: entries}
}
