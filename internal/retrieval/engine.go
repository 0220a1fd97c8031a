package retrieval

import (
	"context"
	"fmt"
	"math"

	"github.com/alazoor/Mimachat/internal/core/domain"
	"github.com/alazoor/Mimachat/internal/index"
)

// Hit is a ranked result with the snapshot entry it refers to.
type Hit struct {
	domain.QueryResult

	// Entry belongs to the searched snapshot and must not be modified.
	Entry *index.Entry
}

// cancelEvery is how many entries are scanned between context checks.
const cancelEvery = 1024

// Search returns at most k entries of snap with similarity >= minSimilarity,
// best first. Equal scores keep snapshot order. snap is only read, so it may
// be searched while the index publishes newer snapshots.
func Search(ctx context.Context, snap *index.Snapshot, query []float32, k int, minSimilarity float64) ([]Hit, error) {
	if k <= 0 {
		return nil, fmt.Errorf("%w: k must be positive, got %d", domain.ErrValidation, k)
	}
	if math.IsNaN(minSimilarity) || minSimilarity < -1 || minSimilarity > 1 {
		return nil, fmt.Errorf("%w: min similarity %v outside [-1, 1]", domain.ErrValidation, minSimilarity)
	}
	if len(query) != snap.Dimensions() {
		return nil, fmt.Errorf("%w: query has %d dimensions, index has %d",
			domain.ErrDimensionMismatch, len(query), snap.Dimensions())
	}

	qn := norm(query)
	heap := newTopK(k, snap.Len())
	for i := 0; i < snap.Len(); i++ {
		if i%cancelEvery == cancelEvery-1 {
			if err := ctx.Err(); err != nil {
				return nil, err
			}
		}
		e := snap.At(i)
		score := cosine(query, e.Vector, qn, e.Norm)
		if score < minSimilarity {
			continue
		}
		heap.offer(candidate{pos: i, score: score})
	}

	ranked := heap.sorted()
	hits := make([]Hit, len(ranked))
	for i, c := range ranked {
		e := snap.At(c.pos)
		hits[i] = Hit{
			QueryResult: domain.QueryResult{
				DocumentID: e.Document.ID,
				Similarity: c.score,
				Rank:       i + 1,
			},
			Entry: e,
		}
	}
	return hits, nil
}
