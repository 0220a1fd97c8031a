// Package hashing provides a deterministic in-process Inferencer.
//
// The model projects attended token ids and adjacent id pairs into a
// fixed-dimension space by signed feature hashing and L2-normalises the
// result. Sequences sharing tokens score high on cosine similarity. It needs
// no model files and is the default offline backend.
package hashing

import (
	"context"
	"encoding/binary"
	"fmt"
	"hash/fnv"
	"math"

	"github.com/alazoor/Mimachat/internal/core/domain"
	"github.com/alazoor/Mimachat/internal/core/ports/driven"
)

// Ensure Model implements the interface.
var _ driven.Inferencer = (*Model)(nil)

// DefaultName is reported as the model name for this backend.
const DefaultName = "hashing"

// bigramWeight scales pair features relative to single tokens.
const bigramWeight = 0.5

// Model is a stateless hashing encoder, safe for concurrent use.
type Model struct {
	dims int
}

// New creates a model emitting vectors of dims components.
func New(dims int) (*Model, error) {
	if dims <= 0 {
		return nil, fmt.Errorf("%w: dimensions must be positive, got %d", domain.ErrValidation, dims)
	}
	return &Model{dims: dims}, nil
}

// Infer embeds the attended content tokens of seq. The first and last
// attended positions are the sentinels and are skipped.
func (m *Model) Infer(ctx context.Context, seq domain.Sequence) ([]float32, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if len(seq.AttentionMask) != seq.Len() || len(seq.SegmentIDs) != seq.Len() {
		return nil, fmt.Errorf("malformed sequence: %d ids, %d mask, %d segments",
			seq.Len(), len(seq.AttentionMask), len(seq.SegmentIDs))
	}

	var tokens []int32
	for i, id := range seq.TokenIDs {
		if seq.AttentionMask[i] != 0 {
			tokens = append(tokens, id)
		}
	}

	acc := make([]float64, m.dims)
	if len(tokens) > 2 {
		content := tokens[1 : len(tokens)-1]
		for i, id := range content {
			m.add(acc, 1, uint64(uint32(id)))
			if i > 0 {
				pair := uint64(uint32(content[i-1]))<<32 | uint64(uint32(id))
				m.add(acc, bigramWeight, pair^0x9e3779b97f4a7c15)
			}
		}
	}

	var norm float64
	for _, v := range acc {
		norm += v * v
	}

	out := make([]float32, m.dims)
	if norm == 0 {
		return out, nil
	}
	norm = math.Sqrt(norm)
	for i, v := range acc {
		out[i] = float32(v / norm)
	}
	return out, nil
}

func (m *Model) add(acc []float64, weight float64, feature uint64) {
	var buf [8]byte
	binary.LittleEndian.PutUint64(buf[:], feature)

	h := fnv.New64a()
	_, _ = h.Write(buf[:])
	sum := h.Sum64()

	idx := int(sum % uint64(m.dims))
	if sum&(1<<63) != 0 {
		weight = -weight
	}
	acc[idx] += weight
}

// Dimensions returns the output vector size.
func (m *Model) Dimensions() int {
	return m.dims
}

// Close is a no-op.
func (m *Model) Close() error {
	return nil
}
