// Package sequence frames text into the fixed-length input expected by the
// embedding model: [BEGIN] content... [END] [PAD]...
package sequence

import (
	"fmt"

	"github.com/alazoor/Mimachat/internal/core/domain"
	"github.com/alazoor/Mimachat/internal/core/ports/driven"
)

// Ensure Normaliser implements the interface.
var _ driven.Normaliser = (*Normaliser)(nil)

// Normaliser is pure and safe for concurrent use.
type Normaliser struct {
	vocab      driven.Vocabulary
	length     int
	preprocess func(string) string
}

// Option configures a Normaliser.
type Option func(*Normaliser)

// WithPreprocess applies fn to the text before tokenization.
func WithPreprocess(fn func(string) string) Option {
	return func(n *Normaliser) {
		n.preprocess = fn
	}
}

// New creates a normaliser producing sequences of the given length.
// Length must leave room for both sentinels.
func New(vocab driven.Vocabulary, length int, opts ...Option) (*Normaliser, error) {
	if vocab == nil {
		return nil, fmt.Errorf("%w: vocabulary is required", domain.ErrValidation)
	}
	if length < 2 {
		return nil, fmt.Errorf("%w: sequence length %d is shorter than the two sentinels", domain.ErrValidation, length)
	}

	n := &Normaliser{vocab: vocab, length: length}
	for _, opt := range opts {
		opt(n)
	}
	return n, nil
}

// SequenceLength returns L.
func (n *Normaliser) SequenceLength() int {
	return n.length
}

// Normalise tokenizes text and frames it. Content beyond L-2 tokens is
// truncated so END always lands at or before L-1.
func (n *Normaliser) Normalise(text string) (domain.Sequence, error) {
	if n.preprocess != nil {
		text = n.preprocess(text)
	}

	special := n.vocab.Special()
	content := n.vocab.Tokenize(text)
	if limit := n.length - 2; len(content) > limit {
		content = content[:limit]
	}

	seq := domain.Sequence{
		TokenIDs:      make([]int32, n.length),
		AttentionMask: make([]int32, n.length),
		SegmentIDs:    make([]int32, n.length),
	}

	pos := 0
	put := func(id int32) {
		seq.TokenIDs[pos] = id
		seq.AttentionMask[pos] = 1
		pos++
	}

	put(special.Begin)
	for _, id := range content {
		put(id)
	}
	put(special.End)

	for ; pos < n.length; pos++ {
		seq.TokenIDs[pos] = special.Pad
	}

	if err := n.check(seq, len(content)); err != nil {
		return domain.Sequence{}, err
	}
	return seq, nil
}

// check verifies the framing before it reaches the model.
func (n *Normaliser) check(seq domain.Sequence, contentLen int) error {
	if seq.Len() != n.length || len(seq.AttentionMask) != n.length || len(seq.SegmentIDs) != n.length {
		return fmt.Errorf("%w: sequence length %d, want %d", domain.ErrNormaliser, seq.Len(), n.length)
	}

	size := n.vocab.Size()
	for i := 1; i <= contentLen; i++ {
		id := seq.TokenIDs[i]
		if id < 0 || (size > 0 && int(id) >= size) {
			return fmt.Errorf("%w: token id %d at %d outside vocabulary of %d", domain.ErrNormaliser, id, i, size)
		}
	}
	return nil
}
