package vocab

import (
	"hash/fnv"

	"github.com/alazoor/Mimachat/internal/core/ports/driven"
)

// Ensure Hashing implements the interface.
var _ driven.Vocabulary = (*Hashing)(nil)

const (
	// DefaultHashingSize matches the bert-base vocabulary size.
	DefaultHashingSize = 30522

	// reservedIDs keeps hashed ids clear of the sentinel range.
	reservedIDs = 1000
)

// Hashing maps every word to a bucket id. It needs no vocabulary file,
// so it is used when model.vocab_path is not configured.
type Hashing struct {
	size int
}

// NewHashing creates a hashing vocabulary with size ids.
// Sizes that leave no room above the reserved range fall back to DefaultHashingSize.
func NewHashing(size int) *Hashing {
	if size <= reservedIDs {
		size = DefaultHashingSize
	}
	return &Hashing{size: size}
}

// Tokenize returns one bucket id per word.
func (h *Hashing) Tokenize(text string) []int32 {
	words := splitWords(text)
	if len(words) == 0 {
		return nil
	}

	buckets := uint32(h.size - reservedIDs)
	out := make([]int32, 0, len(words))
	for _, word := range words {
		f := fnv.New32a()
		_, _ = f.Write([]byte(word))
		out = append(out, int32(reservedIDs+f.Sum32()%buckets))
	}
	return out
}

// Special returns the BERT sentinel ids.
func (h *Hashing) Special() driven.SpecialTokens {
	return DefaultSpecial
}

// Size returns the number of ids.
func (h *Hashing) Size() int {
	return h.size
}
