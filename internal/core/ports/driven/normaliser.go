package driven

import "github.com/alazoor/Mimachat/internal/core/domain"

// Vocabulary maps text to subword token ids.
// The mapping is an external dependency of the normaliser (e.g. a WordPiece vocab.txt).
type Vocabulary interface {
	// Tokenize returns content token ids for the text, without sentinels.
	// Must be pure: the same input always yields the same ids.
	Tokenize(text string) []int32

	// Special returns the sentinel and padding ids used by this vocabulary.
	Special() SpecialTokens

	// Size returns the number of ids the vocabulary can produce.
	Size() int
}

// SpecialTokens are the fixed marker ids framing a sequence.
type SpecialTokens struct {
	// Begin opens every sequence ([CLS]).
	Begin int32

	// End closes the content ([SEP]).
	End int32

	// Pad fills unused positions ([PAD]).
	Pad int32

	// Unknown replaces out-of-vocabulary pieces ([UNK]).
	Unknown int32
}

// Normaliser frames raw text into the fixed-length model input.
type Normaliser interface {
	// Normalise returns the [BEGIN] content [END] [PAD]... framing of text.
	// Output length always equals SequenceLength. An error means the
	// normaliser broke its own contract and is never transient.
	Normalise(text string) (domain.Sequence, error)

	// SequenceLength returns L.
	SequenceLength() int
}
