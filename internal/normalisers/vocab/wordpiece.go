package vocab

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/alazoor/Mimachat/internal/core/domain"
	"github.com/alazoor/Mimachat/internal/core/ports/driven"
)

// Ensure WordPiece implements the interface.
var _ driven.Vocabulary = (*WordPiece)(nil)

// maxWordRunes is the longest word split into pieces; longer words become [UNK].
const maxWordRunes = 100

// WordPiece is a greedy longest-match subword vocabulary read from a
// vocab.txt file (one token per line, id = line number).
type WordPiece struct {
	ids     map[string]int32
	special driven.SpecialTokens
	size    int
}

// LoadWordPiece reads a vocab.txt file from disk.
func LoadWordPiece(path string) (*WordPiece, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("opening vocabulary: %w", err)
	}
	defer f.Close()

	wp, err := NewWordPiece(f)
	if err != nil {
		return nil, fmt.Errorf("reading vocabulary %s: %w", path, err)
	}
	return wp, nil
}

// NewWordPiece builds a vocabulary from r.
// Sentinel ids are taken from the [CLS], [SEP], [PAD] and [UNK] entries when
// present, otherwise the BERT defaults apply.
func NewWordPiece(r io.Reader) (*WordPiece, error) {
	ids := make(map[string]int32)

	// Ids are line numbers, so blank or repeated lines leave gaps.
	scanner := bufio.NewScanner(r)
	var line, maxID int32
	for scanner.Scan() {
		tok := strings.TrimRight(scanner.Text(), "\r")
		if tok != "" {
			if _, dup := ids[tok]; !dup {
				ids[tok] = line
				maxID = line
			}
		}
		line++
	}
	if err := scanner.Err(); err != nil {
		return nil, err
	}
	if len(ids) == 0 {
		return nil, fmt.Errorf("%w: empty vocabulary", domain.ErrValidation)
	}

	special := DefaultSpecial
	if id, ok := ids["[CLS]"]; ok {
		special.Begin = id
	}
	if id, ok := ids["[SEP]"]; ok {
		special.End = id
	}
	if id, ok := ids["[PAD]"]; ok {
		special.Pad = id
	}
	if id, ok := ids["[UNK]"]; ok {
		special.Unknown = id
	}

	return &WordPiece{ids: ids, special: special, size: int(maxID) + 1}, nil
}

// Tokenize splits text into words and each word into the longest known pieces.
func (w *WordPiece) Tokenize(text string) []int32 {
	var out []int32
	for _, word := range splitWords(text) {
		out = w.pieces(word, out)
	}
	return out
}

func (w *WordPiece) pieces(word string, out []int32) []int32 {
	rs := []rune(word)
	if len(rs) > maxWordRunes {
		return append(out, w.special.Unknown)
	}

	mark := len(out)
	for start := 0; start < len(rs); {
		end := len(rs)
		found := int32(-1)
		for ; end > start; end-- {
			sub := string(rs[start:end])
			if start > 0 {
				sub = "##" + sub
			}
			if id, ok := w.ids[sub]; ok {
				found = id
				break
			}
		}
		if found < 0 {
			// Whole word is unknown, drop any partial match.
			return append(out[:mark], w.special.Unknown)
		}
		out = append(out, found)
		start = end
	}
	return out
}

// Special returns the sentinel ids.
func (w *WordPiece) Special() driven.SpecialTokens {
	return w.special
}

// Size is one past the highest id, which bounds every id Tokenize emits.
func (w *WordPiece) Size() int {
	return w.size
}
