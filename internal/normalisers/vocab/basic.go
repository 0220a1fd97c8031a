// Package vocab provides Vocabulary implementations for the sequence normaliser.
package vocab

import (
	"strings"
	"unicode"

	"github.com/alazoor/Mimachat/internal/core/ports/driven"
)

// DefaultSpecial holds the BERT sentinel ids.
var DefaultSpecial = driven.SpecialTokens{
	Begin:   101,
	End:     102,
	Pad:     0,
	Unknown: 100,
}

// splitWords lowercases text and splits it on whitespace, emitting each
// punctuation or symbol rune as a word of its own.
func splitWords(text string) []string {
	var (
		words []string
		b     strings.Builder
	)

	flush := func() {
		if b.Len() > 0 {
			words = append(words, b.String())
			b.Reset()
		}
	}

	for _, r := range text {
		switch {
		case unicode.IsSpace(r) || unicode.IsControl(r):
			flush()
		case isPunct(r):
			flush()
			words = append(words, string(r))
		default:
			b.WriteRune(unicode.ToLower(r))
		}
	}
	flush()

	return words
}

func isPunct(r rune) bool {
	if r < 128 && !unicode.IsLetter(r) && !unicode.IsDigit(r) && r != ' ' {
		return true
	}
	return unicode.IsPunct(r) || unicode.IsSymbol(r)
}
