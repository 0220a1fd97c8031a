// Package arabic folds Arabic script variants so that OCR output and typed
// questions tokenize to the same ids.
//
// Folding is light (no stemming): compatibility decomposition (NFKC, which also
// maps presentation forms to base letters), removal of diacritics and tatweel,
// alef/yeh/teh-marbuta unification, Arabic-Indic digits to ASCII, and
// whitespace collapse.
package arabic

import (
	"strings"
	"unicode"

	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
)

// marks are harakat, Quranic annotation marks, superscript alef and tatweel.
var marks = &unicode.RangeTable{
	R16: []unicode.Range16{
		{Lo: 0x0610, Hi: 0x061A, Stride: 1},
		{Lo: 0x0640, Hi: 0x0640, Stride: 1},
		{Lo: 0x064B, Hi: 0x065F, Stride: 1},
		{Lo: 0x0670, Hi: 0x0670, Stride: 1},
		{Lo: 0x06D6, Hi: 0x06ED, Stride: 1},
	},
}

func fold(r rune) rune {
	switch {
	case r == 'أ' || r == 'إ' || r == 'آ' || r == 'ٱ':
		return 'ا'
	case r == 'ى':
		return 'ي'
	case r == 'ة':
		return 'ه'
	case r >= '٠' && r <= '٩':
		return '0' + (r - '٠')
	case r >= '۰' && r <= '۹':
		return '0' + (r - '۰')
	}
	return r
}

// Normalize returns the folded form of text.
// It is pure and safe for concurrent use.
func Normalize(text string) string {
	if text == "" {
		return ""
	}

	t := transform.Chain(norm.NFKC, runes.Remove(runes.In(marks)), runes.Map(fold))
	out, _, err := transform.String(t, text)
	if err != nil {
		// The chain never fails on valid UTF-8; keep the input if it does.
		out = text
	}

	return strings.Join(strings.Fields(out), " ")
}

// IsArabic reports whether r belongs to the Arabic script.
func IsArabic(r rune) bool {
	return unicode.Is(unicode.Arabic, r)
}
