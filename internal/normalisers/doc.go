// Package normalisers turns raw OCR text into model input.
//
// Subpackages:
//   - arabic: script folding applied before tokenization
//   - vocab: subword vocabularies (WordPiece vocab.txt and a hashing fallback)
//   - sequence: fixed-length [BEGIN] content [END] [PAD] framing
package normalisers
