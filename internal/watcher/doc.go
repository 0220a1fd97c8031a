// Package watcher submits OCR output dropped into an inbox directory.
//
// Each capture is a text file holding the extracted text, optionally next to
// the image it came from:
//
//	inbox/
//	├── receipt-0412.png
//	└── receipt-0412.txt
//
// The image path becomes the source locator and the file stem the source
// reference. Without a sibling image the text file itself is the locator.
//
// OCR tools may write a file in several steps, so a file is read only after
// it has gone DefaultSettle without writes.
package watcher
