// Package messages defines Bubbletea message types for the TUI.
package messages

import (
	"github.com/alazoor/Mimachat/internal/core/domain"
	"github.com/alazoor/Mimachat/internal/core/ports/driving"
)

// AskRequested is sent when the user submits a question.
type AskRequested struct {
	Question string
}

// AnswerReady carries the reply to a question.
type AnswerReady struct {
	Question string
	Answer   domain.Answer
	Err      error
}

// ModelStateChanged is sent when the model lifecycle moves.
type ModelStateChanged struct {
	State domain.ModelState
}

// StatsLoaded carries document counts for the status bar.
type StatsLoaded struct {
	Stats *driving.DocumentStats
	Err   error
}

// DocumentsLoaded carries the stored documents.
type DocumentsLoaded struct {
	Entries []domain.Entry
	Err     error
}

// DocumentDeleted signals a document was deleted.
type DocumentDeleted struct {
	DocumentID string
	Err        error
}

// ViewChanged is sent when switching views.
type ViewChanged struct {
	View ViewType
}

// ViewType identifies which view is currently active.
type ViewType int

const (
	// ViewChat is the question and answer transcript.
	ViewChat ViewType = iota
	// ViewDocuments lists stored documents.
	ViewDocuments
)

// String returns the string representation of the view type.
func (v ViewType) String() string {
	switch v {
	case ViewChat:
		return "chat"
	case ViewDocuments:
		return "documents"
	default:
		return "unknown"
	}
}

// ErrorOccurred signals that an error happened.
type ErrorOccurred struct {
	Err error
}

// Quit signals the application should exit.
type Quit struct{}
