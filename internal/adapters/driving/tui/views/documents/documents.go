// Package documents provides the stored documents view for the TUI.
package documents

import (
	"context"
	"errors"
	"fmt"
	"strings"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/mattn/go-runewidth"

	"github.com/alazoor/Mimachat/internal/adapters/driving/tui/keymap"
	"github.com/alazoor/Mimachat/internal/adapters/driving/tui/messages"
	"github.com/alazoor/Mimachat/internal/adapters/driving/tui/styles"
	"github.com/alazoor/Mimachat/internal/core/domain"
	"github.com/alazoor/Mimachat/internal/core/ports/driving"
)

var errNoDocumentService = errors.New("document service not available")

// View lists stored documents and their embedding state.
type View struct {
	styles          *styles.Styles
	keymap          *keymap.KeyMap
	documentService driving.DocumentService

	entries      []domain.Entry
	selected     int
	width        int
	height       int
	err          error
	loading      bool
	confirming   bool
	scrollOffset int
}

// NewView creates a new documents view.
func NewView(s *styles.Styles, km *keymap.KeyMap, documentService driving.DocumentService) *View {
	if s == nil {
		s = styles.DefaultStyles()
	}
	if km == nil {
		km = keymap.DefaultKeyMap()
	}
	return &View{
		styles:          s,
		keymap:          km,
		documentService: documentService,
		width:           80,
		height:          24,
	}
}

// Init initialises the view.
func (v *View) Init() tea.Cmd {
	return nil
}

// Load returns a command that reloads the document list.
func (v *View) Load() tea.Cmd {
	v.loading = true
	svc := v.documentService
	return func() tea.Msg {
		if svc == nil {
			return messages.DocumentsLoaded{Err: errNoDocumentService}
		}
		entries, err := svc.List(context.Background())
		return messages.DocumentsLoaded{Entries: entries, Err: err}
	}
}

func (v *View) deleteSelected() tea.Cmd {
	if v.selected >= len(v.entries) {
		return nil
	}
	id := v.entries[v.selected].Document.ID
	svc := v.documentService
	return func() tea.Msg {
		if svc == nil {
			return messages.DocumentDeleted{DocumentID: id, Err: errNoDocumentService}
		}
		return messages.DocumentDeleted{DocumentID: id, Err: svc.Delete(context.Background(), id)}
	}
}

// Update handles messages for the documents view.
func (v *View) Update(msg tea.Msg) (*View, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		v.SetDimensions(msg.Width, msg.Height)
		return v, nil

	case tea.KeyMsg:
		return v.handleKeyMsg(msg)

	case messages.DocumentsLoaded:
		v.loading = false
		v.err = msg.Err
		if msg.Err == nil {
			v.entries = msg.Entries
			if v.selected >= len(v.entries) {
				v.selected = max(len(v.entries)-1, 0)
			}
			v.adjustScroll()
		}
		return v, nil

	case messages.DocumentDeleted:
		if msg.Err != nil {
			v.err = msg.Err
			return v, nil
		}
		return v, v.Load()
	}

	return v, nil
}

func (v *View) handleKeyMsg(msg tea.KeyMsg) (*View, tea.Cmd) {
	keyStr := msg.String()

	if v.confirming {
		v.confirming = false
		if keyStr == "y" {
			return v, v.deleteSelected()
		}
		return v, nil
	}

	switch {
	case keymap.Matches(keyStr, v.keymap.Up):
		if v.selected > 0 {
			v.selected--
			v.adjustScroll()
		}
	case keymap.Matches(keyStr, v.keymap.Down):
		if v.selected < len(v.entries)-1 {
			v.selected++
			v.adjustScroll()
		}
	case keymap.Matches(keyStr, v.keymap.Delete):
		if len(v.entries) > 0 {
			v.confirming = true
		}
	case keymap.Matches(keyStr, v.keymap.Reload):
		return v, v.Load()
	}

	return v, nil
}

func (v *View) adjustScroll() {
	visible := v.visibleItemCount()
	if v.selected < v.scrollOffset {
		v.scrollOffset = v.selected
	} else if v.selected >= v.scrollOffset+visible {
		v.scrollOffset = v.selected - visible + 1
	}
}

func (v *View) visibleItemCount() int {
	// title, blank, footer and status bar
	return max(v.height-8, 1)
}

// View renders the documents view.
func (v *View) View() string {
	var b strings.Builder

	b.WriteString(v.styles.Title.Render(fmt.Sprintf("Documents (%d)", len(v.entries))))
	b.WriteString("\n\n")

	switch {
	case v.loading && len(v.entries) == 0:
		b.WriteString(v.styles.Muted.Render("Loading documents..."))
		return b.String()
	case v.err != nil:
		b.WriteString(v.styles.Error.Render(fmt.Sprintf("Error: %s", v.err.Error())))
		b.WriteString("\n\n")
	}

	if len(v.entries) == 0 {
		b.WriteString(v.styles.Muted.Render("No documents stored yet."))
		return b.String()
	}

	visible := v.visibleItemCount()
	end := min(v.scrollOffset+visible, len(v.entries))
	for i := v.scrollOffset; i < end; i++ {
		b.WriteString(v.renderEntry(i, &v.entries[i]))
		b.WriteString("\n")
	}

	if len(v.entries) > visible {
		b.WriteString(v.styles.Muted.Render(fmt.Sprintf("  [%d-%d of %d]",
			v.scrollOffset+1, end, len(v.entries))))
		b.WriteString("\n")
	}

	if v.confirming {
		b.WriteString("\n")
		b.WriteString(v.styles.Warning.Render("Delete selected document? [y/N]"))
	}

	return b.String()
}

func (v *View) renderEntry(index int, e *domain.Entry) string {
	indicator := "  "
	if index == v.selected {
		indicator = "> "
	}

	label := e.Document.SourceReference
	if label == "" {
		label = e.Document.ID
	}
	labelWidth := max(v.width/3, 10)
	label = runewidth.FillRight(runewidth.Truncate(label, labelWidth, "..."), labelWidth)

	state := "indexed"
	if e.Pending() {
		state = "pending"
	}

	textWidth := max(v.width-labelWidth-16, 10)
	text := strings.Join(strings.Fields(e.Document.TextContent), " ")
	text = runewidth.Truncate(text, textWidth, "...")

	if index == v.selected {
		return v.styles.Selected.Render(fmt.Sprintf("%s%s  %-7s  %s", indicator, label, state, text))
	}

	stateStyle := v.styles.Success
	if e.Pending() {
		stateStyle = v.styles.Warning
	}
	return v.styles.Normal.Render(indicator+label+"  ") +
		stateStyle.Render(fmt.Sprintf("%-7s", state)) +
		v.styles.Muted.Render("  "+text)
}

// SetDimensions sets the view dimensions.
func (v *View) SetDimensions(width, height int) {
	v.width = width
	v.height = height
	v.adjustScroll()
}

// Entries returns the current document list.
func (v *View) Entries() []domain.Entry {
	return v.entries
}

// SelectedIndex returns the currently selected index.
func (v *View) SelectedIndex() int {
	return v.selected
}

// SelectedEntry returns the currently selected entry, or nil.
func (v *View) SelectedEntry() *domain.Entry {
	if v.selected < len(v.entries) {
		return &v.entries[v.selected]
	}
	return nil
}

// Confirming reports whether a delete is awaiting confirmation.
func (v *View) Confirming() bool {
	return v.confirming
}

// Err returns the last error.
func (v *View) Err() error {
	return v.err
}
