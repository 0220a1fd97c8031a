// Package status provides status bar components for the TUI.
package status

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/bubbles/key"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/alazoor/Mimachat/internal/adapters/driving/tui/keymap"
	"github.com/alazoor/Mimachat/internal/adapters/driving/tui/styles"
	"github.com/alazoor/Mimachat/internal/core/domain"
)

// Bar displays model state, document counts and keybinding hints.
type Bar struct {
	styles   *styles.Styles
	keymap   *keymap.KeyMap
	model    domain.ModelState
	busy     bool
	message  string
	err      error
	indexed  int
	pending  int
	bindings []key.Binding
	width    int
}

// NewBar creates a new status bar component.
func NewBar(s *styles.Styles, km *keymap.KeyMap) *Bar {
	if s == nil {
		s = styles.DefaultStyles()
	}
	if km == nil {
		km = keymap.DefaultKeyMap()
	}

	return &Bar{
		styles:   s,
		keymap:   km,
		model:    domain.ModelUnloaded,
		bindings: km.ChatHelp(),
		width:    80,
	}
}

// Init initialises the status bar.
func (s *Bar) Init() tea.Cmd {
	return nil
}

// Update handles status bar messages.
func (s *Bar) Update(_ tea.Msg) (*Bar, tea.Cmd) {
	// Bar is passive, updated via Set methods
	return s, nil
}

// View renders the status bar.
func (s *Bar) View() string {
	left := s.renderLeft()
	right := s.renderRight()

	padding := s.width - lipgloss.Width(left) - lipgloss.Width(right)
	if padding < 1 {
		padding = 1
	}

	return s.styles.StatusBar.Width(s.width).Render(
		left + strings.Repeat(" ", padding) + right,
	)
}

func (s *Bar) renderLeft() string {
	if s.err != nil {
		return s.styles.Error.Render(fmt.Sprintf("Error: %v", s.err))
	}
	if s.busy {
		return s.styles.Muted.Render("Thinking...")
	}

	var model string
	switch s.model {
	case domain.ModelReady:
		model = s.styles.Success.Render("● " + s.model.Description())
	case domain.ModelFailed:
		model = s.styles.Error.Render("● " + s.model.Description())
	default:
		model = s.styles.Warning.Render("○ " + s.model.Description())
	}

	counts := fmt.Sprintf("%d indexed", s.indexed)
	if s.pending > 0 {
		counts += fmt.Sprintf(", %d pending", s.pending)
	}
	left := model + s.styles.Muted.Render("  "+counts)
	if s.message != "" {
		left += s.styles.Normal.Render("  " + s.message)
	}
	return left
}

func (s *Bar) renderRight() string {
	hints := make([]string, 0, len(s.bindings))
	for _, b := range s.bindings {
		h := b.Help()
		hints = append(hints, fmt.Sprintf("%s: %s", h.Key, h.Desc))
	}
	return s.styles.Muted.Render(strings.Join(hints, " | "))
}

// SetModelState records the embedding model state.
func (s *Bar) SetModelState(state domain.ModelState) {
	s.model = state
}

// ModelState returns the displayed model state.
func (s *Bar) ModelState() domain.ModelState {
	return s.model
}

// SetCounts records the indexed and pending document counts.
func (s *Bar) SetCounts(indexed, pending int) {
	s.indexed = indexed
	s.pending = pending
}

// Counts returns the displayed indexed and pending counts.
func (s *Bar) Counts() (indexed, pending int) {
	return s.indexed, s.pending
}

// SetBusy toggles the in-progress indicator.
func (s *Bar) SetBusy(busy bool) {
	s.busy = busy
}

// Busy reports whether a request is in progress.
func (s *Bar) Busy() bool {
	return s.busy
}

// SetError shows an error until the next Clear or SetError(nil).
func (s *Bar) SetError(err error) {
	s.err = err
}

// Err returns the displayed error.
func (s *Bar) Err() error {
	return s.err
}

// SetMessage sets a custom message.
func (s *Bar) SetMessage(message string) {
	s.message = message
}

// Message returns the current message.
func (s *Bar) Message() string {
	return s.message
}

// SetBindings selects the keybinding hints shown on the right.
func (s *Bar) SetBindings(bindings []key.Binding) {
	s.bindings = bindings
}

// SetWidth sets the status bar width.
func (s *Bar) SetWidth(width int) {
	s.width = width
}

// Width returns the current width.
func (s *Bar) Width() int {
	return s.width
}

// Clear drops the message, error and busy indicator.
func (s *Bar) Clear() {
	s.busy = false
	s.message = ""
	s.err = nil
}
