// Package chat provides the question and answer view for the TUI.
package chat

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/alazoor/Mimachat/internal/adapters/driving/tui/components/input"
	"github.com/alazoor/Mimachat/internal/adapters/driving/tui/keymap"
	"github.com/alazoor/Mimachat/internal/adapters/driving/tui/messages"
	"github.com/alazoor/Mimachat/internal/adapters/driving/tui/styles"
	"github.com/alazoor/Mimachat/internal/core/ports/driving"
)

var errNoSearchService = errors.New("search service not available")

// turn is one question and, once it arrives, its reply.
type turn struct {
	question string
	answer   string
	locator  string
	err      error
	done     bool
}

// View shows the conversation transcript above a question input.
type View struct {
	ctx           context.Context
	styles        *styles.Styles
	keymap        *keymap.KeyMap
	searchService driving.SearchService

	input    *input.QuestionInput
	viewport viewport.Model
	turns    []turn
	waiting  bool
	width    int
	height   int
}

// NewView creates a new chat view.
func NewView(ctx context.Context, s *styles.Styles, km *keymap.KeyMap, searchService driving.SearchService) *View {
	if ctx == nil {
		ctx = context.Background()
	}
	if s == nil {
		s = styles.DefaultStyles()
	}
	if km == nil {
		km = keymap.DefaultKeyMap()
	}
	v := &View{
		ctx:           ctx,
		styles:        s,
		keymap:        km,
		searchService: searchService,
		input:         input.NewQuestionInput(s),
		viewport:      viewport.New(80, 18),
	}
	v.SetDimensions(80, 24)
	return v
}

// Init initialises the view.
func (v *View) Init() tea.Cmd {
	return v.input.Init()
}

// Update handles messages for the chat view.
func (v *View) Update(msg tea.Msg) (*View, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		v.SetDimensions(msg.Width, msg.Height)
		return v, nil

	case tea.KeyMsg:
		return v.handleKeyMsg(msg)

	case messages.AnswerReady:
		v.receive(msg)
		return v, nil
	}

	var cmd tea.Cmd
	v.input, cmd = v.input.Update(msg)
	return v, cmd
}

func (v *View) handleKeyMsg(msg tea.KeyMsg) (*View, tea.Cmd) {
	keyStr := msg.String()

	switch {
	case keymap.Matches(keyStr, v.keymap.Ask):
		question := strings.TrimSpace(v.input.Value())
		if question == "" || v.waiting {
			return v, nil
		}
		v.input.Reset()
		v.waiting = true
		v.turns = append(v.turns, turn{question: question})
		v.refresh()
		return v, v.ask(question)

	case keymap.Matches(keyStr, v.keymap.Clear):
		if !v.waiting {
			v.turns = nil
			v.refresh()
		}
		return v, nil

	case keyStr == "pgup" || keyStr == "pgdown":
		var cmd tea.Cmd
		v.viewport, cmd = v.viewport.Update(msg)
		return v, cmd
	}

	var cmd tea.Cmd
	v.input, cmd = v.input.Update(msg)
	return v, cmd
}

func (v *View) ask(question string) tea.Cmd {
	ctx := v.ctx
	svc := v.searchService
	return func() tea.Msg {
		if svc == nil {
			return messages.AnswerReady{Question: question, Err: errNoSearchService}
		}
		answer, err := svc.Ask(ctx, question)
		return messages.AnswerReady{Question: question, Answer: answer, Err: err}
	}
}

// receive fills the newest unanswered turn.
func (v *View) receive(msg messages.AnswerReady) {
	for i := len(v.turns) - 1; i >= 0; i-- {
		if v.turns[i].done {
			continue
		}
		v.turns[i].done = true
		v.turns[i].err = msg.Err
		v.turns[i].answer = msg.Answer.Text
		v.turns[i].locator = msg.Answer.PrimaryLocator
		break
	}
	v.waiting = false
	v.refresh()
}

func (v *View) refresh() {
	v.viewport.SetContent(v.renderTranscript())
	v.viewport.GotoBottom()
}

func (v *View) renderTranscript() string {
	if len(v.turns) == 0 {
		return v.styles.Muted.Render("اسأل عن أي نص محفوظ في المستندات.")
	}

	width := max(v.width-4, 20)
	parts := make([]string, 0, len(v.turns))
	for _, t := range v.turns {
		var b strings.Builder
		b.WriteString(v.styles.Question.Render("› " + t.question))
		b.WriteString("\n")
		switch {
		case !t.done:
			b.WriteString(v.styles.Muted.Render("..."))
		case t.err != nil:
			b.WriteString(v.styles.Error.Render(fmt.Sprintf("Error: %v", t.err)))
		default:
			b.WriteString(v.styles.Answer.Width(width).Render(t.answer))
			if t.locator != "" {
				b.WriteString("\n")
				b.WriteString(v.styles.Source.Render(t.locator))
			}
		}
		parts = append(parts, b.String())
	}
	return strings.Join(parts, "\n\n")
}

// View renders the chat view.
func (v *View) View() string {
	return lipgloss.JoinVertical(lipgloss.Left,
		v.styles.Title.Render("Mima"),
		v.viewport.View(),
		v.input.View(),
	)
}

// SetDimensions sets the view dimensions.
func (v *View) SetDimensions(width, height int) {
	v.width = width
	v.height = height
	// title, input box and status bar
	v.viewport.Width = width
	v.viewport.Height = max(height-6, 3)
	v.input.SetWidth(width)
	v.refresh()
}

// Focus gives keyboard focus to the question input.
func (v *View) Focus() tea.Cmd {
	return v.input.Focus()
}

// Blur removes keyboard focus from the question input.
func (v *View) Blur() {
	v.input.Blur()
}

// Waiting reports whether a question is awaiting its answer.
func (v *View) Waiting() bool {
	return v.waiting
}

// Turns returns the number of questions asked.
func (v *View) Turns() int {
	return len(v.turns)
}

// Input returns the question input.
func (v *View) Input() *input.QuestionInput {
	return v.input
}
