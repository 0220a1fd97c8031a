package tui

import (
	"context"
	"errors"
	"fmt"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/alazoor/Mimachat/internal/adapters/driving/tui/components/status"
	"github.com/alazoor/Mimachat/internal/adapters/driving/tui/keymap"
	"github.com/alazoor/Mimachat/internal/adapters/driving/tui/messages"
	"github.com/alazoor/Mimachat/internal/adapters/driving/tui/styles"
	"github.com/alazoor/Mimachat/internal/adapters/driving/tui/views/chat"
	"github.com/alazoor/Mimachat/internal/adapters/driving/tui/views/documents"
	"github.com/alazoor/Mimachat/internal/core/domain"
)

// App is the main TUI application following the Elm architecture.
// It implements tea.Model for use with Bubbletea.
type App struct {
	ports  *Ports
	ctx    context.Context
	styles *styles.Styles
	keymap *keymap.KeyMap

	chatView      *chat.View
	documentsView *documents.View
	statusBar     *status.Bar

	// currentView tracks which view is active.
	currentView messages.ViewType

	err    error
	width  int
	height int
	ready  bool
}

// Ensure App implements tea.Model.
var _ tea.Model = (*App)(nil)

// NewApp creates a new TUI application with the given ports.
func NewApp(ports *Ports) (*App, error) {
	if ports == nil {
		return nil, ErrInvalidPorts
	}
	if err := ports.Validate(); err != nil {
		return nil, fmt.Errorf("creating app: %w", err)
	}

	a := &App{
		ports:       ports,
		ctx:         context.Background(),
		styles:      styles.DefaultStyles(),
		keymap:      keymap.DefaultKeyMap(),
		currentView: messages.ViewChat,
	}
	a.build()
	return a, nil
}

func (a *App) build() {
	a.chatView = chat.NewView(a.ctx, a.styles, a.keymap, a.ports.Search)
	a.documentsView = documents.NewView(a.styles, a.keymap, a.ports.Document)
	a.statusBar = status.NewBar(a.styles, a.keymap)
}

// WithContext sets the context used for service calls.
func (a *App) WithContext(ctx context.Context) *App {
	a.ctx = ctx
	a.build()
	return a
}

// Init initialises the application.
func (a *App) Init() tea.Cmd {
	return tea.Batch(
		tea.SetWindowTitle("mima"),
		a.chatView.Init(),
		a.modelState(),
		a.waitModel(),
		a.loadStats(),
	)
}

func (a *App) modelState() tea.Cmd {
	model := a.ports.Model
	if model == nil {
		return nil
	}
	return func() tea.Msg {
		return messages.ModelStateChanged{State: model.State()}
	}
}

// waitModel resolves once the model load attempt finishes.
func (a *App) waitModel() tea.Cmd {
	model := a.ports.Model
	if model == nil || model.State().IsResolved() {
		return nil
	}
	ctx := a.ctx
	return func() tea.Msg {
		state, err := model.Wait(ctx)
		if ctx.Err() != nil {
			return nil
		}
		if err != nil && !errors.Is(err, domain.ErrModelNotReady) {
			return messages.ErrorOccurred{Err: err}
		}
		return messages.ModelStateChanged{State: state}
	}
}

func (a *App) loadStats() tea.Cmd {
	docs := a.ports.Document
	if docs == nil {
		return nil
	}
	ctx := a.ctx
	return func() tea.Msg {
		stats, err := docs.Stats(ctx)
		return messages.StatsLoaded{Stats: stats, Err: err}
	}
}

// Update handles messages and returns the updated model.
func (a *App) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	var cmd tea.Cmd

	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		a.width = msg.Width
		a.height = msg.Height
		a.ready = true
		a.chatView.SetDimensions(msg.Width, msg.Height)
		a.documentsView.SetDimensions(msg.Width, msg.Height)
		a.statusBar.SetWidth(msg.Width)
		return a, nil

	case tea.KeyMsg:
		keyStr := msg.String()
		if keymap.Matches(keyStr, a.keymap.Quit) {
			return a, tea.Quit
		}
		if keymap.Matches(keyStr, a.keymap.SwitchView) {
			next := messages.ViewDocuments
			if a.currentView == messages.ViewDocuments {
				next = messages.ViewChat
			}
			return a.switchView(next)
		}

		a.statusBar.SetError(nil)
		switch a.currentView {
		case messages.ViewChat:
			a.chatView, cmd = a.chatView.Update(msg)
			a.statusBar.SetBusy(a.chatView.Waiting())
		case messages.ViewDocuments:
			a.documentsView, cmd = a.documentsView.Update(msg)
		}
		return a, cmd

	case messages.ViewChanged:
		return a.switchView(msg.View)

	case messages.AnswerReady:
		a.chatView, cmd = a.chatView.Update(msg)
		a.statusBar.SetBusy(false)
		if msg.Err != nil {
			a.setErr(msg.Err)
		}
		return a, tea.Batch(cmd, a.loadStats())

	case messages.ModelStateChanged:
		a.statusBar.SetModelState(msg.State)
		return a, a.loadStats()

	case messages.StatsLoaded:
		if msg.Err != nil {
			a.setErr(msg.Err)
			return a, nil
		}
		if msg.Stats != nil {
			a.statusBar.SetCounts(msg.Stats.Indexed, msg.Stats.Pending())
		}
		return a, nil

	case messages.DocumentsLoaded:
		a.documentsView, cmd = a.documentsView.Update(msg)
		return a, cmd

	case messages.DocumentDeleted:
		a.documentsView, cmd = a.documentsView.Update(msg)
		if msg.Err != nil {
			a.setErr(msg.Err)
			return a, cmd
		}
		a.statusBar.SetMessage("deleted " + msg.DocumentID)
		return a, tea.Batch(cmd, a.loadStats())

	case messages.ErrorOccurred:
		a.setErr(msg.Err)
		return a, nil

	case messages.Quit:
		return a, tea.Quit
	}

	if a.currentView == messages.ViewChat {
		a.chatView, cmd = a.chatView.Update(msg)
	}
	return a, cmd
}

func (a *App) switchView(view messages.ViewType) (tea.Model, tea.Cmd) {
	a.currentView = view
	a.statusBar.Clear()
	switch view {
	case messages.ViewDocuments:
		a.chatView.Blur()
		a.statusBar.SetBindings(a.keymap.DocumentsHelp())
		return a, a.documentsView.Load()
	default:
		a.currentView = messages.ViewChat
		a.statusBar.SetBindings(a.keymap.ChatHelp())
		return a, a.chatView.Focus()
	}
}

func (a *App) setErr(err error) {
	a.err = err
	a.statusBar.SetError(err)
}

// View renders the current view above the status bar.
func (a *App) View() string {
	if !a.ready {
		return "Initialising..."
	}

	var body string
	switch a.currentView {
	case messages.ViewDocuments:
		body = a.documentsView.View()
	default:
		body = a.chatView.View()
	}

	gap := a.height - lipgloss.Height(body) - 1
	if gap > 0 {
		body = lipgloss.JoinVertical(lipgloss.Left, body, lipgloss.NewStyle().Height(gap).Render(""))
	}
	return lipgloss.JoinVertical(lipgloss.Left, body, a.statusBar.View())
}

// CurrentView returns the active view type.
func (a *App) CurrentView() messages.ViewType {
	return a.currentView
}

// Err returns the last error that occurred.
func (a *App) Err() error {
	return a.err
}

// Ready returns true once the terminal size is known.
func (a *App) Ready() bool {
	return a.ready
}

// Run starts the TUI application.
func (a *App) Run() error {
	p := tea.NewProgram(a, tea.WithAltScreen(), tea.WithContext(a.ctx))
	_, err := p.Run()
	if errors.Is(err, tea.ErrProgramKilled) && a.ctx.Err() != nil {
		return nil
	}
	return err
}
