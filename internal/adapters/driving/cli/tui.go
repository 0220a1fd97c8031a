package cli

import (
	"fmt"
	"io"
	"os"
	"runtime/debug"

	"github.com/spf13/cobra"

	"github.com/alazoor/Mimachat/internal/adapters/driving/tui"
	"github.com/alazoor/Mimachat/internal/logger"
)

var tuiCmd = &cobra.Command{
	Use:     "chat",
	Aliases: []string{"tui"},
	Short:   "Launch the interactive chat",
	Long: `Launch the interactive terminal chat.

Ask questions about stored text and browse stored documents.

Controls:
  Enter    - Ask
  Tab      - Switch between chat and documents
  ↑/k, ↓/j - Navigate documents
  d        - Delete selected document
  r        - Reload documents
  Ctrl+L   - Clear the transcript
  Ctrl+C   - Quit`,
	Args: cobra.NoArgs,
	RunE: runTUI,
}

func init() {
	rootCmd.AddCommand(tuiCmd)
}

func runTUI(cmd *cobra.Command, _ []string) error {
	defer func() {
		if r := recover(); r != nil {
			fmt.Fprintf(os.Stderr, "Panic in TUI: %v\n", r)
			fmt.Fprintf(os.Stderr, "Stack trace:\n%s\n", debug.Stack())
		}
	}()

	// Log lines would tear the alternate screen.
	if !verbose {
		logger.SetOutput(io.Discard)
		defer logger.SetOutput(os.Stderr)
	}

	app, err := tui.NewApp(tui.NewPorts(searchService, modelService, documentService))
	if err != nil {
		return fmt.Errorf("failed to create TUI: %w", err)
	}

	if err := app.WithContext(commandContext(cmd)).Run(); err != nil {
		return fmt.Errorf("TUI error: %w", err)
	}
	return nil
}
