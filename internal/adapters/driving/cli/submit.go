package cli

import (
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/spf13/cobra"
)

var (
	submitLocator   string
	submitReference string
	submitWait      bool
)

var submitCmd = &cobra.Command{
	Use:   "submit [text]",
	Short: "Store a piece of extracted text",
	Long: `Stores text extracted from an image and schedules its embedding.

The text is persisted before the command returns. Embedding happens in the
background; pass --wait to block until the document is searchable or has
failed. Use "-" to read the text from stdin.`,
	Args: cobra.ExactArgs(1),
	RunE: runSubmit,
}

func init() {
	submitCmd.Flags().StringVarP(&submitLocator, "locator", "l", "", "origin of the text, e.g. the image path")
	submitCmd.Flags().StringVarP(&submitReference, "reference", "r", "", "human readable label for the origin")
	submitCmd.Flags().BoolVarP(&submitWait, "wait", "w", false, "wait until the document is indexed")
	rootCmd.AddCommand(submitCmd)
}

func runSubmit(cmd *cobra.Command, args []string) error {
	if ingestService == nil {
		return errors.New("ingestion service not configured")
	}

	text := args[0]
	if text == "-" {
		data, err := io.ReadAll(cmd.InOrStdin())
		if err != nil {
			return fmt.Errorf("reading stdin: %w", err)
		}
		text = string(data)
	}

	if submitWait {
		awaitModel(cmd)
	}

	ctx := commandContext(cmd)
	id, err := ingestService.Submit(ctx, strings.TrimRight(text, "\r\n"), submitLocator, submitReference)
	if err != nil {
		return fmt.Errorf("submit failed: %w", err)
	}
	cmd.Printf("Submitted %s\n", id)

	if !submitWait {
		return nil
	}

	event, err := ingestService.Wait(ctx, id)
	if err != nil {
		return fmt.Errorf("waiting for %s: %w", id, err)
	}
	if event.Err != nil {
		cmd.Printf("State: %s (%v)\n", event.State, event.Err)
		return nil
	}
	cmd.Printf("State: %s\n", event.State)
	return nil
}
