package cli

import (
	"errors"
	"fmt"
	"time"

	"github.com/spf13/cobra"
)

var documentCmd = &cobra.Command{
	Use:   "document",
	Short: "Manage stored documents",
	Long:  `List, view, or delete stored documents.`,
}

var documentListCmd = &cobra.Command{
	Use:   "list",
	Short: "List stored documents",
	Args:  cobra.NoArgs,
	RunE:  runDocumentList,
}

var documentGetCmd = &cobra.Command{
	Use:   "get [doc-id]",
	Short: "Show a document and its embedding state",
	Args:  cobra.ExactArgs(1),
	RunE:  runDocumentGet,
}

var documentDeleteCmd = &cobra.Command{
	Use:   "delete [doc-id]",
	Short: "Delete a document and its embedding",
	Long:  `Removes a document, its embedding, and its index entry.`,
	Args:  cobra.ExactArgs(1),
	RunE:  runDocumentDelete,
}

var pendingCmd = &cobra.Command{
	Use:   "pending",
	Short: "List documents waiting for an embedding",
	Args:  cobra.NoArgs,
	RunE:  runPending,
}

var backfillCmd = &cobra.Command{
	Use:   "backfill",
	Short: "Retry embedding of pending documents",
	Long: `Runs one backfill pass over pending documents. The model must be ready;
the command waits for it to finish loading first.`,
	Args: cobra.NoArgs,
	RunE: runBackfill,
}

var statsCmd = &cobra.Command{
	Use:   "stats",
	Short: "Show store and index counts",
	Args:  cobra.NoArgs,
	RunE:  runStats,
}

func init() {
	documentCmd.AddCommand(documentListCmd)
	documentCmd.AddCommand(documentGetCmd)
	documentCmd.AddCommand(documentDeleteCmd)
	rootCmd.AddCommand(documentCmd)
	rootCmd.AddCommand(pendingCmd)
	rootCmd.AddCommand(backfillCmd)
	rootCmd.AddCommand(statsCmd)
}

func runDocumentList(cmd *cobra.Command, _ []string) error {
	if documentService == nil {
		return errors.New("document service not configured")
	}

	entries, err := documentService.List(commandContext(cmd))
	if err != nil {
		return fmt.Errorf("failed to list documents: %w", err)
	}

	if len(entries) == 0 {
		cmd.Println("No documents stored.")
		return nil
	}

	for i := range entries {
		doc := &entries[i].Document
		state := "indexed"
		if entries[i].Pending() {
			state = "pending"
		}
		cmd.Printf("  %s  [%s]\n", doc.ID, state)
		if doc.SourceReference != "" {
			cmd.Printf("    Reference: %s\n", doc.SourceReference)
		}
		cmd.Printf("    %s\n", snippet(doc.TextContent, 80))
		cmd.Println()
	}

	cmd.Printf("Total: %d documents\n", len(entries))
	return nil
}

func runDocumentGet(cmd *cobra.Command, args []string) error {
	if documentService == nil {
		return errors.New("document service not configured")
	}

	entry, err := documentService.Get(commandContext(cmd), args[0])
	if err != nil {
		return fmt.Errorf("failed to get document: %w", err)
	}

	doc := entry.Document
	cmd.Printf("ID:        %s\n", doc.ID)
	cmd.Printf("Reference: %s\n", doc.SourceReference)
	cmd.Printf("Locator:   %s\n", doc.SourceLocator)
	cmd.Printf("Created:   %s\n", doc.CreatedAt.Format(time.RFC3339))
	if entry.Pending() {
		cmd.Println("Embedding: pending")
	} else {
		cmd.Printf("Embedding: %d dimensions, %s\n",
			len(entry.Embedding.Vector), entry.Embedding.GeneratedAt.Format(time.RFC3339))
	}
	cmd.Println()
	cmd.Println(doc.TextContent)
	return nil
}

func runDocumentDelete(cmd *cobra.Command, args []string) error {
	if documentService == nil {
		return errors.New("document service not configured")
	}

	if err := documentService.Delete(commandContext(cmd), args[0]); err != nil {
		return fmt.Errorf("failed to delete document: %w", err)
	}
	cmd.Printf("Deleted %s\n", args[0])
	return nil
}

func runPending(cmd *cobra.Command, _ []string) error {
	if documentService == nil {
		return errors.New("document service not configured")
	}

	docs, err := documentService.Pending(commandContext(cmd))
	if err != nil {
		return fmt.Errorf("failed to list pending documents: %w", err)
	}

	if len(docs) == 0 {
		cmd.Println("No pending documents.")
		return nil
	}

	for i := range docs {
		cmd.Printf("  %s  %s\n", docs[i].ID, snippet(docs[i].TextContent, 60))
	}
	cmd.Printf("\nTotal: %d pending\n", len(docs))
	return nil
}

func runBackfill(cmd *cobra.Command, _ []string) error {
	if ingestService == nil {
		return errors.New("ingestion service not configured")
	}

	ctx := commandContext(cmd)
	if modelService != nil {
		if _, err := modelService.Wait(ctx); err != nil {
			return fmt.Errorf("model unavailable: %w", err)
		}
	}

	report, err := ingestService.Backfill(ctx)
	if err != nil {
		return fmt.Errorf("backfill failed: %w", err)
	}

	cmd.Printf("Pending:   %d\n", report.Pending)
	cmd.Printf("Attempted: %d\n", report.Attempted)
	cmd.Printf("Indexed:   %d\n", report.Indexed)
	cmd.Printf("Failed:    %d\n", report.Failed)
	cmd.Printf("Skipped:   %d\n", report.Skipped)
	return nil
}

func runStats(cmd *cobra.Command, _ []string) error {
	if documentService == nil {
		return errors.New("document service not configured")
	}

	stats, err := documentService.Stats(commandContext(cmd))
	if err != nil {
		return fmt.Errorf("failed to get stats: %w", err)
	}

	cmd.Printf("Documents: %d\n", stats.Documents)
	cmd.Printf("Embedded:  %d\n", stats.Embedded)
	cmd.Printf("Pending:   %d\n", stats.Pending())
	cmd.Printf("Indexed:   %d (snapshot %d)\n", stats.Indexed, stats.SnapshotVersion)
	if modelService != nil {
		cmd.Printf("Model:     %s\n", modelService.State().Description())
	}
	return nil
}
