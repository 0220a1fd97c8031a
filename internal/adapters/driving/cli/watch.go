package cli

import (
	"errors"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/alazoor/Mimachat/internal/watcher"
)

var (
	watchScanOnly bool
	watchSettle   time.Duration
)

var watchCmd = &cobra.Command{
	Use:   "watch [dir]",
	Short: "Submit OCR text files as they appear",
	Long: `Watches a directory for OCR sidecar files and submits each one.

For every name.txt the text is submitted with reference "name"; a sibling
image (name.png, name.jpg, ...) becomes the source locator. Files already
in the directory are submitted first. Use --scan to stop after that.

A new or changed file is read once it has gone --settle without writes.
If its text changes later, the new text replaces the earlier document.`,
	Args: cobra.ExactArgs(1),
	RunE: runWatch,
}

func init() {
	watchCmd.Flags().BoolVar(&watchScanOnly, "scan", false, "submit existing files and exit")
	watchCmd.Flags().DurationVar(&watchSettle, "settle", watcher.DefaultSettle, "quiet period before a written file is read")
	rootCmd.AddCommand(watchCmd)
}

func runWatch(cmd *cobra.Command, args []string) error {
	if ingestService == nil {
		return errors.New("ingestion service not configured")
	}

	ctx := commandContext(cmd)
	w := watcher.New(args[0], ingestService, watcher.WithSettle(watchSettle))

	n, err := w.Scan(ctx)
	if err != nil {
		return fmt.Errorf("scanning %s: %w", w.Dir(), err)
	}
	cmd.Printf("Submitted %d existing files from %s\n", n, w.Dir())

	if watchScanOnly {
		return nil
	}

	cmd.Println("Watching for new files (ctrl+c to stop)...")
	return w.Run(ctx)
}
