// Package cli provides the mima command line interface.
// It is a driving adapter: commands call core services through driving ports.
package cli

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/alazoor/Mimachat/internal/core/ports/driving"
	"github.com/alazoor/Mimachat/internal/logger"
)

// annotationNoServices marks commands that run without the core services.
const annotationNoServices = "mima/no-services"

var version = "dev"

var (
	verbose   bool
	ephemeral bool
	dataDir   string
)

var (
	ingestService   driving.IngestionService
	searchService   driving.SearchService
	modelService    driving.ModelService
	documentService driving.DocumentService
	settingsService driving.SettingsService
)

// Options carries the global flags into the bootstrap.
type Options struct {
	// Verbose enables debug logging.
	Verbose bool

	// Ephemeral keeps all documents in memory for this run only.
	Ephemeral bool

	// DataDir overrides storage.data_dir.
	DataDir string
}

// Services holds the driving ports the commands run against.
type Services struct {
	Ingest   driving.IngestionService
	Search   driving.SearchService
	Model    driving.ModelService
	Document driving.DocumentService

	// ModelTimeout bounds how long one-shot commands wait for the model
	// to load. Zero waits until the command context ends.
	ModelTimeout time.Duration

	// Close releases workers, the model and the store.
	Close func() error
}

// Bootstrap builds the services once global flags are parsed.
type Bootstrap func(ctx context.Context, opts Options) (*Services, error)

var (
	bootstrap    Bootstrap
	closeFn      func() error
	modelTimeout time.Duration
)

var rootCmd = &cobra.Command{
	Use:   "mima",
	Short: "Semantic search over OCR text",
	Long: `mima indexes text extracted from images and answers questions about it.

Text is normalised, embedded and kept in a local store. Questions are
matched against stored text by cosine similarity, in Arabic or any other
language the model vocabulary covers.`,
	SilenceUsage:      true,
	PersistentPreRunE: setupServices,
}

func init() {
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "enable debug logging")
	rootCmd.PersistentFlags().BoolVar(&ephemeral, "ephemeral", false, "keep documents in memory only")
	rootCmd.PersistentFlags().StringVar(&dataDir, "data-dir", "", "override the storage directory")
}

// SetVersion sets the version printed by the version command.
func SetVersion(v string) {
	version = v
}

// SetSettingsService sets the settings service used by settings commands.
func SetSettingsService(s driving.SettingsService) {
	settingsService = s
}

// SetBootstrap sets the function that builds services before a command runs.
func SetBootstrap(b Bootstrap) {
	bootstrap = b
}

// SetServices installs already-built services.
func SetServices(s *Services) {
	if s == nil {
		return
	}
	ingestService = s.Ingest
	searchService = s.Search
	modelService = s.Model
	documentService = s.Document
	modelTimeout = s.ModelTimeout
	closeFn = s.Close
}

// awaitModel blocks until the model load started at bootstrap resolves.
// A model that is still loading or failed is only logged; the command then
// runs and reports model_not_ready itself.
func awaitModel(cmd *cobra.Command) {
	if modelService == nil || modelService.State().IsResolved() {
		return
	}

	ctx := commandContext(cmd)
	if modelTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, modelTimeout)
		defer cancel()
	}

	if state, err := modelService.Wait(ctx); err != nil {
		logger.Warn("model %s: %v", state, err)
	}
}

func setupServices(cmd *cobra.Command, _ []string) error {
	logger.SetVerbose(verbose)

	if cmd.Annotations[annotationNoServices] != "" || bootstrap == nil {
		return nil
	}

	svc, err := bootstrap(cmd.Context(), Options{
		Verbose:   verbose,
		Ephemeral: ephemeral,
		DataDir:   dataDir,
	})
	if err != nil {
		return fmt.Errorf("starting services: %w", err)
	}
	SetServices(svc)
	return nil
}

func closeServices() error {
	if closeFn == nil {
		return nil
	}
	err := closeFn()
	closeFn = nil
	return err
}

// Execute runs the root command and releases services afterwards.
func Execute(ctx context.Context) error {
	err := rootCmd.ExecuteContext(ctx)
	if cerr := closeServices(); cerr != nil {
		logger.Warn("closing services: %v", cerr)
	}
	if errors.Is(err, context.Canceled) {
		return nil
	}
	return err
}

func commandContext(cmd *cobra.Command) context.Context {
	if ctx := cmd.Context(); ctx != nil {
		return ctx
	}
	return context.Background()
}
