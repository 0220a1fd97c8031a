// Command mima indexes OCR text and answers questions about it.
package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/alazoor/Mimachat/internal/adapters/driven/config/file"
	"github.com/alazoor/Mimachat/internal/adapters/driven/embedding/hashing"
	"github.com/alazoor/Mimachat/internal/adapters/driven/embedding/lifecycle"
	"github.com/alazoor/Mimachat/internal/adapters/driven/embedding/tfserving"
	"github.com/alazoor/Mimachat/internal/adapters/driven/storage/memory"
	"github.com/alazoor/Mimachat/internal/adapters/driven/storage/sqlite"
	"github.com/alazoor/Mimachat/internal/adapters/driving/cli"
	"github.com/alazoor/Mimachat/internal/core/domain"
	"github.com/alazoor/Mimachat/internal/core/ports/driven"
	"github.com/alazoor/Mimachat/internal/core/services"
	"github.com/alazoor/Mimachat/internal/index"
	"github.com/alazoor/Mimachat/internal/logger"
	"github.com/alazoor/Mimachat/internal/normalisers/arabic"
	"github.com/alazoor/Mimachat/internal/normalisers/sequence"
	"github.com/alazoor/Mimachat/internal/normalisers/vocab"
)

// version is set at build time with -ldflags "-X main.version=...".
var version = "dev"

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := run(ctx); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func run(ctx context.Context) error {
	configDir, err := file.DefaultDir()
	if err != nil {
		return err
	}
	configStore, err := file.NewConfigStore(configDir)
	if err != nil {
		return fmt.Errorf("opening config: %w", err)
	}
	settingsService := services.NewSettingsService(configStore)

	cli.SetVersion(version)
	cli.SetSettingsService(settingsService)
	cli.SetBootstrap(func(ctx context.Context, opts cli.Options) (*cli.Services, error) {
		settings, err := settingsService.Get()
		if err != nil {
			return nil, err
		}
		if err := settings.Validate(); err != nil {
			return nil, err
		}
		if opts.DataDir != "" {
			settings.Storage.DataDir = opts.DataDir
		}
		return buildServices(ctx, settings, opts.Ephemeral)
	})

	return cli.Execute(ctx)
}

// closer accumulates teardown steps, run in reverse order.
type closer []func() error

func (c closer) close() error {
	var errs []error
	for i := len(c) - 1; i >= 0; i-- {
		if err := c[i](); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

func buildServices(ctx context.Context, settings *domain.AppSettings, ephemeral bool) (*cli.Services, error) {
	dims := settings.Model.Dimensions
	var teardown closer

	store, err := openStore(settings, ephemeral)
	if err != nil {
		return nil, err
	}
	teardown = append(teardown, store.Close)

	normaliser, err := newNormaliser(settings.Model)
	if err != nil {
		_ = teardown.close()
		return nil, err
	}

	provider := lifecycle.New(lifecycle.Config{
		Name:          settings.Model.Name,
		Dimensions:    dims,
		RatePerSecond: settings.Model.RatePerSecond,
	}, newLoader(settings.Model))
	teardown = append(teardown, provider.Close)

	ix := index.New(store, dims)
	if err := ix.Refresh(ctx); err != nil {
		_ = teardown.close()
		return nil, fmt.Errorf("loading index: %w", err)
	}
	logger.Debug("index loaded: %d entries", ix.Snapshot().Len())

	// The model loads in the background. One-shot commands wait for it
	// within model.timeout; chat and mcp serve report model_not_ready and
	// leave documents pending until it is ready.
	provider.LoadAsync(ctx)

	ingest := services.NewIngestionService(store, normaliser, provider, ix, settings.Ingest)
	teardown = append(teardown, ingest.Close)

	return &cli.Services{
		Ingest:       ingest,
		Search:       services.NewSearchService(normaliser, provider, ix, settings.Search),
		Model:        provider,
		Document:     services.NewDocumentService(store, ix, ingest),
		ModelTimeout: settings.Model.Timeout,
		Close:        teardown.close,
	}, nil
}

func openStore(settings *domain.AppSettings, ephemeral bool) (driven.VectorStore, error) {
	if ephemeral {
		logger.Debug("using in-memory store")
		return memory.NewVectorStore(settings.Model.Dimensions), nil
	}
	store, err := sqlite.NewStore(settings.Storage.DataDir, settings.Model.Dimensions)
	if err != nil {
		return nil, fmt.Errorf("opening store: %w", err)
	}
	logger.Debug("using store %s", store.Path())
	return store, nil
}

func newNormaliser(cfg domain.ModelSettings) (*sequence.Normaliser, error) {
	var v driven.Vocabulary = vocab.NewHashing(vocab.DefaultHashingSize)
	if cfg.VocabPath != "" {
		wp, err := vocab.LoadWordPiece(cfg.VocabPath)
		if err != nil {
			return nil, err
		}
		v = wp
	}
	return sequence.New(v, cfg.SequenceLength, sequence.WithPreprocess(arabic.Normalize))
}

func newLoader(cfg domain.ModelSettings) lifecycle.Loader {
	if cfg.Backend == domain.ModelBackendTFServing {
		return func(ctx context.Context) (driven.Inferencer, error) {
			client := tfserving.NewClient(tfserving.Config{
				BaseURL:    cfg.BaseURL,
				Model:      cfg.Name,
				Timeout:    cfg.Timeout,
				Dimensions: cfg.Dimensions,
			})
			if err := client.Ping(ctx); err != nil {
				_ = client.Close()
				return nil, err
			}
			return client, nil
		}
	}
	return func(context.Context) (driven.Inferencer, error) {
		return hashing.New(cfg.Dimensions)
	}
}
