package cli

import (
	"bytes"
	"context"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/alazoor/Mimachat/internal/adapters/driven/embedding/hashing"
	"github.com/alazoor/Mimachat/internal/adapters/driven/embedding/lifecycle"
	"github.com/alazoor/Mimachat/internal/adapters/driven/storage/memory"
	"github.com/alazoor/Mimachat/internal/core/domain"
	"github.com/alazoor/Mimachat/internal/core/ports/driven"
	"github.com/alazoor/Mimachat/internal/core/services"
	"github.com/alazoor/Mimachat/internal/index"
	"github.com/alazoor/Mimachat/internal/normalisers/arabic"
	"github.com/alazoor/Mimachat/internal/normalisers/sequence"
	"github.com/alazoor/Mimachat/internal/normalisers/vocab"
	"github.com/alazoor/Mimachat/internal/watcher"
)

const testDims = 64

type testEnv struct {
	store    *memory.VectorStore
	provider *lifecycle.Provider
	ingest   *services.IngestionService
	settings *services.SettingsService
}

// setupTestServices wires in-memory services with a ready hashing model
// into the package vars and restores them on cleanup.
func setupTestServices(t *testing.T) *testEnv {
	t.Helper()

	env := newTestEnv(t, func(context.Context) (driven.Inferencer, error) { return hashing.New(testDims) }, 0)
	require.NoError(t, env.provider.Load(context.Background()))
	return env
}

// setupLoadingServices is setupTestServices with a model whose load only
// completes once release is closed, as right after bootstrap.
func setupLoadingServices(t *testing.T, release <-chan struct{}, timeout time.Duration) *testEnv {
	t.Helper()

	env := newTestEnv(t, func(ctx context.Context) (driven.Inferencer, error) {
		select {
		case <-release:
			return hashing.New(testDims)
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}, timeout)

	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(cancel)
	env.provider.LoadAsync(ctx)
	return env
}

func newTestEnv(t *testing.T, load lifecycle.Loader, timeout time.Duration) *testEnv {
	t.Helper()

	store := memory.NewVectorStore(testDims)
	norm, err := sequence.New(vocab.NewHashing(0), 32, sequence.WithPreprocess(arabic.Normalize))
	require.NoError(t, err)

	provider := lifecycle.New(lifecycle.Config{Name: "hashing", Dimensions: testDims}, load)

	ix := index.New(store, testDims)
	ingest := services.NewIngestionService(store, norm, provider, ix,
		domain.IngestSettings{QueueSize: 8, BackfillBatch: 10})
	search := services.NewSearchService(norm, provider, ix, domain.SearchSettings{
		Limit: 5, MinSimilarity: 0.65, MinQueryRunes: 2, AnswerLimit: 3,
	})
	settings := services.NewSettingsService(memory.NewConfigStore())

	SetServices(&Services{
		Ingest:       ingest,
		Search:       search,
		Model:        provider,
		Document:     services.NewDocumentService(store, ix, ingest),
		ModelTimeout: timeout,
	})
	SetSettingsService(settings)

	t.Cleanup(func() {
		_ = ingest.Close()
		_ = provider.Close()
		SetServices(&Services{})
		SetSettingsService(nil)
	})

	return &testEnv{store: store, provider: provider, ingest: ingest, settings: settings}
}

// resetFlags restores flag variables between executions of rootCmd.
func resetFlags() {
	verbose = false
	ephemeral = false
	dataDir = ""
	searchLimit = 0
	searchMinSimilarity = defaultMinSimilarity
	searchJSON = false
	submitLocator = ""
	submitReference = ""
	submitWait = false
	watchScanOnly = false
	watchSettle = watcher.DefaultSettle
}

func execute(t *testing.T, args ...string) (string, error) {
	t.Helper()
	return executeWithInput(t, "", args...)
}

func executeWithInput(t *testing.T, input string, args ...string) (string, error) {
	t.Helper()
	resetFlags()

	buf := new(bytes.Buffer)
	rootCmd.SetOut(buf)
	rootCmd.SetErr(buf)
	rootCmd.SetIn(strings.NewReader(input))
	rootCmd.SetArgs(args)
	defer rootCmd.SetArgs(nil)

	err := rootCmd.Execute()
	return buf.String(), err
}

// submitIndexed stores text and waits for it to become searchable.
func submitIndexed(t *testing.T, text, reference string) string {
	t.Helper()
	out, err := execute(t, "submit", "--wait", "--reference", reference, text)
	require.NoError(t, err)
	require.Contains(t, out, "State: indexed")
	id := strings.TrimSpace(strings.SplitN(strings.TrimPrefix(out, "Submitted "), "\n", 2)[0])
	require.NotEmpty(t, id)
	return id
}
