package cli

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/alazoor/Mimachat/internal/core/domain"
)

func TestSearchCmd_Use(t *testing.T) {
	assert.Equal(t, "search [query]", searchCmd.Use)
}

func TestSearchCmd_RequiresExactlyOneArg(t *testing.T) {
	_, err := execute(t, "search")

	require.Error(t, err)
	assert.Contains(t, err.Error(), "accepts 1 arg(s)")
}

func TestSearchCmd_Flags(t *testing.T) {
	limit := searchCmd.Flags().Lookup("limit")
	require.NotNil(t, limit)
	assert.Equal(t, "n", limit.Shorthand)
	assert.Equal(t, "0", limit.DefValue)

	minSim := searchCmd.Flags().Lookup("min-similarity")
	require.NotNil(t, minSim)
	assert.Equal(t, "0.5", minSim.DefValue)
}

func TestSearchCmd_NotConfigured(t *testing.T) {
	_, err := execute(t, "search", "query")

	assert.EqualError(t, err, "search service not configured")
}

func TestSearchCmd_FindsSubmittedText(t *testing.T) {
	setupTestServices(t)
	submitIndexed(t, "مرحبا بالعالم", "scan-1")

	out, err := execute(t, "search", "مرحبا بالعالم")

	require.NoError(t, err)
	assert.Contains(t, out, "Results:")
	assert.Contains(t, out, "[1] scan-1 (1.000)")
	assert.Contains(t, out, "مرحبا بالعالم")
}

func TestSearchCmd_JSON(t *testing.T) {
	setupTestServices(t)
	id := submitIndexed(t, "مرحبا بالعالم", "scan-1")

	out, err := execute(t, "search", "--json", "مرحبا بالعالم")
	require.NoError(t, err)

	var resp domain.SearchResponse
	require.NoError(t, json.Unmarshal([]byte(out), &resp))
	assert.Equal(t, domain.ReasonOK, resp.Reason)
	require.Len(t, resp.Results, 1)
	assert.Equal(t, id, resp.Results[0].DocumentID)
	assert.Equal(t, 1, resp.Results[0].Rank)
}

func TestSearchCmd_QueryTooShort(t *testing.T) {
	setupTestServices(t)

	out, err := execute(t, "search", "م")

	require.NoError(t, err)
	assert.Contains(t, out, "No results: "+domain.ReasonQueryTooShort.Description())
}

func TestSearchCmd_InvalidThreshold(t *testing.T) {
	setupTestServices(t)

	_, err := execute(t, "search", "--min-similarity", "2", "مرحبا")

	require.Error(t, err)
	assert.ErrorIs(t, err, domain.ErrValidation)
}

func TestAskCmd(t *testing.T) {
	setupTestServices(t)
	submitIndexed(t, "مرحبا بالعالم", "scan-1")

	out, err := execute(t, "ask", "مرحبا", "بالعالم")

	require.NoError(t, err)
	assert.Contains(t, out, "مرحبا بالعالم")
	assert.Contains(t, out, "scan-1")
}

func TestSearchCmd_WaitsForLoadingModel(t *testing.T) {
	release := make(chan struct{})
	env := setupLoadingServices(t, release, 5*time.Second)
	require.Equal(t, domain.ModelLoading, waitForState(t, env, domain.ModelLoading))
	time.AfterFunc(20*time.Millisecond, func() { close(release) })

	out, err := execute(t, "search", "--json", "مرحبا بالعالم")
	require.NoError(t, err)

	var resp domain.SearchResponse
	require.NoError(t, json.Unmarshal([]byte(out), &resp))
	assert.Equal(t, domain.ReasonNoMatches, resp.Reason)
	assert.Equal(t, domain.ModelReady, env.provider.State())

	submitIndexed(t, "مرحبا بالعالم", "scan-1")
	out, err = execute(t, "ask", "مرحبا", "بالعالم")
	require.NoError(t, err)
	assert.Contains(t, out, "scan-1")
}

func TestSubmitCmd_WaitWaitsForLoadingModel(t *testing.T) {
	release := make(chan struct{})
	setupLoadingServices(t, release, 5*time.Second)
	time.AfterFunc(20*time.Millisecond, func() { close(release) })

	submitIndexed(t, "مرحبا بالعالم", "scan-1")
}

func TestSearchCmd_ModelLoadTimeout(t *testing.T) {
	setupLoadingServices(t, make(chan struct{}), 20*time.Millisecond)

	out, err := execute(t, "search", "مرحبا بالعالم")

	require.NoError(t, err)
	assert.Contains(t, out, "No results: "+domain.ReasonModelNotReady.Description())
}

// waitForState polls until the provider reaches want or a second passes.
func waitForState(t *testing.T, env *testEnv, want domain.ModelState) domain.ModelState {
	t.Helper()
	deadline := time.Now().Add(time.Second)
	for env.provider.State() != want && time.Now().Before(deadline) {
		time.Sleep(time.Millisecond)
	}
	return env.provider.State()
}

func TestSnippet(t *testing.T) {
	assert.Equal(t, "a b", snippet(" a\n b ", 10))
	assert.Equal(t, "abcdefg...", snippet("abcdefghijklmnop", 10))
	assert.Equal(t, "مرحبا", snippet("مرحبا", 5))
}
