package cli

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSubmitCmd_RequiresExactlyOneArg(t *testing.T) {
	_, err := execute(t, "submit")

	require.Error(t, err)
	assert.Contains(t, err.Error(), "accepts 1 arg(s)")
}

func TestSubmitCmd_NotConfigured(t *testing.T) {
	_, err := execute(t, "submit", "text")

	assert.EqualError(t, err, "ingestion service not configured")
}

func TestSubmitCmd_Wait(t *testing.T) {
	env := setupTestServices(t)

	id := submitIndexed(t, "مرحبا بالعالم", "scan-1")

	entry, err := env.store.Get(context.Background(), id)
	require.NoError(t, err)
	assert.Equal(t, "scan-1", entry.Document.SourceReference)
	assert.False(t, entry.Pending())
}

func TestSubmitCmd_Stdin(t *testing.T) {
	env := setupTestServices(t)

	out, err := executeWithInput(t, "نص من الملف\n", "submit", "--locator", "/tmp/a.png", "-")

	require.NoError(t, err)
	assert.Contains(t, out, "Submitted ")

	stats, err := env.store.Stats(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, stats.Documents)
}

func TestSubmitCmd_EmptyText(t *testing.T) {
	setupTestServices(t)

	_, err := execute(t, "submit", "   ")

	require.Error(t, err)
	assert.Contains(t, err.Error(), "submit failed")
}
