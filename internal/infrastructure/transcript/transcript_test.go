package transcript

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNew_WritesHeader(t *testing.T) {
	dir := t.TempDir()
	tr, err := New(dir, "uxplore")
	require.NoError(t, err)
	require.NotNil(t, tr)

	body, err := os.ReadFile(filepath.Join(dir, "LLM_QA.txt"))
	require.NoError(t, err)
	assert.Contains(t, string(body), "app: uxplore")
}

func TestNew_CreatesOutputDir(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "nested")
	_, err := New(dir, "uxplore")
	require.NoError(t, err)
	_, statErr := os.Stat(dir)
	assert.NoError(t, statErr)
}

func TestLogPrompt_Appends(t *testing.T) {
	dir := t.TempDir()
	tr, err := New(dir, "uxplore")
	require.NoError(t, err)

	tr.LogPrompt("Prompt", "describe this screen")
	tr.LogPrompt("Response", "a login screen")

	body, err := os.ReadFile(filepath.Join(dir, "LLM_QA.txt"))
	require.NoError(t, err)
	assert.Contains(t, string(body), "describe this screen")
	assert.Contains(t, string(body), "a login screen")
}

func TestLogLatency_AppendsCSVRow(t *testing.T) {
	dir := t.TempDir()
	tr, err := New(dir, "uxplore")
	require.NoError(t, err)

	tr.LogLatency(250*time.Millisecond, 42)

	body, err := os.ReadFile(filepath.Join(dir, "LLM-Interaction.csv"))
	require.NoError(t, err)
	assert.Contains(t, string(body), "0.250000, 42")
}
