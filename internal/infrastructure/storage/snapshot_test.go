package storage

import (
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/smilemakc/uxplore/internal/domain/devicestate"
	"github.com/smilemakc/uxplore/internal/domain/event"
	"github.com/smilemakc/uxplore/internal/domain/utg"
	"github.com/smilemakc/uxplore/internal/domain/widget"
)

func buildGraph() *utg.UTG {
	u := utg.New("com.app", false)
	home := devicestate.New([]widget.View{
		{TempID: 0, Class: "android.widget.Button", ResourceID: "login", Visible: true, Enabled: true, Clickable: true},
	}, "com.app/.Home", nil)
	profile := devicestate.New([]widget.View{
		{TempID: 0, Class: "android.widget.Button", ResourceID: "logout", Visible: true, Enabled: true, Clickable: true},
	}, "com.app/.Profile", nil)
	u.AddTransition(event.Touch(0), home, profile)
	return u
}

func TestSnapshotWriter_WriteProducesParseableJSON(t *testing.T) {
	u := buildGraph()
	dir := t.TempDir()
	w := NewSnapshotWriter(dir, "com.app")

	require.NoError(t, w.Write(u))

	body, err := os.ReadFile(filepath.Join(dir, "utg.json"))
	require.NoError(t, err)

	var doc snapshotDoc
	require.NoError(t, json.Unmarshal(body, &doc))

	assert.Equal(t, "com.app", doc.AppPackage)
	assert.Equal(t, 2, doc.NumNodes)
	assert.Equal(t, 1, doc.NumEdges)
	assert.Len(t, doc.Nodes, 2)
	assert.Len(t, doc.Edges, 1)
}

func TestSnapshotWriter_CreatesOutputDir(t *testing.T) {
	u := buildGraph()
	dir := filepath.Join(t.TempDir(), "nested", "output")
	w := NewSnapshotWriter(dir, "com.app")

	require.NoError(t, w.Write(u))
	_, err := os.Stat(filepath.Join(dir, "utg.json"))
	assert.NoError(t, err)
}

func TestSnapshotWriter_ToRunSnapshot(t *testing.T) {
	u := buildGraph()
	w := NewSnapshotWriter(t.TempDir(), "com.app")

	snap, err := w.ToRunSnapshot("run-1", u)
	require.NoError(t, err)
	assert.Equal(t, "run-1", snap.RunID)
	assert.Equal(t, "com.app", snap.AppPackage)

	var nodes []snapshotNode
	require.NoError(t, json.Unmarshal(snap.StatesJSON, &nodes))
	assert.Len(t, nodes, 2)
}
