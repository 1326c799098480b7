package device

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/smilemakc/uxplore/internal/domain/widget"
)

const sampleDump = `<?xml version="1.0" encoding="UTF-8"?>
<hierarchy rotation="0">
  <node index="0" text="" resource-id="" class="android.widget.FrameLayout" bounds="[0,0][1080,1920]" clickable="false" checkable="false" scrollable="false" enabled="true">
    <node index="0" text="Login" resource-id="com.app:id/login" class="android.widget.Button" bounds="[100,200][500,300]" clickable="true" checkable="false" scrollable="false" enabled="true" />
    <node index="1" text="" resource-id="com.app:id/list" class="android.widget.ListView" bounds="[0,300][1080,1920]" clickable="false" checkable="false" scrollable="true" enabled="true" />
  </node>
</hierarchy>`

func TestParseUIAutomatorXML_FlattensTreeWithIndexLinks(t *testing.T) {
	views, err := parseUIAutomatorXML([]byte(sampleDump))
	require.NoError(t, err)
	require.Len(t, views, 3)

	root := views[0]
	assert.Equal(t, -1, root.Parent)
	assert.Equal(t, []int{1, 2}, root.Children)

	login := views[1]
	assert.Equal(t, "com.app:id/login", login.ResourceID)
	assert.Equal(t, 0, login.Parent)
	assert.True(t, login.Clickable)
	assert.Equal(t, 100, login.Bounds.Left)
	assert.Equal(t, 500, login.Bounds.Right)

	list := views[2]
	assert.True(t, list.Scrollable)
}

func TestParseBounds(t *testing.T) {
	x1, y1, x2, y2 := parseBounds("[100,200][500,300]")
	assert.Equal(t, 100, x1)
	assert.Equal(t, 200, y1)
	assert.Equal(t, 500, x2)
	assert.Equal(t, 300, y2)
}

func TestParseBounds_Malformed(t *testing.T) {
	x1, y1, x2, y2 := parseBounds("garbage")
	assert.Equal(t, 0, x1)
	assert.Equal(t, 0, y1)
	assert.Equal(t, 0, x2)
	assert.Equal(t, 0, y2)
}

func TestParseForegroundActivity(t *testing.T) {
	raw := []byte(`
  Display #0
    mResumedActivity: ActivityRecord{abc123 u0 com.app/.MainActivity t1}
`)
	assert.Equal(t, "com.app/.MainActivity", parseForegroundActivity(raw))
}

func TestParseForegroundActivity_TopResumedVariant(t *testing.T) {
	raw := []byte(`topResumedActivity=ActivityRecord{def456 u0 com.app/.Settings t2}`)
	assert.Equal(t, "com.app/.Settings", parseForegroundActivity(raw))
}

func TestParseForegroundActivity_NoMatch(t *testing.T) {
	assert.Equal(t, "", parseForegroundActivity([]byte("nothing relevant here")))
}

func TestCenter(t *testing.T) {
	cx, cy := center(widget.Bounds{Left: 100, Top: 200, Right: 500, Bottom: 300})
	assert.Equal(t, 300, cx)
	assert.Equal(t, 250, cy)
}
