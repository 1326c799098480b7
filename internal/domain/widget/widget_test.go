package widget

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func button(id int, resID string) View {
	return View{
		TempID:     id,
		Class:      "android.widget.Button",
		ResourceID: resID,
		Text:       "Submit",
		Bounds:     Bounds{Left: 0, Top: 0, Right: 100, Bottom: 50},
		Enabled:    true,
		Visible:    true,
		Clickable:  true,
	}
}

func TestFromView_CapabilityMask(t *testing.T) {
	v := button(1, "com.app:id/submit")
	v.Checkable = true
	v.Scrollable = true
	w := FromView(v)

	assert.True(t, w.ActionMask()&OperateEnable != 0)
	assert.True(t, w.ActionMask()&OperateClickable != 0)
	assert.True(t, w.ActionMask()&OperateCheckable != 0)
	assert.True(t, w.ActionMask()&OperateScrollable != 0)
}

func TestFromView_HashStableAcrossID(t *testing.T) {
	v1 := button(1, "com.app:id/submit")
	v2 := button(2, "com.app:id/submit")

	w1 := FromView(v1)
	w2 := FromView(v2)

	assert.Equal(t, w1.Hash(), w2.Hash(), "hash must not depend on TempID")
}

func TestFromView_HashDiffersOnResourceID(t *testing.T) {
	w1 := FromView(button(1, "com.app:id/submit"))
	w2 := FromView(button(1, "com.app:id/cancel"))

	assert.NotEqual(t, w1.Hash(), w2.Hash())
}

func TestGetHTMLClass_PriorityOrder(t *testing.T) {
	v := button(1, "r")
	v.Checkable = true
	v.Editable = true
	w := FromView(v)
	require.Equal(t, HTMLCheckbox, w.GetHTMLClass(), "checkable outranks editable")
}

func TestGetHTMLClass_DefaultsToParagraph(t *testing.T) {
	v := View{TempID: 1, Class: "android.widget.TextView", Visible: true}
	w := FromView(v)
	assert.Equal(t, HTMLParagraph, w.GetHTMLClass())
}

func TestShortClassAndResourceID(t *testing.T) {
	w := FromView(button(1, "com.app:id/submit"))
	assert.Equal(t, "Button", w.ShortClass())
	assert.Equal(t, "submit", w.ShortResourceID())
}

func TestBriefDescription_PrefersText(t *testing.T) {
	w := FromView(button(1, "com.app:id/submit"))
	assert.Equal(t, "Button(text:Submit)", w.BriefDescription())
}

func TestBriefDescription_FallsBackToResourceID(t *testing.T) {
	v := button(1, "com.app:id/submit")
	v.Text = ""
	w := FromView(v)
	assert.Equal(t, "Button(res-id:submit)", w.BriefDescription())
}

func TestToHTML_ContainsIDAndText(t *testing.T) {
	w := FromView(button(1, "com.app:id/submit"))
	out := w.ToHTML(nil, false)
	assert.Contains(t, out, `id="1"`)
	assert.Contains(t, out, "Submit")
}

func TestGetScrollType(t *testing.T) {
	v := View{TempID: 1, Class: "androidx.recyclerview.widget.RecyclerView", Scrollable: true, Visible: true}
	w := FromView(v)
	assert.Equal(t, ScrollVertical, w.GetScrollType())
}

func TestGetScrollType_NotScrollable(t *testing.T) {
	v := View{TempID: 1, Class: "android.widget.TextView", Visible: true}
	w := FromView(v)
	assert.Equal(t, ScrollNone, w.GetScrollType())
}
