package devicestate

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/smilemakc/uxplore/internal/domain/event"
	"github.com/smilemakc/uxplore/internal/domain/widget"
)

func simpleViews() []widget.View {
	return []widget.View{
		{TempID: 0, Class: "android.widget.FrameLayout", Visible: true, Enabled: true, Children: []int{1, 2}, Parent: -1},
		{TempID: 1, Class: "android.widget.Button", ResourceID: "com.app:id/ok", Text: "OK", Visible: true, Enabled: true, Clickable: true, Parent: 0},
		{TempID: 2, Class: "android.widget.EditText", ResourceID: "com.app:id/name", Visible: true, Enabled: true, Editable: true, Parent: 0},
	}
}

func TestNew_AssignsRootAndFingerprints(t *testing.T) {
	s := New(simpleViews(), "com.app/.Main", nil)
	assert.Equal(t, -1, s.ID(), "id is assigned only by UTG.AddNode")
	assert.False(t, s.IDAssigned())
	assert.NotEmpty(t, s.StateStr())
	assert.NotEmpty(t, s.StructureStr())
	assert.Equal(t, "com.app/.Main", s.ForegroundActivity())
}

func TestSetID(t *testing.T) {
	s := New(simpleViews(), "com.app/.Main", nil)
	s.SetID(7)
	assert.Equal(t, 7, s.ID())
	assert.True(t, s.IDAssigned())
}

func TestStateStr_SameContentSameFingerprint(t *testing.T) {
	a := New(simpleViews(), "com.app/.Main", nil)
	b := New(simpleViews(), "com.app/.Main", nil)
	assert.Equal(t, a.StateStr(), b.StateStr())
	assert.Equal(t, a.StructureStr(), b.StructureStr())
}

func TestStructureStr_IgnoresTextDifference(t *testing.T) {
	v1 := simpleViews()
	v2 := simpleViews()
	v2[1].Text = "Confirm"

	a := New(v1, "com.app/.Main", nil)
	b := New(v2, "com.app/.Main", nil)

	assert.NotEqual(t, a.StateStr(), b.StateStr(), "content fingerprint is text-sensitive")
	assert.Equal(t, a.StructureStr(), b.StructureStr(), "structure fingerprint ignores text")
}

func TestWidgets_Dedup(t *testing.T) {
	views := []widget.View{
		{TempID: 0, Class: "android.widget.Button", ResourceID: "com.app:id/item", Visible: true, Enabled: true, Clickable: true},
		{TempID: 1, Class: "android.widget.Button", ResourceID: "com.app:id/item", Visible: true, Enabled: true, Clickable: true},
	}
	s := New(views, "com.app/.List", nil)
	require.Len(t, s.Widgets(), 1, "identical-hash widgets dedup to one canonical widget")
	assert.Len(t, s.AllWidgets(), 2, "AllWidgets retains every instance")
}

func TestCluster_AssignOnce(t *testing.T) {
	s := New(simpleViews(), "com.app/.Main", nil)
	_, ok := s.Cluster()
	assert.False(t, ok)

	s.SetCluster(3)
	id, ok := s.Cluster()
	assert.True(t, ok)
	assert.Equal(t, 3, id)
}

func TestToHTML_CachesResult(t *testing.T) {
	s := New(simpleViews(), "com.app/.Main", nil)
	first := s.ToHTML()
	second := s.ToHTML()
	assert.Equal(t, first, second)
	assert.NotEmpty(t, first)
}

func TestSimilarity_IdenticalStatesAreOne(t *testing.T) {
	a := New(simpleViews(), "com.app/.Main", nil)
	b := New(simpleViews(), "com.app/.Main", nil)
	assert.InDelta(t, 1.0, a.Similarity(b), 0.0001)
}

func TestSimilarity_EmptyStatesAreZero(t *testing.T) {
	a := New(nil, "com.app/.Main", nil)
	b := New(nil, "com.app/.Main", nil)
	assert.Equal(t, 0.0, a.Similarity(b))
}

func TestFindWidgetByID(t *testing.T) {
	s := New(simpleViews(), "com.app/.Main", nil)
	w := s.FindWidgetByID(1)
	require.NotNil(t, w)
	assert.Equal(t, 1, w.ID())

	assert.Nil(t, s.FindWidgetByID(999))
}

func TestPossibleInputs_CoversClickableScrollableEditable(t *testing.T) {
	s := New(simpleViews(), "com.app/.Main", nil)
	events := s.PossibleInputs()

	var hasTouch, hasSetText bool
	for _, e := range events {
		if e.Kind == event.KindTouch && e.WidgetID == 1 {
			hasTouch = true
		}
		if e.Kind == event.KindSetText && e.WidgetID == 2 {
			hasSetText = true
		}
	}
	assert.True(t, hasTouch, "clickable button should produce a touch event")
	assert.True(t, hasSetText, "editable field should produce a set-text event")
}

func TestPossibleInputs_ScrollableProducesFourDirections(t *testing.T) {
	views := []widget.View{
		{TempID: 0, Class: "android.widget.ScrollView", Visible: true, Enabled: true, Scrollable: true},
	}
	s := New(views, "com.app/.Main", nil)
	events := s.PossibleInputs()
	assert.Len(t, events, 4)
}

func TestDiffWidgets_ExcludesLayouts(t *testing.T) {
	a := New(simpleViews(), "com.app/.Main", nil)
	onlyLayout := []widget.View{simpleViews()[0]}
	b := New(onlyLayout, "com.app/.Main", nil)

	diff := a.DiffWidgets(b)
	for _, w := range diff {
		assert.NotContains(t, w.ShortClass(), "Layout")
	}
}

func TestDiffWidgets_SameStateIsEmpty(t *testing.T) {
	a := New(simpleViews(), "com.app/.Main", nil)
	assert.Nil(t, a.DiffWidgets(a))
}

func TestFindEventByIDAndType(t *testing.T) {
	s := New(simpleViews(), "com.app/.Main", nil)
	e := s.FindEventByIDAndType(1, event.KindTouch)
	require.NotNil(t, e)
	assert.Equal(t, 1, e.WidgetID)

	assert.Nil(t, s.FindEventByIDAndType(1, event.KindLongTouch))
}

func TestViewSignature_MissingTextBecomesNone(t *testing.T) {
	v := widget.View{Class: "android.widget.TextView"}
	assert.Contains(t, viewSignature(v), "[text]None[")
}

func TestViewSignature_PresentEmptyTextStaysEmpty(t *testing.T) {
	v := widget.View{Class: "android.widget.TextView", Text: "", TextSet: true}
	assert.Contains(t, viewSignature(v), "[text][")
}

func TestViewSignature_OverlongTextBecomesNoneRegardlessOfTextSet(t *testing.T) {
	v := widget.View{Class: "android.widget.TextView", Text: strings.Repeat("x", 51), TextSet: true}
	assert.Contains(t, viewSignature(v), "[text]None[")
}

func TestStateStr_MissingVsPresentEmptyTextAreDistinctFingerprints(t *testing.T) {
	missing := []widget.View{{TempID: 0, Class: "android.widget.TextView", Visible: true}}
	present := []widget.View{{TempID: 0, Class: "android.widget.TextView", Visible: true, TextSet: true}}

	a := New(missing, "com.app/.Main", nil)
	b := New(present, "com.app/.Main", nil)
	assert.NotEqual(t, a.StateStr(), b.StateStr())
}
