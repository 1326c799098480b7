package cluster

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/smilemakc/uxplore/internal/domain/devicestate"
	"github.com/smilemakc/uxplore/internal/domain/event"
	"github.com/smilemakc/uxplore/internal/domain/widget"
)

func homeState() *devicestate.DeviceState {
	views := []widget.View{
		{TempID: 0, Class: "android.widget.Button", ResourceID: "com.app:id/login", Text: "Login", Visible: true, Enabled: true, Clickable: true},
	}
	return devicestate.New(views, "com.app/.Home", nil)
}

func TestNew_AssignsClusterToRoot(t *testing.T) {
	root := homeState()
	c := New(0, root)

	id, ok := root.Cluster()
	require.True(t, ok)
	assert.Equal(t, 0, id)
	assert.Equal(t, root, c.RootState())
}

func TestAddState_Idempotent(t *testing.T) {
	c := New(0, homeState())
	other := homeState()

	c.AddState(other)
	c.AddState(other)

	assert.Len(t, c.States(), 2)
}

func TestUpdateFromOverview_RanksByGivenOrderDescending(t *testing.T) {
	c := New(0, homeState())
	functions := OverviewFunctionList{"login": 0, "help": -1}

	c.UpdateFromOverview("A login screen", functions, []string{"help", "login"}, func(event.Event, *devicestate.DeviceState) bool { return false })

	assert.True(t, c.Analysed())
	top := c.WriteTop5(true)
	assert.Equal(t, "A login screen", top.Overview)
	assert.Equal(t, []string{"help", "login"}, top.FunctionList, "the LLM's JSON key order is the priority ranking, first key highest")
}

func TestUpdateFromOverview_MissingOrderFallsBackDeterministically(t *testing.T) {
	c := New(0, homeState())
	functions := OverviewFunctionList{"login": 0, "help": -1}

	c.UpdateFromOverview("A login screen", functions, nil, func(event.Event, *devicestate.DeviceState) bool { return false })

	top := c.WriteTop5(true)
	assert.ElementsMatch(t, []string{"login", "help"}, top.FunctionList)
}

func TestUpdateFromOverview_LabelsRootWidget(t *testing.T) {
	root := homeState()
	c := New(0, root)
	functions := OverviewFunctionList{"login": 0}

	c.UpdateFromOverview("desc", functions, []string{"login"}, func(event.Event, *devicestate.DeviceState) bool { return false })

	w := root.FindWidgetByID(0)
	require.NotNil(t, w)
	assert.Equal(t, "login", w.Function())
}

func TestAddState_AfterAnalysisMarksNeedsReanalyse(t *testing.T) {
	root := homeState()
	c := New(0, root)
	c.UpdateFromOverview("desc", OverviewFunctionList{"login": 0}, []string{"login"}, func(event.Event, *devicestate.DeviceState) bool { return false })

	assert.False(t, c.NeedReanalyse())
	c.AddState(homeState())
	assert.True(t, c.NeedReanalyse())
}

func TestOnActionExecuted_MarksImportanceZero(t *testing.T) {
	root := homeState()
	c := New(0, root)
	c.UpdateFromOverview("desc", OverviewFunctionList{"login": 0}, []string{"login"}, func(event.Event, *devicestate.DeviceState) bool { return false })

	require.True(t, c.HasUntestedFunction())
	c.OnActionExecuted(event.Touch(0), root)
	assert.False(t, c.HasUntestedFunction())
}

func TestUpdateTestedFunction_CreatesEntryIfMissing(t *testing.T) {
	c := New(0, homeState())
	c.UpdateTestedFunction("signup")
	top := c.WriteTop5(true)
	assert.Contains(t, top.FunctionList, "signup")
	assert.False(t, c.HasUntestedFunction())
}

func TestWriteTop5_FiltersUntestedUnlessIgnored(t *testing.T) {
	c := New(0, homeState())
	c.UpdateFromOverview("desc", OverviewFunctionList{"login": 0}, []string{"login"}, func(event.Event, *devicestate.DeviceState) bool { return false })
	c.UpdateTestedFunction("login")

	assert.Empty(t, c.WriteTop5(false).FunctionList, "tested function excluded unless ignoreImportance")
	assert.Len(t, c.WriteTop5(true).FunctionList, 1)
}

func TestWriteTop5_CapsAtFive(t *testing.T) {
	c := New(0, homeState())
	functions := OverviewFunctionList{}
	order := []string{"a", "b", "c", "d", "e", "f"}
	for i, name := range order {
		functions[name] = i
	}
	c.UpdateFromOverview("desc", functions, order, func(event.Event, *devicestate.DeviceState) bool { return false })

	assert.Len(t, c.WriteTop5(true).FunctionList, 5)
}

func TestGetTargetState(t *testing.T) {
	root := homeState()
	root.SetID(42)
	c := New(0, root)
	c.UpdateFromOverview("desc", OverviewFunctionList{"login": 0}, []string{"login"}, func(event.Event, *devicestate.DeviceState) bool { return false })

	id, ok := c.GetTargetState("login")
	require.True(t, ok)
	assert.Equal(t, 42, id)

	_, ok = c.GetTargetState("missing")
	assert.False(t, ok)
}

func TestRegistry_AddGetAllOrderedByID(t *testing.T) {
	r := NewRegistry()
	c2 := New(2, homeState())
	c0 := New(0, homeState())
	c1 := New(1, homeState())

	r.Add(c2)
	r.Add(c0)
	r.Add(c1)

	assert.Equal(t, 3, r.Len())
	got, ok := r.Get(1)
	require.True(t, ok)
	assert.Equal(t, c1, got)

	all := r.All()
	require.Len(t, all, 3)
	assert.Equal(t, []int{0, 1, 2}, []int{all[0].ID(), all[1].ID(), all[2].ID()})
}

func TestRegistry_GetMissing(t *testing.T) {
	r := NewRegistry()
	_, ok := r.Get(99)
	assert.False(t, ok)
}
