package utg

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/smilemakc/uxplore/internal/domain/cluster"
	"github.com/smilemakc/uxplore/internal/domain/devicestate"
	"github.com/smilemakc/uxplore/internal/domain/event"
	"github.com/smilemakc/uxplore/internal/domain/widget"
)

func state(activity string, viewID int, resID string) *devicestate.DeviceState {
	views := []widget.View{
		{TempID: viewID, Class: "android.widget.Button", ResourceID: resID, Text: resID, Visible: true, Enabled: true, Clickable: true},
	}
	return devicestate.New(views, activity, nil)
}

func TestAddNode_AssignsIDOnceAndDedupsByStateStr(t *testing.T) {
	u := New("com.app", false)

	a := state("com.app/.Home", 0, "login")
	canonicalA := u.AddNode(a)
	assert.Equal(t, 0, canonicalA.ID())

	b := state("com.app/.Home", 0, "login")
	canonicalB := u.AddNode(b)
	assert.Same(t, canonicalA, canonicalB, "revisiting an identical state returns the first-seen canonical node")
}

func TestAddNode_FirstStateRecorded(t *testing.T) {
	u := New("com.app", false)
	a := state("com.app/.Home", 0, "login")
	u.AddNode(a)
	assert.Same(t, a, u.FirstState())
}

func TestAddTransition_EffectiveEdgeRecorded(t *testing.T) {
	u := New("com.app", false)
	home := state("com.app/.Home", 0, "login")
	profile := state("com.app/.Profile", 0, "settings")

	e := event.Touch(0)
	result := u.AddTransition(e, home, profile)

	assert.Equal(t, profile.StateStr(), result.StateStr())
	assert.Equal(t, 1, u.EffectiveEventCount())
	assert.Equal(t, 1, u.NumTransitions())
	assert.True(t, u.IsEventExplored(e, home))
}

func TestAddTransition_IneffectiveRetractsPriorEdge(t *testing.T) {
	u := New("com.app", false)
	home := state("com.app/.Home", 0, "login")
	profile := state("com.app/.Profile", 0, "settings")

	e := event.Touch(0)
	u.AddTransition(e, home, profile)
	require.Equal(t, 1, u.EffectiveEventCount())

	// Same event now leads back to an equivalent-content state: ineffective.
	homeAgain := state("com.app/.Home", 0, "login")
	u.AddTransition(e, homeAgain, homeAgain)

	assert.Equal(t, 0, u.EffectiveEventCount(), "the earlier effective edge is retracted once proven ineffective")
}

func TestIsStateExplored(t *testing.T) {
	u := New("com.app", false)
	home := state("com.app/.Home", 0, "login")
	u.AddNode(home)

	assert.False(t, u.IsStateExplored(home))

	for _, e := range home.PossibleInputs() {
		u.AddTransition(e, home, state("com.app/.Other", 0, "x"))
	}
	assert.True(t, u.IsStateExplored(home))
}

func TestIsStateReached_MarksSeenOnce(t *testing.T) {
	u := New("com.app", false)
	home := state("com.app/.Home", 0, "login")

	assert.False(t, u.IsStateReached(home))
	assert.True(t, u.IsStateReached(home))
}

func TestGetReachableStates(t *testing.T) {
	u := New("com.app", false)
	home := state("com.app/.Home", 0, "login")
	profile := state("com.app/.Profile", 0, "settings")
	u.AddTransition(event.Touch(0), home, profile)

	reachable := u.GetReachableStates(home)
	require.Len(t, reachable, 1)
	assert.Equal(t, profile.StateStr(), reachable[0].StateStr())
}

func TestGetNavigationSteps_FindsShortestPath(t *testing.T) {
	u := New("com.app", false)
	home := state("com.app/.Home", 0, "login")
	mid := state("com.app/.Mid", 0, "next")
	dest := state("com.app/.Dest", 0, "done")

	u.AddTransition(event.Touch(0), home, mid)
	canonicalMid := u.FindStateByID(mid.ID())
	u.AddTransition(event.Touch(0), canonicalMid, dest)

	steps, ok := u.GetNavigationSteps(u.FindStateByID(0), u.FindStateByID(2))
	require.True(t, ok)
	assert.Len(t, steps, 2)
}

func TestGetNavigationSteps_NoPathFound(t *testing.T) {
	u := New("com.app", false)
	home := state("com.app/.Home", 0, "login")
	isolated := state("com.app/.Isolated", 0, "x")
	u.AddNode(home)
	u.AddNode(isolated)

	_, ok := u.GetNavigationSteps(home, isolated)
	assert.False(t, ok)
}

func TestStatesAndTransitions_ReflectRecordedGraph(t *testing.T) {
	u := New("com.app", false)
	home := state("com.app/.Home", 0, "login")
	profile := state("com.app/.Profile", 0, "settings")
	u.AddTransition(event.Touch(0), home, profile)

	assert.Len(t, u.States(), 2)
	transitions := u.Transitions()
	require.Len(t, transitions, 1)
	assert.Equal(t, home.StateStr(), transitions[0].Old.StateStr())
	assert.Equal(t, profile.StateStr(), transitions[0].New.StateStr())
}

func TestClusters_AddAndFind(t *testing.T) {
	u := New("com.app", false)
	home := state("com.app/.Home", 0, "login")

	c := cluster.New(0, home)
	u.AddCluster(c)

	assert.Equal(t, 1, u.ClusterCount())
	assert.Same(t, c, u.FindClusterByID(0))
	assert.Nil(t, u.FindClusterByID(99))
}

func TestCurrentCluster(t *testing.T) {
	u := New("com.app", false)
	assert.Nil(t, u.CurrentCluster())

	home := state("com.app/.Home", 0, "login")
	c := cluster.New(0, home)
	u.SetCurrentCluster(c)
	assert.Same(t, c, u.CurrentCluster())
}

func TestGetPaths_PrependsStopStep(t *testing.T) {
	u := New("com.app", false)
	home := state("com.app/.Home", 0, "login")
	dest := state("com.app/.Dest", 0, "done")
	u.AddTransition(event.Touch(0), home, dest)

	paths := u.GetPaths(1)
	require.NotEmpty(t, paths)
	require.NotEmpty(t, paths[0].Steps)
	assert.Equal(t, event.KindIntentStop, paths[0].Steps[0].Event.Kind)
}

func TestGetPaths_UnknownTargetReturnsNil(t *testing.T) {
	u := New("com.app", false)
	assert.Nil(t, u.GetPaths(999))
}
