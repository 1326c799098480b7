package llmagent

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/smilemakc/uxplore/internal/domain/cluster"
	"github.com/smilemakc/uxplore/internal/domain/devicestate"
	"github.com/smilemakc/uxplore/internal/domain/event"
	"github.com/smilemakc/uxplore/internal/domain/utg"
	"github.com/smilemakc/uxplore/internal/domain/widget"
)

type scriptedOracle struct {
	response string
	err      error
}

func (o scriptedOracle) Ask(ctx context.Context, prompt string) (string, error) {
	return o.response, o.err
}

func loginState() *devicestate.DeviceState {
	return devicestate.New([]widget.View{
		{TempID: 0, Class: "android.widget.Button", ResourceID: "submit", Text: "Submit", Visible: true, Enabled: true, Clickable: true},
	}, "com.app/.Login", nil)
}

func newTestAgent(oracle Oracle) (*Agent, *utg.UTG) {
	u := utg.New("com.app", false)
	return New(oracle, nil, u, "app", "an example app"), u
}

func TestParseStateRef(t *testing.T) {
	assert.Equal(t, 3, parseStateRef(float64(3)))
	assert.Equal(t, 5, parseStateRef("State5"))
	assert.Equal(t, -1, parseStateRef("not-a-state"))
	assert.Equal(t, -1, parseStateRef(true))
}

func TestExtractJSONObject(t *testing.T) {
	assert.Equal(t, `{"a":1}`, extractJSONObject(`here you go: {"a":1} thanks`))
	assert.Equal(t, "no braces here", extractJSONObject("no braces here"))
	assert.Equal(t, `{"nested":{"b":2}}`, extractJSONObject(`prose {"nested":{"b":2}} more prose`))
}

func TestToInt(t *testing.T) {
	assert.Equal(t, 4, toInt(float64(4)))
	assert.Equal(t, 4, toInt(4))
	assert.Equal(t, 4, toInt("4"))
	assert.Equal(t, 0, toInt(nil))
}

func TestActionKindToEventKind(t *testing.T) {
	assert.Equal(t, event.KindTouch, actionKindToEventKind(widget.ActionClick))
	assert.Equal(t, event.KindLongTouch, actionKindToEventKind(widget.ActionLongClick))
	assert.Equal(t, event.KindScroll, actionKindToEventKind(widget.ActionScrollTopDown))
	assert.Equal(t, event.KindScroll, actionKindToEventKind(widget.ActionScrollBottomUp))
	assert.Equal(t, event.KindScroll, actionKindToEventKind(widget.ActionScrollLeftRight))
	assert.Equal(t, event.KindScroll, actionKindToEventKind(widget.ActionScrollRightLeft))
	assert.Equal(t, event.KindSetText, actionKindToEventKind(widget.ActionInput))
}

func TestActionDescription(t *testing.T) {
	assert.Equal(t, "click", actionDescription(event.Touch(1)))
	assert.Equal(t, "long click", actionDescription(event.LongTouch(1)))
	assert.Equal(t, "scroll", actionDescription(event.ScrollEvent(1, event.ScrollDown)))
	assert.Equal(t, `input "hi"`, actionDescription(event.SetText(1, "hi")))
	assert.Equal(t, "action", actionDescription(event.Back()))
}

func TestDescribeExecuted_FindsMatchingLine(t *testing.T) {
	html := "<div>\n<button id=\"3\">Submit</button>\n</div>"
	got := describeExecuted(event.Touch(3), html, 3)
	assert.Contains(t, got, "click on")
	assert.Contains(t, got, `id="3"`)
}

func TestDescribeExecuted_FallsBackWhenNoMatch(t *testing.T) {
	got := describeExecuted(event.Touch(9), "<div></div>", 9)
	assert.Equal(t, "click", got)
}

func TestAddTestedFunction_MarksLocallyAndOnCluster(t *testing.T) {
	a, u := newTestAgent(scriptedOracle{})
	root := loginState()
	cl := cluster.New(0, root)
	u.AddCluster(cl)

	a.mu.Lock()
	a.targetID = cl.ID()
	a.targetFunc = "submit-form"
	a.mu.Unlock()

	a.AddTestedFunction()

	_, ok := a.testedFunctions.Load("submit-form")
	assert.True(t, ok)
	assert.Contains(t, cl.WriteTop5(true).FunctionList, "submit-form")
}

func TestAddTestedFunction_UnknownClusterIsNoOp(t *testing.T) {
	a, _ := newTestAgent(scriptedOracle{})
	a.mu.Lock()
	a.targetID = 42
	a.targetFunc = "ghost-function"
	a.mu.Unlock()

	assert.NotPanics(t, func() { a.AddTestedFunction() })
	_, ok := a.testedFunctions.Load("ghost-function")
	assert.True(t, ok)
}

func TestSetExecutedChecker_IsUsedByCheckExecuted(t *testing.T) {
	a, _ := newTestAgent(scriptedOracle{})
	assert.False(t, a.checkExecuted(event.Touch(1), loginState()))

	a.SetExecutedChecker(func(e event.Event, s *devicestate.DeviceState) bool { return true })
	assert.True(t, a.checkExecuted(event.Touch(1), loginState()))
}

func TestClearExecutedEvents_EmptiesTranscript(t *testing.T) {
	a, _ := newTestAgent(scriptedOracle{})
	a.mu.Lock()
	a.executedEvents = append(a.executedEvents, "click on submit")
	a.mu.Unlock()

	a.ClearExecutedEvents()

	a.mu.Lock()
	defer a.mu.Unlock()
	assert.Empty(t, a.executedEvents)
}

func TestAsk_ParsesJSONFromProseResponse(t *testing.T) {
	a, _ := newTestAgent(scriptedOracle{response: `Sure, here it is: {"Overview": "a login screen"} hope that helps`})
	resp, _, err := a.ask(context.Background(), "describe this screen")
	require.NoError(t, err)
	assert.Equal(t, "a login screen", resp["Overview"])
}

func TestAskForOverview_UpdatesClusterFromSmallPool(t *testing.T) {
	oracle := scriptedOracle{response: `{"Overview": "login screen", "Function List": {"submit-form": 0}}`}
	a, _ := newTestAgent(oracle)
	root := loginState()
	cl := cluster.New(0, root)

	a.askForOverview(context.Background(), cl)

	assert.True(t, cl.Analysed())
}

func TestAskForOverview_PreservesLLMFunctionOrder(t *testing.T) {
	oracle := scriptedOracle{response: `{"Overview": "login screen", "Function List": {"signup": 1, "submit-form": 0, "forgot-password": 2}}`}
	a, _ := newTestAgent(oracle)
	root := loginState()
	cl := cluster.New(0, root)

	a.askForOverview(context.Background(), cl)

	top := cl.WriteTop5(true)
	assert.Equal(t, []string{"signup", "submit-form", "forgot-password"}, top.FunctionList,
		"importance must follow the JSON key order the LLM answered in, not alphabetical order")
}

func TestOrderedKeys_PreservesNestedObjectKeyOrder(t *testing.T) {
	raw := []byte(`{"Overview": "x", "Function List": {"zeta": 1, "alpha": 0, "mid": 2}}`)
	assert.Equal(t, []string{"zeta", "alpha", "mid"}, orderedKeys(raw, "Function List"))
}

func TestOrderedKeys_MissingPathReturnsNil(t *testing.T) {
	raw := []byte(`{"Overview": "x"}`)
	assert.Nil(t, orderedKeys(raw, "Function List"))
}

func TestAskForTestFunction_ResolvesClickEvent(t *testing.T) {
	state := loginState()
	oracle := scriptedOracle{response: `{"Element Id": 0, "Action Type": 0}`}
	a, _ := newTestAgent(oracle)
	a.mu.Lock()
	a.targetFunc = "submit-form"
	a.mu.Unlock()

	got := a.askForTestFunction(context.Background(), state)
	require.NotNil(t, got)
	assert.Equal(t, event.KindTouch, got.Kind)
	assert.Equal(t, 0, got.WidgetID)
}

func TestAskForTestFunction_NoActionReturnsNil(t *testing.T) {
	state := loginState()
	oracle := scriptedOracle{response: `{"Element Id": -1, "Action Type": 0}`}
	a, _ := newTestAgent(oracle)

	got := a.askForTestFunction(context.Background(), state)
	assert.Nil(t, got)
}

type fakeTranscript struct {
	titles []string
}

func (t *fakeTranscript) LogPrompt(title, content string) { t.titles = append(t.titles, title) }
func (t *fakeTranscript) LogLatency(d time.Duration, responseLen int) {}

type fakeCorrelation struct {
	id int
}

func (f *fakeCorrelation) NextCorrelationID() string {
	f.id++
	return fmt.Sprintf("cid-%d", f.id)
}

func TestAsk_TagsTranscriptWithCorrelationID(t *testing.T) {
	u := utg.New("com.app", false)
	tr := &fakeTranscript{}
	a := New(scriptedOracle{response: `{"ok": true}`}, tr, u, "app", "desc")
	a.SetCorrelationSource(&fakeCorrelation{})

	_, _, err := a.ask(context.Background(), "describe this screen")
	require.NoError(t, err)

	require.Len(t, tr.titles, 2)
	assert.Equal(t, "Prompt [cid-1]", tr.titles[0])
	assert.Equal(t, "Response [cid-1]", tr.titles[1])
}

func TestAsk_OmitsTagWithoutCorrelationSource(t *testing.T) {
	u := utg.New("com.app", false)
	tr := &fakeTranscript{}
	a := New(scriptedOracle{response: `{"ok": true}`}, tr, u, "app", "desc")

	_, _, err := a.ask(context.Background(), "describe this screen")
	require.NoError(t, err)

	require.Len(t, tr.titles, 2)
	assert.Equal(t, "Prompt", tr.titles[0])
	assert.Equal(t, "Response", tr.titles[1])
}
