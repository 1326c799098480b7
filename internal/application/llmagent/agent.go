// Package llmagent implements LLMAgent: the async worker that turns page
// and cluster state into prompts, asks an oracle, and turns its JSON
// replies back into domain decisions (spec.md §4.F).
package llmagent

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/puzpuzpuz/xsync/v3"
	"github.com/rs/zerolog/log"

	"github.com/smilemakc/uxplore/internal/application/retry"
	"github.com/smilemakc/uxplore/internal/domain/cluster"
	"github.com/smilemakc/uxplore/internal/domain/devicestate"
	"github.com/smilemakc/uxplore/internal/domain/event"
	"github.com/smilemakc/uxplore/internal/domain/utg"
	"github.com/smilemakc/uxplore/internal/domain/uxerrors"
	"github.com/smilemakc/uxplore/internal/domain/widget"
)

// Mode discriminates the kind of question a Payload carries.
type Mode int

const (
	ModeOverview Mode = iota
	ModeGuide
	ModeTestFunction
	ModeExplore
	ModeReanalysis
)

// Oracle is the abstract "ask(prompt) -> response" LLM collaborator the
// core depends on but never implements directly (spec.md §1 "Out of
// scope").
type Oracle interface {
	Ask(ctx context.Context, prompt string) (string, error)
}

// Transcript records prompt/response pairs and latency, the supplemented
// per-run audit trail (spec.md §12).
type Transcript interface {
	LogPrompt(title, content string)
	LogLatency(d time.Duration, responseLen int)
}

// CorrelationSource mints a fresh id per LLM round trip so a transcript line
// can be tied back to the exchange that produced it (spec.md §6, §12).
// Wired to *session.Session by the caller; a nil source (the zero value)
// simply omits the tag.
type CorrelationSource interface {
	NextCorrelationID() string
}

// Payload is one unit of LLM work.
type Payload struct {
	Mode               Mode
	Cluster            *cluster.StateCluster
	State              *devicestate.DeviceState
	FirstFuncExecution bool
}

// GuidanceResult is the answer to a GUIDE question.
type GuidanceResult struct {
	TargetStateID int
	TargetFunc    string
}

type job struct {
	mode Mode
	run  func(ctx context.Context)
}

// Agent is the async work-queue that serializes all LLM traffic through one
// worker loop, with a high-priority queue (OVERVIEW/GUIDE/TEST_FUNCTION) and
// a low-priority one (REANALYSIS), so background reanalysis never starves
// the decisions gating forward progress (spec.md §4.F, §9 "dual-priority
// work queue").
type Agent struct {
	oracle     Oracle
	transcript Transcript
	utg        *utg.UTG

	startPrompt string

	mu                sync.Mutex
	topValuedClusters []*cluster.StateCluster
	p2                int
	targetID          int
	targetFunc        string
	executedEvents    []string

	// testedFunctions is read by the worker loop (askForGuidance) and
	// written by the controller goroutine (AddTestedFunction) without
	// going through mu, so it uses a lock-free map (spec.md §11 xsync).
	testedFunctions *xsync.MapOf[string, struct{}]

	highQueue chan job
	lowQueue  chan job
	remaining int32

	executedCheck func(event.Event, *devicestate.DeviceState) bool
	correlation   CorrelationSource
}

// SetCorrelationSource wires the session id generator used to tag transcript
// log lines. Optional: without it, prompts are logged untagged.
func (a *Agent) SetCorrelationSource(src CorrelationSource) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.correlation = src
}

// New creates an Agent. appName/appDesc seed the fixed preamble every
// prompt carries.
func New(oracle Oracle, transcript Transcript, u *utg.UTG, appName, appDesc string) *Agent {
	return &Agent{
		oracle:          oracle,
		transcript:      transcript,
		utg:             u,
		startPrompt:     fmt.Sprintf("I'm now testing an app called %s on Android.\n%s\n", appName, appDesc),
		p2:              10,
		testedFunctions: xsync.NewMapOf[string, struct{}](),
		targetID:        -1,
		highQueue:       make(chan job, 64),
		lowQueue:        make(chan job, 64),
	}
}

// Run drives the worker loop until ctx is cancelled, preferring the
// high-priority queue and falling back to the low-priority one (spec.md §9).
func (a *Agent) Run(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		case j := <-a.highQueue:
			a.runJob(ctx, j)
			continue
		default:
		}

		select {
		case <-ctx.Done():
			return
		case j := <-a.highQueue:
			a.runJob(ctx, j)
		case j := <-a.lowQueue:
			a.runJob(ctx, j)
		case <-time.After(time.Second):
		}
	}
}

func (a *Agent) runJob(ctx context.Context, j job) {
	defer atomic.AddInt32(&a.remaining, -1)
	func() {
		defer func() {
			if r := recover(); r != nil {
				log.Error().Interface("panic", r).Msg("llm agent job panicked")
			}
		}()
		j.run(ctx)
	}()
}

// WaitUntilQueueEmpty blocks until every pushed question has been answered
// or ctx is cancelled.
func (a *Agent) WaitUntilQueueEmpty(ctx context.Context) {
	for {
		if atomic.LoadInt32(&a.remaining) == 0 {
			return
		}
		select {
		case <-ctx.Done():
			return
		case <-time.After(3 * time.Second):
		}
	}
}

func (a *Agent) enqueueHigh(mode Mode, run func(context.Context)) {
	atomic.AddInt32(&a.remaining, 1)
	a.highQueue <- job{mode: mode, run: run}
}

// AskOverview enqueues an OVERVIEW question for c. The response is merged
// into c asynchronously; the caller does not wait on it directly.
func (a *Agent) AskOverview(c *cluster.StateCluster) {
	a.enqueueHigh(ModeOverview, func(ctx context.Context) { a.askForOverview(ctx, c) })
}

// AskGuidance enqueues a GUIDE question and returns a channel receiving the
// chosen target once answered.
func (a *Agent) AskGuidance() <-chan GuidanceResult {
	out := make(chan GuidanceResult, 1)
	a.enqueueHigh(ModeGuide, func(ctx context.Context) { out <- a.askForGuidance(ctx) })
	return out
}

// AskTestFunction enqueues a TEST_FUNCTION question against state and
// returns a channel receiving the chosen next event, or nil if the model
// believes the function is already exercised or unreachable here.
func (a *Agent) AskTestFunction(state *devicestate.DeviceState) <-chan *event.Event {
	out := make(chan *event.Event, 1)
	a.enqueueHigh(ModeTestFunction, func(ctx context.Context) { out <- a.askForTestFunction(ctx, state) })
	return out
}

// AskReanalysis enqueues a REANALYSIS question for c, but only if c is
// currently within the top-P2 valued clusters — reanalysis of a cluster the
// controller no longer considers important is not worth the tokens
// (spec.md §4.F). Returns false if the cluster was not enqueued.
func (a *Agent) AskReanalysis(c *cluster.StateCluster) bool {
	a.mu.Lock()
	limit := a.p2
	if limit > len(a.topValuedClusters) {
		limit = len(a.topValuedClusters)
	}
	within := false
	for _, tc := range a.topValuedClusters[:limit] {
		if tc == c {
			within = true
			break
		}
	}
	a.mu.Unlock()
	if !within {
		return false
	}

	atomic.AddInt32(&a.remaining, 1)
	select {
	case a.lowQueue <- job{mode: ModeReanalysis, run: func(ctx context.Context) { a.askForReanalysis(ctx, c) }}:
	default:
		atomic.AddInt32(&a.remaining, -1)
		log.Warn().Msg("reanalysis queue full, dropping request")
		return false
	}
	return true
}

// AddTestedFunction marks the most recently guided-to function as tested,
// both locally (so GUIDE never repeats it) and on its owning cluster
// (spec.md §4.G step 5/6).
func (a *Agent) AddTestedFunction() {
	a.mu.Lock()
	targetID, targetFunc := a.targetID, a.targetFunc
	a.mu.Unlock()
	a.testedFunctions.Store(targetFunc, struct{}{})

	c := a.utg.FindClusterByID(targetID)
	if c == nil {
		log.Warn().Int("cluster_id", targetID).Str("function", targetFunc).Msg("cannot mark function tested: cluster not found")
		return
	}
	c.UpdateTestedFunction(targetFunc)
}

// ClearExecutedEvents resets the TEST_FUNCTION transcript of already-tried
// actions, called whenever the controller re-enters EXPLORE (spec.md §4.G).
func (a *Agent) ClearExecutedEvents() {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.executedEvents = a.executedEvents[:0]
}

// SetExecutedChecker installs the predicate OVERVIEW/REANALYSIS merges use to
// pre-arm functions whose widget was already exercised before the model
// labelled it (spec.md §4.F #1/#4 "Listener pattern"). The controller wires
// this to the UTG's explored-event bookkeeping.
func (a *Agent) SetExecutedChecker(fn func(event.Event, *devicestate.DeviceState) bool) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.executedCheck = fn
}

func (a *Agent) checkExecuted(e event.Event, s *devicestate.DeviceState) bool {
	a.mu.Lock()
	fn := a.executedCheck
	a.mu.Unlock()
	if fn == nil {
		return false
	}
	return fn(e, s)
}

func (a *Agent) askForOverview(ctx context.Context, c *cluster.StateCluster) {
	prompt := a.startPrompt + functionExplanation + inputExplanationOverview
	prompt += "\n```HTML Description\n"
	desc := c.ToDescription()
	if len(desc) > 7000 {
		desc = desc[:7000]
	}
	prompt += desc + "\n```\n"

	a.mu.Lock()
	haveFive := len(a.topValuedClusters) >= 5
	var top5 map[string]cluster.TopFunctions
	if haveFive {
		top5 = make(map[string]cluster.TopFunctions)
		count := 0
		for _, tc := range a.topValuedClusters {
			if tc.HasUntestedFunction() {
				top5[fmt.Sprintf("State%d", tc.ID())] = tc.WriteTop5(false)
				count++
				if count == 5 {
					break
				}
			}
		}
	}
	a.mu.Unlock()

	if haveFive {
		prompt += requiredOutputOverview
		b, _ := json.MarshalIndent(top5, "", "    ")
		prompt += fmt.Sprintf("Current State: %d\n", c.ID())
		prompt += fmt.Sprintf("Five other States:\n%s\n", string(b))
		prompt += requiredOutputOverviewSummary + answerFormatOverview
	} else {
		prompt += requiredOutputOverview2 + requiredOutputOverviewSummary2 + answerFormatOverview2
	}

	resp, jsonStr, err := a.ask(ctx, prompt)
	if err != nil {
		log.Error().Err(err).Msg("overview question failed")
		return
	}

	overview, _ := resp["Overview"].(string)
	functions := make(cluster.OverviewFunctionList)
	if raw, ok := resp["Function List"].(map[string]interface{}); ok {
		for name, v := range raw {
			functions[name] = toInt(v)
		}
	}
	order := orderedKeys([]byte(jsonStr), "Function List")

	c.UpdateFromOverview(overview, functions, order, a.checkExecuted)

	a.mu.Lock()
	defer a.mu.Unlock()
	if haveFive {
		topList := resp["Top5"]
		if topList == nil {
			topList = resp["Top 5"]
		}
		items, _ := topList.([]interface{})
		originalFirst5 := append([]*cluster.StateCluster(nil), a.topValuedClusters[:5]...)
		newFirst5 := make([]*cluster.StateCluster, 0, 5)
		for _, elem := range items {
			id := parseStateRef(elem)
			if id < 0 {
				log.Warn().Msg("overview Top5 element is neither int nor state string")
				continue
			}
			if found := a.utg.FindClusterByID(id); found != nil {
				newFirst5 = append(newFirst5, found)
			}
		}
		for len(newFirst5) < 5 && len(newFirst5) < len(originalFirst5) {
			newFirst5 = append(newFirst5, originalFirst5[len(newFirst5)])
		}

		var toInsert []*cluster.StateCluster
		for _, oc := range originalFirst5 {
			found := false
			for _, elem := range items {
				if parseStateRef(elem) == oc.ID() {
					found = true
					break
				}
			}
			if found {
				toInsert = append(toInsert, oc)
			}
		}

		rest := append([]*cluster.StateCluster(nil), a.topValuedClusters[5:]...)
		a.topValuedClusters = append(append(newFirst5, toInsert...), rest...)
	} else {
		a.topValuedClusters = append(a.topValuedClusters, c)
	}
}

func parseStateRef(elem interface{}) int {
	switch v := elem.(type) {
	case float64:
		return int(v)
	case string:
		n, err := strconv.Atoi(strings.TrimPrefix(v, "State"))
		if err != nil {
			return -1
		}
		return n
	default:
		return -1
	}
}

func (a *Agent) askForGuidance(ctx context.Context) GuidanceResult {
	prompt := a.startPrompt + inputExplanationGuidance

	a.mu.Lock()
	limit := a.p2
	if limit > len(a.topValuedClusters) {
		limit = len(a.topValuedClusters)
	}
	clusterInfo := make(map[string]cluster.TopFunctions)
	for _, c := range a.topValuedClusters[:limit] {
		if c.HasUntestedFunction() {
			clusterInfo[fmt.Sprintf("State%d", c.ID())] = c.WriteTop5(false)
		}
	}
	if len(clusterInfo) == 0 {
		log.Warn().Msg("all clusters' functions are tested, falling back to full lists")
		for _, c := range a.topValuedClusters[:limit] {
			clusterInfo[fmt.Sprintf("State%d", c.ID())] = c.WriteTop5(true)
		}
	}
	a.mu.Unlock()

	var testedBuilder strings.Builder
	a.testedFunctions.Range(func(fn string, _ struct{}) bool {
		testedBuilder.WriteString(fn)
		testedBuilder.WriteString(", ")
		return true
	})

	b, _ := json.MarshalIndent(clusterInfo, "", "    ")
	prompt += fmt.Sprintf("\n```State Information\n%s\n```\n", string(b))
	prompt += requiredOutputGuidance1 + "{" + testedBuilder.String() + "}" + requiredOutputGuidance2
	prompt += answerFormatGuidance

	resp, _, err := a.ask(ctx, prompt)
	if err != nil {
		log.Error().Err(err).Msg("guidance question failed")
		return GuidanceResult{TargetStateID: -1}
	}

	targetStateStr, _ := resp["Target State"].(string)
	targetFunc, _ := resp["Target Function"].(string)
	targetID, err := strconv.Atoi(strings.TrimPrefix(targetStateStr, "State"))
	if err != nil {
		targetID = -1
	}

	a.mu.Lock()
	a.targetID = targetID
	a.targetFunc = targetFunc
	a.mu.Unlock()

	targetCluster := a.utg.FindClusterByID(targetID)
	if targetCluster == nil {
		return GuidanceResult{TargetStateID: -1, TargetFunc: targetFunc}
	}
	stateID, ok := targetCluster.GetTargetState(targetFunc)
	if !ok {
		stateID = -1
	}
	return GuidanceResult{TargetStateID: stateID, TargetFunc: targetFunc}
}

func (a *Agent) askForTestFunction(ctx context.Context, state *devicestate.DeviceState) *event.Event {
	prompt := a.startPrompt + inputExplanationTest
	html := state.ToHTML()
	prompt += fmt.Sprintf("\n```Page Description\n%s```\n", html)

	a.mu.Lock()
	prompt += fmt.Sprintf("The target function I want to test is: %s\n", a.targetFunc)
	if len(a.executedEvents) > 0 {
		prompt += fmt.Sprintf("\nI have already executed: [%s]\n", strings.Join(a.executedEvents, ",\n"))
	}
	hasExecuted := len(a.executedEvents) > 0
	a.mu.Unlock()

	prompt += requiredOutputTest + "\n" + answerFormatTest + "\n"
	if hasExecuted {
		prompt += answerFormatTestEmpty
	}

	resp, _, err := a.ask(ctx, prompt)
	if err != nil {
		log.Error().Err(err).Msg("test-function question failed")
		return nil
	}

	widgetID := toInt(resp["Element Id"])
	offset := toInt(resp["Action Type"])
	actionKind, ok := widget.ActionKindFromOffset(offset)
	if !ok {
		log.Warn().Int("offset", offset).Msg("unrecognized action type in LLM response")
		return nil
	}

	if widgetID == -1 {
		return nil
	}

	kind := actionKindToEventKind(actionKind)
	e := state.FindEventByIDAndType(widgetID, kind)
	if e == nil {
		return nil
	}
	if e.Kind == event.KindSetText {
		if text, ok := resp["Input"].(string); ok {
			e.Text = text
		}
	}

	a.mu.Lock()
	a.executedEvents = append(a.executedEvents, describeExecuted(*e, html, widgetID))
	a.mu.Unlock()
	return e
}

func describeExecuted(e event.Event, html string, widgetID int) string {
	marker := fmt.Sprintf("id=\"%d\"", widgetID)
	for _, line := range strings.Split(html, "\n") {
		if strings.Contains(line, marker) {
			return fmt.Sprintf("%s on %s", actionDescription(e), strings.TrimSpace(line))
		}
	}
	return actionDescription(e)
}

func actionDescription(e event.Event) string {
	switch e.Kind {
	case event.KindTouch:
		return "click"
	case event.KindLongTouch:
		return "long click"
	case event.KindScroll:
		return "scroll"
	case event.KindSetText:
		return fmt.Sprintf("input %q", e.Text)
	default:
		return "action"
	}
}

func actionKindToEventKind(k widget.ActionKind) event.Kind {
	switch k {
	case widget.ActionClick:
		return event.KindTouch
	case widget.ActionLongClick:
		return event.KindLongTouch
	case widget.ActionScrollTopDown, widget.ActionScrollBottomUp, widget.ActionScrollLeftRight, widget.ActionScrollRightLeft:
		return event.KindScroll
	case widget.ActionInput:
		return event.KindSetText
	default:
		return event.KindTouch
	}
}

func (a *Agent) askForReanalysis(ctx context.Context, c *cluster.StateCluster) {
	prompt := a.startPrompt + inputExplanationReanalysis1
	prompt += "```Overview and Function List\n"
	snap := c.ToJSON(true)
	b, _ := json.MarshalIndent(snap, "", "    ")
	prompt += string(b) + "\n```\n"

	prompt += inputExplanationReanalysis2
	prompt += "```Controls in HTML Description\n"

	type widgetRef struct {
		id    int
		state *devicestate.DeviceState
		w     *widget.Widget
	}
	widgetsByID := make(map[int]widgetRef)
	root := c.RootState()
	id := 1
	for _, s := range c.States() {
		for _, w := range s.DiffWidgets(root) {
			widgetsByID[id] = widgetRef{id: id, state: s, w: w}
			id++
		}
	}
	if len(widgetsByID) == 0 {
		log.Warn().Int("cluster_id", c.ID()).Msg("no differing widgets to reanalyse")
		return
	}

	uniqueByHTML := make(map[string][]int)
	order := make([]int, 0, len(widgetsByID))
	for i := 1; i < id; i++ {
		order = append(order, i)
	}
	for _, wid := range order {
		ref := widgetsByID[wid]
		html := ref.w.RenderWithID(0, nil, false)
		uniqueByHTML[html] = append(uniqueByHTML[html], wid)
	}

	for _, ids := range uniqueByHTML {
		rep := widgetsByID[ids[0]]
		prompt += rep.w.RenderWithID(ids[0], nil, false)
	}
	prompt += "```\n"
	prompt += requiredOutputReanalysis + answerFormatReanalysis

	resp, _, err := a.ask(ctx, prompt)
	if err != nil {
		log.Error().Err(err).Msg("reanalysis question failed")
		return
	}

	assignment := make(cluster.ReanalysisAssignment)
	for key, v := range resp {
		n, err := strconv.Atoi(key)
		if err != nil {
			continue
		}
		fn, _ := v.(string)
		if fn != "" {
			assignment[n] = fn
		}
	}

	group := func(widgetID int) []struct {
		State  *devicestate.DeviceState
		Widget *widget.Widget
	} {
		var out []struct {
			State  *devicestate.DeviceState
			Widget *widget.Widget
		}
		html := widgetsByID[widgetID].w.RenderWithID(0, nil, false)
		for _, wid := range uniqueByHTML[html] {
			ref := widgetsByID[wid]
			out = append(out, struct {
				State  *devicestate.DeviceState
				Widget *widget.Widget
			}{State: ref.state, Widget: ref.w})
		}
		return out
	}

	c.UpdateFromReanalysis(assignment, group, a.checkExecuted)
}

// ask sends prompt to the oracle under the spec-mandated 5-attempt, fixed
// 3-second-backoff retry policy (spec.md §4.F), logging the round trip to
// the transcript, then extracts and parses the JSON object between the
// first '{' and last '}' in the reply (models routinely wrap JSON in prose
// or code fences). A reply that does not parse is asked again, up to 5
// asks in all with the same 3-second wait between them; each ask gets its
// own run of the oracle retry policy.
// ask returns both the parsed response map and the raw JSON text it was
// parsed from: map[string]interface{} loses object key order on unmarshal,
// but some callers (askForOverview) need that order preserved, so they
// re-walk the raw text with orderedKeys instead of trusting map iteration.
func (a *Agent) ask(ctx context.Context, prompt string) (map[string]interface{}, string, error) {
	a.mu.Lock()
	correlation := a.correlation
	a.mu.Unlock()
	promptTitle, responseTitle := "Prompt", "Response"
	if correlation != nil {
		cid := correlation.NextCorrelationID()
		promptTitle = fmt.Sprintf("Prompt [%s]", cid)
		responseTitle = fmt.Sprintf("Response [%s]", cid)
	}

	if a.transcript != nil {
		a.transcript.LogPrompt(promptTitle, prompt)
	}

	for attempt := 0; ; attempt++ {
		begin := time.Now()
		var response string
		err := retry.Do(ctx, retry.LLMPolicy(), func(int) error {
			var askErr error
			response, askErr = a.oracle.Ask(ctx, prompt)
			return askErr
		})
		if err != nil {
			return nil, "", uxerrors.NewLLMFailureError("ask", attempt, err, true)
		}

		elapsed := time.Since(begin)
		if a.transcript != nil {
			a.transcript.LogLatency(elapsed, len(response))
			a.transcript.LogPrompt(responseTitle, response)
		}
		log.Info().Str("response", response).Msg("received llm response")

		jsonStr := extractJSONObject(response)
		resp := make(map[string]interface{})
		if err := json.Unmarshal([]byte(jsonStr), &resp); err != nil {
			log.Warn().Err(err).Msg("llm response is not valid json, asking again")
			if attempt >= retry.LLMPolicy().MaxAttempts-1 {
				return nil, "", uxerrors.NewLLMFailureError("parse", attempt, err, false)
			}
			select {
			case <-ctx.Done():
				return nil, "", uxerrors.NewLLMFailureError("parse", attempt, ctx.Err(), false)
			case <-time.After(retry.LLMPolicy().InitialDelay):
			}
			continue
		}
		return resp, jsonStr, nil
	}
}

// orderedKeys walks raw (a JSON object) following path — a sequence of
// nested object keys — and returns the keys of the object found at that
// path in their original JSON occurrence order. encoding/json's
// map[string]interface{} unmarshal discards this order entirely, but the
// OVERVIEW prompt's "Function List" relies on it as the model's priority
// ranking (spec.md §4.F #1), so callers that need it re-walk the raw text
// token by token instead. Returns nil if path doesn't resolve to an object.
func orderedKeys(raw []byte, path ...string) []string {
	dec := json.NewDecoder(bytes.NewReader(raw))
	if !openObject(dec) {
		return nil
	}
	for cur := 0; ; {
		if cur == len(path) {
			return collectKeys(dec)
		}
		key, val, ok := nextEntry(dec)
		if !ok {
			return nil
		}
		if key != path[cur] {
			skipValue(dec, val)
			continue
		}
		d, ok := val.(json.Delim)
		if !ok || d != '{' {
			return nil
		}
		cur++
	}
}

func openObject(dec *json.Decoder) bool {
	tok, err := dec.Token()
	if err != nil {
		return false
	}
	d, ok := tok.(json.Delim)
	return ok && d == '{'
}

// nextEntry reads one key/value pair from the object dec is positioned
// inside. val is the value's first token: a json.Delim for objects/arrays,
// or the literal itself for scalars.
func nextEntry(dec *json.Decoder) (key string, val json.Token, ok bool) {
	if !dec.More() {
		return "", nil, false
	}
	keyTok, err := dec.Token()
	if err != nil {
		return "", nil, false
	}
	key, _ = keyTok.(string)
	val, err = dec.Token()
	if err != nil {
		return "", nil, false
	}
	return key, val, true
}

// skipValue consumes the remaining tokens of a value whose first token was
// first, so dec ends positioned after it regardless of its shape.
func skipValue(dec *json.Decoder, first json.Token) {
	d, ok := first.(json.Delim)
	if !ok || (d != '{' && d != '[') {
		return
	}
	depth := 1
	for depth > 0 {
		tok, err := dec.Token()
		if err != nil {
			return
		}
		if dd, ok := tok.(json.Delim); ok {
			switch dd {
			case '{', '[':
				depth++
			case '}', ']':
				depth--
			}
		}
	}
}

// collectKeys returns the string keys of the object dec is positioned
// inside, in occurrence order, leaving dec past its closing brace.
func collectKeys(dec *json.Decoder) []string {
	var keys []string
	for dec.More() {
		key, val, ok := nextEntry(dec)
		if !ok {
			return keys
		}
		keys = append(keys, key)
		skipValue(dec, val)
	}
	dec.Token() // closing '}'
	return keys
}

func extractJSONObject(s string) string {
	start := strings.Index(s, "{")
	end := strings.LastIndex(s, "}")
	if start == -1 || end == -1 || end < start {
		return s
	}
	return s[start : end+1]
}

func toInt(v interface{}) int {
	switch n := v.(type) {
	case float64:
		return int(n)
	case int:
		return n
	case string:
		i, _ := strconv.Atoi(n)
		return i
	default:
		return 0
	}
}
