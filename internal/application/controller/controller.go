// Package controller implements ExplorationController: the mode state
// machine that turns captured DeviceStates into dispatched Events, switching
// between free exploration and LLM-guided navigation once coverage growth
// stalls (spec.md §4.G).
package controller

import (
	"context"
	"strings"

	"github.com/expr-lang/expr"
	"github.com/expr-lang/expr/vm"
	"github.com/rs/zerolog/log"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/smilemakc/uxplore/internal/application/coverage"
	"github.com/smilemakc/uxplore/internal/application/llmagent"
	"github.com/smilemakc/uxplore/internal/domain/cluster"
	"github.com/smilemakc/uxplore/internal/domain/devicestate"
	"github.com/smilemakc/uxplore/internal/domain/event"
	"github.com/smilemakc/uxplore/internal/domain/utg"
	"github.com/smilemakc/uxplore/internal/infrastructure/observer"
)

// Broadcaster is the live feed a Controller pushes UTG growth and
// mode-transition events to. Satisfied by *observer.Hub; nil is a valid
// zero value meaning "no one is watching".
type Broadcaster interface {
	Broadcast(e *observer.Feed)
}

var tracer = otel.Tracer("github.com/smilemakc/uxplore/internal/application/controller")

// Mode is the controller's current driving strategy.
type Mode int

const (
	ModeExplore Mode = iota
	ModeAskGuidance
	ModeNavigate
	ModeTestFunction
)

func (m Mode) String() string {
	switch m {
	case ModeExplore:
		return "EXPLORE"
	case ModeAskGuidance:
		return "ASK_GUIDANCE"
	case ModeNavigate:
		return "NAVIGATE"
	case ModeTestFunction:
		return "TEST_FUNCTION"
	default:
		return "UNKNOWN"
	}
}

// Explorer is the free-exploration fallback: picking the next event when no
// guided navigation or test-function action applies. It is the one piece of
// the mode switch left for a caller to supply, since "which untried event to
// try next" is the random/greedy-fuzzing strategy spec.md §1 scopes out.
type Explorer interface {
	NextEvent(ctx context.Context, state *devicestate.DeviceState) event.Event
}

// exclusionEnv is the expr-lang evaluation environment an operator-supplied
// exclusion rule runs against, e.g. `Class == "android.widget.Button" &&
// Text == "Log out"` (spec.md §11 expr-lang/expr).
type exclusionEnv struct {
	WidgetID   int
	Kind       int
	ResourceID string
	Class      string
	Text       string
	Activity   string
}

const (
	similarityThreshold  = 0.6
	minSimilarityCheck   = 0.50001
	maxSimilarityCheck   = 0.6
	similarityCheckStep  = 0.05
	maxNavigateFailures  = 3
	maxTestFunctionSteps = 5
)

// pathCursor walks one candidate Path, popping steps as guideCheck confirms
// or skips them.
type pathCursor struct {
	steps []utg.Step
}

// Controller drives one exploration session end to end: capturing a state,
// updating the UTG and cluster assignment, deciding the mode, and resolving
// the next event to dispatch (spec.md §4.G).
type Controller struct {
	u         *utg.UTG
	agent     *llmagent.Agent
	cvMonitor *coverage.Monitor
	deadline  *coverage.Deadline
	explorer  Explorer

	mode Mode

	lastEvent *event.Event
	lastState *devicestate.DeviceState

	navigateTarget    int
	executedSteps     int
	functionToTest    string
	currentPath       *pathCursor
	remainingPaths    []pathCursor
	failuresThisRound int

	totalGuideTimes      int
	successfulGuideTimes int

	currentSimilarityCheck float64

	eventByLLM *event.Event

	exclusionRules []*vm.Program

	broadcaster Broadcaster
}

// SetBroadcaster wires a live feed that receives a Feed event at every
// cluster/mode transition. Passing nil disables broadcasting.
func (c *Controller) SetBroadcaster(b Broadcaster) {
	c.broadcaster = b
}

func (c *Controller) broadcast(e *observer.Feed) {
	if c.broadcaster == nil {
		return
	}
	c.broadcaster.Broadcast(e)
}

func (c *Controller) broadcastModeChange() {
	feed := observer.NewFeed(observer.EventModeChanged)
	feed.Mode = c.mode.String()
	c.broadcast(feed)
}

// SetExclusionRules compiles operator-supplied expr-lang rules that mark a
// free-exploration candidate event off-limits (e.g. logout buttons, app
// store rating prompts). A malformed rule is skipped with a logged warning
// rather than failing the whole set.
func (c *Controller) SetExclusionRules(rules []string) {
	c.exclusionRules = c.exclusionRules[:0]
	for _, rule := range rules {
		program, err := expr.Compile(rule, expr.Env(exclusionEnv{}), expr.AsBool())
		if err != nil {
			log.Warn().Err(err).Str("rule", rule).Msg("skipping malformed exclusion rule")
			continue
		}
		c.exclusionRules = append(c.exclusionRules, program)
	}
}

// isExcluded reports whether e targets a widget any exclusion rule matches.
func (c *Controller) isExcluded(e event.Event, state *devicestate.DeviceState) bool {
	if len(c.exclusionRules) == 0 {
		return false
	}
	w := state.FindWidgetByID(e.WidgetID)
	if w == nil {
		return false
	}
	env := exclusionEnv{
		WidgetID:   e.WidgetID,
		Kind:       int(e.Kind),
		ResourceID: w.ResourceID(),
		Class:      w.Class(),
		Text:       w.Text(),
		Activity:   state.ForegroundActivity(),
	}
	for _, program := range c.exclusionRules {
		result, err := expr.Run(program, env)
		if err != nil {
			continue
		}
		if matched, ok := result.(bool); ok && matched {
			return true
		}
	}
	return false
}

// New creates a Controller wired to the exploration session's graph, LLM
// agent and coverage monitor. deadline is the always-present GUIDANCE
// fallback (spec.md §4.E "time" mode / §4.G "rearm time deadline") that
// forces a mode switch even when cvMonitor reports no growth stall.
func New(u *utg.UTG, agent *llmagent.Agent, cvMonitor *coverage.Monitor, deadline *coverage.Deadline, explorer Explorer) *Controller {
	c := &Controller{
		u:                      u,
		agent:                  agent,
		cvMonitor:              cvMonitor,
		deadline:               deadline,
		explorer:               explorer,
		mode:                   ModeExplore,
		navigateTarget:         -1,
		currentSimilarityCheck: maxSimilarityCheck,
	}
	agent.SetExecutedChecker(func(e event.Event, s *devicestate.DeviceState) bool {
		return u.IsEventExplored(e, s)
	})
	return c
}

// Mode returns the controller's current driving strategy.
func (c *Controller) Mode() Mode { return c.mode }

// NextEvent is the per-step entry point: feed it the just-captured state and
// it returns the event to dispatch next, having updated the UTG, cluster
// assignment and mode along the way (spec.md §4.G "generate_event").
func (c *Controller) NextEvent(ctx context.Context, current *devicestate.DeviceState) event.Event {
	ctx, span := tracer.Start(ctx, "Controller.NextEvent")
	defer span.End()

	current = spanStage(ctx, "capture", func(ctx context.Context) *devicestate.DeviceState {
		return c.updateGraph(current)
	})
	feed := observer.NewFeed(observer.EventStateCaptured)
	feed.StateID, feed.Activity = current.ID(), current.ForegroundActivity()
	c.broadcast(feed)

	spanStageVoid(ctx, "cluster-assign", func(ctx context.Context) { c.processState(current) })
	spanStageVoid(ctx, "mode-switch", func(ctx context.Context) { c.switchMode(ctx, current) })
	e := spanStage(ctx, "emit", func(ctx context.Context) event.Event {
		return c.resolveAction(ctx, current)
	})

	span.SetAttributes(attribute.String("mode", c.mode.String()), attribute.Int("state_id", current.ID()))

	c.lastState = current
	ec := e
	c.lastEvent = &ec
	return e
}

func spanStageVoid(ctx context.Context, name string, fn func(context.Context)) {
	spanCtx, span := tracer.Start(ctx, name, trace.WithSpanKind(trace.SpanKindInternal))
	defer span.End()
	fn(spanCtx)
}

func spanStage[T any](ctx context.Context, name string, fn func(context.Context) T) T {
	spanCtx, span := tracer.Start(ctx, name, trace.WithSpanKind(trace.SpanKindInternal))
	defer span.End()
	return fn(spanCtx)
}

func (c *Controller) updateGraph(current *devicestate.DeviceState) *devicestate.DeviceState {
	var e event.Event
	if c.lastEvent == nil {
		return c.u.AddTransition(e, c.lastState, current)
	}
	e = *c.lastEvent

	firstExecution := c.lastState != nil && !c.u.IsEventExplored(e, c.lastState)
	next := c.u.AddTransition(e, c.lastState, current)
	if firstExecution {
		c.fireActionExecuted(e, c.lastState)
	}
	return next
}

// fireActionExecuted notifies the cluster owning state that e has now run at
// least once, so it can retire e's target widget's function from the
// untested list (spec.md §9 "Listener pattern").
func (c *Controller) fireActionExecuted(e event.Event, state *devicestate.DeviceState) {
	clusterID, ok := state.Cluster()
	if !ok {
		return
	}
	cl := c.u.FindClusterByID(clusterID)
	if cl == nil {
		return
	}
	cl.OnActionExecuted(e, state)
}

// processState assigns current to a StateCluster by root-state similarity,
// creating a new cluster and firing its OVERVIEW question when no existing
// cluster's root is similar enough (spec.md §4.C).
func (c *Controller) processState(current *devicestate.DeviceState) {
	found := c.findMostSimilarCluster(current)
	if found != nil {
		found.AddState(current)
		log.Info().Int("state_id", current.ID()).Int("cluster_id", found.ID()).Msg("state joined existing cluster")
		c.u.SetCurrentCluster(found)
		feed := observer.NewFeed(observer.EventClusterUpdated)
		feed.StateID, feed.ClusterID, feed.Activity = current.ID(), found.ID(), current.ForegroundActivity()
		c.broadcast(feed)
		return
	}

	newCluster := cluster.New(c.u.ClusterCount(), current)
	c.u.AddCluster(newCluster)
	log.Info().Int("state_id", current.ID()).Int("cluster_id", newCluster.ID()).Msg("state opened new cluster")
	c.u.SetCurrentCluster(newCluster)
	feed := observer.NewFeed(observer.EventClusterCreated)
	feed.StateID, feed.ClusterID, feed.Activity = current.ID(), newCluster.ID(), current.ForegroundActivity()
	c.broadcast(feed)

	if !strings.HasPrefix(current.ForegroundActivity(), c.u.AppPackage()) {
		log.Info().Str("activity", current.ForegroundActivity()).Msg("cluster root is outside the app under test, skipping overview")
		return
	}
	c.agent.AskOverview(newCluster)
}

func (c *Controller) findMostSimilarCluster(current *devicestate.DeviceState) *cluster.StateCluster {
	cur := c.u.CurrentCluster()
	if cur != nil {
		sim := current.Similarity(cur.RootState())
		log.Debug().Float64("similarity", sim).Int("cluster_id", cur.ID()).Msg("similarity against current cluster root")
		if sim > similarityThreshold {
			return cur
		}
	}

	var best *cluster.StateCluster
	bestSim := 0.0
	for _, cl := range c.u.Clusters() {
		sim := current.Similarity(cl.RootState())
		if sim > similarityThreshold && sim > bestSim {
			bestSim = sim
			best = cl
		}
	}
	return best
}

// switchMode updates code coverage and advances the mode state machine
// (spec.md §4.G). It blocks while waiting for the LLM agent's queue to
// drain before entering ASK_GUIDANCE, and while waiting for the answer to a
// GUIDE or TEST_FUNCTION question.
func (c *Controller) switchMode(ctx context.Context, current *devicestate.DeviceState) {
	if c.cvMonitor != nil {
		c.cvMonitor.Update(ctx)
	}

	if c.mode == ModeExplore {
		if !c.shouldSwitchToGuidance(ctx) {
			return
		}
		c.agent.WaitUntilQueueEmpty(ctx)
		c.mode = ModeAskGuidance
		log.Info().Msg("switching to ASK_GUIDANCE mode")
		c.broadcastModeChange()
	}

	if c.mode == ModeAskGuidance {
		log.Info().Msg("switching to NAVIGATE mode")
		c.prepareForNavigate(ctx, current)
		c.broadcastModeChange()
		return
	}

	if c.mode == ModeNavigate {
		status := c.guideCheck(current)
		switch status {
		case guideStepOK:
			return
		case guideReachedTarget:
			c.onNavigateOver(true)
		default:
			c.onNavigateFailed(ctx, current)
			return
		}
	}

	if c.mode == ModeTestFunction {
		c.prepareTestFunction(ctx, current)
	}
}

func (c *Controller) shouldSwitchToGuidance(ctx context.Context) bool {
	if c.cvMonitor != nil {
		if c.cvMonitor.CheckLowGrowthRate(ctx) {
			log.Info().Msg("low coverage growth rate detected")
			return true
		}
	}
	if c.deadline != nil && c.deadline.Expired() {
		log.Info().Msg("guidance interval elapsed")
		return true
	}
	return false
}

func (c *Controller) prepareForNavigate(ctx context.Context, current *devicestate.DeviceState) {
	c.mode = ModeNavigate
	c.totalGuideTimes++

	result := <-c.agent.AskGuidance()
	c.navigateTarget = result.TargetStateID
	c.functionToTest = result.TargetFunc

	paths := c.u.GetPaths(c.navigateTarget)
	if len(paths) == 0 {
		log.Warn().Int("target", c.navigateTarget).Msg("no path to target state")
		c.onNavigateFailed(ctx, current)
		return
	}
	c.currentPath = newPathCursor(paths[0])
	c.remainingPaths = nil
	for _, p := range paths[1:] {
		c.remainingPaths = append(c.remainingPaths, *newPathCursor(p))
	}
}

func newPathCursor(p utg.Path) *pathCursor {
	return &pathCursor{steps: append([]utg.Step(nil), p.Steps...)}
}

type guideStatus int

const (
	guideStepOK guideStatus = iota
	guideReachedTarget
	guideFailed
)

// guideCheck pops the path's head step and checks whether current matches it
// (spec.md §4.G NAVIGATE substep), substituting a similar-event replacement
// when the device landed on an equivalent-but-not-identical state.
func (c *Controller) guideCheck(current *devicestate.DeviceState) guideStatus {
	targetID := -1
	correct := false

	for len(c.currentPath.steps) > 0 {
		step := c.currentPath.steps[0]
		targetID = step.StateID
		c.currentPath.steps = c.currentPath.steps[1:]

		if current.ID() == targetID || step.Event.Kind == event.KindIntentStop {
			correct = true
			break
		}

		if step.Event.Kind == event.KindIntentStart {
			if len(c.currentPath.steps) == 0 {
				correct = true
				break
			}
			log.Info().Msg("different state after restart, trying to find similar event")
			if replace := c.findReplacement(current, c.currentPath.steps[0].Event); replace != nil {
				c.currentPath.steps[0].Event = *replace
				correct = true
				break
			}
			continue
		}

		target := c.u.FindStateByID(targetID)
		if target == nil {
			log.Error().Int("target_id", targetID).Msg("navigation target state vanished from graph")
			return guideFailed
		}
		sim := current.Similarity(target)
		log.Info().Float64("similarity", sim).Int("target_id", targetID).Msg("comparing against navigation target")
		if sim > c.currentSimilarityCheck {
			if len(c.currentPath.steps) == 0 {
				correct = true
				break
			}
			log.Info().Msg("trying to find similar event")
			if replace := c.findReplacement(current, c.currentPath.steps[0].Event); replace != nil {
				c.currentPath.steps[0].Event = *replace
				correct = true
				break
			}
		}
		log.Info().Int("target_id", targetID).Int("current_id", current.ID()).Msg("target not reached, trying to skip step")
	}

	if correct {
		if len(c.currentPath.steps) > 0 {
			log.Info().Msg("navigation succeeded at this step")
			return guideStepOK
		}
		log.Info().Msg("successfully navigated to target")
		return guideReachedTarget
	}
	log.Info().Int("target_id", targetID).Int("current_id", current.ID()).Msg("navigation failed")
	return guideFailed
}

func (c *Controller) findReplacement(current *devicestate.DeviceState, want event.Event) *event.Event {
	targetWidget := current.FindWidgetByID(want.WidgetID)
	if targetWidget == nil {
		return nil
	}
	return current.FindSimilarEvent(want, targetWidget)
}

func (c *Controller) onNavigateFailed(ctx context.Context, current *devicestate.DeviceState) {
	if c.currentSimilarityCheck > minSimilarityCheck {
		c.currentSimilarityCheck -= similarityCheckStep
	}

	if len(c.remainingPaths) > 0 {
		next := c.remainingPaths[0]
		c.remainingPaths = c.remainingPaths[1:]
		c.currentPath = &next
		return
	}

	if c.failuresThisRound < maxNavigateFailures {
		c.failuresThisRound++
		c.agent.AddTestedFunction()
		c.prepareForNavigate(ctx, current)
		return
	}

	log.Info().Msg("navigation failed too many times this round")
	c.onNavigateOver(false)
}

func (c *Controller) onNavigateOver(success bool) {
	if success {
		c.successfulGuideTimes++
		c.mode = ModeTestFunction
		log.Info().Msg("switching to TEST_FUNCTION mode")
		c.broadcastModeChange()
	} else {
		c.prepareBackToExplore()
	}
	rate := 0.0
	if c.totalGuideTimes > 0 {
		rate = float64(c.successfulGuideTimes) / float64(c.totalGuideTimes)
	}
	log.Info().Int("successful", c.successfulGuideTimes).Int("total", c.totalGuideTimes).Float64("rate", rate).Msg("guide stats")

	c.navigateTarget = -1
	c.currentPath = nil
	c.remainingPaths = nil
	c.failuresThisRound = 0
	c.currentSimilarityCheck = maxSimilarityCheck
}

func (c *Controller) prepareTestFunction(ctx context.Context, current *devicestate.DeviceState) {
	if c.executedSteps >= maxTestFunctionSteps {
		c.eventByLLM = nil
		log.Warn().Msg("test function ran over the step budget, quitting")
		return
	}

	c.eventByLLM = <-c.agent.AskTestFunction(current)
	c.executedSteps++
	if c.eventByLLM == nil {
		log.Info().Str("function", c.functionToTest).Msg("llm returned no action: function finished or untestable here")
	}
}

func (c *Controller) prepareBackToExplore() {
	log.Info().Msg("returning to EXPLORE mode")
	c.mode = ModeExplore
	if c.cvMonitor != nil {
		c.cvMonitor.Clear()
	}
	if c.deadline != nil {
		c.deadline.Rearm()
	}
	c.executedSteps = 0
	c.agent.ClearExecutedEvents()

	feed := observer.NewFeed(observer.EventFunctionTested)
	feed.Function = c.functionToTest
	c.broadcast(feed)
	c.agent.AddTestedFunction()

	c.reanalyseDueClusters()
	c.broadcastModeChange()
}

func (c *Controller) reanalyseDueClusters() {
	count := 0
	for _, cl := range c.u.Clusters() {
		if cl.NeedReanalyse() {
			if c.agent.AskReanalysis(cl) {
				count++
			}
		}
	}
	log.Debug().Int("count", count).Msg("clusters queued for reanalysis")
}

// resolveAction picks the event to actually dispatch for the current mode
// (spec.md §4.G "resolve_new_action").
func (c *Controller) resolveAction(ctx context.Context, current *devicestate.DeviceState) event.Event {
	if c.mode == ModeNavigate {
		if c.currentPath != nil && len(c.currentPath.steps) > 0 {
			return c.currentPath.steps[0].Event
		}
		log.Error().Msg("in NAVIGATE mode with an empty path, falling back to BACK")
		return event.Back()
	}

	if c.mode == ModeTestFunction {
		if c.eventByLLM != nil {
			log.Info().Msg("dispatching event chosen by llm")
			return *c.eventByLLM
		}
		c.prepareBackToExplore()
		log.Info().Msg("llm chose no action, falling back to EXPLORE")
	}

	e := c.explorer.NextEvent(ctx, current)
	if c.isExcluded(e, current) {
		log.Info().Int("widget_id", e.WidgetID).Msg("explorer candidate excluded by rule, falling back to BACK")
		return event.Back()
	}
	return e
}
