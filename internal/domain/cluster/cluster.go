// Package cluster implements StateCluster, the LLM-analysed equivalence
// class of "same page" DeviceStates (spec.md §3/§4.C).
package cluster

import (
	"sort"
	"sync"

	"github.com/puzpuzpuz/xsync/v3"

	"github.com/smilemakc/uxplore/internal/domain/devicestate"
	"github.com/smilemakc/uxplore/internal/domain/event"
	"github.com/smilemakc/uxplore/internal/domain/widget"
)

// FunctionDetail is a named, user-discoverable capability discovered on a
// cluster's pages. Importance 0 means the function has been exercised.
type FunctionDetail struct {
	WidgetID   int
	Importance int
	SourceStateID int
}

// StateCluster groups DeviceStates the controller considers the same page.
type StateCluster struct {
	mu         sync.Mutex
	listenerMu sync.Mutex

	id        int
	rootState *devicestate.DeviceState
	states    map[*devicestate.DeviceState]struct{}

	overview       string
	functions      map[string]*FunctionDetail
	functionOrder  []string // insertion order, for stable top-5 ranking ties
	analysed       bool
	needReanalysed bool
}

// New creates a cluster rooted at state, assigning it id (the cluster's
// index in UTG.Clusters, per spec.md §4.D add_transition flow).
func New(id int, root *devicestate.DeviceState) *StateCluster {
	c := &StateCluster{
		id:        id,
		rootState: root,
		states:    map[*devicestate.DeviceState]struct{}{root: {}},
		functions: make(map[string]*FunctionDetail),
	}
	root.SetCluster(id)
	return c
}

// ID returns the cluster's index.
func (c *StateCluster) ID() int { return c.id }

// RootState returns the state that caused this cluster's creation.
func (c *StateCluster) RootState() *devicestate.DeviceState { return c.rootState }

// ToDescription renders the root state's activity and HTML, the raw
// material an OVERVIEW prompt embeds (spec.md §4.F).
func (c *StateCluster) ToDescription() string {
	return c.rootState.ForegroundActivity() + "\n" + c.rootState.ToHTML()
}

// Snapshot is the JSON-serializable view of a cluster's current knowledge,
// embedded in a REANALYSIS prompt so the model can cross-reference its
// earlier OVERVIEW answer (spec.md §4.F).
type Snapshot struct {
	Overview     string   `json:"Overview"`
	FunctionList []string `json:"FunctionList"`
}

// ToJSON returns the cluster's overview and function list. When reanalysis
// is true every tracked function is listed regardless of importance, since
// the reanalysis prompt cross-references the full existing list. When
// reanalysis is false only the overview is returned and the list is empty.
func (c *StateCluster) ToJSON(reanalysis bool) Snapshot {
	c.mu.Lock()
	defer c.mu.Unlock()
	if !reanalysis {
		return Snapshot{Overview: c.overview, FunctionList: nil}
	}
	names := c.sortedFunctionNames()
	return Snapshot{Overview: c.overview, FunctionList: names}
}

// Analysed reports whether an OVERVIEW response has been merged.
func (c *StateCluster) Analysed() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.analysed
}

// NeedReanalyse reports whether a new state joined after analysis.
func (c *StateCluster) NeedReanalyse() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.needReanalysed
}

// Overview returns the cluster's LLM-derived page summary.
func (c *StateCluster) Overview() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.overview
}

// States returns the set of member states.
func (c *StateCluster) States() []*devicestate.DeviceState {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]*devicestate.DeviceState, 0, len(c.states))
	for s := range c.states {
		out = append(out, s)
	}
	return out
}

// AddState idempotently adds state to the cluster (spec.md §4.C). If the
// cluster is already analysed, this marks needReanalysed and back-propagates
// known widget functions from the root state onto s.
func (c *StateCluster) AddState(s *devicestate.DeviceState) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if _, ok := c.states[s]; ok {
		return
	}
	c.states[s] = struct{}{}
	s.SetCluster(c.id)
	if c.analysed {
		c.needReanalysed = true
		c.backpropagate(s)
	}
}

func (c *StateCluster) backpropagate(s *devicestate.DeviceState) {
	for _, w := range c.rootState.AllWidgets() {
		fn := w.Function()
		if fn == "" {
			continue
		}
		if target := s.FindSimilarWidget(w); target != nil {
			target.SetFunction(fn)
		}
	}
}

// OnActionExecuted marks e's target function tested (importance 0) if e
// targets a widget carrying a function label. Called by the controller for
// every event whose execution count transitions from 0 to 1 (spec.md §9
// "Listener pattern").
func (c *StateCluster) OnActionExecuted(e event.Event, state *devicestate.DeviceState) {
	w := state.FindWidgetByID(e.WidgetID)
	if w == nil {
		return
	}
	fn := w.Function()
	if fn == "" {
		return
	}
	c.listenerMu.Lock()
	defer c.listenerMu.Unlock()
	if detail, ok := c.functions[fn]; ok {
		detail.Importance = 0
	}
}

// UpdateTestedFunction marks function's importance 0, creating an entry if
// none exists (spec.md §4.G "mark the function as tested").
func (c *StateCluster) UpdateTestedFunction(function string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if detail, ok := c.functions[function]; ok {
		detail.Importance = 0
		return
	}
	c.functions[function] = &FunctionDetail{WidgetID: -1, Importance: 0, SourceStateID: c.rootState.ID()}
	c.functionOrder = append(c.functionOrder, function)
}

// OverviewFunctionList is the `{name: widget_id}` payload an OVERVIEW
// response supplies.
type OverviewFunctionList map[string]int

// UpdateFromOverview merges an OVERVIEW response: stores the overview text,
// assigns importance = len-rank per function following order, labels the
// corresponding widgets in the root state and (via FindSimilarWidget) every
// other member state, then pre-arms already-executed functions via executed
// (spec.md §4.F #1).
//
// order is the function names as the LLM's "Function List" JSON object
// listed them; the OVERVIEW prompt instructs the model to prioritize
// functions by importance, so that key order, not alphabetical order, is
// the ranking signal. Any name in functions that order omits is appended
// afterwards, alphabetically, as a deterministic fallback.
func (c *StateCluster) UpdateFromOverview(overview string, functions OverviewFunctionList, order []string, executed func(event.Event, *devicestate.DeviceState) bool) {
	c.mu.Lock()
	c.overview = overview

	names := rankedFunctionNames(functions, order)
	n := len(names)
	for i, name := range names {
		c.functions[name] = &FunctionDetail{WidgetID: functions[name], Importance: n - i, SourceStateID: c.rootState.ID()}
		c.functionOrder = append(c.functionOrder, name)
	}
	c.setFunctionToWidget(functions)
	c.analysed = true
	states := make([]*devicestate.DeviceState, 0, len(c.states))
	for s := range c.states {
		states = append(states, s)
	}
	c.mu.Unlock()

	for _, s := range states {
		for _, e := range s.PossibleInputs() {
			if executed != nil && executed(e, s) {
				c.OnActionExecuted(e, s)
			}
		}
	}
}

// rankedFunctionNames orders functions' keys by order, dropping any name
// order lists that functions doesn't know about, then appends whatever
// functions contains that order missed.
func rankedFunctionNames(functions OverviewFunctionList, order []string) []string {
	seen := make(map[string]struct{}, len(functions))
	names := make([]string, 0, len(functions))
	for _, name := range order {
		if _, ok := functions[name]; !ok {
			continue
		}
		if _, dup := seen[name]; dup {
			continue
		}
		seen[name] = struct{}{}
		names = append(names, name)
	}
	if len(names) < len(functions) {
		rest := make([]string, 0, len(functions)-len(names))
		for name := range functions {
			if _, ok := seen[name]; !ok {
				rest = append(rest, name)
			}
		}
		sort.Strings(rest)
		names = append(names, rest...)
	}
	return names
}

func (c *StateCluster) setFunctionToWidget(functions OverviewFunctionList) {
	for function, widgetID := range functions {
		w := c.rootState.FindWidgetByID(widgetID)
		if w == nil {
			continue
		}
		w.SetFunction(function)
		for s := range c.states {
			if s == c.rootState {
				continue
			}
			if other := s.FindSimilarWidget(w); other != nil {
				other.SetFunction(function)
			}
		}
	}
}

// ReanalysisAssignment maps a widget id (inside the deduplicated diff HTML
// the caller sent the LLM) to the function name it chose for it.
type ReanalysisAssignment map[int]string

// UpdateFromReanalysis merges a REANALYSIS response. group resolves a widget
// id to every (state, widget) pair sharing its rendered HTML — the caller
// builds this from the same widget deduplication it used to assemble the
// diff prompt. Every widget in a group gets the assigned function, and
// OnActionExecuted fires for already-executed events via executed, before
// needReanalysed is cleared (spec.md §4.F #4).
func (c *StateCluster) UpdateFromReanalysis(assignment ReanalysisAssignment, group func(widgetID int) []struct {
	State  *devicestate.DeviceState
	Widget *widget.Widget
}, executed func(event.Event, *devicestate.DeviceState) bool) {
	c.mu.Lock()
	for widgetID, function := range assignment {
		if _, ok := c.functions[function]; !ok {
			c.functions[function] = &FunctionDetail{WidgetID: widgetID, Importance: 1, SourceStateID: c.rootState.ID()}
			c.functionOrder = append(c.functionOrder, function)
		}
		for _, pair := range group(widgetID) {
			pair.Widget.SetFunction(function)
		}
	}
	c.needReanalysed = false
	c.mu.Unlock()

	for widgetID := range assignment {
		for _, pair := range group(widgetID) {
			for _, e := range pair.State.PossibleInputs() {
				if executed != nil && executed(e, pair.State) {
					c.OnActionExecuted(e, pair.State)
				}
			}
		}
	}
}

// HasUntestedFunction reports whether any function still has importance > 0.
func (c *StateCluster) HasUntestedFunction() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	for _, detail := range c.functions {
		if detail.Importance > 0 {
			return true
		}
	}
	return false
}

// TopFunctions is the payload WriteTop5 produces for one cluster.
type TopFunctions struct {
	Overview     string
	FunctionList []string
}

// WriteTop5 returns the cluster's overview plus up to five functions ordered
// by descending importance, filtered to importance > 0 unless
// ignoreImportance is set (spec.md §4.C).
func (c *StateCluster) WriteTop5(ignoreImportance bool) TopFunctions {
	c.mu.Lock()
	defer c.mu.Unlock()

	sorted := c.sortedFunctionNames()
	var out []string
	for _, name := range sorted {
		if len(out) >= 5 {
			break
		}
		if c.functions[name].Importance > 0 || ignoreImportance {
			out = append(out, name)
		}
	}
	return TopFunctions{Overview: c.overview, FunctionList: out}
}

func (c *StateCluster) sortedFunctionNames() []string {
	names := append([]string(nil), c.functionOrder...)
	sort.SliceStable(names, func(i, j int) bool {
		return c.functions[names[i]].Importance > c.functions[names[j]].Importance
	})
	return names
}

// GetTargetState resolves the DeviceState id a function was discovered on,
// for GUIDE navigation targeting.
func (c *StateCluster) GetTargetState(function string) (int, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	detail, ok := c.functions[function]
	if !ok {
		return 0, false
	}
	return detail.SourceStateID, true
}

// Registry indexes StateClusters by id using a lock-free concurrent map, so
// the controller's per-step cluster lookup (fireActionExecuted) and the
// background reanalysis sweep never contend with each other (spec.md §4.C).
type Registry struct {
	byID *xsync.MapOf[int, *StateCluster]
}

// NewRegistry creates an empty Registry.
func NewRegistry() *Registry {
	return &Registry{byID: xsync.NewMapOf[int, *StateCluster]()}
}

// Add registers c under its id, in creation order.
func (r *Registry) Add(c *StateCluster) {
	r.byID.Store(c.ID(), c)
}

// Get returns the cluster with the given id, if any.
func (r *Registry) Get(id int) (*StateCluster, bool) {
	return r.byID.Load(id)
}

// Len returns the number of registered clusters.
func (r *Registry) Len() int {
	return r.byID.Size()
}

// All returns every registered cluster, ordered by id.
func (r *Registry) All() []*StateCluster {
	out := make([]*StateCluster, 0, r.byID.Size())
	r.byID.Range(func(_ int, c *StateCluster) bool {
		out = append(out, c)
		return true
	})
	sort.Slice(out, func(i, j int) bool { return out[i].ID() < out[j].ID() })
	return out
}
