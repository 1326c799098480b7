// Package utg implements the UI Transition Graph: the directed multigraph
// of DeviceStates and the Events observed to move between them (spec.md
// §3/§4.D).
package utg

import (
	"math/rand"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/smilemakc/uxplore/internal/domain/cluster"
	"github.com/smilemakc/uxplore/internal/domain/devicestate"
	"github.com/smilemakc/uxplore/internal/domain/event"
)

// Edge is one explored transition between two states for a single event.
type Edge struct {
	Event     event.Event
	ID        int
	CreatedAt time.Time
	Used      bool
}

// edgeBucket is an insertion-ordered map of eventStr -> *Edge, so that
// "pick the first edge" resolves deterministically the way a Python dict's
// insertion order does.
type edgeBucket struct {
	order []string
	items map[string]*Edge
}

func newEdgeBucket() *edgeBucket {
	return &edgeBucket{items: make(map[string]*Edge)}
}

func (b *edgeBucket) put(key string, e *Edge) {
	if _, ok := b.items[key]; !ok {
		b.order = append(b.order, key)
	}
	b.items[key] = e
}

func (b *edgeBucket) delete(key string) {
	if _, ok := b.items[key]; !ok {
		return
	}
	delete(b.items, key)
	for i, k := range b.order {
		if k == key {
			b.order = append(b.order[:i], b.order[i+1:]...)
			break
		}
	}
}

func (b *edgeBucket) len() int { return len(b.items) }

// Transition records one applied (old, event, new) triple, in order.
type Transition struct {
	Old   *devicestate.DeviceState
	Event event.Event
	New   *devicestate.DeviceState
}

// NavStep is one (state, event) hop of a navigation path: apply Event while
// in State to advance toward the destination.
type NavStep struct {
	State *devicestate.DeviceState
	Event event.Event
}

// Step is one hop of a GetPaths result, identified by the state id reached.
type Step struct {
	StateID   int
	Event     event.Event
	CreatedAt time.Time
}

// Path is a candidate route to a target state, prefixed with a synthetic
// STOP_APP step (spec.md §4.D "restart from a clean launch").
type Path struct {
	Length     int
	LatestTime time.Time
	Steps      []Step
}

// UTG is the UI transition graph: one node per distinct state_str, edges
// labelled by event_str, plus a coarser structure_str-clustered shadow graph
// used for cross-cluster navigation heuristics.
type UTG struct {
	mu sync.RWMutex

	appPackage  string
	randomInput bool

	nodes map[string]*devicestate.DeviceState   // state_str -> canonical state
	adj   map[string]map[string]*edgeBucket     // state_str -> state_str -> edges

	structureNodes map[string][]*devicestate.DeviceState
	structureAdj   map[string]map[string]*edgeBucket

	transitions          []Transition
	effectiveEventStrs   map[string]struct{}
	ineffectiveEventStrs map[string]struct{}
	exploredStateStrs    map[string]struct{}
	reachedStateStrs     map[string]struct{}
	reachedActivities    map[string]struct{}

	firstState *devicestate.DeviceState
	lastState  *devicestate.DeviceState

	startTime time.Time

	clusters       *cluster.Registry
	currentCluster *cluster.StateCluster
}

// New creates an empty UTG for an app identified by its package name.
// randomInput shuffles among equally-short navigation edges, mirroring the
// fuzzer's random-exploration mode.
func New(appPackage string, randomInput bool) *UTG {
	return &UTG{
		appPackage:           appPackage,
		randomInput:          randomInput,
		nodes:                make(map[string]*devicestate.DeviceState),
		adj:                  make(map[string]map[string]*edgeBucket),
		structureNodes:       make(map[string][]*devicestate.DeviceState),
		structureAdj:         make(map[string]map[string]*edgeBucket),
		effectiveEventStrs:   make(map[string]struct{}),
		ineffectiveEventStrs: make(map[string]struct{}),
		exploredStateStrs:    make(map[string]struct{}),
		reachedStateStrs:     make(map[string]struct{}),
		reachedActivities:    make(map[string]struct{}),
		startTime:            time.Now(),
		clusters:             cluster.NewRegistry(),
	}
}

// AppPackage returns the package under test this graph was built for.
func (u *UTG) AppPackage() string {
	return u.appPackage
}

// FirstState returns the state reached right after app launch, or nil.
func (u *UTG) FirstState() *devicestate.DeviceState {
	u.mu.RLock()
	defer u.mu.RUnlock()
	return u.firstState
}

// LastState returns the most recently reached state, or nil.
func (u *UTG) LastState() *devicestate.DeviceState {
	u.mu.RLock()
	defer u.mu.RUnlock()
	return u.lastState
}

// EffectiveEventCount returns the number of distinct events that have
// changed state at least once.
func (u *UTG) EffectiveEventCount() int {
	u.mu.RLock()
	defer u.mu.RUnlock()
	return len(u.effectiveEventStrs)
}

// NumTransitions returns the number of applied (old, event, new) triples.
func (u *UTG) NumTransitions() int {
	u.mu.RLock()
	defer u.mu.RUnlock()
	return len(u.transitions)
}

// ReachedActivities returns the set of app activities visited so far.
func (u *UTG) ReachedActivities() []string {
	u.mu.RLock()
	defer u.mu.RUnlock()
	out := make([]string, 0, len(u.reachedActivities))
	for a := range u.reachedActivities {
		out = append(out, a)
	}
	sort.Strings(out)
	return out
}

// AddNode registers state as a graph node if its state_str is new,
// assigning it an id (the node count at insertion time), and always records
// it in the coarser structure-clustered shadow graph. It returns the
// canonical state for that state_str — the first one seen, if state is a
// revisit (spec.md §4.D "the graph is the source of truth for identity").
func (u *UTG) AddNode(state *devicestate.DeviceState) *devicestate.DeviceState {
	if state == nil {
		return nil
	}
	u.mu.Lock()
	defer u.mu.Unlock()

	canonical, ok := u.nodes[state.StateStr()]
	if !ok {
		id := len(u.nodes)
		state.SetID(id)
		u.nodes[state.StateStr()] = state
		u.adj[state.StateStr()] = make(map[string]*edgeBucket)
		canonical = state
		if u.firstState == nil {
			u.firstState = state
		}
		log.Debug().Int("state_id", id).Msg("new state added to graph")
	}

	u.structureNodes[state.StructureStr()] = append(u.structureNodes[state.StructureStr()], state)
	if _, ok := u.structureAdj[state.StructureStr()]; !ok {
		u.structureAdj[state.StructureStr()] = make(map[string]*edgeBucket)
	}

	if strings.HasPrefix(state.ForegroundActivity(), u.appPackage) {
		u.reachedActivities[state.ForegroundActivity()] = struct{}{}
	}

	return canonical
}

// AddTransition records that applying e against old produced newState, and
// returns the canonical DeviceState for newState's state_str. When old and
// new share a state_str the action was ineffective: any prior edge recorded
// for this event_str out of old is retracted, since it can no longer be
// trusted to reach a different state (spec.md §4.D).
func (u *UTG) AddTransition(e event.Event, old, newState *devicestate.DeviceState) *devicestate.DeviceState {
	u.AddNode(old)
	current := u.AddNode(newState)
	if old == nil || current == nil {
		log.Warn().Msg("old state or new state is nil")
		return current
	}

	eventStr := e.EventStr(old.StateStr())

	u.mu.Lock()
	defer u.mu.Unlock()

	u.transitions = append(u.transitions, Transition{Old: old, Event: e, New: current})

	if old.StateStr() == current.StateStr() {
		u.ineffectiveEventStrs[eventStr] = struct{}{}
		delete(u.effectiveEventStrs, eventStr)

		var toRemove []string
		for targetStr, bucket := range u.adj[old.StateStr()] {
			if _, ok := bucket.items[eventStr]; ok {
				bucket.delete(eventStr)
				if bucket.len() == 0 {
					toRemove = append(toRemove, targetStr)
				}
			}
		}
		for _, targetStr := range toRemove {
			delete(u.adj[old.StateStr()], targetStr)
		}
		return current
	}

	u.effectiveEventStrs[eventStr] = struct{}{}

	bucket, ok := u.adj[old.StateStr()][current.StateStr()]
	if !ok {
		bucket = newEdgeBucket()
		u.adj[old.StateStr()][current.StateStr()] = bucket
	}
	bucket.put(eventStr, &Edge{Event: e, ID: len(u.effectiveEventStrs), CreatedAt: time.Now()})

	sBucket, ok := u.structureAdj[old.StructureStr()][current.StructureStr()]
	if !ok {
		sBucket = newEdgeBucket()
		u.structureAdj[old.StructureStr()][current.StructureStr()] = sBucket
	}
	sBucket.put(eventStr, &Edge{Event: e, ID: len(u.effectiveEventStrs)})

	log.Debug().Int("from", old.ID()).Int("to", current.ID()).Msg("edge added")

	u.lastState = current
	return current
}

// RemoveTransition retracts a previously recorded edge for e between old and
// newState, from both the fine and structure-clustered graphs.
func (u *UTG) RemoveTransition(e event.Event, old, newState *devicestate.DeviceState) {
	eventStr := e.EventStr(old.StateStr())

	u.mu.Lock()
	defer u.mu.Unlock()

	if bucket, ok := u.adj[old.StateStr()][newState.StateStr()]; ok {
		bucket.delete(eventStr)
		if bucket.len() == 0 {
			delete(u.adj[old.StateStr()], newState.StateStr())
		}
	}
	if bucket, ok := u.structureAdj[old.StructureStr()][newState.StructureStr()]; ok {
		bucket.delete(eventStr)
		if bucket.len() == 0 {
			delete(u.structureAdj[old.StructureStr()], newState.StructureStr())
		}
	}
}

// IsEventExplored reports whether e has already been applied (effectively or
// not) against state.
func (u *UTG) IsEventExplored(e event.Event, state *devicestate.DeviceState) bool {
	eventStr := e.EventStr(state.StateStr())
	u.mu.RLock()
	defer u.mu.RUnlock()
	if _, ok := u.effectiveEventStrs[eventStr]; ok {
		return true
	}
	_, ok := u.ineffectiveEventStrs[eventStr]
	return ok
}

// IsStateExplored reports whether every possible input on state has been
// tried at least once, memoizing the result once true.
func (u *UTG) IsStateExplored(state *devicestate.DeviceState) bool {
	u.mu.RLock()
	if _, ok := u.exploredStateStrs[state.StateStr()]; ok {
		u.mu.RUnlock()
		return true
	}
	u.mu.RUnlock()

	for _, e := range state.PossibleInputs() {
		if !u.IsEventExplored(e, state) {
			return false
		}
	}
	u.mu.Lock()
	u.exploredStateStrs[state.StateStr()] = struct{}{}
	u.mu.Unlock()
	return true
}

// IsStateReached reports whether state was seen before this call, and marks
// it seen.
func (u *UTG) IsStateReached(state *devicestate.DeviceState) bool {
	u.mu.Lock()
	defer u.mu.Unlock()
	if _, ok := u.reachedStateStrs[state.StateStr()]; ok {
		return true
	}
	u.reachedStateStrs[state.StateStr()] = struct{}{}
	return false
}

// GetReachableStates returns every state with a directed path from current.
func (u *UTG) GetReachableStates(current *devicestate.DeviceState) []*devicestate.DeviceState {
	u.mu.RLock()
	defer u.mu.RUnlock()
	strs := u.descendants(u.adj, current.StateStr())
	out := make([]*devicestate.DeviceState, 0, len(strs))
	for _, s := range strs {
		out = append(out, u.nodes[s])
	}
	return out
}

func (u *UTG) descendants(adj map[string]map[string]*edgeBucket, source string) []string {
	visited := map[string]struct{}{source: {}}
	queue := []string{source}
	var out []string
	for len(queue) > 0 {
		n := queue[0]
		queue = queue[1:]
		neighbors := make([]string, 0, len(adj[n]))
		for t := range adj[n] {
			neighbors = append(neighbors, t)
		}
		sort.Strings(neighbors)
		for _, t := range neighbors {
			if _, ok := visited[t]; ok {
				continue
			}
			visited[t] = struct{}{}
			out = append(out, t)
			queue = append(queue, t)
		}
	}
	return out
}

// bfsShortestPath finds an unweighted shortest path from source to target.
func bfsShortestPath(adj map[string]map[string]*edgeBucket, source, target string) ([]string, bool) {
	if source == target {
		return []string{source}, true
	}
	visited := map[string]struct{}{source: {}}
	prev := map[string]string{}
	queue := []string{source}
	for len(queue) > 0 {
		n := queue[0]
		queue = queue[1:]
		neighbors := make([]string, 0, len(adj[n]))
		for t := range adj[n] {
			neighbors = append(neighbors, t)
		}
		sort.Strings(neighbors)
		for _, t := range neighbors {
			if _, ok := visited[t]; ok {
				continue
			}
			visited[t] = struct{}{}
			prev[t] = n
			if t == target {
				return reconstructPath(prev, source, target), true
			}
			queue = append(queue, t)
		}
	}
	return nil, false
}

func reconstructPath(prev map[string]string, source, target string) []string {
	path := []string{target}
	for path[len(path)-1] != source {
		path = append(path, prev[path[len(path)-1]])
	}
	// reverse
	for i, j := 0, len(path)-1; i < j; i, j = i+1, j-1 {
		path[i], path[j] = path[j], path[i]
	}
	return path
}

// allSimplePaths enumerates every simple (no repeated node) path from source
// to target with at most cutoff edges, mirroring nx.all_simple_paths.
func allSimplePaths(adj map[string]map[string]*edgeBucket, source, target string, cutoff int) [][]string {
	var out [][]string
	visited := map[string]struct{}{source: {}}
	path := []string{source}

	var walk func(n string)
	walk = func(n string) {
		if len(path)-1 >= cutoff {
			return
		}
		neighbors := make([]string, 0, len(adj[n]))
		for t := range adj[n] {
			neighbors = append(neighbors, t)
		}
		sort.Strings(neighbors)
		for _, t := range neighbors {
			if t == target {
				out = append(out, append(append([]string(nil), path...), t))
				continue
			}
			if _, ok := visited[t]; ok {
				continue
			}
			visited[t] = struct{}{}
			path = append(path, t)
			walk(t)
			path = path[:len(path)-1]
			delete(visited, t)
		}
	}
	walk(source)
	return out
}

// GetNavigationSteps returns the shortest sequence of (state, event) hops
// from from to to, or ok=false if no path exists.
func (u *UTG) GetNavigationSteps(from, to *devicestate.DeviceState) ([]NavStep, bool) {
	if from == nil || to == nil {
		return nil, false
	}
	u.mu.RLock()
	defer u.mu.RUnlock()

	stateStrs, ok := bfsShortestPath(u.adj, from.StateStr(), to.StateStr())
	if !ok || len(stateStrs) < 2 {
		log.Warn().Str("from", from.StateStr()).Str("to", to.StateStr()).Msg("no navigation path found")
		return nil, false
	}

	var steps []NavStep
	cur := stateStrs[0]
	for _, next := range stateStrs[1:] {
		bucket := u.adj[cur][next]
		keys := append([]string(nil), bucket.order...)
		if u.randomInput {
			rand.Shuffle(len(keys), func(i, j int) { keys[i], keys[j] = keys[j], keys[i] })
		}
		edge := bucket.items[keys[0]]
		steps = append(steps, NavStep{State: u.nodes[cur], Event: edge.Event})
		cur = next
	}
	return steps, true
}

// GetG2NavSteps is GetNavigationSteps over the coarser structure-clustered
// graph, picking a random member state/event per hop and then collapsing the
// tail at the first hop whose state shares the final hop's source structure
// (that hop takes the final hop's event), since any state sharing that
// structure is considered interchangeable for navigation.
func (u *UTG) GetG2NavSteps(from, to *devicestate.DeviceState) ([]NavStep, bool) {
	if from == nil || to == nil {
		return nil, false
	}
	u.mu.RLock()
	defer u.mu.RUnlock()

	stateStrs, ok := bfsShortestPath(u.structureAdj, from.StructureStr(), to.StructureStr())
	if !ok || len(stateStrs) < 2 {
		return nil, false
	}

	var steps []NavStep
	cur := stateStrs[0]
	for _, next := range stateStrs[1:] {
		bucket := u.structureAdj[cur][next]
		if bucket.len() == 0 {
			return nil, false
		}
		key := bucket.order[rand.Intn(len(bucket.order))]
		members := u.structureNodes[cur]
		state := members[rand.Intn(len(members))]
		steps = append(steps, NavStep{State: state, Event: bucket.items[key].Event})
		cur = next
	}
	if len(steps) == 0 {
		return nil, false
	}

	lastStructure := steps[len(steps)-1].State.StructureStr()
	lastAction := steps[len(steps)-1].Event
	var simplified []NavStep
	for _, s := range steps {
		if s.State.StructureStr() == lastStructure {
			simplified = append(simplified, NavStep{State: s.State, Event: lastAction})
			break
		}
		simplified = append(simplified, s)
	}
	return simplified, true
}

// FindStateByID scans the graph for the state with the given assigned id.
func (u *UTG) FindStateByID(id int) *devicestate.DeviceState {
	u.mu.RLock()
	defer u.mu.RUnlock()
	for _, s := range u.nodes {
		if s.ID() == id {
			return s
		}
	}
	log.Error().Int("state_id", id).Msg("state not found in utg")
	return nil
}

// States returns every distinct state the graph has recorded, the node list
// a UTG snapshot dump walks (spec.md §12, grounded on __output_utg's
// `for state_str in self.G.nodes()` loop).
func (u *UTG) States() []*devicestate.DeviceState {
	u.mu.RLock()
	defer u.mu.RUnlock()
	out := make([]*devicestate.DeviceState, 0, len(u.nodes))
	for _, s := range u.nodes {
		out = append(out, s)
	}
	return out
}

// Transitions returns every applied (old, event, new) triple in the order
// they were recorded, the edge list a UTG snapshot dump walks.
func (u *UTG) Transitions() []Transition {
	u.mu.RLock()
	defer u.mu.RUnlock()
	out := make([]Transition, len(u.transitions))
	copy(out, u.transitions)
	return out
}

// AddCluster registers a newly created cluster.
func (u *UTG) AddCluster(c *cluster.StateCluster) {
	u.clusters.Add(c)
}

// Clusters returns every registered cluster, ordered by id.
func (u *UTG) Clusters() []*cluster.StateCluster {
	return u.clusters.All()
}

// FindClusterByID looks up the cluster with the given id.
func (u *UTG) FindClusterByID(id int) *cluster.StateCluster {
	c, _ := u.clusters.Get(id)
	return c
}

// ClusterCount returns the number of registered clusters, the next cluster's
// id under the UTG's monotonically-increasing assignment scheme.
func (u *UTG) ClusterCount() int {
	return u.clusters.Len()
}

// SetCurrentCluster records the cluster the last reached state belongs to.
func (u *UTG) SetCurrentCluster(c *cluster.StateCluster) {
	u.mu.Lock()
	defer u.mu.Unlock()
	u.currentCluster = c
}

// CurrentCluster returns the cluster the last reached state belongs to.
func (u *UTG) CurrentCluster() *cluster.StateCluster {
	u.mu.RLock()
	defer u.mu.RUnlock()
	return u.currentCluster
}

// GetPaths finds candidate routes from the graph's first state to the state
// with the given id (spec.md §4.G GUIDE navigation).
func (u *UTG) GetPaths(targetStateID int) []Path {
	target := u.FindStateByID(targetStateID)
	if target == nil {
		log.Warn().Msg("no path found: unknown target state")
		return nil
	}
	last := u.LastState()
	paths := u.generatePaths(last, target)
	log.Info().Int("count", len(paths)).Msg("candidate paths found")
	return paths
}

// generatePaths builds the shortest path from the graph's first state to
// dest, plus any strictly-longer simple path (capped at 10 edges and 100
// candidates), and returns at most the 3 best: the shortest first, the rest
// ordered by most-recently-created edge (spec.md §4.G "favor fresh routes").
func (u *UTG) generatePaths(source, dest *devicestate.DeviceState) []Path {
	_ = source
	u.mu.Lock()
	first := u.firstState
	u.mu.Unlock()
	if first == nil || dest == nil {
		return nil
	}

	u.mu.RLock()
	rawShortest, ok := bfsShortestPath(u.adj, first.StateStr(), dest.StateStr())
	u.mu.RUnlock()
	if !ok {
		return nil
	}

	shortest := u.convertPath(rawShortest)
	paths := []Path{shortest}

	u.mu.RLock()
	rawPaths := allSimplePaths(u.adj, first.StateStr(), dest.StateStr(), 10)
	u.mu.RUnlock()

	for i, raw := range rawPaths {
		if i >= 100 {
			log.Warn().Msg("too many possible paths, stopping enumeration")
			break
		}
		p := u.convertPath(raw)
		if p.Length > shortest.Length {
			paths = append(paths, p)
		}
	}

	u.resetUsedEdges()

	if len(paths) <= 1 {
		return paths
	}
	sort.SliceStable(paths, func(i, j int) bool { return paths[i].Length < paths[j].Length })
	tail := paths[1:]
	sort.SliceStable(tail, func(i, j int) bool { return tail[i].LatestTime.After(tail[j].LatestTime) })
	if len(paths) > 3 {
		paths = paths[:3]
	}
	return paths
}

func (u *UTG) resetUsedEdges() {
	u.mu.Lock()
	defer u.mu.Unlock()
	for _, targets := range u.adj {
		for _, bucket := range targets {
			for _, e := range bucket.items {
				e.Used = false
			}
		}
	}
}

// convertPath turns a bare sequence of state_str nodes into a Path: for each
// hop it prefers an edge not yet used by an earlier path in this batch, so
// that the top-3 candidates tend to exercise distinct edges, falling back to
// the first edge once all have been used once. A synthetic STOP_APP step is
// prepended so every path starts from a clean relaunch.
func (u *UTG) convertPath(rawPath []string) Path {
	u.mu.Lock()
	defer u.mu.Unlock()

	var steps []Step
	var latest time.Time
	for i := 1; i < len(rawPath); i++ {
		cur, next := rawPath[i-1], rawPath[i]
		nextState := u.nodes[next]
		bucket := u.adj[cur][next]

		var chosen *Edge
		for _, key := range bucket.order {
			e := bucket.items[key]
			if !e.Used {
				chosen = e
				e.Used = true
				break
			}
		}
		if chosen == nil && len(bucket.order) > 0 {
			chosen = bucket.items[bucket.order[0]]
		}
		if chosen == nil {
			continue
		}
		if chosen.CreatedAt.After(latest) {
			latest = chosen.CreatedAt
		}
		steps = append(steps, Step{StateID: nextState.ID(), Event: chosen.Event, CreatedAt: chosen.CreatedAt})
	}

	firstID := 0
	if s, ok := u.nodes[rawPath[0]]; ok {
		firstID = s.ID()
	}
	steps = append([]Step{{StateID: firstID, Event: event.Stop(), CreatedAt: time.Now()}}, steps...)

	return Path{Length: len(steps), LatestTime: latest, Steps: steps}
}
