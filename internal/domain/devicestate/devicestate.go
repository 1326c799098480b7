// Package devicestate implements the captured-screen abstraction of
// spec.md §3/§4.B: widget dedup, content-full/content-free fingerprints,
// cached HTML rendering, similarity, and event lookup.
package devicestate

import (
	"crypto/md5"
	"encoding/hex"
	"fmt"
	"sort"
	"strings"
	"sync"

	"github.com/smilemakc/uxplore/internal/domain/event"
	"github.com/smilemakc/uxplore/internal/domain/widget"
)

const (
	htmlMaxDepth    = 25
	htmlMaxTagCount = 100
	excludedNavBar  = "android:id/navigationBarBackground"
	excludedStatus  = "android:id/statusBarBackground"
)

// DeviceState is a single captured screen. Its id is assigned exactly once,
// by the UTG on first insertion (spec.md invariant).
type DeviceState struct {
	id    int
	idSet bool

	views               []widget.View
	widgets             []*widget.Widget            // unique by hash, insertion order
	widgetsByHash       map[int64]*widget.Widget     // canonical widget per hash
	mergedWidgets       map[int64][]*widget.Widget   // duplicates, ascending position
	rootWidgetID        int
	foregroundActivity  string
	activityStack       []string

	stateStr     string
	structureStr string

	htmlMu   sync.Mutex
	html     string
	htmlSet  bool

	clusterID    int
	clusterIDSet bool
}

// New constructs a DeviceState from a captured view tree. views must be in
// driver order; TempID is assumed to equal each view's index.
func New(views []widget.View, foregroundActivity string, activityStack []string) *DeviceState {
	s := &DeviceState{
		views:              views,
		widgetsByHash:      make(map[int64]*widget.Widget),
		mergedWidgets:      make(map[int64][]*widget.Widget),
		foregroundActivity: foregroundActivity,
		activityStack:      activityStack,
		rootWidgetID:       -1,
		id:                 -1,
	}
	s.initWidgets()
	s.stateStr = s.computeStateStr()
	s.structureStr = s.computeStructureStr()
	return s
}

func (s *DeviceState) initWidgets() {
	for i, v := range s.views {
		if !v.Visible {
			continue
		}
		if s.rootWidgetID == -1 {
			s.rootWidgetID = i
		}
		w := widget.FromView(v)
		if _, ok := s.widgetsByHash[w.Hash()]; ok {
			w.SetPosition(len(s.mergedWidgets[w.Hash()]))
			s.mergedWidgets[w.Hash()] = append(s.mergedWidgets[w.Hash()], w)
		} else {
			w.SetPosition(-1)
			s.widgetsByHash[w.Hash()] = w
			s.widgets = append(s.widgets, w)
			s.mergedWidgets[w.Hash()] = nil
		}
	}
}

// ID returns the UTG-assigned identifier, or -1 if not yet inserted.
func (s *DeviceState) ID() int { return s.id }

// SetID assigns the UTG node id; called exactly once by UTG.AddNode.
func (s *DeviceState) SetID(id int) {
	s.id = id
	s.idSet = true
}

// IDAssigned reports whether SetID has been called.
func (s *DeviceState) IDAssigned() bool { return s.idSet }

// StateStr is the content-full fingerprint (MD5 of activity + sorted view signatures).
func (s *DeviceState) StateStr() string { return s.stateStr }

// StructureStr is the content-free fingerprint.
func (s *DeviceState) StructureStr() string { return s.structureStr }

// ForegroundActivity returns the activity captured with this state.
func (s *DeviceState) ForegroundActivity() string { return s.foregroundActivity }

// Cluster returns the owning cluster id and whether it has been assigned,
// following the arena pattern of spec.md §9 (integer ids cross the
// widget/state/cluster cycle, not object references).
func (s *DeviceState) Cluster() (int, bool) { return s.clusterID, s.clusterIDSet }

// SetCluster assigns the owning cluster id.
func (s *DeviceState) SetCluster(id int) {
	s.clusterID = id
	s.clusterIDSet = true
}

// Widgets returns the deduplicated widget list (unique hashes).
func (s *DeviceState) Widgets() []*widget.Widget { return s.widgets }

// AllWidgets returns every widget including merged duplicates, canonical
// widget first for each hash.
func (s *DeviceState) AllWidgets() []*widget.Widget {
	all := make([]*widget.Widget, 0, len(s.widgets))
	for _, w := range s.widgets {
		all = append(all, w)
		all = append(all, s.mergedWidgets[w.Hash()]...)
	}
	return all
}

func viewSignature(v widget.View) string {
	text := v.Text
	// A view whose text attribute the driver never captured maps to "None",
	// same as an overlong one; a view with a captured-but-empty text keeps
	// its "" so the content-full fingerprint can still tell the two apart.
	if (text == "" && !v.TextSet) || len(text) > 50 {
		text = "None"
	}
	class := v.Class
	if class == "" {
		class = "None"
	}
	resID := v.ResourceID
	if resID == "" {
		resID = "None"
	}
	return fmt.Sprintf("[class]%s[resource_id]%s[text]%s[%s,%s,%s]",
		class, resID, text, keyIfTrue("enabled", v.Enabled), keyIfTrue("checked", v.Checked), keyIfTrue("selected", v.Selected))
}

func contentFreeViewSignature(v widget.View) string {
	class := v.Class
	if class == "" {
		class = "None"
	}
	resID := v.ResourceID
	if resID == "" {
		resID = "None"
	}
	return fmt.Sprintf("[class]%s[resource_id]%s", class, resID)
}

func keyIfTrue(key string, v bool) string {
	if v {
		return key
	}
	return ""
}

func (s *DeviceState) computeStateStr() string {
	sigs := make(map[string]struct{})
	for _, v := range s.views {
		if !v.Visible {
			continue
		}
		sigs[viewSignature(v)] = struct{}{}
	}
	return md5Hex(fmt.Sprintf("%s{%s}", s.foregroundActivity, joinSorted(sigs)))
}

func (s *DeviceState) computeStructureStr() string {
	sigs := make(map[string]struct{})
	for _, v := range s.views {
		if !v.Visible {
			continue
		}
		sigs[contentFreeViewSignature(v)] = struct{}{}
	}
	return md5Hex(fmt.Sprintf("%s{%s}", s.foregroundActivity, joinSorted(sigs)))
}

func joinSorted(set map[string]struct{}) string {
	items := make([]string, 0, len(set))
	for k := range set {
		items = append(items, k)
	}
	sort.Strings(items)
	return strings.Join(items, ",")
}

func md5Hex(s string) string {
	sum := md5.Sum([]byte(s))
	return hex.EncodeToString(sum[:])
}

// ToHTML renders the state as HTML, merging single-P-child subtrees and
// BUTTON-with-childless-P-child pairs, capped at depth 25 / 100 tags. The
// result is cached under a lock: a second call returns the identical string
// (P8).
func (s *DeviceState) ToHTML() string {
	s.htmlMu.Lock()
	defer s.htmlMu.Unlock()
	if s.htmlSet {
		return s.html
	}
	var b strings.Builder
	if s.rootWidgetID >= 0 {
		gen := &htmlGenerator{state: s, builder: &b}
		gen.generate(s.rootWidgetID, -1)
	}
	s.html = b.String()
	s.htmlSet = true
	return s.html
}

type htmlGenerator struct {
	state    *DeviceState
	builder  *strings.Builder
	tabCount int
	tagCount int
}

func (g *htmlGenerator) widgetForView(viewID int) *widget.Widget {
	if viewID < 0 || viewID >= len(g.state.views) {
		return nil
	}
	v := g.state.views[viewID]
	if !v.Visible {
		return nil
	}
	// The widget representing this exact view, canonical or merged, keyed
	// by TempID (matches the original's per-view widget object identity).
	for _, w := range g.state.widgets {
		if w.ID() == v.TempID {
			return w
		}
	}
	for _, dups := range g.state.mergedWidgets {
		for _, w := range dups {
			if w.ID() == v.TempID {
				return w
			}
		}
	}
	return nil
}

func (g *htmlGenerator) generate(viewID int, _ int) {
	parent := g.widgetForView(viewID)
	if parent == nil {
		return
	}
	if g.tabCount >= htmlMaxDepth || g.tagCount >= htmlMaxTagCount {
		return
	}
	g.tagCount++
	g.tabCount++

	var toMerge, notMerge []*widget.Widget
	checklist := []*widget.Widget{parent}
	for len(checklist) > 0 {
		cur := checklist[0]
		checklist = checklist[1:]

		var childWidgets []*widget.Widget
		for _, childViewID := range cur.Children() {
			if w := g.widgetForView(childViewID); w != nil {
				childWidgets = append(childWidgets, w)
			}
		}

		if len(childWidgets) == 1 && childWidgets[0].GetHTMLClass() == widget.HTMLParagraph {
			toMerge = append(toMerge, childWidgets[0])
			checklist = append(checklist, childWidgets[0])
		} else if len(childWidgets) > 1 {
			notMerge = append(notMerge, childWidgets...)
		} else {
			for _, child := range childWidgets {
				if shouldMerge(cur, child) {
					toMerge = append(toMerge, child)
				} else {
					notMerge = append(notMerge, child)
				}
			}
		}
	}

	hasChild := len(notMerge) > 0
	g.builder.WriteString(strings.Repeat("\t", g.tabCount-1))
	g.builder.WriteString(parent.ToHTML(toMerge, hasChild))

	for _, w := range notMerge {
		g.generate(w.ID(), parent.ID())
	}

	if hasChild {
		g.builder.WriteString(strings.Repeat("\t", g.tabCount-1))
		_, endTag := parent.GetHTMLClass().Tags()
		g.builder.WriteString(endTag)
		g.builder.WriteString("\n")
	}
	g.tabCount--
}

func shouldMerge(father, child *widget.Widget) bool {
	return len(child.Children()) == 0 &&
		child.GetHTMLClass() == widget.HTMLParagraph &&
		father.GetHTMLClass() == widget.HTMLButton
}

// Similarity computes 2m/(|W1|+|W2|) where m is the number of hash matches
// found scanning the smaller widget set against the larger (spec.md §4.B).
// Not a metric: callers must not assume the triangle inequality.
func (s *DeviceState) Similarity(other *DeviceState) float64 {
	larger, smaller := s.widgets, other.widgets
	if len(larger) < len(smaller) {
		larger, smaller = smaller, larger
	}
	matched := 0
	for _, candidate := range smaller {
		for _, w := range larger {
			if w.Hash() == candidate.Hash() {
				matched++
				break
			}
		}
	}
	total := len(s.widgets) + len(other.widgets)
	if total == 0 {
		return 0
	}
	return float64(2*matched) / float64(total)
}

// FindWidgetByID returns the widget with the given view id among all
// widgets (canonical and merged).
func (s *DeviceState) FindWidgetByID(id int) *widget.Widget {
	for _, w := range s.AllWidgets() {
		if w.ID() == id {
			return w
		}
	}
	return nil
}

// FindSimilarWidget looks up, by hash, the widget in this state
// corresponding to w from another state; disambiguates duplicates by
// matching position, falling back to the last-added duplicate, then the
// canonical widget (spec.md §4.B / Open Question: when pos == -1 we return
// the canonical widget directly, matching the Python original's behavior).
func (s *DeviceState) FindSimilarWidget(w *widget.Widget) *widget.Widget {
	canonical, ok := s.widgetsByHash[w.Hash()]
	if !ok {
		return nil
	}
	if w.Position() == -1 {
		return canonical
	}
	dups := s.mergedWidgets[w.Hash()]
	if w.Position() < len(dups) {
		return dups[w.Position()]
	}
	if len(dups) > 0 {
		return dups[len(dups)-1]
	}
	return canonical
}

// PossibleInputs enumerates the deterministic default event set: clickable
// touches, 4-directional scrolls for scrollables, checkable touches,
// long-touches, set-text for editables, then a default touch for any
// remaining leaf view not already covered (spec.md §4.B).
func (s *DeviceState) PossibleInputs() []event.Event {
	var events []event.Event
	var enabledIDs []int
	excluded := make(map[int]bool)

	for _, v := range s.views {
		if v.Enabled && v.Visible && v.ResourceID != excludedNavBar && v.ResourceID != excludedStatus {
			enabledIDs = append(enabledIDs, v.TempID)
		}
	}

	for _, id := range enabledIDs {
		v := s.views[id]
		if v.Clickable {
			events = append(events, event.Touch(id))
			excluded[id] = true
			for _, c := range s.allChildren(id) {
				excluded[c] = true
			}
		}
	}
	for _, id := range enabledIDs {
		if s.views[id].Scrollable {
			events = append(events,
				event.ScrollEvent(id, event.ScrollUp),
				event.ScrollEvent(id, event.ScrollDown),
				event.ScrollEvent(id, event.ScrollLeft),
				event.ScrollEvent(id, event.ScrollRight),
			)
		}
	}
	for _, id := range enabledIDs {
		v := s.views[id]
		if v.Checkable {
			events = append(events, event.Touch(id))
			excluded[id] = true
			for _, c := range s.allChildren(id) {
				excluded[c] = true
			}
		}
	}
	for _, id := range enabledIDs {
		if s.views[id].LongClickable {
			events = append(events, event.LongTouch(id))
		}
	}
	for _, id := range enabledIDs {
		if s.views[id].Editable {
			events = append(events, event.SetText(id, "Hello World"))
			excluded[id] = true
		}
	}
	for _, id := range enabledIDs {
		if excluded[id] {
			continue
		}
		if len(s.views[id].Children) > 0 {
			continue
		}
		events = append(events, event.Touch(id))
	}
	return events
}

func (s *DeviceState) allChildren(viewID int) []int {
	if viewID < 0 || viewID >= len(s.views) {
		return nil
	}
	var out []int
	for _, c := range s.views[viewID].Children {
		out = append(out, c)
		out = append(out, s.allChildren(c)...)
	}
	return out
}

// FindSimilarEvent filters PossibleInputs to events targeting the same
// widget hash and action kind as e, preferring the candidate whose target
// widget shares e's exact position, else the candidate closest in position.
func (s *DeviceState) FindSimilarEvent(e event.Event, targetWidget *widget.Widget) *event.Event {
	var candidates []event.Event
	for _, cand := range s.PossibleInputs() {
		if cand.Kind != e.Kind {
			continue
		}
		w := s.FindWidgetByID(cand.WidgetID)
		if w == nil || w.Hash() != targetWidget.Hash() {
			continue
		}
		candidates = append(candidates, cand)
	}
	if len(candidates) == 0 {
		return nil
	}
	sort.SliceStable(candidates, func(i, j int) bool {
		wi := s.FindWidgetByID(candidates[i].WidgetID)
		wj := s.FindWidgetByID(candidates[j].WidgetID)
		return abs(wi.Position()-targetWidget.Position()) < abs(wj.Position()-targetWidget.Position())
	})
	for _, c := range candidates {
		if w := s.FindWidgetByID(c.WidgetID); w != nil && w.Position() == targetWidget.Position() {
			out := c
			return &out
		}
	}
	out := candidates[0]
	return &out
}

func abs(n int) int {
	if n < 0 {
		return -n
	}
	return n
}

// FindEventByIDAndType returns the event matching an exact (widgetID,
// actionKind) pair among PossibleInputs, or nil.
func (s *DeviceState) FindEventByIDAndType(widgetID int, kind event.Kind) *event.Event {
	for _, e := range s.PossibleInputs() {
		if e.WidgetID == widgetID && e.Kind == kind {
			out := e
			return &out
		}
	}
	return nil
}

// DiffWidgets returns widgets of this state whose hash is absent in target,
// excluding classes whose name contains "layout" (case-insensitive).
func (s *DeviceState) DiffWidgets(target *DeviceState) []*widget.Widget {
	if target == s {
		return nil
	}
	var diff []*widget.Widget
	for _, w := range s.widgets {
		if _, found := target.widgetsByHash[w.Hash()]; found {
			continue
		}
		if strings.Contains(strings.ToLower(w.ShortClass()), "layout") {
			continue
		}
		diff = append(diff, w)
	}
	return diff
}
