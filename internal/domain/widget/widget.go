package widget

import (
	"hash/fnv"
	"strconv"
	"strings"
)

// Widget is the immutable per-view descriptor described in spec.md §3/§4.A.
// Two mutable fields are carried outside the otherwise-immutable value:
// Position (assigned once the owning DeviceState dedups widgets by hash) and
// Function (assigned later by the LLM agent).
type Widget struct {
	id            int
	class         string
	resourceID    string
	text          string
	contentDesc   string
	bounds        Bounds
	children      []int
	parent        int
	enabled       bool
	visible       bool
	clickable     bool
	checkable     bool
	longClickable bool
	scrollable    bool
	editable      bool
	actionMask    OperateType
	hash          int64

	position int
	function string
}

// FromView constructs a Widget from a raw View. It is a pure, total function
// given a well-formed view node (spec.md §4.A).
func FromView(v View) *Widget {
	w := &Widget{
		id:            v.TempID,
		class:         v.Class,
		resourceID:    v.ResourceID,
		text:          v.Text,
		contentDesc:   v.ContentDesc,
		bounds:        v.Bounds,
		children:      append([]int(nil), v.Children...),
		parent:        v.Parent,
		enabled:       v.Enabled,
		visible:       v.Visible,
		clickable:     v.Clickable,
		checkable:     v.Checkable,
		longClickable: v.LongClickable,
		scrollable:    v.Scrollable,
		editable:      v.Editable,
		position:      -1,
	}

	if w.enabled {
		w.actionMask |= OperateEnable
	}
	if w.clickable {
		w.actionMask |= OperateClickable
	}
	if w.checkable {
		w.actionMask |= OperateCheckable
	}
	if w.longClickable {
		w.actionMask |= OperateLongClickable
	}
	if w.scrollable {
		w.actionMask |= OperateScrollable
	}
	if w.editable {
		w.actionMask |= OperateEditable
	}

	w.hash = computeHash(w.class, w.resourceID, w.bounds.Width(), w.bounds.Height(), w.actionMask, w.GetScrollType())
	return w
}

// computeHash mixes (class, resource_id, width, height, capability_mask,
// scroll_type) into a stable identity hash. The mixing shape mirrors the
// original implementation's bit-shuffle; the underlying per-field hash is
// FNV-1a rather than a language-specific hash() builtin, since only
// determinism across calls (P2) is required, not bit-for-bit parity with the
// Python source.
func computeHash(class, resourceID string, width, height int, mask OperateType, scroll ScrollType) int64 {
	h1 := hashString(class)
	h2 := hashString(resourceID)
	h3 := hashInt(width)
	h4 := hashInt(height)
	h5 := hashInt(int(mask))
	h6 := hashInt(int(scroll))

	return ((h1 ^ (h2 << 5)) >> 3) ^
		(((127*h3)<<1)^((256*h4)<<4))>>2 ^
		(((h5 << 6) ^ (h6 << 7)) >> 4)
}

func hashString(s string) int64 {
	h := fnv.New64a()
	_, _ = h.Write([]byte(s))
	return int64(h.Sum64())
}

func hashInt(n int) int64 {
	return hashString(strconv.Itoa(n))
}

// ID returns the driver-assigned temporary view id.
func (w *Widget) ID() int { return w.id }

// Hash returns the stable cross-state identity hash (P2).
func (w *Widget) Hash() int64 { return w.hash }

// Position returns the disambiguator among widgets sharing a hash within one
// state, or -1 if unique.
func (w *Widget) Position() int { return w.position }

// SetPosition assigns the disambiguator; called by DeviceState during dedup.
func (w *Widget) SetPosition(pos int) { w.position = pos }

// Function returns the LLM-assigned function label, or "" if none.
func (w *Widget) Function() string { return w.function }

// SetFunction assigns the LLM-derived function label.
func (w *Widget) SetFunction(fn string) { w.function = fn }

func (w *Widget) Class() string              { return w.class }
func (w *Widget) ResourceID() string         { return w.resourceID }
func (w *Widget) Text() string               { return w.text }
func (w *Widget) ContentDesc() string        { return w.contentDesc }
func (w *Widget) Bounds() Bounds             { return w.bounds }
func (w *Widget) Children() []int            { return w.children }
func (w *Widget) Parent() int                { return w.parent }
func (w *Widget) Enabled() bool              { return w.enabled }
func (w *Widget) Visible() bool              { return w.visible }
func (w *Widget) Clickable() bool            { return w.clickable }
func (w *Widget) Checkable() bool            { return w.checkable }
func (w *Widget) LongClickable() bool        { return w.longClickable }
func (w *Widget) Scrollable() bool           { return w.scrollable }
func (w *Widget) Editable() bool             { return w.editable }
func (w *Widget) ActionMask() OperateType    { return w.actionMask }

// ShortClass returns the class name with any package prefix stripped.
func (w *Widget) ShortClass() string {
	parts := strings.Split(w.class, ".")
	return parts[len(parts)-1]
}

// ShortResourceID returns the resource id with any package prefix stripped.
func (w *Widget) ShortResourceID() string {
	parts := strings.Split(w.resourceID, "/")
	return parts[len(parts)-1]
}

// GetHTMLClass derives the rendering class by capability priority: checkable
// -> editable(input) -> scrollable(scroller) -> clickable(button) -> else p
// (spec.md §3).
func (w *Widget) GetHTMLClass() HTMLClass {
	switch {
	case w.checkable:
		return HTMLCheckbox
	case w.editable:
		return HTMLInput
	case w.scrollable:
		return HTMLScroller
	case w.clickable:
		return HTMLButton
	default:
		return HTMLParagraph
	}
}

// GetScrollType derives scroll axis support from class-name heuristics.
func (w *Widget) GetScrollType() ScrollType {
	if !w.scrollable {
		return ScrollNone
	}
	switch w.class {
	case "android.widget.ScrollView", "android.widget.ListView", "android.widget.ExpandableListView",
		"android.support.v17.leanback.widget.VerticalGridView", "android.support.v7.widget.RecyclerView",
		"androidx.recyclerview.widget.RecyclerView":
		return ScrollVertical
	case "android.widget.HorizontalScrollView", "android.support.v17.leanback.widget.HorizontalGridView",
		"android.support.v4.view.ViewPager":
		return ScrollHorizontal
	}
	if strings.Contains(w.class, "ScrollView") {
		return ScrollAll
	}
	return ScrollAll
}

// BriefDescription renders a short human-readable label for prompts/logs.
func (w *Widget) BriefDescription() string {
	var info string
	switch {
	case w.text != "":
		info = "(text:" + w.text + ")"
	case w.contentDesc != "":
		info = "(content-desc:" + w.contentDesc + ")"
	case w.resourceID != "":
		info = "(res-id:" + w.ShortResourceID() + ")"
	}
	return w.ShortClass() + info
}

// ToHTML renders the widget as a single line. mergeChildren are collapsed
// descendants whose resource-id/text are folded into this tag (spec.md
// §4.A). hasChild indicates the caller will emit this widget's remaining
// children as siblings rather than closing the tag here.
func (w *Widget) ToHTML(mergeChildren []*Widget, hasChild bool) string {
	return w.toHTML(w.id, mergeChildren, hasChild)
}

// RenderWithID renders the widget like ToHTML but substitutes id in the
// tag's id attribute instead of the widget's own view id. Used when a
// prompt assigns widgets a fresh numbering independent of their originating
// state (spec.md §4.F reanalysis prompt).
func (w *Widget) RenderWithID(id int, mergeChildren []*Widget, hasChild bool) string {
	return w.toHTML(id, mergeChildren, hasChild)
}

func (w *Widget) toHTML(id int, mergeChildren []*Widget, hasChild bool) string {
	class := w.GetHTMLClass()
	startTag, endTag := class.Tags()

	var b strings.Builder
	b.WriteString(startTag)
	b.WriteString(" ")
	b.WriteString("id=\"")
	b.WriteString(strconv.Itoa(id))
	b.WriteString("\" ")

	if shortClass := w.ShortClass(); shortClass != "" {
		b.WriteString("\"class=")
		b.WriteString(shortClass)
		b.WriteString("\" ")
	}

	resID := w.ShortResourceID()
	if resID != "" {
		b.WriteString("\"resource-id=")
		b.WriteString(resID)
		b.WriteString("\" ")
	} else {
		for _, m := range mergeChildren {
			if mr := m.ShortResourceID(); mr != "" {
				b.WriteString("\"resource-id=")
				b.WriteString(mr)
				b.WriteString("\" ")
				break
			}
		}
	}

	if w.contentDesc != "" {
		b.WriteString("\"content-desc=")
		b.WriteString(w.contentDesc)
		b.WriteString("\" ")
	}

	if class == HTMLScroller {
		switch w.GetScrollType() {
		case ScrollAll:
			b.WriteString(`direction="vertical, horizontal" `)
		case ScrollHorizontal:
			b.WriteString(`direction="horizontal" `)
		case ScrollVertical:
			b.WriteString(`direction="vertical" `)
		}
	}
	if class == HTMLInput {
		b.WriteString(`input="?" `)
	}

	b.WriteString(">")

	firstFlag := true
	if w.text != "" {
		b.WriteString(w.text)
		firstFlag = false
	}
	for _, m := range mergeChildren {
		childText := m.Text()
		if childText == "" {
			continue
		}
		if firstFlag {
			b.WriteString(childText)
			firstFlag = false
		} else {
			b.WriteString(" <br> ")
			b.WriteString(childText)
		}
	}

	if !hasChild {
		b.WriteString(endTag)
	}
	b.WriteString("\n")
	return b.String()
}
