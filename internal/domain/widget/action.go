package widget

// OperateType is a bitmask of the capability flags a view may carry.
type OperateType uint32

const (
	OperateNone          OperateType = 0
	OperateEnable        OperateType = 1 << 0
	OperateClickable     OperateType = 1 << 1
	OperateCheckable     OperateType = 1 << 2
	OperateLongClickable OperateType = 1 << 3
	OperateScrollable    OperateType = 1 << 4
	OperateEditable      OperateType = 1 << 5
)

// ScrollType classifies the scroll axes a scrollable widget supports.
type ScrollType int

const (
	ScrollAll ScrollType = iota
	ScrollHorizontal
	ScrollVertical
	ScrollNone
)

// HTMLClass is the derived rendering class of a widget.
type HTMLClass int

const (
	HTMLButton HTMLClass = iota
	HTMLCheckbox
	HTMLScroller
	HTMLInput
	HTMLParagraph
)

// Tags returns the opening and closing tag text for this HTML class.
func (c HTMLClass) Tags() (start, end string) {
	switch c {
	case HTMLButton:
		return "<button", "</button>"
	case HTMLCheckbox:
		return "<checkbox", "</checkbox>"
	case HTMLScroller:
		return "<scroller", "</scroller>"
	case HTMLInput:
		return "<input", "</input>"
	default:
		return "<p", "</p>"
	}
}

// ActionKind enumerates the action codes TEST_FUNCTION replies use, in the
// exact order spec.md §4.F lists them. The wire value the LLM returns is an
// offset added to ActionClick's ordinal, mirroring the Python original's
// ActionType.get_type_by_value(value + ActionType.CLICK.value).
type ActionKind int

const (
	ActionClick ActionKind = iota
	ActionLongClick
	ActionScrollTopDown
	ActionScrollBottomUp
	ActionScrollLeftRight
	ActionScrollRightLeft
	ActionInput
)

// ActionKindFromOffset maps a TEST_FUNCTION "Action Type" wire value (0..6)
// to its ActionKind. The wire value already equals the ActionKind ordinal in
// this port; the helper exists to document the original's offset convention
// and to validate the range.
func ActionKindFromOffset(offset int) (ActionKind, bool) {
	if offset < int(ActionClick) || offset > int(ActionInput) {
		return 0, false
	}
	return ActionKind(offset), true
}
