package widget

// Bounds is the screen rectangle [left,top]-[right,bottom] a view occupies.
type Bounds struct {
	Left, Top, Right, Bottom int
}

func (b Bounds) Width() int  { return b.Right - b.Left }
func (b Bounds) Height() int { return b.Bottom - b.Top }

// View is the raw, driver-supplied description of a single node in a
// captured view tree (spec.md §3 "View node (input)").
type View struct {
	TempID          int
	Class           string
	ResourceID      string
	Text            string
	// TextSet distinguishes a text attribute the driver captured as empty
	// from one it never captured at all, the same distinction the original
	// view_dict makes via dict-key presence. Drivers that always emit a
	// text attribute (e.g. the uiautomator XML dump) should set this true.
	TextSet         bool
	ContentDesc     string
	Bounds          Bounds
	Children        []int
	Parent          int // -1 if root
	Enabled         bool
	Visible         bool
	Clickable       bool
	Checkable       bool
	LongClickable   bool
	Scrollable      bool
	Editable        bool
	Checked         bool
	Selected        bool
}
