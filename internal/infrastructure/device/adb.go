package device

import (
	"bytes"
	"context"
	"encoding/xml"
	"fmt"
	"os/exec"
	"strconv"
	"strings"

	"github.com/smilemakc/uxplore/internal/domain/devicestate"
	"github.com/smilemakc/uxplore/internal/domain/event"
	"github.com/smilemakc/uxplore/internal/domain/widget"
)

// ADBDriver drives a single Android device/emulator over `adb`, capturing
// via `uiautomator dump` and dispatching via `adb shell input`. No
// third-party ADB client appears anywhere in the retrieval pack, so this
// stays on os/exec + encoding/xml rather than reaching for an unrelated
// ecosystem library.
type ADBDriver struct {
	serial string
}

// NewADBDriver targets a specific device serial, or every attached device
// when serial is empty (adb's own default).
func NewADBDriver(serial string) *ADBDriver {
	return &ADBDriver{serial: serial}
}

func (d *ADBDriver) adb(ctx context.Context, args ...string) ([]byte, error) {
	full := args
	if d.serial != "" {
		full = append([]string{"-s", d.serial}, args...)
	}
	cmd := exec.CommandContext(ctx, "adb", full...)
	var out, stderr bytes.Buffer
	cmd.Stdout = &out
	cmd.Stderr = &stderr
	if err := cmd.Run(); err != nil {
		return nil, fmt.Errorf("adb %s: %w: %s", strings.Join(args, " "), err, stderr.String())
	}
	return out.Bytes(), nil
}

func (d *ADBDriver) Capture(ctx context.Context) (*Snapshot, error) {
	if _, err := d.adb(ctx, "shell", "uiautomator", "dump", "/sdcard/uxplore_dump.xml"); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrCaptureFailed, err)
	}
	raw, err := d.adb(ctx, "shell", "cat", "/sdcard/uxplore_dump.xml")
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrCaptureFailed, err)
	}

	views, err := parseUIAutomatorXML(raw)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrCaptureFailed, err)
	}

	activityRaw, err := d.adb(ctx, "shell", "dumpsys", "activity", "activities")
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrCaptureFailed, err)
	}
	activity := parseForegroundActivity(activityRaw)

	return &Snapshot{Views: views, ForegroundActivity: activity}, nil
}

// Send resolves e's WidgetID against state's current widget set to find
// on-screen coordinates, since uiautomator/adb addresses the UI by
// position, not by the controller's logical widget ids.
func (d *ADBDriver) Send(ctx context.Context, e event.Event, state *devicestate.DeviceState) error {
	switch e.Kind {
	case event.KindTouch, event.KindLongTouch, event.KindScroll, event.KindSetText:
		w := state.FindWidgetByID(e.WidgetID)
		if w == nil {
			return fmt.Errorf("device: widget %d not found in current state", e.WidgetID)
		}
		cx, cy := center(w.Bounds())
		return d.sendForKind(ctx, e, cx, cy)
	case event.KindKey:
		_, err := d.adb(ctx, "shell", "input", "keyevent", e.KeyName)
		return err
	case event.KindIntentStop, event.KindIntentKill:
		_, err := d.adb(ctx, "shell", "am", "force-stop", state.ForegroundActivity())
		return err
	default:
		return fmt.Errorf("device: unsupported event kind %v", e.Kind)
	}
}

func (d *ADBDriver) sendForKind(ctx context.Context, e event.Event, x, y int) error {
	switch e.Kind {
	case event.KindTouch:
		_, err := d.adb(ctx, "shell", "input", "tap", strconv.Itoa(x), strconv.Itoa(y))
		return err
	case event.KindLongTouch:
		_, err := d.adb(ctx, "shell", "input", "swipe", strconv.Itoa(x), strconv.Itoa(y), strconv.Itoa(x), strconv.Itoa(y), "800")
		return err
	case event.KindScroll:
		dx, dy := x, y
		switch e.Scroll {
		case event.ScrollUp:
			dy -= 600
		case event.ScrollDown:
			dy += 600
		case event.ScrollLeft:
			dx -= 600
		case event.ScrollRight:
			dx += 600
		}
		_, err := d.adb(ctx, "shell", "input", "swipe", strconv.Itoa(x), strconv.Itoa(y), strconv.Itoa(dx), strconv.Itoa(dy), "300")
		return err
	case event.KindSetText:
		_, err := d.adb(ctx, "shell", "input", "text", strconv.Quote(e.Text))
		return err
	}
	return nil
}

func center(b widget.Bounds) (int, int) {
	return (b.Left + b.Right) / 2, (b.Top + b.Bottom) / 2
}

// xmlNode mirrors one <node> element of a uiautomator dump.
type xmlNode struct {
	Text       string    `xml:"text,attr"`
	ResourceID string    `xml:"resource-id,attr"`
	Class      string    `xml:"class,attr"`
	Bounds     string    `xml:"bounds,attr"`
	Clickable  string    `xml:"clickable,attr"`
	Checkable  string    `xml:"checkable,attr"`
	Scrollable string    `xml:"scrollable,attr"`
	Enabled    string    `xml:"enabled,attr"`
	Children   []xmlNode `xml:"node"`
}

type xmlHierarchy struct {
	XMLName xml.Name  `xml:"hierarchy"`
	Nodes   []xmlNode `xml:"node"`
}

// parseUIAutomatorXML flattens the dumped tree into a widget.View list,
// assigning each node its index as TempID and recording parent/child
// links by index, matching the ordering DeviceState.initWidgets expects.
func parseUIAutomatorXML(raw []byte) ([]widget.View, error) {
	var h xmlHierarchy
	if err := xml.Unmarshal(raw, &h); err != nil {
		return nil, err
	}

	var views []widget.View
	var walk func(n xmlNode, parent int)
	walk = func(n xmlNode, parent int) {
		x1, y1, x2, y2 := parseBounds(n.Bounds)
		id := len(views)
		views = append(views, widget.View{
			TempID:     id,
			Class:      n.Class,
			ResourceID: n.ResourceID,
			Text:       n.Text,
			TextSet:    true, // uiautomator dumps always carry a text attribute, even when empty
			Bounds:     widget.Bounds{Left: x1, Top: y1, Right: x2, Bottom: y2},
			Parent:     parent,
			Enabled:    n.Enabled == "true",
			Visible:    true,
			Clickable:  n.Clickable == "true",
			Checkable:  n.Checkable == "true",
			Scrollable: n.Scrollable == "true",
		})
		for _, c := range n.Children {
			childIdx := len(views)
			views[id].Children = append(views[id].Children, childIdx)
			walk(c, id)
		}
	}
	for _, n := range h.Nodes {
		walk(n, -1)
	}
	return views, nil
}

func parseBounds(s string) (x1, y1, x2, y2 int) {
	s = strings.ReplaceAll(s, "][", ",")
	s = strings.Trim(s, "[]")
	parts := strings.Split(s, ",")
	if len(parts) != 4 {
		return 0, 0, 0, 0
	}
	x1, _ = strconv.Atoi(parts[0])
	y1, _ = strconv.Atoi(parts[1])
	x2, _ = strconv.Atoi(parts[2])
	y2, _ = strconv.Atoi(parts[3])
	return
}

func parseForegroundActivity(raw []byte) string {
	for _, line := range strings.Split(string(raw), "\n") {
		line = strings.TrimSpace(line)
		if strings.HasPrefix(line, "mResumedActivity") || strings.HasPrefix(line, "topResumedActivity") {
			idx := strings.Index(line, "{")
			if idx == -1 {
				continue
			}
			fields := strings.Fields(line[idx:])
			if len(fields) >= 3 {
				return strings.TrimSuffix(fields[2], "}")
			}
		}
	}
	return ""
}
