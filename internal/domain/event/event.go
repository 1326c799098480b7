// Package event defines the tagged-variant event hierarchy the controller
// emits to the device driver (spec.md §6, §9 "Inheritance").
package event

import "fmt"

// Kind discriminates the event variant.
type Kind int

const (
	KindTouch Kind = iota
	KindLongTouch
	KindScroll
	KindSetText
	KindKey
	KindIntentStart
	KindIntentStop
	KindIntentKill
)

// ScrollDir is the direction of a Scroll event.
type ScrollDir int

const (
	ScrollUp ScrollDir = iota
	ScrollDown
	ScrollLeft
	ScrollRight
)

// Event is a single dispatchable action against a widget or the device.
// WidgetID is -1 for device-level events (Key, Intent).
type Event struct {
	Kind     Kind
	WidgetID int
	Scroll   ScrollDir
	Text     string
	KeyName  string
}

// Touch creates a click event on widgetID.
func Touch(widgetID int) Event { return Event{Kind: KindTouch, WidgetID: widgetID} }

// LongTouch creates a long-click event on widgetID.
func LongTouch(widgetID int) Event { return Event{Kind: KindLongTouch, WidgetID: widgetID} }

// ScrollEvent creates a scroll event in dir on widgetID.
func ScrollEvent(widgetID int, dir ScrollDir) Event {
	return Event{Kind: KindScroll, WidgetID: widgetID, Scroll: dir}
}

// SetText creates a text-input event on widgetID.
func SetText(widgetID int, text string) Event {
	return Event{Kind: KindSetText, WidgetID: widgetID, Text: text}
}

// Key creates a hardware-key event (e.g. BACK).
func Key(name string) Event { return Event{Kind: KindKey, WidgetID: -1, KeyName: name} }

// Back is the BACK key event, the standard recovery action on capture
// failure (spec.md §4.G step 1).
func Back() Event { return Key("BACK") }

// Stop is the synthetic STOP_APP event UTG.GetPaths prepends as a path's
// first step (spec.md §4.D).
func Stop() Event { return Event{Kind: KindIntentStop, WidgetID: -1} }

// EventStr renders a stable textual key for this event as applied against a
// given origin state fingerprint, used as the UTG edge map key. Two logically
// identical events against the same state must render identically so that
// idempotent re-application collapses onto the same edge (P4).
func (e Event) EventStr(stateStr string) string {
	switch e.Kind {
	case KindTouch:
		return fmt.Sprintf("touch(%d)@%s", e.WidgetID, stateStr)
	case KindLongTouch:
		return fmt.Sprintf("longtouch(%d)@%s", e.WidgetID, stateStr)
	case KindScroll:
		return fmt.Sprintf("scroll(%d,%d)@%s", e.WidgetID, e.Scroll, stateStr)
	case KindSetText:
		return fmt.Sprintf("settext(%d)@%s", e.WidgetID, stateStr)
	case KindKey:
		return fmt.Sprintf("key(%s)@%s", e.KeyName, stateStr)
	case KindIntentStart:
		return fmt.Sprintf("intent-start@%s", stateStr)
	case KindIntentStop:
		return fmt.Sprintf("intent-stop@%s", stateStr)
	case KindIntentKill:
		return fmt.Sprintf("intent-kill@%s", stateStr)
	default:
		return fmt.Sprintf("unknown@%s", stateStr)
	}
}

// SameActionTarget reports whether e and other address the same widget with
// the same action kind, ignoring payload (text/scroll direction).
func (e Event) SameActionTarget(other Event) bool {
	return e.Kind == other.Kind && e.WidgetID == other.WidgetID
}
