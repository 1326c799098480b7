// Package device is the device driver boundary: capturing the foreground
// UI and dispatching events to whatever is actually running the app under
// test (an Android emulator, a real device, a recorded fixture). None of
// the exploration core imports this package directly; a caller wires a
// Driver into the Explorer it hands to the controller (spec.md §6 "Device
// driver contract").
package device

import (
	"context"
	"errors"

	"github.com/smilemakc/uxplore/internal/domain/devicestate"
	"github.com/smilemakc/uxplore/internal/domain/event"
	"github.com/smilemakc/uxplore/internal/domain/widget"
)

// ErrCaptureFailed signals a transient device failure: the caller should
// fall back to event.Back() and retry on the next step (spec.md §7
// "Transient device failure").
var ErrCaptureFailed = errors.New("device: capture failed")

// Snapshot is exactly what a capture returns: the raw view list plus the
// activity context devicestate.New needs to build a DeviceState.
type Snapshot struct {
	Views              []widget.View
	ForegroundActivity string
	ActivityStack      []string
	ScreenshotPath     string
}

// Driver is the device driver contract: capture the current UI, and send
// one event to it. state is the DeviceState the event was resolved
// against, so a Send implementation can map WidgetID back to on-screen
// coordinates. Implementations may block and may fail; a failed capture
// returns ErrCaptureFailed rather than a zero Snapshot, so callers never
// mistake "device hung up" for "empty screen".
type Driver interface {
	Capture(ctx context.Context) (*Snapshot, error)
	Send(ctx context.Context, e event.Event, state *devicestate.DeviceState) error
}
