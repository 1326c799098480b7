// Package uxplore is a thin facade over the exploration engine's internal
// packages, re-exporting the types a host application wires together:
// the device driver contract, the LLM oracle contract, and the
// controller's driving mode (mirroring the teacher's mbflow.go facade).
package uxplore

import (
	"github.com/smilemakc/uxplore/internal/application/controller"
	"github.com/smilemakc/uxplore/internal/application/llmagent"
	"github.com/smilemakc/uxplore/internal/infrastructure/device"
	"github.com/smilemakc/uxplore/internal/infrastructure/observer"
)

// Mode is the controller's current driving strategy.
type Mode = controller.Mode

const (
	ModeExplore      = controller.ModeExplore
	ModeAskGuidance  = controller.ModeAskGuidance
	ModeNavigate     = controller.ModeNavigate
	ModeTestFunction = controller.ModeTestFunction
)

// Controller drives one exploration session end to end.
type Controller = controller.Controller

// New wires a Controller exactly as controller.New does; re-exported so a
// host only needs to import the root package for the common case.
var New = controller.New

// Explorer is the free-exploration fallback a host supplies to New.
type Explorer = controller.Explorer

// Driver is the device driver contract an embedder implements to connect
// this engine to a real device, emulator, or recorded fixture.
type Driver = device.Driver

// DeviceSnapshot is what a Driver.Capture call returns.
type DeviceSnapshot = device.Snapshot

// Oracle is the LLM contract: a single prompt-in, text-out round trip.
type Oracle = llmagent.Oracle

// Transcript logs every prompt/response pair and its latency.
type Transcript = llmagent.Transcript

// Broadcaster is the live feed a Controller pushes UTG growth and
// mode-transition events to, satisfied by *observer.Hub.
type Broadcaster = controller.Broadcaster

// Feed is one event pushed to a Broadcaster.
type Feed = observer.Feed
