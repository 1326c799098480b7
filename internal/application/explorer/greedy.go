// Package explorer implements the free-exploration policy the controller
// falls back to whenever no guided navigation or test-function action
// applies: prefer an event that has never been tried from the current
// state, otherwise pick any among the possible inputs at random (spec.md
// §1 "random/greedy-fuzzing strategy", grounded on the original's
// POLICY_GREEDY_DFS/BFS naming in input_policy.py — the concrete
// generate_event_based_on_utg subclass body wasn't part of the retrieved
// source, so the untried-first/random-fallback rule below is this
// module's own greedy strategy, not a direct port).
package explorer

import (
	"context"
	"math/rand"

	"github.com/smilemakc/uxplore/internal/domain/devicestate"
	"github.com/smilemakc/uxplore/internal/domain/event"
)

// explored reports whether e has already been dispatched from state.
type explored interface {
	IsEventExplored(e event.Event, state *devicestate.DeviceState) bool
}

// Greedy implements controller.Explorer: untried events first, uniform
// random choice among them when more than one qualifies, and a BACK when
// the state offers nothing to try.
type Greedy struct {
	u   explored
	rnd *rand.Rand
}

// NewGreedy wires a Greedy explorer against u's explored-event bookkeeping.
// seed lets callers make a run's free-exploration choices reproducible.
func NewGreedy(u explored, seed int64) *Greedy {
	return &Greedy{u: u, rnd: rand.New(rand.NewSource(seed))}
}

func (g *Greedy) NextEvent(ctx context.Context, state *devicestate.DeviceState) event.Event {
	candidates := state.PossibleInputs()
	if len(candidates) == 0 {
		return event.Back()
	}

	var untried []event.Event
	for _, e := range candidates {
		if !g.u.IsEventExplored(e, state) {
			untried = append(untried, e)
		}
	}
	if len(untried) > 0 {
		return untried[g.rnd.Intn(len(untried))]
	}
	return candidates[g.rnd.Intn(len(candidates))]
}
