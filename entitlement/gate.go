package entitlement

import (
	"context"
	"errors"

	"parley/log"
	"parley/statusbus"
)

// Result is what Guard hands back. Snapshot is always the freshest view
// the gate has, so callers update their displayed counter from it instead
// of relying on side-channel refresh callbacks.
type Result struct {
	Err      error
	Snapshot Snapshot
	Blocked  bool // true when the paywall should be shown
	Ran      bool // true when the action was actually invoked
}

// Gate wraps metered actions. Check-before-act, refresh-after-attempt.
type Gate struct {
	fetcher Fetcher
	bus     *statusbus.Bus
	pro     bool
}

func NewGate(f Fetcher, pro bool, bus *statusbus.Bus) *Gate {
	return &Gate{fetcher: f, pro: pro, bus: bus}
}

// Guard runs action under the entitlement gate:
//
//  1. Pro identities skip the pre-check entirely, no network call.
//  2. Otherwise fetch a fresh snapshot and, if it is blocked, return with
//     Blocked set and the action never invoked.
//  3. Run the action.
//  4. Refresh the snapshot once, regardless of the action's outcome; a
//     failed attempt may still have consumed quota server-side.
//  5. An upgrade-required failure from the action is treated like a
//     pre-check block, with the counter forced to the limit in case the
//     refresh itself failed open.
//
// Connectivity failures never open the paywall: only the server's blocked
// flag or a structured upgrade-required error does.
func (g *Gate) Guard(ctx context.Context, name string, action func(ctx context.Context) error) Result {
	if !g.pro {
		snap := g.fetcher.Fetch(ctx)
		if Blocked(&snap) {
			log.Guard(name, "blocked")
			g.bus.Publish(statusbus.Event{Source: "guard", Detail: name + ": blocked"})
			return Result{Snapshot: snap, Blocked: true}
		}
	}

	err := action(ctx)

	fresh := g.fetcher.Fetch(ctx)

	if errors.Is(err, ErrUpgradeRequired) {
		log.Guard(name, "upgrade required")
		g.bus.Publish(statusbus.Event{Source: "guard", Detail: name + ": upgrade required"})
		if !Blocked(&fresh) {
			fresh = fresh.Exhausted()
		}
		return Result{Snapshot: fresh, Blocked: true, Ran: true, Err: err}
	}

	if err != nil {
		log.Guard(name, "failed")
	} else {
		log.Guard(name, "ok")
	}
	return Result{Snapshot: fresh, Ran: true, Err: err}
}
