package entitlement

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGuardRunsActionWhenRoomLeft(t *testing.T) {
	f := NewFakeFetcher(
		Snapshot{Used: 1, Limit: 3, Remaining: 2},
		Snapshot{Used: 2, Limit: 3, Remaining: 1},
	)
	g := NewGate(f, false, nil)

	calls := 0
	res := g.Guard(context.Background(), "improve", func(context.Context) error {
		calls++
		return nil
	})

	assert.Equal(t, 1, calls)
	assert.True(t, res.Ran)
	assert.False(t, res.Blocked)
	require.NoError(t, res.Err)
	// The returned snapshot is the post-action refresh, not the pre-check.
	assert.Equal(t, 2, res.Snapshot.Used)
	assert.Equal(t, 2, f.Calls())
}

func TestGuardNeverInvokesActionWhenBlocked(t *testing.T) {
	f := NewFakeFetcher(Snapshot{Used: 3, Limit: 3, Remaining: 0, Blocked: true})
	g := NewGate(f, false, nil)

	calls := 0
	res := g.Guard(context.Background(), "record", func(context.Context) error {
		calls++
		return nil
	})

	assert.Equal(t, 0, calls, "blocked gate must not fire the billed action")
	assert.True(t, res.Blocked)
	assert.False(t, res.Ran)
	assert.Equal(t, 1, f.Calls(), "no refresh when the action never ran")
}

func TestGuardRefreshesExactlyOnceAfterFailure(t *testing.T) {
	f := NewFakeFetcher(
		Snapshot{Used: 0, Limit: 3, Remaining: 3},
		Snapshot{Used: 1, Limit: 3, Remaining: 2},
	)
	g := NewGate(f, false, nil)

	boom := errors.New("network reset")
	res := g.Guard(context.Background(), "improve", func(context.Context) error {
		assert.Equal(t, 1, f.Calls(), "pre-check happened before the action")
		return boom
	})

	assert.Equal(t, 2, f.Calls(), "exactly one refetch after settlement")
	assert.True(t, res.Ran)
	assert.False(t, res.Blocked, "plain failure is not entitlement exhaustion")
	assert.ErrorIs(t, res.Err, boom)
	assert.Equal(t, 1, res.Snapshot.Used, "failed attempt may still consume quota")
}

func TestGuardFailsOpenOnFetchOutage(t *testing.T) {
	// An empty fake behaves like the real client during an outage: it
	// serves the fail-open default.
	f := NewFakeFetcher()
	g := NewGate(f, false, nil)

	calls := 0
	res := g.Guard(context.Background(), "speak", func(context.Context) error {
		calls++
		return nil
	})

	assert.Equal(t, 1, calls, "outage must not block the action")
	assert.False(t, res.Blocked)
}

func TestGuardUpgradeErrorOpensPaywallAndForcesCounter(t *testing.T) {
	// Refresh fails open, so without forcing the UI would show 0/3 used.
	f := NewFakeFetcher(
		Snapshot{Used: 2, Limit: 3, Remaining: 1},
		FailOpen(),
	)
	g := NewGate(f, false, nil)

	res := g.Guard(context.Background(), "improve", func(context.Context) error {
		return &UpgradeError{Status: 402}
	})

	assert.True(t, res.Blocked)
	assert.True(t, res.Ran)
	assert.ErrorIs(t, res.Err, ErrUpgradeRequired)
	assert.Equal(t, 0, res.Snapshot.Remaining)
	assert.Equal(t, res.Snapshot.Limit, res.Snapshot.Used)
}

func TestGuardUpgradeErrorKeepsAuthoritativeRefresh(t *testing.T) {
	f := NewFakeFetcher(
		Snapshot{Used: 2, Limit: 3, Remaining: 1},
		Snapshot{Used: 3, Limit: 3, Remaining: 0, Blocked: true},
	)
	g := NewGate(f, false, nil)

	res := g.Guard(context.Background(), "improve", func(context.Context) error {
		return &UpgradeError{Status: 402}
	})

	assert.True(t, res.Blocked)
	assert.Equal(t, 3, res.Snapshot.Used, "server's own refresh is not overwritten")
}

func TestGuardProSkipsPreCheck(t *testing.T) {
	f := NewFakeFetcher(Snapshot{Used: 3, Limit: 3, Remaining: 0, Blocked: true})
	g := NewGate(f, true, nil)

	calls := 0
	res := g.Guard(context.Background(), "improve", func(context.Context) error {
		calls++
		// The pre-check fetch was skipped; only the refresh runs.
		assert.Equal(t, 0, f.Calls())
		return nil
	})

	assert.Equal(t, 1, calls)
	assert.False(t, res.Blocked)
	assert.Equal(t, 1, f.Calls(), "post-action refresh still happens for pro")
}
