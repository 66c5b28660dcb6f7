// Package entitlement tracks the free-tier daily budget against the remote
// usage service and gates metered actions on it. The server is the sole
// source of truth; everything here is an advisory cache that fails open.
package entitlement

import (
	"encoding/json"
	"errors"
	"fmt"
	"math"
)

// Unbounded marks a limit or remaining count with no cap. The wire encodes
// it as -1.
const Unbounded = math.MaxInt

// DefaultFreeLimit is the fail-open budget assumed when the usage service
// is unreachable. An outage must never lock out a paying-capable feature.
const DefaultFreeLimit = 3

// ErrUpgradeRequired classifies structured "quota exhausted" responses.
// It is the only error that opens the paywall; plain connectivity failures
// must never match it.
var ErrUpgradeRequired = errors.New("upgrade required")

// UpgradeError carries the status of an upgrade-required response.
type UpgradeError struct {
	Message string
	Status  int
}

func (e *UpgradeError) Error() string {
	if e.Message != "" {
		return fmt.Sprintf("upgrade required (%d): %s", e.Status, e.Message)
	}
	return fmt.Sprintf("upgrade required (%d)", e.Status)
}

func (e *UpgradeError) Unwrap() error { return ErrUpgradeRequired }

// Snapshot is a point-in-time view of today's usage. It is fetched fresh
// before every gated action and never persisted.
type Snapshot struct {
	Used      int
	Limit     int // Unbounded when the plan has no cap
	Remaining int // Unbounded when the plan has no cap
	Blocked   bool
}

// FailOpen is the snapshot assumed when the usage service cannot be
// reached.
func FailOpen() Snapshot {
	return Snapshot{Used: 0, Limit: DefaultFreeLimit, Remaining: DefaultFreeLimit, Blocked: false}
}

// Exhausted returns s with the counter forced to the limit. Used to keep
// the UI honest between an upgrade-required failure and the next refresh.
func (s Snapshot) Exhausted() Snapshot {
	s.Blocked = true
	s.Remaining = 0
	if s.Limit == Unbounded {
		s.Limit = DefaultFreeLimit
	}
	s.Used = s.Limit
	return s
}

// Blocked is the gate predicate. A nil snapshot fails open: missing data
// never blocks.
func Blocked(s *Snapshot) bool {
	if s == nil {
		return false
	}
	return s.Blocked || s.Remaining <= 0 || s.Used >= s.Limit
}

// countPair is the {count, limit} sub-object two of the legacy shapes use.
type countPair struct {
	Count *int `json:"count"`
	Limit *int `json:"limit"`
}

// usageWire accepts every historical encoding of the usage concept. The
// canonical "usage" object wins when a response carries several; the rest
// exist only for compatibility and should eventually be collapsed
// server-side.
type usageWire struct {
	Usage *struct {
		Used      *int  `json:"used"`
		Limit     *int  `json:"limit"`
		Remaining *int  `json:"remaining"`
		Blocked   *bool `json:"blocked"`
	} `json:"usage"`
	FreeAttempts      *countPair `json:"freeAttempts"`
	STTAttempts       *countPair `json:"sttAttempts"`
	FreeAttemptsUsed  *int       `json:"freeAttemptsUsed"`
	FreeAttemptsLimit *int       `json:"freeAttemptsLimit"`
}

// ParseSnapshot normalizes any of the legacy response shapes into a
// Snapshot. The -1 sentinel on limit/remaining means unbounded. The
// server's blocked flag is authoritative when present; arithmetic is a
// fallback for shapes that lack it.
func ParseSnapshot(data []byte) (Snapshot, error) {
	var w usageWire
	if err := json.Unmarshal(data, &w); err != nil {
		return Snapshot{}, fmt.Errorf("decoding usage response: %w", err)
	}

	var used int
	limit := DefaultFreeLimit
	var remaining *int
	var blocked *bool

	switch {
	case w.Usage != nil:
		if w.Usage.Used != nil {
			used = *w.Usage.Used
		}
		if w.Usage.Limit != nil {
			limit = *w.Usage.Limit
		}
		remaining = w.Usage.Remaining
		blocked = w.Usage.Blocked
	case w.FreeAttempts != nil:
		used, limit = pairCounts(w.FreeAttempts)
	case w.STTAttempts != nil:
		used, limit = pairCounts(w.STTAttempts)
	case w.FreeAttemptsUsed != nil || w.FreeAttemptsLimit != nil:
		if w.FreeAttemptsUsed != nil {
			used = *w.FreeAttemptsUsed
		}
		if w.FreeAttemptsLimit != nil {
			limit = *w.FreeAttemptsLimit
		}
	default:
		return Snapshot{}, errors.New("usage response matches no known shape")
	}

	s := Snapshot{Used: used}

	if limit < 0 {
		s.Limit = Unbounded
		s.Remaining = Unbounded
	} else {
		s.Limit = limit
		rem := limit - used
		if rem < 0 {
			rem = 0
		}
		s.Remaining = rem
	}
	if remaining != nil {
		if *remaining < 0 {
			s.Remaining = Unbounded
		} else {
			s.Remaining = *remaining
		}
	}

	if blocked != nil {
		s.Blocked = *blocked
	} else {
		s.Blocked = s.Remaining <= 0 || s.Used >= s.Limit
	}
	return s, nil
}

func pairCounts(p *countPair) (used, limit int) {
	limit = DefaultFreeLimit
	if p.Count != nil {
		used = *p.Count
	}
	if p.Limit != nil {
		limit = *p.Limit
	}
	return used, limit
}
