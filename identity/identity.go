// Package identity resolves who is talking to the metered backends.
// Resolution happens once at startup and the result is passed explicitly
// to every gated call; leaf code never reads storage on its own.
package identity

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/google/uuid"
	"github.com/pelletier/go-toml/v2"
)

const (
	sessionFile = "session.toml"
	guestFile   = "guest_id"

	PlanFree = "free"
	PlanPro  = "pro"
)

type Identity struct {
	ID    string
	Plan  string
	Guest bool
}

// Pro reports whether this identity bypasses the client-side entitlement
// gate. Guests are never pro regardless of what a stale session file says.
func (id Identity) Pro() bool {
	return !id.Guest && id.Plan == PlanPro
}

type sessionPayload struct {
	UserID string `toml:"user_id"`
	Plan   string `toml:"plan"`
}

// Resolve returns the authenticated identity stored in dir, or a guest
// identity backed by a persistent random ID. The guest ID is created and
// written on first use so usage tracking survives restarts.
func Resolve(dir string) (Identity, error) {
	if id, ok := readSession(dir); ok {
		return id, nil
	}

	guestPath := filepath.Join(dir, guestFile)
	if data, err := os.ReadFile(guestPath); err == nil {
		gid := strings.TrimSpace(string(data))
		if gid != "" {
			return Identity{ID: gid, Plan: PlanFree, Guest: true}, nil
		}
	}

	gid := uuid.NewString()
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return Identity{}, fmt.Errorf("creating identity dir: %w", err)
	}
	if err := os.WriteFile(guestPath, []byte(gid+"\n"), 0o644); err != nil {
		return Identity{}, fmt.Errorf("persisting guest id: %w", err)
	}
	return Identity{ID: gid, Plan: PlanFree, Guest: true}, nil
}

func readSession(dir string) (Identity, bool) {
	data, err := os.ReadFile(filepath.Join(dir, sessionFile))
	if err != nil {
		return Identity{}, false
	}
	var s sessionPayload
	if toml.Unmarshal(data, &s) != nil || s.UserID == "" {
		return Identity{}, false
	}
	plan := s.Plan
	if plan == "" {
		plan = PlanFree
	}
	return Identity{ID: s.UserID, Plan: plan}, true
}
