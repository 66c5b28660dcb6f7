// Package tts turns text into playable audio bytes via the remote
// synthesis endpoint. The adapter is pure I/O: no playback state lives
// here.
package tts

import (
	"context"
	"fmt"

	"parley/entitlement"
)

// Clip is an opaque synthesized payload plus the container format the
// server delivered it in ("mp3" or "wav").
type Clip struct {
	Format string
	Data   []byte
}

// Error is the structured failure of a synthesis request. Status is the
// HTTP status, 0 when no response arrived. Upgrade marks entitlement
// exhaustion so callers can tell it apart from a generic failure.
type Error struct {
	Message string
	Status  int
	Upgrade bool
}

func (e *Error) Error() string {
	if e.Status == 0 {
		return fmt.Sprintf("tts unreachable: %s", e.Message)
	}
	return fmt.Sprintf("tts error %d: %s", e.Status, e.Message)
}

// Unwrap lets errors.Is(err, entitlement.ErrUpgradeRequired) match
// upgrade responses and nothing else.
func (e *Error) Unwrap() error {
	if e.Upgrade {
		return entitlement.ErrUpgradeRequired
	}
	return nil
}

// Synthesizer resolves (text, voice) to a clip. Callers must not pass
// text that is empty after trimming.
type Synthesizer interface {
	Synthesize(ctx context.Context, text, voice string) (*Clip, error)
}
