// Package statusbus carries request/guard outcomes to the debug overlay.
// It replaces ambient global telemetry: the bus is created once in main,
// components publish into it, and the overlay subscribes while mounted.
package statusbus

import (
	"sync"
	"time"
)

const recentSize = 16

type Event struct {
	Time    time.Time
	Source  string // "usage", "tts:question", "tts:guidance", "improve", "guard"
	Detail  string
	Err     string
	Status  int // HTTP status, 0 when no response was received
	Elapsed time.Duration
}

// OK reports whether the event describes a successful request.
func (e Event) OK() bool {
	return e.Err == "" && e.Status >= 200 && e.Status < 300
}

type Bus struct {
	subs   map[int]chan Event
	recent []Event
	next   int
	mu     sync.Mutex
}

func New() *Bus {
	return &Bus{subs: make(map[int]chan Event)}
}

// Publish fans the event out to all subscribers. Slow subscribers miss
// events rather than block the publisher.
func (b *Bus) Publish(ev Event) {
	if b == nil {
		return
	}
	if ev.Time.IsZero() {
		ev.Time = time.Now()
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	b.recent = append(b.recent, ev)
	if len(b.recent) > recentSize {
		b.recent = b.recent[len(b.recent)-recentSize:]
	}
	for _, ch := range b.subs {
		select {
		case ch <- ev:
		default:
		}
	}
}

// Subscribe registers a new subscriber. The returned cancel func must be
// called when the subscriber unmounts; after cancel the channel is closed.
func (b *Bus) Subscribe() (<-chan Event, func()) {
	ch := make(chan Event, recentSize)
	b.mu.Lock()
	id := b.next
	b.next++
	b.subs[id] = ch
	b.mu.Unlock()

	cancel := func() {
		b.mu.Lock()
		if _, ok := b.subs[id]; ok {
			delete(b.subs, id)
			close(ch)
		}
		b.mu.Unlock()
	}
	return ch, cancel
}

// Recent returns a copy of the most recent events, oldest first.
func (b *Bus) Recent() []Event {
	if b == nil {
		return nil
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	out := make([]Event, len(b.recent))
	copy(out, b.recent)
	return out
}
