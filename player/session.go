// Package player manages playback sessions for the app's independent
// audio sources. Each session owns at most one live clip plus a
// monotonically increasing play token; completions of superseded fetches
// compare their captured token against the current one and discard
// themselves, which is what keeps rapid toggling race-free without real
// request cancellation.
package player

import (
	"context"
	"strings"
	"sync"
)

type State int

const (
	Idle State = iota
	Loading
	Ready
	Playing
)

func (s State) String() string {
	switch s {
	case Loading:
		return "loading"
	case Ready:
		return "ready"
	case Playing:
		return "playing"
	default:
		return "idle"
	}
}

// Request is what a session should be playing: the current text, the
// current voice preference, and the current speed. Callers pass the
// latest values on every call so a voice change between calls is always
// honored.
type Request struct {
	Text  string
	Voice string
	Speed float64
}

// Clip is an opaque playable buffer. Release frees the underlying
// resource; the session guarantees it is called exactly once per clip.
type Clip interface {
	Release()
}

// Fetch resolves a request to a clip, typically via the TTS adapter plus
// a decode step.
type Fetch func(ctx context.Context, text, voice string) (Clip, error)

// Output drives actual sound for one session. Start begins playback of a
// clip from the top and must return without blocking; done fires if the
// clip plays to its natural end. Pause, Resume and Stop are cheap and
// non-blocking too.
type Output interface {
	Start(c Clip, speed float64, done func()) error
	Pause()
	Resume(speed float64)
	Stop()
}

// Event tells the UI that a session changed state. Err is set only for
// the audio-unavailable path.
type Event struct {
	Source string
	State  State
	Err    error
}

type Session struct {
	fetch  Fetch
	out    Output
	notify func(Event)
	source string

	mu        sync.Mutex
	token     uint64
	state     State
	clip      Clip
	clipText  string
	clipVoice string
}

func NewSession(source string, fetch Fetch, out Output, notify func(Event)) *Session {
	return &Session{source: source, fetch: fetch, out: out, notify: notify}
}

func (s *Session) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

// Toggle is the single play/pause affordance. Playing pauses; a paused
// session holding a clip for the same text and voice resumes without a
// network call; anything else (including a cached clip whose voice or
// text no longer matches) loads fresh audio.
func (s *Session) Toggle(ctx context.Context, req Request) {
	if strings.TrimSpace(req.Text) == "" {
		return
	}
	s.mu.Lock()
	var ev Event
	switch {
	case s.state == Playing:
		s.out.Pause()
		s.state = Ready
		ev = Event{Source: s.source, State: Ready}
	case s.state == Ready && req.Text == s.clipText && req.Voice == s.clipVoice:
		s.out.Resume(req.Speed)
		s.state = Playing
		ev = Event{Source: s.source, State: Playing}
	default:
		s.load(ctx, req)
		ev = Event{Source: s.source, State: Loading}
	}
	s.mu.Unlock()
	s.emit(ev)
}

// ForceReload always refetches, even when a clip is cached. Voice and
// source-text changes go through here: the cached audio is stale the
// moment either changes, so reusing it would play the wrong sound.
func (s *Session) ForceReload(ctx context.Context, req Request) {
	if strings.TrimSpace(req.Text) == "" {
		return
	}
	s.mu.Lock()
	s.load(ctx, req)
	s.mu.Unlock()
	s.emit(Event{Source: s.source, State: Loading})
}

// Dispose releases the live clip and invalidates the token so no
// in-flight completion can ever act. Must run on teardown.
func (s *Session) Dispose() {
	s.mu.Lock()
	s.token++
	s.out.Stop()
	if s.clip != nil {
		s.clip.Release()
		s.clip = nil
	}
	s.clipText, s.clipVoice = "", ""
	s.state = Idle
	s.mu.Unlock()
}

// load must be called with s.mu held. It bumps the token, which is what
// strands every earlier in-flight fetch.
func (s *Session) load(ctx context.Context, req Request) {
	s.token++
	tok := s.token
	s.state = Loading
	s.out.Stop()
	go s.resolve(ctx, tok, req)
}

func (s *Session) resolve(ctx context.Context, tok uint64, req Request) {
	clip, err := s.fetch(ctx, req.Text, req.Voice)

	s.mu.Lock()
	if tok != s.token {
		s.mu.Unlock()
		// Superseded: the result is discarded without touching session
		// state, and its resource is freed here since it was never
		// installed.
		if clip != nil {
			clip.Release()
		}
		return
	}

	if err != nil {
		s.state = Idle
		s.mu.Unlock()
		s.emit(Event{Source: s.source, State: Idle, Err: err})
		return
	}

	// Install first, then release the previous clip. The session always
	// references the replacement before the old resource goes away.
	old := s.clip
	s.clip = clip
	s.clipText, s.clipVoice = req.Text, req.Voice
	if old != nil {
		old.Release()
	}

	if err := s.out.Start(clip, speedOrDefault(req.Speed), func() { s.finished(tok) }); err != nil {
		s.state = Ready
		s.mu.Unlock()
		s.emit(Event{Source: s.source, State: Ready, Err: err})
		return
	}
	s.state = Playing
	s.mu.Unlock()
	s.emit(Event{Source: s.source, State: Playing})
}

// finished runs when a clip plays to its natural end. The clip stays
// cached so Toggle can replay it without refetching.
func (s *Session) finished(tok uint64) {
	s.mu.Lock()
	if tok != s.token || s.state != Playing {
		s.mu.Unlock()
		return
	}
	s.state = Ready
	s.mu.Unlock()
	s.emit(Event{Source: s.source, State: Ready})
}

func (s *Session) emit(ev Event) {
	if s.notify != nil {
		s.notify(ev)
	}
}

func speedOrDefault(speed float64) float64 {
	if speed <= 0 {
		return 1.0
	}
	return speed
}
