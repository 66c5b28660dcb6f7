package tts

import (
	"context"
	"sync"
)

// FakeSynthesizer scripts synthesis results per call and records the
// inputs it was given. OnCall, when set, runs before the scripted result
// is returned; tests use it to hold calls in flight and resolve them out
// of order.
type FakeSynthesizer struct {
	Clips  []*Clip
	Errs   []error
	OnCall func(call int, text, voice string)

	mu     sync.Mutex
	calls  int
	texts  []string
	voices []string
}

func (f *FakeSynthesizer) Synthesize(_ context.Context, text, voice string) (*Clip, error) {
	f.mu.Lock()
	call := f.calls
	f.calls++
	f.texts = append(f.texts, text)
	f.voices = append(f.voices, voice)
	hook := f.OnCall
	f.mu.Unlock()

	if hook != nil {
		hook(call, text, voice)
	}

	f.mu.Lock()
	defer f.mu.Unlock()
	if call < len(f.Errs) && f.Errs[call] != nil {
		return nil, f.Errs[call]
	}
	if call < len(f.Clips) {
		return f.Clips[call], nil
	}
	return &Clip{Data: []byte("fake-audio"), Format: "mp3"}, nil
}

func (f *FakeSynthesizer) Calls() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls
}

func (f *FakeSynthesizer) Voices() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]string, len(f.voices))
	copy(out, f.voices)
	return out
}

func (f *FakeSynthesizer) Texts() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]string, len(f.texts))
	copy(out, f.texts)
	return out
}
