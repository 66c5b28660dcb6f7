package stt

import (
	"context"
	"sync"
)

// FakeTranscriber returns scripted texts in order, repeating the last.
type FakeTranscriber struct {
	Texts []string
	Err   error

	mu     sync.Mutex
	calls  int
	inputs [][]byte
}

func (f *FakeTranscriber) Transcribe(_ context.Context, flacData []byte) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	i := f.calls
	f.calls++
	f.inputs = append(f.inputs, flacData)

	if f.Err != nil {
		return "", f.Err
	}
	if len(f.Texts) == 0 {
		return "fake transcript", nil
	}
	if i >= len(f.Texts) {
		i = len(f.Texts) - 1
	}
	return f.Texts[i], nil
}

func (f *FakeTranscriber) Calls() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls
}
