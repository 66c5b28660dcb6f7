package coach

import (
	"context"
	"sync"
)

// FakeImprover returns scripted results in order, repeating the last one
// when the script runs out.
type FakeImprover struct {
	Results []string
	Errs    []error

	mu    sync.Mutex
	calls int
	asked []string
}

func (f *FakeImprover) Improve(_ context.Context, _, answer string) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	i := f.calls
	f.calls++
	f.asked = append(f.asked, answer)

	if i < len(f.Errs) && f.Errs[i] != nil {
		return "", f.Errs[i]
	}
	if len(f.Results) == 0 {
		return "improved: " + answer, nil
	}
	if i >= len(f.Results) {
		i = len(f.Results) - 1
	}
	return f.Results[i], nil
}

func (f *FakeImprover) Calls() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls
}

func (f *FakeImprover) Answers() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.asked...)
}
