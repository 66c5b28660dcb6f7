package entitlement

import (
	"context"
	"sync"
)

// FakeFetcher serves scripted snapshots in order, repeating the last one,
// and counts calls. Mirrors how the hardware and network seams are faked
// elsewhere in the repo.
type FakeFetcher struct {
	Snapshots []Snapshot
	calls     int
	mu        sync.Mutex
}

func NewFakeFetcher(snaps ...Snapshot) *FakeFetcher {
	return &FakeFetcher{Snapshots: snaps}
}

func (f *FakeFetcher) Fetch(_ context.Context) Snapshot {
	f.mu.Lock()
	defer f.mu.Unlock()
	i := f.calls
	f.calls++
	if len(f.Snapshots) == 0 {
		return FailOpen()
	}
	if i >= len(f.Snapshots) {
		i = len(f.Snapshots) - 1
	}
	return f.Snapshots[i]
}

func (f *FakeFetcher) Calls() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls
}
