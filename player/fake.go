package player

import "sync"

// FakeClip counts Release calls so tests can assert the single-buffer
// ownership rules.
type FakeClip struct {
	ID string

	mu       sync.Mutex
	releases int
}

func (c *FakeClip) Release() {
	c.mu.Lock()
	c.releases++
	c.mu.Unlock()
}

func (c *FakeClip) Releases() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.releases
}

// FakeOutput records playback commands instead of touching a device.
// The done callback from the most recent Start is kept so tests can
// simulate a clip finishing via FinishCurrent.
type FakeOutput struct {
	mu      sync.Mutex
	started []Clip
	speeds  []float64
	pauses  int
	resumes int
	stops   int
	done    func()
}

func NewFakeOutput() *FakeOutput {
	return &FakeOutput{}
}

func (o *FakeOutput) Start(c Clip, speed float64, done func()) error {
	o.mu.Lock()
	o.started = append(o.started, c)
	o.speeds = append(o.speeds, speed)
	o.done = done
	o.mu.Unlock()
	return nil
}

func (o *FakeOutput) Pause() {
	o.mu.Lock()
	o.pauses++
	o.mu.Unlock()
}

func (o *FakeOutput) Resume(speed float64) {
	o.mu.Lock()
	o.resumes++
	o.speeds = append(o.speeds, speed)
	o.mu.Unlock()
}

func (o *FakeOutput) Stop() {
	o.mu.Lock()
	o.stops++
	o.mu.Unlock()
}

// FinishCurrent fires the done callback from the latest Start, as the
// real output does when a clip plays to its end.
func (o *FakeOutput) FinishCurrent() {
	o.mu.Lock()
	done := o.done
	o.done = nil
	o.mu.Unlock()
	if done != nil {
		done()
	}
}

func (o *FakeOutput) Started() []Clip {
	o.mu.Lock()
	defer o.mu.Unlock()
	return append([]Clip(nil), o.started...)
}

func (o *FakeOutput) Current() Clip {
	o.mu.Lock()
	defer o.mu.Unlock()
	if len(o.started) == 0 {
		return nil
	}
	return o.started[len(o.started)-1]
}

func (o *FakeOutput) Speeds() []float64 {
	o.mu.Lock()
	defer o.mu.Unlock()
	return append([]float64(nil), o.speeds...)
}

func (o *FakeOutput) Counts() (pauses, resumes, stops int) {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.pauses, o.resumes, o.stops
}
