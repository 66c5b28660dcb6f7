package record

import (
	"encoding/binary"
	"sync"
)

const fakeChunkFrames = 1024

// FakeContext plays back canned samples instead of opening a real
// device.
type FakeContext struct {
	pcm     []byte
	devices []DeviceInfo
}

func NewFakeContext(samples []int16) *FakeContext {
	pcm := make([]byte, len(samples)*2)
	for i, s := range samples {
		binary.LittleEndian.PutUint16(pcm[i*2:], uint16(s))
	}
	return &FakeContext{
		pcm:     pcm,
		devices: []DeviceInfo{{ID: "fake0", Name: "Fake Microphone"}},
	}
}

func (f *FakeContext) Devices() ([]DeviceInfo, error) { return f.devices, nil }
func (f *FakeContext) Close()                         {}

func (f *FakeContext) NewCapture(_ *DeviceInfo, _ CaptureConfig) (CaptureDevice, error) {
	return &FakeCapture{pcm: f.pcm}, nil
}

// FakeCapture delivers the whole canned recording in device-sized
// chunks on Start, then goes quiet.
type FakeCapture struct {
	pcm []byte

	mu      sync.Mutex
	cb      OnPCM
	started bool
}

func (f *FakeCapture) SetCallback(cb OnPCM) {
	f.mu.Lock()
	f.cb = cb
	f.mu.Unlock()
}

func (f *FakeCapture) ClearCallback() {
	f.mu.Lock()
	f.cb = nil
	f.mu.Unlock()
}

func (f *FakeCapture) Start() error {
	f.mu.Lock()
	cb := f.cb
	f.started = true
	f.mu.Unlock()
	if cb == nil {
		return nil
	}

	chunkBytes := fakeChunkFrames * 2
	for pos := 0; pos < len(f.pcm); {
		end := min(pos+chunkBytes, len(f.pcm))
		chunk := make([]byte, end-pos)
		copy(chunk, f.pcm[pos:end])
		cb(chunk, uint32(len(chunk)/2))
		pos = end
	}
	return nil
}

func (f *FakeCapture) Stop()  {}
func (f *FakeCapture) Close() {}

func (f *FakeCapture) Started() bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.started
}
