// Package record captures microphone audio for the answer flow and
// packages it as FLAC for transcription. Capture runs at 16kHz mono,
// which is what speech endpoints want anyway and keeps uploads small.
package record

import (
	"encoding/binary"
	"fmt"
	"sync"
	"time"
)

const (
	SampleRate    = 16000
	Channels      = 1
	BitsPerSample = 16
	BlockSize     = 4096
)

// OnPCM receives raw little-endian int16 samples from the device thread.
// Implementations must not block.
type OnPCM func(data []byte, frames uint32)

type CaptureConfig struct {
	SampleRate uint32
	Channels   uint32
}

type DeviceInfo struct {
	ID   string // opaque platform-specific identifier
	Name string
}

// Context abstracts the platform audio backend so the rest of the app
// (and tests) never touch pulse or malgo directly.
type Context interface {
	Devices() ([]DeviceInfo, error)
	NewCapture(device *DeviceInfo, config CaptureConfig) (CaptureDevice, error)
	Close()
}

type CaptureDevice interface {
	Start() error
	Stop()
	Close()
	SetCallback(cb OnPCM)
	ClearCallback()
}

// Session accumulates one answer's worth of PCM and encodes it
// block-by-block as it arrives. Feed is safe to call from the device
// callback thread.
type Session struct {
	mu      sync.Mutex
	enc     *FlacEncoder
	pending []int16
	frames  uint64
	err     error
	closed  bool
}

func NewSession() (*Session, error) {
	enc, err := NewFlacEncoder()
	if err != nil {
		return nil, err
	}
	return &Session{enc: enc}, nil
}

// Feed appends raw device bytes. Whole blocks are encoded immediately;
// the remainder waits for the next call.
func (s *Session) Feed(data []byte, frames uint32) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed || s.err != nil {
		return
	}

	n := int(frames) * Channels
	if n*2 > len(data) {
		n = len(data) / 2
	}
	for i := 0; i < n; i++ {
		s.pending = append(s.pending, int16(binary.LittleEndian.Uint16(data[i*2:])))
	}
	s.frames += uint64(frames)

	for len(s.pending) >= BlockSize {
		if err := s.enc.EncodeBlock(s.pending[:BlockSize]); err != nil {
			s.err = err
			return
		}
		s.pending = s.pending[BlockSize:]
	}
}

// Close flushes the final partial block and returns the finished FLAC
// stream. The session is unusable afterwards.
func (s *Session) Close() ([]byte, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return nil, fmt.Errorf("record session already closed")
	}
	s.closed = true
	if s.err != nil {
		return nil, s.err
	}

	if len(s.pending) > 0 {
		if err := s.enc.EncodeBlock(s.pending); err != nil {
			return nil, err
		}
		s.pending = nil
	}
	if err := s.enc.Close(); err != nil {
		return nil, fmt.Errorf("finalizing flac: %w", err)
	}
	return s.enc.Bytes(), nil
}

// Duration reports how much audio has been fed so far.
func (s *Session) Duration() time.Duration {
	s.mu.Lock()
	defer s.mu.Unlock()
	return time.Duration(s.frames) * time.Second / SampleRate
}
