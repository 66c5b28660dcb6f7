package player

import (
	"context"
	"encoding/binary"
	"errors"
	"fmt"
	"math"
	"sync"

	"github.com/gen2brain/malgo"
	"github.com/gopxl/beep/v2"

	"parley/log"
)

// Device output renders everything at 48kHz; clips are resampled to
// match, with the speed multiplier folded into the resample ratio.
const outputRate = 48000

// DeviceOutput plays decoded clips through the default playback device.
// It owns at most one playback goroutine; starting a new clip cancels
// the previous one.
type DeviceOutput struct {
	mu        sync.Mutex
	cancel    context.CancelFunc
	resampler *beep.Resampler
	buf       *buffer
	done      func()
	gen       uint64
	paused    bool
	running   bool
}

func NewDeviceOutput() *DeviceOutput {
	return &DeviceOutput{}
}

func (d *DeviceOutput) ratio(b *buffer, speed float64) float64 {
	return float64(b.format.SampleRate) * speed / float64(outputRate)
}

func (d *DeviceOutput) Start(c Clip, speed float64, done func()) error {
	b, ok := c.(*buffer)
	if !ok {
		return errors.New("clip was not produced by DecodeClip")
	}

	d.mu.Lock()
	if d.cancel != nil {
		d.cancel()
	}
	if err := b.streamer.Seek(0); err != nil {
		d.mu.Unlock()
		return fmt.Errorf("rewinding clip: %w", err)
	}
	d.buf = b
	d.resampler = beep.ResampleRatio(4, d.ratio(b, speed), b.streamer)
	d.done = done
	d.paused = false
	d.gen++
	gen := d.gen

	ctx, cancel := context.WithCancel(context.Background())
	d.cancel = cancel
	d.running = true
	go d.playLoop(ctx, gen, d.resampler)
	d.mu.Unlock()
	return nil
}

func (d *DeviceOutput) Pause() {
	d.mu.Lock()
	d.paused = true
	d.mu.Unlock()
}

// Resume unpauses at the given speed. A clip that already played to its
// end restarts from the top.
func (d *DeviceOutput) Resume(speed float64) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.buf == nil {
		return
	}
	d.resampler.SetRatio(d.ratio(d.buf, speed))
	d.paused = false
	if d.running {
		return
	}
	if err := d.buf.streamer.Seek(0); err != nil {
		log.Warnf("clip rewind failed: %v", err)
		return
	}
	d.gen++
	gen := d.gen
	ctx, cancel := context.WithCancel(context.Background())
	d.cancel = cancel
	d.running = true
	go d.playLoop(ctx, gen, d.resampler)
}

func (d *DeviceOutput) Stop() {
	d.mu.Lock()
	if d.cancel != nil {
		d.cancel()
		d.cancel = nil
	}
	d.buf = nil
	d.resampler = nil
	d.done = nil
	d.mu.Unlock()
}

// playLoop streams through malgo until the clip ends or ctx is
// cancelled. Runs on its own goroutine; gen guards the completion
// callback against a newer Start having taken over.
func (d *DeviceOutput) playLoop(ctx context.Context, gen uint64, streamer beep.Streamer) {
	finishedNaturally, err := d.renderWithMalgo(ctx, streamer)
	if err != nil {
		log.Warnf("audio playback failed: %v", err)
	}

	d.mu.Lock()
	stale := gen != d.gen
	if !stale {
		d.running = false
	}
	done := d.done
	d.mu.Unlock()

	if !stale && finishedNaturally && done != nil {
		done()
	}
}

func (d *DeviceOutput) renderWithMalgo(ctx context.Context, streamer beep.Streamer) (bool, error) {
	malgoCtx, err := malgo.InitContext(nil, malgo.ContextConfig{}, nil)
	if err != nil {
		return false, fmt.Errorf("malgo context: %w", err)
	}
	defer func() {
		_ = malgoCtx.Uninit()
		malgoCtx.Free()
	}()

	deviceConfig := malgo.DefaultDeviceConfig(malgo.Playback)
	deviceConfig.Playback.Format = malgo.FormatF32
	deviceConfig.Playback.Channels = 2
	deviceConfig.SampleRate = outputRate
	deviceConfig.Alsa.NoMMap = 1

	finished := make(chan struct{})
	var (
		cbMu      sync.Mutex
		closed    bool
		naturally bool
		samples   [][2]float64
	)

	onSamples := func(out, _ []byte, frameCount uint32) {
		cbMu.Lock()
		defer cbMu.Unlock()
		if closed {
			return
		}

		d.mu.Lock()
		paused := d.paused
		d.mu.Unlock()
		if paused {
			for i := range out {
				out[i] = 0
			}
			return
		}

		if len(samples) < int(frameCount) {
			samples = make([][2]float64, frameCount)
		}
		n, ok := streamer.Stream(samples[:frameCount])
		if !ok || n == 0 {
			closed = true
			naturally = true
			close(finished)
			return
		}

		offset := 0
		for i := range n {
			binary.LittleEndian.PutUint32(out[offset:], math.Float32bits(float32(samples[i][0])))
			offset += 4
			binary.LittleEndian.PutUint32(out[offset:], math.Float32bits(float32(samples[i][1])))
			offset += 4
		}
		for i := offset; i < len(out); i++ {
			out[i] = 0
		}
	}

	device, err := malgo.InitDevice(malgoCtx.Context, deviceConfig, malgo.DeviceCallbacks{Data: onSamples})
	if err != nil {
		return false, fmt.Errorf("malgo device: %w", err)
	}
	defer device.Uninit()

	if err := device.Start(); err != nil {
		return false, fmt.Errorf("starting playback device: %w", err)
	}

	select {
	case <-finished:
	case <-ctx.Done():
		cbMu.Lock()
		closed = true
		cbMu.Unlock()
	}

	if err := device.Stop(); err != nil {
		log.Warnf("stopping playback device: %v", err)
	}

	cbMu.Lock()
	defer cbMu.Unlock()
	return naturally, nil
}
