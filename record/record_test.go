package record

import (
	"bytes"
	"encoding/binary"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func pcmBytes(samples []int16) []byte {
	out := make([]byte, len(samples)*2)
	for i, s := range samples {
		binary.LittleEndian.PutUint16(out[i*2:], uint16(s))
	}
	return out
}

func TestFlacEncoderProducesValidHeader(t *testing.T) {
	enc, err := NewFlacEncoder()
	require.NoError(t, err)

	block := make([]int16, BlockSize)
	for i := range block {
		block[i] = int16(i % 1000)
	}
	require.NoError(t, enc.EncodeBlock(block))
	require.NoError(t, enc.Close())

	data := enc.Bytes()
	require.True(t, bytes.HasPrefix(data, []byte("fLaC")), "missing flac magic")
	assert.Equal(t, uint64(BlockSize), enc.TotalFrames())
}

func TestSessionEncodesAcrossFeeds(t *testing.T) {
	s, err := NewSession()
	require.NoError(t, err)

	// Two feeds that together span one full block plus a remainder.
	first := make([]int16, BlockSize-100)
	second := make([]int16, 300)
	s.Feed(pcmBytes(first), uint32(len(first)))
	s.Feed(pcmBytes(second), uint32(len(second)))

	total := len(first) + len(second)
	assert.Equal(t, time.Duration(total)*time.Second/SampleRate, s.Duration())

	data, err := s.Close()
	require.NoError(t, err)
	assert.True(t, bytes.HasPrefix(data, []byte("fLaC")))
}

func TestSessionCloseTwice(t *testing.T) {
	s, err := NewSession()
	require.NoError(t, err)

	_, err = s.Close()
	require.NoError(t, err)
	_, err = s.Close()
	assert.Error(t, err)
}

func TestSessionIgnoresFeedAfterClose(t *testing.T) {
	s, err := NewSession()
	require.NoError(t, err)
	_, err = s.Close()
	require.NoError(t, err)

	s.Feed(pcmBytes(make([]int16, 10)), 10)
	assert.Equal(t, time.Duration(0), s.Duration())
}

func TestFakeCaptureFeedsSession(t *testing.T) {
	samples := make([]int16, 3*fakeChunkFrames+17)
	for i := range samples {
		samples[i] = int16(i)
	}
	ctx := NewFakeContext(samples)
	dev, err := ctx.NewCapture(nil, CaptureConfig{SampleRate: SampleRate, Channels: Channels})
	require.NoError(t, err)

	s, err := NewSession()
	require.NoError(t, err)
	dev.SetCallback(s.Feed)
	require.NoError(t, dev.Start())
	dev.Stop()

	assert.Equal(t, time.Duration(len(samples))*time.Second/SampleRate, s.Duration())
	data, err := s.Close()
	require.NoError(t, err)
	assert.True(t, bytes.HasPrefix(data, []byte("fLaC")))
}
