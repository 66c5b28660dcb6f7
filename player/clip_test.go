package player

import (
	"bytes"
	"encoding/binary"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"parley/tts"
)

// tinyWAV builds a valid little PCM file so decode tests don't need
// fixtures on disk.
func tinyWAV(t *testing.T) []byte {
	t.Helper()
	var pcm bytes.Buffer
	for i := 0; i < 64; i++ {
		require.NoError(t, binary.Write(&pcm, binary.LittleEndian, int16(i*256)))
	}

	var buf bytes.Buffer
	buf.WriteString("RIFF")
	require.NoError(t, binary.Write(&buf, binary.LittleEndian, uint32(36+pcm.Len())))
	buf.WriteString("WAVEfmt ")
	require.NoError(t, binary.Write(&buf, binary.LittleEndian, uint32(16)))
	require.NoError(t, binary.Write(&buf, binary.LittleEndian, uint16(1)))     // PCM
	require.NoError(t, binary.Write(&buf, binary.LittleEndian, uint16(1)))     // mono
	require.NoError(t, binary.Write(&buf, binary.LittleEndian, uint32(16000))) // sample rate
	require.NoError(t, binary.Write(&buf, binary.LittleEndian, uint32(32000))) // byte rate
	require.NoError(t, binary.Write(&buf, binary.LittleEndian, uint16(2)))     // block align
	require.NoError(t, binary.Write(&buf, binary.LittleEndian, uint16(16)))    // bits
	buf.WriteString("data")
	require.NoError(t, binary.Write(&buf, binary.LittleEndian, uint32(pcm.Len())))
	buf.Write(pcm.Bytes())
	return buf.Bytes()
}

func TestDecodeClipWAV(t *testing.T) {
	clip, err := DecodeClip(&tts.Clip{Format: "wav", Data: tinyWAV(t)})
	require.NoError(t, err)
	b := clip.(*buffer)
	assert.Equal(t, 16000, int(b.format.SampleRate))

	// Idempotent even if someone doubles up.
	clip.Release()
	clip.Release()
}

func TestDecodeClipUnsupportedFormat(t *testing.T) {
	_, err := DecodeClip(&tts.Clip{Format: "ogg", Data: []byte("x")})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unsupported audio format")
}

func TestDecodeClipCorruptData(t *testing.T) {
	_, err := DecodeClip(&tts.Clip{Format: "wav", Data: []byte("not a wav")})
	assert.Error(t, err)
}
