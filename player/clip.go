package player

import (
	"bytes"
	"fmt"
	"io"
	"sync"

	"github.com/gopxl/beep/v2"
	"github.com/gopxl/beep/v2/mp3"
	"github.com/gopxl/beep/v2/wav"

	"parley/tts"
)

// buffer is the real Clip: a decoded beep stream ready for the device
// output. Release is idempotent at this level; the session still calls
// it exactly once.
type buffer struct {
	streamer beep.StreamSeekCloser
	format   beep.Format
	release  sync.Once
}

// DecodeClip turns raw synthesized bytes into a playable clip. Only the
// containers the TTS endpoint actually serves are supported; everything
// else is a synthesis failure as far as the caller is concerned.
func DecodeClip(c *tts.Clip) (Clip, error) {
	var (
		streamer beep.StreamSeekCloser
		format   beep.Format
		err      error
	)
	switch c.Format {
	case "mp3":
		streamer, format, err = mp3.Decode(io.NopCloser(bytes.NewReader(c.Data)))
	case "wav":
		streamer, format, err = wav.Decode(bytes.NewReader(c.Data))
	default:
		return nil, fmt.Errorf("unsupported audio format %q", c.Format)
	}
	if err != nil {
		return nil, fmt.Errorf("decoding %s clip: %w", c.Format, err)
	}
	return &buffer{streamer: streamer, format: format}, nil
}

func (b *buffer) Release() {
	b.release.Do(func() {
		_ = b.streamer.Close()
	})
}
