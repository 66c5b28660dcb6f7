// Package stt defines the speech-to-text seam for spoken answers. The
// app ships with the remote-endpoint client wired in main; tests use the
// fake.
package stt

import "context"

// Transcriber turns a finished FLAC recording into answer text.
type Transcriber interface {
	Transcribe(ctx context.Context, flacData []byte) (string, error)
}
