package stt

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTranscribeSuccess(t *testing.T) {
	var uploaded []byte
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/stt/transcribe", r.URL.Path)
		f, _, err := r.FormFile("file")
		require.NoError(t, err)
		uploaded, err = io.ReadAll(f)
		require.NoError(t, err)
		json.NewEncoder(w).Encode(map[string]string{"text": "  I led the rollout.  "})
	}))
	defer srv.Close()

	c := NewClient(srv.URL, nil)
	text, err := c.Transcribe(context.Background(), []byte("fLaC-data"))
	require.NoError(t, err)
	assert.Equal(t, "I led the rollout.", text)
	assert.Equal(t, []byte("fLaC-data"), uploaded)
}

func TestTranscribeServerError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		http.Error(w, "model overloaded", http.StatusServiceUnavailable)
	}))
	defer srv.Close()

	c := NewClient(srv.URL, nil)
	_, err := c.Transcribe(context.Background(), []byte("x"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "model overloaded")
}

func TestTranscribeUnreachable(t *testing.T) {
	c := NewClient("http://127.0.0.1:1", nil)
	_, err := c.Transcribe(context.Background(), []byte("x"))
	assert.Error(t, err)
}

func TestFakeTranscriberScript(t *testing.T) {
	f := &FakeTranscriber{Texts: []string{"hello", "world"}}

	got, err := f.Transcribe(context.Background(), []byte("one"))
	require.NoError(t, err)
	assert.Equal(t, "hello", got)

	got, err = f.Transcribe(context.Background(), []byte("two"))
	require.NoError(t, err)
	assert.Equal(t, "world", got)

	got, err = f.Transcribe(context.Background(), []byte("three"))
	require.NoError(t, err)
	assert.Equal(t, "world", got)

	assert.Equal(t, 3, f.Calls())

	broken := &FakeTranscriber{Err: errors.New("no service")}
	_, err = broken.Transcribe(context.Background(), nil)
	assert.Error(t, err)
}
