package stt

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"strings"
	"time"

	"parley/statusbus"
)

// Client posts the FLAC upload to the app backend's transcription
// endpoint and returns the recognized text.
type Client struct {
	client *http.Client
	apiURL string
	bus    *statusbus.Bus
}

func NewClient(apiURL string, bus *statusbus.Bus) *Client {
	return &Client{
		client: &http.Client{Timeout: 120 * time.Second},
		apiURL: apiURL,
		bus:    bus,
	}
}

type transcribeResponse struct {
	Text    string `json:"text"`
	Message string `json:"message"`
}

func (c *Client) Transcribe(ctx context.Context, flacData []byte) (string, error) {
	var body bytes.Buffer
	writer := multipart.NewWriter(&body)

	part, err := writer.CreateFormFile("file", "answer.flac")
	if err != nil {
		return "", err
	}
	if _, err := part.Write(flacData); err != nil {
		return "", err
	}
	writer.Close()

	start := time.Now()
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.apiURL+"/stt/transcribe", &body)
	if err != nil {
		return "", err
	}
	req.Header.Set("Content-Type", writer.FormDataContentType())

	resp, err := c.client.Do(req)
	if err != nil {
		c.bus.Publish(statusbus.Event{Source: "stt", Detail: "transcription request failed", Err: err.Error()})
		return "", fmt.Errorf("transcription request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		raw, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		c.bus.Publish(statusbus.Event{Source: "stt", Detail: "transcription failed", Status: resp.StatusCode})
		return "", fmt.Errorf("transcription endpoint %d: %s", resp.StatusCode, strings.TrimSpace(string(raw)))
	}

	var tr transcribeResponse
	if err := json.NewDecoder(resp.Body).Decode(&tr); err != nil {
		return "", fmt.Errorf("decoding transcription response: %w", err)
	}

	c.bus.Publish(statusbus.Event{
		Source:  "stt",
		Detail:  "answer transcribed",
		Status:  resp.StatusCode,
		Elapsed: time.Since(start),
	})
	return strings.TrimSpace(tr.Text), nil
}
