package tts

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"mime"
	"net/http"
	"strings"

	"parley/log"
	"parley/statusbus"
)

// Client calls the remote synthesis endpoint. It accepts either raw
// audio bytes or a JSON wrapper (URL reference or embedded base64) and
// normalizes both into a Clip; callers never see the difference.
type Client struct {
	client *TracedClient
	apiURL string
	source string
}

// NewClient builds a synthesizer for one audio source. The source name
// ("question" or "guidance") only labels status-bus traffic.
func NewClient(apiURL, source string, bus *statusbus.Bus) *Client {
	return &Client{
		client: NewTracedClient("tts:"+source, bus),
		apiURL: apiURL,
		source: source,
	}
}

type generateRequest struct {
	Text  string `json:"text"`
	Voice string `json:"voice"`
}

type generateResponse struct {
	AudioURL string `json:"audioUrl"`
	URL      string `json:"url"`
	Audio    string `json:"audio"` // base64-encoded payload
	Format   string `json:"format"`
	Upgrade  bool   `json:"upgrade"`
	Message  string `json:"message"`
}

func (c *Client) Synthesize(ctx context.Context, text, voice string) (*Clip, error) {
	payload, err := json.Marshal(generateRequest{Text: text, Voice: voice})
	if err != nil {
		return nil, &Error{Message: err.Error()}
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.apiURL+"/tts/generate", bytes.NewReader(payload))
	if err != nil {
		return nil, &Error{Message: err.Error()}
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.client.Do(req)
	if err != nil {
		return nil, &Error{Message: err.Error()}
	}

	if resp.StatusCode != http.StatusOK {
		return nil, errorFromResponse(resp)
	}

	clip, err := c.clipFromResponse(ctx, resp)
	if err != nil {
		return nil, err
	}
	log.Playback(c.source, voice, clip.Format, len(clip.Data), float64(resp.Metrics.Total.Milliseconds()))
	return clip, nil
}

func errorFromResponse(resp *TracedResponse) *Error {
	e := &Error{Status: resp.StatusCode, Message: http.StatusText(resp.StatusCode)}
	var body generateResponse
	if json.Unmarshal(resp.Body, &body) == nil {
		e.Upgrade = body.Upgrade
		if body.Message != "" {
			e.Message = body.Message
		}
	}
	return e
}

func (c *Client) clipFromResponse(ctx context.Context, resp *TracedResponse) (*Clip, error) {
	ct := resp.Header.Get("Content-Type")
	if mt, _, err := mime.ParseMediaType(ct); err == nil && strings.HasPrefix(mt, "audio/") {
		return &Clip{Data: resp.Body, Format: formatFromMediaType(mt)}, nil
	}

	var body generateResponse
	if err := json.Unmarshal(resp.Body, &body); err != nil {
		return nil, &Error{Status: resp.StatusCode, Message: fmt.Sprintf("unrecognized tts response: %v", err)}
	}

	switch {
	case body.Audio != "":
		data, err := base64.StdEncoding.DecodeString(body.Audio)
		if err != nil {
			return nil, &Error{Status: resp.StatusCode, Message: fmt.Sprintf("bad embedded audio: %v", err)}
		}
		return &Clip{Data: data, Format: orMP3(body.Format)}, nil
	case body.AudioURL != "":
		return c.download(ctx, body.AudioURL)
	case body.URL != "":
		return c.download(ctx, body.URL)
	}
	return nil, &Error{Status: resp.StatusCode, Message: "tts response carried no audio"}
}

func (c *Client) download(ctx context.Context, url string) (*Clip, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, &Error{Message: err.Error()}
	}
	resp, err := c.client.Do(req)
	if err != nil {
		return nil, &Error{Message: err.Error()}
	}
	if resp.StatusCode != http.StatusOK {
		return nil, &Error{Status: resp.StatusCode, Message: "audio download failed"}
	}
	format := "mp3"
	if mt, _, err := mime.ParseMediaType(resp.Header.Get("Content-Type")); err == nil && strings.HasPrefix(mt, "audio/") {
		format = formatFromMediaType(mt)
	}
	return &Clip{Data: resp.Body, Format: format}, nil
}

func formatFromMediaType(mt string) string {
	sub := strings.TrimPrefix(mt, "audio/")
	switch sub {
	case "mpeg", "mp3":
		return "mp3"
	case "wav", "x-wav", "wave":
		return "wav"
	default:
		return sub
	}
}

func orMP3(format string) string {
	if format == "" {
		return "mp3"
	}
	return format
}
