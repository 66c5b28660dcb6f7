// Package coach turns a rough spoken answer into a polished one via the
// remote improvement endpoint. The improved text is what the guidance
// audio source reads back.
package coach

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"parley/entitlement"
	"parley/log"
	"parley/statusbus"
)

// Improver is the seam the UI depends on; FakeImprover stands in during
// tests.
type Improver interface {
	Improve(ctx context.Context, question, answer string) (string, error)
}

type Client struct {
	client *http.Client
	apiURL string
	bus    *statusbus.Bus
}

func NewClient(apiURL string, bus *statusbus.Bus) *Client {
	return &Client{
		client: &http.Client{Timeout: 60 * time.Second},
		apiURL: apiURL,
		bus:    bus,
	}
}

type improveRequest struct {
	Question string `json:"question"`
	Answer   string `json:"answer"`
}

type improveResponse struct {
	Improved string `json:"improved"`
	Message  string `json:"message"`
	Upgrade  bool   `json:"upgrade"`
}

func (c *Client) Improve(ctx context.Context, question, answer string) (string, error) {
	payload, err := json.Marshal(improveRequest{Question: question, Answer: answer})
	if err != nil {
		return "", err
	}

	start := time.Now()
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.apiURL+"/answers/improve", bytes.NewReader(payload))
	if err != nil {
		return "", err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.client.Do(req)
	if err != nil {
		c.bus.Publish(statusbus.Event{Source: "coach", Detail: "improve request failed", Err: err.Error()})
		return "", fmt.Errorf("improvement request: %w", err)
	}
	defer resp.Body.Close()

	var body improveResponse
	decodeErr := json.NewDecoder(resp.Body).Decode(&body)

	if resp.StatusCode != http.StatusOK {
		msg := body.Message
		if msg == "" {
			msg = resp.Status
		}
		if body.Upgrade {
			return "", &entitlement.UpgradeError{Message: msg, Status: resp.StatusCode}
		}
		c.bus.Publish(statusbus.Event{Source: "coach", Detail: msg, Status: resp.StatusCode})
		return "", fmt.Errorf("improvement endpoint: %s", msg)
	}
	if decodeErr != nil {
		return "", fmt.Errorf("decoding improvement response: %w", decodeErr)
	}
	if body.Improved == "" {
		return "", fmt.Errorf("improvement endpoint returned no text")
	}

	c.bus.Publish(statusbus.Event{
		Source:  "coach",
		Detail:  "answer improved",
		Status:  resp.StatusCode,
		Elapsed: time.Since(start),
	})
	log.AnswerText(body.Improved)
	return body.Improved, nil
}
