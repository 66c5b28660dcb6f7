package entitlement

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"time"

	"parley/identity"
	"parley/log"
	"parley/statusbus"
)

// Fetcher retrieves the current usage snapshot. Implementations never
// return an error: on any failure they return the fail-open default.
type Fetcher interface {
	Fetch(ctx context.Context) Snapshot
}

// Client fetches usage from the remote entitlement endpoint. One outbound
// call per Fetch, no retries; re-gating before the next action is the
// retry policy.
type Client struct {
	client *http.Client
	bus    *statusbus.Bus
	apiURL string
	id     identity.Identity
}

func NewClient(apiURL string, id identity.Identity, bus *statusbus.Bus) *Client {
	return &Client{
		client: &http.Client{Timeout: 10 * time.Second},
		apiURL: apiURL,
		id:     id,
		bus:    bus,
	}
}

// Fetch returns today's usage, or the fail-open default when the service
// is unreachable or answers garbage. Failures are logged and published to
// the status bus, never surfaced to the caller.
func (c *Client) Fetch(ctx context.Context) Snapshot {
	start := time.Now()
	snap, status, err := c.fetch(ctx)
	ev := statusbus.Event{Source: "usage", Status: status, Elapsed: time.Since(start)}
	if err != nil {
		ev.Err = err.Error()
		log.Warnf("usage fetch failed, failing open: %v", err)
		c.bus.Publish(ev)
		return FailOpen()
	}
	ev.Detail = fmt.Sprintf("%s remaining", FormatRemaining(snap))
	c.bus.Publish(ev)
	log.Usage(snap.Used, snap.Limit, snap.Remaining, snap.Blocked)
	return snap
}

func (c *Client) fetch(ctx context.Context) (Snapshot, int, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.apiURL+"/usage/today", nil)
	if err != nil {
		return Snapshot{}, 0, err
	}
	if c.id.Guest {
		req.Header.Set("X-Guest-Key", c.id.ID)
	} else {
		req.Header.Set("X-User-ID", c.id.ID)
	}

	resp, err := c.client.Do(req)
	if err != nil {
		return Snapshot{}, 0, err
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return Snapshot{}, resp.StatusCode, err
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return Snapshot{}, resp.StatusCode, fmt.Errorf("usage endpoint returned %d", resp.StatusCode)
	}

	snap, err := ParseSnapshot(body)
	if err != nil {
		return Snapshot{}, resp.StatusCode, err
	}
	return snap, resp.StatusCode, nil
}

// FormatRemaining renders the remaining count for display.
func FormatRemaining(s Snapshot) string {
	if s.Remaining == Unbounded {
		return "unlimited"
	}
	if s.Limit == Unbounded {
		return fmt.Sprintf("%d", s.Remaining)
	}
	return fmt.Sprintf("%d/%d", s.Remaining, s.Limit)
}
