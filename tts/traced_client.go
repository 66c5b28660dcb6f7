package tts

import (
	"crypto/tls"
	"io"
	"net/http"
	"net/http/httptrace"
	"time"

	"parley/statusbus"
)

type NetworkMetrics struct {
	DNS      time.Duration
	ConnWait time.Duration
	TCP      time.Duration
	TLS      time.Duration
	TTFB     time.Duration
	Download time.Duration
	Total    time.Duration
	Reused   bool
}

// TracedClient is a thin http.Client wrapper that reads the whole body,
// collects per-phase timings, and reports every request to the status
// bus for the debug overlay.
type TracedClient struct {
	client *http.Client
	bus    *statusbus.Bus
	source string
}

func NewTracedClient(source string, bus *statusbus.Bus) *TracedClient {
	return &TracedClient{
		client: &http.Client{
			Transport: &http.Transport{
				MaxIdleConns:        4,
				MaxIdleConnsPerHost: 4,
				IdleConnTimeout:     90 * time.Second,
				ForceAttemptHTTP2:   true,
			},
		},
		source: source,
		bus:    bus,
	}
}

type TracedResponse struct {
	Header     http.Header
	Metrics    *NetworkMetrics
	Body       []byte
	StatusCode int
}

func (c *TracedClient) Do(req *http.Request) (*TracedResponse, error) {
	metrics := &NetworkMetrics{}
	var getConnStart, dnsStart, tcpStart, tlsStart, wroteRequest, firstByte time.Time

	trace := &httptrace.ClientTrace{
		GetConn: func(_ string) { getConnStart = time.Now() },
		GotConn: func(info httptrace.GotConnInfo) {
			metrics.ConnWait = time.Since(getConnStart)
			metrics.Reused = info.Reused
		},
		DNSStart:          func(_ httptrace.DNSStartInfo) { dnsStart = time.Now() },
		DNSDone:           func(_ httptrace.DNSDoneInfo) { metrics.DNS = time.Since(dnsStart) },
		ConnectStart:      func(_, _ string) { tcpStart = time.Now() },
		ConnectDone:       func(_, _ string, _ error) { metrics.TCP = time.Since(tcpStart) },
		TLSHandshakeStart: func() { tlsStart = time.Now() },
		TLSHandshakeDone:  func(_ tls.ConnectionState, _ error) { metrics.TLS = time.Since(tlsStart) },
		WroteRequest:      func(_ httptrace.WroteRequestInfo) { wroteRequest = time.Now() },
		GotFirstResponseByte: func() {
			firstByte = time.Now()
			metrics.TTFB = firstByte.Sub(wroteRequest)
		},
	}

	req = req.WithContext(httptrace.WithClientTrace(req.Context(), trace))
	reqStart := time.Now()

	resp, err := c.client.Do(req)
	if err != nil {
		c.bus.Publish(statusbus.Event{Source: c.source, Err: err.Error(), Elapsed: time.Since(reqStart)})
		return nil, err
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		c.bus.Publish(statusbus.Event{Source: c.source, Status: resp.StatusCode, Err: err.Error(), Elapsed: time.Since(reqStart)})
		return nil, err
	}
	metrics.Download = time.Since(firstByte)
	metrics.Total = time.Since(reqStart)

	c.bus.Publish(statusbus.Event{Source: c.source, Status: resp.StatusCode, Elapsed: metrics.Total})

	return &TracedResponse{
		Body:       body,
		StatusCode: resp.StatusCode,
		Header:     resp.Header,
		Metrics:    metrics,
	}, nil
}
