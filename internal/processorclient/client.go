// Package processorclient wraps the two downstream payment-processor HTTP
// endpoints (POST /payments and GET /payments/service-health) behind a
// per-processor client and its mutable health State.
package processorclient

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/rinha2025/payment-gateway/internal/model"
)

// Outcome classifies the result of a single downstream POST /payments call.
type Outcome int

const (
	// OutcomeSuccess covers both HTTP 2xx and the distinguished 422.
	OutcomeSuccess Outcome = iota
	OutcomeFailure
)

// Client talks to one downstream processor (default or fallback).
type Client struct {
	Kind    model.ProcessorKind
	State   *State
	baseURL string
	http    *http.Client
}

// New builds a Client with a pooled transport. Request timeouts are computed
// per call rather than fixed on the http.Client itself, since Send's
// deadline depends on the processor's current latency hint.
func New(kind model.ProcessorKind, baseURL string) *Client {
	return &Client{
		Kind:    kind,
		State:   NewState(),
		baseURL: baseURL,
		http: &http.Client{
			Transport: &http.Transport{
				MaxIdleConns:        100,
				MaxIdleConnsPerHost: 50,
				IdleConnTimeout:     60 * time.Second,
			},
		},
	}
}

// Probe issues GET /payments/service-health with a caller-supplied timeout.
// Any transport error, non-2xx status, or parse failure is reported back as
// a failed probe (healthy=false, latency hint untouched).
func (c *Client) Probe(ctx context.Context, timeout time.Duration) (healthy bool, minLatencyMs int, err error) {
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/payments/service-health", nil)
	if err != nil {
		return false, 0, err
	}
	resp, err := c.http.Do(req)
	if err != nil {
		return false, 0, err
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return false, 0, fmt.Errorf("processorclient: probe returned status %d", resp.StatusCode)
	}

	var body model.ServiceHealthResponse
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		return false, 0, fmt.Errorf("processorclient: probe decode: %w", err)
	}
	return !body.Failing, body.MinResponseTime, nil
}

// Send POSTs a payment to this processor's /payments endpoint with a
// deadline of State.MinLatencyMs()+500ms and classifies the response: 2xx
// and 422 both count as a terminal success, anything else as failure.
func (c *Client) Send(ctx context.Context, req model.PaymentRequest) (Outcome, error) {
	timeout := time.Duration(c.State.MinLatencyMs())*time.Millisecond + 500*time.Millisecond
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	payload := model.OutboundPayment{
		CorrelationID: req.CorrelationID,
		Amount:        req.Amount,
		RequestedAt:   model.FormatRequestedAt(req.RequestedAtMs),
	}
	body, err := json.Marshal(payload)
	if err != nil {
		return OutcomeFailure, fmt.Errorf("processorclient: marshal: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/payments", bytes.NewReader(body))
	if err != nil {
		return OutcomeFailure, err
	}
	httpReq.Header.Set("Content-Type", "application/json")

	resp, err := c.http.Do(httpReq)
	if err != nil {
		return OutcomeFailure, err
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode >= 200 && resp.StatusCode < 300:
		return OutcomeSuccess, nil
	case resp.StatusCode == http.StatusUnprocessableEntity:
		return OutcomeSuccess, nil
	default:
		return OutcomeFailure, fmt.Errorf("processorclient: send returned status %d", resp.StatusCode)
	}
}
