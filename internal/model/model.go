// Package model holds the data types shared across the intake queue,
// dispatcher, ledger and HTTP surface.
package model

import "time"

// ProcessorKind identifies which downstream processor handled a payment.
type ProcessorKind int

const (
	Default ProcessorKind = iota
	Fallback
)

func (k ProcessorKind) String() string {
	if k == Fallback {
		return "fallback"
	}
	return "default"
}

// PaymentRequest is the in-flight message travelling from HTTP intake,
// through the queue, to the dispatcher.
//
// RequestedAtMs is intentionally left zero until the dispatcher stamps it
// immediately before the downstream POST — see Dispatcher.sendAndRecord.
type PaymentRequest struct {
	CorrelationID string  `json:"correlationId"`
	Amount        float64 `json:"amount"`
	RequestedAtMs int64   `json:"-"`
}

// PaymentRecord is a row committed to a ledger shard once a downstream
// processor has returned a terminal response for the request.
type PaymentRecord struct {
	CorrelationID string
	Amount        float64
	RequestedAtMs int64
	ProcessorUsed ProcessorKind
}

// ServiceHealthResponse is the downstream processor's health-probe payload.
type ServiceHealthResponse struct {
	Failing         bool `json:"failing"`
	MinResponseTime int  `json:"minResponseTime"`
}

// OutboundPayment is the wire payload POSTed to a downstream processor.
type OutboundPayment struct {
	CorrelationID string `json:"correlationId"`
	Amount        float64 `json:"amount"`
	RequestedAt   string  `json:"requestedAt"`
}

// RequestedAtLayout is the millisecond-precision UTC zulu timestamp format
// the downstream processors expect: yyyy-MM-dd'T'HH:mm:ss.fff'Z'.
const RequestedAtLayout = "2006-01-02T15:04:05.000Z"

// FormatRequestedAt renders a dispatch timestamp in the wire format.
func FormatRequestedAt(ms int64) string {
	return time.UnixMilli(ms).UTC().Format(RequestedAtLayout)
}

// Bucket is one processor's slice of a payments-summary response.
type Bucket struct {
	TotalRequests int64   `json:"totalRequests"`
	TotalAmount   float64 `json:"totalAmount"`
}

// SummaryResponse is the full payload returned by GET /payments-summary.
type SummaryResponse struct {
	Default  Bucket `json:"default"`
	Fallback Bucket `json:"fallback"`
}

// Add folds a record's amount and count into the bucket for its processor.
func (s *SummaryResponse) Add(processor ProcessorKind, amount float64) {
	switch processor {
	case Fallback:
		s.Fallback.TotalRequests++
		s.Fallback.TotalAmount += amount
	default:
		s.Default.TotalRequests++
		s.Default.TotalAmount += amount
	}
}
