// Package httpapi wires the intake and summary endpoints onto Echo.
package httpapi

import (
	"net/http"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"github.com/rs/zerolog"

	"github.com/rinha2025/payment-gateway/internal/config"
	"github.com/rinha2025/payment-gateway/internal/ledger"
	"github.com/rinha2025/payment-gateway/internal/model"
	"github.com/rinha2025/payment-gateway/internal/peercache"
	"github.com/rinha2025/payment-gateway/internal/processorclient"
	"github.com/rinha2025/payment-gateway/internal/queue"
	"github.com/rinha2025/payment-gateway/internal/summary"
)

// Server holds the HTTP handler dependencies.
type Server struct {
	echo      *echo.Echo
	queue     *queue.Queue
	shards    *ledger.ShardSelector
	validate  *validator.Validate
	log       zerolog.Logger
	cfg       config.Config
	heartbeat *peercache.Heartbeat

	defaultState  *processorclient.State
	fallbackState *processorclient.State
}

// New builds a Server and registers routes. heartbeat may be nil when
// REDIS_ADDR is unset — /debug/peers then falls back to the peer-shard
// openness check alone.
func New(q *queue.Queue, shards *ledger.ShardSelector, cfg config.Config, defaultState, fallbackState *processorclient.State, heartbeat *peercache.Heartbeat, log zerolog.Logger) *Server {
	e := echo.New()
	e.HideBanner = true
	e.Use(middleware.Recover())

	s := &Server{
		echo:          e,
		queue:         q,
		shards:        shards,
		validate:      validator.New(),
		log:           log,
		cfg:           cfg,
		heartbeat:     heartbeat,
		defaultState:  defaultState,
		fallbackState: fallbackState,
	}

	e.POST("/payments", s.handlePayments)
	e.GET("/payments-summary", s.handleSummary)
	e.GET("/healthz", s.handleHealthz)
	e.GET("/debug/peers", s.handleDebugPeers)

	return s
}

// Start blocks serving HTTP until the server is shut down.
func (s *Server) Start(addr string) error {
	return s.echo.Start(addr)
}

// Echo exposes the underlying engine for graceful shutdown from main.
func (s *Server) Echo() *echo.Echo { return s.echo }

type paymentRequestDTO struct {
	CorrelationID string  `json:"correlationId" validate:"required"`
	Amount        float64 `json:"amount" validate:"gt=0"`
}

// handlePayments implements POST /payments.
func (s *Server) handlePayments(c echo.Context) error {
	var dto paymentRequestDTO
	if err := c.Bind(&dto); err != nil {
		return c.NoContent(http.StatusBadRequest)
	}

	trimmedID := strings.TrimSpace(dto.CorrelationID)
	if trimmedID == "" || dto.Amount <= 0 {
		return c.NoContent(http.StatusBadRequest)
	}
	if err := s.validate.Struct(dto); err != nil {
		return c.NoContent(http.StatusBadRequest)
	}

	s.queue.Enqueue(model.PaymentRequest{
		CorrelationID: trimmedID,
		Amount:        dto.Amount,
	})

	return c.NoContent(http.StatusAccepted)
}

// handleSummary implements GET /payments-summary. Parsing is deliberately
// tolerant: any absent or malformed range responds 200 with zeros, never
// 4xx.
func (s *Server) handleSummary(c echo.Context) error {
	fromStr := strings.TrimSpace(c.QueryParam("from"))
	toStr := strings.TrimSpace(c.QueryParam("to"))

	if fromStr == "" || toStr == "" {
		return c.JSON(http.StatusOK, model.SummaryResponse{})
	}

	fromMs, ok := parseRangeBound(fromStr)
	if !ok {
		return c.JSON(http.StatusOK, model.SummaryResponse{})
	}
	toMs, ok := parseRangeBound(toStr)
	if !ok {
		return c.JSON(http.StatusOK, model.SummaryResponse{})
	}

	resp, err := summary.Aggregate(s.shards, fromMs, toMs)
	if err != nil {
		s.log.Error().Err(err).Msg("summary aggregation failed, returning zeros")
		return c.JSON(http.StatusOK, model.SummaryResponse{})
	}
	return c.JSON(http.StatusOK, resp)
}

// handleHealthz reports 200 once this replica's own shard is open.
func (s *Server) handleHealthz(c echo.Context) error {
	if s.shards == nil || !s.shards.OwnAvailable() {
		return c.NoContent(http.StatusServiceUnavailable)
	}
	return c.NoContent(http.StatusOK)
}

// debugPeersResponse is a purely observational endpoint. No dispatch or
// summary logic reads from it.
type debugPeersResponse struct {
	BackendID       string `json:"backendId"`
	PeerReachable   bool   `json:"peerReachable"`
	DefaultHealthy  bool   `json:"defaultHealthy"`
	FallbackHealthy bool   `json:"fallbackHealthy"`
}

func (s *Server) handleDebugPeers(c echo.Context) error {
	peerReachable := s.shards != nil && s.shards.Peer() != nil
	if s.heartbeat != nil {
		peerID := "2"
		if s.cfg.BackendID == "2" {
			peerID = "1"
		}
		peerReachable = peerReachable || s.heartbeat.PeerUp(c.Request().Context(), peerID)
	}

	return c.JSON(http.StatusOK, debugPeersResponse{
		BackendID:       s.cfg.BackendID,
		PeerReachable:   peerReachable,
		DefaultHealthy:  s.defaultState.Healthy(),
		FallbackHealthy: s.fallbackState.Healthy(),
	})
}

// parseRangeBound accepts ISO-8601 UTC timestamps with or without
// sub-second precision, returning (ms, true) on success.
func parseRangeBound(raw string) (int64, bool) {
	layouts := []string{
		time.RFC3339Nano,
		time.RFC3339,
		"2006-01-02T15:04:05.000Z",
	}
	for _, layout := range layouts {
		if t, err := time.Parse(layout, raw); err == nil {
			return t.UTC().UnixMilli(), true
		}
	}
	return 0, false
}
