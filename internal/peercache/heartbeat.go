// Package peercache is an optional, purely operational heartbeat: each
// replica records its BACKEND_ID in Redis so an operator can see both
// replicas are alive via GET /debug/peers. It is never consulted by the
// Dispatcher, Health Monitor, or Ledger — dropping it entirely changes
// nothing about how payments are routed or recorded.
package peercache

import (
	"context"
	"time"

	"github.com/go-redis/redis/v8"
)

const heartbeatTTL = 15 * time.Second

// Heartbeat periodically announces this replica's presence in Redis.
type Heartbeat struct {
	client    *redis.Client
	backendID string
}

// New returns a Heartbeat, or nil if addr is empty (Redis is optional).
func New(addr, backendID string) *Heartbeat {
	if addr == "" {
		return nil
	}
	return &Heartbeat{
		client:    redis.NewClient(&redis.Options{Addr: addr}),
		backendID: backendID,
	}
}

// Run announces presence on a fixed cadence until ctx is cancelled.
func (h *Heartbeat) Run(ctx context.Context) error {
	if h == nil {
		<-ctx.Done()
		return nil
	}
	ticker := time.NewTicker(heartbeatTTL / 3)
	defer ticker.Stop()

	key := "rinha:backend:" + h.backendID
	for {
		h.client.Set(ctx, key, "up", heartbeatTTL)
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
		}
	}
}

// PeerUp reports whether the other replica's heartbeat key is present.
func (h *Heartbeat) PeerUp(ctx context.Context, peerBackendID string) bool {
	if h == nil {
		return false
	}
	n, err := h.client.Exists(ctx, "rinha:backend:"+peerBackendID).Result()
	return err == nil && n > 0
}
