// Package config loads the gateway's environment-driven settings with
// viper, the way the pack's sibling rinha-de-backend-2025 entries
// (lucasgoveia-rinha-2025, cassio-morais-payments) bind configuration.
package config

import (
	"fmt"
	"time"

	"github.com/spf13/viper"
)

// Config is the fully resolved, process-wide configuration for one replica.
type Config struct {
	// BackendID selects which shard this replica writes to: "1" or "2".
	BackendID string

	// DefaultProcessorURL and FallbackProcessorURL are the two downstream
	// payment-processor base URLs.
	DefaultProcessorURL  string
	FallbackProcessorURL string

	// LedgerPath is this replica's own shard file. PeerLedgerPath is the
	// other replica's shard, opened read-only for summary aggregation.
	LedgerPath     string
	PeerLedgerPath string

	// ListenAddr is the HTTP bind address, defaulting to :9999.
	ListenAddr string

	// RedisAddr, if non-empty, enables the optional shard-presence
	// heartbeat. Absence disables it entirely; no core path depends on it.
	RedisAddr string

	HealthCheckInterval time.Duration
	HealthCheckTimeout  time.Duration
}

// Load reads configuration from the environment, applying defaults that
// match a single-node local run.
func Load() (Config, error) {
	v := viper.New()
	v.SetEnvPrefix("")
	v.AutomaticEnv()

	v.SetDefault("PAYMENT_PROCESSOR_URL_DEFAULT", "http://localhost:8001")
	v.SetDefault("PAYMENT_PROCESSOR_URL_FALLBACK", "http://localhost:8002")
	v.SetDefault("BACKEND_ID", "1")
	v.SetDefault("LISTEN_ADDR", ":9999")
	v.SetDefault("REDIS_ADDR", "")

	backendID := v.GetString("BACKEND_ID")
	if backendID != "1" && backendID != "2" {
		return Config{}, fmt.Errorf("config: BACKEND_ID must be \"1\" or \"2\", got %q", backendID)
	}

	ownPath := v.GetString("SQLITE_DATABASE")
	if ownPath == "" {
		ownPath = fmt.Sprintf("temp/app%s.db", backendID)
	}
	peerID := "2"
	if backendID == "2" {
		peerID = "1"
	}
	peerPath := fmt.Sprintf("temp/app%s.db", peerID)
	if override := v.GetString("PEER_SQLITE_DATABASE"); override != "" {
		peerPath = override
	}

	return Config{
		BackendID:            backendID,
		DefaultProcessorURL:  v.GetString("PAYMENT_PROCESSOR_URL_DEFAULT"),
		FallbackProcessorURL: v.GetString("PAYMENT_PROCESSOR_URL_FALLBACK"),
		LedgerPath:           ownPath,
		PeerLedgerPath:       peerPath,
		ListenAddr:           v.GetString("LISTEN_ADDR"),
		RedisAddr:            v.GetString("REDIS_ADDR"),
		HealthCheckInterval:  5 * time.Second,
		HealthCheckTimeout:   10 * time.Second,
	}, nil
}
