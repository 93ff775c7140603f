// Command server runs one replica of the payment-intake gateway: the HTTP
// API, the intake queue, the dispatcher, and the two processor health
// monitors, all supervised by a single errgroup so a cancelled context
// brings every loop down together.
package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"

	"github.com/rinha2025/payment-gateway/internal/config"
	"github.com/rinha2025/payment-gateway/internal/dispatcher"
	"github.com/rinha2025/payment-gateway/internal/health"
	"github.com/rinha2025/payment-gateway/internal/httpapi"
	"github.com/rinha2025/payment-gateway/internal/ledger"
	"github.com/rinha2025/payment-gateway/internal/model"
	"github.com/rinha2025/payment-gateway/internal/peercache"
	"github.com/rinha2025/payment-gateway/internal/processorclient"
	"github.com/rinha2025/payment-gateway/internal/queue"
)

func main() {
	log := zerolog.New(os.Stdout).With().Timestamp().Logger()

	cfg, err := config.Load()
	if err != nil {
		log.Fatal().Err(err).Msg("invalid configuration")
	}
	log.Info().
		Str("backend_id", cfg.BackendID).
		Str("ledger_path", cfg.LedgerPath).
		Str("peer_ledger_path", cfg.PeerLedgerPath).
		Msg("starting payment-intake gateway")

	shards, err := ledger.NewShardSelector(cfg.LedgerPath, cfg.PeerLedgerPath, log)
	if err != nil {
		log.Fatal().Err(err).Msg("both ledger shards are unavailable")
	}
	defer shards.Close()

	defaultClient := processorclient.New(model.Default, cfg.DefaultProcessorURL)
	fallbackClient := processorclient.New(model.Fallback, cfg.FallbackProcessorURL)

	intake := queue.New()
	disp := dispatcher.New(intake, []*processorclient.Client{defaultClient, fallbackClient}, shards, log)

	defaultMonitor := health.New(defaultClient, cfg.HealthCheckInterval, cfg.HealthCheckTimeout, log)
	fallbackMonitor := health.New(fallbackClient, cfg.HealthCheckInterval, cfg.HealthCheckTimeout, log)

	heartbeat := peercache.New(cfg.RedisAddr, cfg.BackendID)

	server := httpapi.New(intake, shards, cfg, defaultClient.State, fallbackClient.State, heartbeat, log)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	group, gctx := errgroup.WithContext(ctx)

	group.Go(func() error { return defaultMonitor.Run(gctx) })
	group.Go(func() error { return fallbackMonitor.Run(gctx) })
	group.Go(func() error { return disp.Run(gctx) })
	group.Go(func() error { return heartbeat.Run(gctx) })

	group.Go(func() error {
		err := server.Start(cfg.ListenAddr)
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})

	group.Go(func() error {
		<-gctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		return server.Echo().Shutdown(shutdownCtx)
	})

	if err := group.Wait(); err != nil {
		log.Error().Err(err).Msg("gateway exited with error")
		os.Exit(1)
	}
	log.Info().Msg("gateway shut down cleanly")
}
