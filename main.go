// Purpleair-exporter polls PurpleAir sensors and serves their readings as
// Prometheus metrics.
//
// Configuration comes from the environment (a .env file is honored):
//
//	PURPLEAIR_SENSOR_IDS      comma or pipe separated sensor ids (required)
//	PURPLEAIR_BASE_URL        upstream base URL
//	PURPLEAIR_LISTEN_ADDR     metrics listen address (default 0.0.0.0:3000)
//	PURPLEAIR_POLL_INTERVAL   poll cycle interval (default 60s)
//	PURPLEAIR_FETCH_WORKERS   concurrent fetches per cycle (default 4)
//	PURPLEAIR_REQUEST_TIMEOUT per-request timeout (default 10s)
//	PURPLEAIR_CONFIG          optional YAML file overlaying the above
package main

import (
	"context"
	"errors"
	"log"
	"net/http"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/davidwilemski/purpleair-exporter/internal/config"
	"github.com/davidwilemski/purpleair-exporter/internal/metrics"
	"github.com/davidwilemski/purpleair-exporter/internal/poller"
	"github.com/davidwilemski/purpleair-exporter/internal/purpleair"
	"github.com/davidwilemski/purpleair-exporter/internal/server"
)

const shutdownTimeout = 10 * time.Second

func main() {
	logger := log.New(os.Stdout, "", log.LstdFlags)

	cfg, err := config.Load()
	if err != nil {
		logger.Fatalf("config error: %v", err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	registry := prometheus.NewRegistry()
	registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	sensors := metrics.NewRegistry()
	registry.MustRegister(sensors)
	pollMetrics := metrics.NewPollMetrics(registry)

	client, err := purpleair.NewClient(cfg.BaseURL, purpleair.WithTimeout(cfg.RequestTimeout))
	if err != nil {
		logger.Fatalf("purpleair client error: %v", err)
	}

	loop := poller.New(cfg.SensorIDs, client, sensors, pollMetrics, logger,
		poller.WithInterval(cfg.PollInterval),
		poller.WithWorkers(cfg.FetchWorkers),
	)

	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		loop.Run(ctx)
	}()

	metricsHandler := promhttp.HandlerFor(registry, promhttp.HandlerOpts{ErrorLog: logger})
	srv := &http.Server{
		Addr:    cfg.ListenAddr,
		Handler: server.NewHandler(metricsHandler, logger),
	}

	wg.Add(1)
	go func() {
		defer wg.Done()
		<-ctx.Done()
		// Shutdown needs its own context: the signal context is already
		// canceled at this point.
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			logger.Printf("shutdown error: %v", err)
		}
	}()

	logger.Printf("listening on %s, polling %d sensors every %s", cfg.ListenAddr, len(cfg.SensorIDs), cfg.PollInterval)
	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		logger.Fatalf("listen error: %v", err)
	}

	wg.Wait()
	logger.Printf("exporter stopped")
}
