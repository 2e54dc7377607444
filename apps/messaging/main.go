// Command messaging is the activity indexer: it consumes stored-message
// events from Kafka and keeps each conversation's last activity current, which
// orders the conversation lists served by the read API.
package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/mama165/sdk-go/logs"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/mahaj/commune-chat/pkg/config"
	"github.com/mahaj/commune-chat/pkg/events"
	"github.com/mahaj/commune-chat/pkg/metrics"
	"github.com/mahaj/commune-chat/pkg/store"
)

const (
	exitOK      = 0
	exitRuntime = 1
	exitConfig  = 2
)

func main() {
	code, err := run()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Indexer terminated with error: %v\n", err)
	}
	os.Exit(code)
}

func run() (int, error) {
	cfg, err := config.Load()
	if err != nil {
		return exitConfig, err
	}
	log := logs.GetLoggerFromString(cfg.LogLevel)

	brokers := cfg.Kafka()
	if len(brokers) == 0 {
		return exitConfig, errors.New("KAFKA_BROKERS is required; without it the gateway records activity itself")
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	m := metrics.New(prometheus.DefaultRegisterer)

	st, err := store.Open(ctx, cfg, log)
	if err != nil {
		return exitRuntime, fmt.Errorf("store: %w", err)
	}
	defer func() { _ = st.Close() }()

	consumer := events.NewConsumer(brokers, cfg.KafkaTopic, cfg.KafkaGroupID, st, log, m)
	defer func() { _ = consumer.Close() }()

	// Metrics only; the indexer serves nothing else.
	metricsSrv := &http.Server{Addr: cfg.IndexerAddr, Handler: promhttp.Handler(), ReadHeaderTimeout: 10 * time.Second}
	go func() {
		if err := metricsSrv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Error("Metrics server failed", "err", err)
		}
	}()
	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = metricsSrv.Shutdown(shutdownCtx)
	}()

	log.Info("Indexing stored messages", "brokers", brokers, "topic", cfg.KafkaTopic, "group", cfg.KafkaGroupID)
	if err := consumer.Run(ctx); err != nil {
		return exitRuntime, err
	}
	log.Info("Indexer stopped")
	return exitOK, nil
}
