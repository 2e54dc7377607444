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

	"github.com/mahaj/commune-chat/pkg/auth"
	"github.com/mahaj/commune-chat/pkg/chat"
	"github.com/mahaj/commune-chat/pkg/config"
	"github.com/mahaj/commune-chat/pkg/events"
	"github.com/mahaj/commune-chat/pkg/fanout"
	"github.com/mahaj/commune-chat/pkg/metrics"
	"github.com/mahaj/commune-chat/pkg/presence"
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
		fmt.Fprintf(os.Stderr, "Gateway terminated with error: %v\n", err)
	}
	os.Exit(code)
}

func run() (int, error) {
	cfg, err := config.Load()
	if err != nil {
		return exitConfig, err
	}
	log := logs.GetLoggerFromString(cfg.LogLevel)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	m := metrics.New(prometheus.DefaultRegisterer)

	st, err := store.Open(ctx, cfg, log)
	if err != nil {
		return exitRuntime, fmt.Errorf("store: %w", err)
	}
	defer func() {
		log.Info("Closing store...")
		_ = st.Close()
	}()

	verifier, err := auth.NewVerifier(cfg.JWTSecret, cfg.JWTIssuer)
	if err != nil {
		return exitConfig, err
	}

	var observer fanout.Observer
	if cfg.RedisAddr != "" {
		rdb := presence.NewClient(cfg.RedisAddr)
		defer func() { _ = rdb.Close() }()
		tracker := presence.NewTracker(rdb, log, 1024)
		trackerDone := make(chan struct{})
		trackerCtx, stopTracker := context.WithCancel(context.Background())
		go func() {
			defer close(trackerDone)
			tracker.Run(trackerCtx)
		}()
		// Runs after the gateway shut down, so every Offline is flushed.
		defer func() {
			stopTracker()
			<-trackerDone
		}()
		observer = tracker
		log.Info("Presence tracking enabled", "redis", cfg.RedisAddr)
	}

	var activity events.Publisher = events.NewDirect(st)
	if brokers := cfg.Kafka(); len(brokers) > 0 {
		activity = events.NewKafkaPublisher(brokers, cfg.KafkaTopic, log)
		log.Info("Publishing stored messages to Kafka", "brokers", brokers, "topic", cfg.KafkaTopic)
	}
	defer func() { _ = activity.Close() }()

	hub := fanout.NewHub(log, m, observer)
	svc := chat.NewService(st, hub, activity, m, log, chat.Options{
		MaxMessageLength: cfg.MaxMessageLength,
		OrderedRooms:     cfg.OrderedRooms,
		MessageAlias:     cfg.MessageEventAlias,
	})
	gw := NewGateway(hub, svc, verifier, st, Settings{
		MaxFrameSize:    cfg.MaxFrameSize,
		SendBuffer:      cfg.SendBuffer,
		RateLimitBurst:  cfg.RateLimitBurst,
		RateLimitRefill: cfg.RateLimitRefill,
		AllowedOrigins:  cfg.Origins(),
	}, m, log)

	router := gw.Routes()
	router.Handle("/metrics", promhttp.Handler())
	srv := &http.Server{
		Addr:              cfg.GatewayAddr,
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	serveErr := make(chan error, 1)
	go func() {
		log.Info("Gateway listening", "addr", cfg.GatewayAddr, "store", cfg.StoreDriver)
		serveErr <- srv.ListenAndServe()
	}()

	select {
	case err := <-serveErr:
		if !errors.Is(err, http.ErrServerClosed) {
			return exitRuntime, err
		}
	case <-ctx.Done():
		log.Info("Shutting down gateway...")
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	// Hijacked websocket connections are not tracked by the http server.
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error("HTTP shutdown failed", "err", err)
	}
	if err := gw.Shutdown(shutdownCtx); err != nil {
		log.Error("Gateway did not drain in time", "err", err)
	}
	hub.Shutdown()
	return exitOK, nil
}
