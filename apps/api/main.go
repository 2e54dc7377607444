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
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"

	"github.com/mahaj/commune-chat/pkg/auth"
	"github.com/mahaj/commune-chat/pkg/config"
	"github.com/mahaj/commune-chat/pkg/directory"
	"github.com/mahaj/commune-chat/pkg/metrics"
	"github.com/mahaj/commune-chat/pkg/presence"
	"github.com/mahaj/commune-chat/pkg/store"
	"github.com/mahaj/commune-chat/pkg/telemetry"
)

const (
	exitOK      = 0
	exitRuntime = 1
	exitConfig  = 2
)

func main() {
	code, err := run()
	if err != nil {
		fmt.Fprintf(os.Stderr, "API terminated with error: %v\n", err)
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

	shutdownTracing, err := telemetry.Init(ctx, cfg.OTLPEndpoint, cfg.ServiceName+"-api")
	if err != nil {
		return exitConfig, err
	}
	defer func() { _ = shutdownTracing(context.Background()) }()

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

	var online directory.Presence
	if cfg.RedisAddr != "" {
		rdb := presence.NewClient(cfg.RedisAddr)
		defer func() { _ = rdb.Close() }()
		online = presence.NewReader(rdb)
	}

	api := NewAPI(directory.New(st, online, log), verifier, m, log)
	router := api.Routes(cfg.Origins())
	router.Handle("/metrics", promhttp.Handler())

	srv := &http.Server{
		Addr:              cfg.APIAddr,
		Handler:           otelhttp.NewHandler(router, "chat-api"),
		ReadHeaderTimeout: 10 * time.Second,
	}

	serveErr := make(chan error, 1)
	go func() {
		log.Info("API listening", "addr", cfg.APIAddr, "store", cfg.StoreDriver)
		serveErr <- srv.ListenAndServe()
	}()

	select {
	case err := <-serveErr:
		if !errors.Is(err, http.ErrServerClosed) {
			return exitRuntime, err
		}
	case <-ctx.Done():
		log.Info("Shutting down API...")
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return exitRuntime, err
	}
	return exitOK, nil
}
