// Command migrate creates the chat schema for the configured store driver.
package main

import (
	"context"
	"flag"
	"log"
	"time"

	"github.com/mama165/sdk-go/logs"

	"github.com/mahaj/commune-chat/pkg/config"
	"github.com/mahaj/commune-chat/pkg/store"
	"github.com/mahaj/commune-chat/pkg/store/scylla"
)

func main() {
	replication := flag.Int("replication", 1, "scylla keyspace replication factor")
	flag.Parse()

	cfg, err := config.Load()
	if err != nil {
		log.Fatal(err)
	}
	logger := logs.GetLoggerFromString(cfg.LogLevel)

	ctx, cancel := context.WithTimeout(context.Background(), time.Minute)
	defer cancel()

	if cfg.StoreDriver == store.DriverScylla {
		logger.Info("Creating keyspace", "keyspace", cfg.ScyllaKeyspace, "replication", *replication)
		if err := scylla.CreateKeyspace(ctx, cfg.Scylla(), cfg.ScyllaKeyspace, *replication); err != nil {
			log.Fatalf("Failed to create keyspace: %v", err)
		}
	}

	cfg.AutoMigrate = true
	st, err := store.Open(ctx, cfg, logger)
	if err != nil {
		log.Fatalf("Migration failed: %v", err)
	}
	defer st.Close()

	logger.Info("Schema is up to date", "driver", cfg.StoreDriver)
}
