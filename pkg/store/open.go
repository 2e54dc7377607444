package store

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/mahaj/commune-chat/pkg/config"
	"github.com/mahaj/commune-chat/pkg/snowflake"
	"github.com/mahaj/commune-chat/pkg/store/memory"
	"github.com/mahaj/commune-chat/pkg/store/postgres"
	"github.com/mahaj/commune-chat/pkg/store/scylla"
)

// Open connects the backend named by cfg.StoreDriver and, when
// cfg.AutoMigrate is set, brings its schema up to date.
func Open(ctx context.Context, cfg config.Config, log *slog.Logger) (Store, error) {
	ids, err := snowflake.NewNode(int64(cfg.SnowflakeNode))
	if err != nil {
		return nil, err
	}

	var s Store
	switch cfg.StoreDriver {
	case DriverScylla:
		s, err = scylla.Open(cfg.Scylla(), cfg.ScyllaKeyspace, ids, log)
	case DriverPostgres:
		s, err = postgres.Open(ctx, cfg.PostgresDSN, ids, log)
	case DriverMemory:
		log.Warn("Using the in-memory store, data is lost on restart")
		s = memory.New(ids)
	default:
		return nil, fmt.Errorf("unknown store driver %q", cfg.StoreDriver)
	}
	if err != nil {
		return nil, err
	}

	if cfg.AutoMigrate {
		if err := s.Migrate(ctx); err != nil {
			_ = s.Close()
			return nil, err
		}
	}
	return s, nil
}
