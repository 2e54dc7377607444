package store

import (
	"context"
	"testing"

	"github.com/mama165/sdk-go/logs"
	"github.com/stretchr/testify/require"

	"github.com/mahaj/commune-chat/pkg/config"
	"github.com/mahaj/commune-chat/pkg/store/memory"
	"github.com/mahaj/commune-chat/pkg/store/postgres"
	"github.com/mahaj/commune-chat/pkg/store/scylla"
)

var (
	_ Store = (*memory.Store)(nil)
	_ Store = (*postgres.Store)(nil)
	_ Store = (*scylla.Store)(nil)
)

func TestOpen(t *testing.T) {
	log := logs.GetLoggerFromString("ERROR")

	t.Run("should open the memory driver", func(t *testing.T) {
		req := require.New(t)
		s, err := Open(context.Background(), config.Config{StoreDriver: DriverMemory, AutoMigrate: true}, log)
		req.NoError(err)
		req.IsType(&memory.Store{}, s)
		req.NoError(s.Close())
	})

	t.Run("should reject an unknown driver", func(t *testing.T) {
		_, err := Open(context.Background(), config.Config{StoreDriver: "sqlite"}, log)
		require.Error(t, err)
	})

	t.Run("should reject an out of range node", func(t *testing.T) {
		_, err := Open(context.Background(), config.Config{StoreDriver: DriverMemory, SnowflakeNode: 5000}, log)
		require.Error(t, err)
	})
}
