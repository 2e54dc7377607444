// Package scylla stores chats in ScyllaDB (or Cassandra).
package scylla

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/gocql/gocql"
)

func newCluster(hosts []string, keyspace string) *gocql.ClusterConfig {
	cluster := gocql.NewCluster(hosts...)
	cluster.Keyspace = keyspace
	cluster.Consistency = gocql.Quorum
	cluster.SerialConsistency = gocql.LocalSerial
	cluster.Timeout = 5 * time.Second
	cluster.ConnectTimeout = 5 * time.Second

	cluster.RetryPolicy = &gocql.ExponentialBackoffRetryPolicy{
		NumRetries: 3,
		Min:        100 * time.Millisecond,
		Max:        1 * time.Second,
	}
	return cluster
}

func connect(hosts []string, keyspace string, log *slog.Logger) (*gocql.Session, error) {
	session, err := newCluster(hosts, keyspace).CreateSession()
	if err != nil {
		return nil, fmt.Errorf("scylla connect: %w", err)
	}
	log.Info("Connected to ScyllaDB cluster", "hosts", hosts, "keyspace", keyspace)
	return session, nil
}

// CreateKeyspace creates keyspace with SimpleStrategy replication if it does
// not exist yet. It connects without a keyspace.
func CreateKeyspace(ctx context.Context, hosts []string, keyspace string, replication int) error {
	session, err := newCluster(hosts, "").CreateSession()
	if err != nil {
		return fmt.Errorf("scylla connect: %w", err)
	}
	defer session.Close()

	stmt := fmt.Sprintf(`CREATE KEYSPACE IF NOT EXISTS %s
		WITH replication = {'class': 'SimpleStrategy', 'replication_factor': %d}`,
		keyspace, replication)
	return session.Query(stmt).WithContext(ctx).Exec()
}
