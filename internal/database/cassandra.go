package database

import (
	"cmp"
	"context"
	"fmt"
	"time"

	"github.com/gocql/gocql"
)

const defaultCassandraTimeout = 5 * time.Second

// CassandraConfig holds Cassandra connection configuration
type CassandraConfig struct {
	Hosts    []string
	Keyspace string
	Username string
	Password string
	Timeout  time.Duration
}

// CassandraDB holds the session used for append-only transcript writes
type CassandraDB struct {
	Session *gocql.Session
}

// NewCassandraDB opens a token-aware session against the configured keyspace.
// Writes and reads use LOCAL_QUORUM so a transcript read after a write in the
// same datacenter sees it.
func NewCassandraDB(config *CassandraConfig) (*CassandraDB, error) {
	session, err := newCluster(config).CreateSession()
	if err != nil {
		return nil, fmt.Errorf("failed to create Cassandra session for keyspace %q: %w", config.Keyspace, err)
	}
	return &CassandraDB{Session: session}, nil
}

func newCluster(config *CassandraConfig) *gocql.ClusterConfig {
	cluster := gocql.NewCluster(config.Hosts...)
	cluster.Keyspace = config.Keyspace
	cluster.Consistency = gocql.LocalQuorum
	cluster.NumConns = 2
	cluster.Timeout = cmp.Or(config.Timeout, defaultCassandraTimeout)
	cluster.PoolConfig.HostSelectionPolicy = gocql.TokenAwareHostPolicy(gocql.RoundRobinHostPolicy())
	cluster.RetryPolicy = &gocql.ExponentialBackoffRetryPolicy{NumRetries: 3, Min: time.Second, Max: 10 * time.Second}
	if config.Username != "" {
		cluster.Authenticator = gocql.PasswordAuthenticator{Username: config.Username, Password: config.Password}
	}
	return cluster
}

func (c *CassandraDB) Close() {
	if c.Session != nil {
		c.Session.Close()
	}
}

// QueryWithContext binds a query to ctx
func (c *CassandraDB) QueryWithContext(ctx context.Context, stmt string, values ...any) *gocql.Query {
	return c.Session.Query(stmt, values...).WithContext(ctx)
}

func (c *CassandraDB) ExecWithContext(ctx context.Context, stmt string, values ...any) error {
	return c.QueryWithContext(ctx, stmt, values...).Exec()
}
