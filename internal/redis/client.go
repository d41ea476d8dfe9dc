// Package redis wraps the go-redis client with the connection lifecycle the
// caching layer needs: lazy connection establishment, a bounded retry budget
// that permanently disables the client once exhausted, per-operation
// deadlines, and a circuit breaker around remote calls.
//
// The lifecycle is fail-closed at the connection level (a client that burned
// its retry budget stays disabled until process restart) and fail-open at the
// operation level (callers translate errors into cache misses or failed
// writes, never panics).
package redis

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/go-redis/redis/v8"
	"github.com/sony/gobreaker"

	apperrors "chatbot-cache/internal/common/errors"
	"chatbot-cache/internal/common/logging"
)

// State represents the connection lifecycle state of a Client.
type State int32

const (
	// StateDisconnected means no connection has been established yet
	StateDisconnected State = iota
	// StateConnecting means a connection attempt is in flight
	StateConnecting
	// StateConnected means the client has verified connectivity
	StateConnected
	// StateDisabled means the retry budget is exhausted; the client stays
	// disabled until process restart
	StateDisabled
)

func (s State) String() string {
	switch s {
	case StateDisconnected:
		return "disconnected"
	case StateConnecting:
		return "connecting"
	case StateConnected:
		return "connected"
	case StateDisabled:
		return "disabled"
	default:
		return "unknown"
	}
}

// Config holds Redis client configuration
type Config struct {
	Address           string        `json:"address"`
	Password          string        `json:"password"`
	DB                int           `json:"db"`
	PoolSize          int           `json:"pool_size"`
	MaxConnectRetries int           `json:"max_connect_retries"`
	DialTimeout       time.Duration `json:"dial_timeout"`
	OpTimeout         time.Duration `json:"op_timeout"`
}

// Client wraps a redis.Client with lifecycle and failure management.
// It is safe for concurrent use; only one connection attempt runs at a time.
type Client struct {
	config  *Config
	rdb     *redis.Client
	breaker *gobreaker.CircuitBreaker

	connectMu sync.Mutex // serializes connection attempts
	attempts  int        // failed connection attempts, guarded by connectMu
	state     atomic.Int32
}

// NewClient creates a Redis client. No connection is made until the first
// operation; use Ping to verify connectivity eagerly.
func NewClient(config *Config) (*Client, error) {
	if config == nil {
		return nil, apperrors.ConfigError("redis config is required")
	}

	if config.Address == "" {
		config.Address = "localhost:6379"
	}
	if config.PoolSize == 0 {
		config.PoolSize = 10
	}
	if config.MaxConnectRetries == 0 {
		config.MaxConnectRetries = 3
	}
	if config.DialTimeout == 0 {
		config.DialTimeout = 5 * time.Second
	}
	if config.OpTimeout == 0 {
		config.OpTimeout = 2 * time.Second
	}

	rdb := redis.NewClient(&redis.Options{
		Addr:        config.Address,
		Password:    config.Password,
		DB:          config.DB,
		PoolSize:    config.PoolSize,
		DialTimeout: config.DialTimeout,
	})

	c := &Client{
		config: config,
		rdb:    rdb,
	}
	c.breaker = gobreaker.NewCircuitBreaker(gobreaker.Settings{
		Name:        "redis:" + config.Address,
		MaxRequests: 1,
		Timeout:     30 * time.Second,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= 5
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			logging.Warn("redis circuit breaker state change",
				logging.String("breaker", name),
				logging.String("from", from.String()),
				logging.String("to", to.String()),
			)
		},
	})
	return c, nil
}

// State returns the current connection lifecycle state.
func (c *Client) State() State {
	return State(c.state.Load())
}

// ensureConnected verifies connectivity before the first operation. Failed
// attempts count against the retry budget; once the budget is spent the
// client flips to StateDisabled for the rest of the process lifetime.
func (c *Client) ensureConnected(ctx context.Context) error {
	switch c.State() {
	case StateConnected:
		return nil
	case StateDisabled:
		return apperrors.ConnectionError("redis client permanently disabled", nil)
	}

	c.connectMu.Lock()
	defer c.connectMu.Unlock()

	// Re-check under the lock; another caller may have finished the attempt.
	switch c.State() {
	case StateConnected:
		return nil
	case StateDisabled:
		return apperrors.ConnectionError("redis client permanently disabled", nil)
	}

	c.state.Store(int32(StateConnecting))

	pingCtx, cancel := context.WithTimeout(ctx, c.config.DialTimeout)
	defer cancel()

	if err := c.rdb.Ping(pingCtx).Err(); err != nil {
		c.attempts++
		if c.attempts >= c.config.MaxConnectRetries {
			c.state.Store(int32(StateDisabled))
			logging.Error("redis connection retry budget exhausted, disabling client", err,
				logging.String("address", c.config.Address),
				logging.Int("attempts", c.attempts),
			)
			return apperrors.ConnectionError("redis client permanently disabled", err)
		}
		c.state.Store(int32(StateDisconnected))
		logging.Warn("redis connection attempt failed",
			logging.String("address", c.config.Address),
			logging.Int("attempt", c.attempts),
			logging.Err(err),
		)
		return apperrors.ConnectionError(fmt.Sprintf("failed to connect to redis at %s", c.config.Address), err)
	}

	c.attempts = 0
	c.state.Store(int32(StateConnected))
	logging.Info("redis connected", logging.String("address", c.config.Address))
	return nil
}

// Do runs fn against the underlying client under the configured operation
// deadline and the circuit breaker. fn must absorb redis.Nil itself (a miss
// is not a failure); any error fn returns counts against the breaker.
func (c *Client) Do(ctx context.Context, op string, fn func(ctx context.Context, rdb *redis.Client) error) error {
	if err := c.ensureConnected(ctx); err != nil {
		return err
	}

	opCtx, cancel := context.WithTimeout(ctx, c.config.OpTimeout)
	defer cancel()

	_, err := c.breaker.Execute(func() (interface{}, error) {
		return nil, fn(opCtx, c.rdb)
	})
	if err == nil {
		return nil
	}

	switch {
	case errors.Is(err, gobreaker.ErrOpenState), errors.Is(err, gobreaker.ErrTooManyRequests):
		return apperrors.ConnectionError("redis circuit breaker open", err)
	case errors.Is(err, context.DeadlineExceeded):
		return apperrors.TimeoutError(op)
	default:
		return err
	}
}

// Ping verifies connectivity, establishing the connection if needed.
func (c *Client) Ping(ctx context.Context) error {
	return c.Do(ctx, "ping", func(ctx context.Context, rdb *redis.Client) error {
		return rdb.Ping(ctx).Err()
	})
}

// OpTimeout returns the per-operation deadline used by Do.
func (c *Client) OpTimeout() time.Duration {
	return c.config.OpTimeout
}

// Close releases the underlying connection pool.
func (c *Client) Close() error {
	return c.rdb.Close()
}
