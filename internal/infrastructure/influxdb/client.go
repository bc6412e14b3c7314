package influxdb

import (
	"context"
	"fmt"
	"log/slog"
	"sync/atomic"
	"time"

	influxdb2 "github.com/influxdata/influxdb-client-go/v2"
	"github.com/influxdata/influxdb-client-go/v2/api"

	"github.com/nerrad567/givehub-core/internal/infrastructure/config"
)

const (
	connectTimeout = 10 * time.Second
	pingTimeout    = 5 * time.Second

	defaultBatchSize     = 100
	defaultFlushInterval = 10 * time.Second
)

// Client queues auth activity points for one org/bucket. Writes are
// batched by the underlying library and never block a request.
type Client struct {
	client influxdb2.Client
	writer api.WriteAPI
	logger *slog.Logger

	closed   atomic.Bool
	failures atomic.Int64
}

// options maps the influxdb config section onto client options.
func options(cfg config.InfluxDBConfig) *influxdb2.Options {
	batch := uint(defaultBatchSize)
	if cfg.BatchSize > 0 {
		batch = uint(cfg.BatchSize)
	}
	flush := defaultFlushInterval
	if cfg.FlushInterval > 0 {
		flush = time.Duration(cfg.FlushInterval) * time.Second
	}
	return influxdb2.DefaultOptions().
		SetBatchSize(batch).
		SetFlushInterval(uint(flush.Milliseconds()))
}

// Connect pings the server and returns a client writing to cfg.Bucket.
// It returns ErrDisabled when the section is switched off. Asynchronous
// write failures are logged to logger and counted.
func Connect(ctx context.Context, cfg config.InfluxDBConfig, logger *slog.Logger) (*Client, error) {
	if !cfg.Enabled {
		return nil, ErrDisabled
	}
	if logger == nil {
		logger = slog.Default()
	}

	client := influxdb2.NewClientWithOptions(cfg.URL, cfg.Token, options(cfg))

	pingCtx, cancel := context.WithTimeout(ctx, connectTimeout)
	defer cancel()
	healthy, err := client.Ping(pingCtx)
	switch {
	case err != nil:
		client.Close()
		return nil, fmt.Errorf("%w: %w", ErrConnectionFailed, err)
	case !healthy:
		client.Close()
		return nil, fmt.Errorf("%w: server not healthy", ErrConnectionFailed)
	}

	c := &Client{
		client: client,
		writer: client.WriteAPI(cfg.Org, cfg.Bucket),
		logger: logger.With("component", "influxdb", "bucket", cfg.Bucket),
	}
	go c.drainErrors()
	return c, nil
}

func (c *Client) drainErrors() {
	for err := range c.writer.Errors() {
		c.failures.Add(1)
		c.logger.Error("auth event write failed", "error", err)
	}
}

// WriteFailures returns how many batched writes have failed so far.
func (c *Client) WriteFailures() int64 {
	return c.failures.Load()
}

// Flush blocks until queued points are sent. No-op once closed.
func (c *Client) Flush() {
	if c.writer == nil || c.closed.Load() {
		return
	}
	c.writer.Flush()
}

// Close flushes pending points and releases the client. Safe to call
// more than once and on a zero Client.
func (c *Client) Close() error {
	if c.client == nil || !c.closed.CompareAndSwap(false, true) {
		return nil
	}
	c.writer.Flush()
	c.client.Close()
	return nil
}

// HealthCheck pings the server. It backs the "influxdb" component of /health.
func (c *Client) HealthCheck(ctx context.Context) error {
	if c.client == nil || c.closed.Load() {
		return ErrClosed
	}

	pingCtx, cancel := context.WithTimeout(ctx, pingTimeout)
	defer cancel()
	healthy, err := c.client.Ping(pingCtx)
	if err != nil {
		return fmt.Errorf("influxdb health check failed: %w", err)
	}
	if !healthy {
		return fmt.Errorf("influxdb health check failed: server not healthy")
	}
	return nil
}
