package mqtt

import (
	"context"
	"fmt"
	"log/slog"
	"sync/atomic"

	pahomqtt "github.com/eclipse/paho.mqtt.golang"

	"github.com/nerrad567/givehub-core/internal/infrastructure/config"
)

// Client publishes Givehub notices and auth events. It never subscribes.
// Safe for concurrent use.
type Client struct {
	client   pahomqtt.Client
	clientID string
	qos      byte
	topics   Topics
	logger   *slog.Logger

	connected atomic.Bool
}

// Connect dials the broker and waits for the first connection. A retained
// offline status is registered as the will, and online is published on
// every (re)connect. Reconnects and drops are logged to logger.
func Connect(cfg config.MQTTConfig, logger *slog.Logger) (*Client, error) {
	if logger == nil {
		logger = slog.Default()
	}
	c := &Client{
		clientID: cfg.Broker.ClientID,
		qos:      configQoS(cfg.QoS),
		topics:   NewTopics(cfg.TopicPrefix),
		logger:   logger.With("component", "mqtt", "client_id", cfg.Broker.ClientID),
	}

	opts := clientOptions(cfg).
		SetWill(c.topics.SystemStatus(), string(statusPayload("offline", c.clientID, "unexpected_disconnect")), defaultQoS, true).
		SetOnConnectHandler(c.onConnect).
		SetConnectionLostHandler(c.onConnectionLost)

	c.client = pahomqtt.NewClient(opts)
	token := c.client.Connect()
	if !token.WaitTimeout(connectTimeout) {
		c.client.Disconnect(0)
		return nil, fmt.Errorf("%w: timeout after %v", ErrConnectionFailed, connectTimeout)
	}
	if err := token.Error(); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrConnectionFailed, err)
	}

	// onConnect runs on paho's goroutine and may not have fired yet.
	c.connected.Store(true)
	return c, nil
}

func (c *Client) onConnect(pc pahomqtt.Client) {
	c.connected.Store(true)
	pc.Publish(c.topics.SystemStatus(), c.qos, true, statusPayload("online", c.clientID, ""))
	c.logger.Info("mqtt connected")
}

func (c *Client) onConnectionLost(_ pahomqtt.Client, err error) {
	c.connected.Store(false)
	c.logger.Warn("mqtt connection lost", "error", err)
}

// Topics returns the topic builder for the configured prefix.
func (c *Client) Topics() Topics {
	return c.topics
}

// IsConnected reports the last known connection state.
func (c *Client) IsConnected() bool {
	return c.client != nil && c.connected.Load() && c.client.IsConnectionOpen()
}

// HealthCheck backs the "mqtt" component of /health.
func (c *Client) HealthCheck(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return fmt.Errorf("mqtt health check: %w", err)
	}
	if !c.IsConnected() {
		return ErrNotConnected
	}
	return nil
}

// Close publishes a graceful offline status and disconnects. Closing an
// unconnected client is not an error.
func (c *Client) Close() error {
	if c.client == nil {
		return nil
	}
	if c.IsConnected() {
		c.client.Publish(c.topics.SystemStatus(), c.qos, true, statusPayload("offline", c.clientID, "graceful_shutdown")).
			WaitTimeout(publishTimeout)
	}
	c.client.Disconnect(disconnectQuiesce)
	c.connected.Store(false)
	return nil
}
