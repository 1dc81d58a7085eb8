package rabbitmq

import (
	"context"
	"errors"
	"fmt"

	amqp "github.com/rabbitmq/amqp091-go"
	"go.uber.org/zap"
)

var (
	// ErrConnectionClosed indicates the broker connection dropped while a call was
	// in flight or before it could be published.
	ErrConnectionClosed = errors.New("rabbitmq: connection closed")
	// ErrRPCTimeout indicates no correlated reply arrived within the configured bound.
	ErrRPCTimeout = errors.New("rabbitmq: rpc timeout")
)

// Exchange and queue names shared with the sibling services. Declared once at
// startup; never per-call.
const (
	UserExchange  = "user.exchange"
	FileExchange  = "file.exchange"
	FilesExchange = "files_exchange"
	PostsExchange = "posts_exchange"

	FilesQueue = "files_queue"
	PostsQueue = "posts_queue"
)

// Client owns the broker connection and channel for the whole process. It is
// constructed at startup and passed by handle to every component needing the
// broker; Close is the scoped shutdown hook.
type Client struct {
	conn    *amqp.Connection
	channel *amqp.Channel
	logger  *zap.Logger
	closed  chan *amqp.Error
}

// NewClient dials the broker and opens the shared channel.
func NewClient(url string, logger *zap.Logger) (*Client, error) {
	if logger == nil {
		logger = zap.NewNop()
	}

	conn, err := amqp.Dial(url)
	if err != nil {
		return nil, fmt.Errorf("dial rabbitmq: %w", err)
	}

	channel, err := conn.Channel()
	if err != nil {
		_ = conn.Close()
		return nil, fmt.Errorf("open channel: %w", err)
	}

	client := &Client{
		conn:    conn,
		channel: channel,
		logger:  logger,
		closed:  channel.NotifyClose(make(chan *amqp.Error, 1)),
	}

	logger.Info("rabbitmq connection established")

	return client, nil
}

// Channel returns the shared channel.
func (c *Client) Channel() *amqp.Channel {
	return c.channel
}

// NotifyClose returns the channel-close notification stream.
func (c *Client) NotifyClose() <-chan *amqp.Error {
	return c.closed
}

// DeclareTopology declares every exchange, queue and binding the service relies on.
// Static registration happens exactly once, before any publish or consume.
func (c *Client) DeclareTopology() error {
	for _, exchange := range []string{UserExchange, FileExchange} {
		if err := c.channel.ExchangeDeclare(exchange, "topic", true, false, false, false, nil); err != nil {
			return fmt.Errorf("declare topic exchange %s: %w", exchange, err)
		}
	}

	for _, exchange := range []string{FilesExchange, PostsExchange} {
		if err := c.channel.ExchangeDeclare(exchange, "direct", true, false, false, false, nil); err != nil {
			return fmt.Errorf("declare direct exchange %s: %w", exchange, err)
		}
	}

	if _, err := c.channel.QueueDeclare(FilesQueue, true, false, false, false, nil); err != nil {
		return fmt.Errorf("declare queue %s: %w", FilesQueue, err)
	}
	if _, err := c.channel.QueueDeclare(PostsQueue, true, false, false, false, nil); err != nil {
		return fmt.Errorf("declare queue %s: %w", PostsQueue, err)
	}

	return nil
}

// BindQueue declares a queue and binds it to the exchange for every routing key.
func (c *Client) BindQueue(queue, exchange string, routingKeys ...string) error {
	if _, err := c.channel.QueueDeclare(queue, true, false, false, false, nil); err != nil {
		return fmt.Errorf("declare queue %s: %w", queue, err)
	}
	for _, key := range routingKeys {
		if err := c.channel.QueueBind(queue, key, exchange, false, nil); err != nil {
			return fmt.Errorf("bind %s to %s via %s: %w", queue, exchange, key, err)
		}
	}
	return nil
}

// Publish sends a persistent JSON message to the exchange. Fire-and-forget: no
// delivery confirmation is surfaced to the caller.
func (c *Client) Publish(ctx context.Context, exchange, routingKey string, body []byte) error {
	err := c.channel.PublishWithContext(ctx, exchange, routingKey, false, false, amqp.Publishing{
		ContentType:  "application/json",
		DeliveryMode: amqp.Persistent,
		Body:         body,
	})
	if err != nil {
		return fmt.Errorf("publish %s to %s: %w", routingKey, exchange, err)
	}
	return nil
}

// HealthCheck reports broker connectivity.
func (c *Client) HealthCheck(_ context.Context) error {
	if c.conn == nil || c.conn.IsClosed() {
		return ErrConnectionClosed
	}
	return nil
}

// Close tears down the channel and connection.
func (c *Client) Close() error {
	c.logger.Info("closing rabbitmq connection")
	if err := c.channel.Close(); err != nil && !errors.Is(err, amqp.ErrClosed) {
		return fmt.Errorf("close channel: %w", err)
	}
	if err := c.conn.Close(); err != nil && !errors.Is(err, amqp.ErrClosed) {
		return fmt.Errorf("close connection: %w", err)
	}
	return nil
}
