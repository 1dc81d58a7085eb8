package rabbitmq

import (
	"context"
	"fmt"
	"sync"

	amqp "github.com/rabbitmq/amqp091-go"
	"go.uber.org/zap"
)

// Handler processes one delivery body for a routing key. A nil return acks the
// message; an error nacks it without requeue so a poison message cannot loop.
type Handler func(ctx context.Context, body []byte) error

// Consumer pulls deliveries from a bound queue and dispatches them to handlers
// registered per routing key.
type Consumer struct {
	client   *Client
	queue    string
	logger   *zap.Logger
	mu       sync.RWMutex
	handlers map[string]Handler
}

// NewConsumer constructs a consumer for the queue. Handlers must be registered
// before Run is called.
func NewConsumer(client *Client, queue string, logger *zap.Logger) *Consumer {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Consumer{
		client:   client,
		queue:    queue,
		logger:   logger,
		handlers: make(map[string]Handler),
	}
}

// Handle registers the handler for a routing key.
func (c *Consumer) Handle(routingKey string, handler Handler) {
	c.mu.Lock()
	c.handlers[routingKey] = handler
	c.mu.Unlock()
}

// Run consumes the queue until ctx is cancelled or the delivery stream closes.
func (c *Consumer) Run(ctx context.Context) error {
	deliveries, err := c.client.Channel().Consume(c.queue, "", false, false, false, false, nil)
	if err != nil {
		return fmt.Errorf("consume %s: %w", c.queue, err)
	}

	c.logger.Info("consumer started", zap.String("queue", c.queue))

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case delivery, ok := <-deliveries:
			if !ok {
				return ErrConnectionClosed
			}
			c.dispatch(ctx, delivery)
		}
	}
}

func (c *Consumer) dispatch(ctx context.Context, delivery amqp.Delivery) {
	c.mu.RLock()
	handler, ok := c.handlers[delivery.RoutingKey]
	c.mu.RUnlock()

	if !ok {
		c.logger.Warn("no handler for routing key",
			zap.String("queue", c.queue),
			zap.String("routing_key", delivery.RoutingKey))
		_ = delivery.Nack(false, false)
		return
	}

	if err := handler(ctx, delivery.Body); err != nil {
		c.logger.Error("handler failed",
			zap.String("routing_key", delivery.RoutingKey),
			zap.Error(err))
		_ = delivery.Nack(false, false)
		return
	}

	_ = delivery.Ack(false)
}
