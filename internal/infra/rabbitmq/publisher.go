package rabbitmq

import (
	"context"
	"encoding/json"
	"fmt"

	"go.uber.org/zap"

	"github.com/senorian3/lumio-backend-sub001/internal/core/domain"
	"github.com/senorian3/lumio-backend-sub001/internal/core/port"
)

// Publisher emits domain events. User events go to the shared topic exchange;
// post events go to the direct exchange consumed by the posts worker.
type Publisher struct {
	client *Client
	logger *zap.Logger
}

// NewPublisher constructs a Publisher on top of the shared broker client.
func NewPublisher(client *Client, logger *zap.Logger) *Publisher {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Publisher{client: client, logger: logger}
}

// PublishUserEvent emits a user lifecycle event under the given routing key.
func (p *Publisher) PublishUserEvent(ctx context.Context, routingKey string, event domain.UserEvent) error {
	body, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("marshal user event: %w", err)
	}

	if err := p.client.Publish(ctx, UserExchange, routingKey, body); err != nil {
		return err
	}

	p.logger.Debug("user event published",
		zap.String("routing_key", routingKey),
		zap.String("event_id", event.EventID))

	return nil
}

// PublishPostEvent emits a post lifecycle event under the given pattern.
func (p *Publisher) PublishPostEvent(ctx context.Context, pattern string, event domain.PostEvent) error {
	body, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("marshal post event: %w", err)
	}

	if err := p.client.Publish(ctx, PostsExchange, pattern, body); err != nil {
		return err
	}

	p.logger.Debug("post event published",
		zap.String("pattern", pattern),
		zap.String("event_id", event.EventID))

	return nil
}

var _ port.EventPublisher = (*Publisher)(nil)
