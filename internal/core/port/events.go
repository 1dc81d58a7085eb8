package port

import (
	"context"

	"github.com/senorian3/lumio-backend-sub001/internal/core/domain"
)

// EventPublisher publishes domain events to the message broker. Delivery is
// fire-and-forget from the caller's perspective; durability is delegated to the
// broker's persistent-message setting.
type EventPublisher interface {
	PublishUserEvent(ctx context.Context, routingKey string, event domain.UserEvent) error
	PublishPostEvent(ctx context.Context, pattern string, event domain.PostEvent) error
}
