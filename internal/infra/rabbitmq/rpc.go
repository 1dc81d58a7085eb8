package rabbitmq

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	amqp "github.com/rabbitmq/amqp091-go"
	"go.uber.org/zap"

	"github.com/senorian3/lumio-backend-sub001/internal/core/port"
)

// pendingReplies tracks in-flight requests by correlation id. Replies whose id is
// unknown (late arrivals after a timeout) are dropped on the floor.
type pendingReplies struct {
	mu    sync.Mutex
	calls map[string]chan rpcResult
}

type rpcResult struct {
	body []byte
	err  error
}

func newPendingReplies() *pendingReplies {
	return &pendingReplies{calls: make(map[string]chan rpcResult)}
}

// register reserves a slot for the correlation id and returns the channel the
// reply will be delivered on. The channel is buffered so resolve never blocks.
func (p *pendingReplies) register(correlationID string) chan rpcResult {
	ch := make(chan rpcResult, 1)
	p.mu.Lock()
	p.calls[correlationID] = ch
	p.mu.Unlock()
	return ch
}

// resolve delivers the reply body to the waiting caller. Returns false when the
// correlation id is unknown.
func (p *pendingReplies) resolve(correlationID string, body []byte) bool {
	p.mu.Lock()
	ch, ok := p.calls[correlationID]
	if ok {
		delete(p.calls, correlationID)
	}
	p.mu.Unlock()

	if !ok {
		return false
	}
	ch <- rpcResult{body: body}
	return true
}

// drop forgets the correlation id without delivering anything.
func (p *pendingReplies) drop(correlationID string) {
	p.mu.Lock()
	delete(p.calls, correlationID)
	p.mu.Unlock()
}

// failAll rejects every pending call with err. Used when the broker connection
// drops so no caller is left hanging until its timeout.
func (p *pendingReplies) failAll(err error) {
	p.mu.Lock()
	calls := p.calls
	p.calls = make(map[string]chan rpcResult)
	p.mu.Unlock()

	for _, ch := range calls {
		ch <- rpcResult{err: err}
	}
}

func (p *pendingReplies) len() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.calls)
}

// publishFunc sends one message to the broker. Factored out of the channel so the
// request path can be exercised without a connection.
type publishFunc func(ctx context.Context, exchange, routingKey string, msg amqp.Publishing) error

// RPCClient implements request-reply over the broker. A single exclusive reply
// queue serves every outgoing call; replies are matched back by correlation id.
type RPCClient struct {
	client     *Client
	publish    publishFunc
	exchange   string
	replyQueue string
	pending    *pendingReplies
	logger     *zap.Logger
}

// NewRPCClient declares the exclusive reply queue and starts the reply consumer.
func NewRPCClient(client *Client, exchange string, logger *zap.Logger) (*RPCClient, error) {
	if logger == nil {
		logger = zap.NewNop()
	}

	// Broker-named, exclusive, auto-delete: the queue dies with the connection and
	// can never be shared with another process.
	queue, err := client.Channel().QueueDeclare("", false, true, true, false, nil)
	if err != nil {
		return nil, fmt.Errorf("declare reply queue: %w", err)
	}

	deliveries, err := client.Channel().Consume(queue.Name, "", true, true, false, false, nil)
	if err != nil {
		return nil, fmt.Errorf("consume reply queue: %w", err)
	}

	rpc := &RPCClient{
		client: client,
		publish: func(ctx context.Context, exchange, routingKey string, msg amqp.Publishing) error {
			return client.Channel().PublishWithContext(ctx, exchange, routingKey, false, false, msg)
		},
		exchange:   exchange,
		replyQueue: queue.Name,
		pending:    newPendingReplies(),
		logger:     logger,
	}

	go rpc.consumeReplies(deliveries)
	go rpc.watchConnection()

	return rpc, nil
}

// Request publishes the payload under the pattern routing key and blocks until the
// correlated reply arrives, the timeout fires or the connection drops.
func (c *RPCClient) Request(ctx context.Context, pattern string, payload any, timeout time.Duration) ([]byte, error) {
	body, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("marshal rpc payload: %w", err)
	}

	correlationID := uuid.NewString()
	replyCh := c.pending.register(correlationID)

	err = c.publish(ctx, c.exchange, pattern, amqp.Publishing{
		ContentType:   "application/json",
		CorrelationId: correlationID,
		ReplyTo:       c.replyQueue,
		Body:          body,
	})
	if err != nil {
		c.pending.drop(correlationID)
		return nil, fmt.Errorf("publish rpc request %s: %w", pattern, err)
	}

	timer := time.NewTimer(timeout)
	defer timer.Stop()

	select {
	case result := <-replyCh:
		if result.err != nil {
			return nil, fmt.Errorf("rpc %s: %w", pattern, result.err)
		}
		return result.body, nil
	case <-timer.C:
		c.pending.drop(correlationID)
		return nil, fmt.Errorf("rpc %s after %s: %w", pattern, timeout, ErrRPCTimeout)
	case <-ctx.Done():
		c.pending.drop(correlationID)
		return nil, fmt.Errorf("rpc %s: %w", pattern, ctx.Err())
	}
}

func (c *RPCClient) consumeReplies(deliveries <-chan amqp.Delivery) {
	for delivery := range deliveries {
		if delivery.CorrelationId == "" {
			continue
		}
		if !c.pending.resolve(delivery.CorrelationId, delivery.Body) {
			c.logger.Debug("dropping uncorrelated rpc reply",
				zap.String("correlation_id", delivery.CorrelationId))
		}
	}
}

func (c *RPCClient) watchConnection() {
	if err, ok := <-c.client.NotifyClose(); ok && err != nil {
		c.logger.Warn("rabbitmq channel closed, failing pending rpc calls",
			zap.Int("pending", c.pending.len()),
			zap.Error(err))
	}
	c.pending.failAll(ErrConnectionClosed)
}

var _ port.RPCClient = (*RPCClient)(nil)
