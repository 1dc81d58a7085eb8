package port

import (
	"context"
	"time"
)

// RPCClient sends a request message over the broker and awaits a correlated reply
// within the supplied timeout. Every call either resolves with the reply payload or
// fails with a timeout/transport error; callers never block indefinitely.
type RPCClient interface {
	Request(ctx context.Context, pattern string, payload any, timeout time.Duration) ([]byte, error)
}
