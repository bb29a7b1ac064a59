// Package delivery holds the entry points that expose the usecases to the outside world.
package delivery

import "context"

// Delivery is a long-running inbound adapter such as an HTTP server or a queue subscriber.
// Serve blocks until the delivery stops; shutdown is driven by fx OnStop hooks.
type Delivery interface {
	Serve(ctx context.Context) error
}
