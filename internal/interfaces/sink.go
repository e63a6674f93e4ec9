package interfaces

import (
	"context"

	"tradecast/internal/types"
)

// Sink publishes formatted messages somewhere: stdout, a database, a
// social feed.
type Sink interface {
	SinkID() string
	CanPublish(ctx context.Context) bool
	Publish(ctx context.Context, msg types.Message) error
}
