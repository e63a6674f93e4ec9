package interfaces

import (
	"context"
	"time"

	"tradecast/internal/types"
)

// Source supplies executions and portfolio snapshots from one broker
// feed.
type Source interface {
	SourceID() string
	Connect(ctx context.Context) error
	Executions(ctx context.Context, since time.Time) ([]types.Execution, error)
	Positions(ctx context.Context) ([]types.Position, error)
}
