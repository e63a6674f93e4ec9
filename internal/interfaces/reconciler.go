package interfaces

import (
	"context"

	"tradecast/internal/recon"
	"tradecast/internal/types"
)

// Reconciler turns one window of executions plus the known positions
// into ordered reconciliation results.
type Reconciler interface {
	Reconcile(ctx context.Context, execs []types.Execution, positions []types.Position) []recon.Result
}
