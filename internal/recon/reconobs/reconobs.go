package reconobs

import (
	"context"
	"time"

	"tradecast/internal/interfaces"
	"tradecast/internal/logger"
	"tradecast/internal/recon"
	"tradecast/internal/trace"
	"tradecast/internal/types"
)

type observableReconciler struct {
	engine interfaces.Reconciler
}

var _ interfaces.Reconciler = (*observableReconciler)(nil)

func Wrap(engine interfaces.Reconciler) interfaces.Reconciler {
	return &observableReconciler{
		engine: engine,
	}
}

func (or *observableReconciler) Reconcile(ctx context.Context, execs []types.Execution, positions []types.Position) []recon.Result {
	ctx, span := trace.StartSpan(ctx, "recon.Reconcile")
	defer span.End()

	start := time.Now()

	logger.Info(ctx, "Starting reconciliation",
		"executions", len(execs),
		"positions", len(positions),
	)

	results := or.engine.Reconcile(ctx, execs, positions)

	closed, open := 0, 0
	for _, res := range results {
		if res.Kind == recon.ResultClosed {
			closed++
		} else {
			open++
		}
	}

	logger.Info(ctx, "Reconciliation completed",
		"executions", len(execs),
		"closed_matches", closed,
		"open_aggregates", open,
		"duration_ms", time.Since(start).Milliseconds(),
	)

	return results
}
