// Package sinkobs wraps a publishing sink with tracing and structured
// logging so every published narrative leaves a trace-correlated record.
package sinkobs

import (
	"context"
	"time"

	"tradecast/internal/format"
	"tradecast/internal/interfaces"
	"tradecast/internal/logger"
	"tradecast/internal/trace"
	"tradecast/internal/types"
)

type observableSink struct {
	inner interfaces.Sink
}

var _ interfaces.Sink = (*observableSink)(nil)

// Wrap decorates a sink with observability. Pass-through identity and
// availability checks stay untraced; only Publish is instrumented.
func Wrap(inner interfaces.Sink) interfaces.Sink {
	return &observableSink{inner: inner}
}

func (s *observableSink) SinkID() string { return s.inner.SinkID() }

func (s *observableSink) CanPublish(ctx context.Context) bool {
	return s.inner.CanPublish(ctx)
}

func (s *observableSink) Publish(ctx context.Context, msg types.Message) error {
	ctx, span := trace.StartSpan(ctx, "sink.Publish")
	defer span.End()

	msgType, _ := msg.Metadata["type"].(string)
	start := time.Now()
	err := s.inner.Publish(ctx, msg)
	elapsed := time.Since(start)

	if err != nil {
		logger.ErrorWithErr(ctx, "publish failed", err,
			"sink_id", s.inner.SinkID(),
			"message_id", msg.ID.String(),
			"message_type", msgType,
			"duration_ms", elapsed.Milliseconds(),
		)
		return err
	}

	logger.Published(ctx, s.inner.SinkID(), msgType, len(format.Split(msg)),
		"message_id", msg.ID.String(),
		"duration_ms", elapsed.Milliseconds(),
	)
	return nil
}
