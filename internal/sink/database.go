package sink

import (
	"context"

	"tradecast/internal/interfaces"
	"tradecast/internal/storage"
	"tradecast/internal/types"
)

// DatabaseSink persists narratives through the shared store so the web
// viewer and replay can read them back.
type DatabaseSink struct {
	sinkID string
	store  *storage.Store
}

var _ interfaces.Sink = (*DatabaseSink)(nil)

func NewDatabaseSink(sinkID string, store *storage.Store) *DatabaseSink {
	return &DatabaseSink{sinkID: sinkID, store: store}
}

func (s *DatabaseSink) SinkID() string { return s.sinkID }

func (s *DatabaseSink) CanPublish(ctx context.Context) bool { return s.store != nil }

func (s *DatabaseSink) Publish(ctx context.Context, msg types.Message) error {
	return s.store.SaveMessage(ctx, msg)
}
