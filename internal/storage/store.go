package storage

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"

	"tradecast/internal/types"
)

// Store wraps the postgres connection used for execution history,
// published messages and portfolio snapshots.
type Store struct {
	db *gorm.DB
}

// Open connects to postgres and migrates the schema.
func Open(dsn string) (*Store, error) {
	db, err := gorm.Open(postgres.Open(dsn), &gorm.Config{
		Logger: gormlogger.Default.LogMode(gormlogger.Silent),
	})
	if err != nil {
		return nil, fmt.Errorf("open postgres: %w", err)
	}
	if err := db.AutoMigrate(&ExecutionRecord{}, &MessageRecord{}, &PortfolioRecord{}); err != nil {
		return nil, fmt.Errorf("migrate schema: %w", err)
	}
	return &Store{db: db}, nil
}

// NewStore wraps an existing gorm handle. Used by tests with sqlmock
// style drivers and by callers that manage the connection themselves.
func NewStore(db *gorm.DB) *Store {
	return &Store{db: db}
}

// SaveExecutions inserts fills that have not been seen before and
// returns the ones that were new. Duplicates are detected by the
// (exec id, source id) pair.
func (s *Store) SaveExecutions(ctx context.Context, execs []types.Execution) ([]types.Execution, error) {
	fresh := make([]types.Execution, 0, len(execs))
	for _, exec := range execs {
		var count int64
		err := s.db.WithContext(ctx).Model(&ExecutionRecord{}).
			Where("exec_id = ? AND source_id = ?", exec.ExecID, exec.SourceID).
			Count(&count).Error
		if err != nil {
			return fresh, fmt.Errorf("check execution %s: %w", exec.ExecID, err)
		}
		if count > 0 {
			continue
		}
		rec := newExecutionRecord(exec)
		if err := s.db.WithContext(ctx).Create(&rec).Error; err != nil {
			return fresh, fmt.Errorf("save execution %s: %w", exec.ExecID, err)
		}
		fresh = append(fresh, exec)
	}
	return fresh, nil
}

// ExecutionsSince returns stored fills with timestamps at or after the
// given instant, oldest first. Used to rebuild bucket queues after a
// restart.
func (s *Store) ExecutionsSince(ctx context.Context, since time.Time) ([]types.Execution, error) {
	var recs []ExecutionRecord
	err := s.db.WithContext(ctx).
		Where("timestamp >= ?", since).
		Order("timestamp asc").
		Find(&recs).Error
	if err != nil {
		return nil, fmt.Errorf("load executions: %w", err)
	}
	execs := make([]types.Execution, 0, len(recs))
	for _, rec := range recs {
		exec, err := rec.ToExecution()
		if err != nil {
			return nil, err
		}
		execs = append(execs, exec)
	}
	return execs, nil
}

// SaveMessage stores one published narrative.
func (s *Store) SaveMessage(ctx context.Context, msg types.Message) error {
	msgType, _ := msg.Metadata["type"].(string)
	rec := MessageRecord{
		ID:          msg.ID,
		Content:     msg.Content,
		MessageType: msgType,
		Timestamp:   msg.Timestamp,
	}
	if err := s.db.WithContext(ctx).Create(&rec).Error; err != nil {
		return fmt.Errorf("save message %s: %w", msg.ID, err)
	}
	return nil
}

// Messages returns stored narratives newest first. A zero before means
// no upper bound; an empty msgType matches every type.
func (s *Store) Messages(ctx context.Context, limit int, before time.Time, msgType string) ([]types.Message, error) {
	q := s.db.WithContext(ctx).Model(&MessageRecord{}).Order("timestamp desc")
	if !before.IsZero() {
		q = q.Where("timestamp < ?", before)
	}
	if msgType != "" {
		q = q.Where("message_type = ?", msgType)
	}
	if limit > 0 {
		q = q.Limit(limit)
	}
	var recs []MessageRecord
	if err := q.Find(&recs).Error; err != nil {
		return nil, fmt.Errorf("load messages: %w", err)
	}
	msgs := make([]types.Message, 0, len(recs))
	for _, rec := range recs {
		msgs = append(msgs, types.Message{
			ID:        rec.ID,
			Content:   rec.Content,
			Timestamp: rec.Timestamp,
			Metadata:  map[string]any{"type": rec.MessageType},
		})
	}
	return msgs, nil
}

// LastMessageOfType returns the newest stored narrative of one type.
// Returns ok=false when no such message exists.
func (s *Store) LastMessageOfType(ctx context.Context, msgType string) (types.Message, bool, error) {
	var rec MessageRecord
	err := s.db.WithContext(ctx).
		Where("message_type = ?", msgType).
		Order("timestamp desc").
		First(&rec).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return types.Message{}, false, nil
	}
	if err != nil {
		return types.Message{}, false, fmt.Errorf("load last %s message: %w", msgType, err)
	}
	return types.Message{
		ID:        rec.ID,
		Content:   rec.Content,
		Timestamp: rec.Timestamp,
		Metadata:  map[string]any{"type": rec.MessageType},
	}, true, nil
}

// SavePortfolio stores one snapshot of open positions.
func (s *Store) SavePortfolio(ctx context.Context, positions []types.Position, reportTime time.Time) error {
	payload, err := marshalPositions(positions)
	if err != nil {
		return fmt.Errorf("marshal portfolio: %w", err)
	}
	rec := PortfolioRecord{Timestamp: reportTime, Payload: payload}
	if err := s.db.WithContext(ctx).Create(&rec).Error; err != nil {
		return fmt.Errorf("save portfolio: %w", err)
	}
	return nil
}

// LastPortfolio returns the newest stored snapshot. Returns ok=false
// when none exists yet.
func (s *Store) LastPortfolio(ctx context.Context) ([]types.Position, time.Time, bool, error) {
	var rec PortfolioRecord
	err := s.db.WithContext(ctx).Order("timestamp desc").First(&rec).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, time.Time{}, false, nil
	}
	if err != nil {
		return nil, time.Time{}, false, fmt.Errorf("load portfolio: %w", err)
	}
	positions, err := unmarshalPositions(rec.Payload, rec.Timestamp)
	if err != nil {
		return nil, time.Time{}, false, err
	}
	return positions, rec.Timestamp, true, nil
}

// DeleteMessage removes one stored narrative. Used by the web viewer.
func (s *Store) DeleteMessage(ctx context.Context, id uuid.UUID) error {
	res := s.db.WithContext(ctx).Delete(&MessageRecord{}, "id = ?", id)
	if res.Error != nil {
		return fmt.Errorf("delete message %s: %w", id, res.Error)
	}
	if res.RowsAffected == 0 {
		return gorm.ErrRecordNotFound
	}
	return nil
}
