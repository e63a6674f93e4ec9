// Package flexjson reads saved Flex-style JSON reports from a local
// directory: trades_*.json for executions and portfolio_*.json for
// position snapshots. The newest file of each kind wins.
package flexjson

import (
	"context"
	"fmt"
	"os"
	"time"

	"tradecast/internal/interfaces"
	"tradecast/internal/logger"
	"tradecast/internal/source/flexquery"
	"tradecast/internal/types"
)

type Source struct {
	sourceID string
	dataDir  string
}

var _ interfaces.Source = (*Source)(nil)

func NewSource(sourceID, dataDir string) *Source {
	return &Source{sourceID: sourceID, dataDir: dataDir}
}

func (s *Source) SourceID() string {
	return s.sourceID
}

// Connect verifies the report directory exists.
func (s *Source) Connect(ctx context.Context) error {
	info, err := os.Stat(s.dataDir)
	if err != nil {
		return fmt.Errorf("report directory %s: %w", s.dataDir, err)
	}
	if !info.IsDir() {
		return fmt.Errorf("report path %s is not a directory", s.dataDir)
	}
	logger.Info(ctx, "Connected to report directory", "source_id", s.sourceID, "dir", s.dataDir)
	return nil
}

// Executions returns the fills from the newest trades report at or
// after since.
func (s *Source) Executions(ctx context.Context, since time.Time) ([]types.Execution, error) {
	var report tradeReport
	found, err := loadLatestFile(s.dataDir, "trades_*.json", &report)
	if err != nil {
		return nil, err
	}
	if !found {
		logger.Debug(ctx, "No trades report found", "source_id", s.sourceID)
		return nil, nil
	}

	execs := flexquery.ParseExecutions(ctx, report.TradeConfirm, s.sourceID)
	recent := execs[:0]
	for _, exec := range execs {
		if !exec.Timestamp.Before(since) {
			recent = append(recent, exec)
		}
	}
	logger.Debug(ctx, "Loaded executions", "source_id", s.sourceID, "total", len(execs), "recent", len(recent))
	return recent, nil
}

// Positions returns the snapshot from the newest portfolio report.
func (s *Source) Positions(ctx context.Context) ([]types.Position, error) {
	var report portfolioReport
	found, err := loadLatestFile(s.dataDir, "portfolio_*.json", &report)
	if err != nil {
		return nil, err
	}
	if !found {
		logger.Debug(ctx, "No portfolio report found", "source_id", s.sourceID)
		return nil, nil
	}
	positions := flexquery.ParsePositions(ctx, report.OpenPosition, time.Now().UTC())
	logger.Debug(ctx, "Loaded positions", "source_id", s.sourceID, "count", len(positions))
	return positions, nil
}
