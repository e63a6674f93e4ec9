// Package flexweb downloads Flex query reports from the broker's web
// service. Each poll runs a SendRequest/GetStatement cycle per query:
// a trades query for executions and a portfolio query for position
// snapshots.
package flexweb

import (
	"context"
	"fmt"
	"time"

	"tradecast/internal/api"
	"tradecast/internal/interfaces"
	"tradecast/internal/logger"
	"tradecast/internal/source/flexquery"
	"tradecast/internal/types"
)

const defaultBaseURL = "https://gdcdyn.interactivebrokers.com/Universal/servlet"

// Config holds the credentials for one web-service account.
type Config struct {
	Token            string
	TradesQueryID    string
	PortfolioQueryID string

	// BaseURL overrides the production service endpoint.
	BaseURL string
}

type Source struct {
	sourceID string
	cfg      Config
	client   *api.Client
	pollWait time.Duration
	maxPolls int
}

var _ interfaces.Source = (*Source)(nil)

func NewSource(sourceID string, cfg Config) *Source {
	if cfg.BaseURL == "" {
		cfg.BaseURL = defaultBaseURL
	}
	return &Source{
		sourceID: sourceID,
		cfg:      cfg,
		client: api.NewClient(
			api.WithBaseURL(cfg.BaseURL),
			api.WithTimeout(60*time.Second),
		),
		pollWait: 5 * time.Second,
		maxPolls: 12,
	}
}

func (s *Source) SourceID() string {
	return s.sourceID
}

// Connect validates the credentials by downloading the portfolio
// query once.
func (s *Source) Connect(ctx context.Context) error {
	if s.cfg.Token == "" || s.cfg.TradesQueryID == "" || s.cfg.PortfolioQueryID == "" {
		return fmt.Errorf("flex web source %s: token and query ids are required", s.sourceID)
	}
	if _, err := s.download(ctx, s.cfg.PortfolioQueryID); err != nil {
		return fmt.Errorf("flex web source %s: %w", s.sourceID, err)
	}
	logger.Info(ctx, "Connected to Flex web service", "source_id", s.sourceID)
	return nil
}

// Executions downloads the trades query and returns the fills at or
// after since.
func (s *Source) Executions(ctx context.Context, since time.Time) ([]types.Execution, error) {
	statement, err := s.download(ctx, s.cfg.TradesQueryID)
	if err != nil {
		return nil, err
	}

	execs := flexquery.ParseExecutions(ctx, statement.TradeConfirms, s.sourceID)
	recent := execs[:0]
	for _, exec := range execs {
		if !exec.Timestamp.Before(since) {
			recent = append(recent, exec)
		}
	}
	logger.Debug(ctx, "Downloaded executions", "source_id", s.sourceID, "total", len(execs), "recent", len(recent))
	return recent, nil
}

// Positions downloads the portfolio query and returns the snapshot.
func (s *Source) Positions(ctx context.Context) ([]types.Position, error) {
	statement, err := s.download(ctx, s.cfg.PortfolioQueryID)
	if err != nil {
		return nil, err
	}

	reportTime := time.Now().UTC()
	if ts, err := flexquery.ParseTime(statement.WhenGenerated); err == nil {
		reportTime = ts
	}
	positions := flexquery.ParsePositions(ctx, statement.OpenPositions, reportTime)
	logger.Debug(ctx, "Downloaded positions", "source_id", s.sourceID, "count", len(positions))
	return positions, nil
}
