// Package pipeline drives one polling cycle: pull fresh executions from
// the source, feed the time buckets, reconcile completed buckets against
// each granularity's position book and publish the resulting narratives.
package pipeline

import (
	"context"
	"fmt"
	"time"

	"tradecast/internal/bucket"
	"tradecast/internal/format"
	"tradecast/internal/interfaces"
	"tradecast/internal/logger"
	"tradecast/internal/publog"
	"tradecast/internal/recon"
	"tradecast/internal/storage"
	"tradecast/internal/store"
	"tradecast/internal/types"
)

// PublishGranularity is the bucket size narratives are published from.
// Coarser granularities keep their own books for bucket-level review but
// publishing from more than one would repeat every trade.
const PublishGranularity = bucket.Gran15m

type Pipeline struct {
	cfg        *store.Config
	source     interfaces.Source
	sinks      []interfaces.Sink
	reconciler interfaces.Reconciler
	agg        *bucket.Aggregator
	db         *storage.Store

	tradeFmt *format.TradeFormatter
	portFmt  *format.PortfolioFormatter

	lastPoll         time.Time
	lastPortfolioDay string
}

func New(cfg *store.Config, source interfaces.Source, sinks []interfaces.Sink, reconciler interfaces.Reconciler, db *storage.Store) *Pipeline {
	return &Pipeline{
		cfg:        cfg,
		source:     source,
		sinks:      sinks,
		reconciler: reconciler,
		agg:        bucket.NewAggregator(),
		db:         db,
		tradeFmt:   format.NewTradeFormatter(),
		portFmt:    format.NewPortfolioFormatter(),
	}
}

// Restore rebuilds bucket and book state from the database after a
// restart: the newest portfolio snapshot seeds the books, executions
// recorded after it refill the queues.
func (p *Pipeline) Restore(ctx context.Context) error {
	if p.db == nil {
		return nil
	}

	positions, reportTime, ok, err := p.db.LastPortfolio(ctx)
	if err != nil {
		return fmt.Errorf("restore portfolio: %w", err)
	}
	if ok {
		p.agg.UpdatePositions(positions)
		p.lastPoll = reportTime

		execs, err := p.db.ExecutionsSince(ctx, reportTime)
		if err != nil {
			return fmt.Errorf("restore executions: %w", err)
		}
		if len(execs) > 0 {
			p.agg.AddExecutions(execs)
			if last := execs[len(execs)-1].Timestamp; last.After(p.lastPoll) {
				p.lastPoll = last
			}
		}
		logger.Info(ctx, "State restored",
			"positions", len(positions),
			"executions", len(execs),
			"report_time", reportTime.Format(time.RFC3339),
		)
	}

	if last, ok, err := p.db.LastMessageOfType(ctx, types.MessageTypePortfolio); err != nil {
		return fmt.Errorf("restore portfolio marker: %w", err)
	} else if ok {
		p.lastPortfolioDay = last.Timestamp.UTC().Format("2006-01-02")
	}
	return nil
}

// Step runs one polling cycle against the given clock reading. The
// first cycle polls with no lower bound and takes whatever the source
// reports; duplicate protection is the store's job.
func (p *Pipeline) Step(ctx context.Context, now time.Time) error {
	ctx, span := logger.StartSpan(ctx, "pipeline.Step")
	defer span.End()

	execs, err := p.source.Executions(ctx, p.lastPoll)
	if err != nil {
		return fmt.Errorf("poll %s: %w", p.source.SourceID(), err)
	}
	p.lastPoll = now

	fresh := execs
	if p.db != nil {
		fresh, err = p.db.SaveExecutions(ctx, execs)
		if err != nil {
			return fmt.Errorf("persist executions: %w", err)
		}
	}
	if len(fresh) > 0 {
		p.agg.AddExecutions(fresh)
		logger.Info(ctx, "New executions queued", "count", len(fresh), "source_id", p.source.SourceID())
	}

	positions, err := p.source.Positions(ctx)
	if err != nil {
		logger.Warn(ctx, "Position fetch failed, keeping previous books", "error", err)
	} else {
		p.agg.UpdatePositions(positions)
	}

	completed := p.agg.CompletedBuckets(now)
	for _, g := range bucket.Granularities {
		for _, bkt := range completed[g] {
			if err := p.processBucket(ctx, g, bkt); err != nil {
				logger.ErrorWithErr(ctx, "Bucket processing failed", err,
					"granularity", string(g),
					"bucket_start", bkt.Start.Format(time.RFC3339),
				)
			}
		}
	}
	return nil
}

func (p *Pipeline) processBucket(ctx context.Context, g bucket.Granularity, bkt bucket.Bucket) error {
	book := p.agg.Book(g)
	results := p.reconciler.Reconcile(ctx, bkt.Executions, book.Snapshot())
	for _, res := range results {
		book.ApplyResult(res)
	}
	logger.Bucket(ctx, string(g), len(bkt.Executions),
		"bucket_start", bkt.Start.Format(time.RFC3339),
		"results", len(results),
	)

	if g != PublishGranularity {
		return nil
	}

	for _, res := range results {
		if res.Kind == recon.ResultClosed {
			amount, percent := res.Closed.ProfitAmount.StringFixed(2), "n/a"
			if res.Closed.PercentValid {
				percent = res.Closed.ProfitPercent.StringFixed(2)
			}
			logger.Closed(ctx, res.Symbol(), amount, percent)
		}
	}

	msg, ok := p.tradeFmt.FormatBatch(results)
	if !ok {
		return nil
	}
	return p.publish(ctx, msg)
}

func (p *Pipeline) publish(ctx context.Context, msg types.Message) error {
	var firstErr error
	for _, sink := range p.sinks {
		if !sink.CanPublish(ctx) {
			logger.Warn(ctx, "Sink unavailable, skipping", "sink_id", sink.SinkID())
			continue
		}
		if err := sink.Publish(ctx, msg); err != nil {
			if firstErr == nil {
				firstErr = err
			}
			continue
		}
		msgType, _ := msg.Metadata["type"].(string)
		if err := publog.Append(publog.Entry{
			MessageID:   msg.ID.String(),
			SinkID:      sink.SinkID(),
			MessageType: msgType,
			Segments:    len(format.Split(msg)),
			Content:     msg.Content,
		}); err != nil {
			logger.Warn(ctx, "Publish audit append failed", "error", err)
		}
	}
	return firstErr
}

// ShouldPublishPortfolio reports whether the daily portfolio summary is
// due: enabled, past the configured time of day, not yet sent today.
func (p *Pipeline) ShouldPublishPortfolio(now time.Time) bool {
	if !p.cfg.Portfolio.Enabled {
		return false
	}
	due, err := time.Parse("15:04", p.cfg.Portfolio.PublishTime)
	if err != nil {
		return false
	}
	now = now.UTC()
	dueToday := time.Date(now.Year(), now.Month(), now.Day(), due.Hour(), due.Minute(), 0, 0, time.UTC)
	if now.Before(dueToday) {
		return false
	}
	return p.lastPortfolioDay != now.Format("2006-01-02")
}

// PublishPortfolio formats and publishes the current open positions.
func (p *Pipeline) PublishPortfolio(ctx context.Context, now time.Time) error {
	ctx, span := logger.StartSpan(ctx, "pipeline.PublishPortfolio")
	defer span.End()

	positions, err := p.source.Positions(ctx)
	if err != nil {
		return fmt.Errorf("fetch positions: %w", err)
	}
	if p.db != nil {
		if err := p.db.SavePortfolio(ctx, positions, now); err != nil {
			logger.Warn(ctx, "Portfolio snapshot save failed", "error", err)
		}
	}

	msg := p.portFmt.FormatPortfolio(positions, now)
	if err := p.publish(ctx, msg); err != nil {
		return err
	}
	p.lastPortfolioDay = now.UTC().Format("2006-01-02")
	return nil
}
