// Package bucket groups executions into rolling time windows per
// granularity so reconciliation can be re-run deterministically per
// window and replayed after a restart.
package bucket

import (
	"sort"
	"time"

	"tradecast/internal/positions"
	"tradecast/internal/types"
)

// Granularity is one of the fixed bucket widths executions are
// windowed over before reconciliation.
type Granularity string

const (
	Gran15m Granularity = "15m"
	Gran1h  Granularity = "1h"
	Gran1d  Granularity = "1d"
)

// Granularities lists every granularity in ascending width order.
var Granularities = []Granularity{Gran15m, Gran1h, Gran1d}

// Interval returns the window width for the granularity.
func (g Granularity) Interval() time.Duration {
	switch g {
	case Gran15m:
		return 15 * time.Minute
	case Gran1h:
		return time.Hour
	case Gran1d:
		return 24 * time.Hour
	default:
		return 0
	}
}

// Bucket is one completed window of executions for a granularity.
type Bucket struct {
	Granularity Granularity
	Start       time.Time
	End         time.Time
	Executions  []types.Execution
}

// Aggregator queues executions per granularity and drains them into
// completed windows. Each granularity is an independent pipeline over
// the same stream and owns its own position book, so a 15-minute close
// and a 1-day close over the same fills can differ only in when they
// see the data. The aggregator has a single logical owner and provides
// no internal locking.
type Aggregator struct {
	queues       map[Granularity][]types.Execution
	lastBoundary map[Granularity]time.Time
	books        map[Granularity]*positions.Book
}

func NewAggregator() *Aggregator {
	a := &Aggregator{
		queues:       make(map[Granularity][]types.Execution, len(Granularities)),
		lastBoundary: make(map[Granularity]time.Time, len(Granularities)),
		books:        make(map[Granularity]*positions.Book, len(Granularities)),
	}
	for _, g := range Granularities {
		a.queues[g] = nil
		a.books[g] = positions.NewBook(nil)
	}
	return a
}

// AddExecutions appends the same executions to every granularity's
// queue and keeps each queue sorted newest-first.
func (a *Aggregator) AddExecutions(execs []types.Execution) {
	if len(execs) == 0 {
		return
	}
	for _, g := range Granularities {
		a.queues[g] = append(a.queues[g], execs...)
		queue := a.queues[g]
		sort.SliceStable(queue, func(i, j int) bool {
			return queue[i].Timestamp.After(queue[j].Timestamp)
		})
	}
}

// UpdatePositions resets every granularity's position book to an
// independent copy of the given snapshot.
func (a *Aggregator) UpdatePositions(snapshot []types.Position) {
	for _, g := range Granularities {
		copied := make([]types.Position, len(snapshot))
		copy(copied, snapshot)
		a.books[g].Replace(copied)
	}
}

// Book exposes the position book owned by one granularity.
func (a *Aggregator) Book(g Granularity) *positions.Book {
	return a.books[g]
}

// QueuedCount returns how many executions are still queued for a
// granularity.
func (a *Aggregator) QueuedCount(g Granularity) int {
	return len(a.queues[g])
}

// SetBoundary forces the last bucket boundary for a granularity, used
// when rebuilding state after a restart.
func (a *Aggregator) SetBoundary(g Granularity, boundary time.Time) {
	a.lastBoundary[g] = boundary
}

// CompletedBuckets drains every window that has closed as of now. A
// granularity whose boundary is unset gets it initialized by flooring
// the earliest queued timestamp to the interval, and emits nothing on
// that call. Catching up after a gap can emit several buckets per
// granularity; windows that close with no executions advance the
// boundary silently.
func (a *Aggregator) CompletedBuckets(now time.Time) map[Granularity][]Bucket {
	completed := make(map[Granularity][]Bucket, len(Granularities))
	for _, g := range Granularities {
		completed[g] = nil
	}

	for _, g := range Granularities {
		queue := a.queues[g]
		if len(queue) == 0 {
			continue
		}
		interval := g.Interval()

		boundary := a.lastBoundary[g]
		if boundary.IsZero() {
			earliest := queue[len(queue)-1].Timestamp
			a.lastBoundary[g] = RoundDown(earliest, interval)
			continue
		}

		for !now.Before(boundary.Add(interval)) {
			next := boundary.Add(interval)
			drained := a.drainInterval(g, boundary, next)
			if len(drained) > 0 {
				completed[g] = append(completed[g], Bucket{
					Granularity: g,
					Start:       boundary,
					End:         next,
					Executions:  drained,
				})
			}
			a.lastBoundary[g] = next
			boundary = next
		}
	}

	return completed
}

// drainInterval removes and returns the queued executions inside
// [start, end). Executions at or past end stay queued for future
// windows; anything older than start is discarded as a straggler.
func (a *Aggregator) drainInterval(g Granularity, start, end time.Time) []types.Execution {
	var drained, remaining []types.Execution
	for _, exec := range a.queues[g] {
		switch {
		case !exec.Timestamp.Before(start) && exec.Timestamp.Before(end):
			drained = append(drained, exec)
		case !exec.Timestamp.Before(end):
			remaining = append(remaining, exec)
		}
	}
	a.queues[g] = remaining
	return drained
}

// RoundDown floors a timestamp to an epoch-aligned multiple of the
// interval. The 1-day case aligns to epoch days, not calendar midnight
// in any timezone.
func RoundDown(ts time.Time, interval time.Duration) time.Time {
	seconds := int64(interval / time.Second)
	if seconds <= 0 {
		return ts
	}
	rem := ts.Unix() % seconds
	return ts.Add(-time.Duration(rem) * time.Second)
}
