package recon

import "time"

// ResultKind tags the variant held by a Result.
type ResultKind int

const (
	// ResultClosed holds a ClosedMatch.
	ResultClosed ResultKind = iota
	// ResultOpen holds an open or unmatched Aggregate.
	ResultOpen
)

// Result is the tagged union emitted by Reconcile. Exactly one of
// Closed and Open is set, selected by Kind.
type Result struct {
	Kind   ResultKind
	Closed *ClosedMatch
	Open   *Aggregate
}

func OpenResult(agg Aggregate) Result {
	return Result{Kind: ResultOpen, Open: &agg}
}

func ClosedResult(match ClosedMatch) Result {
	return Result{Kind: ResultClosed, Closed: &match}
}

func (r Result) Symbol() string {
	if r.Kind == ResultClosed {
		return r.Closed.Buy.Instrument.Symbol
	}
	return r.Open.Instrument.Symbol
}

func (r Result) Timestamp() time.Time {
	if r.Kind == ResultClosed {
		return r.Closed.Timestamp()
	}
	return r.Open.Timestamp
}
