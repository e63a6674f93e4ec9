package types

import (
	"time"

	"github.com/shopspring/decimal"
)

// Execution is one atomic fill as reported by a source. Quantity is
// always positive; direction lives in Side. Executions are read-only
// inputs to the reconciliation pipeline and are never mutated by it.
type Execution struct {
	Instrument Instrument
	Quantity   decimal.Decimal
	Price      decimal.Decimal
	Side       Side
	Currency   string
	Timestamp  time.Time
	ExecID     string
	SourceID   string
}
