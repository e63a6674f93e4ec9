package storage

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"tradecast/internal/types"
)

// ExecutionRecord is one stored fill. The (exec_id, source_id) pair is
// unique; republishing the same report must not duplicate rows.
type ExecutionRecord struct {
	ID             uint   `gorm:"primaryKey"`
	ExecID         string `gorm:"size:64;uniqueIndex:idx_exec_source"`
	SourceID       string `gorm:"size:64;uniqueIndex:idx_exec_source"`
	Symbol         string `gorm:"size:32;index"`
	InstrumentType string `gorm:"size:16"`
	Currency       string `gorm:"size:8"`
	Quantity       decimal.Decimal `gorm:"type:numeric(20,8)"`
	Price          decimal.Decimal `gorm:"type:numeric(20,8)"`
	Side           string          `gorm:"size:8"`
	Timestamp      time.Time       `gorm:"index"`

	// Option-only fields.
	OptionKind *string          `gorm:"size:8"`
	Strike     *decimal.Decimal `gorm:"type:numeric(20,8)"`
	Expiry     *time.Time

	CreatedAt time.Time
}

func (ExecutionRecord) TableName() string { return "executions" }

// MessageRecord is one published narrative.
type MessageRecord struct {
	ID          uuid.UUID `gorm:"type:uuid;primaryKey"`
	Content     string    `gorm:"type:text"`
	MessageType string    `gorm:"size:16;index"`
	Timestamp   time.Time `gorm:"index"`
	CreatedAt   time.Time
}

func (MessageRecord) TableName() string { return "messages" }

// PortfolioRecord is one stored portfolio snapshot, kept as JSON so
// replay can rebuild the position book.
type PortfolioRecord struct {
	ID        uint      `gorm:"primaryKey"`
	Timestamp time.Time `gorm:"index"`
	Payload   string    `gorm:"type:jsonb"`
	CreatedAt time.Time
}

func (PortfolioRecord) TableName() string { return "portfolios" }

// storedPosition is the JSON shape inside a PortfolioRecord payload.
type storedPosition struct {
	Symbol         string          `json:"symbol"`
	InstrumentType string          `json:"instrumentType"`
	Currency       string          `json:"currency"`
	Quantity       decimal.Decimal `json:"quantity"`
	CostBasis      decimal.Decimal `json:"costBasis"`
	MarketPrice    decimal.Decimal `json:"marketPrice"`
	OptionKind     string          `json:"optionKind,omitempty"`
	Strike         decimal.Decimal `json:"strike,omitempty"`
	Expiry         string          `json:"expiry,omitempty"`
}

func newExecutionRecord(exec types.Execution) ExecutionRecord {
	rec := ExecutionRecord{
		ExecID:         exec.ExecID,
		SourceID:       exec.SourceID,
		Symbol:         exec.Instrument.Symbol,
		InstrumentType: string(exec.Instrument.Kind),
		Currency:       exec.Currency,
		Quantity:       exec.Quantity,
		Price:          exec.Price,
		Side:           string(exec.Side),
		Timestamp:      exec.Timestamp,
	}
	if exec.Instrument.IsOption() {
		opt := exec.Instrument.Option
		kind := string(opt.Kind)
		strike := opt.Strike
		expiry := opt.Expiry
		rec.OptionKind = &kind
		rec.Strike = &strike
		rec.Expiry = &expiry
	}
	return rec
}

// ToExecution rebuilds the domain execution from a stored row.
func (r ExecutionRecord) ToExecution() (types.Execution, error) {
	var instrument types.Instrument
	if r.InstrumentType == string(types.AssetOption) {
		if r.OptionKind == nil || r.Strike == nil || r.Expiry == nil {
			return types.Execution{}, fmt.Errorf("execution %s: missing option details", r.ExecID)
		}
		var err error
		instrument, err = types.Option(r.Symbol, *r.Strike, *r.Expiry, types.OptionKind(*r.OptionKind), r.Currency)
		if err != nil {
			return types.Execution{}, err
		}
	} else {
		instrument = types.Stock(r.Symbol, r.Currency)
	}
	return types.Execution{
		Instrument: instrument,
		Quantity:   r.Quantity,
		Price:      r.Price,
		Side:       types.Side(r.Side),
		Currency:   r.Currency,
		Timestamp:  r.Timestamp,
		ExecID:     r.ExecID,
		SourceID:   r.SourceID,
	}, nil
}

func marshalPositions(positions []types.Position) (string, error) {
	stored := make([]storedPosition, 0, len(positions))
	for _, pos := range positions {
		sp := storedPosition{
			Symbol:         pos.Instrument.Symbol,
			InstrumentType: string(pos.Instrument.Kind),
			Currency:       pos.Instrument.Currency,
			Quantity:       pos.Quantity,
			CostBasis:      pos.CostBasis,
			MarketPrice:    pos.MarketPrice,
		}
		if pos.Instrument.IsOption() {
			opt := pos.Instrument.Option
			sp.OptionKind = string(opt.Kind)
			sp.Strike = opt.Strike
			sp.Expiry = opt.Expiry.Format("2006-01-02")
		}
		stored = append(stored, sp)
	}
	payload, err := json.Marshal(stored)
	if err != nil {
		return "", err
	}
	return string(payload), nil
}

func unmarshalPositions(payload string, reportTime time.Time) ([]types.Position, error) {
	var stored []storedPosition
	if err := json.Unmarshal([]byte(payload), &stored); err != nil {
		return nil, err
	}
	positions := make([]types.Position, 0, len(stored))
	for _, sp := range stored {
		var instrument types.Instrument
		if sp.InstrumentType == string(types.AssetOption) {
			expiry, err := time.Parse("2006-01-02", sp.Expiry)
			if err != nil {
				return nil, fmt.Errorf("position %s: %w", sp.Symbol, err)
			}
			instrument, err = types.Option(sp.Symbol, sp.Strike, expiry, types.OptionKind(sp.OptionKind), sp.Currency)
			if err != nil {
				return nil, err
			}
		} else {
			instrument = types.Stock(sp.Symbol, sp.Currency)
		}
		positions = append(positions, types.Position{
			Instrument:  instrument,
			Quantity:    sp.Quantity,
			CostBasis:   sp.CostBasis,
			MarketPrice: sp.MarketPrice,
			ReportTime:  reportTime,
		})
	}
	return positions, nil
}
