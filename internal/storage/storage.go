// Package storage persists completed backtest runs.
package storage

import (
	"context"
	"time"
)

// RunSummary captures the aggregate outcome of a backtest run.
type RunSummary struct {
	StartDate          time.Time
	EndDate            time.Time
	InitialCapital     float64
	FinalEquity        float64
	TotalRealizedPnL   float64
	TotalUnrealizedPnL float64
}

// TradeRecord is one executed trade within a run.
type TradeRecord struct {
	Date        time.Time
	Action      string
	ContractID  int64
	Symbol      string
	Quantity    float64
	Price       float64
	Commission  float64
	Equity      float64
	RealizedPnL float64
	Note        string
}

// RunSink persists a run and its trade log, returning an opaque run id.
type RunSink interface {
	SaveRun(ctx context.Context, summary RunSummary, trades []TradeRecord) (string, error)
}
