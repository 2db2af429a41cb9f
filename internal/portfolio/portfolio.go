// Package portfolio is the cash-and-positions ledger for backtest runs.
package portfolio

import (
	"fmt"
	"time"

	"github.com/tfleming/ironleap/internal/models"
)

// Position is a held contract keyed by its contract id. Quantity is signed:
// positive long, negative short.
type Position struct {
	ContractID   int64
	Symbol       string
	Expiration   time.Time
	Strike       float64
	Right        models.OptionRight
	Quantity     float64
	AvgPrice     float64
	CurrentPrice float64
}

// MarketValue is the signed value of the position at the current mark.
func (p *Position) MarketValue() float64 {
	return p.Quantity * p.CurrentPrice * models.SharesPerContract
}

// UnrealizedPnL is the open profit against the average entry price.
func (p *Position) UnrealizedPnL() float64 {
	return (p.CurrentPrice - p.AvgPrice) * p.Quantity * models.SharesPerContract
}

// TradeEntry records one executed trade and the ledger state after it.
type TradeEntry struct {
	Date        time.Time
	Action      models.OrderAction
	ContractID  int64
	Symbol      string
	Quantity    float64
	Price       float64
	Commission  float64
	Equity      float64
	RealizedPnL float64
}

// Portfolio tracks cash, open positions, realized P&L, and the trade log.
// Not safe for concurrent use; the engine drives it from a single loop.
type Portfolio struct {
	InitialCapital float64
	Cash           float64
	RealizedPnL    float64

	positions map[int64]*Position
	tradeLog  []TradeEntry
}

// New creates a ledger with the starting cash balance.
func New(initialCapital float64) *Portfolio {
	return &Portfolio{
		InitialCapital: initialCapital,
		Cash:           initialCapital,
		positions:      make(map[int64]*Position),
	}
}

// Position returns the open position for the contract id, or nil.
func (pf *Portfolio) Position(contractID int64) *Position {
	return pf.positions[contractID]
}

// Positions returns the open positions. The map is live; callers must not
// mutate it.
func (pf *Portfolio) Positions() map[int64]*Position {
	return pf.positions
}

// TradeLog returns every executed trade in order.
func (pf *Portfolio) TradeLog() []TradeEntry {
	return pf.tradeLog
}

// TotalEquity is cash plus the marked value of all open positions.
func (pf *Portfolio) TotalEquity() float64 {
	equity := pf.Cash
	for _, pos := range pf.positions {
		equity += pos.MarketValue()
	}
	return equity
}

// TotalUnrealizedPnL sums the open P&L across positions.
func (pf *Portfolio) TotalUnrealizedPnL() float64 {
	var total float64
	for _, pos := range pf.positions {
		total += pos.UnrealizedPnL()
	}
	return total
}

// UpdatePrice marks the position to price. Absent positions are a no-op.
func (pf *Portfolio) UpdatePrice(contractID int64, price float64) {
	if pos, ok := pf.positions[contractID]; ok {
		pos.CurrentPrice = price
	}
}

// AddTrade executes a trade against the ledger. Quantity is always the
// positive number of contracts; action carries the direction.
//
// Closing against an opposite position realizes P&L net of commission.
// A fill larger than the open quantity flips the position, and the flipped
// remainder takes the execution price as its new basis; the prior basis is
// not blended across the flip.
func (pf *Portfolio) AddTrade(date time.Time, contractID int64, symbol string, action models.OrderAction, quantity, price, commission float64, expiration time.Time, strike float64, right models.OptionRight) error {
	if quantity <= 0 {
		return fmt.Errorf("trade quantity must be positive, got %v", quantity)
	}

	cost := quantity * price * models.SharesPerContract

	switch action {
	case models.ActionBuy:
		pf.Cash -= cost + commission
		if pos, ok := pf.positions[contractID]; ok {
			if pos.Quantity < 0 {
				// Buying back a short.
				qtyToClose := quantity
				if open := -pos.Quantity; open < qtyToClose {
					qtyToClose = open
				}
				pnl := (pos.AvgPrice - price) * qtyToClose * models.SharesPerContract
				pf.RealizedPnL += pnl - commission

				pos.Quantity += quantity
				if pos.Quantity == 0 {
					delete(pf.positions, contractID)
				} else if pos.Quantity > 0 {
					pos.AvgPrice = price
				}
			} else {
				totalCost := pos.Quantity*pos.AvgPrice*models.SharesPerContract + cost
				pos.Quantity += quantity
				if pos.Quantity != 0 {
					pos.AvgPrice = totalCost / (pos.Quantity * models.SharesPerContract)
				}
			}
		} else {
			pf.positions[contractID] = &Position{
				ContractID:   contractID,
				Symbol:       symbol,
				Expiration:   expiration,
				Strike:       strike,
				Right:        right,
				Quantity:     quantity,
				AvgPrice:     price,
				CurrentPrice: price,
			}
		}

	case models.ActionSell:
		pf.Cash += cost - commission
		if pos, ok := pf.positions[contractID]; ok {
			if pos.Quantity > 0 {
				// Selling out of a long.
				qtyToClose := quantity
				if pos.Quantity < qtyToClose {
					qtyToClose = pos.Quantity
				}
				pnl := (price - pos.AvgPrice) * qtyToClose * models.SharesPerContract
				pf.RealizedPnL += pnl - commission

				pos.Quantity -= quantity
				if pos.Quantity == 0 {
					delete(pf.positions, contractID)
				} else if pos.Quantity < 0 {
					pos.AvgPrice = price
				}
			} else {
				// Adding to a short: volume-weight the basis.
				currentVal := -pos.Quantity * pos.AvgPrice * models.SharesPerContract
				newVal := quantity * price * models.SharesPerContract

				pos.Quantity -= quantity
				pos.AvgPrice = (currentVal + newVal) / (-pos.Quantity * models.SharesPerContract)
			}
		} else {
			pf.positions[contractID] = &Position{
				ContractID:   contractID,
				Symbol:       symbol,
				Expiration:   expiration,
				Strike:       strike,
				Right:        right,
				Quantity:     -quantity,
				AvgPrice:     price,
				CurrentPrice: price,
			}
		}

	default:
		return fmt.Errorf("unknown trade action %q", action)
	}

	pf.tradeLog = append(pf.tradeLog, TradeEntry{
		Date:        date,
		Action:      action,
		ContractID:  contractID,
		Symbol:      symbol,
		Quantity:    quantity,
		Price:       price,
		Commission:  commission,
		Equity:      pf.TotalEquity(),
		RealizedPnL: pf.RealizedPnL,
	})
	return nil
}
