// Package models provides the domain value types shared by the pricing,
// search, and backtesting components.
package models

import "time"

// SharesPerContract is the standard equity option contract multiplier.
const SharesPerContract = 100.0

// OptionRight identifies a contract as a call or a put.
type OptionRight string

const (
	// RightCall represents a call option contract.
	RightCall OptionRight = "call"
	// RightPut represents a put option contract.
	RightPut OptionRight = "put"
)

// Valid returns true if the OptionRight is one of the defined constants.
func (r OptionRight) Valid() bool {
	return r == RightCall || r == RightPut
}

// Code returns the single-letter contract code ("C" or "P").
func (r OptionRight) Code() string {
	if r == RightCall {
		return "C"
	}
	return "P"
}

// RightFromCode maps a single-letter contract code back to an OptionRight.
func RightFromCode(code string) OptionRight {
	if code == "C" {
		return RightCall
	}
	return RightPut
}

// OrderAction identifies the direction of a trade.
type OrderAction string

const (
	// ActionBuy opens or adds to a long position, or closes a short.
	ActionBuy OrderAction = "BUY"
	// ActionSell opens or adds to a short position, or closes a long.
	ActionSell OrderAction = "SELL"
)

// Valid returns true if the OrderAction is one of the defined constants.
func (a OrderAction) Valid() bool {
	return a == ActionBuy || a == ActionSell
}

// GreekVector holds first-order option sensitivities. Theta is per calendar
// day, vega per one percentage point of volatility.
type GreekVector struct {
	Delta float64 `json:"delta"`
	Gamma float64 `json:"gamma"`
	Theta float64 `json:"theta"`
	Vega  float64 `json:"vega"`
}

// OptionLeg is a single priced option contract with an intended action.
// Legs are value objects: candidate structures receive copies via Clone,
// never shared pointers.
type OptionLeg struct {
	Symbol     string      `json:"symbol"`
	Strike     float64     `json:"strike"`
	Expiration time.Time   `json:"expiration"`
	Right      OptionRight `json:"right"`
	Action     OrderAction `json:"action"`
	// Quantity is signed: positive = long, negative = short.
	Quantity   int         `json:"quantity"`
	Greeks     GreekVector `json:"greeks"`
	Price      float64     `json:"price"`
	Bid        float64     `json:"bid,omitempty"`
	Ask        float64     `json:"ask,omitempty"`
	Mid        float64     `json:"mid,omitempty"`
	// ImpliedVol is nil when the source could not supply one. Scenario
	// repricing skips nil-IV legs rather than assuming zero.
	ImpliedVol *float64 `json:"implied_vol,omitempty"`
	// ContractID is the external contract identifier, 0 when unresolved.
	ContractID int64 `json:"contract_id,omitempty"`
}

// Clone returns an independent copy of the leg.
func (l OptionLeg) Clone() OptionLeg {
	c := l
	if l.ImpliedVol != nil {
		iv := *l.ImpliedVol
		c.ImpliedVol = &iv
	}
	return c
}

// DTE returns the leg's days to expiration relative to ref.
func (l OptionLeg) DTE(ref time.Time) int {
	return DaysBetween(ref, l.Expiration)
}

// PnLPoint is a single point of a profit/loss scenario set.
type PnLPoint struct {
	PriceChangePct  float64 `json:"price_change_pct"`
	UnderlyingPrice float64 `json:"underlying_price"`
	EstimatedPnL    float64 `json:"estimated_pnl"`
}

// IronCondor is a scored four-leg credit spread.
type IronCondor struct {
	ShortCall OptionLeg `json:"short_call"`
	LongCall  OptionLeg `json:"long_call"`
	ShortPut  OptionLeg `json:"short_put"`
	LongPut   OptionLeg `json:"long_put"`
	// NetCredit is short-leg proceeds minus long-leg costs, per spread.
	NetCredit float64 `json:"net_credit"`
	// MarginRequirement is max wing width times the contract multiplier.
	MarginRequirement float64     `json:"margin_requirement"`
	Greeks            GreekVector `json:"greeks"`
	DaysToExpiration  int         `json:"days_to_expiration"`
	// Scenarios holds the coarse +-5%/+-2%/0% expiration P&L set.
	Scenarios []PnLPoint `json:"scenarios,omitempty"`
	// Curve holds the granular -10%..+10% expiration P&L curve.
	Curve []PnLPoint `json:"curve,omitempty"`
}

// Legs returns the four legs in short-call, long-call, short-put, long-put
// order.
func (ic *IronCondor) Legs() [4]OptionLeg {
	return [4]OptionLeg{ic.ShortCall, ic.LongCall, ic.ShortPut, ic.LongPut}
}

// LeapRecommendation is a single long-dated call tagged for purchase.
type LeapRecommendation struct {
	Leg    OptionLeg `json:"leg"`
	Reason string    `json:"reason"`
}

// Recommendation pairs a LEAP with an iron condor and its validation score.
type Recommendation struct {
	Leap   LeapRecommendation `json:"leap"`
	Condor IronCondor         `json:"iron_condor"`
	Score  float64            `json:"score"`
	// Analysis carries validation diagnostics: theta_coverage, max_loss,
	// net_credit, portfolio_delta.
	Analysis           map[string]float64 `json:"analysis"`
	PortfolioScenarios []PnLPoint         `json:"portfolio_scenarios,omitempty"`
	PortfolioCurve     []PnLPoint         `json:"portfolio_curve,omitempty"`
	UnderlyingPrice    float64            `json:"underlying_price,omitempty"`
	UnderlyingIV       float64            `json:"underlying_iv,omitempty"`
}

// Order is an instruction emitted by a strategy and executed against the
// portfolio by the backtest engine.
type Order struct {
	Action     OrderAction `json:"action"`
	ContractID int64       `json:"contract_id"`
	Symbol     string      `json:"symbol"`
	Quantity   int         `json:"quantity"`
	Price      float64     `json:"price"`
	Expiration time.Time   `json:"expiration"`
	Strike     float64     `json:"strike"`
	Right      OptionRight `json:"right"`
}

// DaysBetween returns the signed number of whole days from a to b,
// comparing truncated UTC dates.
func DaysBetween(a, b time.Time) int {
	from := a.UTC().Truncate(24 * time.Hour)
	to := b.UTC().Truncate(24 * time.Hour)
	return int(to.Sub(from).Hours() / 24)
}

// Float64Ptr returns a pointer to v. Convenience for optional leg fields.
func Float64Ptr(v float64) *float64 { return &v }
