// Package strategy drives position decisions for the LEAP-anchored iron
// condor system, one bar at a time.
package strategy

import (
	"context"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/tfleming/ironleap/internal/generator"
	"github.com/tfleming/ironleap/internal/marketdata"
	"github.com/tfleming/ironleap/internal/models"
	"github.com/tfleming/ironleap/internal/portfolio"
	"github.com/tfleming/ironleap/internal/validator"
)

// Strategy is evaluated once per bar and returns the orders to execute.
type Strategy interface {
	OnBar(ctx context.Context, date time.Time, pf *portfolio.Portfolio, provider marketdata.Provider) ([]models.Order, error)
}

const (
	// condorCloseDTE is the management point: close the condor once any
	// leg is this close to expiration.
	condorCloseDTE = 21
	// leapEntryMonth restricts LEAP entry to January.
	leapEntryMonth = time.January
	// leapMinDays is looser than the selector default so a January entry
	// can take the first expiration past roughly ten months out.
	leapMinDays = 300
	// leapTargetDelta is the preferred anchor delta.
	leapTargetDelta = 0.70
)

// CondorStrategy holds a deep ITM LEAP call on the hedge symbol and sells
// iron condors against it on the income symbol. The lifecycle is an
// explicit state machine: no position, LEAP only, LEAP plus condor.
type CondorStrategy struct {
	symbol     string // condor underlying
	leapSymbol string // anchor underlying
	budget     float64
	logger     *logrus.Logger

	state          *machine
	leapContractID int64
	condorLegs     []int64
}

// NewCondorStrategy creates the strategy for the symbol pair.
func NewCondorStrategy(symbol, leapSymbol string, budget float64, logger *logrus.Logger) *CondorStrategy {
	if logger == nil {
		logger = logrus.New()
	}
	return &CondorStrategy{
		symbol:     symbol,
		leapSymbol: leapSymbol,
		budget:     budget,
		logger:     logger,
		state:      newMachine(),
	}
}

// State returns the current lifecycle state.
func (s *CondorStrategy) State() State {
	return s.state.Current()
}

// CondorLegIDs returns the contract ids of the held condor legs.
func (s *CondorStrategy) CondorLegIDs() []int64 {
	ids := make([]int64, len(s.condorLegs))
	copy(ids, s.condorLegs)
	return ids
}

// OnBar evaluates the strategy for the trading day and returns the orders
// to execute, possibly none.
func (s *CondorStrategy) OnBar(ctx context.Context, date time.Time, pf *portfolio.Portfolio, provider marketdata.Provider) ([]models.Order, error) {
	var orders []models.Order

	// Condor maintenance first: drop vanished legs, close at the DTE
	// management point.
	closeOrders, err := s.manageCondor(date, pf)
	if err != nil {
		return nil, err
	}
	orders = append(orders, closeOrders...)

	// LEAP entry happens in January only.
	var leapLeg *models.OptionLeg
	if s.leapContractID == 0 && date.Month() == leapEntryMonth {
		leg, order, err := s.openLeap(ctx, date, provider)
		if err != nil {
			return nil, err
		}
		if leg != nil {
			orders = append(orders, *order)
			leapLeg = leg
		}
	} else if s.leapContractID != 0 {
		leapLeg, err = s.resolveHeldLeap(ctx, date, pf, provider)
		if err != nil {
			return nil, err
		}
	}

	if len(s.condorLegs) == 0 && leapLeg != nil {
		condorOrders, err := s.openCondor(ctx, date, leapLeg, provider)
		if err != nil {
			return nil, err
		}
		orders = append(orders, condorOrders...)
	}

	return orders, nil
}

// manageCondor clears vanished legs and emits closing orders when any leg
// reaches the DTE threshold.
func (s *CondorStrategy) manageCondor(date time.Time, pf *portfolio.Portfolio) ([]models.Order, error) {
	if len(s.condorLegs) == 0 {
		return nil, nil
	}

	activeLegs := 0
	closeAll := false
	for _, id := range s.condorLegs {
		pos := pf.Position(id)
		if pos == nil {
			continue
		}
		activeLegs++
		if !pos.Expiration.IsZero() && models.DaysBetween(date, pos.Expiration) <= condorCloseDTE {
			closeAll = true
		}
	}

	if activeLegs == 0 {
		s.condorLegs = nil
		if err := s.state.Transition(StateLeapOnly); err != nil {
			return nil, err
		}
		return nil, nil
	}
	if !closeAll {
		return nil, nil
	}

	var orders []models.Order
	var totalPnL float64
	for _, id := range s.condorLegs {
		pos := pf.Position(id)
		if pos == nil {
			continue
		}
		totalPnL += pos.UnrealizedPnL()

		action := models.ActionSell
		qty := int(pos.Quantity)
		if pos.Quantity < 0 {
			action = models.ActionBuy
			qty = int(-pos.Quantity)
		}
		orders = append(orders, models.Order{
			Action:     action,
			ContractID: id,
			Symbol:     s.symbol,
			Quantity:   qty,
			Price:      pos.CurrentPrice,
			Expiration: pos.Expiration,
			Strike:     pos.Strike,
			Right:      pos.Right,
		})
	}

	s.logger.WithFields(logrus.Fields{
		"date": date.Format("2006-01-02"),
		"pnl":  totalPnL,
	}).Info("closing condor at management point")

	s.condorLegs = nil
	if err := s.state.Transition(StateLeapOnly); err != nil {
		return nil, err
	}
	return orders, nil
}

// openLeap selects and buys the anchor call. Returns nils when no
// qualifying contract exists today.
func (s *CondorStrategy) openLeap(ctx context.Context, date time.Time, provider marketdata.Provider) (*models.OptionLeg, *models.Order, error) {
	selector := generator.NewLeapSelector(provider, s.logger)
	best, err := selector.SelectBest(ctx, s.leapSymbol, leapTargetDelta, leapMinDays, date)
	if err != nil {
		return nil, nil, err
	}
	if best == nil || best.Leg.ContractID == 0 {
		return nil, nil, nil
	}

	leg := best.Leg
	order := models.Order{
		Action:     models.ActionBuy,
		ContractID: leg.ContractID,
		Symbol:     s.leapSymbol,
		Quantity:   1,
		Price:      leg.Price,
		Expiration: leg.Expiration,
		Strike:     leg.Strike,
		Right:      leg.Right,
	}

	s.leapContractID = leg.ContractID
	if err := s.state.Transition(StateLeapOnly); err != nil {
		return nil, nil, err
	}

	s.logger.WithFields(logrus.Fields{
		"date":       date.Format("2006-01-02"),
		"symbol":     s.leapSymbol,
		"expiration": leg.Expiration.Format("2006-01-02"),
		"strike":     leg.Strike,
		"delta":      leg.Greeks.Delta,
		"price":      leg.Price,
	}).Info("opening LEAP")

	return &leg, &order, nil
}

// resolveHeldLeap reconstructs the held anchor leg with fresh greeks from
// today's chain. The ledger keeps prices but not greeks, so the contract is
// looked up by id on its known expiration. Returns nil when the position or
// contract cannot be found.
func (s *CondorStrategy) resolveHeldLeap(ctx context.Context, date time.Time, pf *portfolio.Portfolio, provider marketdata.Provider) (*models.OptionLeg, error) {
	pos := pf.Position(s.leapContractID)
	if pos == nil {
		return nil, nil
	}

	chain, err := provider.OptionChain(ctx, s.leapSymbol, date, pos.Expiration)
	if err != nil {
		return nil, err
	}
	for i := range chain {
		if chain[i].ContractID == s.leapContractID {
			leg := chain[i].Clone()
			leg.Action = models.ActionBuy
			leg.Quantity = 1
			return &leg, nil
		}
	}
	return nil, nil
}

// openCondor generates and validates candidates against the anchor and
// opens the best one. A candidate whose legs do not all carry contract ids
// is dropped rather than partially filled.
func (s *CondorStrategy) openCondor(ctx context.Context, date time.Time, leapLeg *models.OptionLeg, provider marketdata.Provider) ([]models.Order, error) {
	gen := generator.NewCandidateGenerator(provider, s.logger)
	candidates, err := gen.Generate(ctx, s.symbol, generator.DefaultTargetDays, date)
	if err != nil {
		return nil, err
	}
	if len(candidates) == 0 {
		return nil, nil
	}

	spot, err := provider.SpotPrice(ctx, s.symbol, date)
	if err != nil {
		return nil, err
	}

	v := validator.New(s.logger)
	leapRec := &models.LeapRecommendation{Leg: *leapLeg, Reason: "existing"}
	recs := v.RankAndValidate(leapRec, candidates, s.budget, spot, date)
	if len(recs) == 0 {
		return nil, nil
	}

	best := recs[0].Condor
	legs := []struct {
		leg    models.OptionLeg
		action models.OrderAction
	}{
		{best.ShortCall, models.ActionSell},
		{best.LongCall, models.ActionBuy},
		{best.ShortPut, models.ActionSell},
		{best.LongPut, models.ActionBuy},
	}

	for _, l := range legs {
		if l.leg.ContractID == 0 {
			s.logger.WithFields(logrus.Fields{
				"date":   date.Format("2006-01-02"),
				"strike": l.leg.Strike,
			}).Warn("aborting condor open: leg has no contract id")
			return nil, nil
		}
	}

	orders := make([]models.Order, 0, len(legs))
	newLegs := make([]int64, 0, len(legs))
	for _, l := range legs {
		orders = append(orders, models.Order{
			Action:     l.action,
			ContractID: l.leg.ContractID,
			Symbol:     s.symbol,
			Quantity:   1,
			Price:      l.leg.Price,
			Expiration: l.leg.Expiration,
			Strike:     l.leg.Strike,
			Right:      l.leg.Right,
		})
		newLegs = append(newLegs, l.leg.ContractID)
	}

	s.condorLegs = newLegs
	if err := s.state.Transition(StateLeapAndCondor); err != nil {
		return nil, err
	}

	s.logger.WithFields(logrus.Fields{
		"date":       date.Format("2006-01-02"),
		"score":      recs[0].Score,
		"short_put":  best.ShortPut.Strike,
		"long_put":   best.LongPut.Strike,
		"short_call": best.ShortCall.Strike,
		"long_call":  best.LongCall.Strike,
	}).Info("opening condor")

	return orders, nil
}

var _ Strategy = (*CondorStrategy)(nil)
