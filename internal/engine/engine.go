// Package engine steps a strategy through historical trading days against
// a portfolio ledger.
package engine

import (
	"context"
	"fmt"
	"math"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/tfleming/ironleap/internal/marketdata"
	"github.com/tfleming/ironleap/internal/models"
	"github.com/tfleming/ironleap/internal/portfolio"
	"github.com/tfleming/ironleap/internal/pricer"
	"github.com/tfleming/ironleap/internal/storage"
	"github.com/tfleming/ironleap/internal/strategy"
)

// DefaultCommission is charged per executed order when none is configured.
const DefaultCommission = 1.0

// markRiskFreeRate is the rate used when marking held options to model.
const markRiskFreeRate = 0.05

// DailyStat is the end-of-day portfolio snapshot.
type DailyStat struct {
	Date          time.Time
	Equity        float64
	RealizedPnL   float64
	UnrealizedPnL float64
	Cash          float64
}

// Config bundles the engine's run parameters.
type Config struct {
	StartDate      time.Time
	EndDate        time.Time
	InitialCapital float64
	StepDays       int
	Commission     float64
}

// BacktestEngine drives one strategy over one date range. Each engine owns
// its portfolio and its market data caches; engines never share mutable
// state, so concurrent runs only need separate instances.
type BacktestEngine struct {
	strategy   strategy.Strategy
	provider   marketdata.Provider
	sink       storage.RunSink
	logger     *logrus.Logger
	cfg        Config
	portfolio  *portfolio.Portfolio
	dailyStats []DailyStat
}

// New creates an engine. The sink may be nil, in which case results are not
// persisted.
func New(strat strategy.Strategy, provider marketdata.Provider, sink storage.RunSink, cfg Config, logger *logrus.Logger) *BacktestEngine {
	if logger == nil {
		logger = logrus.New()
	}
	if cfg.StepDays <= 0 {
		cfg.StepDays = 1
	}
	if cfg.InitialCapital <= 0 {
		cfg.InitialCapital = 100000.0
	}
	if cfg.Commission == 0 {
		cfg.Commission = DefaultCommission
	}
	return &BacktestEngine{
		strategy:  strat,
		provider:  provider,
		sink:      sink,
		logger:    logger,
		cfg:       cfg,
		portfolio: portfolio.New(cfg.InitialCapital),
	}
}

// Portfolio exposes the ledger, mainly for inspection after a run.
func (e *BacktestEngine) Portfolio() *portfolio.Portfolio {
	return e.portfolio
}

// DailyStats returns the per-day snapshots accumulated so far.
func (e *BacktestEngine) DailyStats() []DailyStat {
	return e.dailyStats
}

// quoteKey keys the run's spot and vol caches.
type quoteKey struct {
	symbol string
	date   string
}

// runCaches hold per-run market data lookups. They live for exactly one Run
// call and die with it.
type runCaches struct {
	spot map[quoteKey]float64
	vol  map[quoteKey]float64
}

func newRunCaches() *runCaches {
	return &runCaches{
		spot: make(map[quoteKey]float64),
		vol:  make(map[quoteKey]float64),
	}
}

// Run executes the backtest. Any order execution failure aborts the run;
// on success the run and trade log are persisted through the sink.
func (e *BacktestEngine) Run(ctx context.Context) (string, error) {
	e.logger.WithFields(logrus.Fields{
		"start":     e.cfg.StartDate.Format("2006-01-02"),
		"end":       e.cfg.EndDate.Format("2006-01-02"),
		"step_days": e.cfg.StepDays,
	}).Info("starting backtest")

	caches := newRunCaches()

	current := e.cfg.StartDate.UTC().Truncate(24 * time.Hour)
	end := e.cfg.EndDate.UTC().Truncate(24 * time.Hour)

	for !current.After(end) {
		if err := ctx.Err(); err != nil {
			return "", err
		}

		wd := current.Weekday()
		if wd == time.Saturday || wd == time.Sunday {
			if e.cfg.StepDays == 1 {
				current = current.AddDate(0, 0, 1)
				continue
			}
			// Multi-day stepping lands on weekends; jump to Monday.
			daysToMonday := 1
			if wd == time.Saturday {
				daysToMonday = 2
			}
			current = current.AddDate(0, 0, daysToMonday)
			if current.After(end) {
				break
			}
		}

		if err := e.markToMarket(ctx, current, caches); err != nil {
			return "", err
		}

		orders, err := e.strategy.OnBar(ctx, current, e.portfolio, e.provider)
		if err != nil {
			return "", fmt.Errorf("strategy on %s: %w", current.Format("2006-01-02"), err)
		}

		for _, order := range orders {
			err := e.portfolio.AddTrade(
				current,
				order.ContractID,
				order.Symbol,
				order.Action,
				float64(order.Quantity),
				order.Price,
				e.cfg.Commission,
				order.Expiration,
				order.Strike,
				order.Right,
			)
			if err != nil {
				e.logger.WithFields(logrus.Fields{
					"date":     current.Format("2006-01-02"),
					"contract": order.ContractID,
				}).WithError(err).Error("trade execution failed")
				return "", fmt.Errorf("executing trade on %s: %w", current.Format("2006-01-02"), err)
			}
		}

		e.dailyStats = append(e.dailyStats, DailyStat{
			Date:          current,
			Equity:        e.portfolio.TotalEquity(),
			RealizedPnL:   e.portfolio.RealizedPnL,
			UnrealizedPnL: e.portfolio.TotalUnrealizedPnL(),
			Cash:          e.portfolio.Cash,
		})

		current = current.AddDate(0, 0, e.cfg.StepDays)
	}

	runID, err := e.saveResults(ctx)
	if err != nil {
		return "", err
	}
	e.logger.WithField("run_id", runID).Info("backtest complete")
	return runID, nil
}

// markToMarket reprices every held position at the model value for the day.
// Positions with no spot data or no expiration keep their previous mark.
func (e *BacktestEngine) markToMarket(ctx context.Context, date time.Time, caches *runCaches) error {
	dateKey := date.Format("2006-01-02")

	for contractID, pos := range e.portfolio.Positions() {
		key := quoteKey{symbol: pos.Symbol, date: dateKey}

		spot, ok := caches.spot[key]
		if !ok {
			var err error
			spot, err = e.provider.SpotPrice(ctx, pos.Symbol, date)
			if err != nil {
				return fmt.Errorf("marking %s: %w", pos.Symbol, err)
			}
			caches.spot[key] = spot

			vol, err := e.provider.Volatility(ctx, pos.Symbol, date)
			if err != nil {
				return fmt.Errorf("marking %s: %w", pos.Symbol, err)
			}
			caches.vol[key] = vol
		}

		if spot == 0 || pos.Expiration.IsZero() {
			continue
		}

		t := float64(models.DaysBetween(date, pos.Expiration)) / 365.0
		isCall := pos.Right == models.RightCall

		var price float64
		if t <= 0 {
			if isCall {
				price = math.Max(0, spot-pos.Strike)
			} else {
				price = math.Max(0, pos.Strike-spot)
			}
		} else {
			price = pricer.Price(spot, pos.Strike, t, markRiskFreeRate, caches.vol[key], isCall)
		}

		e.portfolio.UpdatePrice(contractID, price)
	}
	return nil
}

// saveResults persists the run when a sink is configured.
func (e *BacktestEngine) saveResults(ctx context.Context) (string, error) {
	if e.sink == nil {
		return "", nil
	}

	summary := storage.RunSummary{
		StartDate:          e.cfg.StartDate,
		EndDate:            e.cfg.EndDate,
		InitialCapital:     e.portfolio.InitialCapital,
		FinalEquity:        e.portfolio.TotalEquity(),
		TotalRealizedPnL:   e.portfolio.RealizedPnL,
		TotalUnrealizedPnL: e.portfolio.TotalUnrealizedPnL(),
	}

	log := e.portfolio.TradeLog()
	trades := make([]storage.TradeRecord, 0, len(log))
	for _, t := range log {
		trades = append(trades, storage.TradeRecord{
			Date:        t.Date,
			Action:      string(t.Action),
			ContractID:  t.ContractID,
			Symbol:      t.Symbol,
			Quantity:    t.Quantity,
			Price:       t.Price,
			Commission:  t.Commission,
			Equity:      t.Equity,
			RealizedPnL: t.RealizedPnL,
			Note:        fmt.Sprintf("equity %.2f", t.Equity),
		})
	}

	runID, err := e.sink.SaveRun(ctx, summary, trades)
	if err != nil {
		return "", fmt.Errorf("saving run: %w", err)
	}
	return runID, nil
}
