package marketdata

import (
	"context"
	"time"

	"github.com/tfleming/ironleap/internal/models"
	"github.com/tfleming/ironleap/internal/pricer"
)

// StaticProvider serves fixed quotes and fully synthetic chains without any
// external source. It backs the recommendation CLI when no bar database is
// configured, and keeps tests deterministic.
type StaticProvider struct {
	Spot     float64
	Vol      float64
	RiskFree float64
	// Now anchors expiration synthesis; zero means time.Now.
	Now time.Time
}

// NewStaticProvider returns a provider quoting the default spot and vol.
func NewStaticProvider() *StaticProvider {
	return &StaticProvider{Spot: 450.0, Vol: DefaultVolatility, RiskFree: RiskFreeRate}
}

func (p *StaticProvider) now() time.Time {
	if p.Now.IsZero() {
		return time.Now().UTC().Truncate(24 * time.Hour)
	}
	return p.Now.UTC().Truncate(24 * time.Hour)
}

// SpotPrice returns a fixed quote per symbol.
func (p *StaticProvider) SpotPrice(_ context.Context, symbol string, _ time.Time) (float64, error) {
	switch symbol {
	case "SPY":
		return 500.0, nil
	case "QQQ":
		return 440.0, nil
	case "IWM":
		return 200.0, nil
	case "NDX":
		return 17500.0, nil
	case "SPX":
		return 5100.0, nil
	default:
		return p.Spot, nil
	}
}

// Volatility returns the fixed volatility level.
func (p *StaticProvider) Volatility(_ context.Context, _ string, _ time.Time) (float64, error) {
	return p.Vol, nil
}

// Expirations returns a near-term pair for condors and a long-dated pair for
// LEAPs.
func (p *StaticProvider) Expirations(_ context.Context, _ string, date time.Time) ([]time.Time, error) {
	ref := date.UTC().Truncate(24 * time.Hour)
	if ref.IsZero() {
		ref = p.now()
	}
	return []time.Time{
		ref.AddDate(0, 0, 30),
		ref.AddDate(0, 0, 45),
		ref.AddDate(0, 0, 365),
		ref.AddDate(0, 0, 400),
	}, nil
}

// OptionChain synthesizes a chain spanning +-20% of spot on a spot-derived
// step.
func (p *StaticProvider) OptionChain(ctx context.Context, symbol string, date, expiration time.Time) ([]models.OptionLeg, error) {
	spot, err := p.SpotPrice(ctx, symbol, date)
	if err != nil {
		return nil, err
	}

	ref := date.UTC().Truncate(24 * time.Hour)
	dte := models.DaysBetween(ref, expiration)
	t := float64(dte) / 365.0

	step := float64(int(spot * 0.01))
	if step == 0 {
		step = 5
	}

	var legs []models.OptionLeg
	for strike := float64(int(spot * 0.8)); strike < spot*1.2; strike += step {
		for _, right := range []models.OptionRight{models.RightCall, models.RightPut} {
			isCall := right == models.RightCall
			price := pricer.Price(spot, strike, t, p.RiskFree, p.Vol, isCall)
			delta, gamma, theta, vega := pricer.Greeks(spot, strike, t, p.RiskFree, p.Vol, isCall)

			iv := p.Vol
			legs = append(legs, models.OptionLeg{
				Symbol:     symbol,
				Strike:     strike,
				Expiration: expiration,
				Right:      right,
				Action:     models.ActionBuy,
				Greeks:     models.GreekVector{Delta: delta, Gamma: gamma, Theta: theta, Vega: vega},
				Price:      price,
				Mid:        price,
				ImpliedVol: &iv,
				ContractID: SyntheticContractID(symbol, expiration, strike, right),
			})
		}
	}
	return legs, nil
}

var _ Provider = (*StaticProvider)(nil)
