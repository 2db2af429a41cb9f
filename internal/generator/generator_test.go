package generator

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tfleming/ironleap/internal/marketdata"
	"github.com/tfleming/ironleap/internal/models"
)

// fakeProvider serves a canned chain for every expiration it advertises.
type fakeProvider struct {
	spot        float64
	expirations []time.Time
	chains      map[string][]models.OptionLeg
}

func (f *fakeProvider) SpotPrice(_ context.Context, _ string, _ time.Time) (float64, error) {
	return f.spot, nil
}

func (f *fakeProvider) Volatility(_ context.Context, _ string, _ time.Time) (float64, error) {
	return 0.20, nil
}

func (f *fakeProvider) Expirations(_ context.Context, _ string, _ time.Time) ([]time.Time, error) {
	return f.expirations, nil
}

func (f *fakeProvider) OptionChain(_ context.Context, _ string, _, expiration time.Time) ([]models.OptionLeg, error) {
	return f.chains[expiration.Format("2006-01-02")], nil
}

var _ marketdata.Provider = (*fakeProvider)(nil)

// buildChain synthesizes calls and puts on a strike grid with benign greeks.
func buildChain(symbol string, exp time.Time, start, end, step float64) []models.OptionLeg {
	var legs []models.OptionLeg
	for strike := start; strike <= end; strike += step {
		for _, right := range []models.OptionRight{models.RightCall, models.RightPut} {
			legs = append(legs, models.OptionLeg{
				Symbol:     symbol,
				Strike:     strike,
				Expiration: exp,
				Right:      right,
				Action:     models.ActionBuy,
				Quantity:   1,
				Price:      2.5,
				Greeks:     models.GreekVector{Delta: 0.3, Theta: -0.05},
				ImpliedVol: models.Float64Ptr(0.20),
				ContractID: marketdata.SyntheticContractID(symbol, exp, strike, right),
			})
		}
	}
	return legs
}

func TestGenerate_StrikeOrdering(t *testing.T) {
	ref := time.Date(2024, 3, 4, 0, 0, 0, 0, time.UTC)
	exp := ref.AddDate(0, 0, 40)
	provider := &fakeProvider{
		spot:        450,
		expirations: []time.Time{exp},
		chains: map[string][]models.OptionLeg{
			exp.Format("2006-01-02"): buildChain("QQQ", exp, 350, 550, 5),
		},
	}

	gen := NewCandidateGenerator(provider, nil)
	candidates, err := gen.Generate(context.Background(), "QQQ", 40, ref)
	require.NoError(t, err)
	require.NotEmpty(t, candidates)

	for _, ic := range candidates {
		assert.Less(t, ic.LongPut.Strike, ic.ShortPut.Strike)
		assert.Less(t, ic.ShortPut.Strike, ic.ShortCall.Strike)
		assert.Less(t, ic.ShortCall.Strike, ic.LongCall.Strike)

		assert.Equal(t, models.ActionSell, ic.ShortCall.Action)
		assert.Equal(t, -1, ic.ShortCall.Quantity)
		assert.Equal(t, models.ActionBuy, ic.LongCall.Action)
		assert.Equal(t, 1, ic.LongCall.Quantity)
		assert.Equal(t, models.ActionSell, ic.ShortPut.Action)
		assert.Equal(t, models.ActionBuy, ic.LongPut.Action)

		assert.Equal(t, models.RightCall, ic.ShortCall.Right)
		assert.Equal(t, models.RightCall, ic.LongCall.Right)
		assert.Equal(t, models.RightPut, ic.ShortPut.Right)
		assert.Equal(t, models.RightPut, ic.LongPut.Right)
	}

	// Full grid: 6 call offsets x 6 put offsets x 3 call widths x 3 put
	// widths, minus combinations walking off the chain edge.
	assert.LessOrEqual(t, len(candidates), 6*6*3*3)
}

func TestGenerate_SkipsAbsentStrikes(t *testing.T) {
	ref := time.Date(2024, 3, 4, 0, 0, 0, 0, time.UTC)
	exp := ref.AddDate(0, 0, 40)
	// A narrow chain: only one offset and one width fit each side.
	provider := &fakeProvider{
		spot:        450,
		expirations: []time.Time{exp},
		chains: map[string][]models.OptionLeg{
			exp.Format("2006-01-02"): buildChain("QQQ", exp, 440, 460, 5),
		},
	}

	gen := NewCandidateGenerator(provider, nil)
	candidates, err := gen.Generate(context.Background(), "QQQ", 40, ref)
	require.NoError(t, err)

	for _, ic := range candidates {
		assert.GreaterOrEqual(t, ic.LongPut.Strike, 440.0)
		assert.LessOrEqual(t, ic.LongCall.Strike, 460.0)
	}
}

func TestGenerate_NoData(t *testing.T) {
	provider := &fakeProvider{spot: 0}
	gen := NewCandidateGenerator(provider, nil)

	candidates, err := gen.Generate(context.Background(), "QQQ", 40, time.Date(2024, 3, 4, 0, 0, 0, 0, time.UTC))
	require.NoError(t, err)
	assert.Empty(t, candidates)
}

func TestClosestExpiration(t *testing.T) {
	ref := time.Date(2024, 3, 4, 0, 0, 0, 0, time.UTC)
	expirations := []time.Time{
		ref.AddDate(0, 0, 7),
		ref.AddDate(0, 0, 35),
		ref.AddDate(0, 0, 42),
		ref.AddDate(0, 0, 70),
	}
	got := closestExpiration(expirations, ref, 40)
	assert.Equal(t, ref.AddDate(0, 0, 42), got)
}

func TestInferStrikeStep(t *testing.T) {
	mk := func(strikes ...float64) map[float64]models.OptionLeg {
		m := make(map[float64]models.OptionLeg, len(strikes))
		for _, s := range strikes {
			m[s] = models.OptionLeg{Strike: s}
		}
		return m
	}

	assert.Equal(t, 5.0, inferStrikeStep(mk(440, 445, 450, 455)))
	assert.Equal(t, 100.0, inferStrikeStep(mk(17300, 17400, 17500)))
	// Sub-point diffs are ignored in favor of the smallest full-point step.
	assert.Equal(t, 2.0, inferStrikeStep(mk(449.5, 450, 452, 454)))
	// Too few strikes falls back to the default.
	assert.Equal(t, 5.0, inferStrikeStep(mk(450)))
}

func TestSelectBest_NearestQualifyingExpiration(t *testing.T) {
	ref := time.Date(2024, 1, 8, 0, 0, 0, 0, time.UTC)
	near := ref.AddDate(0, 0, 200)
	leap1 := ref.AddDate(0, 0, 380)
	leap2 := ref.AddDate(0, 0, 450)

	chain := []models.OptionLeg{
		{Symbol: "QQQ", Strike: 400, Expiration: leap1, Right: models.RightCall,
			Greeks: models.GreekVector{Delta: 0.82}, Price: 75, ContractID: 11},
		{Symbol: "QQQ", Strike: 430, Expiration: leap1, Right: models.RightCall,
			Greeks: models.GreekVector{Delta: 0.71}, Price: 55, ContractID: 12},
		{Symbol: "QQQ", Strike: 460, Expiration: leap1, Right: models.RightCall,
			Greeks: models.GreekVector{Delta: 0.55}, Price: 38, ContractID: 13},
		{Symbol: "QQQ", Strike: 430, Expiration: leap1, Right: models.RightPut,
			Greeks: models.GreekVector{Delta: -0.29}, Price: 20, ContractID: 14},
	}
	provider := &fakeProvider{
		spot:        450,
		expirations: []time.Time{near, leap1, leap2},
		chains: map[string][]models.OptionLeg{
			leap1.Format("2006-01-02"): chain,
		},
	}

	selector := NewLeapSelector(provider, nil)
	rec, err := selector.SelectBest(context.Background(), "QQQ", 0.70, 365, ref)
	require.NoError(t, err)
	require.NotNil(t, rec)

	// Nearest expiration at least a year out, call closest to 0.70 delta.
	assert.Equal(t, leap1, rec.Leg.Expiration)
	assert.Equal(t, 430.0, rec.Leg.Strike)
	assert.Equal(t, models.RightCall, rec.Leg.Right)
	assert.Equal(t, models.ActionBuy, rec.Leg.Action)
	assert.Equal(t, 1, rec.Leg.Quantity)
	assert.Contains(t, rec.Reason, "0.71")
}

func TestSelectBest_NoQualifyingExpiration(t *testing.T) {
	ref := time.Date(2024, 1, 8, 0, 0, 0, 0, time.UTC)
	provider := &fakeProvider{
		spot:        450,
		expirations: []time.Time{ref.AddDate(0, 0, 40), ref.AddDate(0, 0, 200)},
	}

	selector := NewLeapSelector(provider, nil)
	rec, err := selector.SelectBest(context.Background(), "QQQ", 0.70, 365, ref)
	require.NoError(t, err)
	assert.Nil(t, rec)
}
