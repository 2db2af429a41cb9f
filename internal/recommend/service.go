// Package recommend is the research facade: it assembles the selector,
// generator, and validator into a single recommendation call.
package recommend

import (
	"context"
	"time"

	"github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"

	"github.com/tfleming/ironleap/internal/generator"
	"github.com/tfleming/ironleap/internal/marketdata"
	"github.com/tfleming/ironleap/internal/models"
	"github.com/tfleming/ironleap/internal/validator"
)

// maxRecommendations caps the ranked result list.
const maxRecommendations = 10

// DefaultBudget is the per-structure loss budget when none is supplied.
const DefaultBudget = 1000.0

// Service produces ranked LEAP-plus-condor recommendations.
type Service struct {
	provider  marketdata.Provider
	selector  *generator.LeapSelector
	generator *generator.CandidateGenerator
	validator *validator.Validator
	logger    *logrus.Logger
}

// NewService wires the recommendation pipeline over the provider.
func NewService(provider marketdata.Provider, logger *logrus.Logger) *Service {
	if logger == nil {
		logger = logrus.New()
	}
	return &Service{
		provider:  provider,
		selector:  generator.NewLeapSelector(provider, logger),
		generator: generator.NewCandidateGenerator(provider, logger),
		validator: validator.New(logger),
		logger:    logger,
	}
}

// Recommend returns up to ten ranked recommendations for the symbol on
// refDate. No qualifying LEAP yields an empty result, not an error.
func (s *Service) Recommend(ctx context.Context, symbol string, budget float64, refDate time.Time) ([]models.Recommendation, error) {
	if budget <= 0 {
		budget = DefaultBudget
	}
	if refDate.IsZero() {
		refDate = time.Now().UTC().Truncate(24 * time.Hour)
	}

	s.logger.WithFields(logrus.Fields{
		"symbol": symbol,
		"budget": budget,
	}).Info("starting recommendation run")

	var spot, vol float64
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		var err error
		spot, err = s.provider.SpotPrice(gctx, symbol, refDate)
		return err
	})
	g.Go(func() error {
		var err error
		vol, err = s.provider.Volatility(gctx, symbol, refDate)
		return err
	})
	if err := g.Wait(); err != nil {
		return nil, err
	}

	leap, err := s.selector.SelectBest(ctx, symbol, generator.DefaultLeapTargetDelta, generator.DefaultLeapMinDays, refDate)
	if err != nil {
		return nil, err
	}
	if leap == nil {
		s.logger.WithField("symbol", symbol).Warn("no LEAP found, no recommendations")
		return nil, nil
	}

	candidates, err := s.generator.Generate(ctx, symbol, generator.DefaultTargetDays, refDate)
	if err != nil {
		return nil, err
	}
	s.logger.WithField("candidates", len(candidates)).Info("generated condor candidates")

	recs := s.validator.RankAndValidate(leap, candidates, budget, spot, refDate)

	for i := range recs {
		recs[i].UnderlyingPrice = spot
		recs[i].UnderlyingIV = vol
	}

	if len(recs) > maxRecommendations {
		recs = recs[:maxRecommendations]
	}
	s.logger.WithField("recommendations", len(recs)).Info("recommendation run complete")
	return recs, nil
}
