package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/tfleming/ironleap/internal/analyzer"
	"github.com/tfleming/ironleap/internal/engine"
	"github.com/tfleming/ironleap/internal/storage"
	"github.com/tfleming/ironleap/internal/strategy"
)

func newBacktestCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "backtest",
		Short: "Run the condor strategy over historical bars",
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, logger, provider, closer, err := setup()
			if err != nil {
				return err
			}
			if closer != nil {
				defer closer()
			}

			start, err := cfg.ParsedStartDate()
			if err != nil {
				return err
			}
			end, err := cfg.ParsedEndDate()
			if err != nil {
				return err
			}

			var sink storage.RunSink
			if cfg.Storage.RunsPath != "" {
				sqlSink, err := storage.OpenSQLiteSink(cfg.Storage.RunsPath)
				if err != nil {
					return err
				}
				defer sqlSink.Close()
				sink = sqlSink
			}

			strat := strategy.NewCondorStrategy(
				cfg.Strategy.Symbol,
				cfg.Strategy.LeapSymbol,
				cfg.Strategy.Budget,
				logger,
			)

			eng := engine.New(strat, provider, sink, engine.Config{
				StartDate:      start,
				EndDate:        end,
				InitialCapital: cfg.Backtest.InitialCapital,
				StepDays:       cfg.Backtest.StepDays,
				Commission:     cfg.Backtest.Commission,
			}, logger)

			runID, err := eng.Run(cmd.Context())
			if err != nil {
				return err
			}

			summary := analyzer.Analyze(eng.DailyStats(), cfg.Backtest.InitialCapital)

			out := cmd.OutOrStdout()
			if runID != "" {
				fmt.Fprintf(out, "run id:        %s\n", runID)
			}
			fmt.Fprintf(out, "final equity:  %.2f\n", summary.FinalEquity)
			fmt.Fprintf(out, "total return:  %.2f%%\n", summary.TotalReturn*100)
			fmt.Fprintf(out, "cagr:          %.2f%%\n", summary.CAGR*100)
			fmt.Fprintf(out, "volatility:    %.2f%%\n", summary.Volatility*100)
			fmt.Fprintf(out, "sharpe:        %.2f\n", summary.SharpeRatio)
			fmt.Fprintf(out, "max drawdown:  %.2f%%\n", summary.MaxDrawdown*100)
			fmt.Fprintf(out, "win rate:      %.2f%%\n", summary.WinRate*100)
			return nil
		},
	}
	return cmd
}
