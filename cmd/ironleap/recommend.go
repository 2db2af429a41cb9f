package main

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/tfleming/ironleap/internal/recommend"
)

func newRecommendCmd() *cobra.Command {
	var (
		budget float64
		asOf   string
		asJSON bool
	)

	cmd := &cobra.Command{
		Use:   "recommend [symbol]",
		Short: "Rank LEAP-plus-condor structures for a symbol",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, logger, provider, closer, err := setup()
			if err != nil {
				return err
			}
			if closer != nil {
				defer closer()
			}

			symbol := cfg.Strategy.Symbol
			if len(args) > 0 {
				symbol = args[0]
			}
			if budget <= 0 {
				budget = cfg.Strategy.Budget
			}

			var refDate time.Time
			if asOf != "" {
				refDate, err = time.Parse("2006-01-02", asOf)
				if err != nil {
					return fmt.Errorf("invalid --as-of date: %w", err)
				}
			}

			svc := recommend.NewService(provider, logger)
			recs, err := svc.Recommend(cmd.Context(), symbol, budget, refDate)
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			if asJSON {
				enc := json.NewEncoder(out)
				enc.SetIndent("", "  ")
				return enc.Encode(recs)
			}

			if len(recs) == 0 {
				fmt.Fprintln(out, "no recommendations")
				return nil
			}
			for i, rec := range recs {
				ic := rec.Condor
				fmt.Fprintf(out, "#%d score %.1f  credit %.2f  dte %d\n",
					i+1, rec.Score, ic.NetCredit, ic.DaysToExpiration)
				fmt.Fprintf(out, "   put %g/%g  call %g/%g  theta coverage %.2f  max loss %.2f\n",
					ic.LongPut.Strike, ic.ShortPut.Strike,
					ic.ShortCall.Strike, ic.LongCall.Strike,
					rec.Analysis["theta_coverage"], rec.Analysis["max_loss"])
			}
			return nil
		},
	}

	cmd.Flags().Float64Var(&budget, "budget", 0, "per-structure loss budget (defaults to config)")
	cmd.Flags().StringVar(&asOf, "as-of", "", "reference date YYYY-MM-DD (defaults to today)")
	cmd.Flags().BoolVar(&asJSON, "json", false, "emit JSON")
	return cmd
}
