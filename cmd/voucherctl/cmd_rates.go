package main

import (
	"io"
	"time"

	"github.com/pkg/errors"
	"github.com/shopspring/decimal"
	"github.com/spf13/cobra"

	"github.com/gideon-vouchers/voucher-server/pkg/currency"
)

const rateDateLayout = "2006-01-02"

func init() {
	var (
		ratesSol string
		ratesAt  string
	)
	ratesCmd := &cobra.Command{
		Use:   "rates [country]",
		Short: "Show SOL exchange rates, optionally converting an amount",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			sol := decimal.Zero
			if len(ratesSol) > 0 {
				parsed, err := decimal.NewFromString(ratesSol)
				if err != nil || parsed.IsNegative() {
					return errors.Errorf("invalid --sol amount: %q", ratesSol)
				}
				sol = parsed
			}

			e, err := loadEnv(cmd.Context())
			if err != nil {
				return err
			}
			ctx, end := e.Context(cmd.Context(), "rates")
			defer end()

			if len(ratesAt) > 0 {
				at, err := time.Parse(rateDateLayout, ratesAt)
				if err != nil {
					return errors.Errorf("invalid --at date: %q (use YYYY-MM-DD)", ratesAt)
				}
				err = e.Converter.RefreshAt(ctx, at)
				if err != nil {
					return err
				}
			} else if err := e.Converter.Refresh(ctx); err != nil {
				e.Log.WithError(err).Warn("using fallback exchange rates")
			}

			var rates []currency.Rate
			if len(args) > 0 {
				rate, err := e.Converter.GetRate(args[0])
				if err != nil {
					return err
				}
				rates = append(rates, rate)
			} else {
				rates = e.Converter.Rates()
			}

			views := make([]*rateView, len(rates))
			for i, rate := range rates {
				views[i] = newRateView(rate, sol)
			}
			return render(stdout(), views, func(w io.Writer) { printRates(w, views) })
		},
	}
	ratesCmd.Flags().StringVar(&ratesSol, "sol", "", "SOL amount to convert")
	ratesCmd.Flags().StringVar(&ratesAt, "at", "", "Historical date (YYYY-MM-DD)")
	rootCmd.AddCommand(ratesCmd)
}
