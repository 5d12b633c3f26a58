package main

import (
	"context"
	"io"

	"github.com/pkg/errors"
	"github.com/spf13/cobra"

	"github.com/gideon-vouchers/voucher-server/pkg/app"
	"github.com/gideon-vouchers/voucher-server/pkg/currency"
	"github.com/gideon-vouchers/voucher-server/pkg/database/query"
	"github.com/gideon-vouchers/voucher-server/pkg/voucher/activity"
	"github.com/gideon-vouchers/voucher-server/pkg/voucher/history"
)

func init() {
	var listFiat bool
	listCmd := &cobra.Command{
		Use:   "list <wallet>",
		Short: "List the vouchers held by a wallet",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			e, err := loadEnv(cmd.Context())
			if err != nil {
				return err
			}
			ctx, end := e.Context(cmd.Context(), "list")
			defer end()

			vouchers, err := e.Discovery.ListVouchers(ctx, args[0])
			if err != nil {
				return err
			}

			converter := fiatConverter(ctx, e, listFiat)
			views := make([]*voucherView, len(vouchers))
			for i, v := range vouchers {
				views[i] = newVoucherView(v, converter, e.Config.Country)
			}

			return render(stdout(), views, func(w io.Writer) { printVouchers(w, views) })
		},
	}
	listCmd.Flags().BoolVar(&listFiat, "fiat", false, "Show escrow values in the configured country's currency")
	rootCmd.AddCommand(listCmd)

	var showFiat bool
	showCmd := &cobra.Command{
		Use:   "show <mint>",
		Short: "Show a single voucher",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			e, err := loadEnv(cmd.Context())
			if err != nil {
				return err
			}
			ctx, end := e.Context(cmd.Context(), "show")
			defer end()

			v, err := e.Discovery.GetVoucher(ctx, args[0])
			if err != nil {
				return err
			}

			view := newVoucherView(v, fiatConverter(ctx, e, showFiat), e.Config.Country)
			return render(stdout(), view, func(w io.Writer) { printVoucher(w, view) })
		},
	}
	showCmd.Flags().BoolVar(&showFiat, "fiat", false, "Show the escrow value in the configured country's currency")
	rootCmd.AddCommand(showCmd)

	var historyPage int
	var historyTransfers bool
	historyCmd := &cobra.Command{
		Use:   "history <address>",
		Short: "Show recent voucher transactions for a wallet, mint or program",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			e, err := loadEnv(cmd.Context())
			if err != nil {
				return err
			}
			ctx, end := e.Context(cmd.Context(), "history")
			defer end()

			var entries []*history.Entry
			if historyTransfers {
				entries, err = e.History.GetTransfers(ctx, args[0])
				if err != nil {
					return err
				}
			} else {
				h, err := e.History.GetHistory(ctx, args[0])
				if err != nil {
					return err
				}
				if historyPage > h.PageCount() && h.PageCount() > 0 {
					return errors.Errorf("page %d out of range, %d available", historyPage, h.PageCount())
				}
				entries = h.Page(historyPage)
			}

			views := make([]*entryView, len(entries))
			for i, entry := range entries {
				views[i] = newEntryView(entry)
			}
			return render(stdout(), views, func(w io.Writer) { printEntries(w, views) })
		},
	}
	historyCmd.Flags().IntVar(&historyPage, "page", 1, "Page to show, starting at 1")
	historyCmd.Flags().BoolVar(&historyTransfers, "transfers", false, "Only show token transfers of a mint")
	rootCmd.AddCommand(historyCmd)

	var (
		activityLimit  uint64
		activityMint   string
		activityOrder  string
		activityCursor string
	)
	activityCmd := &cobra.Command{
		Use:   "activity [wallet]",
		Short: "Show transactions submitted by this tool",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			direction, err := query.ToOrdering(activityOrder)
			if err != nil {
				return errors.Errorf("invalid --order: %s (use asc|desc)", activityOrder)
			}
			cursor, err := query.FromBase58(activityCursor)
			if err != nil {
				return err
			}

			e, err := loadEnv(cmd.Context())
			if err != nil {
				return err
			}
			ctx := cmd.Context()

			var records []*activity.Record
			switch {
			case len(activityMint) > 0:
				records, err = e.Activity.GetAllByMint(ctx, activityMint)
			default:
				var wallet string
				if len(args) > 0 {
					wallet = args[0]
				} else {
					signer, err := loadSigner(e)
					if err != nil {
						return err
					}
					wallet = publicKeyString(signer)
				}
				records, err = e.Activity.GetAllByWallet(ctx, wallet, cursor, activityLimit, direction)
			}
			if err != nil && err != activity.ErrNotFound {
				return err
			}

			views := make([]*activityView, len(records))
			for i, r := range records {
				views[i] = newActivityView(r)
			}
			return render(stdout(), views, func(w io.Writer) { printActivity(w, views) })
		},
	}
	activityCmd.Flags().Uint64Var(&activityLimit, "limit", 20, "Maximum number of records")
	activityCmd.Flags().StringVar(&activityMint, "mint", "", "Show every record for a mint instead")
	activityCmd.Flags().StringVar(&activityOrder, "order", "desc", "Order by submission: asc|desc")
	activityCmd.Flags().StringVar(&activityCursor, "cursor", "", "Continue after the record with this cursor")
	rootCmd.AddCommand(activityCmd)
}

// fiatConverter refreshes rates when fiat values were asked for. Stale or
// fallback rates are used if the refresh fails.
func fiatConverter(ctx context.Context, e *app.Env, enabled bool) *currency.Converter {
	if !enabled {
		return nil
	}
	if err := e.Converter.Refresh(ctx); err != nil {
		e.Log.WithError(err).Debug("using fallback exchange rates")
	}
	return e.Converter
}
