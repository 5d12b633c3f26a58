package main

import (
	"io"
	"text/tabwriter"
	"time"

	"github.com/shopspring/decimal"

	"github.com/gideon-vouchers/voucher-server/pkg/currency"
	"github.com/gideon-vouchers/voucher-server/pkg/database/query"
	"github.com/gideon-vouchers/voucher-server/pkg/voucher"
	"github.com/gideon-vouchers/voucher-server/pkg/voucher/activity"
	"github.com/gideon-vouchers/voucher-server/pkg/voucher/history"
	"github.com/gideon-vouchers/voucher-server/pkg/voucher/lifecycle"
)

type voucherView struct {
	Mint           string `json:"mint"`
	Name           string `json:"name"`
	Symbol         string `json:"symbol"`
	Description    string `json:"description,omitempty"`
	URI            string `json:"uri,omitempty"`
	EscrowAddress  string `json:"escrow_address"`
	Escrow         string `json:"escrow"`
	EscrowLamports uint64 `json:"escrow_lamports"`
	Fiat           string `json:"fiat,omitempty"`
	Expiry         string `json:"expiry,omitempty"`
	Amount         uint64 `json:"amount"`
	State          string `json:"state"`
}

func newVoucherView(v *voucher.Voucher, converter *currency.Converter, country string) *voucherView {
	view := &voucherView{
		Mint:           v.MintAddress,
		Name:           v.Name,
		Symbol:         v.Symbol,
		Description:    v.Description,
		URI:            v.URI,
		EscrowAddress:  v.EscrowAddress,
		Escrow:         v.Escrow,
		EscrowLamports: v.EscrowLamports,
		Amount:         v.Amount,
		State:          v.State.String(),
	}

	if v.HasExpiry() {
		view.Expiry = v.ExpiryTime().UTC().Format(time.RFC3339)
	}

	if converter != nil && v.Escrow != voucher.NotFound {
		fiat, err := converter.Format(country, voucher.LamportsToSol(v.EscrowLamports))
		if err == nil {
			view.Fiat = fiat
		}
	}

	return view
}

func printVouchers(w io.Writer, views []*voucherView) {
	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	printf(tw, "MINT\tNAME\tSYMBOL\tESCROW\tFIAT\tEXPIRY\tAMOUNT\tSTATE\n")
	for _, v := range views {
		printf(tw, "%s\t%s\t%s\t%s\t%s\t%s\t%d\t%s\n", v.Mint, v.Name, v.Symbol, v.Escrow, dash(v.Fiat), dash(v.Expiry), v.Amount, v.State)
	}
	_ = tw.Flush()
}

func printVoucher(w io.Writer, v *voucherView) {
	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	printf(tw, "Mint:\t%s\n", v.Mint)
	printf(tw, "Name:\t%s\n", dash(v.Name))
	printf(tw, "Symbol:\t%s\n", dash(v.Symbol))
	printf(tw, "Description:\t%s\n", dash(v.Description))
	printf(tw, "Image:\t%s\n", dash(v.URI))
	printf(tw, "Escrow address:\t%s\n", v.EscrowAddress)
	printf(tw, "Escrow:\t%s\n", v.Escrow)
	if len(v.Fiat) > 0 {
		printf(tw, "Value:\t%s\n", v.Fiat)
	}
	printf(tw, "Expiry:\t%s\n", dash(v.Expiry))
	printf(tw, "State:\t%s\n", v.State)
	_ = tw.Flush()
}

type entryView struct {
	Signature string `json:"signature"`
	Slot      uint64 `json:"slot"`
	BlockTime string `json:"block_time,omitempty"`
	Kind      string `json:"kind"`
	Success   bool   `json:"success"`
	Performer string `json:"performer,omitempty"`
	Mint      string `json:"mint,omitempty"`
	Name      string `json:"name,omitempty"`
	Escrow    string `json:"escrow,omitempty"`
	Amount    uint64 `json:"amount,omitempty"`
	To        string `json:"to,omitempty"`
}

func newEntryView(e *history.Entry) *entryView {
	view := &entryView{
		Signature: e.Signature,
		Slot:      e.Slot,
		Kind:      e.Kind.String(),
		Success:   e.Success,
		Performer: e.Performer,
		Mint:      e.Mint,
	}
	if e.BlockTime != nil {
		view.BlockTime = e.BlockTime.UTC().Format(time.RFC3339)
	}
	if e.Metadata != nil {
		view.Name = e.Metadata.Name
	}
	if e.EscrowLamports > 0 {
		view.Escrow = e.Escrow()
	}
	if e.Transfer != nil {
		view.Amount = e.Transfer.Amount
		view.To = e.Transfer.Destination
	}
	return view
}

func printEntries(w io.Writer, views []*entryView) {
	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	printf(tw, "TIME\tKIND\tOK\tMINT\tNAME\tESCROW\tSIGNATURE\n")
	for _, v := range views {
		printf(tw, "%s\t%s\t%t\t%s\t%s\t%s\t%s\n", dash(v.BlockTime), v.Kind, v.Success, dash(v.Mint), dash(v.Name), dash(v.Escrow), v.Signature)
	}
	_ = tw.Flush()
}

type resultView struct {
	Signature  string `json:"signature"`
	ActivityId string `json:"activity_id"`
	Mint       string `json:"mint,omitempty"`
	Escrow     string `json:"escrow,omitempty"`
}

func newResultView(r *lifecycle.Result) *resultView {
	return &resultView{
		Signature:  r.Signature,
		ActivityId: r.ActivityId,
		Mint:       r.Mint,
		Escrow:     r.Escrow,
	}
}

func printResult(w io.Writer, v *resultView) {
	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	printf(tw, "Signature:\t%s\n", v.Signature)
	printf(tw, "Activity:\t%s\n", v.ActivityId)
	if len(v.Mint) > 0 {
		printf(tw, "Mint:\t%s\n", v.Mint)
	}
	if len(v.Escrow) > 0 {
		printf(tw, "Escrow:\t%s\n", v.Escrow)
	}
	_ = tw.Flush()
}

type activityView struct {
	ActivityId string `json:"activity_id"`
	Kind       string `json:"kind"`
	Mint       string `json:"mint,omitempty"`
	Signature  string `json:"signature"`
	State      string `json:"state"`
	Error      string `json:"error,omitempty"`
	CreatedAt  string `json:"created_at"`
	Cursor     string `json:"cursor"`
}

func newActivityView(r *activity.Record) *activityView {
	return &activityView{
		ActivityId: r.ActivityId,
		Kind:       r.Kind.String(),
		Mint:       r.Mint,
		Signature:  r.Signature,
		State:      r.State.String(),
		Error:      r.ErrorMessage,
		CreatedAt:  r.CreatedAt.UTC().Format(time.RFC3339),
		Cursor:     query.ToCursor(r.Id).ToBase58(),
	}
}

func printActivity(w io.Writer, views []*activityView) {
	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	printf(tw, "CREATED\tKIND\tSTATE\tMINT\tSIGNATURE\tERROR\tCURSOR\n")
	for _, v := range views {
		printf(tw, "%s\t%s\t%s\t%s\t%s\t%s\t%s\n", v.CreatedAt, v.Kind, v.State, dash(v.Mint), v.Signature, dash(v.Error), v.Cursor)
	}
	_ = tw.Flush()
}

type rateView struct {
	Country string `json:"country"`
	Code    string `json:"code"`
	Symbol  string `json:"symbol"`
	Price   string `json:"price"`
	Value   string `json:"value,omitempty"`
}

func newRateView(r currency.Rate, sol decimal.Decimal) *rateView {
	view := &rateView{
		Country: r.Country,
		Code:    r.Code,
		Symbol:  r.Symbol,
		Price:   r.Price.StringFixed(2),
	}
	if !sol.IsZero() {
		view.Value = r.Symbol + " " + sol.Mul(r.Price).StringFixed(2)
	}
	return view
}

func printRates(w io.Writer, views []*rateView) {
	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	printf(tw, "COUNTRY\tCODE\tPRICE\tVALUE\n")
	for _, v := range views {
		printf(tw, "%s\t%s\t%s %s\t%s\n", v.Country, v.Code, v.Symbol, v.Price, dash(v.Value))
	}
	_ = tw.Flush()
}

func dash(s string) string {
	if len(s) == 0 {
		return "-"
	}
	return s
}
