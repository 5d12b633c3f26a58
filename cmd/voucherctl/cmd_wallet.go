package main

import (
	"io"

	"github.com/mr-tron/base58/base58"
	"github.com/pkg/errors"
	"github.com/spf13/cobra"

	"github.com/gideon-vouchers/voucher-server/pkg/app"
	"github.com/gideon-vouchers/voucher-server/pkg/currency"
	"github.com/gideon-vouchers/voucher-server/pkg/solana"
	"github.com/gideon-vouchers/voucher-server/pkg/voucher"
)

type walletView struct {
	Address  string `json:"address"`
	Balance  string `json:"balance"`
	Lamports uint64 `json:"lamports"`
	Fiat     string `json:"fiat,omitempty"`

	Signature string `json:"signature,omitempty"`
	Status    string `json:"status,omitempty"`
}

func newWalletView(address string, lamports uint64, converter *currency.Converter, country string) *walletView {
	view := &walletView{
		Address:  address,
		Balance:  voucher.FormatSol(lamports),
		Lamports: lamports,
	}
	if converter != nil {
		if fiat, err := converter.Format(country, voucher.LamportsToSol(lamports)); err == nil {
			view.Fiat = fiat
		}
	}
	return view
}

func printWallet(w io.Writer, v *walletView) {
	printf(w, "Address:  %s\n", v.Address)
	printf(w, "Balance:  %s SOL\n", v.Balance)
	if len(v.Fiat) > 0 {
		printf(w, "Value:    %s\n", v.Fiat)
	}
	if len(v.Signature) > 0 {
		printf(w, "Airdrop:  %s (%s)\n", v.Signature, dash(v.Status))
	}
}

// walletAddress returns the address argument, or the signer's wallet when
// none is given.
func walletAddress(e *app.Env, args []string) (string, error) {
	if len(args) > 0 {
		if _, err := parseKey("wallet", args[0]); err != nil {
			return "", err
		}
		return args[0], nil
	}

	signer, err := loadSigner(e)
	if err != nil {
		return "", err
	}
	return publicKeyString(signer), nil
}

func getBalance(e *app.Env, address string) (uint64, error) {
	key, err := solana.ParsePublicKey(address)
	if err != nil {
		return 0, err
	}

	lamports, err := e.Solana.GetBalance(key)
	if err == solana.ErrNoBalance {
		return 0, nil
	}
	return lamports, err
}

func init() {
	balanceCmd := &cobra.Command{
		Use:   "balance [wallet]",
		Short: "Show a wallet's SOL balance and its local currency value",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			e, err := loadEnv(cmd.Context())
			if err != nil {
				return err
			}
			ctx, end := e.Context(cmd.Context(), "balance")
			defer end()

			address, err := walletAddress(e, args)
			if err != nil {
				return err
			}

			lamports, err := getBalance(e, address)
			if err != nil {
				return errors.Wrap(err, "error getting balance")
			}

			if err := e.Converter.Refresh(ctx); err != nil {
				e.Log.WithError(err).Warn("using fallback exchange rates")
			}

			view := newWalletView(address, lamports, e.Converter, e.Config.Country)
			return render(stdout(), view, func(w io.Writer) { printWallet(w, view) })
		},
	}
	rootCmd.AddCommand(balanceCmd)

	var airdropSol string
	airdropCmd := &cobra.Command{
		Use:   "airdrop [wallet]",
		Short: "Request test SOL from a devnet or localnet faucet",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			lamports, err := voucher.SolToLamports(airdropSol)
			if err != nil || lamports == 0 {
				return errors.Errorf("invalid --sol amount: %q", airdropSol)
			}

			e, err := loadEnv(cmd.Context())
			if err != nil {
				return err
			}
			_, end := e.Context(cmd.Context(), "airdrop")
			defer end()

			address, err := walletAddress(e, args)
			if err != nil {
				return err
			}
			key, err := solana.ParsePublicKey(address)
			if err != nil {
				return err
			}

			sig, err := e.Solana.RequestAirdrop(key, lamports, solana.CommitmentConfirmed)
			if err != nil {
				return errors.Wrap(err, "airdrop failed")
			}

			view := newWalletView(address, 0, nil, "")
			view.Signature = base58.Encode(sig[:])

			status, err := e.Solana.GetSignatureStatus(sig, solana.CommitmentConfirmed)
			switch {
			case err != nil:
				e.Log.WithError(err).Warn("airdrop not confirmed yet")
				view.Status = "pending"
			case status.ErrorResult != nil:
				return errors.Wrap(status.ErrorResult, "airdrop failed")
			default:
				view.Status = "confirmed"
			}

			if view.Lamports, err = getBalance(e, address); err != nil {
				return errors.Wrap(err, "error getting balance")
			}
			view.Balance = voucher.FormatSol(view.Lamports)

			return render(stdout(), view, func(w io.Writer) { printWallet(w, view) })
		},
	}
	airdropCmd.Flags().StringVar(&airdropSol, "sol", "1", "SOL amount to request")
	rootCmd.AddCommand(airdropCmd)
}
