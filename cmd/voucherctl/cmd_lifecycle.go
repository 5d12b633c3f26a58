package main

import (
	"context"
	"crypto/ed25519"
	"crypto/rand"
	"io"
	"strconv"
	"time"

	"github.com/mr-tron/base58/base58"
	"github.com/pkg/errors"
	"github.com/spf13/cobra"

	"github.com/gideon-vouchers/voucher-server/pkg/app"
	"github.com/gideon-vouchers/voucher-server/pkg/voucher"
	"github.com/gideon-vouchers/voucher-server/pkg/voucher/lifecycle"
)

func init() {
	rootCmd.AddCommand(&cobra.Command{
		Use:   "init-authority",
		Short: "Initialize the program's mint authority, once per deployment",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runSigned(cmd.Context(), "init-authority", func(ctx context.Context, e *app.Env, signer ed25519.PrivateKey) (*lifecycle.Result, error) {
				result, err := e.Lifecycle.InitMintAuthority(ctx, signer)
				if err == nil && result == nil {
					printf(stdout(), "Mint authority already initialized\n")
				}
				return result, err
			})
		},
	})

	var (
		createRecipient   string
		createAmount      string
		createTitle       string
		createDescription string
		createSymbol      string
		createURI         string
		createExpiry      string
		createMintKeypair string
	)
	createCmd := &cobra.Command{
		Use:   "create",
		Short: "Escrow SOL and mint a voucher to yourself for a recipient",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			recipient, err := parseKey("recipient", createRecipient)
			if err != nil {
				return err
			}
			amount, err := voucher.SolToLamports(createAmount)
			if err != nil {
				return err
			}
			expiry, err := parseExpiry(createExpiry, time.Now())
			if err != nil {
				return err
			}

			mint, err := newMintKeypair(createMintKeypair)
			if err != nil {
				return err
			}

			return runSigned(cmd.Context(), "create", func(ctx context.Context, e *app.Env, signer ed25519.PrivateKey) (*lifecycle.Result, error) {
				return e.Lifecycle.CreateVoucher(ctx, signer, mint, lifecycle.CreateVoucherParams{
					Recipient:   recipient,
					Amount:      amount,
					Title:       createTitle,
					Description: createDescription,
					Symbol:      createSymbol,
					URI:         createURI,
					Expiry:      expiry,
				})
			})
		},
	}
	createCmd.Flags().StringVar(&createRecipient, "recipient", "", "Wallet allowed to redeem the escrow")
	createCmd.Flags().StringVar(&createAmount, "amount", "", "Escrow amount in SOL")
	createCmd.Flags().StringVar(&createTitle, "title", "", "Voucher name")
	createCmd.Flags().StringVar(&createDescription, "description", "", "Voucher description")
	createCmd.Flags().StringVar(&createSymbol, "symbol", "", "Voucher symbol")
	createCmd.Flags().StringVar(&createURI, "uri", "", "Metadata JSON url")
	createCmd.Flags().StringVar(&createExpiry, "expiry", "", "RFC3339 time or duration from now (e.g. 720h), empty for none")
	createCmd.Flags().StringVar(&createMintKeypair, "save-mint", "", "Write the generated mint keypair to this file")
	_ = createCmd.MarkFlagRequired("recipient")
	_ = createCmd.MarkFlagRequired("amount")
	_ = createCmd.MarkFlagRequired("title")
	_ = createCmd.MarkFlagRequired("symbol")
	_ = createCmd.MarkFlagRequired("uri")
	rootCmd.AddCommand(createCmd)

	rootCmd.AddCommand(&cobra.Command{
		Use:   "transfer <mint> <recipient>",
		Short: "Send a voucher to another wallet",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			mint, err := parseKey("mint", args[0])
			if err != nil {
				return err
			}
			recipient, err := parseKey("recipient", args[1])
			if err != nil {
				return err
			}

			return runSigned(cmd.Context(), "transfer", func(ctx context.Context, e *app.Env, signer ed25519.PrivateKey) (*lifecycle.Result, error) {
				return e.Lifecycle.TransferVoucher(ctx, signer, recipient, mint)
			})
		},
	})

	var redeemEscrow string
	redeemCmd := &cobra.Command{
		Use:   "redeem <mint>",
		Short: "Burn a held voucher and release its escrow to you",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			mint, err := parseKey("mint", args[0])
			if err != nil {
				return err
			}

			return runSigned(cmd.Context(), "redeem", func(ctx context.Context, e *app.Env, signer ed25519.PrivateKey) (*lifecycle.Result, error) {
				escrow, err := resolveEscrow(ctx, e, args[0], redeemEscrow)
				if err != nil {
					return nil, err
				}
				return e.Lifecycle.RedeemVoucher(ctx, signer, mint, escrow)
			})
		},
	}
	redeemCmd.Flags().StringVar(&redeemEscrow, "escrow", "", "Escrow address, read from the mint metadata when omitted")
	rootCmd.AddCommand(redeemCmd)

	var reclaimEscrow string
	reclaimCmd := &cobra.Command{
		Use:   "reclaim <mint>",
		Short: "Return the escrow of an expired voucher to its issuer",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			mint, err := parseKey("mint", args[0])
			if err != nil {
				return err
			}

			return runSigned(cmd.Context(), "reclaim", func(ctx context.Context, e *app.Env, signer ed25519.PrivateKey) (*lifecycle.Result, error) {
				escrow, err := resolveEscrow(ctx, e, args[0], reclaimEscrow)
				if err != nil {
					return nil, err
				}
				return e.Lifecycle.ReclaimVoucher(ctx, signer, mint, escrow, time.Now())
			})
		},
	}
	reclaimCmd.Flags().StringVar(&reclaimEscrow, "escrow", "", "Escrow address, read from the mint metadata when omitted")
	rootCmd.AddCommand(reclaimCmd)
}

type signedAction func(ctx context.Context, e *app.Env, signer ed25519.PrivateKey) (*lifecycle.Result, error)

func runSigned(ctx context.Context, operation string, action signedAction) error {
	e, err := loadEnv(ctx)
	if err != nil {
		return err
	}
	ctx, end := e.Context(ctx, operation)
	defer end()

	signer, err := loadSigner(e)
	if err != nil {
		return err
	}

	result, err := action(ctx, e, signer)
	if err != nil {
		return err
	}
	if result == nil {
		return nil
	}

	view := newResultView(result)
	return render(stdout(), view, func(w io.Writer) { printResult(w, view) })
}

// resolveEscrow returns the explicit escrow address, or the one recorded in
// the mint's metadata.
func resolveEscrow(ctx context.Context, e *app.Env, mint, explicit string) (ed25519.PublicKey, error) {
	if len(explicit) > 0 {
		return parseKey("escrow", explicit)
	}

	v, err := e.Discovery.GetVoucher(ctx, mint)
	if err != nil {
		return nil, err
	}
	if !v.IsDecoded() {
		return nil, errors.Errorf("escrow address of %s is unknown, pass --escrow", mint)
	}
	return parseKey("escrow", v.EscrowAddress)
}

// parseExpiry accepts an RFC3339 time, a duration from now or a unix
// timestamp in milliseconds. Empty means no expiry.
func parseExpiry(value string, now time.Time) (int64, error) {
	if len(value) == 0 {
		return 0, nil
	}

	if t, err := time.Parse(time.RFC3339, value); err == nil {
		return t.UnixMilli(), nil
	}
	if d, err := time.ParseDuration(value); err == nil {
		if d <= 0 {
			return 0, errors.Errorf("expiry duration must be positive: %s", value)
		}
		return now.Add(d).UnixMilli(), nil
	}
	if ms, err := strconv.ParseInt(value, 10, 64); err == nil && ms > 0 {
		return ms, nil
	}

	return 0, errors.Errorf("invalid expiry: %q", value)
}

func newMintKeypair(savePath string) (ed25519.PrivateKey, error) {
	_, mint, err := ed25519.GenerateKey(rand.Reader)
	if err != nil {
		return nil, err
	}

	if len(savePath) > 0 {
		if err := app.WriteKeypair(savePath, mint); err != nil {
			return nil, errors.Wrap(err, "failed to save mint keypair")
		}
	}
	return mint, nil
}

func publicKeyString(key ed25519.PrivateKey) string {
	return base58.Encode(key.Public().(ed25519.PublicKey))
}
