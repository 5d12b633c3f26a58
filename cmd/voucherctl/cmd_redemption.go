package main

import (
	"context"
	"io"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/gideon-vouchers/voucher-server/pkg/voucher/redemption"
)

type statusView struct {
	Status string `json:"status"`
}

func printStatus(status redemption.Status) error {
	view := &statusView{Status: status.String()}
	return render(stdout(), view, func(w io.Writer) {
		printf(w, "Redemption %s\n", view.Status)
	})
}

func init() {
	rootCmd.AddCommand(&cobra.Command{
		Use:   "present <mint>",
		Short: "Show a redemption payload for a held voucher and hand it over when scanned",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if _, err := parseKey("mint", args[0]); err != nil {
				return err
			}

			e, err := loadEnv(cmd.Context())
			if err != nil {
				return err
			}
			ctx, end := e.Context(cmd.Context(), "present")
			defer end()

			signer, err := loadSigner(e)
			if err != nil {
				return err
			}

			handoff := &redemption.Handoff{
				PeerId: redemption.NewPeerId(),
				Wallet: publicKeyString(signer),
				Mint:   args[0],
			}

			dial, err := e.RelayDialer()
			if err != nil {
				return err
			}
			transport, err := dial(ctx, handoff.PeerId)
			if err != nil {
				return err
			}
			defer transport.Close()

			printf(os.Stderr, "Waiting for the issuer to scan:\n")
			printf(stdout(), "%s\n", redemption.EncodeHandoff(handoff))

			status, err := redemption.Respond(ctx, transport, handoff, func(ctx context.Context, wallet, mint string) error {
				recipient, err := parseKey("issuer", wallet)
				if err != nil {
					return err
				}
				mintKey, err := parseKey("mint", mint)
				if err != nil {
					return err
				}
				_, err = e.Lifecycle.TransferVoucher(ctx, signer, recipient, mintKey)
				return err
			})
			if err != nil {
				return err
			}
			return printStatus(status)
		},
	})

	rootCmd.AddCommand(&cobra.Command{
		Use:   "verify <payload>",
		Short: "Accept a presented voucher and confirm it reached your wallet",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			e, err := loadEnv(cmd.Context())
			if err != nil {
				return err
			}
			ctx, end := e.Context(cmd.Context(), "verify")
			defer end()

			signer, err := loadSigner(e)
			if err != nil {
				return err
			}
			dial, err := e.RelayDialer()
			if err != nil {
				return err
			}

			status, err := redemption.NewSession(dial, e.Poller).Verify(ctx, args[0], publicKeyString(signer))
			if err != nil {
				return err
			}
			return printStatus(status)
		},
	})

	rootCmd.AddCommand(&cobra.Command{
		Use:   "wait-receipt <owner> <mint>",
		Short: "Poll until the owner holds the voucher or the budget runs out",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			e, err := loadEnv(cmd.Context())
			if err != nil {
				return err
			}
			ctx, end := e.Context(cmd.Context(), "wait-receipt")
			defer end()

			status, err := e.Poller.WaitForReceipt(ctx, args[0], args[1])
			if err != nil {
				return err
			}
			return printStatus(status)
		},
	})

	var relayListen string
	relayCmd := &cobra.Command{
		Use:   "relay",
		Short: "Run the websocket relay that pairs redemption peers",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runRelay(cmd.Context(), relayListen)
		},
	}
	relayCmd.Flags().StringVar(&relayListen, "listen", ":9000", "Listen address")
	rootCmd.AddCommand(relayCmd)
}

func runRelay(ctx context.Context, listen string) error {
	log := logrus.StandardLogger().WithFields(logrus.Fields{
		"type":   "voucherctl/relay",
		"listen": listen,
	})

	ctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()

	server := &http.Server{
		Addr:              listen,
		Handler:           redemption.NewRelay(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		errCh <- server.ListenAndServe()
	}()
	log.Info("relay started")

	select {
	case err := <-errCh:
		if err != nil && err != http.ErrServerClosed {
			return errors.Wrap(err, "relay stopped")
		}
		return nil
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	log.Info("shutting down relay")
	return server.Shutdown(shutdownCtx)
}
