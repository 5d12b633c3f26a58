package main

import (
	"context"
	"crypto/ed25519"
	"encoding/json"
	"fmt"
	"io"
	"os"

	"github.com/pkg/errors"
	"github.com/spf13/cobra"

	"github.com/gideon-vouchers/voucher-server/pkg/app"
	"github.com/gideon-vouchers/voucher-server/pkg/solana"
)

const (
	outputText = "text"
	outputJSON = "json"
)

var rootCmd = &cobra.Command{
	Use:           "voucherctl",
	Short:         "Issue, browse and redeem escrow-backed vouchers",
	SilenceUsage:  true,
	SilenceErrors: false,
	PersistentPostRun: func(cmd *cobra.Command, args []string) {
		if env != nil {
			env.Close()
		}
	},
}

var (
	flagConfig  string
	flagEnvFile string
	flagKeypair string
	flagOutput  string

	env *app.Env
)

func init() {
	rootCmd.PersistentFlags().StringVar(&flagConfig, "config", "config.yaml", "Configuration file path")
	rootCmd.PersistentFlags().StringVar(&flagEnvFile, "env-file", ".env", "Environment file loaded before the config")
	rootCmd.PersistentFlags().StringVar(&flagKeypair, "keypair", "", "Signing keypair file (overrides config)")
	rootCmd.PersistentFlags().StringVarP(&flagOutput, "output", "o", outputText, "Output format: text|json")
}

// loadEnv builds the application environment once per invocation.
func loadEnv(ctx context.Context) (*app.Env, error) {
	if env != nil {
		return env, nil
	}

	if flagOutput != outputText && flagOutput != outputJSON {
		return nil, errors.Errorf("invalid --output: %s (use text|json)", flagOutput)
	}

	config, err := app.LoadConfig(flagConfig, flagEnvFile)
	if err != nil {
		return nil, err
	}

	env, err = app.NewEnv(ctx, config)
	if err != nil {
		return nil, err
	}
	return env, nil
}

// loadSigner reads the keypair named by --keypair, falling back to config.
func loadSigner(e *app.Env) (ed25519.PrivateKey, error) {
	path := flagKeypair
	if len(path) == 0 {
		path = e.Config.Keypair
	}
	if len(path) == 0 {
		return nil, errors.New("no keypair configured, use --keypair or the KEYPAIR variable")
	}
	return app.LoadKeypair(path)
}

func parseKey(name, value string) (ed25519.PublicKey, error) {
	decoded, err := solana.ParsePublicKey(value)
	if err != nil {
		return nil, errors.Errorf("invalid %s address: %q", name, value)
	}
	return decoded, nil
}

// render prints v as indented JSON, or calls text for the text output.
func render(w io.Writer, v interface{}, text func(w io.Writer)) error {
	if flagOutput == outputJSON {
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(v)
	}
	text(w)
	return nil
}

func stdout() io.Writer {
	return os.Stdout
}

func printf(w io.Writer, format string, args ...interface{}) {
	_, _ = fmt.Fprintf(w, format, args...)
}
