// Package cmd holds the fundme command tree. Every command assembles the
// same services as the HTTP server from the environment, so with the
// sqlite or postgres driver the CLI and a running server share state.
package cmd

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"

	"github.com/fundme-labs/fundme/internal/app"
	"github.com/fundme-labs/fundme/internal/config"
	"github.com/fundme-labs/fundme/internal/logging"
)

// Env opens the application for a command. The returned func releases it.
type Env struct {
	Open func(ctx context.Context, logOut io.Writer) (*app.App, func(), error)
}

// DefaultEnv builds the application from config.Load.
func DefaultEnv() *Env {
	return &Env{Open: func(ctx context.Context, logOut io.Writer) (*app.App, func(), error) {
		cfg, err := config.Load()
		if err != nil {
			return nil, nil, fmt.Errorf("load config: %w", err)
		}
		a, err := app.Build(ctx, cfg, logging.NewWithWriter(logOut, cfg.LogLevel))
		if err != nil {
			return nil, nil, err
		}
		return a, a.Close, nil
	}}
}

type rootOptions struct {
	env    *Env
	caller string
	secret string
}

// NewRootCmd returns the fundme command tree.
func NewRootCmd(env *Env) *cobra.Command {
	opts := &rootOptions{env: env}

	root := &cobra.Command{
		Use:   "fundme",
		Short: "Crowdfunding ledger with a USD minimum priced by an oracle feed",
		Long: `fundme runs the FundMe HTTP API and operates contracts from the shell.

Amounts accept unit suffixes: 0.03ether, 3gwei, 1500wei or plain wei.

Example:
  fundme deploy --feed eth-usd --caller 0xabc... --secret s3cret
  fundme fund <contract-id> --value 0.03ether`,
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	root.PersistentFlags().StringVar(&opts.caller, "caller", os.Getenv("FUNDME_CALLER"), "caller address (env FUNDME_CALLER)")
	root.PersistentFlags().StringVar(&opts.secret, "secret", os.Getenv("FUNDME_SECRET"), "caller secret (env FUNDME_SECRET)")

	root.AddCommand(
		newServeCmd(opts),
		newRegisterCmd(opts),
		newFaucetCmd(opts),
		newBalanceCmd(opts),
		newFeedCmd(opts),
		newDeployCmd(opts),
		newShowCmd(opts),
		newFundCmd(opts),
		newWithdrawCmd(opts),
	)
	return root
}

// open runs fn against a freshly opened application.
func (o *rootOptions) open(cmd *cobra.Command, fn func(ctx context.Context, a *app.App) error) error {
	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}
	a, release, err := o.env.Open(ctx, cmd.ErrOrStderr())
	if err != nil {
		return err
	}
	defer release()
	return fn(ctx, a)
}

// authenticate verifies --caller/--secret and returns the canonical address.
func (o *rootOptions) authenticate(ctx context.Context, a *app.App) (string, error) {
	if o.caller == "" || o.secret == "" {
		return "", errors.New("--caller and --secret are required")
	}
	id, err := a.Identities.Authenticate(ctx, o.caller, o.secret)
	if err != nil {
		return "", err
	}
	return id.Address, nil
}
