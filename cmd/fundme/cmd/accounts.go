package cmd

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/fundme-labs/fundme/internal/app"
	"github.com/fundme-labs/fundme/internal/fundme"
	"github.com/fundme-labs/fundme/internal/identity"
)

func newRegisterCmd(o *rootOptions) *cobra.Command {
	var label, secret string
	cmd := &cobra.Command{
		Use:   "register",
		Short: "Create an identity with an empty wallet",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return o.open(cmd, func(ctx context.Context, a *app.App) error {
				id, issued, err := a.Identities.Register(ctx, identity.Registration{Label: label, Secret: secret})
				if err != nil {
					return err
				}
				out := cmd.OutOrStdout()
				fmt.Fprintf(out, "address: %s\n", id.Address)
				fmt.Fprintf(out, "secret:  %s\n", issued)
				return nil
			})
		},
	}
	cmd.Flags().StringVar(&label, "label", "", "human readable label")
	cmd.Flags().StringVar(&secret, "new-secret", "", "secret to set (generated when empty)")
	return cmd
}

func newFaucetCmd(o *rootOptions) *cobra.Command {
	var value string
	cmd := &cobra.Command{
		Use:   "faucet <address>",
		Short: "Mint development funds into a wallet",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			amount, err := fundme.ParseValue(value)
			if err != nil {
				return err
			}
			return o.open(cmd, func(ctx context.Context, a *app.App) error {
				bal, err := a.Wallets.Faucet(ctx, args[0], amount)
				if err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "%s balance %s ether\n", bal.Address, fundme.FormatEther(bal.Amount))
				return nil
			})
		},
	}
	cmd.Flags().StringVar(&value, "value", "10ether", "amount to mint")
	return cmd
}

func newBalanceCmd(o *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "balance <address>",
		Short: "Print a wallet balance",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return o.open(cmd, func(ctx context.Context, a *app.App) error {
				bal, err := a.Wallets.Balance(ctx, args[0])
				if err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "%s balance %s ether\n", bal.Address, fundme.FormatEther(bal.Amount))
				return nil
			})
		},
	}
}
