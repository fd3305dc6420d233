package cmd

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/fundme-labs/fundme/internal/app"
	"github.com/fundme-labs/fundme/internal/funding"
	"github.com/fundme-labs/fundme/internal/fundme"
)

func newDeployCmd(o *rootOptions) *cobra.Command {
	var feed string
	cmd := &cobra.Command{
		Use:   "deploy",
		Short: "Deploy a contract owned by --caller",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return o.open(cmd, func(ctx context.Context, a *app.App) error {
				caller, err := o.authenticate(ctx, a)
				if err != nil {
					return err
				}
				fm, err := a.Funding.Deploy(ctx, funding.DeployInput{Owner: caller, PriceFeed: feed})
				if err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "deployed %s\n", fm.ID())
				return nil
			})
		},
	}
	cmd.Flags().StringVar(&feed, "feed", "eth-usd", "price feed reference")
	return cmd
}

func newShowCmd(o *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "show <contract-id>",
		Short: "Print owner, feed, balance and funders of a contract",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return o.open(cmd, func(ctx context.Context, a *app.App) error {
				sum, err := a.Funding.Summarize(ctx, args[0])
				if err != nil {
					return err
				}
				out := cmd.OutOrStdout()
				fmt.Fprintf(out, "contract: %s\n", sum.ID)
				fmt.Fprintf(out, "owner:    %s\n", sum.Owner)
				fmt.Fprintf(out, "feed:     %s\n", sum.PriceFeed)
				fmt.Fprintf(out, "minimum:  %s USD\n", fundme.FormatUSD(sum.MinimumUSD))
				fmt.Fprintf(out, "balance:  %s ether\n", fundme.FormatEther(sum.Balance))
				fmt.Fprintf(out, "funders:  %d\n", sum.FunderCount)
				for i := 0; i < sum.FunderCount; i++ {
					funder, err := a.Funding.Funder(ctx, sum.ID, i)
					if err != nil {
						return err
					}
					fmt.Fprintf(out, "  [%d] %s\n", i, funder)
				}
				return nil
			})
		},
	}
}

func newFundCmd(o *rootOptions) *cobra.Command {
	var value string
	cmd := &cobra.Command{
		Use:   "fund <contract-id>",
		Short: "Contribute from the --caller wallet",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			amount, err := fundme.ParseValue(value)
			if err != nil {
				return err
			}
			return o.open(cmd, func(ctx context.Context, a *app.App) error {
				caller, err := o.authenticate(ctx, a)
				if err != nil {
					return err
				}
				receipt, err := a.Funding.Fund(ctx, args[0], caller, amount)
				if err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "funded %s ether (%s USD), total from %s: %s ether\n",
					fundme.FormatEther(receipt.Amount), fundme.FormatUSD(receipt.USDValue),
					receipt.Funder, fundme.FormatEther(receipt.TotalFunded))
				return nil
			})
		},
	}
	cmd.Flags().StringVar(&value, "value", "", "contribution, e.g. 0.03ether (required)")
	_ = cmd.MarkFlagRequired("value")
	return cmd
}

func newWithdrawCmd(o *rootOptions) *cobra.Command {
	var cheaper bool
	cmd := &cobra.Command{
		Use:   "withdraw <contract-id>",
		Short: "Drain a contract to its owner and reset contributions",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return o.open(cmd, func(ctx context.Context, a *app.App) error {
				caller, err := o.authenticate(ctx, a)
				if err != nil {
					return err
				}
				res, err := a.Funding.Withdraw(ctx, args[0], caller, cheaper)
				if err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "withdrew %s ether to %s, cleared %d funders\n",
					fundme.FormatEther(res.Amount), res.Owner, res.FundersCleared)
				return nil
			})
		},
	}
	cmd.Flags().BoolVar(&cheaper, "cheaper", false, "snapshot the funder list once instead of re-reading it")
	return cmd
}
