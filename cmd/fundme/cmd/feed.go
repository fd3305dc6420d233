package cmd

import (
	"context"
	"errors"
	"fmt"

	"github.com/shopspring/decimal"
	"github.com/spf13/cobra"

	"github.com/fundme-labs/fundme/internal/app"
	"github.com/fundme-labs/fundme/internal/pricefeed"
)

func newFeedCmd(o *rootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "feed",
		Short: "Inspect and drive mock price feeds",
	}
	cmd.AddCommand(newFeedSetCmd(o), newFeedGetCmd(o))
	return cmd
}

func newFeedSetCmd(o *rootOptions) *cobra.Command {
	var (
		answer   string
		decimals int32
	)
	cmd := &cobra.Command{
		Use:   "set <ref>",
		Short: "Set a feed answer, deploying the feed if it does not exist",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			value, err := decimal.NewFromString(answer)
			if err != nil {
				return fmt.Errorf("bad --answer: %w", err)
			}
			ref := args[0]
			return o.open(cmd, func(ctx context.Context, a *app.App) error {
				p, err := a.Funding.UpdateFeedAnswer(ctx, ref, value)
				if errors.Is(err, pricefeed.ErrFeedNotFound) {
					p, err = a.Funding.CreateFeed(ctx, ref, decimals, value)
				}
				if err != nil {
					return err
				}
				printPrice(cmd, ref, p)
				return nil
			})
		},
	}
	cmd.Flags().StringVar(&answer, "answer", "", "raw answer, e.g. 200000000000 for 2000 USD at 8 decimals (required)")
	cmd.Flags().Int32Var(&decimals, "decimals", pricefeed.DefaultDecimals, "decimals for a newly deployed feed")
	_ = cmd.MarkFlagRequired("answer")
	return cmd
}

func newFeedGetCmd(o *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "get <ref>",
		Short: "Print the latest round of a feed",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return o.open(cmd, func(ctx context.Context, a *app.App) error {
				p, err := a.Funding.Feed(ctx, args[0])
				if err != nil {
					return err
				}
				printPrice(cmd, args[0], p)
				return nil
			})
		},
	}
}

func printPrice(cmd *cobra.Command, ref string, p pricefeed.Price) {
	fmt.Fprintf(cmd.OutOrStdout(), "%s round %d answer %s (%s USD)\n", ref, p.Round, p.Rate, p.Value())
}
