package funding

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/shopspring/decimal"

	"github.com/fundme-labs/fundme/internal/fundme"
	"github.com/fundme-labs/fundme/internal/ledger"
	"github.com/fundme-labs/fundme/internal/notification"
	"github.com/fundme-labs/fundme/internal/pricefeed"
)

// Service coordinates funding contracts, their price feeds and the events
// emitted for each state change.
type Service struct {
	store      ledger.Store
	feeds      pricefeed.Admin
	notifier   notification.Notifier
	logger     *slog.Logger
	minimumUSD decimal.Decimal
}

// NewService builds a funding service. minimumUSD is in whole dollars and
// applies to contracts deployed through this service.
func NewService(store ledger.Store, feeds pricefeed.Admin, notifier notification.Notifier, logger *slog.Logger, minimumUSD decimal.Decimal) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{store: store, feeds: feeds, notifier: notifier, logger: logger, minimumUSD: minimumUSD}
}

// DeployInput captures the data needed to deploy a contract.
type DeployInput struct {
	Owner     string
	PriceFeed string
}

// Deploy creates a contract owned by input.Owner.
func (s *Service) Deploy(ctx context.Context, input DeployInput) (*fundme.Ledger, error) {
	fm, err := fundme.Deploy(ctx, s.store, s.feeds, input.Owner, input.PriceFeed, fundme.WithMinimumUSD(s.minimumUSD))
	if err != nil {
		return nil, err
	}
	ev := notification.NewEvent(notification.KindContractDeployed, fm.ID(), fm.Owner(), "")
	ev.Attributes = map[string]string{"price_feed": fm.PriceFeed(), "minimum_usd": fundme.FormatUSD(fm.MinimumUSD())}
	s.publish(ctx, ev)
	return fm, nil
}

// Contract loads a deployed contract.
func (s *Service) Contract(ctx context.Context, id string) (*fundme.Ledger, error) {
	return fundme.Load(ctx, s.store, s.feeds, id)
}

// Fund records a contribution from caller.
func (s *Service) Fund(ctx context.Context, contractID, caller string, amount decimal.Decimal) (fundme.Receipt, error) {
	fm, err := s.Contract(ctx, contractID)
	if err != nil {
		return fundme.Receipt{}, err
	}
	receipt, err := fm.Fund(ctx, caller, amount)
	if err != nil {
		return fundme.Receipt{}, err
	}
	ev := notification.NewEvent(notification.KindContractFunded, contractID, caller, amount.String())
	ev.Attributes = map[string]string{
		"usd_value":    fundme.FormatUSD(receipt.USDValue),
		"total_funded": receipt.TotalFunded.String(),
	}
	s.publish(ctx, ev)
	return receipt, nil
}

// Withdraw drains the contract to its owner. cheaper selects the variant
// that snapshots the funders list once.
func (s *Service) Withdraw(ctx context.Context, contractID, caller string, cheaper bool) (fundme.Withdrawal, error) {
	fm, err := s.Contract(ctx, contractID)
	if err != nil {
		return fundme.Withdrawal{}, err
	}
	var res fundme.Withdrawal
	if cheaper {
		res, err = fm.CheaperWithdraw(ctx, caller)
	} else {
		res, err = fm.Withdraw(ctx, caller)
	}
	if err != nil {
		return fundme.Withdrawal{}, err
	}
	ev := notification.NewEvent(notification.KindContractWithdrawn, contractID, caller, res.Amount.String())
	ev.Attributes = map[string]string{"funders_cleared": fmt.Sprint(res.FundersCleared)}
	s.publish(ctx, ev)
	return res, nil
}

// Quote converts amount to USD at the contract's current feed price.
func (s *Service) Quote(ctx context.Context, contractID string, amount decimal.Decimal) (fundme.Quote, error) {
	fm, err := s.Contract(ctx, contractID)
	if err != nil {
		return fundme.Quote{}, err
	}
	return fm.Quote(ctx, amount)
}

// Funder returns the funder recorded at index.
func (s *Service) Funder(ctx context.Context, contractID string, index int) (string, error) {
	fm, err := s.Contract(ctx, contractID)
	if err != nil {
		return "", err
	}
	return fm.Funder(ctx, index)
}

// AmountFunded returns the cumulative contribution of funder.
func (s *Service) AmountFunded(ctx context.Context, contractID, funder string) (decimal.Decimal, error) {
	fm, err := s.Contract(ctx, contractID)
	if err != nil {
		return decimal.Zero, err
	}
	return fm.AmountFunded(ctx, funder)
}

// Summary is a point-in-time view of a contract.
type Summary struct {
	ID          string
	Owner       string
	PriceFeed   string
	MinimumUSD  decimal.Decimal
	Balance     decimal.Decimal
	FunderCount int
}

// Summarize reads the immutable bindings plus balance and funder count.
func (s *Service) Summarize(ctx context.Context, contractID string) (Summary, error) {
	fm, err := s.Contract(ctx, contractID)
	if err != nil {
		return Summary{}, err
	}
	balance, err := fm.Balance(ctx)
	if err != nil {
		return Summary{}, err
	}
	n, err := fm.FunderCount(ctx)
	if err != nil {
		return Summary{}, err
	}
	return Summary{
		ID:          fm.ID(),
		Owner:       fm.Owner(),
		PriceFeed:   fm.PriceFeed(),
		MinimumUSD:  fm.MinimumUSD(),
		Balance:     balance,
		FunderCount: n,
	}, nil
}

// CreateFeed registers a mock price feed.
func (s *Service) CreateFeed(ctx context.Context, ref string, decimals int32, answer decimal.Decimal) (pricefeed.Price, error) {
	return s.feeds.Create(ctx, ref, decimals, answer)
}

// Feed returns the latest reading of ref.
func (s *Service) Feed(ctx context.Context, ref string) (pricefeed.Price, error) {
	oracle, err := s.feeds.Resolve(ctx, ref)
	if err != nil {
		return pricefeed.Price{}, err
	}
	return oracle.Latest(ctx)
}

// UpdateFeedAnswer sets a new answer on a mock feed.
func (s *Service) UpdateFeedAnswer(ctx context.Context, ref string, answer decimal.Decimal) (pricefeed.Price, error) {
	return s.feeds.UpdateAnswer(ctx, ref, answer)
}

func (s *Service) publish(ctx context.Context, ev notification.Event) {
	if s.notifier == nil {
		return
	}
	if err := s.notifier.Send(ctx, ev); err != nil {
		s.logger.Warn("event publish failed",
			slog.String("event_id", ev.ID),
			slog.String("kind", ev.Kind),
			slog.String("contract_id", ev.ContractID),
			slog.String("error", err.Error()),
		)
	}
}
