package fundme

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/shopspring/decimal"

	"github.com/fundme-labs/fundme/internal/ledger"
	"github.com/fundme-labs/fundme/internal/pricefeed"
)

const (
	owner = "0x00000000000000000000000000000000000000aa"
	alice = "0x00000000000000000000000000000000000000a1"
)

var (
	sendValue   = MustParseValue("0.03ether")
	startingBal = MustParseValue("10ether")
)

type fixture struct {
	store ledger.Store
	feeds *pricefeed.Registry
	fm    *Ledger
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	ctx := context.Background()
	store := ledger.NewInMemory()
	feeds := pricefeed.NewRegistry()
	if _, err := feeds.Create(ctx, "eth-usd", pricefeed.DefaultDecimals, decimal.NewFromInt(pricefeed.DefaultAnswer)); err != nil {
		t.Fatalf("create feed: %v", err)
	}
	fm, err := Deploy(ctx, store, feeds, owner, "eth-usd")
	if err != nil {
		t.Fatalf("deploy: %v", err)
	}
	return &fixture{store: store, feeds: feeds, fm: fm}
}

func (f *fixture) wallet(t *testing.T, addr string) {
	t.Helper()
	if _, err := f.store.Faucet(context.Background(), ledger.WalletAccountCode(addr), startingBal); err != nil {
		t.Fatalf("faucet %s: %v", addr, err)
	}
}

func (f *fixture) walletBalance(t *testing.T, addr string) decimal.Decimal {
	t.Helper()
	bal, err := f.store.Balance(context.Background(), ledger.WalletAccountCode(addr))
	if err != nil {
		t.Fatalf("balance %s: %v", addr, err)
	}
	return bal
}

func TestDeploy_Accessors(t *testing.T) {
	f := newFixture(t)
	if f.fm.Owner() != owner {
		t.Fatalf("expected owner %s, got %s", owner, f.fm.Owner())
	}
	if f.fm.PriceFeed() != "eth-usd" {
		t.Fatalf("expected price feed eth-usd, got %s", f.fm.PriceFeed())
	}
	if !f.fm.MinimumUSD().Equal(decimal.New(50, 18)) {
		t.Fatalf("expected minimum 50e18, got %s", f.fm.MinimumUSD())
	}

	reloaded, err := Load(context.Background(), f.store, f.feeds, f.fm.ID())
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if reloaded.Owner() != owner || reloaded.PriceFeed() != "eth-usd" {
		t.Fatalf("reloaded contract differs: %s %s", reloaded.Owner(), reloaded.PriceFeed())
	}
}

func TestDeploy_Options(t *testing.T) {
	ctx := context.Background()
	store := ledger.NewInMemory()
	feeds := pricefeed.NewRegistry()
	if _, err := feeds.Create(ctx, "eth-usd", pricefeed.DefaultDecimals, decimal.NewFromInt(pricefeed.DefaultAnswer)); err != nil {
		t.Fatalf("create feed: %v", err)
	}
	deployedAt := time.Date(2024, 3, 1, 12, 0, 0, 0, time.FixedZone("CET", 3600))
	clock := func() time.Time { return deployedAt }

	fm, err := Deploy(ctx, store, feeds, owner, "eth-usd",
		WithID("fundme-1"), WithClock(clock), WithMinimumUSD(decimal.NewFromInt(5)))
	if err != nil {
		t.Fatalf("deploy: %v", err)
	}
	if fm.ID() != "fundme-1" {
		t.Fatalf("expected fixed id, got %s", fm.ID())
	}
	if !fm.CreatedAt().Equal(deployedAt) || fm.CreatedAt().Location() != time.UTC {
		t.Fatalf("expected creation time %s in UTC, got %s", deployedAt, fm.CreatedAt())
	}
	if !fm.MinimumUSD().Equal(decimal.New(5, 18)) {
		t.Fatalf("expected minimum 5e18, got %s", fm.MinimumUSD())
	}

	reloaded, err := Load(ctx, store, feeds, "fundme-1")
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if !reloaded.CreatedAt().Equal(deployedAt) || !reloaded.MinimumUSD().Equal(fm.MinimumUSD()) {
		t.Fatalf("reloaded contract differs: %s %s", reloaded.CreatedAt(), reloaded.MinimumUSD())
	}

	if _, err := Deploy(ctx, store, feeds, owner, "eth-usd", WithID("fundme-1")); !errors.Is(err, ledger.ErrContractExists) {
		t.Fatalf("expected contract exists, got %v", err)
	}
}

func TestDeploy_UnknownFeed(t *testing.T) {
	_, err := Deploy(context.Background(), ledger.NewInMemory(), pricefeed.NewRegistry(), owner, "missing")
	if !errors.Is(err, pricefeed.ErrFeedNotFound) {
		t.Fatalf("expected feed not found, got %v", err)
	}
}

func TestFund_RejectsBelowMinimum(t *testing.T) {
	f := newFixture(t)
	f.wallet(t, alice)
	ctx := context.Background()

	_, err := f.fm.Fund(ctx, alice, MustParseValue("0.003ether"))
	if !errors.Is(err, ErrInsufficientContribution) {
		t.Fatalf("expected insufficient contribution, got %v", err)
	}
	if !f.walletBalance(t, alice).Equal(startingBal) {
		t.Fatalf("rejected contribution must not move funds")
	}
	if n, _ := f.fm.FunderCount(ctx); n != 0 {
		t.Fatalf("expected no funders, got %d", n)
	}
	if amount, _ := f.fm.AmountFunded(ctx, alice); !amount.IsZero() {
		t.Fatalf("rejected contribution must not be recorded, got %s", amount)
	}
	if bal, _ := f.fm.Balance(ctx); !bal.IsZero() {
		t.Fatalf("rejected contribution must not reach the contract, got %s", bal)
	}
}

func TestFund_MinimumBoundaryAtWholeDollarRate(t *testing.T) {
	ctx := context.Background()
	oneWei := decimal.NewFromInt(1)

	cases := []struct {
		name   string
		value  decimal.Decimal
		wantOK bool
	}{
		{"exactly 50 USD", MustParseValue("0.025ether"), true},
		{"one wei below 50 USD", MustParseValue("0.025ether").Sub(oneWei), false},
		{"6 USD", MustParseValue("0.003ether"), false},
		{"60 USD", MustParseValue("0.03ether"), true},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			store := ledger.NewInMemory()
			feeds := pricefeed.NewRegistry()
			// 2000 USD per ether with no fractional digits
			if _, err := feeds.Create(ctx, "eth-usd", 0, decimal.NewFromInt(2000)); err != nil {
				t.Fatalf("create feed: %v", err)
			}
			fm, err := Deploy(ctx, store, feeds, owner, "eth-usd")
			if err != nil {
				t.Fatalf("deploy: %v", err)
			}
			if _, err := store.Faucet(ctx, ledger.WalletAccountCode(alice), startingBal); err != nil {
				t.Fatalf("faucet: %v", err)
			}

			_, err = fm.Fund(ctx, alice, tc.value)
			amount, _ := fm.AmountFunded(ctx, alice)
			bal, _ := fm.Balance(ctx)
			n, _ := fm.FunderCount(ctx)
			if tc.wantOK {
				if err != nil {
					t.Fatalf("expected %s to be accepted, got %v", tc.value, err)
				}
				if !amount.Equal(tc.value) || !bal.Equal(tc.value) || n != 1 {
					t.Fatalf("expected amount and balance %s with one funder, got %s %s %d", tc.value, amount, bal, n)
				}
				return
			}
			if !errors.Is(err, ErrInsufficientContribution) {
				t.Fatalf("expected %s to be rejected, got %v", tc.value, err)
			}
			if !amount.IsZero() || !bal.IsZero() || n != 0 {
				t.Fatalf("rejected contribution changed state: %s %s %d", amount, bal, n)
			}
		})
	}
}

func TestReadsAreRepeatable(t *testing.T) {
	f := newFixture(t)
	f.wallet(t, alice)
	ctx := context.Background()
	if _, err := f.fm.Fund(ctx, alice, sendValue); err != nil {
		t.Fatalf("fund: %v", err)
	}

	firstAmount, err := f.fm.AmountFunded(ctx, alice)
	if err != nil {
		t.Fatalf("amount funded: %v", err)
	}
	firstFunder, err := f.fm.Funder(ctx, 0)
	if err != nil {
		t.Fatalf("funder 0: %v", err)
	}
	firstCount, _ := f.fm.FunderCount(ctx)
	firstBalance, _ := f.fm.Balance(ctx)
	postings := ledger.PostingCount(f.store)

	for i := 0; i < 3; i++ {
		amount, _ := f.fm.AmountFunded(ctx, alice)
		funder, _ := f.fm.Funder(ctx, 0)
		count, _ := f.fm.FunderCount(ctx)
		balance, _ := f.fm.Balance(ctx)
		if !amount.Equal(firstAmount) || funder != firstFunder || count != firstCount || !balance.Equal(firstBalance) {
			t.Fatalf("read %d differs: %s %s %d %s", i, amount, funder, count, balance)
		}
		if _, err := f.fm.Funder(ctx, 1); !errors.Is(err, ErrIndexOutOfRange) {
			t.Fatalf("expected index out of range, got %v", err)
		}
	}
	if ledger.PostingCount(f.store) != postings {
		t.Fatalf("reads must not post")
	}
}

func TestFund_ZeroValueRejected(t *testing.T) {
	f := newFixture(t)
	_, err := f.fm.Fund(context.Background(), alice, decimal.Zero)
	if !errors.Is(err, ErrInsufficientContribution) {
		t.Fatalf("expected insufficient contribution, got %v", err)
	}
}

func TestFund_InvalidAmount(t *testing.T) {
	f := newFixture(t)
	if _, err := f.fm.Fund(context.Background(), alice, decimal.NewFromInt(-1)); !errors.Is(err, ErrInvalidAmount) {
		t.Fatalf("expected invalid amount, got %v", err)
	}
	if _, err := f.fm.Fund(context.Background(), "", sendValue); !errors.Is(err, ErrInvalidCaller) {
		t.Fatalf("expected invalid caller, got %v", err)
	}
}

func TestFund_UpdatesDataStructures(t *testing.T) {
	f := newFixture(t)
	f.wallet(t, alice)
	ctx := context.Background()

	receipt, err := f.fm.Fund(ctx, alice, sendValue)
	if err != nil {
		t.Fatalf("fund: %v", err)
	}
	if !receipt.USDValue.Equal(decimal.New(60, 18)) {
		t.Fatalf("expected 60 USD, got %s", FormatUSD(receipt.USDValue))
	}

	amount, err := f.fm.AmountFunded(ctx, alice)
	if err != nil {
		t.Fatalf("amount funded: %v", err)
	}
	if !amount.Equal(sendValue) {
		t.Fatalf("expected %s, got %s", sendValue, amount)
	}

	funder, err := f.fm.Funder(ctx, 0)
	if err != nil {
		t.Fatalf("funder 0: %v", err)
	}
	if funder != alice {
		t.Fatalf("expected funder %s, got %s", alice, funder)
	}

	bal, _ := f.fm.Balance(ctx)
	if !bal.Equal(sendValue) {
		t.Fatalf("expected contract balance %s, got %s", sendValue, bal)
	}
	if !f.walletBalance(t, alice).Equal(startingBal.Sub(sendValue)) {
		t.Fatalf("wallet not debited")
	}
}

func TestFund_DuplicateFundersAndAccumulation(t *testing.T) {
	f := newFixture(t)
	f.wallet(t, alice)
	ctx := context.Background()

	for i := 0; i < 2; i++ {
		if _, err := f.fm.Fund(ctx, alice, sendValue); err != nil {
			t.Fatalf("fund %d: %v", i, err)
		}
	}
	n, _ := f.fm.FunderCount(ctx)
	if n != 2 {
		t.Fatalf("expected two entries for repeat funder, got %d", n)
	}
	amount, _ := f.fm.AmountFunded(ctx, alice)
	if !amount.Equal(sendValue.Mul(decimal.NewFromInt(2))) {
		t.Fatalf("expected accumulated amount, got %s", amount)
	}
	if _, err := f.fm.Funder(ctx, 2); !errors.Is(err, ErrIndexOutOfRange) {
		t.Fatalf("expected index out of range, got %v", err)
	}
	if _, err := f.fm.Funder(ctx, -1); !errors.Is(err, ErrIndexOutOfRange) {
		t.Fatalf("expected index out of range for negative index, got %v", err)
	}
}

func TestFund_InsufficientWallet(t *testing.T) {
	f := newFixture(t)
	_, err := f.fm.Fund(context.Background(), alice, sendValue)
	if !errors.Is(err, ledger.ErrInsufficientFunds) {
		t.Fatalf("expected insufficient funds, got %v", err)
	}
	if n, _ := f.fm.FunderCount(context.Background()); n != 0 {
		t.Fatalf("failed contribution must not record a funder")
	}
}

func TestFund_ReadsPriceOnEveryCall(t *testing.T) {
	f := newFixture(t)
	f.wallet(t, alice)
	ctx := context.Background()

	if _, err := f.fm.Fund(ctx, alice, sendValue); err != nil {
		t.Fatalf("fund at 2000: %v", err)
	}
	// at 1000 USD/ether 0.03 ether is worth 30 USD
	if _, err := f.feeds.UpdateAnswer(ctx, "eth-usd", decimal.NewFromInt(100000000000)); err != nil {
		t.Fatalf("update answer: %v", err)
	}
	if _, err := f.fm.Fund(ctx, alice, sendValue); !errors.Is(err, ErrInsufficientContribution) {
		t.Fatalf("expected rejection after price drop, got %v", err)
	}
	q, err := f.fm.Quote(ctx, sendValue)
	if err != nil {
		t.Fatalf("quote: %v", err)
	}
	if q.Accepted || !q.USDValue.Equal(decimal.New(30, 18)) {
		t.Fatalf("unexpected quote: %+v", q)
	}
}

type failingResolver struct{}

func (failingResolver) Resolve(context.Context, string) (pricefeed.Oracle, error) {
	return nil, errors.New("oracle offline")
}

func TestFund_PriceFeedUnavailable(t *testing.T) {
	f := newFixture(t)
	f.wallet(t, alice)
	fm, err := Load(context.Background(), f.store, failingResolver{}, f.fm.ID())
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if _, err := fm.Fund(context.Background(), alice, sendValue); !errors.Is(err, ErrPriceFeedUnavailable) {
		t.Fatalf("expected price feed unavailable, got %v", err)
	}
}

func TestWithdraw_OnlyOwner(t *testing.T) {
	f := newFixture(t)
	f.wallet(t, alice)
	ctx := context.Background()
	if _, err := f.fm.Fund(ctx, alice, sendValue); err != nil {
		t.Fatalf("fund: %v", err)
	}

	if _, err := f.fm.Withdraw(ctx, alice); !errors.Is(err, ErrNotOwner) {
		t.Fatalf("expected not owner, got %v", err)
	}
	if _, err := f.fm.CheaperWithdraw(ctx, alice); !errors.Is(err, ErrNotOwner) {
		t.Fatalf("expected not owner on cheaper withdraw, got %v", err)
	}
	bal, _ := f.fm.Balance(ctx)
	if !bal.Equal(sendValue) {
		t.Fatalf("balance must be untouched after rejected withdrawal, got %s", bal)
	}

	res, err := f.fm.Withdraw(ctx, owner)
	if err != nil {
		t.Fatalf("owner withdraw: %v", err)
	}
	if !res.Amount.Equal(sendValue) {
		t.Fatalf("expected owner to recover %s, got %s", sendValue, res.Amount)
	}
}

func TestWithdraw_SingleFunder(t *testing.T) {
	for name, withdraw := range map[string]func(*Ledger) func(context.Context, string) (Withdrawal, error){
		"withdraw":        func(l *Ledger) func(context.Context, string) (Withdrawal, error) { return l.Withdraw },
		"cheaperWithdraw": func(l *Ledger) func(context.Context, string) (Withdrawal, error) { return l.CheaperWithdraw },
	} {
		t.Run(name, func(t *testing.T) {
			f := newFixture(t)
			f.wallet(t, alice)
			ctx := context.Background()
			if _, err := f.fm.Fund(ctx, alice, sendValue); err != nil {
				t.Fatalf("fund: %v", err)
			}
			ownerBefore := f.walletBalance(t, owner)

			res, err := withdraw(f.fm)(ctx, owner)
			if err != nil {
				t.Fatalf("withdraw: %v", err)
			}
			if res.FundersCleared != 1 {
				t.Fatalf("expected 1 funder cleared, got %d", res.FundersCleared)
			}

			bal, _ := f.fm.Balance(ctx)
			if !bal.IsZero() {
				t.Fatalf("expected empty contract, got %s", bal)
			}
			if !f.walletBalance(t, owner).Equal(ownerBefore.Add(sendValue)) {
				t.Fatalf("owner did not receive the balance")
			}
			if _, err := f.fm.Funder(ctx, 0); !errors.Is(err, ErrIndexOutOfRange) {
				t.Fatalf("expected funders cleared, got %v", err)
			}
			amount, _ := f.fm.AmountFunded(ctx, alice)
			if !amount.IsZero() {
				t.Fatalf("expected amount reset, got %s", amount)
			}
		})
	}
}

func TestWithdraw_MultipleFunders(t *testing.T) {
	for _, cheaper := range []bool{false, true} {
		t.Run(fmt.Sprintf("cheaper=%v", cheaper), func(t *testing.T) {
			f := newFixture(t)
			ctx := context.Background()

			funders := make([]string, 0, 5)
			for i := 1; i <= 5; i++ {
				addr := fmt.Sprintf("0x%040x", i)
				funders = append(funders, addr)
				f.wallet(t, addr)
				if _, err := f.fm.Fund(ctx, addr, sendValue); err != nil {
					t.Fatalf("fund %s: %v", addr, err)
				}
			}

			startContract, _ := f.fm.Balance(ctx)
			startOwner := f.walletBalance(t, owner)

			var err error
			if cheaper {
				_, err = f.fm.CheaperWithdraw(ctx, owner)
			} else {
				_, err = f.fm.Withdraw(ctx, owner)
			}
			if err != nil {
				t.Fatalf("withdraw: %v", err)
			}

			endContract, _ := f.fm.Balance(ctx)
			if !endContract.IsZero() {
				t.Fatalf("expected contract empty, got %s", endContract)
			}
			want := startOwner.Add(startContract)
			if !f.walletBalance(t, owner).Equal(want) {
				t.Fatalf("expected owner balance %s, got %s", want, f.walletBalance(t, owner))
			}
			if !startContract.Equal(MustParseValue("0.15ether")) {
				t.Fatalf("expected 0.15 ether collected, got %s", FormatEther(startContract))
			}
			for _, addr := range funders {
				amount, _ := f.fm.AmountFunded(ctx, addr)
				if !amount.IsZero() {
					t.Fatalf("expected %s reset, got %s", addr, amount)
				}
			}
			if n, _ := f.fm.FunderCount(ctx); n != 0 {
				t.Fatalf("expected empty funders, got %d", n)
			}
		})
	}
}

func TestWithdraw_EmptyContract(t *testing.T) {
	f := newFixture(t)
	res, err := f.fm.Withdraw(context.Background(), owner)
	if err != nil {
		t.Fatalf("withdraw: %v", err)
	}
	if !res.Amount.IsZero() || res.FundersCleared != 0 {
		t.Fatalf("unexpected withdrawal: %+v", res)
	}
	if ledger.PostingCount(f.store) != 0 {
		t.Fatalf("empty withdrawal must not post a transfer")
	}
}

func TestWithdraw_TransferFailureRollsBack(t *testing.T) {
	f := newFixture(t)
	f.wallet(t, alice)
	ctx := context.Background()
	if _, err := f.fm.Fund(ctx, alice, sendValue); err != nil {
		t.Fatalf("fund: %v", err)
	}
	if err := f.store.SetAcceptsDeposits(ctx, ledger.WalletAccountCode(owner), false); err != nil {
		t.Fatalf("reject deposits: %v", err)
	}

	for _, withdraw := range []func(context.Context, string) (Withdrawal, error){f.fm.Withdraw, f.fm.CheaperWithdraw} {
		_, err := withdraw(ctx, owner)
		if !errors.Is(err, ErrTransferFailed) {
			t.Fatalf("expected transfer failed, got %v", err)
		}
		if !errors.Is(err, ledger.ErrTransferRejected) {
			t.Fatalf("expected cause to be preserved, got %v", err)
		}
	}

	bal, _ := f.fm.Balance(ctx)
	if !bal.Equal(sendValue) {
		t.Fatalf("balance must be restored, got %s", bal)
	}
	if n, _ := f.fm.FunderCount(ctx); n != 1 {
		t.Fatalf("funders must be restored, got %d", n)
	}
	amount, _ := f.fm.AmountFunded(ctx, alice)
	if !amount.Equal(sendValue) {
		t.Fatalf("amount must be restored, got %s", amount)
	}

	if err := f.store.SetAcceptsDeposits(ctx, ledger.WalletAccountCode(owner), true); err != nil {
		t.Fatalf("accept deposits: %v", err)
	}
	if _, err := f.fm.Withdraw(ctx, owner); err != nil {
		t.Fatalf("withdraw after recovery: %v", err)
	}
}

func TestFund_ConcurrentContributions(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	const workers = 8
	var wg sync.WaitGroup
	for i := 0; i < workers; i++ {
		addr := fmt.Sprintf("0x%040x", i+100)
		f.wallet(t, addr)
		wg.Add(1)
		go func(addr string) {
			defer wg.Done()
			if _, err := f.fm.Fund(ctx, addr, sendValue); err != nil {
				t.Errorf("fund %s: %v", addr, err)
			}
		}(addr)
	}
	wg.Wait()

	n, _ := f.fm.FunderCount(ctx)
	if n != workers {
		t.Fatalf("expected %d funders, got %d", workers, n)
	}
	bal, _ := f.fm.Balance(ctx)
	if !bal.Equal(sendValue.Mul(decimal.NewFromInt(workers))) {
		t.Fatalf("unexpected contract balance %s", bal)
	}
}

// gatedResolver parks Latest on one feed until release is closed.
type gatedResolver struct {
	pricefeed.Resolver
	ref     string
	entered chan struct{}
	release chan struct{}
}

func (r *gatedResolver) Resolve(ctx context.Context, ref string) (pricefeed.Oracle, error) {
	oracle, err := r.Resolver.Resolve(ctx, ref)
	if err != nil || ref != r.ref {
		return oracle, err
	}
	return gatedOracle{Oracle: oracle, r: r}, nil
}

type gatedOracle struct {
	pricefeed.Oracle
	r *gatedResolver
}

func (o gatedOracle) Latest(ctx context.Context) (pricefeed.Price, error) {
	o.r.entered <- struct{}{}
	<-o.r.release
	return o.Oracle.Latest(ctx)
}

func TestFund_SlowFeedDoesNotBlockOtherContracts(t *testing.T) {
	ctx := context.Background()
	store := ledger.NewInMemory()
	registry := pricefeed.NewRegistry()
	for _, ref := range []string{"slow-usd", "eth-usd"} {
		if _, err := registry.Create(ctx, ref, pricefeed.DefaultDecimals, decimal.NewFromInt(pricefeed.DefaultAnswer)); err != nil {
			t.Fatalf("create feed %s: %v", ref, err)
		}
	}
	feeds := &gatedResolver{Resolver: registry, ref: "slow-usd", entered: make(chan struct{}, 1), release: make(chan struct{})}

	slow, err := Deploy(ctx, store, feeds, owner, "slow-usd")
	if err != nil {
		t.Fatalf("deploy slow: %v", err)
	}
	fast, err := Deploy(ctx, store, feeds, owner, "eth-usd")
	if err != nil {
		t.Fatalf("deploy fast: %v", err)
	}
	const bob = "0x00000000000000000000000000000000000000b0"
	for _, addr := range []string{alice, bob} {
		if _, err := store.Faucet(ctx, ledger.WalletAccountCode(addr), startingBal); err != nil {
			t.Fatalf("faucet %s: %v", addr, err)
		}
	}

	slowDone := make(chan error, 1)
	go func() {
		_, err := slow.Fund(ctx, alice, sendValue)
		slowDone <- err
	}()
	<-feeds.entered

	fastDone := make(chan error, 1)
	go func() {
		_, err := fast.Fund(ctx, bob, sendValue)
		fastDone <- err
	}()
	select {
	case err := <-fastDone:
		if err != nil {
			t.Fatalf("fund fast contract: %v", err)
		}
	case <-time.After(2 * time.Second):
		close(feeds.release)
		t.Fatalf("contribution to an unrelated contract waited on a slow feed")
	}

	close(feeds.release)
	if err := <-slowDone; err != nil {
		t.Fatalf("fund slow contract: %v", err)
	}
	if n, _ := slow.FunderCount(ctx); n != 1 {
		t.Fatalf("expected slow contract to record its funder, got %d", n)
	}
}
