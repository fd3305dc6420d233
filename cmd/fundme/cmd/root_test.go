package cmd

import (
	"bytes"
	"context"
	"io"
	"strings"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fundme-labs/fundme/internal/app"
	"github.com/fundme-labs/fundme/internal/config"
	"github.com/fundme-labs/fundme/internal/fundme"
	"github.com/fundme-labs/fundme/internal/identity"
	"github.com/fundme-labs/fundme/internal/logging"
)

func sharedEnv(t *testing.T) (*Env, *app.App) {
	t.Helper()
	cfg := config.Config{
		AppName:       "FundMe",
		AppEnv:        "development",
		StoreDriver:   config.DriverMemory,
		FaucetEnabled: true,
		MinimumUSD:    decimal.NewFromInt(50),
		DefaultFeed:   config.FeedSpec{Ref: "eth-usd", Decimals: 8, Answer: "200000000000"},
	}
	a, err := app.Build(context.Background(), cfg, logging.Discard())
	require.NoError(t, err)
	t.Cleanup(a.Close)

	env := &Env{Open: func(context.Context, io.Writer) (*app.App, func(), error) {
		return a, func() {}, nil
	}}
	return env, a
}

func execute(t *testing.T, env *Env, args ...string) (string, error) {
	t.Helper()
	root := NewRootCmd(env)
	var out bytes.Buffer
	root.SetOut(&out)
	root.SetErr(io.Discard)
	root.SetArgs(args)
	err := root.ExecuteContext(context.Background())
	return out.String(), err
}

func register(t *testing.T, a *app.App, label string) (string, string) {
	t.Helper()
	id, secret, err := a.Identities.Register(context.Background(), identity.Registration{Label: label})
	require.NoError(t, err)
	return id.Address, secret
}

func TestCLI_FundAndWithdraw(t *testing.T) {
	env, a := sharedEnv(t)
	owner, ownerSecret := register(t, a, "owner")
	funder, funderSecret := register(t, a, "funder")

	_, err := execute(t, env, "faucet", funder, "--value", "1ether")
	require.NoError(t, err)

	out, err := execute(t, env, "deploy", "--caller", owner, "--secret", ownerSecret)
	require.NoError(t, err)
	require.True(t, strings.HasPrefix(out, "deployed "), out)
	id := strings.TrimSpace(strings.TrimPrefix(out, "deployed "))

	_, err = execute(t, env, "fund", id, "--value", "0.003ether", "--caller", funder, "--secret", funderSecret)
	require.ErrorIs(t, err, fundme.ErrInsufficientContribution)

	out, err = execute(t, env, "fund", id, "--value", "0.03ether", "--caller", funder, "--secret", funderSecret)
	require.NoError(t, err)
	assert.Contains(t, out, "funded 0.03 ether (60.00 USD)")

	out, err = execute(t, env, "show", id)
	require.NoError(t, err)
	assert.Contains(t, out, "funders:  1")
	assert.Contains(t, out, "[0] "+funder)

	_, err = execute(t, env, "withdraw", id, "--caller", funder, "--secret", funderSecret)
	require.ErrorIs(t, err, fundme.ErrNotOwner)

	out, err = execute(t, env, "withdraw", id, "--cheaper", "--caller", owner, "--secret", ownerSecret)
	require.NoError(t, err)
	assert.Contains(t, out, "withdrew 0.03 ether to "+owner+", cleared 1 funders")

	out, err = execute(t, env, "balance", owner)
	require.NoError(t, err)
	assert.Contains(t, out, "balance 0.03 ether")
}

func TestCLI_RequiresCredentials(t *testing.T) {
	env, a := sharedEnv(t)
	owner, _ := register(t, a, "owner")

	_, err := execute(t, env, "deploy", "--caller", owner)
	require.Error(t, err)

	_, err = execute(t, env, "deploy", "--caller", owner, "--secret", "wrong-secret")
	require.ErrorIs(t, err, identity.ErrInvalidCredentials)
}

func TestCLI_FeedSet(t *testing.T) {
	env, _ := sharedEnv(t)

	out, err := execute(t, env, "feed", "set", "btc-usd", "--answer", "6000000000000")
	require.NoError(t, err)
	assert.Contains(t, out, "btc-usd round 1")

	out, err = execute(t, env, "feed", "set", "btc-usd", "--answer", "6100000000000")
	require.NoError(t, err)
	assert.Contains(t, out, "btc-usd round 2")
	assert.Contains(t, out, "(61000 USD)")

	_, err = execute(t, env, "feed", "set", "btc-usd")
	require.Error(t, err)
}

func TestCLI_RegisterPrintsCredentials(t *testing.T) {
	env, a := sharedEnv(t)

	out, err := execute(t, env, "register", "--label", "alice", "--new-secret", "correct-horse")
	require.NoError(t, err)
	lines := strings.Split(strings.TrimSpace(out), "\n")
	require.Len(t, lines, 2)
	address := strings.TrimSpace(strings.TrimPrefix(lines[0], "address:"))

	_, err = a.Identities.Authenticate(context.Background(), address, "correct-horse")
	assert.NoError(t, err)
}
