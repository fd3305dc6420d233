package ledger

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/shopspring/decimal"
)

type memoryAccount struct {
	balance         decimal.Decimal
	acceptsDeposits bool
}

type memoryPosting struct {
	kind   string
	from   string
	to     string
	amount decimal.Decimal
}

type inMemoryStore struct {
	mu        sync.Mutex
	contracts map[string]Contract
	accounts  map[string]*memoryAccount
	funders   map[string][]string
	amounts   map[string]map[string]decimal.Decimal
	postings  []memoryPosting
}

// NewInMemory creates a concurrency-safe in-memory store useful for unit tests
// and development. A transaction holds the store lock until it finishes, so
// every operation is serialized.
func NewInMemory() Store {
	s := &inMemoryStore{
		contracts: make(map[string]Contract),
		accounts:  make(map[string]*memoryAccount),
		funders:   make(map[string][]string),
		amounts:   make(map[string]map[string]decimal.Decimal),
	}
	s.accounts[FaucetAccountCode] = &memoryAccount{acceptsDeposits: true}
	return s
}

func (s *inMemoryStore) CreateContract(_ context.Context, c Contract) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, exists := s.contracts[c.ID]; exists {
		return ErrContractExists
	}
	s.contracts[c.ID] = c
	s.amounts[c.ID] = make(map[string]decimal.Decimal)
	s.ensureAccountLocked(ContractAccountCode(c.ID))
	return nil
}

func (s *inMemoryStore) Contract(_ context.Context, id string) (Contract, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	c, ok := s.contracts[id]
	if !ok {
		return Contract{}, ErrContractNotFound
	}
	return c, nil
}

func (s *inMemoryStore) EnsureAccount(_ context.Context, code string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.ensureAccountLocked(code)
	return nil
}

func (s *inMemoryStore) ensureAccountLocked(code string) {
	if _, exists := s.accounts[code]; !exists {
		s.accounts[code] = &memoryAccount{acceptsDeposits: true}
	}
}

func (s *inMemoryStore) Balance(_ context.Context, code string) (decimal.Decimal, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	acct, ok := s.accounts[code]
	if !ok {
		return decimal.Zero, nil
	}
	return acct.balance, nil
}

func (s *inMemoryStore) SetAcceptsDeposits(_ context.Context, code string, accepts bool) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.ensureAccountLocked(code)
	s.accounts[code].acceptsDeposits = accepts
	return nil
}

func (s *inMemoryStore) Faucet(_ context.Context, code string, amount decimal.Decimal) (decimal.Decimal, error) {
	if !amount.IsPositive() {
		return decimal.Zero, ErrInvalidAmount
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.ensureAccountLocked(code)
	s.accounts[FaucetAccountCode].balance = s.accounts[FaucetAccountCode].balance.Sub(amount)
	s.accounts[code].balance = s.accounts[code].balance.Add(amount)
	s.postings = append(s.postings, memoryPosting{kind: KindFaucet, from: FaucetAccountCode, to: code, amount: amount})
	return s.accounts[code].balance, nil
}

func (s *inMemoryStore) Begin(_ context.Context, contractID string) (Tx, error) {
	s.mu.Lock()
	if _, ok := s.contracts[contractID]; !ok {
		s.mu.Unlock()
		return nil, ErrContractNotFound
	}
	return &inMemoryTx{
		store:      s,
		contractID: contractID,
		amounts:    make(map[string]decimal.Decimal),
		balances:   make(map[string]decimal.Decimal),
	}, nil
}

// inMemoryTx stages writes in copy-on-write overlays. The committed maps are
// only touched by Commit.
type inMemoryTx struct {
	store      *inMemoryStore
	contractID string
	done       bool

	amounts  map[string]decimal.Decimal
	funders  []string
	staged   bool
	balances map[string]decimal.Decimal
	postings []memoryPosting
}

var errTxDone = errors.New("transaction already finished")

func (tx *inMemoryTx) AmountFunded(_ context.Context, funder string) (decimal.Decimal, error) {
	if tx.done {
		return decimal.Zero, errTxDone
	}
	if v, ok := tx.amounts[funder]; ok {
		return v, nil
	}
	return tx.store.amounts[tx.contractID][funder], nil
}

func (tx *inMemoryTx) SetAmountFunded(_ context.Context, funder string, amount decimal.Decimal) error {
	if tx.done {
		return errTxDone
	}
	if amount.IsNegative() {
		return ErrInvalidAmount
	}
	tx.amounts[funder] = amount
	return nil
}

func (tx *inMemoryTx) currentFunders() []string {
	if tx.staged {
		return tx.funders
	}
	return tx.store.funders[tx.contractID]
}

func (tx *inMemoryTx) stageFunders() {
	if tx.staged {
		return
	}
	base := tx.store.funders[tx.contractID]
	tx.funders = make([]string, len(base), len(base)+1)
	copy(tx.funders, base)
	tx.staged = true
}

func (tx *inMemoryTx) FunderCount(_ context.Context) (int, error) {
	if tx.done {
		return 0, errTxDone
	}
	return len(tx.currentFunders()), nil
}

func (tx *inMemoryTx) FunderAt(_ context.Context, index int) (string, error) {
	if tx.done {
		return "", errTxDone
	}
	funders := tx.currentFunders()
	if index < 0 || index >= len(funders) {
		return "", fmt.Errorf("funder index %d out of range [0,%d)", index, len(funders))
	}
	return funders[index], nil
}

func (tx *inMemoryTx) Funders(_ context.Context) ([]string, error) {
	if tx.done {
		return nil, errTxDone
	}
	funders := tx.currentFunders()
	out := make([]string, len(funders))
	copy(out, funders)
	return out, nil
}

func (tx *inMemoryTx) AppendFunder(_ context.Context, funder string) error {
	if tx.done {
		return errTxDone
	}
	tx.stageFunders()
	tx.funders = append(tx.funders, funder)
	return nil
}

func (tx *inMemoryTx) ClearFunders(_ context.Context) error {
	if tx.done {
		return errTxDone
	}
	tx.funders = nil
	tx.staged = true
	return nil
}

func (tx *inMemoryTx) balance(code string) (decimal.Decimal, bool) {
	if v, ok := tx.balances[code]; ok {
		return v, true
	}
	acct, ok := tx.store.accounts[code]
	if !ok {
		return decimal.Zero, false
	}
	return acct.balance, true
}

func (tx *inMemoryTx) Balance(_ context.Context, code string) (decimal.Decimal, error) {
	if tx.done {
		return decimal.Zero, errTxDone
	}
	bal, _ := tx.balance(code)
	return bal, nil
}

func (tx *inMemoryTx) Transfer(_ context.Context, fromCode, toCode, kind string, amount decimal.Decimal) error {
	if tx.done {
		return errTxDone
	}
	if amount.IsNegative() {
		return ErrInvalidAmount
	}
	if amount.IsZero() {
		return nil
	}

	fromBalance, ok := tx.balance(fromCode)
	if !ok {
		return ErrInsufficientFunds
	}
	toBalance, ok := tx.balance(toCode)
	if !ok {
		return fmt.Errorf("account %s not found", toCode)
	}
	if !tx.store.accounts[toCode].acceptsDeposits {
		return ErrTransferRejected
	}
	if fromCode != FaucetAccountCode && fromBalance.LessThan(amount) {
		return ErrInsufficientFunds
	}

	tx.balances[fromCode] = fromBalance.Sub(amount)
	tx.balances[toCode] = toBalance.Add(amount)
	tx.postings = append(tx.postings, memoryPosting{kind: kind, from: fromCode, to: toCode, amount: amount})
	return nil
}

func (tx *inMemoryTx) Commit(_ context.Context) error {
	if tx.done {
		return errTxDone
	}
	s := tx.store
	for funder, amount := range tx.amounts {
		if amount.IsZero() {
			delete(s.amounts[tx.contractID], funder)
			continue
		}
		s.amounts[tx.contractID][funder] = amount
	}
	if tx.staged {
		s.funders[tx.contractID] = tx.funders
	}
	for code, bal := range tx.balances {
		s.accounts[code].balance = bal
	}
	s.postings = append(s.postings, tx.postings...)
	tx.finish()
	return nil
}

func (tx *inMemoryTx) Rollback(_ context.Context) error {
	if tx.done {
		return nil
	}
	tx.finish()
	return nil
}

func (tx *inMemoryTx) finish() {
	tx.done = true
	tx.store.mu.Unlock()
}
