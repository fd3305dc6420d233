package ledger

import (
	"context"
	"errors"
	"fmt"
	"sort"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"
)

// PostgresStore persists contracts and double-entry postings in PostgreSQL.
type PostgresStore struct {
	db *pgxpool.Pool
}

// NewPostgresStore constructs a Postgres-backed store.
func NewPostgresStore(db *pgxpool.Pool) *PostgresStore {
	return &PostgresStore{db: db}
}

// Migrate applies the schema. Statements are idempotent.
func (s *PostgresStore) Migrate(ctx context.Context) error {
	if _, err := s.db.Exec(ctx, PostgresSchema); err != nil {
		return fmt.Errorf("apply postgres schema: %w", err)
	}
	return nil
}

// CreateContract inserts the contract row and its balance account.
func (s *PostgresStore) CreateContract(ctx context.Context, c Contract) error {
	id, err := uuid.Parse(c.ID)
	if err != nil {
		return fmt.Errorf("contract id: %w", err)
	}

	tx, err := s.db.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return err
	}
	defer tx.Rollback(ctx) // nolint:errcheck

	tag, err := tx.Exec(ctx, `INSERT INTO contracts (id, owner, price_feed, minimum_usd, created_at)
        VALUES ($1, $2, $3, $4::numeric, $5) ON CONFLICT (id) DO NOTHING`,
		id, c.Owner, c.PriceFeed, c.MinimumUSD.String(), c.CreatedAt.UTC())
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrContractExists
	}

	if err := ensureAccount(ctx, tx, ContractAccountCode(c.ID)); err != nil {
		return err
	}
	return tx.Commit(ctx)
}

// Contract loads a contract by identifier.
func (s *PostgresStore) Contract(ctx context.Context, id string) (Contract, error) {
	contractID, err := uuid.Parse(id)
	if err != nil {
		return Contract{}, ErrContractNotFound
	}
	var (
		c       Contract
		idVal   uuid.UUID
		minimum string
	)
	err = s.db.QueryRow(ctx, `SELECT id, owner, price_feed, minimum_usd::text, created_at
        FROM contracts WHERE id = $1`, contractID).Scan(&idVal, &c.Owner, &c.PriceFeed, &minimum, &c.CreatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Contract{}, ErrContractNotFound
		}
		return Contract{}, err
	}
	c.ID = idVal.String()
	c.CreatedAt = c.CreatedAt.UTC()
	if c.MinimumUSD, err = decimal.NewFromString(minimum); err != nil {
		return Contract{}, fmt.Errorf("decode minimum_usd: %w", err)
	}
	return c, nil
}

// EnsureAccount guarantees an account exists for the provided code.
func (s *PostgresStore) EnsureAccount(ctx context.Context, code string) error {
	_, err := s.db.Exec(ctx, `INSERT INTO accounts (id, code) VALUES ($1, $2)
        ON CONFLICT (code) DO NOTHING`, uuid.New(), code)
	return err
}

// Balance returns the summed balance for the specified account code.
func (s *PostgresStore) Balance(ctx context.Context, code string) (decimal.Decimal, error) {
	const query = `
        SELECT COALESCE(SUM(e.amount), 0)::text
        FROM entries e
        INNER JOIN accounts a ON a.id = e.account_id
        WHERE a.code = $1`
	var raw string
	if err := s.db.QueryRow(ctx, query, code).Scan(&raw); err != nil {
		return decimal.Zero, err
	}
	return decimal.NewFromString(raw)
}

// SetAcceptsDeposits flags whether the account can be credited.
func (s *PostgresStore) SetAcceptsDeposits(ctx context.Context, code string, accepts bool) error {
	_, err := s.db.Exec(ctx, `INSERT INTO accounts (id, code, accepts_deposits) VALUES ($1, $2, $3)
        ON CONFLICT (code) DO UPDATE SET accepts_deposits = EXCLUDED.accepts_deposits`, uuid.New(), code, accepts)
	return err
}

// Faucet mints development funds from the faucet account.
func (s *PostgresStore) Faucet(ctx context.Context, code string, amount decimal.Decimal) (decimal.Decimal, error) {
	if !amount.IsPositive() {
		return decimal.Zero, ErrInvalidAmount
	}

	tx, err := s.db.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return decimal.Zero, err
	}
	defer tx.Rollback(ctx) // nolint:errcheck

	if err := ensureAccount(ctx, tx, FaucetAccountCode); err != nil {
		return decimal.Zero, err
	}
	if err := ensureAccount(ctx, tx, code); err != nil {
		return decimal.Zero, err
	}
	ptx := &postgresTx{tx: tx}
	if err := ptx.Transfer(ctx, FaucetAccountCode, code, KindFaucet, amount); err != nil {
		return decimal.Zero, err
	}
	if err := tx.Commit(ctx); err != nil {
		return decimal.Zero, err
	}
	return s.Balance(ctx, code)
}

// Begin opens a transaction and locks the contract row so that operations
// on the same contract run one at a time.
func (s *PostgresStore) Begin(ctx context.Context, contractID string) (Tx, error) {
	id, err := uuid.Parse(contractID)
	if err != nil {
		return nil, ErrContractNotFound
	}

	tx, err := s.db.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return nil, err
	}

	var locked uuid.UUID
	if err := tx.QueryRow(ctx, `SELECT id FROM contracts WHERE id = $1 FOR UPDATE`, id).Scan(&locked); err != nil {
		_ = tx.Rollback(ctx)
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrContractNotFound
		}
		return nil, err
	}
	return &postgresTx{tx: tx, contractID: id}, nil
}

type postgresTx struct {
	tx         pgx.Tx
	contractID uuid.UUID
}

func (t *postgresTx) AmountFunded(ctx context.Context, funder string) (decimal.Decimal, error) {
	var raw string
	err := t.tx.QueryRow(ctx, `SELECT amount::text FROM contract_amounts
        WHERE contract_id = $1 AND funder = $2`, t.contractID, funder).Scan(&raw)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return decimal.Zero, nil
		}
		return decimal.Zero, err
	}
	return decimal.NewFromString(raw)
}

func (t *postgresTx) SetAmountFunded(ctx context.Context, funder string, amount decimal.Decimal) error {
	if amount.IsNegative() {
		return ErrInvalidAmount
	}
	if amount.IsZero() {
		_, err := t.tx.Exec(ctx, `DELETE FROM contract_amounts WHERE contract_id = $1 AND funder = $2`, t.contractID, funder)
		return err
	}
	_, err := t.tx.Exec(ctx, `INSERT INTO contract_amounts (contract_id, funder, amount) VALUES ($1, $2, $3::numeric)
        ON CONFLICT (contract_id, funder) DO UPDATE SET amount = EXCLUDED.amount`, t.contractID, funder, amount.String())
	return err
}

func (t *postgresTx) FunderCount(ctx context.Context) (int, error) {
	var n int
	err := t.tx.QueryRow(ctx, `SELECT COUNT(*) FROM contract_funders WHERE contract_id = $1`, t.contractID).Scan(&n)
	return n, err
}

func (t *postgresTx) FunderAt(ctx context.Context, index int) (string, error) {
	var funder string
	err := t.tx.QueryRow(ctx, `SELECT funder FROM contract_funders
        WHERE contract_id = $1 AND position = $2`, t.contractID, index).Scan(&funder)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return "", fmt.Errorf("funder index %d out of range", index)
		}
		return "", err
	}
	return funder, nil
}

func (t *postgresTx) Funders(ctx context.Context) ([]string, error) {
	rows, err := t.tx.Query(ctx, `SELECT funder FROM contract_funders
        WHERE contract_id = $1 ORDER BY position`, t.contractID)
	if err != nil {
		return nil, err
	}
	return pgx.CollectRows(rows, pgx.RowTo[string])
}

func (t *postgresTx) AppendFunder(ctx context.Context, funder string) error {
	_, err := t.tx.Exec(ctx, `INSERT INTO contract_funders (contract_id, position, funder)
        SELECT $1, COALESCE(MAX(position) + 1, 0), $2 FROM contract_funders WHERE contract_id = $1`, t.contractID, funder)
	return err
}

func (t *postgresTx) ClearFunders(ctx context.Context) error {
	_, err := t.tx.Exec(ctx, `DELETE FROM contract_funders WHERE contract_id = $1`, t.contractID)
	return err
}

func (t *postgresTx) Balance(ctx context.Context, code string) (decimal.Decimal, error) {
	var raw string
	err := t.tx.QueryRow(ctx, `SELECT COALESCE(SUM(e.amount), 0)::text
        FROM entries e INNER JOIN accounts a ON a.id = e.account_id
        WHERE a.code = $1`, code).Scan(&raw)
	if err != nil {
		return decimal.Zero, err
	}
	return decimal.NewFromString(raw)
}

// Transfer records a balanced posting between two accounts. Account rows are
// locked in code order to avoid deadlocks between concurrent contracts.
func (t *postgresTx) Transfer(ctx context.Context, fromCode, toCode, kind string, amount decimal.Decimal) error {
	if amount.IsNegative() {
		return ErrInvalidAmount
	}
	if amount.IsZero() {
		return nil
	}

	codes := []string{fromCode, toCode}
	sort.Strings(codes)
	type lockedAccount struct {
		id      uuid.UUID
		accepts bool
	}
	locked := make(map[string]lockedAccount, 2)
	for _, code := range codes {
		var acct lockedAccount
		err := t.tx.QueryRow(ctx, `SELECT id, accepts_deposits FROM accounts WHERE code = $1 FOR UPDATE`, code).
			Scan(&acct.id, &acct.accepts)
		if err != nil {
			if errors.Is(err, pgx.ErrNoRows) {
				if code == fromCode {
					return ErrInsufficientFunds
				}
				return fmt.Errorf("account %s not found", code)
			}
			return err
		}
		locked[code] = acct
	}

	if !locked[toCode].accepts {
		return ErrTransferRejected
	}

	if fromCode != FaucetAccountCode {
		fromBalance, err := balanceForAccount(ctx, t.tx, locked[fromCode].id)
		if err != nil {
			return err
		}
		if fromBalance.LessThan(amount) {
			return ErrInsufficientFunds
		}
	}

	var contractID *uuid.UUID
	if t.contractID != uuid.Nil {
		contractID = &t.contractID
	}
	txID := uuid.New()
	if _, err := t.tx.Exec(ctx, `INSERT INTO transactions (id, kind, contract_id) VALUES ($1, $2, $3)`, txID, kind, contractID); err != nil {
		return err
	}
	if _, err := t.tx.Exec(ctx, `INSERT INTO entries (id, transaction_id, account_id, amount) VALUES ($1, $2, $3, $4::numeric)`,
		uuid.New(), txID, locked[fromCode].id, amount.Neg().String()); err != nil {
		return err
	}
	if _, err := t.tx.Exec(ctx, `INSERT INTO entries (id, transaction_id, account_id, amount) VALUES ($1, $2, $3, $4::numeric)`,
		uuid.New(), txID, locked[toCode].id, amount.String()); err != nil {
		return err
	}
	return nil
}

func (t *postgresTx) Commit(ctx context.Context) error {
	return t.tx.Commit(ctx)
}

func (t *postgresTx) Rollback(ctx context.Context) error {
	err := t.tx.Rollback(ctx)
	if errors.Is(err, pgx.ErrTxClosed) {
		return nil
	}
	return err
}

func ensureAccount(ctx context.Context, tx pgx.Tx, code string) error {
	_, err := tx.Exec(ctx, `INSERT INTO accounts (id, code) VALUES ($1, $2)
        ON CONFLICT (code) DO NOTHING`, uuid.New(), code)
	return err
}

func balanceForAccount(ctx context.Context, tx pgx.Tx, accountID uuid.UUID) (decimal.Decimal, error) {
	const query = `SELECT COALESCE(SUM(amount), 0)::text FROM entries WHERE account_id = $1`
	var raw string
	if err := tx.QueryRow(ctx, query, accountID).Scan(&raw); err != nil {
		return decimal.Zero, err
	}
	return decimal.NewFromString(raw)
}
