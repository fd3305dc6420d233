package ledger

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"
	_ "github.com/mattn/go-sqlite3"
	"github.com/shopspring/decimal"
)

// SQLiteStore keeps the ledger in a single SQLite file. The pool is capped
// at one connection, which serializes transactions the same way the
// in-memory store does.
type SQLiteStore struct {
	db *sql.DB
}

// NewSQLite opens (or creates) the database at path and applies the schema.
func NewSQLite(path string) (*SQLiteStore, error) {
	dsn := path
	if !strings.Contains(dsn, "?") {
		dsn += "?_txlock=immediate&_foreign_keys=on"
	}
	db, err := sql.Open("sqlite3", dsn)
	if err != nil {
		return nil, err
	}
	db.SetMaxOpenConns(1)

	if _, err := db.Exec(SQLiteSchema); err != nil {
		db.Close()
		return nil, fmt.Errorf("apply sqlite schema: %w", err)
	}
	if _, err := db.Exec(`INSERT OR IGNORE INTO accounts (code) VALUES (?)`, FaucetAccountCode); err != nil {
		db.Close()
		return nil, err
	}
	return &SQLiteStore{db: db}, nil
}

// DB exposes the handle so other repositories can share the file.
func (s *SQLiteStore) DB() *sql.DB {
	return s.db
}

// Close releases the database handle.
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

func (s *SQLiteStore) CreateContract(ctx context.Context, c Contract) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback() // nolint:errcheck

	res, err := tx.ExecContext(ctx, `INSERT OR IGNORE INTO contracts (id, owner, price_feed, minimum_usd, created_at)
		VALUES (?, ?, ?, ?, ?)`, c.ID, c.Owner, c.PriceFeed, c.MinimumUSD, c.CreatedAt.UTC())
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrContractExists
	}
	if _, err := tx.ExecContext(ctx, `INSERT OR IGNORE INTO accounts (code) VALUES (?)`, ContractAccountCode(c.ID)); err != nil {
		return err
	}
	return tx.Commit()
}

func (s *SQLiteStore) Contract(ctx context.Context, id string) (Contract, error) {
	var c Contract
	err := s.db.QueryRowContext(ctx, `SELECT id, owner, price_feed, minimum_usd, created_at
		FROM contracts WHERE id = ?`, id).Scan(&c.ID, &c.Owner, &c.PriceFeed, &c.MinimumUSD, &c.CreatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return Contract{}, ErrContractNotFound
		}
		return Contract{}, err
	}
	c.CreatedAt = c.CreatedAt.UTC()
	return c, nil
}

func (s *SQLiteStore) EnsureAccount(ctx context.Context, code string) error {
	_, err := s.db.ExecContext(ctx, `INSERT OR IGNORE INTO accounts (code) VALUES (?)`, code)
	return err
}

func (s *SQLiteStore) Balance(ctx context.Context, code string) (decimal.Decimal, error) {
	return sumEntries(ctx, s.db, code)
}

func (s *SQLiteStore) SetAcceptsDeposits(ctx context.Context, code string, accepts bool) error {
	_, err := s.db.ExecContext(ctx, `INSERT INTO accounts (code, accepts_deposits) VALUES (?, ?)
		ON CONFLICT (code) DO UPDATE SET accepts_deposits = excluded.accepts_deposits`, code, accepts)
	return err
}

func (s *SQLiteStore) Faucet(ctx context.Context, code string, amount decimal.Decimal) (decimal.Decimal, error) {
	if !amount.IsPositive() {
		return decimal.Zero, ErrInvalidAmount
	}
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return decimal.Zero, err
	}
	defer tx.Rollback() // nolint:errcheck

	if _, err := tx.ExecContext(ctx, `INSERT OR IGNORE INTO accounts (code) VALUES (?)`, code); err != nil {
		return decimal.Zero, err
	}
	stx := &sqliteTx{tx: tx}
	if err := stx.Transfer(ctx, FaucetAccountCode, code, KindFaucet, amount); err != nil {
		return decimal.Zero, err
	}
	balance, err := sumEntries(ctx, tx, code)
	if err != nil {
		return decimal.Zero, err
	}
	return balance, tx.Commit()
}

func (s *SQLiteStore) Begin(ctx context.Context, contractID string) (Tx, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, err
	}
	var id string
	if err := tx.QueryRowContext(ctx, `SELECT id FROM contracts WHERE id = ?`, contractID).Scan(&id); err != nil {
		_ = tx.Rollback()
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrContractNotFound
		}
		return nil, err
	}
	return &sqliteTx{tx: tx, contractID: id}, nil
}

type queryer interface {
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
}

func sumEntries(ctx context.Context, q queryer, code string) (decimal.Decimal, error) {
	rows, err := q.QueryContext(ctx, `SELECT amount FROM entries WHERE account_code = ?`, code)
	if err != nil {
		return decimal.Zero, err
	}
	defer rows.Close()

	total := decimal.Zero
	for rows.Next() {
		var amount decimal.Decimal
		if err := rows.Scan(&amount); err != nil {
			return decimal.Zero, err
		}
		total = total.Add(amount)
	}
	return total, rows.Err()
}

type sqliteTx struct {
	tx         *sql.Tx
	contractID string
}

func (t *sqliteTx) AmountFunded(ctx context.Context, funder string) (decimal.Decimal, error) {
	var amount decimal.Decimal
	err := t.tx.QueryRowContext(ctx, `SELECT amount FROM contract_amounts WHERE contract_id = ? AND funder = ?`,
		t.contractID, funder).Scan(&amount)
	if errors.Is(err, sql.ErrNoRows) {
		return decimal.Zero, nil
	}
	return amount, err
}

func (t *sqliteTx) SetAmountFunded(ctx context.Context, funder string, amount decimal.Decimal) error {
	if amount.IsNegative() {
		return ErrInvalidAmount
	}
	if amount.IsZero() {
		_, err := t.tx.ExecContext(ctx, `DELETE FROM contract_amounts WHERE contract_id = ? AND funder = ?`, t.contractID, funder)
		return err
	}
	_, err := t.tx.ExecContext(ctx, `INSERT INTO contract_amounts (contract_id, funder, amount) VALUES (?, ?, ?)
		ON CONFLICT (contract_id, funder) DO UPDATE SET amount = excluded.amount`, t.contractID, funder, amount)
	return err
}

func (t *sqliteTx) FunderCount(ctx context.Context) (int, error) {
	var n int
	err := t.tx.QueryRowContext(ctx, `SELECT COUNT(*) FROM contract_funders WHERE contract_id = ?`, t.contractID).Scan(&n)
	return n, err
}

func (t *sqliteTx) FunderAt(ctx context.Context, index int) (string, error) {
	var funder string
	err := t.tx.QueryRowContext(ctx, `SELECT funder FROM contract_funders WHERE contract_id = ? AND position = ?`,
		t.contractID, index).Scan(&funder)
	if errors.Is(err, sql.ErrNoRows) {
		return "", fmt.Errorf("funder index %d out of range", index)
	}
	return funder, err
}

func (t *sqliteTx) Funders(ctx context.Context) ([]string, error) {
	rows, err := t.tx.QueryContext(ctx, `SELECT funder FROM contract_funders WHERE contract_id = ? ORDER BY position`, t.contractID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	funders := []string{}
	for rows.Next() {
		var f string
		if err := rows.Scan(&f); err != nil {
			return nil, err
		}
		funders = append(funders, f)
	}
	return funders, rows.Err()
}

func (t *sqliteTx) AppendFunder(ctx context.Context, funder string) error {
	_, err := t.tx.ExecContext(ctx, `INSERT INTO contract_funders (contract_id, position, funder)
		SELECT ?, COALESCE(MAX(position) + 1, 0), ? FROM contract_funders WHERE contract_id = ?`,
		t.contractID, funder, t.contractID)
	return err
}

func (t *sqliteTx) ClearFunders(ctx context.Context) error {
	_, err := t.tx.ExecContext(ctx, `DELETE FROM contract_funders WHERE contract_id = ?`, t.contractID)
	return err
}

func (t *sqliteTx) Balance(ctx context.Context, code string) (decimal.Decimal, error) {
	return sumEntries(ctx, t.tx, code)
}

func (t *sqliteTx) Transfer(ctx context.Context, fromCode, toCode, kind string, amount decimal.Decimal) error {
	if amount.IsNegative() {
		return ErrInvalidAmount
	}
	if amount.IsZero() {
		return nil
	}

	var fromExists int
	if err := t.tx.QueryRowContext(ctx, `SELECT COUNT(*) FROM accounts WHERE code = ?`, fromCode).Scan(&fromExists); err != nil {
		return err
	}
	if fromExists == 0 {
		return ErrInsufficientFunds
	}

	var accepts bool
	err := t.tx.QueryRowContext(ctx, `SELECT accepts_deposits FROM accounts WHERE code = ?`, toCode).Scan(&accepts)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return fmt.Errorf("account %s not found", toCode)
		}
		return err
	}
	if !accepts {
		return ErrTransferRejected
	}

	if fromCode != FaucetAccountCode {
		balance, err := sumEntries(ctx, t.tx, fromCode)
		if err != nil {
			return err
		}
		if balance.LessThan(amount) {
			return ErrInsufficientFunds
		}
	}

	var contractID sql.NullString
	if t.contractID != "" {
		contractID = sql.NullString{String: t.contractID, Valid: true}
	}
	const insert = `INSERT INTO entries (id, kind, contract_id, account_code, amount) VALUES (?, ?, ?, ?, ?)`
	if _, err := t.tx.ExecContext(ctx, insert, uuid.NewString(), kind, contractID, fromCode, amount.Neg()); err != nil {
		return err
	}
	if _, err := t.tx.ExecContext(ctx, insert, uuid.NewString(), kind, contractID, toCode, amount); err != nil {
		return err
	}
	return nil
}

func (t *sqliteTx) Commit(_ context.Context) error {
	return t.tx.Commit()
}

func (t *sqliteTx) Rollback(_ context.Context) error {
	err := t.tx.Rollback()
	if errors.Is(err, sql.ErrTxDone) {
		return nil
	}
	return err
}

var (
	_ Store = (*SQLiteStore)(nil)
	_ Store = (*PostgresStore)(nil)
	_ Store = (*inMemoryStore)(nil)
)
