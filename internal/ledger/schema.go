package ledger

// PostgresSchema creates the tables used by PostgresStore.
const PostgresSchema = `
CREATE TABLE IF NOT EXISTS accounts (
    id               UUID PRIMARY KEY,
    code             TEXT NOT NULL UNIQUE,
    accepts_deposits BOOLEAN NOT NULL DEFAULT TRUE,
    created_at       TIMESTAMPTZ NOT NULL DEFAULT now()
);

CREATE TABLE IF NOT EXISTS contracts (
    id          UUID PRIMARY KEY,
    owner       TEXT NOT NULL,
    price_feed  TEXT NOT NULL,
    minimum_usd NUMERIC(78, 0) NOT NULL,
    created_at  TIMESTAMPTZ NOT NULL
);

CREATE TABLE IF NOT EXISTS transactions (
    id          UUID PRIMARY KEY,
    kind        TEXT NOT NULL,
    contract_id UUID REFERENCES contracts (id),
    created_at  TIMESTAMPTZ NOT NULL DEFAULT now()
);

CREATE TABLE IF NOT EXISTS entries (
    id             UUID PRIMARY KEY,
    transaction_id UUID NOT NULL REFERENCES transactions (id),
    account_id     UUID NOT NULL REFERENCES accounts (id),
    amount         NUMERIC(78, 0) NOT NULL
);

CREATE INDEX IF NOT EXISTS entries_account_id_idx ON entries (account_id);

CREATE TABLE IF NOT EXISTS contract_funders (
    contract_id UUID NOT NULL REFERENCES contracts (id),
    position    INTEGER NOT NULL,
    funder      TEXT NOT NULL,
    PRIMARY KEY (contract_id, position)
);

CREATE TABLE IF NOT EXISTS contract_amounts (
    contract_id UUID NOT NULL REFERENCES contracts (id),
    funder      TEXT NOT NULL,
    amount      NUMERIC(78, 0) NOT NULL,
    PRIMARY KEY (contract_id, funder)
);
`

// SQLiteSchema mirrors PostgresSchema. Amounts are stored as decimal text
// and summed in Go so that wei values keep full precision.
const SQLiteSchema = `
CREATE TABLE IF NOT EXISTS accounts (
    code             TEXT PRIMARY KEY,
    accepts_deposits INTEGER NOT NULL DEFAULT 1,
    created_at       TIMESTAMP NOT NULL DEFAULT CURRENT_TIMESTAMP
);

CREATE TABLE IF NOT EXISTS contracts (
    id          TEXT PRIMARY KEY,
    owner       TEXT NOT NULL,
    price_feed  TEXT NOT NULL,
    minimum_usd TEXT NOT NULL,
    created_at  TIMESTAMP NOT NULL
);

CREATE TABLE IF NOT EXISTS entries (
    id           TEXT PRIMARY KEY,
    kind         TEXT NOT NULL,
    contract_id  TEXT,
    account_code TEXT NOT NULL REFERENCES accounts (code),
    amount       TEXT NOT NULL
);

CREATE INDEX IF NOT EXISTS entries_account_code_idx ON entries (account_code);

CREATE TABLE IF NOT EXISTS contract_funders (
    contract_id TEXT NOT NULL REFERENCES contracts (id),
    position    INTEGER NOT NULL,
    funder      TEXT NOT NULL,
    PRIMARY KEY (contract_id, position)
);

CREATE TABLE IF NOT EXISTS contract_amounts (
    contract_id TEXT NOT NULL REFERENCES contracts (id),
    funder      TEXT NOT NULL,
    amount      TEXT NOT NULL,
    PRIMARY KEY (contract_id, funder)
);
`
