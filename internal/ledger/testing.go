package ledger

import "github.com/shopspring/decimal"

// SeedBalance is a test helper that seeds the balance for an account when using the in-memory store.
func SeedBalance(s Store, code string, amount decimal.Decimal) {
	if mem, ok := s.(*inMemoryStore); ok {
		mem.mu.Lock()
		defer mem.mu.Unlock()
		mem.ensureAccountLocked(code)
		mem.accounts[code].balance = amount
	}
}

// PostingCount reports how many postings the in-memory store has committed.
func PostingCount(s Store) int {
	if mem, ok := s.(*inMemoryStore); ok {
		mem.mu.Lock()
		defer mem.mu.Unlock()
		return len(mem.postings)
	}
	return 0
}
