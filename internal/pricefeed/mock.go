package pricefeed

import (
	"context"
	"sync"
	"time"

	"github.com/shopspring/decimal"
)

const (
	// DefaultDecimals and DefaultAnswer match the development aggregator:
	// 2000 USD per ether with 8 decimals.
	DefaultDecimals = 8
	DefaultAnswer   = 200000000000
)

// MockAggregator is an in-process feed whose answer is set explicitly.
type MockAggregator struct {
	mu        sync.RWMutex
	decimals  int32
	answer    decimal.Decimal
	round     uint64
	updatedAt time.Time
}

// NewMockAggregator creates a feed holding answer with the given decimals.
func NewMockAggregator(decimals int32, answer decimal.Decimal) *MockAggregator {
	return &MockAggregator{
		decimals:  decimals,
		answer:    answer,
		round:     1,
		updatedAt: time.Now().UTC(),
	}
}

// Latest returns the current answer.
func (m *MockAggregator) Latest(_ context.Context) (Price, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return Price{Rate: m.answer, Decimals: m.decimals, Round: m.round, UpdatedAt: m.updatedAt}, nil
}

// UpdateAnswer replaces the answer and starts a new round.
func (m *MockAggregator) UpdateAnswer(answer decimal.Decimal) Price {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.answer = answer
	m.round++
	m.updatedAt = time.Now().UTC()
	return Price{Rate: m.answer, Decimals: m.decimals, Round: m.round, UpdatedAt: m.updatedAt}
}

// Registry is an in-memory Admin of mock aggregators keyed by reference.
type Registry struct {
	mu    sync.RWMutex
	feeds map[string]*MockAggregator
}

// NewRegistry builds an empty registry.
func NewRegistry() *Registry {
	return &Registry{feeds: make(map[string]*MockAggregator)}
}

// Resolve looks up a feed by reference.
func (r *Registry) Resolve(_ context.Context, ref string) (Oracle, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	feed, ok := r.feeds[ref]
	if !ok {
		return nil, ErrFeedNotFound
	}
	return feed, nil
}

// Create registers a new mock aggregator.
func (r *Registry) Create(ctx context.Context, ref string, decimals int32, answer decimal.Decimal) (Price, error) {
	if ref == "" {
		return Price{}, ErrFeedNotFound
	}
	if err := validate(decimals, answer); err != nil {
		return Price{}, err
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, exists := r.feeds[ref]; exists {
		return Price{}, ErrFeedExists
	}
	feed := NewMockAggregator(decimals, answer)
	r.feeds[ref] = feed
	return feed.Latest(ctx)
}

// UpdateAnswer changes the answer of an existing feed.
func (r *Registry) UpdateAnswer(_ context.Context, ref string, answer decimal.Decimal) (Price, error) {
	r.mu.RLock()
	feed, ok := r.feeds[ref]
	r.mu.RUnlock()
	if !ok {
		return Price{}, ErrFeedNotFound
	}
	if err := validate(feed.decimals, answer); err != nil {
		return Price{}, err
	}
	return feed.UpdateAnswer(answer), nil
}

var (
	_ Admin  = (*Registry)(nil)
	_ Oracle = (*MockAggregator)(nil)
)
