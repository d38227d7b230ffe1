package store

import (
	"context"
	"sort"
	"sync"
	"time"
)

// MemoryStore is an in-memory TradeStore for backtests and tests. It applies
// the same settle-with-trade semantics as the Postgres repository.
type MemoryStore struct {
	mu       sync.RWMutex
	trades   map[string][]TradeRecord // by account
	accounts map[string]*Account
}

// NewMemoryStore creates an empty in-memory store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		trades:   make(map[string][]TradeRecord),
		accounts: make(map[string]*Account),
	}
}

// EnsureAccount creates the account if missing.
func (s *MemoryStore) EnsureAccount(_ context.Context, accountID string, startingBalance float64) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.accounts[accountID]; !ok {
		now := time.Now()
		s.accounts[accountID] = &Account{
			ID:        accountID,
			Balance:   startingBalance,
			CreatedAt: now,
			UpdatedAt: now,
		}
	}
	return nil
}

// RecordTrade stores the trade and settles the account atomically under the
// store lock.
func (s *MemoryStore) RecordTrade(_ context.Context, trade *TradeRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	acct, ok := s.accounts[trade.AccountID]
	if !ok {
		return ErrAccountNotFound
	}

	t := *trade
	t.CreatedAt = time.Now()
	s.trades[trade.AccountID] = append(s.trades[trade.AccountID], t)

	acct.Balance += trade.NetPnL
	if trade.NetPnL > 0 {
		acct.Wins++
	} else if trade.NetPnL < 0 {
		acct.Losses++
	}
	acct.UpdatedAt = t.CreatedAt
	return nil
}

// ListTrades returns the most recent trades for an account, newest first.
func (s *MemoryStore) ListTrades(_ context.Context, accountID string, limit int) ([]TradeRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if limit <= 0 {
		limit = 100
	}
	src := s.trades[accountID]
	out := make([]TradeRecord, len(src))
	copy(out, src)
	sort.Slice(out, func(i, j int) bool { return out[i].ExitTime.After(out[j].ExitTime) })
	if len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

// GetAccount returns a copy of the account.
func (s *MemoryStore) GetAccount(_ context.Context, accountID string) (*Account, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	acct, ok := s.accounts[accountID]
	if !ok {
		return nil, ErrAccountNotFound
	}
	out := *acct
	return &out, nil
}
