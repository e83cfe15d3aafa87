package observer

import (
	"context"
	"sync"

	"github.com/tathienbao/signal-bot/internal/types"
)

// MemoryFetcher serves preloaded bars per symbol.
// Useful for testing.
type MemoryFetcher struct {
	mu    sync.RWMutex
	bars  map[string][]types.Bar
	errs  map[string]error
	calls map[string]int
}

// NewMemoryFetcher creates an empty in-memory fetcher.
func NewMemoryFetcher() *MemoryFetcher {
	return &MemoryFetcher{
		bars:  make(map[string][]types.Bar),
		errs:  make(map[string]error),
		calls: make(map[string]int),
	}
}

// SetBars replaces the bars served for symbol.
func (m *MemoryFetcher) SetBars(symbol string, bars []types.Bar) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.bars[symbol] = append([]types.Bar(nil), bars...)
	delete(m.errs, symbol)
}

// SetError makes every fetch for symbol fail with err.
func (m *MemoryFetcher) SetError(symbol string, err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.errs[symbol] = err
}

// Calls returns how many times symbol was fetched.
func (m *MemoryFetcher) Calls(symbol string) int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.calls[symbol]
}

// Name returns the provider identifier.
func (m *MemoryFetcher) Name() string {
	return "memory"
}

// Fetch returns a copy of the symbol's bars.
func (m *MemoryFetcher) Fetch(ctx context.Context, req Request) ([]types.Bar, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.calls[req.Symbol]++
	if err := ctx.Err(); err != nil {
		return nil, fetchErr("memory", req.Symbol, err)
	}
	if err, ok := m.errs[req.Symbol]; ok {
		return nil, fetchErr("memory", req.Symbol, err)
	}
	return Normalize(append([]types.Bar(nil), m.bars[req.Symbol]...)), nil
}
