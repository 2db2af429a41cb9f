package storage

import (
	"context"
	"sync"

	"github.com/google/uuid"
)

// SavedRun is one captured SaveRun call.
type SavedRun struct {
	ID      string
	Summary RunSummary
	Trades  []TradeRecord
}

// MockSink captures saves in memory for tests.
type MockSink struct {
	mu      sync.Mutex
	saved   []SavedRun
	SaveErr error
}

// NewMockSink creates an empty capturing sink.
func NewMockSink() *MockSink {
	return &MockSink{}
}

// SaveRun records the call and returns a fresh id, or SaveErr when set.
func (m *MockSink) SaveRun(_ context.Context, summary RunSummary, trades []TradeRecord) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.SaveErr != nil {
		return "", m.SaveErr
	}
	id := uuid.NewString()
	copied := make([]TradeRecord, len(trades))
	copy(copied, trades)
	m.saved = append(m.saved, SavedRun{ID: id, Summary: summary, Trades: copied})
	return id, nil
}

// Saved returns the captured saves.
func (m *MockSink) Saved() []SavedRun {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]SavedRun, len(m.saved))
	copy(out, m.saved)
	return out
}

var _ RunSink = (*MockSink)(nil)
