package service

import (
	"sync"
	"testing"
	"time"

	"github.com/cardex/cardex-services/internal/comm"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type mockNotifier struct {
	mu       sync.Mutex
	messages map[string][]any
}

func newMockNotifier() *mockNotifier {
	return &mockNotifier{messages: make(map[string][]any)}
}

func (m *mockNotifier) Notify(username string, payload any) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.messages[username] = append(m.messages[username], payload)
	return true
}

func (m *mockNotifier) sent(username string) []any {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.messages[username]
}

func TestSweeper_ExpiresAndNotifiesBothParties(t *testing.T) {
	f := newTradeFixture(t)
	seedCards(t, f, "alice", "c1")

	trade, _, err := f.trades.Initiate("alice", "bob", []string{"c1"})
	require.NoError(t, err)

	notifier := newMockNotifier()
	sweeper := NewSweeper(f.trades, f.custody, notifier, time.Second, 0) // maxAge 0: everything pending is stale
	sweeper.Sweep()

	for _, user := range []string{"alice", "bob"} {
		sent := notifier.sent(user)
		require.Len(t, sent, 1, "user %s should be notified", user)
		notice, ok := sent[0].(*comm.TradeCancelNotification)
		require.True(t, ok)
		assert.Equal(t, trade.TradeID, notice.TradeID)
		assert.Equal(t, "trade expired", notice.Reason)
	}
}

func TestSweeper_LeavesFreshTradesAlone(t *testing.T) {
	f := newTradeFixture(t)
	seedCards(t, f, "alice", "c1")

	_, _, err := f.trades.Initiate("alice", "bob", []string{"c1"})
	require.NoError(t, err)

	notifier := newMockNotifier()
	sweeper := NewSweeper(f.trades, f.custody, notifier, time.Second, time.Hour)
	sweeper.Sweep()

	assert.Empty(t, notifier.sent("alice"))
	assert.Empty(t, notifier.sent("bob"))
}
