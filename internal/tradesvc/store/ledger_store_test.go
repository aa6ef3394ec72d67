package store

import (
	"path/filepath"
	"testing"
	"time"

	"github.com/cardex/cardex-services/internal/tradesvc/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestLedger(t *testing.T) (*LedgerStore, string) {
	t.Helper()
	path := filepath.Join(t.TempDir(), "trades.json")
	s, err := NewLedgerStore(path)
	require.NoError(t, err)
	return s, path
}

func TestLedgerStore_CreateAndGet(t *testing.T) {
	s, _ := newTestLedger(t)

	id, err := s.CreateTrade("alice", "bob", []string{"c1", "c2"})
	require.NoError(t, err)
	require.NotEmpty(t, id)

	trade, err := s.GetTrade(id)
	require.NoError(t, err)
	assert.Equal(t, "alice", trade.Initiator)
	assert.Equal(t, "bob", trade.Recipient)
	assert.Equal(t, []string{"c1", "c2"}, trade.OfferedCards)
	assert.Equal(t, models.TradePending, trade.Status)
	assert.WithinDuration(t, time.Now(), trade.CreatedAt, time.Second)

	_, err = s.GetTrade("no-such-trade")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestLedgerStore_GetTradeReturnsCopy(t *testing.T) {
	s, _ := newTestLedger(t)
	id, err := s.CreateTrade("alice", "bob", []string{"c1"})
	require.NoError(t, err)

	trade, err := s.GetTrade(id)
	require.NoError(t, err)
	trade.Status = models.TradeCompleted
	trade.OfferedCards[0] = "tampered"

	fresh, err := s.GetTrade(id)
	require.NoError(t, err)
	assert.Equal(t, models.TradePending, fresh.Status)
	assert.Equal(t, []string{"c1"}, fresh.OfferedCards)
}

func TestLedgerStore_UpdateStatus(t *testing.T) {
	s, _ := newTestLedger(t)
	id, err := s.CreateTrade("alice", "bob", []string{"c1"})
	require.NoError(t, err)

	s.UpdateStatus(id, models.TradeAccepted)
	trade, err := s.GetTrade(id)
	require.NoError(t, err)
	assert.Equal(t, models.TradeAccepted, trade.Status)

	// Unknown trade is a logged no-op, not a panic.
	s.UpdateStatus("no-such-trade", models.TradeCompleted)
}

func TestLedgerStore_TerminalStatusIsMonotonic(t *testing.T) {
	s, _ := newTestLedger(t)
	id, err := s.CreateTrade("alice", "bob", []string{"c1"})
	require.NoError(t, err)

	s.UpdateStatus(id, models.TradeAccepted)
	s.UpdateStatus(id, models.TradeCompleted)

	for _, attempt := range []models.TradeStatus{
		models.TradePending, models.TradeFailed, models.TradeCancelled, models.TradeExpired,
	} {
		s.UpdateStatus(id, attempt)
		trade, err := s.GetTrade(id)
		require.NoError(t, err)
		assert.Equal(t, models.TradeCompleted, trade.Status, "terminal status must not change to %s", attempt)
	}
}

func TestLedgerStore_GetTradesForUser(t *testing.T) {
	s, _ := newTestLedger(t)
	_, err := s.CreateTrade("alice", "bob", []string{"c1"})
	require.NoError(t, err)
	_, err = s.CreateTrade("carol", "alice", []string{"c2"})
	require.NoError(t, err)
	_, err = s.CreateTrade("carol", "dave", []string{"c3"})
	require.NoError(t, err)

	assert.Len(t, s.GetTradesForUser("alice"), 2)
	assert.Len(t, s.GetTradesForUser("carol"), 2)
	assert.Len(t, s.GetTradesForUser("dave"), 1)
	assert.Empty(t, s.GetTradesForUser("mallory"))
}

func TestLedgerStore_CleanupStaleTrades(t *testing.T) {
	s, _ := newTestLedger(t)

	staleID, err := s.CreateTrade("alice", "bob", []string{"c1"})
	require.NoError(t, err)
	acceptedID, err := s.CreateTrade("alice", "bob", []string{"c2"})
	require.NoError(t, err)
	s.UpdateStatus(acceptedID, models.TradeAccepted)

	// Zero max age makes every pending trade stale immediately.
	expired := s.CleanupStaleTrades(0)
	require.Len(t, expired, 1)
	assert.Equal(t, staleID, expired[0].TradeID)
	assert.Equal(t, models.TradeExpired, expired[0].Status)

	// Accepted trades are left untouched by the sweep.
	accepted, err := s.GetTrade(acceptedID)
	require.NoError(t, err)
	assert.Equal(t, models.TradeAccepted, accepted.Status)

	// Sweep is idempotent.
	assert.Empty(t, s.CleanupStaleTrades(0))
}

func TestLedgerStore_FreshTradeSurvivesSweep(t *testing.T) {
	s, _ := newTestLedger(t)
	id, err := s.CreateTrade("alice", "bob", []string{"c1"})
	require.NoError(t, err)

	assert.Empty(t, s.CleanupStaleTrades(time.Hour))
	trade, err := s.GetTrade(id)
	require.NoError(t, err)
	assert.Equal(t, models.TradePending, trade.Status)
}

func TestLedgerStore_PersistsAcrossReload(t *testing.T) {
	s, path := newTestLedger(t)
	id, err := s.CreateTrade("alice", "bob", []string{"c1"})
	require.NoError(t, err)
	s.UpdateStatus(id, models.TradeAccepted)
	s.UpdateStatus(id, models.TradeCompleted)

	reloaded, err := NewLedgerStore(path)
	require.NoError(t, err)
	trade, err := reloaded.GetTrade(id)
	require.NoError(t, err)
	assert.Equal(t, models.TradeCompleted, trade.Status)
	assert.Equal(t, []string{"c1"}, trade.OfferedCards)
}

func TestLedgerStore_RecoverOrphans(t *testing.T) {
	s, path := newTestLedger(t)
	pendingID, err := s.CreateTrade("alice", "bob", []string{"c1"})
	require.NoError(t, err)
	doneID, err := s.CreateTrade("alice", "bob", []string{"c2"})
	require.NoError(t, err)
	s.UpdateStatus(doneID, models.TradeAccepted)
	s.UpdateStatus(doneID, models.TradeCompleted)

	// Simulate a restart: reload the snapshot and recover.
	reloaded, err := NewLedgerStore(path)
	require.NoError(t, err)
	cancelled := reloaded.RecoverOrphans()
	require.Len(t, cancelled, 1)
	assert.Equal(t, pendingID, cancelled[0].TradeID)

	trade, err := reloaded.GetTrade(pendingID)
	require.NoError(t, err)
	assert.Equal(t, models.TradeCancelled, trade.Status)

	done, err := reloaded.GetTrade(doneID)
	require.NoError(t, err)
	assert.Equal(t, models.TradeCompleted, done.Status)
}
