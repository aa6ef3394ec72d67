package store

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/cardex/cardex-services/internal/tradesvc/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestCustody(t *testing.T) (*CustodyStore, string) {
	t.Helper()
	path := filepath.Join(t.TempDir(), "collections.json")
	s, err := NewCustodyStore(path)
	require.NoError(t, err)
	return s, path
}

func cardIDs(cards []models.Card) []string {
	ids := make([]string, 0, len(cards))
	for _, c := range cards {
		ids = append(ids, c.CardID)
	}
	return ids
}

func TestCustodyStore_AddAndGet(t *testing.T) {
	s, _ := newTestCustody(t)

	require.NoError(t, s.AddCards("alice", []models.Card{
		{CardID: "c1", Name: "Ember Drake", Rarity: 4},
		{CardID: "c2", Name: "Mud Golem", Rarity: 1},
	}))

	got := s.GetCards("alice")
	require.Len(t, got, 2)
	assert.Equal(t, "c1", got[0].CardID)
	assert.Equal(t, "c2", got[1].CardID)
	assert.Empty(t, s.GetCards("bob"))
}

func TestCustodyStore_GetCardsReturnsCopy(t *testing.T) {
	s, _ := newTestCustody(t)
	require.NoError(t, s.AddCards("alice", []models.Card{{CardID: "c1", Name: "Ember Drake"}}))

	snapshot := s.GetCards("alice")
	snapshot[0].CardID = "tampered"
	snapshot[0].Name = "tampered"

	got := s.GetCards("alice")
	assert.Equal(t, "c1", got[0].CardID)
	assert.Equal(t, "Ember Drake", got[0].Name)
}

func TestCustodyStore_RemoveCards(t *testing.T) {
	s, _ := newTestCustody(t)
	require.NoError(t, s.AddCards("alice", []models.Card{{CardID: "c1"}, {CardID: "c2"}}))

	t.Run("missing card removes nothing", func(t *testing.T) {
		err := s.RemoveCards("alice", []string{"c1", "c9"})
		assert.ErrorIs(t, err, ErrOwnershipViolation)
		assert.Len(t, s.GetCards("alice"), 2)
	})

	t.Run("full removal", func(t *testing.T) {
		require.NoError(t, s.RemoveCards("alice", []string{"c1"}))
		got := s.GetCards("alice")
		require.Len(t, got, 1)
		assert.Equal(t, "c2", got[0].CardID)
	})
}

func TestCustodyStore_ExchangeCards(t *testing.T) {
	s, _ := newTestCustody(t)
	require.NoError(t, s.AddCards("alice", []models.Card{{CardID: "c1"}, {CardID: "c2"}}))

	moved, err := s.ExchangeCards("alice", "bob", []string{"c1"})
	require.NoError(t, err)
	assert.True(t, moved)

	aliceCards := s.GetCards("alice")
	require.Len(t, aliceCards, 1)
	assert.Equal(t, "c2", aliceCards[0].CardID)

	bobCards := s.GetCards("bob")
	require.Len(t, bobCards, 1)
	assert.Equal(t, "c1", bobCards[0].CardID)
}

func TestCustodyStore_ExchangeAllOrNothing(t *testing.T) {
	s, _ := newTestCustody(t)
	require.NoError(t, s.AddCards("alice", []models.Card{{CardID: "c1"}}))
	require.NoError(t, s.AddCards("bob", []models.Card{{CardID: "c3"}}))

	moved, err := s.ExchangeCards("alice", "bob", []string{"c1", "c2"})
	assert.ErrorIs(t, err, ErrOwnershipViolation)
	assert.False(t, moved)

	// Neither collection changed.
	assert.Equal(t, []string{"c1"}, cardIDs(s.GetCards("alice")))
	assert.Equal(t, []string{"c3"}, cardIDs(s.GetCards("bob")))
}

func TestCustodyStore_PersistsAcrossReload(t *testing.T) {
	s, path := newTestCustody(t)
	require.NoError(t, s.AddCards("alice", []models.Card{{CardID: "c1", Name: "Ember Drake", Rarity: 4}}))

	moved, err := s.ExchangeCards("alice", "bob", []string{"c1"})
	require.NoError(t, err)
	require.True(t, moved)

	reloaded, err := NewCustodyStore(path)
	require.NoError(t, err)
	assert.Empty(t, reloaded.GetCards("alice"))
	got := reloaded.GetCards("bob")
	require.Len(t, got, 1)
	assert.Equal(t, "Ember Drake", got[0].Name)
	assert.Equal(t, 4, got[0].Rarity)
}

func TestCustodyStore_SnapshotIsReplacedNotAppended(t *testing.T) {
	s, path := newTestCustody(t)
	require.NoError(t, s.AddCards("alice", []models.Card{{CardID: "c1"}}))
	require.NoError(t, s.AddCards("alice", []models.Card{{CardID: "c2"}}))

	// Only the final snapshot should be on disk, and no temp leftovers.
	entries, err := os.ReadDir(filepath.Dir(path))
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Equal(t, filepath.Base(path), entries[0].Name())
}

func TestCustodyStore_VerifyIntegrity(t *testing.T) {
	s, _ := newTestCustody(t)
	require.NoError(t, s.AddCards("alice", []models.Card{{CardID: "c1"}}))
	require.NoError(t, s.AddCards("bob", []models.Card{{CardID: "c2"}}))
	assert.Empty(t, s.VerifyIntegrity())

	// Force a duplicate through the public API to simulate corruption.
	require.NoError(t, s.AddCards("bob", []models.Card{{CardID: "c1"}}))
	assert.Equal(t, []string{"c1"}, s.VerifyIntegrity())
}

func TestCustodyStore_Owns(t *testing.T) {
	s, _ := newTestCustody(t)
	require.NoError(t, s.AddCards("alice", []models.Card{{CardID: "c1"}, {CardID: "c2"}}))

	assert.True(t, s.Owns("alice", []string{"c1", "c2"}))
	assert.False(t, s.Owns("alice", []string{"c1", "c3"}))
	assert.False(t, s.Owns("bob", []string{"c1"}))
	assert.True(t, s.Owns("alice", nil))
}
