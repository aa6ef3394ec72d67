package store

import (
	"errors"
	"fmt"
	"sync"

	"github.com/cardex/cardex-services/internal/tradesvc/models"
	log "github.com/sirupsen/logrus"
)

// ErrOwnershipViolation is returned when an operation names a card that
// is not in the expected user's collection. The operation performs no
// partial mutation in that case.
var ErrOwnershipViolation = errors.New("card not owned")

// CustodyStore tracks which user owns which card instances. The whole
// store is guarded by one reader-writer lock; every mutation is
// followed by a full snapshot write to disk.
//
// Caveat: the in-memory mutation and the snapshot write are not a
// single atomic unit. When the snapshot write fails the mutation is
// kept and the error is reported; memory is the source of truth until
// the next successful persist.
type CustodyStore struct {
	mu          sync.RWMutex
	collections map[string][]models.Card // username -> owned cards, in acquisition order
	path        string
}

func NewCustodyStore(path string) (*CustodyStore, error) {
	s := &CustodyStore{
		collections: make(map[string][]models.Card),
		path:        path,
	}
	if err := readSnapshot(path, &s.collections); err != nil {
		return nil, fmt.Errorf("load custody store: %w", err)
	}
	return s, nil
}

// AddCards appends cards to a user's collection and persists.
func (s *CustodyStore) AddCards(user string, cards []models.Card) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.collections[user] = append(s.collections[user], cards...)
	return s.persist()
}

// RemoveCards removes the named cards from a user's collection. If any
// ID is absent the collection is left untouched and
// ErrOwnershipViolation is returned.
func (s *CustodyStore) RemoveCards(user string, cardIDs []string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.takeCards(user, cardIDs); !ok {
		return fmt.Errorf("%w: user %s", ErrOwnershipViolation, user)
	}
	return s.persist()
}

// GetCards returns a deep copy of the user's collection. Callers can
// mutate the result freely.
func (s *CustodyStore) GetCards(user string) []models.Card {
	s.mu.RLock()
	defer s.mu.RUnlock()

	owned := s.collections[user]
	snapshot := make([]models.Card, len(owned))
	copy(snapshot, owned)
	return snapshot
}

// Owns reports whether every ID in cardIDs is currently in the user's
// collection.
func (s *CustodyStore) Owns(user string, cardIDs []string) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.owns(user, cardIDs)
}

// ExchangeCards atomically moves the named cards from one user to the
// other. It re-validates ownership first; if any card is missing
// neither collection changes and moved is false. The returned error
// carries a persistence failure when the move itself succeeded but the
// snapshot write did not.
func (s *CustodyStore) ExchangeCards(fromUser, toUser string, cardIDs []string) (moved bool, err error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	taken, ok := s.takeCards(fromUser, cardIDs)
	if !ok {
		return false, fmt.Errorf("%w: user %s", ErrOwnershipViolation, fromUser)
	}

	s.collections[toUser] = append(s.collections[toUser], taken...)
	return true, s.persist()
}

// VerifyIntegrity scans for a card ID present in more than one
// collection and returns the offenders. Diagnostic only; it never
// mutates.
func (s *CustodyStore) VerifyIntegrity() []string {
	s.mu.RLock()
	defer s.mu.RUnlock()

	seen := make(map[string]string) // cardID -> first owner
	var dup []string
	for user, owned := range s.collections {
		for _, card := range owned {
			if other, ok := seen[card.CardID]; ok && other != user {
				log.Errorf("custody integrity violation: card %s owned by both %s and %s", card.CardID, other, user)
				dup = append(dup, card.CardID)
				continue
			}
			seen[card.CardID] = user
		}
	}
	return dup
}

// owns checks presence without copying. Caller holds at least the read
// lock.
func (s *CustodyStore) owns(user string, cardIDs []string) bool {
	owned := make(map[string]bool, len(s.collections[user]))
	for _, card := range s.collections[user] {
		owned[card.CardID] = true
	}
	for _, id := range cardIDs {
		if !owned[id] {
			return false
		}
	}
	return true
}

// takeCards removes cardIDs from user's collection and returns the
// removed instances, or ok=false with no mutation if any is absent.
// Caller holds the write lock.
func (s *CustodyStore) takeCards(user string, cardIDs []string) ([]models.Card, bool) {
	if !s.owns(user, cardIDs) {
		return nil, false
	}

	wanted := make(map[string]bool, len(cardIDs))
	for _, id := range cardIDs {
		wanted[id] = true
	}

	var taken, kept []models.Card
	for _, card := range s.collections[user] {
		if wanted[card.CardID] {
			taken = append(taken, card)
			delete(wanted, card.CardID) // duplicates in cardIDs take one instance
			continue
		}
		kept = append(kept, card)
	}

	s.collections[user] = kept
	return taken, true
}

func (s *CustodyStore) persist() error {
	if err := writeSnapshot(s.path, s.collections); err != nil {
		return fmt.Errorf("persist custody store: %w", err)
	}
	return nil
}
