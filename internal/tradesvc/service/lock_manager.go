package service

import (
	"sync"

	log "github.com/sirupsen/logrus"
)

// LockManager is the advisory lock table mapping a card ID to the
// transaction currently holding it. Locks are transient: they exist
// only for the duration of a commit attempt and are never persisted.
type LockManager struct {
	mu    sync.Mutex
	locks map[string]string // cardID -> transactionID
}

func NewLockManager() *LockManager {
	return &LockManager{locks: make(map[string]string)}
}

// AcquireLocks claims every card in cardIDs for transactionID, or none
// of them. A card already held by the same transaction counts as free.
// Acquisition never blocks: on conflict the caller gets false and must
// abort or retry without holding anything.
func (m *LockManager) AcquireLocks(cardIDs []string, transactionID string) bool {
	m.mu.Lock()
	defer m.mu.Unlock()

	for _, id := range cardIDs {
		if holder, ok := m.locks[id]; ok && holder != transactionID {
			log.Debugf("lock conflict on card %s: held by %s, wanted by %s", id, holder, transactionID)
			return false
		}
	}

	for _, id := range cardIDs {
		m.locks[id] = transactionID
	}
	return true
}

// ReleaseLocks drops every lock held by transactionID. Idempotent and
// safe for transactions that never acquired anything.
func (m *LockManager) ReleaseLocks(transactionID string) {
	m.mu.Lock()
	defer m.mu.Unlock()

	for id, holder := range m.locks {
		if holder == transactionID {
			delete(m.locks, id)
		}
	}
}

// Holder returns the transaction holding cardID, if any.
func (m *LockManager) Holder(cardID string) (string, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()

	holder, ok := m.locks[cardID]
	return holder, ok
}
