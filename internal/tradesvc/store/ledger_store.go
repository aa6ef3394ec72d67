package store

import (
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/cardex/cardex-services/internal/tradesvc/models"
	"github.com/google/uuid"
	log "github.com/sirupsen/logrus"
)

// ErrNotFound is returned when an operation names a trade the ledger
// has no record of.
var ErrNotFound = errors.New("trade not found")

// LedgerStore holds every trade record keyed by trade ID. Records are
// owned exclusively by the store and mutated only through UpdateStatus;
// GetTrade hands out copies.
type LedgerStore struct {
	mu     sync.RWMutex
	trades map[string]*models.Trade
	path   string
}

func NewLedgerStore(path string) (*LedgerStore, error) {
	s := &LedgerStore{
		trades: make(map[string]*models.Trade),
		path:   path,
	}
	if err := readSnapshot(path, &s.trades); err != nil {
		return nil, fmt.Errorf("load trade ledger: %w", err)
	}
	return s, nil
}

// RecoverOrphans cancels every non-terminal trade found in the loaded
// snapshot. The sessions that created them cannot have survived a
// restart, so the records can never progress.
func (s *LedgerStore) RecoverOrphans() []models.Trade {
	s.mu.Lock()
	defer s.mu.Unlock()

	var cancelled []models.Trade
	for _, trade := range s.trades {
		if trade.Status.Terminal() {
			continue
		}
		trade.Status = models.TradeCancelled
		cancelled = append(cancelled, *trade)
		log.Warnf("cancelled orphaned trade %s (%s -> %s) from previous run", trade.TradeID, trade.Initiator, trade.Recipient)
	}

	if len(cancelled) > 0 {
		if err := s.persist(); err != nil {
			log.Errorf("Error persisting orphan recovery: %v", err)
		}
	}
	return cancelled
}

// CreateTrade inserts a fresh pending record and returns its generated
// ID.
func (s *LedgerStore) CreateTrade(initiator, recipient string, offeredCards []string) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	trade := &models.Trade{
		TradeID:      uuid.New().String(),
		Initiator:    initiator,
		Recipient:    recipient,
		OfferedCards: append([]string(nil), offeredCards...),
		Status:       models.TradePending,
		CreatedAt:    time.Now(),
	}
	s.trades[trade.TradeID] = trade

	if err := s.persist(); err != nil {
		return trade.TradeID, err
	}
	return trade.TradeID, nil
}

// GetTrade returns a copy of the record, or ErrNotFound.
func (s *LedgerStore) GetTrade(tradeID string) (*models.Trade, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	trade, ok := s.trades[tradeID]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrNotFound, tradeID)
	}

	cp := *trade
	cp.OfferedCards = append([]string(nil), trade.OfferedCards...)
	return &cp, nil
}

// UpdateStatus moves a trade to newStatus. Unknown IDs and records
// already in a terminal state are logged warnings and left unchanged;
// terminal states are never re-entered or reversed.
func (s *LedgerStore) UpdateStatus(tradeID string, newStatus models.TradeStatus) {
	s.mu.Lock()
	defer s.mu.Unlock()

	trade, ok := s.trades[tradeID]
	if !ok {
		log.Warnf("status update for unknown trade %s ignored", tradeID)
		return
	}
	if trade.Status.Terminal() {
		log.Warnf("status update %s -> %s for trade %s ignored: already terminal", trade.Status, newStatus, tradeID)
		return
	}

	trade.Status = newStatus
	if err := s.persist(); err != nil {
		log.Errorf("Error persisting trade ledger: %v", err)
	}
}

// GetTradesForUser returns copies of every trade where the user is
// initiator or recipient.
func (s *LedgerStore) GetTradesForUser(username string) []models.Trade {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var out []models.Trade
	for _, trade := range s.trades {
		if trade.Initiator != username && trade.Recipient != username {
			continue
		}
		cp := *trade
		cp.OfferedCards = append([]string(nil), trade.OfferedCards...)
		out = append(out, cp)
	}
	return out
}

// CleanupStaleTrades expires every trade still pending past maxAge and
// returns the expired records so the caller can audit and notify.
// Trades that progressed beyond pending are left untouched.
func (s *LedgerStore) CleanupStaleTrades(maxAge time.Duration) []models.Trade {
	s.mu.Lock()
	defer s.mu.Unlock()

	cutoff := time.Now().Add(-maxAge)
	var expired []models.Trade
	for _, trade := range s.trades {
		if trade.Status != models.TradePending || trade.CreatedAt.After(cutoff) {
			continue
		}
		trade.Status = models.TradeExpired
		cp := *trade
		cp.OfferedCards = append([]string(nil), trade.OfferedCards...)
		expired = append(expired, cp)
	}

	if len(expired) > 0 {
		if err := s.persist(); err != nil {
			log.Errorf("Error persisting trade ledger after sweep: %v", err)
		}
	}
	return expired
}

func (s *LedgerStore) persist() error {
	if err := writeSnapshot(s.path, s.trades); err != nil {
		return fmt.Errorf("persist trade ledger: %w", err)
	}
	return nil
}
