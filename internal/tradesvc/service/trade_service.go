package service

import (
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/cardex/cardex-services/internal/tradesvc/audit"
	"github.com/cardex/cardex-services/internal/tradesvc/broker"
	"github.com/cardex/cardex-services/internal/tradesvc/models"
	"github.com/cardex/cardex-services/internal/tradesvc/store"
	log "github.com/sirupsen/logrus"
)

var (
	// ErrInvalidTrade covers proposals that can never be executed:
	// empty offers, self-trades, offers of cards the sender does not
	// own.
	ErrInvalidTrade = errors.New("invalid trade")

	// ErrWrongState is returned when a response or commit targets a
	// trade that is not in the state the operation requires.
	ErrWrongState = errors.New("trade not in expected state")

	// ErrWrongResponder is returned when someone other than the
	// trade's recipient answers the offer.
	ErrWrongResponder = errors.New("responder is not the trade recipient")
)

// TradeService coordinates the whole trade lifecycle: proposal,
// response, and the commit protocol that moves card custody. All
// commits are serialized against each other by one mutex; combined
// with all-or-nothing lock acquisition and an ownership re-check under
// that mutex, a card can never be spent by two trades.
type TradeService struct {
	commitMu sync.Mutex

	ledger  *store.LedgerStore
	custody *store.CustodyStore
	locks   *LockManager
	audit   *audit.Logger
	events  *broker.Broker
}

func NewTradeService(ledger *store.LedgerStore, custody *store.CustodyStore,
	locks *LockManager, auditLog *audit.Logger, events *broker.Broker) *TradeService {
	return &TradeService{
		ledger:  ledger,
		custody: custody,
		locks:   locks,
		audit:   auditLog,
		events:  events,
	}
}

// Initiate validates a proposal and records it as a pending trade.
// The offer snapshot (card instances) is returned alongside so the
// caller can build the notification for the recipient.
func (s *TradeService) Initiate(sender, recipient string, offeredCards []string) (*models.Trade, []models.Card, error) {
	if sender == recipient {
		return nil, nil, fmt.Errorf("%w: cannot trade with yourself", ErrInvalidTrade)
	}
	if len(offeredCards) == 0 {
		return nil, nil, fmt.Errorf("%w: no cards offered", ErrInvalidTrade)
	}
	if !s.custody.Owns(sender, offeredCards) {
		return nil, nil, fmt.Errorf("%w: sender does not own every offered card", ErrInvalidTrade)
	}

	tradeID, err := s.ledger.CreateTrade(sender, recipient, offeredCards)
	if err != nil {
		// Record exists in memory; persistence is retried on the next
		// mutation.
		log.Errorf("Error persisting new trade %s: %v", tradeID, err)
	}

	s.audit.Log(audit.EventCreation, tradeID, sender, recipient,
		fmt.Sprintf("offering %s", strings.Join(offeredCards, ",")))
	s.events.PublishTradeEvent(audit.EventCreation, tradeID, sender, recipient, "")

	trade, err := s.ledger.GetTrade(tradeID)
	if err != nil {
		return nil, nil, err
	}

	offered := s.offerSnapshot(sender, offeredCards)
	return trade, offered, nil
}

// Respond applies the recipient's answer to a pending trade. On
// accept it runs the commit protocol; the returned trade carries the
// terminal status and message is the human-readable outcome for both
// parties. A non-nil error means the response itself was invalid and
// the trade is unchanged.
func (s *TradeService) Respond(tradeID, responder string, accepted bool) (*models.Trade, string, error) {
	trade, err := s.ledger.GetTrade(tradeID)
	if err != nil {
		return nil, "", err
	}
	if trade.Recipient != responder {
		return nil, "", fmt.Errorf("%w: trade %s", ErrWrongResponder, tradeID)
	}
	if trade.Status != models.TradePending {
		return nil, "", fmt.Errorf("%w: trade %s is %s", ErrWrongState, tradeID, trade.Status)
	}

	if !accepted {
		s.ledger.UpdateStatus(tradeID, models.TradeRejected)
		s.audit.Log(audit.EventRejection, tradeID, trade.Initiator, trade.Recipient, "")
		s.events.PublishTradeEvent(audit.EventRejection, tradeID, trade.Initiator, trade.Recipient, "")
		return s.reload(tradeID, trade), "trade rejected by " + responder, nil
	}

	s.ledger.UpdateStatus(tradeID, models.TradeAccepted)
	s.audit.Log(audit.EventAcceptance, tradeID, trade.Initiator, trade.Recipient, "")
	s.events.PublishTradeEvent(audit.EventAcceptance, tradeID, trade.Initiator, trade.Recipient, "")

	_, message := s.Commit(tradeID)
	return s.reload(tradeID, trade), message, nil
}

// Commit executes the exchange for an already-accepted trade:
//
//  1. load the record, abort untouched unless it is accepted
//  2. lock every offered card all-or-nothing
//  3. under the commit section, re-verify the initiator still owns
//     every offered card (a different trade may have spent one since
//     acceptance)
//  4. move custody, mark completed
//
// Locks are released unconditionally on every path. Every failure
// path leaves the trade failed with an audited reason.
func (s *TradeService) Commit(tradeID string) (bool, string) {
	trade, err := s.ledger.GetTrade(tradeID)
	if err != nil {
		log.Warnf("commit for unknown trade %s ignored", tradeID)
		return false, "trade not found"
	}
	if trade.Status != models.TradeAccepted {
		log.Warnf("commit for trade %s ignored: status %s", tradeID, trade.Status)
		return false, fmt.Sprintf("trade is %s, not accepted", trade.Status)
	}

	if !s.locks.AcquireLocks(trade.OfferedCards, tradeID) {
		s.fail(trade, "lock conflict")
		return false, "lock conflict"
	}
	defer s.locks.ReleaseLocks(tradeID)

	s.commitMu.Lock()
	defer s.commitMu.Unlock()

	if !s.custody.Owns(trade.Initiator, trade.OfferedCards) {
		s.fail(trade, "ownership violation")
		return false, "ownership violation"
	}

	moved, err := s.custody.ExchangeCards(trade.Initiator, trade.Recipient, trade.OfferedCards)
	if !moved {
		s.fail(trade, "exchange failed")
		return false, "exchange failed"
	}
	if err != nil {
		// Cards moved in memory; the snapshot write is retried on the
		// next mutation.
		log.Errorf("Error persisting custody after trade %s: %v", tradeID, err)
	}

	s.ledger.UpdateStatus(tradeID, models.TradeCompleted)
	s.audit.Log(audit.EventTransfer, tradeID, trade.Initiator, trade.Recipient,
		fmt.Sprintf("moved %s", strings.Join(trade.OfferedCards, ",")))
	s.audit.Log(audit.EventCompletion, tradeID, trade.Initiator, trade.Recipient, "")
	s.events.PublishTradeEvent(audit.EventCompletion, tradeID, trade.Initiator, trade.Recipient, "")

	return true, "trade completed"
}

// Cancel moves a non-terminal trade to cancelled. Terminal trades are
// left untouched and reported as not cancelled, which makes the
// operation idempotent.
func (s *TradeService) Cancel(tradeID, reason string) (*models.Trade, bool) {
	trade, err := s.ledger.GetTrade(tradeID)
	if err != nil {
		log.Warnf("cancel for unknown trade %s ignored", tradeID)
		return nil, false
	}
	if trade.Status.Terminal() {
		return trade, false
	}

	s.ledger.UpdateStatus(tradeID, models.TradeCancelled)
	s.audit.Log(audit.EventCancellation, tradeID, trade.Initiator, trade.Recipient, reason)
	s.events.PublishTradeEvent(audit.EventCancellation, tradeID, trade.Initiator, trade.Recipient, reason)

	return s.reload(tradeID, trade), true
}

// ExpireStale sweeps pending trades older than maxAge to expired and
// returns the swept records.
func (s *TradeService) ExpireStale(maxAge time.Duration) []models.Trade {
	expired := s.ledger.CleanupStaleTrades(maxAge)
	for _, trade := range expired {
		s.audit.Log(audit.EventExpiration, trade.TradeID, trade.Initiator, trade.Recipient, "stale pending trade")
		s.events.PublishTradeEvent(audit.EventExpiration, trade.TradeID, trade.Initiator, trade.Recipient, "")
	}
	return expired
}

func (s *TradeService) fail(trade *models.Trade, reason string) {
	s.ledger.UpdateStatus(trade.TradeID, models.TradeFailed)
	s.audit.Log(audit.EventFailure, trade.TradeID, trade.Initiator, trade.Recipient, reason)
	s.events.PublishTradeEvent(audit.EventFailure, trade.TradeID, trade.Initiator, trade.Recipient, reason)
}

// reload fetches the post-update record, falling back to the stale
// copy if the ledger lookup fails.
func (s *TradeService) reload(tradeID string, fallback *models.Trade) *models.Trade {
	trade, err := s.ledger.GetTrade(tradeID)
	if err != nil {
		return fallback
	}
	return trade
}

// offerSnapshot resolves card IDs to the sender's current instances.
func (s *TradeService) offerSnapshot(sender string, cardIDs []string) []models.Card {
	wanted := make(map[string]bool, len(cardIDs))
	for _, id := range cardIDs {
		wanted[id] = true
	}

	var offered []models.Card
	for _, card := range s.custody.GetCards(sender) {
		if wanted[card.CardID] {
			offered = append(offered, card)
		}
	}
	return offered
}
