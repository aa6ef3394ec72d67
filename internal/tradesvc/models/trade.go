package models

import "time"

type TradeStatus string

const (
	TradePending   TradeStatus = "pending"
	TradeAccepted  TradeStatus = "accepted"
	TradeRejected  TradeStatus = "rejected"
	TradeCompleted TradeStatus = "completed"
	TradeFailed    TradeStatus = "failed"
	TradeCancelled TradeStatus = "cancelled"
	TradeExpired   TradeStatus = "expired"
)

// Terminal reports whether the status is final. A terminal trade record
// may never change status again.
func (s TradeStatus) Terminal() bool {
	switch s {
	case TradeCompleted, TradeFailed, TradeRejected, TradeCancelled, TradeExpired:
		return true
	}
	return false
}

// Trade is one ledger record. Owned exclusively by the ledger store and
// mutated only through its UpdateStatus operation.
type Trade struct {
	TradeID      string      `json:"trade_id"`
	Initiator    string      `json:"initiator"`
	Recipient    string      `json:"recipient"`
	OfferedCards []string    `json:"offered_cards"` // card IDs
	Status       TradeStatus `json:"status"`
	CreatedAt    time.Time   `json:"created_at"`
}
