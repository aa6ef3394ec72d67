package comm

import (
	"encoding/json"

	"github.com/cardex/cardex-services/internal/tradesvc/models"
)

// Message is the wire envelope. Every record on the stream is one JSON
// line carrying a type discriminant plus the variant payload.
type Message struct {
	Type string          `json:"type"` // e.g. "login", "trade-initiate"
	Data json.RawMessage `json:"data"`
}

const (
	TypeLoginRequest           = "login"
	TypeLoginResponse          = "login-response"
	TypeTradeInitiateRequest   = "trade-initiate"
	TypeTradeOfferNotification = "trade-offer"
	TypeTradeResponse          = "trade-response"
	TypeTradeCancelNotice      = "trade-cancelled"
	TypeCollectionRequest      = "get-collection"
	TypeCollectionResponse     = "collection"
	TypeServerTradeStatus      = "trade-status"
)

type LoginRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

type LoginResponse struct {
	Success  bool   `json:"success"`
	Message  string `json:"message,omitempty"`
	Username string `json:"username,omitempty"`
}

type TradeInitiateRequest struct {
	Sender       string   `json:"sender"`
	Recipient    string   `json:"recipient"`
	OfferedCards []string `json:"offered_cards"`
}

// TradeOfferNotification is pushed, unsolicited, to the recipient's
// session when a trade targeting them is created.
type TradeOfferNotification struct {
	TradeID      string        `json:"trade_id"`
	Sender       string        `json:"sender"`
	OfferedCards []models.Card `json:"offered_cards"`
	Stage        string        `json:"stage"` // e.g. "offered"
}

type TradeResponse struct {
	TradeID   string `json:"trade_id"`
	Accepted  bool   `json:"accepted"`
	Responder string `json:"responder"`
}

// TradeCancelNotification is pushed to the counterpart when a pending
// trade is cancelled by disconnect or swept as stale.
type TradeCancelNotification struct {
	TradeID string `json:"trade_id"`
	Reason  string `json:"reason"`
}

type CollectionRequest struct {
	Username string `json:"username"`
}

type CollectionResponse struct {
	Username   string        `json:"username"`
	Collection []models.Card `json:"collection"`
}

// ServerTradeStatus is the terminal response for a trade operation,
// delivered to both parties.
type ServerTradeStatus struct {
	TradeID string `json:"trade_id,omitempty"`
	Success bool   `json:"success"`
	Message string `json:"message,omitempty"`
}
