package broker

import (
	"encoding/json"
	"time"

	"github.com/nats-io/nats.go"
	log "github.com/sirupsen/logrus"
)

const tradeEventsTopic = "trade.events"

// TradeEvent is the operator-channel mirror of a trade lifecycle
// transition.
type TradeEvent struct {
	Event     string    `json:"event"`
	TradeID   string    `json:"trade_id"`
	Initiator string    `json:"initiator,omitempty"`
	Recipient string    `json:"recipient,omitempty"`
	Details   string    `json:"details,omitempty"`
	Timestamp time.Time `json:"timestamp"`
}

// Broker publishes trade lifecycle events to NATS for operators. It is
// optional: a nil *Broker is a valid, disabled broker, and publish
// failures never propagate to the trade that produced the event.
type Broker struct {
	Conn *nats.Conn
}

func NewBroker(conn *nats.Conn) *Broker {
	return &Broker{Conn: conn}
}

// PublishTradeEvent mirrors one lifecycle transition to the operator
// channel. Best effort only.
func (b *Broker) PublishTradeEvent(event, tradeID, initiator, recipient, details string) {
	if b == nil || b.Conn == nil {
		return
	}

	payload, err := json.Marshal(TradeEvent{
		Event:     event,
		TradeID:   tradeID,
		Initiator: initiator,
		Recipient: recipient,
		Details:   details,
		Timestamp: time.Now(),
	})
	if err != nil {
		log.Errorf("Error marshalling trade event %s: %v", tradeID, err)
		return
	}

	if err := b.Conn.Publish(tradeEventsTopic, payload); err != nil {
		log.Errorf("Error publishing to topic %s: %s", tradeEventsTopic, err)
	}
}
