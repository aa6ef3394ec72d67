package audit

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	log "github.com/sirupsen/logrus"
)

// Lifecycle event types, one per trade transition.
const (
	EventCreation     = "CREATION"
	EventAcceptance   = "ACCEPTANCE"
	EventRejection    = "REJECTION"
	EventCompletion   = "COMPLETION"
	EventFailure      = "FAILURE"
	EventCancellation = "CANCELLATION"
	EventExpiration   = "EXPIRATION"
	EventTransfer     = "TRANSFER"
)

type Event struct {
	Timestamp time.Time `json:"timestamp"`
	EventType string    `json:"event_type"`
	TradeID   string    `json:"trade_id"`
	Initiator string    `json:"initiator,omitempty"`
	Recipient string    `json:"recipient,omitempty"`
	Details   string    `json:"details,omitempty"`
}

// Logger is the append-only trade event trail. One file per server
// run, one JSON line per event, writes serialized by a mutex. It is a
// diagnostic sink only: write failures are swallowed and surfaced to
// the operator log, never to the trade that produced the event.
type Logger struct {
	mu   sync.Mutex
	file *os.File
}

// NewLogger opens a fresh event file under dir for this run.
func NewLogger(dir string) (*Logger, error) {
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("create audit dir: %w", err)
	}

	path := filepath.Join(dir, fmt.Sprintf("trade_events_%d.log", time.Now().Unix()))
	file, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0644)
	if err != nil {
		return nil, fmt.Errorf("open audit log: %w", err)
	}

	return &Logger{file: file}, nil
}

// Log appends one lifecycle event. Never fails the caller.
func (l *Logger) Log(eventType, tradeID, initiator, recipient, details string) {
	event := Event{
		Timestamp: time.Now(),
		EventType: eventType,
		TradeID:   tradeID,
		Initiator: initiator,
		Recipient: recipient,
		Details:   details,
	}

	data, err := json.Marshal(event)
	if err != nil {
		log.Errorf("Error marshalling audit event for trade %s: %v", tradeID, err)
		return
	}

	l.mu.Lock()
	defer l.mu.Unlock()
	if _, err := l.file.Write(append(data, '\n')); err != nil {
		log.Errorf("Error writing audit event for trade %s: %v", tradeID, err)
	}
}

func (l *Logger) Close() error {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.file.Close()
}
