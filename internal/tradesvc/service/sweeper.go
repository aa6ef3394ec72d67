package service

import (
	"context"
	"time"

	"github.com/cardex/cardex-services/internal/comm"
	"github.com/cardex/cardex-services/internal/tradesvc/store"
	log "github.com/sirupsen/logrus"
)

// Notifier pushes an unsolicited message to a user's live session.
// Delivery is best effort; false means the user has no session.
type Notifier interface {
	Notify(username string, payload any) bool
}

// Sweeper is the periodic background task: it expires stale pending
// trades and runs the custody integrity check.
type Sweeper struct {
	trades   *TradeService
	custody  *store.CustodyStore
	notifier Notifier
	interval time.Duration
	maxAge   time.Duration
}

func NewSweeper(trades *TradeService, custody *store.CustodyStore,
	notifier Notifier, interval, maxAge time.Duration) *Sweeper {
	return &Sweeper{
		trades:   trades,
		custody:  custody,
		notifier: notifier,
		interval: interval,
		maxAge:   maxAge,
	}
}

// Run blocks until ctx is cancelled, sweeping once per interval.
func (s *Sweeper) Run(ctx context.Context) {
	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	log.Infof("trade sweeper running: interval %s, max pending age %s", s.interval, s.maxAge)
	for {
		select {
		case <-ctx.Done():
			log.Info("trade sweeper stopped")
			return
		case <-ticker.C:
			s.Sweep()
		}
	}
}

// Sweep runs one pass. Exposed for tests and for a final sweep at
// shutdown.
func (s *Sweeper) Sweep() {
	expired := s.trades.ExpireStale(s.maxAge)
	for _, trade := range expired {
		notice := &comm.TradeCancelNotification{
			TradeID: trade.TradeID,
			Reason:  "trade expired",
		}
		s.notifier.Notify(trade.Initiator, notice)
		s.notifier.Notify(trade.Recipient, notice)
	}
	if len(expired) > 0 {
		log.Infof("sweep expired %d stale trade(s)", len(expired))
	}

	if dup := s.custody.VerifyIntegrity(); len(dup) > 0 {
		log.Errorf("custody integrity check found %d duplicated card(s): %v", len(dup), dup)
	}
}
