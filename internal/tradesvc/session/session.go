package session

import (
	"errors"
	"sync"

	"github.com/cardex/cardex-services/internal/comm"
	"github.com/cardex/cardex-services/internal/tradesvc/models"
	"github.com/cardex/cardex-services/internal/tradesvc/service"
	"github.com/cardex/cardex-services/internal/tradesvc/store"
	"github.com/google/uuid"
	log "github.com/sirupsen/logrus"
)

// Session is the server side of one client connection. It runs a
// single receive loop: read one record, dispatch, write back exactly
// one response (unsolicited notifications from other sessions are
// interleaved under the write mutex). Lifecycle is
// unauthenticated -> authenticated -> closed.
type Session struct {
	ID   string
	conn Conn

	auth    *service.AuthService
	trades  *service.TradeService
	custody *store.CustodyStore
	reg     *Registry

	writeMu sync.Mutex

	mu       sync.Mutex
	username string          // empty until login succeeds
	pending  map[string]bool // trade IDs this session awaits an outcome for
}

func New(conn Conn, auth *service.AuthService, trades *service.TradeService,
	custody *store.CustodyStore, reg *Registry) *Session {
	return &Session{
		ID:      uuid.New().String(),
		conn:    conn,
		auth:    auth,
		trades:  trades,
		custody: custody,
		reg:     reg,
		pending: make(map[string]bool),
	}
}

// Run drives the receive loop until the connection closes or a
// protocol violation terminates it, then runs teardown. Intended to be
// called on its own goroutine, one per connection.
func (s *Session) Run() {
	defer s.teardown()

	log.Infof("session %s connected from %s", s.ID, s.conn.RemoteAddr())
	for {
		line, err := s.conn.ReadLine()
		if err != nil {
			log.Infof("session %s read ended: %v", s.ID, err)
			return
		}
		if line == "" {
			continue
		}

		payload, err := comm.Decode(line)
		if err != nil {
			// Malformed or unknown record: the stream can no longer be
			// trusted, terminate the session.
			log.Errorf("session %s protocol error: %v", s.ID, err)
			return
		}

		s.dispatch(payload)
	}
}

// Send delivers an unsolicited message to this session's client. Safe
// from any goroutine.
func (s *Session) Send(payload any) error {
	line, err := comm.Encode(payload)
	if err != nil {
		return err
	}

	s.writeMu.Lock()
	defer s.writeMu.Unlock()
	return s.conn.WriteLine(line)
}

// Username returns the authenticated identity, empty before login.
func (s *Session) Username() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.username
}

// AddPending registers a trade this session awaits an outcome for; it
// will be cancelled if the session disconnects first.
func (s *Session) AddPending(tradeID string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.pending[tradeID] = true
}

// RemovePending forgets a trade that reached a terminal state.
func (s *Session) RemovePending(tradeID string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.pending, tradeID)
}

func (s *Session) dispatch(payload any) {
	if s.Username() == "" {
		// Only the credential check is reachable before login.
		if login, ok := payload.(*comm.LoginRequest); ok {
			s.handleLogin(login)
			return
		}
		s.reply(&comm.ServerTradeStatus{Success: false, Message: "not authenticated"})
		return
	}

	switch msg := payload.(type) {
	case *comm.LoginRequest:
		s.reply(&comm.LoginResponse{Success: false, Message: "already logged in"})
	case *comm.CollectionRequest:
		s.handleCollection(msg)
	case *comm.TradeInitiateRequest:
		s.handleInitiate(msg)
	case *comm.TradeResponse:
		s.handleResponse(msg)
	default:
		log.Warnf("session %s sent server-only message %T", s.ID, payload)
		s.reply(&comm.ServerTradeStatus{Success: false, Message: "unexpected message"})
	}
}

func (s *Session) handleLogin(req *comm.LoginRequest) {
	if !s.auth.Authenticate(req.Username, req.Password) {
		log.Warnf("session %s failed login for %s", s.ID, req.Username)
		s.reply(&comm.LoginResponse{Success: false, Message: "invalid credentials"})
		return
	}

	s.mu.Lock()
	s.username = req.Username
	s.mu.Unlock()

	if old := s.reg.Register(req.Username, s); old != nil {
		old.conn.Close()
	}

	log.Infof("session %s authenticated as %s", s.ID, req.Username)
	s.reply(&comm.LoginResponse{Success: true, Username: req.Username})
}

func (s *Session) handleCollection(req *comm.CollectionRequest) {
	s.reply(&comm.CollectionResponse{
		Username:   req.Username,
		Collection: s.custody.GetCards(req.Username),
	})
}

func (s *Session) handleInitiate(req *comm.TradeInitiateRequest) {
	if req.Sender != s.Username() {
		s.reply(&comm.ServerTradeStatus{Success: false, Message: "sender does not match session user"})
		return
	}

	recipient, online := s.reg.Get(req.Recipient)
	if !online {
		s.reply(&comm.ServerTradeStatus{Success: false, Message: "recipient is not connected"})
		return
	}

	trade, offered, err := s.trades.Initiate(req.Sender, req.Recipient, req.OfferedCards)
	if err != nil {
		s.reply(&comm.ServerTradeStatus{Success: false, Message: err.Error()})
		return
	}

	s.AddPending(trade.TradeID)
	recipient.AddPending(trade.TradeID)

	if err := recipient.Send(&comm.TradeOfferNotification{
		TradeID:      trade.TradeID,
		Sender:       trade.Initiator,
		OfferedCards: offered,
		Stage:        "offered",
	}); err != nil {
		// Recipient vanished between the directory lookup and the
		// push; its teardown will cancel the trade.
		log.Errorf("Error delivering trade offer %s to %s: %v", trade.TradeID, req.Recipient, err)
	}

	s.reply(&comm.ServerTradeStatus{
		TradeID: trade.TradeID,
		Success: true,
		Message: "trade offer sent to " + req.Recipient,
	})
}

func (s *Session) handleResponse(req *comm.TradeResponse) {
	responder := s.Username()
	if req.Responder != "" && req.Responder != responder {
		s.reply(&comm.ServerTradeStatus{TradeID: req.TradeID, Success: false, Message: "responder does not match session user"})
		return
	}

	trade, message, err := s.trades.Respond(req.TradeID, responder, req.Accepted)
	if err != nil {
		s.reply(&comm.ServerTradeStatus{TradeID: req.TradeID, Success: false, Message: respondError(err)})
		return
	}

	s.RemovePending(trade.TradeID)
	s.forgetAtCounterpart(trade.Initiator, trade.TradeID)

	outcome := &comm.ServerTradeStatus{
		TradeID: trade.TradeID,
		Success: trade.Status == models.TradeCompleted,
		Message: message,
	}
	s.reg.Notify(trade.Initiator, outcome)
	s.reply(outcome)
}

// teardown runs exactly once when the receive loop exits: leave the
// directory, cancel every trade still awaiting this session, and tell
// any live counterpart.
func (s *Session) teardown() {
	s.conn.Close()

	s.mu.Lock()
	username := s.username
	pending := make([]string, 0, len(s.pending))
	for id := range s.pending {
		pending = append(pending, id)
	}
	s.pending = make(map[string]bool)
	s.mu.Unlock()

	if username != "" {
		s.reg.Unregister(username, s)
	}

	for _, tradeID := range pending {
		trade, cancelled := s.trades.Cancel(tradeID, "participant disconnected")
		if !cancelled {
			continue
		}

		counterpart := trade.Initiator
		if counterpart == username {
			counterpart = trade.Recipient
		}
		s.forgetAtCounterpart(counterpart, tradeID)
		s.reg.Notify(counterpart, &comm.TradeCancelNotification{
			TradeID: tradeID,
			Reason:  username + " disconnected",
		})
	}

	log.Infof("session %s closed (user %q, cancelled %d pending trade(s))", s.ID, username, len(pending))
}

// forgetAtCounterpart drops the trade from the other party's pending
// set so their teardown does not re-cancel a settled trade.
func (s *Session) forgetAtCounterpart(username, tradeID string) {
	if other, ok := s.reg.Get(username); ok && other != s {
		other.RemovePending(tradeID)
	}
}

func (s *Session) reply(payload any) {
	if err := s.Send(payload); err != nil {
		log.Errorf("session %s write failed: %v", s.ID, err)
	}
}

func respondError(err error) string {
	switch {
	case errors.Is(err, store.ErrNotFound):
		return "trade not found"
	case errors.Is(err, service.ErrWrongResponder):
		return "only the trade recipient may respond"
	case errors.Is(err, service.ErrWrongState):
		return "trade is no longer open"
	}
	return err.Error()
}
