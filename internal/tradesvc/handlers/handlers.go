package handlers

import (
	"encoding/json"
	"net/http"
	"os"

	"github.com/cardex/cardex-services/internal/tradesvc/service"
	"github.com/cardex/cardex-services/internal/tradesvc/session"
	"github.com/cardex/cardex-services/internal/tradesvc/store"
	"github.com/gorilla/websocket"
	log "github.com/sirupsen/logrus"
)

// Handler hosts the websocket entry point. A websocket client speaks
// the same line protocol as a TCP client, one record per text frame.
type Handler struct {
	upgrader websocket.Upgrader

	auth    *service.AuthService
	trades  *service.TradeService
	custody *store.CustodyStore
	reg     *session.Registry
}

type Response struct {
	Message string `json:"message"`
	Code    int    `json:"code"`
}

func NewHandler(auth *service.AuthService, trades *service.TradeService,
	custody *store.CustodyStore, reg *session.Registry) *Handler {
	return &Handler{
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin:     func(r *http.Request) bool { return true },
		},
		auth:    auth,
		trades:  trades,
		custody: custody,
		reg:     reg,
	}
}

func (h *Handler) HandleWebSocket(w http.ResponseWriter, r *http.Request) {
	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Errorf("Failed to upgrade to WebSocket: %v", err)
		http.Error(w, "Failed to upgrade to WebSocket", http.StatusInternalServerError)
		return
	}

	sess := session.New(session.NewWSConn(conn), h.auth, h.trades, h.custody, h.reg)
	log.Infof("new WebSocket session %s from %s", sess.ID, r.RemoteAddr)
	go sess.Run()
}

func (h *Handler) HealthHandler(w http.ResponseWriter, r *http.Request) {
	rsp := Response{
		Message: "trade service is running at port " + os.Getenv("TRADE_HTTP_PORT"),
		Code:    200,
	}
	if err := json.NewEncoder(w).Encode(rsp); err != nil {
		log.Errorf("Failed to encode health response: %v", err)
	}
}
