package server

import (
	"context"
	"errors"
	"net"

	"github.com/cardex/cardex-services/internal/tradesvc/service"
	"github.com/cardex/cardex-services/internal/tradesvc/session"
	"github.com/cardex/cardex-services/internal/tradesvc/store"
	log "github.com/sirupsen/logrus"
)

// Server accepts raw TCP clients speaking the line protocol, one
// session goroutine per connection.
type Server struct {
	auth    *service.AuthService
	trades  *service.TradeService
	custody *store.CustodyStore
	reg     *session.Registry

	listener net.Listener
}

func New(auth *service.AuthService, trades *service.TradeService,
	custody *store.CustodyStore, reg *session.Registry) *Server {
	return &Server{
		auth:    auth,
		trades:  trades,
		custody: custody,
		reg:     reg,
	}
}

// ListenAndServe accepts connections until ctx is cancelled.
func (s *Server) ListenAndServe(ctx context.Context, addr string) error {
	listener, err := net.Listen("tcp", addr)
	if err != nil {
		return err
	}
	s.listener = listener
	log.Infof("trade service listening on %s", addr)

	go func() {
		<-ctx.Done()
		listener.Close()
	}()

	for {
		conn, err := listener.Accept()
		if err != nil {
			if ctx.Err() != nil || errors.Is(err, net.ErrClosed) {
				return nil
			}
			log.Errorf("Error accepting connection: %v", err)
			continue
		}

		sess := session.New(session.NewTCPConn(conn), s.auth, s.trades, s.custody, s.reg)
		go sess.Run()
	}
}
