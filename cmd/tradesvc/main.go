package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"strconv"
	"time"

	"github.com/go-chi/chi"
	"github.com/go-chi/chi/middleware"
	"github.com/go-chi/httprate"
	log "github.com/sirupsen/logrus"

	config "github.com/cardex/cardex-services/configs"
	"github.com/cardex/cardex-services/internal/nats"
	"github.com/cardex/cardex-services/internal/tradesvc/audit"
	"github.com/cardex/cardex-services/internal/tradesvc/broker"
	"github.com/cardex/cardex-services/internal/tradesvc/handlers"
	"github.com/cardex/cardex-services/internal/tradesvc/server"
	"github.com/cardex/cardex-services/internal/tradesvc/service"
	"github.com/cardex/cardex-services/internal/tradesvc/session"
	"github.com/cardex/cardex-services/internal/tradesvc/store"
)

const SERVICE_NAME = "trade"

func init() {
	instanceId := "001"
	config.Logging(SERVICE_NAME + "_service_" + instanceId)
	config.LoadEnv(SERVICE_NAME)
}

func main() {
	dataDir := os.Getenv("DATA_DIR")
	if dataDir == "" {
		dataDir = "./data"
	}
	if err := os.MkdirAll(dataDir, 0755); err != nil {
		log.Fatalf("Failed to create data dir %s: %v", dataDir, err)
	}

	// Stores load their snapshots from the previous run.
	custodyStore, err := store.NewCustodyStore(filepath.Join(dataDir, "collections.json"))
	if err != nil {
		log.Fatalf("Failed to load custody store: %v", err)
	}

	ledgerStore, err := store.NewLedgerStore(filepath.Join(dataDir, "trades.json"))
	if err != nil {
		log.Fatalf("Failed to load trade ledger: %v", err)
	}
	ledgerStore.RecoverOrphans()

	userStore, err := store.NewUserStore(filepath.Join(dataDir, "users.json"))
	if err != nil {
		log.Fatalf("Failed to load user store: %v", err)
	}

	auditLog, err := audit.NewLogger(filepath.Join(dataDir, "audit"))
	if err != nil {
		log.Fatalf("Failed to open audit log: %v", err)
	}
	defer auditLog.Close()

	// Optional operator event channel.
	n, err := nats.Connect()
	if err != nil {
		log.Errorf("Error: unable to connect to NATS server %v", err)
		os.Exit(0)
	}
	var events *broker.Broker
	if n != nil {
		defer n.Conn.Close()
		events = broker.NewBroker(n.Conn)
		log.Printf("NATS connection established successfully %s", n.Url)
	}

	lockManager := service.NewLockManager()
	authService := service.NewAuthService(userStore)
	tradeService := service.NewTradeService(ledgerStore, custodyStore, lockManager, auditLog, events)
	registry := session.NewRegistry()

	ctx, stopServices := context.WithCancel(context.Background())
	defer stopServices()

	// Background sweep: stale trades and custody integrity.
	sweeper := service.NewSweeper(tradeService, custodyStore, registry,
		config.GetDuration("SWEEP_INTERVAL_MS", 30*time.Second),
		config.GetDuration("TRADE_TTL_MS", 5*time.Minute))
	go sweeper.Run(ctx)

	// TCP line-protocol listener.
	tcpAddr := ":" + os.Getenv("TRADE_SERVICE_PORT")
	if tcpAddr == ":" {
		tcpAddr = ":9230"
	}
	tcpServer := server.New(authService, tradeService, custodyStore, registry)
	go func() {
		if err := tcpServer.ListenAndServe(ctx, tcpAddr); err != nil {
			log.Fatalf("ListenAndServe(): %v", err)
		}
	}()

	// Setup router
	r := chi.NewRouter()
	c := config.CORS()

	// Middleware
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(config.CustomLoggerMiddleware())
	r.Use(c.Handler)

	// to protect the service api from any over requests
	rateLimit := 120
	if v := os.Getenv("RATE_LIMIT"); v != "" {
		rateLimit, err = strconv.Atoi(v)
		if err != nil {
			log.Fatalf("Invalid RATE_LIMIT value: %v", err)
		}
	}
	r.Use(httprate.LimitByIP(rateLimit, 1*time.Minute))

	h := handlers.NewHandler(authService, tradeService, custodyStore, registry)
	handlers.SetRoutes(r, h)

	httpServer := &http.Server{
		Addr:         ":" + os.Getenv("TRADE_HTTP_PORT"),
		Handler:      r,
		ReadTimeout:  60 * time.Second,
		WriteTimeout: 60 * time.Second,
		IdleTimeout:  60 * time.Second,
	}
	if httpServer.Addr == ":" {
		httpServer.Addr = ":8230"
	}

	go func() {
		if err := httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("ListenAndServe(): %v", err)
		}
	}()
	log.Infof("%s service running at %s (tcp) and %s (ws)", SERVICE_NAME, tcpAddr, httpServer.Addr)

	// Wait for interrupt signal to gracefully shutdown the server
	stop := make(chan os.Signal, 1)
	signal.Notify(stop, os.Interrupt)
	<-stop

	stopServices()

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()

	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		log.Fatalf("%s service shutdown Failed:%+v", SERVICE_NAME, err)
	}
	log.Infof("%s service gracefully stopped", SERVICE_NAME)
}
