package main

import (
	"context"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog"
	"github.com/sourcegraph/conc"

	httpapi "github.com/keyvend/keyvend/internal/api/http"
	appdispatcher "github.com/keyvend/keyvend/internal/application/dispatcher"
	appledger "github.com/keyvend/keyvend/internal/application/ledger"
	apppayment "github.com/keyvend/keyvend/internal/application/payment"
	appstock "github.com/keyvend/keyvend/internal/application/stock"
	apptrade "github.com/keyvend/keyvend/internal/application/trade"
	"github.com/keyvend/keyvend/internal/config"
	domledger "github.com/keyvend/keyvend/internal/domain/ledger"
	dompayment "github.com/keyvend/keyvend/internal/domain/payment"
	"github.com/keyvend/keyvend/internal/domain/trade"
	"github.com/keyvend/keyvend/internal/infrastructure/memstore"
	"github.com/keyvend/keyvend/internal/infrastructure/postgres"
	"github.com/keyvend/keyvend/internal/infrastructure/simnet"
)

func main() {
	logger := zerolog.New(os.Stdout).With().Timestamp().Logger()

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("config error: %v", err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// counter store + order repository
	var store domledger.Store
	var orderRepo dompayment.OrderRepository
	if cfg.StoreDriver == "memory" {
		store = memstore.New()
		orderRepo = memstore.NewOrderRepository()
		logger.Warn().Msg("using in-memory store, counters will not survive a restart")
	} else {
		pool, err := postgres.NewPool(ctx, cfg.DatabaseURL)
		if err != nil {
			log.Fatalf("db error: %v", err)
		}
		defer pool.Close()
		if err := postgres.RunMigrations(ctx, pool, "internal/migrations"); err != nil {
			log.Fatalf("migration error: %v", err)
		}
		store = postgres.NewCounterStore(pool)
		orderRepo = postgres.NewOrderRepository(pool)
	}

	// external collaborators
	network := simnet.New(cfg.SellableItemName, cfg.SimInventory, logger)
	provider := simnet.NewProvider(cfg.CheckoutBaseURL, logger)

	// services
	ledgerSvc := appledger.NewService(store, logger)
	stockSvc := appstock.NewService(network, network, ledgerSvc, cfg.SellableItemName, cfg.DisplayName, logger)
	tradeSvc := apptrade.NewService(network, network, ledgerSvc, stockSvc, cfg.Admins, cfg.SellableItemName, logger)
	paymentSvc := apppayment.NewService(ledgerSvc, orderRepo, provider, network, cfg.RequiredConfirmations, cfg.OrderTTL, logger)
	dispatcherSvc := appdispatcher.NewService(ledgerSvc, stockSvc, paymentSvc, network, cfg.Admins, cfg.KeyPrice, cfg.PriceCurrency, logger)

	// API server
	apiServer := httpapi.NewServer(paymentSvc, cfg.CallbackSecret, logger)
	httpServer := &http.Server{
		Addr:         cfg.ServerAddr,
		Handler:      apiServer.Router(),
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 30 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	var wg conc.WaitGroup

	// trading-network event pump: one routine per inbound event
	wg.Go(func() {
		var handlers conc.WaitGroup
		defer handlers.Wait()
		for ev := range network.Events() {
			ev := ev
			handlers.Go(func() { handleEvent(ctx, ev, tradeSvc, dispatcherSvc, logger) })
		}
	})

	// advertised stock refresh
	wg.Go(func() {
		ticker := time.NewTicker(cfg.StatusRefreshInterval)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				if _, err := stockSvc.Refresh(ctx); err != nil {
					logger.Warn().Err(err).Msg("periodic stock refresh failed")
				}
			}
		}
	})

	// unpaid checkout order expiry sweep
	wg.Go(func() {
		ticker := time.NewTicker(time.Minute)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				if _, err := paymentSvc.ExpireOrders(ctx); err != nil {
					logger.Warn().Err(err).Msg("order expiry sweep failed")
				}
			}
		}
	})

	// start server
	go func() {
		logger.Info().Str("addr", cfg.ServerAddr).Msg("callback server started")
		if err := httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Fatal().Err(err).Msg("callback server failed")
		}
	}()

	if _, err := stockSvc.Refresh(ctx); err != nil {
		logger.Warn().Err(err).Msg("initial stock refresh failed")
	}
	logger.Info().Msg("agent is ready now")

	// graceful shutdown
	<-ctx.Done()
	ctxShutdown, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	_ = httpServer.Shutdown(ctxShutdown)
	network.Close()
	wg.Wait()
}

func handleEvent(
	ctx context.Context,
	ev trade.Event,
	tradeSvc *apptrade.Service,
	dispatcherSvc *appdispatcher.Service,
	logger zerolog.Logger,
) {
	var err error
	switch ev.Type {
	case trade.EventMessage:
		dispatcherSvc.HandleMessage(ctx, ev.Peer, ev.Text)
	case trade.EventFriendRequest:
		dispatcherSvc.HandleFriendRequest(ctx, ev.Peer)
	case trade.EventSessionStarted:
		err = tradeSvc.HandleSessionStarted(ctx, ev.Peer)
	case trade.EventPeerReady:
		err = tradeSvc.HandlePeerReady(ctx, ev.Peer)
	case trade.EventTradeProposed:
		err = tradeSvc.HandleTradeProposed(ctx, ev.TradeRef, ev.Peer)
	case trade.EventSessionEnded:
		err = tradeSvc.HandleSessionEnded(ctx, ev.Peer, ev.Outcome)
	default:
		logger.Warn().Str("type", string(ev.Type)).Msg("unknown network event")
	}
	if err != nil {
		logger.Error().Err(err).Str("type", string(ev.Type)).Str("peer", ev.Peer).Msg("event handling failed")
	}
}
