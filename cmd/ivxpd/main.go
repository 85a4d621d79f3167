package main

import (
	"context"
	"log"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/moltbook/ivxp/config"
	"github.com/moltbook/ivxp/internal/delivery"
	"github.com/moltbook/ivxp/internal/fulfill"
	handler "github.com/moltbook/ivxp/internal/handler/http"
	"github.com/moltbook/ivxp/internal/logger"
	"github.com/moltbook/ivxp/internal/middleware"
	"github.com/moltbook/ivxp/internal/repository"
	"github.com/moltbook/ivxp/internal/repository/memory"
	"github.com/moltbook/ivxp/internal/repository/postgres"
	"github.com/moltbook/ivxp/internal/service"
	"github.com/moltbook/ivxp/internal/verifier"
	"github.com/moltbook/ivxp/internal/worker"
	"go.uber.org/zap"
)

const (
	fulfillmentWorkers = 4
	fulfillmentBacklog = 64
	stubFulfillDelay   = 2 * time.Second
)

func main() {

	// create new config
	cfg, err := config.New()
	if err != nil {
		log.Fatalf("Error loading config: %v", err)
	}

	// initialize logger
	zl, err := logger.Initialize(cfg.LogLevel)
	if err != nil {
		log.Fatalf("Error initializing logger: %v", err)
	}
	defer zl.Sync()

	// create context
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// order store: postgres when a DSN is configured, in-memory otherwise
	var orderRepo service.OrderRepository
	var deliveryRepo delivery.OrderRepository

	if cfg.DatabaseDSN != "" {
		db, err := postgres.New(ctx, cfg.DatabaseDSN)
		if err != nil {
			zl.Fatal("Error initializing database", zap.Error(err))
		}
		defer db.Close()

		// migrate database
		if err := db.Migrate(); err != nil {
			zl.Fatal("Error migrating database", zap.Error(err))
		}

		repo := repository.NewOrderRepository(db)
		orderRepo, deliveryRepo = repo, repo
	} else {
		zl.Info("No database DSN configured, using in-memory order store")
		store := memory.NewOrderStore()
		orderRepo, deliveryRepo = store, store
	}

	// payment verifier
	vrf, err := verifier.New(cfg.RPCURL, cfg.Network)
	if err != nil {
		zl.Fatal("Error connecting to payment network", zap.Error(err))
	}

	provider := service.ProviderIdentity{
		AgentName:     cfg.AgentName,
		WalletAddress: cfg.WalletAddress,
		Network:       cfg.Network,
		TokenContract: cfg.TokenContract,
	}

	// dependency injection
	catalogService := service.NewCatalogService()
	pusher := delivery.NewPusher(cfg.AgentName, cfg.WalletAddress)
	deliverer := delivery.NewDeliverer(deliveryRepo, pusher)
	orderService := service.NewOrderService(orderRepo, catalogService, vrf, fulfill.NewStub(stubFulfillDelay), deliverer, provider)

	// fulfillment worker pool
	pool := worker.NewFulfillmentPool(ctx, orderService, fulfillmentWorkers, fulfillmentBacklog, nil)
	defer pool.Shutdown()
	orderService.SetFulfillmentQueue(pool)

	orderHandler := handler.NewOrderHandler(orderService, provider)
	catalogHandler := handler.NewCatalogHandler(catalogService, provider)

	router := chi.NewRouter()

	router.Use(middleware.Logging(zl))

	router.Post("/ivxp/request", orderHandler.RequestService())
	router.Post("/ivxp/deliver", orderHandler.RequestDelivery())
	router.Get("/ivxp/status/{orderID}", orderHandler.OrderStatus())
	router.Get("/ivxp/download/{orderID}", orderHandler.Download())
	router.Get("/ivxp/catalog", catalogHandler.Catalog())

	zl.Info("Running provider server",
		zap.String("addr", cfg.ServerAddr),
		zap.String("agent", cfg.AgentName),
		zap.String("network", cfg.Network))

	if err := http.ListenAndServe(cfg.ServerAddr, router); err != nil {
		zl.Fatal("Error starting server", zap.Error(err))
	}
}
