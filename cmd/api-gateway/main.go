package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/ECE496-2022586/ECE496-Hyperledger-Fabric/internal/gateway"
	"github.com/ECE496-2022586/ECE496-Hyperledger-Fabric/pkg/config"
	"github.com/ECE496-2022586/ECE496-Hyperledger-Fabric/pkg/ledger"
	"github.com/ECE496-2022586/ECE496-Hyperledger-Fabric/pkg/logger"
	"github.com/ECE496-2022586/ECE496-Hyperledger-Fabric/pkg/monitoring"
)

func main() {
	// Load configuration
	cfg, err := config.Load()
	if err != nil {
		fmt.Printf("Failed to load configuration: %v\n", err)
		os.Exit(1)
	}

	// Initialize logger
	log := logger.New(cfg.LogLevel)
	log.WithComponent("api-gateway").Info("Starting consent-ledger gateway")

	// Open the ledger store
	var store *ledger.LevelStore
	if cfg.Ledger.InMemory {
		store, err = ledger.NewMemLevelStore()
	} else {
		store, err = ledger.OpenLevelStore(cfg.Ledger.Path)
	}
	if err != nil {
		log.WithError(err).Error("Failed to open ledger store")
		os.Exit(1)
	}
	defer store.Close()

	// Wire the service and HTTP surface
	var serviceStore ledger.Store = store
	if cfg.Monitoring.Enabled {
		serviceStore = monitoring.InstrumentStore(store)
	}
	service := gateway.NewService(serviceStore, cfg, log)
	handlers := gateway.NewHandlers(service, log)

	if cfg.LogLevel != "debug" {
		gin.SetMode(gin.ReleaseMode)
	}
	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(handlers.RequestLogger())
	if cfg.Monitoring.Enabled {
		router.Use(monitoring.MetricsMiddleware())
		router.GET(cfg.Monitoring.MetricsPath, monitoring.MetricsHandler())
	}
	router.GET(cfg.Monitoring.HealthPath, monitoring.HealthHandler(store))
	handlers.RegisterRoutes(router)

	server := &http.Server{
		Addr:         fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port),
		Handler:      router,
		ReadTimeout:  time.Duration(cfg.Server.ReadTimeout) * time.Second,
		WriteTimeout: time.Duration(cfg.Server.WriteTimeout) * time.Second,
		IdleTimeout:  time.Duration(cfg.Server.IdleTimeout) * time.Second,
	}

	go func() {
		log.WithComponent("api-gateway").Infof("Listening on %s", server.Addr)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.WithError(err).Error("HTTP server failed")
			os.Exit(1)
		}
	}()

	// Graceful shutdown
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	log.WithComponent("api-gateway").Info("Shutting down")

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := server.Shutdown(ctx); err != nil {
		log.WithError(err).Error("Forced shutdown")
	}
}
