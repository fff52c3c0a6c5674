package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"time"

	"go.uber.org/zap"

	"github.com/mbalde7/stockly/internal/config"
	"github.com/mbalde7/stockly/internal/repository/mongodb"
	"github.com/mbalde7/stockly/internal/repository/sheets"
	"github.com/mbalde7/stockly/internal/scheduler"
	"github.com/mbalde7/stockly/internal/server"
	"github.com/mbalde7/stockly/internal/server/handlers"
	"github.com/mbalde7/stockly/internal/server/router"
	inventoryclient "github.com/mbalde7/stockly/pkg/clients/inventory"
	"github.com/mbalde7/stockly/pkg/logger"
)

func main() {
	cfg, err := config.Load("")
	if err != nil {
		panic(err)
	}

	baseLogger := logger.Must(logger.New(cfg.Debug))
	defer func() { _ = baseLogger.Sync() }()

	zap.ReplaceGlobals(baseLogger)

	mongoRepo, err := mongodb.NewMongoDBRepository(context.Background(), cfg.MongoDB.URI, cfg.MongoDB.DBName)
	if err != nil {
		baseLogger.Fatal("failed to init mongodb repository", zap.Error(err))
	}
	defer func() {
		if err := mongoRepo.Close(context.Background()); err != nil {
			baseLogger.Error("failed to close mongodb connection", zap.Error(err))
		}
	}()

	invClient := inventoryclient.NewClient(cfg.Inventory)

	var exporter sheets.Exporter
	if cfg.SheetsEnabled() {
		exporter, err = sheets.NewGoogleSheetExporter(context.Background(), cfg.Sheets, baseLogger.Named("repo.sheets"))
		if err != nil {
			baseLogger.Fatal("failed to init sheets exporter", zap.Error(err))
		}
	} else {
		baseLogger.Warn("sheets export not configured, journal export disabled")
	}

	sched := scheduler.NewScheduler(cfg.Reconcile, mongoRepo, invClient, exporter, baseLogger.Named("scheduler"))
	sched.Start()
	defer sched.Stop()

	manager := server.NewWorkstationManager(invClient, mongoRepo, sched, cfg.Scan, cfg.Reconcile.RefreshDelay, baseLogger.Named("workstations"))

	scanHandler := handlers.NewScanHandler(manager, baseLogger.Named("handlers.scan"))
	mutationHandler := handlers.NewMutationHandler(manager, baseLogger.Named("handlers.mutation"))
	engine := router.New(scanHandler, mutationHandler, baseLogger.Named("router"))

	srv := &http.Server{
		Addr:         ":" + cfg.Server.Port,
		Handler:      engine,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 30 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	go func() {
		baseLogger.Info("server starting", zap.String("port", cfg.Server.Port))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			baseLogger.Fatal("http server crashed", zap.Error(err))
		}
	}()

	<-ctx.Done()
	baseLogger.Info("shutdown signal received")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		baseLogger.Error("graceful shutdown failed", zap.Error(err))
	}
}
