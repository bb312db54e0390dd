package main

import (
	"context"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/robfig/cron/v3"
	"golang.org/x/sync/errgroup"

	"albion-market/internal/albion"
	"albion-market/internal/api"
	"albion-market/internal/catalog"
	"albion-market/internal/config"
	"albion-market/internal/db"
	"albion-market/internal/engine"
	"albion-market/internal/logger"
)

var version = "dev"

func main() {
	cfg := config.Load()
	port := flag.Int("port", cfg.Port, "HTTP server port")
	dbPath := flag.String("db", cfg.DBPath, "SQLite database path")
	flag.Parse()

	logger.SetLevel(cfg.LogLevel)
	logger.Banner(version)

	database, err := db.Open(*dbPath)
	if err != nil {
		logger.Error("DB", fmt.Sprintf("Failed to open database: %v", err))
		os.Exit(1)
	}
	defer database.Close()

	cfg.Refine = database.LoadRefineSettings(cfg.Refine)
	if _, err := engine.ParseResourceType(cfg.Refine.ResourceType); err != nil {
		logger.Warn("Config", fmt.Sprintf("Saved refine settings invalid (%v), using defaults", err))
		cfg.Refine = config.DefaultRefineSettings()
	}

	client := albion.NewClient(albion.Options{
		CatalogURL:     cfg.CatalogURL,
		PriceTTL:       cfg.PriceTTL,
		RequestsPerSec: cfg.RequestsPerSec,
		Burst:          cfg.RequestBurst,
		Timeout:        cfg.HTTPTimeout,
	})

	items := catalog.New(client, database, cfg.CatalogTTL)
	items.LoadStored()

	table := engine.NewPriceTable(cfg.Refine)
	poller := engine.NewPoller(engine.NewSynchronizer(client), table, cfg.HTTPTimeout)

	logger.Section("Startup")
	startCtx, cancel := context.WithTimeout(context.Background(), 2*cfg.HTTPTimeout)
	var g errgroup.Group
	g.Go(func() error {
		return items.Refresh(startCtx)
	})
	g.Go(func() error {
		_, _, err := poller.SyncNow(startCtx)
		return err
	})
	if err := g.Wait(); err != nil {
		logger.Warn("Startup", fmt.Sprintf("Continuing with cached data: %v", err))
	}
	cancel()
	logger.Stats("Catalog items", items.Len())

	sched := cron.New()
	if _, err := sched.AddFunc(cfg.CatalogSchedule, func() {
		ctx, cancel := context.WithTimeout(context.Background(), 2*cfg.HTTPTimeout)
		defer cancel()
		items.Refresh(ctx)
	}); err != nil {
		logger.Error("Cron", fmt.Sprintf("Catalog schedule %q: %v", cfg.CatalogSchedule, err))
		os.Exit(1)
	}
	if _, err := poller.Schedule(sched, cfg.PriceSchedule); err != nil {
		logger.Error("Cron", err.Error())
		os.Exit(1)
	}
	sched.Start()
	defer sched.Stop()

	srv := api.NewServer(cfg, items, client, table, poller, database)
	addr := fmt.Sprintf("127.0.0.1:%d", *port)
	httpSrv := &http.Server{
		Addr:              addr,
		Handler:           srv.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		stop := make(chan os.Signal, 1)
		signal.Notify(stop, os.Interrupt, syscall.SIGTERM)
		<-stop
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		httpSrv.Shutdown(ctx)
	}()

	logger.Server(addr)
	if err := httpSrv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		logger.Error("Server", fmt.Sprintf("Failed: %v", err))
		os.Exit(1)
	}
}
