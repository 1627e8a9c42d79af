// Package main runs the lottery purchase layer: round pricing, purchase
// quotes and the approve-then-confirm buy flow over HTTP.
package main

import (
	"context"
	"database/sql"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	_ "github.com/lib/pq"

	app "github.com/CakeLotto/purchase_layer/internal/app"
	"github.com/CakeLotto/purchase_layer/internal/app/httpapi"
	"github.com/CakeLotto/purchase_layer/internal/app/metrics"
	"github.com/CakeLotto/purchase_layer/internal/app/storage"
	"github.com/CakeLotto/purchase_layer/internal/app/storage/postgres"
	"github.com/CakeLotto/purchase_layer/internal/chain"
	"github.com/CakeLotto/purchase_layer/internal/config"
	"github.com/CakeLotto/purchase_layer/pkg/logger"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "purchaselayer: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("validate config: %w", err)
	}

	log := logger.New(logger.LoggingConfig{
		Level:  cfg.Logging.Level,
		Format: cfg.Logging.Format,
		Output: cfg.Logging.Output,
	})

	client, err := chain.NewClient(chain.Config{
		RPCURL:    cfg.Chain.RPCURL,
		NetworkID: cfg.Chain.NetworkID,
		Timeout:   cfg.Chain.Timeout,
	})
	if err != nil {
		return fmt.Errorf("chain client: %w", err)
	}

	token := chain.NewTokenContract(client, cfg.Chain.TokenHash, cfg.Chain.TokenDecimals)
	lotteryContract := chain.NewLotteryContract(client, cfg.Chain.LotteryHash, cfg.Chain.TokenDecimals)

	stores, db, err := buildStores(cfg, log)
	if err != nil {
		return fmt.Errorf("configure stores: %w", err)
	}
	if db != nil {
		defer db.Close()
	}

	application, err := app.New(app.Config{
		Account:                cfg.Purchase.Account,
		Spender:                cfg.Chain.LotteryHash,
		UnlimitedApproval:      cfg.Purchase.UnlimitedApproval,
		RoundRefreshSpec:       cfg.Purchase.RoundRefreshSpec,
		BalanceRefreshInterval: cfg.Purchase.BalanceRefreshInterval,
	}, stores, token, lotteryContract, log)
	if err != nil {
		return fmt.Errorf("build application: %w", err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := application.Start(ctx); err != nil {
		return fmt.Errorf("start services: %w", err)
	}

	if pending, err := application.Purchases.ListUnfinished(ctx); err != nil {
		log.WithError(err).Warn("query unfinished purchase attempts")
	} else if len(pending) > 0 {
		log.Infof("%d purchase attempts awaiting approval or confirmation", len(pending))
	}

	mux := http.NewServeMux()
	mux.Handle("/metrics", metrics.Handler())
	mux.Handle("/", metrics.InstrumentHandler(httpapi.NewHandler(application)))

	server := &http.Server{
		Addr:         fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port),
		Handler:      mux,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
	}

	errCh := make(chan error, 1)
	go func() {
		log.Infof("HTTP server listening on %s", server.Addr)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errCh <- err
		}
	}()

	select {
	case <-ctx.Done():
		log.Info("shutdown signal received")
	case err := <-errCh:
		return fmt.Errorf("http server: %w", err)
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer cancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		log.WithError(err).Warn("http server shutdown error")
	}
	if err := application.Stop(shutdownCtx); err != nil {
		log.WithError(err).Warn("service shutdown error")
	}

	log.Info("purchase layer stopped")
	return nil
}

// buildStores selects the persistence backend. An empty DSN keeps the
// default in-memory store; app.New fills that in.
func buildStores(cfg *config.Config, log *logger.Logger) (app.Stores, *sql.DB, error) {
	if cfg.Database.DSN == "" {
		log.Info("no database configured, using in-memory purchase store")
		return app.Stores{}, nil, nil
	}

	db, err := openDatabase(cfg.Database)
	if err != nil {
		return app.Stores{}, nil, err
	}

	if _, err := db.Exec(postgres.Schema); err != nil {
		db.Close()
		return app.Stores{}, nil, fmt.Errorf("apply schema: %w", err)
	}

	var store storage.PurchaseStore = postgres.New(db)
	return app.Stores{Purchases: store}, db, nil
}

func openDatabase(cfg config.DatabaseConfig) (*sql.DB, error) {
	if cfg.Driver == "" {
		return nil, fmt.Errorf("database driver not configured")
	}

	db, err := sql.Open(cfg.Driver, cfg.DSN)
	if err != nil {
		return nil, err
	}

	if cfg.MaxOpenConns > 0 {
		db.SetMaxOpenConns(cfg.MaxOpenConns)
	}
	if cfg.MaxIdleConns > 0 {
		db.SetMaxIdleConns(cfg.MaxIdleConns)
	}
	if cfg.ConnMaxLifetime > 0 {
		db.SetConnMaxLifetime(time.Duration(cfg.ConnMaxLifetime) * time.Second)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, err
	}

	return db, nil
}
