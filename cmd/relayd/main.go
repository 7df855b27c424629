// relayd serves the cross-chain message relay API.
package main

import (
	"context"
	"database/sql"
	"flag"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	app "github.com/R3E-Network/relay_layer/internal/app"
	"github.com/R3E-Network/relay_layer/internal/app/httpapi"
	relaysvc "github.com/R3E-Network/relay_layer/internal/app/services/relay"
	"github.com/R3E-Network/relay_layer/internal/app/storage/postgres"
	"github.com/R3E-Network/relay_layer/internal/chain"
	"github.com/R3E-Network/relay_layer/internal/config"
	"github.com/R3E-Network/relay_layer/pkg/logger"
	_ "github.com/lib/pq"
)

func main() {
	configPath := flag.String("config", "config/relayd.yaml", "path to the configuration file")
	flag.Parse()

	log := logger.NewDefault("relayd")

	cfg, err := config.LoadOrDefault(*configPath)
	if err != nil {
		log.WithError(err).Error("load configuration")
		os.Exit(1)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	stores, cleanup, err := buildStores(cfg, log)
	if err != nil {
		log.WithError(err).Error("initialise storage")
		os.Exit(1)
	}
	defer cleanup()

	heights, err := buildHeightSource(cfg, log)
	if err != nil {
		log.WithError(err).Error("initialise height source")
		os.Exit(1)
	}

	application, err := app.New(app.Config{
		LocalChain:    cfg.Chain.LocalID,
		Admin:         cfg.Relay.Admin,
		SweepSchedule: cfg.Relay.SweepSchedule,
	}, stores, heights, log)
	if err != nil {
		log.WithError(err).Error("build application")
		os.Exit(1)
	}

	if err := application.Start(ctx); err != nil {
		log.WithError(err).Error("start application")
		os.Exit(1)
	}
	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		_ = application.Stop(shutdownCtx)
	}()

	if cfg.Server.AuthSecret == "" {
		log.Warn("auth secret not set; API auth disabled")
	}

	handler := httpapi.NewHandler(application, httpapi.Options{
		AuthSecret: cfg.Server.AuthSecret,
		RateLimit:  cfg.Server.RateLimit,
		RateBurst:  cfg.Server.RateBurst,
	})

	server := &http.Server{
		Addr:              cfg.Server.Listen,
		Handler:           handler,
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		log.WithField("listen", cfg.Server.Listen).Info("relayd listening")
		errCh <- server.ListenAndServe()
	}()

	select {
	case <-ctx.Done():
		log.Info("shutdown signal received")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := server.Shutdown(shutdownCtx); err != nil {
			log.WithError(err).Warn("server shutdown")
		}
	case err := <-errCh:
		if err != nil && err != http.ErrServerClosed {
			log.WithError(err).Error("server failed")
			os.Exit(1)
		}
	}
}

func buildStores(cfg config.Config, log *logger.Logger) (app.Stores, func(), error) {
	if cfg.Database.DSN == "" {
		log.Warn("database DSN not set; using in-memory storage")
		return app.Stores{}, func() {}, nil
	}

	db, err := sql.Open("postgres", cfg.Database.DSN)
	if err != nil {
		return app.Stores{}, nil, err
	}
	if err := db.Ping(); err != nil {
		_ = db.Close()
		return app.Stores{}, nil, err
	}
	if err := postgres.Migrate(db); err != nil {
		_ = db.Close()
		return app.Stores{}, nil, err
	}

	store := postgres.New(db)
	log.Info("postgres storage ready")
	return app.Stores{
		Relay:    store,
		Registry: store,
		Bank:     store,
	}, func() { _ = db.Close() }, nil
}

func buildHeightSource(cfg config.Config, log *logger.Logger) (relaysvc.HeightSource, error) {
	if cfg.Chain.RPCURL == "" {
		log.Warn("chain RPC URL not set; using static height source")
		return chain.NewStaticSource(0), nil
	}
	return chain.NewClient(chain.Config{RPCURL: cfg.Chain.RPCURL})
}
