// Command choperia serves the choperia REST API.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-redis/redis/v8"
	"github.com/jmoiron/sqlx"

	"github.com/happy-hops/choperia/internal/app"
	"github.com/happy-hops/choperia/internal/app/httpapi"
	"github.com/happy-hops/choperia/internal/app/seed"
	"github.com/happy-hops/choperia/internal/app/storage/postgres"
	"github.com/happy-hops/choperia/internal/config"
	"github.com/happy-hops/choperia/pkg/logger"
)

func main() {
	configPath := flag.String("config", "", "Path to YAML config (default "+config.DefaultPath+")")
	auditPath := flag.String("audit", os.Getenv("AUDIT_LOG"), "Append mutating requests to this JSON lines file")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "load config: %v\n", err)
		os.Exit(1)
	}
	log := logger.New(logger.Config{Level: cfg.Logging.Level, Format: cfg.Logging.Format, Component: "choperia"})

	if err := run(cfg, *auditPath, log); err != nil {
		log.WithError(err).Fatal("choperia stopped")
	}
}

func run(cfg config.Config, auditPath string, log *logger.Logger) error {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	stores, db, err := openStores(ctx, cfg, log)
	if err != nil {
		return err
	}
	if db != nil {
		defer db.Close()
	}

	var rdb *redis.Client
	if cfg.Redis.URL != "" {
		opts, err := redis.ParseURL(cfg.Redis.URL)
		if err != nil {
			return fmt.Errorf("parse REDIS_URL: %w", err)
		}
		rdb = redis.NewClient(opts)
		defer rdb.Close()
		if err := rdb.Ping(ctx).Err(); err != nil {
			log.WithError(err).Warn("redis unreachable; continuing with local event bus")
		}
	}

	application, err := app.New(stores, cfg, rdb, log.Named("app"))
	if err != nil {
		return fmt.Errorf("build application: %w", err)
	}

	if cfg.Seed {
		data, err := seed.Defaults()
		if err != nil {
			return err
		}
		result, err := seed.Run(ctx, seed.Services{
			Auth:    application.Auth,
			Catalog: application.Catalog,
			Mesas:   application.Mesas,
		}, data, cfg.Auth.AdminPassword, log.Named("seed"))
		if err != nil {
			return fmt.Errorf("seed: %w", err)
		}
		log.WithFields(map[string]interface{}{
			"categorias": result.Categorias,
			"empresas":   result.Empresas,
			"produtos":   result.Produtos,
			"users":      result.Users,
			"mesas":      result.Mesas,
		}).Info("seed complete")
	}

	router, err := httpapi.NewHandler(application, httpapi.Options{AuditPath: auditPath}, log.Named("http"))
	if err != nil {
		return fmt.Errorf("build router: %w", err)
	}
	router.StartCleanup(ctx, 5*time.Minute)

	if err := application.Start(ctx); err != nil {
		return fmt.Errorf("start services: %w", err)
	}

	server := &http.Server{
		Addr:              cfg.Server.Addr,
		Handler:           router,
		ReadTimeout:       cfg.Server.ReadTimeout,
		ReadHeaderTimeout: 5 * time.Second,
		WriteTimeout:      cfg.Server.WriteTimeout,
		IdleTimeout:       120 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		log.WithField("addr", cfg.Server.Addr).Info("listening")
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	select {
	case sig := <-sigCh:
		log.WithField("signal", sig.String()).Info("shutting down")
	case err := <-errCh:
		if err != nil {
			return fmt.Errorf("serve: %w", err)
		}
	}

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer shutdownCancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		log.WithError(err).Warn("server shutdown")
	}
	cancel()
	if err := application.Stop(shutdownCtx); err != nil {
		log.WithError(err).Warn("stop services")
	}
	log.Info("stopped")
	return nil
}

// openStores returns the postgres stores when DATABASE_URL is set, and empty
// Stores (in-memory defaults) otherwise.
func openStores(ctx context.Context, cfg config.Config, log *logger.Logger) (app.Stores, *sqlx.DB, error) {
	if cfg.Database.URL == "" {
		log.Info("DATABASE_URL not set; using in-memory storage")
		return app.Stores{}, nil, nil
	}
	db, err := postgres.Open(ctx, cfg.Database.URL, cfg.Database.MaxOpenConns)
	if err != nil {
		return app.Stores{}, nil, fmt.Errorf("open database: %w", err)
	}
	if cfg.Database.MigrateOnStart {
		if err := postgres.Migrate(db.DB); err != nil {
			db.Close()
			return app.Stores{}, nil, fmt.Errorf("migrate: %w", err)
		}
		log.Info("database migrations applied")
	}
	store := postgres.New(db)
	return app.Stores{
		Users:      store,
		Catalog:    store,
		Mesas:      store,
		Pedidos:    store,
		Estoque:    store,
		Loja:       store,
		Carrinho:   store,
		Pagamentos: store,
		Tx:         store,
	}, db, nil
}
