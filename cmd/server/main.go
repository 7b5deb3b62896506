// Command server wires the lending service: config, logging, storage, the
// conflict resolver, HTTP transport, and the metrics listener. Business logic
// lives in the internal packages.
package main

import (
	"context"
	"database/sql"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	_ "github.com/jackc/pgx/v5/stdlib"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"golang.org/x/sync/errgroup"

	"circulate/internal/allocation"
	cataloghandler "circulate/internal/catalog/handler"
	catalogservice "circulate/internal/catalog/service"
	catalogstore "circulate/internal/catalog/store"
	holderstore "circulate/internal/holder/store"
	"circulate/internal/identity"
	loanhandler "circulate/internal/loan/handler"
	loanmetrics "circulate/internal/loan/metrics"
	loanstore "circulate/internal/loan/store"
	"circulate/internal/platform/config"
	"circulate/internal/platform/httpserver"
	"circulate/internal/platform/logger"
	platformmetrics "circulate/internal/platform/metrics"
	"circulate/internal/platform/middleware"
	platformredis "circulate/internal/platform/redis"
	reservationhandler "circulate/internal/reservation/handler"
	reservationmetrics "circulate/internal/reservation/metrics"
	reservationstore "circulate/internal/reservation/store"
)

func main() {
	cfg := config.FromEnv()
	log := logger.New()

	if err := run(cfg, log); err != nil {
		log.Error("server exited", "error", err)
		os.Exit(1)
	}
}

func run(cfg config.Server, log *slog.Logger) error {
	var (
		runner    allocation.TxRunner
		itemStore catalogstore.ItemStore
	)

	// The cache wrap happens before the runner is built: the unit of work
	// must write availability through the cached store so allocations
	// invalidate the item key.
	redisClient, err := platformredis.New(cfg.Redis)
	if err != nil {
		log.Warn("redis unavailable, catalog cache disabled", "error", err)
		redisClient = nil
	}
	if redisClient != nil {
		defer redisClient.Close()
	}
	wrapCache := func(next catalogstore.ItemStore) catalogstore.ItemStore {
		if redisClient == nil {
			return next
		}
		log.Info("catalog cache: redis")
		return catalogstore.NewCached(next, redisClient.Client, cfg.Redis.CacheTTL, log)
	}

	if cfg.PostgresDSN != "" {
		db, err := sql.Open("pgx", cfg.PostgresDSN)
		if err != nil {
			return err
		}
		defer db.Close()
		if err := db.Ping(); err != nil {
			return err
		}
		itemStore = wrapCache(catalogstore.NewPostgres(db))
		runner = newAllocationPostgresTx(db, itemStore, cfg.LockTimeout)
		log.Info("storage: postgres")
	} else {
		// Dev profile: everything in memory, serialized by the runner. The
		// catalog service and the engine share the same item store.
		itemStore = wrapCache(catalogstore.NewInMemory())
		runner = allocation.NewInMemoryRunner(allocation.UnitOfWork{
			Items:        itemStore,
			Holders:      holderstore.NewInMemory(),
			Loans:        loanstore.NewInMemory(),
			Reservations: reservationstore.NewInMemory(),
		})
		log.Warn("storage: in-memory (set CIRCULATE_POSTGRES_DSN for postgres)")
	}

	resolver := allocation.NewResolver(runner,
		allocation.WithLogger(log),
		allocation.WithLoanMetrics(loanmetrics.New()),
		allocation.WithReservationMetrics(reservationmetrics.New()),
	)
	catalogSvc := catalogservice.New(itemStore, catalogservice.WithLogger(log))
	validator := identity.NewValidator(cfg.JWTSigningKey, cfg.JWTIssuer, cfg.JWTAudience)
	httpMetrics := platformmetrics.New()

	router := chi.NewRouter()
	router.Use(middleware.RequestID)
	router.Use(middleware.RequestTime)
	router.Use(middleware.Instrument(httpMetrics))
	router.Get("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
	})
	router.Route("/v1", func(r chi.Router) {
		r.Use(middleware.RequireAuth(validator, log))
		cataloghandler.New(catalogSvc, log).Register(r)
		loanhandler.New(resolver, log).Register(r)
		reservationhandler.New(resolver, log).Register(r)
	})

	metricsRouter := chi.NewRouter()
	metricsRouter.Handle("/metrics", promhttp.Handler())

	apiSrv := httpserver.New(cfg.Addr, router)
	metricsSrv := httpserver.New(cfg.MetricsAddr, metricsRouter)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	g, ctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		log.Info("api listening", "addr", cfg.Addr)
		if err := apiSrv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		log.Info("metrics listening", "addr", cfg.MetricsAddr)
		if err := metricsSrv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		_ = metricsSrv.Shutdown(shutdownCtx)
		return apiSrv.Shutdown(shutdownCtx)
	})

	return g.Wait()
}
