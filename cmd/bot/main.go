package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"golang.org/x/sync/errgroup"

	"sigreg/internal/flow"
	"sigreg/internal/navigation"
	"sigreg/internal/platform/config"
	"sigreg/internal/platform/httpserver"
	"sigreg/internal/platform/logger"
	"sigreg/internal/platform/metrics"
	"sigreg/internal/platform/postgres"
	"sigreg/internal/registry"
	"sigreg/internal/reminder"
	"sigreg/internal/session"
	httptransport "sigreg/internal/transport/http"
)

// main wires the process: config, storage, the chat core, the reminder
// scheduler, and the HTTP surface. Failing to reach PostgreSQL is the one
// fatal startup condition.
func main() {
	cfg := config.FromEnv()
	log := logger.New()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	db, err := postgres.Open(ctx, cfg.DatabaseURL)
	if err != nil {
		log.Error("cannot reach postgres", "error", err)
		os.Exit(1)
	}
	defer db.Close()

	if err := postgres.Migrate(cfg.DatabaseURL); err != nil {
		log.Error("migrations failed", "error", err)
		os.Exit(1)
	}

	store := registry.NewPostgres(db)
	if err := registry.Seed(ctx, store, registry.DefaultHierarchy); err != nil {
		log.Error("seeding failed", "error", err)
		os.Exit(1)
	}

	reg := prometheus.NewRegistry()
	m := metrics.New(reg)

	gateway := httptransport.NewGateway(cfg.GatewayURL, httptransport.WithGatewayLogger(log))

	nav := navigation.New(store, navigation.WithLogger(log))
	fl := flow.New(store, store,
		flow.WithLogger(log),
		flow.WithReservedLabels(session.ReservedLabels()))
	router := session.New(store, nav, fl, gateway,
		session.WithLogger(log),
		session.WithMetrics(m),
		session.WithAllowedChats(cfg.AllowedChats))

	sched := reminder.New(store, gateway,
		reminder.WithLogger(log),
		reminder.WithMetrics(m),
		reminder.WithThresholds(cfg.RemindDays),
		reminder.WithSchedule(cfg.RemindAt.Hour, cfg.RemindAt.Minute, cfg.Location))

	handler := httptransport.New(router, sched, httptransport.WithLogger(log))
	srv := httpserver.New(cfg.Addr, handler.Router(reg))

	g, ctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		log.Info("starting http server", "addr", cfg.Addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})

	g.Go(func() error {
		log.Info("starting reminder scheduler",
			"at", cfg.RemindAt.String(), "tz", cfg.Location.String())
		if err := sched.Start(ctx); err != nil && !errors.Is(err, context.Canceled) {
			return err
		}
		return nil
	})

	g.Go(func() error {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	})

	if err := g.Wait(); err != nil {
		log.Error("shutdown with error", "error", err)
		os.Exit(1)
	}
	log.Info("shutdown complete")
}
