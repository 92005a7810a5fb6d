package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"harmony/internal/clock"
	"harmony/internal/harmony"
	"harmony/internal/orchestrator"
	"harmony/internal/platform/config"
	"harmony/internal/platform/logger"
	"harmony/internal/platform/metrics"
	"harmony/internal/ws"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
)

const shutdownTimeout = 10 * time.Second

func main() {
	_ = config.Load()
	cfg := config.LoadServer()

	log := logger.New(cfg.LogLevel, cfg.LogFormat)

	events, err := orchestrator.Load(cfg.CatalogPath)
	if err != nil {
		log.Error("catalog load failed", "path", cfg.CatalogPath, "error", err)
		os.Exit(1)
	}
	repo, err := orchestrator.NewRepositoryFromEvents(events)
	if err != nil {
		log.Error("catalog invalid", "error", err)
		os.Exit(1)
	}

	eventID := orchestrator.EventID(cfg.DefaultEvent)
	if eventID == "" {
		eventID = events[0].ID
	}
	event, ok := repo.Get(eventID)
	if !ok {
		log.Error("default event not in catalog", "event_id", eventID)
		os.Exit(1)
	}

	network, err := harmony.ParseNetworkCondition(cfg.NetworkCondition)
	if err != nil {
		log.Warn("invalid network condition, using good", "value", cfg.NetworkCondition)
		network = harmony.NetworkGood
	}

	met := metrics.New()
	loop := clock.NewLoop(0)
	bus := harmony.NewBus(log, met)

	var svc *harmony.Service
	loop.Do(func() {
		svc = harmony.NewService(bus, loop, harmony.Config{
			ConnectDelay: cfg.ConnectDelay,
			Seed:         cfg.Seed,
		}, log, met)
		svc.SetNetworkCondition(network)
		svc.LoadEvent(string(event.ID), event.Feeds)
		if cfg.AutoConnect {
			svc.Connect()
		}
	})

	catalog := orchestrator.NewHandler(orchestrator.NewService(repo), log)
	session := harmony.NewHandler(svc, loop, repo, log)
	viewers := ws.NewHandler(svc, loop, cfg.WSSendBuffer, log, met)

	r := chi.NewRouter()
	r.Use(middleware.Recoverer)
	r.Use(logger.RequestLogger(log))
	r.Use(metrics.RequestMiddleware(met))
	r.Get("/metrics", func(w http.ResponseWriter, r *http.Request) {
		met.Handler(func() {
			met.SetSubscriptions(bus.SubscriptionCount())
			met.SetViewers(viewers.Viewers())
		}).ServeHTTP(w, r)
	})
	r.Route("/catalog", catalog.Routes)
	r.Route("/session", session.Routes)
	r.Handle("/ws", viewers)

	addr := ":" + cfg.Port
	srv := &http.Server{Addr: addr, Handler: r}

	go func() {
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Error("server error", "error", err)
			os.Exit(1)
		}
	}()

	log.Info("server starting",
		"port", cfg.Port,
		"event_id", event.ID,
		"auto_connect", cfg.AutoConnect,
		"network", network,
		"log_level", cfg.LogLevel,
	)

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)
	<-sigCh

	log.Info("shutdown signal received, draining connections")

	ctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()

	loop.Do(svc.Disconnect)
	if err := srv.Shutdown(ctx); err != nil {
		log.Error("shutdown error", "error", err)
		loop.Close()
		os.Exit(1)
	}
	loop.Close()

	log.Info("server stopped")
}
