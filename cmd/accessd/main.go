// Command accessd runs the zero-trust access evaluation engine with its
// continuous monitoring loops and a health/metrics listener.
package main

import (
	"context"
	"errors"
	"flag"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/accessguard/accessd/pkg/config"
	"github.com/accessguard/accessd/pkg/events"
	"github.com/accessguard/accessd/pkg/logging"
	"github.com/accessguard/accessd/pkg/store"
	"github.com/accessguard/accessd/pkg/zerotrust"
)

func main() {
	configPath := flag.String("config", "", "path to YAML configuration file")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		logging.NewLogger(logging.Config{Format: "json"}).Error("failed to load configuration", "error", err)
		os.Exit(1)
	}

	logger := logging.NewLogger(cfg.Logging)

	backing, err := newStore(cfg, logger)
	if err != nil {
		logger.Error("failed to initialize store backend", "error", err)
		os.Exit(1)
	}
	defer backing.Close()

	bus := events.NewBus(logger.Logger)
	defer bus.Close()

	registry := prometheus.NewRegistry()
	engine := zerotrust.NewEngine(&zerotrust.EngineConfig{
		AuditTTL:             cfg.Engine.AuditTTL,
		DefaultQuarantineTTL: cfg.Engine.DefaultQuarantineTTL,
		Registry:             registry,
	}, backing, bus, logger.Logger)

	monitor := zerotrust.NewMonitor(&zerotrust.MonitorConfig{
		TrustRefreshInterval:      cfg.Monitor.TrustRefreshInterval,
		ComplianceCheckInterval:   cfg.Monitor.ComplianceCheckInterval,
		SegmentValidationInterval: cfg.Monitor.SegmentValidationInterval,
		MetricsInterval:           cfg.Monitor.MetricsInterval,
	}, engine, nil, nil, logger.Logger)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	monitor.Start(ctx)
	defer monitor.Stop()

	router := mux.NewRouter()
	router.HandleFunc("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	}).Methods(http.MethodGet)
	router.Handle("/metrics", promhttp.HandlerFor(registry, promhttp.HandlerOpts{})).Methods(http.MethodGet)

	server := &http.Server{
		Addr:              cfg.HTTP.ListenAddr,
		Handler:           router,
		ReadHeaderTimeout: 5 * time.Second,
	}

	go func() {
		logger.Info("listener started", "addr", cfg.HTTP.ListenAddr)
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("listener failed", "error", err)
			stop()
		}
	}()

	<-ctx.Done()
	logger.Info("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.HTTP.ShutdownTimeout)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error("listener shutdown failed", "error", err)
	}
}

func newStore(cfg *config.Config, logger *logging.Logger) (store.Store, error) {
	if cfg.Redis.Address == "" {
		logger.Warn("no Redis address configured, using in-memory store")
		return store.NewMemoryStore(), nil
	}
	return store.NewRedisStore(&store.RedisConfig{
		Address:      cfg.Redis.Address,
		Password:     cfg.Redis.Password,
		Database:     cfg.Redis.Database,
		PoolSize:     cfg.Redis.PoolSize,
		DialTimeout:  cfg.Redis.DialTimeout,
		ReadTimeout:  cfg.Redis.ReadTimeout,
		WriteTimeout: cfg.Redis.WriteTimeout,
		KeyPrefix:    cfg.Redis.KeyPrefix,
	}, logger.Logger)
}
