package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"

	"github.com/speakloop/backend/internal/api"
	"github.com/speakloop/backend/internal/domain/calendar"
	"github.com/speakloop/backend/internal/domain/rules"
	"github.com/speakloop/backend/internal/infrastructure/config"
	"github.com/speakloop/backend/internal/logger"
	"github.com/speakloop/backend/internal/metrics"
	"github.com/speakloop/backend/internal/scheduler"
	"github.com/speakloop/backend/internal/service"
	"github.com/speakloop/backend/internal/store"
)

func main() {
	cfg := config.Load()
	log := logger.New(os.Stdout, cfg.LogLevel)

	// ── Dependencies ────────────────────────────────────────────────
	table, err := rules.LoadFile(cfg.RulesFile)
	if err != nil {
		log.Error("failed to load rules", "path", cfg.RulesFile, "error", err)
		os.Exit(1)
	}

	db, err := store.NewSQLite(cfg.DatabasePath)
	if err != nil {
		log.Error("failed to open database", "path", cfg.DatabasePath, "error", err)
		os.Exit(1)
	}
	defer db.Close()

	rankingZone := calendar.ResolveTimezone(cfg.RankingTimezone)
	if rankingZone.FellBack {
		log.Warn("ranking timezone fell back to UTC", "requested", cfg.RankingTimezone, "error", rankingZone.Err)
	}

	opts := []service.Option{
		service.WithRules(table),
		service.WithRankingZone(rankingZone.Location),
	}

	reg := prometheus.NewRegistry()
	if cfg.MetricsEnabled {
		reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
		opts = append(opts, service.WithMetrics(metrics.NewCollector(reg)))
	}

	progress := service.NewProgressService(db, log, opts...)
	handler := api.NewHandler(db, progress, log)

	jobs := scheduler.New(progress, cfg.RolloverInterval, cfg.FlushRetryRate, log)
	if err := jobs.Start(); err != nil {
		log.Error("failed to start scheduler", "error", err)
		os.Exit(1)
	}

	// ── Routes ──────────────────────────────────────────────────────
	mux := http.NewServeMux()

	mux.HandleFunc("GET /health", func(w http.ResponseWriter, r *http.Request) {
		if err := db.Ping(r.Context()); err != nil {
			http.Error(w, `{"status": "unavailable"}`, http.StatusServiceUnavailable)
			return
		}
		w.WriteHeader(http.StatusOK)
		w.Write([]byte(`{"status": "ok"}`))
	})

	api.RegisterRoutes(mux, handler)

	if cfg.MetricsEnabled {
		mux.Handle("GET /metrics", metrics.Handler(reg))
	}

	// ── Middleware chain: Logging → CORS → mux ──────────────────────
	logged := api.Logging(log)(api.CORS(mux))

	// ── Server ──────────────────────────────────────────────────────
	server := &http.Server{
		Addr:              cfg.ServerAddress,
		Handler:           logged,
		ReadTimeout:       15 * time.Second,
		ReadHeaderTimeout: 5 * time.Second,
		WriteTimeout:      30 * time.Second,
		IdleTimeout:       60 * time.Second,
	}

	done := make(chan struct{})
	go func() {
		defer close(done)
		sigChan := make(chan os.Signal, 1)
		signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
		<-sigChan

		ctx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
		defer cancel()

		log.Info("shutting down server")
		if err := server.Shutdown(ctx); err != nil {
			log.Error("server forced to shutdown", "error", err)
		}

		jobs.Stop()
		if err := progress.FlushAll(ctx); err != nil {
			log.Error("unsaved progress at shutdown", "error", err)
		}
		progress.Close()
	}()

	log.Info("starting server", "address", cfg.ServerAddress, "database", cfg.DatabasePath)
	if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		log.Error("server failed to start", "error", err)
		os.Exit(1)
	}
	<-done
}
