package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"
	"github.com/threadcast/threadcast/internal/api"
	"github.com/threadcast/threadcast/internal/auth"
	"github.com/threadcast/threadcast/internal/browser"
	"github.com/threadcast/threadcast/internal/campaign"
	"github.com/threadcast/threadcast/internal/comments"
	"github.com/threadcast/threadcast/internal/config"
	"github.com/threadcast/threadcast/internal/engage"
	"github.com/threadcast/threadcast/internal/logging"
	"github.com/threadcast/threadcast/internal/metrics"
	"github.com/threadcast/threadcast/internal/results"
	"github.com/threadcast/threadcast/internal/schedule"
	"github.com/threadcast/threadcast/internal/server"
	"github.com/threadcast/threadcast/internal/stats"
	"github.com/threadcast/threadcast/internal/store"
	"github.com/threadcast/threadcast/internal/threads"
	"github.com/threadcast/threadcast/internal/uploader"
	"log/slog"
)

// meteredSink forwards results to the aggregator and counts attempts.
type meteredSink struct {
	agg       *results.Aggregator
	collector *metrics.Collector
}

func (s *meteredSink) Record(r results.Result) {
	s.collector.RecordPostAttempt(r.Succeeded)
	s.agg.Record(r)
}

func (s *meteredSink) Flush() error {
	return s.agg.Flush()
}

func main() {
	// .env is optional; real deployments set the environment directly.
	_ = godotenv.Load()

	cfg, err := config.Load()
	if err != nil {
		slog.New(slog.NewJSONHandler(os.Stdout, nil)).Error("failed to load config", "error", err)
		os.Exit(1)
	}

	crash := logging.NewCrashBuffer(cfg.Storage.CrashDir)
	logger, err := logging.New(cfg.Logging, crash)
	if err != nil {
		slog.New(slog.NewJSONHandler(os.Stdout, nil)).Error("failed to init logger", "error", err)
		os.Exit(1)
	}

	// The crash buffer only writes a file when MarkNormalExit was never
	// reached.
	defer func() {
		if path, err := crash.Dump("abnormal exit"); err == nil && path != "" {
			fmt.Fprintf(os.Stderr, "crash log written to %s\n", path)
		}
	}()

	logger.Info("starting threadcast")

	st, err := store.New(cfg.Storage.DataDir, logger)
	if err != nil {
		logger.Error("failed to init store", "error", err)
		return
	}

	collector, err := metrics.NewCollector()
	if err != nil {
		logger.Error("failed to init metrics", "error", err)
		return
	}

	tracker, err := stats.NewTracker(st, collector, logger)
	if err != nil {
		logger.Error("failed to init stats tracker", "error", err)
		return
	}

	// The comment pool starts empty; operators fill it through the API. An
	// OpenAI key enables paraphrased variations of the picked comment.
	var pool *comments.Pool
	if key := os.Getenv("OPENAI_API_KEY"); key != "" {
		logger.Info("comment variation enabled")
		pool = comments.NewPoolWithVariation(nil, key, logger)
	} else {
		pool = comments.NewPool(nil, logger)
	}

	client := threads.NewClient(logger)
	aggregator, err := results.NewAggregator(cfg.Storage.ResultsDir, logger)
	if err != nil {
		logger.Error("failed to init result aggregator", "error", err)
		return
	}
	sink := &meteredSink{agg: aggregator, collector: collector}

	executor := campaign.NewExecutor(st, client, sink, func(postID string, done, total int) {
		collector.RecordCycle()
		logger.Info("cycle complete", "post_id", postID, "done", done, "total", total)
	}, logger)
	scheduler := schedule.NewRepeatScheduler(logger)
	controller := campaign.NewController(executor, st, scheduler, logger)

	sessions := browser.NewRodManager(cfg.Browser, logger)
	supervisor := engage.NewSupervisor(st, sessions, pool, tracker.Record, logger)
	supervisor.SetRestartHook(collector.RecordEngageRestart)
	runner := engage.NewRunner(supervisor, st, logger)

	// HTTP surface
	mux := http.NewServeMux()

	mux.HandleFunc("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte(`{"status":"ok"}`))
	})

	mux.Handle("/metrics", collector.Handler())

	authConfig, err := auth.FromEnv()
	if err != nil {
		logger.Error("failed to load auth config", "error", err)
		return
	}
	if authConfig.UsingDefaultSecret() {
		logger.Warn("THREADCAST_TOKEN_SECRET not set, using development default")
	}

	api.SetupRoutes(mux, st, controller, runner, tracker, pool, uploader.NewCatbox(logger), authConfig, logger)

	srv := server.New(cfg.Server, logger, collector.InstrumentHandler(mux))

	go func() {
		if err := srv.Start(); err != nil {
			logger.Error("server error", "error", err)
			if path, dumpErr := crash.Dump("server error"); dumpErr == nil && path != "" {
				logger.Error("crash log written", "path", path)
			}
			os.Exit(1)
		}
	}()

	logger.Info("threadcast started", "url", fmt.Sprintf("http://localhost:%s", cfg.Server.Port))

	waitForSignal(logger)

	logger.Info("shutting down")
	controller.Stop()
	runner.StopAll()
	sessions.CloseAll()
	if err := srv.Shutdown(context.Background()); err != nil {
		logger.Error("shutdown error", "error", err)
	}
	crash.MarkNormalExit()
	logger.Info("shutdown complete")
}

func waitForSignal(logger *slog.Logger) {
	c := make(chan os.Signal, 1)
	signal.Notify(c, syscall.SIGINT, syscall.SIGTERM)
	sig := <-c
	logger.Info("received signal", "signal", sig.String())
	signal.Stop(c)
	close(c)
}
