package main

import (
	"context"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"empulse-control/internal/api"
	"empulse-control/internal/bus"
	"empulse-control/internal/config"
	"empulse-control/internal/control"
	"empulse-control/internal/forecast"
	"empulse-control/internal/memo"
	"empulse-control/internal/safety"
	"empulse-control/internal/sensor"
	"empulse-control/internal/waveform"
)

func main() {
	logger := slog.New(slog.NewJSONHandler(os.Stdout, nil))

	cfg, err := config.Load(os.Getenv("CONFIG_PATH"))
	if err != nil {
		logger.Error("failed to load config", slog.String("error", err.Error()))
		os.Exit(1)
	}

	thresholds, err := safety.NewThresholdStore(cfg.Thresholds)
	if err != nil {
		logger.Error("invalid thresholds", slog.String("error", err.Error()))
		os.Exit(1)
	}
	history := safety.NewHistory(cfg.HistoryCapacity)
	source := sensor.NewSimulator(int64(cfg.SensorSeed))

	predictor := forecast.NewTrendPredictor(forecast.DefaultSequenceLength, forecast.DefaultHorizon)
	generator := forecast.NewHarmonicGenerator(forecast.DefaultWaveformLength, int64(cfg.SensorSeed))
	controller := waveform.NewController(predictor, generator, 0, logger)

	var notifier bus.Notifier = bus.NopNotifier{}
	if cfg.NATSURL != "" {
		publisher, err := bus.NewPublisher(cfg.NATSURL, cfg.AlertSubject)
		if err != nil {
			logger.Error("failed to connect to nats", slog.String("error", err.Error()))
			os.Exit(1)
		}
		defer publisher.Close()
		notifier = publisher
	}

	orch := control.New(source, thresholds, history, controller, predictor, control.Options{
		MaxEmergencyShutdowns: cfg.MaxEmergencyShutdowns,
		LoopInterval:          cfg.LoopInterval(),
		QueueCapacity:         cfg.QueueCapacity,
		OperationMode:         cfg.OperationMode,
		Notifier:              notifier,
		Logger:                logger,
	})
	defer orch.Stop()

	handler := &api.Handler{
		Orchestrator: orch,
		Thresholds:   thresholds,
		History:      history,
		Cache:        memo.New(cfg.CacheMaxSize, cfg.CacheTTL()),
		Logger:       logger,
	}

	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)
	r.Use(middleware.Timeout(10 * time.Second))

	handler.RegisterRoutes(r)

	srv := &http.Server{
		Addr:         ":" + cfg.Port,
		Handler:      r,
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 10 * time.Second,
		IdleTimeout:  30 * time.Second,
	}

	shutdown := make(chan os.Signal, 1)
	signal.Notify(shutdown, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		<-shutdown
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		_ = srv.Shutdown(ctx)
	}()

	logger.Info("controld listening",
		slog.String("port", cfg.Port),
		slog.String("operation_mode", cfg.OperationMode),
	)
	if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		logger.Error("server error", slog.String("error", err.Error()))
	}
}
