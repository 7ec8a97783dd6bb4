package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/hibiken/asynq"

	"github.com/odyssey-erp/rentroll/internal/app"
	jobmetrics "github.com/odyssey-erp/rentroll/internal/jobs"
	"github.com/odyssey-erp/rentroll/internal/observability"
	"github.com/odyssey-erp/rentroll/jobs"
)

func main() {
	if app.InTestMode() {
		slog.Default().Info("test mode detected, skipping worker startup")
		return
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	cfg, err := app.LoadConfig()
	if err != nil {
		slog.Default().Error("load config", slog.Any("error", err))
		os.Exit(1)
	}

	logger := app.NewLogger(cfg)
	metrics := observability.NewMetrics()
	jobMetrics := jobmetrics.NewMetrics(metrics.Registerer())

	stack, err := app.OpenRent(ctx, cfg, logger, jobMetrics)
	if err != nil {
		logger.Error("open rent store", slog.Any("error", err))
		os.Exit(1)
	}
	defer stack.Close()

	redisOpts := asynq.RedisClientOpt{Addr: cfg.RedisAddr, Password: cfg.RedisPassword, DB: cfg.RedisDB}

	rentTask, err := jobs.NewRentGenerateTask("")
	if err != nil {
		logger.Error("build rent task", slog.Any("error", err))
		os.Exit(1)
	}

	worker, err := jobs.NewWorker(jobs.WorkerConfig{
		RedisOpts: redisOpts,
		Logger:    logger,
		Location:  cfg.Location(),
		Handlers: []jobs.TaskHandler{
			{Type: jobs.TaskRentGenerate, Handler: stack.Job.Handle},
		},
		Cron: []jobs.CronRegistration{
			{Spec: cfg.RentSchedule, Task: rentTask},
		},
	})
	if err != nil {
		logger.Error("init worker", slog.Any("error", err))
		os.Exit(1)
	}

	client := jobs.NewClient(redisOpts)
	defer client.Close()
	inspector := asynq.NewInspector(redisOpts)
	defer inspector.Close()

	router := app.NewRouter(app.RouterParams{
		Logger:     logger,
		Config:     cfg,
		JobHandler: jobs.NewHandler(inspector, stack.Job, client, logger),
		Metrics:    metrics,
	})
	server := app.NewServer(cfg, router)

	if err := worker.Start(); err != nil {
		logger.Error("start worker", slog.Any("error", err))
		os.Exit(1)
	}
	logger.Info("rent schedule active",
		slog.String("spec", cfg.RentSchedule),
		slog.String("timezone", cfg.Location().String()),
		slog.Time("next_run", cfg.NextRun(time.Now())),
		slog.String("store", cfg.RentStore),
	)

	serverErr := make(chan error, 1)
	go func() {
		logger.Info("ops server listening", slog.String("addr", cfg.AppAddr))
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serverErr <- err
		}
		close(serverErr)
	}()

	exitCode := 0
	select {
	case <-ctx.Done():
	case err, ok := <-serverErr:
		if ok {
			logger.Error("ops server", slog.Any("error", err))
			exitCode = 1
		}
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Warn("ops server shutdown", slog.Any("error", err))
	}
	worker.Stop()
	logger.Info("worker stopped")
	if exitCode != 0 {
		stack.Close()
		os.Exit(exitCode)
	}
}
