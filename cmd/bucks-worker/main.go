package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"bucks/internal/amqp"
	"bucks/internal/backup"
	"bucks/internal/cli"
	"bucks/internal/prefs"
	"bucks/internal/watch"
	"bucks/internal/worker"
)

func main() {
	cli.LoadEnvFile()
	logger := cli.SetupLogger()

	logger.Info("Starting bucks-worker")
	cfg := cli.LoadAndValidateConfig(logger)

	repo := cli.InitRepository(logger, cfg.SQLiteDBPath, watch.NewHub())
	defer repo.Close()

	store := prefs.NewStore(repo)
	backups := backup.NewManager(repo, store, cfg.BackupDir, cfg.BackupDelay, cli.InitMirror(logger, cfg))

	// Without AMQP the worker falls back to the periodic export alone.
	var consumer worker.ChangeConsumer
	if cfg.AMQPEnabled() {
		amqpClient, err := amqp.NewClient(cfg.AMQPURL, cfg.AMQPExchange, cfg.AMQPQueue)
		if err != nil {
			logger.Error("Failed to initialize AMQP client", "error", err)
			os.Exit(1)
		}
		defer amqpClient.Close()
		consumer = amqpClient
		logger.Info("Consuming change messages", "queue", cfg.AMQPQueue)
	} else {
		logger.Info("AMQP disabled - running periodic exports only")
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	w := worker.NewBackupWorker(backups, consumer, worker.Config{
		Debounce: cfg.BackupDebounce,
		Interval: cfg.BackupInterval,
	})
	if err := w.Start(ctx); err != nil {
		logger.Error("Failed to start backup worker", "error", err)
		os.Exit(1)
	}

	// Startup export covers changes missed while the worker was down.
	w.Kick()

	<-ctx.Done()
	logger.Info("Shutdown signal received")

	stopCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	if err := w.Stop(stopCtx); err != nil {
		logger.Error("Worker shutdown error", "error", err)
		os.Exit(1)
	}
	logger.Info("Worker stopped gracefully")
}
