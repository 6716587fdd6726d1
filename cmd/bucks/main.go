package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"golang.org/x/sync/errgroup"

	"bucks/internal/amqp"
	"bucks/internal/backup"
	"bucks/internal/cli"
	apphttp "bucks/internal/http"
	"bucks/internal/prefs"
	"bucks/internal/services"
	"bucks/internal/watch"
)

func main() {
	cli.LoadEnvFile()
	logger := cli.SetupLogger()

	logger.Info("Starting bucks server")
	cfg := cli.LoadAndValidateConfig(logger)

	hub := watch.NewHub()
	repo := cli.InitRepository(logger, cfg.SQLiteDBPath, hub)
	defer repo.Close()

	// Change messages are optional: without AMQP the tracker still
	// works, only the backup worker loses its trigger.
	var publisher services.ChangePublisher
	if cfg.AMQPEnabled() {
		amqpClient, err := amqp.NewClient(cfg.AMQPURL, cfg.AMQPExchange, cfg.AMQPQueue)
		if err != nil {
			logger.Error("Failed to initialize AMQP client", "error", err)
			os.Exit(1)
		}
		defer amqpClient.Close()
		publisher = amqpClient
		logger.Info("AMQP publishing enabled", "exchange", cfg.AMQPExchange)
	} else {
		logger.Info("AMQP disabled - no AMQP_URL provided")
	}

	store := prefs.NewStore(repo)
	backups := backup.NewManager(repo, store, cfg.BackupDir, cfg.BackupDelay, cli.InitMirror(logger, cfg))

	srv := apphttp.NewServer(apphttp.Options{
		Addr:              ":" + cfg.Port,
		Repo:              repo,
		Funds:             services.NewFundService(repo, publisher),
		Movements:         services.NewMovementService(repo, publisher),
		Backups:           backups,
		Prefs:             store,
		Registry:          watch.NewRegistry(hub, cfg.WatchGrace),
		RequestsPerMinute: cfg.RequestsPerMinute,
	})

	// Configure server timeouts and limits
	srv.ReadTimeout = 10 * time.Second
	srv.WriteTimeout = 0 // the events stream stays open indefinitely
	srv.IdleTimeout = 60 * time.Second
	srv.MaxHeaderBytes = 1 << 16 // 64KB

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	g, ctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		logger.Info("Listening", "port", cfg.Port)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})

	g.Go(func() error {
		<-ctx.Done()
		logger.Info("Shutdown signal received")

		shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	})

	if err := g.Wait(); err != nil {
		logger.Error("Server error", "error", err)
		os.Exit(1)
	}
	logger.Info("Server stopped gracefully")
}
