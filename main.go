package main

import (
	"context"
	"flag"
	"os"
	"os/signal"
	"syscall"

	"github.com/sirupsen/logrus"

	"github.com/dataplatform/dataplatform/pkg/config"
	"github.com/dataplatform/dataplatform/pkg/query"
	"github.com/dataplatform/dataplatform/pkg/queue"
	"github.com/dataplatform/dataplatform/pkg/runner"
	"github.com/dataplatform/dataplatform/pkg/scheduler"
	"github.com/dataplatform/dataplatform/pkg/server"
	"github.com/dataplatform/dataplatform/pkg/service"
	"github.com/dataplatform/dataplatform/pkg/source"
	sqlstore "github.com/dataplatform/dataplatform/pkg/store/sql"
)

func main() {
	configPath := flag.String("config", "", "path to a JSON config file")
	flag.Parse()

	logger := logrus.New()

	cfg, err := config.Load(*configPath)
	if err != nil {
		logger.Fatalf("Could not load configuration: %s", err)
	}

	if level, err := logrus.ParseLevel(cfg.LogLevel); err == nil {
		logger.SetLevel(level)
	} else {
		logger.Warnf("Unknown log level %q, using info", cfg.LogLevel)
	}

	platformStore, err := sqlstore.NewStore(logger, cfg)
	if err != nil {
		logger.Fatalf("Could not open metadata store: %s", err)
	}

	registry := source.NewRegistry(logger)
	engine := query.NewEngine(registry, logger)
	writer := runner.NewTargetWriter(registry, logger)
	executor := runner.NewExecutor(platformStore, engine, writer, logger)

	dispatcher := queue.NewDispatcher(
		func(ctx context.Context, msg queue.ExecutionMessage) {
			executor.Execute(ctx, msg.RunID)
		},
		cfg.Workers, cfg.QueueSize, logger,
	)

	cronScheduler := scheduler.NewScheduler(
		platformStore, dispatcher, cfg.SchedulerTick.Duration, logger,
	)
	svc := service.NewPlatformService(platformStore, registry, engine, dispatcher, logger)
	srv := server.NewServer(cfg, svc, logger)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	dispatcher.Start(ctx)
	if err := cronScheduler.Start(); err != nil {
		logger.Fatalf("Could not start scheduler: %s", err)
	}

	serveErr := make(chan error, 1)
	go func() {
		serveErr <- srv.Listen()
	}()

	select {
	case err := <-serveErr:
		if err != nil {
			logger.Errorf("Server stopped: %s", err)
		}
	case <-ctx.Done():
		logger.Info("Shutting down")
	}

	shutdownCtx, cancel := context.WithTimeout(
		context.Background(), cfg.ShutdownTimeout.Duration,
	)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Errorf("Server shutdown failed: %s", err)
	}
	if err := cronScheduler.Stop(shutdownCtx); err != nil {
		logger.Errorf("Scheduler shutdown failed: %s", err)
	}
	if err := dispatcher.Shutdown(shutdownCtx); err != nil {
		logger.Errorf("Queue drain failed: %s", err)
	}
}
