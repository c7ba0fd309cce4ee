package cmd

import (
	"context"
	"errors"
	"fmt"
	httpNet "net/http"
	"os"
	"os/signal"
	"poseidon/internal/delivery/http"
	"poseidon/internal/delivery/telegram"
	"poseidon/internal/repository"
	"poseidon/internal/service"
	"poseidon/pkg/logger"
	"poseidon/pkg/utils"
	"syscall"
	"time"

	"github.com/spf13/cobra"
)

var startCmd = &cobra.Command{
	Use:   "start",
	Short: "Run the scanner, take-profit engine, HTTP API and telegram bot",
	RunE:  Start,
}

func Start(cmd *cobra.Command, args []string) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	appDep, err := NewAppDependency(ctx)
	if err != nil {
		return fmt.Errorf("failed to create app dependency: %w", err)
	}
	log := appDep.log

	repo, err := repository.NewRepository(appDep.cfg, appDep.gormDB(), log, appDep.cache)
	if err != nil {
		return fmt.Errorf("failed to create repository: %w", err)
	}

	services, err := service.NewService(appDep.cfg, log, repo, appDep.cache, appDep.notifier, appDep.metrics)
	if err != nil {
		return fmt.Errorf("failed to create services: %w", err)
	}

	restored, err := services.Restore(ctx)
	if err != nil {
		log.Warn("Failed to restore tracker state", logger.ErrorField(err))
	} else if restored > 0 {
		log.Info("Restored tracked positions", logger.IntField("count", restored))
	}

	if err := services.SchedulerService.Start(ctx); err != nil {
		return fmt.Errorf("failed to start scheduler: %w", err)
	}

	httpHandler := http.NewHttpAPIHandler(ctx, appDep.echo, appDep.validator, services, appDep.metrics, log)
	telegramHandler := telegram.NewTelegramBotHandler(ctx, appDep.cfg, log, appDep.telegramBot, appDep.notifier, services)

	apiServer := NewHTTPServer(ctx, appDep, httpHandler)
	serverErr := make(chan error, 1)
	utils.GoSafe(log, func() {
		if err := apiServer.Start(); err != nil && !errors.Is(err, httpNet.ErrServerClosed) {
			serverErr <- err
		}
	})
	utils.GoSafe(log, telegramHandler.Start)

	select {
	case <-ctx.Done():
		log.Info("Shutting down gracefully...")
	case err := <-serverErr:
		log.Error("HTTP server failed", logger.ErrorField(err))
		stop()
	}

	schedulerDone := services.SchedulerService.Stop()
	select {
	case <-schedulerDone.Done():
	case <-time.After(appDep.cfg.Scheduler.TimeoutDuration + 5*time.Second):
		log.Warn("Timeout while waiting for running jobs")
	}

	telegramHandler.Stop()
	if err := apiServer.Stop(); err != nil {
		log.Warn("HTTP server did not stop cleanly", logger.ErrorField(err))
	}
	if err := repo.Close(); err != nil {
		log.Warn("Failed to close repository", logger.ErrorField(err))
	}
	return appDep.Close()
}
