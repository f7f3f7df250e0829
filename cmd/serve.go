package cmd

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/spf13/cobra"

	"github.com/lcoppola/dropforward/internal/instrumentation"
	"github.com/lcoppola/dropforward/internal/logging"
	"github.com/lcoppola/dropforward/internal/pipeline"
	"github.com/lcoppola/dropforward/internal/scheduler"
	"github.com/lcoppola/dropforward/internal/server"
	"github.com/lcoppola/dropforward/internal/token"
)

const shutdownTimeout = 30 * time.Second

func newServeCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Run the intake daemon",
		Long: `Start the long-running intake daemon: scheduled folder polling, scheduled
token refresh, and the HTTP front door for the OAuth redirect and the
provider webhook.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServe()
		},
	}
}

func runServe() error {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	instrConfig := instrumentation.DefaultConfig()
	instrConfig.ServiceVersion = version
	if err := instrConfig.Validate(); err != nil {
		return fmt.Errorf("invalid instrumentation configuration: %w", err)
	}
	provider, err := instrumentation.NewProvider(ctx, instrConfig)
	if err != nil {
		return fmt.Errorf("failed to initialize instrumentation: %w", err)
	}
	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		_ = provider.Shutdown(shutdownCtx)
	}()

	a, err := newApp(provider.Metrics())
	if err != nil {
		return err
	}
	defer a.Close()

	if a.cfg.RefreshAtStart {
		refreshAtStart(ctx, a, provider.Metrics())
	}

	sched := scheduler.New(a.cfg.Schedule.RunTimeout, a.logger)
	if err := sched.Add("poll", a.cfg.Schedule.Poll, pollJob(a)); err != nil {
		a.logger.Error("poll job not scheduled", logging.Err(err))
	}
	if err := sched.Add("refresh", a.cfg.Schedule.Refresh, refreshJob(a, provider.Metrics())); err != nil {
		a.logger.Error("refresh job not scheduled", logging.Err(err))
	}
	sched.Start()

	var metricsHandler http.Handler
	if provider.Enabled() && provider.PrometheusHandler() != nil {
		metricsHandler = promhttp.Handler()
	}

	trigger := func(ctx context.Context) ([]pipeline.Result, error) {
		if !a.manager.IsReady() {
			return nil, token.ErrNoToken
		}
		return a.poller.Run(ctx, "webhook")
	}

	srv := server.New(server.Options{
		Addr:       a.cfg.Server.Addr,
		APIKey:     a.cfg.Server.APIKey,
		AppSecret:  a.cfg.Dropbox.ClientSecret,
		Version:    version,
		RunTimeout: a.cfg.Schedule.RunTimeout,
	}, a.manager, trigger, metricsHandler, a.logger)

	serveErr := make(chan error, 1)
	go func() {
		serveErr <- srv.ListenAndServe()
	}()

	select {
	case err := <-serveErr:
		return err
	case <-ctx.Done():
	}

	a.logger.Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		a.logger.Error("http server shutdown failed", logging.Err(err))
	}
	if err := sched.Stop(shutdownCtx); err != nil {
		a.logger.Error("scheduler drain failed", logging.Err(err))
	}
	return nil
}

// pollJob returns the scheduled folder poll. A run overlapping the
// previous one is skipped, not an error.
func pollJob(a *app) scheduler.Job {
	logger := logging.WithOperation(a.logger, "poll")
	return func(ctx context.Context) error {
		if !a.manager.IsReady() {
			logger.Info("poll skipped, authorization not completed yet")
			return nil
		}
		_, err := a.poller.Run(ctx, "schedule")
		if errors.Is(err, pipeline.ErrRunInProgress) {
			return nil
		}
		return err
	}
}

// refreshJob returns the scheduled token refresh.
func refreshJob(a *app, metrics *instrumentation.Metrics) scheduler.Job {
	logger := logging.WithOperation(a.logger, "refresh")
	return func(ctx context.Context) error {
		if !a.manager.IsReady() {
			logger.Info("refresh skipped, authorization not completed yet")
			return nil
		}
		_, err := a.manager.Refresh(ctx, "")
		switch {
		case err == nil:
			metrics.RecordTokenRefresh(ctx, instrumentation.RefreshResultSuccess)
			return nil
		case errors.Is(err, token.ErrTokenExpired):
			metrics.RecordTokenRefresh(ctx, instrumentation.RefreshResultExpired)
			return err
		default:
			metrics.RecordTokenRefresh(ctx, instrumentation.RefreshResultFailure)
			return err
		}
	}
}

// refreshAtStart refreshes the persisted record once at daemon startup.
// A rejected refresh discards the record so the operator re-authorizes
// instead of the daemon retrying a dead token forever.
func refreshAtStart(ctx context.Context, a *app, metrics *instrumentation.Metrics) {
	if !a.manager.IsReady() {
		return
	}
	if _, err := a.manager.Refresh(ctx, ""); err != nil {
		metrics.RecordTokenRefresh(ctx, instrumentation.RefreshResultFailure)
		a.logger.Error("startup token refresh failed, discarding record",
			logging.Operation("refresh"),
			logging.Err(err),
		)
		if err := a.manager.Discard(); err != nil {
			a.logger.Error("failed to discard token record", logging.Err(err))
		}
		return
	}
	metrics.RecordTokenRefresh(ctx, instrumentation.RefreshResultSuccess)
	a.logger.Info("startup token refresh succeeded", logging.Operation("refresh"))
}
