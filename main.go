package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"lager_lending_tool/app"
	"lager_lending_tool/config"
	"lager_lending_tool/controllers"
	"lager_lending_tool/jobs"
	"lager_lending_tool/logger"
	"lager_lending_tool/routes"

	"github.com/gin-gonic/gin"
	"go.uber.org/multierr"
)

func main() {
	config.LoadEnv()
	cfg, err := config.Load()
	if err != nil {
		logger.New(logger.Options{ServiceName: "lager"}).Error(context.Background(), "load config", err)
		os.Exit(1)
	}

	log := logger.New(logger.Options{
		ServiceName: "lager",
		Level:       logger.ParseLevel(cfg.App.LogLevel),
		Format:      cfg.App.LogFormat,
	})
	if !cfg.App.IsDev() {
		gin.SetMode(gin.ReleaseMode)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, cfg, log); err != nil {
		log.Error(ctx, "server exited", err)
		os.Exit(1)
	}
}

func run(ctx context.Context, cfg *config.Config, log *logger.Logger) (err error) {
	application, err := app.New(ctx, cfg, log)
	if err != nil {
		return err
	}
	defer func() { err = multierr.Append(err, application.Close()) }()

	if err := app.EnsureAdmin(ctx, cfg.Admin, application.Repo, log); err != nil {
		return err
	}

	srv := controllers.NewSrv(application)
	routes.RegisterRoutes(application.Router, application, srv)

	var scheduler *jobs.Scheduler
	if cfg.Jobs.Enabled {
		scheduler = jobs.NewScheduler(jobs.SchedulerParams{
			Logger:  log,
			Metrics: application.Metrics,
			Redis:   application.RDB,
		})
		if err := multierr.Combine(
			scheduler.Add(cfg.Jobs.OverdueSchedule, srv.Overdue),
			scheduler.Add(cfg.Jobs.CleanupSchedule, srv.Cleanup),
		); err != nil {
			return err
		}
		scheduler.Start()
	}

	server := &http.Server{
		Addr:              ":" + cfg.App.Port,
		Handler:           application.Router,
		ReadHeaderTimeout: 10 * time.Second,
	}
	serveErr := make(chan error, 1)
	go func() {
		log.Info(log.WithField(ctx, "addr", server.Addr), "listening")
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serveErr <- err
		}
		close(serveErr)
	}()

	select {
	case err := <-serveErr:
		if err != nil {
			return err
		}
	case <-ctx.Done():
		log.Info(context.Background(), "shutting down")
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	var shutdownErr error
	if scheduler != nil {
		shutdownErr = multierr.Append(shutdownErr, scheduler.Stop(shutdownCtx))
	}
	shutdownErr = multierr.Append(shutdownErr, server.Shutdown(shutdownCtx))
	return shutdownErr
}
