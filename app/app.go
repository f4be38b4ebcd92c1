package app

import (
	"context"
	"fmt"
	"time"

	"lager_lending_tool/config"
	"lager_lending_tool/db"
	"lager_lending_tool/logger"
	"lager_lending_tool/metrics"
	"lager_lending_tool/notify"
	"lager_lending_tool/session"

	"github.com/gin-gonic/gin"
	"github.com/go-webauthn/webauthn/webauthn"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/redis/go-redis/v9"
	"go.uber.org/multierr"
	"gorm.io/gorm"
)

// Short aliases for handlers.
type Ctx = gin.Context
type H = gin.H

// App holds every long-lived dependency of the service.
type App struct {
	Router *gin.Engine
	Config *config.Config
	Log    *logger.Logger
	DB     *gorm.DB
	RDB    *redis.Client
	WA     *webauthn.WebAuthn
	Repo   *db.Repo

	Sessions   *session.AppSessionStore
	Ceremonies *session.CeremonyStore

	Registry *prometheus.Registry
	Metrics  *metrics.Lending
	Notifier notify.Notifier
}

func New(ctx context.Context, cfg *config.Config, log *logger.Logger) (*App, error) {
	if log == nil {
		log = logger.Nop()
	}

	gdb, err := db.Connect(cfg.DB)
	if err != nil {
		return nil, err
	}

	rdb := redis.NewClient(&redis.Options{Addr: cfg.Redis.Addr, Password: cfg.Redis.Password, DB: cfg.Redis.DB})
	pingCtx, cancel := context.WithTimeout(ctx, 3*time.Second)
	defer cancel()
	if err := rdb.Ping(pingCtx).Err(); err != nil {
		return nil, multierr.Append(fmt.Errorf("redis %s: %w", cfg.Redis.Addr, err), closeDB(gdb))
	}

	wa, err := webauthn.New(&webauthn.Config{
		RPDisplayName: cfg.WebAuthn.RelyingPartyName,
		RPID:          cfg.WebAuthn.RelyingPartyID,
		RPOrigins:     cfg.WebAuthn.RelyingPartyOrigins,
	})
	if err != nil {
		return nil, multierr.Combine(fmt.Errorf("webauthn: %w", err), rdb.Close(), closeDB(gdb))
	}

	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)

	RegisterValidators()

	a := &App{
		Router:     gin.New(),
		Config:     cfg,
		Log:        log,
		DB:         gdb,
		RDB:        rdb,
		WA:         wa,
		Repo:       db.NewRepo(gdb),
		Sessions:   session.NewAppSessionStore(rdb, cfg.Session.TTL),
		Ceremonies: session.NewCeremonyStore(rdb, cfg.WebAuthn.CeremonyTTL),
		Registry:   reg,
		Metrics:    metrics.New(reg),
		Notifier:   notify.New(cfg.SMTP),
	}

	r := a.Router
	r.Use(RequestContext(log), AccessLog(log, a.Metrics), Recovery())
	useCORS(r, cfg.App)
	r.Use(LoadPrincipal(a), TouchLastSeen(a.Repo, rdb, cfg.Session.LastSeenThrottle))
	return a, nil
}

func closeDB(gdb *gorm.DB) error {
	sqlDB, err := gdb.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}

// Close releases redis and the database pool.
func (a *App) Close() error {
	return multierr.Combine(a.RDB.Close(), closeDB(a.DB))
}
