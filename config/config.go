package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/kelseyhightower/envconfig"
)

const EnvPrefix = "LAGER"

const (
	DriverPostgres = "postgres"
	DriverSQLite   = "sqlite"
)

type Config struct {
	App      AppConfig
	DB       DBConfig
	Redis    RedisConfig
	Session  SessionConfig
	Admin    AdminConfig
	WebAuthn WebAuthnConfig
	SMTP     SMTPConfig
	Jobs     JobsConfig
}

// LoadEnv reads an optional .env file into the process environment.
// Variables already set in the environment win.
func LoadEnv(files ...string) {
	_ = godotenv.Load(files...)
}

func Load() (*Config, error) {
	var cfg Config
	if err := envconfig.Process(EnvPrefix, &cfg); err != nil {
		return nil, fmt.Errorf("parsing config: %w", err)
	}
	if err := cfg.DB.ensureDSN(); err != nil {
		return nil, err
	}
	if len(cfg.WebAuthn.RelyingPartyOrigins) == 0 {
		cfg.WebAuthn.RelyingPartyOrigins = []string{cfg.App.WebOrigin}
	}
	return &cfg, nil
}

type AppConfig struct {
	Env            string   `default:"dev"`
	Port           string   `default:"3001"`
	LogLevel       string   `split_words:"true" default:"info"`
	LogFormat      string   `split_words:"true" default:"json"`
	WebOrigin      string   `split_words:"true" default:"http://localhost:5173"`
	AllowedOrigins []string `split_words:"true" default:"http://localhost:5173,http://localhost:5174"`
}

func (a AppConfig) IsDev() bool { return strings.EqualFold(a.Env, "dev") }

// SecureCookies reports whether session cookies must carry the Secure flag.
func (a AppConfig) SecureCookies() bool { return strings.HasPrefix(a.WebOrigin, "https://") }

type DBConfig struct {
	Driver string `default:"postgres"`
	DSN    string

	Host     string `default:"127.0.0.1"`
	Port     string `default:"5432"`
	User     string
	Password string
	Name     string `default:"lager"`
	SslMode  string `split_words:"true" default:"disable"`

	MaxOpenConns    int           `split_words:"true" default:"20"`
	MaxIdleConns    int           `split_words:"true" default:"10"`
	ConnMaxLifetime time.Duration `split_words:"true" default:"1h"`
}

func (d *DBConfig) ensureDSN() error {
	d.Driver = strings.ToLower(strings.TrimSpace(d.Driver))
	switch d.Driver {
	case DriverPostgres:
		if d.DSN == "" {
			if d.User == "" {
				return fmt.Errorf("database user is required when no DSN is given")
			}
			d.DSN = fmt.Sprintf(
				"host=%s user=%s password=%s dbname=%s port=%s sslmode=%s",
				d.Host, d.User, d.Password, d.Name, d.Port, d.SslMode,
			)
		}
	case DriverSQLite:
		if d.DSN == "" {
			d.DSN = "lager.db"
		}
	default:
		return fmt.Errorf("unsupported database driver %q", d.Driver)
	}
	return nil
}

type RedisConfig struct {
	Addr     string `default:"127.0.0.1:6379"`
	Password string
	DB       int `default:"0"`
}

type SessionConfig struct {
	TTL              time.Duration `default:"24h"`
	SameSite         string        `split_words:"true" default:"lax"`
	LastSeenThrottle time.Duration `split_words:"true" default:"5m"`
}

type AdminConfig struct {
	BootstrapUsername string `split_words:"true" default:"admin"`
	BootstrapPassword string `split_words:"true"`
}

type WebAuthnConfig struct {
	RelyingPartyID      string        `split_words:"true" default:"localhost"`
	RelyingPartyName    string        `split_words:"true" default:"Lager"`
	RelyingPartyOrigins []string      `split_words:"true"`
	CeremonyTTL         time.Duration `split_words:"true" default:"5m"`
}

type SMTPConfig struct {
	Enabled  bool `default:"false"`
	Host     string
	Port     string `default:"587"`
	Username string
	Password string
	From     string
	To       []string
	AppName  string `split_words:"true" default:"Lager"`
}

type JobsConfig struct {
	Enabled         bool          `default:"false"`
	OverdueSchedule string        `split_words:"true" default:"0 0 7 * * *"`
	CleanupSchedule string        `split_words:"true" default:"0 30 3 * * 0"`
	Retention       time.Duration `default:"26280h"`
}
