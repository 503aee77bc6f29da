// Copyright 2025 Oliver Andrich
// Licensed under the EUPL-1.2

package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	altsrc "github.com/urfave/cli-altsrc/v3"
	"github.com/urfave/cli-altsrc/v3/toml"
	"github.com/urfave/cli/v3"
)

var (
	configPath = "config.toml"
	configFile = altsrc.NewStringPtrSourcer(&configPath)
)

// Mail drivers.
const (
	MailDriverSMTP = "smtp"
	MailDriverHTTP = "http"
	MailDriverLog  = "log"
)

type Config struct { //nolint:govet // fieldalignment not critical for config structs
	Server     ServerConfig
	Log        LogConfig
	Database   DatabaseConfig
	Mail       MailConfig
	Activation ActivationConfig
	Dispatch   DispatchConfig
}

type ServerConfig struct { //nolint:govet // fieldalignment not critical for config structs
	Host            string
	Port            int
	BaseURL         string
	MaxBodySize     int // in MB
	ShutdownTimeout time.Duration
	IdempotencyTTL  time.Duration
	AdminToken      string // bearer token for /api/admin, empty disables the check
}

type LogConfig struct {
	Level  string // debug, info, warn, error
	Format string // text, json
}

type DatabaseConfig struct {
	DSN string
}

type MailConfig struct { //nolint:govet // fieldalignment not critical for config structs
	Driver   string // smtp, http, log
	From     string
	FromName string
	SMTP     SMTPConfig
	HTTP     HTTPMailConfig
}

type SMTPConfig struct { //nolint:govet // fieldalignment not critical for config structs
	Host     string
	Port     int
	Username string
	Password string
	TLS      string // mandatory, opportunistic, none
}

type HTTPMailConfig struct {
	Endpoint string
	APIKey   string
	Timeout  time.Duration
}

type ActivationConfig struct {
	TokenTTL time.Duration
	// LinkBaseURL is the origin activation links point to. Defaults to the server base URL.
	LinkBaseURL string
}

type DispatchConfig struct { //nolint:govet // fieldalignment not critical for config structs
	MaxAttempts   int
	BackoffBase   time.Duration
	BackoffFactor int
	Locale        string
}

func NewFromCLI(cmd *cli.Command) *Config {
	cfg := &Config{
		Server: ServerConfig{
			Host:            cmd.String("host"),
			Port:            int(cmd.Int("port")),
			BaseURL:         cmd.String("base-url"),
			MaxBodySize:     int(cmd.Int("max-body-size")),
			ShutdownTimeout: cmd.Duration("shutdown-timeout"),
			IdempotencyTTL:  cmd.Duration("idempotency-ttl"),
			AdminToken:      cmd.String("admin-token"),
		},
		Log: LogConfig{
			Level:  cmd.String("log-level"),
			Format: cmd.String("log-format"),
		},
		Database: DatabaseConfig{
			DSN: cmd.String("database-dsn"),
		},
		Mail: MailConfig{
			Driver:   strings.ToLower(cmd.String("mail-driver")),
			From:     cmd.String("mail-from"),
			FromName: cmd.String("mail-from-name"),
			SMTP: SMTPConfig{
				Host:     cmd.String("smtp-host"),
				Port:     int(cmd.Int("smtp-port")),
				Username: cmd.String("smtp-username"),
				Password: cmd.String("smtp-password"),
				TLS:      strings.ToLower(cmd.String("smtp-tls")),
			},
			HTTP: HTTPMailConfig{
				Endpoint: cmd.String("mail-http-endpoint"),
				APIKey:   cmd.String("mail-http-api-key"),
				Timeout:  cmd.Duration("mail-http-timeout"),
			},
		},
		Activation: ActivationConfig{
			TokenTTL:    cmd.Duration("activation-token-ttl"),
			LinkBaseURL: cmd.String("activation-base-url"),
		},
		Dispatch: DispatchConfig{
			MaxAttempts:   int(cmd.Int("dispatch-max-attempts")),
			BackoffBase:   cmd.Duration("dispatch-backoff-base"),
			BackoffFactor: int(cmd.Int("dispatch-backoff-factor")),
			Locale:        cmd.String("dispatch-locale"),
		},
	}

	if cfg.Server.BaseURL == "" {
		cfg.Server.BaseURL = buildBaseURL(cfg)
	}
	if cfg.Activation.LinkBaseURL == "" {
		cfg.Activation.LinkBaseURL = cfg.Server.BaseURL
	}
	cfg.Activation.LinkBaseURL = strings.TrimRight(cfg.Activation.LinkBaseURL, "/")

	return cfg
}

// Validate reports settings the application cannot start with.
func (c *Config) Validate() error {
	var errs []error

	switch c.Mail.Driver {
	case MailDriverLog:
	case MailDriverSMTP:
		if c.Mail.SMTP.Host == "" {
			errs = append(errs, errors.New("smtp-host is required for the smtp mail driver"))
		}
		switch c.Mail.SMTP.TLS {
		case "mandatory", "opportunistic", "none":
		default:
			errs = append(errs, fmt.Errorf("invalid smtp-tls %q", c.Mail.SMTP.TLS))
		}
	case MailDriverHTTP:
		if c.Mail.HTTP.Endpoint == "" {
			errs = append(errs, errors.New("mail-http-endpoint is required for the http mail driver"))
		}
	default:
		errs = append(errs, fmt.Errorf("invalid mail-driver %q", c.Mail.Driver))
	}

	if c.Mail.Driver != MailDriverLog && c.Mail.From == "" {
		errs = append(errs, errors.New("mail-from is required"))
	}
	if c.Activation.TokenTTL <= 0 {
		errs = append(errs, errors.New("activation-token-ttl must be positive"))
	}
	if c.Dispatch.MaxAttempts < 1 {
		errs = append(errs, errors.New("dispatch-max-attempts must be at least 1"))
	}
	if c.Dispatch.BackoffBase < 0 {
		errs = append(errs, errors.New("dispatch-backoff-base must not be negative"))
	}
	if c.Dispatch.BackoffFactor < 1 {
		errs = append(errs, errors.New("dispatch-backoff-factor must be at least 1"))
	}

	return errors.Join(errs...)
}

func buildBaseURL(cfg *Config) string {
	host := cfg.Server.Host
	port := cfg.Server.Port

	scheme := "https"
	if IsLocalhost(host) {
		scheme = "http"
	}

	// Hide default ports in URL
	if (scheme == "http" && port == 80) || (scheme == "https" && port == 443) {
		return fmt.Sprintf("%s://%s", scheme, host)
	}
	return fmt.Sprintf("%s://%s:%d", scheme, host, port)
}

// IsLocalhost checks if the host is a localhost address.
func IsLocalhost(host string) bool {
	switch host {
	case "", "localhost", "127.0.0.1", "::1":
		return true
	}
	// Check for *.localhost subdomains (e.g., app.localhost)
	return strings.HasSuffix(host, ".localhost")
}

// Flags returns the flags shared by all commands. Each reads its env var,
// then the TOML file named by --config.
func Flags() []cli.Flag {
	return []cli.Flag{
		&cli.StringFlag{
			Name:        "config",
			Aliases:     []string{"c"},
			Value:       "config.toml",
			Usage:       "Path to the TOML configuration file",
			Destination: &configPath,
			Sources:     cli.EnvVars("CONFIG"),
		},
		&cli.StringFlag{
			Name:    "host",
			Value:   "localhost",
			Usage:   "Host to bind to",
			Sources: cli.NewValueSourceChain(cli.EnvVar("HOST"), toml.TOML("server.host", configFile)),
		},
		&cli.IntFlag{
			Name:    "port",
			Value:   8080,
			Usage:   "Port to listen on",
			Sources: cli.NewValueSourceChain(cli.EnvVar("PORT"), toml.TOML("server.port", configFile)),
		},
		&cli.StringFlag{
			Name:    "base-url",
			Usage:   "Base URL for the application",
			Sources: cli.NewValueSourceChain(cli.EnvVar("BASE_URL"), toml.TOML("server.base_url", configFile)),
		},
		&cli.IntFlag{
			Name:    "max-body-size",
			Value:   1,
			Usage:   "Maximum request body size in MB",
			Sources: cli.NewValueSourceChain(cli.EnvVar("MAX_BODY_SIZE"), toml.TOML("server.max_body_size", configFile)),
		},
		&cli.DurationFlag{
			Name:    "shutdown-timeout",
			Value:   10 * time.Second,
			Usage:   "Grace period for in-flight requests on shutdown",
			Sources: cli.NewValueSourceChain(cli.EnvVar("SHUTDOWN_TIMEOUT"), toml.TOML("server.shutdown_timeout", configFile)),
		},
		&cli.DurationFlag{
			Name:    "idempotency-ttl",
			Value:   10 * time.Minute,
			Usage:   "How long admin responses are replayed for a repeated Idempotency-Key",
			Sources: cli.NewValueSourceChain(cli.EnvVar("IDEMPOTENCY_TTL"), toml.TOML("server.idempotency_ttl", configFile)),
		},
		&cli.StringFlag{
			Name:    "admin-token",
			Usage:   "Bearer token required for the admin API (leave empty when a proxy authenticates admins)",
			Sources: cli.NewValueSourceChain(cli.EnvVar("ADMIN_TOKEN"), toml.TOML("server.admin_token", configFile)),
		},
		&cli.StringFlag{
			Name:    "log-level",
			Value:   "info",
			Usage:   "Log level (debug, info, warn, error)",
			Sources: cli.NewValueSourceChain(cli.EnvVar("LOG_LEVEL"), toml.TOML("log.level", configFile)),
		},
		&cli.StringFlag{
			Name:    "log-format",
			Value:   "text",
			Usage:   "Log format (text, json)",
			Sources: cli.NewValueSourceChain(cli.EnvVar("LOG_FORMAT"), toml.TOML("log.format", configFile)),
		},
		&cli.StringFlag{
			Name:    "database-dsn",
			Value:   "./data/app.db",
			Usage:   "Database DSN",
			Sources: cli.NewValueSourceChain(cli.EnvVar("DATABASE_DSN"), toml.TOML("database.dsn", configFile)),
		},
		// Mail flags
		&cli.StringFlag{
			Name:    "mail-driver",
			Value:   MailDriverLog,
			Usage:   "Mail driver (smtp, http, log)",
			Sources: cli.NewValueSourceChain(cli.EnvVar("MAIL_DRIVER"), toml.TOML("mail.driver", configFile)),
		},
		&cli.StringFlag{
			Name:    "mail-from",
			Usage:   "Sender address for outgoing mail",
			Sources: cli.NewValueSourceChain(cli.EnvVar("MAIL_FROM"), toml.TOML("mail.from", configFile)),
		},
		&cli.StringFlag{
			Name:    "mail-from-name",
			Value:   "Signup Desk",
			Usage:   "Sender display name for outgoing mail",
			Sources: cli.NewValueSourceChain(cli.EnvVar("MAIL_FROM_NAME"), toml.TOML("mail.from_name", configFile)),
		},
		&cli.StringFlag{
			Name:    "smtp-host",
			Usage:   "SMTP server host",
			Sources: cli.NewValueSourceChain(cli.EnvVar("SMTP_HOST"), toml.TOML("mail.smtp.host", configFile)),
		},
		&cli.IntFlag{
			Name:    "smtp-port",
			Value:   587,
			Usage:   "SMTP server port",
			Sources: cli.NewValueSourceChain(cli.EnvVar("SMTP_PORT"), toml.TOML("mail.smtp.port", configFile)),
		},
		&cli.StringFlag{
			Name:    "smtp-username",
			Usage:   "SMTP username",
			Sources: cli.NewValueSourceChain(cli.EnvVar("SMTP_USERNAME"), toml.TOML("mail.smtp.username", configFile)),
		},
		&cli.StringFlag{
			Name:    "smtp-password",
			Usage:   "SMTP password",
			Sources: cli.NewValueSourceChain(cli.EnvVar("SMTP_PASSWORD"), toml.TOML("mail.smtp.password", configFile)),
		},
		&cli.StringFlag{
			Name:    "smtp-tls",
			Value:   "mandatory",
			Usage:   "SMTP TLS policy (mandatory, opportunistic, none)",
			Sources: cli.NewValueSourceChain(cli.EnvVar("SMTP_TLS"), toml.TOML("mail.smtp.tls", configFile)),
		},
		&cli.StringFlag{
			Name:    "mail-http-endpoint",
			Usage:   "HTTP email provider endpoint",
			Sources: cli.NewValueSourceChain(cli.EnvVar("MAIL_HTTP_ENDPOINT"), toml.TOML("mail.http.endpoint", configFile)),
		},
		&cli.StringFlag{
			Name:    "mail-http-api-key",
			Usage:   "HTTP email provider API key",
			Sources: cli.NewValueSourceChain(cli.EnvVar("MAIL_HTTP_API_KEY"), toml.TOML("mail.http.api_key", configFile)),
		},
		&cli.DurationFlag{
			Name:    "mail-http-timeout",
			Value:   10 * time.Second,
			Usage:   "HTTP email provider request timeout",
			Sources: cli.NewValueSourceChain(cli.EnvVar("MAIL_HTTP_TIMEOUT"), toml.TOML("mail.http.timeout", configFile)),
		},
		// Activation flags
		&cli.DurationFlag{
			Name:    "activation-token-ttl",
			Value:   7 * 24 * time.Hour,
			Usage:   "Lifetime of activation tokens",
			Sources: cli.NewValueSourceChain(cli.EnvVar("ACTIVATION_TOKEN_TTL"), toml.TOML("activation.token_ttl", configFile)),
		},
		&cli.StringFlag{
			Name:    "activation-base-url",
			Usage:   "Origin for activation links (defaults to base-url)",
			Sources: cli.NewValueSourceChain(cli.EnvVar("ACTIVATION_BASE_URL"), toml.TOML("activation.base_url", configFile)),
		},
		// Dispatch flags
		&cli.IntFlag{
			Name:    "dispatch-max-attempts",
			Value:   3,
			Usage:   "Maximum delivery attempts per notification",
			Sources: cli.NewValueSourceChain(cli.EnvVar("DISPATCH_MAX_ATTEMPTS"), toml.TOML("dispatch.max_attempts", configFile)),
		},
		&cli.DurationFlag{
			Name:    "dispatch-backoff-base",
			Value:   time.Second,
			Usage:   "Delay before the first retry",
			Sources: cli.NewValueSourceChain(cli.EnvVar("DISPATCH_BACKOFF_BASE"), toml.TOML("dispatch.backoff_base", configFile)),
		},
		&cli.IntFlag{
			Name:    "dispatch-backoff-factor",
			Value:   4,
			Usage:   "Multiplier applied to the delay after each retry",
			Sources: cli.NewValueSourceChain(cli.EnvVar("DISPATCH_BACKOFF_FACTOR"), toml.TOML("dispatch.backoff_factor", configFile)),
		},
		&cli.StringFlag{
			Name:    "dispatch-locale",
			Value:   "en",
			Usage:   "Locale of customer notifications (en, de)",
			Sources: cli.NewValueSourceChain(cli.EnvVar("DISPATCH_LOCALE"), toml.TOML("dispatch.locale", configFile)),
		},
	}
}
