// Copyright 2025 Oliver Andrich
// Licensed under the EUPL-1.2

package config

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/urfave/cli/v3"
)

func TestIsLocalhost(t *testing.T) {
	tests := []struct {
		host     string
		expected bool
	}{
		{"", true},
		{"localhost", true},
		{"127.0.0.1", true},
		{"::1", true},
		{"app.localhost", true},
		{"example.com", false},
		{"192.168.1.1", false},
		{"localhost.com", false}, // not a real localhost
	}

	for _, tt := range tests {
		t.Run(tt.host, func(t *testing.T) {
			assert.Equal(t, tt.expected, IsLocalhost(tt.host))
		})
	}
}

func TestBuildBaseURL(t *testing.T) {
	tests := []struct {
		name     string
		host     string
		port     int
		expected string
	}{
		{"localhost default port", "localhost", 80, "http://localhost"},
		{"localhost custom port", "localhost", 8080, "http://localhost:8080"},
		{"remote host default port", "example.com", 443, "https://example.com"},
		{"remote host custom port", "example.com", 8443, "https://example.com:8443"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := &Config{Server: ServerConfig{Host: tt.host, Port: tt.port}}
			assert.Equal(t, tt.expected, buildBaseURL(cfg))
		})
	}
}

func validConfig() *Config {
	return &Config{
		Mail:       MailConfig{Driver: MailDriverLog},
		Activation: ActivationConfig{TokenTTL: time.Hour},
		Dispatch:   DispatchConfig{MaxAttempts: 3, BackoffBase: time.Second, BackoffFactor: 4},
	}
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr string
	}{
		{"log driver", func(*Config) {}, ""},
		{"unknown driver", func(c *Config) { c.Mail.Driver = "pigeon" }, "invalid mail-driver"},
		{"smtp without host", func(c *Config) {
			c.Mail.Driver = MailDriverSMTP
			c.Mail.From = "noreply@example.com"
			c.Mail.SMTP.TLS = "mandatory"
		}, "smtp-host is required"},
		{"smtp bad tls", func(c *Config) {
			c.Mail.Driver = MailDriverSMTP
			c.Mail.From = "noreply@example.com"
			c.Mail.SMTP.Host = "mail.example.com"
			c.Mail.SMTP.TLS = "sometimes"
		}, "invalid smtp-tls"},
		{"http without endpoint", func(c *Config) {
			c.Mail.Driver = MailDriverHTTP
			c.Mail.From = "noreply@example.com"
		}, "mail-http-endpoint is required"},
		{"missing sender", func(c *Config) {
			c.Mail.Driver = MailDriverHTTP
			c.Mail.HTTP.Endpoint = "https://mail.example.com/send"
		}, "mail-from is required"},
		{"zero ttl", func(c *Config) { c.Activation.TokenTTL = 0 }, "activation-token-ttl"},
		{"zero attempts", func(c *Config) { c.Dispatch.MaxAttempts = 0 }, "dispatch-max-attempts"},
		{"zero factor", func(c *Config) { c.Dispatch.BackoffFactor = 0 }, "dispatch-backoff-factor"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := validConfig()
			tt.mutate(cfg)
			err := cfg.Validate()
			if tt.wantErr == "" {
				assert.NoError(t, err)
				return
			}
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}
}

func TestFlags(t *testing.T) {
	flags := Flags()

	// Should have all expected flags
	assert.NotEmpty(t, flags)

	flagNames := make(map[string]bool)
	for _, f := range flags {
		for _, name := range f.Names() {
			flagNames[name] = true
		}
	}

	for _, name := range []string{
		"host", "port", "base-url", "log-level", "database-dsn",
		"mail-driver", "smtp-host", "mail-http-endpoint",
		"activation-token-ttl", "dispatch-max-attempts", "dispatch-backoff-base", "admin-token",
	} {
		assert.True(t, flagNames[name], "should have %s flag", name)
	}
}

func TestNewFromCLI(t *testing.T) {
	app := &cli.Command{
		Name:  "test",
		Flags: Flags(),
		Action: func(_ context.Context, cmd *cli.Command) error {
			cfg := NewFromCLI(cmd)

			// Verify defaults are applied
			assert.NotNil(t, cfg)
			assert.Equal(t, "localhost", cfg.Server.Host)
			assert.Equal(t, 8080, cfg.Server.Port)
			assert.Equal(t, "http://localhost:8080", cfg.Server.BaseURL)
			assert.Equal(t, "info", cfg.Log.Level)
			assert.Equal(t, "text", cfg.Log.Format)
			assert.Equal(t, MailDriverLog, cfg.Mail.Driver)
			assert.Equal(t, 7*24*time.Hour, cfg.Activation.TokenTTL)
			assert.Equal(t, "http://localhost:8080", cfg.Activation.LinkBaseURL)
			assert.Equal(t, 3, cfg.Dispatch.MaxAttempts)
			assert.Equal(t, time.Second, cfg.Dispatch.BackoffBase)
			assert.Equal(t, 4, cfg.Dispatch.BackoffFactor)
			assert.Equal(t, "en", cfg.Dispatch.Locale)
			assert.NoError(t, cfg.Validate())

			return nil
		},
	}

	err := app.Run(context.Background(), []string{"test"})
	assert.NoError(t, err)
}

func TestNewFromCLI_WithCustomValues(t *testing.T) {
	app := &cli.Command{
		Name:  "test",
		Flags: Flags(),
		Action: func(_ context.Context, cmd *cli.Command) error {
			cfg := NewFromCLI(cmd)

			assert.Equal(t, "0.0.0.0", cfg.Server.Host)
			assert.Equal(t, 9000, cfg.Server.Port)
			assert.Equal(t, "https://example.com", cfg.Server.BaseURL)
			assert.Equal(t, "https://signup.example.com", cfg.Activation.LinkBaseURL)
			assert.Equal(t, "debug", cfg.Log.Level)
			assert.Equal(t, "./data/test.db", cfg.Database.DSN)
			assert.Equal(t, MailDriverSMTP, cfg.Mail.Driver)
			assert.Equal(t, 48*time.Hour, cfg.Activation.TokenTTL)
			assert.Equal(t, 5, cfg.Dispatch.MaxAttempts)

			return nil
		},
	}

	args := []string{
		"test",
		"--host", "0.0.0.0",
		"--port", "9000",
		"--base-url", "https://example.com",
		"--activation-base-url", "https://signup.example.com/",
		"--log-level", "debug",
		"--database-dsn", "./data/test.db",
		"--mail-driver", "SMTP",
		"--activation-token-ttl", "48h",
		"--dispatch-max-attempts", "5",
	}
	err := app.Run(context.Background(), args)
	assert.NoError(t, err)
}
