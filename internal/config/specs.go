// Copyright 2026 Canonical Ltd.
// SPDX-License-Identifier: AGPL-3.0

package config

import (
	"fmt"
	"strings"
	"time"
)

// EnvPrefix is prepended to every variable, e.g. BACKEND_SECRET_KEY
const EnvPrefix = "backend"

const (
	QueueBackendRedis  = "redis"
	QueueBackendMemory = "memory"
)

// EnvSpec is the basic environment configuration setup needed for the app to start
type EnvSpec struct {
	OtelGRPCEndpoint string `envconfig:"otel_grpc_endpoint"`
	OtelHTTPEndpoint string `envconfig:"otel_http_endpoint"`
	TracingEnabled   bool   `envconfig:"tracing_enabled" default:"true"`

	LogLevel string `envconfig:"log_level" default:"error"`
	Debug    bool   `envconfig:"debug" default:"false"`

	Port           int           `envconfig:"port" default:"8080"`
	RequestTimeout time.Duration `envconfig:"request_timeout" default:"30s"`
	AllowedOrigins []string      `envconfig:"allowed_origins" default:"*"`
	PublicURL      string        `envconfig:"public_url" default:"http://localhost:8080"`

	DSN string `envconfig:"DSN" required:"true"`

	DBMaxConns        int32         `envconfig:"db_max_conns" default:"25"`
	DBMinConns        int32         `envconfig:"db_min_conns" default:"2"`
	DBMaxConnLifetime time.Duration `envconfig:"db_max_conn_lifetime" default:"1h"`
	DBMaxConnIdleTime time.Duration `envconfig:"db_max_conn_idle_time" default:"30m"`

	RedisURL string `envconfig:"redis_url" default:"redis://localhost:6379/0"`

	SecretKey          string        `envconfig:"secret_key" required:"true"`
	PasswordHashCost   int           `envconfig:"password_hash_cost" default:"12"`
	TokenIssuer        string        `envconfig:"token_issuer" default:"teams-service"`
	AccessTokenTTL     time.Duration `envconfig:"access_token_ttl" default:"15m"`
	RefreshTokenTTL    time.Duration `envconfig:"refresh_token_ttl" default:"720h"`
	VerifyTokenTTL     time.Duration `envconfig:"verify_token_ttl" default:"24h"`
	ResetTokenTTL      time.Duration `envconfig:"reset_token_ttl" default:"15m"`
	EmailChangeTTL     time.Duration `envconfig:"email_change_token_ttl" default:"15m"`
	InvitationLifetime time.Duration `envconfig:"invitation_lifetime" default:"168h"`

	LoginRateLimit      int           `envconfig:"login_rate_limit" default:"10"`
	CodeSendRateLimit   int           `envconfig:"code_send_rate_limit" default:"3"`
	RateLimitWindow     time.Duration `envconfig:"rate_limit_window" default:"1m"`
	QueueBackend        string        `envconfig:"queue_backend" default:"redis"`
	NotificationQueue   string        `envconfig:"notification_queue" default:"notifications"`
	WorkerMaxAttempts   int           `envconfig:"worker_max_attempts" default:"5"`
	WorkerRetryBackoff  time.Duration `envconfig:"worker_retry_backoff" default:"5s"`
	WorkerRetryMaxDelay time.Duration `envconfig:"worker_retry_max_delay" default:"5m"`
	WorkerPollWait      time.Duration `envconfig:"worker_poll_wait" default:"5s"`
	HousekeepingCron    string        `envconfig:"housekeeping_cron" default:"@hourly"`

	MailServer   string `envconfig:"mail_server" default:"localhost"`
	MailPort     int    `envconfig:"mail_port" default:"587"`
	MailUsername string `envconfig:"mail_username"`
	MailPassword string `envconfig:"mail_password"`
	MailFrom     string `envconfig:"email_from" default:"no-reply@localhost"`
	MailStartTLS bool   `envconfig:"mail_starttls" default:"true"`

	SecureCookies bool `envconfig:"secure_cookies" default:"true"`
}

// Validate rejects values envconfig accepts but the service cannot run with
func (s *EnvSpec) Validate() error {
	if strings.TrimSpace(s.SecretKey) == "" {
		return fmt.Errorf("secret_key must not be empty")
	}

	if s.AccessTokenTTL <= 0 || s.RefreshTokenTTL <= 0 || s.VerifyTokenTTL <= 0 || s.ResetTokenTTL <= 0 || s.EmailChangeTTL <= 0 {
		return fmt.Errorf("token lifetimes must be positive")
	}

	if s.InvitationLifetime <= 0 {
		return fmt.Errorf("invitation_lifetime must be positive")
	}

	switch s.QueueBackend {
	case QueueBackendRedis, QueueBackendMemory:
	default:
		return fmt.Errorf("queue_backend must be %q or %q", QueueBackendRedis, QueueBackendMemory)
	}

	if s.WorkerMaxAttempts < 1 {
		return fmt.Errorf("worker_max_attempts must be at least 1")
	}

	return nil
}

// EffectiveLogLevel forces debug output when BACKEND_DEBUG is set
func (s *EnvSpec) EffectiveLogLevel() string {
	if s.Debug {
		return "debug"
	}

	return s.LogLevel
}
