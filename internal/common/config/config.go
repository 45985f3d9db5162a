package config

import (
	"fmt"
	"time"
)

type Config struct {
	App        AppConfig               `mapstructure:"app"`
	Partner    PartnerConfig           `mapstructure:"partner"`
	Submission SubmissionConfig        `mapstructure:"submission"`
	Lookup     LookupConfig            `mapstructure:"lookup"`
	Session    SessionConfig           `mapstructure:"session"`
	Health     HealthConfig            `mapstructure:"health"`
	Camunda    CamundaConfig           `mapstructure:"camunda"`
	Database   DatabaseConfig          `mapstructure:"database"`
	Notify     NotifyConfig            `mapstructure:"notify"`
	Workers    map[string]WorkerConfig `mapstructure:"workers"`
	Logging    LoggingConfig           `mapstructure:"logging"`
	Metrics    MetricsConfig           `mapstructure:"metrics"`
}

type AppConfig struct {
	Name        string `mapstructure:"name"`
	Version     string `mapstructure:"version"`
	Environment string `mapstructure:"environment"`
}

// PartnerConfig points at the two partner backends. The UAT host serves the
// token, OTP and lead endpoints; the external host serves the lookups.
type PartnerConfig struct {
	UATBaseURL       string `mapstructure:"uat_base_url"`
	ExternalBaseURL  string `mapstructure:"external_base_url"`
	APIKey           string `mapstructure:"api_key"`
	Timeout          int    `mapstructure:"timeout"`            // milliseconds
	TokenRefreshSkew int    `mapstructure:"token_refresh_skew"` // milliseconds
}

type SubmissionConfig struct {
	MaxAttempts    int `mapstructure:"max_attempts"`
	BaseDelay      int `mapstructure:"base_delay"`      // milliseconds
	MaxDelay       int `mapstructure:"max_delay"`       // milliseconds
	AttemptTimeout int `mapstructure:"attempt_timeout"` // milliseconds
}

type LookupConfig struct {
	Debounce       int `mapstructure:"debounce"` // milliseconds
	MinQueryLength int `mapstructure:"min_query_length"`
	CacheSize      int `mapstructure:"cache_size"`
	CacheTTL       int `mapstructure:"cache_ttl"` // milliseconds
}

type SessionConfig struct {
	Backend        string `mapstructure:"backend"` // memory | redis
	Namespace      string `mapstructure:"namespace"`
	ResendCooldown int    `mapstructure:"resend_cooldown"` // milliseconds
	MaxOTPAttempts int    `mapstructure:"max_otp_attempts"`
}

type HealthConfig struct {
	Timeout int    `mapstructure:"timeout"` // milliseconds
	Path    string `mapstructure:"path"`
}

type CamundaConfig struct {
	BrokerAddress  string `mapstructure:"broker_address"`
	MaxJobsActive  int    `mapstructure:"max_jobs_active"`
	Timeout        int    `mapstructure:"timeout"`         // milliseconds
	RequestTimeout int    `mapstructure:"request_timeout"` // milliseconds
}

type DatabaseConfig struct {
	Postgres PostgresConfig `mapstructure:"postgres"`
	Redis    RedisConfig    `mapstructure:"redis"`
}

type PostgresConfig struct {
	Host           string `mapstructure:"host"`
	Port           int    `mapstructure:"port"`
	Database       string `mapstructure:"database"`
	User           string `mapstructure:"user"`
	Password       string `mapstructure:"password"`
	MaxConnections int    `mapstructure:"max_connections"`
	MaxIdle        int    `mapstructure:"max_idle"`
	SSLMode        string `mapstructure:"sslmode"`
}

func (p PostgresConfig) GetDSN() string {
	return fmt.Sprintf(
		"host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		p.Host, p.Port, p.User, p.Password, p.Database, p.SSLMode,
	)
}

type RedisConfig struct {
	Address  string `mapstructure:"address"`
	Password string `mapstructure:"password"`
	DB       int    `mapstructure:"db"`
}

// NotifyConfig drives the optional AWS side channels. An empty Region turns
// both off; each channel also needs its own address.
type NotifyConfig struct {
	Region       string   `mapstructure:"region"`
	ContactFrom  string   `mapstructure:"contact_from"`
	ContactTo    []string `mapstructure:"contact_to"`
	LeadTopicARN string   `mapstructure:"lead_topic_arn"`
}

func (n NotifyConfig) ContactEnabled() bool {
	return n.Region != "" && n.ContactFrom != "" && len(n.ContactTo) > 0
}

func (n NotifyConfig) LeadEventsEnabled() bool {
	return n.Region != "" && n.LeadTopicARN != ""
}

type WorkerConfig struct {
	Enabled       bool `mapstructure:"enabled"`
	MaxJobsActive int  `mapstructure:"max_jobs_active"`
	Timeout       int  `mapstructure:"timeout"` // milliseconds
	MaxRetries    int  `mapstructure:"max_retries"`
}

type LoggingConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"`
	Output string `mapstructure:"output"`
}

type MetricsConfig struct {
	Enabled bool   `mapstructure:"enabled"`
	Address string `mapstructure:"address"`
}

func (c PartnerConfig) RequestTimeout() time.Duration {
	return GetDuration(c.Timeout)
}

func (c SubmissionConfig) AttemptTimeoutDuration() time.Duration {
	return GetDuration(c.AttemptTimeout)
}
