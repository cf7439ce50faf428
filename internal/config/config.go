package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

const (
	// MinPort is the minimum valid port number
	MinPort = 1
	// MaxPort is the maximum valid port number
	MaxPort = 65535
)

// Config represents the complete application configuration
type Config struct {
	Server   ServerConfig   `yaml:"server"`
	Database DatabaseConfig `yaml:"database"`
	RabbitMQ RabbitMQConfig `yaml:"rabbitmq"`
	Redis    RedisConfig    `yaml:"redis"`
	Logging  LoggingConfig  `yaml:"logging"`
	App      AppConfig      `yaml:"app"`
	Worker   WorkerConfig   `yaml:"worker"`
	Booking  BookingConfig  `yaml:"booking"`
	Push     PushConfig     `yaml:"push"`
	AWS      AWSConfig      `yaml:"aws"`
	SMS      SMSConfig      `yaml:"sms"`
}

// ServerConfig holds HTTP server configuration
type ServerConfig struct {
	Port            int           `yaml:"port"`
	ReadTimeout     time.Duration `yaml:"read_timeout"`
	WriteTimeout    time.Duration `yaml:"write_timeout"`
	IdleTimeout     time.Duration `yaml:"idle_timeout"`
	ShutdownTimeout time.Duration `yaml:"shutdown_timeout"`
}

// DatabaseConfig holds PostgreSQL connection configuration
type DatabaseConfig struct {
	Host            string        `yaml:"host"`
	Port            int           `yaml:"port"`
	User            string        `yaml:"user"`
	Password        string        `yaml:"password"`
	Database        string        `yaml:"database"`
	SSLMode         string        `yaml:"sslmode"`
	MaxOpenConns    int           `yaml:"max_open_conns"`
	MaxIdleConns    int           `yaml:"max_idle_conns"`
	ConnMaxLifetime time.Duration `yaml:"conn_max_lifetime"`
	ConnMaxIdleTime time.Duration `yaml:"conn_max_idle_time"`
	AutoMigrate     bool          `yaml:"auto_migrate"`
}

// RabbitMQConfig holds the booking command exchange and queue
type RabbitMQConfig struct {
	Host       string           `yaml:"host"`
	Port       int              `yaml:"port"`
	User       string           `yaml:"user"`
	Password   string           `yaml:"password"`
	VHost      string           `yaml:"vhost"`
	Exchange   ExchangeConfig   `yaml:"exchange"`
	Queue      QueueConfig      `yaml:"queue"`
	RoutingKey string           `yaml:"routing_key"`
	Connection ConnectionConfig `yaml:"connection"`
	Publish    PublishConfig    `yaml:"publish"`
}

// ExchangeConfig holds RabbitMQ exchange configuration
type ExchangeConfig struct {
	Name       string `yaml:"name"`
	Type       string `yaml:"type"`
	Durable    bool   `yaml:"durable"`
	AutoDelete bool   `yaml:"auto_delete"`
}

// QueueConfig holds RabbitMQ queue configuration
type QueueConfig struct {
	Name       string `yaml:"name"`
	Durable    bool   `yaml:"durable"`
	AutoDelete bool   `yaml:"auto_delete"`
	Exclusive  bool   `yaml:"exclusive"`
}

// ConnectionConfig holds RabbitMQ connection settings
type ConnectionConfig struct {
	RetryAttempts int           `yaml:"retry_attempts"`
	RetryInterval time.Duration `yaml:"retry_interval"`
	Heartbeat     time.Duration `yaml:"heartbeat"`
}

// PublishConfig holds RabbitMQ publish retry settings
type PublishConfig struct {
	RetryAttempts     int           `yaml:"retry_attempts"`
	RetryInterval     time.Duration `yaml:"retry_interval"`
	BackoffMultiplier float64       `yaml:"backoff_multiplier"`
}

// RedisConfig holds the language label cache connection
type RedisConfig struct {
	Enabled     bool          `yaml:"enabled"`
	Addr        string        `yaml:"addr"`
	Password    string        `yaml:"password"`
	DB          int           `yaml:"db"`
	PoolSize    int           `yaml:"pool_size"`
	LanguageTTL time.Duration `yaml:"language_ttl"`
}

// LoggingConfig holds logging configuration
type LoggingConfig struct {
	Level        string `yaml:"level"`
	Format       string `yaml:"format"`
	Output       string `yaml:"output"`
	EnableCaller bool   `yaml:"enable_caller"`
}

// AppConfig holds application metadata
type AppConfig struct {
	Name        string `yaml:"name"`
	Version     string `yaml:"version"`
	Environment string `yaml:"environment"`
}

// WorkerConfig holds worker service configuration
type WorkerConfig struct {
	ID                  string        `yaml:"id"`
	Concurrency         int           `yaml:"concurrency"`
	PrefetchCount       int           `yaml:"prefetch_count"`
	CommandTimeout      time.Duration `yaml:"command_timeout"`
	ExpirySweepInterval time.Duration `yaml:"expiry_sweep_interval"`
	ShutdownTimeout     time.Duration `yaml:"shutdown_timeout"`
}

// BookingConfig holds the local time rules for notifications
type BookingConfig struct {
	Timezone          string `yaml:"timezone"`
	NightStart        string `yaml:"night_start"`
	NightEnd          string `yaml:"night_end"`
	NotifyConcurrency int    `yaml:"notify_concurrency"`
}

// PushConfig holds OneSignal credentials
type PushConfig struct {
	URL     string        `yaml:"url"`
	AppID   string        `yaml:"app_id"`
	APIKey  string        `yaml:"api_key"`
	Timeout time.Duration `yaml:"timeout"`
}

// AWSConfig holds the SES and SNS settings
type AWSConfig struct {
	Region            string `yaml:"region"`
	Endpoint          string `yaml:"endpoint"`
	AccessKeyID       string `yaml:"access_key_id"`
	SecretAccessKey   string `yaml:"secret_access_key"`
	SESFrom           string `yaml:"ses_from"`
	SESTemplatePrefix string `yaml:"ses_template_prefix"`
}

// SMSConfig holds the sender shown on translator text messages
type SMSConfig struct {
	From string `yaml:"from"`
}

// Load reads and parses the configuration file. Secrets set in the environment
// override the file.
func Load(configPath string) (*Config, error) {
	data, err := os.ReadFile(configPath)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	var config Config
	if err := yaml.Unmarshal(data, &config); err != nil {
		return nil, fmt.Errorf("failed to parse config file: %w", err)
	}

	config.applyEnv()
	return &config, nil
}

func (c *Config) applyEnv() {
	overrides := map[string]*string{
		"DATABASE_PASSWORD":     &c.Database.Password,
		"RABBITMQ_PASSWORD":     &c.RabbitMQ.Password,
		"REDIS_PASSWORD":        &c.Redis.Password,
		"ONESIGNAL_APP_ID":      &c.Push.AppID,
		"ONESIGNAL_API_KEY":     &c.Push.APIKey,
		"AWS_ACCESS_KEY_ID":     &c.AWS.AccessKeyID,
		"AWS_SECRET_ACCESS_KEY": &c.AWS.SecretAccessKey,
	}
	for env, field := range overrides {
		if v := strings.TrimSpace(os.Getenv(env)); v != "" {
			*field = v
		}
	}
}

// Location returns the booking timezone, UTC when unset.
func (b BookingConfig) Location() (*time.Location, error) {
	if b.Timezone == "" {
		return time.UTC, nil
	}
	loc, err := time.LoadLocation(b.Timezone)
	if err != nil {
		return nil, fmt.Errorf("invalid booking timezone %q: %w", b.Timezone, err)
	}
	return loc, nil
}

// NightWindow returns the night start and end as offsets from midnight.
// Defaults are 22:00 and 07:00.
func (b BookingConfig) NightWindow() (time.Duration, time.Duration, error) {
	start, err := clockOffset(b.NightStart, 22*time.Hour)
	if err != nil {
		return 0, 0, fmt.Errorf("invalid night_start: %w", err)
	}
	end, err := clockOffset(b.NightEnd, 7*time.Hour)
	if err != nil {
		return 0, 0, fmt.Errorf("invalid night_end: %w", err)
	}
	return start, end, nil
}

func clockOffset(s string, def time.Duration) (time.Duration, error) {
	if s == "" {
		return def, nil
	}
	t, err := time.Parse("15:04", s)
	if err != nil {
		return 0, err
	}
	return time.Duration(t.Hour())*time.Hour + time.Duration(t.Minute())*time.Minute, nil
}

// Validate checks the settings both services share
func (c *Config) Validate() error {
	if c.Database.Host == "" {
		return fmt.Errorf("database host is required")
	}

	if c.Database.Port < MinPort || c.Database.Port > MaxPort {
		return fmt.Errorf("invalid database port: %d (must be between %d and %d)", c.Database.Port, MinPort, MaxPort)
	}

	if c.Database.Database == "" {
		return fmt.Errorf("database name is required")
	}

	if c.RabbitMQ.Host == "" {
		return fmt.Errorf("rabbitmq host is required")
	}

	if c.RabbitMQ.Port < MinPort || c.RabbitMQ.Port > MaxPort {
		return fmt.Errorf("invalid rabbitmq port: %d (must be between %d and %d)", c.RabbitMQ.Port, MinPort, MaxPort)
	}

	if c.RabbitMQ.Exchange.Name == "" {
		return fmt.Errorf("rabbitmq exchange name is required")
	}

	if c.Redis.Enabled && c.Redis.Addr == "" {
		return fmt.Errorf("redis addr is required when redis is enabled")
	}

	if _, err := c.Booking.Location(); err != nil {
		return err
	}

	if _, _, err := c.Booking.NightWindow(); err != nil {
		return err
	}

	if c.Push.AppID == "" {
		return fmt.Errorf("push app_id is required")
	}

	if c.AWS.Region == "" {
		return fmt.Errorf("aws region is required")
	}

	if c.AWS.SESFrom == "" {
		return fmt.Errorf("aws ses_from is required")
	}

	return nil
}

// ValidateAPIConfig checks the settings the API service needs
func (c *Config) ValidateAPIConfig() error {
	if c.Server.Port < MinPort || c.Server.Port > MaxPort {
		return fmt.Errorf("invalid server port: %d (must be between %d and %d)", c.Server.Port, MinPort, MaxPort)
	}

	return c.Validate()
}

// ValidateWorkerConfig checks the settings the worker service needs
func (c *Config) ValidateWorkerConfig() error {
	if err := c.Validate(); err != nil {
		return err
	}

	if c.RabbitMQ.Queue.Name == "" {
		return fmt.Errorf("rabbitmq queue name is required")
	}

	if c.Worker.Concurrency <= 0 {
		return fmt.Errorf("worker concurrency must be greater than 0")
	}

	if c.Worker.CommandTimeout <= 0 {
		return fmt.Errorf("worker command_timeout must be greater than 0")
	}

	if c.Worker.ShutdownTimeout <= 0 {
		return fmt.Errorf("worker shutdown_timeout must be greater than 0")
	}

	return nil
}
