package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoad(t *testing.T) {
	tests := []struct {
		name      string
		filePath  string
		wantErr   bool
		errString string
	}{
		{
			name:     "valid config file",
			filePath: "testdata/valid_config.yaml",
		},
		{
			name:      "non-existent file",
			filePath:  "testdata/nonexistent.yaml",
			wantErr:   true,
			errString: "failed to read config file",
		},
		{
			name:      "malformed yaml",
			filePath:  "testdata/malformed.yaml",
			wantErr:   true,
			errString: "failed to parse config file",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg, err := Load(tt.filePath)

			if tt.wantErr {
				require.Error(t, err)
				assert.Contains(t, err.Error(), tt.errString)
				assert.Nil(t, cfg)
				return
			}
			require.NoError(t, err)
			require.NotNil(t, cfg)

			assert.Equal(t, 8080, cfg.Server.Port)
			assert.Equal(t, "tolkbooking", cfg.Database.Database)
			assert.True(t, cfg.Database.AutoMigrate)
			assert.Equal(t, "booking_commands", cfg.RabbitMQ.Exchange.Name)
			assert.Equal(t, "booking.command.*", cfg.RabbitMQ.RoutingKey)
			assert.Equal(t, time.Hour, cfg.Redis.LanguageTTL)
			assert.Equal(t, "Europe/Stockholm", cfg.Booking.Timezone)
			assert.Equal(t, "tolk-", cfg.AWS.SESTemplatePrefix)
			assert.Equal(t, "DigitalTolk", cfg.SMS.From)
			assert.Equal(t, time.Minute, cfg.Worker.ExpirySweepInterval)
		})
	}
}

func TestLoad_EnvOverridesSecrets(t *testing.T) {
	t.Setenv("ONESIGNAL_API_KEY", "from-env")
	t.Setenv("DATABASE_PASSWORD", "db-secret")

	cfg, err := Load("testdata/valid_config.yaml")
	require.NoError(t, err)
	assert.Equal(t, "from-env", cfg.Push.APIKey)
	assert.Equal(t, "db-secret", cfg.Database.Password)
	assert.Equal(t, "onesignal-app", cfg.Push.AppID)
}

func validConfig() *Config {
	return &Config{
		Server:   ServerConfig{Port: 8080},
		Database: DatabaseConfig{Host: "localhost", Port: 5432, Database: "tolkbooking"},
		RabbitMQ: RabbitMQConfig{
			Host:     "localhost",
			Port:     5672,
			Exchange: ExchangeConfig{Name: "booking_commands"},
			Queue:    QueueConfig{Name: "booking_commands_queue"},
		},
		Worker:  WorkerConfig{Concurrency: 2, CommandTimeout: time.Second, ShutdownTimeout: time.Second},
		Booking: BookingConfig{Timezone: "Europe/Stockholm"},
		Push:    PushConfig{AppID: "app"},
		AWS:     AWSConfig{Region: "eu-north-1", SESFrom: "noreply@digitaltolk.se"},
	}
}

func TestConfig_ValidateAPIConfig(t *testing.T) {
	tests := []struct {
		name      string
		mutate    func(c *Config)
		errString string
	}{
		{name: "valid config", mutate: func(c *Config) {}},
		{name: "server port too low", mutate: func(c *Config) { c.Server.Port = 0 }, errString: "invalid server port"},
		{name: "server port too high", mutate: func(c *Config) { c.Server.Port = 70000 }, errString: "invalid server port"},
		{name: "missing database host", mutate: func(c *Config) { c.Database.Host = "" }, errString: "database host is required"},
		{name: "invalid database port", mutate: func(c *Config) { c.Database.Port = -1 }, errString: "invalid database port"},
		{name: "missing database name", mutate: func(c *Config) { c.Database.Database = "" }, errString: "database name is required"},
		{name: "missing rabbitmq host", mutate: func(c *Config) { c.RabbitMQ.Host = "" }, errString: "rabbitmq host is required"},
		{name: "invalid rabbitmq port", mutate: func(c *Config) { c.RabbitMQ.Port = 99999 }, errString: "invalid rabbitmq port"},
		{name: "missing exchange", mutate: func(c *Config) { c.RabbitMQ.Exchange.Name = "" }, errString: "exchange name is required"},
		{name: "redis enabled without addr", mutate: func(c *Config) { c.Redis.Enabled = true }, errString: "redis addr is required"},
		{name: "unknown timezone", mutate: func(c *Config) { c.Booking.Timezone = "Mars/Olympus" }, errString: "invalid booking timezone"},
		{name: "bad night start", mutate: func(c *Config) { c.Booking.NightStart = "late" }, errString: "invalid night_start"},
		{name: "missing push app", mutate: func(c *Config) { c.Push.AppID = "" }, errString: "push app_id is required"},
		{name: "missing aws region", mutate: func(c *Config) { c.AWS.Region = "" }, errString: "aws region is required"},
		{name: "missing ses sender", mutate: func(c *Config) { c.AWS.SESFrom = "" }, errString: "aws ses_from is required"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := validConfig()
			tt.mutate(cfg)

			err := cfg.ValidateAPIConfig()
			if tt.errString == "" {
				assert.NoError(t, err)
				return
			}
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.errString)
		})
	}
}

func TestConfig_ValidateWorkerConfig(t *testing.T) {
	tests := []struct {
		name      string
		mutate    func(c *Config)
		errString string
	}{
		{name: "valid config", mutate: func(c *Config) { c.Server.Port = 0 }},
		{name: "missing queue", mutate: func(c *Config) { c.RabbitMQ.Queue.Name = "" }, errString: "queue name is required"},
		{name: "zero concurrency", mutate: func(c *Config) { c.Worker.Concurrency = 0 }, errString: "concurrency must be greater than 0"},
		{name: "zero command timeout", mutate: func(c *Config) { c.Worker.CommandTimeout = 0 }, errString: "command_timeout"},
		{name: "zero shutdown timeout", mutate: func(c *Config) { c.Worker.ShutdownTimeout = 0 }, errString: "shutdown_timeout"},
		{name: "shared checks still apply", mutate: func(c *Config) { c.Database.Host = "" }, errString: "database host is required"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := validConfig()
			tt.mutate(cfg)

			err := cfg.ValidateWorkerConfig()
			if tt.errString == "" {
				assert.NoError(t, err)
				return
			}
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.errString)
		})
	}
}

func TestLoad_ValidateIntegration(t *testing.T) {
	t.Run("valid config passes validation", func(t *testing.T) {
		cfg, err := Load("testdata/valid_config.yaml")
		require.NoError(t, err)
		assert.NoError(t, cfg.ValidateAPIConfig())
		assert.NoError(t, cfg.ValidateWorkerConfig())
	})

	t.Run("invalid port fails validation", func(t *testing.T) {
		cfg, err := Load("testdata/invalid_port.yaml")
		require.NoError(t, err)
		err = cfg.ValidateAPIConfig()
		require.Error(t, err)
		assert.Contains(t, err.Error(), "invalid server port")
	})

	t.Run("missing database fails validation", func(t *testing.T) {
		cfg, err := Load("testdata/missing_database.yaml")
		require.NoError(t, err)
		err = cfg.ValidateWorkerConfig()
		require.Error(t, err)
		assert.Contains(t, err.Error(), "database name is required")
	})
}

func TestBookingConfig_NightWindow(t *testing.T) {
	start, end, err := BookingConfig{}.NightWindow()
	require.NoError(t, err)
	assert.Equal(t, 22*time.Hour, start)
	assert.Equal(t, 7*time.Hour, end)

	start, end, err = BookingConfig{NightStart: "21:30", NightEnd: "06:15"}.NightWindow()
	require.NoError(t, err)
	assert.Equal(t, 21*time.Hour+30*time.Minute, start)
	assert.Equal(t, 6*time.Hour+15*time.Minute, end)

	loc, err := BookingConfig{}.Location()
	require.NoError(t, err)
	assert.Equal(t, time.UTC, loc)
}
