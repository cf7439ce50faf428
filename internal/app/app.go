// Package app builds the booking core and its backing clients from configuration.
package app

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/aws/aws-sdk-go/service/ses"
	"github.com/aws/aws-sdk-go/service/sns"
	"github.com/jmoiron/sqlx"

	"github.com/cuongbtq/tolkbooking/internal/booking/language"
	"github.com/cuongbtq/tolkbooking/internal/booking/lifecycle"
	"github.com/cuongbtq/tolkbooking/internal/booking/matching"
	"github.com/cuongbtq/tolkbooking/internal/booking/notify"
	"github.com/cuongbtq/tolkbooking/internal/booking/orchestrator"
	"github.com/cuongbtq/tolkbooking/internal/booking/store"
	"github.com/cuongbtq/tolkbooking/internal/config"
	"github.com/cuongbtq/tolkbooking/internal/transport/mail"
	"github.com/cuongbtq/tolkbooking/internal/transport/push"
	"github.com/cuongbtq/tolkbooking/internal/transport/sms"
	"github.com/cuongbtq/tolkbooking/shared/awsclient"
	"github.com/cuongbtq/tolkbooking/shared/logger"
	"github.com/cuongbtq/tolkbooking/shared/postgresql"
	"github.com/cuongbtq/tolkbooking/shared/rabbitmq"
	"github.com/cuongbtq/tolkbooking/shared/redis"
)

// Core is the wired booking domain shared by the API and worker services
type Core struct {
	Store        *store.Postgres
	Engine       *matching.Engine
	Languages    *language.Names
	Dispatcher   *notify.Dispatcher
	Orchestrator *orchestrator.Orchestrator
}

// NewCore wires store, matching, notification and orchestration on top of db.
// cache may be nil, in which case language labels are read from the store every time.
func NewCore(ctx context.Context, cfg *config.Config, db *sqlx.DB, cache language.Cache, log *slog.Logger) (*Core, error) {
	pg := store.NewPostgres(db, log)
	if cfg.Database.AutoMigrate {
		if err := pg.Migrate(ctx); err != nil {
			return nil, fmt.Errorf("failed to migrate schema: %w", err)
		}
		log.Info("Database schema migrated")
	}

	loc, err := cfg.Booking.Location()
	if err != nil {
		return nil, err
	}
	nightStart, nightEnd, err := cfg.Booking.NightWindow()
	if err != nil {
		return nil, err
	}

	sess, err := awsclient.NewSession(awsclient.Config{
		Region:    cfg.AWS.Region,
		Endpoint:  cfg.AWS.Endpoint,
		AccessKey: cfg.AWS.AccessKeyID,
		SecretKey: cfg.AWS.SecretAccessKey,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create AWS session: %w", err)
	}

	names := language.NewNames(pg, cache, cfg.Redis.LanguageTTL, log)
	engine := matching.NewEngine(pg, log)

	dispatcher := notify.NewDispatcher(&notify.Config{
		Push: push.NewClient(push.Config{
			URL:     cfg.Push.URL,
			AppID:   cfg.Push.AppID,
			APIKey:  cfg.Push.APIKey,
			Timeout: cfg.Push.Timeout,
		}, log),
		Mail: mail.NewSES(ses.New(sess), mail.Config{
			From:           cfg.AWS.SESFrom,
			TemplatePrefix: cfg.AWS.SESTemplatePrefix,
		}, log),
		SMS:         sms.NewSNS(sns.New(sess), log),
		Matcher:     engine,
		Languages:   names,
		Delay:       notify.NewDelayPolicy(nightStart, nightEnd, loc),
		SMSFrom:     cfg.SMS.From,
		Concurrency: cfg.Booking.NotifyConcurrency,
		Clock:       time.Now,
		Logger:      log,
	})

	lifecycleSvc := lifecycle.NewService(pg, dispatcher, time.Now, log)

	return &Core{
		Store:      pg,
		Engine:     engine,
		Languages:  names,
		Dispatcher: dispatcher,
		Orchestrator: orchestrator.New(&orchestrator.Config{
			Store:     pg,
			Lifecycle: lifecycleSvc,
			Notifier:  dispatcher,
			Languages: names,
			Location:  loc,
			Clock:     time.Now,
			Logger:    log,
		}),
	}, nil
}

// InitLogger initializes and configures the application logger
func InitLogger(cfg *config.LoggingConfig, service string) (*logger.Logger, error) {
	return logger.New(&logger.Config{
		Level:        cfg.Level,
		Format:       cfg.Format,
		Output:       cfg.Output,
		EnableSource: cfg.EnableCaller,
		TimeFormat:   time.RFC3339,
		Service:      service,
	})
}

// InitPostgreSQL initializes the PostgreSQL database client
func InitPostgreSQL(cfg *config.DatabaseConfig, log *slog.Logger) (*postgresql.Client, error) {
	return postgresql.NewClient(&postgresql.Config{
		Host:            cfg.Host,
		Port:            cfg.Port,
		User:            cfg.User,
		Password:        cfg.Password,
		Database:        cfg.Database,
		SSLMode:         cfg.SSLMode,
		MaxOpenConns:    cfg.MaxOpenConns,
		MaxIdleConns:    cfg.MaxIdleConns,
		ConnMaxLifetime: cfg.ConnMaxLifetime,
		ConnMaxIdleTime: cfg.ConnMaxIdleTime,
	}, log)
}

// InitRabbitMQ initializes the RabbitMQ client. Without consume the queue is
// not declared and the client only publishes.
func InitRabbitMQ(cfg *config.RabbitMQConfig, consume bool, log *slog.Logger) (*rabbitmq.Client, error) {
	rc := &rabbitmq.Config{
		Host:               cfg.Host,
		Port:               cfg.Port,
		User:               cfg.User,
		Password:           cfg.Password,
		VHost:              cfg.VHost,
		ExchangeName:       cfg.Exchange.Name,
		ExchangeType:       cfg.Exchange.Type,
		ExchangeDurable:    cfg.Exchange.Durable,
		ExchangeAutoDelete: cfg.Exchange.AutoDelete,
		RetryAttempts:      cfg.Connection.RetryAttempts,
		RetryInterval:      cfg.Connection.RetryInterval,
		Heartbeat:          cfg.Connection.Heartbeat,
		PublishRetries:     cfg.Publish.RetryAttempts,
		PublishRetryDelay:  cfg.Publish.RetryInterval,
		PublishBackoffMult: cfg.Publish.BackoffMultiplier,
	}
	if consume {
		rc.QueueName = cfg.Queue.Name
		rc.QueueDurable = cfg.Queue.Durable
		rc.QueueAutoDelete = cfg.Queue.AutoDelete
		rc.QueueExclusive = cfg.Queue.Exclusive
		rc.BindingKey = cfg.RoutingKey
	}
	return rabbitmq.NewClient(rc, log)
}

// InitRedis connects the language cache. It returns nil when redis is disabled.
func InitRedis(cfg *config.RedisConfig, log *slog.Logger) (*redis.Client, error) {
	if !cfg.Enabled {
		log.Info("Redis disabled, language labels are not cached")
		return nil, nil
	}
	return redis.NewClient(&redis.Config{
		Addr:     cfg.Addr,
		Password: cfg.Password,
		DB:       cfg.DB,
		PoolSize: cfg.PoolSize,
	}, log)
}

// LanguageCache returns client as a language.Cache, or a nil interface for a nil client.
func LanguageCache(client *redis.Client) language.Cache {
	if client == nil {
		return nil
	}
	return client
}
