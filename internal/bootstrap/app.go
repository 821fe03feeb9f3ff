package bootstrap

import (
	"context"
	"fmt"
	"log"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"
	"github.com/redis/go-redis/v9"
	"gorm.io/gorm"

	"exmora-backend/internal/config"
	"exmora-backend/internal/model"
	mysqlClient "exmora-backend/internal/platform/mysql"
	rabbitmqClient "exmora-backend/internal/platform/rabbitmq"
	redisClient "exmora-backend/internal/platform/redis"
	s3Client "exmora-backend/internal/platform/s3"
	"exmora-backend/internal/repository"
	"exmora-backend/internal/worker"
)

// App holds the process-wide clients, constructed once at startup and
// reused for the process lifetime.
type App struct {
	Config      *config.Config
	MySQL       *gorm.DB
	Redis       *redis.Client
	MQConn      *amqp.Connection
	Blob        *s3Client.BlobStore
	UsageWorker *worker.UsagePersistWorker

	StartedAt time.Time
}

func New(ctx context.Context) (*App, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, fmt.Errorf("load config failed: %w", err)
	}

	mysqlDB, err := mysqlClient.New(ctx, cfg.MySQLDSN())
	if err != nil {
		return nil, err
	}
	if err := mysqlDB.AutoMigrate(
		&model.Session{},
		&model.Document{},
		&model.Exchange{},
		&model.UsageRecord{},
	); err != nil {
		return nil, fmt.Errorf("auto migrate tables failed: %w", err)
	}

	redisCli, err := redisClient.New(ctx, cfg.Redis.Addr, cfg.Redis.Password, cfg.Redis.DB)
	if err != nil {
		return nil, err
	}

	mqConn, err := rabbitmqClient.New(cfg.RabbitMQ.URL)
	if err != nil {
		return nil, err
	}

	// Blob storage is optional; without credentials uploads proceed with no
	// remote copy.
	var blob *s3Client.BlobStore
	if cfg.BlobEnabled() {
		blob, err = s3Client.New(ctx, cfg.S3.AccessKey, cfg.S3.SecretKey, cfg.S3.Region, cfg.S3.Bucket)
		if err != nil {
			log.Printf("init blob store failed, continuing without remote storage: %v", err)
			blob = nil
		}
	}

	usageRepo := repository.NewUsageRepository(mysqlDB)
	usageWorker := worker.NewUsagePersistWorker(mqConn, usageRepo, cfg.RabbitMQ.UsageEventQueue)
	if err := usageWorker.Start(ctx); err != nil {
		return nil, fmt.Errorf("start usage worker failed: %w", err)
	}

	return &App{
		Config:      cfg,
		MySQL:       mysqlDB,
		Redis:       redisCli,
		MQConn:      mqConn,
		Blob:        blob,
		UsageWorker: usageWorker,
		StartedAt:   time.Now(),
	}, nil
}

func (a *App) Close() error {
	var closeErr error
	if a.Redis != nil {
		if err := a.Redis.Close(); err != nil {
			closeErr = err
		}
	}
	if a.UsageWorker != nil {
		a.UsageWorker.Close()
	}
	if a.MQConn != nil {
		if err := a.MQConn.Close(); err != nil {
			closeErr = err
		}
	}
	if a.MySQL != nil {
		sqlDB, err := a.MySQL.DB()
		if err == nil {
			if err := sqlDB.Close(); err != nil {
				closeErr = err
			}
		}
	}
	return closeErr
}
