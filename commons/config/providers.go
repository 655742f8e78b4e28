package config

import (
	"context"
	"fmt"
	"time"

	"rcmos/commons/routes"
	"rcmos/internal/artifacts"
	cache "rcmos/internal/cache/iface"
	redisCache "rcmos/internal/cache/redis"
	coordinator "rcmos/internal/coordinator/iface"
	zkCoordinator "rcmos/internal/coordinator/zk"
	eventbus "rcmos/internal/eventbus/iface"
	redisBus "rcmos/internal/eventbus/redis"
	"rcmos/internal/logger"
	"rcmos/internal/repository/postgres"
	"rcmos/internal/retry"
	"rcmos/internal/slack"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	awsdynamodb "github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/sqs"
	"github.com/gin-gonic/gin"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/minio/minio-go/v7"
	miniocreds "github.com/minio/minio-go/v7/pkg/credentials"
	"github.com/redis/go-redis/v9"
	"go.uber.org/fx"
	"go.uber.org/fx/fxevent"
)

// ProvideLogger creates and configures the logger for the application
func ProvideLogger(settings Settings) (logger.Logger, error) {
	if settings.IsDev() {
		return logger.NewZapLoggerForDev()
	}
	return logger.NewZapLogger()
}

// ProvideFxLogger creates the FX event logger using the application logger
func ProvideFxLogger(log logger.Logger) fxevent.Logger {
	return &fxevent.ZapLogger{
		Logger: log.(*logger.ZapLogger).Logger(),
	}
}

// ProvideRouteDependencies creates route dependencies
func ProvideRouteDependencies(log logger.Logger) routes.RouteDependencies {
	return routes.RouteDependencies{
		Logger: log,
	}
}

// ProvideRouter creates and configures the Gin router with all routes
func ProvideRouter(
	config routes.RouterConfig,
	deps routes.RouteDependencies,
	routeInitializer func(*gin.Engine, routes.RouteDependencies),
) *gin.Engine {
	router := routes.NewRouter(config, deps)
	routeInitializer(router, deps)
	return router
}

// connect retries dial under the startup policy, logging each failed attempt.
func connect(settings Settings, log logger.Logger, name string, dial func(ctx context.Context) error) error {
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Minute)
	defer cancel()

	err := retry.Do(ctx, settings.Startup.Retry, dial, func(err error, wait time.Duration) {
		log.Warn("dependency not ready, retrying",
			logger.String("dependency", name),
			logger.Duration("wait", wait),
			logger.Error(err))
	})
	if err != nil {
		return fmt.Errorf("failed to connect to %s: %w", name, err)
	}
	log.Info("dependency connected", logger.String("dependency", name))
	return nil
}

// ProvideAWSConfig loads the shared AWS config. Local environments get static
// credentials so LocalStack and DynamoDB Local work without a profile.
func ProvideAWSConfig(settings Settings) (aws.Config, error) {
	opts := []func(*awsconfig.LoadOptions) error{
		awsconfig.WithRegion(settings.AWS.Region),
	}
	if settings.IsDev() {
		opts = append(opts, awsconfig.WithCredentialsProvider(
			credentials.NewStaticCredentialsProvider("local", "local", "")))
	}
	return awsconfig.LoadDefaultConfig(context.Background(), opts...)
}

// ProvideSQSClient provides an SQS client (for LocalStack or AWS)
func ProvideSQSClient(cfg aws.Config, settings Settings) *sqs.Client {
	return sqs.NewFromConfig(cfg, func(o *sqs.Options) {
		if settings.AWS.SQSEndpoint != "" {
			o.BaseEndpoint = aws.String(settings.AWS.SQSEndpoint)
		}
	})
}

// ProvideDynamoDBClient provides DynamoDB client
func ProvideDynamoDBClient(cfg aws.Config, settings Settings) *awsdynamodb.Client {
	return awsdynamodb.NewFromConfig(cfg, func(o *awsdynamodb.Options) {
		if settings.AWS.DynamoDBEndpoint != "" {
			o.BaseEndpoint = aws.String(settings.AWS.DynamoDBEndpoint)
		}
	})
}

// ProvideRedisClient dials Redis and closes it on shutdown.
func ProvideRedisClient(lc fx.Lifecycle, settings Settings, log logger.Logger) (*redis.Client, error) {
	client := redis.NewClient(&redis.Options{
		Addr:     settings.Redis.Addr,
		Password: settings.Redis.Password,
		DB:       settings.Redis.DB,
	})

	err := connect(settings, log, "redis", func(ctx context.Context) error {
		return client.Ping(ctx).Err()
	})
	if err != nil {
		_ = client.Close()
		return nil, err
	}

	lc.Append(fx.Hook{
		OnStop: func(ctx context.Context) error {
			return client.Close()
		},
	})
	return client, nil
}

// ProvideRedisCache provides a Redis cache client
func ProvideRedisCache(client *redis.Client, log logger.Logger) cache.Cache {
	return redisCache.NewRedisCache(client, log)
}

func ProvideRedisEventBus(client *redis.Client, settings Settings, log logger.Logger) eventbus.Bus {
	return redisBus.NewRedisBus(client, settings.Redis.EventsChannel, log)
}

// ProvidePostgresPool opens the pool and applies the embedded migrations.
func ProvidePostgresPool(lc fx.Lifecycle, settings Settings, log logger.Logger) (*pgxpool.Pool, error) {
	pool, err := pgxpool.New(context.Background(), settings.Store.DatabaseURL)
	if err != nil {
		return nil, fmt.Errorf("invalid database url: %w", err)
	}

	err = connect(settings, log, "postgres", func(ctx context.Context) error {
		if err := pool.Ping(ctx); err != nil {
			return err
		}
		return postgres.EnsureSchema(ctx, pool, log)
	})
	if err != nil {
		pool.Close()
		return nil, err
	}

	lc.Append(fx.Hook{
		OnStop: func(ctx context.Context) error {
			pool.Close()
			return nil
		},
	})
	return pool, nil
}

// ProvideZooKeeperCoordinator provides a ZooKeeper coordinator for distributed coordination
func ProvideZooKeeperCoordinator(lc fx.Lifecycle, settings Settings, log logger.Logger) (coordinator.Coordinator, error) {
	var coord coordinator.Coordinator
	err := connect(settings, log, "zookeeper", func(ctx context.Context) error {
		c, err := zkCoordinator.NewZKCoordinator(settings.ZooKeeper.Servers, settings.ZooKeeper.SessionTimeout, log)
		if err != nil {
			return err
		}
		coord = c
		return nil
	})
	if err != nil {
		return nil, err
	}

	lc.Append(fx.Hook{
		OnStop: func(ctx context.Context) error {
			return coord.Close()
		},
	})
	return coord, nil
}

// ProvideMinioClient connects to the artifact bucket, creating it if needed.
func ProvideMinioClient(settings Settings, log logger.Logger) (*minio.Client, error) {
	client, err := minio.New(settings.S3.Endpoint, &minio.Options{
		Creds:  miniocreds.NewStaticV4(settings.S3.AccessKey, settings.S3.SecretKey, ""),
		Secure: settings.S3.UseSSL,
		Region: settings.S3.Region,
	})
	if err != nil {
		return nil, fmt.Errorf("invalid object store config: %w", err)
	}

	err = connect(settings, log, "object_store", func(ctx context.Context) error {
		return artifacts.EnsureBucket(ctx, client, settings.S3.Bucket, settings.S3.Region)
	})
	if err != nil {
		return nil, err
	}
	return client, nil
}

// ProvideSlackClient provides the operator notifier
func ProvideSlackClient(log logger.Logger) slack.Client {
	return slack.NewLogClient(log)
}
