package config

import (
	"rcmos/commons/config"
	"rcmos/internal/logger"
	"rcmos/internal/repository/dynamodb"
	repository "rcmos/internal/repository/iface"
	"rcmos/internal/repository/memory"
	"rcmos/internal/repository/postgres"

	awsdynamodb "github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/jackc/pgx/v5/pgxpool"
	"go.uber.org/fx"
)

// StoreModule provides the run and instance repositories for store.driver.
func StoreModule(settings config.Settings) fx.Option {
	switch settings.Store.Driver {
	case "postgres":
		return fx.Provide(
			config.ProvidePostgresPool,
			ProvidePostgresRunRepository,
			ProvidePostgresInstanceRepository,
		)
	case "memory":
		return fx.Provide(
			ProvideMemoryRunRepository,
			ProvideMemoryInstanceRepository,
		)
	default:
		return fx.Provide(
			config.ProvideDynamoDBClient,
			ProvideDynamoTables,
			ProvideDynamoRunRepository,
			ProvideDynamoInstanceRepository,
		)
	}
}

func ProvideDynamoTables(settings config.Settings) dynamodb.Tables {
	return dynamodb.Tables{
		Runs:      settings.Store.RunsTable,
		Mappings:  settings.Store.MappingsTable,
		Instances: settings.Store.InstancesTable,
	}
}

func ProvideDynamoRunRepository(client *awsdynamodb.Client, tables dynamodb.Tables, log logger.Logger) repository.RunRepository {
	return dynamodb.NewRunRepository(client, tables, log)
}

func ProvideDynamoInstanceRepository(client *awsdynamodb.Client, tables dynamodb.Tables, log logger.Logger) repository.InstanceRepository {
	return dynamodb.NewInstanceRepository(client, tables, log)
}

func ProvidePostgresRunRepository(pool *pgxpool.Pool, log logger.Logger) repository.RunRepository {
	return postgres.NewRunRepository(pool, log)
}

func ProvidePostgresInstanceRepository(pool *pgxpool.Pool, log logger.Logger) repository.InstanceRepository {
	return postgres.NewInstanceRepository(pool, log)
}

func ProvideMemoryRunRepository(log logger.Logger) repository.RunRepository {
	return memory.NewRunRepository(log)
}

func ProvideMemoryInstanceRepository(log logger.Logger) repository.InstanceRepository {
	return memory.NewInstanceRepository(log)
}
