package main

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	_ "github.com/lib/pq"
	"github.com/redis/go-redis/v9"
	"github.com/spf13/cobra"

	"github.com/sparklebrand/brand-api/internal/config"
	"github.com/sparklebrand/brand-api/internal/pkg/distlock"
	"github.com/sparklebrand/brand-api/internal/pkg/logger"
	"github.com/sparklebrand/brand-api/internal/repository/mongo"
	"github.com/sparklebrand/brand-api/internal/repository/postgres"
	"github.com/sparklebrand/brand-api/internal/storage"
)

const (
	lockKey = "migrate"
	lockTTL = 5 * time.Minute
)

func newRootCmd() *cobra.Command {
	var configPath string

	root := &cobra.Command{
		Use:           "migrate",
		Short:         "Prepare the document store schema and indexes",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.PersistentFlags().StringVar(&configPath, "config", "config/config.yaml", "path to the YAML config file")

	load := func() (*config.Config, error) {
		cfg, err := config.LoadFromEnv(configPath)
		if err != nil {
			return nil, fmt.Errorf("load config: %w", err)
		}
		logger.SetLevel(logger.ParseLevel(cfg.Log.Level))
		return cfg, nil
	}

	root.AddCommand(
		&cobra.Command{
			Use:   "mongo",
			Short: "Create MongoDB indexes",
			Args:  cobra.NoArgs,
			RunE: func(cmd *cobra.Command, _ []string) error {
				cfg, err := load()
				if err != nil {
					return err
				}
				return migrateMongo(cmd.Context(), cfg)
			},
		},
		&cobra.Command{
			Use:   "postgres",
			Short: "Apply the PostgreSQL schema",
			Args:  cobra.NoArgs,
			RunE: func(cmd *cobra.Command, _ []string) error {
				cfg, err := load()
				if err != nil {
					return err
				}
				if cfg.Storage.DatabaseURL == "" {
					return errors.New("database_url is required")
				}
				db, err := sql.Open("postgres", cfg.Storage.DatabaseURL)
				if err != nil {
					return fmt.Errorf("open postgres: %w", err)
				}
				defer db.Close()
				rdb := redisClient(cfg.Redis)
				if rdb != nil {
					defer rdb.Close()
				}
				return migratePostgres(cmd.Context(), db, rdb)
			},
		},
		&cobra.Command{
			Use:   "dynamodb",
			Short: "Create the DynamoDB table",
			Args:  cobra.NoArgs,
			RunE: func(cmd *cobra.Command, _ []string) error {
				cfg, err := load()
				if err != nil {
					return err
				}
				return migrateDynamo(cmd.Context(), cfg)
			},
		},
	)
	return root
}

func redisClient(cfg config.RedisConfig) *redis.Client {
	if !cfg.Enabled() {
		return nil
	}
	return redis.NewClient(&redis.Options{Addr: cfg.Addr, Password: cfg.Password, DB: cfg.DB})
}

func migrateMongo(ctx context.Context, cfg *config.Config) error {
	rdb := redisClient(cfg.Redis)
	if rdb != nil {
		defer rdb.Close()
	}
	client, db, err := mongo.Connect(ctx, cfg.Storage.MongoURL, cfg.Storage.DBName)
	if err != nil {
		return err
	}
	defer client.Disconnect(context.WithoutCancel(ctx))

	return distlock.Run(ctx, distlock.NewLock(rdb, nil, lockKey, lockTTL), func(ctx context.Context) error {
		if err := mongo.EnsureIndexes(ctx, db); err != nil {
			return err
		}
		logger.Info("mongo indexes ready", "database", cfg.Storage.DBName)
		return nil
	})
}

func migratePostgres(ctx context.Context, db *sql.DB, rdb *redis.Client) error {
	return distlock.Run(ctx, distlock.NewLock(rdb, db, lockKey, lockTTL), func(ctx context.Context) error {
		if err := postgres.Migrate(ctx, db); err != nil {
			return err
		}
		logger.Info("postgres schema applied")
		return nil
	})
}

func migrateDynamo(ctx context.Context, cfg *config.Config) error {
	rdb := redisClient(cfg.Redis)
	if rdb != nil {
		defer rdb.Close()
	}
	table, err := storage.NewDynamoTable(ctx, cfg.Storage.DynamoDBTable, cfg.Storage.AWSRegion, cfg.Storage.GetAWSProfile())
	if err != nil {
		return err
	}
	return distlock.Run(ctx, distlock.NewLock(rdb, nil, lockKey, lockTTL), func(ctx context.Context) error {
		if err := table.CreateTable(ctx); err != nil {
			return err
		}
		logger.Info("dynamodb table ready", "table", cfg.Storage.DynamoDBTable)
		return nil
	})
}
