// Package storage opens the configured document store and hands out the
// repositories the services need.
package storage

import (
	"context"
	"database/sql"
	"fmt"

	_ "github.com/lib/pq"

	mongodrv "go.mongodb.org/mongo-driver/mongo"

	"github.com/sparklebrand/brand-api/internal/config"
	"github.com/sparklebrand/brand-api/internal/pkg/logger"
	"github.com/sparklebrand/brand-api/internal/repository/dynamo"
	"github.com/sparklebrand/brand-api/internal/repository/memory"
	"github.com/sparklebrand/brand-api/internal/repository/mongo"
	"github.com/sparklebrand/brand-api/internal/repository/postgres"
	"github.com/sparklebrand/brand-api/internal/service/purchase"
	"github.com/sparklebrand/brand-api/internal/service/status"
	"github.com/sparklebrand/brand-api/internal/service/subscription"
)

// Backend bundles the repositories of one store with its lifecycle hooks.
type Backend struct {
	Type         string
	Subscribers  subscription.Repository
	Purchases    purchase.Repository
	StatusChecks status.Repository

	ping  func(ctx context.Context) error
	close func(ctx context.Context) error
}

// Ping checks the store is reachable.
func (b *Backend) Ping(ctx context.Context) error {
	if b.ping == nil {
		return nil
	}
	return b.ping(ctx)
}

// Close releases the store connection.
func (b *Backend) Close(ctx context.Context) error {
	if b.close == nil {
		return nil
	}
	return b.close(ctx)
}

// Open connects to the store selected by cfg.Type. For mongo and postgres
// the email uniqueness constraint is ensured before returning; a mongo
// index that cannot be built is logged and the store is still served.
func Open(ctx context.Context, cfg config.StorageConfig) (*Backend, error) {
	switch cfg.Type {
	case "memory":
		logger.Warn("using in-memory store; data is lost on restart")
		return NewMemory(), nil

	case "mongo", "":
		client, db, err := mongo.Connect(ctx, cfg.MongoURL, cfg.DBName)
		if err != nil {
			return nil, err
		}
		return NewMongo(ctx, client, db), nil

	case "postgres":
		if cfg.DatabaseURL == "" {
			return nil, fmt.Errorf("database_url is required for postgres storage")
		}
		db, err := sql.Open("postgres", cfg.DatabaseURL)
		if err != nil {
			return nil, fmt.Errorf("opening postgres: %w", err)
		}
		if err := db.PingContext(ctx); err != nil {
			db.Close()
			return nil, fmt.Errorf("pinging postgres: %w", err)
		}
		if err := postgres.Migrate(ctx, db); err != nil {
			db.Close()
			return nil, err
		}
		return NewPostgres(db), nil

	case "dynamodb":
		table, err := NewDynamoTable(ctx, cfg.DynamoDBTable, cfg.AWSRegion, cfg.GetAWSProfile())
		if err != nil {
			return nil, fmt.Errorf("initializing dynamodb storage: %w", err)
		}
		if err := table.Ping(ctx); err != nil {
			return nil, err
		}
		return NewDynamo(table), nil

	default:
		return nil, fmt.Errorf("unknown storage type %q", cfg.Type)
	}
}

// NewMemory returns a process-local backend.
func NewMemory() *Backend {
	store := memory.New()
	return &Backend{
		Type:         "memory",
		Subscribers:  store.Subscribers(),
		Purchases:    store.Purchases(),
		StatusChecks: store.StatusChecks(),
		ping:         store.Ping,
		close:        store.Close,
	}
}

// NewMongo wraps a connected database after ensuring its indexes. Index
// failures do not stop the store: existing data with duplicate emails makes
// the unique index unbuildable until it is cleaned up, and subscribe still
// checks for an existing record before inserting.
func NewMongo(ctx context.Context, client *mongodrv.Client, db *mongodrv.Database) *Backend {
	if err := mongo.EnsureIndexes(ctx, db); err != nil {
		logger.Warn("mongo indexes not ensured; run migrate mongo after resolving", "database", db.Name(), "error", err.Error())
	}
	return &Backend{
		Type:         "mongo",
		Subscribers:  mongo.NewSubscriberRepo(db),
		Purchases:    mongo.NewPurchaseRepo(db),
		StatusChecks: mongo.NewStatusRepo(db),
		ping:         func(ctx context.Context) error { return client.Ping(ctx, nil) },
		close:        client.Disconnect,
	}
}

// NewPostgres wraps an open database handle.
func NewPostgres(db *sql.DB) *Backend {
	return &Backend{
		Type:         "postgres",
		Subscribers:  postgres.NewSubscriberRepo(db),
		Purchases:    postgres.NewPurchaseRepo(db),
		StatusChecks: postgres.NewStatusRepo(db),
		ping:         db.PingContext,
		close:        func(context.Context) error { return db.Close() },
	}
}

// NewDynamo wraps a table handle.
func NewDynamo(table *dynamo.Table) *Backend {
	return &Backend{
		Type:         "dynamodb",
		Subscribers:  dynamo.NewSubscriberRepo(table),
		Purchases:    dynamo.NewPurchaseRepo(table),
		StatusChecks: dynamo.NewStatusRepo(table),
		ping:         table.Ping,
	}
}
