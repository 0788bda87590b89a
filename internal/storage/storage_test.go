package storage

import (
	"context"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.mongodb.org/mongo-driver/mongo/integration/mtest"

	"github.com/sparklebrand/brand-api/internal/config"
	"github.com/sparklebrand/brand-api/internal/domain"
)

func TestOpenMemory(t *testing.T) {
	ctx := context.Background()
	b, err := Open(ctx, config.StorageConfig{Type: "memory"})
	require.NoError(t, err)
	require.NotNil(t, b)
	defer b.Close(ctx)

	assert.Equal(t, "memory", b.Type)
	assert.NoError(t, b.Ping(ctx))

	sub := domain.NewSubscriber("fan@example.com", time.Now())
	_, created, err := b.Subscribers.InsertIfAbsent(ctx, sub)
	require.NoError(t, err)
	assert.True(t, created)

	list, err := b.Subscribers.List(ctx, domain.ListCap)
	require.NoError(t, err)
	assert.Len(t, list, 1)
}

func TestOpenRejectsBadConfig(t *testing.T) {
	ctx := context.Background()
	tests := []struct {
		name string
		cfg  config.StorageConfig
		want string
	}{
		{"unknown type", config.StorageConfig{Type: "cassandra"}, "unknown storage type"},
		{"mongo without url", config.StorageConfig{Type: "mongo", DBName: "brand"}, "mongo url is required"},
		{"mongo without db name", config.StorageConfig{Type: "mongo", MongoURL: "mongodb://localhost:27017"}, "database name is required"},
		{"postgres without url", config.StorageConfig{Type: "postgres"}, "database_url is required"},
		{"dynamodb without table", config.StorageConfig{Type: "dynamodb", AWSRegion: "us-west-2"}, "table name is required"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Open(ctx, tt.cfg)
			assert.ErrorContains(t, err, tt.want)
		})
	}
}

func TestNewPostgresBackend(t *testing.T) {
	db, mock, err := sqlmock.New(sqlmock.MonitorPingsOption(true))
	require.NoError(t, err)

	mock.ExpectPing()
	mock.ExpectClose()

	b := NewPostgres(db)
	assert.Equal(t, "postgres", b.Type)
	assert.NoError(t, b.Ping(context.Background()))
	assert.NoError(t, b.Close(context.Background()))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestNewMongoServesWhenIndexBuildFails(t *testing.T) {
	mt := mtest.New(t, mtest.NewOptions().ClientType(mtest.Mock))

	mt.Run("duplicate emails block the unique index", func(mt *mtest.T) {
		mt.AddMockResponses(mtest.CreateCommandErrorResponse(mtest.CommandError{
			Code:    11000,
			Name:    "DuplicateKey",
			Message: "E11000 duplicate key error collection: brand.subscribers index: email_unique",
		}))

		b := NewMongo(context.Background(), mt.Client, mt.DB)
		require.NotNil(mt, b)
		assert.Equal(mt, "mongo", b.Type)
		assert.NotNil(mt, b.Subscribers)
		assert.NotNil(mt, b.Purchases)
		assert.NotNil(mt, b.StatusChecks)
	})

	mt.Run("indexes created", func(mt *mtest.T) {
		mt.AddMockResponses(mtest.CreateSuccessResponse(), mtest.CreateSuccessResponse())

		b := NewMongo(context.Background(), mt.Client, mt.DB)
		require.NotNil(mt, b)
		assert.Equal(mt, "mongo", b.Type)
	})
}
