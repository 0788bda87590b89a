// Package mongo stores subscribers, purchases and status checks in MongoDB
// collections named subscribers, purchases and status_checks.
package mongo

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
	"go.mongodb.org/mongo-driver/mongo/readpref"

	"github.com/sparklebrand/brand-api/internal/domain"
	"github.com/sparklebrand/brand-api/internal/service/subscription"
)

const (
	SubscribersCollection  = "subscribers"
	PurchasesCollection    = "purchases"
	StatusChecksCollection = "status_checks"
)

// Connect dials uri and returns the client plus the named database. The
// connection is verified with a primary ping before returning.
func Connect(ctx context.Context, uri, dbName string) (*mongo.Client, *mongo.Database, error) {
	if uri == "" {
		return nil, nil, errors.New("mongo url is required")
	}
	if dbName == "" {
		return nil, nil, errors.New("mongo database name is required")
	}
	client, err := mongo.Connect(ctx, options.Client().
		ApplyURI(uri).
		SetServerSelectionTimeout(10*time.Second))
	if err != nil {
		return nil, nil, fmt.Errorf("connect mongo: %w", err)
	}
	if err := client.Ping(ctx, readpref.Primary()); err != nil {
		client.Disconnect(context.Background())
		return nil, nil, fmt.Errorf("ping mongo: %w", err)
	}
	return client, client.Database(dbName), nil
}

// EnsureIndexes creates the unique email index InsertIfAbsent relies on.
func EnsureIndexes(ctx context.Context, db *mongo.Database) error {
	_, err := db.Collection(SubscribersCollection).Indexes().CreateOne(ctx, mongo.IndexModel{
		Keys:    bson.D{{Key: "email", Value: 1}},
		Options: options.Index().SetUnique(true).SetName("email_unique"),
	})
	if err != nil {
		return fmt.Errorf("create subscriber email index: %w", err)
	}
	_, err = db.Collection(PurchasesCollection).Indexes().CreateOne(ctx, mongo.IndexModel{
		Keys:    bson.D{{Key: "transaction_id", Value: 1}},
		Options: options.Index().SetName("transaction_id"),
	})
	if err != nil {
		return fmt.Errorf("create purchase transaction index: %w", err)
	}
	return nil
}

// SubscriberRepo implements subscription.Repository on a MongoDB collection.
type SubscriberRepo struct{ coll *mongo.Collection }

// NewSubscriberRepo creates a Mongo-backed subscriber repository.
func NewSubscriberRepo(db *mongo.Database) *SubscriberRepo {
	return &SubscriberRepo{coll: db.Collection(SubscribersCollection)}
}

func (r *SubscriberRepo) FindByEmail(ctx context.Context, email string) (*domain.Subscriber, error) {
	var s domain.Subscriber
	err := r.coll.FindOne(ctx, bson.M{"email": email}).Decode(&s)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return nil, subscription.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("find subscriber: %w", err)
	}
	return &s, nil
}

// InsertIfAbsent inserts s. A duplicate-key error from the unique email
// index means another writer got there first; the stored record is returned.
func (r *SubscriberRepo) InsertIfAbsent(ctx context.Context, s *domain.Subscriber) (*domain.Subscriber, bool, error) {
	_, err := r.coll.InsertOne(ctx, s)
	if err == nil {
		return s, true, nil
	}
	if !mongo.IsDuplicateKeyError(err) {
		return nil, false, fmt.Errorf("insert subscriber: %w", err)
	}
	existing, err := r.FindByEmail(ctx, s.Email)
	if err != nil {
		return nil, false, err
	}
	return existing, false, nil
}

func (r *SubscriberRepo) List(ctx context.Context, limit int) ([]domain.Subscriber, error) {
	return findAll[domain.Subscriber](ctx, r.coll, limit)
}

// PurchaseRepo implements purchase.Repository on a MongoDB collection.
type PurchaseRepo struct{ coll *mongo.Collection }

// NewPurchaseRepo creates a Mongo-backed purchase repository.
func NewPurchaseRepo(db *mongo.Database) *PurchaseRepo {
	return &PurchaseRepo{coll: db.Collection(PurchasesCollection)}
}

func (r *PurchaseRepo) Insert(ctx context.Context, p *domain.Purchase) error {
	if _, err := r.coll.InsertOne(ctx, p); err != nil {
		return fmt.Errorf("insert purchase: %w", err)
	}
	return nil
}

func (r *PurchaseRepo) List(ctx context.Context, limit int) ([]domain.Purchase, error) {
	return findAll[domain.Purchase](ctx, r.coll, limit)
}

// StatusRepo implements status.Repository on a MongoDB collection.
type StatusRepo struct{ coll *mongo.Collection }

// NewStatusRepo creates a Mongo-backed status-check repository.
func NewStatusRepo(db *mongo.Database) *StatusRepo {
	return &StatusRepo{coll: db.Collection(StatusChecksCollection)}
}

func (r *StatusRepo) Insert(ctx context.Context, sc *domain.StatusCheck) error {
	if _, err := r.coll.InsertOne(ctx, sc); err != nil {
		return fmt.Errorf("insert status check: %w", err)
	}
	return nil
}

func (r *StatusRepo) List(ctx context.Context, limit int) ([]domain.StatusCheck, error) {
	return findAll[domain.StatusCheck](ctx, r.coll, limit)
}

func findAll[T any](ctx context.Context, coll *mongo.Collection, limit int) ([]T, error) {
	opts := options.Find().SetProjection(bson.M{"_id": 0})
	if limit > 0 {
		opts.SetLimit(int64(limit))
	}
	cur, err := coll.Find(ctx, bson.M{}, opts)
	if err != nil {
		return nil, fmt.Errorf("find %s: %w", coll.Name(), err)
	}
	defer cur.Close(ctx)

	out := make([]T, 0)
	if err := cur.All(ctx, &out); err != nil {
		return nil, fmt.Errorf("decode %s: %w", coll.Name(), err)
	}
	return out, nil
}
