// Package dynamo stores records in a single DynamoDB table keyed by PK/SK.
//
// Layout:
//
//	PK=SUBSCRIBER  SK=EMAIL#<email>
//	PK=PURCHASE    SK=<purchased_at>#<id>
//	PK=STATUS      SK=<timestamp>#<id>
//
// Record fields are stored as top-level attributes alongside the keys.
package dynamo

import (
	"context"
	"errors"
	"fmt"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/feature/dynamodb/attributevalue"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"

	"github.com/sparklebrand/brand-api/internal/domain"
	"github.com/sparklebrand/brand-api/internal/service/subscription"
)

const (
	pkSubscriber = "SUBSCRIBER"
	pkPurchase   = "PURCHASE"
	pkStatus     = "STATUS"

	sortTime = "2006-01-02T15:04:05.000000000Z"
)

// API is the subset of the DynamoDB client the repositories use.
type API interface {
	PutItem(ctx context.Context, in *dynamodb.PutItemInput, optFns ...func(*dynamodb.Options)) (*dynamodb.PutItemOutput, error)
	GetItem(ctx context.Context, in *dynamodb.GetItemInput, optFns ...func(*dynamodb.Options)) (*dynamodb.GetItemOutput, error)
	Query(ctx context.Context, in *dynamodb.QueryInput, optFns ...func(*dynamodb.Options)) (*dynamodb.QueryOutput, error)
	DescribeTable(ctx context.Context, in *dynamodb.DescribeTableInput, optFns ...func(*dynamodb.Options)) (*dynamodb.DescribeTableOutput, error)
	CreateTable(ctx context.Context, in *dynamodb.CreateTableInput, optFns ...func(*dynamodb.Options)) (*dynamodb.CreateTableOutput, error)
}

// Table wraps the client and table name shared by the repositories.
type Table struct {
	api  API
	name string
}

// NewTable binds api to the named table.
func NewTable(api API, name string) *Table {
	return &Table{api: api, name: name}
}

// Ping describes the table.
func (t *Table) Ping(ctx context.Context) error {
	_, err := t.api.DescribeTable(ctx, &dynamodb.DescribeTableInput{TableName: aws.String(t.name)})
	if err != nil {
		return fmt.Errorf("describe table %s: %w", t.name, err)
	}
	return nil
}

// CreateTable creates the on-demand table. An existing table is not an error.
func (t *Table) CreateTable(ctx context.Context) error {
	_, err := t.api.CreateTable(ctx, &dynamodb.CreateTableInput{
		TableName: aws.String(t.name),
		AttributeDefinitions: []types.AttributeDefinition{
			{AttributeName: aws.String("PK"), AttributeType: types.ScalarAttributeTypeS},
			{AttributeName: aws.String("SK"), AttributeType: types.ScalarAttributeTypeS},
		},
		KeySchema: []types.KeySchemaElement{
			{AttributeName: aws.String("PK"), KeyType: types.KeyTypeHash},
			{AttributeName: aws.String("SK"), KeyType: types.KeyTypeRange},
		},
		BillingMode: types.BillingModePayPerRequest,
	})
	var inUse *types.ResourceInUseException
	if errors.As(err, &inUse) {
		return nil
	}
	if err != nil {
		return fmt.Errorf("create table %s: %w", t.name, err)
	}
	return nil
}

func (t *Table) put(ctx context.Context, pk, sk string, v any, ifAbsent bool) error {
	av, err := attributevalue.MarshalMap(v)
	if err != nil {
		return fmt.Errorf("marshaling item: %w", err)
	}
	av["PK"] = &types.AttributeValueMemberS{Value: pk}
	av["SK"] = &types.AttributeValueMemberS{Value: sk}
	in := &dynamodb.PutItemInput{TableName: aws.String(t.name), Item: av}
	if ifAbsent {
		in.ConditionExpression = aws.String("attribute_not_exists(PK) AND attribute_not_exists(SK)")
	}
	_, err = t.api.PutItem(ctx, in)
	return err
}

func (t *Table) get(ctx context.Context, pk, sk string, v any) (bool, error) {
	out, err := t.api.GetItem(ctx, &dynamodb.GetItemInput{
		TableName:      aws.String(t.name),
		Key:            key(pk, sk),
		ConsistentRead: aws.Bool(true),
	})
	if err != nil {
		return false, fmt.Errorf("getting item: %w", err)
	}
	if len(out.Item) == 0 {
		return false, nil
	}
	if err := attributevalue.UnmarshalMap(out.Item, v); err != nil {
		return false, fmt.Errorf("unmarshaling item: %w", err)
	}
	return true, nil
}

func query[T any](ctx context.Context, t *Table, pk string, limit int) ([]T, error) {
	out := make([]T, 0)
	var start map[string]types.AttributeValue
	for {
		in := &dynamodb.QueryInput{
			TableName:              aws.String(t.name),
			KeyConditionExpression: aws.String("PK = :pk"),
			ExpressionAttributeValues: map[string]types.AttributeValue{
				":pk": &types.AttributeValueMemberS{Value: pk},
			},
			ExclusiveStartKey: start,
		}
		if limit > 0 {
			in.Limit = aws.Int32(int32(limit - len(out)))
		}
		res, err := t.api.Query(ctx, in)
		if err != nil {
			return nil, fmt.Errorf("querying %s: %w", pk, err)
		}
		var page []T
		if err := attributevalue.UnmarshalListOfMaps(res.Items, &page); err != nil {
			return nil, fmt.Errorf("unmarshaling items: %w", err)
		}
		out = append(out, page...)
		if len(res.LastEvaluatedKey) == 0 || (limit > 0 && len(out) >= limit) {
			return out, nil
		}
		start = res.LastEvaluatedKey
	}
}

func key(pk, sk string) map[string]types.AttributeValue {
	return map[string]types.AttributeValue{
		"PK": &types.AttributeValueMemberS{Value: pk},
		"SK": &types.AttributeValueMemberS{Value: sk},
	}
}

// SubscriberRepo implements subscription.Repository on the table.
type SubscriberRepo struct{ t *Table }

// NewSubscriberRepo creates a DynamoDB-backed subscriber repository.
func NewSubscriberRepo(t *Table) *SubscriberRepo { return &SubscriberRepo{t: t} }

func (r *SubscriberRepo) FindByEmail(ctx context.Context, email string) (*domain.Subscriber, error) {
	var s domain.Subscriber
	found, err := r.t.get(ctx, pkSubscriber, "EMAIL#"+email, &s)
	if err != nil {
		return nil, fmt.Errorf("find subscriber: %w", err)
	}
	if !found {
		return nil, subscription.ErrNotFound
	}
	return &s, nil
}

// InsertIfAbsent writes s with a condition on the email key. A failed
// condition means the address is already stored; that record is returned.
func (r *SubscriberRepo) InsertIfAbsent(ctx context.Context, s *domain.Subscriber) (*domain.Subscriber, bool, error) {
	err := r.t.put(ctx, pkSubscriber, "EMAIL#"+s.Email, s, true)
	if err == nil {
		return s, true, nil
	}
	var ccf *types.ConditionalCheckFailedException
	if !errors.As(err, &ccf) {
		return nil, false, fmt.Errorf("insert subscriber: %w", err)
	}
	existing, err := r.FindByEmail(ctx, s.Email)
	if err != nil {
		return nil, false, err
	}
	return existing, false, nil
}

func (r *SubscriberRepo) List(ctx context.Context, limit int) ([]domain.Subscriber, error) {
	return query[domain.Subscriber](ctx, r.t, pkSubscriber, limit)
}

// PurchaseRepo implements purchase.Repository on the table.
type PurchaseRepo struct{ t *Table }

// NewPurchaseRepo creates a DynamoDB-backed purchase repository.
func NewPurchaseRepo(t *Table) *PurchaseRepo { return &PurchaseRepo{t: t} }

func (r *PurchaseRepo) Insert(ctx context.Context, p *domain.Purchase) error {
	sk := p.PurchasedAt.UTC().Format(sortTime) + "#" + p.ID
	if err := r.t.put(ctx, pkPurchase, sk, p, false); err != nil {
		return fmt.Errorf("insert purchase: %w", err)
	}
	return nil
}

func (r *PurchaseRepo) List(ctx context.Context, limit int) ([]domain.Purchase, error) {
	return query[domain.Purchase](ctx, r.t, pkPurchase, limit)
}

// StatusRepo implements status.Repository on the table.
type StatusRepo struct{ t *Table }

// NewStatusRepo creates a DynamoDB-backed status-check repository.
func NewStatusRepo(t *Table) *StatusRepo { return &StatusRepo{t: t} }

func (r *StatusRepo) Insert(ctx context.Context, sc *domain.StatusCheck) error {
	sk := sc.Timestamp.UTC().Format(sortTime) + "#" + sc.ID
	if err := r.t.put(ctx, pkStatus, sk, sc, false); err != nil {
		return fmt.Errorf("insert status check: %w", err)
	}
	return nil
}

func (r *StatusRepo) List(ctx context.Context, limit int) ([]domain.StatusCheck, error) {
	return query[domain.StatusCheck](ctx, r.t, pkStatus, limit)
}
