// Package dynamo implements the provider adapter backed by a DynamoDB
// table. Items live in a single table keyed by (collection, id) with
// the record body stored as a map attribute. DynamoDB has no rich query
// language for arbitrary record fields, so the adapter queries the
// collection partition and evaluates filters, search, sort and
// pagination in-process via provider.Apply.
package dynamo

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/feature/dynamodb/attributevalue"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"

	"github.com/PetroPricesnearMe/content-gateway/content"
	"github.com/PetroPricesnearMe/content-gateway/provider"
)

// API is the subset of the DynamoDB client the adapter uses.
type API interface {
	GetItem(ctx context.Context, params *dynamodb.GetItemInput, optFns ...func(*dynamodb.Options)) (*dynamodb.GetItemOutput, error)
	PutItem(ctx context.Context, params *dynamodb.PutItemInput, optFns ...func(*dynamodb.Options)) (*dynamodb.PutItemOutput, error)
	DeleteItem(ctx context.Context, params *dynamodb.DeleteItemInput, optFns ...func(*dynamodb.Options)) (*dynamodb.DeleteItemOutput, error)
	Query(ctx context.Context, params *dynamodb.QueryInput, optFns ...func(*dynamodb.Options)) (*dynamodb.QueryOutput, error)
}

// Config configures the dynamo adapter.
type Config struct {
	// ID identifies this provider instance in the chain.
	// Default: "dynamo"
	ID string

	// Table is the DynamoDB table name.
	Table string

	// Clock overrides time.Now, used for item timestamps.
	Clock func() time.Time
}

// Adapter stores content records in one DynamoDB table.
type Adapter struct {
	id     string
	client API
	table  string
	now    func() time.Time
}

// item is the stored shape. Collection is the partition key, ID the
// sort key; Data carries the full record.
type item struct {
	Collection string         `dynamodbav:"collection"`
	ID         string         `dynamodbav:"id"`
	Data       map[string]any `dynamodbav:"data"`
	UpdatedAt  int64          `dynamodbav:"updated_at"`
}

// New creates a dynamo adapter.
func New(client API, config Config) (*Adapter, error) {
	if client == nil {
		return nil, errors.New("dynamo: nil client")
	}
	if config.Table == "" {
		return nil, errors.New("dynamo: table name is required")
	}
	if config.ID == "" {
		config.ID = "dynamo"
	}
	if config.Clock == nil {
		config.Clock = time.Now
	}

	return &Adapter{
		id:     config.ID,
		client: client,
		table:  config.Table,
		now:    config.Clock,
	}, nil
}

// ID returns the configured provider id.
func (a *Adapter) ID() string {
	return a.id
}

// FetchAll queries the collection partition and evaluates the query
// in-process.
func (a *Adapter) FetchAll(ctx context.Context, collection string, query content.Query) (*content.Page, error) {
	records, err := a.loadCollection(ctx, "fetch_all", collection)
	if err != nil {
		return nil, err
	}
	return provider.Apply(records, query), nil
}

// Search evaluates a free-text query in-process.
func (a *Adapter) Search(ctx context.Context, collection, term string, query content.Query) (*content.Page, error) {
	records, err := a.loadCollection(ctx, "search", collection)
	if err != nil {
		return nil, err
	}
	query.Search = term
	return provider.Apply(records, query), nil
}

// FetchByID reads a single item by its composite key.
func (a *Adapter) FetchByID(ctx context.Context, collection, id string) (*content.Record, error) {
	output, err := a.client.GetItem(ctx, &dynamodb.GetItemInput{
		TableName: aws.String(a.table),
		Key:       itemKey(collection, id),
	})
	if err != nil {
		return nil, a.mapError("fetch_by_id", err)
	}
	if output.Item == nil {
		return nil, provider.NewError(provider.KindNotFound, a.id, "fetch_by_id", fmt.Errorf("id %q", id))
	}

	rec, err := a.decodeItem("fetch_by_id", output.Item)
	if err != nil {
		return nil, err
	}
	return &rec, nil
}

// FetchBySlug scans the collection partition for a matching slug.
func (a *Adapter) FetchBySlug(ctx context.Context, collection, slug string) (*content.Record, error) {
	records, err := a.loadCollection(ctx, "fetch_by_slug", collection)
	if err != nil {
		return nil, err
	}
	rec, ok := provider.FindBySlug(records, slug)
	if !ok {
		return nil, provider.NewError(provider.KindNotFound, a.id, "fetch_by_slug", fmt.Errorf("slug %q", slug))
	}
	return &rec, nil
}

// Create writes a new item. The record must carry an id.
func (a *Adapter) Create(ctx context.Context, collection string, data content.Record) (*content.Record, error) {
	id := data.ID()
	if id == "" {
		return nil, provider.NewError(provider.KindMalformed, a.id, "create", errors.New("record has no id"))
	}
	if err := a.put(ctx, "create", collection, id, data); err != nil {
		return nil, err
	}
	out := cloneRecord(data)
	return &out, nil
}

// Update merges the patch over the stored item and writes it back.
func (a *Adapter) Update(ctx context.Context, collection, id string, data content.Record) (*content.Record, error) {
	current, err := a.FetchByID(ctx, collection, id)
	if err != nil {
		return nil, err
	}

	merged := cloneRecord(*current)
	for k, v := range data {
		merged[k] = v
	}
	merged["id"] = id

	if err := a.put(ctx, "update", collection, id, merged); err != nil {
		return nil, err
	}
	return &merged, nil
}

// Delete removes the item by its composite key.
func (a *Adapter) Delete(ctx context.Context, collection, id string) error {
	_, err := a.client.DeleteItem(ctx, &dynamodb.DeleteItemInput{
		TableName: aws.String(a.table),
		Key:       itemKey(collection, id),
	})
	if err != nil {
		return a.mapError("delete", err)
	}
	return nil
}

func (a *Adapter) put(ctx context.Context, op, collection, id string, data content.Record) error {
	av, err := attributevalue.MarshalMap(item{
		Collection: collection,
		ID:         id,
		Data:       data,
		UpdatedAt:  a.now().UTC().Unix(),
	})
	if err != nil {
		return provider.NewError(provider.KindMalformed, a.id, op, err)
	}

	_, err = a.client.PutItem(ctx, &dynamodb.PutItemInput{
		TableName: aws.String(a.table),
		Item:      av,
	})
	if err != nil {
		return a.mapError(op, err)
	}
	return nil
}

// loadCollection pages through the collection partition.
func (a *Adapter) loadCollection(ctx context.Context, op, collection string) ([]content.Record, error) {
	var records []content.Record
	var startKey map[string]types.AttributeValue

	for {
		output, err := a.client.Query(ctx, &dynamodb.QueryInput{
			TableName:              aws.String(a.table),
			KeyConditionExpression: aws.String("#c = :collection"),
			ExpressionAttributeNames: map[string]string{
				"#c": "collection",
			},
			ExpressionAttributeValues: map[string]types.AttributeValue{
				":collection": &types.AttributeValueMemberS{Value: collection},
			},
			ExclusiveStartKey: startKey,
		})
		if err != nil {
			return nil, a.mapError(op, err)
		}

		for _, raw := range output.Items {
			rec, err := a.decodeItem(op, raw)
			if err != nil {
				return nil, err
			}
			records = append(records, rec)
		}

		if output.LastEvaluatedKey == nil {
			break
		}
		startKey = output.LastEvaluatedKey
	}
	return records, nil
}

func (a *Adapter) decodeItem(op string, raw map[string]types.AttributeValue) (content.Record, error) {
	var it item
	if err := attributevalue.UnmarshalMap(raw, &it); err != nil {
		return nil, provider.NewError(provider.KindMalformed, a.id, op, err)
	}
	rec := content.Record(it.Data)
	if rec == nil {
		rec = content.Record{}
	}
	rec["id"] = it.ID
	return rec, nil
}

// mapError translates SDK failures to provider error kinds.
func (a *Adapter) mapError(op string, err error) error {
	var throughput *types.ProvisionedThroughputExceededException
	var requestLimit *types.RequestLimitExceeded
	var noTable *types.ResourceNotFoundException

	switch {
	case errors.Is(err, context.DeadlineExceeded):
		return provider.NewError(provider.KindTimeout, a.id, op, err)
	case errors.As(err, &throughput) || errors.As(err, &requestLimit):
		return provider.NewError(provider.KindRateLimited, a.id, op, err)
	case errors.As(err, &noTable):
		return provider.NewError(provider.KindUnavailable, a.id, op, err)
	default:
		return provider.NewError(provider.KindUnavailable, a.id, op, err)
	}
}

func itemKey(collection, id string) map[string]types.AttributeValue {
	return map[string]types.AttributeValue{
		"collection": &types.AttributeValueMemberS{Value: collection},
		"id":         &types.AttributeValueMemberS{Value: id},
	}
}

func cloneRecord(rec content.Record) content.Record {
	out := make(content.Record, len(rec))
	for k, v := range rec {
		out[k] = v
	}
	return out
}

// Ensure Adapter implements provider.Adapter
var _ provider.Adapter = (*Adapter)(nil)
