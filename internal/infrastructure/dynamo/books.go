package dynamo

import (
	"context"
	"fmt"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/feature/dynamodb/attributevalue"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
	"github.com/leafbook/internal/domain"
)

const batchGetLimit = 100

// BookRepo provides typed DynamoDB operations for the books table.
// GSIs: visibility-updated_at-index, owner_id-updated_at-index.
type BookRepo struct {
	client    *dynamodb.Client
	tableName string
}

func NewBookRepo(client *dynamodb.Client, tableName string) *BookRepo {
	return &BookRepo{client: client, tableName: tableName}
}

func (r *BookRepo) Create(ctx context.Context, b *domain.Book) error {
	b.Visibility = domain.VisibilityOf(b.IsPublic)
	item, err := attributevalue.MarshalMap(b)
	if err != nil {
		return fmt.Errorf("marshal book: %w", err)
	}
	_, err = r.client.PutItem(ctx, &dynamodb.PutItemInput{
		TableName:           aws.String(r.tableName),
		Item:                item,
		ConditionExpression: aws.String("attribute_not_exists(book_id)"),
	})
	if isConditionFailure(err) {
		return fmt.Errorf("book id taken: %w", domain.ErrConflict)
	}
	return err
}

func (r *BookRepo) Get(ctx context.Context, bookID string) (*domain.Book, error) {
	out, err := r.client.GetItem(ctx, &dynamodb.GetItemInput{
		TableName: aws.String(r.tableName),
		Key:       strKey("book_id", bookID),
	})
	if err != nil {
		return nil, err
	}
	if out.Item == nil {
		return nil, fmt.Errorf("book not found: %w", domain.ErrNotFound)
	}
	var b domain.Book
	if err := attributevalue.UnmarshalMap(out.Item, &b); err != nil {
		return nil, err
	}
	return &b, nil
}

// Update applies field updates and bumps updated_at. Setting is_public keeps the
// visibility index attribute in step.
func (r *BookRepo) Update(ctx context.Context, bookID string, updates map[string]interface{}) error {
	if v, ok := updates["is_public"].(bool); ok {
		updates["visibility"] = domain.VisibilityOf(v)
	}
	updates[fieldUpdatedAt] = time.Now().UTC()
	ue, err := buildUpdateExpr(updates)
	if err != nil {
		return err
	}
	_, err = r.client.UpdateItem(ctx, &dynamodb.UpdateItemInput{
		TableName:                 aws.String(r.tableName),
		Key:                       strKey("book_id", bookID),
		UpdateExpression:          aws.String(ue.Expr),
		ExpressionAttributeNames:  ue.Names,
		ExpressionAttributeValues: ue.Values,
		ConditionExpression:       aws.String("attribute_exists(book_id)"),
	})
	if isConditionFailure(err) {
		return fmt.Errorf("book not found: %w", domain.ErrNotFound)
	}
	return err
}

// Touch bumps updated_at, used when a leaf of the book changes.
func (r *BookRepo) Touch(ctx context.Context, bookID string) error {
	return r.Update(ctx, bookID, map[string]interface{}{})
}

func (r *BookRepo) ListPublic(ctx context.Context) ([]domain.Book, error) {
	return r.queryIndex(ctx, "visibility-updated_at-index", "visibility", domain.VisibilityPublic)
}

func (r *BookRepo) ListByOwner(ctx context.Context, ownerID string) ([]domain.Book, error) {
	return r.queryIndex(ctx, "owner_id-updated_at-index", "owner_id", ownerID)
}

// GetMany fetches books by id. Missing ids are skipped; order is not preserved.
func (r *BookRepo) GetMany(ctx context.Context, ids []string) ([]domain.Book, error) {
	var books []domain.Book
	for start := 0; start < len(ids); start += batchGetLimit {
		end := start + batchGetLimit
		if end > len(ids) {
			end = len(ids)
		}
		keys := make([]map[string]types.AttributeValue, 0, end-start)
		for _, id := range ids[start:end] {
			keys = append(keys, strKey("book_id", id))
		}
		request := map[string]types.KeysAndAttributes{r.tableName: {Keys: keys}}
		for len(request) > 0 {
			out, err := r.client.BatchGetItem(ctx, &dynamodb.BatchGetItemInput{RequestItems: request})
			if err != nil {
				return nil, err
			}
			var page []domain.Book
			if err := attributevalue.UnmarshalListOfMaps(out.Responses[r.tableName], &page); err != nil {
				return nil, err
			}
			books = append(books, page...)
			request = out.UnprocessedKeys
		}
	}
	return books, nil
}

func (r *BookRepo) queryIndex(ctx context.Context, index, attr, value string) ([]domain.Book, error) {
	var books []domain.Book
	input := &dynamodb.QueryInput{
		TableName:                 aws.String(r.tableName),
		IndexName:                 aws.String(index),
		KeyConditionExpression:    aws.String("#a = :v"),
		ExpressionAttributeNames:  map[string]string{"#a": attr},
		ExpressionAttributeValues: map[string]types.AttributeValue{":v": strValue(value)},
		ScanIndexForward:          aws.Bool(false),
	}
	for {
		out, err := r.client.Query(ctx, input)
		if err != nil {
			return nil, err
		}
		var page []domain.Book
		if err := attributevalue.UnmarshalListOfMaps(out.Items, &page); err != nil {
			return nil, err
		}
		books = append(books, page...)
		if len(out.LastEvaluatedKey) == 0 {
			return books, nil
		}
		input.ExclusiveStartKey = out.LastEvaluatedKey
	}
}
