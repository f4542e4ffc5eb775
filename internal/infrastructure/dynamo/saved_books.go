package dynamo

import (
	"context"
	"fmt"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/feature/dynamodb/attributevalue"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
	"github.com/leafbook/internal/domain"
)

// SavedBookRepo stores bookmarks. PK: user_id, SK: book_id.
type SavedBookRepo struct {
	client    *dynamodb.Client
	tableName string
}

func NewSavedBookRepo(client *dynamodb.Client, tableName string) *SavedBookRepo {
	return &SavedBookRepo{client: client, tableName: tableName}
}

func (r *SavedBookRepo) Put(ctx context.Context, s *domain.SavedBook) error {
	item, err := attributevalue.MarshalMap(s)
	if err != nil {
		return fmt.Errorf("marshal saved book: %w", err)
	}
	_, err = r.client.PutItem(ctx, &dynamodb.PutItemInput{
		TableName: aws.String(r.tableName),
		Item:      item,
	})
	return err
}

func (r *SavedBookRepo) Delete(ctx context.Context, userID, bookID string) error {
	_, err := r.client.DeleteItem(ctx, &dynamodb.DeleteItemInput{
		TableName: aws.String(r.tableName),
		Key:       compositeKey("user_id", userID, "book_id", bookID),
	})
	return err
}

func (r *SavedBookRepo) Exists(ctx context.Context, userID, bookID string) (bool, error) {
	out, err := r.client.GetItem(ctx, &dynamodb.GetItemInput{
		TableName:            aws.String(r.tableName),
		Key:                  compositeKey("user_id", userID, "book_id", bookID),
		ProjectionExpression: aws.String("book_id"),
	})
	if err != nil {
		return false, err
	}
	return out.Item != nil, nil
}

// ListBookIDs returns the ids of every book the user saved.
func (r *SavedBookRepo) ListBookIDs(ctx context.Context, userID string) ([]string, error) {
	var ids []string
	input := &dynamodb.QueryInput{
		TableName:                 aws.String(r.tableName),
		KeyConditionExpression:    aws.String("user_id = :uid"),
		ExpressionAttributeValues: map[string]types.AttributeValue{":uid": strValue(userID)},
	}
	for {
		out, err := r.client.Query(ctx, input)
		if err != nil {
			return nil, err
		}
		var page []domain.SavedBook
		if err := attributevalue.UnmarshalListOfMaps(out.Items, &page); err != nil {
			return nil, err
		}
		for _, s := range page {
			ids = append(ids, s.BookID)
		}
		if len(out.LastEvaluatedKey) == 0 {
			return ids, nil
		}
		input.ExclusiveStartKey = out.LastEvaluatedKey
	}
}
