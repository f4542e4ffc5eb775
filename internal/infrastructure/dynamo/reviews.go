package dynamo

import (
	"context"
	"fmt"
	"strconv"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/feature/dynamodb/attributevalue"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
	"github.com/leafbook/internal/domain"
)

// ReviewRepo stores reviews (PK: book_id, SK: review_id) and keeps the
// book's rating aggregates in step.
type ReviewRepo struct {
	client     *dynamodb.Client
	tableName  string
	booksTable string
}

func NewReviewRepo(client *dynamodb.Client, tableName, booksTable string) *ReviewRepo {
	return &ReviewRepo{client: client, tableName: tableName, booksTable: booksTable}
}

// Create stores the review and adds its rating to the book's aggregates atomically.
func (r *ReviewRepo) Create(ctx context.Context, rv *domain.Review) error {
	input, err := r.createInput(rv)
	if err != nil {
		return err
	}
	if _, err := r.client.TransactWriteItems(ctx, input); err != nil {
		if isConditionFailure(err) {
			return fmt.Errorf("book not found: %w", domain.ErrNotFound)
		}
		return err
	}
	return nil
}

func (r *ReviewRepo) createInput(rv *domain.Review) (*dynamodb.TransactWriteItemsInput, error) {
	item, err := attributevalue.MarshalMap(rv)
	if err != nil {
		return nil, fmt.Errorf("marshal review: %w", err)
	}
	return &dynamodb.TransactWriteItemsInput{
		TransactItems: []types.TransactWriteItem{
			{Put: &types.Put{
				TableName:           aws.String(r.tableName),
				Item:                item,
				ConditionExpression: aws.String("attribute_not_exists(review_id)"),
			}},
			{Update: &types.Update{
				TableName:           aws.String(r.booksTable),
				Key:                 strKey("book_id", rv.BookID),
				UpdateExpression:    aws.String("ADD #sum :r, #cnt :one"),
				ConditionExpression: aws.String("attribute_exists(book_id)"),
				ExpressionAttributeNames: map[string]string{
					"#sum": fieldRatingSum,
					"#cnt": fieldReviewCount,
				},
				ExpressionAttributeValues: map[string]types.AttributeValue{
					":r":   &types.AttributeValueMemberN{Value: strconv.Itoa(rv.Rating)},
					":one": &types.AttributeValueMemberN{Value: "1"},
				},
			}},
		},
	}, nil
}

func (r *ReviewRepo) ListByBook(ctx context.Context, bookID string) ([]domain.Review, error) {
	var reviews []domain.Review
	input := &dynamodb.QueryInput{
		TableName:                 aws.String(r.tableName),
		KeyConditionExpression:    aws.String("book_id = :bid"),
		ExpressionAttributeValues: map[string]types.AttributeValue{":bid": strValue(bookID)},
	}
	for {
		out, err := r.client.Query(ctx, input)
		if err != nil {
			return nil, err
		}
		var page []domain.Review
		if err := attributevalue.UnmarshalListOfMaps(out.Items, &page); err != nil {
			return nil, err
		}
		reviews = append(reviews, page...)
		if len(out.LastEvaluatedKey) == 0 {
			return reviews, nil
		}
		input.ExclusiveStartKey = out.LastEvaluatedKey
	}
}
