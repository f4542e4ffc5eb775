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

// LeafRepo provides typed DynamoDB operations for the leaves table.
// GSI: book_id-created_at-index.
type LeafRepo struct {
	client    *dynamodb.Client
	tableName string
}

func NewLeafRepo(client *dynamodb.Client, tableName string) *LeafRepo {
	return &LeafRepo{client: client, tableName: tableName}
}

func (r *LeafRepo) Put(ctx context.Context, l *domain.Leaf) error {
	if l.Images == nil {
		l.Images = []domain.LeafImage{}
	}
	item, err := attributevalue.MarshalMap(l)
	if err != nil {
		return fmt.Errorf("marshal leaf: %w", err)
	}
	_, err = r.client.PutItem(ctx, &dynamodb.PutItemInput{
		TableName: aws.String(r.tableName),
		Item:      item,
	})
	return err
}

func (r *LeafRepo) Get(ctx context.Context, leafID string) (*domain.Leaf, error) {
	out, err := r.client.GetItem(ctx, &dynamodb.GetItemInput{
		TableName: aws.String(r.tableName),
		Key:       strKey("leaf_id", leafID),
	})
	if err != nil {
		return nil, err
	}
	if out.Item == nil {
		return nil, fmt.Errorf("leaf not found: %w", domain.ErrNotFound)
	}
	var l domain.Leaf
	if err := attributevalue.UnmarshalMap(out.Item, &l); err != nil {
		return nil, err
	}
	return &l, nil
}

func (r *LeafRepo) Update(ctx context.Context, leafID string, updates map[string]interface{}) error {
	updates[fieldUpdatedAt] = time.Now().UTC()
	ue, err := buildUpdateExpr(updates)
	if err != nil {
		return err
	}
	_, err = r.client.UpdateItem(ctx, &dynamodb.UpdateItemInput{
		TableName:                 aws.String(r.tableName),
		Key:                       strKey("leaf_id", leafID),
		UpdateExpression:          aws.String(ue.Expr),
		ExpressionAttributeNames:  ue.Names,
		ExpressionAttributeValues: ue.Values,
		ConditionExpression:       aws.String("attribute_exists(leaf_id)"),
	})
	if isConditionFailure(err) {
		return fmt.Errorf("leaf not found: %w", domain.ErrNotFound)
	}
	return err
}

// AppendImages adds images to the end of the leaf's image list.
func (r *LeafRepo) AppendImages(ctx context.Context, leafID string, images []domain.LeafImage) error {
	av, err := attributevalue.Marshal(images)
	if err != nil {
		return fmt.Errorf("marshal leaf images: %w", err)
	}
	_, err = r.client.UpdateItem(ctx, &dynamodb.UpdateItemInput{
		TableName:        aws.String(r.tableName),
		Key:              strKey("leaf_id", leafID),
		UpdateExpression: aws.String("SET #img = list_append(if_not_exists(#img, :empty), :new), #upd = :upd"),
		ExpressionAttributeNames: map[string]string{
			"#img": "images",
			"#upd": fieldUpdatedAt,
		},
		ExpressionAttributeValues: map[string]types.AttributeValue{
			":empty": &types.AttributeValueMemberL{Value: []types.AttributeValue{}},
			":new":   av,
			":upd":   strValue(time.Now().UTC().Format(time.RFC3339Nano)),
		},
		ConditionExpression: aws.String("attribute_exists(leaf_id)"),
	})
	if isConditionFailure(err) {
		return fmt.Errorf("leaf not found: %w", domain.ErrNotFound)
	}
	return err
}

// RemoveImage deletes the image at index, provided it still has imageID.
// Returns domain.ErrConflict when the list changed since it was read.
func (r *LeafRepo) RemoveImage(ctx context.Context, leafID string, index int, imageID string) error {
	_, err := r.client.UpdateItem(ctx, &dynamodb.UpdateItemInput{
		TableName:        aws.String(r.tableName),
		Key:              strKey("leaf_id", leafID),
		UpdateExpression: aws.String(fmt.Sprintf("REMOVE #img[%d] SET #upd = :upd", index)),
		ExpressionAttributeNames: map[string]string{
			"#img": "images",
			"#iid": "image_id",
			"#upd": fieldUpdatedAt,
		},
		ExpressionAttributeValues: map[string]types.AttributeValue{
			":iid": strValue(imageID),
			":upd": strValue(time.Now().UTC().Format(time.RFC3339Nano)),
		},
		ConditionExpression: aws.String(fmt.Sprintf("#img[%d].#iid = :iid", index)),
	})
	if isConditionFailure(err) {
		return fmt.Errorf("leaf images changed: %w", domain.ErrConflict)
	}
	return err
}

// ListByBook returns the book's leaves, oldest first.
func (r *LeafRepo) ListByBook(ctx context.Context, bookID string) ([]domain.Leaf, error) {
	var leaves []domain.Leaf
	input := &dynamodb.QueryInput{
		TableName:                 aws.String(r.tableName),
		IndexName:                 aws.String("book_id-created_at-index"),
		KeyConditionExpression:    aws.String("book_id = :bid"),
		ExpressionAttributeValues: map[string]types.AttributeValue{":bid": strValue(bookID)},
		ScanIndexForward:          aws.Bool(true),
	}
	for {
		out, err := r.client.Query(ctx, input)
		if err != nil {
			return nil, err
		}
		var page []domain.Leaf
		if err := attributevalue.UnmarshalListOfMaps(out.Items, &page); err != nil {
			return nil, err
		}
		leaves = append(leaves, page...)
		if len(out.LastEvaluatedKey) == 0 {
			return leaves, nil
		}
		input.ExclusiveStartKey = out.LastEvaluatedKey
	}
}
