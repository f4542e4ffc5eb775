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

// emailClaim reserves an email address for one account.
type emailClaim struct {
	Email     string `dynamodbav:"email"`
	AccountID string `dynamodbav:"account_id"`
}

// AccountRepo provides typed DynamoDB operations for the accounts table and
// its email uniqueness table.
type AccountRepo struct {
	client      *dynamodb.Client
	tableName   string
	emailsTable string
}

func NewAccountRepo(client *dynamodb.Client, tableName, emailsTable string) *AccountRepo {
	return &AccountRepo{client: client, tableName: tableName, emailsTable: emailsTable}
}

// Create writes the account and claims its email in one transaction.
// Returns domain.ErrConflict when the email is already claimed.
func (r *AccountRepo) Create(ctx context.Context, a *domain.Account) error {
	input, err := r.createInput(a)
	if err != nil {
		return err
	}
	if _, err := r.client.TransactWriteItems(ctx, input); err != nil {
		if isConditionFailure(err) {
			return fmt.Errorf("email already claimed: %w", domain.ErrConflict)
		}
		return err
	}
	return nil
}

func (r *AccountRepo) createInput(a *domain.Account) (*dynamodb.TransactWriteItemsInput, error) {
	item, err := attributevalue.MarshalMap(a)
	if err != nil {
		return nil, fmt.Errorf("marshal account: %w", err)
	}
	claim, err := attributevalue.MarshalMap(emailClaim{Email: a.Email, AccountID: a.AccountID})
	if err != nil {
		return nil, fmt.Errorf("marshal email claim: %w", err)
	}
	return &dynamodb.TransactWriteItemsInput{
		TransactItems: []types.TransactWriteItem{
			{Put: &types.Put{
				TableName:           aws.String(r.emailsTable),
				Item:                claim,
				ConditionExpression: aws.String("attribute_not_exists(email)"),
			}},
			{Put: &types.Put{
				TableName:           aws.String(r.tableName),
				Item:                item,
				ConditionExpression: aws.String("attribute_not_exists(account_id)"),
			}},
		},
	}, nil
}

func (r *AccountRepo) Get(ctx context.Context, accountID string) (*domain.Account, error) {
	out, err := r.client.GetItem(ctx, &dynamodb.GetItemInput{
		TableName:      aws.String(r.tableName),
		Key:            strKey(fieldAccountID, accountID),
		ConsistentRead: aws.Bool(true),
	})
	if err != nil {
		return nil, err
	}
	if out.Item == nil {
		return nil, fmt.Errorf("account not found: %w", domain.ErrNotFound)
	}
	var a domain.Account
	if err := attributevalue.UnmarshalMap(out.Item, &a); err != nil {
		return nil, err
	}
	return &a, nil
}

// GetByEmail resolves the email claim, then the account it points to.
// Usernames are emails, so this also serves username lookups.
func (r *AccountRepo) GetByEmail(ctx context.Context, email string) (*domain.Account, error) {
	out, err := r.client.GetItem(ctx, &dynamodb.GetItemInput{
		TableName:      aws.String(r.emailsTable),
		Key:            strKey(fieldEmail, email),
		ConsistentRead: aws.Bool(true),
	})
	if err != nil {
		return nil, err
	}
	if out.Item == nil {
		return nil, fmt.Errorf("account not found: %w", domain.ErrNotFound)
	}
	var c emailClaim
	if err := attributevalue.UnmarshalMap(out.Item, &c); err != nil {
		return nil, err
	}
	return r.Get(ctx, c.AccountID)
}

func (r *AccountRepo) Update(ctx context.Context, accountID string, updates map[string]interface{}) error {
	updates[fieldUpdatedAt] = time.Now().UTC()
	ue, err := buildUpdateExpr(updates)
	if err != nil {
		return err
	}
	_, err = r.client.UpdateItem(ctx, &dynamodb.UpdateItemInput{
		TableName:                 aws.String(r.tableName),
		Key:                       strKey(fieldAccountID, accountID),
		UpdateExpression:          aws.String(ue.Expr),
		ExpressionAttributeNames:  ue.Names,
		ExpressionAttributeValues: ue.Values,
		ConditionExpression:       aws.String("attribute_exists(account_id)"),
	})
	if isConditionFailure(err) {
		return fmt.Errorf("account not found: %w", domain.ErrNotFound)
	}
	return err
}

// UpdatePending replaces the credentials of an account that has not been verified yet.
// Returns domain.ErrConflict if the account was activated in the meantime.
func (r *AccountRepo) UpdatePending(ctx context.Context, a *domain.Account) error {
	ue, err := buildUpdateExpr(map[string]interface{}{
		fieldDisplayName:  a.DisplayName,
		fieldEmail:        a.Email,
		fieldPasswordHash: a.PasswordHash,
		fieldUpdatedAt:    a.UpdatedAt,
	})
	if err != nil {
		return err
	}
	ue.Names["#active"] = fieldIsActive
	ue.Values[":inactive"] = boolValue(false)
	_, err = r.client.UpdateItem(ctx, &dynamodb.UpdateItemInput{
		TableName:                 aws.String(r.tableName),
		Key:                       strKey(fieldAccountID, a.AccountID),
		UpdateExpression:          aws.String(ue.Expr),
		ExpressionAttributeNames:  ue.Names,
		ExpressionAttributeValues: ue.Values,
		ConditionExpression:       aws.String("#active = :inactive"),
	})
	if isConditionFailure(err) {
		return fmt.Errorf("account already active: %w", domain.ErrConflict)
	}
	return err
}
