package dynamo

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/feature/dynamodb/attributevalue"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
	"github.com/leafbook/internal/domain"
)

// PasscodeRepo is the one-time passcode ledger.
// PK: account_id, SK: otp_id. Rows are kept after use; expiry is checked when a code is presented.
type PasscodeRepo struct {
	client        *dynamodb.Client
	tableName     string
	accountsTable string
}

func NewPasscodeRepo(client *dynamodb.Client, tableName, accountsTable string) *PasscodeRepo {
	return &PasscodeRepo{client: client, tableName: tableName, accountsTable: accountsTable}
}

// Issue retires every unused passcode of the account and stores p in one transaction.
// The account's active_otp_id acts as a version: the write only succeeds if it still
// holds the value the caller read and the account is still inactive, so two concurrent
// issues for one account cannot both leave a usable code behind.
// Returns domain.ErrConflict when the transaction loses that race.
func (r *PasscodeRepo) Issue(ctx context.Context, acct *domain.Account, p *domain.OneTimePasscode) error {
	prior, err := r.ListUnused(ctx, acct.AccountID)
	if err != nil {
		return err
	}
	input, err := r.issueInput(acct, p, prior)
	if err != nil {
		return err
	}
	if _, err := r.client.TransactWriteItems(ctx, input); err != nil {
		if isConditionFailure(err) {
			return fmt.Errorf("concurrent passcode issue: %w", domain.ErrConflict)
		}
		return err
	}
	return nil
}

func (r *PasscodeRepo) issueInput(acct *domain.Account, p *domain.OneTimePasscode, prior []domain.OneTimePasscode) (*dynamodb.TransactWriteItemsInput, error) {
	item, err := attributevalue.MarshalMap(p)
	if err != nil {
		return nil, fmt.Errorf("marshal passcode: %w", err)
	}

	items := make([]types.TransactWriteItem, 0, len(prior)+2)
	for _, old := range prior {
		items = append(items, types.TransactWriteItem{Update: &types.Update{
			TableName:                 aws.String(r.tableName),
			Key:                       compositeKey(fieldAccountID, old.AccountID, "otp_id", old.PasscodeID),
			UpdateExpression:          aws.String("SET #used = :t"),
			ConditionExpression:       aws.String("#used = :f"),
			ExpressionAttributeNames:  map[string]string{"#used": fieldUsed},
			ExpressionAttributeValues: map[string]types.AttributeValue{":t": boolValue(true), ":f": boolValue(false)},
		}})
	}
	items = append(items, types.TransactWriteItem{Put: &types.Put{
		TableName:           aws.String(r.tableName),
		Item:                item,
		ConditionExpression: aws.String("attribute_not_exists(otp_id)"),
	}})

	names := map[string]string{"#otp": fieldActiveOTPID, "#active": fieldIsActive}
	values := map[string]types.AttributeValue{
		":otp": strValue(p.PasscodeID),
		":f":   boolValue(false),
	}
	cond := "#active = :f AND attribute_not_exists(#otp)"
	if acct.ActiveOTPID != "" {
		cond = "#active = :f AND #otp = :prev"
		values[":prev"] = strValue(acct.ActiveOTPID)
	}
	items = append(items, types.TransactWriteItem{Update: &types.Update{
		TableName:                 aws.String(r.accountsTable),
		Key:                       strKey(fieldAccountID, acct.AccountID),
		UpdateExpression:          aws.String("SET #otp = :otp"),
		ConditionExpression:       aws.String(cond),
		ExpressionAttributeNames:  names,
		ExpressionAttributeValues: values,
	}})

	return &dynamodb.TransactWriteItemsInput{TransactItems: items}, nil
}

// ListUnused returns the account's passcodes not yet used, expired or not.
func (r *PasscodeRepo) ListUnused(ctx context.Context, accountID string) ([]domain.OneTimePasscode, error) {
	var result []domain.OneTimePasscode
	input := &dynamodb.QueryInput{
		TableName:              aws.String(r.tableName),
		KeyConditionExpression: aws.String("account_id = :aid"),
		FilterExpression:       aws.String("#used = :f"),
		ExpressionAttributeNames: map[string]string{
			"#used": fieldUsed,
		},
		ExpressionAttributeValues: map[string]types.AttributeValue{
			":aid": strValue(accountID),
			":f":   boolValue(false),
		},
		ConsistentRead: aws.Bool(true),
	}
	for {
		out, err := r.client.Query(ctx, input)
		if err != nil {
			return nil, err
		}
		var page []domain.OneTimePasscode
		if err := attributevalue.UnmarshalListOfMaps(out.Items, &page); err != nil {
			return nil, err
		}
		result = append(result, page...)
		if len(out.LastEvaluatedKey) == 0 {
			return result, nil
		}
		input.ExclusiveStartKey = out.LastEvaluatedKey
	}
}

// Consume marks p used and activates its account in one transaction. The passcode
// write is conditioned on it being unused and unexpired at now, so a code can be
// consumed at most once. Returns domain.ErrConflict when that condition fails.
func (r *PasscodeRepo) Consume(ctx context.Context, p *domain.OneTimePasscode, now time.Time) error {
	if _, err := r.client.TransactWriteItems(ctx, r.consumeInput(p, now)); err != nil {
		if isConditionFailure(err) {
			return fmt.Errorf("passcode no longer usable: %w", domain.ErrConflict)
		}
		return err
	}
	return nil
}

func (r *PasscodeRepo) consumeInput(p *domain.OneTimePasscode, now time.Time) *dynamodb.TransactWriteItemsInput {
	return &dynamodb.TransactWriteItemsInput{
		TransactItems: []types.TransactWriteItem{
			{Update: &types.Update{
				TableName:                aws.String(r.tableName),
				Key:                      compositeKey(fieldAccountID, p.AccountID, "otp_id", p.PasscodeID),
				UpdateExpression:         aws.String("SET #used = :t"),
				ConditionExpression:      aws.String("#used = :f AND #exp > :now"),
				ExpressionAttributeNames: map[string]string{"#used": fieldUsed, "#exp": fieldExpiresAt},
				ExpressionAttributeValues: map[string]types.AttributeValue{
					":t":   boolValue(true),
					":f":   boolValue(false),
					":now": &types.AttributeValueMemberN{Value: strconv.FormatInt(now.Unix(), 10)},
				},
			}},
			{Update: &types.Update{
				TableName:                aws.String(r.accountsTable),
				Key:                      strKey(fieldAccountID, p.AccountID),
				UpdateExpression:         aws.String("SET #active = :t, #upd = :upd REMOVE #otp"),
				ConditionExpression:      aws.String("attribute_exists(account_id)"),
				ExpressionAttributeNames: map[string]string{"#active": fieldIsActive, "#upd": fieldUpdatedAt, "#otp": fieldActiveOTPID},
				ExpressionAttributeValues: map[string]types.AttributeValue{
					":t":   boolValue(true),
					":upd": strValue(now.UTC().Format(time.RFC3339Nano)),
				},
			}},
		},
	}
}
