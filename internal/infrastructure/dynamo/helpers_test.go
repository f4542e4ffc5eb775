package dynamo

import (
	"errors"
	"fmt"
	"testing"

	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBuildUpdateExpr_SingleField(t *testing.T) {
	ue, err := buildUpdateExpr(map[string]interface{}{"username": "alice"})
	require.NoError(t, err)
	assert.Equal(t, "SET #f0 = :v0", ue.Expr)
	assert.Equal(t, map[string]string{"#f0": "username"}, ue.Names)
	_, ok := ue.Values[":v0"]
	assert.True(t, ok)
}

func TestBuildUpdateExpr_MultipleFields_Deterministic(t *testing.T) {
	updates := map[string]interface{}{
		"email":      "a@b.com",
		"first_name": "Alice",
		"username":   "alice",
	}
	// Call twice to verify determinism.
	ue1, err := buildUpdateExpr(updates)
	require.NoError(t, err)
	ue2, err := buildUpdateExpr(updates)
	require.NoError(t, err)

	assert.Equal(t, ue1.Expr, ue2.Expr)

	// Keys must be sorted: email < first_name < username
	assert.Equal(t, "email", ue1.Names["#f0"])
	assert.Equal(t, "first_name", ue1.Names["#f1"])
	assert.Equal(t, "username", ue1.Names["#f2"])
	assert.Equal(t, "SET #f0 = :v0, #f1 = :v1, #f2 = :v2", ue1.Expr)
}

func TestBuildUpdateExpr_ValuesMarshalledCorrectly(t *testing.T) {
	ue, err := buildUpdateExpr(map[string]interface{}{"enable": true})
	require.NoError(t, err)
	av, ok := ue.Values[":v0"]
	require.True(t, ok)
	boolVal, isBool := av.(*types.AttributeValueMemberBOOL)
	require.True(t, isBool)
	assert.True(t, boolVal.Value)
}

func TestBuildUpdateExpr_EmptyMap_ReturnsError(t *testing.T) {
	_, err := buildUpdateExpr(map[string]interface{}{})
	assert.ErrorContains(t, err, "no fields to update")
}

func TestIsConditionFailure(t *testing.T) {
	code := "ConditionalCheckFailed"
	none := "None"

	assert.True(t, isConditionFailure(&types.ConditionalCheckFailedException{}))
	assert.True(t, isConditionFailure(fmt.Errorf("wrapped: %w", &types.TransactionCanceledException{
		CancellationReasons: []types.CancellationReason{{Code: &none}, {Code: &code}},
	})))
	assert.False(t, isConditionFailure(&types.TransactionCanceledException{
		CancellationReasons: []types.CancellationReason{{Code: &none}},
	}))
	assert.False(t, isConditionFailure(errors.New("throttled")))
}

func TestCompositeKey(t *testing.T) {
	k := compositeKey("account_id", "a1", "otp_id", "o1")
	assert.Equal(t, "a1", k["account_id"].(*types.AttributeValueMemberS).Value)
	assert.Equal(t, "o1", k["otp_id"].(*types.AttributeValueMemberS).Value)
}

func TestCompositeTable(t *testing.T) {
	in := compositeTable("reviews", "book_id", "review_id")
	require.Len(t, in.KeySchema, 2)
	assert.Equal(t, types.KeyTypeHash, in.KeySchema[0].KeyType)
	assert.Equal(t, "review_id", *in.KeySchema[1].AttributeName)
	assert.Len(t, in.AttributeDefinitions, 2)
}
