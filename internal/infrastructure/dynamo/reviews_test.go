package dynamo

import (
	"testing"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
	"github.com/leafbook/internal/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestReviewCreateInput_UpdatesAggregates(t *testing.T) {
	r := NewReviewRepo(nil, "reviews", "books")
	in, err := r.createInput(&domain.Review{BookID: "b1", ReviewID: "r1", UserID: "u1", Rating: 4, Comment: "good"})
	require.NoError(t, err)
	require.Len(t, in.TransactItems, 2)

	assert.Equal(t, "reviews", aws.ToString(in.TransactItems[0].Put.TableName))

	u := in.TransactItems[1].Update
	assert.Equal(t, "books", aws.ToString(u.TableName))
	assert.Equal(t, "ADD #sum :r, #cnt :one", aws.ToString(u.UpdateExpression))
	assert.Equal(t, "4", u.ExpressionAttributeValues[":r"].(*types.AttributeValueMemberN).Value)
	assert.Equal(t, "rating_sum", u.ExpressionAttributeNames["#sum"])
}
