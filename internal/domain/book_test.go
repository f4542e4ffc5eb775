package domain

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestBook_AverageRatingAndVisibility(t *testing.T) {
	b := &Book{OwnerID: "u1"}
	assert.Zero(t, b.AverageRating())
	assert.True(t, b.VisibleTo("u1"))
	assert.False(t, b.VisibleTo("u2"))
	assert.False(t, b.VisibleTo(""))

	b.RatingSum, b.ReviewCount, b.IsPublic = 9, 2, true
	assert.Equal(t, 4.5, b.AverageRating())
	assert.True(t, b.VisibleTo(""))
	assert.Equal(t, VisibilityPublic, VisibilityOf(true))
}
