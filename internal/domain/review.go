package domain

import (
	"sort"
	"time"
)

// Review is a rating with a comment. PK: book_id, SK: review_id.
type Review struct {
	BookID    string    `json:"book_id" dynamodbav:"book_id"`
	ReviewID  string    `json:"id" dynamodbav:"review_id"`
	UserID    string    `json:"user_id" dynamodbav:"user_id"`
	Rating    int       `json:"rating" dynamodbav:"rating"`
	Comment   string    `json:"comment" dynamodbav:"comment"`
	CreatedAt time.Time `json:"created" dynamodbav:"created_at"`
}

type ReviewInput struct {
	Rating  int    `json:"rating" validate:"required,min=1,max=5"`
	Comment string `json:"comment" validate:"required,max=1000"`
}

// SortReviews orders reviews best first: rating descending, then newest first.
func SortReviews(rs []Review) {
	sort.SliceStable(rs, func(i, j int) bool {
		if rs[i].Rating != rs[j].Rating {
			return rs[i].Rating > rs[j].Rating
		}
		return rs[i].CreatedAt.After(rs[j].CreatedAt)
	})
}
