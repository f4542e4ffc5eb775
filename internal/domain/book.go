package domain

import "time"

const (
	VisibilityPublic  = "public"
	VisibilityPrivate = "private"
)

// Book is a collection of leaves owned by one account.
// Visibility mirrors IsPublic as a string so it can back a GSI partition key.
type Book struct {
	BookID      string    `json:"id" dynamodbav:"book_id"`
	OwnerID     string    `json:"owner_id" dynamodbav:"owner_id"`
	Title       string    `json:"title" dynamodbav:"title"`
	Description string    `json:"description" dynamodbav:"description"`
	CategoryID  string    `json:"category_id" dynamodbav:"category_id"`
	CoverURL    string    `json:"cover_url,omitempty" dynamodbav:"cover_url,omitempty"`
	CoverKey    string    `json:"-" dynamodbav:"cover_key,omitempty"`
	IsPublic    bool      `json:"is_public" dynamodbav:"is_public"`
	Visibility  string    `json:"-" dynamodbav:"visibility"`
	RatingSum   int       `json:"-" dynamodbav:"rating_sum"`
	ReviewCount int       `json:"review_count" dynamodbav:"review_count"`
	CreatedAt   time.Time `json:"created" dynamodbav:"created_at"`
	UpdatedAt   time.Time `json:"updated" dynamodbav:"updated_at"`
}

// AverageRating is 0 for a book without reviews.
func (b *Book) AverageRating() float64 {
	if b.ReviewCount == 0 {
		return 0
	}
	return float64(b.RatingSum) / float64(b.ReviewCount)
}

// VisibleTo reports whether viewerID may read the book. An empty viewer is anonymous.
func (b *Book) VisibleTo(viewerID string) bool {
	return b.IsPublic || (viewerID != "" && b.OwnerID == viewerID)
}

func VisibilityOf(isPublic bool) string {
	if isPublic {
		return VisibilityPublic
	}
	return VisibilityPrivate
}

type BookInput struct {
	Title       string `json:"title" validate:"required,max=50"`
	Description string `json:"description" validate:"required,max=200"`
	CategoryID  string `json:"category_id" validate:"required"`
	IsPublic    bool   `json:"is_public"`
}

// BookSummary is a list entry.
type BookSummary struct {
	Book
	AverageRating float64 `json:"average_rating"`
	IsOwner       bool    `json:"is_owner"`
}

// BookDetail is the single-book view.
type BookDetail struct {
	Book
	AverageRating float64  `json:"average_rating"`
	IsOwner       bool     `json:"is_owner"`
	IsSaved       bool     `json:"is_saved"`
	Leaves        []Leaf   `json:"leaves"`
	TopReviews    []Review `json:"top_reviews"`
}

// SavedBook marks a book bookmarked by an account. PK: user_id, SK: book_id.
type SavedBook struct {
	UserID    string    `json:"user_id" dynamodbav:"user_id"`
	BookID    string    `json:"book_id" dynamodbav:"book_id"`
	CreatedAt time.Time `json:"created" dynamodbav:"created_at"`
}
