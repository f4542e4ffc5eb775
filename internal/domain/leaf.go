package domain

import "time"

// DefaultLeafContent is an empty rich-text document with a single paragraph.
const DefaultLeafContent = `{"type":"doc","content":[{"type":"paragraph"}]}`

// Leaf is one entry (page) of a book. Images are stored inline on the leaf.
type Leaf struct {
	LeafID      string      `json:"id" dynamodbav:"leaf_id"`
	BookID      string      `json:"book_id" dynamodbav:"book_id"`
	OwnerID     string      `json:"-" dynamodbav:"owner_id"`
	Text        string      `json:"text" dynamodbav:"text"`
	ContentJSON string      `json:"content_json" dynamodbav:"content_json"`
	Images      []LeafImage `json:"images" dynamodbav:"images"`
	CreatedAt   time.Time   `json:"created" dynamodbav:"created_at"`
	UpdatedAt   time.Time   `json:"updated" dynamodbav:"updated_at"`
}

type LeafImage struct {
	ImageID   string    `json:"id" dynamodbav:"image_id"`
	URL       string    `json:"url" dynamodbav:"url"`
	Key       string    `json:"-" dynamodbav:"key"`
	CreatedAt time.Time `json:"created" dynamodbav:"created_at"`
}

type LeafInput struct {
	Text        string `json:"text" validate:"max=500"`
	ContentJSON string `json:"content_json" validate:"omitempty,json"`
}
