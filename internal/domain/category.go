package domain

type Category struct {
	CategoryID string `json:"id" dynamodbav:"category_id"`
	Name       string `json:"name" dynamodbav:"name"`
}

type CategoryInput struct {
	Name string `json:"name" validate:"required,max=100"`
}
