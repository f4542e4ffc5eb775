package category

import (
	"context"
	"fmt"
	"strings"

	"github.com/leafbook/internal/domain"
	"github.com/leafbook/internal/pkg/id"
)

type Service interface {
	List(ctx context.Context) ([]domain.Category, error)
	Get(ctx context.Context, categoryID string) (*domain.Category, error)
	Create(ctx context.Context, input domain.CategoryInput) (*domain.Category, error)
	Update(ctx context.Context, categoryID string, input domain.CategoryInput) (*domain.Category, error)
	Delete(ctx context.Context, categoryID string) error // hard delete
}

type categoryStore interface {
	List(ctx context.Context) ([]domain.Category, error)
	Get(ctx context.Context, categoryID string) (*domain.Category, error)
	Put(ctx context.Context, c *domain.Category) error
	Rename(ctx context.Context, categoryID, name string) error
	Delete(ctx context.Context, categoryID string) error
}

type service struct {
	repo categoryStore
}

func NewService(repo categoryStore) Service {
	return &service{repo: repo}
}

func (s *service) List(ctx context.Context) ([]domain.Category, error) {
	return s.repo.List(ctx)
}

func (s *service) Get(ctx context.Context, categoryID string) (*domain.Category, error) {
	return s.repo.Get(ctx, categoryID)
}

func (s *service) Create(ctx context.Context, input domain.CategoryInput) (*domain.Category, error) {
	name, err := cleanName(input.Name)
	if err != nil {
		return nil, err
	}
	c := &domain.Category{CategoryID: id.New(), Name: name}
	if err := s.repo.Put(ctx, c); err != nil {
		return nil, err
	}
	return c, nil
}

func (s *service) Update(ctx context.Context, categoryID string, input domain.CategoryInput) (*domain.Category, error) {
	name, err := cleanName(input.Name)
	if err != nil {
		return nil, err
	}
	if err := s.repo.Rename(ctx, categoryID, name); err != nil {
		return nil, err
	}
	return &domain.Category{CategoryID: categoryID, Name: name}, nil
}

func (s *service) Delete(ctx context.Context, categoryID string) error {
	return s.repo.Delete(ctx, categoryID)
}

func cleanName(name string) (string, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return "", fmt.Errorf("category name is required: %w", domain.ErrBadRequest)
	}
	return name, nil
}
