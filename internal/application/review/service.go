package review

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/leafbook/internal/domain"
	"github.com/leafbook/internal/pkg/id"
)

type Service interface {
	// Create stores a review of a book the user can see and folds its rating
	// into the book's aggregates.
	Create(ctx context.Context, userID, bookID string, in domain.ReviewInput) (*domain.Review, error)
	// List returns the book's reviews, best first.
	List(ctx context.Context, viewerID, bookID string) ([]domain.Review, error)
}

type reviewStore interface {
	Create(ctx context.Context, rv *domain.Review) error
	ListByBook(ctx context.Context, bookID string) ([]domain.Review, error)
}

type bookStore interface {
	Get(ctx context.Context, bookID string) (*domain.Book, error)
}

type service struct {
	repo  reviewStore
	books bookStore
}

func NewService(repo reviewStore, books bookStore) Service {
	return &service{repo: repo, books: books}
}

func (s *service) Create(ctx context.Context, userID, bookID string, in domain.ReviewInput) (*domain.Review, error) {
	comment := strings.TrimSpace(in.Comment)
	if comment == "" || in.Rating < 1 || in.Rating > 5 {
		return nil, fmt.Errorf("please add a rating and a short comment: %w", domain.ErrBadRequest)
	}
	if err := s.checkVisible(ctx, userID, bookID); err != nil {
		return nil, err
	}
	rv := &domain.Review{
		BookID:    bookID,
		ReviewID:  id.New(),
		UserID:    userID,
		Rating:    in.Rating,
		Comment:   comment,
		CreatedAt: time.Now().UTC(),
	}
	if err := s.repo.Create(ctx, rv); err != nil {
		return nil, err
	}
	return rv, nil
}

func (s *service) List(ctx context.Context, viewerID, bookID string) ([]domain.Review, error) {
	if err := s.checkVisible(ctx, viewerID, bookID); err != nil {
		return nil, err
	}
	reviews, err := s.repo.ListByBook(ctx, bookID)
	if err != nil {
		return nil, err
	}
	if reviews == nil {
		reviews = []domain.Review{}
	}
	domain.SortReviews(reviews)
	return reviews, nil
}

func (s *service) checkVisible(ctx context.Context, viewerID, bookID string) error {
	b, err := s.books.Get(ctx, bookID)
	if err != nil {
		return err
	}
	if !b.VisibleTo(viewerID) {
		return fmt.Errorf("book not found: %w", domain.ErrNotFound)
	}
	return nil
}
