package book

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"strings"
	"time"

	"github.com/leafbook/internal/application/media"
	"github.com/leafbook/internal/domain"
	"github.com/leafbook/internal/pkg/id"
)

// DynamoDB attribute names used in partial update maps.
const (
	fieldTitle       = "title"
	fieldDescription = "description"
	fieldCategoryID  = "category_id"
	fieldIsPublic    = "is_public"
	fieldCoverURL    = "cover_url"
	fieldCoverKey    = "cover_key"
	fieldText        = "text"
	fieldContentJSON = "content_json"
)

const (
	LeafOrderNewest = "newest"
	LeafOrderOldest = "oldest"

	topReviewCount      = 3
	imageRemoveAttempts = 3
)

// ListFilter narrows book listings. Query is a case-insensitive substring of
// the title or description.
type ListFilter struct {
	Query      string
	CategoryID string
}

type MyBooks struct {
	Books      []domain.BookSummary `json:"books"`
	SavedBooks []domain.BookSummary `json:"saved_books"`
}

type Service interface {
	ListPublic(ctx context.Context, viewerID string, f ListFilter) ([]domain.BookSummary, error)
	// ListMine returns the owner's books plus books they saved but do not own.
	ListMine(ctx context.Context, ownerID string, f ListFilter) (*MyBooks, error)
	Get(ctx context.Context, viewerID, bookID, leafOrder string) (*domain.BookDetail, error)
	Create(ctx context.Context, ownerID string, in domain.BookInput, cover *media.Upload) (*domain.Book, error)
	Update(ctx context.Context, ownerID, bookID string, in domain.BookInput) (*domain.Book, error)
	SetCover(ctx context.Context, ownerID, bookID string, cover media.Upload) (*domain.Book, error)

	AddLeaf(ctx context.Context, ownerID, bookID string, in domain.LeafInput, images []media.Upload) (*domain.Leaf, error)
	UpdateLeaf(ctx context.Context, ownerID, leafID string, in domain.LeafInput, images []media.Upload) (*domain.Leaf, error)
	AddLeafImages(ctx context.Context, ownerID, leafID string, images []media.Upload) (*domain.Leaf, error)
	DeleteLeafImage(ctx context.Context, ownerID, leafID, imageID string) (*domain.Leaf, error)
	UploadEditorImage(ctx context.Context, img media.Upload) (*media.Stored, error)

	// ToggleSaved flips the bookmark and returns the new state.
	ToggleSaved(ctx context.Context, userID, bookID string) (bool, error)
}

type bookStore interface {
	Create(ctx context.Context, b *domain.Book) error
	Get(ctx context.Context, bookID string) (*domain.Book, error)
	Update(ctx context.Context, bookID string, updates map[string]interface{}) error
	Touch(ctx context.Context, bookID string) error
	ListPublic(ctx context.Context) ([]domain.Book, error)
	ListByOwner(ctx context.Context, ownerID string) ([]domain.Book, error)
	GetMany(ctx context.Context, ids []string) ([]domain.Book, error)
}

type leafStore interface {
	Put(ctx context.Context, l *domain.Leaf) error
	Get(ctx context.Context, leafID string) (*domain.Leaf, error)
	Update(ctx context.Context, leafID string, updates map[string]interface{}) error
	AppendImages(ctx context.Context, leafID string, images []domain.LeafImage) error
	RemoveImage(ctx context.Context, leafID string, index int, imageID string) error
	ListByBook(ctx context.Context, bookID string) ([]domain.Leaf, error)
}

type savedStore interface {
	Put(ctx context.Context, s *domain.SavedBook) error
	Delete(ctx context.Context, userID, bookID string) error
	Exists(ctx context.Context, userID, bookID string) (bool, error)
	ListBookIDs(ctx context.Context, userID string) ([]string, error)
}

type categoryStore interface {
	Get(ctx context.Context, categoryID string) (*domain.Category, error)
}

type reviewStore interface {
	ListByBook(ctx context.Context, bookID string) ([]domain.Review, error)
}

type mediaStore interface {
	StoreImage(ctx context.Context, prefix string, up media.Upload) (*media.Stored, error)
	Remove(ctx context.Context, key string)
}

type ServiceDeps struct {
	BookRepo     bookStore
	LeafRepo     leafStore
	SavedRepo    savedStore
	CategoryRepo categoryStore
	ReviewRepo   reviewStore
	Media        mediaStore
}

type service struct {
	books      bookStore
	leaves     leafStore
	saved      savedStore
	categories categoryStore
	reviews    reviewStore
	media      mediaStore
}

func NewService(deps ServiceDeps) Service {
	return &service{
		books:      deps.BookRepo,
		leaves:     deps.LeafRepo,
		saved:      deps.SavedRepo,
		categories: deps.CategoryRepo,
		reviews:    deps.ReviewRepo,
		media:      deps.Media,
	}
}

// --- books ---

func (s *service) ListPublic(ctx context.Context, viewerID string, f ListFilter) ([]domain.BookSummary, error) {
	books, err := s.books.ListPublic(ctx)
	if err != nil {
		return nil, err
	}
	return summarize(filterBooks(books, f), viewerID), nil
}

func (s *service) ListMine(ctx context.Context, ownerID string, f ListFilter) (*MyBooks, error) {
	owned, err := s.books.ListByOwner(ctx, ownerID)
	if err != nil {
		return nil, err
	}
	ids, err := s.saved.ListBookIDs(ctx, ownerID)
	if err != nil {
		return nil, err
	}
	var saved []domain.Book
	if len(ids) > 0 {
		all, err := s.books.GetMany(ctx, ids)
		if err != nil {
			return nil, err
		}
		for _, b := range all {
			if b.OwnerID != ownerID && b.VisibleTo(ownerID) {
				saved = append(saved, b)
			}
		}
		sortByUpdated(saved)
	}
	return &MyBooks{
		Books:      summarize(filterBooks(owned, f), ownerID),
		SavedBooks: summarize(saved, ownerID),
	}, nil
}

func (s *service) Get(ctx context.Context, viewerID, bookID, leafOrder string) (*domain.BookDetail, error) {
	b, err := s.visible(ctx, viewerID, bookID)
	if err != nil {
		return nil, err
	}
	leaves, err := s.leaves.ListByBook(ctx, bookID)
	if err != nil {
		return nil, err
	}
	if leafOrder != LeafOrderOldest {
		for i, j := 0, len(leaves)-1; i < j; i, j = i+1, j-1 {
			leaves[i], leaves[j] = leaves[j], leaves[i]
		}
	}
	reviews, err := s.reviews.ListByBook(ctx, bookID)
	if err != nil {
		return nil, err
	}
	domain.SortReviews(reviews)
	if len(reviews) > topReviewCount {
		reviews = reviews[:topReviewCount]
	}
	saved := false
	if viewerID != "" {
		if saved, err = s.saved.Exists(ctx, viewerID, bookID); err != nil {
			return nil, err
		}
	}
	if leaves == nil {
		leaves = []domain.Leaf{}
	}
	if reviews == nil {
		reviews = []domain.Review{}
	}
	return &domain.BookDetail{
		Book:          *b,
		AverageRating: b.AverageRating(),
		IsOwner:       viewerID != "" && b.OwnerID == viewerID,
		IsSaved:       saved,
		Leaves:        leaves,
		TopReviews:    reviews,
	}, nil
}

func (s *service) Create(ctx context.Context, ownerID string, in domain.BookInput, cover *media.Upload) (*domain.Book, error) {
	in, err := s.checkInput(ctx, in)
	if err != nil {
		return nil, err
	}
	now := time.Now().UTC()
	b := &domain.Book{
		BookID:      id.New(),
		OwnerID:     ownerID,
		Title:       in.Title,
		Description: in.Description,
		CategoryID:  in.CategoryID,
		IsPublic:    in.IsPublic,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	if cover != nil {
		stored, err := s.media.StoreImage(ctx, media.PrefixCovers, *cover)
		if err != nil {
			return nil, err
		}
		b.CoverURL, b.CoverKey = stored.URL, stored.Key
	}
	if err := s.books.Create(ctx, b); err != nil {
		s.media.Remove(ctx, b.CoverKey)
		return nil, err
	}
	return b, nil
}

func (s *service) Update(ctx context.Context, ownerID, bookID string, in domain.BookInput) (*domain.Book, error) {
	if _, err := s.owned(ctx, ownerID, bookID); err != nil {
		return nil, err
	}
	in, err := s.checkInput(ctx, in)
	if err != nil {
		return nil, err
	}
	err = s.books.Update(ctx, bookID, map[string]interface{}{
		fieldTitle:       in.Title,
		fieldDescription: in.Description,
		fieldCategoryID:  in.CategoryID,
		fieldIsPublic:    in.IsPublic,
	})
	if err != nil {
		return nil, err
	}
	return s.books.Get(ctx, bookID)
}

func (s *service) SetCover(ctx context.Context, ownerID, bookID string, cover media.Upload) (*domain.Book, error) {
	b, err := s.owned(ctx, ownerID, bookID)
	if err != nil {
		return nil, err
	}
	stored, err := s.media.StoreImage(ctx, media.PrefixCovers, cover)
	if err != nil {
		return nil, err
	}
	err = s.books.Update(ctx, bookID, map[string]interface{}{
		fieldCoverURL: stored.URL,
		fieldCoverKey: stored.Key,
	})
	if err != nil {
		s.media.Remove(ctx, stored.Key)
		return nil, err
	}
	s.media.Remove(ctx, b.CoverKey)
	return s.books.Get(ctx, bookID)
}

// checkInput trims the text fields and requires the category to exist.
func (s *service) checkInput(ctx context.Context, in domain.BookInput) (domain.BookInput, error) {
	in.Title = strings.TrimSpace(in.Title)
	in.Description = strings.TrimSpace(in.Description)
	in.CategoryID = strings.TrimSpace(in.CategoryID)
	if in.Title == "" || in.Description == "" || in.CategoryID == "" {
		return in, fmt.Errorf("title, description and category are required: %w", domain.ErrBadRequest)
	}
	if _, err := s.categories.Get(ctx, in.CategoryID); err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			return in, fmt.Errorf("unknown category: %w", domain.ErrBadRequest)
		}
		return in, err
	}
	return in, nil
}

// visible returns the book when viewerID may read it. Hidden books are reported as missing.
func (s *service) visible(ctx context.Context, viewerID, bookID string) (*domain.Book, error) {
	b, err := s.books.Get(ctx, bookID)
	if err != nil {
		return nil, err
	}
	if !b.VisibleTo(viewerID) {
		return nil, fmt.Errorf("book not found: %w", domain.ErrNotFound)
	}
	return b, nil
}

func (s *service) owned(ctx context.Context, ownerID, bookID string) (*domain.Book, error) {
	b, err := s.books.Get(ctx, bookID)
	if err != nil {
		return nil, err
	}
	if b.OwnerID != ownerID {
		return nil, fmt.Errorf("book not found: %w", domain.ErrNotFound)
	}
	return b, nil
}

// --- leaves ---

func (s *service) AddLeaf(ctx context.Context, ownerID, bookID string, in domain.LeafInput, images []media.Upload) (*domain.Leaf, error) {
	if _, err := s.owned(ctx, ownerID, bookID); err != nil {
		return nil, err
	}
	stored, err := s.storeLeafImages(ctx, images)
	if err != nil {
		return nil, err
	}
	now := time.Now().UTC()
	l := &domain.Leaf{
		LeafID:      id.New(),
		BookID:      bookID,
		OwnerID:     ownerID,
		Text:        in.Text,
		ContentJSON: contentOrDefault(in.ContentJSON),
		Images:      stored,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	if err := s.leaves.Put(ctx, l); err != nil {
		s.removeImages(ctx, stored)
		return nil, err
	}
	s.touch(ctx, bookID)
	return l, nil
}

func (s *service) UpdateLeaf(ctx context.Context, ownerID, leafID string, in domain.LeafInput, images []media.Upload) (*domain.Leaf, error) {
	l, err := s.ownedLeaf(ctx, ownerID, leafID)
	if err != nil {
		return nil, err
	}
	err = s.leaves.Update(ctx, leafID, map[string]interface{}{
		fieldText:        in.Text,
		fieldContentJSON: contentOrDefault(in.ContentJSON),
	})
	if err != nil {
		return nil, err
	}
	if len(images) > 0 {
		if err := s.appendImages(ctx, leafID, images); err != nil {
			return nil, err
		}
	}
	s.touch(ctx, l.BookID)
	return s.leaves.Get(ctx, leafID)
}

func (s *service) AddLeafImages(ctx context.Context, ownerID, leafID string, images []media.Upload) (*domain.Leaf, error) {
	l, err := s.ownedLeaf(ctx, ownerID, leafID)
	if err != nil {
		return nil, err
	}
	if len(images) == 0 {
		return nil, fmt.Errorf("no images: %w", domain.ErrBadRequest)
	}
	if err := s.appendImages(ctx, leafID, images); err != nil {
		return nil, err
	}
	s.touch(ctx, l.BookID)
	return s.leaves.Get(ctx, leafID)
}

// DeleteLeafImage removes one image by id. The list is re-read when another
// writer changed it between the read and the conditional remove.
func (s *service) DeleteLeafImage(ctx context.Context, ownerID, leafID, imageID string) (*domain.Leaf, error) {
	for attempt := 1; ; attempt++ {
		l, err := s.ownedLeaf(ctx, ownerID, leafID)
		if err != nil {
			return nil, err
		}
		index := -1
		for i, img := range l.Images {
			if img.ImageID == imageID {
				index = i
				break
			}
		}
		if index < 0 {
			return nil, fmt.Errorf("image not found: %w", domain.ErrNotFound)
		}
		err = s.leaves.RemoveImage(ctx, leafID, index, imageID)
		if errors.Is(err, domain.ErrConflict) && attempt < imageRemoveAttempts {
			continue
		}
		if err != nil {
			return nil, err
		}
		s.media.Remove(ctx, l.Images[index].Key)
		return s.leaves.Get(ctx, leafID)
	}
}

func (s *service) UploadEditorImage(ctx context.Context, img media.Upload) (*media.Stored, error) {
	return s.media.StoreImage(ctx, media.PrefixLeafEditor, img)
}

func (s *service) ownedLeaf(ctx context.Context, ownerID, leafID string) (*domain.Leaf, error) {
	l, err := s.leaves.Get(ctx, leafID)
	if err != nil {
		return nil, err
	}
	if l.OwnerID != ownerID {
		return nil, fmt.Errorf("leaf not found: %w", domain.ErrNotFound)
	}
	return l, nil
}

func (s *service) appendImages(ctx context.Context, leafID string, images []media.Upload) error {
	stored, err := s.storeLeafImages(ctx, images)
	if err != nil {
		return err
	}
	if err := s.leaves.AppendImages(ctx, leafID, stored); err != nil {
		s.removeImages(ctx, stored)
		return err
	}
	return nil
}

// storeLeafImages uploads every image or none of them.
func (s *service) storeLeafImages(ctx context.Context, images []media.Upload) ([]domain.LeafImage, error) {
	out := make([]domain.LeafImage, 0, len(images))
	for _, up := range images {
		stored, err := s.media.StoreImage(ctx, media.PrefixLeaves, up)
		if err != nil {
			s.removeImages(ctx, out)
			return nil, err
		}
		out = append(out, domain.LeafImage{
			ImageID:   id.New(),
			URL:       stored.URL,
			Key:       stored.Key,
			CreatedAt: time.Now().UTC(),
		})
	}
	return out, nil
}

func (s *service) removeImages(ctx context.Context, images []domain.LeafImage) {
	for _, img := range images {
		s.media.Remove(ctx, img.Key)
	}
}

func (s *service) touch(ctx context.Context, bookID string) {
	if err := s.books.Touch(ctx, bookID); err != nil {
		slog.Warn("book updated_at not bumped", "book_id", bookID, "err", err)
	}
}

// --- saved books ---

func (s *service) ToggleSaved(ctx context.Context, userID, bookID string) (bool, error) {
	if _, err := s.visible(ctx, userID, bookID); err != nil {
		return false, err
	}
	saved, err := s.saved.Exists(ctx, userID, bookID)
	if err != nil {
		return false, err
	}
	if saved {
		return false, s.saved.Delete(ctx, userID, bookID)
	}
	return true, s.saved.Put(ctx, &domain.SavedBook{UserID: userID, BookID: bookID, CreatedAt: time.Now().UTC()})
}

// --- helpers ---

func contentOrDefault(content string) string {
	if strings.TrimSpace(content) == "" {
		return domain.DefaultLeafContent
	}
	return content
}

func filterBooks(books []domain.Book, f ListFilter) []domain.Book {
	q := strings.ToLower(strings.TrimSpace(f.Query))
	category := strings.TrimSpace(f.CategoryID)
	out := make([]domain.Book, 0, len(books))
	for _, b := range books {
		if category != "" && b.CategoryID != category {
			continue
		}
		if q != "" && !strings.Contains(strings.ToLower(b.Title), q) && !strings.Contains(strings.ToLower(b.Description), q) {
			continue
		}
		out = append(out, b)
	}
	return out
}

func sortByUpdated(books []domain.Book) {
	sort.SliceStable(books, func(i, j int) bool { return books[i].UpdatedAt.After(books[j].UpdatedAt) })
}

func summarize(books []domain.Book, viewerID string) []domain.BookSummary {
	out := make([]domain.BookSummary, 0, len(books))
	for _, b := range books {
		out = append(out, domain.BookSummary{
			Book:          b,
			AverageRating: b.AverageRating(),
			IsOwner:       viewerID != "" && b.OwnerID == viewerID,
		})
	}
	return out
}
