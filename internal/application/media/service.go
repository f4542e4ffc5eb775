package media

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"path"
	"strings"

	"github.com/leafbook/internal/domain"
	"github.com/leafbook/internal/pkg/id"
)

// Key prefixes for each kind of upload.
const (
	PrefixCovers     = "books/covers/"
	PrefixLeaves     = "books/leaves/"
	PrefixLeafEditor = "books/leaf_editor/"
)

var imageExtensions = map[string]bool{
	".jpg":  true,
	".jpeg": true,
	".png":  true,
	".gif":  true,
	".webp": true,
}

type Upload struct {
	Reader      io.Reader
	Filename    string
	ContentType string
}

// Stored is the location of an uploaded object.
type Stored struct {
	Key string `json:"-"`
	URL string `json:"url"`
}

type Service interface {
	// StoreImage uploads an image under prefix with a generated name. Only
	// jpg, jpeg, png, gif and webp files are accepted.
	StoreImage(ctx context.Context, prefix string, up Upload) (*Stored, error)
	// Remove deletes an object. Failures are logged, never returned.
	Remove(ctx context.Context, key string)
}

type objectStore interface {
	Upload(ctx context.Context, key string, r io.Reader, contentType string) (string, error)
	Delete(ctx context.Context, key string) error
}

type service struct {
	store objectStore
}

func NewService(store objectStore) Service {
	return &service{store: store}
}

func (s *service) StoreImage(ctx context.Context, prefix string, up Upload) (*Stored, error) {
	ext := strings.ToLower(path.Ext(path.Base(up.Filename)))
	if !imageExtensions[ext] {
		return nil, fmt.Errorf("unsupported image type %q: %w", ext, domain.ErrBadRequest)
	}
	contentType := up.ContentType
	if !strings.HasPrefix(contentType, "image/") {
		// Let the store derive it from the extension.
		contentType = ""
	}
	key := prefix + id.New() + ext
	url, err := s.store.Upload(ctx, key, up.Reader, contentType)
	if err != nil {
		return nil, err
	}
	return &Stored{Key: key, URL: url}, nil
}

func (s *service) Remove(ctx context.Context, key string) {
	if key == "" {
		return
	}
	if err := s.store.Delete(ctx, key); err != nil {
		slog.Warn("media object not removed", "key", key, "err", err)
	}
}
