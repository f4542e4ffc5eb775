package handler

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"net/textproto"
	"strings"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/leafbook/internal/application/book"
	"github.com/leafbook/internal/application/media"
	"github.com/leafbook/internal/domain"
	jwtinfra "github.com/leafbook/internal/infrastructure/jwt"
	"github.com/leafbook/internal/transport/http/middleware"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

type mockBookSvc struct{ mock.Mock }

func (m *mockBookSvc) ListPublic(ctx context.Context, viewerID string, f book.ListFilter) ([]domain.BookSummary, error) {
	args := m.Called(ctx, viewerID, f)
	bs, _ := args.Get(0).([]domain.BookSummary)
	return bs, args.Error(1)
}

func (m *mockBookSvc) ListMine(ctx context.Context, ownerID string, f book.ListFilter) (*book.MyBooks, error) {
	args := m.Called(ctx, ownerID, f)
	mb, _ := args.Get(0).(*book.MyBooks)
	return mb, args.Error(1)
}

func (m *mockBookSvc) Get(ctx context.Context, viewerID, bookID, leafOrder string) (*domain.BookDetail, error) {
	args := m.Called(ctx, viewerID, bookID, leafOrder)
	d, _ := args.Get(0).(*domain.BookDetail)
	return d, args.Error(1)
}

func (m *mockBookSvc) Create(ctx context.Context, ownerID string, in domain.BookInput, cover *media.Upload) (*domain.Book, error) {
	var filename string
	if cover != nil {
		filename = cover.Filename
	}
	args := m.Called(ctx, ownerID, in, filename)
	b, _ := args.Get(0).(*domain.Book)
	return b, args.Error(1)
}

func (m *mockBookSvc) Update(ctx context.Context, ownerID, bookID string, in domain.BookInput) (*domain.Book, error) {
	args := m.Called(ctx, ownerID, bookID, in)
	b, _ := args.Get(0).(*domain.Book)
	return b, args.Error(1)
}

func (m *mockBookSvc) SetCover(ctx context.Context, ownerID, bookID string, cover media.Upload) (*domain.Book, error) {
	args := m.Called(ctx, ownerID, bookID, cover.Filename)
	b, _ := args.Get(0).(*domain.Book)
	return b, args.Error(1)
}

func (m *mockBookSvc) AddLeaf(ctx context.Context, ownerID, bookID string, in domain.LeafInput, images []media.Upload) (*domain.Leaf, error) {
	args := m.Called(ctx, ownerID, bookID, in, len(images))
	l, _ := args.Get(0).(*domain.Leaf)
	return l, args.Error(1)
}

func (m *mockBookSvc) UpdateLeaf(ctx context.Context, ownerID, leafID string, in domain.LeafInput, images []media.Upload) (*domain.Leaf, error) {
	args := m.Called(ctx, ownerID, leafID, in, len(images))
	l, _ := args.Get(0).(*domain.Leaf)
	return l, args.Error(1)
}

func (m *mockBookSvc) AddLeafImages(ctx context.Context, ownerID, leafID string, images []media.Upload) (*domain.Leaf, error) {
	args := m.Called(ctx, ownerID, leafID, len(images))
	l, _ := args.Get(0).(*domain.Leaf)
	return l, args.Error(1)
}

func (m *mockBookSvc) DeleteLeafImage(ctx context.Context, ownerID, leafID, imageID string) (*domain.Leaf, error) {
	args := m.Called(ctx, ownerID, leafID, imageID)
	l, _ := args.Get(0).(*domain.Leaf)
	return l, args.Error(1)
}

func (m *mockBookSvc) UploadEditorImage(ctx context.Context, img media.Upload) (*media.Stored, error) {
	args := m.Called(ctx, img.Filename)
	s, _ := args.Get(0).(*media.Stored)
	return s, args.Error(1)
}

func (m *mockBookSvc) ToggleSaved(ctx context.Context, userID, bookID string) (bool, error) {
	args := m.Called(ctx, userID, bookID)
	return args.Bool(0), args.Error(1)
}

// serveRoute mounts fn on a chi router at pattern and serves r as accountID
// (anonymous when empty).
func serveRoute(method, pattern string, fn http.HandlerFunc, r *http.Request, accountID string) *httptest.ResponseRecorder {
	router := chi.NewRouter()
	router.Method(method, pattern, fn)
	if accountID != "" {
		claims := &jwtinfra.Claims{AccountID: accountID, Role: domain.RoleUser, SessionID: "s1"}
		r = r.WithContext(context.WithValue(r.Context(), middleware.ClaimsKey, claims))
	}
	rr := httptest.NewRecorder()
	router.ServeHTTP(rr, r)
	return rr
}

func multipartBody(t *testing.T, fields map[string]string, fileField string, files ...string) (io.Reader, string) {
	t.Helper()
	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	for k, v := range fields {
		require.NoError(t, mw.WriteField(k, v))
	}
	for _, name := range files {
		hdr := textproto.MIMEHeader{}
		hdr.Set("Content-Disposition", `form-data; name="`+fileField+`"; filename="`+name+`"`)
		hdr.Set("Content-Type", "image/png")
		part, err := mw.CreatePart(hdr)
		require.NoError(t, err)
		_, err = part.Write([]byte("\x89PNG"))
		require.NoError(t, err)
	}
	require.NoError(t, mw.Close())
	return &buf, mw.FormDataContentType()
}

func TestBookList_AnonymousWithFilter(t *testing.T) {
	svc := &mockBookSvc{}
	svc.On("ListPublic", mock.Anything, "", book.ListFilter{Query: "sea", CategoryID: "c1"}).
		Return([]domain.BookSummary(nil), nil)
	h := NewBookHandler(svc)

	r := httptest.NewRequest(http.MethodGet, "/books?q=+sea+&category=c1", nil)
	rr := serveRoute(http.MethodGet, "/books", h.List, r, "")

	assert.Equal(t, http.StatusOK, rr.Code)
	assert.JSONEq(t, `[]`, rr.Body.String())
	svc.AssertExpectations(t)
}

func TestBookGet_LeafOrder(t *testing.T) {
	cases := map[string]string{
		"/books/b1":              book.LeafOrderNewest,
		"/books/b1?order=oldest": book.LeafOrderOldest,
		"/books/b1?order=bogus":  book.LeafOrderNewest,
	}
	for target, want := range cases {
		svc := &mockBookSvc{}
		svc.On("Get", mock.Anything, "u1", "b1", want).
			Return(&domain.BookDetail{Book: domain.Book{BookID: "b1"}}, nil)
		h := NewBookHandler(svc)

		rr := serveRoute(http.MethodGet, "/books/{id}", h.Get, httptest.NewRequest(http.MethodGet, target, nil), "u1")
		assert.Equal(t, http.StatusOK, rr.Code, target)
		svc.AssertExpectations(t)
	}
}

func TestBookGet_HiddenIsNotFound(t *testing.T) {
	svc := &mockBookSvc{}
	svc.On("Get", mock.Anything, "", "b1", book.LeafOrderNewest).Return(nil, domain.ErrNotFound)
	h := NewBookHandler(svc)

	rr := serveRoute(http.MethodGet, "/books/{id}", h.Get, httptest.NewRequest(http.MethodGet, "/books/b1", nil), "")
	assert.Equal(t, http.StatusNotFound, rr.Code)
}

func TestBookCreate_JSONValidation(t *testing.T) {
	svc := &mockBookSvc{}
	h := NewBookHandler(svc)

	r := httptest.NewRequest(http.MethodPost, "/books", strings.NewReader(`{"title":"Tides"}`))
	r.Header.Set("Content-Type", "application/json")
	rr := serveRoute(http.MethodPost, "/books", h.Create, r, "u1")

	assert.Equal(t, http.StatusBadRequest, rr.Code)
	var env MessageEnvelope
	require.NoError(t, json.NewDecoder(rr.Body).Decode(&env))
	assert.Contains(t, env.Error, "description")
	svc.AssertNotCalled(t, "Create", mock.Anything, mock.Anything, mock.Anything, mock.Anything)
}

func TestBookCreate_MultipartWithCover(t *testing.T) {
	svc := &mockBookSvc{}
	in := domain.BookInput{Title: "Tides", Description: "Notes from the shore", CategoryID: "c1", IsPublic: true}
	svc.On("Create", mock.Anything, "u1", in, "cover.png").Return(&domain.Book{BookID: "b1", Title: "Tides"}, nil)
	h := NewBookHandler(svc)

	body, ct := multipartBody(t, map[string]string{
		"title":       "Tides",
		"description": "Notes from the shore",
		"category_id": "c1",
		"is_public":   "on",
	}, "cover", "cover.png")
	r := httptest.NewRequest(http.MethodPost, "/books", body)
	r.Header.Set("Content-Type", ct)
	rr := serveRoute(http.MethodPost, "/books", h.Create, r, "u1")

	assert.Equal(t, http.StatusCreated, rr.Code)
	svc.AssertExpectations(t)
}

func TestBookToggleSaved(t *testing.T) {
	svc := &mockBookSvc{}
	svc.On("ToggleSaved", mock.Anything, "u1", "b1").Return(true, nil)
	h := NewBookHandler(svc)

	r := httptest.NewRequest(http.MethodPost, "/books/b1/save", nil)
	rr := serveRoute(http.MethodPost, "/books/{id}/save", h.ToggleSaved, r, "u1")

	assert.Equal(t, http.StatusOK, rr.Code)
	assert.JSONEq(t, `{"saved":true}`, rr.Body.String())
}

func TestLeafCreate_MultipartImages(t *testing.T) {
	svc := &mockBookSvc{}
	svc.On("AddLeaf", mock.Anything, "u1", "b1", domain.LeafInput{Text: "low tide"}, 2).
		Return(&domain.Leaf{LeafID: "l1", BookID: "b1"}, nil)
	h := NewBookHandler(svc)

	body, ct := multipartBody(t, map[string]string{"text": "low tide"}, "images", "a.png", "b.png")
	r := httptest.NewRequest(http.MethodPost, "/books/b1/leaves", body)
	r.Header.Set("Content-Type", ct)
	rr := serveRoute(http.MethodPost, "/books/{id}/leaves", h.CreateLeaf, r, "u1")

	assert.Equal(t, http.StatusCreated, rr.Code)
	svc.AssertExpectations(t)
}

func TestLeafCreate_InvalidContentJSON(t *testing.T) {
	svc := &mockBookSvc{}
	h := NewBookHandler(svc)

	r := httptest.NewRequest(http.MethodPost, "/books/b1/leaves", strings.NewReader(`{"content_json":"{not json"}`))
	r.Header.Set("Content-Type", "application/json")
	rr := serveRoute(http.MethodPost, "/books/{id}/leaves", h.CreateLeaf, r, "u1")

	assert.Equal(t, http.StatusBadRequest, rr.Code)
}

func TestLeafDeleteImage_Params(t *testing.T) {
	svc := &mockBookSvc{}
	svc.On("DeleteLeafImage", mock.Anything, "u1", "l1", "img1").Return(&domain.Leaf{LeafID: "l1"}, nil)
	h := NewBookHandler(svc)

	r := httptest.NewRequest(http.MethodDelete, "/leaves/l1/images/img1", nil)
	rr := serveRoute(http.MethodDelete, "/leaves/{id}/images/{imageID}", h.DeleteLeafImage, r, "u1")

	assert.Equal(t, http.StatusOK, rr.Code)
	svc.AssertExpectations(t)
}

func TestEditorUpload_MissingFile(t *testing.T) {
	h := NewBookHandler(&mockBookSvc{})

	body, ct := multipartBody(t, map[string]string{"note": "x"}, "image")
	r := httptest.NewRequest(http.MethodPost, "/leaf-editor/upload", body)
	r.Header.Set("Content-Type", ct)
	rr := serveRoute(http.MethodPost, "/leaf-editor/upload", h.EditorUpload, r, "u1")

	assert.Equal(t, http.StatusBadRequest, rr.Code)
}

func TestEditorUpload_ReturnsURL(t *testing.T) {
	svc := &mockBookSvc{}
	svc.On("UploadEditorImage", mock.Anything, "inline.png").
		Return(&media.Stored{Key: "books/leaf_editor/x.png", URL: "https://cdn.example.com/books/leaf_editor/x.png"}, nil)
	h := NewBookHandler(svc)

	body, ct := multipartBody(t, nil, "image", "inline.png")
	r := httptest.NewRequest(http.MethodPost, "/leaf-editor/upload", body)
	r.Header.Set("Content-Type", ct)
	rr := serveRoute(http.MethodPost, "/leaf-editor/upload", h.EditorUpload, r, "u1")

	assert.Equal(t, http.StatusCreated, rr.Code)
	assert.JSONEq(t, `{"url":"https://cdn.example.com/books/leaf_editor/x.png"}`, rr.Body.String())
}
