package handler

import (
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/leafbook/internal/application/book"
	"github.com/leafbook/internal/application/media"
	"github.com/leafbook/internal/domain"
	"github.com/leafbook/internal/pkg/validate"
	"github.com/leafbook/internal/transport/http/middleware"
)

// BookHandler handles book and leaf endpoints.
type BookHandler struct {
	svc book.Service
}

func NewBookHandler(svc book.Service) *BookHandler { return &BookHandler{svc: svc} }

func listFilter(r *http.Request) book.ListFilter {
	q := r.URL.Query()
	return book.ListFilter{
		Query:      strings.TrimSpace(q.Get("q")),
		CategoryID: strings.TrimSpace(q.Get("category")),
	}
}

func (h *BookHandler) List(w http.ResponseWriter, r *http.Request) {
	books, err := h.svc.ListPublic(r.Context(), middleware.AccountID(r.Context()), listFilter(r))
	if err != nil {
		httpError(w, err)
		return
	}
	if books == nil {
		books = []domain.BookSummary{}
	}
	writeJSON(w, http.StatusOK, books)
}

func (h *BookHandler) Mine(w http.ResponseWriter, r *http.Request) {
	mine, err := h.svc.ListMine(r.Context(), middleware.AccountID(r.Context()), listFilter(r))
	if err != nil {
		httpError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, mine)
}

func (h *BookHandler) Get(w http.ResponseWriter, r *http.Request) {
	order := r.URL.Query().Get("order")
	if order != book.LeafOrderOldest {
		order = book.LeafOrderNewest
	}
	detail, err := h.svc.Get(r.Context(), middleware.AccountID(r.Context()), chi.URLParam(r, "id"), order)
	if err != nil {
		httpError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, detail)
}

// Create accepts a JSON body, or a multipart form with an optional "cover" file.
func (h *BookHandler) Create(w http.ResponseWriter, r *http.Request) {
	in, cover, cleanup, ok := h.readBookInput(w, r)
	if !ok {
		return
	}
	defer cleanup()
	b, err := h.svc.Create(r.Context(), middleware.AccountID(r.Context()), in, cover)
	if err != nil {
		httpError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, b)
}

func (h *BookHandler) Update(w http.ResponseWriter, r *http.Request) {
	in, _, cleanup, ok := h.readBookInput(w, r)
	if !ok {
		return
	}
	defer cleanup()
	b, err := h.svc.Update(r.Context(), middleware.AccountID(r.Context()), chi.URLParam(r, "id"), in)
	if err != nil {
		httpError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, b)
}

func (h *BookHandler) SetCover(w http.ResponseWriter, r *http.Request) {
	if !parseMultipart(w, r) {
		return
	}
	ups, cleanup, err := formUploads(r, "cover")
	if err != nil {
		writeError(w, http.StatusBadRequest, "bad_request", "unreadable cover file")
		return
	}
	defer cleanup()
	if len(ups) == 0 {
		writeError(w, http.StatusBadRequest, "bad_request", "missing cover file")
		return
	}
	b, err := h.svc.SetCover(r.Context(), middleware.AccountID(r.Context()), chi.URLParam(r, "id"), ups[0])
	if err != nil {
		httpError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, b)
}

func (h *BookHandler) ToggleSaved(w http.ResponseWriter, r *http.Request) {
	saved, err := h.svc.ToggleSaved(r.Context(), middleware.AccountID(r.Context()), chi.URLParam(r, "id"))
	if err != nil {
		httpError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]bool{"saved": saved})
}

func (h *BookHandler) readBookInput(w http.ResponseWriter, r *http.Request) (domain.BookInput, *media.Upload, func(), bool) {
	var in domain.BookInput
	var cover *media.Upload
	cleanup := func() {}
	if isMultipart(r) {
		if !parseMultipart(w, r) {
			return in, nil, cleanup, false
		}
		in = domain.BookInput{
			Title:       r.FormValue("title"),
			Description: r.FormValue("description"),
			CategoryID:  r.FormValue("category_id"),
			IsPublic:    formBool(r, "is_public"),
		}
		ups, closeFiles, err := formUploads(r, "cover")
		if err != nil {
			writeError(w, http.StatusBadRequest, "bad_request", "unreadable cover file")
			return in, nil, cleanup, false
		}
		cleanup = closeFiles
		if len(ups) > 0 {
			cover = &ups[0]
		}
	} else if !decodeJSON(w, r, &in) {
		return in, nil, cleanup, false
	}
	if err := validate.Struct(in); err != nil {
		cleanup()
		httpError(w, err)
		return in, nil, func() {}, false
	}
	return in, cover, cleanup, true
}
