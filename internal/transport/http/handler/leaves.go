package handler

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/leafbook/internal/application/media"
	"github.com/leafbook/internal/domain"
	"github.com/leafbook/internal/pkg/validate"
	"github.com/leafbook/internal/transport/http/middleware"
)

func (h *BookHandler) CreateLeaf(w http.ResponseWriter, r *http.Request) {
	in, images, cleanup, ok := readLeafInput(w, r)
	if !ok {
		return
	}
	defer cleanup()
	leaf, err := h.svc.AddLeaf(r.Context(), middleware.AccountID(r.Context()), chi.URLParam(r, "id"), in, images)
	if err != nil {
		httpError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, leaf)
}

func (h *BookHandler) UpdateLeaf(w http.ResponseWriter, r *http.Request) {
	in, images, cleanup, ok := readLeafInput(w, r)
	if !ok {
		return
	}
	defer cleanup()
	leaf, err := h.svc.UpdateLeaf(r.Context(), middleware.AccountID(r.Context()), chi.URLParam(r, "id"), in, images)
	if err != nil {
		httpError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, leaf)
}

func (h *BookHandler) AddLeafImages(w http.ResponseWriter, r *http.Request) {
	if !parseMultipart(w, r) {
		return
	}
	images, cleanup, err := formUploads(r, "images")
	if err != nil {
		writeError(w, http.StatusBadRequest, "bad_request", "unreadable image file")
		return
	}
	defer cleanup()
	if len(images) == 0 {
		writeError(w, http.StatusBadRequest, "bad_request", "no images uploaded")
		return
	}
	leaf, err := h.svc.AddLeafImages(r.Context(), middleware.AccountID(r.Context()), chi.URLParam(r, "id"), images)
	if err != nil {
		httpError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, leaf)
}

func (h *BookHandler) DeleteLeafImage(w http.ResponseWriter, r *http.Request) {
	leaf, err := h.svc.DeleteLeafImage(r.Context(), middleware.AccountID(r.Context()), chi.URLParam(r, "id"), chi.URLParam(r, "imageID"))
	if err != nil {
		httpError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, leaf)
}

// EditorUpload stores an image embedded from the rich-text editor and returns its URL.
func (h *BookHandler) EditorUpload(w http.ResponseWriter, r *http.Request) {
	if !parseMultipart(w, r) {
		return
	}
	images, cleanup, err := formUploads(r, "image")
	if err != nil {
		writeError(w, http.StatusBadRequest, "bad_request", "unreadable image file")
		return
	}
	defer cleanup()
	if len(images) == 0 {
		writeError(w, http.StatusBadRequest, "bad_request", "no image uploaded")
		return
	}
	stored, err := h.svc.UploadEditorImage(r.Context(), images[0])
	if err != nil {
		httpError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, stored)
}

func readLeafInput(w http.ResponseWriter, r *http.Request) (domain.LeafInput, []media.Upload, func(), bool) {
	var in domain.LeafInput
	var images []media.Upload
	cleanup := func() {}
	if isMultipart(r) {
		if !parseMultipart(w, r) {
			return in, nil, cleanup, false
		}
		in = domain.LeafInput{Text: r.FormValue("text"), ContentJSON: r.FormValue("content_json")}
		ups, closeFiles, err := formUploads(r, "images")
		if err != nil {
			writeError(w, http.StatusBadRequest, "bad_request", "unreadable image file")
			return in, nil, cleanup, false
		}
		images, cleanup = ups, closeFiles
	} else if !decodeJSON(w, r, &in) {
		return in, nil, cleanup, false
	}
	if err := validate.Struct(in); err != nil {
		cleanup()
		httpError(w, err)
		return in, nil, func() {}, false
	}
	return in, images, cleanup, true
}
