package handler

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/leafbook/internal/application/review"
	"github.com/leafbook/internal/domain"
	"github.com/leafbook/internal/transport/http/middleware"
)

// ReviewHandler handles book review endpoints.
type ReviewHandler struct {
	svc review.Service
}

func NewReviewHandler(svc review.Service) *ReviewHandler { return &ReviewHandler{svc: svc} }

func (h *ReviewHandler) List(w http.ResponseWriter, r *http.Request) {
	reviews, err := h.svc.List(r.Context(), middleware.AccountID(r.Context()), chi.URLParam(r, "id"))
	if err != nil {
		httpError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, reviews)
}

// Create leaves rating and comment checks to the service so the message stays uniform.
func (h *ReviewHandler) Create(w http.ResponseWriter, r *http.Request) {
	var in domain.ReviewInput
	if !decodeJSON(w, r, &in) {
		return
	}
	rv, err := h.svc.Create(r.Context(), middleware.AccountID(r.Context()), chi.URLParam(r, "id"), in)
	if err != nil {
		httpError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, rv)
}
