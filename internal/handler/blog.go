package handler

import (
	"fmt"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/blogapi/blog-api/internal/middleware"
	"github.com/blogapi/blog-api/internal/model"
	"github.com/blogapi/blog-api/internal/service"
)

// BlogHandler handles HTTP requests for blog operations.
type BlogHandler struct {
	service *service.BlogService
}

// NewBlogHandler creates a new BlogHandler.
func NewBlogHandler(svc *service.BlogService) *BlogHandler {
	return &BlogHandler{service: svc}
}

// HandleCreate handles POST /blog requests.
func (h *BlogHandler) HandleCreate(w http.ResponseWriter, r *http.Request) {
	user, ok := middleware.UserFromContext(r.Context())
	if !ok {
		writeServiceError(w, r, service.ErrUnauthenticated)
		return
	}

	var req model.BlogRequest
	if !decodeJSON(w, r, &req) {
		return
	}

	resp, err := h.service.Create(r.Context(), user, req)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}

	writeJSON(w, http.StatusCreated, resp)
}

// HandleList handles GET /blog?limit=&sort= requests.
func (h *BlogHandler) HandleList(w http.ResponseWriter, r *http.Request) {
	limit := service.DefaultListLimit
	if raw := r.URL.Query().Get("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil {
			writeServiceError(w, r, fmt.Errorf("%w: limit must be an integer", service.ErrInvalidInput))
			return
		}
		limit = n
	}

	resp, err := h.service.List(r.Context(), limit, r.URL.Query().Get("sort"))
	if err != nil {
		writeServiceError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, resp)
}

// HandleShow handles GET /blog/{id} requests.
func (h *BlogHandler) HandleShow(w http.ResponseWriter, r *http.Request) {
	id, ok := blogID(w, r)
	if !ok {
		return
	}

	resp, err := h.service.Get(r.Context(), id)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, resp)
}

// HandleUpdate handles PUT /blog/{id} requests.
func (h *BlogHandler) HandleUpdate(w http.ResponseWriter, r *http.Request) {
	user, ok := middleware.UserFromContext(r.Context())
	if !ok {
		writeServiceError(w, r, service.ErrUnauthenticated)
		return
	}

	id, ok := blogID(w, r)
	if !ok {
		return
	}

	var req model.BlogRequest
	if !decodeJSON(w, r, &req) {
		return
	}

	resp, err := h.service.Update(r.Context(), user, id, req)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}

	writeJSON(w, http.StatusAccepted, model.BlogUpdateResponse{
		Message: "Blog updated successfully",
		Data:    resp,
	})
}

// HandleDelete handles DELETE /blog/{id} requests.
func (h *BlogHandler) HandleDelete(w http.ResponseWriter, r *http.Request) {
	user, ok := middleware.UserFromContext(r.Context())
	if !ok {
		writeServiceError(w, r, service.ErrUnauthenticated)
		return
	}

	id, ok := blogID(w, r)
	if !ok {
		return
	}

	if err := h.service.Delete(r.Context(), user, id); err != nil {
		writeServiceError(w, r, err)
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

func blogID(w http.ResponseWriter, r *http.Request) (int64, bool) {
	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil || id < 1 {
		writeJSON(w, http.StatusBadRequest, errorResponse("invalid blog id"))
		return 0, false
	}
	return id, true
}
