package handlers

import (
	"encoding/json"
	"errors"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/inkwell-blog/apiserver/internal/auth"
	"github.com/inkwell-blog/apiserver/internal/services"
	"github.com/inkwell-blog/apiserver/internal/store"
	"github.com/inkwell-blog/apiserver/types"
)

// PostHandler provides HTTP handlers for posts.
type PostHandler struct {
	postService *services.PostService
}

// NewPostHandler constructs a handler with the provided service.
func NewPostHandler(postService *services.PostService) *PostHandler {
	return &PostHandler{postService: postService}
}

// PostRouter registers post routes on the given router. Reads use
// optional auth so visibility can depend on the caller; writes require
// a session.
func PostRouter(r chi.Router, postService *services.PostService, issuer *auth.Issuer) {
	handler := NewPostHandler(postService)
	requireAuth := RequireAuth(issuer)
	optionalAuth := OptionalAuth(issuer)

	r.With(optionalAuth).Get("/", handler.ListPosts)
	r.With(requireAuth).Post("/", handler.CreatePost)
	r.Route("/{postID}", func(r chi.Router) {
		r.With(optionalAuth).Get("/", handler.GetPost)
		r.With(requireAuth).Put("/", handler.UpdatePost)
		r.With(requireAuth).Delete("/", handler.DeletePost)
	})
}

func (h *PostHandler) ListPosts(w http.ResponseWriter, r *http.Request) {
	posts, err := h.postService.List(r.Context(), identityFromContext(r.Context()))
	if err != nil {
		writeError(w, http.StatusInternalServerError, "failed to list posts")
		return
	}
	writeJSON(w, http.StatusOK, PostListResponse{Items: posts, Total: len(posts)})
}

func (h *PostHandler) GetPost(w http.ResponseWriter, r *http.Request) {
	id, err := parsePostID(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	post, err := h.postService.Get(r.Context(), identityFromContext(r.Context()), id)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			writeError(w, http.StatusNotFound, "post not found")
			return
		}
		writeError(w, http.StatusInternalServerError, "failed to fetch post")
		return
	}

	writeJSON(w, http.StatusOK, post)
}

func (h *PostHandler) CreatePost(w http.ResponseWriter, r *http.Request) {
	identity := identityFromContext(r.Context())
	if identity == nil {
		writeError(w, http.StatusUnauthorized, "unauthorized")
		return
	}

	var req PostCreateRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request")
		return
	}

	req.Title = strings.TrimSpace(req.Title)
	req.Content = strings.TrimSpace(req.Content)
	if req.Title == "" || req.Content == "" {
		writeError(w, http.StatusBadRequest, "title and content are required")
		return
	}
	if req.Status != "" && !req.Status.Valid() {
		writeError(w, http.StatusBadRequest, "invalid status")
		return
	}

	created, err := h.postService.Create(r.Context(), *identity, req.Title, req.Content, req.Status)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "failed to create post")
		return
	}

	writeJSON(w, http.StatusCreated, created)
}

func (h *PostHandler) UpdatePost(w http.ResponseWriter, r *http.Request) {
	identity := identityFromContext(r.Context())
	if identity == nil {
		writeError(w, http.StatusUnauthorized, "unauthorized")
		return
	}

	id, err := parsePostID(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	var req PostUpdateRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request")
		return
	}

	patch, err := req.patch()
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	updated, err := h.postService.Update(r.Context(), *identity, id, patch)
	if err != nil {
		switch {
		case errors.Is(err, store.ErrNotFound):
			writeError(w, http.StatusNotFound, "post not found")
		case errors.Is(err, services.ErrForbidden):
			writeError(w, http.StatusForbidden, "not the author")
		default:
			writeError(w, http.StatusInternalServerError, "failed to update post")
		}
		return
	}

	writeJSON(w, http.StatusOK, updated)
}

func (h *PostHandler) DeletePost(w http.ResponseWriter, r *http.Request) {
	identity := identityFromContext(r.Context())
	if identity == nil {
		writeError(w, http.StatusUnauthorized, "unauthorized")
		return
	}

	id, err := parsePostID(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	if err := h.postService.Delete(r.Context(), *identity, id); err != nil {
		switch {
		case errors.Is(err, store.ErrNotFound):
			writeError(w, http.StatusNotFound, "post not found")
		case errors.Is(err, services.ErrForbidden):
			writeError(w, http.StatusForbidden, "not the author")
		default:
			writeError(w, http.StatusInternalServerError, "failed to delete post")
		}
		return
	}

	writeJSON(w, http.StatusOK, map[string]string{"message": "post deleted"})
}

type PostListResponse struct {
	Items []types.Post `json:"items"`
	Total int          `json:"total"`
}

type PostCreateRequest struct {
	Title   string           `json:"title"`
	Content string           `json:"content"`
	Status  types.PostStatus `json:"status"`
}

// PostUpdateRequest carries a partial update; absent fields keep their
// stored values.
type PostUpdateRequest struct {
	Title   *string           `json:"title"`
	Content *string           `json:"content"`
	Status  *types.PostStatus `json:"status"`
}

func (req PostUpdateRequest) patch() (services.PostPatch, error) {
	patch := services.PostPatch{}
	if req.Title != nil {
		title := strings.TrimSpace(*req.Title)
		if title == "" {
			return services.PostPatch{}, errors.New("title must not be empty")
		}
		patch.Title = &title
	}
	if req.Content != nil {
		content := strings.TrimSpace(*req.Content)
		if content == "" {
			return services.PostPatch{}, errors.New("content must not be empty")
		}
		patch.Content = &content
	}
	if req.Status != nil {
		if !req.Status.Valid() {
			return services.PostPatch{}, errors.New("invalid status")
		}
		patch.Status = req.Status
	}
	return patch, nil
}
