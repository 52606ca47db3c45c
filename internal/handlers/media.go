package handlers

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"path"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/inkwell-blog/apiserver/internal/auth"
	"github.com/inkwell-blog/apiserver/internal/services"
	"github.com/inkwell-blog/apiserver/internal/storage"
	"github.com/inkwell-blog/apiserver/internal/store"
)

const (
	maxAttachmentMemory = 32 << 20
	maxAttachmentBytes  = 64 << 20
	formFieldFile       = "file"
)

// MediaHandler serves post attachments backed by object storage.
type MediaHandler struct {
	postService *services.PostService
	store       *storage.Store
}

// NewMediaHandler constructs a handler with the provided dependencies.
func NewMediaHandler(postService *services.PostService, store *storage.Store) *MediaHandler {
	return &MediaHandler{
		postService: postService,
		store:       store,
	}
}

// MediaRouter registers attachment routes under /posts/{postID}.
// Upload requires the post's owner or an admin; download obeys the
// same visibility rule as the post itself.
func MediaRouter(r chi.Router, postService *services.PostService, store *storage.Store, issuer *auth.Issuer) {
	handler := NewMediaHandler(postService, store)

	r.With(RequireAuth(issuer)).Post("/{postID}/attachments", handler.Upload)
	r.With(OptionalAuth(issuer)).Get("/{postID}/attachments/{key}", handler.Download)
}

func (h *MediaHandler) Upload(w http.ResponseWriter, r *http.Request) {
	identity := identityFromContext(r.Context())
	if identity == nil {
		writeError(w, http.StatusUnauthorized, "unauthorized")
		return
	}

	postID, err := parsePostID(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	// The owner always sees their own post, so a NotFound here means
	// the post really does not exist or belongs to someone else's
	// draft; either way nothing to attach to.
	post, err := h.postService.Get(r.Context(), identity, postID)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			writeError(w, http.StatusNotFound, "post not found")
			return
		}
		writeError(w, http.StatusInternalServerError, "failed to fetch post")
		return
	}
	if !services.CanModify(post, *identity) {
		writeError(w, http.StatusForbidden, "not the author")
		return
	}

	if err := r.ParseMultipartForm(maxAttachmentMemory); err != nil {
		writeError(w, http.StatusBadRequest, "invalid multipart form")
		return
	}

	filename, data, contentType, err := parseAttachmentFile(r.MultipartForm)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	key := fmt.Sprintf("%s-%s", uuid.NewString(), sanitizeFilename(filename))
	objectKey := fmt.Sprintf("posts/%d/%s", postID, key)
	if err := h.store.Put(r.Context(), objectKey, bytes.NewReader(data), int64(len(data)), contentType); err != nil {
		writeError(w, http.StatusInternalServerError, "failed to store attachment")
		return
	}

	writeJSON(w, http.StatusCreated, AttachmentResponse{
		PostID: postID,
		Key:    key,
		Size:   int64(len(data)),
	})
}

func (h *MediaHandler) Download(w http.ResponseWriter, r *http.Request) {
	postID, err := parsePostID(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	key := chi.URLParam(r, "key")
	if key == "" || key != path.Base(key) {
		writeError(w, http.StatusBadRequest, "invalid attachment key")
		return
	}

	// Visibility of the attachment follows the post: an invisible
	// draft yields 404 for the attachment too.
	if _, err := h.postService.Get(r.Context(), identityFromContext(r.Context()), postID); err != nil {
		if errors.Is(err, store.ErrNotFound) {
			writeError(w, http.StatusNotFound, "post not found")
			return
		}
		writeError(w, http.StatusInternalServerError, "failed to fetch post")
		return
	}

	objectKey := fmt.Sprintf("posts/%d/%s", postID, key)
	reader, err := h.store.Get(r.Context(), objectKey)
	if err != nil {
		writeError(w, http.StatusNotFound, "attachment not found")
		return
	}
	defer reader.Close()

	w.Header().Set("Content-Type", "application/octet-stream")
	w.WriteHeader(http.StatusOK)
	if _, err := io.Copy(w, reader); err != nil {
		return
	}
}

type AttachmentResponse struct {
	PostID int    `json:"post_id"`
	Key    string `json:"key"`
	Size   int64  `json:"size"`
}

func parseAttachmentFile(form *multipart.Form) (string, []byte, string, error) {
	if form == nil {
		return "", nil, "", errors.New("missing form data")
	}

	files := form.File[formFieldFile]
	if len(files) == 0 {
		return "", nil, "", errors.New("file is required")
	}
	if len(files) > 1 {
		return "", nil, "", errors.New("only one file is allowed")
	}

	fileHeader := files[0]
	file, err := fileHeader.Open()
	if err != nil {
		return "", nil, "", fmt.Errorf("failed to read file: %w", err)
	}

	data, err := readFileLimited(file, maxAttachmentBytes)
	_ = file.Close()
	if err != nil {
		return "", nil, "", err
	}

	contentType := fileHeader.Header.Get("Content-Type")
	return fileHeader.Filename, data, contentType, nil
}

func readFileLimited(reader io.Reader, limit int64) ([]byte, error) {
	limited := io.LimitReader(reader, limit+1)
	data, err := io.ReadAll(limited)
	if err != nil {
		return nil, errors.New("failed to read upload")
	}
	if int64(len(data)) > limit {
		return nil, errors.New("uploaded file too large")
	}
	return data, nil
}

func sanitizeFilename(name string) string {
	name = path.Base(strings.ReplaceAll(name, "\\", "/"))
	name = strings.Map(func(r rune) rune {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9':
			return r
		case r == '.', r == '-', r == '_':
			return r
		default:
			return '-'
		}
	}, name)
	if name == "" || name == "." {
		name = "attachment"
	}
	return name
}
