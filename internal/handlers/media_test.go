package handlers

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/inkwell-blog/apiserver/internal/auth"
	"github.com/inkwell-blog/apiserver/internal/services"
	"github.com/inkwell-blog/apiserver/internal/storage"
	"github.com/inkwell-blog/apiserver/types"
	"github.com/rs/zerolog"
)

// memObjectStorage keeps uploaded objects in a map.
type memObjectStorage struct {
	objects map[string][]byte
}

func newMemObjectStorage() *memObjectStorage {
	return &memObjectStorage{objects: map[string][]byte{}}
}

func (m *memObjectStorage) EnsureBucket(context.Context) error { return nil }

func (m *memObjectStorage) Put(_ context.Context, key string, r io.Reader, _ int64, _ string) error {
	data, err := io.ReadAll(r)
	if err != nil {
		return err
	}
	m.objects[key] = data
	return nil
}

func (m *memObjectStorage) Get(_ context.Context, key string) (io.ReadCloser, error) {
	data, ok := m.objects[key]
	if !ok {
		return nil, fmt.Errorf("object %s not found", key)
	}
	return io.NopCloser(bytes.NewReader(data)), nil
}

func (m *memObjectStorage) Delete(_ context.Context, key string) error {
	delete(m.objects, key)
	return nil
}

func (m *memObjectStorage) Bucket() string { return "test-bucket" }

func newMediaTestRouter(t *testing.T) (*chi.Mux, *memObjectStorage) {
	t.Helper()
	users := newMemUserRepo()
	posts := newMemPostRepo(users)
	objects := newMemObjectStorage()

	issuer := auth.NewIssuer("test-secret", time.Hour)
	userService := services.NewUserService(users)
	postService := services.NewPostService(posts, nil, zerolog.Nop())

	router := chi.NewRouter()
	router.Route("/auth", func(r chi.Router) {
		AuthRouter(r, userService, issuer)
	})
	router.Route("/posts", func(r chi.Router) {
		PostRouter(r, postService, issuer)
		MediaRouter(r, postService, storage.NewStore(objects), issuer)
	})
	return router, objects
}

func uploadAttachment(t *testing.T, router http.Handler, postID int, filename string, data []byte, cookie *http.Cookie) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	writer := multipart.NewWriter(&buf)
	part, err := writer.CreateFormFile(formFieldFile, filename)
	if err != nil {
		t.Fatalf("create form file: %v", err)
	}
	if _, err := part.Write(data); err != nil {
		t.Fatalf("write form file: %v", err)
	}
	if err := writer.Close(); err != nil {
		t.Fatalf("close multipart writer: %v", err)
	}

	req := httptest.NewRequest(http.MethodPost, fmt.Sprintf("/posts/%d/attachments", postID), &buf)
	req.Header.Set("Content-Type", writer.FormDataContentType())
	if cookie != nil {
		req.AddCookie(cookie)
	}
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)
	return w
}

func TestAttachmentUploadAndDownload(t *testing.T) {
	router, objects := newMediaTestRouter(t)
	register(t, router, "bob", "pw2")
	cookie := login(t, router, "bob", "pw2")

	post := createPost(t, router, cookie, "T", types.StatusPublished)

	w := uploadAttachment(t, router, post.ID, "photo.png", []byte("png-bytes"), cookie)
	if w.Code != http.StatusCreated {
		t.Fatalf("upload: expected 201, got %d: %s", w.Code, w.Body.String())
	}
	var resp AttachmentResponse
	if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if resp.PostID != post.ID || resp.Key == "" {
		t.Fatalf("unexpected attachment response: %+v", resp)
	}
	if !strings.HasSuffix(resp.Key, "-photo.png") {
		t.Errorf("expected key to keep the filename, got %q", resp.Key)
	}
	if len(objects.objects) != 1 {
		t.Fatalf("expected 1 stored object, got %d", len(objects.objects))
	}

	// Published post: anonymous download succeeds.
	path := fmt.Sprintf("/posts/%d/attachments/%s", post.ID, resp.Key)
	dl := doJSON(t, router, http.MethodGet, path, nil, nil)
	if dl.Code != http.StatusOK {
		t.Fatalf("download: expected 200, got %d", dl.Code)
	}
	if dl.Body.String() != "png-bytes" {
		t.Errorf("unexpected download body: %q", dl.Body.String())
	}
}

func TestAttachmentUploadRequiresOwnership(t *testing.T) {
	router, _ := newMediaTestRouter(t)
	register(t, router, "alice", "pw1")
	register(t, router, "bob", "pw2")
	register(t, router, "carol", "pw3")

	adminCookie := login(t, router, "alice", "pw1")
	bobCookie := login(t, router, "bob", "pw2")
	carolCookie := login(t, router, "carol", "pw3")

	post := createPost(t, router, bobCookie, "T", types.StatusPublished)

	if w := uploadAttachment(t, router, post.ID, "a.png", []byte("x"), nil); w.Code != http.StatusUnauthorized {
		t.Errorf("anonymous: expected 401, got %d", w.Code)
	}
	if w := uploadAttachment(t, router, post.ID, "a.png", []byte("x"), carolCookie); w.Code != http.StatusForbidden {
		t.Errorf("carol: expected 403, got %d", w.Code)
	}
	if w := uploadAttachment(t, router, post.ID, "a.png", []byte("x"), adminCookie); w.Code != http.StatusCreated {
		t.Errorf("admin: expected 201, got %d", w.Code)
	}
}

func TestAttachmentFollowsPostVisibility(t *testing.T) {
	router, _ := newMediaTestRouter(t)
	register(t, router, "alice", "pw1")
	register(t, router, "bob", "pw2")
	register(t, router, "carol", "pw3")

	bobCookie := login(t, router, "bob", "pw2")
	carolCookie := login(t, router, "carol", "pw3")

	draft := createPost(t, router, bobCookie, "Draft", types.StatusDraft)
	w := uploadAttachment(t, router, draft.ID, "secret.png", []byte("hidden"), bobCookie)
	if w.Code != http.StatusCreated {
		t.Fatalf("upload: expected 201, got %d", w.Code)
	}
	var resp AttachmentResponse
	if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode response: %v", err)
	}

	path := fmt.Sprintf("/posts/%d/attachments/%s", draft.ID, resp.Key)
	if dl := doJSON(t, router, http.MethodGet, path, nil, nil); dl.Code != http.StatusNotFound {
		t.Errorf("anonymous: expected 404, got %d", dl.Code)
	}
	if dl := doJSON(t, router, http.MethodGet, path, nil, carolCookie); dl.Code != http.StatusNotFound {
		t.Errorf("carol: expected 404, got %d", dl.Code)
	}
	if dl := doJSON(t, router, http.MethodGet, path, nil, bobCookie); dl.Code != http.StatusOK {
		t.Errorf("owner: expected 200, got %d", dl.Code)
	}
}
