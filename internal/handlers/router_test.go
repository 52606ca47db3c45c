package handlers

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sort"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/inkwell-blog/apiserver/internal/auth"
	"github.com/inkwell-blog/apiserver/internal/services"
	"github.com/inkwell-blog/apiserver/internal/store"
	"github.com/inkwell-blog/apiserver/types"
	"github.com/rs/zerolog"
)

// The handler tests run real requests through the chi router with
// in-memory repositories behind the real services.

type memUserRepo struct {
	nextID int
	users  map[int]types.User
}

func newMemUserRepo() *memUserRepo {
	return &memUserRepo{nextID: 1, users: map[int]types.User{}}
}

func (r *memUserRepo) GetByID(_ context.Context, id int) (types.User, error) {
	user, ok := r.users[id]
	if !ok {
		return types.User{}, store.ErrNotFound
	}
	return user, nil
}

func (r *memUserRepo) GetByUsername(_ context.Context, username string) (types.User, error) {
	for _, user := range r.users {
		if user.Username == username {
			return user, nil
		}
	}
	return types.User{}, store.ErrNotFound
}

func (r *memUserRepo) Count(context.Context) (int, error) {
	return len(r.users), nil
}

func (r *memUserRepo) Create(_ context.Context, user types.User) (types.User, error) {
	for _, existing := range r.users {
		if existing.Username == user.Username {
			return types.User{}, store.ErrDuplicate
		}
	}
	user.ID = r.nextID
	r.nextID++
	r.users[user.ID] = user
	return user, nil
}

func (r *memUserRepo) UpdateRole(_ context.Context, id int, role types.Role) error {
	user, ok := r.users[id]
	if !ok {
		return store.ErrNotFound
	}
	user.Role = role
	r.users[id] = user
	return nil
}

type memPostRepo struct {
	nextID int
	posts  map[int]types.Post
	users  *memUserRepo
}

func newMemPostRepo(users *memUserRepo) *memPostRepo {
	return &memPostRepo{nextID: 1, posts: map[int]types.Post{}, users: users}
}

func (r *memPostRepo) List(ctx context.Context) ([]types.Post, error) {
	posts := make([]types.Post, 0, len(r.posts))
	for id := range r.posts {
		post, err := r.Get(ctx, id)
		if err != nil {
			return nil, err
		}
		posts = append(posts, post)
	}
	sort.Slice(posts, func(i, j int) bool { return posts[i].ID > posts[j].ID })
	return posts, nil
}

func (r *memPostRepo) Get(ctx context.Context, id int) (types.Post, error) {
	post, ok := r.posts[id]
	if !ok {
		return types.Post{}, store.ErrNotFound
	}
	if author, err := r.users.GetByID(ctx, post.AuthorID); err == nil {
		post.Author = types.AuthorSummary{
			ID:       author.ID,
			Username: author.Username,
			Role:     author.Role,
		}
	}
	return post, nil
}

func (r *memPostRepo) Create(_ context.Context, post types.Post) (types.Post, error) {
	post.ID = r.nextID
	r.nextID++
	post.CreatedAt = time.Now()
	post.UpdatedAt = post.CreatedAt
	r.posts[post.ID] = post
	return post, nil
}

func (r *memPostRepo) Update(_ context.Context, post types.Post) (types.Post, error) {
	if _, ok := r.posts[post.ID]; !ok {
		return types.Post{}, store.ErrNotFound
	}
	r.posts[post.ID] = post
	return post, nil
}

func (r *memPostRepo) Delete(_ context.Context, id int) error {
	if _, ok := r.posts[id]; !ok {
		return store.ErrNotFound
	}
	delete(r.posts, id)
	return nil
}

func newTestRouter(t *testing.T) *chi.Mux {
	t.Helper()
	users := newMemUserRepo()
	posts := newMemPostRepo(users)

	issuer := auth.NewIssuer("test-secret", time.Hour)
	userService := services.NewUserService(users)
	postService := services.NewPostService(posts, nil, zerolog.Nop())

	router := chi.NewRouter()
	router.Route("/auth", func(r chi.Router) {
		AuthRouter(r, userService, issuer)
	})
	router.Route("/posts", func(r chi.Router) {
		PostRouter(r, postService, issuer)
	})
	return router
}

func doJSON(t *testing.T, router http.Handler, method, path string, body any, cookie *http.Cookie) *httptest.ResponseRecorder {
	t.Helper()
	var reader *bytes.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			t.Fatalf("marshal body: %v", err)
		}
		reader = bytes.NewReader(data)
	} else {
		reader = bytes.NewReader(nil)
	}

	req := httptest.NewRequest(method, path, reader)
	req.Header.Set("Content-Type", "application/json")
	if cookie != nil {
		req.AddCookie(cookie)
	}
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)
	return w
}

func register(t *testing.T, router http.Handler, username, password string) types.User {
	t.Helper()
	w := doJSON(t, router, http.MethodPost, "/auth/register", RegisterRequest{Username: username, Password: password}, nil)
	if w.Code != http.StatusCreated {
		t.Fatalf("register %s: code %d, body %s", username, w.Code, w.Body.String())
	}
	var user types.User
	if err := json.Unmarshal(w.Body.Bytes(), &user); err != nil {
		t.Fatalf("decode register response: %v", err)
	}
	return user
}

func login(t *testing.T, router http.Handler, username, password string) *http.Cookie {
	t.Helper()
	w := doJSON(t, router, http.MethodPost, "/auth/login", LoginRequest{Username: username, Password: password}, nil)
	if w.Code != http.StatusOK {
		t.Fatalf("login %s: code %d, body %s", username, w.Code, w.Body.String())
	}
	for _, cookie := range w.Result().Cookies() {
		if cookie.Name == auth.CookieName && cookie.Value != "" {
			return cookie
		}
	}
	t.Fatalf("login %s: no session cookie set", username)
	return nil
}
