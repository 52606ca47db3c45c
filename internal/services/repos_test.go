package services

import (
	"context"
	"sort"
	"time"

	"github.com/inkwell-blog/apiserver/internal/store"
	"github.com/inkwell-blog/apiserver/types"
)

// In-memory repositories standing in for the postgres-backed ones.
// They mirror the store contracts: ErrNotFound for missing records,
// ErrDuplicate for username collisions.

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
	now := time.Now()
	user.CreatedAt = now
	user.UpdatedAt = now
	r.users[user.ID] = user
	return user, nil
}

func (r *memUserRepo) UpdateRole(_ context.Context, id int, role types.Role) error {
	user, ok := r.users[id]
	if !ok {
		return store.ErrNotFound
	}
	user.Role = role
	user.UpdatedAt = time.Now()
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
	author, err := r.users.GetByID(ctx, post.AuthorID)
	if err == nil {
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
	now := time.Now()
	post.CreatedAt = now
	post.UpdatedAt = now
	r.posts[post.ID] = post
	return post, nil
}

func (r *memPostRepo) Update(_ context.Context, post types.Post) (types.Post, error) {
	if _, ok := r.posts[post.ID]; !ok {
		return types.Post{}, store.ErrNotFound
	}
	post.UpdatedAt = time.Now()
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
