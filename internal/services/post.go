package services

import (
	"context"

	"github.com/inkwell-blog/apiserver/internal/auth"
	"github.com/inkwell-blog/apiserver/internal/events"
	"github.com/inkwell-blog/apiserver/internal/store"
	"github.com/inkwell-blog/apiserver/types"
	"github.com/rs/zerolog"
)

// PostRepository defines persistence operations for posts.
type PostRepository interface {
	List(ctx context.Context) ([]types.Post, error)
	Get(ctx context.Context, id int) (types.Post, error)
	Create(ctx context.Context, post types.Post) (types.Post, error)
	Update(ctx context.Context, post types.Post) (types.Post, error)
	Delete(ctx context.Context, id int) error
}

// PostPatch carries a partial update. Nil fields are left unchanged.
type PostPatch struct {
	Title   *string
	Content *string
	Status  *types.PostStatus
}

// PostService enforces the visibility and ownership policy on top of
// the post repository. Viewers are passed as *auth.Identity; nil means
// an anonymous caller.
type PostService struct {
	repo      PostRepository
	publisher *events.Publisher
	log       zerolog.Logger
}

func NewPostService(repo PostRepository, publisher *events.Publisher, log zerolog.Logger) *PostService {
	return &PostService{
		repo:      repo,
		publisher: publisher,
		log:       log,
	}
}

// Visible reports whether viewer may read the post: published posts
// are public; drafts are readable only by their author or an admin.
func Visible(post types.Post, viewer *auth.Identity) bool {
	if post.Status == types.StatusPublished {
		return true
	}
	if viewer == nil {
		return false
	}
	return viewer.UserID == post.AuthorID || viewer.IsAdmin()
}

// CanModify reports whether caller may update or delete the post.
// Admin always dominates the ownership check.
func CanModify(post types.Post, caller auth.Identity) bool {
	return caller.UserID == post.AuthorID || caller.IsAdmin()
}

// List returns the posts visible to viewer, newest first.
func (s *PostService) List(ctx context.Context, viewer *auth.Identity) ([]types.Post, error) {
	posts, err := s.repo.List(ctx)
	if err != nil {
		return nil, err
	}

	visible := make([]types.Post, 0, len(posts))
	for _, post := range posts {
		if Visible(post, viewer) {
			visible = append(visible, post)
		}
	}
	return visible, nil
}

// Get returns a post if viewer may read it. An existing but invisible
// post yields store.ErrNotFound, not ErrForbidden, so drafts do not
// leak their existence.
func (s *PostService) Get(ctx context.Context, viewer *auth.Identity, id int) (types.Post, error) {
	post, err := s.repo.Get(ctx, id)
	if err != nil {
		return types.Post{}, err
	}
	if !Visible(post, viewer) {
		return types.Post{}, store.ErrNotFound
	}
	return post, nil
}

// Create stores a new post authored by caller. The author is always
// the authenticated caller; any author supplied in the request payload
// is ignored. Status defaults to draft.
func (s *PostService) Create(ctx context.Context, caller auth.Identity, title, content string, status types.PostStatus) (types.Post, error) {
	if status == "" {
		status = types.StatusDraft
	}

	post, err := s.repo.Create(ctx, types.Post{
		Title:    title,
		Content:  content,
		Status:   status,
		AuthorID: caller.UserID,
	})
	if err != nil {
		return types.Post{}, err
	}
	post.Author = types.AuthorSummary{
		ID:       caller.UserID,
		Username: caller.Username,
		Role:     caller.Role,
	}

	if post.Status == types.StatusPublished {
		s.announce(ctx, post)
	}
	return post, nil
}

// Update applies a partial update to a post owned by caller (or any
// post, for an admin). Unset patch fields keep their stored values.
func (s *PostService) Update(ctx context.Context, caller auth.Identity, id int, patch PostPatch) (types.Post, error) {
	post, err := s.repo.Get(ctx, id)
	if err != nil {
		return types.Post{}, err
	}
	if !CanModify(post, caller) {
		return types.Post{}, ErrForbidden
	}

	wasPublished := post.Status == types.StatusPublished
	if patch.Title != nil {
		post.Title = *patch.Title
	}
	if patch.Content != nil {
		post.Content = *patch.Content
	}
	if patch.Status != nil {
		post.Status = *patch.Status
	}

	updated, err := s.repo.Update(ctx, post)
	if err != nil {
		return types.Post{}, err
	}
	updated.Author = post.Author

	if !wasPublished && updated.Status == types.StatusPublished {
		s.announce(ctx, updated)
	}
	return updated, nil
}

// Delete removes a post owned by caller (or any post, for an admin).
func (s *PostService) Delete(ctx context.Context, caller auth.Identity, id int) error {
	post, err := s.repo.Get(ctx, id)
	if err != nil {
		return err
	}
	if !CanModify(post, caller) {
		return ErrForbidden
	}
	return s.repo.Delete(ctx, id)
}

// announce publishes a post-published event. Publishing is best
// effort: a broker failure is logged and never fails the request.
func (s *PostService) announce(ctx context.Context, post types.Post) {
	if s.publisher == nil {
		return
	}
	if _, err := s.publisher.PostPublished(ctx, post); err != nil {
		s.log.Error().Err(err).Int("post_id", post.ID).Msg("failed to publish post event")
	}
}
