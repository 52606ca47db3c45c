package types

import "time"

// PostStatus is the publication state of a post. Draft posts are
// visible only to their author and to admins.
type PostStatus string

const (
	StatusDraft     PostStatus = "draft"
	StatusPublished PostStatus = "published"
)

// Valid reports whether s is one of the two known statuses.
func (s PostStatus) Valid() bool {
	return s == StatusDraft || s == StatusPublished
}

// AuthorSummary is the subset of a user embedded in post responses.
type AuthorSummary struct {
	ID       int    `json:"id" db:"id"`
	Username string `json:"username" db:"username"`
	Role     Role   `json:"role" db:"role"`
}

// Post represents a blog post.
type Post struct {
	// ID is the unique identifier of the post.
	ID int `json:"id" db:"id"`

	// Title is the human-readable name of the post. Required, non-empty.
	Title string `json:"title" db:"title"`

	// Content is the post body. Required, non-empty.
	Content string `json:"content" db:"content"`

	// Status is the publication state. Defaults to StatusDraft.
	Status PostStatus `json:"status" db:"status"`

	// AuthorID references the owning user. It is set from the
	// authenticated caller at creation and never changes afterwards.
	AuthorID int `json:"author_id" db:"author_id"`

	// Author is the embedded author summary attached by list/get queries.
	Author AuthorSummary `json:"author"`

	// CreatedAt is the timestamp at which the post was created.
	CreatedAt time.Time `json:"created_at" db:"created_at"`

	// UpdatedAt is the timestamp of the most recent update to the post.
	UpdatedAt time.Time `json:"updated_at" db:"updated_at"`
}
