package events

import (
	"context"
	"encoding/json"
	"time"

	"github.com/inkwell-blog/apiserver/types"
)

// TopicPostPublished is the channel post-published events are sent to.
const TopicPostPublished = "post.published"

// PostPublished is emitted when a post transitions to the published state.
type PostPublished struct {
	PostID      int       `json:"post_id"`
	Title       string    `json:"title"`
	AuthorID    int       `json:"author_id"`
	Author      string    `json:"author"`
	PublishedAt time.Time `json:"published_at"`
}

// Backend defines the broker-agnostic publish operations used by the app.
type Backend interface {
	Publish(ctx context.Context, channel string, data []byte, attrs map[string]string) (string, error)
	Close() error
}

// Publisher wraps a backend with typed event publishing.
type Publisher struct {
	backend Backend
}

// NewPublisher constructs a Publisher for the provided backend.
func NewPublisher(backend Backend) *Publisher {
	return &Publisher{backend: backend}
}

// PostPublished sends a post-published event and returns the broker
// message id.
func (p *Publisher) PostPublished(ctx context.Context, post types.Post) (string, error) {
	event := PostPublished{
		PostID:      post.ID,
		Title:       post.Title,
		AuthorID:    post.AuthorID,
		Author:      post.Author.Username,
		PublishedAt: time.Now(),
	}
	data, err := json.Marshal(event)
	if err != nil {
		return "", err
	}
	return p.backend.Publish(ctx, TopicPostPublished, data, map[string]string{
		"event": TopicPostPublished,
	})
}

// Close closes the underlying backend.
func (p *Publisher) Close() error {
	return p.backend.Close()
}

// NopBackend discards every event. Used when no broker is configured.
type NopBackend struct{}

func (NopBackend) Publish(context.Context, string, []byte, map[string]string) (string, error) {
	return "", nil
}

func (NopBackend) Close() error { return nil }
