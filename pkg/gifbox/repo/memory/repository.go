package memory

import (
	"context"
	"sync"

	"github.com/gifbox/api/pkg/gifbox"
	"github.com/google/uuid"
)

// Repository implements gifbox.Repository using in-memory storage
type Repository struct {
	mu sync.RWMutex

	posts       map[uuid.UUID]*gifbox.Post
	postsByFile map[string]uuid.UUID
	users       map[uuid.UUID]*gifbox.User
}

// New creates a new in-memory repository
func New() *Repository {
	return &Repository{
		posts:       make(map[uuid.UUID]*gifbox.Post),
		postsByFile: make(map[string]uuid.UUID),
		users:       make(map[uuid.UUID]*gifbox.User),
	}
}

// Post operations

func (r *Repository) CreatePost(ctx context.Context, post *gifbox.Post) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.posts[post.ID]; exists {
		return gifbox.ErrMetadataConflict
	}
	if _, exists := r.postsByFile[post.File.FileName]; exists {
		return gifbox.ErrMetadataConflict
	}

	r.posts[post.ID] = copyPost(post)
	r.postsByFile[post.File.FileName] = post.ID
	return nil
}

func (r *Repository) GetPost(ctx context.Context, id uuid.UUID) (*gifbox.Post, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	post, exists := r.posts[id]
	if !exists {
		return nil, gifbox.ErrPostNotFound
	}
	return copyPost(post), nil
}

func (r *Repository) GetPostByFileName(ctx context.Context, fileName string) (*gifbox.Post, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	id, exists := r.postsByFile[fileName]
	if !exists {
		return nil, gifbox.ErrPostNotFound
	}
	return copyPost(r.posts[id]), nil
}

func (r *Repository) DeletePost(ctx context.Context, id uuid.UUID) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	post, exists := r.posts[id]
	if !exists {
		return gifbox.ErrPostNotFound
	}

	delete(r.postsByFile, post.File.FileName)
	delete(r.posts, id)
	return nil
}

// User operations

// PutUser inserts or replaces a user. Accounts are owned elsewhere; this is
// how tests and the development server seed them.
func (r *Repository) PutUser(user *gifbox.User) {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.users[user.ID] = copyUser(user)
}

func (r *Repository) GetUser(ctx context.Context, id uuid.UUID) (*gifbox.User, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	user, exists := r.users[id]
	if !exists {
		return nil, gifbox.ErrUserNotFound
	}
	return copyUser(user), nil
}

func (r *Repository) GetUserByAvatarFileName(ctx context.Context, fileName string) (*gifbox.User, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	for _, user := range r.users {
		if user.Avatar != nil && user.Avatar.FileName == fileName {
			return copyUser(user), nil
		}
	}
	return nil, gifbox.ErrUserNotFound
}

func copyPost(p *gifbox.Post) *gifbox.Post {
	c := *p
	if p.Tags != nil {
		c.Tags = append([]string(nil), p.Tags...)
	}
	return &c
}

func copyUser(u *gifbox.User) *gifbox.User {
	c := *u
	if u.Avatar != nil {
		avatar := *u.Avatar
		c.Avatar = &avatar
	}
	if u.Followers != nil {
		c.Followers = append([]uuid.UUID(nil), u.Followers...)
	}
	return &c
}
