package service

import (
	"context"
	"errors"
	"sort"
	"sync"
	"testing"
	"time"

	"github.com/blogapi/blog-api/internal/crypto"
	"github.com/blogapi/blog-api/internal/model"
	"github.com/blogapi/blog-api/internal/repository"
)

// memUserStore mimics the users table, including its unique email index.
type memUserStore struct {
	mu     sync.Mutex
	nextID int64
	users  map[string]model.User
	err    error
}

func newMemUserStore() *memUserStore {
	return &memUserStore{users: make(map[string]model.User)}
}

func (s *memUserStore) Create(_ context.Context, user *model.User) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.err != nil {
		return s.err
	}
	if _, ok := s.users[user.Email]; ok {
		return repository.ErrDuplicateEmail
	}
	s.nextID++
	user.ID = s.nextID
	s.users[user.Email] = *user
	return nil
}

func (s *memUserStore) GetByEmail(_ context.Context, email string) (*model.User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.err != nil {
		return nil, s.err
	}
	u, ok := s.users[email]
	if !ok {
		return nil, repository.ErrUserNotFound
	}
	return &u, nil
}

type memBlogStore struct {
	mu     sync.Mutex
	nextID int64
	blogs  map[int64]model.Blog
}

func newMemBlogStore() *memBlogStore {
	return &memBlogStore{blogs: make(map[int64]model.Blog)}
}

func (s *memBlogStore) Create(_ context.Context, blog *model.Blog) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.nextID++
	blog.ID = s.nextID
	s.blogs[blog.ID] = *blog
	return nil
}

func (s *memBlogStore) Get(_ context.Context, id int64) (*model.Blog, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	b, ok := s.blogs[id]
	if !ok {
		return nil, repository.ErrBlogNotFound
	}
	return &b, nil
}

func (s *memBlogStore) ListPublished(_ context.Context, limit int, desc bool) ([]model.Blog, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []model.Blog
	for _, b := range s.blogs {
		if b.IsPublished {
			out = append(out, b)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if desc {
			return out[i].ID > out[j].ID
		}
		return out[i].ID < out[j].ID
	})
	if len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (s *memBlogStore) Update(_ context.Context, id int64, apply func(*model.Blog) error) (*model.Blog, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	b, ok := s.blogs[id]
	if !ok {
		return nil, repository.ErrBlogNotFound
	}
	if err := apply(&b); err != nil {
		return nil, err
	}
	s.blogs[id] = b
	return &b, nil
}

func (s *memBlogStore) Delete(_ context.Context, id int64) (*model.Blog, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	b, ok := s.blogs[id]
	if !ok {
		return nil, repository.ErrBlogNotFound
	}
	delete(s.blogs, id)
	return &b, nil
}

func newTestIssuer(t *testing.T) *crypto.TokenIssuer {
	t.Helper()
	ti, err := crypto.NewTokenIssuer(crypto.TokenConfig{
		Secret:   "test-secret",
		Issuer:   "blog-api",
		Audience: "blog-api",
		TTL:      time.Hour,
	})
	if err != nil {
		t.Fatalf("NewTokenIssuer() unexpected error: %v", err)
	}
	return ti
}

var errStoreDown = errors.New("store down")
