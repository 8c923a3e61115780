package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/blogapi/blog-api/internal/model"
	"github.com/blogapi/blog-api/internal/repository"
)

const (
	DefaultListLimit = 10
	MaxListLimit     = 100

	SortAsc  = "asc"
	SortDesc = "desc"
)

var ErrBlogNotFound = errors.New("blog not found")

// BlogStore is the blog persistence used by BlogService.
type BlogStore interface {
	Create(ctx context.Context, blog *model.Blog) error
	Get(ctx context.Context, id int64) (*model.Blog, error)
	ListPublished(ctx context.Context, limit int, desc bool) ([]model.Blog, error)
	Update(ctx context.Context, id int64, apply func(*model.Blog) error) (*model.Blog, error)
	Delete(ctx context.Context, id int64) (*model.Blog, error)
}

// BlogService handles blog business logic.
//
// Any authenticated user may update or delete any blog, not only its owner.
// Such edits are allowed and logged.
type BlogService struct {
	blogs BlogStore
	now   func() time.Time
}

// NewBlogService creates a new BlogService.
func NewBlogService(blogs BlogStore) *BlogService {
	return &BlogService{blogs: blogs, now: time.Now}
}

// Create publishes a new blog owned by author.
func (s *BlogService) Create(ctx context.Context, author *model.User, req model.BlogRequest) (model.BlogResponse, error) {
	if err := req.Validate(); err != nil {
		return model.BlogResponse{}, fmt.Errorf("%w: %v", ErrInvalidInput, err)
	}

	published := s.now().UTC().Truncate(time.Microsecond)
	blog := &model.Blog{
		Title:       req.Title,
		Body:        req.Body,
		Published:   &published,
		IsPublished: true,
		UserID:      author.ID,
	}

	if err := s.blogs.Create(ctx, blog); err != nil {
		return model.BlogResponse{}, err
	}

	slog.Info("blog created", "blog_id", blog.ID, "user_id", author.ID)
	return model.NewBlogResponse(blog), nil
}

// List returns up to limit published blogs sorted by ID. Limits above
// MaxListLimit are clamped.
func (s *BlogService) List(ctx context.Context, limit int, sort string) (model.BlogListResponse, error) {
	if sort == "" {
		sort = SortAsc
	}
	if sort != SortAsc && sort != SortDesc {
		return model.BlogListResponse{}, fmt.Errorf("%w: sort must be %q or %q", ErrInvalidInput, SortAsc, SortDesc)
	}
	if limit < 1 {
		return model.BlogListResponse{}, fmt.Errorf("%w: limit must be positive", ErrInvalidInput)
	}
	if limit > MaxListLimit {
		limit = MaxListLimit
	}

	blogs, err := s.blogs.ListPublished(ctx, limit, sort == SortDesc)
	if err != nil {
		return model.BlogListResponse{}, err
	}

	return model.BlogListResponse{
		Data: blogsToResponse(blogs),
		Sort: sort,
	}, nil
}

// Get returns a single blog.
func (s *BlogService) Get(ctx context.Context, id int64) (model.BlogResponse, error) {
	blog, err := s.blogs.Get(ctx, id)
	if err != nil {
		return model.BlogResponse{}, mapBlogError(err)
	}
	return model.NewBlogResponse(blog), nil
}

// Update replaces the title and body of a blog. The published timestamp is
// replaced only when the request carries one.
func (s *BlogService) Update(ctx context.Context, editor *model.User, id int64, req model.BlogRequest) (model.BlogResponse, error) {
	if err := req.Validate(); err != nil {
		return model.BlogResponse{}, fmt.Errorf("%w: %v", ErrInvalidInput, err)
	}

	blog, err := s.blogs.Update(ctx, id, func(b *model.Blog) error {
		b.Title = req.Title
		b.Body = req.Body
		if req.Published != nil {
			published := req.Published.UTC()
			b.Published = &published
		}
		return nil
	})
	if err != nil {
		return model.BlogResponse{}, mapBlogError(err)
	}

	logMutation("blog updated", blog, editor)
	return model.NewBlogResponse(blog), nil
}

// Delete removes a blog.
func (s *BlogService) Delete(ctx context.Context, editor *model.User, id int64) error {
	blog, err := s.blogs.Delete(ctx, id)
	if err != nil {
		return mapBlogError(err)
	}

	logMutation("blog deleted", blog, editor)
	return nil
}

func logMutation(msg string, blog *model.Blog, editor *model.User) {
	if blog.UserID != editor.ID {
		slog.Warn(msg+" by non-owner", "blog_id", blog.ID, "owner_id", blog.UserID, "user_id", editor.ID)
		return
	}
	slog.Info(msg, "blog_id", blog.ID, "user_id", editor.ID)
}

func mapBlogError(err error) error {
	if errors.Is(err, repository.ErrBlogNotFound) {
		return ErrBlogNotFound
	}
	return err
}

// blogsToResponse converts a slice of Blog to a slice of BlogResponse.
func blogsToResponse(blogs []model.Blog) []model.BlogResponse {
	result := make([]model.BlogResponse, len(blogs))
	for i := range blogs {
		result[i] = model.NewBlogResponse(&blogs[i])
	}
	return result
}
