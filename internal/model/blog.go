package model

import (
	"time"

	validation "github.com/go-ozzo/ozzo-validation"
)

// Blog represents a blog post in the database.
type Blog struct {
	ID          int64
	Title       string
	Body        string
	Published   *time.Time
	IsPublished bool
	UserID      int64
}

// BlogRequest is the payload for creating or updating a blog post.
type BlogRequest struct {
	Title     string     `json:"title"`
	Body      string     `json:"body"`
	Published *time.Time `json:"published"`
}

// Validate checks the blog payload.
func (r BlogRequest) Validate() error {
	return validation.ValidateStruct(&r,
		validation.Field(&r.Title, validation.Required, validation.Length(1, 255)),
		validation.Field(&r.Body, validation.Required),
	)
}

// BlogResponse is the public representation of a blog post.
type BlogResponse struct {
	ID          int64      `json:"id"`
	Title       string     `json:"title"`
	Body        string     `json:"body"`
	Published   *time.Time `json:"published"`
	IsPublished bool       `json:"is_published"`
	UserID      int64      `json:"user_id"`
}

// BlogListResponse wraps a page of published posts.
type BlogListResponse struct {
	Data []BlogResponse `json:"data"`
	Sort string         `json:"sort"`
}

// BlogUpdateResponse is returned by a successful update.
type BlogUpdateResponse struct {
	Message string       `json:"message"`
	Data    BlogResponse `json:"data"`
}

// NewBlogResponse converts a stored blog into its response form.
func NewBlogResponse(b *Blog) BlogResponse {
	return BlogResponse{
		ID:          b.ID,
		Title:       b.Title,
		Body:        b.Body,
		Published:   b.Published,
		IsPublished: b.IsPublished,
		UserID:      b.UserID,
	}
}
