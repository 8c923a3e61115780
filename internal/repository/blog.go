package repository

import (
	"context"
	"database/sql"
	"errors"

	"github.com/blogapi/blog-api/internal/model"
)

var ErrBlogNotFound = errors.New("blog not found")

const blogColumns = `id, title, body, published, is_published, user_id`

// BlogRepository handles blog persistence operations.
type BlogRepository struct {
	db *sql.DB
}

// NewBlogRepository creates a new BlogRepository.
func NewBlogRepository(db *sql.DB) *BlogRepository {
	return &BlogRepository{db: db}
}

// Create inserts a new blog and sets the generated ID on the blog struct.
func (r *BlogRepository) Create(ctx context.Context, blog *model.Blog) error {
	query := `INSERT INTO blogs (title, body, published, is_published, user_id) VALUES (?, ?, ?, ?, ?)`

	result, err := r.db.ExecContext(ctx, query,
		blog.Title, blog.Body, blog.Published, blog.IsPublished, blog.UserID,
	)
	if err != nil {
		return err
	}

	id, err := result.LastInsertId()
	if err != nil {
		return err
	}

	blog.ID = id
	return nil
}

// Get retrieves a blog by ID regardless of its published flag.
func (r *BlogRepository) Get(ctx context.Context, id int64) (*model.Blog, error) {
	return getBlog(ctx, r.db, `SELECT `+blogColumns+` FROM blogs WHERE id = ?`, id)
}

// ListPublished returns up to limit published blogs ordered by ID.
func (r *BlogRepository) ListPublished(ctx context.Context, limit int, desc bool) ([]model.Blog, error) {
	query := `SELECT ` + blogColumns + ` FROM blogs WHERE is_published = TRUE ORDER BY id ASC LIMIT ?`
	if desc {
		query = `SELECT ` + blogColumns + ` FROM blogs WHERE is_published = TRUE ORDER BY id DESC LIMIT ?`
	}

	rows, err := r.db.QueryContext(ctx, query, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var blogs []model.Blog
	for rows.Next() {
		b, err := scanBlog(rows)
		if err != nil {
			return nil, err
		}
		blogs = append(blogs, *b)
	}

	return blogs, rows.Err()
}

// Update locks the blog row, lets apply modify it and writes it back, all in
// one transaction. An error from apply aborts the update.
func (r *BlogRepository) Update(ctx context.Context, id int64, apply func(*model.Blog) error) (*model.Blog, error) {
	var updated *model.Blog
	err := WithTx(ctx, r.db, func(ctx context.Context, tx DBTX) error {
		blog, err := getBlog(ctx, tx, `SELECT `+blogColumns+` FROM blogs WHERE id = ? FOR UPDATE`, id)
		if err != nil {
			return err
		}

		if err := apply(blog); err != nil {
			return err
		}

		query := `UPDATE blogs SET title = ?, body = ?, published = ?, is_published = ? WHERE id = ?`
		if _, err := tx.ExecContext(ctx, query,
			blog.Title, blog.Body, blog.Published, blog.IsPublished, blog.ID,
		); err != nil {
			return err
		}

		updated = blog
		return nil
	})
	if err != nil {
		return nil, err
	}

	return updated, nil
}

// Delete removes a blog and returns the row as it was before deletion.
func (r *BlogRepository) Delete(ctx context.Context, id int64) (*model.Blog, error) {
	var deleted *model.Blog
	err := WithTx(ctx, r.db, func(ctx context.Context, tx DBTX) error {
		blog, err := getBlog(ctx, tx, `SELECT `+blogColumns+` FROM blogs WHERE id = ? FOR UPDATE`, id)
		if err != nil {
			return err
		}

		if _, err := tx.ExecContext(ctx, `DELETE FROM blogs WHERE id = ?`, id); err != nil {
			return err
		}

		deleted = blog
		return nil
	})
	if err != nil {
		return nil, err
	}

	return deleted, nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func getBlog(ctx context.Context, db DBTX, query string, id int64) (*model.Blog, error) {
	blog, err := scanBlog(db.QueryRowContext(ctx, query, id))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrBlogNotFound
		}
		return nil, err
	}
	return blog, nil
}

func scanBlog(row rowScanner) (*model.Blog, error) {
	var (
		b         model.Blog
		published sql.NullTime
	)
	if err := row.Scan(&b.ID, &b.Title, &b.Body, &published, &b.IsPublished, &b.UserID); err != nil {
		return nil, err
	}
	if published.Valid {
		t := published.Time
		b.Published = &t
	}
	return &b, nil
}
