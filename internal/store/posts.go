package store

import (
	"context"

	"github.com/dragonbytelabs/dz/internal/models"
)

const postColumns = `id, title, content, status, visibility, format, excerpt, publish_at, created_at, updated_at`

// CreatePost normalizes p and inserts it
func (d *DB) CreatePost(ctx context.Context, p *models.Post) (*models.Post, error) {
	p.Normalize()

	var out models.Post
	err := d.get(ctx, &out, `
INSERT INTO posts (title, content, status, visibility, format, excerpt, publish_at)
VALUES (?, ?, ?, ?, ?, ?, ?)
RETURNING `+postColumns,
		p.Title, p.Content, p.Status, p.Visibility, p.Format, p.Excerpt, p.PublishAt)
	if err != nil {
		return nil, err
	}
	return &out, nil
}

func (d *DB) ListPosts(ctx context.Context) ([]models.Post, error) {
	posts := []models.Post{}
	err := d.selectAll(ctx, &posts, `SELECT `+postColumns+` FROM posts ORDER BY created_at DESC, id DESC`)
	return posts, err
}

func (d *DB) GetPost(ctx context.Context, id int64) (*models.Post, error) {
	var p models.Post
	if err := d.get(ctx, &p, `SELECT `+postColumns+` FROM posts WHERE id = ?`, id); err != nil {
		return nil, err
	}
	return &p, nil
}

// UpdatePost overwrites every editable column of post p.ID
func (d *DB) UpdatePost(ctx context.Context, p *models.Post) (*models.Post, error) {
	p.Normalize()

	var out models.Post
	err := d.get(ctx, &out, `
UPDATE posts SET title = ?, content = ?, status = ?, visibility = ?, format = ?, excerpt = ?, publish_at = ?,
	updated_at = CURRENT_TIMESTAMP
WHERE id = ?
RETURNING `+postColumns,
		p.Title, p.Content, p.Status, p.Visibility, p.Format, p.Excerpt, p.PublishAt, p.ID)
	if err != nil {
		return nil, err
	}
	return &out, nil
}

func (d *DB) DeletePost(ctx context.Context, id int64) error {
	return d.execOne(ctx, `DELETE FROM posts WHERE id = ?`, id)
}
