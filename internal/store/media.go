package store

import (
	"context"

	"github.com/dragonbytelabs/dz/internal/models"
)

const mediaColumns = `id, user_id, filename, original_name, mime_type, size, storage_type, storage_path, url, created_at, updated_at`

func (d *DB) CreateMedia(ctx context.Context, m *models.Media) (*models.Media, error) {
	var out models.Media
	err := d.get(ctx, &out, `
INSERT INTO media (user_id, filename, original_name, mime_type, size, storage_type, storage_path, url)
VALUES (?, ?, ?, ?, ?, ?, ?, ?)
RETURNING `+mediaColumns,
		m.UserID, m.Filename, m.OriginalName, m.MimeType, m.Size, m.StorageType, m.StoragePath, m.URL)
	if err != nil {
		return nil, err
	}
	return &out, nil
}

// ListMedia returns the user's uploads, newest first
func (d *DB) ListMedia(ctx context.Context, userID int64) ([]models.Media, error) {
	media := []models.Media{}
	err := d.selectAll(ctx, &media,
		`SELECT `+mediaColumns+` FROM media WHERE user_id = ? ORDER BY created_at DESC, id DESC`, userID)
	return media, err
}

func (d *DB) GetMedia(ctx context.Context, userID, id int64) (*models.Media, error) {
	var m models.Media
	if err := d.get(ctx, &m, `SELECT `+mediaColumns+` FROM media WHERE id = ? AND user_id = ?`, id, userID); err != nil {
		return nil, err
	}
	return &m, nil
}

func (d *DB) DeleteMedia(ctx context.Context, userID, id int64) error {
	return d.execOne(ctx, `DELETE FROM media WHERE id = ? AND user_id = ?`, id, userID)
}
