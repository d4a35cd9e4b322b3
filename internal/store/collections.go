package store

import (
	"context"

	"github.com/dragonbytelabs/dz/internal/models"
)

const collectionColumns = `id, user_id, name, description, created_at, updated_at`

// CreateCollection returns ErrUniqueViolation when the user already owns a collection called name
func (d *DB) CreateCollection(ctx context.Context, userID int64, name string, description *string) (*models.Collection, error) {
	var c models.Collection
	err := d.get(ctx, &c, `
INSERT INTO collections (user_id, name, description) VALUES (?, ?, ?)
RETURNING `+collectionColumns, userID, name, description)
	if err != nil {
		return nil, err
	}
	return &c, nil
}

// ListCollections returns the user's collections, newest first
func (d *DB) ListCollections(ctx context.Context, userID int64) ([]models.Collection, error) {
	collections := []models.Collection{}
	err := d.selectAll(ctx, &collections,
		`SELECT `+collectionColumns+` FROM collections WHERE user_id = ? ORDER BY created_at DESC, id DESC`, userID)
	return collections, err
}

// GetCollection returns ErrNotFound when the collection is missing or owned by someone else
func (d *DB) GetCollection(ctx context.Context, userID, id int64) (*models.Collection, error) {
	var c models.Collection
	err := d.get(ctx, &c, `SELECT `+collectionColumns+` FROM collections WHERE id = ? AND user_id = ?`, id, userID)
	if err != nil {
		return nil, err
	}
	return &c, nil
}

func (d *DB) UpdateCollection(ctx context.Context, userID, id int64, name string, description *string) (*models.Collection, error) {
	var c models.Collection
	err := d.get(ctx, &c, `
UPDATE collections SET name = ?, description = ?, updated_at = CURRENT_TIMESTAMP
WHERE id = ? AND user_id = ?
RETURNING `+collectionColumns, name, description, id, userID)
	if err != nil {
		return nil, err
	}
	return &c, nil
}

func (d *DB) DeleteCollection(ctx context.Context, userID, id int64) error {
	return d.execOne(ctx, `DELETE FROM collections WHERE id = ? AND user_id = ?`, id, userID)
}
