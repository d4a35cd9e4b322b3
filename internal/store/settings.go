package store

import (
	"context"

	"github.com/dragonbytelabs/dz/internal/models"
)

// GetSetting returns the stored value, or "" when the key is unset
func (d *DB) GetSetting(ctx context.Context, key string) (string, error) {
	var value string
	err := d.get(ctx, &value, `SELECT setting_value FROM site_settings WHERE setting_key = ?`, key)
	if IsNotFound(err) {
		return "", nil
	}
	return value, err
}

// SetSetting upserts key
func (d *DB) SetSetting(ctx context.Context, key, value string) error {
	_, err := d.exec(ctx, `
INSERT INTO site_settings (setting_key, setting_value) VALUES (?, ?)
ON CONFLICT (setting_key) DO UPDATE SET setting_value = excluded.setting_value, updated_at = CURRENT_TIMESTAMP`,
		key, value)
	return err
}

// GetBoolSetting treats "true" and "1" as enabled
func (d *DB) GetBoolSetting(ctx context.Context, key string) (bool, error) {
	v, err := d.GetSetting(ctx, key)
	if err != nil {
		return false, err
	}
	return v == "true" || v == "1", nil
}

// Settings returns all site settings as a map
func (d *DB) Settings(ctx context.Context) (map[string]string, error) {
	var rows []struct {
		Key   string `db:"setting_key"`
		Value string `db:"setting_value"`
	}
	if err := d.selectAll(ctx, &rows, `SELECT setting_key, setting_value FROM site_settings ORDER BY setting_key`); err != nil {
		return nil, err
	}
	out := make(map[string]string, len(rows))
	for _, r := range rows {
		out[r.Key] = r.Value
	}
	return out, nil
}

// SeedSettings inserts defaults for keys that have never been set
func (d *DB) SeedSettings(ctx context.Context) error {
	for key, value := range models.DefaultSettings {
		_, err := d.exec(ctx, `
INSERT INTO site_settings (setting_key, setting_value) VALUES (?, ?)
ON CONFLICT (setting_key) DO NOTHING`, key, value)
		if err != nil {
			return err
		}
	}
	return nil
}

func (d *DB) GetActiveTheme(ctx context.Context) (string, error) {
	return d.GetSetting(ctx, models.SettingActiveTheme)
}

func (d *DB) SetActiveTheme(ctx context.Context, name string) error {
	return d.SetSetting(ctx, models.SettingActiveTheme, name)
}
