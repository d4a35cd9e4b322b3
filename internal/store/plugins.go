package store

import (
	"context"

	"github.com/dragonbytelabs/dz/internal/models"
)

const pluginColumns = `id, name, display_name, description, version, is_active, sidebar_icon, sidebar_title, sidebar_link, created_at, updated_at`

// EnsurePlugin inserts the plugin row if missing and refreshes its metadata otherwise.
// The active flag of an existing row is left untouched.
func (d *DB) EnsurePlugin(ctx context.Context, p *models.Plugin) (*models.Plugin, error) {
	if p.Version == "" {
		p.Version = models.DefaultPluginVersion
	}

	var out models.Plugin
	err := d.get(ctx, &out, `
INSERT INTO plugins (name, display_name, description, version, is_active, sidebar_icon, sidebar_title, sidebar_link)
VALUES (?, ?, ?, ?, ?, ?, ?, ?)
ON CONFLICT (name) DO UPDATE SET
	display_name = excluded.display_name,
	description = excluded.description,
	version = excluded.version,
	sidebar_icon = excluded.sidebar_icon,
	sidebar_title = excluded.sidebar_title,
	sidebar_link = excluded.sidebar_link,
	updated_at = CURRENT_TIMESTAMP
RETURNING `+pluginColumns,
		p.Name, p.DisplayName, p.Description, p.Version, p.IsActive, p.SidebarIcon, p.SidebarTitle, p.SidebarLink)
	if err != nil {
		return nil, err
	}
	return &out, nil
}

// AddPlugin records an inactive plugin named name. An existing row yields
// ErrUniqueViolation.
func (d *DB) AddPlugin(ctx context.Context, name string) (*models.Plugin, error) {
	var out models.Plugin
	err := d.get(ctx, &out, `
INSERT INTO plugins (name, display_name, version, is_active)
VALUES (?, ?, ?, ?)
RETURNING `+pluginColumns,
		name, name, models.DefaultPluginVersion, false)
	if err != nil {
		return nil, err
	}
	return &out, nil
}

func (d *DB) ListPlugins(ctx context.Context) ([]models.Plugin, error) {
	plugins := []models.Plugin{}
	err := d.selectAll(ctx, &plugins, `SELECT `+pluginColumns+` FROM plugins ORDER BY name ASC`)
	return plugins, err
}

func (d *DB) ListActivePlugins(ctx context.Context) ([]models.Plugin, error) {
	plugins := []models.Plugin{}
	err := d.selectAll(ctx, &plugins, `SELECT `+pluginColumns+` FROM plugins WHERE is_active = ? ORDER BY name ASC`, true)
	return plugins, err
}

func (d *DB) GetPlugin(ctx context.Context, name string) (*models.Plugin, error) {
	var p models.Plugin
	if err := d.get(ctx, &p, `SELECT `+pluginColumns+` FROM plugins WHERE name = ?`, name); err != nil {
		return nil, err
	}
	return &p, nil
}

// SetPluginActive returns ErrNotFound for unknown plugins
func (d *DB) SetPluginActive(ctx context.Context, name string, active bool) error {
	return d.execOne(ctx, `UPDATE plugins SET is_active = ?, updated_at = CURRENT_TIMESTAMP WHERE name = ?`, active, name)
}
