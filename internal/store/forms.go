package store

import (
	"context"
	"fmt"

	"github.com/jmoiron/sqlx"

	"github.com/dragonbytelabs/dz/internal/models"
)

const (
	formColumns  = `id, name, description, fields, created_at, updated_at`
	entryColumns = `id, form_id, data, ip_address, user_agent, created_at`
)

func (d *DB) CreateForm(ctx context.Context, name string, description *string, fields string) (*models.Form, error) {
	var f models.Form
	err := d.get(ctx, &f, `
INSERT INTO forms (name, description, fields) VALUES (?, ?, ?)
RETURNING `+formColumns, name, description, fields)
	if err != nil {
		return nil, err
	}
	return &f, nil
}

func (d *DB) ListForms(ctx context.Context) ([]models.Form, error) {
	forms := []models.Form{}
	err := d.selectAll(ctx, &forms, `SELECT `+formColumns+` FROM forms ORDER BY created_at DESC, id DESC`)
	return forms, err
}

func (d *DB) GetForm(ctx context.Context, id int64) (*models.Form, error) {
	var f models.Form
	if err := d.get(ctx, &f, `SELECT `+formColumns+` FROM forms WHERE id = ?`, id); err != nil {
		return nil, err
	}
	return &f, nil
}

func (d *DB) UpdateForm(ctx context.Context, id int64, name string, description *string, fields string) (*models.Form, error) {
	var f models.Form
	err := d.get(ctx, &f, `
UPDATE forms SET name = ?, description = ?, fields = ?, updated_at = CURRENT_TIMESTAMP
WHERE id = ?
RETURNING `+formColumns, name, description, fields, id)
	if err != nil {
		return nil, err
	}
	return &f, nil
}

// EditFormFields replaces the fields of form id with fn(current) while
// holding the row, so concurrent edits apply one after another
func (d *DB) EditFormFields(ctx context.Context, id int64, fn func(fields string) (string, error)) (*models.Form, error) {
	lock := ""
	if d.dialect == DialectPostgres {
		lock = " FOR UPDATE"
	}

	var f models.Form
	err := d.inTx(ctx, func(tx *sqlx.Tx) error {
		if err := tx.GetContext(ctx, &f, tx.Rebind(`SELECT `+formColumns+` FROM forms WHERE id = ?`+lock), id); err != nil {
			return ConvertDBError(err)
		}
		fields, err := fn(f.Fields)
		if err != nil {
			return err
		}
		return ConvertDBError(tx.GetContext(ctx, &f, tx.Rebind(`
UPDATE forms SET fields = ?, updated_at = CURRENT_TIMESTAMP
WHERE id = ?
RETURNING `+formColumns), fields, id))
	})
	if err != nil {
		return nil, err
	}
	return &f, nil
}

// DeleteForm also removes the form's entries
func (d *DB) DeleteForm(ctx context.Context, id int64) error {
	return d.inTx(ctx, func(tx *sqlx.Tx) error {
		if _, err := tx.ExecContext(ctx, tx.Rebind(`DELETE FROM form_entries WHERE form_id = ?`), id); err != nil {
			return ConvertDBError(err)
		}
		res, err := tx.ExecContext(ctx, tx.Rebind(`DELETE FROM forms WHERE id = ?`), id)
		if err != nil {
			return ConvertDBError(err)
		}
		n, err := res.RowsAffected()
		if err != nil {
			return fmt.Errorf("failed to get rows affected: %w", err)
		}
		if n == 0 {
			return ErrNotFound
		}
		return nil
	})
}

func (d *DB) CreateFormEntry(ctx context.Context, e *models.FormEntry) (*models.FormEntry, error) {
	var out models.FormEntry
	err := d.get(ctx, &out, `
INSERT INTO form_entries (form_id, data, ip_address, user_agent) VALUES (?, ?, ?, ?)
RETURNING `+entryColumns, e.FormID, e.Data, e.IPAddress, e.UserAgent)
	if err != nil {
		return nil, err
	}
	return &out, nil
}

// ListFormEntries returns submissions for a form, newest first
func (d *DB) ListFormEntries(ctx context.Context, formID int64) ([]models.FormEntry, error) {
	entries := []models.FormEntry{}
	err := d.selectAll(ctx, &entries,
		`SELECT `+entryColumns+` FROM form_entries WHERE form_id = ? ORDER BY created_at DESC, id DESC`, formID)
	return entries, err
}

func (d *DB) DeleteFormEntry(ctx context.Context, formID, entryID int64) error {
	return d.execOne(ctx, `DELETE FROM form_entries WHERE id = ? AND form_id = ?`, entryID, formID)
}
