package store

import (
	"context"

	"github.com/jmoiron/sqlx"

	"github.com/dragonbytelabs/dz/internal/models"
)

const teamColumns = `id, name, description, created_at, updated_at`

// CreateTeam creates a team and makes ownerID its owner in one transaction
func (d *DB) CreateTeam(ctx context.Context, ownerID int64, name string, description *string) (*models.Team, error) {
	var t models.Team
	err := d.inTx(ctx, func(tx *sqlx.Tx) error {
		err := tx.GetContext(ctx, &t, tx.Rebind(`
INSERT INTO teams (name, description) VALUES (?, ?)
RETURNING `+teamColumns), name, description)
		if err != nil {
			return ConvertDBError(err)
		}
		_, err = tx.ExecContext(ctx, tx.Rebind(`INSERT INTO team_members (team_id, user_id, role) VALUES (?, ?, ?)`),
			t.ID, ownerID, models.RoleOwner)
		return ConvertDBError(err)
	})
	if err != nil {
		return nil, err
	}
	return &t, nil
}

func (d *DB) GetTeam(ctx context.Context, id int64) (*models.Team, error) {
	var t models.Team
	if err := d.get(ctx, &t, `SELECT `+teamColumns+` FROM teams WHERE id = ?`, id); err != nil {
		return nil, err
	}
	return &t, nil
}

// ListTeamsForUser returns the teams userID belongs to along with the user's role
func (d *DB) ListTeamsForUser(ctx context.Context, userID int64) ([]models.TeamWithRole, error) {
	teams := []models.TeamWithRole{}
	err := d.selectAll(ctx, &teams, `
SELECT t.id, t.name, t.description, t.created_at, t.updated_at, m.role
FROM teams t
JOIN team_members m ON m.team_id = t.id
WHERE m.user_id = ?
ORDER BY t.name ASC`, userID)
	return teams, err
}

func (d *DB) UpdateTeam(ctx context.Context, id int64, name string, description *string) (*models.Team, error) {
	var t models.Team
	err := d.get(ctx, &t, `
UPDATE teams SET name = ?, description = ?, updated_at = CURRENT_TIMESTAMP
WHERE id = ?
RETURNING `+teamColumns, name, description, id)
	if err != nil {
		return nil, err
	}
	return &t, nil
}

func (d *DB) DeleteTeam(ctx context.Context, id int64) error {
	if _, err := d.exec(ctx, `DELETE FROM team_members WHERE team_id = ?`, id); err != nil {
		return err
	}
	return d.execOne(ctx, `DELETE FROM teams WHERE id = ?`, id)
}

// TeamRole returns ErrNotFound when userID is not a member of teamID
func (d *DB) TeamRole(ctx context.Context, teamID, userID int64) (string, error) {
	var role string
	err := d.get(ctx, &role, `SELECT role FROM team_members WHERE team_id = ? AND user_id = ?`, teamID, userID)
	return role, err
}

// SetTeamMember adds userID to the team or changes their role
func (d *DB) SetTeamMember(ctx context.Context, teamID, userID int64, role string) error {
	_, err := d.exec(ctx, `
INSERT INTO team_members (team_id, user_id, role) VALUES (?, ?, ?)
ON CONFLICT (team_id, user_id) DO UPDATE SET role = excluded.role`, teamID, userID, role)
	return err
}

func (d *DB) RemoveTeamMember(ctx context.Context, teamID, userID int64) error {
	return d.execOne(ctx, `DELETE FROM team_members WHERE team_id = ? AND user_id = ?`, teamID, userID)
}

func (d *DB) ListTeamMembers(ctx context.Context, teamID int64) ([]models.TeamMember, error) {
	members := []models.TeamMember{}
	err := d.selectAll(ctx, &members, `
SELECT m.team_id, m.user_id, u.user_hash, u.email, m.role, m.joined_at
FROM team_members m
JOIN users u ON u.id = m.user_id
WHERE m.team_id = ?
ORDER BY m.joined_at ASC, u.email ASC`, teamID)
	return members, err
}
