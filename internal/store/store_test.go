package store

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/lib/pq"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"

	"github.com/dragonbytelabs/dz/internal/models"
)

func newTestDB(t *testing.T) *DB {
	t.Helper()
	db, err := Open(context.Background(), "sqlite", filepath.Join(t.TempDir(), "test.db"), nil)
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })

	_, err = db.Migrate(context.Background())
	require.NoError(t, err)
	return db
}

func newTestUser(t *testing.T, db *DB, email string) *models.User {
	t.Helper()
	u, err := db.CreateUser(context.Background(), email, "hash", strings.Split(email, "@")[0])
	require.NoError(t, err)
	return u
}

func TestOpenUnsupportedDriver(t *testing.T) {
	_, err := Open(context.Background(), "mysql", "x", nil)
	assert.ErrorContains(t, err, "unsupported database driver")
}

func TestSQLiteDSN(t *testing.T) {
	assert.Equal(t, "file:dz.db?_pragma=journal_mode(WAL)&_pragma=busy_timeout(5000)&_pragma=foreign_keys(ON)",
		sqliteDSN("sqlite", "dz.db"))
	assert.Equal(t, "file:dz.db?_journal_mode=WAL&_busy_timeout=5000&_foreign_keys=on", sqliteDSN("sqlite3", "dz.db"))
	assert.Equal(t, "file:x.db?mode=ro", sqliteDSN("sqlite", "file:x.db?mode=ro"))
}

func TestMigrations(t *testing.T) {
	ctx := context.Background()
	db := newTestDB(t)

	n, err := db.Migrate(ctx)
	require.NoError(t, err)
	assert.Zero(t, n, "second run applies nothing")

	status, err := db.MigrationStatus(ctx)
	require.NoError(t, err)
	assert.Equal(t, 3, status.Total)
	assert.Len(t, status.Applied, 3)
	assert.Empty(t, status.Pending)
	assert.Equal(t, "plugins", status.LastApplied.Name)
	assert.Equal(t, "Total: 3 migrations (3 applied, 0 pending)", status.Summary())

	last, err := db.Rollback(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(3), last.Version)

	tables, err := db.ListTables(ctx)
	require.NoError(t, err)
	assert.NotContains(t, tables, "forms")

	n, err = db.Migrate(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, n)
}

func TestLoadMigrationsBothDialects(t *testing.T) {
	for _, dir := range []string{"migrations/sqlite", "migrations/postgres"} {
		t.Run(dir, func(t *testing.T) {
			ms, err := loadMigrations(migrationsFS, dir)
			require.NoError(t, err)
			require.Len(t, ms, 3)
			for i, m := range ms {
				assert.Equal(t, int64(i+1), m.Version)
				assert.NotEmpty(t, m.Up)
				assert.NotEmpty(t, m.Down)
			}
		})
	}
}

func TestUsers(t *testing.T) {
	ctx := context.Background()
	db := newTestDB(t)

	u, err := db.CreateUser(ctx, "alice@example.com", "hash", "alice")
	require.NoError(t, err)
	assert.NotZero(t, u.ID)
	assert.Len(t, u.UserHash, 86)
	assert.True(t, strings.HasPrefix(u.AvatarURL, "data:image/svg+xml;base64,"))

	_, err = db.CreateUser(ctx, "alice@example.com", "hash", "again")
	assert.True(t, IsUniqueViolation(err))

	byEmail, err := db.GetUserByEmail(ctx, "alice@example.com")
	require.NoError(t, err)
	assert.Equal(t, u.ID, byEmail.ID)

	byHash, err := db.GetUserByHash(ctx, u.UserHash)
	require.NoError(t, err)
	assert.Equal(t, u.Email, byHash.Email)

	_, err = db.GetUserByEmail(ctx, "nobody@example.com")
	assert.True(t, IsNotFound(err))

	require.NoError(t, db.UpdateUserDisplayName(ctx, u.ID, "Alice A."))
	require.NoError(t, db.UpdateUserEmail(ctx, u.ID, "a@example.com"))
	got, err := db.GetUserByID(ctx, u.ID)
	require.NoError(t, err)
	assert.Equal(t, "Alice A.", got.DisplayName)
	assert.Equal(t, "a@example.com", got.Email)

	assert.ErrorIs(t, db.UpdateUserAvatar(ctx, 999, "x"), ErrNotFound)
}

func TestInitializeDefaultAdmin(t *testing.T) {
	ctx := context.Background()
	db := newTestDB(t)
	dir := t.TempDir()
	opts := AdminOptions{
		Email:           "admin@localhost.com",
		DisplayName:     "admin",
		PasswordLength:  32,
		CredentialsDir:  dir,
		CredentialsFile: "dragonbyte_application_password",
	}

	path, err := db.InitializeDefaultAdmin(ctx, opts)
	require.NoError(t, err)
	require.Equal(t, filepath.Join(dir, opts.CredentialsFile), path)

	info, err := os.Stat(path)
	require.NoError(t, err)
	assert.Equal(t, os.FileMode(0o600), info.Mode().Perm())

	content, err := os.ReadFile(path)
	require.NoError(t, err)
	lines := strings.Split(strings.TrimSpace(string(content)), "\n")
	require.Len(t, lines, 2)
	assert.Equal(t, "Username: admin@localhost.com", lines[0])
	password := strings.TrimPrefix(lines[1], "Password: ")
	assert.Len(t, password, 32)

	admin, err := db.GetUserByEmail(ctx, opts.Email)
	require.NoError(t, err)
	assert.NoError(t, bcrypt.CompareHashAndPassword([]byte(admin.PasswordHash), []byte(password)))

	path, err = db.InitializeDefaultAdmin(ctx, opts)
	require.NoError(t, err)
	assert.Empty(t, path, "second run is a no-op")
}

func TestGeneratePassword(t *testing.T) {
	for _, n := range []int{12, 31, 32, 64} {
		p, err := GeneratePassword(n)
		require.NoError(t, err)
		assert.Len(t, p, n)
		assert.NotContains(t, p, "=")
	}
}

func TestCollections(t *testing.T) {
	ctx := context.Background()
	db := newTestDB(t)
	alice := newTestUser(t, db, "alice@example.com")
	bob := newTestUser(t, db, "bob@example.com")

	desc := "things"
	c, err := db.CreateCollection(ctx, alice.ID, "Stuff", &desc)
	require.NoError(t, err)
	assert.Equal(t, "Stuff", c.Name)

	_, err = db.CreateCollection(ctx, alice.ID, "Stuff", nil)
	assert.True(t, IsUniqueViolation(err))

	_, err = db.CreateCollection(ctx, bob.ID, "Stuff", nil)
	assert.NoError(t, err, "names are unique per user")

	_, err = db.GetCollection(ctx, bob.ID, c.ID)
	assert.ErrorIs(t, err, ErrNotFound)

	updated, err := db.UpdateCollection(ctx, alice.ID, c.ID, "Renamed", nil)
	require.NoError(t, err)
	assert.Equal(t, "Renamed", updated.Name)
	assert.Nil(t, updated.Description)

	list, err := db.ListCollections(ctx, alice.ID)
	require.NoError(t, err)
	assert.Len(t, list, 1)

	assert.ErrorIs(t, db.DeleteCollection(ctx, bob.ID, c.ID), ErrNotFound)
	assert.NoError(t, db.DeleteCollection(ctx, alice.ID, c.ID))
}

func TestPosts(t *testing.T) {
	ctx := context.Background()
	db := newTestDB(t)

	at := time.Date(2030, 1, 2, 3, 4, 5, 0, time.UTC)
	p, err := db.CreatePost(ctx, &models.Post{Title: "Hello", Status: "bogus", PublishAt: &at})
	require.NoError(t, err)
	assert.Equal(t, "draft", p.Status)
	assert.Equal(t, "public", p.Visibility)
	assert.Equal(t, "standard", p.Format)
	require.NotNil(t, p.PublishAt)
	assert.True(t, at.Equal(*p.PublishAt))

	p.Status = "published"
	p.PublishAt = nil
	up, err := db.UpdatePost(ctx, p)
	require.NoError(t, err)
	assert.Equal(t, "published", up.Status)
	assert.Nil(t, up.PublishAt)

	_, err = db.UpdatePost(ctx, &models.Post{ID: 999, Title: "x"})
	assert.ErrorIs(t, err, ErrNotFound)

	posts, err := db.ListPosts(ctx)
	require.NoError(t, err)
	assert.Len(t, posts, 1)

	require.NoError(t, db.DeletePost(ctx, p.ID))
	assert.ErrorIs(t, db.DeletePost(ctx, p.ID), ErrNotFound)
}

func TestMedia(t *testing.T) {
	ctx := context.Background()
	db := newTestDB(t)
	u := newTestUser(t, db, "m@example.com")

	m, err := db.CreateMedia(ctx, &models.Media{
		UserID: u.ID, Filename: "abc.png", OriginalName: "cat.png", MimeType: "image/png",
		Size: 10, StorageType: "local", StoragePath: "abc.png", URL: "/uploads/abc.png",
	})
	require.NoError(t, err)

	got, err := db.GetMedia(ctx, u.ID, m.ID)
	require.NoError(t, err)
	assert.Equal(t, "cat.png", got.OriginalName)

	_, err = db.GetMedia(ctx, u.ID+1, m.ID)
	assert.ErrorIs(t, err, ErrNotFound)

	list, err := db.ListMedia(ctx, u.ID)
	require.NoError(t, err)
	assert.Len(t, list, 1)

	require.NoError(t, db.DeleteMedia(ctx, u.ID, m.ID))
}

func TestPlugins(t *testing.T) {
	ctx := context.Background()
	db := newTestDB(t)

	p, err := db.EnsurePlugin(ctx, &models.Plugin{Name: "dzforms", DisplayName: "DragonByteForm"})
	require.NoError(t, err)
	assert.Equal(t, models.DefaultPluginVersion, p.Version)
	assert.False(t, p.IsActive)

	require.NoError(t, db.SetPluginActive(ctx, "dzforms", true))

	p, err = db.EnsurePlugin(ctx, &models.Plugin{Name: "dzforms", DisplayName: "Forms", Version: "1.1.0"})
	require.NoError(t, err)
	assert.True(t, p.IsActive, "re-registering keeps the active flag")
	assert.Equal(t, "1.1.0", p.Version)

	active, err := db.ListActivePlugins(ctx)
	require.NoError(t, err)
	require.Len(t, active, 1)

	assert.ErrorIs(t, db.SetPluginActive(ctx, "missing", true), ErrNotFound)

	added, err := db.AddPlugin(ctx, "gallery")
	require.NoError(t, err)
	assert.Equal(t, "gallery", added.DisplayName)
	assert.False(t, added.IsActive)

	_, err = db.AddPlugin(ctx, "gallery")
	assert.ErrorIs(t, err, ErrUniqueViolation)
}

func TestFormsAndEntries(t *testing.T) {
	ctx := context.Background()
	db := newTestDB(t)

	f, err := db.CreateForm(ctx, "Contact", nil, `[]`)
	require.NoError(t, err)

	e, err := db.CreateFormEntry(ctx, &models.FormEntry{FormID: f.ID, Data: `{"name":"x"}`, IPAddress: "1.2.3.4"})
	require.NoError(t, err)
	assert.Equal(t, f.ID, e.FormID)

	_, err = db.CreateFormEntry(ctx, &models.FormEntry{FormID: 999, Data: `{}`})
	assert.True(t, IsForeignKeyViolation(err))

	entries, err := db.ListFormEntries(ctx, f.ID)
	require.NoError(t, err)
	assert.Len(t, entries, 1)

	updated, err := db.UpdateForm(ctx, f.ID, "Contact us", nil, `[{"id":"1"}]`)
	require.NoError(t, err)
	assert.Equal(t, "Contact us", updated.Name)

	edited, err := db.EditFormFields(ctx, f.ID, func(current string) (string, error) {
		assert.Equal(t, `[{"id":"1"}]`, current)
		return `[{"id":"1"},{"id":"2"}]`, nil
	})
	require.NoError(t, err)
	assert.Equal(t, `[{"id":"1"},{"id":"2"}]`, edited.Fields)
	assert.Equal(t, "Contact us", edited.Name)

	stop := errors.New("rejected")
	_, err = db.EditFormFields(ctx, f.ID, func(string) (string, error) { return "", stop })
	assert.ErrorIs(t, err, stop)
	_, err = db.EditFormFields(ctx, 999, func(s string) (string, error) { return s, nil })
	assert.ErrorIs(t, err, ErrNotFound)

	require.NoError(t, db.DeleteForm(ctx, f.ID))
	entries, err = db.ListFormEntries(ctx, f.ID)
	require.NoError(t, err)
	assert.Empty(t, entries)
	assert.ErrorIs(t, db.DeleteForm(ctx, f.ID), ErrNotFound)
}

func TestSettings(t *testing.T) {
	ctx := context.Background()
	db := newTestDB(t)

	require.NoError(t, db.SeedSettings(ctx))
	login, err := db.GetBoolSetting(ctx, models.SettingPublicLoginEnabled)
	require.NoError(t, err)
	assert.True(t, login)

	require.NoError(t, db.SetSetting(ctx, models.SettingPublicLoginEnabled, "false"))
	require.NoError(t, db.SeedSettings(ctx))
	login, err = db.GetBoolSetting(ctx, models.SettingPublicLoginEnabled)
	require.NoError(t, err)
	assert.False(t, login, "seeding does not overwrite")

	v, err := db.GetSetting(ctx, "unknown")
	require.NoError(t, err)
	assert.Empty(t, v)

	require.NoError(t, db.SetActiveTheme(ctx, "aurora"))
	theme, err := db.GetActiveTheme(ctx)
	require.NoError(t, err)
	assert.Equal(t, "aurora", theme)
}

func TestTeams(t *testing.T) {
	ctx := context.Background()
	db := newTestDB(t)
	owner := newTestUser(t, db, "owner@example.com")
	member := newTestUser(t, db, "member@example.com")

	team, err := db.CreateTeam(ctx, owner.ID, "Editors", nil)
	require.NoError(t, err)

	role, err := db.TeamRole(ctx, team.ID, owner.ID)
	require.NoError(t, err)
	assert.Equal(t, models.RoleOwner, role)

	require.NoError(t, db.SetTeamMember(ctx, team.ID, member.ID, models.RoleMember))
	require.NoError(t, db.SetTeamMember(ctx, team.ID, member.ID, models.RoleAdmin))

	members, err := db.ListTeamMembers(ctx, team.ID)
	require.NoError(t, err)
	require.Len(t, members, 2)

	teams, err := db.ListTeamsForUser(ctx, member.ID)
	require.NoError(t, err)
	require.Len(t, teams, 1)
	assert.Equal(t, models.RoleAdmin, teams[0].Role)

	require.NoError(t, db.RemoveTeamMember(ctx, team.ID, member.ID))
	_, err = db.TeamRole(ctx, team.ID, member.ID)
	assert.ErrorIs(t, err, ErrNotFound)

	require.NoError(t, db.DeleteTeam(ctx, team.ID))
	_, err = db.GetTeam(ctx, team.ID)
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestAdminTables(t *testing.T) {
	ctx := context.Background()
	db := newTestDB(t)
	newTestUser(t, db, "t@example.com")

	tables, err := db.ListTables(ctx)
	require.NoError(t, err)
	assert.Contains(t, tables, "users")
	assert.NotContains(t, tables, "schema_migrations")
	assert.NotContains(t, tables, "sqlite_sequence")

	rows, err := db.TableRows(ctx, "users", 100, 0)
	require.NoError(t, err)
	require.Len(t, rows, 1)
	assert.Equal(t, "[redacted]", rows[0]["password_hash"])
	assert.Equal(t, "t@example.com", rows[0]["email"])

	for _, name := range []string{"nope", "users; DROP TABLE users", "schema_migrations", ""} {
		_, err := db.TableRows(ctx, name, 10, 0)
		assert.ErrorIs(t, err, ErrNotFound, name)
	}

	var emails []any
	require.NoError(t, db.EachTableRow(ctx, "users", func(row map[string]any) error {
		assert.Equal(t, "[redacted]", row["password_hash"])
		emails = append(emails, row["email"])
		return nil
	}))
	assert.Equal(t, []any{"t@example.com"}, emails)

	stop := errors.New("stop")
	assert.ErrorIs(t, db.EachTableRow(ctx, "users", func(map[string]any) error { return stop }), stop)
	assert.ErrorIs(t, db.EachTableRow(ctx, "nope", func(map[string]any) error { return nil }), ErrNotFound)
}

func TestConvertDBError(t *testing.T) {
	other := errors.New("boom")

	tests := []struct {
		name string
		in   error
		want error
	}{
		{"nil", nil, nil},
		{"pgx unique", &pgconn.PgError{Code: "23505"}, ErrUniqueViolation},
		{"pgx fk", &pgconn.PgError{Code: "23503"}, ErrForeignKeyViolation},
		{"pq unique", &pq.Error{Code: "23505"}, ErrUniqueViolation},
		{"pq not null", &pq.Error{Code: "23502"}, ErrNotNullViolation},
		{"sqlite unique", errors.New("constraint failed: UNIQUE constraint failed: users.email (2067)"), ErrUniqueViolation},
		{"sqlite fk", errors.New("FOREIGN KEY constraint failed"), ErrForeignKeyViolation},
		{"passthrough", other, other},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := ConvertDBError(tt.in)
			if tt.want == nil {
				assert.NoError(t, got)
				return
			}
			assert.ErrorIs(t, got, tt.want)
		})
	}
}

func TestQueryErrorsWithSQLMock(t *testing.T) {
	sqlDB, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer sqlDB.Close()

	db, err := New(sqlDB, "pgx", nil)
	require.NoError(t, err)
	ctx := context.Background()

	mock.ExpectQuery(`SELECT .* FROM users WHERE email = \$1`).
		WithArgs("x@example.com").
		WillReturnError(errors.New("connection reset"))
	_, err = db.GetUserByEmail(ctx, "x@example.com")
	assert.ErrorContains(t, err, "connection reset")

	mock.ExpectExec(`DELETE FROM posts WHERE id = \$1`).
		WithArgs(int64(5)).
		WillReturnResult(sqlmock.NewResult(0, 0))
	assert.ErrorIs(t, db.DeletePost(ctx, 5), ErrNotFound)

	mock.ExpectQuery(`INSERT INTO collections`).
		WillReturnError(&pgconn.PgError{Code: "23505", Detail: "Key (user_id, name) already exists."})
	_, err = db.CreateCollection(ctx, 1, "dup", nil)
	assert.True(t, IsUniqueViolation(err))

	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestDeleteFormRollsBack(t *testing.T) {
	sqlDB, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer sqlDB.Close()

	db, err := New(sqlDB, "pgx", nil)
	require.NoError(t, err)

	mock.ExpectBegin()
	mock.ExpectExec(`DELETE FROM form_entries WHERE form_id = \$1`).
		WithArgs(int64(7)).
		WillReturnResult(sqlmock.NewResult(0, 3))
	mock.ExpectExec(`DELETE FROM forms WHERE id = \$1`).
		WithArgs(int64(7)).
		WillReturnError(errors.New("connection reset"))
	mock.ExpectRollback()

	assert.ErrorContains(t, db.DeleteForm(context.Background(), 7), "connection reset")
	assert.NoError(t, mock.ExpectationsWereMet())
}
