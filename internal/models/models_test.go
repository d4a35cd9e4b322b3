package models

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPostNormalize(t *testing.T) {
	tests := []struct {
		name string
		in   Post
		want Post
	}{
		{
			name: "empty values get defaults",
			in:   Post{},
			want: Post{Status: "draft", Visibility: "public", Format: "standard"},
		},
		{
			name: "valid values kept",
			in:   Post{Status: "published", Visibility: "password", Format: "gallery"},
			want: Post{Status: "published", Visibility: "password", Format: "gallery"},
		},
		{
			name: "unknown values replaced",
			in:   Post{Status: "archived", Visibility: "secret", Format: "poem"},
			want: Post{Status: "draft", Visibility: "public", Format: "standard"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p := tt.in
			p.Normalize()
			assert.Equal(t, tt.want, p)
		})
	}
}

func TestUserJSONHidesSecrets(t *testing.T) {
	u := User{ID: 7, Email: "a@b.c", PasswordHash: "hash", UserHash: "public-id"}

	b, err := json.Marshal(u)
	require.NoError(t, err)

	var m map[string]any
	require.NoError(t, json.Unmarshal(b, &m))
	assert.NotContains(t, m, "password_hash")
	assert.NotContains(t, m, "id")
	assert.Equal(t, "public-id", m["user_id"])
}

func TestProfile(t *testing.T) {
	u := &User{Email: "a@b.c", DisplayName: "a", AvatarURL: "data:x", UserHash: "h"}
	assert.Equal(t, Profile{Email: "a@b.c", DisplayName: "a", AvatarURL: "data:x", UserID: "h"}, u.Profile())
}

func TestValidRole(t *testing.T) {
	assert.True(t, ValidRole(RoleOwner))
	assert.True(t, ValidRole(RoleMember))
	assert.False(t, ValidRole("guest"))
}

func TestEditableSetting(t *testing.T) {
	assert.True(t, EditableSetting(SettingPublicRegisterEnabled))
	assert.False(t, EditableSetting(SettingActiveTheme))
}
