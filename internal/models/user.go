package models

import "time"

// User is an account that can sign in to the admin
type User struct {
	ID           int64     `db:"id" json:"-"`
	Email        string    `db:"email" json:"email"`
	PasswordHash string    `db:"password_hash" json:"-"`
	DisplayName  string    `db:"display_name" json:"display_name"`
	AvatarURL    string    `db:"avatar_url" json:"avatar_url"`
	UserHash     string    `db:"user_hash" json:"user_id"`
	CreatedAt    time.Time `db:"created_at" json:"created_at"`
	UpdatedAt    time.Time `db:"updated_at" json:"updated_at"`
}

// Profile is the public view of a user returned by /api/me
type Profile struct {
	Email       string `json:"email"`
	AvatarURL   string `json:"avatar_url"`
	UserID      string `json:"user_id"`
	DisplayName string `json:"display_name"`
}

// Profile returns the public view of u
func (u *User) Profile() Profile {
	return Profile{
		Email:       u.Email,
		AvatarURL:   u.AvatarURL,
		UserID:      u.UserHash,
		DisplayName: u.DisplayName,
	}
}
