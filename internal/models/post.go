package models

import "time"

// Post status values
const (
	PostStatusDraft     = "draft"
	PostStatusPublished = "published"
)

// Post visibility values
const (
	VisibilityPublic   = "public"
	VisibilityPrivate  = "private"
	VisibilityPassword = "password"
)

// FormatStandard is the default post format
const FormatStandard = "standard"

var (
	postStatuses = map[string]bool{PostStatusDraft: true, PostStatusPublished: true}
	visibilities = map[string]bool{VisibilityPublic: true, VisibilityPrivate: true, VisibilityPassword: true}
	postFormats  = map[string]bool{
		FormatStandard: true, "aside": true, "image": true, "video": true,
		"audio": true, "quote": true, "link": true, "gallery": true,
	}
)

type Post struct {
	ID         int64      `db:"id" json:"id"`
	Title      string     `db:"title" json:"title"`
	Content    string     `db:"content" json:"content"`
	Status     string     `db:"status" json:"status"`
	Visibility string     `db:"visibility" json:"visibility"`
	Format     string     `db:"format" json:"format"`
	Excerpt    string     `db:"excerpt" json:"excerpt"`
	PublishAt  *time.Time `db:"publish_at" json:"publish_at"`
	CreatedAt  time.Time  `db:"created_at" json:"created_at"`
	UpdatedAt  time.Time  `db:"updated_at" json:"updated_at"`
}

// Normalize replaces unknown status, visibility and format values with their defaults
func (p *Post) Normalize() {
	if !postStatuses[p.Status] {
		p.Status = PostStatusDraft
	}
	if !visibilities[p.Visibility] {
		p.Visibility = VisibilityPublic
	}
	if !postFormats[p.Format] {
		p.Format = FormatStandard
	}
}
