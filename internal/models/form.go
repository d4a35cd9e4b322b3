package models

import "time"

// Form is a DragonByteForms definition. Fields holds the JSON encoded field list.
type Form struct {
	ID          int64     `db:"id" json:"id"`
	Name        string    `db:"name" json:"name"`
	Description *string   `db:"description" json:"description,omitempty"`
	Fields      string    `db:"fields" json:"fields"`
	CreatedAt   time.Time `db:"created_at" json:"created_at"`
	UpdatedAt   time.Time `db:"updated_at" json:"updated_at"`
}

// FormEntry is one submission of a form. Data holds the JSON encoded values.
type FormEntry struct {
	ID        int64     `db:"id" json:"id"`
	FormID    int64     `db:"form_id" json:"form_id"`
	Data      string    `db:"data" json:"data"`
	IPAddress string    `db:"ip_address" json:"ip_address"`
	UserAgent string    `db:"user_agent" json:"user_agent"`
	CreatedAt time.Time `db:"created_at" json:"created_at"`
}
