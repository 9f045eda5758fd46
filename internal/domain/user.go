package domain

import "time"

// User is the authenticated account as reported by the auth service.
type User struct {
	ID        string    `json:"id"`
	Email     string    `json:"email"`
	CreatedAt time.Time `json:"created_at,omitzero"`
}

// UserRow is the application's own users table row, inserted after sign up.
type UserRow struct {
	ID string `json:"id"`
}
