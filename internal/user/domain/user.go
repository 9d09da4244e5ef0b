package domain

import "time"

// User is an account record. PasswordHash never leaves the service:
// it is excluded from JSON serialization.
type User struct {
	ID           string    `json:"id"`
	Username     string    `json:"username"`
	Email        string    `json:"email"`
	PasswordHash string    `json:"-"`
	CreatedAt    time.Time `json:"createdAt"`
}
