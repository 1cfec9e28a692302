package user

import "time"

// User mirrors an identity-provider account inside the backend.
type User struct {
	ID          string    `json:"id"`
	Email       string    `json:"email"`
	DisplayName string    `json:"display_name"`
	CreatedAt   time.Time `json:"created_at"`
}

// Identity is the verified caller of a request.
type Identity struct {
	ID          string
	Email       string
	DisplayName string
}
