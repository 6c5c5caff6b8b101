package auth

import "time"

// User is an authenticatable principal with a single assigned role.
type User struct {
	ID           int64
	Email        string
	PasswordHash string
	RoleSlug     string
	IsActive     bool
	CreatedAt    time.Time
}
