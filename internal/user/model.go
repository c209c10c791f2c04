package user

import "time"

const (
	RoleUser  = "user"
	RoleAdmin = "admin"
)

type User struct {
	ID           string
	Username     string
	Email        string
	Phone        string
	PasswordHash string
	Role         string
	IsActive     bool
	IsBlocked    bool
	CreatedAt    time.Time
	UpdatedAt    time.Time
}
