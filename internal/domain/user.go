package domain

import "time"

// User is a registered guitar student. Username is the login email.
type User struct {
	ID           int64
	Username     string
	PasswordHash string
	Name         string
	Role         Role
	Level        int
	IsActive     bool
	CreatedAt    time.Time
}
