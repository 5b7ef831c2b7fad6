package domain

import "time"

// Verification is a pending email verification code.
type Verification struct {
	Username  string
	Code      string
	ExpiresAt time.Time
}
