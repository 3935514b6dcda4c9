package domain

import "time"

// RecoveryKey is a single-use secret mailed to a user to authorize a password
// reset. It is consumed exactly once; consuming it generates a fresh password.
type RecoveryKey struct {
	Key       string
	UserID    string
	CreatedAt time.Time
	ExpiresAt time.Time
}
