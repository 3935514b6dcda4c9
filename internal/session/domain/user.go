package domain

import "time"

// UserStatus is the account status stored by the platform. The numeric values
// are shared with the host CMS and must not change.
type UserStatus int

const (
	StatusDisabled UserStatus = 0
	StatusEnabled  UserStatus = 1
	StatusPending  UserStatus = -201
)

// Restricted reports whether the status blocks frontend sign-in. Pending is
// handled separately because it redirects to a dedicated state.
func (s UserStatus) Restricted() bool {
	return s != StatusEnabled
}

// User is an account in the platform's user directory. The ID doubles as the
// login name.
type User struct {
	ID                 string
	Firstname          string
	Displayname        string
	Email              string
	URL                string
	PasswordHash       string // argon2 encoded
	Status             UserStatus
	SuperAdmin         bool
	MustChangePassword bool
	CreatedAt          time.Time
	UpdatedAt          time.Time
}

// DisplayName returns the name shown on the session page.
func (u User) DisplayName() string {
	if u.Displayname != "" {
		return u.Displayname
	}
	return u.ID
}
