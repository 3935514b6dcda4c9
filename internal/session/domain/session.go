package domain

import "time"

// Session is the server-side record behind a session cookie. It is valid only
// while the stored browser fingerprint matches the requesting browser and the
// stored tenant matches the tenant being served.
type Session struct {
	ID         string
	UserID     string
	BrowserUID string
	TenantID   string
	CreatedAt  time.Time
	ExpiresAt  time.Time
}

// Expired reports whether the session has passed its expiry at the given time.
func (s Session) Expired(now time.Time) bool {
	return !s.ExpiresAt.IsZero() && now.After(s.ExpiresAt)
}
