package domain

import "time"

// Session represents an authenticated subject session tied to a device.
type Session struct {
	ID         string
	SubjectID  string
	DeviceID   string
	ClientIP   string
	UserAgent  string
	Active     bool
	ExpiresAt  time.Time
	LastSeenAt *time.Time
	CreatedAt  time.Time
}

// Expired reports whether the session has expired at the given instant.
// The boundary is inclusive: a session whose ExpiresAt equals now is expired.
func (s *Session) Expired(now time.Time) bool {
	return !now.Before(s.ExpiresAt)
}

// Live reports whether the session is active and not expired at the given instant.
func (s *Session) Live(now time.Time) bool {
	return s.Active && !s.Expired(now)
}
