package domain

import "time"

// TrustRecord marks one device fingerprint as trusted for a subject, letting
// later logins from it skip MFA until the trust expires or is revoked.
type TrustRecord struct {
	SubjectID   string
	Fingerprint string
	TrustedAt   time.Time
	ExpiresAt   time.Time
	LastUsedAt  *time.Time
}

// Expired reports whether the trust has lapsed at the given instant.
// The boundary is inclusive: a record whose ExpiresAt equals now is expired.
func (r *TrustRecord) Expired(now time.Time) bool {
	return !now.Before(r.ExpiresAt)
}
