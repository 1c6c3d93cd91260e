package domain

import (
	"strings"
	"time"
)

// TokenRecord is the persisted state of one opaque refresh token. Only the
// SHA-256 hash of the secret half is stored.
type TokenRecord struct {
	ID         string
	SessionID  string
	SecretHash string
	Revoked    bool
	ExpiresAt  time.Time
	CreatedAt  time.Time
}

// Expired reports whether the record has expired at the given instant.
// The boundary is inclusive: a record whose ExpiresAt equals now is expired.
func (r *TokenRecord) Expired(now time.Time) bool {
	return !now.Before(r.ExpiresAt)
}

// TokenSet is the bundle returned to a fully authenticated client.
type TokenSet struct {
	AccessToken   string
	IdentityToken string
	RefreshToken  string
	TokenType     string
	ExpiresAt     time.Time
}

// FormatRefresh assembles the wire form of an opaque refresh token: the record
// id and the raw secret joined by a dot.
func FormatRefresh(recordID, secret string) string {
	return recordID + "." + secret
}

// SplitRefresh splits a wire-form refresh token into record id and secret.
// ok is false when the token is not in the expected two-part form.
func SplitRefresh(token string) (recordID, secret string, ok bool) {
	i := strings.IndexByte(token, '.')
	if i <= 0 || i == len(token)-1 {
		return "", "", false
	}
	return token[:i], token[i+1:], true
}
