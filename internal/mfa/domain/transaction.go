package domain

import "time"

// Method is the MFA delivery method for a transaction.
type Method string

const (
	MethodSMS   Method = "sms"
	MethodVoice Method = "voice"
	MethodPush  Method = "push"
)

// Valid reports whether m is a known method.
func (m Method) Valid() bool {
	return m == MethodSMS || m == MethodVoice || m == MethodPush
}

// OTP reports whether the method delivers a one-time code the client submits.
func (m Method) OTP() bool {
	return m == MethodSMS || m == MethodVoice
}

// Status is the lifecycle state of an MFA transaction.
type Status string

const (
	StatusPending  Status = "PENDING"
	StatusApproved Status = "APPROVED"
	StatusRejected Status = "REJECTED"
	StatusExpired  Status = "EXPIRED"
)

// Terminal reports whether the status is final. Terminal transactions never
// change state again.
func (s Status) Terminal() bool {
	return s == StatusApproved || s == StatusRejected || s == StatusExpired
}

// Transaction is one MFA challenge bound to a login context. At most one
// PENDING transaction exists per context at a time.
type Transaction struct {
	ID            string
	ContextID     string
	SubjectID     string
	Method        Method
	Status        Status
	SecretHash    string // OTP hash for sms/voice; empty for push
	DisplayNumber string // two-digit number shown for push confirmation; empty otherwise
	Attempts      int
	ExpiresAt     time.Time
	ResolvedAt    *time.Time
	CreatedAt     time.Time
}

// Expired reports whether the transaction has expired at the given instant.
// The boundary is inclusive: a transaction whose ExpiresAt equals now is expired.
func (t *Transaction) Expired(now time.Time) bool {
	return !now.Before(t.ExpiresAt)
}
