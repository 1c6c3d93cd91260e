package domain

import (
	"errors"
	"time"
)

// Subject is the authenticating principal.
type Subject struct {
	ID           string
	Username     string
	PasswordHash string
	Phone        string // optional; target for sms/voice OTP delivery
	PushDeviceID string // optional; set when a push authenticator is enrolled
	Status       SubjectStatus
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

type SubjectStatus string

const (
	SubjectStatusActive    SubjectStatus = "active"
	SubjectStatusLocked    SubjectStatus = "locked"
	SubjectStatusMfaLocked SubjectStatus = "mfa_locked"
)

// CanAuthenticate reports whether login may proceed for this subject.
func (s *Subject) CanAuthenticate() bool {
	return s.Status == SubjectStatusActive
}

// MfaMethods returns the MFA methods the subject can use given enrolled factors.
func (s *Subject) MfaMethods() []string {
	var methods []string
	if s.Phone != "" {
		methods = append(methods, "sms", "voice")
	}
	if s.PushDeviceID != "" {
		methods = append(methods, "push")
	}
	return methods
}

// Validate validates the subject for persistence. Returns an error describing the first validation failure.
func (s *Subject) Validate() error {
	if s.Username == "" {
		return errors.New("username is required")
	}
	if s.PasswordHash == "" {
		return errors.New("password hash is required")
	}
	if s.Status == "" {
		s.Status = SubjectStatusActive
	}
	return nil
}
