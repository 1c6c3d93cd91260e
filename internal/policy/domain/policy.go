package domain

import "time"

// Policy is a stored Rego module that overrides the built-in step-up policy
// when enabled.
type Policy struct {
	ID        string
	Rules     string
	Enabled   bool
	CreatedAt time.Time
}
