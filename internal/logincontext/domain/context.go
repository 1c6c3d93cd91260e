package domain

import "time"

// Context tracks one login attempt from credential check to token issuance.
// The orchestrator advances it through MFA, compliance, and device binding;
// Consumed is set once tokens have been issued for it.
type Context struct {
	ID                    string
	SubjectID             string
	SessionID             string
	DeviceFingerprint     string
	ClientIP              string
	UserAgent             string
	MfaRequired           bool
	MfaCompleted          bool
	ApprovedTransactionID string
	ComplianceDone        bool
	// DeclinedDocumentIDs lists optional compliance documents the caller
	// dismissed for this login. Declines do not carry over to the next login.
	DeclinedDocumentIDs []string
	BindOffered         bool
	Consumed            bool
	ExpiresAt           time.Time
	CreatedAt           time.Time
}

// DocumentDeclined reports whether the document was dismissed for this login.
func (c *Context) DocumentDeclined(documentID string) bool {
	for _, id := range c.DeclinedDocumentIDs {
		if id == documentID {
			return true
		}
	}
	return false
}

// DeclineDocument marks the document dismissed for this login. Idempotent.
func (c *Context) DeclineDocument(documentID string) {
	if c.DocumentDeclined(documentID) {
		return
	}
	c.DeclinedDocumentIDs = append(c.DeclinedDocumentIDs, documentID)
}

// Expired reports whether the context has lapsed at the given instant. The
// expiry instant itself counts as expired.
func (c *Context) Expired(now time.Time) bool {
	return !now.Before(c.ExpiresAt)
}

// Usable reports whether the context can still advance: not consumed and not
// expired.
func (c *Context) Usable(now time.Time) bool {
	return !c.Consumed && !c.Expired(now)
}
