package domain

import "time"

// Document is a legal or regulatory document subjects may have to accept
// before finishing a login (e.g. terms of service, e-sign consent).
type Document struct {
	ID        string
	Version   int
	Mandatory bool
	Active    bool
	CreatedAt time.Time
}

// Acceptance records a subject accepting one version of a document.
// A newer document version supersedes the acceptance and re-surfaces the
// document at the next login.
type Acceptance struct {
	SubjectID       string
	DocumentID      string
	DocumentVersion int
	ContextID       string
	AcceptedAt      time.Time
	AcceptedIP      string
}

// Covers reports whether the acceptance satisfies the given document: same
// document and a version at least as new as the published one.
func (a *Acceptance) Covers(doc *Document) bool {
	return a.DocumentID == doc.ID && a.DocumentVersion >= doc.Version
}
