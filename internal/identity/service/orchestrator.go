package service

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"

	"ciam-core/backend/internal/audit"
	compliancedomain "ciam-core/backend/internal/compliance/domain"
	devicetrustdomain "ciam-core/backend/internal/devicetrust/domain"
	lcdomain "ciam-core/backend/internal/logincontext/domain"
	mfadomain "ciam-core/backend/internal/mfa/domain"
	mfaservice "ciam-core/backend/internal/mfa/service"
	"ciam-core/backend/internal/policy/engine"
	"ciam-core/backend/internal/security"
	sessiondomain "ciam-core/backend/internal/session/domain"
	subjectdomain "ciam-core/backend/internal/subject/domain"
	"ciam-core/backend/internal/telemetry"
	tokendomain "ciam-core/backend/internal/token/domain"
)

// Sentinel errors for the orchestrator; the HTTP layer maps them to status codes.
var (
	// ErrInvalidCredentials covers both unknown username and wrong password so
	// responses cannot be used for account enumeration.
	ErrInvalidCredentials = errors.New("invalid credentials")
	ErrAccountLocked      = errors.New("account locked")
	ErrMfaLocked          = errors.New("account locked after mfa failures")
	ErrContextNotFound    = errors.New("login context not found")
	ErrContextExpired     = errors.New("login context expired or already used")
	// ErrTransactionMismatch is returned when the supplied transaction id does
	// not correlate with the context's approved challenge.
	ErrTransactionMismatch = errors.New("transaction does not belong to this login")
	// ErrMfaNotApproved is returned when a push challenge has not been approved
	// yet; the caller should keep polling.
	ErrMfaNotApproved = errors.New("mfa challenge not approved yet")
	ErrMfaRejected    = errors.New("mfa challenge rejected")
	ErrBindNotOffered = errors.New("device binding was not offered")
)

// Step names the next action a login flow needs from the caller.
type Step string

const (
	StepMfaRequired        Step = "MFA_REQUIRED"
	StepComplianceRequired Step = "COMPLIANCE_REQUIRED"
	StepDeviceBindOffered  Step = "DEVICE_BIND_OFFERED"
	StepSuccess            Step = "SUCCESS"
)

// Outcome is the typed result of one orchestrator call. Exactly the fields
// relevant to Step are populated.
type Outcome struct {
	Step      Step
	ContextID string
	// MfaMethods lists the factors the subject can answer with (StepMfaRequired).
	MfaMethods []string
	// Transaction is the active challenge, when one has been initiated.
	Transaction *mfadomain.Transaction
	// Documents are the outstanding mandatory documents (StepComplianceRequired).
	Documents []*compliancedomain.Document
	// Tokens is the issued token set (StepSuccess).
	Tokens *tokendomain.TokenSet
}

// LoginRequest carries the credentials and device signal of one login attempt.
type LoginRequest struct {
	Username          string
	Password          string
	DeviceFingerprint string
	ClientIP          string
	UserAgent         string
}

// SubjectRepo is the minimal subject repository needed by the orchestrator.
type SubjectRepo interface {
	GetByUsername(ctx context.Context, username string) (*subjectdomain.Subject, error)
	GetByID(ctx context.Context, id string) (*subjectdomain.Subject, error)
}

// ContextRepo is the minimal login context repository needed by the orchestrator.
type ContextRepo interface {
	GetByID(ctx context.Context, id string) (*lcdomain.Context, error)
	Create(ctx context.Context, c *lcdomain.Context) error
	Update(ctx context.Context, c *lcdomain.Context) error
	Consume(ctx context.Context, id string) (bool, error)
}

// SessionRegistry is the session surface the orchestrator drives.
type SessionRegistry interface {
	Create(ctx context.Context, subjectID, deviceID, clientIP, userAgent string) (*sessiondomain.Session, error)
	Get(ctx context.Context, id string) (*sessiondomain.Session, error)
	Deactivate(ctx context.Context, id string) error
	ListForSubject(ctx context.Context, subjectID string) ([]*sessiondomain.Session, error)
	DeactivateAllForSubject(ctx context.Context, subjectID string) error
}

// MfaManager is the challenge surface the orchestrator drives.
type MfaManager interface {
	Initiate(ctx context.Context, contextID, subjectID string, method mfadomain.Method, phone, pushDeviceID string) (*mfadomain.Transaction, error)
	VerifyOtp(ctx context.Context, contextID, code string) (*mfadomain.Transaction, error)
	GetStatus(ctx context.Context, contextID string) (*mfaservice.TransactionStatus, error)
	CancelPendingForSubject(ctx context.Context, subjectID string) error
}

// DeviceTrust is the trust surface the orchestrator drives.
type DeviceTrust interface {
	IsTrusted(ctx context.Context, subjectID, fingerprint string) (bool, error)
	Bind(ctx context.Context, subjectID, fingerprint string, ttlDays int) (*devicetrustdomain.TrustRecord, error)
	RevokeAll(ctx context.Context, subjectID string) error
}

// ComplianceTracker is the e-sign surface the orchestrator drives.
type ComplianceTracker interface {
	Outstanding(ctx context.Context, subjectID string) ([]*compliancedomain.Document, error)
	RecordAcceptance(ctx context.Context, subjectID, documentID, contextID, clientIP string) (*compliancedomain.Acceptance, error)
	Decline(ctx context.Context, subjectID, documentID string) (*compliancedomain.Document, error)
}

// TokenService is the token surface the orchestrator drives.
type TokenService interface {
	IssueSet(ctx context.Context, session *sessiondomain.Session, subject *subjectdomain.Subject, roles, amr []string) (*tokendomain.TokenSet, error)
	Rotate(ctx context.Context, refreshToken string) (*tokendomain.TokenSet, error)
	RevokeSession(ctx context.Context, sessionID string) error
}

// PolicyEvaluator decides the step-up requirement for a login.
type PolicyEvaluator interface {
	EvaluateMFA(ctx context.Context, in engine.Input) (engine.MFAResult, error)
}

// Orchestrator composes subjects, sessions, MFA, device trust, compliance, and
// tokens into the end-to-end login flow. It is the only caller-facing service;
// every pause point is resumable solely through the persisted login context.
type Orchestrator struct {
	subjects   SubjectRepo
	contexts   ContextRepo
	sessions   SessionRegistry
	mfa        MfaManager
	devices    DeviceTrust
	compliance ComplianceTracker
	tokens     TokenService
	policy     PolicyEvaluator
	hasher     *security.Hasher
	audit      audit.AuditLogger
	events     telemetry.EventEmitter

	contextTTL        time.Duration
	mfaRequiredAlways bool
	defaultTrustDays  int

	now func() time.Time
}

// NewOrchestrator returns an auth Orchestrator. auditLogger and events may be nil.
func NewOrchestrator(
	subjects SubjectRepo,
	contexts ContextRepo,
	sessions SessionRegistry,
	mfaManager MfaManager,
	devices DeviceTrust,
	complianceTracker ComplianceTracker,
	tokens TokenService,
	policy PolicyEvaluator,
	hasher *security.Hasher,
	auditLogger audit.AuditLogger,
	events telemetry.EventEmitter,
	contextTTL time.Duration,
	mfaRequiredAlways bool,
	defaultTrustDays int,
) *Orchestrator {
	return &Orchestrator{
		subjects:          subjects,
		contexts:          contexts,
		sessions:          sessions,
		mfa:               mfaManager,
		devices:           devices,
		compliance:        complianceTracker,
		tokens:            tokens,
		policy:            policy,
		hasher:            hasher,
		audit:             auditLogger,
		events:            events,
		contextTTL:        contextTTL,
		mfaRequiredAlways: mfaRequiredAlways,
		defaultTrustDays:  defaultTrustDays,
		now:               func() time.Time { return time.Now().UTC() },
	}
}

// Login validates credentials, creates a session and a login context, and
// either pauses for MFA or advances straight through compliance and token
// issuance when the device is trusted.
func (o *Orchestrator) Login(ctx context.Context, req LoginRequest) (*Outcome, error) {
	if req.Username == "" || req.Password == "" {
		return nil, ErrInvalidCredentials
	}
	subject, err := o.subjects.GetByUsername(ctx, req.Username)
	if err != nil {
		return nil, err
	}
	if subject == nil {
		// Burn a bcrypt comparison so the response time does not reveal
		// whether the username exists.
		_ = o.hasher.Compare(security.DummyPasswordHash, []byte(req.Password))
		o.securityEvent(ctx, "login_failed", "", "", req.ClientIP)
		return nil, ErrInvalidCredentials
	}
	// Locked accounts answer the same way whether or not the password is
	// right; there is nothing useful to learn from probing them.
	switch subject.Status {
	case subjectdomain.SubjectStatusLocked:
		o.securityEvent(ctx, "login_locked", subject.ID, "", req.ClientIP)
		return nil, ErrAccountLocked
	case subjectdomain.SubjectStatusMfaLocked:
		o.securityEvent(ctx, "login_mfa_locked", subject.ID, "", req.ClientIP)
		return nil, ErrMfaLocked
	}
	if err := o.hasher.Compare(subject.PasswordHash, []byte(req.Password)); err != nil {
		o.securityEvent(ctx, "login_failed", subject.ID, "", req.ClientIP)
		return nil, ErrInvalidCredentials
	}

	// A fresh login supersedes any challenge still pending from an earlier,
	// abandoned attempt by this subject.
	if err := o.mfa.CancelPendingForSubject(ctx, subject.ID); err != nil {
		return nil, err
	}

	session, err := o.sessions.Create(ctx, subject.ID, req.DeviceFingerprint, req.ClientIP, req.UserAgent)
	if err != nil {
		return nil, err
	}

	trusted, err := o.devices.IsTrusted(ctx, subject.ID, req.DeviceFingerprint)
	if err != nil {
		return nil, err
	}
	decision, err := o.policy.EvaluateMFA(ctx, engine.Input{
		DeviceFingerprint:   req.DeviceFingerprint,
		DeviceTrusted:       trusted,
		SubjectHasPhone:     subject.Phone != "",
		SubjectHasPush:      subject.PushDeviceID != "",
		MFARequiredAlways:   o.mfaRequiredAlways,
		DefaultTrustTTLDays: o.defaultTrustDays,
	})
	if err != nil {
		return nil, err
	}

	now := o.now()
	lc := &lcdomain.Context{
		ID:                uuid.New().String(),
		SubjectID:         subject.ID,
		SessionID:         session.ID,
		DeviceFingerprint: req.DeviceFingerprint,
		ClientIP:          req.ClientIP,
		UserAgent:         req.UserAgent,
		MfaRequired:       decision.MFARequired,
		ExpiresAt:         now.Add(o.contextTTL),
		CreatedAt:         now,
	}
	if err := o.contexts.Create(ctx, lc); err != nil {
		return nil, err
	}
	if o.audit != nil {
		o.audit.LogEvent(ctx, subject.ID, "login_started", "auth", lc.ID)
	}

	if lc.MfaRequired {
		return &Outcome{
			Step:       StepMfaRequired,
			ContextID:  lc.ID,
			MfaMethods: subject.MfaMethods(),
		}, nil
	}
	return o.advance(ctx, lc, subject)
}

// InitiateMfa starts (or restarts) a challenge for a paused login. Re-initiating
// after a rejected or expired challenge is how the caller retries.
func (o *Orchestrator) InitiateMfa(ctx context.Context, contextID, method string) (*Outcome, error) {
	lc, subject, err := o.resume(ctx, contextID)
	if err != nil {
		return nil, err
	}
	if !lc.MfaRequired || lc.MfaCompleted {
		return nil, ErrContextExpired
	}
	tx, err := o.mfa.Initiate(ctx, lc.ID, subject.ID, mfadomain.Method(method), subject.Phone, subject.PushDeviceID)
	if err != nil {
		return nil, err
	}
	return &Outcome{
		Step:        StepMfaRequired,
		ContextID:   lc.ID,
		MfaMethods:  subject.MfaMethods(),
		Transaction: tx,
	}, nil
}

// VerifyMfa completes the MFA step. For sms/voice the submitted code is checked
// against the pending challenge; for push an empty code checks that the webhook
// has approved the challenge. On success the flow re-runs compliance, bind
// offer, and token issuance.
func (o *Orchestrator) VerifyMfa(ctx context.Context, contextID, transactionID, code string) (*Outcome, error) {
	lc, subject, err := o.resume(ctx, contextID)
	if err != nil {
		return nil, err
	}
	if !lc.MfaRequired {
		return nil, ErrContextExpired
	}
	if lc.MfaCompleted {
		// Idempotent re-submit after approval.
		return o.advance(ctx, lc, subject)
	}

	var tx *mfadomain.Transaction
	if code != "" {
		// Correlate before resolving: a correct code submitted against the
		// wrong transaction id must leave the challenge untouched.
		if transactionID != "" {
			st, err := o.mfa.GetStatus(ctx, lc.ID)
			if err != nil {
				return nil, err
			}
			if st.Transaction.ID != transactionID {
				return nil, ErrTransactionMismatch
			}
		}
		tx, err = o.mfa.VerifyOtp(ctx, lc.ID, code)
		if err != nil {
			if errors.Is(err, mfaservice.ErrInvalidCode) {
				o.securityEvent(ctx, "mfa_code_mismatch", subject.ID, lc.ID, lc.ClientIP)
			}
			return nil, err
		}
	} else {
		st, err := o.mfa.GetStatus(ctx, lc.ID)
		if err != nil {
			return nil, err
		}
		tx = st.Transaction
		if transactionID != "" && tx.ID != transactionID {
			return nil, ErrTransactionMismatch
		}
		switch tx.Status {
		case mfadomain.StatusApproved:
		case mfadomain.StatusPending:
			return nil, ErrMfaNotApproved
		case mfadomain.StatusRejected:
			return nil, ErrMfaRejected
		default:
			return nil, mfaservice.ErrTransactionExpired
		}
	}

	lc.MfaCompleted = true
	lc.ApprovedTransactionID = tx.ID
	if err := o.contexts.Update(ctx, lc); err != nil {
		return nil, err
	}
	if o.audit != nil {
		o.audit.LogEvent(ctx, subject.ID, "mfa_completed", "auth", lc.ID)
	}
	return o.advance(ctx, lc, subject)
}

// AcceptCompliance records the subject's acceptance of a pending document and
// re-runs the remaining steps.
func (o *Orchestrator) AcceptCompliance(ctx context.Context, contextID, transactionID, documentID string) (*Outcome, error) {
	lc, subject, err := o.resume(ctx, contextID)
	if err != nil {
		return nil, err
	}
	if err := o.correlate(lc, transactionID); err != nil {
		return nil, err
	}
	if _, err := o.compliance.RecordAcceptance(ctx, subject.ID, documentID, lc.ID, lc.ClientIP); err != nil {
		return nil, err
	}
	return o.advance(ctx, lc, subject)
}

// DeclineCompliance dismisses an optional document for this login without
// recording acceptance; it surfaces again on the next login. Mandatory
// documents cannot be declined.
func (o *Orchestrator) DeclineCompliance(ctx context.Context, contextID, transactionID, documentID string) (*Outcome, error) {
	lc, subject, err := o.resume(ctx, contextID)
	if err != nil {
		return nil, err
	}
	if err := o.correlate(lc, transactionID); err != nil {
		return nil, err
	}
	doc, err := o.compliance.Decline(ctx, subject.ID, documentID)
	if err != nil {
		return nil, err
	}
	lc.DeclineDocument(doc.ID)
	if err := o.contexts.Update(ctx, lc); err != nil {
		return nil, err
	}
	return o.advance(ctx, lc, subject)
}

// BindDevice resolves the device-bind offer. With consent the fingerprint is
// registered as trusted; without it the flow proceeds to token issuance anyway.
func (o *Orchestrator) BindDevice(ctx context.Context, contextID, transactionID string, consent bool) (*Outcome, error) {
	lc, subject, err := o.resume(ctx, contextID)
	if err != nil {
		return nil, err
	}
	if !lc.BindOffered {
		return nil, ErrBindNotOffered
	}
	if err := o.correlate(lc, transactionID); err != nil {
		return nil, err
	}
	if consent && lc.DeviceFingerprint != "" {
		ttl := o.defaultTrustDays
		if decision, err := o.policy.EvaluateMFA(ctx, engine.Input{
			DeviceFingerprint:   lc.DeviceFingerprint,
			SubjectHasPhone:     subject.Phone != "",
			SubjectHasPush:      subject.PushDeviceID != "",
			MFARequiredAlways:   o.mfaRequiredAlways,
			DefaultTrustTTLDays: o.defaultTrustDays,
		}); err == nil && decision.TrustTTLDays > 0 {
			ttl = decision.TrustTTLDays
		}
		if _, err := o.devices.Bind(ctx, subject.ID, lc.DeviceFingerprint, ttl); err != nil {
			return nil, err
		}
	}
	return o.advance(ctx, lc, subject)
}

// Refresh rotates the presented refresh token and returns a fresh token set.
func (o *Orchestrator) Refresh(ctx context.Context, refreshToken string) (*tokendomain.TokenSet, error) {
	set, err := o.tokens.Rotate(ctx, refreshToken)
	if err != nil {
		return nil, err
	}
	return set, nil
}

// Logout revokes every refresh token of the session and deactivates it.
// Unknown sessions are a no-op.
func (o *Orchestrator) Logout(ctx context.Context, sessionID string) error {
	if sessionID == "" {
		return nil
	}
	if err := o.tokens.RevokeSession(ctx, sessionID); err != nil {
		return err
	}
	if err := o.sessions.Deactivate(ctx, sessionID); err != nil {
		return err
	}
	if o.audit != nil {
		o.audit.LogEvent(ctx, "", "logout", "auth", sessionID)
	}
	return nil
}

// LogoutAll ends every session of the subject: each session's refresh token
// chain is revoked, the sessions are deactivated, and device trust is dropped
// so the next login starts from scratch.
func (o *Orchestrator) LogoutAll(ctx context.Context, subjectID string) error {
	if subjectID == "" {
		return nil
	}
	sessions, err := o.sessions.ListForSubject(ctx, subjectID)
	if err != nil {
		return err
	}
	for _, s := range sessions {
		if err := o.tokens.RevokeSession(ctx, s.ID); err != nil {
			return err
		}
	}
	if err := o.sessions.DeactivateAllForSubject(ctx, subjectID); err != nil {
		return err
	}
	if err := o.devices.RevokeAll(ctx, subjectID); err != nil {
		return err
	}
	if o.audit != nil {
		o.audit.LogEvent(ctx, subjectID, "logout_all", "auth", "")
	}
	return nil
}

// resume loads a usable login context and its subject, or fails with the
// context-level sentinel the caller maps to a response.
func (o *Orchestrator) resume(ctx context.Context, contextID string) (*lcdomain.Context, *subjectdomain.Subject, error) {
	if contextID == "" {
		return nil, nil, ErrContextNotFound
	}
	lc, err := o.contexts.GetByID(ctx, contextID)
	if err != nil {
		return nil, nil, err
	}
	if lc == nil {
		return nil, nil, ErrContextNotFound
	}
	if !lc.Usable(o.now()) {
		return nil, nil, ErrContextExpired
	}
	subject, err := o.subjects.GetByID(ctx, lc.SubjectID)
	if err != nil {
		return nil, nil, err
	}
	if subject == nil {
		return nil, nil, ErrContextNotFound
	}
	switch subject.Status {
	case subjectdomain.SubjectStatusLocked:
		return nil, nil, ErrAccountLocked
	case subjectdomain.SubjectStatusMfaLocked:
		return nil, nil, ErrMfaLocked
	}
	return lc, subject, nil
}

// correlate checks that a step submission belongs to the context's approved
// challenge. Contexts that never required MFA carry no transaction to match.
func (o *Orchestrator) correlate(lc *lcdomain.Context, transactionID string) error {
	if !lc.MfaRequired {
		return nil
	}
	if !lc.MfaCompleted {
		return ErrMfaNotApproved
	}
	if transactionID != "" && transactionID != lc.ApprovedTransactionID {
		return ErrTransactionMismatch
	}
	return nil
}

// advance re-runs the tail of the login sequence: compliance gate, device-bind
// offer, then token issuance. Called from every step once its own work is done.
func (o *Orchestrator) advance(ctx context.Context, lc *lcdomain.Context, subject *subjectdomain.Subject) (*Outcome, error) {
	if !lc.ComplianceDone {
		docs, err := o.compliance.Outstanding(ctx, subject.ID)
		if err != nil {
			return nil, err
		}
		// Optional documents dismissed for this login no longer gate it.
		pending := docs[:0]
		for _, d := range docs {
			if d.Mandatory || !lc.DocumentDeclined(d.ID) {
				pending = append(pending, d)
			}
		}
		if len(pending) > 0 {
			return &Outcome{
				Step:      StepComplianceRequired,
				ContextID: lc.ID,
				Documents: pending,
			}, nil
		}
		lc.ComplianceDone = true
		if err := o.contexts.Update(ctx, lc); err != nil {
			return nil, err
		}
	}

	// Device binding is only offered on the MFA path: a trusted device needs
	// no new trust, and an unverified login must not mint one.
	if lc.MfaRequired && lc.MfaCompleted && !lc.BindOffered && lc.DeviceFingerprint != "" {
		lc.BindOffered = true
		if err := o.contexts.Update(ctx, lc); err != nil {
			return nil, err
		}
		return &Outcome{
			Step:      StepDeviceBindOffered,
			ContextID: lc.ID,
		}, nil
	}

	return o.issue(ctx, lc, subject)
}

// issue consumes the context and mints the token set. The conditional consume
// makes double issuance for one context impossible.
func (o *Orchestrator) issue(ctx context.Context, lc *lcdomain.Context, subject *subjectdomain.Subject) (*Outcome, error) {
	ok, err := o.contexts.Consume(ctx, lc.ID)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, ErrContextExpired
	}

	session, err := o.sessions.Get(ctx, lc.SessionID)
	if err != nil {
		return nil, err
	}

	amr := []string{"pwd"}
	if lc.MfaRequired && lc.MfaCompleted {
		amr = append(amr, "mfa")
	}
	set, err := o.tokens.IssueSet(ctx, session, subject, []string{"customer"}, amr)
	if err != nil {
		return nil, err
	}
	if o.audit != nil {
		o.audit.LogEvent(ctx, subject.ID, "login_succeeded", "auth", lc.ID)
	}
	return &Outcome{
		Step:      StepSuccess,
		ContextID: lc.ID,
		Tokens:    set,
	}, nil
}

func (o *Orchestrator) securityEvent(ctx context.Context, eventType, subjectID, contextID, clientIP string) {
	telemetry.EmitAsync(o.events, ctx, &telemetry.Event{
		Type:      eventType,
		SubjectID: subjectID,
		ContextID: contextID,
		ClientIP:  clientIP,
		At:        o.now(),
	})
}
