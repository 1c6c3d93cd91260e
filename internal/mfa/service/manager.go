package service

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/google/uuid"

	"ciam-core/backend/internal/audit"
	"ciam-core/backend/internal/devotp"
	"ciam-core/backend/internal/mfa"
	"ciam-core/backend/internal/mfa/domain"
	"ciam-core/backend/internal/mfa/push"
	"ciam-core/backend/internal/mfa/repository"
)

var (
	// ErrNoPendingTransaction is returned when the context has no PENDING transaction.
	ErrNoPendingTransaction = errors.New("no pending mfa transaction")
	// ErrTransactionNotFound is returned when the transaction does not exist.
	ErrTransactionNotFound = errors.New("mfa transaction not found")
	// ErrInvalidCode is returned for a wrong OTP submission.
	ErrInvalidCode = errors.New("invalid mfa code")
	// ErrTooManyAttempts is returned when the wrong-code limit is reached.
	// The transaction is force-expired as a side effect.
	ErrTooManyAttempts = errors.New("too many mfa attempts")
	// ErrTransactionExpired is returned when the transaction has expired.
	ErrTransactionExpired = errors.New("mfa transaction expired")
	// ErrWrongMethod is returned when the operation does not match the
	// transaction's method (e.g. OTP verify against a push transaction).
	ErrWrongMethod = errors.New("wrong mfa method")
	// ErrMethodUnavailable is returned when the subject lacks the enrolled
	// factor for the requested method.
	ErrMethodUnavailable = errors.New("mfa method unavailable")
	// ErrAlreadyResolved is returned when a push response arrives after the
	// transaction reached a terminal state. The first response wins.
	ErrAlreadyResolved = errors.New("mfa transaction already resolved")
)

// OTPSender delivers one-time codes over sms or voice.
type OTPSender interface {
	SendOTP(phone, otp string) error
	SendVoiceOTP(phone, otp string) error
}

// TransactionStatus is the polling view of the latest transaction for a context.
type TransactionStatus struct {
	Transaction *domain.Transaction
	// RetryAfter is the back-off hint in seconds for the next poll; zero when
	// the transaction is terminal.
	RetryAfter int
}

// Manager drives the MFA transaction lifecycle: initiation, OTP verification,
// push resolution, status polling, and expiry sweeping. Per-context operations
// are serialized through a keyed mutex so invariants hold even before the
// storage-level guards kick in.
type Manager struct {
	transactions repository.Repository
	sender       OTPSender
	pusher       push.Notifier
	devOTP       devotp.Store // nil unless dev OTP mode is enabled
	ttl          time.Duration
	maxAttempts  int
	retryAfter   int
	audit        audit.AuditLogger
	now          func() time.Time

	mu    sync.Mutex
	locks map[string]*sync.Mutex
}

// NewManager returns an MFA Manager. sender and pusher may be nil when the
// corresponding methods are never offered; devOTP and auditLogger may be nil.
func NewManager(transactions repository.Repository, sender OTPSender, pusher push.Notifier, devOTP devotp.Store, ttl time.Duration, maxAttempts, retryAfter int, auditLogger audit.AuditLogger) *Manager {
	return &Manager{
		transactions: transactions,
		sender:       sender,
		pusher:       pusher,
		devOTP:       devOTP,
		ttl:          ttl,
		maxAttempts:  maxAttempts,
		retryAfter:   retryAfter,
		audit:        auditLogger,
		now:          func() time.Time { return time.Now().UTC() },
		locks:        make(map[string]*sync.Mutex),
	}
}

// contextLock returns the mutex serializing operations for one login context.
func (m *Manager) contextLock(contextID string) *sync.Mutex {
	m.mu.Lock()
	defer m.mu.Unlock()
	l, ok := m.locks[contextID]
	if !ok {
		l = &sync.Mutex{}
		m.locks[contextID] = l
	}
	return l
}

// Initiate starts a new MFA transaction for the login context, superseding any
// transaction still pending for it. For sms/voice an OTP is generated and
// delivered to phone; for push a prompt with a display number is sent to the
// subject's enrolled device. Two racing initiations for the same context end
// with exactly one PENDING transaction.
func (m *Manager) Initiate(ctx context.Context, contextID, subjectID string, method domain.Method, phone, pushDeviceID string) (*domain.Transaction, error) {
	if !method.Valid() {
		return nil, ErrMethodUnavailable
	}
	if method.OTP() && (phone == "" || m.sender == nil) {
		return nil, ErrMethodUnavailable
	}
	if method == domain.MethodPush && (pushDeviceID == "" || m.pusher == nil) {
		return nil, ErrMethodUnavailable
	}

	l := m.contextLock(contextID)
	l.Lock()
	defer l.Unlock()

	now := m.now()
	if err := m.transactions.ExpirePendingByContext(ctx, contextID, now); err != nil {
		return nil, err
	}

	t := &domain.Transaction{
		ID:        uuid.New().String(),
		ContextID: contextID,
		SubjectID: subjectID,
		Method:    method,
		Status:    domain.StatusPending,
		ExpiresAt: now.Add(m.ttl),
		CreatedAt: now,
	}

	switch {
	case method.OTP():
		otp, err := mfa.GenerateOTP()
		if err != nil {
			return nil, err
		}
		t.SecretHash = mfa.HashOTP(otp)
		if err := m.transactions.Create(ctx, t); err != nil {
			return nil, err
		}
		if m.devOTP != nil {
			m.devOTP.Put(ctx, t.ID, otp, t.ExpiresAt)
		} else {
			deliver := m.sender.SendOTP
			if method == domain.MethodVoice {
				deliver = m.sender.SendVoiceOTP
			}
			if err := deliver(phone, otp); err != nil {
				_, _ = m.transactions.Resolve(ctx, t.ID, domain.StatusExpired, m.now())
				return nil, err
			}
		}
	case method == domain.MethodPush:
		display, err := mfa.GenerateDisplayNumber()
		if err != nil {
			return nil, err
		}
		t.DisplayNumber = display
		if err := m.transactions.Create(ctx, t); err != nil {
			return nil, err
		}
		if err := m.pusher.Notify(ctx, pushDeviceID, t.ID, display); err != nil {
			_, _ = m.transactions.Resolve(ctx, t.ID, domain.StatusExpired, m.now())
			return nil, err
		}
	}

	if m.audit != nil {
		m.audit.LogEvent(ctx, subjectID, "mfa_initiated", "mfa", string(method))
	}
	return t, nil
}

// VerifyOtp checks the submitted code against the context's PENDING sms/voice
// transaction. Wrong codes count toward the attempt limit; reaching the limit
// force-expires the transaction.
func (m *Manager) VerifyOtp(ctx context.Context, contextID, code string) (*domain.Transaction, error) {
	l := m.contextLock(contextID)
	l.Lock()
	defer l.Unlock()

	t, err := m.transactions.GetPendingByContext(ctx, contextID)
	if err != nil {
		return nil, err
	}
	if t == nil {
		return nil, ErrNoPendingTransaction
	}
	if !t.Method.OTP() {
		return nil, ErrWrongMethod
	}
	now := m.now()
	if t.Expired(now) {
		_, _ = m.transactions.Resolve(ctx, t.ID, domain.StatusExpired, now)
		return nil, ErrTransactionExpired
	}

	if !mfa.OTPEqual(code, t.SecretHash) {
		attempts, err := m.transactions.IncrementAttempts(ctx, t.ID)
		if err != nil {
			return nil, err
		}
		if attempts >= m.maxAttempts {
			_, _ = m.transactions.Resolve(ctx, t.ID, domain.StatusExpired, m.now())
			if m.audit != nil {
				m.audit.LogEvent(ctx, t.SubjectID, "mfa_attempts_exceeded", "mfa", t.ID)
			}
			return nil, ErrTooManyAttempts
		}
		return nil, ErrInvalidCode
	}

	ok, err := m.transactions.Resolve(ctx, t.ID, domain.StatusApproved, m.now())
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, ErrNoPendingTransaction
	}
	if m.audit != nil {
		m.audit.LogEvent(ctx, t.SubjectID, "mfa_approved", "mfa", t.ID)
	}
	return m.transactions.GetByID(ctx, t.ID)
}

// RespondPush records the decision reported by the push gateway webhook for a
// push transaction. Only a PENDING transaction can be resolved; the first
// response wins and later ones get ErrAlreadyResolved.
func (m *Manager) RespondPush(ctx context.Context, transactionID string, approve bool) (*domain.Transaction, error) {
	t, err := m.transactions.GetByID(ctx, transactionID)
	if err != nil {
		return nil, err
	}
	if t == nil {
		return nil, ErrTransactionNotFound
	}
	if t.Method != domain.MethodPush {
		return nil, ErrWrongMethod
	}
	if t.Status.Terminal() {
		return nil, ErrAlreadyResolved
	}
	now := m.now()
	if t.Expired(now) {
		_, _ = m.transactions.Resolve(ctx, t.ID, domain.StatusExpired, now)
		return nil, ErrTransactionExpired
	}

	to := domain.StatusRejected
	if approve {
		to = domain.StatusApproved
	}
	ok, err := m.transactions.Resolve(ctx, t.ID, to, now)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, ErrAlreadyResolved
	}
	if m.audit != nil {
		m.audit.LogEvent(ctx, t.SubjectID, "mfa_push_"+string(to), "mfa", t.ID)
	}
	return m.transactions.GetByID(ctx, t.ID)
}

// GetStatus returns the latest transaction for the login context for client
// polling. A pending transaction past its expiry is resolved to EXPIRED before
// being returned; polling at the exact expiry instant already sees EXPIRED.
func (m *Manager) GetStatus(ctx context.Context, contextID string) (*TransactionStatus, error) {
	t, err := m.transactions.GetLatestByContext(ctx, contextID)
	if err != nil {
		return nil, err
	}
	if t == nil {
		return nil, ErrTransactionNotFound
	}
	now := m.now()
	if t.Status == domain.StatusPending && t.Expired(now) {
		_, _ = m.transactions.Resolve(ctx, t.ID, domain.StatusExpired, now)
		t, err = m.transactions.GetByID(ctx, t.ID)
		if err != nil {
			return nil, err
		}
	}
	st := &TransactionStatus{Transaction: t}
	if !t.Status.Terminal() {
		st.RetryAfter = m.retryAfter
	}
	return st, nil
}

// CancelPendingForSubject force-expires every PENDING transaction the subject
// still has, across all login contexts. A fresh login calls this so stale
// challenges from abandoned attempts cannot be answered later.
func (m *Manager) CancelPendingForSubject(ctx context.Context, subjectID string) error {
	return m.transactions.ExpirePendingBySubject(ctx, subjectID, m.now())
}

// Sweep expires overdue PENDING transactions and returns the count.
func (m *Manager) Sweep(ctx context.Context) (int64, error) {
	return m.transactions.ExpireOverdue(ctx, m.now())
}
