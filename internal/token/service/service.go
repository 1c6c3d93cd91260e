package service

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"

	"ciam-core/backend/internal/audit"
	"ciam-core/backend/internal/security"
	sessiondomain "ciam-core/backend/internal/session/domain"
	sessionservice "ciam-core/backend/internal/session/service"
	subjectdomain "ciam-core/backend/internal/subject/domain"
	"ciam-core/backend/internal/token/domain"
	"ciam-core/backend/internal/token/repository"
)

var (
	// ErrInvalidRefreshToken is returned for malformed, unknown, or mismatched refresh tokens.
	ErrInvalidRefreshToken = errors.New("invalid refresh token")
	// ErrRefreshExpired is returned when the refresh token has expired.
	ErrRefreshExpired = errors.New("refresh token expired")
	// ErrRefreshReuse is returned when a revoked refresh token is presented
	// again. The whole session chain is revoked as a side effect.
	ErrRefreshReuse = errors.New("refresh token reuse detected")
	// ErrSessionGone is returned when the session behind the token is no longer live.
	ErrSessionGone = errors.New("session gone")
)

// SessionRegistry is the slice of the session registry the token service uses.
type SessionRegistry interface {
	Get(ctx context.Context, id string) (*sessiondomain.Session, error)
	Touch(ctx context.Context, id string) error
	Deactivate(ctx context.Context, id string) error
}

// SubjectGetter loads subjects for claim data on rotation.
type SubjectGetter interface {
	GetByID(ctx context.Context, id string) (*subjectdomain.Subject, error)
}

// Introspection is the result of inspecting a token, shaped after RFC 7662.
type Introspection struct {
	Active    bool
	TokenUse  string // "access" or "refresh"
	SubjectID string
	SessionID string
	Username  string
	ExpiresAt time.Time
}

// Service issues, rotates, revokes, and introspects token sets. Access and
// identity tokens are signed JWTs; refresh tokens are opaque records.
type Service struct {
	records    repository.Repository
	sessions   SessionRegistry
	subjects   SubjectGetter
	provider   *security.TokenProvider
	refreshTTL time.Duration
	audit      audit.AuditLogger
	now        func() time.Time
}

// NewService returns a token Service. auditLogger may be nil.
func NewService(records repository.Repository, sessions SessionRegistry, subjects SubjectGetter, provider *security.TokenProvider, refreshTTL time.Duration, auditLogger audit.AuditLogger) *Service {
	return &Service{
		records:    records,
		sessions:   sessions,
		subjects:   subjects,
		provider:   provider,
		refreshTTL: refreshTTL,
		audit:      auditLogger,
		now:        func() time.Time { return time.Now().UTC() },
	}
}

// IssueSet issues a fresh token set bound to the session: a signed access and
// identity JWT plus a new opaque refresh token. amr lists completed
// authentication methods for the identity token.
func (s *Service) IssueSet(ctx context.Context, session *sessiondomain.Session, subject *subjectdomain.Subject, roles, amr []string) (*domain.TokenSet, error) {
	access, _, accessExp, err := s.provider.IssueAccess(session.ID, subject.ID, roles)
	if err != nil {
		return nil, err
	}
	identity, _, err := s.provider.IssueIdentity(session.ID, subject.ID, subject.Username, amr)
	if err != nil {
		return nil, err
	}
	refresh, err := s.newRefreshRecord(ctx, session.ID)
	if err != nil {
		return nil, err
	}
	if s.audit != nil {
		s.audit.LogEvent(ctx, subject.ID, "tokens_issued", "token", session.ID)
	}
	return &domain.TokenSet{
		AccessToken:   access,
		IdentityToken: identity,
		RefreshToken:  refresh,
		TokenType:     "Bearer",
		ExpiresAt:     accessExp,
	}, nil
}

// Rotate validates the presented refresh token and atomically replaces it with
// a new one, returning a fresh token set. Presenting an already-rotated token
// revokes the whole session chain and returns ErrRefreshReuse. Under
// concurrent rotation of the same token exactly one caller succeeds.
func (s *Service) Rotate(ctx context.Context, refreshToken string) (*domain.TokenSet, error) {
	rec, err := s.lookupRefresh(ctx, refreshToken)
	if err != nil {
		return nil, err
	}
	now := s.now()
	if rec.Revoked {
		return nil, s.handleReuse(ctx, rec)
	}
	if rec.Expired(now) {
		return nil, ErrRefreshExpired
	}

	session, err := s.sessions.Get(ctx, rec.SessionID)
	if err != nil {
		if errors.Is(err, sessionservice.ErrSessionNotFound) || errors.Is(err, sessionservice.ErrSessionNotLive) {
			return nil, ErrSessionGone
		}
		return nil, err
	}
	subject, err := s.subjects.GetByID(ctx, session.SubjectID)
	if err != nil {
		return nil, err
	}
	if subject == nil {
		return nil, ErrSessionGone
	}

	secret, err := security.NewRefreshSecret()
	if err != nil {
		return nil, err
	}
	newRec := &domain.TokenRecord{
		ID:         uuid.New().String(),
		SessionID:  rec.SessionID,
		SecretHash: security.HashRefreshToken(secret),
		ExpiresAt:  now.Add(s.refreshTTL),
		CreatedAt:  now,
	}
	if err := s.records.Rotate(ctx, rec.ID, now, newRec); err != nil {
		if errors.Is(err, repository.ErrRotateConflict) {
			// A concurrent rotation of the same token won. The loser gets the
			// reuse error but the chain stays intact; only a replay observed
			// as already revoked at lookup revokes the whole chain.
			return nil, ErrRefreshReuse
		}
		return nil, err
	}
	_ = s.sessions.Touch(ctx, session.ID)

	access, _, accessExp, err := s.provider.IssueAccess(session.ID, subject.ID, []string{"user"})
	if err != nil {
		return nil, err
	}
	identity, _, err := s.provider.IssueIdentity(session.ID, subject.ID, subject.Username, nil)
	if err != nil {
		return nil, err
	}
	if s.audit != nil {
		s.audit.LogEvent(ctx, subject.ID, "tokens_rotated", "token", session.ID)
	}
	return &domain.TokenSet{
		AccessToken:   access,
		IdentityToken: identity,
		RefreshToken:  domain.FormatRefresh(newRec.ID, secret),
		TokenType:     "Bearer",
		ExpiresAt:     accessExp,
	}, nil
}

// RevokeRefresh revokes the single refresh token presented. Unknown tokens are
// not an error, matching RFC 7009 semantics.
func (s *Service) RevokeRefresh(ctx context.Context, refreshToken string) error {
	rec, err := s.lookupRefresh(ctx, refreshToken)
	if err != nil {
		if errors.Is(err, ErrInvalidRefreshToken) {
			return nil
		}
		return err
	}
	if err := s.records.Revoke(ctx, rec.ID); err != nil {
		return err
	}
	if s.audit != nil {
		s.audit.LogEvent(ctx, "", "token_revoked", "token", rec.SessionID)
	}
	return nil
}

// RevokeSession revokes every refresh token for the session and ends the session.
func (s *Service) RevokeSession(ctx context.Context, sessionID string) error {
	if err := s.records.RevokeBySession(ctx, sessionID); err != nil {
		return err
	}
	return s.sessions.Deactivate(ctx, sessionID)
}

// Introspect inspects an access JWT or opaque refresh token. It never returns
// token details for inactive tokens, only Active=false.
func (s *Service) Introspect(ctx context.Context, token string) (*Introspection, error) {
	if claims, err := s.provider.ValidateAccess(token); err == nil {
		if _, err := s.sessions.Get(ctx, claims.SessionID); err != nil {
			return &Introspection{Active: false}, nil
		}
		return &Introspection{
			Active:    true,
			TokenUse:  "access",
			SubjectID: claims.Subject,
			SessionID: claims.SessionID,
			ExpiresAt: claims.ExpiresAt.Time,
		}, nil
	}

	rec, err := s.lookupRefresh(ctx, token)
	if err != nil {
		if errors.Is(err, ErrInvalidRefreshToken) {
			return &Introspection{Active: false}, nil
		}
		return nil, err
	}
	if rec.Revoked || rec.Expired(s.now()) {
		return &Introspection{Active: false}, nil
	}
	session, err := s.sessions.Get(ctx, rec.SessionID)
	if err != nil {
		return &Introspection{Active: false}, nil
	}
	return &Introspection{
		Active:    true,
		TokenUse:  "refresh",
		SubjectID: session.SubjectID,
		SessionID: rec.SessionID,
		ExpiresAt: rec.ExpiresAt,
	}, nil
}

// SweepExpired deletes expired token records and returns the count removed.
func (s *Service) SweepExpired(ctx context.Context) (int64, error) {
	return s.records.DeleteExpired(ctx, s.now())
}

// lookupRefresh parses the wire form, loads the record, and checks the secret
// hash in constant time. Malformed, unknown, and mismatched tokens all map to
// ErrInvalidRefreshToken so callers cannot distinguish them.
func (s *Service) lookupRefresh(ctx context.Context, refreshToken string) (*domain.TokenRecord, error) {
	recID, secret, ok := domain.SplitRefresh(refreshToken)
	if !ok {
		return nil, ErrInvalidRefreshToken
	}
	rec, err := s.records.GetByID(ctx, recID)
	if err != nil {
		return nil, err
	}
	if rec == nil {
		return nil, ErrInvalidRefreshToken
	}
	if !security.RefreshTokenHashEqual(secret, rec.SecretHash) {
		return nil, ErrInvalidRefreshToken
	}
	return rec, nil
}

// handleReuse revokes the session chain behind a replayed refresh token.
func (s *Service) handleReuse(ctx context.Context, rec *domain.TokenRecord) error {
	_ = s.records.RevokeBySession(ctx, rec.SessionID)
	_ = s.sessions.Deactivate(ctx, rec.SessionID)
	if s.audit != nil {
		s.audit.LogEvent(ctx, "", "refresh_reuse_detected", "token", rec.SessionID)
	}
	return ErrRefreshReuse
}

func (s *Service) newRefreshRecord(ctx context.Context, sessionID string) (string, error) {
	secret, err := security.NewRefreshSecret()
	if err != nil {
		return "", err
	}
	now := s.now()
	rec := &domain.TokenRecord{
		ID:         uuid.New().String(),
		SessionID:  sessionID,
		SecretHash: security.HashRefreshToken(secret),
		ExpiresAt:  now.Add(s.refreshTTL),
		CreatedAt:  now,
	}
	if err := s.records.Create(ctx, rec); err != nil {
		return "", err
	}
	return domain.FormatRefresh(rec.ID, secret), nil
}
