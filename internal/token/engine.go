package token

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/openbank/authcore/internal/audit"
	"github.com/openbank/authcore/internal/credentials"
	"github.com/openbank/authcore/internal/ratelimit"
	"github.com/openbank/authcore/internal/scopes"
	"github.com/openbank/authcore/model"
	"github.com/openbank/authcore/params"
	"gorm.io/gorm"
)

type ProjectService interface {
	GetProjectByClientID(ctx context.Context, clientID string) (*model.Project, error)
	VerifyClientSecret(project *model.Project, clientSecret string) bool
}

type ScopeResolver interface {
	PermittedScopes(ctx context.Context, developerID uint, candidates []string) ([]string, error)
}

type AccountGuard interface {
	IsLocked(ctx context.Context, developerID uint) (bool, *time.Time, error)
	RecordFailure(ctx context.Context, developerID uint, ip string) (bool, error)
	RecordSuccess(ctx context.Context, developerID uint) error
	RiskExceeded(ctx context.Context, developerID uint) (bool, error)
}

type RateLimiter interface {
	Check(ctx context.Context, key string, ceiling int) (*ratelimit.Decision, error)
}

type EventEmitter interface {
	Emit(event *model.SecurityEvent)
}

// Request carries the transport-level context of a token operation, used
// for rate limiting keys and the audit trail.
type Request struct {
	IP        string
	UserAgent string
	RequestID string
}

type IssueOptions struct {
	ClientID     string
	ClientSecret string
	// Scope is the space-separated requested scope; empty requests the
	// project's full allowed set.
	Scope string
	Request
}

// RefreshOptions carries a refresh request. Possession of the token is not
// enough; the client re-authenticates with its secret.
type RefreshOptions struct {
	ClientID     string
	ClientSecret string
	Token        string
	Request
}

// IssuedToken is the result of a successful issuance.
type IssuedToken struct {
	AccessToken string
	TokenType   string
	ExpiresIn   int64
	ExpiresAt   time.Time
	Scopes      []string
	JTI         string
}

// Engine implements the client credentials grant: authenticate the client,
// narrow the requested scope to what project and grants allow, mint a JWT
// and record its issuance. Validation and revocation work against the
// issuance record, so a revocation taken on one instance holds everywhere.
type Engine struct {
	projects ProjectService
	resolver ScopeResolver
	guard    AccountGuard
	limiter  RateLimiter
	tokens   TokenRepository
	signer   *Signer
	emitter  EventEmitter
	now      func() time.Time
}

func NewEngine(projects ProjectService, resolver ScopeResolver, guard AccountGuard, limiter RateLimiter, tokens TokenRepository, signer *Signer, emitter EventEmitter) *Engine {
	return &Engine{
		projects: projects,
		resolver: resolver,
		guard:    guard,
		limiter:  limiter,
		tokens:   tokens,
		signer:   signer,
		emitter:  emitter,
		now:      time.Now,
	}
}

// Issue runs the client credentials grant. Denials are audited with the
// internal reason; callers only ever see the coarse error.
func (e *Engine) Issue(ctx context.Context, opts IssueOptions) (*IssuedToken, error) {
	project, err := e.authenticate(ctx, opts.ClientID, opts.ClientSecret, audit.EventTokenIssueDenied, opts.Request)
	if err != nil {
		return nil, err
	}

	granted, err := e.narrowScopes(ctx, project, scopes.Parse(opts.Scope))
	if err != nil {
		if errors.Is(err, ErrInsufficientScope) {
			e.deny(audit.EventTokenIssueDenied, opts.Request, project.DeveloperID, project.ID, "requested scope not granted")
		}
		return nil, err
	}

	issued, err := e.mint(ctx, project.DeveloperID, project.ID, granted)
	if err != nil {
		return nil, err
	}
	e.emitter.Emit(&model.SecurityEvent{
		EventType:   audit.EventTokenIssued,
		Severity:    audit.SeverityInfo,
		DeveloperID: project.DeveloperID,
		ProjectID:   project.ID,
		IP:          opts.IP,
		UserAgent:   opts.UserAgent,
		RequestID:   opts.RequestID,
		Success:     true,
		Reason:      "scope: " + scopes.Join(issued.Scopes),
	})
	return issued, nil
}

// authenticate runs the client checks shared by Issue and Refresh: project
// lookup, rate limit, lock state, secret verification with guard counters,
// and the suspicion ceiling. Rejections are audited as denyEvent.
func (e *Engine) authenticate(ctx context.Context, clientID, clientSecret, denyEvent string, req Request) (*model.Project, error) {
	if clientID == "" || clientSecret == "" {
		return nil, ErrInvalidClient
	}

	project, err := e.lookupProject(ctx, clientID)
	if err != nil {
		if !errors.Is(err, credentials.ErrProjectNotFound) {
			return nil, ErrServiceUnavailable
		}
		// Unknown client ids throttle on the caller address so repeated
		// enumeration attempts still hit a ceiling.
		if err := e.throttle(ctx, "ip:"+req.IP, 0, req); err != nil {
			return nil, err
		}
		e.deny(denyEvent, req, 0, 0, "unknown client id")
		return nil, ErrInvalidClient
	}
	if err := e.throttle(ctx, project.ClientID, project.RateLimitPerMin, req); err != nil {
		return nil, err
	}
	if !project.Active {
		e.deny(denyEvent, req, project.DeveloperID, project.ID, "project disabled")
		return nil, ErrInvalidClient
	}

	// Lock state is checked before the secret so a locked account rejects
	// even correct credentials without leaking which case applied.
	locked, _, err := e.guard.IsLocked(ctx, project.DeveloperID)
	if err != nil {
		return nil, ErrServiceUnavailable
	}
	if locked {
		e.deny(denyEvent, req, project.DeveloperID, project.ID, "account locked")
		return nil, ErrAccountLocked
	}

	if !e.projects.VerifyClientSecret(project, clientSecret) {
		if _, err := e.guard.RecordFailure(ctx, project.DeveloperID, req.IP); err != nil {
			return nil, ErrServiceUnavailable
		}
		e.emitter.Emit(&model.SecurityEvent{
			EventType:   audit.EventLoginFailure,
			Severity:    audit.SeverityWarning,
			DeveloperID: project.DeveloperID,
			ProjectID:   project.ID,
			IP:          req.IP,
			UserAgent:   req.UserAgent,
			RequestID:   req.RequestID,
			Reason:      "client secret mismatch",
		})
		return nil, ErrInvalidClient
	}
	if err := e.guard.RecordSuccess(ctx, project.DeveloperID); err != nil {
		return nil, ErrServiceUnavailable
	}
	e.emitter.Emit(&model.SecurityEvent{
		EventType:   audit.EventLoginSuccess,
		Severity:    audit.SeverityInfo,
		DeveloperID: project.DeveloperID,
		ProjectID:   project.ID,
		IP:          req.IP,
		UserAgent:   req.UserAgent,
		RequestID:   req.RequestID,
		Success:     true,
	})

	risky, err := e.guard.RiskExceeded(ctx, project.DeveloperID)
	if err != nil {
		return nil, ErrServiceUnavailable
	}
	if risky {
		e.deny(denyEvent, req, project.DeveloperID, project.ID, "suspicion score at issuance ceiling")
		return nil, ErrAccessDenied
	}
	return project, nil
}

// lookupProject reads the project with one retry for transient failures. A
// storage outage surfaces as service_unavailable, never as a credential
// rejection; only a definitive not-found counts against the client id.
func (e *Engine) lookupProject(ctx context.Context, clientID string) (*model.Project, error) {
	project, err := e.projects.GetProjectByClientID(ctx, clientID)
	if err == nil || errors.Is(err, credentials.ErrProjectNotFound) {
		return project, err
	}
	time.Sleep(params.ValidateReadRetryGap)
	return e.projects.GetProjectByClientID(ctx, clientID)
}

// narrowScopes intersects the request with the project's allowed set and
// the developer's effective grants. An explicit request that survives with
// nothing is an error; an empty request means "whatever I may have".
func (e *Engine) narrowScopes(ctx context.Context, project *model.Project, requested []string) ([]string, error) {
	for _, s := range requested {
		if !scopes.IsValid(s) {
			return nil, ErrInvalidScope
		}
	}
	explicit := len(requested) > 0
	if !explicit {
		requested = project.AllowedScopes
	}
	granted := scopes.Intersect(requested, project.AllowedScopes)
	permitted, err := e.resolver.PermittedScopes(ctx, project.DeveloperID, granted)
	if err != nil {
		return nil, ErrServiceUnavailable
	}
	if explicit && len(permitted) < len(requested) {
		return nil, ErrInsufficientScope
	}
	return permitted, nil
}

func (e *Engine) mint(ctx context.Context, developerID, projectID uint, granted []string) (*IssuedToken, error) {
	jti := uuid.NewString()
	now := e.now()
	signed, expiresAt, err := e.signer.Sign(jti, developerID, projectID, granted, now)
	if err != nil {
		return nil, err
	}
	record := model.OAuthToken{
		ProjectID:   projectID,
		DeveloperID: developerID,
		TokenType:   "Bearer",
		Scopes:      granted,
		JTI:         jti,
		ExpiresAt:   expiresAt,
	}
	if err := e.tokens.Create(ctx, &record); err != nil {
		return nil, ErrServiceUnavailable
	}
	return &IssuedToken{
		AccessToken: signed,
		TokenType:   "Bearer",
		ExpiresIn:   int64(e.signer.TTL().Seconds()),
		ExpiresAt:   expiresAt,
		Scopes:      granted,
		JTI:         jti,
	}, nil
}

// Validate verifies a bearer token: signature and time claims first, then
// the issuance record. Record lookups fail closed; a token that cannot be
// checked against its record is not accepted.
func (e *Engine) Validate(ctx context.Context, tokenString string) (*Claims, error) {
	claims, err := e.signer.Verify(tokenString)
	if err != nil {
		return nil, err
	}
	record, err := e.lookupRecord(ctx, claims.ID)
	if err != nil {
		if errors.Is(err, ErrServiceUnavailable) {
			e.emitter.Emit(&model.SecurityEvent{
				EventType: audit.EventAccessDenied,
				Severity:  audit.SeverityError,
				Reason:    "revocation check unavailable, failing closed",
			})
		}
		return nil, err
	}
	if !record.Valid(e.now()) {
		e.emitter.Emit(&model.SecurityEvent{
			EventType:   audit.EventAccessDenied,
			Severity:    audit.SeverityWarning,
			DeveloperID: record.DeveloperID,
			ProjectID:   record.ProjectID,
			Reason:      "revoked or expired token presented",
		})
		return nil, ErrInvalidToken
	}
	e.emitter.Emit(&model.SecurityEvent{
		EventType:   audit.EventTokenValidated,
		Severity:    audit.SeverityInfo,
		DeveloperID: record.DeveloperID,
		ProjectID:   record.ProjectID,
		Success:     true,
	})
	return claims, nil
}

// lookupRecord reads the issuance row with a bounded timeout and one retry
// for transient failures.
func (e *Engine) lookupRecord(ctx context.Context, jti string) (*model.OAuthToken, error) {
	record, err := e.readRecord(ctx, jti)
	if err == nil {
		return record, nil
	}
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrInvalidToken
	}
	time.Sleep(params.ValidateReadRetryGap)
	record, err = e.readRecord(ctx, jti)
	if err == nil {
		return record, nil
	}
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrInvalidToken
	}
	return nil, ErrServiceUnavailable
}

func (e *Engine) readRecord(ctx context.Context, jti string) (*model.OAuthToken, error) {
	opCtx, cancel := context.WithTimeout(ctx, params.StoreOpTimeout)
	defer cancel()
	return e.tokens.FirstByJTI(opCtx, jti)
}

// Refresh exchanges a still-valid token for a fresh one after the client
// re-authenticates with its current secret; the token alone never suffices.
// The old record is revoked with a compare-and-set, so of any number of
// concurrent refreshes of the same token exactly one wins; the rest fail
// with ErrInvalidGrant. Scopes are narrowed again at refresh time against
// the current project and grant state.
func (e *Engine) Refresh(ctx context.Context, opts RefreshOptions) (*IssuedToken, error) {
	project, err := e.authenticate(ctx, opts.ClientID, opts.ClientSecret, audit.EventTokenRefreshDenied, opts.Request)
	if err != nil {
		return nil, err
	}

	claims, err := e.signer.Verify(opts.Token)
	if err != nil {
		e.deny(audit.EventTokenRefreshDenied, opts.Request, project.DeveloperID, project.ID, "token verification failed")
		return nil, ErrInvalidGrant
	}
	record, err := e.lookupRecord(ctx, claims.ID)
	if err != nil {
		if errors.Is(err, ErrInvalidToken) {
			e.deny(audit.EventTokenRefreshDenied, opts.Request, project.DeveloperID, project.ID, "unknown jti")
			return nil, ErrInvalidGrant
		}
		return nil, err
	}
	if record.ProjectID != project.ID {
		e.deny(audit.EventTokenRefreshDenied, opts.Request, project.DeveloperID, project.ID, "token not issued to this client")
		return nil, ErrInvalidGrant
	}
	if !record.Valid(e.now()) {
		e.deny(audit.EventTokenRefreshDenied, opts.Request, record.DeveloperID, record.ProjectID, "token expired or revoked")
		return nil, ErrInvalidGrant
	}

	n, err := e.tokens.RevokeByJTI(ctx, record.JTI)
	if err != nil {
		return nil, ErrServiceUnavailable
	}
	if n == 0 {
		// Lost the race or the token was revoked since the read.
		e.deny(audit.EventTokenRefreshDenied, opts.Request, record.DeveloperID, record.ProjectID, "concurrent refresh lost")
		return nil, ErrInvalidGrant
	}

	granted := scopes.Intersect(record.Scopes, project.AllowedScopes)
	permitted, err := e.resolver.PermittedScopes(ctx, record.DeveloperID, granted)
	if err != nil {
		return nil, ErrServiceUnavailable
	}
	if len(permitted) == 0 {
		// The old token is gone either way; holding no permitted scope
		// means there is nothing left to refresh into.
		e.deny(audit.EventTokenRefreshDenied, opts.Request, record.DeveloperID, record.ProjectID, "no permitted scope remains")
		return nil, ErrInsufficientScope
	}

	issued, err := e.mint(ctx, record.DeveloperID, record.ProjectID, permitted)
	if err != nil {
		return nil, err
	}
	e.emitter.Emit(&model.SecurityEvent{
		EventType:   audit.EventTokenRefreshed,
		Severity:    audit.SeverityInfo,
		DeveloperID: record.DeveloperID,
		ProjectID:   record.ProjectID,
		IP:          opts.IP,
		UserAgent:   opts.UserAgent,
		RequestID:   opts.RequestID,
		Success:     true,
		Reason:      "rotated " + record.JTI,
	})
	return issued, nil
}

// Revoke invalidates a token ahead of its expiry. Revoking an already
// revoked or unknown token is a no-op; the operation is idempotent.
func (e *Engine) Revoke(ctx context.Context, tokenString string, req Request) error {
	claims, err := e.signer.Verify(tokenString)
	if err != nil {
		// Per RFC 7009 revocation of an unrecognized token succeeds.
		return nil
	}
	n, err := e.tokens.RevokeByJTI(ctx, claims.ID)
	if err != nil {
		return ErrServiceUnavailable
	}
	if n > 0 {
		e.emitter.Emit(&model.SecurityEvent{
			EventType:   audit.EventTokenRevoked,
			Severity:    audit.SeverityInfo,
			DeveloperID: claims.DeveloperID,
			ProjectID:   claims.ProjectID,
			IP:          req.IP,
			UserAgent:   req.UserAgent,
			RequestID:   req.RequestID,
			Success:     true,
			Reason:      "revoked " + claims.ID,
		})
	}
	return nil
}

func (e *Engine) throttle(ctx context.Context, key string, ceiling int, req Request) error {
	decision, err := e.limiter.Check(ctx, key, ceiling)
	if err != nil {
		return ErrServiceUnavailable
	}
	if decision.Allowed {
		return nil
	}
	e.emitter.Emit(&model.SecurityEvent{
		EventType: audit.EventRateLimitExceeded,
		Severity:  audit.SeverityWarning,
		IP:        req.IP,
		UserAgent: req.UserAgent,
		RequestID: req.RequestID,
		Reason:    "token endpoint ceiling exceeded for " + key,
	})
	return &RateLimitedError{RetryAfter: decision.RetryAfter}
}

func (e *Engine) deny(eventType string, req Request, developerID, projectID uint, reason string) {
	e.emitter.Emit(&model.SecurityEvent{
		EventType:   eventType,
		Severity:    audit.SeverityWarning,
		DeveloperID: developerID,
		ProjectID:   projectID,
		IP:          req.IP,
		UserAgent:   req.UserAgent,
		RequestID:   req.RequestID,
		Reason:      reason,
	})
}
