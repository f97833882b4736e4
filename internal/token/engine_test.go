package token

import (
	"context"
	"errors"
	"reflect"
	"sync"
	"testing"
	"time"

	"github.com/openbank/authcore/internal/audit"
	"github.com/openbank/authcore/internal/config"
	"github.com/openbank/authcore/internal/credentials"
	"github.com/openbank/authcore/internal/ratelimit"
	"github.com/openbank/authcore/model"
	"gorm.io/gorm"
)

type fakeProjects struct {
	projects map[string]*model.Project
	secrets  map[string]string
	outage   error
	lookups  int
}

func (f *fakeProjects) GetProjectByClientID(ctx context.Context, clientID string) (*model.Project, error) {
	f.lookups++
	if f.outage != nil {
		return nil, f.outage
	}
	project, ok := f.projects[clientID]
	if !ok {
		return nil, credentials.ErrProjectNotFound
	}
	return project, nil
}

func (f *fakeProjects) VerifyClientSecret(project *model.Project, clientSecret string) bool {
	return f.secrets[project.ClientID] == clientSecret
}

// fakeResolver permits every scope unless a restricted set is given.
type fakeResolver struct {
	permitted []string
}

func (f *fakeResolver) PermittedScopes(ctx context.Context, developerID uint, candidates []string) ([]string, error) {
	if f.permitted == nil {
		return candidates, nil
	}
	allowed := make(map[string]bool, len(f.permitted))
	for _, s := range f.permitted {
		allowed[s] = true
	}
	var out []string
	for _, s := range candidates {
		if allowed[s] {
			out = append(out, s)
		}
	}
	return out, nil
}

type fakeGuard struct {
	mu        sync.Mutex
	failures  int
	successes int
	maxFailed int
	locked    bool
	risky     bool
}

func (f *fakeGuard) IsLocked(ctx context.Context, developerID uint) (bool, *time.Time, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.locked, nil, nil
}

func (f *fakeGuard) RecordFailure(ctx context.Context, developerID uint, ip string) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.failures++
	if f.maxFailed > 0 && f.failures >= f.maxFailed {
		f.locked = true
	}
	return f.locked, nil
}

func (f *fakeGuard) RecordSuccess(ctx context.Context, developerID uint) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.successes++
	f.failures = 0
	return nil
}

func (f *fakeGuard) RiskExceeded(ctx context.Context, developerID uint) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.risky, nil
}

type fakeLimiter struct {
	mu       sync.Mutex
	decision ratelimit.Decision
	checks   int
}

func (f *fakeLimiter) Check(ctx context.Context, key string, ceiling int) (*ratelimit.Decision, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.checks++
	decision := f.decision
	return &decision, nil
}

// memTokenRepo mirrors the compare-and-set revocation semantics of the
// MySQL repository.
type memTokenRepo struct {
	mu     sync.Mutex
	tokens map[string]*model.OAuthToken
}

func newMemTokenRepo() *memTokenRepo {
	return &memTokenRepo{tokens: make(map[string]*model.OAuthToken)}
}

func (r *memTokenRepo) Create(ctx context.Context, token *model.OAuthToken) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	clone := *token
	r.tokens[token.JTI] = &clone
	return nil
}

func (r *memTokenRepo) FirstByJTI(ctx context.Context, jti string) (*model.OAuthToken, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	token, ok := r.tokens[jti]
	if !ok {
		return nil, gorm.ErrRecordNotFound
	}
	clone := *token
	return &clone, nil
}

func (r *memTokenRepo) RevokeByJTI(ctx context.Context, jti string) (int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	token, ok := r.tokens[jti]
	if !ok || token.Revoked {
		return 0, nil
	}
	token.Revoked = true
	return 1, nil
}

func (r *memTokenRepo) DeleteExpiredBefore(ctx context.Context, cutoff time.Time) (int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var n int64
	for jti, token := range r.tokens {
		if token.ExpiresAt.Before(cutoff) {
			delete(r.tokens, jti)
			n++
		}
	}
	return n, nil
}

type capturingEmitter struct {
	mu     sync.Mutex
	events []*model.SecurityEvent
}

func (e *capturingEmitter) Emit(event *model.SecurityEvent) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.events = append(e.events, event)
}

func (e *capturingEmitter) lastByType(eventType string) *model.SecurityEvent {
	e.mu.Lock()
	defer e.mu.Unlock()
	for i := len(e.events) - 1; i >= 0; i-- {
		if e.events[i].EventType == eventType {
			return e.events[i]
		}
	}
	return nil
}

func (e *capturingEmitter) countByType(eventType string) int {
	e.mu.Lock()
	defer e.mu.Unlock()
	n := 0
	for _, event := range e.events {
		if event.EventType == eventType {
			n++
		}
	}
	return n
}

type engineFixture struct {
	engine   *Engine
	projects *fakeProjects
	resolver *fakeResolver
	guard    *fakeGuard
	limiter  *fakeLimiter
	tokens   *memTokenRepo
	emitter  *capturingEmitter
}

func newFixture(t *testing.T, ttl time.Duration) *engineFixture {
	t.Helper()
	signer, err := NewSigner(config.TokenConfig{
		SigningKey: "test-signing-key",
		Issuer:     "openbank-auth",
		Audience:   "openbank-api",
		TTL:        ttl,
	})
	if err != nil {
		t.Fatal(err)
	}
	f := &engineFixture{
		projects: &fakeProjects{
			projects: map[string]*model.Project{
				"ck_test": {
					ID:            10,
					DeveloperID:   1,
					ClientID:      "ck_test",
					AllowedScopes: []string{"payments", "transactions", "user-data"},
					Active:        true,
				},
			},
			secrets: map[string]string{"ck_test": "cs_correct"},
		},
		resolver: &fakeResolver{},
		guard:    &fakeGuard{maxFailed: 5},
		limiter:  &fakeLimiter{decision: ratelimit.Decision{Allowed: true, Remaining: 10}},
		tokens:   newMemTokenRepo(),
		emitter:  &capturingEmitter{},
	}
	f.engine = NewEngine(f.projects, f.resolver, f.guard, f.limiter, f.tokens, signer, f.emitter)
	return f
}

func issueOpts(scope string) IssueOptions {
	return IssueOptions{
		ClientID:     "ck_test",
		ClientSecret: "cs_correct",
		Scope:        scope,
		Request:      Request{IP: "203.0.113.9"},
	}
}

func refreshOpts(tokenString string) RefreshOptions {
	return RefreshOptions{
		ClientID:     "ck_test",
		ClientSecret: "cs_correct",
		Token:        tokenString,
		Request:      Request{IP: "203.0.113.9"},
	}
}

func TestIssueAndValidate(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, time.Hour)

	issued, err := f.engine.Issue(ctx, issueOpts("transactions payments"))
	if err != nil {
		t.Fatal(err)
	}
	if issued.TokenType != "Bearer" || issued.ExpiresIn != 3600 {
		t.Fatalf("unexpected token: %+v", issued)
	}
	if !reflect.DeepEqual(issued.Scopes, []string{"payments", "transactions"}) {
		t.Fatalf("issued scopes %v", issued.Scopes)
	}

	claims, err := f.engine.Validate(ctx, issued.AccessToken)
	if err != nil {
		t.Fatal(err)
	}
	if claims.DeveloperID != 1 || claims.ProjectID != 10 {
		t.Fatalf("unexpected claims: %+v", claims)
	}
	if claims.ID != issued.JTI {
		t.Fatalf("jti mismatch")
	}
	if f.emitter.countByType(audit.EventTokenIssued) != 1 {
		t.Fatalf("no token_issued event")
	}
}

func TestIssueEmptyScopeDefaultsToProject(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, time.Hour)

	issued, err := f.engine.Issue(ctx, issueOpts(""))
	if err != nil {
		t.Fatal(err)
	}
	want := []string{"payments", "transactions", "user-data"}
	if !reflect.DeepEqual(issued.Scopes, want) {
		t.Fatalf("got %v, want %v", issued.Scopes, want)
	}
}

func TestIssueScopeErrors(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, time.Hour)

	if _, err := f.engine.Issue(ctx, issueOpts("made-up")); !errors.Is(err, ErrInvalidScope) {
		t.Fatalf("got %v, want ErrInvalidScope", err)
	}
	// identity is a valid scope, but not in the project's allowed set
	if _, err := f.engine.Issue(ctx, issueOpts("identity")); !errors.Is(err, ErrInsufficientScope) {
		t.Fatalf("got %v, want ErrInsufficientScope", err)
	}

	// an explicit request narrowed away by grants is also insufficient
	f.resolver.permitted = []string{"transactions"}
	if _, err := f.engine.Issue(ctx, issueOpts("payments transactions")); !errors.Is(err, ErrInsufficientScope) {
		t.Fatalf("got %v, want ErrInsufficientScope", err)
	}
	if _, err := f.engine.Issue(ctx, issueOpts("transactions")); err != nil {
		t.Fatalf("narrowest request failed: %v", err)
	}
}

func TestIssueWrongSecret(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, time.Hour)

	opts := issueOpts("")
	opts.ClientSecret = "cs_wrong"
	if _, err := f.engine.Issue(ctx, opts); !errors.Is(err, ErrInvalidClient) {
		t.Fatalf("got %v, want ErrInvalidClient", err)
	}
	if f.guard.failures != 1 {
		t.Fatalf("failure not recorded, count = %d", f.guard.failures)
	}
	if f.emitter.countByType(audit.EventLoginFailure) != 1 {
		t.Fatalf("no login_failure event")
	}
}

func TestIssueFailuresThenSuccess(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, time.Hour)

	wrong := issueOpts("")
	wrong.ClientSecret = "cs_wrong"
	for i := 0; i < 4; i++ {
		if _, err := f.engine.Issue(ctx, wrong); !errors.Is(err, ErrInvalidClient) {
			t.Fatalf("attempt %d: got %v", i+1, err)
		}
	}
	// four failures stay under the threshold of five; correct credentials
	// still work and reset the counter
	if _, err := f.engine.Issue(ctx, issueOpts("")); err != nil {
		t.Fatalf("correct credentials rejected: %v", err)
	}
	if f.guard.failures != 0 {
		t.Fatalf("failure counter not reset")
	}
}

func TestIssueLockedAccount(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, time.Hour)
	f.guard.locked = true

	// correct credentials are rejected while the account is locked
	if _, err := f.engine.Issue(ctx, issueOpts("")); !errors.Is(err, ErrAccountLocked) {
		t.Fatalf("got %v, want ErrAccountLocked", err)
	}
	if f.emitter.countByType(audit.EventTokenIssueDenied) != 1 {
		t.Fatalf("no token_issue_denied event")
	}
}

func TestIssueRateLimited(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, time.Hour)
	f.limiter.decision = ratelimit.Decision{Allowed: false, RetryAfter: 42 * time.Second}

	_, err := f.engine.Issue(ctx, issueOpts(""))
	if !errors.Is(err, ErrRateLimited) {
		t.Fatalf("got %v, want ErrRateLimited", err)
	}
	var rateErr *RateLimitedError
	if !errors.As(err, &rateErr) || rateErr.RetryAfter != 42*time.Second {
		t.Fatalf("retry hint missing: %v", err)
	}
	if f.emitter.countByType(audit.EventRateLimitExceeded) != 1 {
		t.Fatalf("no rate_limit_exceeded event")
	}
}

func TestIssueInactiveProject(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, time.Hour)
	f.projects.projects["ck_test"].Active = false

	if _, err := f.engine.Issue(ctx, issueOpts("")); !errors.Is(err, ErrInvalidClient) {
		t.Fatalf("got %v, want ErrInvalidClient", err)
	}
}

func TestIssueRiskCeiling(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, time.Hour)
	f.guard.risky = true

	if _, err := f.engine.Issue(ctx, issueOpts("")); !errors.Is(err, ErrAccessDenied) {
		t.Fatalf("got %v, want ErrAccessDenied", err)
	}
}

func TestValidateExpiredToken(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, -time.Minute)

	issued, err := f.engine.Issue(ctx, issueOpts(""))
	if err != nil {
		t.Fatal(err)
	}
	if _, err := f.engine.Validate(ctx, issued.AccessToken); !errors.Is(err, ErrInvalidToken) {
		t.Fatalf("got %v, want ErrInvalidToken", err)
	}
}

func TestValidateRevokedToken(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, time.Hour)

	issued, err := f.engine.Issue(ctx, issueOpts(""))
	if err != nil {
		t.Fatal(err)
	}
	if err := f.engine.Revoke(ctx, issued.AccessToken, Request{}); err != nil {
		t.Fatal(err)
	}
	if _, err := f.engine.Validate(ctx, issued.AccessToken); !errors.Is(err, ErrInvalidToken) {
		t.Fatalf("got %v, want ErrInvalidToken", err)
	}
	if f.emitter.countByType(audit.EventAccessDenied) != 1 {
		t.Fatalf("no access_denied event for revoked token use")
	}
}

func TestValidateTamperedToken(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, time.Hour)

	issued, err := f.engine.Issue(ctx, issueOpts(""))
	if err != nil {
		t.Fatal(err)
	}
	tampered := issued.AccessToken[:len(issued.AccessToken)-2] + "xx"
	if _, err := f.engine.Validate(ctx, tampered); !errors.Is(err, ErrInvalidToken) {
		t.Fatalf("got %v, want ErrInvalidToken", err)
	}
}

func TestRefreshRotates(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, time.Hour)

	issued, err := f.engine.Issue(ctx, issueOpts("payments"))
	if err != nil {
		t.Fatal(err)
	}
	refreshed, err := f.engine.Refresh(ctx, refreshOpts(issued.AccessToken))
	if err != nil {
		t.Fatal(err)
	}
	if refreshed.JTI == issued.JTI {
		t.Fatalf("refresh reused the jti")
	}
	if !reflect.DeepEqual(refreshed.Scopes, issued.Scopes) {
		t.Fatalf("refresh changed scopes: %v -> %v", issued.Scopes, refreshed.Scopes)
	}

	// the old token is dead, the new one lives
	if _, err := f.engine.Validate(ctx, issued.AccessToken); !errors.Is(err, ErrInvalidToken) {
		t.Fatalf("old token still valid: %v", err)
	}
	if _, err := f.engine.Validate(ctx, refreshed.AccessToken); err != nil {
		t.Fatalf("new token invalid: %v", err)
	}

	// refreshing the old token again is an invalid grant
	if _, err := f.engine.Refresh(ctx, refreshOpts(issued.AccessToken)); !errors.Is(err, ErrInvalidGrant) {
		t.Fatalf("got %v, want ErrInvalidGrant", err)
	}
}

func TestRefreshNarrowsToCurrentProjectScopes(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, time.Hour)

	issued, err := f.engine.Issue(ctx, issueOpts("payments transactions"))
	if err != nil {
		t.Fatal(err)
	}
	// the project loses payments before the refresh
	f.projects.projects["ck_test"].AllowedScopes = []string{"transactions", "user-data"}

	refreshed, err := f.engine.Refresh(ctx, refreshOpts(issued.AccessToken))
	if err != nil {
		t.Fatal(err)
	}
	if !reflect.DeepEqual(refreshed.Scopes, []string{"transactions"}) {
		t.Fatalf("refreshed scopes %v", refreshed.Scopes)
	}
}

func TestConcurrentRefreshSingleWinner(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, time.Hour)

	issued, err := f.engine.Issue(ctx, issueOpts("payments"))
	if err != nil {
		t.Fatal(err)
	}

	const workers = 16
	var wg sync.WaitGroup
	results := make(chan error, workers)
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := f.engine.Refresh(ctx, refreshOpts(issued.AccessToken))
			results <- err
		}()
	}
	wg.Wait()
	close(results)

	var winners, losers int
	for err := range results {
		switch {
		case err == nil:
			winners++
		case errors.Is(err, ErrInvalidGrant):
			losers++
		default:
			t.Fatalf("unexpected refresh error: %v", err)
		}
	}
	if winners != 1 {
		t.Fatalf("got %d winners, want exactly 1", winners)
	}
	if losers != workers-1 {
		t.Fatalf("got %d losers, want %d", losers, workers-1)
	}
}

func TestRefreshRequiresClientSecret(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, time.Hour)

	issued, err := f.engine.Issue(ctx, issueOpts("payments"))
	if err != nil {
		t.Fatal(err)
	}

	// possession of the token with a wrong secret refreshes nothing
	opts := refreshOpts(issued.AccessToken)
	opts.ClientSecret = "cs_wrong"
	if _, err := f.engine.Refresh(ctx, opts); !errors.Is(err, ErrInvalidClient) {
		t.Fatalf("got %v, want ErrInvalidClient", err)
	}
	if f.guard.failures != 1 {
		t.Fatalf("failed refresh not counted against the account")
	}

	// after a secret rotation the superseded secret stops working too
	f.projects.secrets["ck_test"] = "cs_rotated"
	if _, err := f.engine.Refresh(ctx, refreshOpts(issued.AccessToken)); !errors.Is(err, ErrInvalidClient) {
		t.Fatalf("superseded secret refreshed: %v", err)
	}

	// the current secret still rotates the untouched token
	opts = refreshOpts(issued.AccessToken)
	opts.ClientSecret = "cs_rotated"
	if _, err := f.engine.Refresh(ctx, opts); err != nil {
		t.Fatalf("refresh with current secret failed: %v", err)
	}
}

func TestRefreshRateLimited(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, time.Hour)

	issued, err := f.engine.Issue(ctx, issueOpts("payments"))
	if err != nil {
		t.Fatal(err)
	}
	if f.limiter.checks != 1 {
		t.Fatalf("limiter checks after issue = %d", f.limiter.checks)
	}

	f.limiter.decision = ratelimit.Decision{Allowed: false, RetryAfter: 7 * time.Second}
	if _, err := f.engine.Refresh(ctx, refreshOpts(issued.AccessToken)); !errors.Is(err, ErrRateLimited) {
		t.Fatalf("got %v, want ErrRateLimited", err)
	}
	if f.limiter.checks != 2 {
		t.Fatalf("refresh skipped the limiter, checks = %d", f.limiter.checks)
	}

	// the throttled attempt did not consume the token
	f.limiter.decision = ratelimit.Decision{Allowed: true, Remaining: 10}
	if _, err := f.engine.Refresh(ctx, refreshOpts(issued.AccessToken)); err != nil {
		t.Fatalf("refresh after the window failed: %v", err)
	}
}

func TestRefreshTokenBoundToClient(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, time.Hour)
	f.projects.projects["ck_other"] = &model.Project{
		ID:            20,
		DeveloperID:   2,
		ClientID:      "ck_other",
		AllowedScopes: []string{"payments"},
		Active:        true,
	}
	f.projects.secrets["ck_other"] = "cs_other"

	issued, err := f.engine.Issue(ctx, issueOpts("payments"))
	if err != nil {
		t.Fatal(err)
	}

	// another client authenticating correctly cannot rotate this token
	_, err = f.engine.Refresh(ctx, RefreshOptions{
		ClientID:     "ck_other",
		ClientSecret: "cs_other",
		Token:        issued.AccessToken,
	})
	if !errors.Is(err, ErrInvalidGrant) {
		t.Fatalf("got %v, want ErrInvalidGrant", err)
	}
	if f.emitter.countByType(audit.EventTokenRefreshDenied) != 1 {
		t.Fatalf("cross-client refresh not audited")
	}

	// the rejected attempt left the token untouched
	if _, err := f.engine.Validate(ctx, issued.AccessToken); err != nil {
		t.Fatalf("token consumed by rejected refresh: %v", err)
	}
}

func TestRefreshDenialsAudited(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, time.Hour)

	issued, err := f.engine.Issue(ctx, issueOpts("payments"))
	if err != nil {
		t.Fatal(err)
	}
	if err := f.engine.Revoke(ctx, issued.AccessToken, Request{}); err != nil {
		t.Fatal(err)
	}

	if _, err := f.engine.Refresh(ctx, refreshOpts(issued.AccessToken)); !errors.Is(err, ErrInvalidGrant) {
		t.Fatalf("got %v, want ErrInvalidGrant", err)
	}
	if f.emitter.countByType(audit.EventTokenRefreshDenied) != 1 {
		t.Fatalf("revoked-token refresh not audited")
	}

	if _, err := f.engine.Refresh(ctx, refreshOpts("not-even-a-jwt")); !errors.Is(err, ErrInvalidGrant) {
		t.Fatalf("got %v, want ErrInvalidGrant", err)
	}
	if f.emitter.countByType(audit.EventTokenRefreshDenied) != 2 {
		t.Fatalf("malformed-token refresh not audited")
	}
}

func TestIssueProjectLookupOutage(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, time.Hour)
	f.projects.outage = errors.New("connection refused")

	// a storage outage is not an unknown client: no throttle charge, no
	// denial event, one retry, then fail closed
	if _, err := f.engine.Issue(ctx, issueOpts("")); !errors.Is(err, ErrServiceUnavailable) {
		t.Fatalf("got %v, want ErrServiceUnavailable", err)
	}
	if f.projects.lookups != 2 {
		t.Fatalf("lookup attempted %d times, want 2", f.projects.lookups)
	}
	if f.limiter.checks != 0 {
		t.Fatalf("outage charged the caller's throttle")
	}
	if f.emitter.countByType(audit.EventTokenIssueDenied) != 0 {
		t.Fatalf("outage audited as a credential denial")
	}
}

// outageTokenRepo fails every read with a transport error.
type outageTokenRepo struct {
	*memTokenRepo
	reads int
}

func (r *outageTokenRepo) FirstByJTI(ctx context.Context, jti string) (*model.OAuthToken, error) {
	r.reads++
	return nil, errors.New("connection refused")
}

func TestValidateFailsClosedOnStorageOutage(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, time.Hour)

	issued, err := f.engine.Issue(ctx, issueOpts(""))
	if err != nil {
		t.Fatal(err)
	}
	repo := &outageTokenRepo{memTokenRepo: f.tokens}
	f.engine.tokens = repo

	if _, err := f.engine.Validate(ctx, issued.AccessToken); !errors.Is(err, ErrServiceUnavailable) {
		t.Fatalf("got %v, want ErrServiceUnavailable", err)
	}
	if repo.reads != 2 {
		t.Fatalf("read attempted %d times, want 2", repo.reads)
	}
	event := f.emitter.lastByType(audit.EventAccessDenied)
	if event == nil || event.Severity != audit.SeverityError {
		t.Fatalf("fail-closed validation not audited at error severity: %+v", event)
	}
}

func TestRevokeIdempotent(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, time.Hour)

	issued, err := f.engine.Issue(ctx, issueOpts(""))
	if err != nil {
		t.Fatal(err)
	}
	if err := f.engine.Revoke(ctx, issued.AccessToken, Request{}); err != nil {
		t.Fatal(err)
	}
	if err := f.engine.Revoke(ctx, issued.AccessToken, Request{}); err != nil {
		t.Fatalf("second revoke errored: %v", err)
	}
	if err := f.engine.Revoke(ctx, "not-even-a-jwt", Request{}); err != nil {
		t.Fatalf("revoking garbage errored: %v", err)
	}
	if f.emitter.countByType(audit.EventTokenRevoked) != 1 {
		t.Fatalf("revoked event not emitted exactly once")
	}
}
