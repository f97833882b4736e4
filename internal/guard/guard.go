package guard

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/openbank/authcore/internal/audit"
	"github.com/openbank/authcore/internal/common"
	"github.com/openbank/authcore/internal/config"
	"github.com/openbank/authcore/internal/notify"
	"github.com/openbank/authcore/model"
	"github.com/openbank/authcore/params"
	"gorm.io/gorm"
)

type DeveloperRepository interface {
	FirstByID(ctx context.Context, id uint) (*model.Developer, error)
}

type EventEmitter interface {
	Emit(event *model.SecurityEvent)
}

// LockPolicy maps a lockout ordinal (1 for the first lock since the last
// successful authentication) to a lock duration.
type LockPolicy func(lockNumber int) time.Duration

// ProgressiveLock doubles the base duration per consecutive lockout,
// capped at 24 hours.
func ProgressiveLock(base time.Duration) LockPolicy {
	return func(lockNumber int) time.Duration {
		d := base
		for i := 1; i < lockNumber && d < 24*time.Hour; i++ {
			d *= 2
		}
		if d > 24*time.Hour {
			return 24 * time.Hour
		}
		return d
	}
}

// FixedLock always locks for the same duration.
func FixedLock(d time.Duration) LockPolicy {
	return func(int) time.Duration { return d }
}

// Guard tracks authentication failures per developer and locks accounts
// that cross the failure threshold. Lock state is authoritative in MySQL;
// every check reads the row so a lock placed by one instance holds on all.
type Guard struct {
	repo          AccountSecurityRepository
	developerRepo DeveloperRepository
	emitter       EventEmitter
	sender        notify.MailSender
	maxFailed     int
	riskCeiling   int
	lockPolicy    LockPolicy
	now           func() time.Time
}

func NewGuard(repo AccountSecurityRepository, developerRepo DeveloperRepository, emitter EventEmitter, sender notify.MailSender, cfg config.SecurityConfig) *Guard {
	policy := FixedLock(cfg.LockoutDuration)
	if cfg.ProgressiveLockout {
		policy = ProgressiveLock(cfg.LockoutDuration)
	}
	return &Guard{
		repo:          repo,
		developerRepo: developerRepo,
		emitter:       emitter,
		sender:        sender,
		maxFailed:     cfg.MaxFailedAttempts,
		riskCeiling:   cfg.RiskCeiling,
		lockPolicy:    policy,
		now:           time.Now,
	}
}

// IsLocked reports whether the developer's account is currently locked.
// An account with no security record is not locked.
func (g *Guard) IsLocked(ctx context.Context, developerID uint) (bool, *time.Time, error) {
	record, err := g.repo.FirstByDeveloper(ctx, developerID)
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return false, nil, nil
	}
	if err != nil {
		return false, nil, err
	}
	if record.Locked(g.now()) {
		return true, record.LockedUntil, nil
	}
	return false, nil, nil
}

// RecordFailure counts a failed authentication attempt and locks the
// account when the threshold is reached. It returns whether this failure
// triggered a lock.
func (g *Guard) RecordFailure(ctx context.Context, developerID uint, ip string) (bool, error) {
	record, err := ensure(ctx, g.repo, developerID)
	if err != nil {
		return false, err
	}
	now := g.now()

	columns := map[string]interface{}{
		"failed_attempts":     gorm.Expr("failed_attempts + 1"),
		"last_failed_attempt": now,
	}
	if ip != "" && !contains(record.SuspiciousIPs, ip) && len(record.SuspiciousIPs) > 0 {
		// An address we have not seen failing before, while others already
		// have: treat as suspicious and bump the score.
		ips := append(record.SuspiciousIPs, ip)
		data, _ := json.Marshal(ips)
		columns["suspicious_ips"] = string(data)
		columns["suspicious_activity_score"] = gorm.Expr(
			"LEAST(suspicious_activity_score + ?, 100)", params.SuspicionFailIncrement)
		g.emitter.Emit(&model.SecurityEvent{
			EventType:   audit.EventSuspiciousIP,
			Severity:    audit.SeverityWarning,
			DeveloperID: developerID,
			IP:          ip,
		})
		g.alertSuspicious(ctx, developerID, ip)
	} else if ip != "" && len(record.SuspiciousIPs) == 0 {
		data, _ := json.Marshal([]string{ip})
		columns["suspicious_ips"] = string(data)
	}
	if _, err := g.repo.Updates(ctx, developerID, columns); err != nil {
		return false, err
	}

	// The threshold decision reads the row again after the increment.
	// Deciding on the pre-increment snapshot misses the lock when failures
	// land concurrently: writers counting from the same snapshot can push
	// the stored counter past the threshold while each computes a value
	// below it. Locking whenever the live counter is at or past the
	// threshold and no lock is armed holds under any interleaving.
	updated, err := g.repo.FirstByDeveloper(ctx, developerID)
	if err != nil {
		return false, err
	}
	attempts := updated.FailedAttempts
	if g.maxFailed <= 0 || attempts < g.maxFailed || updated.Locked(now) {
		return false, nil
	}
	return true, g.lock(ctx, developerID, attempts/g.maxFailed, ip)
}

func (g *Guard) lock(ctx context.Context, developerID uint, lockNumber int, ip string) error {
	until := g.now().Add(g.lockPolicy(lockNumber))
	reason := fmt.Sprintf("too many failed authentication attempts (lock #%d)", lockNumber)
	if _, err := g.repo.Updates(ctx, developerID, map[string]interface{}{
		"locked_until": until,
		"lock_reason":  reason,
	}); err != nil {
		return err
	}
	g.emitter.Emit(&model.SecurityEvent{
		EventType:   audit.EventAccountLocked,
		Severity:    audit.SeverityCritical,
		DeveloperID: developerID,
		IP:          ip,
		Reason:      reason,
	})
	g.alertLockout(ctx, developerID, until, reason)
	return nil
}

// alertLockout mails the developer about the lock. Failures are logged,
// never surfaced: alerting must not affect the authentication path.
func (g *Guard) alertLockout(ctx context.Context, developerID uint, until time.Time, reason string) {
	developer, err := g.developerRepo.FirstByID(ctx, developerID)
	if err != nil {
		slog.Warn("Failed to load developer for lockout alert", "developerID", developerID, "error", err)
		return
	}
	if !developer.Active {
		return
	}
	go func() {
		if err := notify.SendLockoutAlert(g.sender, developer.Email, until, reason); err != nil {
			slog.Warn("Failed to send lockout alert", "developerID", developerID, "error", err)
		}
	}()
}

// alertSuspicious mails the developer about failures from an address not
// seen before. Same contract as alertLockout: log and move on.
func (g *Guard) alertSuspicious(ctx context.Context, developerID uint, ip string) {
	developer, err := g.developerRepo.FirstByID(ctx, developerID)
	if err != nil {
		slog.Warn("Failed to load developer for suspicious activity alert", "developerID", developerID, "error", err)
		return
	}
	if !developer.Active {
		return
	}
	go func() {
		if err := notify.SendSuspiciousActivityAlert(g.sender, developer.Email, ip); err != nil {
			slog.Warn("Failed to send suspicious activity alert", "developerID", developerID, "error", err)
		}
	}()
}

// RecordSuccess resets the failure counter, decays the suspicion score and
// updates the login bookkeeping.
func (g *Guard) RecordSuccess(ctx context.Context, developerID uint) error {
	if _, err := ensure(ctx, g.repo, developerID); err != nil {
		return err
	}
	_, err := g.repo.Updates(ctx, developerID, map[string]interface{}{
		"failed_attempts":       0,
		"locked_until":          nil,
		"lock_reason":           "",
		"last_successful_login": g.now(),
		"login_count":           gorm.Expr("login_count + 1"),
		"suspicious_activity_score": gorm.Expr(
			"GREATEST(suspicious_activity_score - ?, 0)", params.SuspicionSuccessDecay),
	})
	return err
}

// RiskExceeded reports whether the developer's suspicion score has reached
// the issuance ceiling.
func (g *Guard) RiskExceeded(ctx context.Context, developerID uint) (bool, error) {
	record, err := g.repo.FirstByDeveloper(ctx, developerID)
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return record.SuspiciousActivityScore >= g.riskCeiling, nil
}

// RaiseSuspicion bumps the suspicion score without counting a failure.
func (g *Guard) RaiseSuspicion(ctx context.Context, developerID uint, delta int) error {
	if _, err := ensure(ctx, g.repo, developerID); err != nil {
		return err
	}
	_, err := g.repo.Updates(ctx, developerID, map[string]interface{}{
		"suspicious_activity_score": gorm.Expr("LEAST(suspicious_activity_score + ?, 100)", delta),
	})
	return err
}

// Unlock clears a lock manually, e.g. after support verification.
func (g *Guard) Unlock(ctx context.Context, developerID uint) error {
	n, err := g.repo.Updates(ctx, developerID, map[string]interface{}{
		"locked_until":    nil,
		"lock_reason":     "",
		"failed_attempts": 0,
	})
	if err != nil {
		return err
	}
	if n > 0 {
		g.emitter.Emit(&model.SecurityEvent{
			EventType:   audit.EventAccountUnlocked,
			Severity:    audit.SeverityWarning,
			DeveloperID: developerID,
		})
	}
	return nil
}

// CanUsePassword reports whether the candidate password differs from every
// hash in the reuse prevention window.
func (g *Guard) CanUsePassword(ctx context.Context, developerID uint, password string) (bool, error) {
	record, err := g.repo.FirstByDeveloper(ctx, developerID)
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return true, nil
	}
	if err != nil {
		return false, err
	}
	for _, hash := range record.PasswordHistoryHashes {
		if common.VerifySecret(password, hash) {
			return false, nil
		}
	}
	return true, nil
}

// RecordPasswordChange appends the new hash to the history, trimming it to
// the reuse prevention window.
func (g *Guard) RecordPasswordChange(ctx context.Context, developerID uint, newHash string) error {
	record, err := ensure(ctx, g.repo, developerID)
	if err != nil {
		return err
	}
	history := append(record.PasswordHistoryHashes, newHash)
	if len(history) > params.PasswordHistorySize {
		history = history[len(history)-params.PasswordHistorySize:]
	}
	data, err := json.Marshal(history)
	if err != nil {
		return err
	}
	// Changing the credential is the recovery action a lock asks for, so the
	// lock is lifted with it.
	_, err = g.repo.Updates(ctx, developerID, map[string]interface{}{
		"password_history_hashes": string(data),
		"password_last_changed":   g.now(),
		"locked_until":            nil,
		"lock_reason":             "",
		"failed_attempts":         0,
	})
	if err != nil {
		return err
	}
	g.emitter.Emit(&model.SecurityEvent{
		EventType:   audit.EventPasswordChanged,
		Severity:    audit.SeverityInfo,
		DeveloperID: developerID,
		Success:     true,
	})
	return nil
}

func contains(list []string, item string) bool {
	for _, s := range list {
		if s == item {
			return true
		}
	}
	return false
}
