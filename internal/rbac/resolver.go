package rbac

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/go-sql-driver/mysql"
	"github.com/openbank/authcore/internal/audit"
	"github.com/openbank/authcore/internal/store"
	"github.com/openbank/authcore/model"
	"github.com/openbank/authcore/params"
)

type EventEmitter interface {
	Emit(event *model.SecurityEvent)
}

// Resolver combines role grants and custom permission grants into effective
// permission sets. Expired grants contribute nothing but stay in their rows.
// The per-developer cache is invalidated synchronously on every grant write;
// the resolver is correct without the cache, the cache is latency only.
type Resolver struct {
	roleRepo  UserRoleRepository
	permRepo  UserPermissionRepository
	permCache store.Store[PermissionSet]
	emitter   EventEmitter
}

func NewResolver(roleRepo UserRoleRepository, permRepo UserPermissionRepository, storage store.Storage) *Resolver {
	return &Resolver{
		roleRepo:  roleRepo,
		permRepo:  permRepo,
		permCache: store.New[PermissionSet](storage, params.PermissionKeyPrefix),
	}
}

// WithEmitter enables audit events for grant writes.
func (r *Resolver) WithEmitter(emitter EventEmitter) *Resolver {
	r.emitter = emitter
	return r
}

func (r *Resolver) audit(event *model.SecurityEvent) {
	if r.emitter != nil {
		r.emitter.Emit(event)
	}
}

func cacheKey(developerID uint) string {
	return fmt.Sprintf("%d", developerID)
}

// EffectivePermissions returns the union of all currently valid role and
// custom grants for the developer.
func (r *Resolver) EffectivePermissions(ctx context.Context, developerID uint) (PermissionSet, error) {
	if cached, err := r.permCache.Get(ctx, cacheKey(developerID)); err == nil {
		return cached, nil
	}

	set, err := r.resolve(ctx, developerID)
	if err != nil {
		return nil, err
	}
	if err := r.permCache.Set(ctx, cacheKey(developerID), set, params.PermissionCacheTTL); err != nil {
		slog.Warn("Failed to cache permissions", "developerID", developerID, "error", err)
	}
	return set, nil
}

func (r *Resolver) resolve(ctx context.Context, developerID uint) (PermissionSet, error) {
	now := time.Now()

	roleGrants, err := r.roleRepo.FindByDeveloper(ctx, developerID)
	if err != nil {
		return nil, err
	}
	var set PermissionSet
	liveRoles := 0
	for _, grant := range roleGrants {
		if grant.Expired(now) {
			continue
		}
		liveRoles++
		set = append(set, Role(grant.Role).Permissions()...)
	}
	if liveRoles == 0 {
		// A developer with no live role grant falls back to the read_only
		// baseline: enough to see their own profile, not enough to reach
		// the API.
		set = append(set, RoleReadOnly.Permissions()...)
	}

	permGrants, err := r.permRepo.FindByDeveloper(ctx, developerID)
	if err != nil {
		return nil, err
	}
	for _, grant := range permGrants {
		if grant.Expired(now) {
			continue
		}
		perm := Permission{Resource: grant.Resource, Action: grant.Action}
		if len(grant.Conditions) > 0 {
			if err := json.Unmarshal(grant.Conditions, &perm.Conditions); err != nil {
				slog.Warn("Skipping permission grant with malformed conditions", "grantID", grant.ID, "error", err)
				continue
			}
		}
		set = append(set, perm)
	}
	return set, nil
}

// Authorize reports whether the developer may perform action on resource.
// Deny by default: no grant, no access.
func (r *Resolver) Authorize(ctx context.Context, developerID uint, resource, action string) (bool, error) {
	return r.AuthorizeContext(ctx, developerID, resource, action, &Context{DeveloperID: developerID})
}

// AuthorizeContext is Authorize with explicit condition context.
func (r *Resolver) AuthorizeContext(ctx context.Context, developerID uint, resource, action string, pctx *Context) (bool, error) {
	set, err := r.EffectivePermissions(ctx, developerID)
	if err != nil {
		return false, err
	}
	return set.Allows(resource, action, pctx), nil
}

// PermittedScopes filters candidate scopes down to those the developer's
// grants cover. The blanket ("api", "access") grant covers every scope;
// otherwise a scope needs its own (scope, "access") grant.
func (r *Resolver) PermittedScopes(ctx context.Context, developerID uint, candidates []string) ([]string, error) {
	set, err := r.EffectivePermissions(ctx, developerID)
	if err != nil {
		return nil, err
	}
	pctx := &Context{DeveloperID: developerID}
	if set.Allows("api", "access", pctx) {
		return candidates, nil
	}
	var permitted []string
	for _, scope := range candidates {
		if set.Allows(scope, "access", pctx) {
			permitted = append(permitted, scope)
		}
	}
	return permitted, nil
}

// GrantRole assigns a role to a developer. The (developer, role) pair is
// unique; re-granting an already held role fails.
func (r *Resolver) GrantRole(ctx context.Context, developerID uint, role Role, grantedBy uint, expiresAt *time.Time) error {
	if !role.Valid() {
		return ErrUnknownRole
	}
	grant := model.UserRole{
		DeveloperID: developerID,
		Role:        string(role),
		GrantedBy:   grantedBy,
		ExpiresAt:   expiresAt,
	}
	var mysqlErr *mysql.MySQLError
	if err := r.roleRepo.Create(ctx, &grant); errors.As(err, &mysqlErr) && mysqlErr.Number == 1062 {
		return ErrRoleAlreadyGranted
	} else if err != nil {
		return err
	}
	r.invalidate(ctx, developerID)
	r.audit(&model.SecurityEvent{
		EventType:   audit.EventRoleGranted,
		Severity:    audit.SeverityInfo,
		DeveloperID: developerID,
		Success:     true,
		Reason:      fmt.Sprintf("role %s granted by %d", role, grantedBy),
	})
	return nil
}

func (r *Resolver) RevokeRole(ctx context.Context, developerID uint, role Role) error {
	n, err := r.roleRepo.Delete(ctx, developerID, string(role))
	if err != nil {
		return err
	}
	if n == 0 {
		return ErrGrantNotFound
	}
	r.invalidate(ctx, developerID)
	r.audit(&model.SecurityEvent{
		EventType:   audit.EventRoleRevoked,
		Severity:    audit.SeverityWarning,
		DeveloperID: developerID,
		Success:     true,
		Reason:      "role " + string(role),
	})
	return nil
}

// GrantPermission adds a custom (resource, action) grant beyond role
// defaults. Grants only ever widen access.
func (r *Resolver) GrantPermission(ctx context.Context, developerID uint, resource, action string, conditions map[string]string, grantedBy uint, expiresAt *time.Time) error {
	grant := model.UserPermission{
		DeveloperID: developerID,
		Resource:    resource,
		Action:      action,
		GrantedBy:   grantedBy,
		ExpiresAt:   expiresAt,
	}
	if len(conditions) > 0 {
		data, err := json.Marshal(conditions)
		if err != nil {
			return err
		}
		grant.Conditions = data
	}
	if err := r.permRepo.Create(ctx, &grant); err != nil {
		return err
	}
	r.invalidate(ctx, developerID)
	r.audit(&model.SecurityEvent{
		EventType:   audit.EventPermissionGranted,
		Severity:    audit.SeverityInfo,
		DeveloperID: developerID,
		Resource:    resource,
		Action:      action,
		Success:     true,
		Reason:      fmt.Sprintf("granted by %d", grantedBy),
	})
	return nil
}

func (r *Resolver) RevokePermission(ctx context.Context, grantID uint) error {
	grant, err := r.permRepo.FirstByID(ctx, grantID)
	if err != nil {
		return ErrGrantNotFound
	}
	n, err := r.permRepo.Delete(ctx, grantID)
	if err != nil {
		return err
	}
	if n == 0 {
		return ErrGrantNotFound
	}
	r.invalidate(ctx, grant.DeveloperID)
	r.audit(&model.SecurityEvent{
		EventType:   audit.EventPermissionRevoked,
		Severity:    audit.SeverityWarning,
		DeveloperID: grant.DeveloperID,
		Resource:    grant.Resource,
		Action:      grant.Action,
		Success:     true,
	})
	return nil
}

// invalidate drops the cached permission set. A failed invalidation is
// logged and the entry left to its TTL; stale reads can only retain revoked
// grants for at most the cache TTL.
func (r *Resolver) invalidate(ctx context.Context, developerID uint) {
	if err := r.permCache.Delete(ctx, cacheKey(developerID)); err != nil && !errors.Is(err, store.ErrNotFound) {
		slog.Warn("Failed to invalidate permission cache", "developerID", developerID, "error", err)
	}
}
