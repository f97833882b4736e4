package rbac

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/openbank/authcore/internal/store"
	"github.com/openbank/authcore/model"
	"gorm.io/gorm"
)

type fakeRoleRepo struct {
	grants []*model.UserRole
}

func (r *fakeRoleRepo) FindByDeveloper(ctx context.Context, developerID uint) ([]*model.UserRole, error) {
	var out []*model.UserRole
	for _, g := range r.grants {
		if g.DeveloperID == developerID {
			out = append(out, g)
		}
	}
	return out, nil
}

func (r *fakeRoleRepo) Create(ctx context.Context, grant *model.UserRole) error {
	r.grants = append(r.grants, grant)
	return nil
}

func (r *fakeRoleRepo) Delete(ctx context.Context, developerID uint, role string) (int64, error) {
	for i, g := range r.grants {
		if g.DeveloperID == developerID && g.Role == role {
			r.grants = append(r.grants[:i], r.grants[i+1:]...)
			return 1, nil
		}
	}
	return 0, nil
}

type fakePermRepo struct {
	grants []*model.UserPermission
}

func (r *fakePermRepo) FindByDeveloper(ctx context.Context, developerID uint) ([]*model.UserPermission, error) {
	var out []*model.UserPermission
	for _, g := range r.grants {
		if g.DeveloperID == developerID {
			out = append(out, g)
		}
	}
	return out, nil
}

func (r *fakePermRepo) FirstByID(ctx context.Context, id uint) (*model.UserPermission, error) {
	for _, g := range r.grants {
		if g.ID == id {
			return g, nil
		}
	}
	return nil, gorm.ErrRecordNotFound
}

func (r *fakePermRepo) Create(ctx context.Context, grant *model.UserPermission) error {
	r.grants = append(r.grants, grant)
	return nil
}

func (r *fakePermRepo) Delete(ctx context.Context, id uint) (int64, error) {
	for i, g := range r.grants {
		if g.ID == id {
			r.grants = append(r.grants[:i], r.grants[i+1:]...)
			return 1, nil
		}
	}
	return 0, nil
}

func newTestResolver(roleRepo UserRoleRepository, permRepo UserPermissionRepository) *Resolver {
	return NewResolver(roleRepo, permRepo, store.NewMemoryStorage())
}

func TestRoleInheritance(t *testing.T) {
	ctx := context.Background()
	roles := &fakeRoleRepo{grants: []*model.UserRole{
		{DeveloperID: 1, Role: string(RoleDeveloper)},
	}}
	resolver := newTestResolver(roles, &fakePermRepo{})

	// developer holds its own permissions and the inherited read_only set
	for _, check := range []struct {
		resource, action string
	}{
		{"tokens", "generate"},
		{"api", "access"},
		{"documentation", "read"},
	} {
		allowed, err := resolver.Authorize(ctx, 1, check.resource, check.action)
		if err != nil {
			t.Fatal(err)
		}
		if !allowed {
			t.Errorf("developer denied (%s, %s)", check.resource, check.action)
		}
	}
	allowed, err := resolver.Authorize(ctx, 1, "system", "manage")
	if err != nil {
		t.Fatal(err)
	}
	if allowed {
		t.Fatalf("developer allowed super_admin permission")
	}
}

func TestNoGrantsNoAccess(t *testing.T) {
	resolver := newTestResolver(&fakeRoleRepo{}, &fakePermRepo{})
	allowed, err := resolver.Authorize(context.Background(), 9, "api", "access")
	if err != nil {
		t.Fatal(err)
	}
	if allowed {
		t.Fatalf("developer with no grants was allowed")
	}
}

func TestNoGrantsFallBackToReadOnly(t *testing.T) {
	ctx := context.Background()
	resolver := newTestResolver(&fakeRoleRepo{}, &fakePermRepo{})

	// a developer with no role grants still gets the read_only baseline
	for _, check := range []struct {
		resource, action string
	}{
		{"documentation", "read"},
		{"profile", "read_own"},
	} {
		allowed, err := resolver.Authorize(ctx, 9, check.resource, check.action)
		if err != nil {
			t.Fatal(err)
		}
		if !allowed {
			t.Errorf("grantless developer denied baseline (%s, %s)", check.resource, check.action)
		}
	}
}

func TestExpiredGrantsContributeNothing(t *testing.T) {
	ctx := context.Background()
	past := time.Now().Add(-time.Hour)
	future := time.Now().Add(time.Hour)
	roles := &fakeRoleRepo{grants: []*model.UserRole{
		{DeveloperID: 1, Role: string(RoleAdmin), ExpiresAt: &past},
	}}
	perms := &fakePermRepo{grants: []*model.UserPermission{
		{ID: 1, DeveloperID: 1, Resource: "reports", Action: "export", ExpiresAt: &past},
		{ID: 2, DeveloperID: 1, Resource: "reports", Action: "read", ExpiresAt: &future},
	}}
	resolver := newTestResolver(roles, perms)

	if allowed, _ := resolver.Authorize(ctx, 1, "audit", "read"); allowed {
		t.Fatalf("expired role grant still effective")
	}
	if allowed, _ := resolver.Authorize(ctx, 1, "reports", "export"); allowed {
		t.Fatalf("expired permission grant still effective")
	}
	if allowed, _ := resolver.Authorize(ctx, 1, "reports", "read"); !allowed {
		t.Fatalf("unexpired permission grant not effective")
	}
}

func TestConditionEvaluation(t *testing.T) {
	ctx := context.Background()
	perms := &fakePermRepo{grants: []*model.UserPermission{
		{ID: 1, DeveloperID: 1, Resource: "projects", Action: "delete", Conditions: []byte(`{"owner":"self"}`)},
		{ID: 2, DeveloperID: 1, Resource: "deploys", Action: "run", Conditions: []byte(`{"environment":"staging"}`)},
		{ID: 3, DeveloperID: 1, Resource: "exports", Action: "run", Conditions: []byte(`{"made_up_key":"x"}`)},
	}}
	resolver := newTestResolver(&fakeRoleRepo{}, perms)

	ownSelf := &Context{DeveloperID: 1, ResourceOwnerID: 1}
	ownOther := &Context{DeveloperID: 1, ResourceOwnerID: 2}
	if allowed, _ := resolver.AuthorizeContext(ctx, 1, "projects", "delete", ownSelf); !allowed {
		t.Fatalf("owner=self denied for own resource")
	}
	if allowed, _ := resolver.AuthorizeContext(ctx, 1, "projects", "delete", ownOther); allowed {
		t.Fatalf("owner=self allowed for foreign resource")
	}

	staging := &Context{DeveloperID: 1, Environment: "staging"}
	production := &Context{DeveloperID: 1, Environment: "production"}
	if allowed, _ := resolver.AuthorizeContext(ctx, 1, "deploys", "run", staging); !allowed {
		t.Fatalf("environment condition denied in matching environment")
	}
	if allowed, _ := resolver.AuthorizeContext(ctx, 1, "deploys", "run", production); allowed {
		t.Fatalf("environment condition allowed in other environment")
	}

	// a grant with an unknown condition key fails that grant only
	if allowed, _ := resolver.AuthorizeContext(ctx, 1, "exports", "run", ownSelf); allowed {
		t.Fatalf("grant with unknown condition key was effective")
	}
}

func TestPermittedScopes(t *testing.T) {
	ctx := context.Background()

	// blanket api access covers every candidate scope
	roles := &fakeRoleRepo{grants: []*model.UserRole{
		{DeveloperID: 1, Role: string(RoleDeveloper)},
	}}
	resolver := newTestResolver(roles, &fakePermRepo{})
	permitted, err := resolver.PermittedScopes(ctx, 1, []string{"payments", "identity"})
	if err != nil {
		t.Fatal(err)
	}
	if len(permitted) != 2 {
		t.Fatalf("blanket grant permitted %v", permitted)
	}

	// without the blanket, only per-scope grants pass
	perms := &fakePermRepo{grants: []*model.UserPermission{
		{ID: 1, DeveloperID: 2, Resource: "payments", Action: "access"},
	}}
	resolver = newTestResolver(&fakeRoleRepo{}, perms)
	permitted, err = resolver.PermittedScopes(ctx, 2, []string{"payments", "identity"})
	if err != nil {
		t.Fatal(err)
	}
	if len(permitted) != 1 || permitted[0] != "payments" {
		t.Fatalf("got %v, want [payments]", permitted)
	}
}

func TestGrantAndRevokeInvalidateCache(t *testing.T) {
	ctx := context.Background()
	resolver := newTestResolver(&fakeRoleRepo{}, &fakePermRepo{})

	if allowed, _ := resolver.Authorize(ctx, 1, "api", "access"); allowed {
		t.Fatalf("access before any grant")
	}
	if err := resolver.GrantRole(ctx, 1, RoleDeveloper, 99, nil); err != nil {
		t.Fatal(err)
	}
	if allowed, _ := resolver.Authorize(ctx, 1, "api", "access"); !allowed {
		t.Fatalf("cached denial survived the grant")
	}
	if err := resolver.RevokeRole(ctx, 1, RoleDeveloper); err != nil {
		t.Fatal(err)
	}
	if allowed, _ := resolver.Authorize(ctx, 1, "api", "access"); allowed {
		t.Fatalf("cached allowance survived the revocation")
	}
}

func TestGrantRoleValidation(t *testing.T) {
	ctx := context.Background()
	resolver := newTestResolver(&fakeRoleRepo{}, &fakePermRepo{})

	if err := resolver.GrantRole(ctx, 1, Role("made_up"), 99, nil); !errors.Is(err, ErrUnknownRole) {
		t.Fatalf("got %v, want ErrUnknownRole", err)
	}
	if err := resolver.RevokeRole(ctx, 1, RoleAuditor); !errors.Is(err, ErrGrantNotFound) {
		t.Fatalf("got %v, want ErrGrantNotFound", err)
	}
}
