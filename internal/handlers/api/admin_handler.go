package api

import (
	"errors"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/openbank/authcore/internal/audit"
	"github.com/openbank/authcore/internal/guard"
	"github.com/openbank/authcore/internal/middlewares"
	"github.com/openbank/authcore/internal/rbac"
)

// AdminHandler exposes role, permission and account administration. Every
// endpoint authorizes the caller against the permission table before
// touching anything.
type AdminHandler struct {
	resolver *rbac.Resolver
	guard    *guard.Guard
	events   audit.SecurityEventRepository
}

func NewAdminHandler(resolver *rbac.Resolver, guard *guard.Guard, events audit.SecurityEventRepository) *AdminHandler {
	return &AdminHandler{resolver: resolver, guard: guard, events: events}
}

type grantRoleRequest struct {
	DeveloperID uint       `json:"developer_id"`
	Role        string     `json:"role"`
	ExpiresAt   *time.Time `json:"expires_at"`
}

type grantPermissionRequest struct {
	DeveloperID uint              `json:"developer_id"`
	Resource    string            `json:"resource"`
	Action      string            `json:"action"`
	Conditions  map[string]string `json:"conditions"`
	ExpiresAt   *time.Time        `json:"expires_at"`
}

func (h *AdminHandler) authorize(ctx *fiber.Ctx, resource, action string) error {
	claims := middlewares.TokenClaims(ctx)
	allowed, err := h.resolver.Authorize(ctx.Context(), claims.DeveloperID, resource, action)
	if err != nil {
		return err
	}
	if !allowed {
		return fiber.ErrForbidden
	}
	return nil
}

// PostGrantRole handles POST /admin/roles.
func (h *AdminHandler) PostGrantRole(ctx *fiber.Ctx) error {
	if err := h.authorize(ctx, "users", "delete"); err != nil {
		return err
	}
	var req grantRoleRequest
	if err := ctx.BodyParser(&req); err != nil {
		return fiber.ErrBadRequest
	}
	claims := middlewares.TokenClaims(ctx)
	err := h.resolver.GrantRole(ctx.Context(), req.DeveloperID, rbac.Role(req.Role), claims.DeveloperID, req.ExpiresAt)
	switch {
	case errors.Is(err, rbac.ErrUnknownRole):
		return fiber.NewError(fiber.StatusBadRequest, "unknown role")
	case errors.Is(err, rbac.ErrRoleAlreadyGranted):
		return fiber.NewError(fiber.StatusConflict, "role already granted")
	case err != nil:
		return err
	}
	return ctx.SendStatus(fiber.StatusCreated)
}

// DeleteRole handles DELETE /admin/roles.
func (h *AdminHandler) DeleteRole(ctx *fiber.Ctx) error {
	if err := h.authorize(ctx, "users", "delete"); err != nil {
		return err
	}
	var req grantRoleRequest
	if err := ctx.BodyParser(&req); err != nil {
		return fiber.ErrBadRequest
	}
	err := h.resolver.RevokeRole(ctx.Context(), req.DeveloperID, rbac.Role(req.Role))
	if errors.Is(err, rbac.ErrGrantNotFound) {
		return fiber.ErrNotFound
	}
	if err != nil {
		return err
	}
	return ctx.SendStatus(fiber.StatusNoContent)
}

// PostGrantPermission handles POST /admin/permissions.
func (h *AdminHandler) PostGrantPermission(ctx *fiber.Ctx) error {
	if err := h.authorize(ctx, "users", "delete"); err != nil {
		return err
	}
	var req grantPermissionRequest
	if err := ctx.BodyParser(&req); err != nil {
		return fiber.ErrBadRequest
	}
	if req.Resource == "" || req.Action == "" {
		return fiber.NewError(fiber.StatusBadRequest, "resource and action are required")
	}
	claims := middlewares.TokenClaims(ctx)
	if err := h.resolver.GrantPermission(ctx.Context(), req.DeveloperID, req.Resource, req.Action,
		req.Conditions, claims.DeveloperID, req.ExpiresAt); err != nil {
		return err
	}
	return ctx.SendStatus(fiber.StatusCreated)
}

// DeletePermission handles DELETE /admin/permissions/:id.
func (h *AdminHandler) DeletePermission(ctx *fiber.Ctx) error {
	if err := h.authorize(ctx, "users", "delete"); err != nil {
		return err
	}
	grantID, err := ctx.ParamsInt("id")
	if err != nil {
		return fiber.ErrBadRequest
	}
	err = h.resolver.RevokePermission(ctx.Context(), uint(grantID))
	if errors.Is(err, rbac.ErrGrantNotFound) {
		return fiber.ErrNotFound
	}
	if err != nil {
		return err
	}
	return ctx.SendStatus(fiber.StatusNoContent)
}

// PostUnlock handles POST /admin/accounts/:id/unlock.
func (h *AdminHandler) PostUnlock(ctx *fiber.Ctx) error {
	if err := h.authorize(ctx, "developers", "suspend"); err != nil {
		return err
	}
	developerID, err := ctx.ParamsInt("id")
	if err != nil {
		return fiber.ErrBadRequest
	}
	if err := h.guard.Unlock(ctx.Context(), uint(developerID)); err != nil {
		return err
	}
	return ctx.SendStatus(fiber.StatusNoContent)
}

// GetAuditEvents handles GET /admin/audit.
func (h *AdminHandler) GetAuditEvents(ctx *fiber.Ctx) error {
	if err := h.authorize(ctx, "audit", "read"); err != nil {
		return err
	}
	filter := audit.QueryFilter{
		DeveloperID:   uint(ctx.QueryInt("developer_id")),
		ProjectID:     uint(ctx.QueryInt("project_id")),
		EventType:     ctx.Query("event_type"),
		Severity:      ctx.Query("severity"),
		ComplianceTag: ctx.Query("tag"),
		Limit:         ctx.QueryInt("limit"),
	}
	if since := ctx.Query("since"); since != "" {
		t, err := time.Parse(time.RFC3339, since)
		if err != nil {
			return fiber.NewError(fiber.StatusBadRequest, "since must be RFC 3339")
		}
		filter.Since = t
	}
	if until := ctx.Query("until"); until != "" {
		t, err := time.Parse(time.RFC3339, until)
		if err != nil {
			return fiber.NewError(fiber.StatusBadRequest, "until must be RFC 3339")
		}
		filter.Until = t
	}
	events, err := h.events.Find(ctx.Context(), filter)
	if err != nil {
		return err
	}
	return ctx.JSON(events)
}
