package api

import (
	"encoding/base64"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/gofiber/fiber/v2"
	"github.com/openbank/authcore/internal/scopes"
	"github.com/openbank/authcore/internal/token"
)

type TokenHandler struct {
	engine *token.Engine
}

func NewTokenHandler(engine *token.Engine) *TokenHandler {
	return &TokenHandler{engine: engine}
}

// PostToken handles POST /oauth/token, the client credentials grant.
func (h *TokenHandler) PostToken(ctx *fiber.Ctx) error {
	if ctx.FormValue("grant_type") != "client_credentials" {
		return ctx.Status(fiber.StatusBadRequest).JSON(OAuthErrorResponse{
			Error:            "unsupported_grant_type",
			ErrorDescription: "only client_credentials is supported",
		})
	}
	clientID, clientSecret := clientCredentials(ctx)
	issued, err := h.engine.Issue(ctx.Context(), token.IssueOptions{
		ClientID:     clientID,
		ClientSecret: clientSecret,
		Scope:        ctx.FormValue("scope"),
		Request:      requestInfo(ctx),
	})
	if err != nil {
		return oauthError(ctx, err)
	}
	return ctx.JSON(TokenResponse{
		AccessToken: issued.AccessToken,
		TokenType:   issued.TokenType,
		ExpiresIn:   issued.ExpiresIn,
		Scope:       scopes.Join(issued.Scopes),
	})
}

// PostRefresh handles POST /oauth/refresh: exchange a still-valid access
// token for a fresh one, revoking the old. The client re-authenticates
// with its id and secret; presenting the token alone is not enough.
func (h *TokenHandler) PostRefresh(ctx *fiber.Ctx) error {
	tokenString := ctx.FormValue("token")
	if tokenString == "" {
		tokenString = bearerToken(ctx)
	}
	if tokenString == "" {
		return ctx.Status(fiber.StatusBadRequest).JSON(OAuthErrorResponse{
			Error:            "invalid_request",
			ErrorDescription: "token parameter is required",
		})
	}
	clientID, clientSecret := clientCredentials(ctx)
	issued, err := h.engine.Refresh(ctx.Context(), token.RefreshOptions{
		ClientID:     clientID,
		ClientSecret: clientSecret,
		Token:        tokenString,
		Request:      requestInfo(ctx),
	})
	if err != nil {
		return oauthError(ctx, err)
	}
	return ctx.JSON(TokenResponse{
		AccessToken: issued.AccessToken,
		TokenType:   issued.TokenType,
		ExpiresIn:   issued.ExpiresIn,
		Scope:       scopes.Join(issued.Scopes),
	})
}

// PostRevoke handles POST /oauth/revoke. Revocation is idempotent and
// responds 200 even for unknown tokens, per RFC 7009.
func (h *TokenHandler) PostRevoke(ctx *fiber.Ctx) error {
	tokenString := ctx.FormValue("token")
	if tokenString == "" {
		return ctx.Status(fiber.StatusBadRequest).JSON(OAuthErrorResponse{
			Error:            "invalid_request",
			ErrorDescription: "token parameter is required",
		})
	}
	if err := h.engine.Revoke(ctx.Context(), tokenString, requestInfo(ctx)); err != nil {
		return oauthError(ctx, err)
	}
	return ctx.SendStatus(fiber.StatusOK)
}

// GetIntrospect handles GET /oauth/introspect on the presented bearer
// token. Invalid tokens report active=false rather than an error.
func (h *TokenHandler) GetIntrospect(ctx *fiber.Ctx) error {
	tokenString := bearerToken(ctx)
	if tokenString == "" {
		return ctx.Status(fiber.StatusUnauthorized).JSON(OAuthErrorResponse{
			Error: "invalid_request",
		})
	}
	claims, err := h.engine.Validate(ctx.Context(), tokenString)
	if errors.Is(err, token.ErrInvalidToken) {
		return ctx.JSON(IntrospectionResponse{Active: false})
	}
	if err != nil {
		return oauthError(ctx, err)
	}
	return ctx.JSON(IntrospectionResponse{
		Active:      true,
		DeveloperID: claims.DeveloperID,
		ProjectID:   claims.ProjectID,
		Scope:       scopes.Join(claims.Scopes),
		ExpiresAt:   claims.ExpiresAt.Time,
	})
}

// GetScopes handles GET /oauth/scopes, the public scope catalog.
func (h *TokenHandler) GetScopes(ctx *fiber.Ctx) error {
	catalog := ScopeCatalogResponse{Sets: scopes.Sets}
	for _, s := range scopes.All() {
		catalog.Scopes = append(catalog.Scopes, ScopeInfo{
			Scope:       s,
			Description: scopes.Description(s),
		})
	}
	return ctx.JSON(catalog)
}

// clientCredentials reads the client id and secret from HTTP basic auth
// or, failing that, the form body.
func clientCredentials(ctx *fiber.Ctx) (string, string) {
	if id, secret, ok := basicAuth(ctx); ok {
		return id, secret
	}
	return ctx.FormValue("client_id"), ctx.FormValue("client_secret")
}

func basicAuth(ctx *fiber.Ctx) (string, string, bool) {
	header := ctx.Get(fiber.HeaderAuthorization)
	if !strings.HasPrefix(header, "Basic ") {
		return "", "", false
	}
	raw, err := base64.StdEncoding.DecodeString(strings.TrimPrefix(header, "Basic "))
	if err != nil {
		return "", "", false
	}
	id, secret, found := strings.Cut(string(raw), ":")
	if !found {
		return "", "", false
	}
	return id, secret, true
}

func bearerToken(ctx *fiber.Ctx) string {
	header := ctx.Get(fiber.HeaderAuthorization)
	if strings.HasPrefix(header, "Bearer ") {
		return strings.TrimPrefix(header, "Bearer ")
	}
	return ""
}

// requestInfo captures the caller context passed into the engine. The
// leftmost X-Forwarded-For entry wins when a proxy chain is in front.
func requestInfo(ctx *fiber.Ctx) token.Request {
	ip := ctx.Get("X-Forwarded-For")
	if ip != "" {
		ip = strings.TrimSpace(strings.Split(ip, ",")[0])
	}
	if ip == "" {
		ip = ctx.Get("X-Real-IP")
	}
	if ip == "" {
		ip = ctx.IP()
	}
	return token.Request{
		IP:        ip,
		UserAgent: ctx.Get(fiber.HeaderUserAgent),
		RequestID: requestID(ctx),
	}
}

func requestID(ctx *fiber.Ctx) string {
	if id, ok := ctx.Locals("requestid").(string); ok {
		return id
	}
	return ctx.Get(fiber.HeaderXRequestID)
}

// oauthError maps engine errors to RFC 6749 responses. Descriptions stay
// generic so the response does not reveal whether a client id exists, a
// secret was wrong or an account is locked.
func oauthError(ctx *fiber.Ctx, err error) error {
	code := token.OAuthCode(err)
	status := fiber.StatusBadRequest
	switch {
	case errors.Is(err, token.ErrInvalidClient):
		status = fiber.StatusUnauthorized
	case errors.Is(err, token.ErrRateLimited):
		status = fiber.StatusTooManyRequests
		var rateErr *token.RateLimitedError
		if errors.As(err, &rateErr) {
			ctx.Set(fiber.HeaderRetryAfter, fmt.Sprintf("%d", int(rateErr.RetryAfter.Seconds())))
		}
	case errors.Is(err, token.ErrAccountLocked), errors.Is(err, token.ErrAccessDenied):
		status = fiber.StatusForbidden
	case errors.Is(err, token.ErrInvalidToken), errors.Is(err, token.ErrInvalidGrant):
		status = fiber.StatusUnauthorized
	case errors.Is(err, token.ErrServiceUnavailable):
		status = fiber.StatusServiceUnavailable
	case errors.Is(err, token.ErrInvalidScope), errors.Is(err, token.ErrInsufficientScope):
		status = fiber.StatusBadRequest
	default:
		slog.Error("Token endpoint error", "error", err)
		return ctx.Status(fiber.StatusInternalServerError).JSON(OAuthErrorResponse{Error: "server_error"})
	}
	return ctx.Status(status).JSON(OAuthErrorResponse{Error: code})
}
