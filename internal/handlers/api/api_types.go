package api

import "time"

// TokenResponse is the RFC 6749 token endpoint success body.
type TokenResponse struct {
	AccessToken string `json:"access_token"`
	TokenType   string `json:"token_type"`
	ExpiresIn   int64  `json:"expires_in"`
	Scope       string `json:"scope"`
}

// OAuthErrorResponse is the RFC 6749 error body. Descriptions are generic
// on purpose; internal denial reasons stay in the audit trail.
type OAuthErrorResponse struct {
	Error            string `json:"error"`
	ErrorDescription string `json:"error_description,omitempty"`
}

type IntrospectionResponse struct {
	Active      bool      `json:"active"`
	DeveloperID uint      `json:"developer_id,omitempty"`
	ProjectID   uint      `json:"project_id,omitempty"`
	Scope       string    `json:"scope,omitempty"`
	ExpiresAt   time.Time `json:"expires_at,omitempty"`
}

type ScopeInfo struct {
	Scope       string `json:"scope"`
	Description string `json:"description"`
}

type ScopeCatalogResponse struct {
	Scopes []ScopeInfo         `json:"scopes"`
	Sets   map[string][]string `json:"sets"`
}
