package audit

// Event types recorded to the security event trail.
const (
	EventTokenIssued        = "token_issued"
	EventTokenIssueDenied   = "token_issue_denied"
	EventTokenRefreshed     = "token_refreshed"
	EventTokenRefreshDenied = "token_refresh_denied"
	EventTokenRevoked       = "token_revoked"
	EventTokenValidated     = "token_validated"
	EventAccessDenied       = "access_denied"
	EventRateLimitExceeded  = "rate_limit_exceeded"
	EventAccountLocked      = "account_locked"
	EventAccountUnlocked    = "account_unlocked"
	EventLoginSuccess       = "login_success"
	EventLoginFailure       = "login_failure"
	EventPasswordChanged    = "password_changed"
	EventSecretRotated      = "client_secret_rotated"
	EventRoleGranted        = "role_granted"
	EventRoleRevoked        = "role_revoked"
	EventPermissionGranted  = "permission_granted"
	EventPermissionRevoked  = "permission_revoked"
	EventSuspiciousIP       = "suspicious_ip_detected"
)

// Severity levels, ordered.
const (
	SeverityInfo     = "info"
	SeverityWarning  = "warning"
	SeverityError    = "error"
	SeverityCritical = "critical"
)

// Compliance frameworks tagged onto events for downstream report filtering.
const (
	TagSOC2   = "SOC2"
	TagPCIDSS = "PCI_DSS"
	TagGDPR   = "GDPR"
	TagOAuth2 = "OAUTH2"
)

// complianceTags maps an event type to the frameworks it is reportable
// under. Tagging is deterministic per event type.
var complianceTags = map[string][]string{
	EventTokenIssued:        {TagSOC2, TagPCIDSS, TagOAuth2},
	EventTokenIssueDenied:   {TagSOC2, TagOAuth2},
	EventTokenRefreshed:     {TagSOC2, TagOAuth2},
	EventTokenRefreshDenied: {TagSOC2, TagOAuth2},
	EventTokenRevoked:       {TagSOC2, TagOAuth2},
	EventTokenValidated:     {TagOAuth2},
	EventAccessDenied:       {TagSOC2, TagPCIDSS},
	EventRateLimitExceeded:  {TagSOC2},
	EventAccountLocked:      {TagSOC2, TagPCIDSS},
	EventAccountUnlocked:    {TagSOC2},
	EventLoginSuccess:       {TagSOC2},
	EventLoginFailure:       {TagSOC2, TagPCIDSS},
	EventPasswordChanged:    {TagSOC2, TagGDPR},
	EventSecretRotated:      {TagSOC2, TagPCIDSS},
	EventRoleGranted:        {TagSOC2},
	EventRoleRevoked:        {TagSOC2},
	EventPermissionGranted:  {TagSOC2},
	EventPermissionRevoked:  {TagSOC2},
	EventSuspiciousIP:       {TagSOC2, TagPCIDSS},
}

// defaultRiskScores gives each event type a baseline 0..100 risk weight;
// callers may override per event.
var defaultRiskScores = map[string]uint8{
	EventTokenIssued:        0,
	EventTokenIssueDenied:   30,
	EventTokenRefreshed:     0,
	EventTokenRefreshDenied: 30,
	EventTokenRevoked:       10,
	EventTokenValidated:     0,
	EventAccessDenied:       40,
	EventRateLimitExceeded:  35,
	EventAccountLocked:      70,
	EventAccountUnlocked:    20,
	EventLoginSuccess:       0,
	EventLoginFailure:       25,
	EventPasswordChanged:    10,
	EventSecretRotated:      10,
	EventSuspiciousIP:       60,
}

// ComplianceTags returns the frameworks an event type reports under.
func ComplianceTags(eventType string) []string {
	return complianceTags[eventType]
}

// DefaultRiskScore returns the baseline risk weight for an event type.
func DefaultRiskScore(eventType string) uint8 {
	return defaultRiskScores[eventType]
}
