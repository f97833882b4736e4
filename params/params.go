package params

import "time"

const (
	ServerBodyLimit    = 1048576 // 1 MiB
	ServerIdleTimeout  = 30 * time.Second
	ServerReadTimeout  = 10 * time.Second
	ServerWriteTimeout = 10 * time.Second

	RateLimitKeyPrefix  = "rl:"
	BlockKeyPrefix      = "blk:"
	ProjectCachePrefix  = "prj:"
	PermissionKeyPrefix = "perm:"

	TokenIssuer        = "openbank-auth"
	TokenAudience      = "openbank-api"
	AccessTokenTTL     = 1 * time.Hour // default, overridable via config
	ClientIDPrefix     = "ck_"
	ClientSecretPrefix = "cs_"
	ClientIDLength     = 32 // random part, alphanumeric
	ClientSecretLength = 64 // random part, alphanumeric

	PasswordMinLength   = 8
	PasswordHistorySize = 12 // reuse prevention window

	StoreOpTimeout       = 3 * time.Second
	ValidateReadRetryGap = 100 * time.Millisecond

	RateLimitWindow        = 60 * time.Second
	DefaultRateLimitPerMin = 60 // fallback when the project has no ceiling
	RateLimitBaseBlock     = 5 * time.Minute
	RateLimitMaxBlock      = 1 * time.Hour

	MaxFailedAttempts      = 5
	LockoutDuration        = 30 * time.Minute
	SuspicionFailIncrement = 10 // score bump when an IP turns suspicious
	SuspicionSuccessDecay  = 5  // score decay per successful authentication
	DefaultRiskCeiling     = 80 // issuance denied at or above this score

	ProjectCacheTTL    = 5 * time.Minute
	PermissionCacheTTL = 5 * time.Minute

	TokenRetention     = 30 * 24 * time.Hour // expired rows kept for audit correlation
	TokenSweepInterval = 1 * time.Hour

	AuditQueueSize        = 1024
	HealthCheckServerAddr = ":3001"
)
