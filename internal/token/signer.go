package token

import (
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/openbank/authcore/internal/config"
)

// Claims is the JWT payload of an access token. Scope membership is carried
// in the token, revocation state is not; bearers must be checked against the
// issuance record.
type Claims struct {
	jwt.RegisteredClaims
	DeveloperID uint     `json:"did"`
	ProjectID   uint     `json:"pid"`
	Scopes      []string `json:"scopes"`
}

// Signer mints and verifies HS256 access tokens.
type Signer struct {
	key      []byte
	issuer   string
	audience string
	ttl      time.Duration
}

func NewSigner(cfg config.TokenConfig) (*Signer, error) {
	if cfg.SigningKey == "" {
		return nil, fmt.Errorf("token signing key is required")
	}
	return &Signer{
		key:      []byte(cfg.SigningKey),
		issuer:   cfg.Issuer,
		audience: cfg.Audience,
		ttl:      cfg.TTL,
	}, nil
}

func (s *Signer) TTL() time.Duration {
	return s.ttl
}

// Sign mints a token for the given subject. jti must be globally unique.
func (s *Signer) Sign(jti string, developerID, projectID uint, scopes []string, issuedAt time.Time) (string, time.Time, error) {
	expiresAt := issuedAt.Add(s.ttl)
	claims := Claims{
		RegisteredClaims: jwt.RegisteredClaims{
			ID:        jti,
			Issuer:    s.issuer,
			Audience:  jwt.ClaimStrings{s.audience},
			Subject:   fmt.Sprintf("%d", developerID),
			IssuedAt:  jwt.NewNumericDate(issuedAt),
			NotBefore: jwt.NewNumericDate(issuedAt),
			ExpiresAt: jwt.NewNumericDate(expiresAt),
		},
		DeveloperID: developerID,
		ProjectID:   projectID,
		Scopes:      scopes,
	}
	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(s.key)
	if err != nil {
		return "", time.Time{}, err
	}
	return signed, expiresAt, nil
}

// Verify parses a token string and validates signature, issuer, audience
// and time claims. Any failure maps to ErrInvalidToken; the concrete parse
// error is never surfaced to clients.
func (s *Signer) Verify(tokenString string) (*Claims, error) {
	var claims Claims
	_, err := jwt.ParseWithClaims(tokenString, &claims,
		func(t *jwt.Token) (interface{}, error) { return s.key, nil },
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithIssuer(s.issuer),
		jwt.WithAudience(s.audience),
		jwt.WithExpirationRequired(),
	)
	if err != nil {
		return nil, ErrInvalidToken
	}
	if claims.ID == "" {
		return nil, ErrInvalidToken
	}
	return &claims, nil
}
