package crypto

import (
	"encoding/base64"
	"errors"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

// DefaultTokenTTL applies when neither the config nor the caller sets a TTL.
const DefaultTokenTTL = 30 * time.Minute

var (
	ErrEmptySigningKey       = errors.New("token signing key must not be empty")
	ErrReservedClaim         = errors.New("claim name is reserved")
	ErrTokenMalformed        = errors.New("token is malformed")
	ErrTokenExpired          = errors.New("token is expired")
	ErrTokenInvalidSignature = errors.New("token signature is invalid")
	ErrTokenInvalidClaims    = errors.New("token claims are invalid")
)

// reservedClaims are set by the issuer itself. "sub" is deliberately absent:
// callers put the subject identity there.
var reservedClaims = map[string]struct{}{
	"exp": {}, "iat": {}, "nbf": {}, "iss": {}, "aud": {}, "jti": {},
}

// TokenConfig holds the settings a TokenIssuer is built from.
type TokenConfig struct {
	Secret   string
	Issuer   string
	Audience string
	TTL      time.Duration
}

// TokenIssuer mints and verifies HS256 bearer tokens. It is immutable after
// construction and safe for concurrent use.
type TokenIssuer struct {
	secret   []byte
	issuer   string
	audience string
	ttl      time.Duration
	now      func() time.Time
}

// NewTokenIssuer creates a TokenIssuer from cfg.
func NewTokenIssuer(cfg TokenConfig) (*TokenIssuer, error) {
	if cfg.Secret == "" {
		return nil, ErrEmptySigningKey
	}

	ttl := cfg.TTL
	if ttl <= 0 {
		ttl = DefaultTokenTTL
	}

	return &TokenIssuer{
		secret:   []byte(cfg.Secret),
		issuer:   cfg.Issuer,
		audience: cfg.Audience,
		ttl:      ttl,
		now:      time.Now,
	}, nil
}

// TTL returns the default token lifetime.
func (ti *TokenIssuer) TTL() time.Duration {
	return ti.ttl
}

// Issue returns a signed token carrying claims and expiring after ttl.
// A non-positive ttl falls back to the issuer's default.
func (ti *TokenIssuer) Issue(claims map[string]string, ttl time.Duration) (string, error) {
	if ttl <= 0 {
		ttl = ti.ttl
	}

	mc := jwt.MapClaims{}
	for k, v := range claims {
		if _, ok := reservedClaims[k]; ok {
			return "", ErrReservedClaim
		}
		mc[k] = v
	}

	now := ti.now()
	mc["iat"] = jwt.NewNumericDate(now)
	mc["exp"] = jwt.NewNumericDate(expiresAt(now, ttl))
	mc["jti"] = uuid.NewString()
	if ti.issuer != "" {
		mc["iss"] = ti.issuer
	}
	if ti.audience != "" {
		mc["aud"] = ti.audience
	}

	return jwt.NewWithClaims(jwt.SigningMethodHS256, mc).SignedString(ti.secret)
}

// Verify checks the token's signature and expiry and returns the claims that
// were passed to Issue.
func (ti *TokenIssuer) Verify(tokenString string) (map[string]string, error) {
	opts := []jwt.ParserOption{
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithStrictDecoding(),
		jwt.WithExpirationRequired(),
		jwt.WithTimeFunc(ti.now),
	}
	if ti.issuer != "" {
		opts = append(opts, jwt.WithIssuer(ti.issuer))
	}
	if ti.audience != "" {
		opts = append(opts, jwt.WithAudience(ti.audience))
	}

	mc := jwt.MapClaims{}
	token, err := jwt.ParseWithClaims(tokenString, mc, func(*jwt.Token) (any, error) {
		return ti.secret, nil
	}, opts...)
	if err != nil {
		verr := classifyTokenError(err)
		// The parser decodes header and payload before it checks the MAC, so
		// a tampered segment surfaces as malformed unless the MAC is checked here.
		if errors.Is(verr, ErrTokenMalformed) && !ti.macMatches(tokenString) {
			return nil, ErrTokenInvalidSignature
		}
		return nil, verr
	}
	if !token.Valid {
		return nil, ErrTokenInvalidSignature
	}

	claims := make(map[string]string, len(mc))
	for k, v := range mc {
		if _, ok := reservedClaims[k]; ok {
			continue
		}
		if s, ok := v.(string); ok {
			claims[k] = s
		}
	}
	return claims, nil
}

// macMatches reports whether a three-segment token carries a valid HS256 MAC
// over its header and payload. Tokens that cannot be split report true so
// they stay malformed.
func (ti *TokenIssuer) macMatches(tokenString string) bool {
	parts := strings.Split(tokenString, ".")
	if len(parts) != 3 {
		return true
	}

	sig, err := base64.RawURLEncoding.Strict().DecodeString(parts[2])
	if err != nil {
		return false
	}

	return jwt.SigningMethodHS256.Verify(parts[0]+"."+parts[1], sig, ti.secret) == nil
}

// expiresAt returns now+ttl rounded up to a whole second, the precision of
// the exp claim. The token never expires before now+ttl.
func expiresAt(now time.Time, ttl time.Duration) time.Time {
	exp := now.Add(ttl)
	if whole := exp.Truncate(time.Second); !whole.Equal(exp) {
		return whole.Add(time.Second)
	}
	return exp
}

// classifyTokenError maps jwt parser errors onto the package sentinels.
func classifyTokenError(err error) error {
	switch {
	case errors.Is(err, jwt.ErrTokenMalformed),
		errors.Is(err, jwt.ErrTokenRequiredClaimMissing):
		return ErrTokenMalformed
	case errors.Is(err, jwt.ErrTokenSignatureInvalid),
		errors.Is(err, jwt.ErrTokenUnverifiable):
		return ErrTokenInvalidSignature
	case errors.Is(err, jwt.ErrTokenExpired):
		return ErrTokenExpired
	default:
		return ErrTokenInvalidClaims
	}
}
