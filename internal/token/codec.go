package token

import (
	"errors"
	"strconv"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

// Codec-level failures. The middleware and the lifecycle manager map
// these onto the client-facing taxonomy.
var (
	ErrTokenExpired     = errors.New("token is expired")
	ErrTokenNotYetValid = errors.New("token is not valid yet")
	ErrInvalidSignature = errors.New("signature verification failure")
	ErrInvalidPayload   = errors.New("invalid token payload")
)

// Payload is the application half of a signed envelope.
type Payload struct {
	UserID   uint     `json:"userId"`
	Username string   `json:"username"`
	Roles    []string `json:"roles"`
	DeviceID string   `json:"deviceId,omitempty"`
}

// Claims wraps Payload with the registered claims. Scopes mirror the
// roles so they can be inspected without decoding the payload.
type Claims struct {
	Payload Payload  `json:"payload"`
	Scopes  []string `json:"scopes"`
	jwt.RegisteredClaims
}

// ParseExpiry converts a duration string ("15m", "7d") into seconds.
// Unrecognized units and unparseable values fall back to 900 seconds.
func ParseExpiry(expiry string) int64 {
	const fallback = 900

	if len(expiry) < 2 {
		return fallback
	}

	value, err := strconv.ParseInt(expiry[:len(expiry)-1], 10, 64)
	if err != nil {
		return fallback
	}

	switch expiry[len(expiry)-1] {
	case 's':
		return value
	case 'm':
		return value * 60
	case 'h':
		return value * 60 * 60
	case 'd':
		return value * 24 * 60 * 60
	default:
		return fallback
	}
}

// Sign produces a compact HS256 envelope: iat and nbf at now, exp at
// now+ttl, a fresh jti, aud set to the stringified user id, sub to the
// username.
func Sign(payload Payload, secret []byte, ttlSeconds int64) (string, error) {
	now := time.Now()
	claims := Claims{
		Payload: payload,
		Scopes:  payload.Roles,
		RegisteredClaims: jwt.RegisteredClaims{
			IssuedAt:  jwt.NewNumericDate(now),
			NotBefore: jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(time.Duration(ttlSeconds) * time.Second)),
			Audience:  jwt.ClaimStrings{strconv.FormatUint(uint64(payload.UserID), 10)},
			Subject:   payload.Username,
			ID:        uuid.NewString(),
		},
	}

	t := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return t.SignedString(secret)
}

// Verify is a pure cryptographic and structural check. It never touches
// the store, so access-token verification stays store-free on the hot
// path.
func Verify(raw string, secret []byte) (*Claims, error) {
	var claims Claims
	tkn, err := jwt.ParseWithClaims(raw, &claims, func(t *jwt.Token) (any, error) {
		if t.Method.Alg() != jwt.SigningMethodHS256.Alg() {
			return nil, errors.New("unexpected sign method")
		}
		return secret, nil
	})
	if err != nil {
		switch {
		case errors.Is(err, jwt.ErrTokenExpired):
			return nil, ErrTokenExpired
		case errors.Is(err, jwt.ErrTokenNotValidYet):
			return nil, ErrTokenNotYetValid
		default:
			return nil, ErrInvalidSignature
		}
	}
	if !tkn.Valid {
		return nil, ErrInvalidSignature
	}

	if claims.Payload.UserID == 0 || claims.Payload.Username == "" || claims.Payload.Roles == nil {
		return nil, ErrInvalidPayload
	}

	return &claims, nil
}
