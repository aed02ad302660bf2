package token

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"

	"github.com/mbelkin/auth-service/internal/apperrors"
	"github.com/mbelkin/auth-service/internal/logging"
	"github.com/mbelkin/auth-service/internal/models"
	"github.com/mbelkin/auth-service/internal/repo"
)

const resetTokenTTL = time.Hour

// Pair is the issued token pair returned to clients. ExpiresIn is the
// access-token TTL in seconds.
type Pair struct {
	AccessToken  string `json:"accessToken"`
	RefreshToken string `json:"refreshToken"`
	ExpiresIn    int64  `json:"expiresIn"`
}

// Service is the stateful half of token handling: issuance, refresh
// verification against the store, rotation and revocation.
type Service struct {
	accessSecret  []byte
	refreshSecret []byte
	accessTTL     int64
	refreshTTL    int64

	tokens *repo.RefreshTokenRepo
	users  *repo.UserRepo
}

func NewService(accessSecret, refreshSecret []byte, accessExpiry, refreshExpiry string, tokens *repo.RefreshTokenRepo, users *repo.UserRepo) *Service {
	return &Service{
		accessSecret:  accessSecret,
		refreshSecret: refreshSecret,
		accessTTL:     ParseExpiry(accessExpiry),
		refreshTTL:    ParseExpiry(refreshExpiry),
		tokens:        tokens,
		users:         users,
	}
}

func Sha256Hex(s string) string {
	sum := sha256.Sum256([]byte(s))
	return hex.EncodeToString(sum[:])
}

// Issue signs an access and a refresh envelope over the same payload
// and persists the hashed refresh token. A deviceID is generated when
// the caller has none, so multi-device sessions stay correlated.
func (s *Service) Issue(ctx context.Context, userID uint, username string, roles []string, deviceID string) (*Pair, error) {
	if deviceID == "" {
		deviceID = uuid.NewString()
	}
	payload := Payload{
		UserID:   userID,
		Username: username,
		Roles:    roles,
		DeviceID: deviceID,
	}

	accessToken, err := Sign(payload, s.accessSecret, s.accessTTL)
	if err != nil {
		return nil, err
	}

	refreshToken, err := Sign(payload, s.refreshSecret, s.refreshTTL)
	if err != nil {
		return nil, err
	}

	if err := s.saveRefreshToken(ctx, userID, refreshToken); err != nil {
		return nil, err
	}

	return &Pair{
		AccessToken:  accessToken,
		RefreshToken: refreshToken,
		ExpiresIn:    s.accessTTL,
	}, nil
}

// VerifyRefresh checks the signature first, then the store. The store
// lookup is the authoritative revocation check: a cryptographically
// valid token without a backing row is rejected.
func (s *Service) VerifyRefresh(ctx context.Context, raw string) (*Claims, error) {
	claims, err := Verify(raw, s.refreshSecret)
	if err != nil {
		if errors.Is(err, ErrTokenExpired) {
			return nil, apperrors.Unauthorized(
				apperrors.CodeRefreshTokenExpired,
				"Refresh token expired",
				"Refresh token expired",
			)
		}
		return nil, apperrors.Unauthorized(
			apperrors.CodeInvalidRefreshToken,
			"Invalid refresh token",
			"Invalid refresh token",
		)
	}

	stored, err := s.tokens.FindFirst(ctx, Sha256Hex(raw), claims.Payload.UserID)
	if err != nil {
		return nil, err
	}
	if stored == nil {
		return nil, apperrors.Unauthorized(
			apperrors.CodeInvalidRefreshToken,
			"Invalid refresh token",
			"Invalid refresh token",
		)
	}

	return claims, nil
}

// Rotate exchanges a refresh token for a new pair. The old record is
// removed with a conditional delete before re-issuing, so the old token
// stops working and concurrent rotations of the same token admit at
// most one winner.
func (s *Service) Rotate(ctx context.Context, raw string) (*Pair, error) {
	claims, err := s.VerifyRefresh(ctx, raw)
	if err != nil {
		return nil, err
	}

	user, err := s.users.FindByID(ctx, claims.Payload.UserID)
	if err != nil {
		return nil, err
	}
	if user == nil || !user.IsActive {
		return nil, apperrors.Unauthorized(
			apperrors.CodeInvalidUser,
			"User not found or inactive",
			"User not found or inactive",
		)
	}

	deleted, err := s.tokens.DeleteByTokenAndUser(ctx, Sha256Hex(raw), user.ID)
	if err != nil {
		return nil, err
	}
	if deleted == 0 {
		// Lost a concurrent rotation of the same token.
		return nil, apperrors.Unauthorized(
			apperrors.CodeInvalidRefreshToken,
			"Invalid refresh token",
			"Invalid refresh token",
		)
	}

	return s.Issue(ctx, user.ID, user.Username, user.RoleNames(), claims.Payload.DeviceID)
}

// Revoke deletes the backing record. With a known userID the delete is
// keyed directly, skipping signature verification, so logout terminates
// a session even when the token is already suspect. Every failure is
// reported as false: logout is best-effort.
func (s *Service) Revoke(ctx context.Context, raw string, userID uint) bool {
	if raw == "" {
		return false
	}
	l := logging.FromContext(ctx).With("svc", "token.revoke")

	if userID == 0 {
		claims, err := Verify(raw, s.refreshSecret)
		if err != nil {
			l.Warn("revoke skipped", "reason", "verification failed", "error", err)
			return false
		}
		userID = claims.Payload.UserID
	}

	if _, err := s.tokens.DeleteByTokenAndUser(ctx, Sha256Hex(raw), userID); err != nil {
		l.Warn("revoke failed", "error", err)
		return false
	}
	return true
}

// RevokeAll terminates every session of a user (logout-all-devices).
func (s *Service) RevokeAll(ctx context.Context, userID uint) error {
	return s.tokens.DeleteAllForUser(ctx, userID)
}

func (s *Service) saveRefreshToken(ctx context.Context, userID uint, raw string) error {
	tokenHash := Sha256Hex(raw)

	// A stale row with the same hash would violate the one-live-record
	// invariant.
	if err := s.tokens.DeleteByToken(ctx, tokenHash); err != nil {
		return err
	}

	return s.tokens.Create(ctx, &models.RefreshToken{
		Token:     tokenHash,
		UserID:    userID,
		ExpiresAt: time.Now().Add(time.Duration(s.refreshTTL) * time.Second),
	})
}

type resetClaims struct {
	UserID uint `json:"userId"`
	jwt.RegisteredClaims
}

// IssueResetToken mints the short-lived password-reset token. It is
// signed with the access secret and a fixed one hour TTL.
func (s *Service) IssueResetToken(userID uint) (string, error) {
	now := time.Now()
	claims := resetClaims{
		UserID: userID,
		RegisteredClaims: jwt.RegisteredClaims{
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(resetTokenTTL)),
			ID:        uuid.NewString(),
		},
	}
	t := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return t.SignedString(s.accessSecret)
}

// VerifyResetToken collapses every failure into a single uniform error
// so the reset path never leaks whether a token was expired, malformed
// or mis-signed.
func (s *Service) VerifyResetToken(raw string) (uint, error) {
	invalid := apperrors.Unauthorized(
		apperrors.CodeInvalidResetToken,
		"Invalid or expired reset token",
		"Invalid or expired reset token",
	)

	var claims resetClaims
	tkn, err := jwt.ParseWithClaims(raw, &claims, func(t *jwt.Token) (any, error) {
		if t.Method.Alg() != jwt.SigningMethodHS256.Alg() {
			return nil, ErrInvalidSignature
		}
		return s.accessSecret, nil
	})
	if err != nil || !tkn.Valid || claims.UserID == 0 {
		return 0, invalid
	}

	return claims.UserID, nil
}
