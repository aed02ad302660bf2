package middleware

import (
	"errors"
	"strings"
	"time"

	validation "github.com/go-ozzo/ozzo-validation"
	"github.com/go-ozzo/ozzo-validation/is"
	"github.com/labstack/echo/v4"

	"github.com/mbelkin/auth-service/internal/apperrors"
	"github.com/mbelkin/auth-service/internal/token"
)

// Context keys set by Authenticate for downstream handlers.
const (
	CtxUserID    = "userID"
	CtxUsername  = "username"
	CtxUserRoles = "userRoles"
	CtxDeviceID  = "deviceID"
)

// Authenticate is the request pipeline: extract the bearer token,
// verify it with the access secret, shape-validate the payload,
// re-assert the temporal claims, then attach identity to the request.
// It is terminal on first failure.
func Authenticate(accessSecret []byte) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			raw, err := extractBearer(c)
			if err != nil {
				return err
			}

			claims, err := token.Verify(raw, accessSecret)
			if err != nil {
				return mapVerifyError(err)
			}

			if err := validatePayload(&claims.Payload); err != nil {
				return apperrors.Unauthorized(
					apperrors.CodeInvalidTokenFormat,
					"Invalid token format",
					err.Error(),
				)
			}

			// The codec already validated the envelope's declared
			// exp/nbf; these policy checks run against the reshaped
			// claims.
			now := time.Now()
			if claims.ExpiresAt != nil && now.After(claims.ExpiresAt.Time) {
				return apperrors.Unauthorized(
					apperrors.CodeExpiredToken,
					"Token expired",
					"Token expired",
				)
			}
			if claims.NotBefore != nil && now.Before(claims.NotBefore.Time) {
				return apperrors.Unauthorized(
					apperrors.CodeTokenNotYetValid,
					"Token not yet valid",
					"Token not yet valid",
				)
			}

			c.Set(CtxUserID, claims.Payload.UserID)
			c.Set(CtxUsername, claims.Payload.Username)
			c.Set(CtxUserRoles, claims.Payload.Roles)
			if claims.Payload.DeviceID != "" {
				c.Set(CtxDeviceID, claims.Payload.DeviceID)
			}

			return next(c)
		}
	}
}

// RequireRoles gates a route on a non-empty intersection between the
// request's roles and the required set. Opt-in per route.
func RequireRoles(roles ...string) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			userRoles, _ := c.Get(CtxUserRoles).([]string)

			for _, required := range roles {
				for _, have := range userRoles {
					if have == required {
						return next(c)
					}
				}
			}

			return apperrors.Forbidden(
				apperrors.CodeInsufficientPerms,
				"Insufficient permissions",
				"Insufficient permissions",
			)
		}
	}
}

func extractBearer(c echo.Context) (string, error) {
	header := c.Request().Header.Get(echo.HeaderAuthorization)
	if header == "" {
		return "", apperrors.Unauthorized(
			apperrors.CodeAuthHeaderRequired,
			"Authorization header required",
			"Authorization header required",
		)
	}

	parts := strings.Split(header, " ")
	if len(parts) != 2 || parts[0] != "Bearer" {
		return "", apperrors.Unauthorized(
			apperrors.CodeInvalidAuthFormat,
			"Invalid authorization format",
			"Expected: Bearer <token>",
		)
	}

	if parts[1] == "" {
		return "", apperrors.Unauthorized(
			apperrors.CodeTokenRequired,
			"Token required",
			"Token required",
		)
	}

	return parts[1], nil
}

func mapVerifyError(err error) error {
	switch {
	case errors.Is(err, token.ErrTokenExpired):
		return apperrors.Unauthorized(
			apperrors.CodeTokenExpired,
			"Token expired",
			"Token expired",
		)
	case errors.Is(err, token.ErrTokenNotYetValid):
		return apperrors.Unauthorized(
			apperrors.CodeTokenNotYetValid,
			"Token not yet valid",
			"Token not yet valid",
		)
	case errors.Is(err, token.ErrInvalidPayload):
		return apperrors.Unauthorized(
			apperrors.CodeInvalidTokenFormat,
			"Invalid token format",
			"Invalid token format",
		)
	default:
		return apperrors.Unauthorized(
			apperrors.CodeInvalidToken,
			"Signature verification failure",
			"Signature verification failure",
		)
	}
}

func validatePayload(p *token.Payload) error {
	return validation.ValidateStruct(p,
		validation.Field(&p.UserID, validation.Required),
		validation.Field(&p.Username, validation.Required),
		// A user with no roles is still a valid identity; only a
		// missing roles field marks a malformed payload.
		validation.Field(&p.Roles, validation.NotNil),
		validation.Field(&p.DeviceID, is.UUID),
	)
}
