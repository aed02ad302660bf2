package service

import (
	"context"
	"fmt"
	"time"

	"gorm.io/gorm"

	"github.com/mbelkin/auth-service/internal/apperrors"
	"github.com/mbelkin/auth-service/internal/es"
	"github.com/mbelkin/auth-service/internal/event"
	"github.com/mbelkin/auth-service/internal/hash"
	"github.com/mbelkin/auth-service/internal/logging"
	"github.com/mbelkin/auth-service/internal/models"
	"github.com/mbelkin/auth-service/internal/repo"
	"github.com/mbelkin/auth-service/internal/token"
	"github.com/mbelkin/auth-service/pkg/retry"
)

const defaultRole = "user"

// AuthService holds the credential-management flows. Producer and
// Activity are optional; a nil collaborator disables that side channel.
type AuthService struct {
	Users    *repo.UserRepo
	Roles    *repo.RoleRepo
	Tokens   *token.Service
	Producer *event.Producer
	Activity *es.ActivityIndexer
}

type RegistrationData struct {
	Username string
	Email    string
	Password string
}

// AuthResult pairs the user record (password hash stripped) with the
// issued tokens.
type AuthResult struct {
	User   *models.User `json:"user"`
	Tokens *token.Pair  `json:"tokens"`
}

func (s *AuthService) Register(ctx context.Context, data RegistrationData) (*AuthResult, error) {
	l := logging.FromContext(ctx).With("svc", "auth.register", "username", data.Username)

	existing, err := s.Users.FindByUsername(ctx, data.Username)
	if err != nil {
		return nil, err
	}
	if existing != nil {
		return nil, apperrors.Conflict(
			apperrors.CodeUsernameExists,
			"Username already exists",
			"Username already exists",
		)
	}

	existing, err = s.Users.FindByEmail(ctx, data.Email)
	if err != nil {
		return nil, err
	}
	if existing != nil {
		return nil, apperrors.Conflict(
			apperrors.CodeEmailExists,
			"Email already exists",
			"Email already exists",
		)
	}

	pwHash, err := hash.HashPassword(data.Password)
	if err != nil {
		l.Error("register failed", "reason", "cannot hash password", "error", err)
		return nil, err
	}

	role, err := s.Roles.FindByName(ctx, defaultRole)
	if err != nil {
		return nil, err
	}
	if role == nil {
		// Seeding never ran; this should alarm operators.
		l.Error("register failed", "reason", "default role missing", "role", defaultRole)
		return nil, apperrors.NotFound(
			apperrors.CodeDefaultRoleNotFound,
			"Default user role not found",
			"Default user role not found",
		)
	}

	user := models.User{
		Username:     data.Username,
		Email:        data.Email,
		PasswordHash: pwHash,
		IsActive:     true,
		Roles:        []models.Role{*role},
	}

	// User row and role link land atomically or not at all.
	err = s.Users.Transaction(ctx, func(tx *gorm.DB) error {
		return tx.Create(&user).Error
	})
	if err != nil {
		return nil, fmt.Errorf("db error: %w", err)
	}

	pair, err := s.Tokens.Issue(ctx, user.ID, user.Username, user.RoleNames(), "")
	if err != nil {
		return nil, err
	}

	s.publishUserEvent(ctx, "user_registered", &user)

	user.PasswordHash = ""
	return &AuthResult{User: &user, Tokens: pair}, nil
}

// Login resolves the account by username, falling back to email. A
// missing user and a wrong password are indistinguishable to the
// caller; only the disabled state is enumerable, by design.
func (s *AuthService) Login(ctx context.Context, usernameOrEmail, password string) (*AuthResult, error) {
	l := logging.FromContext(ctx).With("svc", "auth.login", "subject", usernameOrEmail)

	user, err := s.Users.FindByUsername(ctx, usernameOrEmail)
	if err != nil {
		return nil, err
	}
	if user == nil {
		if user, err = s.Users.FindByEmail(ctx, usernameOrEmail); err != nil {
			return nil, err
		}
	}
	if user == nil {
		return nil, invalidCredentials()
	}

	if !user.IsActive {
		return nil, apperrors.Unauthorized(
			apperrors.CodeAccountDisabled,
			"Account is disabled",
			"Account is disabled",
		)
	}

	if !hash.CheckPassword(user.PasswordHash, password) {
		l.Warn("login failed", "reason", "password mismatch")
		return nil, invalidCredentials()
	}

	pair, err := s.Tokens.Issue(ctx, user.ID, user.Username, user.RoleNames(), "")
	if err != nil {
		return nil, err
	}

	s.publishUserEvent(ctx, "user_logged_in", user)
	s.recordLogin(ctx, user)

	user.PasswordHash = ""
	return &AuthResult{User: user, Tokens: pair}, nil
}

// Refresh exchanges a refresh token for a new pair via rotation.
func (s *AuthService) Refresh(ctx context.Context, rawRefreshToken string) (*token.Pair, error) {
	if rawRefreshToken == "" {
		return nil, apperrors.BadRequest(
			apperrors.CodeRefreshTokenRequired,
			"Refresh token is required",
			"Refresh token is required",
		)
	}
	return s.Tokens.Rotate(ctx, rawRefreshToken)
}

func (s *AuthService) ChangePassword(ctx context.Context, userID uint, currentPassword, newPassword string) error {
	if currentPassword == "" {
		return apperrors.BadRequest(
			apperrors.CodeCurrentPasswordRequired,
			"Current password is required",
			"Current password is required",
		)
	}
	if newPassword == "" {
		return apperrors.BadRequest(
			apperrors.CodeNewPasswordRequired,
			"New password is required",
			"New password is required",
		)
	}
	if currentPassword == newPassword {
		return apperrors.BadRequest(
			apperrors.CodePasswordsMatch,
			"New password must differ from the current one",
			"New password must differ from the current one",
		)
	}

	user, err := s.Users.FindByID(ctx, userID)
	if err != nil {
		return err
	}
	if user == nil {
		return apperrors.NotFound(
			apperrors.CodeUserNotFound,
			"User not found",
			"User not found",
		)
	}

	if !hash.CheckPassword(user.PasswordHash, currentPassword) {
		return apperrors.Unauthorized(
			apperrors.CodeCurrentPasswordIncorrect,
			"Current password is incorrect",
			"Current password is incorrect",
		)
	}

	pwHash, err := hash.HashPassword(newPassword)
	if err != nil {
		return err
	}

	return s.Users.Update(ctx, userID, map[string]any{"password_hash": pwHash})
}

// RequestPasswordReset returns silently for unknown emails so the
// endpoint cannot be used to probe for accounts.
func (s *AuthService) RequestPasswordReset(ctx context.Context, email string) error {
	if email == "" {
		return apperrors.BadRequest(
			apperrors.CodeEmailRequired,
			"Email is required",
			"Email is required",
		)
	}

	user, err := s.Users.FindByEmail(ctx, email)
	if err != nil {
		return err
	}
	if user == nil {
		return nil
	}

	resetToken, err := s.Tokens.IssueResetToken(user.ID)
	if err != nil {
		return err
	}

	l := logging.FromContext(ctx).With("svc", "auth.password_reset", "user_id", user.ID)
	if s.Producer != nil {
		go func() {
			pubCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			err := s.Producer.PublishEvent(pubCtx, event.TopicNotificationEvents, fmt.Sprint(user.ID), map[string]interface{}{
				"type":        "password_reset_requested",
				"user_id":     user.ID,
				"email":       user.Email,
				"reset_token": resetToken,
			})
			if err != nil {
				l.Error("reset token dispatch failed", "error", err)
			}
		}()
	}

	return nil
}

func (s *AuthService) ResetPassword(ctx context.Context, rawToken, newPassword string) error {
	if rawToken == "" {
		return apperrors.BadRequest(
			apperrors.CodeResetTokenRequired,
			"Reset token is required",
			"Reset token is required",
		)
	}
	if newPassword == "" {
		return apperrors.BadRequest(
			apperrors.CodeNewPasswordRequired,
			"New password is required",
			"New password is required",
		)
	}

	userID, err := s.Tokens.VerifyResetToken(rawToken)
	if err != nil {
		return err
	}

	user, err := s.Users.FindByID(ctx, userID)
	if err != nil {
		return err
	}
	if user == nil || !user.IsActive {
		return apperrors.Unauthorized(
			apperrors.CodeInvalidResetToken,
			"Invalid or expired reset token",
			"Invalid or expired reset token",
		)
	}

	pwHash, err := hash.HashPassword(newPassword)
	if err != nil {
		return err
	}

	return s.Users.Update(ctx, user.ID, map[string]any{"password_hash": pwHash})
}

// Logout verifies the token to discover its owner, then revokes it.
// Unlike direct revocation by id, verification errors propagate here.
func (s *AuthService) Logout(ctx context.Context, rawRefreshToken string) error {
	if rawRefreshToken == "" {
		return apperrors.BadRequest(
			apperrors.CodeRefreshTokenRequired,
			"Refresh token is required",
			"Refresh token is required",
		)
	}

	claims, err := s.Tokens.VerifyRefresh(ctx, rawRefreshToken)
	if err != nil {
		return err
	}

	s.Tokens.Revoke(ctx, rawRefreshToken, claims.Payload.UserID)
	return nil
}

func (s *AuthService) LogoutAll(ctx context.Context, userID uint) error {
	return s.Tokens.RevokeAll(ctx, userID)
}

func (s *AuthService) Profile(ctx context.Context, userID uint) (*models.User, error) {
	user, err := s.Users.FindByID(ctx, userID)
	if err != nil {
		return nil, err
	}
	if user == nil {
		return nil, apperrors.NotFound(
			apperrors.CodeUserNotFound,
			"User not found",
			"User not found",
		)
	}

	user.PasswordHash = ""
	return user, nil
}

func invalidCredentials() error {
	return apperrors.Unauthorized(
		apperrors.CodeInvalidCredentials,
		"Invalid username or password",
		"Invalid username or password",
	)
}

// publishUserEvent is fire-and-forget: the response never waits on
// kafka, failures are only logged.
func (s *AuthService) publishUserEvent(ctx context.Context, eventType string, user *models.User) {
	if s.Producer == nil {
		return
	}
	l := logging.FromContext(ctx).With("svc", "auth.events", "event", eventType)

	go func() {
		pubCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		err := s.Producer.PublishEvent(pubCtx, event.TopicUserEvents, fmt.Sprint(user.ID), map[string]interface{}{
			"type":     eventType,
			"user_id":  user.ID,
			"username": user.Username,
		})
		if err != nil {
			l.Error("kafka publish error", "error", err)
		}
	}()
}

// recordLogin writes the audit document; indexing is idempotent enough
// to retry.
func (s *AuthService) recordLogin(ctx context.Context, user *models.User) {
	if s.Activity == nil {
		return
	}
	l := logging.FromContext(ctx).With("svc", "auth.activity")

	go func() {
		idxCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		idxCtx = logging.IntoContext(idxCtx, l)
		err := retry.Do(idxCtx, "index_login", retry.Options{}, func(ctx context.Context) error {
			return s.Activity.IndexLogin(ctx, user.ID, user.Username)
		})
		if err != nil {
			l.Error("login activity index failed", "error", err)
		}
	}()
}
