package handlers

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/glebarez/sqlite"
	"github.com/labstack/echo/v4"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"github.com/mbelkin/auth-service/internal/apperrors"
	"github.com/mbelkin/auth-service/internal/middleware"
	"github.com/mbelkin/auth-service/internal/models"
	"github.com/mbelkin/auth-service/internal/repo"
	"github.com/mbelkin/auth-service/internal/service"
	"github.com/mbelkin/auth-service/internal/token"
)

var (
	accessSecret  = []byte("test-access-secret")
	refreshSecret = []byte("test-refresh-secret")
)

func newHandler(t *testing.T) *AuthHandler {
	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{})
	if err != nil {
		t.Fatalf("failed to connect to in-memory db: %v", err)
	}
	if err := db.AutoMigrate(&models.User{}, &models.Role{}, &models.RefreshToken{}); err != nil {
		t.Fatalf("failed to migrate tables: %v", err)
	}
	for _, name := range []string{"user", "admin"} {
		require.NoError(t, db.Create(&models.Role{Name: name}).Error)
	}

	users := &repo.UserRepo{DB: db}
	return &AuthHandler{
		Service: &service.AuthService{
			Users:  users,
			Roles:  &repo.RoleRepo{DB: db},
			Tokens: token.NewService(accessSecret, refreshSecret, "15m", "7d", &repo.RefreshTokenRepo{DB: db}, users),
		},
	}
}

func doJSONRequest(t *testing.T, method, path string, body interface{}) (echo.Context, *httptest.ResponseRecorder) {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	e := echo.New()
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	rec := httptest.NewRecorder()
	return e.NewContext(req, rec), rec
}

func registerAlice(t *testing.T, h *AuthHandler) service.AuthResult {
	t.Helper()
	c, rec := doJSONRequest(t, http.MethodPost, "/register", map[string]string{
		"username": "alice",
		"email":    "alice@x.com",
		"password": "Secret123!",
	})
	require.NoError(t, h.Register(c))
	require.Equal(t, http.StatusCreated, rec.Code)

	var result service.AuthResult
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &result))
	return result
}

func TestRegisterHandler(t *testing.T) {
	h := newHandler(t)
	result := registerAlice(t, h)

	require.Equal(t, "alice", result.User.Username)
	require.Empty(t, result.User.PasswordHash)
	require.NotEmpty(t, result.Tokens.AccessToken)

	claims, err := token.Verify(result.Tokens.AccessToken, accessSecret)
	require.NoError(t, err)
	require.Equal(t, "alice", claims.Payload.Username)
}

func TestRegisterHandlerValidation(t *testing.T) {
	h := newHandler(t)

	c, _ := doJSONRequest(t, http.MethodPost, "/register", map[string]string{
		"username": "al",
		"email":    "not-an-email",
		"password": "short",
	})
	err := h.Register(c)
	require.Equal(t, "VALIDATION_ERROR", apperrors.Code(err))
}

func TestRegisterHandlerDuplicate(t *testing.T) {
	h := newHandler(t)
	registerAlice(t, h)

	c, _ := doJSONRequest(t, http.MethodPost, "/register", map[string]string{
		"username": "alice",
		"email":    "second@x.com",
		"password": "Secret123!",
	})
	err := h.Register(c)
	require.Equal(t, apperrors.CodeUsernameExists, apperrors.Code(err))

	var appErr *apperrors.Error
	require.ErrorAs(t, err, &appErr)
	require.Equal(t, http.StatusConflict, appErr.StatusCode)
}

func TestLoginHandler(t *testing.T) {
	h := newHandler(t)
	registerAlice(t, h)

	c, rec := doJSONRequest(t, http.MethodPost, "/login", map[string]string{
		"username": "alice",
		"password": "Secret123!",
	})
	require.NoError(t, h.Login(c))
	require.Equal(t, http.StatusOK, rec.Code)

	var result service.AuthResult
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &result))
	require.NotEmpty(t, result.Tokens.AccessToken)
	require.NotEmpty(t, result.Tokens.RefreshToken)
	require.Equal(t, int64(900), result.Tokens.ExpiresIn)
}

func TestLoginHandlerBadPassword(t *testing.T) {
	h := newHandler(t)
	registerAlice(t, h)

	c, _ := doJSONRequest(t, http.MethodPost, "/login", map[string]string{
		"username": "alice",
		"password": "wrongpassword",
	})
	err := h.Login(c)
	require.Equal(t, apperrors.CodeInvalidCredentials, apperrors.Code(err))

	var appErr *apperrors.Error
	require.ErrorAs(t, err, &appErr)
	require.Equal(t, http.StatusUnauthorized, appErr.StatusCode)
}

func TestRefreshHandler(t *testing.T) {
	h := newHandler(t)
	result := registerAlice(t, h)

	c, rec := doJSONRequest(t, http.MethodPost, "/refresh", map[string]string{
		"refreshToken": result.Tokens.RefreshToken,
	})
	require.NoError(t, h.Refresh(c))
	require.Equal(t, http.StatusOK, rec.Code)

	var pair token.Pair
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &pair))
	require.NotEqual(t, result.Tokens.RefreshToken, pair.RefreshToken)

	// The pre-rotation token is spent.
	c, _ = doJSONRequest(t, http.MethodPost, "/refresh", map[string]string{
		"refreshToken": result.Tokens.RefreshToken,
	})
	err := h.Refresh(c)
	require.Equal(t, apperrors.CodeInvalidRefreshToken, apperrors.Code(err))
}

func TestRefreshHandlerMissingToken(t *testing.T) {
	h := newHandler(t)

	c, _ := doJSONRequest(t, http.MethodPost, "/refresh", map[string]string{})
	err := h.Refresh(c)
	require.Equal(t, apperrors.CodeRefreshTokenRequired, apperrors.Code(err))
}

func TestLogoutHandler(t *testing.T) {
	h := newHandler(t)
	result := registerAlice(t, h)

	c, rec := doJSONRequest(t, http.MethodPost, "/logout", map[string]string{
		"refreshToken": result.Tokens.RefreshToken,
	})
	require.NoError(t, h.Logout(c))
	require.Equal(t, http.StatusOK, rec.Code)

	var resp map[string]string
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	require.Equal(t, "logged out", resp["message"])
}

func TestChangePasswordHandler(t *testing.T) {
	h := newHandler(t)
	result := registerAlice(t, h)

	c, rec := doJSONRequest(t, http.MethodPost, "/password/change", map[string]string{
		"currentPassword": "Secret123!",
		"newPassword":     "NewSecret456!",
	})
	c.Set(middleware.CtxUserID, result.User.ID)
	require.NoError(t, h.ChangePassword(c))
	require.Equal(t, http.StatusOK, rec.Code)
}

func TestMeHandler(t *testing.T) {
	h := newHandler(t)
	result := registerAlice(t, h)

	c, rec := doJSONRequest(t, http.MethodGet, "/me", nil)
	c.Set(middleware.CtxUserID, result.User.ID)
	require.NoError(t, h.Me(c))
	require.Equal(t, http.StatusOK, rec.Code)

	var user models.User
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &user))
	require.Equal(t, "alice", user.Username)
	require.Empty(t, user.PasswordHash)
}

func TestResetPasswordHandlers(t *testing.T) {
	h := newHandler(t)
	result := registerAlice(t, h)

	// Unknown email: success response, no signal either way.
	c, rec := doJSONRequest(t, http.MethodPost, "/password/reset-request", map[string]string{
		"email": "nonexistent@x.com",
	})
	require.NoError(t, h.RequestPasswordReset(c))
	require.Equal(t, http.StatusOK, rec.Code)

	resetToken, err := h.Service.Tokens.IssueResetToken(result.User.ID)
	require.NoError(t, err)

	c, rec = doJSONRequest(t, http.MethodPost, "/password/reset", map[string]string{
		"token":       resetToken,
		"newPassword": "Rescued789!",
	})
	require.NoError(t, h.ResetPassword(c))
	require.Equal(t, http.StatusOK, rec.Code)

	c, _ = doJSONRequest(t, http.MethodPost, "/password/reset", map[string]string{
		"token":       "garbage",
		"newPassword": "Rescued789!",
	})
	err = h.ResetPassword(c)
	require.Equal(t, apperrors.CodeInvalidResetToken, apperrors.Code(err))
}
