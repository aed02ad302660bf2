package handlers

import (
	"net/http"

	validation "github.com/go-ozzo/ozzo-validation"
	"github.com/go-ozzo/ozzo-validation/is"
	"github.com/labstack/echo/v4"

	"github.com/mbelkin/auth-service/internal/apperrors"
	"github.com/mbelkin/auth-service/internal/middleware"
	"github.com/mbelkin/auth-service/internal/service"
)

type AuthHandler struct {
	Service *service.AuthService
}

type registerRequest struct {
	Username string `json:"username"`
	Email    string `json:"email"`
	Password string `json:"password"`
}

func (r registerRequest) Validate() error {
	return validation.ValidateStruct(&r,
		validation.Field(&r.Username, validation.Required, validation.Length(3, 32)),
		validation.Field(&r.Email, validation.Required, is.Email),
		validation.Field(&r.Password, validation.Required, validation.Length(8, 128)),
	)
}

type loginRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

func (r loginRequest) Validate() error {
	return validation.ValidateStruct(&r,
		validation.Field(&r.Username, validation.Required),
		validation.Field(&r.Password, validation.Required),
	)
}

type refreshRequest struct {
	RefreshToken string `json:"refreshToken"`
}

type changePasswordRequest struct {
	CurrentPassword string `json:"currentPassword"`
	NewPassword     string `json:"newPassword"`
}

type resetRequestRequest struct {
	Email string `json:"email"`
}

type resetPasswordRequest struct {
	Token       string `json:"token"`
	NewPassword string `json:"newPassword"`
}

func (h *AuthHandler) Register(c echo.Context) error {
	var req registerRequest
	if err := c.Bind(&req); err != nil {
		return badBody(err)
	}
	if err := req.Validate(); err != nil {
		return validationError(err)
	}

	result, err := h.Service.Register(c.Request().Context(), service.RegistrationData{
		Username: req.Username,
		Email:    req.Email,
		Password: req.Password,
	})
	if err != nil {
		return err
	}

	return c.JSON(http.StatusCreated, result)
}

func (h *AuthHandler) Login(c echo.Context) error {
	var req loginRequest
	if err := c.Bind(&req); err != nil {
		return badBody(err)
	}
	if err := req.Validate(); err != nil {
		return validationError(err)
	}

	result, err := h.Service.Login(c.Request().Context(), req.Username, req.Password)
	if err != nil {
		return err
	}

	return c.JSON(http.StatusOK, result)
}

func (h *AuthHandler) Refresh(c echo.Context) error {
	var req refreshRequest
	if err := c.Bind(&req); err != nil {
		return badBody(err)
	}

	pair, err := h.Service.Refresh(c.Request().Context(), req.RefreshToken)
	if err != nil {
		return err
	}

	return c.JSON(http.StatusOK, pair)
}

func (h *AuthHandler) Logout(c echo.Context) error {
	var req refreshRequest
	if err := c.Bind(&req); err != nil {
		return badBody(err)
	}

	if err := h.Service.Logout(c.Request().Context(), req.RefreshToken); err != nil {
		return err
	}

	return c.JSON(http.StatusOK, echo.Map{"message": "logged out"})
}

func (h *AuthHandler) LogoutAll(c echo.Context) error {
	userID, _ := c.Get(middleware.CtxUserID).(uint)

	if err := h.Service.LogoutAll(c.Request().Context(), userID); err != nil {
		return err
	}

	return c.JSON(http.StatusOK, echo.Map{"message": "logged out from all devices"})
}

func (h *AuthHandler) ChangePassword(c echo.Context) error {
	var req changePasswordRequest
	if err := c.Bind(&req); err != nil {
		return badBody(err)
	}

	userID, _ := c.Get(middleware.CtxUserID).(uint)

	err := h.Service.ChangePassword(c.Request().Context(), userID, req.CurrentPassword, req.NewPassword)
	if err != nil {
		return err
	}

	return c.JSON(http.StatusOK, echo.Map{"message": "password changed"})
}

func (h *AuthHandler) RequestPasswordReset(c echo.Context) error {
	var req resetRequestRequest
	if err := c.Bind(&req); err != nil {
		return badBody(err)
	}

	if err := h.Service.RequestPasswordReset(c.Request().Context(), req.Email); err != nil {
		return err
	}

	// Uniform response whether or not the account exists.
	return c.JSON(http.StatusOK, echo.Map{"message": "if the email exists, a reset link has been sent"})
}

func (h *AuthHandler) ResetPassword(c echo.Context) error {
	var req resetPasswordRequest
	if err := c.Bind(&req); err != nil {
		return badBody(err)
	}

	err := h.Service.ResetPassword(c.Request().Context(), req.Token, req.NewPassword)
	if err != nil {
		return err
	}

	return c.JSON(http.StatusOK, echo.Map{"message": "password reset"})
}

func (h *AuthHandler) Me(c echo.Context) error {
	userID, _ := c.Get(middleware.CtxUserID).(uint)

	user, err := h.Service.Profile(c.Request().Context(), userID)
	if err != nil {
		return err
	}

	return c.JSON(http.StatusOK, user)
}

func (h *AuthHandler) ListUsers(c echo.Context) error {
	users, err := h.Service.Users.List(c.Request().Context())
	if err != nil {
		return err
	}

	for i := range users {
		users[i].PasswordHash = ""
	}

	return c.JSON(http.StatusOK, users)
}

func badBody(err error) error {
	return apperrors.BadRequest("INVALID_REQUEST_BODY", "Invalid request body", err.Error())
}

func validationError(err error) error {
	return apperrors.BadRequest("VALIDATION_ERROR", "Request validation failed", err.Error())
}
