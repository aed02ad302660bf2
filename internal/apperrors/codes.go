package apperrors

// Pipeline and codec failures.
const (
	CodeAuthHeaderRequired = "AUTH_HEADER_REQUIRED"
	CodeInvalidAuthFormat  = "INVALID_AUTH_FORMAT"
	CodeTokenRequired      = "TOKEN_REQUIRED"
	CodeTokenExpired       = "TOKEN_EXPIRED"
	CodeInvalidToken       = "INVALID_TOKEN"
	CodeInvalidTokenFormat = "INVALID_TOKEN_FORMAT"
	CodeExpiredToken       = "EXPIRED_TOKEN"
	CodeTokenNotYetValid   = "TOKEN_NOT_YET_VALID"
	CodeInsufficientPerms  = "INSUFFICIENT_PERMISSIONS"
)

// Refresh-token lifecycle failures.
const (
	CodeRefreshTokenRequired = "REFRESH_TOKEN_REQUIRED"
	CodeRefreshTokenExpired  = "REFRESH_TOKEN_EXPIRED"
	CodeInvalidRefreshToken  = "INVALID_REFRESH_TOKEN"
	CodeInvalidUser          = "INVALID_USER"
)

// Credential service failures.
const (
	CodeUsernameExists           = "USERNAME_EXISTS"
	CodeEmailExists              = "EMAIL_EXISTS"
	CodeDefaultRoleNotFound      = "DEFAULT_ROLE_NOT_FOUND"
	CodeInvalidCredentials       = "INVALID_CREDENTIALS"
	CodeAccountDisabled          = "ACCOUNT_DISABLED"
	CodeUserNotFound             = "USER_NOT_FOUND"
	CodeCurrentPasswordRequired  = "CURRENT_PASSWORD_REQUIRED"
	CodeNewPasswordRequired      = "NEW_PASSWORD_REQUIRED"
	CodePasswordsMatch           = "PASSWORDS_MATCH"
	CodeCurrentPasswordIncorrect = "CURRENT_PASSWORD_INCORRECT"
	CodeEmailRequired            = "EMAIL_REQUIRED"
	CodeResetTokenRequired       = "RESET_TOKEN_REQUIRED"
	CodeInvalidResetToken        = "INVALID_RESET_TOKEN"
)
