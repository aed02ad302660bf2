package apperrors

import (
	"errors"
	"net/http"

	"github.com/labstack/echo/v4"
)

// HTTPErrorHandler renders every failure through the single taxonomy
// shape. Untyped errors become an opaque 500.
func HTTPErrorHandler(err error, c echo.Context) {
	if c.Response().Committed {
		return
	}

	var appErr *Error
	if !errors.As(err, &appErr) {
		var httpErr *echo.HTTPError
		if errors.As(err, &httpErr) {
			appErr = New(httpErr.Code, http.StatusText(httpErr.Code), http.StatusText(httpErr.Code), errMessage(httpErr))
		} else {
			c.Logger().Errorf("unhandled error: %v", err)
			appErr = New(
				http.StatusInternalServerError,
				"internal_server_error",
				"Internal Server Error",
				"Internal Server Error",
			)
		}
	}

	if err := c.JSON(appErr.StatusCode, appErr); err != nil {
		c.Logger().Errorf("error response write failed: %v", err)
	}
}

func errMessage(he *echo.HTTPError) string {
	if msg, ok := he.Message.(string); ok {
		return msg
	}
	return http.StatusText(he.Code)
}
