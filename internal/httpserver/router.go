package httpserver

import (
	"github.com/labstack/echo/v4"
	"gorm.io/gorm"

	"github.com/mbelkin/auth-service/internal/handlers"
	"github.com/mbelkin/auth-service/internal/middleware"
)

type Deps struct {
	DB           *gorm.DB
	AuthHandler  *handlers.AuthHandler
	AccessSecret []byte
}

func Register(e *echo.Echo, d *Deps) {
	e.GET("/health/live", func(c echo.Context) error { return c.NoContent(200) })
	e.GET("/health/ready", func(c echo.Context) error { return c.NoContent(200) })

	v1 := e.Group("/api/v1")

	auth := v1.Group("/auth")
	auth.POST("/register", d.AuthHandler.Register)
	auth.POST("/login", d.AuthHandler.Login)
	auth.POST("/refresh", d.AuthHandler.Refresh)
	auth.POST("/logout", d.AuthHandler.Logout)
	auth.POST("/password/reset-request", d.AuthHandler.RequestPasswordReset)
	auth.POST("/password/reset", d.AuthHandler.ResetPassword)

	authed := auth.Group("", middleware.Authenticate(d.AccessSecret))
	authed.GET("/me", d.AuthHandler.Me)
	authed.POST("/logout-all", d.AuthHandler.LogoutAll)
	authed.POST("/password/change", d.AuthHandler.ChangePassword)

	admin := v1.Group("/admin", middleware.Authenticate(d.AccessSecret), middleware.RequireRoles("admin"))
	admin.GET("/users", d.AuthHandler.ListUsers)
}
