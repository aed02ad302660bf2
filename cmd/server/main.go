package main

import (
	"context"
	"errors"
	"log"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/labstack/echo/v4"
	echomw "github.com/labstack/echo/v4/middleware"

	"github.com/mbelkin/auth-service/internal/apperrors"
	"github.com/mbelkin/auth-service/internal/config"
	"github.com/mbelkin/auth-service/internal/es"
	"github.com/mbelkin/auth-service/internal/event"
	"github.com/mbelkin/auth-service/internal/handlers"
	"github.com/mbelkin/auth-service/internal/httpserver"
	"github.com/mbelkin/auth-service/internal/logging"
	"github.com/mbelkin/auth-service/internal/repo"
	"github.com/mbelkin/auth-service/internal/seed"
	"github.com/mbelkin/auth-service/internal/service"
	"github.com/mbelkin/auth-service/internal/token"
	"github.com/mbelkin/auth-service/pkg/db"
)

func main() {
	configuration, err := config.LoadConfig()
	if err != nil {
		log.Fatal(err)
	}

	logger := logging.New(configuration.LOG_LEVEL)
	ctx := logging.IntoContext(context.Background(), logger)

	gormDB, err := db.Open(ctx, configuration.DSN())
	if err != nil {
		log.Fatalf("db init: %v", err)
	}

	users := &repo.UserRepo{DB: gormDB}
	roles := &repo.RoleRepo{DB: gormDB}
	refreshTokens := &repo.RefreshTokenRepo{DB: gormDB}

	// Roles must exist before the first registration.
	if err := seed.Roles(ctx, roles); err != nil {
		log.Fatalf("role seeding: %v", err)
	}

	tokens := token.NewService(
		[]byte(configuration.JWT_ACCESS_SECRET),
		[]byte(configuration.JWT_REFRESH_SECRET),
		configuration.JWT_ACCESS_EXPIRY,
		configuration.JWT_REFRESH_EXPIRY,
		refreshTokens,
		users,
	)

	var producer *event.Producer
	if configuration.KAFKA_ADDRESS != "" {
		producer = event.NewProducer(strings.Split(configuration.KAFKA_ADDRESS, ","))
	}

	var activity *es.ActivityIndexer
	if configuration.ES_URL != "" {
		esClient, err := es.NewClient(configuration)
		if err != nil {
			log.Fatalf("elasticsearch init: %v", err)
		}
		activity = &es.ActivityIndexer{ES: esClient, Index: configuration.ES_LOGIN_INDEX}
	}

	authService := &service.AuthService{
		Users:    users,
		Roles:    roles,
		Tokens:   tokens,
		Producer: producer,
		Activity: activity,
	}

	e := echo.New()
	e.HideBanner = true
	e.HTTPErrorHandler = apperrors.HTTPErrorHandler
	e.Pre(echomw.RemoveTrailingSlash())
	e.Use(echomw.Recover(), echomw.RequestID())

	httpserver.Register(e, &httpserver.Deps{
		DB:           gormDB,
		AuthHandler:  &handlers.AuthHandler{Service: authService},
		AccessSecret: []byte(configuration.JWT_ACCESS_SECRET),
	})

	srv := &http.Server{
		Addr:         ":" + configuration.PORT,
		Handler:      e,
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("http server error", "error", err)
		}
	}()
	logger.Info("server started", "port", configuration.PORT)

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("server shutdown error", "error", err)
	}

	if sqlDB, err := gormDB.DB(); err == nil {
		if err := sqlDB.Close(); err != nil {
			logger.Error("db close error", "error", err)
		}
	}

	if producer != nil {
		if err := producer.Close(); err != nil {
			logger.Error("kafka close error", "error", err)
		}
	}

	logger.Info("shutdown complete")
}
