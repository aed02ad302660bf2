package config

import (
	"fmt"
	"log"
	"os"

	"github.com/joho/godotenv"
	_ "github.com/lib/pq"
)

type Config struct {
	PORT               string
	LOG_LEVEL          string
	DB_HOST            string
	DB_PORT            string
	DB_USER            string
	DB_PASSWORD        string
	DB_NAME            string
	ES_URL             string
	ES_USER            string
	ES_PASSWORD        string
	ES_LOGIN_INDEX     string
	KAFKA_ADDRESS      string
	JWT_ACCESS_SECRET  string
	JWT_REFRESH_SECRET string
	JWT_ACCESS_EXPIRY  string
	JWT_REFRESH_EXPIRY string
}

func LoadConfig() (*Config, error) {
	if err := godotenv.Load(".env"); err != nil {
		log.Printf("Notice: .env file not found: %v. Using system environment variables", err)
	}

	config := &Config{
		PORT:               getenv("PORT", "8080"),
		LOG_LEVEL:          getenv("LOG_LEVEL", "info"),
		DB_HOST:            os.Getenv("DB_HOST"),
		DB_PORT:            os.Getenv("DB_PORT"),
		DB_USER:            os.Getenv("DB_USER"),
		DB_PASSWORD:        os.Getenv("DB_PASSWORD"),
		DB_NAME:            os.Getenv("DB_NAME"),
		ES_URL:             os.Getenv("ES_URL"),
		ES_USER:            os.Getenv("ES_USER"),
		ES_PASSWORD:        os.Getenv("ES_PASSWORD"),
		ES_LOGIN_INDEX:     getenv("ES_LOGIN_INDEX", "login_events"),
		KAFKA_ADDRESS:      os.Getenv("KAFKA_ADDRESS"),
		JWT_ACCESS_SECRET:  os.Getenv("JWT_ACCESS_SECRET"),
		JWT_REFRESH_SECRET: os.Getenv("JWT_REFRESH_SECRET"),
		JWT_ACCESS_EXPIRY:  getenv("JWT_ACCESS_EXPIRY", "15m"),
		JWT_REFRESH_EXPIRY: getenv("JWT_REFRESH_EXPIRY", "7d"),
	}

	if config.JWT_ACCESS_SECRET == "" || config.JWT_REFRESH_SECRET == "" {
		return nil, fmt.Errorf("JWT_ACCESS_SECRET and JWT_REFRESH_SECRET must be set")
	}

	return config, nil
}

// DSN builds the postgres connection string for gorm.
func (c *Config) DSN() string {
	return fmt.Sprintf(
		"postgres://%s:%s@%s:%s/%s?sslmode=disable",
		c.DB_USER, c.DB_PASSWORD, c.DB_HOST, c.DB_PORT, c.DB_NAME,
	)
}

func getenv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}
