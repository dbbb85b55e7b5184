// Package config loads runtime settings from the environment, with an
// optional .env file for local development.
package config

import (
	"os"
	"strconv"
	"strings"

	"github.com/joho/godotenv"
	"github.com/sirupsen/logrus"
)

// Config holds every runtime setting. DatabaseURL and RedisAddr are
// optional: when empty the server runs without persistence or action history.
type Config struct {
	ListenAddr     string
	DatabaseURL    string
	RedisAddr      string
	RedisPassword  string
	RedisDB        int
	JWTSecret      string
	AllowedOrigins []string
}

// Load reads .env when present, then the process environment.
func Load() Config {
	if err := godotenv.Load(); err == nil {
		logrus.Info("loaded environment from .env")
	}

	cfg := Config{
		ListenAddr:    getenv("LISTEN_ADDR", ":8080"),
		DatabaseURL:   os.Getenv("DATABASE_URL"),
		RedisAddr:     os.Getenv("REDIS_ADDR"),
		RedisPassword: os.Getenv("REDIS_PASSWORD"),
		JWTSecret:     getenv("JWT_SECRET", "dev-secret-change-me"),
	}
	if v := os.Getenv("REDIS_DB"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			logrus.WithField("REDIS_DB", v).Warn("invalid redis db index, using 0")
		} else {
			cfg.RedisDB = n
		}
	}
	for _, origin := range strings.Split(getenv("ORIGIN_ALLOWLIST", ""), ",") {
		if origin = strings.TrimSpace(origin); origin != "" {
			cfg.AllowedOrigins = append(cfg.AllowedOrigins, origin)
		}
	}
	return cfg
}

func getenv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}
