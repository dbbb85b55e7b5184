package main

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/duraknet/durak/internal/auth"
	"github.com/duraknet/durak/internal/cache"
	"github.com/duraknet/durak/internal/config"
	"github.com/duraknet/durak/internal/database"
	"github.com/duraknet/durak/internal/ws"
)

func main() {
	logrus.SetFormatter(&logrus.TextFormatter{FullTimestamp: true})

	cfg := config.Load()

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	// Postgres and Redis are both optional: without them games still run,
	// they just leave no durable trace.
	if cfg.DatabaseURL != "" {
		if err := database.Connect(ctx, cfg.DatabaseURL); err != nil {
			logrus.WithError(err).Warn("postgres unavailable, running without persistence")
		} else if err := database.Migrate(ctx); err != nil {
			logrus.WithError(err).Fatal("schema migration failed")
		}
	}
	if cfg.RedisAddr != "" {
		if err := cache.InitRedis(ctx, cfg.RedisAddr, cfg.RedisPassword, cfg.RedisDB); err != nil {
			logrus.WithError(err).Warn("redis unavailable, running without action history")
		}
	}

	hub := ws.NewHub([]byte(cfg.JWTSecret), cfg.AllowedOrigins)

	mux := http.NewServeMux()
	mux.HandleFunc("/ws", hub.ServeWS)
	mux.HandleFunc("/register", registerHandler([]byte(cfg.JWTSecret)))
	mux.HandleFunc("/login", loginHandler([]byte(cfg.JWTSecret)))
	mux.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})

	logrus.WithField("addr", cfg.ListenAddr).Info("server listening")
	if err := http.ListenAndServe(cfg.ListenAddr, mux); err != nil {
		logrus.WithError(err).Fatal("server exited")
	}
}

type credentials struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

func decodeCredentials(w http.ResponseWriter, r *http.Request) (credentials, bool) {
	if r.Method != http.MethodPost {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return credentials{}, false
	}
	var creds credentials
	if err := json.NewDecoder(r.Body).Decode(&creds); err != nil || creds.Username == "" || creds.Password == "" {
		http.Error(w, "bad request", http.StatusBadRequest)
		return credentials{}, false
	}
	return creds, true
}

func writeToken(w http.ResponseWriter, userID string, token string) {
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(map[string]string{"userId": userID, "token": token})
}

func registerHandler(secret []byte) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		creds, ok := decodeCredentials(w, r)
		if !ok {
			return
		}
		if database.DB == nil {
			http.Error(w, "accounts unavailable", http.StatusServiceUnavailable)
			return
		}
		hash, err := auth.HashPassword(creds.Password)
		if err != nil {
			http.Error(w, "internal error", http.StatusInternalServerError)
			return
		}
		userID, err := database.CreateUser(r.Context(), creds.Username, hash)
		if err != nil {
			logrus.WithError(err).WithField("username", creds.Username).Warn("registration failed")
			http.Error(w, "username taken", http.StatusConflict)
			return
		}
		token, err := auth.CreateToken(secret, userID)
		if err != nil {
			http.Error(w, "internal error", http.StatusInternalServerError)
			return
		}
		writeToken(w, userID.String(), token)
	}
}

func loginHandler(secret []byte) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		creds, ok := decodeCredentials(w, r)
		if !ok {
			return
		}
		if database.DB == nil {
			http.Error(w, "accounts unavailable", http.StatusServiceUnavailable)
			return
		}
		userID, hash, err := database.GetUserByUsername(r.Context(), creds.Username)
		if err != nil && !errors.Is(err, database.ErrUserNotFound) {
			http.Error(w, "internal error", http.StatusInternalServerError)
			return
		}
		// Same response for unknown user and wrong password.
		if err != nil || !auth.VerifyPassword(creds.Password, hash) {
			http.Error(w, "invalid credentials", http.StatusUnauthorized)
			return
		}
		token, err := auth.CreateToken(secret, userID)
		if err != nil {
			http.Error(w, "internal error", http.StatusInternalServerError)
			return
		}
		writeToken(w, userID.String(), token)
	}
}
