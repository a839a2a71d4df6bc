// Command secretsite runs the web application: registration, local login,
// Google login, and the session-gated secrets page.
//
// All configuration comes from the environment (a .env file is honored):
//
//	SECRETSITE_ADDR                 listen address (default ":3000")
//	SECRETSITE_DB                   postgres:// DSN or a sqlite file path
//	SECRETSITE_BASE_URL             public base URL for generated links
//	SECRETSITE_JWT_SECRET           key for signing auth token cookies
//	SECRETSITE_PERSIST_SESSIONS     "true" to outlive the browser session
//	OAUTH2_GOOGLE_CLIENT_ID         Google OAuth client id
//	OAUTH2_GOOGLE_CLIENT_SECRET     Google OAuth client secret
//	OAUTH2_GOOGLE_CALLBACK_URL      Google OAuth redirect URL
package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/glebarez/sqlite"
	"github.com/joho/godotenv"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"

	"github.com/mhalligan/secretsite"
	oauth2 "github.com/mhalligan/secretsite/oauth2"
	gormstores "github.com/mhalligan/secretsite/stores/gorm"
	"github.com/mhalligan/secretsite/web"
)

func main() {
	_ = godotenv.Load()
	logger := slog.New(slog.NewTextHandler(os.Stderr, nil))
	slog.SetDefault(logger)

	addr := envDefault("SECRETSITE_ADDR", ":3000")
	baseURL := envDefault("SECRETSITE_BASE_URL", "http://localhost:3000")
	dsn := envDefault("SECRETSITE_DB", "secretsite.db")

	jwtSecret := os.Getenv("SECRETSITE_JWT_SECRET")
	if jwtSecret == "" {
		logger.Error("SECRETSITE_JWT_SECRET is required")
		os.Exit(1)
	}

	db, err := openDB(dsn)
	if err != nil {
		logger.Error("failed to open database", "err", err)
		os.Exit(1)
	}
	if err := gormstores.AutoMigrate(db); err != nil {
		logger.Error("failed to run migrations", "err", err)
		os.Exit(1)
	}

	store := gormstores.NewUserStore(db)
	tokens := gormstores.NewTokenStore(db)

	sessions := secretsite.NewSessionAuth(jwtSecret)
	if envDefault("SECRETSITE_PERSIST_SESSIONS", "false") == "true" {
		sessions.Session.Cookie.Persist = true
	}

	google := oauth2.NewGoogleOAuth2(
		os.Getenv("OAUTH2_GOOGLE_CLIENT_ID"),
		os.Getenv("OAUTH2_GOOGLE_CLIENT_SECRET"),
		os.Getenv("OAUTH2_GOOGLE_CALLBACK_URL"),
	)

	server, err := web.NewServer(web.Config{
		Local:    &secretsite.LocalAuth{Store: store},
		Google:   google,
		Sessions: sessions,
		Store:    store,
		Tokens:   tokens,
		Email:    &secretsite.ConsoleEmailSender{},
		BaseURL:  baseURL,
		Logger:   logger,
	})
	if err != nil {
		logger.Error("failed to build server", "err", err)
		os.Exit(1)
	}

	httpServer := &http.Server{
		Addr:              addr,
		Handler:           server.Handler(),
		ReadHeaderTimeout: 5 * time.Second,
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := httpServer.Shutdown(shutdownCtx); err != nil {
			logger.Warn("shutdown did not complete cleanly", "err", err)
		}
	}()

	logger.Info("server started", "addr", addr)
	if err := httpServer.ListenAndServe(); !errors.Is(err, http.ErrServerClosed) {
		logger.Error("server failed", "err", err)
		os.Exit(1)
	}
	logger.Info("server stopped")
}

func openDB(dsn string) (*gorm.DB, error) {
	cfg := &gorm.Config{TranslateError: true}
	if strings.HasPrefix(dsn, "postgres://") || strings.HasPrefix(dsn, "postgresql://") {
		return gorm.Open(postgres.Open(dsn), cfg)
	}
	return gorm.Open(sqlite.Open(dsn), cfg)
}

func envDefault(name, fallback string) string {
	if v := strings.TrimSpace(os.Getenv(name)); v != "" {
		return v
	}
	return fallback
}
