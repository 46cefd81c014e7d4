/*
main.go - Application entry point

PURPOSE:
  Initializes and starts the workforce server. Handles configuration,
  dependency wiring, admin account seeding, and graceful shutdown.

STARTUP SEQUENCE:
  1. Parse command-line flags
  2. Load configuration (file + WORKFORCE_* env vars)
  3. Initialize zap logger
  4. Initialize SQLite store
  5. Seed the admin account from config
  6. Configure HTTP router and start with graceful shutdown

COMMAND-LINE FLAGS:
  -config  Path to config file (optional; env vars and defaults apply)
  -port    Override server.port
  -db      Override server.db_path (":memory:" for in-memory)

GRACEFUL SHUTDOWN:
  On SIGINT/SIGTERM:
  1. Stop accepting new connections
  2. Wait for active requests to complete (30s timeout)
  3. Close database connection
  4. Exit

EXAMPLES:
  ./server -config=./workforce.yaml
  ./server -db=":memory:" -port=3000
  WORKFORCE_AUTH_ADMIN_PASSWORD=secret ./server

SEE ALSO:
  - config/config.go: Configuration keys and defaults
  - api/server.go: Router configuration
  - store/sqlite/sqlite.go: Database implementation
*/
package main

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"flag"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"

	"github.com/warp/workforce/api"
	"github.com/warp/workforce/billing"
	"github.com/warp/workforce/config"
	"github.com/warp/workforce/store/sqlite"
)

func main() {
	// Flags
	configPath := flag.String("config", "", "path to config file")
	port := flag.Int("port", 0, "HTTP server port (overrides config)")
	dbPath := flag.String("db", "", "SQLite database path (overrides config)")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}
	if *port != 0 {
		cfg.Server.Port = *port
	}
	if *dbPath != "" {
		cfg.Server.DBPath = *dbPath
	}

	logger, err := zap.NewProduction()
	if err != nil {
		log.Fatalf("Failed to initialize logger: %v", err)
	}
	defer logger.Sync()

	// Initialize store
	store, err := sqlite.New(cfg.Server.DBPath)
	if err != nil {
		logger.Fatal("failed to initialize database", zap.Error(err))
	}
	defer store.Close()

	if err := seedAdmin(store, cfg, logger); err != nil {
		logger.Fatal("failed to seed admin account", zap.Error(err))
	}

	sessionKey := cfg.Auth.SessionKey
	if sessionKey == "" {
		// Per-process key; all sessions drop on restart.
		buf := make([]byte, 32)
		rand.Read(buf)
		sessionKey = hex.EncodeToString(buf)
		logger.Warn("auth.session_key not set, using a random per-process key")
	}

	rates := billing.RateTable{
		Hourly:  cfg.Billing.HourlyRate,
		PerUnit: cfg.Billing.UnitRate,
	}
	handler := api.NewHandler(store, rates, sessionKey, logger)
	router := api.NewRouter(handler, cfg.Server.RequestTimeout)

	server := &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.Server.Port),
		Handler:      router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	// Start server in goroutine
	go func() {
		logger.Info("server starting",
			zap.Int("port", cfg.Server.Port),
			zap.String("db", cfg.Server.DBPath))
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Fatal("server failed", zap.Error(err))
		}
	}()

	// Wait for interrupt signal
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info("shutting down server")

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := server.Shutdown(ctx); err != nil {
		logger.Fatal("server forced to shutdown", zap.Error(err))
	}

	logger.Info("server stopped")
}

// seedAdmin makes sure the configured admin account exists with the
// configured password. Skipped when no password is set.
func seedAdmin(store *sqlite.Store, cfg *config.Config, logger *zap.Logger) error {
	if cfg.Auth.AdminPassword == "" {
		logger.Warn("auth.admin_password not set, admin login disabled")
		return nil
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(cfg.Auth.AdminPassword), bcrypt.DefaultCost)
	if err != nil {
		return err
	}
	_, err = store.SaveAdminUser(context.Background(), sqlite.AdminUser{
		Username:     cfg.Auth.AdminUsername,
		PasswordHash: string(hash),
	})
	if err != nil {
		return err
	}
	logger.Info("admin account ready", zap.String("username", cfg.Auth.AdminUsername))
	return nil
}
