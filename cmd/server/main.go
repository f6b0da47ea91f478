/*
main.go - Application entry point

PURPOSE:
  Initializes and starts the voucher platform server. Handles configuration,
  dependency injection, and graceful shutdown.

STARTUP SEQUENCE:
  1. Parse command-line flags
  2. Initialize SQLite store
  3. Bootstrap the admin account if requested
  4. Create API handler with dependencies
  5. Configure HTTP router
  6. Start server with graceful shutdown

COMMAND-LINE FLAGS:
  -port            HTTP server port (default: 8080)
  -db              SQLite database path (default: vouchers.db)
                   Use ":memory:" for an in-memory database
  -jwt-secret      HMAC secret for session tokens (or JWT_SECRET env var)
  -admin-email     Bootstrap admin email (optional)
  -admin-password  Bootstrap admin password (required with -admin-email)

GRACEFUL SHUTDOWN:
  On SIGINT/SIGTERM:
  1. Stop accepting new connections
  2. Wait for active requests to complete (30s timeout)
  3. Close database connection
  4. Exit

EXAMPLES:
  # Run with file database
  ./server -db="./data/vouchers.db" -jwt-secret="change-me"

  # First run, creating the admin
  ./server -admin-email=admin@example.com -admin-password=changeme1

SEE ALSO:
  - api/server.go: Router configuration
  - api/handlers.go: HTTP handlers
  - store/sqlite/sqlite.go: Database implementation
*/
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"golang.org/x/crypto/bcrypt"

	"github.com/google/uuid"

	"github.com/warp/voucher-engine/api"
	"github.com/warp/voucher-engine/auth"
	"github.com/warp/voucher-engine/ledger"
	"github.com/warp/voucher-engine/store/sqlite"
)

func main() {
	// Flags
	port := flag.Int("port", 8080, "HTTP server port")
	dbPath := flag.String("db", "vouchers.db", "SQLite database path")
	jwtSecret := flag.String("jwt-secret", "", "HMAC secret for session tokens (falls back to JWT_SECRET)")
	adminEmail := flag.String("admin-email", "", "bootstrap admin email")
	adminPassword := flag.String("admin-password", "", "bootstrap admin password")
	flag.Parse()

	secret := *jwtSecret
	if secret == "" {
		secret = os.Getenv("JWT_SECRET")
	}
	if secret == "" {
		log.Fatal("No JWT secret configured: pass -jwt-secret or set JWT_SECRET")
	}

	// Initialize store
	store, err := sqlite.New(*dbPath)
	if err != nil {
		log.Fatalf("Failed to initialize database: %v", err)
	}
	defer store.Close()

	// Bootstrap the admin account on first run
	if *adminEmail != "" {
		if err := ensureAdmin(context.Background(), store, *adminEmail, *adminPassword); err != nil {
			log.Fatalf("Failed to bootstrap admin: %v", err)
		}
	}

	// Initialize handler
	authSvc := auth.NewService(store, secret)
	handler := api.NewHandler(store, authSvc)

	// Create router
	router := api.NewRouter(handler)

	// Create server
	server := &http.Server{
		Addr:         fmt.Sprintf(":%d", *port),
		Handler:      router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	// Start server in goroutine
	go func() {
		log.Printf("Server starting on http://localhost:%d", *port)
		log.Printf("API available at http://localhost:%d/api", *port)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("Server failed: %v", err)
		}
	}()

	// Wait for interrupt signal
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Println("Shutting down server...")

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := server.Shutdown(ctx); err != nil {
		log.Fatalf("Server forced to shutdown: %v", err)
	}

	log.Println("Server stopped")
}

// ensureAdmin creates the admin account and its wallet if the email is not
// registered yet. Idempotent across restarts.
func ensureAdmin(ctx context.Context, store ledger.Store, email, password string) error {
	if password == "" {
		return errors.New("-admin-password is required with -admin-email")
	}

	if _, err := store.FindAccountByLogin(ctx, email); err == nil {
		return nil
	} else if !errors.Is(err, ledger.ErrNotFound) {
		return err
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return err
	}

	return store.WithTx(ctx, func(tx ledger.Store) error {
		a := ledger.Account{
			ID:           ledger.AccountID(uuid.NewString()),
			LoginID:      "ADM-000",
			FirstName:    "Admin",
			LastName:     "",
			Email:        strings.ToLower(email),
			PasswordHash: string(hash),
			Role:         ledger.RoleAdmin,
			CreatedAt:    time.Now().UTC(),
		}
		if err := tx.SaveAccount(ctx, a); err != nil {
			return err
		}
		if err := tx.CreateWallet(ctx, a.ID); err != nil {
			return err
		}
		log.Printf("Created admin account %s (%s)", a.Email, a.LoginID)
		return nil
	})
}
