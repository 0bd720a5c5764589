package main

import (
	"context"
	"crypto/rand"
	"fmt"
	"log"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	"github.com/dukerupert/shepherd/internal/database"
	"github.com/dukerupert/shepherd/internal/logging"
	"github.com/dukerupert/shepherd/internal/push"
	"github.com/dukerupert/shepherd/internal/server"
	"github.com/dukerupert/shepherd/internal/storage"
)

func main() {
	if len(os.Args) > 1 && os.Args[1] == "vapid" {
		pub, priv, err := push.GenerateVAPIDKeys()
		if err != nil {
			log.Fatalf("generate VAPID keys: %v", err)
		}
		fmt.Printf("SHEPHERD_VAPID_PUBLIC_KEY=%s\nSHEPHERD_VAPID_PRIVATE_KEY=%s\n", pub, priv)
		return
	}

	// .env is optional; real deployments set the environment directly.
	_ = godotenv.Load()

	logger := logging.Setup(os.Getenv("SHEPHERD_LOG_LEVEL"), os.Getenv("SHEPHERD_LOG_FORMAT"))

	port := os.Getenv("SHEPHERD_PORT")
	if port == "" {
		port = "8080"
	}

	dbPath := os.Getenv("SHEPHERD_DB_PATH")
	if dbPath == "" {
		dbPath = "shepherd.db"
	}

	db, err := database.Open(dbPath)
	if err != nil {
		log.Fatalf("failed to open database: %v", err)
	}
	defer db.Close()

	baseURL := os.Getenv("SHEPHERD_BASE_URL")
	if baseURL == "" {
		baseURL = "http://localhost:" + port
	}

	scanSecret := []byte(os.Getenv("SHEPHERD_SCAN_SECRET"))
	if len(scanSecret) == 0 {
		// Scan cookies signed with an ephemeral secret stop verifying
		// after a restart; fine for development, not for production.
		scanSecret = make([]byte, 32)
		if _, err := rand.Read(scanSecret); err != nil {
			log.Fatalf("failed to generate scan secret: %v", err)
		}
		logger.Warn("SHEPHERD_SCAN_SECRET not set, using ephemeral secret")
	}

	var scanTokenTTL time.Duration
	if raw := os.Getenv("SHEPHERD_SCAN_TOKEN_TTL"); raw != "" {
		d, err := time.ParseDuration(raw)
		if err != nil {
			log.Fatalf("invalid SHEPHERD_SCAN_TOKEN_TTL: %v", err)
		}
		scanTokenTTL = d
	}

	cfg := server.Config{
		BaseURL:       baseURL,
		ScanSecret:    scanSecret,
		ScanTokenTTL:  scanTokenTTL,
		ExtractionURL: os.Getenv("SHEPHERD_EXTRACTION_URL"),
		ExtractionKey: os.Getenv("SHEPHERD_EXTRACTION_KEY"),
		PostmarkToken: os.Getenv("SHEPHERD_POSTMARK_TOKEN"),
		FromEmail:     os.Getenv("SHEPHERD_FROM_EMAIL"),
		S3: storage.S3Config{
			Endpoint:  os.Getenv("SHEPHERD_S3_ENDPOINT"),
			Bucket:    os.Getenv("SHEPHERD_S3_BUCKET"),
			Region:    os.Getenv("SHEPHERD_S3_REGION"),
			AccessKey: os.Getenv("SHEPHERD_S3_ACCESS_KEY"),
			SecretKey: os.Getenv("SHEPHERD_S3_SECRET_KEY"),
		},
		PhotoPassphrase: os.Getenv("SHEPHERD_PHOTO_PASSPHRASE"),
		VAPIDPublicKey:  os.Getenv("SHEPHERD_VAPID_PUBLIC_KEY"),
		VAPIDPrivateKey: os.Getenv("SHEPHERD_VAPID_PRIVATE_KEY"),
		TaxonomyPath:    os.Getenv("SHEPHERD_TAXONOMY_PATH"),
	}

	srv, err := server.New(db, cfg, logger)
	if err != nil {
		log.Fatalf("failed to build server: %v", err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	go cleanupLoop(ctx, srv, logger)

	httpServer := &http.Server{
		Addr:         ":" + port,
		Handler:      srv.Router(),
		ReadTimeout:  5 * time.Second,
		WriteTimeout: 30 * time.Second,
		IdleTimeout:  120 * time.Second,
	}

	go func() {
		fmt.Printf("Shepherd running at %s\n", baseURL)
		if err := httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("server error: %v", err)
		}
	}()

	<-ctx.Done()

	fmt.Println("\nShutting down...")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		log.Fatalf("shutdown error: %v", err)
	}
}

// cleanupLoop expires sessions, sign-in codes, and scan tokens on an
// hourly cadence.
func cleanupLoop(ctx context.Context, srv *server.Server, logger *slog.Logger) {
	ticker := time.NewTicker(time.Hour)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if n, err := srv.SessionStore().DeleteExpired(); err != nil {
				logger.Warn("session cleanup failed", "error", err)
			} else if n > 0 {
				logger.Info("expired sessions removed", "count", n)
			}
			if _, err := srv.MagicLinkStore().DeleteExpired(); err != nil {
				logger.Warn("magic link cleanup failed", "error", err)
			}
			if _, err := srv.ScanSessionStore().DeleteExpired(); err != nil {
				logger.Warn("scan session cleanup failed", "error", err)
			}
			srv.RateLimiter().Cleanup()
		}
	}
}
