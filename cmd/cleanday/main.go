package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/ndenisov/cleanday/internal/backup"
	"github.com/ndenisov/cleanday/internal/database"
	"github.com/ndenisov/cleanday/internal/logging"
	"github.com/ndenisov/cleanday/internal/server"
)

func main() {
	logger := logging.Setup(os.Getenv("CLEANDAY_LOG_LEVEL"))

	port := os.Getenv("CLEANDAY_PORT")
	if port == "" {
		port = "8080"
	}

	dbPath := os.Getenv("CLEANDAY_DB_PATH")
	if dbPath == "" {
		dbPath = "cleanday.db"
	}

	secret := os.Getenv("CLEANDAY_JWT_SECRET")
	if secret == "" {
		logger.Warn("CLEANDAY_JWT_SECRET not set, using an insecure default")
		secret = "insecure-dev-secret"
	}

	db, err := database.Open(dbPath)
	if err != nil {
		logger.Error("open database", "error", err)
		os.Exit(1)
	}
	defer db.Close()

	srv := server.New(db, server.Config{JWTSecret: secret}, logger)

	backupCtx, stopBackups := context.WithCancel(context.Background())
	defer stopBackups()
	backups := backup.New(backup.Config{
		Endpoint:   os.Getenv("CLEANDAY_S3_ENDPOINT"),
		Bucket:     os.Getenv("CLEANDAY_S3_BUCKET"),
		Region:     os.Getenv("CLEANDAY_S3_REGION"),
		AccessKey:  os.Getenv("CLEANDAY_S3_ACCESS_KEY"),
		SecretKey:  os.Getenv("CLEANDAY_S3_SECRET_KEY"),
		Passphrase: os.Getenv("CLEANDAY_BACKUP_PASSPHRASE"),
		DBPath:     dbPath,
	}, db, logger.With("component", "backup"))
	if backups.Enabled() {
		logger.Info("database snapshots enabled")
		go backups.Run(backupCtx)
	}

	httpServer := &http.Server{
		Addr:         ":" + port,
		Handler:      srv.Router(),
		ReadTimeout:  5 * time.Second,
		WriteTimeout: 10 * time.Second,
		IdleTimeout:  120 * time.Second,
	}

	// Periodic sweep of stale rate-limit entries
	cleanupDone := make(chan struct{})
	go func() {
		ticker := time.NewTicker(10 * time.Minute)
		defer ticker.Stop()
		for {
			select {
			case <-ticker.C:
				srv.RateLimiter().Cleanup()
			case <-cleanupDone:
				return
			}
		}
	}()

	go func() {
		logger.Info("cleanday listening", "port", port, "db", dbPath)
		if err := httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Error("server error", "error", err)
			os.Exit(1)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info("shutting down")
	close(cleanupDone)
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := httpServer.Shutdown(ctx); err != nil {
		logger.Error("shutdown error", "error", err)
		os.Exit(1)
	}
}
