// Worker runs periodic ledger hygiene: it deletes expired OTP challenges and
// expired refresh-ledger records. Set DATABASE_URL; JANITOR_INTERVAL overrides
// the sweep interval (default 10m). GRPC_ADDR is required by config but unused
// (e.g. set to :0).
package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"auth-token-service/internal/config"
	"auth-token-service/internal/db"
	mfarepo "auth-token-service/internal/mfa/repository"
	refreshrepo "auth-token-service/internal/refresh/repository"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("config: %v", err)
	}
	if cfg.DatabaseURL == "" {
		log.Fatal("worker: DATABASE_URL is required")
	}

	interval := 10 * time.Minute
	if raw := os.Getenv("JANITOR_INTERVAL"); raw != "" {
		d, err := time.ParseDuration(raw)
		if err != nil || d <= 0 {
			log.Fatalf("worker: invalid JANITOR_INTERVAL %q", raw)
		}
		interval = d
	}

	database, err := db.Open(cfg.DatabaseURL)
	if err != nil {
		log.Fatalf("worker: open database: %v", err)
	}
	defer database.Close()

	challenges := mfarepo.NewPostgresChallengeRepository(database)
	refresh := refreshrepo.NewPostgresRepository(database)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go func() {
		quit := make(chan os.Signal, 1)
		signal.Notify(quit, os.Interrupt, syscall.SIGTERM)
		<-quit
		log.Println("worker: shutting down...")
		cancel()
	}()

	log.Printf("worker: sweeping every %s", interval)

	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		sweepCtx, sweepCancel := context.WithTimeout(ctx, time.Minute)
		now := time.Now().UTC()
		if n, err := challenges.DeleteExpired(sweepCtx, now); err != nil {
			log.Printf("worker: challenge sweep failed: %v", err)
		} else if n > 0 {
			log.Printf("worker: deleted %d expired challenges", n)
		}
		if n, err := refresh.DeleteExpired(sweepCtx, now); err != nil {
			log.Printf("worker: refresh sweep failed: %v", err)
		} else if n > 0 {
			log.Printf("worker: deleted %d expired refresh records", n)
		}
		sweepCancel()

		select {
		case <-ctx.Done():
			log.Println("worker: stopped")
			return
		case <-ticker.C:
		}
	}
}
