// seed inserts development credentials for local testing. Run via
// go run ./cmd/seed. Idempotent: upserts replace any previous dev credential.
package main

import (
	"context"
	"fmt"
	"log"
	"os"
	"time"

	"auth-token-service/internal/config"
	"auth-token-service/internal/db"
	loginrepo "auth-token-service/internal/login/repository"
	"auth-token-service/internal/security"
)

const (
	devTenantID  = "dev-tenant"
	devSubjectID = "dev-user-001"
	devPassword  = "password123"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintln(os.Stderr, "config:", err)
		os.Exit(1)
	}
	if cfg.DatabaseURL == "" {
		fmt.Fprintln(os.Stderr, "DATABASE_URL is not set; create a .env from .env.example or set DATABASE_URL")
		os.Exit(1)
	}
	if cfg.Env == "production" {
		fmt.Fprintln(os.Stderr, "seed: refusing to run with APP_ENV=production")
		os.Exit(1)
	}

	database, err := db.Open(cfg.DatabaseURL)
	if err != nil {
		log.Fatalf("seed: open database: %v", err)
	}
	defer database.Close()

	hasher := security.NewHasher(cfg.BcryptCost)
	hash, err := hasher.Hash([]byte(devPassword))
	if err != nil {
		log.Fatalf("seed: hash password: %v", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	creds := loginrepo.NewPostgresCredentialRepository(database)
	err = creds.Upsert(ctx, &loginrepo.Credential{
		TenantID:          devTenantID,
		SubjectID:         devSubjectID,
		PasswordHash:      hash,
		PasswordUpdatedAt: time.Now().UTC(),
	})
	if err != nil {
		log.Fatalf("seed: upsert credential: %v", err)
	}

	fmt.Printf("seeded dev credential: tenant=%s subject=%s password=%s\n",
		devTenantID, devSubjectID, devPassword)
}
