package main

import (
	"context"
	"errors"
	"log"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	rdb "github.com/redis/go-redis/v9"

	"auth-token-service/internal/audit"
	auditrepo "auth-token-service/internal/audit/repository"
	"auth-token-service/internal/config"
	"auth-token-service/internal/db"
	devicerepo "auth-token-service/internal/device/repository"
	"auth-token-service/internal/guard"
	"auth-token-service/internal/health"
	"auth-token-service/internal/keystore"
	"auth-token-service/internal/login/attempt"
	loginhandler "auth-token-service/internal/login/handler"
	loginrepo "auth-token-service/internal/login/repository"
	loginservice "auth-token-service/internal/login/service"
	mfarepo "auth-token-service/internal/mfa/repository"
	"auth-token-service/internal/mfa/sender"
	policyengine "auth-token-service/internal/policy/engine"
	refreshhandler "auth-token-service/internal/refresh/handler"
	refreshrepo "auth-token-service/internal/refresh/repository"
	refreshservice "auth-token-service/internal/refresh/service"
	"auth-token-service/internal/security"
	"auth-token-service/internal/server"
	"auth-token-service/internal/telemetry"
	"auth-token-service/internal/telemetry/otel"
	"auth-token-service/internal/telemetry/producer"
	"auth-token-service/internal/token"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("config: %v", err)
	}
	if cfg.DatabaseURL == "" {
		log.Fatal("DATABASE_URL is required")
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	database, err := db.Open(cfg.DatabaseURL)
	if err != nil {
		log.Fatalf("database: %v", err)
	}
	defer database.Close()

	keys, err := keystore.Load(cfg)
	if err != nil {
		log.Fatalf("keystore: %v", err)
	}

	providers, err := otel.NewProviders(ctx, cfg.OTLPEndpoint, "auth-token-service", cfg.OTLPInsecure)
	if err != nil {
		log.Fatalf("otel: %v", err)
	}
	providers.SetGlobal()

	// Security events fan out to Kafka and OTel logs; either may be disabled.
	var emitters telemetry.MultiEmitter
	var kafkaProducer *producer.KafkaProducer
	if brokers := cfg.KafkaBrokersList(); len(brokers) > 0 {
		kafkaProducer = producer.NewKafkaProducer(brokers, cfg.EventKafkaTopic)
		emitters = append(emitters, kafkaProducer)
	}
	emitters = append(emitters, otel.NewEventEmitter(providers.LoggerProvider))

	auditLogger := audit.NewLogger(auditrepo.NewPostgresRepository(database), telemetry.NewAuditSink(emitters))

	issuer := token.NewIssuer(keys, cfg.TokenIssuer, cfg.AccessTTL(), cfg.RefreshTTL())
	verifier := token.NewVerifier(keys, cfg.TokenIssuer)

	ledger := refreshservice.NewLedgerService(
		refreshrepo.NewPostgresRepository(database), verifier, issuer, auditLogger, cfg.MaxRefreshUses)

	evaluator, err := policyengine.NewOPAEvaluator(loadPolicySource(cfg.PolicyFile))
	if err != nil {
		log.Fatalf("policy: %v", err)
	}

	var loginGuard guard.Guard
	if cfg.RedisAddr != "" {
		client := rdb.NewClient(&rdb.Options{Addr: cfg.RedisAddr})
		defer client.Close()
		loginGuard = guard.NewRedisGuard(client, "authguard", cfg.GuardMaxFailures, cfg.GuardWindowDuration())
	} else {
		loginGuard = guard.NewMemoryGuard(cfg.GuardMaxFailures, cfg.GuardWindowDuration())
	}

	var codeSender loginservice.CodeSender
	if cfg.OTPSenderURL != "" {
		codeSender = sender.NewWebhookSender(cfg.OTPSenderAPIKey, cfg.OTPSenderURL)
	}

	gate := loginservice.NewGateService(loginservice.Deps{
		Credentials: loginrepo.NewPostgresCredentialRepository(database),
		DeviceTrust: devicerepo.NewPostgresRepository(database),
		Challenges:  mfarepo.NewPostgresChallengeRepository(database),
		BackupCodes: mfarepo.NewPostgresBackupCodeRepository(database),
		Attempts:    attempt.NewMemoryStore(),
		Ledger:      ledger,
		Issuer:      issuer,
		Hasher:      security.NewHasher(cfg.BcryptCost),
		Policy:      evaluator,
		Guard:       loginGuard,
		Audit:       auditLogger,
		Sender:      codeSender,
		Tenant: loginservice.TenantPolicy{
			RequireAlways:       cfg.SecondFactorRequireAlways,
			RequireForUntrusted: cfg.SecondFactorRequireForUntrusted,
			TrustTTLHours:       int(cfg.DeviceTrustWindow().Hours()),
		},
		ChallengeTTL: cfg.ChallengeTTL(),
	})

	grpcServer, healthServer := server.New(server.Deps{
		Verifier: verifier,
		Audit:    auditLogger,
		Events:   kafkaProducer,
	})

	httpServer := &http.Server{
		Addr: cfg.HTTPAddr,
		Handler: server.NewHTTPHandler(server.HTTPDeps{
			Verifier: verifier,
			Keys:     keys,
			Login:    loginhandler.NewHTTP(gate, cfg.GuardWindowDuration()),
			Refresh:  refreshhandler.NewHTTP(ledger),
		}),
		ReadHeaderTimeout: 10 * time.Second,
	}

	checker := health.NewChecker(database, keys, evaluator)
	go server.WatchReadiness(ctx, healthServer, checker, 10*time.Second)

	lis, err := net.Listen("tcp", cfg.GRPCAddr)
	if err != nil {
		log.Fatalf("listen: %v", err)
	}
	defer lis.Close()

	go func() {
		log.Printf("gRPC server listening on %s", cfg.GRPCAddr)
		if err := grpcServer.Serve(lis); err != nil {
			log.Fatalf("serve: %v", err)
		}
	}()
	go func() {
		log.Printf("HTTP API listening on %s", cfg.HTTPAddr)
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatalf("http serve: %v", err)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, os.Interrupt, syscall.SIGTERM)
	<-quit

	log.Println("shutting down...")
	httpShutdownCtx, httpCancel := context.WithTimeout(context.Background(), 10*time.Second)
	if err := httpServer.Shutdown(httpShutdownCtx); err != nil {
		log.Printf("http shutdown: %v", err)
	}
	httpCancel()
	grpcServer.GracefulStop()
	cancel()

	// Give in-flight async emits time to finish before tearing down exporters.
	time.Sleep(telemetry.ShutdownDrainDuration)
	if kafkaProducer != nil {
		if err := kafkaProducer.Close(); err != nil {
			log.Printf("kafka producer close: %v", err)
		}
	}
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()
	if err := providers.Shutdown(shutdownCtx); err != nil {
		log.Printf("otel shutdown: %v", err)
	}
	log.Println("server stopped")
}

// loadPolicySource reads the rego override, or returns "" to use the
// built-in policy.
func loadPolicySource(path string) string {
	if path == "" {
		return ""
	}
	raw, err := os.ReadFile(path)
	if err != nil {
		log.Fatalf("policy: read %s: %v", path, err)
	}
	return string(raw)
}
