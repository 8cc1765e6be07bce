package config

import (
	"os"
	"testing"
	"time"
)

// setKeyEnv sets the minimum env for Load to pass key-material validation.
func setKeyEnv() {
	os.Setenv("ACTIVE_KEY_ID", "k1")
	os.Setenv("ACTIVE_KEY_MATERIAL", "0123456789abcdef0123456789abcdef")
	os.Setenv("TOKEN_ALGORITHM", "HS256")
}

func TestLoad_Defaults(t *testing.T) {
	os.Clearenv()
	os.Setenv("GRPC_ADDR", ":8080")
	setKeyEnv()

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg == nil {
		t.Fatal("Load returned nil config")
	}
	if cfg.GRPCAddr != ":8080" {
		t.Errorf("GRPCAddr = %q, want %q", cfg.GRPCAddr, ":8080")
	}
	if cfg.TokenIssuer != "auth-token-service" {
		t.Errorf("TokenIssuer = %q, want %q", cfg.TokenIssuer, "auth-token-service")
	}
	if cfg.AccessTokenTTL != "15m" {
		t.Errorf("AccessTokenTTL = %q, want %q", cfg.AccessTokenTTL, "15m")
	}
	if cfg.RefreshTokenTTL != "168h" {
		t.Errorf("RefreshTokenTTL = %q, want %q", cfg.RefreshTokenTTL, "168h")
	}
	if cfg.MaxRefreshUses != 3 {
		t.Errorf("MaxRefreshUses = %d, want 3", cfg.MaxRefreshUses)
	}
	if cfg.BcryptCost != 12 {
		t.Errorf("BcryptCost = %d, want 12", cfg.BcryptCost)
	}
	if got := cfg.DeviceTrustWindow(); got != 720*time.Hour {
		t.Errorf("DeviceTrustWindow = %v, want 720h", got)
	}
	if cfg.EventKafkaTopic != "auth-security-events" {
		t.Errorf("EventKafkaTopic = %q, want default", cfg.EventKafkaTopic)
	}
	if cfg.GuardMaxFailures != 5 {
		t.Errorf("GuardMaxFailures = %d, want 5", cfg.GuardMaxFailures)
	}
	if got := cfg.GuardWindowDuration(); got != 15*time.Minute {
		t.Errorf("GuardWindowDuration = %v, want 15m", got)
	}
	if cfg.SecondFactorRequireAlways {
		t.Error("SecondFactorRequireAlways = true, want false by default")
	}
	if !cfg.SecondFactorRequireForUntrusted {
		t.Error("SecondFactorRequireForUntrusted = false, want true by default")
	}
	if cfg.RedisAddr != "" {
		t.Errorf("RedisAddr = %q, want empty", cfg.RedisAddr)
	}
}

func TestLoad_GuardMaxFailuresInvalid(t *testing.T) {
	os.Clearenv()
	os.Setenv("GRPC_ADDR", ":8080")
	os.Setenv("GUARD_MAX_FAILURES", "0")
	setKeyEnv()

	if _, err := Load(); err == nil {
		t.Fatal("expected error for GUARD_MAX_FAILURES=0")
	}
}

func TestLoad_EnvVarOverride(t *testing.T) {
	os.Clearenv()
	os.Setenv("GRPC_ADDR", ":9090")
	os.Setenv("TOKEN_ISSUER", "custom-issuer")
	os.Setenv("BCRYPT_COST", "14")
	setKeyEnv()

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.GRPCAddr != ":9090" {
		t.Errorf("GRPCAddr = %q, want %q", cfg.GRPCAddr, ":9090")
	}
	if cfg.TokenIssuer != "custom-issuer" {
		t.Errorf("TokenIssuer = %q, want %q", cfg.TokenIssuer, "custom-issuer")
	}
	if cfg.BcryptCost != 14 {
		t.Errorf("BcryptCost = %d, want 14", cfg.BcryptCost)
	}
}

func TestLoad_ActiveKeyRequired(t *testing.T) {
	os.Clearenv()
	os.Setenv("GRPC_ADDR", ":8080")

	_, err := Load()
	if err == nil {
		t.Fatal("Load without ACTIVE_KEY_ID/ACTIVE_KEY_MATERIAL should fail")
	}
}

func TestLoad_InvalidAlgorithm(t *testing.T) {
	os.Clearenv()
	os.Setenv("GRPC_ADDR", ":8080")
	setKeyEnv()
	os.Setenv("TOKEN_ALGORITHM", "none")

	_, err := Load()
	if err == nil {
		t.Fatal(`Load with TOKEN_ALGORITHM="none" should fail`)
	}
}

func TestLoad_NextKeyPairing(t *testing.T) {
	os.Clearenv()
	os.Setenv("GRPC_ADDR", ":8080")
	setKeyEnv()
	os.Setenv("NEXT_KEY_ID", "k0")

	if _, err := Load(); err == nil {
		t.Fatal("NEXT_KEY_ID without NEXT_KEY_MATERIAL should fail")
	}

	os.Setenv("NEXT_KEY_MATERIAL", "fedcba9876543210fedcba9876543210")
	if _, err := Load(); err != nil {
		t.Fatalf("Load with paired next key: %v", err)
	}

	os.Setenv("NEXT_KEY_ID", "k1") // same as active
	if _, err := Load(); err == nil {
		t.Fatal("NEXT_KEY_ID equal to ACTIVE_KEY_ID should fail")
	}
}

func TestLoad_AccessTTLCapped(t *testing.T) {
	os.Clearenv()
	os.Setenv("GRPC_ADDR", ":8080")
	setKeyEnv()
	os.Setenv("ACCESS_TOKEN_TTL", "24h")

	_, err := Load()
	if err == nil {
		t.Fatal("Load with a 24h access TTL should fail; access tokens are minutes, not hours")
	}
}

func TestLoad_BCRYPT_COSTRange(t *testing.T) {
	testCases := []struct {
		name  string
		value string
		want  int
		err   bool
	}{
		{"valid min", "4", 4, false},
		{"valid max", "31", 31, false},
		{"valid middle", "12", 12, false},
		{"too low", "3", 0, true},
		{"too high", "32", 0, true},
		{"zero", "0", 12, false}, // defaults to 12
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			os.Clearenv()
			os.Setenv("GRPC_ADDR", ":8080")
			setKeyEnv()
			os.Setenv("BCRYPT_COST", tc.value)

			cfg, err := Load()
			if tc.err {
				if err == nil {
					t.Fatal("Load should return error")
				}
				return
			}
			if err != nil {
				t.Fatalf("Load: %v", err)
			}
			if cfg.BcryptCost != tc.want {
				t.Errorf("BcryptCost = %d, want %d", cfg.BcryptCost, tc.want)
			}
		})
	}
}

func TestAccessTTL_ValidDuration(t *testing.T) {
	os.Clearenv()
	os.Setenv("GRPC_ADDR", ":8080")
	setKeyEnv()
	os.Setenv("ACCESS_TOKEN_TTL", "30m")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if ttl := cfg.AccessTTL(); ttl != 30*time.Minute {
		t.Errorf("AccessTTL = %v, want %v", ttl, 30*time.Minute)
	}
}

func TestAccessTTL_InvalidDuration(t *testing.T) {
	os.Clearenv()
	os.Setenv("GRPC_ADDR", ":8080")
	setKeyEnv()
	os.Setenv("ACCESS_TOKEN_TTL", "invalid")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if ttl := cfg.AccessTTL(); ttl != 15*time.Minute {
		t.Errorf("AccessTTL = %v, want %v (default)", ttl, 15*time.Minute)
	}
}

func TestRefreshTTL_ValidDuration(t *testing.T) {
	os.Clearenv()
	os.Setenv("GRPC_ADDR", ":8080")
	setKeyEnv()
	os.Setenv("REFRESH_TOKEN_TTL", "336h") // 14 days

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if ttl := cfg.RefreshTTL(); ttl != 14*24*time.Hour {
		t.Errorf("RefreshTTL = %v, want %v", ttl, 14*24*time.Hour)
	}
}

func TestRefreshTTL_NegativeDuration(t *testing.T) {
	os.Clearenv()
	os.Setenv("GRPC_ADDR", ":8080")
	setKeyEnv()
	os.Setenv("REFRESH_TOKEN_TTL", "-1h")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if ttl := cfg.RefreshTTL(); ttl != 168*time.Hour {
		t.Errorf("RefreshTTL = %v, want %v (default)", ttl, 168*time.Hour)
	}
}

func TestKafkaBrokersList(t *testing.T) {
	cfg := &Config{EventKafkaBrokers: "localhost:9092, broker2:9092 ,"}
	got := cfg.KafkaBrokersList()
	if len(got) != 2 || got[0] != "localhost:9092" || got[1] != "broker2:9092" {
		t.Errorf("KafkaBrokersList = %v", got)
	}
	cfg = &Config{}
	if got := cfg.KafkaBrokersList(); got != nil {
		t.Errorf("empty brokers: want nil, got %v", got)
	}
}
