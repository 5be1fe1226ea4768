package config

import (
	"testing"
	"time"
)

func validLocal() Config {
	return Config{
		App:  AppConfig{Env: "local", Port: 8080},
		DB:   DBConfig{Host: "localhost", Port: 5432, User: "postgres", Password: "x", Name: "authguard"},
		Auth: AuthConfig{AccessSecret: "access", RefreshSecret: "refresh"},
	}
}

func TestValidate_ReportsMissingRequired(t *testing.T) {
	c := Config{}
	if err := c.Validate(); err == nil {
		t.Fatalf("expected validation error")
	}
}

func TestValidate_ProductionRequiresSSLMode(t *testing.T) {
	c := validLocal()
	c.App.Env = "production"
	c.Auth.Issuer = "authguard"
	c.Auth.Audience = "web"
	if err := c.Validate(); err == nil {
		t.Fatalf("expected error for production without DB_SSLMODE")
	}
}

func TestValidate_LocalDefaults(t *testing.T) {
	c := validLocal()
	if err := c.Validate(); err != nil {
		t.Fatalf("expected no error, got %v", err)
	}
	if c.DB.SSLMode != "disable" {
		t.Fatalf("expected sslmode disable default, got %q", c.DB.SSLMode)
	}
	if c.Auth.AccessTokenTTL != 15*time.Minute || c.Auth.RefreshTokenTTL != 7*24*time.Hour {
		t.Fatalf("unexpected ttl defaults: %v %v", c.Auth.AccessTokenTTL, c.Auth.RefreshTokenTTL)
	}
	if c.Auth.BcryptCost != 12 {
		t.Fatalf("expected bcrypt cost 12, got %d", c.Auth.BcryptCost)
	}
	if c.RateLimit.Backend != BackendMemory || c.RateLimit.MaxAttempts != 5 || c.RateLimit.Window != 15*time.Minute {
		t.Fatalf("unexpected rate limit defaults: %+v", c.RateLimit)
	}
}

func TestValidate_SecretsMustDiffer(t *testing.T) {
	c := validLocal()
	c.Auth.RefreshSecret = c.Auth.AccessSecret
	if err := c.Validate(); err == nil {
		t.Fatalf("expected error for identical secrets")
	}
}

func TestValidate_MemoryStorageSkipsDB(t *testing.T) {
	c := Config{
		App:  AppConfig{Env: "dev", Port: 8080, Storage: StorageMemory},
		Auth: AuthConfig{AccessSecret: "a", RefreshSecret: "b"},
	}
	if err := c.Validate(); err != nil {
		t.Fatalf("expected no error, got %v", err)
	}
}

func TestValidate_RedisBackendRequiresAddr(t *testing.T) {
	c := validLocal()
	c.RateLimit.Backend = BackendRedis
	if err := c.Validate(); err == nil {
		t.Fatalf("expected error for redis backend without REDIS_HOST")
	}
	c.Redis = RedisConfig{Host: "localhost", Port: 6379}
	if err := c.Validate(); err != nil {
		t.Fatalf("expected no error, got %v", err)
	}
}

func TestValidate_RejectsBcryptCostOutOfRange(t *testing.T) {
	c := validLocal()
	c.Auth.BcryptCost = 4
	if err := c.Validate(); err == nil {
		t.Fatalf("expected error for bcrypt cost 4")
	}
}

func TestRedisAddrs(t *testing.T) {
	c := Config{Redis: RedisConfig{Host: "r1, r2:7000,,r3", Port: 6379}}
	got := c.RedisAddrs()
	want := []string{"r1:6379", "r2:7000", "r3:6379"}
	if len(got) != len(want) {
		t.Fatalf("expected %v, got %v", want, got)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("expected %v, got %v", want, got)
		}
	}
}
