package config

import (
	"os"
	"testing"
	"time"
)

func TestLoadDefaults(t *testing.T) {
	// Clear relevant envs
	for _, k := range []string{"PORT", "LOG_LEVEL", "APP_ENV", "CORS_ALLOW", "CODE_MAX_ATTEMPTS", "WS_SEND_BUFFER", "ADMIN_GRPC_ADDR"} {
		os.Unsetenv(k)
	}

	c := Load()

	if c.Server.Port != "3000" {
		t.Fatalf("expected default port 3000, got %q", c.Server.Port)
	}
	if c.Addr() != ":3000" {
		t.Fatalf("expected addr :3000, got %q", c.Addr())
	}
	if c.Server.LogLevel != "info" {
		t.Fatalf("expected default log level info, got %q", c.Server.LogLevel)
	}
	if len(c.Server.CORSAllow) != 1 || c.Server.CORSAllow[0] != "*" {
		t.Fatalf("expected CORS allow-all, got %v", c.Server.CORSAllow)
	}
	if c.Codes.MaxAttempts != 64 {
		t.Fatalf("expected 64 max attempts, got %d", c.Codes.MaxAttempts)
	}
	if c.WS.SendBuffer != 256 || c.WS.WriteTimeout != 10*time.Second || c.WS.PingInterval != 20*time.Second {
		t.Fatalf("unexpected ws defaults: %+v", c.WS)
	}
	if c.Admin.GRPCAddr != ":9090" {
		t.Fatalf("expected admin addr :9090, got %q", c.Admin.GRPCAddr)
	}
}

func TestLoadFromEnv(t *testing.T) {
	t.Setenv("PORT", "8081")
	t.Setenv("CORS_ALLOW", "https://a.example, https://b.example")
	t.Setenv("CODE_MAX_ATTEMPTS", "0")

	c := Load()

	if c.Server.Port != "8081" {
		t.Fatalf("expected port from env, got %q", c.Server.Port)
	}
	if len(c.Server.CORSAllow) != 2 || c.Server.CORSAllow[1] != "https://b.example" {
		t.Fatalf("unexpected CORS list %v", c.Server.CORSAllow)
	}
	if c.Codes.MaxAttempts != 64 {
		t.Fatalf("non-positive attempts should fall back to default, got %d", c.Codes.MaxAttempts)
	}
}
