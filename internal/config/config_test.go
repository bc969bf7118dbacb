package config

import (
	"strings"
	"testing"
	"time"
)

func TestLoad_Defaults(t *testing.T) {
	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load() failed: %v", err)
	}

	if cfg.API.BaseURL != "http://localhost:8000" {
		t.Errorf("BaseURL = %q, want %q", cfg.API.BaseURL, "http://localhost:8000")
	}

	if cfg.Console.NotifyTimeout != 6*time.Second {
		t.Errorf("NotifyTimeout = %v, want 6s", cfg.Console.NotifyTimeout)
	}

	if cfg.Console.OrderPageSize != 6 {
		t.Errorf("OrderPageSize = %d, want 6", cfg.Console.OrderPageSize)
	}

	if cfg.Address() != "localhost:3000" {
		t.Errorf("Address() = %q, want %q", cfg.Address(), "localhost:3000")
	}
}

func TestLoad_FromEnvironment(t *testing.T) {
	t.Setenv("API_BASE_URL", "http://backend:9000/")
	t.Setenv("SERVER_PORT", "8085")
	t.Setenv("LOG_LEVEL", "debug")
	t.Setenv("SECURITY_ALLOWED_ORIGINS", "http://a.test, http://b.test")
	t.Setenv("CONSOLE_VISIT_TTL", "30s")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load() failed: %v", err)
	}

	if cfg.API.BaseURL != "http://backend:9000" {
		t.Errorf("trailing slash should be trimmed, got %q", cfg.API.BaseURL)
	}
	if cfg.Server.Port != 8085 {
		t.Errorf("Port = %d, want 8085", cfg.Server.Port)
	}
	if cfg.Logger.Level != "debug" {
		t.Errorf("Level = %q, want debug", cfg.Logger.Level)
	}
	if len(cfg.Security.AllowedOrigins) != 2 || cfg.Security.AllowedOrigins[1] != "http://b.test" {
		t.Errorf("AllowedOrigins = %v", cfg.Security.AllowedOrigins)
	}
	if cfg.Console.VisitTTL != 30*time.Second {
		t.Errorf("VisitTTL = %v, want 30s", cfg.Console.VisitTTL)
	}
}

func TestLoad_Invalid(t *testing.T) {
	tests := []struct {
		name string
		key  string
		val  string
		want string
	}{
		{"port", "SERVER_PORT", "70000", "server port"},
		{"log level", "LOG_LEVEL", "verbose", "invalid log level"},
		{"log format", "LOG_FORMAT", "xml", "invalid log format"},
		{"page size", "CONSOLE_ORDER_PAGE_SIZE", "-1", "order page size"},
		{"rps", "SECURITY_RATE_LIMIT_RPS", "0", "rate limit RPS"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Setenv(tt.key, tt.val)

			_, err := Load()
			if err == nil {
				t.Fatal("expected error")
			}
			if !strings.Contains(err.Error(), tt.want) {
				t.Errorf("error %q should mention %q", err.Error(), tt.want)
			}
		})
	}
}

func TestAPIConfig_Endpoint(t *testing.T) {
	api := APIConfig{BaseURL: "http://localhost:8000"}

	if got := api.Endpoint("categories"); got != "http://localhost:8000/categories/" {
		t.Errorf("Endpoint() = %q", got)
	}
}
