package config

import (
	"testing"
	"time"
)

func TestParseConfigDefaults(t *testing.T) {
	t.Setenv("JWT_SECRET", "secret")

	cfg, err := parseConfig()
	if err != nil {
		t.Fatalf("parseConfig: %v", err)
	}

	if cfg.Port != "8080" || cfg.AppEnv != "production" || cfg.CORSAllowOrigins != "*" {
		t.Fatalf("unexpected defaults: %+v", cfg)
	}
	if cfg.WSIdleTimeout != 0 || cfg.WSWriteTimeout != 10*time.Second {
		t.Fatalf("unexpected websocket timeouts: idle=%s write=%s", cfg.WSIdleTimeout, cfg.WSWriteTimeout)
	}
	if cfg.DBMaxConns != 10 || cfg.DBMinConns != 2 {
		t.Fatalf("unexpected pool sizes: max=%d min=%d", cfg.DBMaxConns, cfg.DBMinConns)
	}
	if cfg.MessagePageLimit != 100 || cfg.MessagePageMax != 200 {
		t.Fatalf("unexpected page limits: %d/%d", cfg.MessagePageLimit, cfg.MessagePageMax)
	}
}

func TestParseConfigOverrides(t *testing.T) {
	t.Setenv("JWT_SECRET", "secret")
	t.Setenv("PORT", "9090")
	t.Setenv("APP_ENV", " Dev ")
	t.Setenv("WS_IDLE_TIMEOUT", "90s")
	t.Setenv("DB_MAX_CONNS", "20")
	t.Setenv("MESSAGE_PAGE_LIMIT", "25")

	cfg, err := parseConfig()
	if err != nil {
		t.Fatalf("parseConfig: %v", err)
	}

	if cfg.Port != "9090" || !cfg.IsDevelopment() {
		t.Fatalf("unexpected overrides: %+v", cfg)
	}
	if cfg.WSIdleTimeout != 90*time.Second || cfg.DBMaxConns != 20 || cfg.MessagePageLimit != 25 {
		t.Fatalf("unexpected overrides: %+v", cfg)
	}
}

func TestParseConfigRequiresJWTSecret(t *testing.T) {
	t.Setenv("JWT_SECRET", "")

	if _, err := parseConfig(); err == nil {
		t.Fatal("expected missing JWT_SECRET to fail")
	}
}

func TestParseConfigRejectsInconsistentLimits(t *testing.T) {
	cases := map[string]map[string]string{
		"min above max":    {"DB_MAX_CONNS": "2", "DB_MIN_CONNS": "5"},
		"limit above max":  {"MESSAGE_PAGE_LIMIT": "300"},
		"negative idle":    {"WS_IDLE_TIMEOUT": "-1s"},
		"malformed number": {"DB_MAX_CONNS": "many"},
	}

	for name, vars := range cases {
		t.Run(name, func(t *testing.T) {
			t.Setenv("JWT_SECRET", "secret")
			for key, value := range vars {
				t.Setenv(key, value)
			}

			if _, err := parseConfig(); err == nil {
				t.Fatal("expected parseConfig to fail")
			}
		})
	}
}

func TestNormalizeEnv(t *testing.T) {
	cases := map[string]string{
		"local":   "development",
		"PROD":    "production",
		"stage":   "staging",
		"testing": "test",
		" Other ": "other",
	}
	for input, want := range cases {
		if got := normalizeEnv(input); got != want {
			t.Fatalf("normalizeEnv(%q) = %q, want %q", input, got, want)
		}
	}
}
