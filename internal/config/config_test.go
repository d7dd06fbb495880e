package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestDefaults(t *testing.T) {
	cfg, err := Load("")
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.HTTP.Addr != ":8080" {
		t.Fatalf("addr = %q, want :8080", cfg.HTTP.Addr)
	}
	if cfg.Database.Driver != "sqlite" {
		t.Fatalf("driver = %q, want sqlite", cfg.Database.Driver)
	}
	if cfg.Redemption.TokenTTL.Std() != 15*time.Minute {
		t.Fatalf("token ttl = %v, want 15m", cfg.Redemption.TokenTTL.Std())
	}
	if cfg.Redemption.BottleShelfLifeDays != 30 {
		t.Fatalf("shelf life days = %d, want 30", cfg.Redemption.BottleShelfLifeDays)
	}
}

func TestLoadFromFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.toml")
	content := `
environment = "production"

[http]
addr = ":9090"

[redemption]
token_ttl = "5m"
allowed_peg_sizes_ml = [30, 60]
`
	if err := os.WriteFile(path, []byte(content), 0o600); err != nil {
		t.Fatalf("write config: %v", err)
	}

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if !cfg.IsProduction() {
		t.Fatal("IsProduction() = false, want true")
	}
	if cfg.HTTP.Addr != ":9090" {
		t.Fatalf("addr = %q, want :9090", cfg.HTTP.Addr)
	}
	if cfg.Redemption.TokenTTL.Std() != 5*time.Minute {
		t.Fatalf("token ttl = %v, want 5m", cfg.Redemption.TokenTTL.Std())
	}
	if cfg.PegSizeAllowed(45) {
		t.Fatal("45ml allowed after file restricted sizes to 30 and 60")
	}
	if !cfg.PegSizeAllowed(60) {
		t.Fatal("60ml not allowed")
	}
}

func TestEnvOverrides(t *testing.T) {
	t.Setenv("SMB_HTTP_ADDR", ":7070")
	t.Setenv("SMB_DB_DRIVER", "postgres")
	t.Setenv("SMB_DB_DSN", "postgres://localhost/test")
	t.Setenv("SMB_TOKEN_TTL", "10m")
	t.Setenv("SMB_SWEEPER_ENABLED", "false")

	cfg, err := Load("")
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.HTTP.Addr != ":7070" {
		t.Fatalf("addr = %q, want :7070", cfg.HTTP.Addr)
	}
	if cfg.Database.Driver != "postgres" {
		t.Fatalf("driver = %q, want postgres", cfg.Database.Driver)
	}
	if cfg.Redemption.TokenTTL.Std() != 10*time.Minute {
		t.Fatalf("token ttl = %v, want 10m", cfg.Redemption.TokenTTL.Std())
	}
	if cfg.Sweeper.Enabled {
		t.Fatal("sweeper enabled despite override")
	}
}

func TestValidation(t *testing.T) {
	t.Setenv("SMB_DB_DRIVER", "oracle")
	if _, err := Load(""); err == nil {
		t.Fatal("unsupported driver accepted")
	}
}

func TestPegSizeAllowed(t *testing.T) {
	cfg := Default()
	for _, size := range []int64{30, 45, 60} {
		if !cfg.PegSizeAllowed(size) {
			t.Fatalf("%dml rejected by default policy", size)
		}
	}
	for _, size := range []int64{0, 25, 90, -30} {
		if cfg.PegSizeAllowed(size) {
			t.Fatalf("%dml accepted by default policy", size)
		}
	}
}

func TestBottleShelfLife(t *testing.T) {
	cfg := Default()
	if cfg.BottleShelfLife() != 30*24*time.Hour {
		t.Fatalf("shelf life = %v, want 720h", cfg.BottleShelfLife())
	}

	cfg.Redemption.BottleShelfLifeDays = 0
	if cfg.BottleShelfLife() != 30*24*time.Hour {
		t.Fatalf("zero days shelf life = %v, want default 720h", cfg.BottleShelfLife())
	}
}
