package config_test

import (
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/spf13/viper"

	"db-ferry/internal/config"
)

func load(t *testing.T, yaml string) *config.Config {
	t.Helper()
	path := filepath.Join(t.TempDir(), "db-ferry.yaml")
	if err := os.WriteFile(path, []byte(yaml), 0o644); err != nil {
		t.Fatal(err)
	}
	v := viper.New()
	if err := config.Init(v, path); err != nil {
		t.Fatalf("Init: %v", err)
	}
	c, err := config.Load(v)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	return c
}

func TestLoad_Defaults(t *testing.T) {
	c := load(t, "source:\n  url: http://localhost:3000\n")

	if c.Target.Driver != "mysql" || c.Sync.BatchSize != 1000 || c.Sync.ConflictColumn != "id" {
		t.Errorf("defaults not applied: %+v", c)
	}
	if c.Migrate.RetryAttempts != 3 || c.Migrate.RetryBaseDelay != time.Second {
		t.Errorf("retry defaults = %d/%s", c.Migrate.RetryAttempts, c.Migrate.RetryBaseDelay)
	}
	if c.Sync.Direction != "target_to_mirror" || c.Sync.AllowDestructive {
		t.Errorf("sync defaults = %+v", c.Sync)
	}
}

func TestLoad_EnvironmentOverrides(t *testing.T) {
	t.Setenv("BATCH_SIZE", "250")
	t.Setenv("SYNC_TABLES", "users, orders")
	t.Setenv("TARGET_DSN", "root:pw@tcp(db:3306)/shop")

	c := load(t, "sync:\n  batch_size: 500\n")

	if c.Sync.BatchSize != 250 {
		t.Errorf("batch size = %d, want 250 from env", c.Sync.BatchSize)
	}
	if len(c.Sync.Tables) != 2 || c.Sync.Tables[0] != "users" || c.Sync.Tables[1] != "orders" {
		t.Errorf("tables = %q", c.Sync.Tables)
	}
	if c.Target.SchemaName() != "shop" {
		t.Errorf("schema name = %q, want shop", c.Target.SchemaName())
	}
}

func TestValidate(t *testing.T) {
	c := load(t, "target:\n  dsn: root@tcp(localhost)/app\n")

	err := c.Validate(config.ModeMigrate)
	if !errors.Is(err, config.ErrMissing) {
		t.Fatalf("expected missing source.url, got %v", err)
	}
	if err := c.Validate(config.ModeServe); !errors.Is(err, config.ErrMissing) {
		t.Errorf("serve without mirror.dsn should fail, got %v", err)
	}
	if err := c.Validate(config.ModePing); err != nil {
		t.Errorf("ping needs nothing, got %v", err)
	}

	c.Target.DSN = ""
	c.Source.URL = "http://localhost:3000"
	if err := c.Validate(config.ModePlan); err != nil {
		t.Errorf("a dry-run migration needs no target, got %v", err)
	}
	if err := c.Validate(config.ModeMigrate); !errors.Is(err, config.ErrMissing) {
		t.Errorf("migrate without target.dsn should fail, got %v", err)
	}

	c.Sync.BatchSize = 0
	if err := c.Validate(config.ModePing); err == nil {
		t.Error("a zero batch size must be rejected")
	}
}
