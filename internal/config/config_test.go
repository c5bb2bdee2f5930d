package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestFromEnvDefaults(t *testing.T) {
	t.Setenv("FORMBUILDER_DB_DRIVER", "")
	t.Setenv("FORMBUILDER_DB_DSN", "")

	cfg, err := FromEnv()
	if err != nil {
		t.Fatalf("FromEnv: %v", err)
	}
	if cfg.Port != "5000" {
		t.Fatalf("expected default port 5000, got %q", cfg.Port)
	}
	if cfg.DBDriver != DriverSQLite || cfg.DBDSN != defaultSQLitePath {
		t.Fatalf("unexpected db config: %s %s", cfg.DBDriver, cfg.DBDSN)
	}
	if len(cfg.CORSOrigins) != 1 || cfg.CORSOrigins[0] != "http://localhost:3000" {
		t.Fatalf("unexpected origins: %v", cfg.CORSOrigins)
	}
	if cfg.DefaultFormID != "demo-form-1" || cfg.OwnerID != "demo-user-1" {
		t.Fatalf("unexpected demo ids: %s %s", cfg.DefaultFormID, cfg.OwnerID)
	}
	if cfg.PurgeHiddenAnswers {
		t.Fatal("purge should default to off")
	}
	if cfg.Airtable.Timeout != 15*time.Second {
		t.Fatalf("unexpected airtable timeout: %v", cfg.Airtable.Timeout)
	}
	if cfg.Airtable.SyncEnabled() || cfg.Airtable.OAuthEnabled() {
		t.Fatal("airtable should be disabled without credentials")
	}
}

func TestFromEnvOverrides(t *testing.T) {
	t.Setenv("PORT", "8080")
	t.Setenv("FORMBUILDER_DB_DRIVER", "Postgres")
	t.Setenv("FORMBUILDER_DB_DSN", "postgres://localhost/forms?sslmode=disable")
	t.Setenv("FORMBUILDER_CORS_ORIGINS", "http://a.test, ,http://b.test")
	t.Setenv("FORMBUILDER_PURGE_HIDDEN_ANSWERS", "true")
	t.Setenv("AIRTABLE_API_KEY", "key")
	t.Setenv("AIRTABLE_BASE_ID", "app123")
	t.Setenv("AIRTABLE_TABLE_NAME", "Responses")
	t.Setenv("AIRTABLE_API_URL", "http://airtable.test/v0/")

	cfg, err := FromEnv()
	if err != nil {
		t.Fatalf("FromEnv: %v", err)
	}
	if cfg.Port != "8080" || cfg.DBDriver != DriverPostgres {
		t.Fatalf("unexpected config: %+v", cfg)
	}
	if len(cfg.CORSOrigins) != 2 || cfg.CORSOrigins[1] != "http://b.test" {
		t.Fatalf("unexpected origins: %v", cfg.CORSOrigins)
	}
	if !cfg.PurgeHiddenAnswers {
		t.Fatal("expected purge enabled")
	}
	if !cfg.Airtable.SyncEnabled() {
		t.Fatal("expected airtable sync enabled")
	}
	if cfg.Airtable.APIURL != "http://airtable.test/v0" {
		t.Fatalf("expected trailing slash trimmed, got %q", cfg.Airtable.APIURL)
	}
}

func TestFromEnvRejectsBadDriver(t *testing.T) {
	t.Setenv("FORMBUILDER_DB_DRIVER", "mongo")
	if _, err := FromEnv(); err == nil {
		t.Fatal("expected error for unsupported driver")
	}
}

func TestFromEnvRequiresPostgresDSN(t *testing.T) {
	t.Setenv("FORMBUILDER_DB_DRIVER", "postgres")
	t.Setenv("FORMBUILDER_DB_DSN", "")
	if _, err := FromEnv(); err == nil {
		t.Fatal("expected error without postgres dsn")
	}
}

func TestLoadReadsDotEnv(t *testing.T) {
	path := filepath.Join(t.TempDir(), ".env")
	if err := os.WriteFile(path, []byte("FORMBUILDER_OWNER_ID=owner-from-file\n"), 0o600); err != nil {
		t.Fatalf("write .env: %v", err)
	}
	t.Setenv("FORMBUILDER_DB_DRIVER", "")
	t.Setenv("FORMBUILDER_OWNER_ID", "")
	os.Unsetenv("FORMBUILDER_OWNER_ID")

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.OwnerID != "owner-from-file" {
		t.Fatalf("expected owner from .env, got %q", cfg.OwnerID)
	}
}

func TestLoadToleratesMissingDotEnv(t *testing.T) {
	t.Setenv("FORMBUILDER_DB_DRIVER", "")
	if _, err := Load(filepath.Join(t.TempDir(), "missing.env")); err != nil {
		t.Fatalf("missing .env should be ignored: %v", err)
	}
}
