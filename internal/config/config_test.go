package config

import (
	"os"
	"path/filepath"
	"testing"
)

func TestLoadOverridesDefaults(t *testing.T) {
	path := filepath.Join(t.TempDir(), "armada.yaml")
	contents := `
db_path: /var/lib/armada/runs.db
budget: 1200
portfolio: preplanning
`
	if err := os.WriteFile(path, []byte(contents), 0o644); err != nil {
		t.Fatal(err)
	}

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}

	if cfg.DBPath != "/var/lib/armada/runs.db" {
		t.Fatalf("DBPath = %q", cfg.DBPath)
	}
	if cfg.Budget != 1200 {
		t.Fatalf("Budget = %v", cfg.Budget)
	}
	if cfg.Portfolio != "preplanning" {
		t.Fatalf("Portfolio = %q", cfg.Portfolio)
	}

	// Unset fields keep their defaults.
	if cfg.Interval != 50 || cfg.RunsLimit != 256 || cfg.LogLevel != "info" {
		t.Fatalf("defaults lost: %+v", cfg)
	}
}

func TestLoadMissingFile(t *testing.T) {
	if _, err := Load(filepath.Join(t.TempDir(), "absent.yaml")); err == nil {
		t.Fatal("expected an error for a missing file")
	}
}
