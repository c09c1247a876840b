package main

import (
	"os"
	"path/filepath"
	"reflect"
	"testing"
)

func TestLoadServeConfigYAML(t *testing.T) {
	path := filepath.Join(t.TempDir(), "serve.yaml")
	payload := `
address: 0.0.0.0:9090
store: memory
log_mode: prod
allow_origins:
  - http://localhost:3000
  - https://lab.example.org
`
	if err := os.WriteFile(path, []byte(payload), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}

	cfg, err := loadServeConfig(path)
	if err != nil {
		t.Fatalf("load serve config: %v", err)
	}
	if cfg.Address != "0.0.0.0:9090" || cfg.StoreKind != "memory" || cfg.LogMode != "prod" {
		t.Fatalf("unexpected config: %+v", cfg)
	}
	if cfg.DBPath != defaultDBPath {
		t.Fatalf("expected default db path, got %s", cfg.DBPath)
	}
	want := []string{"http://localhost:3000", "https://lab.example.org"}
	if !reflect.DeepEqual(cfg.AllowOrigins, want) {
		t.Fatalf("unexpected origins: got=%v want=%v", cfg.AllowOrigins, want)
	}
}

func TestLoadServeConfigJSON(t *testing.T) {
	path := filepath.Join(t.TempDir(), "serve.json")
	payload := `{"port": 9191, "db_path": "lab.db", "allow_origins": "http://a, http://b"}`
	if err := os.WriteFile(path, []byte(payload), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}

	cfg, err := loadServeConfig(path)
	if err != nil {
		t.Fatalf("load serve config: %v", err)
	}
	if cfg.Address != "127.0.0.1:9191" || cfg.DBPath != "lab.db" {
		t.Fatalf("unexpected config: %+v", cfg)
	}
	if !reflect.DeepEqual(cfg.AllowOrigins, []string{"http://a", "http://b"}) {
		t.Fatalf("unexpected origins: %v", cfg.AllowOrigins)
	}
}

func TestLoadServeConfigErrors(t *testing.T) {
	if _, err := loadServeConfig(filepath.Join(t.TempDir(), "missing.json")); err == nil {
		t.Fatal("expected missing file error")
	}

	path := filepath.Join(t.TempDir(), "broken.yml")
	if err := os.WriteFile(path, []byte("address: [unterminated"), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}
	if _, err := loadServeConfig(path); err == nil {
		t.Fatal("expected parse error")
	}
}

func TestOverrideFromFlagsOnlyAppliesSetFlags(t *testing.T) {
	cfg := serveConfig{Address: "0.0.0.0:9090", StoreKind: "sqlite", DBPath: "file.db", LogMode: "prod"}
	values := map[string]any{
		"addr":          "127.0.0.1:1234",
		"store":         "memory",
		"db-path":       "ignored.db",
		"log-mode":      "dev",
		"allow-origins": "http://x",
	}
	set := map[string]bool{"addr": true, "store": true, "allow-origins": true}

	if err := overrideFromFlags(&cfg, set, values); err != nil {
		t.Fatalf("override: %v", err)
	}
	want := serveConfig{
		Address:      "127.0.0.1:1234",
		StoreKind:    "memory",
		DBPath:       "file.db",
		LogMode:      "prod",
		AllowOrigins: []string{"http://x"},
	}
	if !reflect.DeepEqual(cfg, want) {
		t.Fatalf("unexpected config: got=%+v want=%+v", cfg, want)
	}

	if err := overrideFromFlags(&cfg, map[string]bool{"addr": true}, map[string]any{"addr": 5}); err == nil {
		t.Fatal("expected type error")
	}
}
