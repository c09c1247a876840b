package main

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"

	"forwardlab/internal/storage"
)

const defaultAddress = "127.0.0.1:8080"

type serveConfig struct {
	Address      string
	StoreKind    string
	DBPath       string
	LogMode      string
	AllowOrigins []string
}

func defaultServeConfig() serveConfig {
	return serveConfig{
		Address:   defaultAddress,
		StoreKind: storage.DefaultStoreKind(),
		DBPath:    defaultDBPath,
		LogMode:   "auto",
	}
}

// loadServeConfig reads a YAML (.yaml, .yml) or JSON file. Keys that are
// absent keep their defaults.
func loadServeConfig(path string) (serveConfig, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return serveConfig{}, err
	}

	var raw map[string]any
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		err = yaml.Unmarshal(data, &raw)
	default:
		err = json.Unmarshal(data, &raw)
	}
	if err != nil {
		return serveConfig{}, fmt.Errorf("parse config %s: %w", path, err)
	}

	cfg := defaultServeConfig()
	if v, ok := asString(raw["address"]); ok {
		cfg.Address = v
	}
	if v, ok := asString(raw["store"]); ok {
		cfg.StoreKind = v
	}
	if v, ok := asString(raw["db_path"]); ok {
		cfg.DBPath = v
	}
	if v, ok := asString(raw["log_mode"]); ok {
		cfg.LogMode = v
	}
	if v, ok := asStringSlice(raw["allow_origins"]); ok {
		cfg.AllowOrigins = v
	}
	if port, ok := asInt(raw["port"]); ok && cfg.Address == defaultAddress {
		cfg.Address = fmt.Sprintf("127.0.0.1:%d", port)
	}
	return cfg, nil
}

func asString(v any) (string, bool) {
	s, ok := v.(string)
	return s, ok
}

func asInt(v any) (int, bool) {
	switch x := v.(type) {
	case int:
		return x, true
	case float64:
		return int(x), true
	default:
		return 0, false
	}
}

func asStringSlice(v any) ([]string, bool) {
	switch x := v.(type) {
	case []any:
		out := make([]string, 0, len(x))
		for _, item := range x {
			s, ok := item.(string)
			if !ok {
				return nil, false
			}
			out = append(out, s)
		}
		return out, true
	case string:
		return splitList(x), true
	default:
		return nil, false
	}
}

func splitList(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}

// overrideFromFlags applies only the flags that were set explicitly.
func overrideFromFlags(cfg *serveConfig, set map[string]bool, flagValue map[string]any) error {
	for name := range set {
		v, ok := flagValue[name]
		if !ok {
			continue
		}
		s, ok := v.(string)
		if !ok {
			return fmt.Errorf("flag %s: unexpected value type %T", name, v)
		}
		switch name {
		case "addr":
			cfg.Address = s
		case "store":
			cfg.StoreKind = s
		case "db-path":
			cfg.DBPath = s
		case "log-mode":
			cfg.LogMode = s
		case "allow-origins":
			cfg.AllowOrigins = splitList(s)
		}
	}
	return nil
}
