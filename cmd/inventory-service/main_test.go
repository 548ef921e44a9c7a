package main

import (
	"testing"

	"github.com/vladislavdragonenkov/ordersvc/internal/app"
	"github.com/vladislavdragonenkov/ordersvc/internal/envconfig"
)

func TestReadConfigFromEnv(t *testing.T) {
	cfg, warnings := readConfigFromEnv(lookup(nil))
	if len(warnings) != 0 || cfg != app.DefaultInventoryConfig() {
		t.Fatalf("expected defaults, got %#v (%v)", cfg, warnings)
	}

	cfg, warnings = readConfigFromEnv(lookup(map[string]string{
		envGRPCAddr:            "0.0.0.0:6000",
		envStorageDriver:       "POSTGRES",
		envPostgresDSN:         "postgres://inv@db/inv",
		envPostgresAutoMigrate: "maybe",
		envSeed:                "A=1,B=2",
	}))
	if len(warnings) != 1 {
		t.Fatalf("expected 1 warning, got %v", warnings)
	}
	if cfg.GRPCAddr != "0.0.0.0:6000" || cfg.StorageDriver != app.StorageDriverPostgres || cfg.Seed != "A=1,B=2" {
		t.Fatalf("unexpected config: %#v", cfg)
	}
	if !cfg.PostgresAutoMigrate {
		t.Fatal("expected PostgresAutoMigrate to keep default on invalid value")
	}
}

func lookup(values map[string]string) envconfig.Lookup {
	return func(key string) (string, bool) {
		value, ok := values[key]
		return value, ok
	}
}
