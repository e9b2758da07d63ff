package config

import (
	"os"
	"path/filepath"
	"testing"
)

func TestDefaultMatchesVMBuiltins(t *testing.T) {
	cfg := Default()
	if cfg.StackCapacity != 256 || cfg.FrameCapacity != 16 {
		t.Fatalf("Default() drifted from the VM's own built-in constants: %+v", cfg)
	}
	if cfg.GCInitialThreshold != 4096 {
		t.Fatalf("Default() GC threshold should match one gc.page's pageSize, got %d", cfg.GCInitialThreshold)
	}
}

func TestLoadOverlaysPartialFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "muna.yaml")
	if err := os.WriteFile(path, []byte("max_call_depth: 64\n"), 0o644); err != nil {
		t.Fatalf("write fixture: %v", err)
	}

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.MaxCallDepth != 64 {
		t.Fatalf("want overridden MaxCallDepth=64, got %d", cfg.MaxCallDepth)
	}
	if cfg.StackCapacity != Default().StackCapacity {
		t.Fatalf("want untouched field to keep its default, got %d", cfg.StackCapacity)
	}
}

func TestLoadMissingFile(t *testing.T) {
	if _, err := Load(filepath.Join(t.TempDir(), "missing.yaml")); err == nil {
		t.Fatal("expected an error for a missing config file")
	}
}
