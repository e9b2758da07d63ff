// Package config loads the tunables a muna embedder would want exposed
// without recompiling: the VM's initial evaluation-stack and call-stack
// capacities, the maximum call depth before a StackOverflow CallError,
// and the GC's initial collection threshold. There is no equivalent
// package in the teacher repo (go-dws has no such loader); this follows
// the shape its LexerOption functional-options pattern already
// establishes for configuring a component at construction time, plus a
// YAML file loader for the pieces worth setting outside of Go source.
package config

import (
	"os"

	"github.com/goccy/go-yaml"
)

// Config holds every tunable. Zero-value fields are filled from
// Default() by Load, so a YAML file only needs to name the fields it
// wants to override.
type Config struct {
	// StackCapacity is the evaluation stack's initial backing capacity.
	StackCapacity int `yaml:"stack_capacity"`
	// FrameCapacity is the call-stack's initial backing capacity.
	FrameCapacity int `yaml:"frame_capacity"`
	// MaxCallDepth is the deepest nested call chain allowed before the
	// VM reports a StackOverflow CallError instead of exhausting the Go
	// call stack it rides on.
	MaxCallDepth int `yaml:"max_call_depth"`
	// GCInitialThreshold is the live-object count that triggers the
	// VM's first automatic collection. Later collections grow this
	// threshold relative to the live set, independent of this value.
	GCInitialThreshold int `yaml:"gc_initial_threshold"`
}

// Default returns the VM's built-in tunables, used whenever no config
// file is loaded and as the base Load fills partial overrides onto.
func Default() Config {
	return Config{
		StackCapacity:      256,
		FrameCapacity:      16,
		MaxCallDepth:       1024,
		GCInitialThreshold: 4096,
	}
}

// Load reads a YAML file at path and overlays it onto Default(),
// leaving any field the file doesn't mention at its default value.
func Load(path string) (Config, error) {
	cfg := Default()
	data, err := os.ReadFile(path)
	if err != nil {
		return Config{}, err
	}
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return Config{}, err
	}
	return cfg, nil
}
