// Package config loads runtime knobs from the environment, in the usual
// DefaultConfig-plus-Load shape: reading MAPGEN_* env vars (optionally
// via a local .env file through github.com/joho/godotenv) instead of a
// JSON file, then validating the result with
// github.com/go-playground/validator/v10.
package config

import (
	"fmt"
	"os"
	"runtime"
	"strconv"

	"github.com/go-playground/validator/v10"
	"github.com/joho/godotenv"
)

// PerfHint is a {cores, memoryGb} runtime hint. Load fills and validates
// it; nothing in this module reads it back, so it sizes neither the
// worker pool nor any FFT.
type PerfHint struct {
	Cores    int     `validate:"min=1"`
	MemoryGB float64 `validate:"min=0"`
}

// Options is the validated runtime configuration for a chartgen host.
type Options struct {
	MaxAnalysisSeconds float64  `validate:"min=1"`
	Debug              bool
	UseWASMAnalyzer    bool
	Perf               PerfHint `validate:"required"`
}

// DefaultOptions returns sane values with no environment consulted.
func DefaultOptions() Options {
	return Options{
		MaxAnalysisSeconds: 420,
		Debug:              false,
		UseWASMAnalyzer:    false,
		Perf:               PerfHint{Cores: runtime.NumCPU(), MemoryGB: 2},
	}
}

var validate = validator.New()

// Load reads a .env file if present (a missing file is not an error),
// overlays MAPGEN_* environment variables onto DefaultOptions, then
// validates the result.
func Load(envFilePath string) (Options, error) {
	if envFilePath != "" {
		if err := godotenv.Load(envFilePath); err != nil && !os.IsNotExist(err) {
			return Options{}, fmt.Errorf("config: load .env: %w", err)
		}
	}

	opts := DefaultOptions()

	if v, ok := os.LookupEnv("MAPGEN_MAX_ANALYSIS"); ok {
		parsed, err := strconv.ParseFloat(v, 64)
		if err != nil {
			return Options{}, fmt.Errorf("config: MAPGEN_MAX_ANALYSIS: %w", err)
		}
		opts.MaxAnalysisSeconds = parsed
	}
	if v, ok := os.LookupEnv("MAPGEN_DEBUG"); ok {
		parsed, err := strconv.ParseBool(v)
		if err != nil {
			return Options{}, fmt.Errorf("config: MAPGEN_DEBUG: %w", err)
		}
		opts.Debug = parsed
	}
	if v, ok := os.LookupEnv("MAPGEN_USE_WASM_ANALYZER"); ok {
		parsed, err := strconv.ParseBool(v)
		if err != nil {
			return Options{}, fmt.Errorf("config: MAPGEN_USE_WASM_ANALYZER: %w", err)
		}
		opts.UseWASMAnalyzer = parsed
	}
	if v, ok := os.LookupEnv("MAPGEN_CORES"); ok {
		parsed, err := strconv.Atoi(v)
		if err != nil {
			return Options{}, fmt.Errorf("config: MAPGEN_CORES: %w", err)
		}
		opts.Perf.Cores = parsed
	}
	if v, ok := os.LookupEnv("MAPGEN_MEMORY_GB"); ok {
		parsed, err := strconv.ParseFloat(v, 64)
		if err != nil {
			return Options{}, fmt.Errorf("config: MAPGEN_MEMORY_GB: %w", err)
		}
		opts.Perf.MemoryGB = parsed
	}

	if err := validate.Struct(opts); err != nil {
		return Options{}, fmt.Errorf("config: invalid options: %w", err)
	}
	return opts, nil
}

// Debugf logs to stderr only when opts.Debug is set.
func (o Options) Debugf(format string, args ...any) {
	if !o.Debug {
		return
	}
	fmt.Fprintf(os.Stderr, "[chartgen] "+format+"\n", args...)
}
