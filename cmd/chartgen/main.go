// Package main is the entry point for the chartgen CLI: a headless tool
// that decodes a WAV file, runs the chart composition pipeline, and writes
// the resulting chart as JSON, optionally batching several inputs through
// the bounded worker pool with a correlation id per run.
package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"log"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"
	"time"

	"github.com/google/uuid"

	chartgen "github.com/basswave/chartgen"
	"github.com/basswave/chartgen/internal/cache"
	"github.com/basswave/chartgen/internal/config"
	"github.com/basswave/chartgen/internal/model"
	"github.com/basswave/chartgen/internal/refanalyzer"
	"github.com/basswave/chartgen/internal/workerpool"
)

// Version is set at build time via ldflags.
var Version = "dev"

// cliConfig holds the flags this run was invoked with.
type cliConfig struct {
	Inputs     string
	Difficulty string
	OutDir     string
	EnvFile    string
	CacheDir   string
	Workers    int
	Verbose    bool
}

func main() {
	cfg := parseFlags()

	runID := uuid.NewString()
	if cfg.Verbose {
		log.Printf("chartgen %s starting, run %s", Version, runID)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		sig := <-sigChan
		log.Printf("received signal %v, shutting down...", sig)
		cancel()
	}()

	if err := run(ctx, cfg, runID); err != nil {
		log.Fatalf("fatal error: %v", err)
	}
}

func parseFlags() *cliConfig {
	cfg := &cliConfig{}

	flag.StringVar(&cfg.Inputs, "in", "", "comma-separated WAV file paths to chart")
	flag.StringVar(&cfg.Difficulty, "difficulty", "normal", "easy, normal, hard, or expert")
	flag.StringVar(&cfg.OutDir, "out", "./charts", "directory to write generated chart JSON into")
	flag.StringVar(&cfg.EnvFile, "env", ".env", "path to an optional .env file")
	flag.StringVar(&cfg.CacheDir, "cache", "", "directory for the chart cache (default: out dir)")
	flag.IntVar(&cfg.Workers, "workers", 0, "max concurrent generations (default: NumCPU-1)")
	flag.BoolVar(&cfg.Verbose, "verbose", false, "enable verbose logging")
	flag.Parse()

	if cfg.CacheDir == "" {
		cfg.CacheDir = cfg.OutDir
	}
	return cfg
}

func run(ctx context.Context, cfg *cliConfig, runID string) error {
	if cfg.Inputs == "" {
		return fmt.Errorf("no input files: pass -in a.wav,b.wav")
	}

	runtimeOpts, err := config.Load(cfg.EnvFile)
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	if cfg.Verbose {
		runtimeOpts.Debug = true
	}
	runtimeOpts.Debugf("run %s loaded config: %+v", runID, runtimeOpts)

	difficulty, err := parseDifficulty(cfg.Difficulty)
	if err != nil {
		return err
	}

	if err := os.MkdirAll(cfg.OutDir, 0o755); err != nil {
		return fmt.Errorf("create out dir: %w", err)
	}

	store, err := cache.Open(cfg.CacheDir)
	if err != nil {
		return fmt.Errorf("open cache: %w", err)
	}

	analyzer := refanalyzer.New()
	paths := strings.Split(cfg.Inputs, ",")

	jobs := make([]workerpool.Job, 0, len(paths))
	fingerprints := make(map[string]string, len(paths))
	for _, p := range paths {
		p = strings.TrimSpace(p)
		if p == "" {
			continue
		}
		audio, err := refanalyzer.LoadWAV(p)
		if err != nil {
			return fmt.Errorf("load %s: %w", p, err)
		}
		fp := cache.Fingerprint(audio.SampleRate, audio.Length, audio.NumberOfChannels, audio.Mono())
		fingerprints[p] = fp

		if chart, ok := store.Get(cache.Key{Fingerprint: fp, Difficulty: difficulty}); ok {
			runtimeOpts.Debugf("cache hit for %s", p)
			if err := writeChart(cfg.OutDir, p, chart); err != nil {
				return err
			}
			continue
		}

		jobs = append(jobs, workerpool.Job{
			ID:    p,
			Audio: audio,
			Options: chartgen.GenerateOptions{
				Difficulty: difficulty,
				Analyzer:   analyzer,
				RNGSeed:    runIDSeed(runID),
			},
		})
	}

	if len(jobs) == 0 {
		runtimeOpts.Debugf("every input served from cache, nothing to generate")
		return nil
	}

	pool, err := workerpool.New(workerpool.Config{
		MaxWorkers: cfg.Workers,
		OnResult: func(r workerpool.Result) {
			if r.Err != nil {
				log.Printf("generate %s: %v", r.ID, r.Err)
				return
			}
			fp := fingerprints[r.ID]
			store.Put(cache.Key{Fingerprint: fp, Difficulty: difficulty}, r.Chart)
			if err := writeChart(cfg.OutDir, r.ID, r.Chart); err != nil {
				log.Printf("write %s: %v", r.ID, err)
			}
		},
		GenerateFunc: func(ctx context.Context, audio chartgen.AudioBuffer, opts chartgen.GenerateOptions) (model.Chart, error) {
			return chartgen.Generate(ctx, audio, opts)
		},
	})
	if err != nil {
		return fmt.Errorf("build worker pool: %w", err)
	}

	if err := pool.Start(ctx, jobs); err != nil {
		return fmt.Errorf("start worker pool: %w", err)
	}
	waitForPool(ctx, pool)

	if err := store.Save(); err != nil {
		return fmt.Errorf("save cache: %w", err)
	}
	return nil
}

// waitForPool polls the pool's status until it leaves the running state or
// ctx is canceled, since Pool exposes no blocking completion channel.
func waitForPool(ctx context.Context, pool *workerpool.Pool) {
	ticker := time.NewTicker(50 * time.Millisecond)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if pool.GetStatus().State != "running" {
				return
			}
		}
	}
}

func parseDifficulty(s string) (model.Difficulty, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "easy":
		return model.Easy, nil
	case "normal":
		return model.Normal, nil
	case "hard":
		return model.Hard, nil
	case "expert":
		return model.Expert, nil
	default:
		return 0, fmt.Errorf("unknown difficulty %q", s)
	}
}

func writeChart(outDir, srcPath string, chart model.Chart) error {
	base := strings.TrimSuffix(filepath.Base(srcPath), filepath.Ext(srcPath))
	outPath := filepath.Join(outDir, base+".chart.json")
	data, err := json.MarshalIndent(chart, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal chart: %w", err)
	}
	return os.WriteFile(outPath, data, 0o644)
}

// runIDSeed folds a uuid run id into an int64 RNG seed, deterministic for
// a given run id but distinct across runs.
func runIDSeed(runID string) int64 {
	var seed int64
	for i, r := range runID {
		seed = seed*31 + int64(r) + int64(i)
	}
	if seed < 0 {
		seed = -seed
	}
	return seed
}
