// Package profile assembles a scheduler.RunOptions-shaped configuration
// from environment variables, the way cmd/divinesense's internal/profile
// assembles server configuration: a struct of plain fields, a FromEnv
// loader, and a Validate pass.
package profile

import (
	"log/slog"
	"os"
	"runtime"
	"strconv"

	"github.com/pkg/errors"
)

// Profile is the configuration a parallelism-demo invocation runs with.
type Profile struct {
	Mode     string // demo, dev, or prod
	LogLevel string // debug, info, warn, or error

	Processes int
	Threads   int

	SystemProcessor   float64
	SystemMemory      float64
	GraphicsProcessor float64
	GraphicsMemory    float64

	PollIntervalMS int

	MetricsAddr string
}

func getEnvOrDefault(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvOrDefaultInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intVal, err := strconv.Atoi(value); err == nil {
			return intVal
		}
	}
	return defaultValue
}

func getEnvOrDefaultFloat(key string, defaultValue float64) float64 {
	if value := os.Getenv(key); value != "" {
		if floatVal, err := strconv.ParseFloat(value, 64); err == nil {
			return floatVal
		}
	}
	return defaultValue
}

// FromEnv populates p from PARALLELISM_* environment variables,
// falling back to the host's CPU count for the worker budgets and to
// 100% for each resource axis, matching
// original_source/parallelism/api_reference.py's task_scheduler
// defaults.
func (p *Profile) FromEnv() {
	p.Mode = getEnvOrDefault("PARALLELISM_MODE", "demo")
	p.LogLevel = getEnvOrDefault("PARALLELISM_LOG_LEVEL", "info")

	cpus := runtime.NumCPU()
	if n := os.Getenv("PARALLELISM_CPU_HINT"); n != "" {
		if v, err := strconv.Atoi(n); err == nil {
			cpus = v
		}
	}
	p.Processes = getEnvOrDefaultInt("PARALLELISM_PROCESSES", cpus)
	p.Threads = getEnvOrDefaultInt("PARALLELISM_THREADS", cpus)

	p.SystemProcessor = getEnvOrDefaultFloat("PARALLELISM_SYSTEM_PROCESSOR", 100)
	p.SystemMemory = getEnvOrDefaultFloat("PARALLELISM_SYSTEM_MEMORY", 100)
	p.GraphicsProcessor = getEnvOrDefaultFloat("PARALLELISM_GRAPHICS_PROCESSOR", 100)
	p.GraphicsMemory = getEnvOrDefaultFloat("PARALLELISM_GRAPHICS_MEMORY", 100)

	p.PollIntervalMS = getEnvOrDefaultInt("PARALLELISM_POLL_INTERVAL_MS", 50)

	p.MetricsAddr = getEnvOrDefault("PARALLELISM_METRICS_ADDR", "")
}

// Validate normalizes Mode and rejects out-of-range budgets, the way
// the teacher's Profile.Validate rejects an unusable data directory.
func (p *Profile) Validate() error {
	switch p.Mode {
	case "demo", "dev", "prod":
	default:
		p.Mode = "demo"
	}
	switch p.LogLevel {
	case "debug", "info", "warn", "error":
	default:
		slog.Warn("unknown log level, defaulting to info", "log_level", p.LogLevel)
		p.LogLevel = "info"
	}
	if p.Processes < 0 {
		return errors.New(`"PARALLELISM_PROCESSES" must be >= 0`)
	}
	if p.Threads < 0 {
		return errors.New(`"PARALLELISM_THREADS" must be >= 0`)
	}
	for _, axis := range []struct {
		name  string
		value float64
	}{
		{"PARALLELISM_SYSTEM_PROCESSOR", p.SystemProcessor},
		{"PARALLELISM_SYSTEM_MEMORY", p.SystemMemory},
		{"PARALLELISM_GRAPHICS_PROCESSOR", p.GraphicsProcessor},
		{"PARALLELISM_GRAPHICS_MEMORY", p.GraphicsMemory},
	} {
		if axis.value < 0 || axis.value > 100 {
			return errors.Errorf("%q must be between 0 and 100", axis.name)
		}
	}
	if p.PollIntervalMS <= 0 {
		return errors.New(`"PARALLELISM_POLL_INTERVAL_MS" must be > 0`)
	}
	return nil
}

// SlogLevel maps LogLevel to a slog.Level for logger construction.
func (p *Profile) SlogLevel() slog.Level {
	switch p.LogLevel {
	case "debug":
		return slog.LevelDebug
	case "warn":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}
