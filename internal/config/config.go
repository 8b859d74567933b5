// Package config reads command-line defaults from the environment.
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"runtime"
	"strconv"
	"strings"

	"github.com/joho/godotenv"
)

// Config holds the defaults for cmd/deteval flags.
type Config struct {
	IoUThreshold   float64
	ScoreThreshold float64
	Mode           string
	ClassFilter    []string
	Classes        []string
	Workers        int
	LogLevel       slog.Level
}

// Load reads an optional .env file at envFile, then DETEVAL_* variables.
// Variables already set in the environment win over the file. A missing
// file is not an error.
func Load(envFile string) (*Config, error) {
	if envFile != "" {
		if err := godotenv.Load(envFile); err != nil && !errors.Is(err, fs.ErrNotExist) {
			return nil, fmt.Errorf("loading %s: %w", envFile, err)
		}
	}

	return &Config{
		IoUThreshold:   getEnvAsFloat("DETEVAL_IOU_THRESHOLD", 0.5),
		ScoreThreshold: getEnvAsFloat("DETEVAL_SCORE_THRESHOLD", 0.5),
		Mode:           getEnv("DETEVAL_MODE", "strict"),
		ClassFilter:    getEnvAsList("DETEVAL_CLASS_FILTER"),
		Classes:        getEnvAsList("DETEVAL_CLASSES"),
		Workers:        getEnvAsInt("DETEVAL_WORKERS", runtime.NumCPU()),
		LogLevel:       getEnvAsLevel("DETEVAL_LOG_LEVEL", slog.LevelInfo),
	}, nil
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvAsInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intValue, err := strconv.Atoi(value); err == nil {
			return intValue
		}
	}
	return defaultValue
}

func getEnvAsFloat(key string, defaultValue float64) float64 {
	if value := os.Getenv(key); value != "" {
		if f, err := strconv.ParseFloat(value, 64); err == nil {
			return f
		}
	}
	return defaultValue
}

// getEnvAsList splits a comma-separated variable, dropping empty items.
func getEnvAsList(key string) []string {
	return SplitList(os.Getenv(key))
}

func getEnvAsLevel(key string, defaultValue slog.Level) slog.Level {
	if value := os.Getenv(key); value != "" {
		var level slog.Level
		if err := level.UnmarshalText([]byte(value)); err == nil {
			return level
		}
	}
	return defaultValue
}

// SplitList splits s on commas and trims each item.
func SplitList(s string) []string {
	var out []string
	for _, item := range strings.Split(s, ",") {
		if item = strings.TrimSpace(item); item != "" {
			out = append(out, item)
		}
	}
	return out
}
