// Copyright (c) 2025 Nishisan. All rights reserved.
// Use of this source code is governed by the N-Backup License (Non-Commercial Evaluation)
// that can be found in the LICENSE file.

package batching

import (
	"fmt"
	"math"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/rerun-tools/chunkbatcher/internal/chunk"
)

// Hooks lets callers observe batcher internals, primarily for tests and
// memory accounting. Both are optional; a nil hook is simply not invoked.
type Hooks struct {
	// OnInsert is invoked once per AppendRow command, with the single row
	// that was inserted.
	OnInsert func(row chunk.PendingRow)
	// OnRelease is invoked once per Chunk dropped on the output channel
	// (either consumed or discarded at shutdown).
	OnRelease func(c *chunk.Chunk)
}

// Config holds every threshold, channel bound, and hook the batching
// worker consults. The zero Config is not valid; use Default, a preset, or
// FromEnv.
type Config struct {
	// FlushTick is the periodic flush interval.
	FlushTick time.Duration
	// FlushNumBytes is the per-entity-accumulator byte threshold.
	FlushNumBytes uint64
	// FlushNumRows is the per-entity-accumulator row threshold.
	FlushNumRows uint64
	// ChunkMaxRowsIfUnsorted caps how many rows an unsorted-timeline Chunk
	// may hold before assembly cuts a new one.
	ChunkMaxRowsIfUnsorted int
	// MaxCommandsInFlight bounds the command channel; 0 means unbounded.
	MaxCommandsInFlight int
	// MaxChunksInFlight bounds the output channel; 0 means unbounded.
	MaxChunksInFlight int
	// MaxRowsPerSecond optionally throttles PushRow at the front-end via a
	// token-bucket rate limiter; <= 0 disables throttling (the default).
	MaxRowsPerSecond float64

	Hooks Hooks
}

const (
	defaultFlushTick              = 8 * time.Millisecond
	defaultFlushNumBytes          = 1024 * 1024 // 1 MiB
	defaultChunkMaxRowsIfUnsorted = 256
)

// Default returns the baseline Config: an 8ms tick, a 1 MiB per-entity
// byte threshold, an effectively unbounded row threshold, and a 256-row
// unsorted cap. Channels and the row-rate throttle are unbounded/disabled.
func Default() Config {
	return Config{
		FlushTick:              defaultFlushTick,
		FlushNumBytes:          defaultFlushNumBytes,
		FlushNumRows:           math.MaxUint64,
		ChunkMaxRowsIfUnsorted: defaultChunkMaxRowsIfUnsorted,
	}
}

// Always returns a Config that flushes on every single row: both
// thresholds are set to their smallest meaningful value. Useful for tests
// that want each PushRow to produce its own Chunk deterministically.
func Always() Config {
	c := Default()
	c.FlushNumRows = 1
	c.FlushNumBytes = 1
	return c
}

// Never returns a Config that never flushes on its own; only FlushBlocking,
// FlushAsync, or shutdown move data out of the accumulators. The
// unsorted-cap split during assembly still applies regardless of this
// preset.
func Never() Config {
	c := Default()
	c.FlushNumRows = math.MaxUint64
	c.FlushNumBytes = math.MaxUint64
	c.FlushTick = time.Hour * 24 * 365
	return c
}

const (
	envFlushTickSecs          = "RERUN_FLUSH_TICK_SECS"
	envFlushNumBytes          = "RERUN_FLUSH_NUM_BYTES"
	envFlushNumRows           = "RERUN_FLUSH_NUM_ROWS"
	envChunkMaxRowsIfUnsorted = "RERUN_CHUNK_MAX_ROWS_IF_UNSORTED"
	// envChunkMaxRowsIfUnsortedDeprecated is a soft-deprecated alias kept
	// for compatibility with older deployments; honored only when the
	// canonical variable above is unset.
	envChunkMaxRowsIfUnsortedDeprecated = "RERUN_MAX_CHUNK_ROWS_IF_UNSORTED"
)

// DeprecationLogger receives a one-time notice when FromEnv falls back to
// a deprecated environment variable name. Tests and FromEnv callers that
// don't care may leave this nil.
type DeprecationLogger interface {
	Warn(msg string, args ...any)
}

// FromEnv starts from Default and overrides any field whose environment
// variable is set, using the project's established human-readable
// byte-size grammar for RERUN_FLUSH_NUM_BYTES. A malformed value produces
// a *ParseConfigError naming the offending variable.
func FromEnv(logger DeprecationLogger) (Config, error) {
	cfg := Default()

	if v := os.Getenv(envFlushTickSecs); v != "" {
		secs, err := strconv.ParseFloat(v, 64)
		if err != nil {
			return Config{}, &ParseConfigError{Name: envFlushTickSecs, Value: v, Cause: err}
		}
		cfg.FlushTick = time.Duration(secs * float64(time.Second))
	}

	if v := os.Getenv(envFlushNumBytes); v != "" {
		n, err := ParseByteSize(v)
		if err != nil {
			return Config{}, &ParseConfigError{Name: envFlushNumBytes, Value: v, Cause: err}
		}
		cfg.FlushNumBytes = uint64(n)
	}

	if v := os.Getenv(envFlushNumRows); v != "" {
		n, err := strconv.ParseUint(v, 10, 64)
		if err != nil {
			return Config{}, &ParseConfigError{Name: envFlushNumRows, Value: v, Cause: err}
		}
		cfg.FlushNumRows = n
	}

	capVar, capVal := envChunkMaxRowsIfUnsorted, os.Getenv(envChunkMaxRowsIfUnsorted)
	if capVal == "" {
		if v := os.Getenv(envChunkMaxRowsIfUnsortedDeprecated); v != "" {
			capVar, capVal = envChunkMaxRowsIfUnsortedDeprecated, v
			if logger != nil {
				logger.Warn("using deprecated environment variable, please migrate", "deprecated", envChunkMaxRowsIfUnsortedDeprecated, "canonical", envChunkMaxRowsIfUnsorted)
			}
		}
	}
	if capVal != "" {
		n, err := strconv.Atoi(capVal)
		if err != nil {
			return Config{}, &ParseConfigError{Name: capVar, Value: capVal, Cause: err}
		}
		cfg.ChunkMaxRowsIfUnsorted = n
	}

	return cfg, nil
}

// fileConfig is the YAML-serializable subset of Config; hooks are
// necessarily runtime-only and are never part of the file representation.
type fileConfig struct {
	FlushTickMillis        int64   `yaml:"flush_tick_ms"`
	FlushNumBytes          string  `yaml:"flush_num_bytes"`
	FlushNumRows           uint64  `yaml:"flush_num_rows"`
	ChunkMaxRowsIfUnsorted int     `yaml:"chunk_max_rows_if_unsorted"`
	MaxCommandsInFlight    int     `yaml:"max_commands_in_flight"`
	MaxChunksInFlight      int     `yaml:"max_chunks_in_flight"`
	MaxRowsPerSecond       float64 `yaml:"max_rows_per_second"`
}

// LoadConfigFile reads a YAML file into a Config, following this
// codebase's established "unmarshal, then default-and-validate" pattern
// for file-based configuration. Fields left unset in the file keep
// Default's values.
func LoadConfigFile(path string) (Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Config{}, fmt.Errorf("reading batcher config: %w", err)
	}

	var fc fileConfig
	if err := yaml.Unmarshal(data, &fc); err != nil {
		return Config{}, fmt.Errorf("parsing batcher config: %w", err)
	}

	cfg := Default()
	if fc.FlushTickMillis > 0 {
		cfg.FlushTick = time.Duration(fc.FlushTickMillis) * time.Millisecond
	}
	if fc.FlushNumBytes != "" {
		n, err := ParseByteSize(fc.FlushNumBytes)
		if err != nil {
			return Config{}, fmt.Errorf("batcher config flush_num_bytes: %w", err)
		}
		cfg.FlushNumBytes = uint64(n)
	}
	if fc.FlushNumRows > 0 {
		cfg.FlushNumRows = fc.FlushNumRows
	}
	if fc.ChunkMaxRowsIfUnsorted > 0 {
		cfg.ChunkMaxRowsIfUnsorted = fc.ChunkMaxRowsIfUnsorted
	}
	cfg.MaxCommandsInFlight = fc.MaxCommandsInFlight
	cfg.MaxChunksInFlight = fc.MaxChunksInFlight
	cfg.MaxRowsPerSecond = fc.MaxRowsPerSecond

	return cfg, nil
}

// ParseByteSize converts human-readable strings like "256mb", "1gb" to a
// byte count. Suffixes are matched longest-first so "mb" never matches as
// a trailing "b"; a bare number is interpreted as raw bytes.
func ParseByteSize(s string) (int64, error) {
	s = strings.TrimSpace(strings.ToLower(s))
	if s == "" {
		return 0, fmt.Errorf("empty size string")
	}

	type suffix struct {
		s string
		m int64
	}
	suffixes := []suffix{
		{"gb", 1024 * 1024 * 1024},
		{"mb", 1024 * 1024},
		{"kb", 1024},
		{"b", 1},
	}

	for _, sfx := range suffixes {
		if strings.HasSuffix(s, sfx.s) {
			numStr := strings.TrimSuffix(s, sfx.s)
			num, err := strconv.ParseInt(numStr, 10, 64)
			if err != nil {
				return 0, fmt.Errorf("invalid number %q: %w", numStr, err)
			}
			return num * sfx.m, nil
		}
	}

	num, err := strconv.ParseInt(s, 10, 64)
	if err != nil {
		return 0, fmt.Errorf("unknown size format %q", s)
	}
	return num, nil
}
