// Copyright (c) 2025 Nishisan. All rights reserved.
// Use of this source code is governed by the N-Backup License (Non-Commercial Evaluation)
// that can be found in the LICENSE file.

package batching

import (
	"errors"
	"math"
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestParseByteSize(t *testing.T) {
	cases := []struct {
		in      string
		want    int64
		wantErr bool
	}{
		{"1024", 1024, false},
		{"10b", 10, false},
		{"1kb", 1024, false},
		{"256mb", 256 * 1024 * 1024, false},
		{"1gb", 1024 * 1024 * 1024, false},
		{"1GB", 1024 * 1024 * 1024, false},
		{"  2mb  ", 2 * 1024 * 1024, false},
		{"", 0, true},
		{"abc", 0, true},
		{"12tb", 0, true},
	}
	for _, tc := range cases {
		t.Run(tc.in, func(t *testing.T) {
			got, err := ParseByteSize(tc.in)
			if tc.wantErr {
				if err == nil {
					t.Fatalf("expected an error for %q", tc.in)
				}
				return
			}
			if err != nil {
				t.Fatalf("unexpected error for %q: %v", tc.in, err)
			}
			if got != tc.want {
				t.Errorf("ParseByteSize(%q) = %d, want %d", tc.in, got, tc.want)
			}
		})
	}
}

func TestDefaultPreset(t *testing.T) {
	cfg := Default()
	if cfg.FlushTick != 8*time.Millisecond {
		t.Errorf("expected 8ms flush tick, got %v", cfg.FlushTick)
	}
	if cfg.FlushNumBytes != 1024*1024 {
		t.Errorf("expected 1 MiB byte threshold, got %d", cfg.FlushNumBytes)
	}
	if cfg.FlushNumRows != math.MaxUint64 {
		t.Errorf("expected effectively unbounded row threshold, got %d", cfg.FlushNumRows)
	}
	if cfg.ChunkMaxRowsIfUnsorted != 256 {
		t.Errorf("expected unsorted cap 256, got %d", cfg.ChunkMaxRowsIfUnsorted)
	}
}

func TestAlwaysAndNeverPresets(t *testing.T) {
	always := Always()
	if always.FlushNumRows != 1 || always.FlushNumBytes != 1 {
		t.Errorf("expected ALWAYS to flush on every row, got rows=%d bytes=%d", always.FlushNumRows, always.FlushNumBytes)
	}

	never := Never()
	if never.FlushNumRows != math.MaxUint64 || never.FlushNumBytes != math.MaxUint64 {
		t.Errorf("expected NEVER to disable threshold flushing, got rows=%d bytes=%d", never.FlushNumRows, never.FlushNumBytes)
	}
}

func TestFromEnv_Overrides(t *testing.T) {
	t.Setenv("RERUN_FLUSH_TICK_SECS", "0.25")
	t.Setenv("RERUN_FLUSH_NUM_BYTES", "10mb")
	t.Setenv("RERUN_FLUSH_NUM_ROWS", "5000")
	t.Setenv("RERUN_CHUNK_MAX_ROWS_IF_UNSORTED", "64")

	cfg, err := FromEnv(nil)
	if err != nil {
		t.Fatalf("FromEnv: %v", err)
	}
	if cfg.FlushTick != 250*time.Millisecond {
		t.Errorf("expected 250ms flush tick, got %v", cfg.FlushTick)
	}
	if cfg.FlushNumBytes != 10*1024*1024 {
		t.Errorf("expected 10 MiB byte threshold, got %d", cfg.FlushNumBytes)
	}
	if cfg.FlushNumRows != 5000 {
		t.Errorf("expected 5000 row threshold, got %d", cfg.FlushNumRows)
	}
	if cfg.ChunkMaxRowsIfUnsorted != 64 {
		t.Errorf("expected unsorted cap 64, got %d", cfg.ChunkMaxRowsIfUnsorted)
	}
}

func TestFromEnv_MalformedValue(t *testing.T) {
	t.Setenv("RERUN_FLUSH_NUM_ROWS", "many")

	_, err := FromEnv(nil)
	if err == nil {
		t.Fatal("expected an error for a malformed row threshold")
	}
	var pce *ParseConfigError
	if !errors.As(err, &pce) {
		t.Fatalf("expected a *ParseConfigError, got %T: %v", err, err)
	}
	if pce.Name != "RERUN_FLUSH_NUM_ROWS" || pce.Value != "many" {
		t.Errorf("expected the error to carry the offending variable, got %+v", pce)
	}
}

type recordingDeprecationLogger struct {
	warns int
}

func (l *recordingDeprecationLogger) Warn(msg string, args ...any) { l.warns++ }

func TestFromEnv_DeprecatedAlias(t *testing.T) {
	t.Setenv("RERUN_MAX_CHUNK_ROWS_IF_UNSORTED", "77")

	rec := &recordingDeprecationLogger{}
	cfg, err := FromEnv(rec)
	if err != nil {
		t.Fatalf("FromEnv: %v", err)
	}
	if cfg.ChunkMaxRowsIfUnsorted != 77 {
		t.Errorf("expected the deprecated alias to apply, got %d", cfg.ChunkMaxRowsIfUnsorted)
	}
	if rec.warns != 1 {
		t.Errorf("expected exactly one deprecation warning, got %d", rec.warns)
	}
}

func TestFromEnv_CanonicalWinsOverDeprecatedAlias(t *testing.T) {
	t.Setenv("RERUN_CHUNK_MAX_ROWS_IF_UNSORTED", "32")
	t.Setenv("RERUN_MAX_CHUNK_ROWS_IF_UNSORTED", "77")

	rec := &recordingDeprecationLogger{}
	cfg, err := FromEnv(rec)
	if err != nil {
		t.Fatalf("FromEnv: %v", err)
	}
	if cfg.ChunkMaxRowsIfUnsorted != 32 {
		t.Errorf("expected the canonical variable to win, got %d", cfg.ChunkMaxRowsIfUnsorted)
	}
	if rec.warns != 0 {
		t.Errorf("expected no deprecation warning when the canonical variable is set, got %d", rec.warns)
	}
}

func TestLoadConfigFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "batcher.yaml")
	content := `
flush_tick_ms: 100
flush_num_bytes: "2mb"
flush_num_rows: 1000
chunk_max_rows_if_unsorted: 128
max_commands_in_flight: 256
max_chunks_in_flight: 16
max_rows_per_second: 5000
`
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		t.Fatalf("writing config file: %v", err)
	}

	cfg, err := LoadConfigFile(path)
	if err != nil {
		t.Fatalf("LoadConfigFile: %v", err)
	}
	if cfg.FlushTick != 100*time.Millisecond {
		t.Errorf("expected 100ms flush tick, got %v", cfg.FlushTick)
	}
	if cfg.FlushNumBytes != 2*1024*1024 {
		t.Errorf("expected 2 MiB byte threshold, got %d", cfg.FlushNumBytes)
	}
	if cfg.FlushNumRows != 1000 {
		t.Errorf("expected 1000 row threshold, got %d", cfg.FlushNumRows)
	}
	if cfg.ChunkMaxRowsIfUnsorted != 128 {
		t.Errorf("expected unsorted cap 128, got %d", cfg.ChunkMaxRowsIfUnsorted)
	}
	if cfg.MaxCommandsInFlight != 256 || cfg.MaxChunksInFlight != 16 {
		t.Errorf("expected channel bounds 256/16, got %d/%d", cfg.MaxCommandsInFlight, cfg.MaxChunksInFlight)
	}
	if cfg.MaxRowsPerSecond != 5000 {
		t.Errorf("expected 5000 rows/sec throttle, got %f", cfg.MaxRowsPerSecond)
	}
}

func TestLoadConfigFile_PartialKeepsDefaults(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "batcher.yaml")
	if err := os.WriteFile(path, []byte("flush_num_rows: 42\n"), 0644); err != nil {
		t.Fatalf("writing config file: %v", err)
	}

	cfg, err := LoadConfigFile(path)
	if err != nil {
		t.Fatalf("LoadConfigFile: %v", err)
	}
	if cfg.FlushNumRows != 42 {
		t.Errorf("expected 42 row threshold, got %d", cfg.FlushNumRows)
	}
	if cfg.FlushTick != 8*time.Millisecond {
		t.Errorf("expected default flush tick to survive a partial file, got %v", cfg.FlushTick)
	}
	if cfg.ChunkMaxRowsIfUnsorted != 256 {
		t.Errorf("expected default unsorted cap to survive a partial file, got %d", cfg.ChunkMaxRowsIfUnsorted)
	}
}

func TestLoadConfigFile_Missing(t *testing.T) {
	if _, err := LoadConfigFile(filepath.Join(t.TempDir(), "absent.yaml")); err == nil {
		t.Fatal("expected an error for a missing config file")
	}
}

func TestLoadConfigFile_MalformedYAML(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "batcher.yaml")
	if err := os.WriteFile(path, []byte("flush_tick_ms: [not a number\n"), 0644); err != nil {
		t.Fatalf("writing config file: %v", err)
	}
	if _, err := LoadConfigFile(path); err == nil {
		t.Fatal("expected an error for malformed YAML")
	}
}
