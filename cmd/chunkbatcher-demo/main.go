// Copyright (c) 2025 Nishisan. All rights reserved.
// Use of this source code is governed by the N-Backup License (Non-Commercial Evaluation)
// that can be found in the LICENSE file.

package main

import (
	"context"
	"flag"
	"fmt"
	"math/rand"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/apache/arrow/go/v12/arrow"
	"github.com/apache/arrow/go/v12/arrow/array"
	"github.com/apache/arrow/go/v12/arrow/memory"

	"github.com/rerun-tools/chunkbatcher/internal/batching"
	"github.com/rerun-tools/chunkbatcher/internal/chunk"
	"github.com/rerun-tools/chunkbatcher/internal/logging"
)

func main() {
	configPath := flag.String("config", "", "path to a batcher YAML config file (falls back to environment variables, then defaults)")
	logLevel := flag.String("log-level", "info", "log level: debug, info, warn, error")
	logFormat := flag.String("log-format", "json", "log format: json or text")
	producers := flag.Int("producers", 4, "number of concurrent producer goroutines")
	seconds := flag.Int("seconds", 3, "how long to run before shutting down")
	diagSchedule := flag.String("diagnostics-schedule", "*/5 * * * * *", "cron schedule (seconds-enabled) for periodic stats logging")
	memThreshold := flag.Float64("mem-threshold-percent", 90.0, "system memory usage percent that triggers a pressure warning while rows are pending; <= 0 disables warnings")
	flag.Parse()

	logger, logCloser := logging.NewLogger(*logLevel, *logFormat, "")
	defer logCloser.Close()

	cfg, err := loadConfig(*configPath, logger)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error loading config: %v\n", err)
		os.Exit(1)
	}

	b := batching.New(cfg, logger)

	diag, err := batching.NewDiagnosticsReporter(*diagSchedule, logger, b.Stats)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error scheduling diagnostics reporter: %v\n", err)
		os.Exit(1)
	}
	diag.Start()
	defer diag.Stop()

	memMonitor := batching.NewMemoryMonitor(logger, *memThreshold, func() int { return b.Stats().PendingRows })
	memMonitor.Start()
	defer memMonitor.Stop()

	ctx, cancel := context.WithTimeout(context.Background(), time.Duration(*seconds)*time.Second)
	defer cancel()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGTERM, syscall.SIGINT)
	go func() {
		sig := <-sigCh
		logger.Info("received signal, shutting down", "signal", sig)
		cancel()
	}()

	var consumed int
	done := make(chan struct{})
	go func() {
		defer close(done)
		for c := range b.Chunks() {
			consumed++
			logger.Info("received chunk",
				"entity_path", c.EntityPath().String(),
				"num_rows", c.NumRows(),
				"is_sorted", c.IsSorted(),
				"heap_bytes", c.HeapSizeBytes(),
			)
		}
	}()

	var wg sync.WaitGroup
	for p := 0; p < *producers; p++ {
		wg.Add(1)
		go runProducer(ctx, &wg, b, p)
	}
	wg.Wait()

	b.Close()
	<-done

	logger.Info("demo finished", "chunks_consumed", consumed, "stats", b.Stats())
}

func loadConfig(path string, logger batching.DeprecationLogger) (batching.Config, error) {
	if path != "" {
		return batching.LoadConfigFile(path)
	}
	return batching.FromEnv(logger)
}

// runProducer logs synthetic rows to a small set of entity paths until ctx
// is done, mimicking an independent logging-SDK producer goroutine.
func runProducer(ctx context.Context, wg *sync.WaitGroup, b *batching.Batcher, id int) {
	defer wg.Done()

	entityPath := chunk.ParseEntityPath(fmt.Sprintf("demo/producer_%d", id))
	alloc := memory.NewGoAllocator()
	desc := chunk.NewComponentDescriptor("rerun.archetypes.Points2D", "Position2D", "MyPoint")

	var t int64
	for {
		select {
		case <-ctx.Done():
			return
		default:
		}

		b32 := array.NewFloat32Builder(alloc)
		b32.Append(rand.Float32())
		cell := chunk.Cell{Type: arrow.PrimitiveTypes.Float32, Array: b32.NewFloat32Array()}

		row := chunk.NewPendingRow(
			chunk.TimePoint{chunk.NewTimeline("log_time", chunk.TimelineTimestampNs): t},
			map[chunk.ComponentDescriptor]chunk.Cell{desc: cell},
		)
		t++

		if err := b.PushRow(ctx, entityPath, row); err != nil {
			return
		}
		time.Sleep(time.Millisecond)
	}
}
