// Copyright (c) 2025 Nishisan. All rights reserved.
// Use of this source code is governed by the N-Backup License (Non-Commercial Evaluation)
// that can be found in the LICENSE file.

package batching

import (
	"log/slog"
	"sync"
	"time"

	"github.com/shirou/gopsutil/v3/mem"
)

// memPressureCheckInterval mirrors this codebase's SystemMonitor sampling
// cadence, slowed down since a batcher's diagnostics are a background
// concern, not a latency-critical one.
const memPressureCheckInterval = 15 * time.Second

// MemoryMonitor periodically samples system memory pressure and logs a
// warning if usage crosses a configurable threshold while the worker is
// actively holding pending rows. It never gates flush decisions — the
// flush policy is fully determined by Config's thresholds and the tick;
// this component is purely observational.
type MemoryMonitor struct {
	logger      *slog.Logger
	thresholdPc float64
	pendingRows func() int

	close chan struct{}
	wg    sync.WaitGroup
}

// NewMemoryMonitor builds a monitor that warns once usage crosses
// thresholdPercent (e.g. 90.0 for 90%) while pendingRows() > 0. If
// thresholdPercent <= 0, the monitor still samples but never warns.
func NewMemoryMonitor(logger *slog.Logger, thresholdPercent float64, pendingRows func() int) *MemoryMonitor {
	return &MemoryMonitor{
		logger:      logger.With("component", "memory_monitor"),
		thresholdPc: thresholdPercent,
		pendingRows: pendingRows,
		close:       make(chan struct{}),
	}
}

// Start begins periodic sampling in a background goroutine.
func (m *MemoryMonitor) Start() {
	m.wg.Add(1)
	go m.run()
}

// Stop stops sampling and waits for the goroutine to exit.
func (m *MemoryMonitor) Stop() {
	close(m.close)
	m.wg.Wait()
}

func (m *MemoryMonitor) run() {
	defer m.wg.Done()

	ticker := time.NewTicker(memPressureCheckInterval)
	defer ticker.Stop()

	for {
		select {
		case <-m.close:
			return
		case <-ticker.C:
			m.sample()
		}
	}
}

func (m *MemoryMonitor) sample() {
	v, err := mem.VirtualMemory()
	if err != nil {
		m.logger.Debug("failed to sample memory", "error", err)
		return
	}

	if m.thresholdPc > 0 && v.UsedPercent >= m.thresholdPc && m.pendingRows() > 0 {
		m.logger.Warn("system memory pressure while rows are pending",
			"used_percent", v.UsedPercent,
			"threshold_percent", m.thresholdPc,
			"pending_rows", m.pendingRows(),
		)
	}
}
