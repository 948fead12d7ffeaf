// Copyright 2026 Teradata
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//	http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.
package transport

import (
	"context"
	"sync"
	"time"

	"go.uber.org/zap"
)

// HealthCheckConfig controls the background ping loop.
type HealthCheckConfig struct {
	Enabled             bool
	Interval            time.Duration
	MaxReconnectAttempts int
}

// HealthChecker runs ping at Interval in the background, counting
// consecutive failures by exactly one per failed check. After
// MaxReconnectAttempts consecutive failures it invokes onExhausted exactly
// once and stops.
type HealthChecker struct {
	cfg         HealthCheckConfig
	ping        func(ctx context.Context) error
	onExhausted func(error)
	logger      *zap.Logger

	mu             sync.Mutex
	reconnectCount int
	cancel         context.CancelFunc
	wg             sync.WaitGroup
}

// NewHealthChecker creates a checker. ping is invoked once per interval;
// onExhausted fires after MaxReconnectAttempts consecutive ping failures.
func NewHealthChecker(cfg HealthCheckConfig, ping func(ctx context.Context) error, onExhausted func(error), logger *zap.Logger) *HealthChecker {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &HealthChecker{cfg: cfg, ping: ping, onExhausted: onExhausted, logger: logger}
}

// Start launches the background loop. It is a no-op if disabled or already running.
func (h *HealthChecker) Start() {
	if !h.cfg.Enabled {
		return
	}
	h.mu.Lock()
	if h.cancel != nil {
		h.mu.Unlock()
		return
	}
	ctx, cancel := context.WithCancel(context.Background())
	h.cancel = cancel
	h.mu.Unlock()

	h.wg.Add(1)
	go h.loop(ctx)
}

// Stop halts the background loop and waits for it to exit.
func (h *HealthChecker) Stop() {
	h.mu.Lock()
	cancel := h.cancel
	h.cancel = nil
	h.mu.Unlock()

	if cancel != nil {
		cancel()
		h.wg.Wait()
	}
}

// ReconnectCount returns the current consecutive-failure count.
func (h *HealthChecker) ReconnectCount() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.reconnectCount
}

func (h *HealthChecker) loop(ctx context.Context) {
	defer h.wg.Done()

	ticker := time.NewTicker(h.cfg.Interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			pingCtx, cancel := context.WithTimeout(ctx, h.cfg.Interval)
			err := h.ping(pingCtx)
			cancel()

			if err == nil {
				h.mu.Lock()
				h.reconnectCount = 0
				h.mu.Unlock()
				continue
			}

			h.mu.Lock()
			// Increment by exactly one per failed check, never by a batch
			// size, so the count always reflects consecutive failures.
			h.reconnectCount++
			count := h.reconnectCount
			h.mu.Unlock()

			h.logger.Warn("health check failed",
				zap.Error(err),
				zap.Int("reconnect_count", count),
				zap.Int("max_reconnect_attempts", h.cfg.MaxReconnectAttempts))

			if count >= h.cfg.MaxReconnectAttempts {
				if h.onExhausted != nil {
					h.onExhausted(err)
				}
				return
			}
		}
	}
}
