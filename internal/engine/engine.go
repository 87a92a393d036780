// Package engine provides the token economy: the interaction rules, the turn
// scheduler, snapshots, and the loop that advances turns on a cadence.
package engine

import (
	"context"
	"log/slog"
	"sync"
	"time"
)

// Engine drives the economy forward one turn per interval.
type Engine struct {
	Interval time.Duration // Base turn interval (default 1 second)

	// OnTurn runs once per interval. Populated during setup.
	OnTurn func()

	mu      sync.Mutex
	speed   float64 // Multiplier: 1.0 = real-time, 0 = paused
	running bool
	cancel  context.CancelFunc
	turns   uint64 // Turns driven by this loop
}

// NewEngine creates a loop driver with default settings.
func NewEngine(interval time.Duration) *Engine {
	if interval <= 0 {
		interval = time.Second
	}
	return &Engine{
		Interval: interval,
		speed:    1.0,
	}
}

// Run advances turns until ctx is cancelled or Stop is called. Turns never
// overlap: the next one starts only after OnTurn returns.
func (e *Engine) Run(ctx context.Context) {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	e.mu.Lock()
	e.running = true
	e.cancel = cancel
	e.mu.Unlock()

	slog.Info("economy loop started", "interval", e.Interval, "speed", e.Speed())

	for {
		speed := e.Speed()
		if speed <= 0 {
			// Paused, check again shortly.
			if !sleep(ctx, 100*time.Millisecond) {
				break
			}
			continue
		}

		start := time.Now()
		e.step()

		// Sleep for the remainder of the interval, adjusted for speed.
		target := time.Duration(float64(e.Interval) / speed)
		if elapsed := time.Since(start); elapsed < target {
			if !sleep(ctx, target-elapsed) {
				break
			}
		} else if ctx.Err() != nil {
			break
		}
	}

	e.mu.Lock()
	e.running = false
	e.cancel = nil
	turns := e.turns
	e.mu.Unlock()

	slog.Info("economy loop stopped", "turns", turns)
}

// Stop halts the loop. It is safe to call when the loop is not running.
func (e *Engine) Stop() {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.cancel != nil {
		e.cancel()
	}
}

// Running reports whether Run is active.
func (e *Engine) Running() bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.running
}

// Speed returns the current speed multiplier.
func (e *Engine) Speed() float64 {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.speed
}

// SetSpeed changes the speed multiplier; 0 pauses the loop.
func (e *Engine) SetSpeed(speed float64) {
	if speed < 0 {
		speed = 0
	}
	e.mu.Lock()
	e.speed = speed
	e.mu.Unlock()
}

// Turns returns how many turns the loop has driven.
func (e *Engine) Turns() uint64 {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.turns
}

func (e *Engine) step() {
	if e.OnTurn != nil {
		e.OnTurn()
	}
	e.mu.Lock()
	e.turns++
	e.mu.Unlock()
}

// sleep waits for d or until ctx ends. It reports false when ctx ended.
func sleep(ctx context.Context, d time.Duration) bool {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return false
	case <-t.C:
		return true
	}
}
