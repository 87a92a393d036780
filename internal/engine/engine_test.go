package engine

import (
	"context"
	"sync/atomic"
	"testing"
	"time"
)

func TestEngineRunsUntilStopped(t *testing.T) {
	e := NewEngine(time.Millisecond)
	var calls atomic.Int64
	e.OnTurn = func() { calls.Add(1) }

	done := make(chan struct{})
	go func() {
		e.Run(context.Background())
		close(done)
	}()

	deadline := time.Now().Add(2 * time.Second)
	for e.Turns() < 3 {
		if time.Now().After(deadline) {
			t.Fatalf("only %d turns after 2s", e.Turns())
		}
		time.Sleep(time.Millisecond)
	}
	if !e.Running() {
		t.Fatal("engine should report running")
	}

	e.Stop()
	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("Run did not return after Stop")
	}
	if e.Running() {
		t.Fatal("engine still running after stop")
	}
	if got := calls.Load(); uint64(got) != e.Turns() {
		t.Fatalf("OnTurn called %d times, Turns() = %d", got, e.Turns())
	}
}

func TestEnginePausedDoesNotAdvance(t *testing.T) {
	e := NewEngine(time.Millisecond)
	e.SetSpeed(0)

	ctx, cancel := context.WithTimeout(context.Background(), 250*time.Millisecond)
	defer cancel()
	e.Run(ctx)

	if e.Turns() != 0 {
		t.Fatalf("paused engine advanced %d turns", e.Turns())
	}
}

func TestSetSpeedRejectsNegative(t *testing.T) {
	e := NewEngine(0)
	if e.Interval != time.Second {
		t.Fatalf("default interval = %v", e.Interval)
	}
	e.SetSpeed(-3)
	if e.Speed() != 0 {
		t.Fatalf("speed = %v, want 0", e.Speed())
	}
}
