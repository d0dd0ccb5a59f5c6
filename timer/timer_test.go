package timer

import (
	"sync/atomic"
	"testing"
	"time"
)

func TestTimerManager_AfterFunc(t *testing.T) {
	m := NewTimerManager(5 * time.Millisecond)
	defer m.Stop()

	fired := make(chan struct{})
	m.AfterFunc("once", 10*time.Millisecond, func() { close(fired) })

	select {
	case <-fired:
	case <-time.After(time.Second):
		t.Fatal("One-shot timer never fired")
	}
	if m.Len() != 0 {
		t.Errorf("One-shot timer should leave the queue, got %d tasks", m.Len())
	}
}

func TestTimerManager_Interval(t *testing.T) {
	m := NewTimerManager(5 * time.Millisecond)
	defer m.Stop()

	var count atomic.Int32
	id := m.AddTimer("tick", 0, 10*time.Millisecond, func() { count.Add(1) })

	deadline := time.Now().Add(time.Second)
	for count.Load() < 3 {
		if time.Now().After(deadline) {
			t.Fatalf("Expected at least 3 ticks, got %d", count.Load())
		}
		time.Sleep(5 * time.Millisecond)
	}

	if !m.RemoveTimer(id) {
		t.Error("RemoveTimer should find the periodic task")
	}
}

func TestTimerManager_RemoveBeforeFire(t *testing.T) {
	m := NewTimerManager(5 * time.Millisecond)
	defer m.Stop()

	var fired atomic.Bool
	id := m.AfterFunc("never", 50*time.Millisecond, func() { fired.Store(true) })
	if !m.RemoveTimer(id) {
		t.Fatal("RemoveTimer should find the pending task")
	}

	time.Sleep(100 * time.Millisecond)
	if fired.Load() {
		t.Error("Removed timer must not fire")
	}
	if m.RemoveTimer(id) {
		t.Error("Removing twice should report false")
	}
}

func TestTimerManager_PanicIsContained(t *testing.T) {
	m := NewTimerManager(5 * time.Millisecond)
	defer m.Stop()

	fired := make(chan struct{})
	m.AfterFunc("boom", 0, func() { panic("boom") })
	m.AfterFunc("after", 20*time.Millisecond, func() { close(fired) })

	select {
	case <-fired:
	case <-time.After(time.Second):
		t.Fatal("A panicking callback should not stop later timers")
	}
}
