package monitor

import (
	"io"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
)

func TestMonitor_Counters(t *testing.T) {
	m := NewMonitor("wordbot_test")

	m.SetActiveRooms(3)
	m.IncEventsReceived("chat")
	m.IncEventsReceived("chat")
	m.IncEventsReceived("nextTurn")
	m.IncCommand("Search", OutcomeOK)
	m.IncCommand("Exit", OutcomeNotEligible)
	m.IncEmitFailures()

	if got := testutil.ToFloat64(m.metrics.ActiveRooms); got != 3 {
		t.Errorf("Expected 3 active rooms, got %v", got)
	}
	if got := testutil.ToFloat64(m.metrics.EventsReceived.WithLabelValues("chat")); got != 2 {
		t.Errorf("Expected 2 chat events, got %v", got)
	}
	if got := testutil.ToFloat64(m.metrics.Commands.WithLabelValues("Exit", OutcomeNotEligible)); got != 1 {
		t.Errorf("Expected 1 rejected Exit, got %v", got)
	}
	if got := testutil.ToFloat64(m.metrics.EmitFailures); got != 1 {
		t.Errorf("Expected 1 emit failure, got %v", got)
	}
}

func TestMonitor_Handler(t *testing.T) {
	m := NewMonitor("wordbot_test")
	m.ObserveEventLatency(5 * time.Millisecond)
	m.IncEventsReceived("chat")

	rec := httptest.NewRecorder()
	m.Handler().ServeHTTP(rec, httptest.NewRequest("GET", "/metrics", nil))
	body, _ := io.ReadAll(rec.Body)

	for _, name := range []string{
		"wordbot_test_event_latency_seconds",
		"wordbot_test_events_received_total",
		"wordbot_test_uptime_seconds",
	} {
		if !strings.Contains(string(body), name) {
			t.Errorf("Expected %s in the metrics output", name)
		}
	}
}
