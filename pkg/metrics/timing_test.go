package metrics

import (
	"sync"
	"testing"
	"time"
)

func TestTimingMetric_Record(t *testing.T) {
	SetEnabled(true)
	m := newTimingMetric("test")

	m.Record(2 * time.Millisecond)
	m.Record(4 * time.Millisecond)

	s := m.Stats()
	if s.Count != 2 {
		t.Errorf("Count = %d, want 2", s.Count)
	}
	if s.MinMs != 2 || s.MaxMs != 4 {
		t.Errorf("min/max = %v/%v, want 2/4", s.MinMs, s.MaxMs)
	}
	if s.AvgMs != 3 {
		t.Errorf("AvgMs = %v, want 3", s.AvgMs)
	}

	m.Reset()
	if m.Count() != 0 {
		t.Errorf("Count after reset = %d", m.Count())
	}
}

func TestTimingMetric_Disabled(t *testing.T) {
	SetEnabled(false)
	defer SetEnabled(true)

	m := newTimingMetric("off")
	m.Record(time.Millisecond)
	Timer(m)()
	if m.Count() != 0 {
		t.Errorf("expected no samples while disabled, got %d", m.Count())
	}
}

func TestTimingMetric_Concurrent(t *testing.T) {
	SetEnabled(true)
	m := newTimingMetric("concurrent")

	var wg sync.WaitGroup
	for i := 1; i <= 50; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			m.Record(time.Duration(i) * time.Microsecond)
		}(i)
	}
	wg.Wait()

	s := m.Stats()
	if s.Count != 50 {
		t.Errorf("Count = %d, want 50", s.Count)
	}
	if s.MaxMs != 0.05 {
		t.Errorf("MaxMs = %v, want 0.05", s.MaxMs)
	}
	if s.MinMs != 0.001 {
		t.Errorf("MinMs = %v, want 0.001", s.MinMs)
	}
}

func TestSnapshot_OnlyMetricsWithSamples(t *testing.T) {
	SetEnabled(true)
	ResetAll()
	defer ResetAll()

	Layering.Record(time.Millisecond)

	snap := Snapshot()
	if len(snap) != 1 || snap[0].Name != "layering" {
		t.Errorf("Snapshot() = %+v, want only layering", snap)
	}
}
