package metrics

import (
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
)

func TestNilMetrics(t *testing.T) {
	var m *Metrics
	m.ObserveCycle(time.Millisecond)
	m.AddResults(KindPattern, 3)
	m.AddFailedPartitions(1)
	m.MessageSent("/tuio2/bnd")
	m.MessageReceived("/tuio2/bnd")
	m.DecodeError("/tuio2/sym")
	m.QueueDrop("/tuio2/ptr")
	m.AddEvictions(KindPointer, 2)
	m.SetLive(KindPattern, 1)
	m.SetRegisteredPatterns(4)
}

func TestCounters(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := New(reg)
	m.ObserveCycle(2 * time.Millisecond)
	m.ObserveCycle(3 * time.Millisecond)
	m.AddResults(KindPattern, 3)
	m.AddResults(KindPattern, 0)
	m.MessageSent("/tuio2/bnd")
	m.MessageSent("/tuio2/bnd")
	m.SetLive(KindPointer, 5)

	if got := testutil.ToFloat64(m.framesTracked); got != 2 {
		t.Errorf("frames tracked should be 2, got %v", got)
	}
	if got := testutil.ToFloat64(m.trackingResults.WithLabelValues(KindPattern)); got != 3 {
		t.Errorf("pattern results should be 3, got %v", got)
	}
	if got := testutil.ToFloat64(m.messagesSent.WithLabelValues("/tuio2/bnd")); got != 2 {
		t.Errorf("bnd messages should be 2, got %v", got)
	}
	if got := testutil.ToFloat64(m.liveElements.WithLabelValues(KindPointer)); got != 5 {
		t.Errorf("live pointers should be 5, got %v", got)
	}
	if n := testutil.CollectAndCount(m.cycleDuration); n != 1 {
		t.Errorf("expected one histogram, got %d", n)
	}
}
