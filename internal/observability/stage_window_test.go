package observability

import "testing"

func TestStageWindowSnapshot(t *testing.T) {
	w := NewStageWindow(4)
	for _, ms := range []float64{100, 200, 300} {
		w.Observe("reply", ms)
	}

	snap := w.Snapshot()
	if len(snap.Stages) != 1 {
		t.Fatalf("stages = %d, want 1", len(snap.Stages))
	}
	s := snap.Stages[0]
	if s.Stage != "reply" || s.Samples != 3 {
		t.Fatalf("stats = %+v", s)
	}
	if s.LastMS != 300 {
		t.Fatalf("LastMS = %v, want 300", s.LastMS)
	}
	if s.AvgMS != 200 {
		t.Fatalf("AvgMS = %v, want 200", s.AvgMS)
	}
}

func TestStageWindowWrapAround(t *testing.T) {
	w := NewStageWindow(2)
	w.Observe("extract", 10)
	w.Observe("extract", 20)
	w.Observe("extract", 30)

	snap := w.Snapshot()
	s := snap.Stages[0]
	if s.Samples != 2 {
		t.Fatalf("Samples = %d, want 2 after wrap", s.Samples)
	}
	if s.LastMS != 30 {
		t.Fatalf("LastMS = %v, want 30", s.LastMS)
	}
}

func TestStageWindowIgnoresInvalid(t *testing.T) {
	w := NewStageWindow(4)
	w.Observe("", 10)
	w.Observe("reply", -1)

	if snap := w.Snapshot(); len(snap.Stages) != 0 {
		t.Fatalf("stages = %d, want 0", len(snap.Stages))
	}
}

func TestMetricsNilReceiverSafe(t *testing.T) {
	var m *Metrics
	m.ObserveTurn("reply", 0)
	m.StageError("memory")
	m.SummaryRun(false)
	m.ObserveStage("reply", 0)
}
