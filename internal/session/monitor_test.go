package session

import "testing"

func TestIntegrityMonitorBelowLimit(t *testing.T) {
	m := NewIntegrityMonitor(0, 7)
	for i := 1; i < 7; i++ {
		count, exceeded := m.RecordExit()
		if count != i {
			t.Errorf("exit %d: count = %d", i, count)
		}
		if exceeded {
			t.Errorf("exit %d: exceeded before limit", i)
		}
	}
}

func TestIntegrityMonitorSignalsExactlyOnce(t *testing.T) {
	m := NewIntegrityMonitor(0, 3)

	m.RecordExit()
	m.RecordExit()

	if _, exceeded := m.RecordExit(); !exceeded {
		t.Fatal("third exit should exceed limit of 3")
	}
	for i := 0; i < 3; i++ {
		if _, exceeded := m.RecordExit(); exceeded {
			t.Error("limit signal fired a second time")
		}
	}
	if m.Count() != 6 {
		t.Errorf("count = %d, want 6", m.Count())
	}
}

func TestIntegrityMonitorSeededFromPersistedCount(t *testing.T) {
	// 续考时带入历史计数：再退一次就触限
	m := NewIntegrityMonitor(2, 3)
	count, exceeded := m.RecordExit()
	if count != 3 || !exceeded {
		t.Errorf("got count=%d exceeded=%v, want 3/true", count, exceeded)
	}
}

func TestIntegrityMonitorDisabledLimit(t *testing.T) {
	m := NewIntegrityMonitor(0, 0)
	for i := 0; i < 10; i++ {
		if _, exceeded := m.RecordExit(); exceeded {
			t.Fatal("limit of 0 should never signal")
		}
	}
}

func TestIntegrityMonitorNegativeSeed(t *testing.T) {
	m := NewIntegrityMonitor(-5, 3)
	if count, _ := m.RecordExit(); count != 1 {
		t.Errorf("count = %d, want 1", count)
	}
}
