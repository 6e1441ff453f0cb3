package session

import "testing"

func managedController(attemptID string) *Controller {
	return NewController(Config{
		AttemptID:        attemptID,
		RemainingSeconds: 600,
		Store:            NewAnswerStore(paper()),
		Monitor:          NewIntegrityMonitor(0, 7),
		Sink:             &fakeSink{},
		Submit:           (&fakeSubmit{}).fn,
	})
}

func TestManagerAttachAndGet(t *testing.T) {
	m := NewManager()
	defer m.Shutdown()

	c := m.Attach(managedController("a1"))
	if got, ok := m.Get("a1"); !ok || got != c {
		t.Fatal("attached session not retrievable")
	}
	if c.State() != StateActive {
		t.Errorf("state = %s, want active after attach", c.State())
	}
}

func TestManagerAttachDeduplicates(t *testing.T) {
	m := NewManager()
	defer m.Shutdown()

	first := m.Attach(managedController("a1"))
	second := m.Attach(managedController("a1"))
	if first != second {
		t.Error("duplicate attach created a second session for the same attempt")
	}
	if m.Len() != 1 {
		t.Errorf("len = %d, want 1", m.Len())
	}
}

func TestManagerRemove(t *testing.T) {
	m := NewManager()
	m.Attach(managedController("a1"))
	m.Attach(managedController("a2"))

	m.Remove("a1")
	if _, ok := m.Get("a1"); ok {
		t.Error("removed session still retrievable")
	}
	if m.Len() != 1 {
		t.Errorf("len = %d, want 1", m.Len())
	}
	m.Shutdown()
}

func TestManagerShutdown(t *testing.T) {
	m := NewManager()
	m.Attach(managedController("a1"))
	m.Attach(managedController("a2"))

	m.Shutdown()
	if m.Len() != 0 {
		t.Errorf("len after shutdown = %d, want 0", m.Len())
	}
}
