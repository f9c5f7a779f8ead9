package store

import (
	"path/filepath"
	"testing"
)

func openStore(t *testing.T) *Store {
	t.Helper()
	s, err := Open(filepath.Join(t.TempDir(), "session.db"))
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { s.Close() })
	return s
}

func TestStatusLifecycle(t *testing.T) {
	s := openStore(t)
	const id = "kvazaar_abc/default/akiyo_qp27_1"

	status, err := s.Status(id)
	if err != nil || status != StatusPending {
		t.Fatalf("unknown run status = %q, %v", status, err)
	}
	if err := s.MarkRunning(id); err != nil {
		t.Fatal(err)
	}
	if err := s.MarkComplete(id, 12.5); err != nil {
		t.Fatal(err)
	}
	status, err = s.Status(id)
	if err != nil || status != StatusComplete {
		t.Fatalf("status = %q, %v", status, err)
	}
}

func TestResetRunning(t *testing.T) {
	s := openStore(t)
	if err := s.MarkRunning("a"); err != nil {
		t.Fatal(err)
	}
	if err := s.MarkComplete("b", 1); err != nil {
		t.Fatal(err)
	}
	if err := s.ResetRunning(); err != nil {
		t.Fatal(err)
	}
	if status, _ := s.Status("a"); status != StatusPending {
		t.Fatalf("interrupted run status = %q, want pending", status)
	}
	if status, _ := s.Status("b"); status != StatusComplete {
		t.Fatalf("completed run status = %q after reset", status)
	}
}

func TestCounters(t *testing.T) {
	s := openStore(t)
	if err := s.MarkComplete("a", 10); err != nil {
		t.Fatal(err)
	}
	if err := s.MarkComplete("b", 5); err != nil {
		t.Fatal(err)
	}
	if err := s.MarkSkipped("c", 7.5); err != nil {
		t.Fatal(err)
	}
	if err := s.MarkFailed("d", "encoder exited 1"); err != nil {
		t.Fatal(err)
	}

	c, err := s.Counters()
	if err != nil {
		t.Fatal(err)
	}
	if c.Complete != 2 || c.Skipped != 1 || c.Failed != 1 {
		t.Fatalf("counters = %+v", c)
	}
	if c.EncodeSeconds != 15 || c.SavedSeconds != 7.5 {
		t.Fatalf("time counters = %+v", c)
	}
}

func TestClearKeepsCounters(t *testing.T) {
	s := openStore(t)
	if err := s.MarkComplete("a", 10); err != nil {
		t.Fatal(err)
	}
	if err := s.Clear(); err != nil {
		t.Fatal(err)
	}
	if status, _ := s.Status("a"); status != StatusPending {
		t.Fatalf("cleared run status = %q", status)
	}
	c, err := s.Counters()
	if err != nil {
		t.Fatal(err)
	}
	if c.EncodeSeconds != 10 {
		t.Fatalf("lifetime counter lost on clear: %+v", c)
	}
}
